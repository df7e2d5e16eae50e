package model

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/yamitzky/hssf-go/escher"
	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/record"
)

// Sections of unmanaged sheet records, named by the managed block they
// follow.
const (
	sheetHead = iota // after COLINFO, before DIMENSIONS
	sheetBody        // after the cells and the drawing
	sheetView        // after WINDOW2, SCL and PANE
	sheetTail        // after MERGECELLS, conditional formats and validations
)

// sheetHeadOrder is the order of the single-instance records written
// between INDEX and COLINFO. The page break records go after WSBOOL.
var sheetHeadOrder = []uint16{
	record.XL_CALCMODE, record.XL_CALCCOUNT, record.XL_REFMODE, record.XL_ITERATION,
	record.XL_DELTA, record.XL_SAVERECALC, record.XL_PRINTHEADERS, record.XL_PRINTGRIDLINES,
	record.XL_GRIDSET, record.XL_GUTS, record.XL_DEFAULTROWHEIGHT, record.XL_WSBOOL,
	record.XL_HEADER, record.XL_FOOTER, record.XL_HCENTER, record.XL_VCENTER,
	record.XL_LEFTMARGIN, record.XL_RIGHTMARGIN, record.XL_TOPMARGIN, record.XL_BOTTOMMARGIN,
	record.XL_PLS, record.XL_SETUP, record.XL_PROTECT, record.XL_OBJPROTECT,
	record.XL_SCENPROTECT, record.XL_PASSWORD, record.XL_DEFCOLWIDTH,
}

var sheetViewOrder = []uint16{record.XL_WINDOW2, record.XL_SCL, record.XL_PANE}

func isSheetSingleton(sid uint16) bool {
	if sid == record.XL_UNCALCED {
		return true
	}
	for _, list := range [][]uint16{sheetHeadOrder, sheetViewOrder} {
		for _, s := range list {
			if s == sid {
				return true
			}
		}
	}
	return false
}

// rowsPerBlock is the number of ROW records per row block.
const rowsPerBlock = 32

// CondFormat is a CFHEADER record and its CF rules.
type CondFormat struct {
	Header *record.CFHeaderRecord
	Rules  []*record.CFRuleRecord
}

func (c *CondFormat) clone() *CondFormat {
	n := &CondFormat{Header: c.Header.Clone().(*record.CFHeaderRecord)}
	for _, r := range c.Rules {
		n.Rules = append(n.Rules, r.Clone().(*record.CFRuleRecord))
	}
	return n
}

// Sheet is the record aggregate of one sheet substream. Chart and macro
// sheets are kept verbatim; worksheets are parsed into rows, cells and
// the blocks around them, and written back in canonical order.
type Sheet struct {
	bof        record.Record
	singletons map[uint16]record.Record
	extras     [4][]record.Record

	columns []*record.ColumnInfoRecord
	rows    map[int]*Row
	shared  *SharedValueManager
	drawing *DrawingAggregate

	merged    []record.CellRange
	rowBreaks *record.PageBreakRecord
	colBreaks *record.PageBreakRecord

	condFormats []*CondFormat
	dval        *record.DValRecord
	validations []*record.DVRecord

	// raw holds the whole substream of a sheet that is not a worksheet.
	raw []record.Record

	opts *Options
}

// NewSheet creates an empty worksheet with the records Excel writes for
// a new sheet.
func NewSheet(opts *Options) *Sheet {
	s := &Sheet{
		bof:        record.NewBOF(record.XL_WORKSHEET),
		singletons: map[uint16]record.Record{},
		rows:       map[int]*Row{},
		shared:     NewSharedValueManager(),
		opts:       opts,
	}
	delta := make([]byte, 8)
	binary.LittleEndian.PutUint64(delta, math.Float64bits(0.001))
	for _, r := range []record.Record{
		record.NewValueRecord(record.XL_CALCMODE, 1),
		record.NewValueRecord(record.XL_CALCCOUNT, 100),
		record.NewValueRecord(record.XL_REFMODE, 1),
		record.NewValueRecord(record.XL_ITERATION, 0),
		&record.UnknownRecord{Type: record.XL_DELTA, Data: delta},
		&record.UnknownRecord{Type: record.XL_SAVERECALC, Data: []byte{1, 0}},
		record.NewValueRecord(record.XL_PRINTHEADERS, 0),
		record.NewValueRecord(record.XL_PRINTGRIDLINES, 0),
		record.NewValueRecord(record.XL_GRIDSET, 1),
		&record.UnknownRecord{Type: record.XL_GUTS, Data: make([]byte, 8)},
		&record.DefaultRowHeightRecord{Height: 0xFF},
		record.NewValueRecord(record.XL_WSBOOL, 0x04C1),
		record.NewValueRecord(record.XL_HCENTER, 0),
		record.NewValueRecord(record.XL_VCENTER, 0),
		record.NewValueRecord(record.XL_DEFCOLWIDTH, 8),
		record.NewWindow2(),
	} {
		s.singletons[r.Sid()] = r
	}
	return s
}

// ReadSheet builds a sheet from its BOF..EOF substream. LABEL cells are
// converted to LABELSST cells through the workbook's shared string table.
func ReadSheet(records []record.Record, w *Workbook, opts *Options) (*Sheet, error) {
	bof, ok := records[0].(*record.BOFRecord)
	if !ok || bof.Type != record.XL_WORKSHEET {
		opts.tracef(1, "keeping non-worksheet substream of %d records", len(records))
		return &Sheet{bof: records[0], raw: records, opts: opts}, nil
	}
	s := &Sheet{
		bof:        bof,
		singletons: map[uint16]record.Record{},
		rows:       map[int]*Row{},
		shared:     NewSharedValueManager(),
		opts:       opts,
	}
	body := records[1:]
	if n := len(body); n > 0 && body[n-1].Sid() == record.XL_EOF {
		body = body[:n-1]
	}
	section := sheetHead
	var lastFormula *FormulaCell
	st := NewRecordStream(body, 0)
	for st.HasNext() {
		switch st.PeekSid() {
		case record.XL_MSO_DRAWING:
			d := readDrawing(st, opts)
			if s.drawing == nil {
				s.drawing = d
			} else {
				opts.warnf("second drawing region kept verbatim")
				s.extras[section] = append(s.extras[section], d.records()...)
			}
			section = sheetBody
			continue
		case record.XL_BOF:
			s.extras[section] = append(s.extras[section], st.Substream()...)
			continue
		}
		r := st.Next()
		switch rec := r.(type) {
		case *record.IndexRecord, *record.DBCellRecord:
			// Rebuilt on write.
			continue
		case *record.DimensionsRecord:
			section = sheetBody
			continue
		case *record.RowRecord:
			if row := s.rows[int(rec.RowNumber)]; row != nil {
				row.rec = rec
			} else {
				s.rows[int(rec.RowNumber)] = newRow(rec)
			}
			section = sheetBody
			continue
		case *record.ColumnInfoRecord:
			s.columns = append(s.columns, rec)
			continue
		case *record.MulRKRecord:
			for _, n := range rec.Expand() {
				s.put(n)
			}
			continue
		case *record.MulBlankRecord:
			for _, b := range rec.Expand() {
				s.put(b)
			}
			continue
		case *record.LabelRecord:
			idx := w.sst.AddText(rec.Value)
			s.put(&record.LabelSSTRecord{CellHeader: rec.CellHeader, SSTIndex: uint32(idx)})
			continue
		case *record.FormulaRecord:
			lastFormula = NewFormulaCell(rec)
			s.put(lastFormula)
			continue
		case *record.StringRecord:
			if lastFormula == nil {
				opts.warnf("STRING without a preceding FORMULA dropped")
			} else {
				lastFormula.String = rec
			}
			continue
		case *record.SharedFormulaRecord:
			row, col := s.groupAnchor(lastFormula, rec.Range)
			s.shared.AddShared(row, col, rec)
			continue
		case *record.ArrayRecord:
			row, col := s.groupAnchor(lastFormula, rec.Range)
			s.shared.addArrayAt(row, col, rec)
			continue
		case record.CellValueRecord:
			s.put(rec)
			continue
		case *record.MergeCellsRecord:
			s.merged = append(s.merged, rec.Regions...)
			section = sheetTail
			continue
		case *record.PageBreakRecord:
			if rec.Type == record.XL_HORIZONTALPAGEBREAKS {
				s.rowBreaks = rec
			} else {
				s.colBreaks = rec
			}
			continue
		case *record.CFHeaderRecord:
			cf := &CondFormat{Header: rec}
			for st.HasNext() && st.PeekSid() == record.XL_CF {
				cf.Rules = append(cf.Rules, st.Next().(*record.CFRuleRecord))
			}
			if len(cf.Rules) != int(rec.NumRules) {
				opts.warnf("CFHEADER announces %d rules, found %d", rec.NumRules, len(cf.Rules))
			}
			s.condFormats = append(s.condFormats, cf)
			section = sheetTail
			continue
		case *record.DValRecord:
			s.dval = rec
			section = sheetTail
			continue
		case *record.DVRecord:
			s.validations = append(s.validations, rec)
			continue
		}
		switch sid := r.Sid(); {
		case sid == record.XL_TABLEOP:
			row, col := s.groupAnchor(lastFormula, tableRange(r))
			s.shared.AddTable(row, col, r)
		case isSheetSingleton(sid) && s.singletons[sid] == nil:
			s.singletons[sid] = r
			if sid == record.XL_WINDOW2 {
				section = sheetView
			}
		default:
			s.extras[section] = append(s.extras[section], r)
		}
	}
	if len(s.validations) > 0 && s.dval == nil {
		opts.warnf("DV records without DVAL, adding one")
		s.dval = record.NewDVal(len(s.validations))
	}
	if s.singletons[record.XL_WINDOW2] == nil {
		opts.warnf("worksheet without WINDOW2, adding one")
		s.singletons[record.XL_WINDOW2] = record.NewWindow2()
	}
	return s, nil
}

// groupAnchor returns the cell the members of a SHRFMLA, ARRAY or
// TABLEOP group point at: the anchor of the formula just read, or the
// first cell of the group's range.
func (s *Sheet) groupAnchor(last *FormulaCell, rng record.CellRange) (row, col int) {
	if last != nil {
		if r, c, ok := memberAnchor(last.FormulaRecord); ok {
			return r, c
		}
	}
	return rng.FirstRow, rng.FirstCol
}

// tableRange decodes the range at the start of a TABLEOP record.
func tableRange(r record.Record) record.CellRange {
	u, ok := r.(*record.UnknownRecord)
	if !ok || len(u.Data) < 6 {
		return record.CellRange{}
	}
	return record.CellRange{
		FirstRow: int(binary.LittleEndian.Uint16(u.Data)),
		LastRow:  int(binary.LittleEndian.Uint16(u.Data[2:])),
		FirstCol: int(u.Data[4]),
		LastCol:  int(u.Data[5]),
	}
}

// IsWorksheet reports whether the sheet was parsed into cells.
func (s *Sheet) IsWorksheet() bool { return s.raw == nil }

// BOF returns the substream's BOF record.
func (s *Sheet) BOF() record.Record { return s.bof }

// Record returns the single-instance record sid, or nil.
func (s *Sheet) Record(sid uint16) record.Record { return s.singletons[sid] }

// SetRecord installs a single-instance record, replacing any existing one.
func (s *Sheet) SetRecord(r record.Record) { s.singletons[r.Sid()] = r }

// Window2 returns the WINDOW2 record.
func (s *Sheet) Window2() *record.Window2Record {
	w, _ := s.singletons[record.XL_WINDOW2].(*record.Window2Record)
	return w
}

// Rows and cells

// Row returns row n, or nil.
func (s *Sheet) Row(n int) *Row { return s.rows[n] }

// CreateRow returns row n, adding an empty ROW record if needed.
func (s *Sheet) CreateRow(n int) *Row {
	if row := s.rows[n]; row != nil {
		return row
	}
	row := newRow(record.NewRow(n))
	s.rows[n] = row
	return row
}

// RowNumbers returns the indices of all rows in ascending order.
func (s *Sheet) RowNumbers() []int {
	out := make([]int, 0, len(s.rows))
	for n := range s.rows {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// NumRows returns the number of ROW records.
func (s *Sheet) NumRows() int { return len(s.rows) }

// RemoveRow deletes row n and its cells. Shared formula groups with
// members in the row are converted to plain formulas first.
func (s *Sheet) RemoveRow(n int) error {
	row := s.rows[n]
	if row == nil {
		return nil
	}
	for _, col := range row.Columns() {
		if s.shared.ArrayRecord(n, col) != nil {
			return ErrPartOfArray
		}
	}
	for _, col := range row.Columns() {
		s.unlinkCell(n, col)
	}
	delete(s.rows, n)
	return nil
}

// Cell returns the cell at (row, col), or nil.
func (s *Sheet) Cell(row, col int) record.CellValueRecord {
	if r := s.rows[row]; r != nil {
		return r.cells[col]
	}
	return nil
}

// put stores c without any group bookkeeping.
func (s *Sheet) put(c record.CellValueRecord) {
	if f, ok := c.(*record.FormulaRecord); ok {
		c = NewFormulaCell(f)
	}
	row := s.rows[c.Row()]
	if row == nil {
		row = newRow(record.NewRow(c.Row()))
		s.rows[c.Row()] = row
	}
	row.cells[c.Column()] = c
}

// SetCell stores c, replacing the cell at its coordinates. Cells inside
// an array formula cannot be replaced one by one; a member of a shared
// formula group unlinks the whole group first.
func (s *Sheet) SetCell(c record.CellValueRecord) error {
	if s.shared.ArrayRecord(c.Row(), c.Column()) != nil {
		return ErrPartOfArray
	}
	s.unlinkCell(c.Row(), c.Column())
	s.put(c)
	return nil
}

// RemoveCell deletes the cell at (row, col).
func (s *Sheet) RemoveCell(row, col int) error {
	if s.shared.ArrayRecord(row, col) != nil {
		return ErrPartOfArray
	}
	s.unlinkCell(row, col)
	if r := s.rows[row]; r != nil {
		delete(r.cells, col)
	}
	return nil
}

// Cells calls fn for every cell in row-major order.
func (s *Sheet) Cells(fn func(c record.CellValueRecord)) {
	for _, n := range s.RowNumbers() {
		row := s.rows[n]
		for _, col := range row.Columns() {
			fn(row.cells[col])
		}
	}
}

// stringRefs counts LABELSST cells.
func (s *Sheet) stringRefs() int {
	n := 0
	for _, row := range s.rows {
		for _, c := range row.cells {
			if _, ok := c.(*record.LabelSSTRecord); ok {
				n++
			}
		}
	}
	return n
}

// Formula groups

// SharedValues returns the sheet's SHRFMLA/ARRAY/TABLEOP bookkeeping.
func (s *Sheet) SharedValues() *SharedValueManager { return s.shared }

// FormulaTokens returns the tokens a formula cell evaluates: its own, or
// those of the shared or array formula it belongs to, with shared
// relative references made absolute for the cell.
func (s *Sheet) FormulaTokens(f *record.FormulaRecord) ([]formula.Ptg, error) {
	if row, col, ok := memberAnchor(f); ok {
		switch g := s.shared.satellite(row, col).(type) {
		case *record.SharedFormulaRecord:
			tokens, err := formula.Decode(g.Expr.Tokens)
			if err != nil {
				return nil, err
			}
			return formula.ToAbsolute(tokens, f.Row(), f.Column()), nil
		case *record.ArrayRecord:
			return formula.Decode(g.Expr.Tokens)
		}
	}
	return formula.Decode(f.Expr.Tokens)
}

// FormulaExpr returns the expression behind a formula cell, resolving
// group membership like FormulaTokens. Extra data of array constants
// comes from the group record.
func (s *Sheet) FormulaExpr(f *record.FormulaRecord) (record.Expr, error) {
	extra := f.Expr.Extra
	if row, col, ok := memberAnchor(f); ok {
		switch g := s.shared.satellite(row, col).(type) {
		case *record.SharedFormulaRecord:
			extra = g.Expr.Extra
		case *record.ArrayRecord:
			return g.Expr, nil
		}
	}
	tokens, err := s.FormulaTokens(f)
	if err != nil {
		return record.Expr{}, err
	}
	return record.Expr{Tokens: formula.Encode(tokens), Extra: extra}, nil
}

// UnlinkSharedMember converts the shared formula group the cell at
// (row, col) belongs to into plain formulas.
func (s *Sheet) UnlinkSharedMember(row, col int) { s.unlinkCell(row, col) }

func (s *Sheet) unlinkCell(row, col int) {
	fc, ok := s.Cell(row, col).(*FormulaCell)
	if !ok {
		return
	}
	ar, ac, ok := memberAnchor(fc.FormulaRecord)
	if !ok || s.shared.SharedFormula(ar, ac) == nil {
		return
	}
	s.UnlinkShared(ar, ac)
}

// UnlinkShared replaces every member of the shared formula anchored at
// (row, col) with explicit tokens and drops the SHRFMLA record.
func (s *Sheet) UnlinkShared(row, col int) {
	shr := s.shared.SharedFormula(row, col)
	if shr == nil {
		return
	}
	tokens, err := formula.Decode(shr.Expr.Tokens)
	if err != nil {
		s.opts.warnf("shared formula at %s is unreadable: %v", record.CellName(row, col), err)
	}
	s.Cells(func(c record.CellValueRecord) {
		fc, ok := c.(*FormulaCell)
		if !ok {
			return
		}
		r, cc, ok := memberAnchor(fc.FormulaRecord)
		if !ok || r != row || cc != col {
			return
		}
		abs := formula.ToAbsolute(tokens, fc.Row(), fc.Column())
		fc.Expr = record.Expr{Tokens: formula.Encode(abs), Extra: append([]byte(nil), shr.Expr.Extra...)}
		fc.SetShared(false)
	})
	s.shared.removeShared(row, col)
}

// ArrayFormula returns the array formula covering (row, col), or nil.
func (s *Sheet) ArrayFormula(row, col int) *record.ArrayRecord { return s.shared.ArrayRecord(row, col) }

// SetArrayFormula makes rng an array formula group computing expr. Every
// cell of the range becomes a member pointing at the top left cell.
func (s *Sheet) SetArrayFormula(rng record.CellRange, expr record.Expr, xf int) (*record.ArrayRecord, error) {
	arr := &record.ArrayRecord{Range: rng, Options: record.FormulaCalcOnLoad, Expr: expr}
	if err := s.shared.AddArray(arr); err != nil {
		return nil, err
	}
	member := formula.Encode([]formula.Ptg{formula.ExpPtg(rng.FirstRow, rng.FirstCol)})
	for r := rng.FirstRow; r <= rng.LastRow; r++ {
		for c := rng.FirstCol; c <= rng.LastCol; c++ {
			s.unlinkCell(r, c)
			f := record.NewFormula(r, c, xf, record.Expr{Tokens: append([]byte(nil), member...)})
			f.Options = record.FormulaCalcOnLoad
			s.put(f)
		}
	}
	return arr, nil
}

// RemoveArrayFormula drops the array formula covering (row, col). Its
// cells become blanks that keep their formatting.
func (s *Sheet) RemoveArrayFormula(row, col int) (record.CellRange, error) {
	rng, err := s.shared.RemoveArray(row, col)
	if err != nil {
		return rng, err
	}
	for r := rng.FirstRow; r <= rng.LastRow; r++ {
		for c := rng.FirstCol; c <= rng.LastCol; c++ {
			xf := 0x0F
			if old := s.Cell(r, c); old != nil {
				xf = old.XFIndex()
			}
			s.put(&record.BlankRecord{CellHeader: record.CellHeader{R: uint16(r), C: uint16(c), XF: uint16(xf)}})
		}
	}
	return rng, nil
}

// Merged regions

// MergedRegions returns the merged cell ranges.
func (s *Sheet) MergedRegions() []record.CellRange { return s.merged }

// AddMergedRegion merges rng and returns its index.
func (s *Sheet) AddMergedRegion(rng record.CellRange) int {
	s.merged = append(s.merged, rng)
	return len(s.merged) - 1
}

// RemoveMergedRegion unmerges region i.
func (s *Sheet) RemoveMergedRegion(i int) {
	if i >= 0 && i < len(s.merged) {
		s.merged = append(s.merged[:i], s.merged[i+1:]...)
	}
}

// Page breaks

func (s *Sheet) breaks(sid uint16) **record.PageBreakRecord {
	if sid == record.XL_HORIZONTALPAGEBREAKS {
		return &s.rowBreaks
	}
	return &s.colBreaks
}

func (s *Sheet) setBreak(sid uint16, main, subTo int) {
	p := s.breaks(sid)
	if *p == nil {
		*p = &record.PageBreakRecord{Type: sid}
	}
	(*p).Add(record.PageBreak{Main: uint16(main), SubFrom: 0, SubTo: uint16(subTo)})
}

func (s *Sheet) removeBreak(sid uint16, main int) {
	p := s.breaks(sid)
	if *p == nil {
		return
	}
	(*p).Remove(main)
	if len((*p).Breaks) == 0 {
		*p = nil
	}
}

func (s *Sheet) listBreaks(sid uint16) []int {
	p := s.breaks(sid)
	if *p == nil {
		return nil
	}
	out := make([]int, len((*p).Breaks))
	for i, b := range (*p).Breaks {
		out[i] = int(b.Main)
	}
	return out
}

// SetRowBreak adds a page break after row.
func (s *Sheet) SetRowBreak(row int) { s.setBreak(record.XL_HORIZONTALPAGEBREAKS, row+1, 255) }

// RemoveRowBreak removes the page break after row.
func (s *Sheet) RemoveRowBreak(row int) { s.removeBreak(record.XL_HORIZONTALPAGEBREAKS, row+1) }

// IsRowBroken reports whether a page break follows row.
func (s *Sheet) IsRowBroken(row int) bool {
	return s.rowBreaks != nil && s.rowBreaks.Contains(row+1)
}

// RowBreaks returns the rows followed by a page break.
func (s *Sheet) RowBreaks() []int {
	out := s.listBreaks(record.XL_HORIZONTALPAGEBREAKS)
	for i := range out {
		out[i]--
	}
	return out
}

// SetColumnBreak adds a page break after col.
func (s *Sheet) SetColumnBreak(col int) { s.setBreak(record.XL_VERTICALPAGEBREAKS, col+1, 65535) }

// RemoveColumnBreak removes the page break after col.
func (s *Sheet) RemoveColumnBreak(col int) { s.removeBreak(record.XL_VERTICALPAGEBREAKS, col+1) }

// IsColumnBroken reports whether a page break follows col.
func (s *Sheet) IsColumnBroken(col int) bool {
	return s.colBreaks != nil && s.colBreaks.Contains(col+1)
}

// ColumnBreaks returns the columns followed by a page break.
func (s *Sheet) ColumnBreaks() []int {
	out := s.listBreaks(record.XL_VERTICALPAGEBREAKS)
	for i := range out {
		out[i]--
	}
	return out
}

// Columns

// DefaultColumnWidth returns DEFCOLWIDTH in characters.
func (s *Sheet) DefaultColumnWidth() int {
	if v, ok := s.singletons[record.XL_DEFCOLWIDTH].(*record.ValueRecord); ok {
		return int(v.Value)
	}
	return 8
}

// ColumnInfo returns the COLINFO span holding col, or nil.
func (s *Sheet) ColumnInfo(col int) *record.ColumnInfoRecord {
	for _, c := range s.columns {
		if c.Contains(col) {
			return c
		}
	}
	return nil
}

// ColumnWidth returns the width of col in 1/256 of a character.
func (s *Sheet) ColumnWidth(col int) int {
	if c := s.ColumnInfo(col); c != nil {
		return int(c.Width)
	}
	return s.DefaultColumnWidth() * 256
}

// SetColumnWidth sets the width of col in 1/256 of a character.
func (s *Sheet) SetColumnWidth(col, width int) {
	s.splitColumn(col).Width = uint16(width)
	s.mergeColumns()
}

// SetColumnHidden hides or shows col.
func (s *Sheet) SetColumnHidden(col int, hidden bool) {
	c := s.splitColumn(col)
	if hidden {
		c.Options |= record.ColumnHidden
	} else {
		c.Options &^= record.ColumnHidden
	}
	s.mergeColumns()
}

// splitColumn returns a COLINFO record covering only col, splitting the
// span that holds it or adding a new one.
func (s *Sheet) splitColumn(col int) *record.ColumnInfoRecord {
	for i, c := range s.columns {
		if !c.Contains(col) {
			continue
		}
		if c.FirstCol == c.LastCol {
			return c
		}
		var parts []*record.ColumnInfoRecord
		if col > int(c.FirstCol) {
			before := c.Clone().(*record.ColumnInfoRecord)
			before.LastCol = uint16(col - 1)
			parts = append(parts, before)
		}
		mid := c.Clone().(*record.ColumnInfoRecord)
		mid.FirstCol, mid.LastCol = uint16(col), uint16(col)
		parts = append(parts, mid)
		if col < int(c.LastCol) {
			after := c.Clone().(*record.ColumnInfoRecord)
			after.FirstCol = uint16(col + 1)
			parts = append(parts, after)
		}
		s.columns = append(s.columns[:i], append(parts, s.columns[i+1:]...)...)
		return mid
	}
	c := record.NewColumnInfo(col)
	c.Width = uint16(s.DefaultColumnWidth() * 256)
	i := sort.Search(len(s.columns), func(i int) bool { return int(s.columns[i].FirstCol) > col })
	s.columns = append(s.columns[:i], append([]*record.ColumnInfoRecord{c}, s.columns[i:]...)...)
	return c
}

// mergeColumns joins adjacent spans that format their columns alike.
func (s *Sheet) mergeColumns() {
	if len(s.columns) < 2 {
		return
	}
	out := s.columns[:1]
	for _, c := range s.columns[1:] {
		last := out[len(out)-1]
		if int(last.LastCol)+1 == int(c.FirstCol) && last.FormatMatches(c) {
			last.LastCol = c.LastCol
			continue
		}
		out = append(out, c)
	}
	s.columns = out
}

// Conditional formats and validations

// CondFormats returns the conditional format blocks.
func (s *Sheet) CondFormats() []*CondFormat { return s.condFormats }

// AddCondFormat applies rules to ranges.
func (s *Sheet) AddCondFormat(ranges []record.CellRange, rules ...*record.CFRuleRecord) int {
	s.condFormats = append(s.condFormats, &CondFormat{Header: record.NewCFHeader(ranges, len(rules)), Rules: rules})
	return len(s.condFormats) - 1
}

// Validations returns the DV records.
func (s *Sheet) Validations() []*record.DVRecord { return s.validations }

// AddValidation appends a data validation rule.
func (s *Sheet) AddValidation(dv *record.DVRecord) {
	if s.dval == nil {
		s.dval = record.NewDVal(0)
	}
	s.validations = append(s.validations, dv)
}

// Drawing

// Drawing returns the sheet's drawing, or nil.
func (s *Sheet) Drawing() *DrawingAggregate { return s.drawing }

// SetDrawing installs a drawing.
func (s *Sheet) SetDrawing(d *DrawingAggregate) { s.drawing = d }

// Serialization

// dimensions computes the DIMENSIONS record from the rows and cells.
func (s *Sheet) dimensions() *record.DimensionsRecord {
	d := &record.DimensionsRecord{}
	rows := s.RowNumbers()
	if len(rows) == 0 {
		return d
	}
	d.FirstRow, d.LastRowAdd1 = uint32(rows[0]), uint32(rows[len(rows)-1]+1)
	first, last := -1, 0
	for _, row := range s.rows {
		f, l := row.bounds()
		if l == 0 {
			continue
		}
		if first < 0 || f < first {
			first = f
		}
		last = max(last, l)
	}
	if first >= 0 {
		d.FirstCol, d.LastColAdd1 = uint16(first), uint16(last)
	}
	return d
}

// cellRecords returns the records of one row's cells: each FORMULA is
// followed by the group record it is the first member of, then by its
// STRING.
func (s *Sheet) cellRecords(row *Row, written map[record.Record]bool) []record.Record {
	var out []record.Record
	for _, col := range row.Columns() {
		c := row.cells[col]
		fc, ok := c.(*FormulaCell)
		if !ok {
			out = append(out, c)
			continue
		}
		out = append(out, fc.FormulaRecord)
		if r, cc, ok := memberAnchor(fc.FormulaRecord); ok {
			if g := s.shared.satellite(r, cc); g != nil && !written[g] {
				written[g] = true
				out = append(out, g)
			}
		}
		if fc.String != nil && fc.CachedType() == record.CachedString {
			out = append(out, fc.String)
		}
	}
	return out
}

func sizeOf(records []record.Record) int {
	n := 0
	for _, r := range records {
		n += record.RecordSize(r)
	}
	return n
}

// rowBlocks returns the row block records: up to 32 ROW records, their
// cells and a DBCELL.
func (s *Sheet) rowBlocks() [][]record.Record {
	rows := s.RowNumbers()
	written := map[record.Record]bool{}
	var blocks [][]record.Record
	for start := 0; start < len(rows); start += rowsPerBlock {
		nums := rows[start:min(start+rowsPerBlock, len(rows))]
		var block []record.Record
		for _, n := range nums {
			row := s.rows[n]
			f, l := row.bounds()
			row.rec.FirstCol, row.rec.LastColAdd1 = uint16(f), uint16(l)
			block = append(block, row.rec)
		}
		rowBytes := len(nums) * record.RowRecordSize
		next := rowBytes - record.RowRecordSize
		cellBytes := 0
		var offsets []uint16
		for _, n := range nums {
			cells := s.cellRecords(s.rows[n], written)
			if len(cells) == 0 {
				continue
			}
			offsets = append(offsets, uint16(next))
			next = sizeOf(cells)
			cellBytes += next
			block = append(block, cells...)
		}
		block = append(block, &record.DBCellRecord{RowOffset: uint32(rowBytes + cellBytes), CellOffsets: offsets})
		blocks = append(blocks, block)
	}
	for _, list := range [][]anchored{s.shared.shared, s.shared.arrays, s.shared.tables} {
		for _, a := range list {
			if !written[a.rec] {
				s.opts.warnf("group record at %s has no member formula and is dropped", record.CellName(a.row, a.col))
			}
		}
	}
	return blocks
}

// Records returns the sheet substream in canonical order, with INDEX and
// DBCELL offsets computed for a substream starting at streamOffset.
func (s *Sheet) Records(streamOffset int) []record.Record {
	if s.raw != nil {
		return s.raw
	}
	out := []record.Record{s.bof}
	if r := s.singletons[record.XL_UNCALCED]; r != nil {
		out = append(out, r)
	}
	blocks := s.rowBlocks()
	index := &record.IndexRecord{DBCells: make([]uint32, len(blocks))}
	if rows := s.RowNumbers(); len(rows) > 0 {
		index.FirstRow, index.LastRowAdd1 = uint32(rows[0]), uint32(rows[len(rows)-1]+1)
	}
	out = append(out, index)
	for _, sid := range sheetHeadOrder {
		if r := s.singletons[sid]; r != nil {
			out = append(out, r)
		}
		if sid == record.XL_WSBOOL {
			for _, b := range []*record.PageBreakRecord{s.rowBreaks, s.colBreaks} {
				if b != nil && len(b.Breaks) > 0 {
					out = append(out, b)
				}
			}
		}
	}
	for _, c := range s.columns {
		out = append(out, c)
	}
	out = append(out, s.extras[sheetHead]...)
	out = append(out, s.dimensions())
	for _, b := range blocks {
		out = append(out, b...)
	}
	if s.drawing != nil {
		out = append(out, s.drawing.records()...)
	}
	out = append(out, s.extras[sheetBody]...)
	for _, sid := range sheetViewOrder {
		if r := s.singletons[sid]; r != nil {
			out = append(out, r)
		}
	}
	out = append(out, s.extras[sheetView]...)
	for i := 0; i < len(s.merged); i += record.MaxMergedRegionsPerRecord {
		end := min(i+record.MaxMergedRegionsPerRecord, len(s.merged))
		out = append(out, &record.MergeCellsRecord{Regions: s.merged[i:end]})
	}
	for _, cf := range s.condFormats {
		cf.Header.NumRules = uint16(len(cf.Rules))
		out = append(out, cf.Header)
		for _, r := range cf.Rules {
			out = append(out, r)
		}
	}
	if len(s.validations) > 0 {
		s.dval.DVCount = uint32(len(s.validations))
		out = append(out, s.dval)
		for _, dv := range s.validations {
			out = append(out, dv)
		}
	}
	out = append(out, s.extras[sheetTail]...)
	out = append(out, record.NewEOF())

	pos, block := streamOffset, 0
	for _, r := range out {
		switch r.Sid() {
		case record.XL_DEFCOLWIDTH:
			index.DefColWidthPos = uint32(pos)
		case record.XL_DBCELL:
			index.DBCells[block] = uint32(pos)
			block++
		}
		pos += record.RecordSize(r)
	}
	return out
}

// VisitContainedRecords calls visit with every record Records would
// return.
func (s *Sheet) VisitContainedRecords(visit func(r record.Record), streamOffset int) {
	for _, r := range s.Records(streamOffset) {
		visit(r)
	}
}

// CloneOptions adjusts what Sheet.CloneWith carries over.
type CloneOptions struct {
	// Picture maps a picture store index of the source workbook to one of
	// dst, which already holds a reference for it. Nil keeps the index
	// and adds a reference.
	Picture func(pib int) int

	// NoDrawing leaves the drawing out of the copy.
	NoDrawing bool
}

// Clone returns a deep copy of the sheet for dst, the workbook that will
// hold it. The drawing gets a new drawing id and fresh shape ids, and the
// pictures it shows gain a reference.
func (s *Sheet) Clone(dst *Workbook) *Sheet { return s.CloneWith(dst, CloneOptions{}) }

// CloneWith is Clone with options.
func (s *Sheet) CloneWith(dst *Workbook, o CloneOptions) *Sheet {
	if s.raw != nil {
		c := &Sheet{opts: s.opts}
		for _, r := range s.raw {
			c.raw = append(c.raw, r.Clone())
		}
		c.bof = c.raw[0]
		return c
	}
	c := &Sheet{
		bof:        s.bof.Clone(),
		singletons: map[uint16]record.Record{},
		rows:       map[int]*Row{},
		shared:     s.shared.clone(),
		merged:     append([]record.CellRange(nil), s.merged...),
		opts:       s.opts,
	}
	for sid, r := range s.singletons {
		c.singletons[sid] = r.Clone()
	}
	for i, list := range s.extras {
		for _, r := range list {
			c.extras[i] = append(c.extras[i], r.Clone())
		}
	}
	for _, col := range s.columns {
		c.columns = append(c.columns, col.Clone().(*record.ColumnInfoRecord))
	}
	for n, row := range s.rows {
		c.rows[n] = row.clone()
	}
	if s.rowBreaks != nil {
		c.rowBreaks = s.rowBreaks.Clone().(*record.PageBreakRecord)
	}
	if s.colBreaks != nil {
		c.colBreaks = s.colBreaks.Clone().(*record.PageBreakRecord)
	}
	for _, cf := range s.condFormats {
		c.condFormats = append(c.condFormats, cf.clone())
	}
	if s.dval != nil {
		c.dval = s.dval.Clone().(*record.DValRecord)
	}
	for _, dv := range s.validations {
		c.validations = append(c.validations, dv.Clone().(*record.DVRecord))
	}
	if s.drawing != nil && !o.NoDrawing {
		c.drawing = s.drawing.clone()
		if !c.drawing.IsRaw() {
			dst.renumberDrawing(c.drawing, o.Picture)
		}
	}
	if w := c.Window2(); w != nil {
		w.SetSelected(false)
	}
	return c
}

// renumberDrawing gives a copied drawing its own drawing id and shape
// ids, and retains the pictures its shapes show. A non-nil picture
// rewrites the blip references instead.
func (w *Workbook) renumberDrawing(d *DrawingAggregate, picture func(pib int) int) {
	var dgID int
	w.updateDgg(func(g *escher.DggData) {
		dgID = g.MaxDrawingID() + 1
		g.DrawingSaved++
	})
	var last uint32
	shapes := 0
	d.Dg.Walk(func(r *escher.Record) bool {
		switch r.Type {
		case escher.Sp:
			spid := w.AllocateShapeID(dgID)
			escher.SetShapeID(r, spid)
			last = max(last, spid)
			shapes++
		case escher.Opt:
			pib, ok := escher.PropertyValue(r, escher.PropBlip)
			switch {
			case !ok:
			case picture != nil:
				if err := escher.SetPropertyValue(r, escher.PropBlip, uint32(picture(int(pib))), true); err != nil {
					w.opts.warnf("cannot remap picture %d: %v", pib, err)
				}
			default:
				w.retainPicture(int(pib))
			}
		}
		return true
	})
	if dg := d.Dg.Child(escher.Dg); dg != nil {
		*dg = *escher.NewDg(escher.DgData{DrawingID: dgID, NumShapes: uint32(shapes), LastSpid: last})
	}
	for _, shape := range escher.Shapes(d.Dg) {
		sp, err := escher.DecodeSp(shape.Find(escher.Sp))
		if err != nil {
			continue
		}
		if obj := d.Object(shape); obj != nil {
			obj.SetObjectID(int(sp.ShapeID % escher.ShapeIDsPerCluster))
		}
	}
}
