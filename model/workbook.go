package model

import (
	"fmt"
	"strings"

	"github.com/yamitzky/hssf-go/escher"
	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/record"
)

// Where unmanaged globals records are written back: after the header
// block, after the style tables, after the link table, before EOF.
const (
	globalsHead = iota
	globalsStyles
	globalsLinks
	globalsTail
	numGlobalsSections
)

// globalsOrder lists the single-instance globals records in write
// order. TABID is managed and slotted in by globalsRecords.
var globalsOrder = []uint16{
	record.XL_INTERFACEHDR, record.XL_MMS, record.XL_INTERFACEEND,
	record.XL_WRITEACCESS, record.XL_CODEPAGE, record.XL_DSF,
	record.XL_FNGROUPCOUNT, record.XL_WINDOWPROTECT, record.XL_PROTECT,
	record.XL_PASSWORD, record.XL_PROTECTIONREV4, record.XL_PASSWORDREV4,
	record.XL_WINDOW1, record.XL_BACKUP, record.XL_HIDEOBJ, record.XL_DATEMODE,
	record.XL_PRECISION, record.XL_REFRESHALL, record.XL_BOOKBOOL,
}

var globalsTailOrder = []uint16{record.XL_USESELFS}

var globalsAfterSheets = []uint16{record.XL_COUNTRY}

func isGlobalsSingleton(sid uint16) bool {
	for _, list := range [][]uint16{globalsOrder, globalsTailOrder, globalsAfterSheets} {
		for _, s := range list {
			if s == sid {
				return true
			}
		}
	}
	return false
}

// Workbook is the workbook globals plus the sheets.
type Workbook struct {
	bof        record.Record
	singletons map[uint16]record.Record
	extras     [numGlobalsSections][]record.Record

	tabIDs []uint16

	fonts   []*record.FontRecord
	formats []*record.FormatRecord
	xfs     []*record.ExtendedFormatRecord
	styles  []*record.StyleRecord
	palette *record.PaletteRecord

	boundSheets []*record.BoundSheetRecord
	sheets      []*Sheet

	links        *LinkTable
	drawingGroup *escher.Record
	sst          *SST

	opts *Options
}

// NewWorkbook creates the globals Excel writes for an empty workbook,
// with no sheets.
func NewWorkbook(opts *Options) *Workbook {
	w := &Workbook{
		bof:        record.NewBOF(record.XL_WORKBOOK_GLOBALS),
		singletons: map[uint16]record.Record{},
		links:      NewLinkTable(0, opts),
		sst:        NewSST(),
		opts:       opts,
	}
	for _, r := range []record.Record{
		record.NewValueRecord(record.XL_INTERFACEHDR, 0x04B0),
		&record.UnknownRecord{Type: record.XL_MMS, Data: []byte{0, 0}},
		&record.EmptyRecord{Type: record.XL_INTERFACEEND},
		record.NewWriteAccess(""),
		record.NewValueRecord(record.XL_CODEPAGE, 0x04B0),
		record.NewValueRecord(record.XL_DSF, 0),
		record.NewValueRecord(record.XL_FNGROUPCOUNT, 14),
		record.NewValueRecord(record.XL_WINDOWPROTECT, 0),
		record.NewValueRecord(record.XL_PROTECT, 0),
		record.NewValueRecord(record.XL_PASSWORD, 0),
		record.NewValueRecord(record.XL_PROTECTIONREV4, 0),
		record.NewValueRecord(record.XL_PASSWORDREV4, 0),
		record.NewWindow1(),
		record.NewValueRecord(record.XL_BACKUP, 0),
		record.NewValueRecord(record.XL_HIDEOBJ, 0),
		record.NewValueRecord(record.XL_DATEMODE, 0),
		record.NewValueRecord(record.XL_PRECISION, 1),
		record.NewValueRecord(record.XL_REFRESHALL, 0),
		record.NewValueRecord(record.XL_BOOKBOOL, 0),
		record.NewValueRecord(record.XL_USESELFS, 1),
		&record.UnknownRecord{Type: record.XL_COUNTRY, Data: []byte{1, 0, 1, 0}},
	} {
		w.singletons[r.Sid()] = r
	}
	for i := 0; i < 4; i++ {
		w.fonts = append(w.fonts, record.NewFont())
	}
	for _, idx := range []int{5, 6, 7, 8, 0x2A, 0x29, 0x2C, 0x2B} {
		w.formats = append(w.formats, &record.FormatRecord{Index: uint16(idx), Format: BuiltinFormats[idx]})
	}
	// 15 style XFs, the default cell XF, then the XFs of the built-in
	// number styles.
	for i := 0; i < 15; i++ {
		font := uint16(0)
		if i == 1 || i == 2 {
			font = 1
		} else if i == 3 || i == 4 {
			font = 2
		}
		w.xfs = append(w.xfs, record.NewStyleXF(font))
	}
	w.xfs = append(w.xfs, record.NewCellXF(0, 0))
	for _, f := range []uint16{0x2B, 0x29, 0x2C, 0x2A, 0x09} {
		xf := record.NewStyleXF(1)
		xf.FormatIndex = f
		xf.AlignmentOptions = 0x20
		xf.IndentionOptions = 0xF800
		w.xfs = append(w.xfs, xf)
	}
	for _, s := range []struct{ xf, id int }{{0x10, 3}, {0x11, 6}, {0x12, 4}, {0x13, 7}, {0x00, 0}, {0x14, 5}} {
		w.styles = append(w.styles, &record.StyleRecord{XFIndex: uint16(s.xf), BuiltIn: true, BuiltInID: uint8(s.id), OutlineLevel: 0xFF})
	}
	return w
}

// ReadWorkbook builds the model from a decoded workbook stream: the
// globals substream followed by one substream per sheet.
func ReadWorkbook(records []record.Record, opts *Options) (*Workbook, error) {
	s := NewRecordStream(records, 0)
	if s.PeekSid() != record.XL_BOF {
		return nil, InvalidError("model: workbook stream does not start with BOF")
	}
	w, err := readGlobals(s.Substream(), opts)
	if err != nil {
		return nil, err
	}
	for s.HasNext() {
		if s.PeekSid() != record.XL_BOF {
			opts.tracef(1, "skipping %s between substreams", record.Name(s.Next().Sid()))
			continue
		}
		sh, err := ReadSheet(s.Substream(), w, opts)
		if err != nil {
			return nil, fmt.Errorf("model: sheet %d: %w", len(w.sheets), err)
		}
		w.sheets = append(w.sheets, sh)
	}
	switch {
	case len(w.sheets) < len(w.boundSheets):
		return nil, InvalidError(fmt.Sprintf("model: %d BOUNDSHEET records but %d sheet substreams", len(w.boundSheets), len(w.sheets)))
	case len(w.sheets) > len(w.boundSheets):
		w.opts.warnf("dropping %d sheet substreams without BOUNDSHEET", len(w.sheets)-len(w.boundSheets))
		w.sheets = w.sheets[:len(w.boundSheets)]
	}
	w.links.setSheetCount(len(w.sheets))
	if err := w.links.validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func readGlobals(records []record.Record, opts *Options) (*Workbook, error) {
	w := &Workbook{
		bof:        records[0],
		singletons: map[uint16]record.Record{},
		links:      NewLinkTable(0, opts),
		sst:        NewSST(),
		opts:       opts,
	}
	section := globalsHead
	body := records[1:]
	if n := len(body); n > 0 && body[n-1].Sid() == record.XL_EOF {
		body = body[:n-1]
	}
	for i := 0; i < len(body); i++ {
		r := body[i]
		switch rec := r.(type) {
		case *record.FontRecord:
			w.fonts = append(w.fonts, rec)
			section = globalsStyles
			continue
		case *record.FormatRecord:
			w.formats = append(w.formats, rec)
			section = globalsStyles
			continue
		case *record.ExtendedFormatRecord:
			w.xfs = append(w.xfs, rec)
			section = globalsStyles
			continue
		case *record.StyleRecord:
			w.styles = append(w.styles, rec)
			continue
		case *record.PaletteRecord:
			w.palette = rec
			continue
		case *record.TabIDRecord:
			w.tabIDs = rec.IDs
			continue
		case *record.BoundSheetRecord:
			w.boundSheets = append(w.boundSheets, rec)
			section = globalsLinks
			continue
		case *record.SSTRecord:
			w.sst = sstFromRecord(rec)
			section = globalsTail
			continue
		case *record.DrawingGroupRecord:
			data := rec.Data
			// Large drawing groups are split over consecutive records.
			for i+1 < len(body) {
				next, ok := body[i+1].(*record.DrawingGroupRecord)
				if !ok {
					break
				}
				data = append(append([]byte(nil), data...), next.Data...)
				i++
			}
			dg, err := escher.Parse(data)
			if err != nil || len(dg) == 0 || dg[0].Type != escher.DggContainer {
				opts.warnf("unreadable drawing group kept verbatim")
				w.extras[globalsLinks] = append(w.extras[globalsLinks], rec)
				continue
			}
			w.drawingGroup = dg[0]
			continue
		}
		switch sid := r.Sid(); {
		case sid == record.XL_EXTSST:
			// Rebuilt from the SST on write.
		case sid == record.XL_FILEPASS:
			return nil, ErrEncrypted
		case w.links.add(r):
			section = globalsLinks
		case isGlobalsSingleton(sid) && w.singletons[sid] == nil:
			w.singletons[sid] = r
		default:
			w.extras[section] = append(w.extras[section], r)
		}
	}
	return w, nil
}

// Options returns the options the workbook was read with.
func (w *Workbook) Options() *Options { return w.opts }

// Links returns the link table.
func (w *Workbook) Links() *LinkTable { return w.links }

// SST returns the shared string table.
func (w *Workbook) SST() *SST { return w.sst }

// Record returns the single-instance globals record of type sid, or nil.
func (w *Workbook) Record(sid uint16) record.Record { return w.singletons[sid] }

// SetRecord installs a single-instance globals record.
func (w *Workbook) SetRecord(r record.Record) { w.singletons[r.Sid()] = r }

// DateMode returns 1 for the 1904 date system, 0 for 1900.
func (w *Workbook) DateMode() int {
	if v, ok := w.singletons[record.XL_DATEMODE].(*record.ValueRecord); ok {
		return int(v.Value)
	}
	return 0
}

// Codepage returns the CODEPAGE value, 1200 when absent.
func (w *Workbook) Codepage() int {
	if v, ok := w.singletons[record.XL_CODEPAGE].(*record.ValueRecord); ok {
		return int(v.Value)
	}
	return 1200
}

// Window1 returns the WINDOW1 record, creating it when missing.
func (w *Workbook) Window1() *record.Window1Record {
	if r, ok := w.singletons[record.XL_WINDOW1].(*record.Window1Record); ok {
		return r
	}
	r := record.NewWindow1()
	w.singletons[record.XL_WINDOW1] = r
	return r
}

// UserName returns the WRITEACCESS user name.
func (w *Workbook) UserName() string {
	if r, ok := w.singletons[record.XL_WRITEACCESS].(*record.WriteAccessRecord); ok {
		return strings.TrimRight(r.UserName, " ")
	}
	return ""
}

// SetUserName replaces the WRITEACCESS record.
func (w *Workbook) SetUserName(name string) {
	w.singletons[record.XL_WRITEACCESS] = record.NewWriteAccess(name)
}

// Fonts

// NumFonts returns the number of FONT records.
func (w *Workbook) NumFonts() int { return len(w.fonts) }

// Font returns the font with BIFF index idx. Index 4 does not exist.
func (w *Workbook) Font(idx int) *record.FontRecord {
	if idx > 4 {
		idx--
	} else if idx == 4 {
		return nil
	}
	if idx < 0 || idx >= len(w.fonts) {
		return nil
	}
	return w.fonts[idx]
}

// AddFont appends f and returns its BIFF index.
func (w *Workbook) AddFont(f *record.FontRecord) int {
	w.fonts = append(w.fonts, f)
	return fontIndex(len(w.fonts) - 1)
}

// FindFont returns the BIFF index of a font rendering like f, or -1.
func (w *Workbook) FindFont(f *record.FontRecord) int {
	for i, x := range w.fonts {
		if x.SameAs(f) {
			return fontIndex(i)
		}
	}
	return -1
}

func fontIndex(slot int) int {
	if slot >= 4 {
		return slot + 1
	}
	return slot
}

// XFs

// NumXFs returns the number of XF records.
func (w *Workbook) NumXFs() int { return len(w.xfs) }

// XF returns XF idx or nil.
func (w *Workbook) XF(idx int) *record.ExtendedFormatRecord {
	if idx < 0 || idx >= len(w.xfs) {
		return nil
	}
	return w.xfs[idx]
}

// AddXF appends x and returns its index.
func (w *Workbook) AddXF(x *record.ExtendedFormatRecord) int {
	w.xfs = append(w.xfs, x)
	return len(w.xfs) - 1
}

// FindXF returns the index of an XF equal to x, or -1.
func (w *Workbook) FindXF(x *record.ExtendedFormatRecord) int {
	for i, y := range w.xfs {
		if *y == *x {
			return i
		}
	}
	return -1
}

// Styles returns the STYLE records.
func (w *Workbook) Styles() []*record.StyleRecord { return w.styles }

// Sheets

// NumSheets returns the number of sheets.
func (w *Workbook) NumSheets() int { return len(w.sheets) }

// Sheet returns sheet i.
func (w *Workbook) Sheet(i int) *Sheet { return w.sheets[i] }

// SheetName returns the name of sheet i.
func (w *Workbook) SheetName(i int) string { return w.boundSheets[i].Name }

// SheetIndex returns the index of the sheet named name, compared case
// insensitively as Excel does, or -1.
func (w *Workbook) SheetIndex(name string) int {
	for i, b := range w.boundSheets {
		if strings.EqualFold(b.Name, name) {
			return i
		}
	}
	return -1
}

// SetSheetName renames sheet i.
func (w *Workbook) SetSheetName(i int, name string) { w.boundSheets[i].Name = name }

// SheetVisibility returns the BOUNDSHEET visibility of sheet i.
func (w *Workbook) SheetVisibility(i int) int { return int(w.boundSheets[i].Visibility) }

// SetSheetVisibility sets the BOUNDSHEET visibility of sheet i.
func (w *Workbook) SetSheetVisibility(i, v int) { w.boundSheets[i].Visibility = uint8(v) }

// AddSheet appends sh under name and returns its index.
func (w *Workbook) AddSheet(name string, sh *Sheet) int {
	w.boundSheets = append(w.boundSheets, &record.BoundSheetRecord{Name: name})
	w.sheets = append(w.sheets, sh)
	next := uint16(0)
	for _, id := range w.tabIDs {
		next = max(next, id+1)
	}
	w.tabIDs = append(w.tabIDs, next)
	w.links.setSheetCount(len(w.sheets))
	return len(w.sheets) - 1
}

// RemoveSheet deletes sheet i and fixes references to the sheets after
// it.
func (w *Workbook) RemoveSheet(i int) {
	w.boundSheets = append(w.boundSheets[:i], w.boundSheets[i+1:]...)
	w.sheets = append(w.sheets[:i], w.sheets[i+1:]...)
	if i < len(w.tabIDs) {
		w.tabIDs = append(w.tabIDs[:i], w.tabIDs[i+1:]...)
	}
	w.links.removeSheet(i)
	win := w.Window1()
	if int(win.ActiveSheet) >= len(w.sheets) && len(w.sheets) > 0 {
		win.ActiveSheet = uint16(len(w.sheets) - 1)
	}
	if int(win.FirstVisibleTab) >= len(w.sheets) {
		win.FirstVisibleTab = 0
	}
}

// MoveSheet moves sheet from to position to, shifting the sheets in
// between.
func (w *Workbook) MoveSheet(from, to int) {
	if from == to {
		return
	}
	n := len(w.sheets)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != from {
			order = append(order, i)
		}
	}
	order = append(order[:to], append([]int{from}, order[to:]...)...)
	perm := make([]int, n)
	bs := make([]*record.BoundSheetRecord, n)
	sheets := make([]*Sheet, n)
	ids := make([]uint16, n)
	for pos, old := range order {
		perm[old] = pos
		bs[pos] = w.boundSheets[old]
		sheets[pos] = w.sheets[old]
		if old < len(w.tabIDs) {
			ids[pos] = w.tabIDs[old]
		}
	}
	w.boundSheets, w.sheets = bs, sheets
	if len(w.tabIDs) == n {
		w.tabIDs = ids
	}
	w.links.moveSheets(perm)
	win := w.Window1()
	if int(win.ActiveSheet) < n {
		win.ActiveSheet = uint16(perm[win.ActiveSheet])
	}
}

// Names

// Name returns NAME i.
func (w *Workbook) Name(i int) *record.NameRecord { return w.links.Name(i) }

// NumNames returns the number of NAME records.
func (w *Workbook) NumNames() int { return w.links.NumNames() }

// Serialization

// stringRefs counts the LABELSST cells of all sheets.
func (w *Workbook) stringRefs() int {
	n := 0
	for _, sh := range w.sheets {
		n += sh.stringRefs()
	}
	return n
}

func (w *Workbook) globalsRecords() []record.Record {
	out := []record.Record{w.bof}
	emit := func(order []uint16) {
		for _, sid := range order {
			if r := w.singletons[sid]; r != nil {
				out = append(out, r)
			}
			if sid == record.XL_DSF && len(w.sheets) > 0 {
				ids := w.tabIDs
				if len(ids) != len(w.sheets) {
					ids = make([]uint16, len(w.sheets))
					for i := range ids {
						ids[i] = uint16(i)
					}
				}
				out = append(out, &record.TabIDRecord{IDs: ids})
			}
		}
	}
	emit(globalsOrder)
	out = append(out, w.extras[globalsHead]...)
	for _, f := range w.fonts {
		out = append(out, f)
	}
	for _, f := range w.formats {
		out = append(out, f)
	}
	for _, x := range w.xfs {
		out = append(out, x)
	}
	for _, s := range w.styles {
		out = append(out, s)
	}
	emit(globalsTailOrder)
	if w.palette != nil {
		out = append(out, w.palette)
	}
	out = append(out, w.extras[globalsStyles]...)
	for _, b := range w.boundSheets {
		out = append(out, b)
	}
	emit(globalsAfterSheets)
	out = append(out, w.links.records()...)
	out = append(out, w.extras[globalsLinks]...)
	if w.drawingGroup != nil {
		out = append(out, &record.DrawingGroupRecord{Data: w.drawingGroup.Bytes()})
	}
	sst := w.sst.record(w.stringRefs())
	out = append(out, sst, sst.ExtSST(0))
	out = append(out, w.extras[globalsTail]...)
	return append(out, record.NewEOF())
}

// Records returns the whole workbook stream as records: the globals with
// BOUNDSHEET positions and EXTSST offsets filled in, then every sheet
// substream serialized at its final offset.
func (w *Workbook) Records() []record.Record {
	out := w.globalsRecords()
	offset := 0
	sstOffset := 0
	for i, r := range out {
		if r.Sid() == record.XL_SST {
			sstOffset = offset
			out[i+1] = r.(*record.SSTRecord).ExtSST(sstOffset)
		}
		offset += record.RecordSize(r)
	}
	for i, sh := range w.sheets {
		w.boundSheets[i].Position = uint32(offset)
		sheetRecords := sh.Records(offset)
		for _, r := range sheetRecords {
			offset += record.RecordSize(r)
		}
		out = append(out, sheetRecords...)
	}
	return out
}

// Serialize encodes the workbook stream.
func (w *Workbook) Serialize() []byte {
	return record.Encode(w.Records())
}

// CloneSheet copies sheet i under name and returns the new index. The
// built-in names local to sheet i, such as the print area, are copied
// too and pointed at the new sheet.
func (w *Workbook) CloneSheet(i int, name string) int {
	n := w.AddSheet(name, w.sheets[i].Clone(w))
	for k, count := 0, w.links.NumNames(); k < count; k++ {
		nm := w.links.Name(k)
		if !nm.IsBuiltIn() || int(nm.SheetIndex)-1 != i {
			continue
		}
		c := nm.Clone().(*record.NameRecord)
		c.SheetIndex = uint16(n + 1)
		c.Expr.Tokens = w.retargetTokens(c.Expr.Tokens, i, n)
		w.links.AddName(c)
	}
	return n
}

// retargetTokens rewrites 3D references to sheet from so they point at
// sheet to.
func (w *Workbook) retargetTokens(rgce []byte, from, to int) []byte {
	tokens, err := formula.Decode(rgce)
	if err != nil {
		w.opts.warnf("name formula left unchanged: %v", err)
		return rgce
	}
	changed := false
	for k := range tokens {
		p := &tokens[k]
		switch formula.Base(p.ID) {
		case formula.TRef3d, formula.TArea3d, formula.TRefErr3d, formula.TAreaErr3d:
		default:
			continue
		}
		ref, err := w.links.Resolve(p.Sheet)
		if err != nil || !ref.Internal || ref.FirstSheet != from || ref.LastSheet != from {
			continue
		}
		p.Sheet = w.links.InternalSheetIndex(to, to)
		changed = true
	}
	if !changed {
		return rgce
	}
	return formula.Encode(tokens)
}
