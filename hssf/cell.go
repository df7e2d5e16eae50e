package hssf

import (
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

// CellType is the kind of value a cell holds.
type CellType int

const (
	// CellNone means no cell record exists at the address.
	CellNone CellType = iota
	CellNumeric
	CellString
	CellFormula
	CellBlank
	CellBoolean
	CellError
)

var cellTypeNames = [...]string{"none", "numeric", "string", "formula", "blank", "boolean", "error"}

func (t CellType) String() string {
	if t >= 0 && int(t) < len(cellTypeNames) {
		return cellTypeNames[t]
	}
	return fmt.Sprintf("CellType(%d)", int(t))
}

// defaultXF is the cell XF of the Normal style.
const defaultXF = 15

// Cell is a handle on one cell address of a sheet. The cell record
// itself may not exist yet; setters create it.
type Cell struct {
	sheet    *Sheet
	row, col int
}

// Sheet returns the sheet holding the cell.
func (c *Cell) Sheet() *Sheet { return c.sheet }

// Row returns the zero based row.
func (c *Cell) Row() int { return c.row }

// Column returns the zero based column.
func (c *Cell) Column() int { return c.col }

// Address returns the A1 style name of the cell.
func (c *Cell) Address() string { return record.CellName(c.row, c.col) }

func (c *Cell) record() record.CellValueRecord { return c.sheet.m.Cell(c.row, c.col) }

func (c *Cell) workbook() *model.Workbook { return c.sheet.wb.m }

// Type returns the kind of record at the address.
func (c *Cell) Type() CellType {
	switch r := c.record().(type) {
	case *record.NumberRecord, *record.RKRecord:
		return CellNumeric
	case *record.LabelSSTRecord:
		return CellString
	case *model.FormulaCell:
		return CellFormula
	case *record.BlankRecord:
		return CellBlank
	case *record.BoolErrRecord:
		if r.IsError {
			return CellError
		}
		return CellBoolean
	}
	return CellNone
}

// CachedType returns the kind of the cached result of a formula cell,
// or Type for other cells.
func (c *Cell) CachedType() CellType {
	f, ok := c.record().(*model.FormulaCell)
	if !ok {
		return c.Type()
	}
	switch f.CachedType() {
	case record.CachedString, record.CachedEmptyString:
		return CellString
	case record.CachedBool:
		return CellBoolean
	case record.CachedError:
		return CellError
	}
	return CellNumeric
}

// Number returns the numeric value, or the cached result of a numeric
// formula. Other cells give 0.
func (c *Cell) Number() float64 {
	switch r := c.record().(type) {
	case *record.NumberRecord:
		return r.Value
	case *record.RKRecord:
		return r.Value()
	case *model.FormulaCell:
		if r.CachedType() == record.CachedNumber {
			return r.CachedNumber()
		}
	}
	return 0
}

// StringValue returns the text of a string cell, or the cached result of
// a string formula.
func (c *Cell) StringValue() string {
	switch r := c.record().(type) {
	case *record.LabelSSTRecord:
		if s := c.workbook().SST().String(int(r.SSTIndex)); s != nil {
			return s.Text
		}
	case *model.FormulaCell:
		if r.String != nil {
			return r.String.Value
		}
	}
	return ""
}

// RichText returns the text and font runs of a string cell, or nil.
func (c *Cell) RichText() *RichText {
	r, ok := c.record().(*record.LabelSSTRecord)
	if !ok {
		return nil
	}
	s := c.workbook().SST().String(int(r.SSTIndex))
	if s == nil {
		return nil
	}
	rt := &RichText{Text: s.Text}
	for _, run := range s.Runs {
		rt.Runs = append(rt.Runs, FontRun{Start: int(run.Char), Font: int(run.Font)})
	}
	return rt
}

// Bool returns the value of a boolean cell or boolean formula result.
func (c *Cell) Bool() bool {
	switch r := c.record().(type) {
	case *record.BoolErrRecord:
		return r.BoolValue()
	case *model.FormulaCell:
		return r.CachedType() == record.CachedBool && r.CachedBool()
	}
	return false
}

// ErrorCode returns the code of an error cell or error formula result.
func (c *Cell) ErrorCode() uint8 {
	switch r := c.record().(type) {
	case *record.BoolErrRecord:
		if r.IsError {
			return r.Value
		}
	case *model.FormulaCell:
		if r.CachedType() == record.CachedError {
			return r.CachedError()
		}
	}
	return 0
}

// Value returns the value as float64, string, bool or, for errors, the
// error text such as "#DIV/0!". Formula cells give their cached result;
// blank and missing cells give nil.
func (c *Cell) Value() interface{} {
	switch c.CachedType() {
	case CellNumeric:
		return c.Number()
	case CellString:
		return c.StringValue()
	case CellBoolean:
		return c.Bool()
	case CellError:
		return record.ErrorTextFromCode[c.ErrorCode()]
	}
	return nil
}

// Formula returns the formula text of a formula cell, without the
// leading '='.
func (c *Cell) Formula() (string, error) {
	f, ok := c.record().(*model.FormulaCell)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFormula, c.Address())
	}
	expr, err := c.sheet.m.FormulaExpr(f.FormulaRecord)
	if err == nil {
		var text string
		if text, err = c.workbook().RenderExpr(expr, c.sheet.Index(), c.row, c.col); err == nil {
			return text, nil
		}
	}
	return "", fmt.Errorf("hssf: %s: %w", c.Address(), err)
}

// Setters

func (c *Cell) check() error {
	if c.row < 0 || c.row >= MaxRows || c.col < 0 || c.col >= MaxColumns {
		return fmt.Errorf("%w: (%d, %d)", ErrCellRange, c.row, c.col)
	}
	if !c.sheet.m.IsWorksheet() {
		return ErrNotWorksheet
	}
	if c.sheet.m.ArrayFormula(c.row, c.col) != nil {
		return fmt.Errorf("hssf: %s: %w", c.Address(), ErrPartOfArray)
	}
	return nil
}

// xf returns the XF a value written to the cell gets: the cell's own,
// else the row's or column's default.
func (c *Cell) xf() int {
	if r := c.record(); r != nil {
		return r.XFIndex()
	}
	if row := c.sheet.m.Row(c.row); row != nil && row.Record().Options&record.RowFormatted != 0 {
		return int(row.Record().XF & 0x0FFF)
	}
	if ci := c.sheet.m.ColumnInfo(c.col); ci != nil && ci.XF != 0 {
		return int(ci.XF)
	}
	return defaultXF
}

func (c *Cell) header() record.CellHeader {
	return record.CellHeader{R: uint16(c.row), C: uint16(c.col), XF: uint16(c.xf())}
}

func (c *Cell) set(r record.CellValueRecord) error {
	if err := c.sheet.m.SetCell(r); err != nil {
		return fmt.Errorf("hssf: %s: %w", c.Address(), err)
	}
	return nil
}

// SetNumber stores a number.
func (c *Cell) SetNumber(v float64) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.set(&record.NumberRecord{CellHeader: c.header(), Value: v})
}

// SetString stores text through the shared string table.
func (c *Cell) SetString(s string) error {
	if err := c.check(); err != nil {
		return err
	}
	idx := c.workbook().SST().AddText(s)
	return c.set(&record.LabelSSTRecord{CellHeader: c.header(), SSTIndex: uint32(idx)})
}

// SetRichText stores text with font runs. Run fonts are font indices of
// the workbook.
func (c *Cell) SetRichText(rt *RichText) error {
	if err := c.check(); err != nil {
		return err
	}
	us := &record.UnicodeString{Text: rt.Text}
	for _, run := range rt.normalized() {
		us.Runs = append(us.Runs, record.FormatRun{Char: uint16(run.Start), Font: uint16(run.Font)})
	}
	idx := c.workbook().SST().Add(us)
	return c.set(&record.LabelSSTRecord{CellHeader: c.header(), SSTIndex: uint32(idx)})
}

// SetBool stores a boolean.
func (c *Cell) SetBool(v bool) error {
	if err := c.check(); err != nil {
		return err
	}
	r := &record.BoolErrRecord{CellHeader: c.header()}
	if v {
		r.Value = 1
	}
	return c.set(r)
}

// SetError stores an error value such as 0x07 (#DIV/0!).
func (c *Cell) SetError(code uint8) error {
	if _, ok := record.ErrorTextFromCode[code]; !ok {
		return InvalidError(fmt.Sprintf("hssf: unknown error code 0x%02X", code))
	}
	if err := c.check(); err != nil {
		return err
	}
	return c.set(&record.BoolErrRecord{CellHeader: c.header(), Value: code, IsError: true})
}

// SetBlank clears the value and keeps the style.
func (c *Cell) SetBlank() error {
	if err := c.check(); err != nil {
		return err
	}
	return c.set(&record.BlankRecord{CellHeader: c.header()})
}

// SetFormula compiles text, with or without a leading '=', and stores it
// with a cached result of 0 and the recalculate-on-load flag.
func (c *Cell) SetFormula(text string) error {
	if err := c.check(); err != nil {
		return err
	}
	tokens, err := c.workbook().ParseFormula(text, c.sheet.Index(), formula.TypeCell)
	if err != nil {
		return fmt.Errorf("hssf: %s: %w", c.Address(), err)
	}
	f := record.NewFormula(c.row, c.col, c.xf(), record.Expr{Tokens: formula.Encode(tokens)})
	f.Options |= record.FormulaCalcOnLoad
	return c.set(model.NewFormulaCell(f))
}

// SetDate stores t as a date serial number in the workbook's date
// system. Give the cell a date format to display it as a date.
func (c *Cell) SetDate(t time.Time) error {
	v, err := DateToExcel(t, c.sheet.wb.Is1904())
	if err != nil {
		return err
	}
	return c.SetNumber(v)
}

// Date interprets the numeric value as a date.
func (c *Cell) Date() (time.Time, error) {
	if c.CachedType() != CellNumeric {
		return time.Time{}, InvalidError("hssf: " + c.Address() + " is not numeric")
	}
	return DateFromExcel(c.Number(), c.sheet.wb.Is1904())
}

// IsDateFormatted reports whether the cell is numeric and its format
// displays a date or time.
func (c *Cell) IsDateFormatted() bool {
	if c.CachedType() != CellNumeric {
		return false
	}
	x := c.workbook().XF(c.xf())
	if x == nil {
		return false
	}
	format, _ := c.workbook().FormatString(int(x.FormatIndex))
	return IsDateFormat(int(x.FormatIndex), format)
}

// Remove deletes the cell record.
func (c *Cell) Remove() error {
	if err := c.sheet.m.RemoveCell(c.row, c.col); err != nil {
		return fmt.Errorf("hssf: %s: %w", c.Address(), err)
	}
	return nil
}

// Style returns the cell's style.
func (c *Cell) Style() *CellStyle { return c.sheet.wb.CellStyleAt(c.xf()) }

// SetStyle applies cs, creating a blank cell when none exists.
func (c *Cell) SetStyle(cs *CellStyle) error {
	if cs.wb != c.sheet.wb {
		return ErrForeignStyle
	}
	if r := c.record(); r != nil {
		r.SetXFIndex(cs.index)
		return nil
	}
	if c.row < 0 || c.row >= MaxRows || c.col < 0 || c.col >= MaxColumns {
		return fmt.Errorf("%w: (%d, %d)", ErrCellRange, c.row, c.col)
	}
	h := c.header()
	h.XF = uint16(cs.index)
	return c.set(&record.BlankRecord{CellHeader: h})
}

// IsPartOfArrayFormulaGroup reports whether the cell lies inside an
// array formula.
func (c *Cell) IsPartOfArrayFormulaGroup() bool {
	return c.sheet.m.ArrayFormula(c.row, c.col) != nil
}

// ArrayFormulaRange returns the range of the array formula holding the
// cell.
func (c *Cell) ArrayFormulaRange() (CellRange, error) {
	a := c.sheet.m.ArrayFormula(c.row, c.col)
	if a == nil {
		return CellRange{}, fmt.Errorf("hssf: %s: %w", c.Address(), ErrNotArray)
	}
	return a.Range, nil
}

// RichText is text with font runs.
type RichText struct {
	Text string

	// Runs are ordered by Start, an offset in UTF-16 code units.
	Runs []FontRun
}

// FontRun switches to workbook font Font from UTF-16 offset Start on.
type FontRun struct {
	Start int
	Font  int
}

// NewRichText returns text without runs.
func NewRichText(text string) *RichText { return &RichText{Text: text} }

// Len returns the length of the text in UTF-16 code units.
func (rt *RichText) Len() int { return len(utf16.Encode([]rune(rt.Text))) }

// ApplyFont formats code units start..end-1 with font. The text after
// end keeps the font it had.
func (rt *RichText) ApplyFont(start, end int, font *Font) error {
	n := rt.Len()
	if start < 0 || end > n || start >= end {
		return InvalidError(fmt.Sprintf("hssf: font run %d..%d outside text of length %d", start, end, n))
	}
	fonts := make([]int, n)
	cur := 0
	k := 0
	for i := range fonts {
		for k < len(rt.Runs) && rt.Runs[k].Start <= i {
			cur = rt.Runs[k].Font
			k++
		}
		fonts[i] = cur
	}
	for i := start; i < end; i++ {
		fonts[i] = font.index
	}
	rt.Runs = rt.Runs[:0]
	for i, f := range fonts {
		if i == 0 || f != fonts[i-1] {
			rt.Runs = append(rt.Runs, FontRun{Start: i, Font: f})
		}
	}
	return nil
}

// normalized drops runs past the end of the text and runs repeating the
// font before them.
func (rt *RichText) normalized() []FontRun {
	n := rt.Len()
	var out []FontRun
	for _, r := range rt.Runs {
		if r.Start >= n {
			break
		}
		if len(out) > 0 && out[len(out)-1].Font == r.Font {
			continue
		}
		out = append(out, r)
	}
	return out
}
