package hssf

import (
	"fmt"

	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

// CellRange is an inclusive block of cells, zero based.
type CellRange = record.CellRange

// ParseRange parses "A1:C3" or "B2".
func ParseRange(s string) (CellRange, error) { return record.ParseCellRange(s) }

// Limits of a BIFF8 sheet.
const (
	MaxRows    = 65536
	MaxColumns = 256
)

// Sheet is a handle on one sheet of a workbook.
type Sheet struct {
	wb *Workbook
	m  *model.Sheet
}

// Workbook returns the workbook holding the sheet.
func (s *Sheet) Workbook() *Workbook { return s.wb }

// Index returns the position of the sheet, or -1 once it is removed.
func (s *Sheet) Index() int {
	for i := 0; i < s.wb.m.NumSheets(); i++ {
		if s.wb.m.Sheet(i) == s.m {
			return i
		}
	}
	return -1
}

// Name returns the sheet name.
func (s *Sheet) Name() string {
	if i := s.Index(); i >= 0 {
		return s.wb.m.SheetName(i)
	}
	return ""
}

// IsWorksheet reports whether the sheet holds cells. Chart and macro
// sheets are kept verbatim and offer no cell access.
func (s *Sheet) IsWorksheet() bool { return s.m.IsWorksheet() }

// Cell returns a handle on the cell at (row, col), present or not.
func (s *Sheet) Cell(row, col int) *Cell { return &Cell{sheet: s, row: row, col: col} }

// CellAt returns a handle on the cell named ref, such as "B3".
func (s *Sheet) CellAt(ref string) (*Cell, error) {
	r, err := record.ParseCellRef(ref)
	if err != nil {
		return nil, err
	}
	return s.Cell(r.Row, r.Col), nil
}

// RowNumbers returns the rows holding a ROW record, ascending.
func (s *Sheet) RowNumbers() []int { return s.m.RowNumbers() }

// Cells returns the cells present in row-major order.
func (s *Sheet) Cells() []*Cell {
	var out []*Cell
	s.m.Cells(func(c record.CellValueRecord) {
		out = append(out, s.Cell(c.Row(), c.Column()))
	})
	return out
}

// RemoveRow deletes row n and its cells.
func (s *Sheet) RemoveRow(n int) error { return s.m.RemoveRow(n) }

// RowHeight returns the height of row n in twips, or the default height
// when the row is not present.
func (s *Sheet) RowHeight(n int) int {
	if r := s.m.Row(n); r != nil {
		return int(r.Record().Height & 0x7FFF)
	}
	if d, ok := s.m.Record(record.XL_DEFAULTROWHEIGHT).(*record.DefaultRowHeightRecord); ok {
		return int(d.Height)
	}
	return 0xFF
}

// SetRowHeight sets the height of row n in twips.
func (s *Sheet) SetRowHeight(n, twips int) error {
	if n < 0 || n >= MaxRows {
		return fmt.Errorf("%w: row %d", ErrCellRange, n)
	}
	if twips < 0 || twips > 0x7FFF {
		return InvalidError(fmt.Sprintf("hssf: row height %d out of range", twips))
	}
	r := s.m.CreateRow(n).Record()
	r.Height = uint16(twips)
	r.Options |= record.RowBadFontHeight
	return nil
}

// Columns

// ColumnWidth returns the width of col in 1/256 of a character.
func (s *Sheet) ColumnWidth(col int) int { return s.m.ColumnWidth(col) }

// SetColumnWidth sets the width of col in 1/256 of a character.
func (s *Sheet) SetColumnWidth(col, width int) error {
	if col < 0 || col >= MaxColumns {
		return fmt.Errorf("%w: column %d", ErrCellRange, col)
	}
	if width < 0 || width > 255*256 {
		return InvalidError(fmt.Sprintf("hssf: column width %d out of range", width))
	}
	s.m.SetColumnWidth(col, width)
	return nil
}

// IsColumnHidden reports whether col is hidden.
func (s *Sheet) IsColumnHidden(col int) bool {
	c := s.m.ColumnInfo(col)
	return c != nil && c.Options&record.ColumnHidden != 0
}

// SetColumnHidden hides or shows col.
func (s *Sheet) SetColumnHidden(col int, hidden bool) { s.m.SetColumnHidden(col, hidden) }

// Merged regions

// MergedRegions returns the merged ranges.
func (s *Sheet) MergedRegions() []CellRange {
	return append([]CellRange(nil), s.m.MergedRegions()...)
}

// AddMergedRegion merges rng and returns its index.
func (s *Sheet) AddMergedRegion(rng CellRange) (int, error) {
	if rng.FirstRow > rng.LastRow || rng.FirstCol > rng.LastCol {
		return 0, InvalidError("hssf: merged region " + rng.String() + " is reversed")
	}
	if rng.NumCells() < 2 {
		return 0, InvalidError("hssf: merged region " + rng.String() + " must span more than one cell")
	}
	for _, r := range s.m.MergedRegions() {
		if r.Intersects(rng) {
			return 0, InvalidError(fmt.Sprintf("hssf: merged region %s overlaps %s", rng, r))
		}
	}
	return s.m.AddMergedRegion(rng), nil
}

// RemoveMergedRegion drops merged region i.
func (s *Sheet) RemoveMergedRegion(i int) {
	if i >= 0 && i < len(s.m.MergedRegions()) {
		s.m.RemoveMergedRegion(i)
	}
}

// Page breaks

// SetRowBreak puts a page break below row.
func (s *Sheet) SetRowBreak(row int) { s.m.SetRowBreak(row) }

// RemoveRowBreak removes the page break below row.
func (s *Sheet) RemoveRowBreak(row int) { s.m.RemoveRowBreak(row) }

// IsRowBroken reports whether a page break follows row.
func (s *Sheet) IsRowBroken(row int) bool { return s.m.IsRowBroken(row) }

// RowBreaks returns the rows followed by a page break.
func (s *Sheet) RowBreaks() []int { return s.m.RowBreaks() }

// SetColumnBreak puts a page break right of col.
func (s *Sheet) SetColumnBreak(col int) { s.m.SetColumnBreak(col) }

// RemoveColumnBreak removes the page break right of col.
func (s *Sheet) RemoveColumnBreak(col int) { s.m.RemoveColumnBreak(col) }

// IsColumnBroken reports whether a page break follows col.
func (s *Sheet) IsColumnBroken(col int) bool { return s.m.IsColumnBroken(col) }

// ColumnBreaks returns the columns followed by a page break.
func (s *Sheet) ColumnBreaks() []int { return s.m.ColumnBreaks() }

// Array formulas

// SetArrayFormula enters text as an array formula over rng and returns
// its cells. Every cell of rng is replaced; rng may not overlap another
// array formula.
func (s *Sheet) SetArrayFormula(text string, rng CellRange) ([]*Cell, error) {
	if rng.FirstRow > rng.LastRow || rng.FirstCol > rng.LastCol || rng.LastRow >= MaxRows || rng.LastCol >= MaxColumns {
		return nil, fmt.Errorf("%w: %s", ErrCellRange, rng)
	}
	tokens, err := s.wb.m.ParseFormula(text, s.Index(), formula.TypeArray)
	if err != nil {
		return nil, err
	}
	xf := defaultXF
	if c := s.m.Cell(rng.FirstRow, rng.FirstCol); c != nil {
		xf = c.XFIndex()
	}
	if _, err := s.m.SetArrayFormula(rng, record.Expr{Tokens: formula.Encode(tokens)}, xf); err != nil {
		return nil, fmt.Errorf("hssf: %s: %w", rng, err)
	}
	return s.cellsIn(rng), nil
}

// RemoveArrayFormula removes the array formula c belongs to. Its cells
// become blanks that keep their style.
func (s *Sheet) RemoveArrayFormula(c *Cell) ([]*Cell, error) {
	if c.sheet.m != s.m {
		return nil, InvalidError("hssf: cell belongs to another sheet")
	}
	rng, err := s.m.RemoveArrayFormula(c.row, c.col)
	if err != nil {
		return nil, fmt.Errorf("hssf: %s: %w", c.Address(), err)
	}
	return s.cellsIn(rng), nil
}

func (s *Sheet) cellsIn(rng CellRange) []*Cell {
	out := make([]*Cell, 0, rng.NumCells())
	for r := rng.FirstRow; r <= rng.LastRow; r++ {
		for c := rng.FirstCol; c <= rng.LastCol; c++ {
			out = append(out, s.Cell(r, c))
		}
	}
	return out
}

// Selection

// IsSelected reports whether the sheet tab is selected.
func (s *Sheet) IsSelected() bool {
	w := s.m.Window2()
	return w != nil && w.Options&record.Window2Selected != 0
}

// SetSelected selects or deselects the sheet tab.
func (s *Sheet) SetSelected(v bool) {
	if w := s.m.Window2(); w != nil {
		w.SetSelected(v)
	}
}
