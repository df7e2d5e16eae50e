package model

import (
	"sort"

	"github.com/yamitzky/hssf-go/record"
)

// FormulaCell is a FORMULA record and the STRING record holding its
// cached text result, if any.
type FormulaCell struct {
	*record.FormulaRecord

	// String is the cached string result; nil unless the cached result
	// type is a string.
	String *record.StringRecord
}

// NewFormulaCell wraps f.
func NewFormulaCell(f *record.FormulaRecord) *FormulaCell { return &FormulaCell{FormulaRecord: f} }

func (c *FormulaCell) Clone() record.Record {
	n := &FormulaCell{FormulaRecord: c.FormulaRecord.Clone().(*record.FormulaRecord)}
	if c.String != nil {
		n.String = c.String.Clone().(*record.StringRecord)
	}
	return n
}

// SetCachedString stores text as the cached result.
func (c *FormulaCell) SetCachedString(text string) {
	if text == "" {
		c.FormulaRecord.SetCachedEmptyString()
		c.String = nil
		return
	}
	c.FormulaRecord.SetCachedString()
	c.String = &record.StringRecord{Value: text}
}

// Row is a ROW record and the cells in it.
type Row struct {
	rec   *record.RowRecord
	cells map[int]record.CellValueRecord
}

func newRow(rec *record.RowRecord) *Row {
	return &Row{rec: rec, cells: map[int]record.CellValueRecord{}}
}

// Record returns the ROW record.
func (r *Row) Record() *record.RowRecord { return r.rec }

// Number returns the zero based row index.
func (r *Row) Number() int { return int(r.rec.RowNumber) }

// Cell returns the cell in column col, or nil.
func (r *Row) Cell(col int) record.CellValueRecord { return r.cells[col] }

// NumCells returns the number of cells in the row.
func (r *Row) NumCells() int { return len(r.cells) }

// Columns returns the column indices of the row's cells in ascending
// order.
func (r *Row) Columns() []int {
	cols := make([]int, 0, len(r.cells))
	for c := range r.cells {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	return cols
}

// bounds returns the first column and one past the last column with a
// cell.
func (r *Row) bounds() (first, lastAdd1 int) {
	cols := r.Columns()
	if len(cols) == 0 {
		return 0, 0
	}
	return cols[0], cols[len(cols)-1] + 1
}

func (r *Row) clone() *Row {
	c := newRow(r.rec.Clone().(*record.RowRecord))
	for col, cell := range r.cells {
		c.cells[col] = cell.Clone().(record.CellValueRecord)
	}
	return c
}
