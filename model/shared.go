package model

import (
	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/record"
)

// anchored is a satellite record of a formula group with the cell its
// members point at through tExp or tTbl.
type anchored struct {
	row, col int
	rec      record.Record
}

// SharedValueManager tracks the SHRFMLA, ARRAY and TABLEOP records of a
// sheet, each keyed by the anchor cell its member formulas point at.
type SharedValueManager struct {
	shared []anchored
	arrays []anchored
	tables []anchored
}

// NewSharedValueManager creates an empty manager.
func NewSharedValueManager() *SharedValueManager { return &SharedValueManager{} }

// AddShared registers a shared formula anchored at (row, col).
func (m *SharedValueManager) AddShared(row, col int, rec *record.SharedFormulaRecord) {
	m.shared = append(m.shared, anchored{row, col, rec})
}

// AddTable registers a TABLEOP record anchored at (row, col).
func (m *SharedValueManager) AddTable(row, col int, rec record.Record) {
	m.tables = append(m.tables, anchored{row, col, rec})
}

// AddArray registers an array formula anchored at the top left cell of
// its range. Ranges of two arrays may not intersect.
func (m *SharedValueManager) AddArray(rec *record.ArrayRecord) error {
	for _, a := range m.arrays {
		if a.rec.(*record.ArrayRecord).Range.Intersects(rec.Range) {
			return ErrArrayOverlap
		}
	}
	m.arrays = append(m.arrays, anchored{rec.Range.FirstRow, rec.Range.FirstCol, rec})
	return nil
}

// addArrayAt registers an ARRAY read from a file, keyed by the anchor
// its members use.
func (m *SharedValueManager) addArrayAt(row, col int, rec *record.ArrayRecord) {
	m.arrays = append(m.arrays, anchored{row, col, rec})
}

// ArrayRecord returns the array formula covering (row, col), or nil.
func (m *SharedValueManager) ArrayRecord(row, col int) *record.ArrayRecord {
	for _, a := range m.arrays {
		if r := a.rec.(*record.ArrayRecord); r.Range.Contains(row, col) {
			return r
		}
	}
	return nil
}

// SharedFormula returns the shared formula anchored at (row, col), or
// nil.
func (m *SharedValueManager) SharedFormula(row, col int) *record.SharedFormulaRecord {
	for _, s := range m.shared {
		if s.row == row && s.col == col {
			return s.rec.(*record.SharedFormulaRecord)
		}
	}
	return nil
}

// RemoveArray drops the array formula covering (row, col) and returns
// its range.
func (m *SharedValueManager) RemoveArray(row, col int) (record.CellRange, error) {
	for i, a := range m.arrays {
		if r := a.rec.(*record.ArrayRecord); r.Range.Contains(row, col) {
			m.arrays = append(m.arrays[:i], m.arrays[i+1:]...)
			return r.Range, nil
		}
	}
	return record.CellRange{}, ErrNotArray
}

// removeShared drops the shared formula anchored at (row, col).
func (m *SharedValueManager) removeShared(row, col int) {
	for i, s := range m.shared {
		if s.row == row && s.col == col {
			m.shared = append(m.shared[:i], m.shared[i+1:]...)
			return
		}
	}
}

// satellite returns the group record anchored at (row, col): an array
// first, then a shared formula, then a table.
func (m *SharedValueManager) satellite(row, col int) record.Record {
	for _, list := range [][]anchored{m.arrays, m.shared, m.tables} {
		for _, a := range list {
			if a.row == row && a.col == col {
				return a.rec
			}
		}
	}
	return nil
}

// Arrays returns the ranges of all array formulas.
func (m *SharedValueManager) Arrays() []record.CellRange {
	out := make([]record.CellRange, len(m.arrays))
	for i, a := range m.arrays {
		out[i] = a.rec.(*record.ArrayRecord).Range
	}
	return out
}

// NumShared returns the number of shared formula groups.
func (m *SharedValueManager) NumShared() int { return len(m.shared) }

func (m *SharedValueManager) clone() *SharedValueManager {
	c := &SharedValueManager{}
	for _, list := range []struct {
		src []anchored
		dst *[]anchored
	}{{m.shared, &c.shared}, {m.arrays, &c.arrays}, {m.tables, &c.tables}} {
		for _, a := range list.src {
			*list.dst = append(*list.dst, anchored{a.row, a.col, a.rec.Clone()})
		}
	}
	return c
}

// memberAnchor returns the anchor a formula cell points at when it is a
// member of a group.
func memberAnchor(f *record.FormulaRecord) (row, col int, ok bool) {
	rgce := f.Expr.Tokens
	if len(rgce) != 5 || (rgce[0] != formula.TExp && rgce[0] != formula.TTbl) {
		return 0, 0, false
	}
	return int(rgce[1]) | int(rgce[2])<<8, int(rgce[3]) | int(rgce[4])<<8, true
}
