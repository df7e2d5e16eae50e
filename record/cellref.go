package record

import (
	"fmt"
	"strings"
)

// CellRange is an inclusive rectangle of cells, zero based.
type CellRange struct {
	FirstRow, LastRow int
	FirstCol, LastCol int
}

// Contains reports whether (row, col) lies inside the range.
func (c CellRange) Contains(row, col int) bool {
	return row >= c.FirstRow && row <= c.LastRow && col >= c.FirstCol && col <= c.LastCol
}

// Intersects reports whether two ranges share a cell.
func (c CellRange) Intersects(o CellRange) bool {
	return c.FirstRow <= o.LastRow && o.FirstRow <= c.LastRow &&
		c.FirstCol <= o.LastCol && o.FirstCol <= c.LastCol
}

// NumCells returns the number of cells covered.
func (c CellRange) NumCells() int {
	return (c.LastRow - c.FirstRow + 1) * (c.LastCol - c.FirstCol + 1)
}

// String formats the range in A1 notation.
func (c CellRange) String() string {
	first := CellName(c.FirstRow, c.FirstCol)
	if c.FirstRow == c.LastRow && c.FirstCol == c.LastCol {
		return first
	}
	return first + ":" + CellName(c.LastRow, c.LastCol)
}

// ColumnName converts a zero-based column index to letters, e.g. 0 -> A
// and 27 -> AB.
func ColumnName(colx int) string {
	name := ""
	for {
		quot, rem := colx/26, colx%26
		name = string(rune('A'+rem)) + name
		if quot == 0 {
			return name
		}
		colx = quot - 1
	}
}

// CellName converts zero-based coordinates to A1 notation.
func CellName(rowx, colx int) string {
	return fmt.Sprintf("%s%d", ColumnName(colx), rowx+1)
}

// CellRef is a parsed A1 reference.
type CellRef struct {
	Row, Col       int
	AbsRow, AbsCol bool
}

// ParseCellRef parses an A1 style reference such as "B2" or "$C$10".
func ParseCellRef(s string) (CellRef, error) {
	var ref CellRef
	i := 0
	if i < len(s) && s[i] == '$' {
		ref.AbsCol = true
		i++
	}
	start := i
	col := 0
	for i < len(s) && isLetter(s[i]) {
		col = col*26 + int(upper(s[i])-'A'+1)
		i++
	}
	if i == start || i-start > 3 {
		return ref, fmt.Errorf("record: bad cell reference %q", s)
	}
	if i < len(s) && s[i] == '$' {
		ref.AbsRow = true
		i++
	}
	start = i
	row := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		row = row*10 + int(s[i]-'0')
		i++
	}
	if i == start || i != len(s) || row == 0 {
		return ref, fmt.Errorf("record: bad cell reference %q", s)
	}
	ref.Row, ref.Col = row-1, col-1
	return ref, nil
}

// ParseCellRange parses "A1:B2" or a single cell reference.
func ParseCellRange(s string) (CellRange, error) {
	parts := strings.SplitN(s, ":", 2)
	a, err := ParseCellRef(parts[0])
	if err != nil {
		return CellRange{}, err
	}
	b := a
	if len(parts) == 2 {
		if b, err = ParseCellRef(parts[1]); err != nil {
			return CellRange{}, err
		}
	}
	c := CellRange{FirstRow: a.Row, LastRow: b.Row, FirstCol: a.Col, LastCol: b.Col}
	if c.FirstRow > c.LastRow {
		c.FirstRow, c.LastRow = c.LastRow, c.FirstRow
	}
	if c.FirstCol > c.LastCol {
		c.FirstCol, c.LastCol = c.LastCol, c.FirstCol
	}
	return c, nil
}

func isLetter(b byte) bool { return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') }

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// writeRange8 writes the (rows 16 bit, cols 8 bit) range form used by
// ARRAY and SHRFMLA.
func writeRange8(out *Output, c CellRange) {
	out.WriteShort(c.FirstRow)
	out.WriteShort(c.LastRow)
	out.WriteUByte(c.FirstCol)
	out.WriteUByte(c.LastCol)
}

func readRange8(in *InputStream) CellRange {
	var c CellRange
	c.FirstRow = int(in.ReadUShort())
	c.LastRow = int(in.ReadUShort())
	c.FirstCol = int(in.ReadUByte())
	c.LastCol = int(in.ReadUByte())
	return c
}

// writeRange writes the all 16 bit range form used by MERGECELLS, DV and
// CF.
func writeRange(out *Output, c CellRange) {
	out.WriteShort(c.FirstRow)
	out.WriteShort(c.LastRow)
	out.WriteShort(c.FirstCol)
	out.WriteShort(c.LastCol)
}

func readRange(in *InputStream) CellRange {
	var c CellRange
	c.FirstRow = int(in.ReadUShort())
	c.LastRow = int(in.ReadUShort())
	c.FirstCol = int(in.ReadUShort())
	c.LastCol = int(in.ReadUShort())
	return c
}
