package hssf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

func TestCellValues(t *testing.T) {
	wb := newBook(t, "S")
	sh := wb.Sheet(0)

	require.NoError(t, sh.Cell(0, 0).SetNumber(1.25))
	require.NoError(t, sh.Cell(0, 1).SetString("text"))
	require.NoError(t, sh.Cell(0, 2).SetBool(true))
	require.NoError(t, sh.Cell(0, 3).SetError(0x07))
	require.NoError(t, sh.Cell(0, 4).SetBlank())

	back := reopen(t, wb, nil).Sheet(0)
	for col, want := range []CellType{CellNumeric, CellString, CellBoolean, CellError, CellBlank, CellNone} {
		assert.Equal(t, want, back.Cell(0, col).Type(), "column %d", col)
	}
	assert.Equal(t, 1.25, back.Cell(0, 0).Value())
	assert.Equal(t, "text", back.Cell(0, 1).Value())
	assert.Equal(t, true, back.Cell(0, 2).Value())
	assert.Equal(t, "#DIV/0!", back.Cell(0, 3).Value())
	assert.Nil(t, back.Cell(0, 4).Value())
	assert.Equal(t, "string", CellString.String())
}

func TestCellAddressing(t *testing.T) {
	sh := newBook(t, "S").Sheet(0)
	c, err := sh.CellAt("C5")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Row())
	assert.Equal(t, 2, c.Column())
	assert.Equal(t, "C5", c.Address())

	assert.ErrorIs(t, sh.Cell(MaxRows, 0).SetNumber(1), ErrCellRange)
	assert.ErrorIs(t, sh.Cell(0, MaxColumns).SetNumber(1), ErrCellRange)
	assert.True(t, IsErrInvalid(sh.Cell(0, 0).SetError(0x99)))
}

func TestRemoveCellAndRow(t *testing.T) {
	sh := newBook(t, "S").Sheet(0)
	require.NoError(t, sh.Cell(1, 0).SetNumber(1))
	require.NoError(t, sh.Cell(1, 1).SetNumber(2))
	require.NoError(t, sh.Cell(2, 0).SetNumber(3))
	assert.Len(t, sh.Cells(), 3)

	require.NoError(t, sh.Cell(1, 1).Remove())
	assert.Equal(t, CellNone, sh.Cell(1, 1).Type())
	require.NoError(t, sh.RemoveRow(1))
	assert.Equal(t, []int{2}, sh.RowNumbers())
}

func TestFormulaText(t *testing.T) {
	wb := newBook(t, "S", "Other Sheet")
	c := wb.Sheet(0).Cell(0, 2)
	require.NoError(t, c.SetFormula("=SUM(A1:B1)+'Other Sheet'!A1"))
	assert.Equal(t, CellFormula, c.Type())
	assert.Equal(t, CellNumeric, c.CachedType())

	text, err := c.Formula()
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1:B1)+'Other Sheet'!A1", text)

	text, err = reopen(t, wb, nil).Sheet(0).Cell(0, 2).Formula()
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1:B1)+'Other Sheet'!A1", text)

	_, err = wb.Sheet(0).Cell(5, 5).Formula()
	assert.ErrorIs(t, err, ErrNotFormula)
	assert.Error(t, wb.Sheet(0).Cell(0, 0).SetFormula("SUM(("))
}

func TestArrayFormulas(t *testing.T) {
	wb := newBook(t, "S")
	sh := wb.Sheet(0)
	rng, err := ParseRange("C1:C3")
	require.NoError(t, err)

	cells, err := sh.SetArrayFormula("A1:A3*B1:B3", rng)
	require.NoError(t, err)
	require.Len(t, cells, 3)
	for _, c := range cells {
		assert.True(t, c.IsPartOfArrayFormulaGroup())
		got, err := c.ArrayFormulaRange()
		require.NoError(t, err)
		assert.Equal(t, rng, got)
	}
	assert.ErrorIs(t, sh.Cell(1, 2).SetNumber(1), ErrPartOfArray)

	_, err = sh.SetArrayFormula("A1", CellRange{FirstRow: 1, LastRow: 1, FirstCol: 2, LastCol: 3})
	assert.Error(t, err)

	back := reopen(t, wb, nil).Sheet(0)
	assert.True(t, back.Cell(2, 2).IsPartOfArrayFormulaGroup())

	removed, err := sh.RemoveArrayFormula(sh.Cell(2, 2))
	require.NoError(t, err)
	assert.Len(t, removed, 3)
	for _, c := range removed {
		assert.False(t, c.IsPartOfArrayFormulaGroup())
	}
	require.NoError(t, sh.Cell(1, 2).SetNumber(1))

	_, err = sh.RemoveArrayFormula(sh.Cell(0, 0))
	assert.ErrorIs(t, err, ErrNotArray)
	_, err = sh.Cell(0, 0).ArrayFormulaRange()
	assert.ErrorIs(t, err, ErrNotArray)
}

func TestMergedRegions(t *testing.T) {
	sh := newBook(t, "S").Sheet(0)
	i, err := sh.AddMergedRegion(CellRange{FirstRow: 0, LastRow: 1, FirstCol: 0, LastCol: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	_, err = sh.AddMergedRegion(CellRange{FirstRow: 1, LastRow: 2, FirstCol: 1, LastCol: 2})
	assert.True(t, IsErrInvalid(err))
	_, err = sh.AddMergedRegion(CellRange{FirstRow: 5, LastRow: 5, FirstCol: 5, LastCol: 5})
	assert.True(t, IsErrInvalid(err))
	_, err = sh.AddMergedRegion(CellRange{FirstRow: 5, LastRow: 4, FirstCol: 0, LastCol: 1})
	assert.True(t, IsErrInvalid(err))

	sh.RemoveMergedRegion(7)
	sh.RemoveMergedRegion(0)
	assert.Empty(t, sh.MergedRegions())
}

func TestRowsAndColumns(t *testing.T) {
	wb := newBook(t, "S")
	sh := wb.Sheet(0)
	require.NoError(t, sh.SetRowHeight(3, 600))
	require.NoError(t, sh.SetColumnWidth(2, 5000))
	sh.SetColumnHidden(4, true)

	assert.True(t, IsErrInvalid(sh.SetRowHeight(3, 0x8000)))
	assert.ErrorIs(t, sh.SetColumnWidth(MaxColumns, 1), ErrCellRange)

	back := reopen(t, wb, nil).Sheet(0)
	assert.Equal(t, 600, back.RowHeight(3))
	assert.Equal(t, 5000, back.ColumnWidth(2))
	assert.True(t, back.IsColumnHidden(4))
	assert.False(t, back.IsColumnHidden(2))
}

func TestRichText(t *testing.T) {
	wb := newBook(t, "S")
	bold := wb.CreateFont()
	bold.SetBold(true)

	rt := NewRichText("Hello world")
	require.NoError(t, rt.ApplyFont(6, 11, bold))
	assert.True(t, IsErrInvalid(rt.ApplyFont(3, 20, bold)))
	require.NoError(t, wb.Sheet(0).Cell(0, 0).SetRichText(rt))

	got := reopen(t, wb, nil).Sheet(0).Cell(0, 0).RichText()
	require.NotNil(t, got)
	assert.Equal(t, "Hello world", got.Text)
	assert.Equal(t, []FontRun{{Start: 0, Font: 0}, {Start: 6, Font: bold.Index()}}, got.Runs)
}

func TestDateCells(t *testing.T) {
	wb := newBook(t, "S")
	when := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c := wb.Sheet(0).Cell(0, 0)
	require.NoError(t, c.SetDate(when))
	assert.Equal(t, 45306.5, c.Number())
	assert.False(t, c.IsDateFormatted())

	style := wb.CreateCellStyle()
	style.SetDataFormatString("yyyy-mm-dd")
	require.NoError(t, c.SetStyle(style))
	assert.True(t, c.IsDateFormatted())

	got, err := c.Date()
	require.NoError(t, err)
	assert.True(t, when.Equal(got))

	_, err = wb.Sheet(0).Cell(1, 0).Date()
	assert.True(t, IsErrInvalid(err))
}

func TestFormulaWithArrayConstant(t *testing.T) {
	wb := newBook(t, "S")
	c := wb.Sheet(0).Cell(0, 0)
	require.NoError(t, c.SetFormula("1"))

	// SUM({1,2}): tArray, tFuncVar SUM, constants after the tokens.
	extra := []byte{0x01, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0xF0, 0x3F, 0x01, 0, 0, 0, 0, 0, 0, 0x00, 0x40}
	fc := c.record().(*model.FormulaCell)
	fc.Expr = record.Expr{Tokens: []byte{0x60, 0, 0, 0, 0, 0, 0, 0, 0x42, 0x01, 0x04, 0x00}, Extra: extra}

	text, err := c.Formula()
	require.NoError(t, err)
	assert.Equal(t, "SUM({1,2})", text)

	text, err = reopen(t, wb, nil).Sheet(0).Cell(0, 0).Formula()
	require.NoError(t, err)
	assert.Equal(t, "SUM({1,2})", text)

	fc.Expr.Extra = nil
	_, err = c.Formula()
	assert.Error(t, err)
}
