package hssf

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridBook holds sheets s1..s4 whose cells are sheet*100+row*10+col.
func gridBook(t *testing.T) *Workbook {
	t.Helper()
	wb := newBook(t)
	for n := 1; n <= 4; n++ {
		sh, err := wb.CreateSheet(fmt.Sprintf("s%d", n))
		require.NoError(t, err)
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				require.NoError(t, sh.Cell(row, col).SetNumber(float64(n*100+row*10+col)))
			}
		}
	}
	return wb
}

func TestEvaluateCrossSheetSum(t *testing.T) {
	wb := gridBook(t)
	c := wb.Sheet(1).Cell(5, 0)
	require.NoError(t, c.SetFormula("SUM(s3!B2:C3)"))

	e := NewFormulaEvaluator(wb)
	v, err := e.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, CellValue{Type: CellNumeric, Number: 1266}, v)
	assert.Equal(t, 0.0, c.Number())

	typ, err := e.EvaluateFormulaCell(c)
	require.NoError(t, err)
	assert.Equal(t, CellNumeric, typ)
	assert.Equal(t, 1266.0, c.Number())
	assert.Equal(t, 1266.0, reopen(t, wb, nil).Sheet(1).Cell(5, 0).Number())

	v, err = e.Evaluate(wb.Sheet(0).Cell(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 111.0, v.Number)
	typ, err = e.EvaluateFormulaCell(wb.Sheet(0).Cell(1, 1))
	require.NoError(t, err)
	assert.Equal(t, CellNone, typ)

	_, err = e.Evaluate(newBook(t, "X").Sheet(0).Cell(0, 0))
	assert.True(t, IsErrInvalid(err))
}

func TestEvaluateAll(t *testing.T) {
	wb := newBook(t, "S")
	sh := wb.Sheet(0)
	require.NoError(t, sh.Cell(0, 0).SetNumber(3))
	require.NoError(t, sh.Cell(0, 1).SetFormula("A1*A1"))
	require.NoError(t, sh.Cell(0, 2).SetFormula("A1>2"))
	require.NoError(t, sh.Cell(0, 3).SetFormula("1/0"))
	require.NoError(t, sh.Cell(0, 4).SetFormula(`"a"&"b"`))

	require.NoError(t, NewFormulaEvaluator(wb).EvaluateAll())
	assert.Equal(t, 9.0, sh.Cell(0, 1).Number())
	assert.True(t, sh.Cell(0, 2).Bool())
	assert.Equal(t, CellError, sh.Cell(0, 3).CachedType())
	assert.Equal(t, uint8(0x07), sh.Cell(0, 3).ErrorCode())
	assert.Equal(t, "ab", sh.Cell(0, 4).StringValue())
}

func TestEvaluateExternalReference(t *testing.T) {
	ext := newBook(t, "Data")
	require.NoError(t, ext.Sheet(0).Cell(0, 1).SetNumber(21))

	book := newBook(t, "Main")
	book.LinkExternalWorkbook("ext.xls", ext)
	c := book.Sheet(0).Cell(0, 0)
	require.NoError(t, c.SetFormula("[ext.xls]Data!B1*2"))

	first, other := NewFormulaEvaluator(book), NewFormulaEvaluator(ext)
	require.NoError(t, SetupEnvironment([]string{"main.xls", "ext.xls"}, []*FormulaEvaluator{first, other}))
	v, err := first.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v.Number)

	require.True(t, book.ChangeExternalReference("ext.xls", "moved.xls"))
	require.NoError(t, SetupEnvironment([]string{"main.xls", "moved.xls"}, []*FormulaEvaluator{first, other}))
	v, err = first.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v.Number)

	assert.ErrorIs(t, SetupEnvironment([]string{"a"}, nil), ErrEnvironment)
}

func TestCalcResultTyping(t *testing.T) {
	for _, tc := range []struct {
		s    string
		err  error
		want CellValue
	}{
		{s: "#DIV/0!", err: errors.New("#DIV/0!"), want: CellValue{Type: CellError, ErrorCode: 0x07}},
		{s: "", err: errors.New("#DIV/0!"), want: CellValue{Type: CellError, ErrorCode: 0x07}},
		{s: "", err: errors.New(" #N/A "), want: CellValue{Type: CellError, ErrorCode: 0x2A}},
		{s: "#REF!", want: CellValue{Type: CellError, ErrorCode: 0x17}},
		{s: "2.5", want: CellValue{Type: CellNumeric, Number: 2.5}},
		{s: "true", want: CellValue{Type: CellBoolean, Bool: true}},
		{s: "FALSE", want: CellValue{Type: CellBoolean}},
		{s: "x", want: CellValue{Type: CellString, String: "x"}},
	} {
		got, err := cellValueFromCalc(tc.s, tc.err)
		require.NoError(t, err, tc.s)
		assert.Equal(t, tc.want, got, tc.s)
	}

	_, err := cellValueFromCalc("", errors.New("unsupported function"))
	assert.EqualError(t, err, "unsupported function")
}
