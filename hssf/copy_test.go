package hssf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceBook(t *testing.T) *Workbook {
	t.Helper()
	wb := newBook(t, "Main", "Other")
	sh := wb.Sheet(0)
	bold := wb.CreateFont()
	bold.SetName("Verdana")
	bold.SetBold(true)
	cs := wb.CreateCellStyle()
	require.NoError(t, cs.SetFont(bold))

	require.NoError(t, sh.Cell(0, 0).SetNumber(21))
	require.NoError(t, sh.Cell(0, 0).SetStyle(cs))
	require.NoError(t, sh.Cell(0, 1).SetString("hello"))
	require.NoError(t, sh.Cell(0, 2).SetFormula("A1*2"))
	require.NoError(t, sh.Cell(0, 3).SetFormula("Other!A1+1"))
	return wb
}

func TestCopyToOtherWorkbook(t *testing.T) {
	src := sourceBook(t)
	dst := newBook(t, "Dst")

	_, err := src.Sheet(0).CopyTo(dst, "dst", true, false)
	assert.ErrorIs(t, err, ErrSheetExists)

	out, err := src.Sheet(0).CopyTo(dst, "Copy", true, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dst", "Copy"}, dst.SheetNames())

	assert.Equal(t, 21.0, out.Cell(0, 0).Number())
	font := out.Cell(0, 0).Style().Font()
	require.NotNil(t, font)
	assert.True(t, font.Bold())
	assert.Equal(t, "Verdana", font.Name())
	assert.Equal(t, "hello", out.Cell(0, 1).StringValue())

	text, err := out.Cell(0, 2).Formula()
	require.NoError(t, err)
	assert.Equal(t, "A1*2", text)

	// dst has no sheet named Other, so the formula is replaced by its
	// cached result.
	assert.Equal(t, CellNumeric, out.Cell(0, 3).Type())

	back := reopen(t, dst, nil).Sheet(1)
	assert.Equal(t, "hello", back.Cell(0, 1).StringValue())
	assert.True(t, back.Cell(0, 0).Style().Font().Bold())
}

func TestCopyToWithoutStyles(t *testing.T) {
	src := sourceBook(t)
	dst := newBook(t, "Dst")
	out, err := src.Sheet(0).CopyTo(dst, "Plain", false, false)
	require.NoError(t, err)
	assert.Equal(t, defaultXF, out.Cell(0, 0).Style().Index())
	assert.False(t, out.Cell(0, 0).Style().Font().Bold())
}

func TestCopyToSameWorkbook(t *testing.T) {
	wb := sourceBook(t)
	out, err := wb.Sheet(0).CopyTo(wb, "Again", true, true)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Index())

	text, err := out.Cell(0, 3).Formula()
	require.NoError(t, err)
	assert.Equal(t, "Other!A1+1", text)
	assert.Equal(t, wb.Sheet(0).Cell(0, 0).Style().Index(), out.Cell(0, 0).Style().Index())
}

func TestCopyToImages(t *testing.T) {
	src := newBook(t, "Pics")
	pib, err := src.AddPicture(pngBytes(t), PicturePNG)
	require.NoError(t, err)
	p, err := src.Sheet(0).CreateDrawingPatriarch()
	require.NoError(t, err)
	anchor, err := NewClientAnchor(0, 0, 0, 0, 0, 0, 2, 2)
	require.NoError(t, err)
	_, err = p.CreatePicture(anchor, pib)
	require.NoError(t, err)

	dst := newBook(t, "Dst")
	require.NoError(t, err)
	with, err := src.Sheet(0).CopyTo(dst, "With", true, true)
	require.NoError(t, err)
	require.NotNil(t, with.DrawingPatriarch())
	shapes := with.DrawingPatriarch().Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, 1, shapes[0].PictureIndex)
	require.Len(t, dst.AllPictures(), 1)

	without, err := src.Sheet(0).CopyTo(dst, "Without", true, false)
	require.NoError(t, err)
	assert.Nil(t, without.DrawingPatriarch())

	back := reopen(t, dst, nil)
	require.NotNil(t, back.SheetByName("With").DrawingPatriarch())
}
