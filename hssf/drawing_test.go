package hssf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for x := 0; x < 3; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 40), B: 10, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return buf.Bytes()
}

func TestPictureDimensions(t *testing.T) {
	wb := newBook(t, "S")
	data := pngBytes(t)
	pib, err := wb.AddPicture(data, PicturePNG)
	require.NoError(t, err)
	assert.Equal(t, 1, pib)
	again, err := wb.AddPicture(data, PicturePNG)
	require.NoError(t, err)
	assert.Equal(t, pib, again)

	var b bytes.Buffer
	require.NoError(t, bmp.Encode(&b, testImage()))
	_, err = wb.AddPicture(b.Bytes()[14:], PictureDIB)
	require.NoError(t, err)

	pics := wb.AllPictures()
	require.Len(t, pics, 2)
	assert.Equal(t, PicturePNG, pics[0].Format)
	assert.Equal(t, data, pics[0].Data)
	for _, p := range pics {
		w, h, err := p.Dimensions()
		require.NoError(t, err, p.Format.String())
		assert.Equal(t, 3, w)
		assert.Equal(t, 2, h)
	}

	_, _, err = (&PictureData{Format: PictureEMF, Data: []byte{1}}).Dimensions()
	assert.True(t, IsErrInvalid(err))
	_, err = wb.AddPicture(nil, PicturePNG)
	assert.True(t, IsErrInvalid(err))
	_, err = wb.AddPicture(data, PictureType(99))
	assert.True(t, IsErrInvalid(err))
}

func TestShapesRoundTrip(t *testing.T) {
	wb := newBook(t, "S")
	pib, err := wb.AddPicture(pngBytes(t), PicturePNG)
	require.NoError(t, err)

	assert.Nil(t, wb.Sheet(0).DrawingPatriarch())
	p, err := wb.Sheet(0).CreateDrawingPatriarch()
	require.NoError(t, err)
	anchor, err := NewClientAnchor(0, 0, 512, 128, 1, 1, 3, 4)
	require.NoError(t, err)
	pic, err := p.CreatePicture(anchor, pib)
	require.NoError(t, err)
	box, err := p.CreateSimpleShape(anchor)
	require.NoError(t, err)
	assert.NotEqual(t, pic.ID, box.ID)

	_, err = p.CreatePicture(anchor, 7)
	assert.True(t, IsErrNotFound(err))
	_, err = p.CreateSimpleShape(nil)
	assert.ErrorIs(t, err, ErrInvalidAnchor)
	_, err = NewClientAnchor(0, 0, 0, 0, 0, 0, 300, 0)
	assert.ErrorIs(t, err, ErrInvalidAnchor)

	back := reopen(t, wb, nil)
	bp := back.Sheet(0).DrawingPatriarch()
	require.NotNil(t, bp)
	shapes := bp.Shapes()
	require.Len(t, shapes, 2)
	assert.Equal(t, pib, shapes[0].PictureIndex)
	assert.Equal(t, pic.ID, shapes[0].ID)
	require.NotNil(t, shapes[0].Anchor)
	assert.Equal(t, 1, shapes[0].Anchor.Col1())
	assert.Equal(t, 4, shapes[0].Anchor.Row2())
	assert.Equal(t, 512, shapes[0].Anchor.Dx2())
	assert.Equal(t, 0, shapes[1].PictureIndex)
	require.Len(t, back.AllPictures(), 1)
}
