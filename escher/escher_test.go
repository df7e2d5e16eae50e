package escher

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerializeRoundTrip(t *testing.T) {
	anchor, err := NewClientAnchor(1, 2, 10, 20, 3, 4, 30, 40)
	require.NoError(t, err)

	dg := NewDrawing(1, 1024)
	AddShape(dg, NewShape(ShapePictureFrame, 1025, PictureProperties(1), anchor), 1025)
	data := dg.Bytes()
	assert.Equal(t, dg.Size(), len(data))

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, data, Serialize(parsed))

	d, err := DecodeDg(parsed[0].Child(Dg))
	require.NoError(t, err)
	assert.Equal(t, DgData{DrawingID: 1, NumShapes: 2, LastSpid: 1025}, d)

	shapes := Shapes(parsed[0])
	require.Len(t, shapes, 1)
	got, err := DecodeClientAnchor(shapes[0].Child(ClientAnchor))
	require.NoError(t, err)
	assert.Equal(t, anchor, got)

	pib, ok := PropertyValue(shapes[0].Child(Opt), PropBlip)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), pib)
}

func TestParseTruncated(t *testing.T) {
	data := NewContainer(DgContainer, NewAtom(Dg, 0, 1, make([]byte, 8))).Bytes()

	_, err := Parse(data[:len(data)-3])
	var fe *FormatError
	require.True(t, errors.As(err, &fe))

	padded, err := Parse(append(data, 0, 0, 0))
	require.NoError(t, err)
	assert.Len(t, padded, 1)
}

func TestAnchorKeptVerbatim(t *testing.T) {
	a, err := NewClientAnchor(5, 10, 0, 0, 1, 2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), a.Col1)
	assert.Equal(t, uint16(1), a.Col2)
	assert.Equal(t, uint16(10), a.Row1)
	assert.Equal(t, uint16(2), a.Row2)

	_, err = NewClientAnchor(0, 65535, 0, 0, 255, 65535, 1023, 255)
	assert.NoError(t, err)
}

func TestAnchorValidation(t *testing.T) {
	tests := []struct {
		name                                   string
		col1, row1, dx1, dy1, col2, row2, dx2, dy2 int
	}{
		{"col", 256, 0, 0, 0, 0, 0, 0, 0},
		{"row", 0, 65536, 0, 0, 0, 0, 0, 0},
		{"negative row", 0, 0, 0, 0, 0, -1, 0, 0},
		{"dx", 0, 0, 1024, 0, 0, 0, 0, 0},
		{"dy", 0, 0, 0, 0, 0, 0, 0, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClientAnchor(tt.col1, tt.row1, tt.dx1, tt.dy1, tt.col2, tt.row2, tt.dx2, tt.dy2)
			assert.ErrorIs(t, err, ErrInvalidAnchor)
		})
	}
}

func TestOptProperties(t *testing.T) {
	opt := NewOpt([]Property{
		{ID: PropBlip, IsBlip: true, Value: 2},
		{ID: PropShapeName, Complex: []byte("P\x00\x00\x00")},
	})
	require.NoError(t, SetPropertyValue(opt, PropFillColor, 0x0800000A, false))
	require.NoError(t, SetPropertyValue(opt, PropBlip, 3, true))

	props, err := DecodeOpt(opt)
	require.NoError(t, err)
	require.Len(t, props, 3)
	assert.Equal(t, uint16(PropBlip), props[0].ID)
	assert.Equal(t, uint32(3), props[0].Value)
	assert.True(t, props[0].IsBlip)
	assert.Equal(t, uint16(PropFillColor), props[1].ID)
	assert.Equal(t, []byte("P\x00\x00\x00"), props[2].Complex)
	assert.Equal(t, 3, opt.Instance())
}

func TestDggAllocation(t *testing.T) {
	d := &DggData{}
	first := d.AllocateShapeID(1)
	second := d.AllocateShapeID(1)
	other := d.AllocateShapeID(2)
	assert.Equal(t, uint32(1024), first)
	assert.Equal(t, uint32(1025), second)
	assert.Equal(t, uint32(2048), other)
	assert.Equal(t, 2, d.MaxDrawingID())
	assert.Equal(t, uint32(3), d.ShapesSaved)

	decoded, err := DecodeDgg(EncodeDgg(d))
	require.NoError(t, err)
	assert.Equal(t, d, decoded)
}

func TestPictureBSE(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nnot really a png")
	bse := NewPictureBSE(BlipPNG, png)
	rec := bse.Record()
	assert.Equal(t, BlipPNG, rec.Instance())

	decoded, err := DecodeBSE(rec)
	require.NoError(t, err)
	assert.Equal(t, UID(png), decoded.UID)
	assert.Equal(t, uint32(1), decoded.RefCount)
	require.NotNil(t, decoded.Blip)
	assert.Equal(t, BlipPNG, BlipType(decoded.Blip))

	data, err := PictureData(decoded.Blip)
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestMetafileBlipIsCompressed(t *testing.T) {
	wmf := bytes.Repeat([]byte("metafile"), 200)
	bse := NewPictureBSE(BlipWMF, wmf)
	assert.Less(t, len(bse.Blip.Data), len(wmf))

	data, err := PictureData(bse.Blip)
	require.NoError(t, err)
	assert.Equal(t, wmf, data)
}

func TestCloneIsDeep(t *testing.T) {
	dg := NewDrawing(1, 1024)
	c := dg.Clone()
	SetShapeID(c.Find(Sp), 4096)

	sp, err := DecodeSp(dg.Find(Sp))
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), sp.ShapeID)
	sp, err = DecodeSp(c.Find(Sp))
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), sp.ShapeID)
}

func TestSerializeFuncOffsets(t *testing.T) {
	anchor, _ := NewClientAnchor(0, 0, 0, 0, 1, 1, 0, 0)
	dg := NewDrawing(1, 1024)
	AddShape(dg, NewShape(ShapeRectangle, 1025, SimpleShapeProperties(), anchor), 1025)
	AddShape(dg, NewShape(ShapeEllipse, 1026, SimpleShapeProperties(), anchor), 1026)

	var ends []int
	data := SerializeFunc([]*Record{dg}, func(r *Record, end int) {
		if r.Type == ClientData {
			ends = append(ends, end)
		}
	})
	require.Len(t, ends, 2)
	assert.Equal(t, len(data), ends[1])
	assert.Less(t, ends[0], ends[1])
}
