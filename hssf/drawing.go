package hssf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/yamitzky/hssf-go/escher"
	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

// PictureType is the storage format of a picture.
type PictureType int

const (
	PictureEMF  PictureType = escher.BlipEMF
	PictureWMF  PictureType = escher.BlipWMF
	PicturePICT PictureType = escher.BlipPICT
	PictureJPEG PictureType = escher.BlipJPEG
	PicturePNG  PictureType = escher.BlipPNG
	PictureDIB  PictureType = escher.BlipDIB
	PictureTIFF PictureType = escher.BlipTIFF
)

func (t PictureType) String() string {
	switch t {
	case PictureEMF:
		return "emf"
	case PictureWMF:
		return "wmf"
	case PicturePICT:
		return "pict"
	case PictureJPEG:
		return "jpeg"
	case PicturePNG:
		return "png"
	case PictureDIB:
		return "dib"
	case PictureTIFF:
		return "tiff"
	}
	return fmt.Sprintf("PictureType(%d)", int(t))
}

// AddPicture stores picture bytes in the workbook and returns the one
// based picture index shapes refer to. Adding the same bytes twice
// returns the same index.
func (wb *Workbook) AddPicture(data []byte, t PictureType) (int, error) {
	if len(data) == 0 {
		return 0, InvalidError("hssf: empty picture")
	}
	switch t {
	case PictureEMF, PictureWMF, PicturePICT, PictureJPEG, PicturePNG, PictureDIB, PictureTIFF:
	default:
		return 0, InvalidError(fmt.Sprintf("hssf: unknown picture type %d", int(t)))
	}
	return wb.m.AddPicture(int(t), data), nil
}

// PictureData is a picture of the workbook picture store.
type PictureData struct {
	Format PictureType
	Data   []byte
	UID    [16]byte
}

// AllPictures returns the stored pictures in index order. Entries whose
// data lives outside the workbook stream are skipped.
func (wb *Workbook) AllPictures() []*PictureData {
	var out []*PictureData
	for i, bse := range wb.m.Pictures() {
		if bse.Blip == nil {
			wb.opts.warnf("picture %d has no embedded data", i+1)
			continue
		}
		data, err := escher.PictureData(bse.Blip)
		if err != nil {
			wb.opts.warnf("picture %d: %v", i+1, err)
			continue
		}
		out = append(out, &PictureData{Format: PictureType(escher.BlipType(bse.Blip)), Data: data, UID: bse.UID})
	}
	return out
}

// Dimensions returns the pixel size of a bitmap picture. Metafiles have
// no pixel size and return an error.
func (p *PictureData) Dimensions() (width, height int, err error) {
	data := p.Data
	switch p.Format {
	case PictureEMF, PictureWMF, PicturePICT:
		return 0, 0, InvalidError("hssf: " + p.Format.String() + " pictures have no pixel size")
	case PictureDIB:
		if data, err = dibToBMP(data); err != nil {
			return 0, 0, err
		}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("hssf: %s picture: %w", p.Format, err)
	}
	return cfg.Width, cfg.Height, nil
}

// dibToBMP prefixes a device independent bitmap with the BMP file
// header.
func dibToBMP(dib []byte) ([]byte, error) {
	if len(dib) < 16 {
		return nil, InvalidError("hssf: DIB header truncated")
	}
	headerSize := binary.LittleEndian.Uint32(dib)
	bitCount := binary.LittleEndian.Uint16(dib[14:])
	colors := uint32(0)
	if len(dib) >= 36 && headerSize >= 36 {
		colors = binary.LittleEndian.Uint32(dib[32:])
	}
	if colors == 0 && bitCount <= 8 {
		colors = 1 << bitCount
	}
	out := make([]byte, 14, 14+len(dib))
	out[0], out[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(out[2:], uint32(14+len(dib)))
	binary.LittleEndian.PutUint32(out[10:], 14+headerSize+colors*4)
	return append(out, dib...), nil
}

// ClientAnchor places a shape between two cells. Offsets are in 1/1024
// of the cell width and 1/256 of the cell height.
type ClientAnchor struct {
	a escher.ClientAnchorData
}

// NewClientAnchor returns an anchor from (col1, row1) offset by (dx1,
// dy1) to (col2, row2) offset by (dx2, dy2). Coordinates are kept as
// given, even when the second cell precedes the first.
func NewClientAnchor(dx1, dy1, dx2, dy2, col1, row1, col2, row2 int) (*ClientAnchor, error) {
	a, err := escher.NewClientAnchor(col1, row1, dx1, dy1, col2, row2, dx2, dy2)
	if err != nil {
		return nil, anchorError(err)
	}
	return &ClientAnchor{a: a}, nil
}

// Col1 returns the column of the top left corner.
func (c *ClientAnchor) Col1() int { return int(c.a.Col1) }

// Row1 returns the row of the top left corner.
func (c *ClientAnchor) Row1() int { return int(c.a.Row1) }

// Col2 returns the column of the bottom right corner.
func (c *ClientAnchor) Col2() int { return int(c.a.Col2) }

// Row2 returns the row of the bottom right corner.
func (c *ClientAnchor) Row2() int { return int(c.a.Row2) }

// Dx1 returns the x offset in the first cell.
func (c *ClientAnchor) Dx1() int { return int(c.a.Dx1) }

// Dy1 returns the y offset in the first cell.
func (c *ClientAnchor) Dy1() int { return int(c.a.Dy1) }

// Dx2 returns the x offset in the second cell.
func (c *ClientAnchor) Dx2() int { return int(c.a.Dx2) }

// Dy2 returns the y offset in the second cell.
func (c *ClientAnchor) Dy2() int { return int(c.a.Dy2) }

// Patriarch is the top level group of a sheet drawing.
type Patriarch struct {
	sheet *Sheet
	d     *model.DrawingAggregate
	dgID  int
}

// CreateDrawingPatriarch returns the sheet's drawing, creating an empty
// one when the sheet has none.
func (s *Sheet) CreateDrawingPatriarch() (*Patriarch, error) {
	if !s.m.IsWorksheet() {
		return nil, ErrNotWorksheet
	}
	if p := s.DrawingPatriarch(); p != nil {
		return p, nil
	}
	if d := s.m.Drawing(); d != nil && d.IsRaw() {
		return nil, InvalidError("hssf: sheet drawing could not be parsed and is read-only")
	}
	dgID, dg := s.wb.m.NewDrawing()
	d := model.NewDrawingAggregate(dg)
	s.m.SetDrawing(d)
	return &Patriarch{sheet: s, d: d, dgID: dgID}, nil
}

// DrawingPatriarch returns the sheet's drawing, or nil when it has none
// or it could not be parsed.
func (s *Sheet) DrawingPatriarch() *Patriarch {
	d := s.m.Drawing()
	if d == nil || d.IsRaw() {
		return nil
	}
	dg, err := escher.DecodeDg(d.Dg.Child(escher.Dg))
	if err != nil {
		return nil
	}
	return &Patriarch{sheet: s, d: d, dgID: dg.DrawingID}
}

// Shape is a top level shape of a drawing.
type Shape struct {
	ShapeType int
	ID        uint32
	Anchor    *ClientAnchor

	// PictureIndex is the one based picture shown, or 0.
	PictureIndex int
}

// CreatePicture adds a picture frame showing picture pib.
func (p *Patriarch) CreatePicture(anchor *ClientAnchor, pib int) (*Shape, error) {
	if pib < 1 || pib > len(p.sheet.wb.m.Pictures()) {
		return nil, NotFoundError(fmt.Sprintf("hssf: no picture %d", pib))
	}
	return p.add(escher.ShapePictureFrame, escher.PictureProperties(pib), anchor, record.ObjPicture, pib)
}

// CreateSimpleShape adds a rectangle.
func (p *Patriarch) CreateSimpleShape(anchor *ClientAnchor) (*Shape, error) {
	return p.add(escher.ShapeRectangle, escher.SimpleShapeProperties(), anchor, record.ObjRectangle, 0)
}

func (p *Patriarch) add(shapeType int, props []escher.Property, anchor *ClientAnchor, objType, pib int) (*Shape, error) {
	if anchor == nil {
		return nil, fmt.Errorf("%w: nil anchor", ErrInvalidAnchor)
	}
	spid := p.sheet.wb.m.AllocateShapeID(p.dgID)
	shape := escher.NewShape(shapeType, spid, props, anchor.a)
	p.d.AddShape(shape, spid, record.NewObj(objType, int(spid%escher.ShapeIDsPerCluster)))
	return &Shape{ShapeType: shapeType, ID: spid, Anchor: anchor, PictureIndex: pib}, nil
}

// Shapes returns the top level shapes, groups included.
func (p *Patriarch) Shapes() []*Shape {
	var out []*Shape
	for _, r := range escher.Shapes(p.d.Dg) {
		sp := r
		if r.Type == escher.SpgrContainer && len(r.Children) > 0 {
			sp = r.Children[0]
		}
		data, err := escher.DecodeSp(sp.Child(escher.Sp))
		if err != nil {
			continue
		}
		s := &Shape{ShapeType: data.ShapeType, ID: data.ShapeID}
		if a, err := escher.DecodeClientAnchor(sp.Child(escher.ClientAnchor)); err == nil {
			s.Anchor = &ClientAnchor{a: a}
		}
		if opt := sp.Child(escher.Opt); opt != nil {
			if pib, ok := escher.PropertyValue(opt, escher.PropBlip); ok {
				s.PictureIndex = int(pib)
			}
		}
		out = append(out, s)
	}
	return out
}
