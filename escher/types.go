package escher

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record types.
const (
	DggContainer    = 0xF000
	BStoreContainer = 0xF001
	DgContainer     = 0xF002
	SpgrContainer   = 0xF003
	SpContainer     = 0xF004
	SolverContainer = 0xF005

	Dgg             = 0xF006
	BSE             = 0xF007
	Dg              = 0xF008
	Spgr            = 0xF009
	Sp              = 0xF00A
	Opt             = 0xF00B
	Textbox         = 0xF00C
	ClientTextbox   = 0xF00D
	Anchor          = 0xF00E
	ChildAnchor     = 0xF00F
	ClientAnchor    = 0xF010
	ClientData      = 0xF011
	SplitMenuColors = 0xF11E

	BlipFirst = 0xF018
	BlipLast  = 0xF117
)

// Blip types as stored in BSE records. The BLIP record type is
// BlipFirst + blip type.
const (
	BlipError   = 0
	BlipUnknown = 1
	BlipEMF     = 2
	BlipWMF     = 3
	BlipPICT    = 4
	BlipJPEG    = 5
	BlipPNG     = 6
	BlipDIB     = 7
	BlipTIFF    = 0x11
)

// blipSignatures maps a blip type to the BLIP record instance Excel
// writes for a single-uid blip.
var blipSignatures = map[int]int{
	BlipEMF:  0x3D4,
	BlipWMF:  0x216,
	BlipPICT: 0x542,
	BlipJPEG: 0x46A,
	BlipPNG:  0x6E0,
	BlipDIB:  0x7A8,
	BlipTIFF: 0x6E4,
}

// Shape types used by this package.
const (
	ShapeNotPrimitive = 0
	ShapeRectangle    = 1
	ShapeEllipse      = 3
	ShapeLine         = 20
	ShapePictureFrame = 75
	ShapeTextBox      = 202
)

// Sp flags.
const (
	SpGroup      = 0x0001
	SpChild      = 0x0002
	SpPatriarch  = 0x0004
	SpDeleted    = 0x0008
	SpOleShape   = 0x0010
	SpHaveMaster = 0x0020
	SpFlipH      = 0x0040
	SpFlipV      = 0x0080
	SpConnector  = 0x0100
	SpHaveAnchor = 0x0200
	SpBackground = 0x0400
	SpHaveSpt    = 0x0800
)

// Shape property ids.
const (
	PropLockAgainstGrouping = 0x007F
	PropTextID              = 0x0080
	PropBlip                = 0x0104
	PropFillColor           = 0x0181
	PropFillBackColor       = 0x0183
	PropNoFillHitTest       = 0x01BF
	PropLineColor           = 0x01C0
	PropLineWidth           = 0x01CB
	PropNoLine              = 0x01FF
	PropShadow              = 0x023F
	PropShapeName           = 0x0380
	PropGroupShape          = 0x03BF
)

// ErrInvalidAnchor is returned when an anchor coordinate is out of range.
var ErrInvalidAnchor = errors.New("escher: anchor coordinate out of range")

// ClientAnchorData positions a shape between two cells. Coordinates are
// kept exactly as given: col1 > col2 or row1 > row2 is not normalized.
type ClientAnchorData struct {
	Flags uint16
	Col1  uint16
	Dx1   uint16
	Row1  uint16
	Dy1   uint16
	Col2  uint16
	Dx2   uint16
	Row2  uint16
	Dy2   uint16
}

// Anchor coordinate limits.
const (
	MaxAnchorCol = 255
	MaxAnchorRow = 65535
	MaxAnchorDx  = 1023
	MaxAnchorDy  = 255
)

// NewClientAnchor validates the coordinates and returns the anchor.
func NewClientAnchor(col1, row1, dx1, dy1, col2, row2, dx2, dy2 int) (ClientAnchorData, error) {
	a := ClientAnchorData{}
	for _, c := range [...]struct {
		v, max int
		name   string
	}{
		{col1, MaxAnchorCol, "col1"}, {col2, MaxAnchorCol, "col2"},
		{row1, MaxAnchorRow, "row1"}, {row2, MaxAnchorRow, "row2"},
		{dx1, MaxAnchorDx, "dx1"}, {dx2, MaxAnchorDx, "dx2"},
		{dy1, MaxAnchorDy, "dy1"}, {dy2, MaxAnchorDy, "dy2"},
	} {
		if c.v < 0 || c.v > c.max {
			return a, fmt.Errorf("%w: %s=%d not in 0..%d", ErrInvalidAnchor, c.name, c.v, c.max)
		}
	}
	a.Col1, a.Row1, a.Dx1, a.Dy1 = uint16(col1), uint16(row1), uint16(dx1), uint16(dy1)
	a.Col2, a.Row2, a.Dx2, a.Dy2 = uint16(col2), uint16(row2), uint16(dx2), uint16(dy2)
	return a, nil
}

// Encode returns the 18-byte ClientAnchor payload.
func (a ClientAnchorData) Encode() []byte {
	b := make([]byte, 0, 18)
	for _, v := range [...]uint16{a.Flags, a.Col1, a.Dx1, a.Row1, a.Dy1, a.Col2, a.Dx2, a.Row2, a.Dy2} {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b
}

// Record wraps the anchor in a ClientAnchor atom.
func (a ClientAnchorData) Record() *Record {
	return NewAtom(ClientAnchor, 0, 0, a.Encode())
}

// DecodeClientAnchor decodes a ClientAnchor atom. Short anchors written by
// some producers are rejected.
func DecodeClientAnchor(r *Record) (ClientAnchorData, error) {
	var a ClientAnchorData
	if r == nil || r.Type != ClientAnchor || len(r.Data) < 18 {
		return a, &FormatError{Message: "client anchor shorter than 18 bytes"}
	}
	v := func(i int) uint16 { return binary.LittleEndian.Uint16(r.Data[2*i:]) }
	a = ClientAnchorData{Flags: v(0), Col1: v(1), Dx1: v(2), Row1: v(3), Dy1: v(4), Col2: v(5), Dx2: v(6), Row2: v(7), Dy2: v(8)}
	return a, nil
}

// SpData is the decoded Sp atom; the shape type is the record instance.
type SpData struct {
	ShapeType int
	ShapeID   uint32
	Flags     uint32
}

// NewSp creates an Sp atom.
func NewSp(shapeType int, spid uint32, flags uint32) *Record {
	b := binary.LittleEndian.AppendUint32(nil, spid)
	b = binary.LittleEndian.AppendUint32(b, flags)
	return NewAtom(Sp, 2, shapeType, b)
}

// DecodeSp decodes an Sp atom.
func DecodeSp(r *Record) (SpData, error) {
	if r == nil || r.Type != Sp || len(r.Data) < 8 {
		return SpData{}, &FormatError{Message: "Sp atom shorter than 8 bytes"}
	}
	return SpData{
		ShapeType: r.Instance(),
		ShapeID:   binary.LittleEndian.Uint32(r.Data),
		Flags:     binary.LittleEndian.Uint32(r.Data[4:]),
	}, nil
}

// SetShapeID rewrites the shape id of an Sp atom.
func SetShapeID(r *Record, spid uint32) {
	if r != nil && r.Type == Sp && len(r.Data) >= 4 {
		binary.LittleEndian.PutUint32(r.Data, spid)
	}
}

// DgData is the decoded Dg atom; the drawing id is the record instance.
type DgData struct {
	DrawingID int
	NumShapes uint32
	LastSpid  uint32
}

// NewDg creates a Dg atom.
func NewDg(d DgData) *Record {
	b := binary.LittleEndian.AppendUint32(nil, d.NumShapes)
	b = binary.LittleEndian.AppendUint32(b, d.LastSpid)
	return NewAtom(Dg, 0, d.DrawingID, b)
}

// DecodeDg decodes a Dg atom.
func DecodeDg(r *Record) (DgData, error) {
	if r == nil || r.Type != Dg || len(r.Data) < 8 {
		return DgData{}, &FormatError{Message: "Dg atom shorter than 8 bytes"}
	}
	return DgData{
		DrawingID: r.Instance(),
		NumShapes: binary.LittleEndian.Uint32(r.Data),
		LastSpid:  binary.LittleEndian.Uint32(r.Data[4:]),
	}, nil
}

// Cluster is a block of 1024 shape ids owned by one drawing.
type Cluster struct {
	DrawingID uint32
	// NumShapeIDs is one past the number of ids used in the cluster.
	NumShapeIDs uint32
}

// DggData is the decoded Dgg atom.
type DggData struct {
	ShapeIDMax   uint32
	ShapesSaved  uint32
	DrawingSaved uint32
	Clusters     []Cluster
}

// ShapeIDsPerCluster is the size of a Dgg cluster.
const ShapeIDsPerCluster = 1024

// EncodeDgg returns the Dgg atom for d.
func EncodeDgg(d *DggData) *Record {
	b := binary.LittleEndian.AppendUint32(nil, d.ShapeIDMax)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(d.Clusters)+1))
	b = binary.LittleEndian.AppendUint32(b, d.ShapesSaved)
	b = binary.LittleEndian.AppendUint32(b, d.DrawingSaved)
	for _, c := range d.Clusters {
		b = binary.LittleEndian.AppendUint32(b, c.DrawingID)
		b = binary.LittleEndian.AppendUint32(b, c.NumShapeIDs)
	}
	return NewAtom(Dgg, 0, 0, b)
}

// DecodeDgg decodes a Dgg atom.
func DecodeDgg(r *Record) (*DggData, error) {
	if r == nil || r.Type != Dgg || len(r.Data) < 16 {
		return nil, &FormatError{Message: "Dgg atom shorter than 16 bytes"}
	}
	d := &DggData{
		ShapeIDMax:   binary.LittleEndian.Uint32(r.Data),
		ShapesSaved:  binary.LittleEndian.Uint32(r.Data[8:]),
		DrawingSaved: binary.LittleEndian.Uint32(r.Data[12:]),
	}
	n := int(binary.LittleEndian.Uint32(r.Data[4:])) - 1
	for i := 0; i < n && 16+8*i+8 <= len(r.Data); i++ {
		off := 16 + 8*i
		d.Clusters = append(d.Clusters, Cluster{
			DrawingID:   binary.LittleEndian.Uint32(r.Data[off:]),
			NumShapeIDs: binary.LittleEndian.Uint32(r.Data[off+4:]),
		})
	}
	return d, nil
}

// MaxDrawingID returns the largest drawing id with a cluster.
func (d *DggData) MaxDrawingID() int {
	m := 0
	for _, c := range d.Clusters {
		m = max(m, int(c.DrawingID))
	}
	return m
}

// AllocateShapeID reserves the next shape id for drawing dgID, opening a
// new cluster when the drawing has none with room.
func (d *DggData) AllocateShapeID(dgID int) uint32 {
	d.ShapesSaved++
	for i := range d.Clusters {
		c := &d.Clusters[i]
		if int(c.DrawingID) == dgID && c.NumShapeIDs < ShapeIDsPerCluster {
			spid := uint32(i+1)*ShapeIDsPerCluster + c.NumShapeIDs
			c.NumShapeIDs++
			d.ShapeIDMax = max(d.ShapeIDMax, spid+1)
			return spid
		}
	}
	d.Clusters = append(d.Clusters, Cluster{DrawingID: uint32(dgID), NumShapeIDs: 1})
	spid := uint32(len(d.Clusters)) * ShapeIDsPerCluster
	d.ShapeIDMax = max(d.ShapeIDMax, spid+1)
	return spid
}

// Property is one entry of an Opt record.
type Property struct {
	// ID is the property number without the blip and complex flags.
	ID      uint16
	IsBlip  bool
	Value   uint32
	Complex []byte
}

// DecodeOpt decodes the property table of an Opt atom.
func DecodeOpt(r *Record) ([]Property, error) {
	if r == nil || r.Type != Opt {
		return nil, &FormatError{Message: "not an Opt record"}
	}
	n := r.Instance()
	if 6*n > len(r.Data) {
		return nil, &FormatError{Message: fmt.Sprintf("Opt declares %d properties in %d bytes", n, len(r.Data))}
	}
	props := make([]Property, n)
	extra := 6 * n
	for i := range props {
		id := binary.LittleEndian.Uint16(r.Data[6*i:])
		p := Property{ID: id & 0x3FFF, IsBlip: id&0x4000 != 0, Value: binary.LittleEndian.Uint32(r.Data[6*i+2:])}
		if id&0x8000 != 0 {
			size := int(p.Value)
			if extra+size > len(r.Data) {
				size = len(r.Data) - extra
			}
			p.Complex = append([]byte(nil), r.Data[extra:extra+size]...)
			extra += size
		}
		props[i] = p
	}
	return props, nil
}

// NewOpt encodes an Opt atom from props, which must be sorted by id.
func NewOpt(props []Property) *Record {
	var b, tail []byte
	for _, p := range props {
		id := p.ID
		if p.IsBlip {
			id |= 0x4000
		}
		value := p.Value
		if p.Complex != nil {
			id |= 0x8000
			value = uint32(len(p.Complex))
			tail = append(tail, p.Complex...)
		}
		b = binary.LittleEndian.AppendUint16(b, id)
		b = binary.LittleEndian.AppendUint32(b, value)
	}
	return NewAtom(Opt, 3, len(props), append(b, tail...))
}

// PropertyValue returns the value of property id in an Opt atom.
func PropertyValue(r *Record, id uint16) (uint32, bool) {
	props, err := DecodeOpt(r)
	if err != nil {
		return 0, false
	}
	for _, p := range props {
		if p.ID == id {
			return p.Value, true
		}
	}
	return 0, false
}

// SetPropertyValue sets a simple property in an Opt atom, adding it in id
// order when absent.
func SetPropertyValue(r *Record, id uint16, value uint32, blip bool) error {
	props, err := DecodeOpt(r)
	if err != nil {
		return err
	}
	i := 0
	for ; i < len(props) && props[i].ID < id; i++ {
	}
	if i < len(props) && props[i].ID == id {
		props[i].Value = value
	} else {
		props = append(props[:i], append([]Property{{ID: id, IsBlip: blip, Value: value}}, props[i:]...)...)
	}
	*r = *NewOpt(props)
	return nil
}
