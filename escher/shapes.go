package escher

// NewDrawing builds an empty sheet drawing: a DgContainer with the Dg atom
// and the patriarch group shape spid.
func NewDrawing(dgID int, spid uint32) *Record {
	spgr := NewAtom(Spgr, 1, 0, make([]byte, 16))
	patriarch := NewContainer(SpContainer, spgr, NewSp(ShapeNotPrimitive, spid, SpGroup|SpPatriarch))
	return NewContainer(DgContainer,
		NewDg(DgData{DrawingID: dgID, NumShapes: 1, LastSpid: spid}),
		NewContainer(SpgrContainer, patriarch),
	)
}

// NewShape builds the SpContainer of a top-level shape anchored to cells.
// The trailing ClientData atom is where the shape's OBJ record attaches.
func NewShape(shapeType int, spid uint32, props []Property, anchor ClientAnchorData) *Record {
	return NewContainer(SpContainer,
		NewSp(shapeType, spid, SpHaveAnchor|SpHaveSpt),
		NewOpt(props),
		anchor.Record(),
		NewAtom(ClientData, 0, 0, nil),
	)
}

// PictureProperties returns the Opt properties of a picture frame showing
// store entry pib (one based).
func PictureProperties(pib int) []Property {
	return []Property{
		{ID: PropLockAgainstGrouping, Value: 0x00800080},
		{ID: PropBlip, IsBlip: true, Value: uint32(pib)},
		{ID: PropNoFillHitTest, Value: 0x00100000},
		{ID: PropNoLine, Value: 0x00080000},
	}
}

// SimpleShapeProperties returns the Opt properties of a filled, outlined
// autoshape.
func SimpleShapeProperties() []Property {
	return []Property{
		{ID: PropLockAgainstGrouping, Value: 0x00040000},
		{ID: PropFillColor, Value: 0x08000009},
		{ID: PropNoFillHitTest, Value: 0x00100010},
		{ID: PropLineColor, Value: 0x08000040},
		{ID: PropNoLine, Value: 0x00080008},
	}
}

// Shapes returns the top-level shape containers of a DgContainer, skipping
// the patriarch.
func Shapes(dg *Record) []*Record {
	group := dg.Child(SpgrContainer)
	if group == nil {
		return nil
	}
	var out []*Record
	for _, c := range group.Children {
		if c.Type == SpgrContainer {
			out = append(out, c)
			continue
		}
		if c.Type != SpContainer {
			continue
		}
		if sp, err := DecodeSp(c.Child(Sp)); err == nil && sp.Flags&SpPatriarch != 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// AddShape appends a shape to the drawing and updates the Dg counters.
func AddShape(dg *Record, shape *Record, spid uint32) {
	group := dg.Child(SpgrContainer)
	if group == nil {
		group = NewContainer(SpgrContainer)
		dg.Children = append(dg.Children, group)
	}
	group.Children = append(group.Children, shape)
	if d, err := DecodeDg(dg.Child(Dg)); err == nil {
		d.NumShapes++
		d.LastSpid = max(d.LastSpid, spid)
		*dg.Child(Dg) = *NewDg(d)
	}
}
