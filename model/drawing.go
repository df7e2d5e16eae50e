package model

import (
	"encoding/binary"

	"github.com/yamitzky/hssf-go/escher"
	"github.com/yamitzky/hssf-go/record"
)

// DrawingAggregate is a sheet's escher drawing together with the OBJ and
// TXO records that follow each shape's client atom.
type DrawingAggregate struct {
	// Dg is the DgContainer.
	Dg *escher.Record

	// objects maps ClientData and ClientTextbox atoms to the records
	// written after them.
	objects map[*escher.Record][]record.Record

	// raw holds the records verbatim when they could not be parsed.
	raw []record.Record
}

func isDrawingSid(sid uint16) bool {
	switch sid {
	case record.XL_MSO_DRAWING, record.XL_OBJ, record.XL_TXO, record.XL_CONTINUE, record.XL_MSO_DRAWING_SELECTION:
		return true
	}
	return false
}

// readDrawing consumes the drawing records at the stream position: the
// MSODRAWING chunks, their OBJ/TXO records and any chart substreams
// embedded after an OBJ.
func readDrawing(s *RecordStream, opts *Options) *DrawingAggregate {
	var recs []record.Record
	for s.HasNext() {
		sid := s.PeekSid()
		if sid == record.XL_BOF && len(recs) > 0 && recs[len(recs)-1].Sid() == record.XL_OBJ {
			recs = append(recs, s.Substream()...)
			continue
		}
		if !isDrawingSid(sid) {
			break
		}
		recs = append(recs, s.Next())
	}
	d, err := parseDrawing(recs)
	if err != nil {
		opts.warnf("drawing kept verbatim: %v", err)
		return &DrawingAggregate{raw: recs}
	}
	return d
}

func parseDrawing(recs []record.Record) (*DrawingAggregate, error) {
	var data []byte
	var groups [][]record.Record
	var selection []record.Record
	inDrawing := false
	for i := 0; i < len(recs); i++ {
		r := recs[i]
		switch r.Sid() {
		case record.XL_MSO_DRAWING:
			data = append(data, r.(*record.DrawingRecord).Data...)
			inDrawing = true
		case record.XL_CONTINUE:
			if inDrawing {
				data = append(data, r.(*record.ContinueRecord).Data...)
			} else if len(groups) > 0 {
				groups[len(groups)-1] = append(groups[len(groups)-1], r)
			}
		case record.XL_MSO_DRAWING_SELECTION:
			selection = append(selection, r)
		case record.XL_BOF:
			// Embedded chart substream: it belongs to the OBJ before it.
			sub := NewRecordStream(recs, i).Substream()
			groups[len(groups)-1] = append(groups[len(groups)-1], sub...)
			i += len(sub) - 1
		default:
			groups = append(groups, []record.Record{r})
			inDrawing = false
		}
	}
	top, err := escher.Parse(data)
	if err != nil {
		return nil, err
	}
	if len(top) != 1 || top[0].Type != escher.DgContainer || len(selection) > 0 {
		return nil, &escher.FormatError{Message: "drawing is not a single DgContainer"}
	}
	var clients []*escher.Record
	top[0].Walk(func(x *escher.Record) bool {
		if x.Type == escher.ClientData || x.Type == escher.ClientTextbox {
			clients = append(clients, x)
		}
		return true
	})
	if len(clients) != len(groups) {
		return nil, &escher.FormatError{Message: "client atoms do not match OBJ/TXO records"}
	}
	d := &DrawingAggregate{Dg: top[0], objects: map[*escher.Record][]record.Record{}}
	for i, c := range clients {
		d.objects[c] = groups[i]
	}
	return d, nil
}

// NewDrawingAggregate wraps a new, empty DgContainer.
func NewDrawingAggregate(dg *escher.Record) *DrawingAggregate {
	return &DrawingAggregate{Dg: dg, objects: map[*escher.Record][]record.Record{}}
}

// IsRaw reports whether the drawing is only kept verbatim.
func (d *DrawingAggregate) IsRaw() bool { return d.Dg == nil }

// AddShape appends shape to the drawing. The OBJ record is written
// after the shape's ClientData atom.
func (d *DrawingAggregate) AddShape(shape *escher.Record, spid uint32, obj *record.ObjRecord) {
	escher.AddShape(d.Dg, shape, spid)
	if c := shape.Find(escher.ClientData); c != nil && obj != nil {
		d.objects[c] = []record.Record{obj}
	}
}

// Object returns the OBJ record attached to shape, or nil.
func (d *DrawingAggregate) Object(shape *escher.Record) *record.ObjRecord {
	for _, c := range []uint16{escher.ClientData, escher.ClientTextbox} {
		if a := shape.Find(c); a != nil {
			for _, r := range d.objects[a] {
				if obj, ok := r.(*record.ObjRecord); ok {
					return obj
				}
			}
		}
	}
	return nil
}

// records splits the drawing back into MSODRAWING chunks, each ending
// with a client atom and followed by that atom's records.
func (d *DrawingAggregate) records() []record.Record {
	if d.Dg == nil {
		return d.raw
	}
	type cut struct {
		end  int
		objs []record.Record
	}
	var cuts []cut
	data := escher.SerializeFunc([]*escher.Record{d.Dg}, func(r *escher.Record, end int) {
		if r.Type == escher.ClientData || r.Type == escher.ClientTextbox {
			cuts = append(cuts, cut{end, d.objects[r]})
		}
	})
	var out []record.Record
	pos := 0
	for _, c := range cuts {
		out = append(out, &record.DrawingRecord{Data: data[pos:c.end]})
		out = append(out, c.objs...)
		pos = c.end
	}
	if pos < len(data) {
		out = append(out, &record.DrawingRecord{Data: data[pos:]})
	}
	return out
}

// clone deep-copies the drawing. Object records follow their atoms.
func (d *DrawingAggregate) clone() *DrawingAggregate {
	if d.Dg == nil {
		c := &DrawingAggregate{}
		for _, r := range d.raw {
			c.raw = append(c.raw, r.Clone())
		}
		return c
	}
	c := NewDrawingAggregate(d.Dg.Clone())
	var src, dst []*escher.Record
	collect := func(into *[]*escher.Record) func(*escher.Record) bool {
		return func(x *escher.Record) bool {
			if x.Type == escher.ClientData || x.Type == escher.ClientTextbox {
				*into = append(*into, x)
			}
			return true
		}
	}
	d.Dg.Walk(collect(&src))
	c.Dg.Walk(collect(&dst))
	for i, a := range src {
		for _, r := range d.objects[a] {
			c.objects[dst[i]] = append(c.objects[dst[i]], r.Clone())
		}
	}
	return c
}

// Drawing group

// DrawingGroup returns the DggContainer, or nil when the workbook has no
// drawings.
func (w *Workbook) DrawingGroup() *escher.Record { return w.drawingGroup }

func (w *Workbook) ensureDrawingGroup() *escher.Record {
	if w.drawingGroup != nil {
		return w.drawingGroup
	}
	opt := escher.NewOpt([]escher.Property{
		{ID: 0x00BF, Value: 0x00080008},
		{ID: escher.PropFillColor, Value: 0x08000041},
		{ID: escher.PropLineColor, Value: 0x08000040},
	})
	colors := make([]byte, 0, 16)
	for _, c := range []uint32{0x0800000D, 0x0800000C, 0x08000017, 0x100000F7} {
		colors = binary.LittleEndian.AppendUint32(colors, c)
	}
	w.drawingGroup = escher.NewContainer(escher.DggContainer,
		escher.EncodeDgg(&escher.DggData{ShapeIDMax: 1024}),
		opt,
		escher.NewAtom(escher.SplitMenuColors, 0, 4, colors),
	)
	return w.drawingGroup
}

func (w *Workbook) updateDgg(fn func(d *escher.DggData)) {
	g := w.ensureDrawingGroup()
	for i, c := range g.Children {
		if c.Type != escher.Dgg {
			continue
		}
		d, err := escher.DecodeDgg(c)
		if err != nil {
			d = &escher.DggData{ShapeIDMax: 1024}
		}
		fn(d)
		g.Children[i] = escher.EncodeDgg(d)
		return
	}
	d := &escher.DggData{ShapeIDMax: 1024}
	fn(d)
	g.Children = append([]*escher.Record{escher.EncodeDgg(d)}, g.Children...)
}

// NewDrawing allocates a drawing id and the patriarch shape id for a
// sheet drawing and returns the empty DgContainer.
func (w *Workbook) NewDrawing() (dgID int, dg *escher.Record) {
	var spid uint32
	w.updateDgg(func(d *escher.DggData) {
		dgID = d.MaxDrawingID() + 1
		d.DrawingSaved++
		spid = d.AllocateShapeID(dgID)
	})
	return dgID, escher.NewDrawing(dgID, spid)
}

// AllocateShapeID reserves a shape id in drawing dgID.
func (w *Workbook) AllocateShapeID(dgID int) uint32 {
	var spid uint32
	w.updateDgg(func(d *escher.DggData) { spid = d.AllocateShapeID(dgID) })
	return spid
}

func (w *Workbook) blipStore() *escher.Record {
	g := w.ensureDrawingGroup()
	if s := g.Child(escher.BStoreContainer); s != nil {
		return s
	}
	s := escher.NewContainer(escher.BStoreContainer)
	// The store goes right after the Dgg atom.
	g.Children = append(g.Children[:1], append([]*escher.Record{s}, g.Children[1:]...)...)
	return s
}

// AddPicture stores picture bytes of blip type t and returns the one
// based store index. Identical pictures share one entry.
func (w *Workbook) AddPicture(t int, data []byte) int {
	store := w.blipStore()
	uid := escher.UID(data)
	for i, r := range store.Children {
		if bse, err := escher.DecodeBSE(r); err == nil && bse.UID == uid {
			bse.RefCount++
			store.Children[i] = bse.Record()
			return i + 1
		}
	}
	store.Children = append(store.Children, escher.NewPictureBSE(t, data).Record())
	store.SetInstance(len(store.Children))
	return len(store.Children)
}

// Pictures returns the decoded picture store entries.
func (w *Workbook) Pictures() []*escher.BSEData {
	if w.drawingGroup == nil {
		return nil
	}
	store := w.drawingGroup.Child(escher.BStoreContainer)
	if store == nil {
		return nil
	}
	var out []*escher.BSEData
	for _, r := range store.Children {
		if bse, err := escher.DecodeBSE(r); err == nil {
			out = append(out, bse)
		} else {
			w.opts.warnf("skipping unreadable picture store entry: %v", err)
		}
	}
	return out
}

// Picture returns store entry pib (one based), or nil.
func (w *Workbook) Picture(pib int) *escher.BSEData {
	pics := w.Pictures()
	if pib < 1 || pib > len(pics) {
		return nil
	}
	return pics[pib-1]
}

func (w *Workbook) retainPicture(pib int) {
	store := w.blipStore()
	if pib < 1 || pib > len(store.Children) {
		return
	}
	if bse, err := escher.DecodeBSE(store.Children[pib-1]); err == nil {
		bse.RefCount++
		store.Children[pib-1] = bse.Record()
	}
}
