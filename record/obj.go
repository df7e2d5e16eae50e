package record

import "encoding/binary"

// OBJ sub-record types.
const (
	FtEnd      = 0x0000
	FtMacro    = 0x0004
	FtButton   = 0x0005
	FtGmo      = 0x0006
	FtCf       = 0x0007
	FtPioGrbit = 0x0008
	FtPictFmla = 0x0009
	FtCbls     = 0x000A
	FtRbo      = 0x000B
	FtSbs      = 0x000C
	FtNts      = 0x000D
	FtSbsFmla  = 0x000E
	FtGboData  = 0x000F
	FtEdoData  = 0x0010
	FtRboData  = 0x0011
	FtCblsData = 0x0012
	FtLbsData  = 0x0013
	FtCblsFmla = 0x0014
	FtCmo      = 0x0015
)

// Object types of the ftCmo sub-record.
const (
	ObjGroup     = 0x00
	ObjLine      = 0x01
	ObjRectangle = 0x02
	ObjOval      = 0x03
	ObjArc       = 0x04
	ObjChart     = 0x05
	ObjText      = 0x06
	ObjButton    = 0x07
	ObjPicture   = 0x08
	ObjPolygon   = 0x09
	ObjCheckBox  = 0x0B
	ObjComment   = 0x19
	ObjMSOffice  = 0x1E
)

// SubRecord is one typed chunk of an OBJ record.
type SubRecord struct {
	Type uint16
	Data []byte
}

// CommonObjectData is the decoded ftCmo sub-record.
type CommonObjectData struct {
	ObjectType uint16
	ObjectID   uint16
	Options    uint16
	Reserved   [12]byte
}

func (c *CommonObjectData) encode() []byte {
	b := make([]byte, 18)
	binary.LittleEndian.PutUint16(b, c.ObjectType)
	binary.LittleEndian.PutUint16(b[2:], c.ObjectID)
	binary.LittleEndian.PutUint16(b[4:], c.Options)
	copy(b[6:], c.Reserved[:])
	return b
}

// ObjRecord describes a drawing object (picture, shape, comment, chart).
// It follows the MSODRAWING record holding the object's client data.
type ObjRecord struct {
	SubRecords []SubRecord

	// Padding follows the ftEnd sub-record.
	Padding []byte

	// Raw holds the whole payload when the sub-records could not be
	// parsed and SubRecordsKeepRaw was in effect.
	Raw []byte
}

// NewObj creates an OBJ record of the given type and id with the
// sub-records Excel writes for it.
func NewObj(objType, id int) *ObjRecord {
	cmo := &CommonObjectData{ObjectType: uint16(objType), ObjectID: uint16(id), Options: 0x6011}
	r := &ObjRecord{SubRecords: []SubRecord{{Type: FtCmo, Data: cmo.encode()}}}
	switch objType {
	case ObjPicture:
		r.SubRecords = append(r.SubRecords,
			SubRecord{Type: FtCf, Data: []byte{0xFF, 0xFF}},
			SubRecord{Type: FtPioGrbit, Data: []byte{0x01, 0x00}})
	case ObjComment:
		cmo.Options = 0x4011
		r.SubRecords[0].Data = cmo.encode()
		r.SubRecords = append(r.SubRecords, SubRecord{Type: FtNts, Data: make([]byte, 22)})
	}
	r.SubRecords = append(r.SubRecords, SubRecord{Type: FtEnd})
	return r
}

// Common returns the decoded ftCmo sub-record, or nil.
func (r *ObjRecord) Common() *CommonObjectData {
	for _, s := range r.SubRecords {
		if s.Type == FtCmo && len(s.Data) >= 18 {
			c := &CommonObjectData{
				ObjectType: binary.LittleEndian.Uint16(s.Data),
				ObjectID:   binary.LittleEndian.Uint16(s.Data[2:]),
				Options:    binary.LittleEndian.Uint16(s.Data[4:]),
			}
			copy(c.Reserved[:], s.Data[6:18])
			return c
		}
	}
	return nil
}

// SetObjectID rewrites the id in the ftCmo sub-record.
func (r *ObjRecord) SetObjectID(id int) {
	for i, s := range r.SubRecords {
		if s.Type == FtCmo && len(s.Data) >= 4 {
			binary.LittleEndian.PutUint16(r.SubRecords[i].Data[2:], uint16(id))
		}
	}
}

func (r *ObjRecord) Sid() uint16 { return XL_OBJ }

func (r *ObjRecord) Serialize(out *Output) {
	if r.Raw != nil {
		out.Write(r.Raw)
		return
	}
	for _, s := range r.SubRecords {
		out.WriteShort(int(s.Type))
		out.WriteShort(len(s.Data))
		out.Write(s.Data)
	}
	out.Write(r.Padding)
}

func (r *ObjRecord) Clone() Record {
	c := &ObjRecord{Padding: append([]byte(nil), r.Padding...)}
	if r.Raw != nil {
		c.Raw = append([]byte(nil), r.Raw...)
	}
	for _, s := range r.SubRecords {
		c.SubRecords = append(c.SubRecords, SubRecord{Type: s.Type, Data: append([]byte(nil), s.Data...)})
	}
	return c
}

// ParseSubRecords splits an OBJ payload into sub-records. The sequence
// must start with ftCmo and end with ftEnd; only zero padding may follow.
func ParseSubRecords(data []byte) ([]SubRecord, []byte, error) {
	var subs []SubRecord
	pos := 0
	for {
		if pos+4 > len(data) {
			return nil, nil, &SubRecordError{Message: "sub-record list ends without ftEnd"}
		}
		ft := binary.LittleEndian.Uint16(data[pos:])
		cb := int(binary.LittleEndian.Uint16(data[pos+2:]))
		pos += 4
		if len(subs) == 0 && ft != FtCmo {
			return nil, nil, &SubRecordError{Type: ft, Message: "first sub-record is not ftCmo"}
		}
		if pos+cb > len(data) {
			return nil, nil, &SubRecordError{Type: ft, Message: "declared size runs past end of record"}
		}
		subs = append(subs, SubRecord{Type: ft, Data: append([]byte(nil), data[pos:pos+cb]...)})
		pos += cb
		if ft == FtEnd {
			break
		}
	}
	padding := data[pos:]
	for _, b := range padding {
		if b != 0 {
			return nil, nil, &SubRecordError{Type: FtEnd, Message: "non-zero data after ftEnd"}
		}
	}
	return subs, append([]byte(nil), padding...), nil
}

func decodeObj(in *InputStream, opts *DecodeOptions) (Record, error) {
	data := in.ReadRemainder()
	subs, padding, err := ParseSubRecords(data)
	if err != nil {
		if opts.policy() == SubRecordsReject {
			return nil, newFormatError(XL_OBJ, in.Offset(), "%v", err)
		}
		opts.warnf("keeping malformed OBJ at offset %d as raw bytes: %v", in.Offset(), err)
		return &ObjRecord{Raw: data}, nil
	}
	return &ObjRecord{SubRecords: subs, Padding: padding}, nil
}

// DrawingRecord (MSODRAWING) carries a slice of a sheet's escher stream.
type DrawingRecord struct {
	Data []byte
}

func (r *DrawingRecord) Sid() uint16           { return XL_MSO_DRAWING }
func (r *DrawingRecord) Serialize(out *Output) { out.Write(r.Data) }
func (r *DrawingRecord) Clone() Record {
	return &DrawingRecord{Data: append([]byte(nil), r.Data...)}
}

// DrawingGroupRecord (MSODRAWINGGROUP) carries the workbook's escher
// drawing group: the Dgg and the picture store.
type DrawingGroupRecord struct {
	Data []byte
}

func (r *DrawingGroupRecord) Sid() uint16           { return XL_MSO_DRAWING_GROUP }
func (r *DrawingGroupRecord) Serialize(out *Output) { out.Write(r.Data) }
func (r *DrawingGroupRecord) Clone() Record {
	return &DrawingGroupRecord{Data: append([]byte(nil), r.Data...)}
}

func init() {
	register(XL_OBJ, decodeObj)
	register(XL_MSO_DRAWING, func(in *InputStream, _ *DecodeOptions) (Record, error) {
		return &DrawingRecord{Data: in.ReadRemainder()}, nil
	})
	register(XL_MSO_DRAWING_GROUP, func(in *InputStream, _ *DecodeOptions) (Record, error) {
		return &DrawingGroupRecord{Data: in.ReadAllContinued()}, nil
	})
}
