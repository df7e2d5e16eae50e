package record

import "math"

// CellValueRecord is implemented by every single-cell value record.
type CellValueRecord interface {
	Record
	Row() int
	Column() int
	XFIndex() int
	SetRow(row int)
	SetColumn(col int)
	SetXFIndex(xf int)
}

// CellHeader is the (row, column, xf) prefix shared by cell records.
type CellHeader struct {
	R  uint16
	C  uint16
	XF uint16
}

func (h *CellHeader) Row() int          { return int(h.R) }
func (h *CellHeader) Column() int       { return int(h.C) }
func (h *CellHeader) XFIndex() int      { return int(h.XF) }
func (h *CellHeader) SetRow(row int)    { h.R = uint16(row) }
func (h *CellHeader) SetColumn(col int) { h.C = uint16(col) }
func (h *CellHeader) SetXFIndex(xf int) { h.XF = uint16(xf) }

func (h *CellHeader) write(out *Output) {
	out.WriteShort(int(h.R))
	out.WriteShort(int(h.C))
	out.WriteShort(int(h.XF))
}

func readCellHeader(in *InputStream) CellHeader {
	return CellHeader{R: in.ReadUShort(), C: in.ReadUShort(), XF: in.ReadUShort()}
}

// NumberRecord holds a floating point cell.
type NumberRecord struct {
	CellHeader
	Value float64
}

func (r *NumberRecord) Sid() uint16 { return XL_NUMBER }

func (r *NumberRecord) Serialize(out *Output) {
	r.write(out)
	out.WriteDouble(r.Value)
}

func (r *NumberRecord) Clone() Record { c := *r; return &c }

func decodeNumber(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &NumberRecord{CellHeader: readCellHeader(in), Value: in.ReadDouble()}, nil
}

// RKRecord holds a number in the compressed RK encoding.
type RKRecord struct {
	CellHeader
	RK uint32
}

func (r *RKRecord) Sid() uint16 { return XL_RK }

func (r *RKRecord) Serialize(out *Output) {
	r.write(out)
	out.WriteInt(int(r.RK))
}

func (r *RKRecord) Clone() Record { c := *r; return &c }

// Value decodes the RK number.
func (r *RKRecord) Value() float64 { return DecodeRK(r.RK) }

func decodeRK(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &RKRecord{CellHeader: readCellHeader(in), RK: in.ReadUInt()}, nil
}

// DecodeRK expands an RK value: bit 0 divides by 100, bit 1 marks a
// 30-bit integer, otherwise the upper 30 bits are the high bits of an
// IEEE double.
func DecodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// MulRKRecord packs several adjacent RK cells of one row.
type MulRKRecord struct {
	R        uint16
	FirstCol uint16
	XFs      []uint16
	RKs      []uint32
}

func (r *MulRKRecord) Sid() uint16 { return XL_MULRK }

func (r *MulRKRecord) Serialize(out *Output) {
	out.WriteShort(int(r.R))
	out.WriteShort(int(r.FirstCol))
	for i := range r.RKs {
		out.WriteShort(int(r.XFs[i]))
		out.WriteInt(int(r.RKs[i]))
	}
	out.WriteShort(int(r.FirstCol) + len(r.RKs) - 1)
}

func (r *MulRKRecord) Clone() Record {
	return &MulRKRecord{R: r.R, FirstCol: r.FirstCol,
		XFs: append([]uint16(nil), r.XFs...), RKs: append([]uint32(nil), r.RKs...)}
}

// Expand returns one NumberRecord per packed cell.
func (r *MulRKRecord) Expand() []*NumberRecord {
	out := make([]*NumberRecord, len(r.RKs))
	for i := range r.RKs {
		out[i] = &NumberRecord{
			CellHeader: CellHeader{R: r.R, C: r.FirstCol + uint16(i), XF: r.XFs[i]},
			Value:      DecodeRK(r.RKs[i]),
		}
	}
	return out
}

func decodeMulRK(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &MulRKRecord{R: in.ReadUShort(), FirstCol: in.ReadUShort()}
	n := (in.Remaining() - 2) / 6
	for i := 0; i < n; i++ {
		r.XFs = append(r.XFs, in.ReadUShort())
		r.RKs = append(r.RKs, in.ReadUInt())
	}
	last := in.ReadUShort()
	if int(last) != int(r.FirstCol)+n-1 {
		return nil, newFormatError(XL_MULRK, in.Offset(), "last column %d does not match %d cells from %d", last, n, r.FirstCol)
	}
	return r, nil
}

// LabelRecord is an inline (non-shared) string cell, written by old
// producers. The workbook model converts these to LABELSST.
type LabelRecord struct {
	CellHeader
	Value string
}

func (r *LabelRecord) Sid() uint16 { return XL_LABEL }

func (r *LabelRecord) Serialize(out *Output) {
	r.write(out)
	out.WriteUnicodeString(r.Value, false)
}

func (r *LabelRecord) Clone() Record { c := *r; return &c }

func decodeLabel(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &LabelRecord{CellHeader: readCellHeader(in), Value: in.ReadUnicodeString(false)}, nil
}

// LabelSSTRecord is a string cell referencing the shared string table.
type LabelSSTRecord struct {
	CellHeader
	SSTIndex uint32
}

func (r *LabelSSTRecord) Sid() uint16 { return XL_LABELSST }

func (r *LabelSSTRecord) Serialize(out *Output) {
	r.write(out)
	out.WriteInt(int(r.SSTIndex))
}

func (r *LabelSSTRecord) Clone() Record { c := *r; return &c }

func decodeLabelSST(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &LabelSSTRecord{CellHeader: readCellHeader(in), SSTIndex: in.ReadUInt()}, nil
}

// BlankRecord is a formatted cell without a value.
type BlankRecord struct {
	CellHeader
}

func (r *BlankRecord) Sid() uint16           { return XL_BLANK }
func (r *BlankRecord) Serialize(out *Output) { r.write(out) }
func (r *BlankRecord) Clone() Record         { c := *r; return &c }

func decodeBlank(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &BlankRecord{CellHeader: readCellHeader(in)}, nil
}

// MulBlankRecord packs several adjacent blank cells of one row.
type MulBlankRecord struct {
	R        uint16
	FirstCol uint16
	XFs      []uint16
}

func (r *MulBlankRecord) Sid() uint16 { return XL_MULBLANK }

func (r *MulBlankRecord) Serialize(out *Output) {
	out.WriteShort(int(r.R))
	out.WriteShort(int(r.FirstCol))
	for _, xf := range r.XFs {
		out.WriteShort(int(xf))
	}
	out.WriteShort(int(r.FirstCol) + len(r.XFs) - 1)
}

func (r *MulBlankRecord) Clone() Record {
	return &MulBlankRecord{R: r.R, FirstCol: r.FirstCol, XFs: append([]uint16(nil), r.XFs...)}
}

// Expand returns one BlankRecord per packed cell.
func (r *MulBlankRecord) Expand() []*BlankRecord {
	out := make([]*BlankRecord, len(r.XFs))
	for i, xf := range r.XFs {
		out[i] = &BlankRecord{CellHeader{R: r.R, C: r.FirstCol + uint16(i), XF: xf}}
	}
	return out
}

func decodeMulBlank(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &MulBlankRecord{R: in.ReadUShort(), FirstCol: in.ReadUShort()}
	n := (in.Remaining() - 2) / 2
	for i := 0; i < n; i++ {
		r.XFs = append(r.XFs, in.ReadUShort())
	}
	last := in.ReadUShort()
	if int(last) != int(r.FirstCol)+n-1 {
		return nil, newFormatError(XL_MULBLANK, in.Offset(), "last column %d does not match %d cells from %d", last, n, r.FirstCol)
	}
	return r, nil
}

// BoolErrRecord holds a boolean or error cell.
type BoolErrRecord struct {
	CellHeader
	Value   uint8
	IsError bool
}

func (r *BoolErrRecord) Sid() uint16 { return XL_BOOLERR }

func (r *BoolErrRecord) Serialize(out *Output) {
	r.write(out)
	out.WriteUByte(int(r.Value))
	if r.IsError {
		out.WriteUByte(1)
	} else {
		out.WriteUByte(0)
	}
}

func (r *BoolErrRecord) Clone() Record { c := *r; return &c }

// BoolValue reports the boolean value of a non-error cell.
func (r *BoolErrRecord) BoolValue() bool { return !r.IsError && r.Value != 0 }

func decodeBoolErr(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &BoolErrRecord{CellHeader: readCellHeader(in), Value: in.ReadUByte()}
	r.IsError = in.ReadUByte() != 0
	return r, nil
}

func init() {
	register(XL_NUMBER, decodeNumber)
	register(XL_RK, decodeRK)
	register(XL_MULRK, decodeMulRK)
	register(XL_LABEL, decodeLabel)
	register(XL_LABELSST, decodeLabelSST)
	register(XL_BLANK, decodeBlank)
	register(XL_MULBLANK, decodeMulBlank)
	register(XL_BOOLERR, decodeBoolErr)
}
