package record

import (
	"encoding/binary"
	"math"
)

// Expr is an encoded formula: the parsed token bytes (rgce) and the
// trailing constant data (rgcb) that array constants refer to.
type Expr struct {
	Tokens []byte
	Extra  []byte
}

func (e Expr) clone() Expr {
	return Expr{Tokens: append([]byte(nil), e.Tokens...), Extra: append([]byte(nil), e.Extra...)}
}

func readExpr(in *InputStream) Expr {
	n := int(in.ReadUShort())
	e := Expr{Tokens: in.ReadBytes(n)}
	e.Extra = in.ReadRemainder()
	return e
}

func (e Expr) write(out *Output) {
	out.WriteShort(len(e.Tokens))
	out.Write(e.Tokens)
	out.Write(e.Extra)
}

// Cached result kinds of a FORMULA record.
const (
	CachedNumber = iota
	CachedString
	CachedBool
	CachedError
	CachedEmptyString
)

// FORMULA option bits.
const (
	FormulaAlwaysCalc = 0x0001
	FormulaCalcOnLoad = 0x0002
	FormulaShared     = 0x0008
)

// FormulaRecord is a formula cell with its cached result.
type FormulaRecord struct {
	CellHeader

	// Result is the raw 8-byte cached value.
	Result [8]byte

	Options uint16
	Chn     uint32
	Expr    Expr
}

// NewFormula creates a formula cell with a cached numeric result of 0.
func NewFormula(row, col, xf int, expr Expr) *FormulaRecord {
	r := &FormulaRecord{Expr: expr}
	r.SetRow(row)
	r.SetColumn(col)
	r.SetXFIndex(xf)
	r.SetCachedNumber(0)
	return r
}

func (r *FormulaRecord) Sid() uint16 { return XL_FORMULA }

func (r *FormulaRecord) Serialize(out *Output) {
	r.write(out)
	out.Write(r.Result[:])
	out.WriteShort(int(r.Options))
	out.WriteInt(int(r.Chn))
	r.Expr.write(out)
}

func (r *FormulaRecord) Clone() Record {
	c := *r
	c.Expr = r.Expr.clone()
	return &c
}

// IsShared reports whether the cell belongs to a shared formula group.
func (r *FormulaRecord) IsShared() bool { return r.Options&FormulaShared != 0 }

// SetShared sets or clears the shared formula flag.
func (r *FormulaRecord) SetShared(v bool) {
	if v {
		r.Options |= FormulaShared
	} else {
		r.Options &^= FormulaShared
	}
}

// CachedType returns one of the Cached* kinds.
func (r *FormulaRecord) CachedType() int {
	if r.Result[6] != 0xFF || r.Result[7] != 0xFF {
		return CachedNumber
	}
	switch r.Result[0] {
	case 0:
		return CachedString
	case 1:
		return CachedBool
	case 2:
		return CachedError
	case 3:
		return CachedEmptyString
	}
	return CachedNumber
}

// CachedNumber returns the cached numeric result.
func (r *FormulaRecord) CachedNumber() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.Result[:]))
}

// CachedBool returns the cached boolean result.
func (r *FormulaRecord) CachedBool() bool { return r.Result[2] != 0 }

// CachedError returns the cached error code.
func (r *FormulaRecord) CachedError() uint8 { return r.Result[2] }

func (r *FormulaRecord) SetCachedNumber(v float64) {
	binary.LittleEndian.PutUint64(r.Result[:], math.Float64bits(v))
}

func (r *FormulaRecord) setSpecial(kind, value byte) {
	r.Result = [8]byte{kind, 0, value, 0, 0, 0, 0xFF, 0xFF}
}

// SetCachedString marks the result as a string held in the STRING
// record that follows.
func (r *FormulaRecord) SetCachedString() { r.setSpecial(0, 0) }

func (r *FormulaRecord) SetCachedBool(v bool) {
	if v {
		r.setSpecial(1, 1)
	} else {
		r.setSpecial(1, 0)
	}
}

func (r *FormulaRecord) SetCachedError(code uint8) { r.setSpecial(2, code) }

func (r *FormulaRecord) SetCachedEmptyString() { r.setSpecial(3, 0) }

func decodeFormula(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &FormulaRecord{CellHeader: readCellHeader(in)}
	copy(r.Result[:], in.ReadBytes(8))
	r.Options = in.ReadUShort()
	r.Chn = in.ReadUInt()
	r.Expr = readExpr(in)
	return r, nil
}

// StringRecord holds the cached string result of the preceding formula.
type StringRecord struct {
	Value string
}

func (r *StringRecord) Sid() uint16 { return XL_STRING }

func (r *StringRecord) Serialize(out *Output) { out.WriteUnicodeString(r.Value, false) }

func (r *StringRecord) SerializeContinued(out *ContinuableOutput) {
	wide := !IsCompressible(r.Value)
	out.WriteStringHeader(CharCount(r.Value), wide, 0, 0)
	out.WriteStringData(r.Value, wide)
}

func (r *StringRecord) Clone() Record { c := *r; return &c }

func decodeString(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &StringRecord{Value: in.ReadUnicodeString(false)}, nil
}

// ArrayRecord holds the formula of an array formula group.
type ArrayRecord struct {
	Range   CellRange
	Options uint16
	Chn     uint32
	Expr    Expr
}

func (r *ArrayRecord) Sid() uint16 { return XL_ARRAY }

func (r *ArrayRecord) Serialize(out *Output) {
	writeRange8(out, r.Range)
	out.WriteShort(int(r.Options))
	out.WriteInt(int(r.Chn))
	r.Expr.write(out)
}

func (r *ArrayRecord) Clone() Record {
	c := *r
	c.Expr = r.Expr.clone()
	return &c
}

func decodeArray(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &ArrayRecord{Range: readRange8(in)}
	r.Options = in.ReadUShort()
	r.Chn = in.ReadUInt()
	r.Expr = readExpr(in)
	return r, nil
}

// SharedFormulaRecord holds the relative formula shared by a block of
// cells. Its tokens use tRefN/tAreaN offsets from each member cell.
type SharedFormulaRecord struct {
	Range    CellRange
	Reserved uint8
	Uses     uint8
	Expr     Expr
}

func (r *SharedFormulaRecord) Sid() uint16 { return XL_SHRFMLA }

func (r *SharedFormulaRecord) Serialize(out *Output) {
	writeRange8(out, r.Range)
	out.WriteUByte(int(r.Reserved))
	out.WriteUByte(int(r.Uses))
	r.Expr.write(out)
}

func (r *SharedFormulaRecord) Clone() Record {
	c := *r
	c.Expr = r.Expr.clone()
	return &c
}

func decodeSharedFormula(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &SharedFormulaRecord{Range: readRange8(in)}
	r.Reserved = in.ReadUByte()
	r.Uses = in.ReadUByte()
	r.Expr = readExpr(in)
	return r, nil
}

func init() {
	register(XL_FORMULA, decodeFormula)
	register(XL_STRING, decodeString)
	register(XL_ARRAY, decodeArray)
	register(XL_SHRFMLA, decodeSharedFormula)
}
