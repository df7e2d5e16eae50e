// Package formula reads and writes BIFF8 parsed formula tokens (ptgs):
// the byte codec, a text renderer and a parser for formula text.
package formula

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/yamitzky/hssf-go/record"
)

// FormulaError reports token bytes or formula text that cannot be
// handled.
type FormulaError struct {
	Message string
}

func (e *FormulaError) Error() string {
	return "formula: " + e.Message
}

func errorf(format string, args ...interface{}) *FormulaError {
	return &FormulaError{Message: fmt.Sprintf(format, args...)}
}

// Base token ids. Operand and function tokens (0x20 and up) carry an
// operand class in bits 5 and 6; use Base to strip it.
const (
	TExp      = 0x01
	TTbl      = 0x02
	TAdd      = 0x03
	TSub      = 0x04
	TMul      = 0x05
	TDiv      = 0x06
	TPower    = 0x07
	TConcat   = 0x08
	TLT       = 0x09
	TLE       = 0x0A
	TEQ       = 0x0B
	TGE       = 0x0C
	TGT       = 0x0D
	TNE       = 0x0E
	TIsect    = 0x0F
	TUnion    = 0x10
	TRange    = 0x11
	TUplus    = 0x12
	TUminus   = 0x13
	TPercent  = 0x14
	TParen    = 0x15
	TMissArg  = 0x16
	TStr      = 0x17
	TExtended = 0x18
	TAttr     = 0x19
	TErr      = 0x1C
	TBool     = 0x1D
	TInt      = 0x1E
	TNum      = 0x1F

	TArray     = 0x20
	TFunc      = 0x21
	TFuncVar   = 0x22
	TName      = 0x23
	TRef       = 0x24
	TArea      = 0x25
	TMemArea   = 0x26
	TMemErr    = 0x27
	TMemNoMem  = 0x28
	TMemFunc   = 0x29
	TRefErr    = 0x2A
	TAreaErr   = 0x2B
	TRefN      = 0x2C
	TAreaN     = 0x2D
	TMemAreaN  = 0x2E
	TMemNoMemN = 0x2F
	TNameX     = 0x39
	TRef3d     = 0x3A
	TArea3d    = 0x3B
	TRefErr3d  = 0x3C
	TAreaErr3d = 0x3D
)

// Operand classes.
const (
	ClassReference = 0x20
	ClassValue     = 0x40
	ClassArray     = 0x60
)

// tAttr option bits.
const (
	AttrVolatile = 0x01
	AttrIf       = 0x02
	AttrChoose   = 0x04
	AttrSkip     = 0x08
	AttrSum      = 0x10
	AttrBaxcel   = 0x20
	AttrSpace    = 0x40
)

// Error codes of tErr and BOOLERR cells.
const (
	ErrNull  = 0x00
	ErrDiv0  = 0x07
	ErrValue = 0x0F
	ErrRef   = 0x17
	ErrName  = 0x1D
	ErrNum   = 0x24
	ErrNA    = 0x2A
)

// ErrorText maps error codes to their display text.
var ErrorText = map[int]string{
	ErrNull:  "#NULL!",
	ErrDiv0:  "#DIV/0!",
	ErrValue: "#VALUE!",
	ErrRef:   "#REF!",
	ErrName:  "#NAME?",
	ErrNum:   "#NUM!",
	ErrNA:    "#N/A",
}

// Base returns the token id without its operand class.
func Base(id byte) byte {
	if id < 0x20 {
		return id
	}
	return id&0x1F | 0x20
}

// Class returns the operand class bits of id, 0 for operators.
func Class(id byte) byte {
	if id < 0x20 {
		return 0
	}
	return id & 0x60
}

// tokenNames holds the names the dumper prints, indexed like tokenSizes.
var tokenNames = []string{
	"Unk00", "Exp", "Tbl", "Add", "Sub", "Mul", "Div", "Power", "Concat", "LT", "LE", "EQ", "GE", "GT", "NE",
	"Isect", "List", "Range", "Uplus", "Uminus", "Percent", "Paren", "MissArg", "Str", "Extended", "Attr",
	"Sheet", "EndSheet", "Err", "Bool", "Int", "Num", "Array", "Func", "FuncVar", "Name", "Ref", "Area",
	"MemArea", "MemErr", "MemNoMem", "MemFunc", "RefErr", "AreaErr", "RefN", "AreaN", "MemAreaN", "MemNoMemN",
	"", "", "", "", "", "", "", "", "FuncCE", "NameX", "Ref3d", "Area3d", "RefErr3d", "AreaErr3d", "", "",
}

// tokenSizes is the BIFF8 encoded size of each base token including its
// id byte; -1 marks variable size, -2 tokens not valid in BIFF8.
var tokenSizes = []int{
	-2, 5, 5, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, -1, -1, -1, -2, -2, 2, 2, 3, 9,
	8, 3, 4, 5, 5, 9, 7, 7, 7, 3, 5, 9, 5, 9, 3, 3, -2, -2, -2, -2, -2, -2, -2, -2, -2, 7, 7, 11, 7, 11, -2, -2,
}

// TokenName returns the mnemonic of a token id, with its class suffix
// (R, V or A) for operand tokens.
func TokenName(id byte) string {
	base := Base(id)
	name := tokenNames[base]
	if name == "" {
		return fmt.Sprintf("Unk%02X", id)
	}
	switch Class(id) {
	case ClassReference:
		return "t" + name + "R"
	case ClassValue:
		return "t" + name + "V"
	case ClassArray:
		return "t" + name + "A"
	}
	return "t" + name
}

// Ptg is one parsed formula token. ID selects which fields are
// meaningful:
//
//	tExp, tTbl          Row, Col of the group's anchor cell
//	tStr                Text
//	tErr, tBool, tInt   Value (error code, 0/1, integer)
//	tNum                Number
//	tAttr               Attr, Value (offset or count), Jumps (tAttrChoose)
//	tFunc, tFuncVar     Func, Args (tFuncVar only), Prompt
//	tName               Index (one based NAME index)
//	tNameX              Sheet (EXTERNSHEET index), Index
//	tRef, tRefN         Row, Col with RowRel, ColRel
//	tArea, tAreaN       Row, Col, Row2, Col2 and their flags
//	tRef3d, tArea3d     as tRef / tArea plus Sheet
//	others              Raw body bytes after the id
//
// For tRefN and tAreaN, relative coordinates are signed offsets from the
// cell the formula is evaluated for.
type Ptg struct {
	ID byte

	Number float64
	Value  int
	Text   string

	Attr  byte
	Jumps []int

	Func   int
	Args   int
	Prompt bool

	Index int
	Sheet int

	Row, Col         int
	Row2, Col2       int
	RowRel, ColRel   bool
	Row2Rel, Col2Rel bool

	Raw []byte
}

// Size returns the encoded size of the token.
func (p *Ptg) Size() int {
	base := Base(p.ID)
	switch base {
	case TStr:
		return 3 + len(record.EncodeCharacters(p.Text, !record.IsCompressible(p.Text)))
	case TAttr:
		if p.Attr&AttrChoose != 0 {
			return 4 + 2*len(p.Jumps)
		}
		return 4
	}
	if n := tokenSizes[base]; n > 0 {
		return n
	}
	return 1 + len(p.Raw)
}

// IsOperand reports whether the token pushes a value in RPN order.
func (p *Ptg) IsOperand() bool {
	switch Base(p.ID) {
	case TExp, TTbl, TMissArg, TStr, TErr, TBool, TInt, TNum, TArray, TName, TRef, TArea,
		TRefErr, TAreaErr, TRefN, TAreaN, TNameX, TRef3d, TArea3d, TRefErr3d, TAreaErr3d:
		return true
	}
	return false
}

// IsArea reports whether the token references a range rather than a cell.
func (p *Ptg) IsArea() bool {
	switch Base(p.ID) {
	case TArea, TAreaN, TArea3d, TAreaErr, TAreaErr3d:
		return true
	}
	return false
}

// String returns the token mnemonic and its main operands, as biffdump
// prints them.
func (p Ptg) String() string {
	name := TokenName(p.ID)
	switch Base(p.ID) {
	case TExp, TTbl:
		return fmt.Sprintf("%s(%d,%d)", name, p.Row, p.Col)
	case TStr:
		return fmt.Sprintf("%s(%q)", name, p.Text)
	case TErr, TBool, TInt:
		return fmt.Sprintf("%s(%d)", name, p.Value)
	case TNum:
		return fmt.Sprintf("%s(%v)", name, p.Number)
	case TAttr:
		return fmt.Sprintf("%s(0x%02X,%d)", name, p.Attr, p.Value)
	case TFunc, TFuncVar:
		return fmt.Sprintf("%s(%s,%d)", name, FunctionName(p.Func), p.Args)
	case TName:
		return fmt.Sprintf("%s(%d)", name, p.Index)
	case TNameX:
		return fmt.Sprintf("%s(%d,%d)", name, p.Sheet, p.Index)
	case TRef, TRefN:
		return fmt.Sprintf("%s(%d,%d)", name, p.Row, p.Col)
	case TArea, TAreaN:
		return fmt.Sprintf("%s(%d,%d:%d,%d)", name, p.Row, p.Col, p.Row2, p.Col2)
	case TRef3d:
		return fmt.Sprintf("%s(%d!%d,%d)", name, p.Sheet, p.Row, p.Col)
	case TArea3d:
		return fmt.Sprintf("%s(%d!%d,%d:%d,%d)", name, p.Sheet, p.Row, p.Col, p.Row2, p.Col2)
	}
	return name
}

// Column field flags of tRef / tArea coordinates.
const (
	colRelFlag = 0x4000
	rowRelFlag = 0x8000
	colMask    = 0x3FFF
)

func decodeCol(v uint16, relative bool) (col int, colRel, rowRel bool) {
	colRel = v&colRelFlag != 0
	rowRel = v&rowRelFlag != 0
	col = int(v & 0xFF)
	if relative && colRel {
		col = int(int8(v & 0xFF))
	}
	return col, colRel, rowRel
}

func decodeRow(v uint16, relative, rowRel bool) int {
	if relative && rowRel {
		return int(int16(v))
	}
	return int(v)
}

func encodeCol(col int, colRel, rowRel bool) uint16 {
	v := uint16(col) & 0xFF
	if colRel {
		v |= colRelFlag
	}
	if rowRel {
		v |= rowRelFlag
	}
	return v
}

// Decode parses token bytes (rgce) into ptgs.
func Decode(rgce []byte) ([]Ptg, error) {
	le := binary.LittleEndian
	var out []Ptg
	pos := 0
	for pos < len(rgce) {
		id := rgce[pos]
		base := Base(id)
		if int(base) >= len(tokenSizes) || tokenSizes[base] == -2 {
			return nil, errorf("unsupported token 0x%02X at offset %d", id, pos)
		}
		p := Ptg{ID: id}
		size := tokenSizes[base]
		switch base {
		case TStr:
			if pos+3 > len(rgce) {
				return nil, errorf("tStr truncated at offset %d", pos)
			}
			n := int(rgce[pos+1])
			wide := rgce[pos+2]&0x01 != 0
			size = 3 + n
			if wide {
				size = 3 + 2*n
			}
			if pos+size > len(rgce) {
				return nil, errorf("tStr of %d characters truncated at offset %d", n, pos)
			}
			p.Text = decodeChars(rgce[pos+3:pos+size], wide)
		case TAttr:
			if pos+4 > len(rgce) {
				return nil, errorf("tAttr truncated at offset %d", pos)
			}
			p.Attr = rgce[pos+1]
			p.Value = int(le.Uint16(rgce[pos+2:]))
			size = 4
			if p.Attr&AttrChoose != 0 {
				size = 4 + 2*(p.Value+1)
				if pos+size > len(rgce) {
					return nil, errorf("tAttrChoose jump table truncated at offset %d", pos)
				}
				for i := 0; i <= p.Value; i++ {
					p.Jumps = append(p.Jumps, int(le.Uint16(rgce[pos+4+2*i:])))
				}
			}
		case TExtended:
			return nil, errorf("unsupported token 0x%02X at offset %d", id, pos)
		}
		if pos+size > len(rgce) {
			return nil, errorf("%s truncated at offset %d", TokenName(id), pos)
		}
		body := rgce[pos+1 : pos+size]
		switch base {
		case TExp, TTbl:
			p.Row, p.Col = int(le.Uint16(body)), int(le.Uint16(body[2:]))
		case TErr, TBool:
			p.Value = int(body[0])
		case TInt:
			p.Value = int(le.Uint16(body))
		case TNum:
			p.Number = math.Float64frombits(le.Uint64(body))
		case TFunc:
			p.Func = int(le.Uint16(body))
			p.Args = FunctionArgs(p.Func)
		case TFuncVar:
			p.Args = int(body[0] & 0x7F)
			p.Prompt = body[0]&0x80 != 0
			p.Func = int(le.Uint16(body[1:]) & 0x7FFF)
		case TName:
			p.Index = int(le.Uint16(body))
		case TNameX:
			p.Sheet, p.Index = int(le.Uint16(body)), int(le.Uint16(body[2:]))
		case TRef, TRefN:
			p.decodeRef(body, base == TRefN)
		case TArea, TAreaN:
			p.decodeArea(body, base == TAreaN)
		case TRef3d:
			p.Sheet = int(le.Uint16(body))
			p.decodeRef(body[2:], false)
		case TArea3d:
			p.Sheet = int(le.Uint16(body))
			p.decodeArea(body[2:], false)
		case TRefErr3d, TAreaErr3d:
			p.Sheet = int(le.Uint16(body))
			p.Raw = append([]byte(nil), body[2:]...)
		case TStr, TAttr:
		default:
			p.Raw = append([]byte(nil), body...)
		}
		out = append(out, p)
		pos += size
	}
	return out, nil
}

func (p *Ptg) decodeRef(b []byte, relative bool) {
	le := binary.LittleEndian
	p.Col, p.ColRel, p.RowRel = decodeCol(le.Uint16(b[2:]), relative)
	p.Row = decodeRow(le.Uint16(b), relative, p.RowRel)
}

func (p *Ptg) decodeArea(b []byte, relative bool) {
	le := binary.LittleEndian
	p.Col, p.ColRel, p.RowRel = decodeCol(le.Uint16(b[4:]), relative)
	p.Col2, p.Col2Rel, p.Row2Rel = decodeCol(le.Uint16(b[6:]), relative)
	p.Row = decodeRow(le.Uint16(b), relative, p.RowRel)
	p.Row2 = decodeRow(le.Uint16(b[2:]), relative, p.Row2Rel)
}

func decodeChars(b []byte, wide bool) string {
	if !wide {
		return record.DecodeCompressed(b)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}

// Encode serializes ptgs to token bytes.
func Encode(tokens []Ptg) []byte {
	le := binary.LittleEndian
	var b []byte
	for i := range tokens {
		p := &tokens[i]
		b = append(b, p.ID)
		switch Base(p.ID) {
		case TExp, TTbl:
			b = le.AppendUint16(b, uint16(p.Row))
			b = le.AppendUint16(b, uint16(p.Col))
		case TStr:
			wide := !record.IsCompressible(p.Text)
			b = append(b, byte(record.CharCount(p.Text)))
			if wide {
				b = append(b, 1)
			} else {
				b = append(b, 0)
			}
			b = append(b, record.EncodeCharacters(p.Text, wide)...)
		case TAttr:
			b = append(b, p.Attr)
			if p.Attr&AttrChoose != 0 {
				b = le.AppendUint16(b, uint16(len(p.Jumps)-1))
				for _, j := range p.Jumps {
					b = le.AppendUint16(b, uint16(j))
				}
			} else {
				b = le.AppendUint16(b, uint16(p.Value))
			}
		case TErr, TBool:
			b = append(b, byte(p.Value))
		case TInt:
			b = le.AppendUint16(b, uint16(p.Value))
		case TNum:
			b = le.AppendUint64(b, math.Float64bits(p.Number))
		case TFunc:
			b = le.AppendUint16(b, uint16(p.Func))
		case TFuncVar:
			argc := byte(p.Args & 0x7F)
			if p.Prompt {
				argc |= 0x80
			}
			b = append(b, argc)
			b = le.AppendUint16(b, uint16(p.Func))
		case TName:
			b = le.AppendUint16(b, uint16(p.Index))
			b = le.AppendUint16(b, 0)
		case TNameX:
			b = le.AppendUint16(b, uint16(p.Sheet))
			b = le.AppendUint16(b, uint16(p.Index))
			b = le.AppendUint16(b, 0)
		case TRef, TRefN:
			b = p.appendRef(b)
		case TArea, TAreaN:
			b = p.appendArea(b)
		case TRef3d:
			b = le.AppendUint16(b, uint16(p.Sheet))
			b = p.appendRef(b)
		case TArea3d:
			b = le.AppendUint16(b, uint16(p.Sheet))
			b = p.appendArea(b)
		case TRefErr3d, TAreaErr3d:
			b = le.AppendUint16(b, uint16(p.Sheet))
			b = append(b, p.rawBody(tokenSizes[Base(p.ID)]-3)...)
		default:
			if n := tokenSizes[Base(p.ID)]; n > 0 {
				b = append(b, p.rawBody(n-1)...)
			} else {
				b = append(b, p.Raw...)
			}
		}
	}
	return b
}

// rawBody returns Raw sized to n, zero filled.
func (p *Ptg) rawBody(n int) []byte {
	body := make([]byte, n)
	copy(body, p.Raw)
	return body
}

func (p *Ptg) appendRef(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint16(b, uint16(p.Row))
	return le.AppendUint16(b, encodeCol(p.Col, p.ColRel, p.RowRel))
}

func (p *Ptg) appendArea(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint16(b, uint16(p.Row))
	b = le.AppendUint16(b, uint16(p.Row2))
	b = le.AppendUint16(b, encodeCol(p.Col, p.ColRel, p.RowRel))
	return le.AppendUint16(b, encodeCol(p.Col2, p.Col2Rel, p.Row2Rel))
}

// Clone returns a copy of tokens sharing no slices with the original.
func Clone(tokens []Ptg) []Ptg {
	out := make([]Ptg, len(tokens))
	for i, p := range tokens {
		p.Jumps = append([]int(nil), p.Jumps...)
		p.Raw = append([]byte(nil), p.Raw...)
		out[i] = p
	}
	return out
}
