package formula

import (
	"encoding/binary"
	"math"
	"strings"
)

// Array constant value types.
const (
	arrayEmpty  = 0x00
	arrayNumber = 0x01
	arrayString = 0x02
	arrayBool   = 0x04
	arrayError  = 0x10
)

// ArrayConstant is the decoded value grid of a tArray token. Values hold
// float64, string, bool, ErrorValue or nil for empty entries, row by
// row.
type ArrayConstant struct {
	Rows, Cols int
	Values     []interface{}
}

// ErrorValue is an error literal inside an array constant.
type ErrorValue int

func (e ErrorValue) String() string { return errorText(int(e)) }

// DecodeArrayConstant reads one array constant from the start of extra,
// the data trailing a formula's tokens, and returns it with the number
// of bytes it used.
func DecodeArrayConstant(extra []byte) (*ArrayConstant, int, error) {
	le := binary.LittleEndian
	if len(extra) < 3 {
		return nil, 0, errorf("array constant header truncated")
	}
	a := &ArrayConstant{Cols: int(extra[0]) + 1, Rows: int(le.Uint16(extra[1:])) + 1}
	pos := 3
	n := a.Rows * a.Cols
	a.Values = make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		if pos >= len(extra) {
			return nil, 0, errorf("array constant truncated after %d of %d values", i, n)
		}
		typ := extra[pos]
		pos++
		if typ == arrayString {
			if pos+3 > len(extra) {
				return nil, 0, errorf("array string truncated at offset %d", pos)
			}
			cch := int(le.Uint16(extra[pos:]))
			wide := extra[pos+2]&0x01 != 0
			size := cch
			if wide {
				size *= 2
			}
			pos += 3
			if pos+size > len(extra) {
				return nil, 0, errorf("array string of %d characters truncated at offset %d", cch, pos)
			}
			a.Values = append(a.Values, decodeChars(extra[pos:pos+size], wide))
			pos += size
			continue
		}
		if pos+8 > len(extra) {
			return nil, 0, errorf("array value truncated at offset %d", pos)
		}
		switch typ {
		case arrayEmpty:
			a.Values = append(a.Values, nil)
		case arrayNumber:
			a.Values = append(a.Values, math.Float64frombits(le.Uint64(extra[pos:])))
		case arrayBool:
			a.Values = append(a.Values, extra[pos] != 0)
		case arrayError:
			a.Values = append(a.Values, ErrorValue(extra[pos]))
		default:
			return nil, 0, errorf("unknown array value type 0x%02X at offset %d", typ, pos-1)
		}
		pos += 8
	}
	return a, pos, nil
}

// String renders the constant in formula syntax, e.g. {1,2;"a",TRUE}.
func (a *ArrayConstant) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range a.Values {
		if i > 0 {
			if i%a.Cols == 0 {
				b.WriteByte(';')
			} else {
				b.WriteByte(',')
			}
		}
		switch v := v.(type) {
		case float64:
			b.WriteString(formatNumber(v))
		case string:
			b.WriteString(`"` + strings.ReplaceAll(v, `"`, `""`) + `"`)
		case bool:
			if v {
				b.WriteString("TRUE")
			} else {
				b.WriteString("FALSE")
			}
		case ErrorValue:
			b.WriteString(v.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}
