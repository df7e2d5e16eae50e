package formula

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arrayNum(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{arrayNumber}, math.Float64bits(v))
}

func arrayPadded(typ, v byte) []byte {
	return []byte{typ, v, 0, 0, 0, 0, 0, 0, 0}
}

func TestRenderArrayConstants(t *testing.T) {
	// {1,"a";TRUE,#N/A}
	extra := []byte{0x01, 0x01, 0x00}
	extra = append(extra, arrayNum(1)...)
	extra = append(extra, arrayString, 0x01, 0x00, 0x00, 'a')
	extra = append(extra, arrayPadded(arrayBool, 1)...)
	extra = append(extra, arrayPadded(arrayError, 0x2A)...)

	a, n, err := DecodeArrayConstant(extra)
	require.NoError(t, err)
	assert.Equal(t, len(extra), n)
	assert.Equal(t, 2, a.Rows)
	assert.Equal(t, 2, a.Cols)
	assert.Equal(t, []interface{}{1.0, "a", true, ErrorValue(0x2A)}, a.Values)

	tokens, err := Decode([]byte{0x60, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	text, err := RenderExpr(tokens, extra, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, `{1,"a";TRUE,#N/A}`, text)
}

func TestRenderArrayConstantsInOrder(t *testing.T) {
	// SUM({1,2})+COUNT({""})
	rgce := []byte{
		0x60, 0, 0, 0, 0, 0, 0, 0, 0x42, 0x01, 0x04, 0x00,
		0x60, 0, 0, 0, 0, 0, 0, 0, 0x42, 0x01, 0x00, 0x00,
		0x03,
	}
	tokens, err := Decode(rgce)
	require.NoError(t, err)

	extra := []byte{0x01, 0x00, 0x00}
	extra = append(extra, arrayNum(1)...)
	extra = append(extra, arrayNum(2)...)
	extra = append(extra, 0x00, 0x00, 0x00)
	extra = append(extra, arrayString, 0x00, 0x00, 0x00)

	text, err := RenderExpr(tokens, extra, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, `SUM({1,2})+COUNT({""})`, text)

	_, err = RenderExpr(tokens, extra[:12], nil, 0, 0)
	var fe *FormulaError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, unknownText, Render(tokens, nil, 0, 0))
}

func TestArrayConstantEmptyAndWideValues(t *testing.T) {
	extra := []byte{0x01, 0x00, 0x00}
	extra = append(extra, arrayPadded(arrayEmpty, 0)...)
	extra = append(extra, arrayString, 0x01, 0x00, 0x01, 0xE9, 0x00)

	a, _, err := DecodeArrayConstant(extra)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil, "é"}, a.Values)
	assert.Equal(t, `{,"é"}`, a.String())

	_, _, err = DecodeArrayConstant([]byte{0x00, 0x00, 0x00, 0x08})
	assert.Error(t, err)
}
