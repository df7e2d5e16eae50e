package formula

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	sheets []SheetRef
	names  []string
}

func (f *fakeResolver) ExternSheet(index int) (SheetRef, bool) {
	if index < 0 || index >= len(f.sheets) {
		return SheetRef{}, false
	}
	return f.sheets[index], true
}

func (f *fakeResolver) ExternSheetIndex(ref SheetRef) (int, error) {
	for i, s := range f.sheets {
		if s == ref {
			return i, nil
		}
	}
	f.sheets = append(f.sheets, ref)
	return len(f.sheets) - 1, nil
}

func (f *fakeResolver) NameText(index int) (string, bool) {
	if index < 1 || index > len(f.names) {
		return "", false
	}
	return f.names[index-1], true
}

func (f *fakeResolver) NameIndex(name string) (int, bool) {
	for i, n := range f.names {
		if n == name {
			return i + 1, true
		}
	}
	return 0, false
}

func (f *fakeResolver) ExternNameText(sheet, index int) (string, bool) {
	return fmt.Sprintf("ext%d_%d", sheet, index), true
}

func TestParseSumEncoding(t *testing.T) {
	tokens, err := Parse("=SUM(A1:B2)", nil, TypeCell)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, []byte{
		0x25, 0x00, 0x00, 0x01, 0x00, 0x00, 0xC0, 0x01, 0xC0,
		0x42, 0x01, 0x04, 0x00,
	}, Encode(tokens))
	assert.Equal(t, "SUM(A1:B2)", Render(tokens, nil, 0, 0))
}

func TestParseRenderRoundTrip(t *testing.T) {
	for _, text := range []string{
		"1+2*3",
		"(1+2)*3",
		"A1-B1-C1",
		"A1-(B1-C1)",
		"-A1^2",
		"$A$1+B$2",
		`IF(A1>0,"x","y")`,
		"SUM(A:A)",
		"SUM(1:3)",
		"5%",
		"AVERAGE(A1,B2,3.5)",
		"PI()",
		"IF(A1,,2)",
		"A1&B1",
		"A1<>B1",
		"TRUE",
	} {
		tokens, err := Parse(text, nil, TypeCell)
		if !assert.NoError(t, err, text) {
			continue
		}
		assert.Equal(t, text, Render(tokens, nil, 0, 0))
		back, err := Decode(Encode(tokens))
		require.NoError(t, err, text)
		assert.Equal(t, text, Render(back, nil, 0, 0), "decoded %s", text)
	}
}

func TestParseOperandClasses(t *testing.T) {
	tokens, err := Parse("A1+1", nil, TypeCell)
	require.NoError(t, err)
	assert.Equal(t, byte(0x44), tokens[0].ID)

	tokens, err = Parse("A1+1", nil, TypeArray)
	require.NoError(t, err)
	assert.Equal(t, byte(0x64), tokens[0].ID)

	tokens, err = Parse("SUM(A1)", nil, TypeCell)
	require.NoError(t, err)
	assert.Equal(t, byte(0x24), tokens[0].ID)
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"=",
		"FOO(1)",
		"IF(1)",
		"NOSUCHNAME+1",
		"Sheet1!A1",
	} {
		_, err := Parse(text, nil, TypeCell)
		assert.Error(t, err, text)
	}
}

func TestThreeDReferences(t *testing.T) {
	r := &fakeResolver{}
	tokens, err := Parse("SUM(s3!B2:C3)", r, TypeCell)
	require.NoError(t, err)
	require.Len(t, r.sheets, 1)
	assert.Equal(t, SheetRef{First: "s3", Last: "s3"}, r.sheets[0])
	assert.Equal(t, byte(TArea3d), tokens[0].ID)
	assert.Equal(t, "SUM(s3!B2:C3)", Render(tokens, r, 0, 0))

	r.sheets = append(r.sheets, SheetRef{First: "my sheet", Last: "my sheet"}, SheetRef{Book: "b.xls", First: "S1", Last: "S2"})
	ref := []Ptg{{ID: 0x5A, Sheet: 1, Row: 0, Col: 0, RowRel: true, ColRel: true}}
	assert.Equal(t, "'my sheet'!A1", Render(ref, r, 0, 0))
	ref[0].Sheet = 2
	assert.Equal(t, "[b.xls]S1:S2!A1", Render(ref, r, 0, 0))
	ref[0].Sheet = 9
	assert.Equal(t, "#REF!", Render(ref, r, 0, 0))
}

func TestNames(t *testing.T) {
	r := &fakeResolver{names: []string{"Total"}}
	tokens, err := Parse("Total*2", r, TypeCell)
	require.NoError(t, err)
	assert.Equal(t, byte(0x43), tokens[0].ID)
	assert.Equal(t, 1, tokens[0].Index)
	assert.Equal(t, "Total*2", Render(tokens, r, 0, 0))
	assert.Equal(t, "#NAME?*2", Render(tokens, nil, 0, 0))
}

func TestDecodeExcelTokens(t *testing.T) {
	// A1+1 as written by Excel, then SUM(A1) via tAttrSum.
	tokens, err := Decode([]byte{0x44, 0x00, 0x00, 0x00, 0xC0, 0x1E, 0x01, 0x00, 0x03})
	require.NoError(t, err)
	assert.Equal(t, "A1+1", Render(tokens, nil, 0, 0))

	tokens, err = Decode([]byte{0x24, 0x00, 0x00, 0x00, 0xC0, 0x19, 0x10, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1)", Render(tokens, nil, 0, 0))

	// CHOOSE jump table.
	tokens, err = Decode([]byte{0x1E, 0x01, 0x00, 0x19, 0x04, 0x01, 0x00, 0x06, 0x00, 0x0A, 0x00})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, []int{6, 10}, tokens[1].Jumps)
	assert.Equal(t, 11, tokens[0].Size()+tokens[1].Size())
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{0x18, 0x00})
	assert.Error(t, err)

	_, err = Decode([]byte{0x44, 0x00})
	var fe *FormulaError
	assert.ErrorAs(t, err, &fe)

	_, err = Decode([]byte{0x17, 0x05, 0x00, 'a'})
	assert.Error(t, err)
}

func TestSharedFormulaToAbsolute(t *testing.T) {
	// tRefN one row up and one column left.
	tokens, err := Decode([]byte{0x4C, 0xFF, 0xFF, 0xFF, 0xC0})
	require.NoError(t, err)
	assert.Equal(t, -1, tokens[0].Row)
	assert.Equal(t, -1, tokens[0].Col)
	assert.Equal(t, "E5", Render(tokens, nil, 5, 5))

	abs := ToAbsolute(tokens, 5, 5)
	assert.Equal(t, byte(0x44), abs[0].ID)
	assert.Equal(t, 4, abs[0].Row)
	assert.Equal(t, 4, abs[0].Col)
	assert.Equal(t, -1, tokens[0].Row, "input left untouched")

	area := []Ptg{{ID: TAreaN, Row: 0, Col: 0, Row2: 2, Col2: 1, RowRel: true, ColRel: false, Row2Rel: true, Col2Rel: true}}
	abs = ToAbsolute(area, 10, 3)
	assert.Equal(t, byte(TArea), abs[0].ID)
	assert.Equal(t, []int{10, 0, 12, 4}, []int{abs[0].Row, abs[0].Col, abs[0].Row2, abs[0].Col2})
}

func TestExpCell(t *testing.T) {
	b := Encode([]Ptg{ExpPtg(3, 2)})
	row, col, ok := ExpCell(b)
	assert.True(t, ok)
	assert.Equal(t, 3, row)
	assert.Equal(t, 2, col)

	_, _, ok = ExpCell([]byte{0x1E, 0x01, 0x00})
	assert.False(t, ok)
}

func TestFunctionTable(t *testing.T) {
	i, ok := FunctionIndex("sum")
	require.True(t, ok)
	assert.Equal(t, 4, i)
	assert.Equal(t, "CHOOSE", FunctionName(100))
	assert.Equal(t, "VLOOKUP", FunctionName(102))
	assert.Equal(t, "#UNKNOWN_FUNCTION", FunctionName(9999))
	assert.Equal(t, -1, FunctionArgs(4))
	assert.Equal(t, 0, FunctionArgs(19))
}

func TestQuoteSheetName(t *testing.T) {
	assert.Equal(t, "Sheet1", QuoteSheetName("Sheet1"))
	assert.Equal(t, "'my sheet'", QuoteSheetName("my sheet"))
	assert.Equal(t, "'it''s'", QuoteSheetName("it's"))
	assert.Equal(t, "'2020'", QuoteSheetName("2020"))
}

func TestParseSheetRef(t *testing.T) {
	ref, err := parseSheetRef("'[book one.xls]Jan:Mar'")
	require.NoError(t, err)
	assert.Equal(t, SheetRef{Book: "book one.xls", First: "Jan", Last: "Mar"}, ref)

	prefix, cell := splitSheet("'a!b'!C3")
	assert.Equal(t, "'a!b'", prefix)
	assert.Equal(t, "C3", cell)
}
