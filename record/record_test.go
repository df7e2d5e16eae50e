package record

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	records := []Record{
		NewBOF(XL_WORKBOOK_GLOBALS),
		NewValueRecord(XL_CODEPAGE, 1200),
		NewWriteAccess("tester"),
		&FontRecord{Height: 200, Color: 0x7FFF, Weight: 700, Name: "Arial"},
		&FormatRecord{Index: 164, Format: "0.000"},
		NewCellXF(0, 164),
		&BoundSheetRecord{Position: 1234, Name: "Sheet1"},
		&UnknownRecord{Type: 0x1234, Data: []byte{1, 2, 3}},
		NewEOF(),
	}
	data := Encode(records)

	decoded, err := Decode(data, nil)
	require.NoError(t, err)
	require.Len(t, decoded, len(records))
	assert.Equal(t, data, Encode(decoded))

	font, ok := decoded[3].(*FontRecord)
	require.True(t, ok)
	assert.Equal(t, "Arial", font.Name)
	assert.Equal(t, uint16(700), font.Weight)

	wa := decoded[2].(*WriteAccessRecord)
	assert.Equal(t, "tester", wa.UserName)
	assert.Equal(t, 112, RecordSize(wa)-HeaderSize)
}

func TestDecodeIgnoresTrailingPadding(t *testing.T) {
	data := Encode([]Record{NewBOF(XL_WORKSHEET), NewEOF()})
	data = append(data, make([]byte, 300)...)

	decoded, err := Decode(data, nil)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestDecodeLengthOverrun(t *testing.T) {
	data := []byte{0x09, 0x08, 0x10, 0x00, 0x00, 0x06}

	_, err := Decode(data, nil)
	require.Error(t, err)
	var rfe *RecordFormatError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, uint16(XL_BOF), rfe.Sid)
	assert.Equal(t, 0, rfe.Offset)
}

func TestLongRecordIsSplitIntoContinues(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 2*MaxRecordDataSize+100)
	r := &DrawingGroupRecord{Data: payload}

	data := Serialize(r)
	assert.Equal(t, len(payload)+3*HeaderSize, len(data))
	assert.Equal(t, byte(XL_CONTINUE), data[HeaderSize+MaxRecordDataSize])

	decoded, err := Decode(data, nil)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, payload, decoded[0].(*DrawingGroupRecord).Data)
}

func TestUnknownRecordKeepsFollowingContinues(t *testing.T) {
	data := Encode([]Record{
		&UnknownRecord{Type: XL_TXO, Data: make([]byte, 18)},
		&ContinueRecord{Data: []byte{0, 'h', 'i'}},
		&ContinueRecord{Data: make([]byte, 16)},
	})

	decoded, err := Decode(data, nil)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, uint16(XL_CONTINUE), decoded[1].Sid())
	assert.Equal(t, data, Encode(decoded))
}

func TestSSTAcrossContinueBoundaries(t *testing.T) {
	sst := &SSTRecord{}
	for i := 0; i < 3000; i++ {
		text := strings.Repeat("x", i%40)
		if i%3 == 0 {
			text = strings.Repeat("日本", i%17+1)
		}
		s := &UnicodeString{Text: text}
		if i%50 == 0 {
			s.Runs = []FormatRun{{Char: 0, Font: 1}}
		}
		sst.Strings = append(sst.Strings, s)
	}
	sst.Total = uint32(len(sst.Strings))

	data := Serialize(sst)
	assert.Greater(t, len(data), MaxRecordDataSize)

	decoded, err := Decode(data, nil)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	got := decoded[0].(*SSTRecord)
	require.Len(t, got.Strings, len(sst.Strings))
	for i, s := range sst.Strings {
		assert.Equal(t, s.Text, got.Strings[i].Text, "string %d", i)
		assert.Equal(t, s.Runs, got.Strings[i].Runs, "runs %d", i)
	}
	assert.Equal(t, data, Serialize(got))

	ext := sst.ExtSST(100)
	assert.Len(t, ext.Buckets, ExtSSTMaxBuckets)
	assert.Equal(t, uint32(100+HeaderSize+8), ext.Buckets[0].StreamPos)
	assert.Equal(t, uint16(HeaderSize+8), ext.Buckets[0].Offset)
}

func TestStringCharactersReEmitOptionByte(t *testing.T) {
	out := NewContinuableOutput(XL_SST)
	out.Write(make([]byte, MaxRecordDataSize-6))
	text := "été 中"
	out.WriteStringHeader(CharCount(text), true, 0, 0)
	out.WriteStringData(text, true)
	data := out.Bytes()

	in := NewInputStream(data)
	require.NoError(t, in.NextRecord())
	in.ReadBytes(MaxRecordDataSize - 6)
	assert.Equal(t, text, in.ReadUnicodeString(false))
	assert.NoError(t, in.Err())
}

func TestExternSheetMergedAcrossContinue(t *testing.T) {
	es := &ExternSheetRecord{}
	for i := 0; i < MaxRefsPerBlock+10; i++ {
		es.Refs = append(es.Refs, RefSubRecord{SupBook: 0, FirstSheet: int16(i), LastSheet: int16(i)})
	}
	data := Serialize(es)

	decoded, err := Decode(data, nil)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, es.Refs, decoded[0].(*ExternSheetRecord).Refs)
}

func TestDecodeRK(t *testing.T) {
	tests := []struct {
		rk   uint32
		want float64
	}{
		{0x3FF00000, 1.0},
		{123<<2 | 0x02, 123},
		{12345<<2 | 0x03, 123.45},
		{0x405EC000 | 0x01, 1.23},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, DecodeRK(tt.rk), 1e-9, "rk %08X", tt.rk)
	}
}

func TestMulRKExpand(t *testing.T) {
	r := &MulRKRecord{R: 3, FirstCol: 2, XFs: []uint16{15, 16}, RKs: []uint32{1<<2 | 2, 2<<2 | 2}}
	decoded, err := Decode(Serialize(r), nil)
	require.NoError(t, err)

	cells := decoded[0].(*MulRKRecord).Expand()
	require.Len(t, cells, 2)
	assert.Equal(t, 3, cells[1].Row())
	assert.Equal(t, 3, cells[1].Column())
	assert.Equal(t, 16, cells[1].XFIndex())
	assert.Equal(t, 2.0, cells[1].Value)
}

func TestFormulaCachedValues(t *testing.T) {
	f := NewFormula(1, 2, 15, Expr{Tokens: []byte{0x1E, 0x01, 0x00}})
	assert.Equal(t, CachedNumber, f.CachedType())

	f.SetCachedBool(true)
	assert.Equal(t, CachedBool, f.CachedType())
	assert.True(t, f.CachedBool())

	f.SetCachedError(0x07)
	assert.Equal(t, CachedError, f.CachedType())
	assert.Equal(t, "#DIV/0!", ErrorTextFromCode[f.CachedError()])

	f.SetCachedNumber(42.5)
	decoded, err := Decode(Serialize(f), nil)
	require.NoError(t, err)
	got := decoded[0].(*FormulaRecord)
	assert.Equal(t, 42.5, got.CachedNumber())
	assert.Equal(t, f.Expr.Tokens, got.Expr.Tokens)
}

func TestObjSubRecordPolicy(t *testing.T) {
	good := NewObj(ObjPicture, 7)
	decoded, err := Decode(Serialize(good), nil)
	require.NoError(t, err)
	obj := decoded[0].(*ObjRecord)
	require.NotNil(t, obj.Common())
	assert.Equal(t, uint16(7), obj.Common().ObjectID)
	assert.Equal(t, uint16(ObjPicture), obj.Common().ObjectType)

	// ftCmo claiming more bytes than the record holds.
	bad := Serialize(&UnknownRecord{Type: XL_OBJ, Data: []byte{0x15, 0x00, 0x40, 0x00, 0x08, 0x00}})

	var log bytes.Buffer
	decoded, err = Decode(bad, &DecodeOptions{Logfile: &log})
	require.NoError(t, err)
	assert.NotNil(t, decoded[0].(*ObjRecord).Raw)
	assert.Contains(t, log.String(), "malformed OBJ")
	assert.Equal(t, bad, Encode(decoded))

	_, err = Decode(bad, &DecodeOptions{SubRecordPolicy: SubRecordsReject})
	var rfe *RecordFormatError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, uint16(XL_OBJ), rfe.Sid)
}

func TestCloneIsIndependent(t *testing.T) {
	m := &MergeCellsRecord{Regions: []CellRange{{0, 1, 0, 1}}}
	c := m.Clone().(*MergeCellsRecord)
	c.Regions[0].LastRow = 9
	assert.Equal(t, 1, m.Regions[0].LastRow)

	sst := &SSTRecord{Strings: []*UnicodeString{{Text: "a"}}}
	sc := sst.Clone().(*SSTRecord)
	sc.Strings[0].Text = "b"
	assert.Equal(t, "a", sst.Strings[0].Text)
}

func TestSniffBiffVersion(t *testing.T) {
	v, err := SniffBiffVersion(Serialize(NewBOF(XL_WORKBOOK_GLOBALS)))
	require.NoError(t, err)
	assert.Equal(t, BIFF8, v)

	biff5 := Serialize(&UnknownRecord{Type: XL_BOF, Data: []byte{0x00, 0x05, 0x05, 0x00, 0x00, 0x00, 0xCD, 0x07}})
	v, err = SniffBiffVersion(biff5)
	require.NoError(t, err)
	assert.Equal(t, BIFF7, v)

	_, err = SniffBiffVersion([]byte{0x01, 0x02, 0x00, 0x00})
	assert.Error(t, err)
}

func TestCellReferences(t *testing.T) {
	assert.Equal(t, "A", ColumnName(0))
	assert.Equal(t, "Z", ColumnName(25))
	assert.Equal(t, "AA", ColumnName(26))
	assert.Equal(t, "IV", ColumnName(255))

	ref, err := ParseCellRef("$C$10")
	require.NoError(t, err)
	assert.Equal(t, CellRef{Row: 9, Col: 2, AbsRow: true, AbsCol: true}, ref)

	rng, err := ParseCellRange("C3:B2")
	require.NoError(t, err)
	assert.Equal(t, CellRange{FirstRow: 1, LastRow: 2, FirstCol: 1, LastCol: 2}, rng)
	assert.Equal(t, "B2:C3", rng.String())
	assert.True(t, rng.Contains(2, 2))
	assert.False(t, rng.Contains(3, 2))

	_, err = ParseCellRef("12")
	assert.Error(t, err)
}

func TestFileNameEncoding(t *testing.T) {
	enc := EncodeFileName("C:dir/book.xls")
	assert.Equal(t, "\x01\x01Cdir\x03book.xls", enc)
	assert.Equal(t, "C:dir/book.xls", DecodeFileName(enc))
	assert.Equal(t, "other.xls", DecodeFileName(EncodeFileName("other.xls")))

	sb := NewExternalSupBook("other.xls", []string{"S1", "S2"})
	decoded, err := Decode(Serialize(sb), nil)
	require.NoError(t, err)
	got := decoded[0].(*SupBookRecord)
	assert.True(t, got.IsExternal())
	assert.Equal(t, "other.xls", got.URL())
	assert.Equal(t, []string{"S1", "S2"}, got.SheetNames)

	internal, err := Decode(Serialize(NewInternalSupBook(3)), nil)
	require.NoError(t, err)
	assert.True(t, internal[0].(*SupBookRecord).IsInternal())
}

func TestPageBreaks(t *testing.T) {
	pb := &PageBreakRecord{Type: XL_HORIZONTALPAGEBREAKS}
	pb.Add(PageBreak{Main: 5, SubTo: 255})
	pb.Add(PageBreak{Main: 2, SubTo: 255})
	pb.Add(PageBreak{Main: 9, SubTo: 255})
	assert.Equal(t, uint16(2), pb.Breaks[0].Main)
	assert.Equal(t, uint16(9), pb.Breaks[2].Main)

	pb.Remove(5)
	assert.False(t, pb.Contains(5))
	assert.True(t, pb.Contains(9))
}

func TestNameRecordBuiltin(t *testing.T) {
	n := NewBuiltinName(BuiltinPrintArea, 0, []byte{0x3B, 0, 0, 0, 0, 1, 0, 0, 0, 1, 0})
	decoded, err := Decode(Serialize(n), nil)
	require.NoError(t, err)
	got := decoded[0].(*NameRecord)
	assert.True(t, got.IsBuiltIn())
	assert.Equal(t, "Print_Area", got.DisplayName())
	assert.Equal(t, uint16(1), got.SheetIndex)
	assert.Equal(t, n.Expr.Tokens, got.Expr.Tokens)
}

func TestNewWindow2IsUnselected(t *testing.T) {
	w := NewWindow2()
	assert.Zero(t, w.Options&(Window2Selected|Window2Active))

	w.SetSelected(true)
	assert.Equal(t, uint16(Window2Selected|Window2Active), w.Options&(Window2Selected|Window2Active))
	w.SetSelected(false)
	assert.Equal(t, uint16(0x00B6), w.Options)
}
