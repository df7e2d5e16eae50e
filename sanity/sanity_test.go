package sanity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

func sids(list ...uint16) []record.Record {
	out := make([]record.Record, len(list))
	for i, sid := range list {
		out[i] = &record.EmptyRecord{Type: sid}
	}
	return out
}

func failure(t *testing.T, err error) *Failure {
	t.Helper()
	require.Error(t, err)
	f, ok := err.(*Failure)
	require.True(t, ok, "got %T", err)
	return f
}

func sampleWorkbook(t *testing.T) *model.Workbook {
	t.Helper()
	w := model.NewWorkbook(nil)
	sh := model.NewSheet(nil)
	w.AddSheet("Data", sh)
	for r := 0; r < 40; r++ {
		require.NoError(t, sh.SetCell(&record.NumberRecord{CellHeader: record.CellHeader{R: uint16(r), C: 1, XF: 15}, Value: float64(r)}))
	}
	sh.AddMergedRegion(record.CellRange{FirstRow: 0, LastRow: 1, FirstCol: 3, LastCol: 4})
	sh.AddValidation(record.NewDV(1, []byte{0x1E, 1, 0}, []byte{0x1E, 9, 0}, []record.CellRange{{FirstRow: 0, LastRow: 3, FirstCol: 5, LastCol: 5}}))
	sh.AddCondFormat([]record.CellRange{{FirstRow: 0, LastRow: 9, FirstCol: 1, LastCol: 1}}, record.NewCFRuleFill(1, 1, []byte{0x1E, 5, 0}, nil, 10))
	w.AddSheet("Empty", model.NewSheet(nil))
	return w
}

func sheetRecords(w *model.Workbook, i int) []record.Record {
	return w.Sheet(i).Records(0)
}

func indexOf(records []record.Record, sid uint16) int {
	for i, r := range records {
		if r.Sid() == sid {
			return i
		}
	}
	return -1
}

func TestModelOutputPasses(t *testing.T) {
	w := sampleWorkbook(t)
	assert.NoError(t, CheckStream(w.Records()))
	assert.NoError(t, CheckSheetRecords(sheetRecords(w, 0)))
	assert.NoError(t, CheckSheetRecords(sheetRecords(w, 1)))
}

func TestMissingMandatoryRecord(t *testing.T) {
	w := sampleWorkbook(t)
	recs := sheetRecords(w, 1)
	i := indexOf(recs, record.XL_WINDOW2)
	require.True(t, i > 0)
	recs = append(recs[:i:i], recs[i+1:]...)

	f := failure(t, CheckSheetRecords(recs))
	assert.Equal(t, uint16(record.XL_EOF), f.Sid)
	assert.Equal(t, len(recs)-1, f.Index)
	assert.Contains(t, f.Reason, "WINDOW2")
}

func TestMissingAtEnd(t *testing.T) {
	f := failure(t, Check(SheetSchema, sids(record.XL_BOF)))
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, uint16(record.XL_DIMENSION), f.Sid)
}

func TestRecordOutOfOrder(t *testing.T) {
	w := sampleWorkbook(t)
	recs := sheetRecords(w, 0)
	cell := indexOf(recs, record.XL_NUMBER)
	win := indexOf(recs, record.XL_WINDOW2)
	require.True(t, cell > 0 && win > cell)

	moved := append([]record.Record{}, recs[:win+1]...)
	moved = append(moved, recs[cell])
	moved = append(moved, recs[win+1:]...)

	f := failure(t, CheckSheetRecords(moved))
	assert.Equal(t, uint16(record.XL_NUMBER), f.Sid)
	assert.Equal(t, win+1, f.Index)
	assert.Equal(t, "out of order", f.Reason)
}

func TestDuplicateSingleton(t *testing.T) {
	recs := sampleWorkbook(t).Records()
	end := indexOf(recs, record.XL_EOF)
	globals := recs[:end+1]
	win := indexOf(globals, record.XL_WINDOW1)
	dup := append([]record.Record{}, globals[:win+1]...)
	dup = append(dup, globals[win])
	dup = append(dup, globals[win+1:]...)

	f := failure(t, CheckWorkbookRecords(dup))
	assert.Equal(t, win+1, f.Index)
	assert.Equal(t, uint16(record.XL_WINDOW1), f.Sid)
}

func TestLenientSkipsUnknownRecords(t *testing.T) {
	w := sampleWorkbook(t)
	recs := sheetRecords(w, 1)
	i := indexOf(recs, record.XL_WINDOW2)
	withUnknown := append([]record.Record{}, recs[:i]...)
	withUnknown = append(withUnknown, &record.UnknownRecord{Type: 0x0999, Data: []byte{1, 2}})
	withUnknown = append(withUnknown, recs[i:]...)
	assert.NoError(t, CheckSheetRecords(withUnknown))

	strict := *SheetSchema
	strict.Lenient = false
	f := failure(t, Check(&strict, withUnknown))
	assert.Equal(t, i, f.Index)
	assert.Contains(t, f.Reason, "not allowed")
}

func TestEmbeddedSubstreamSkipped(t *testing.T) {
	w := sampleWorkbook(t)
	recs := sheetRecords(w, 1)
	i := indexOf(recs, record.XL_WINDOW2)
	chart := []record.Record{
		record.NewBOF(record.XL_CHART),
		&record.UnknownRecord{Type: 0x1001, Data: []byte{0, 0}},
		record.NewValueRecord(record.XL_WINDOW2, 0),
		record.NewEOF(),
	}
	with := append([]record.Record{}, recs[:i]...)
	with = append(with, chart...)
	with = append(with, recs[i:]...)
	assert.NoError(t, CheckSheetRecords(with))

	unterminated := append(append([]record.Record{}, recs[:i]...), chart[:2]...)
	f := failure(t, CheckSheetRecords(unterminated))
	assert.Equal(t, i, f.Index)
}

func TestCardinalities(t *testing.T) {
	const a, b, c, d = record.XL_BOF, record.XL_CONTINUE, record.XL_WINDOW1, record.XL_EOF
	schema := &Schema{
		Name: "test",
		Entries: []Entry{
			one(a),
			{Sids: []uint16{b}, Card: Anywhere},
			some(c),
			many(record.XL_NAME),
			one(d),
		},
	}
	for _, tc := range []struct {
		name    string
		records []uint16
		index   int
	}{
		{"minimal", []uint16{a, c, d}, -1},
		{"anywhere after its entry", []uint16{a, c, b, c, record.XL_NAME, b, d}, -1},
		{"contiguous many", []uint16{a, c, c, c, d}, -1},
		{"anywhere before its entry", []uint16{b, a, c, d}, 0},
		{"missing mandatory many", []uint16{a, record.XL_NAME, d}, 1},
		{"many not contiguous", []uint16{a, c, record.XL_NAME, c, d}, 3},
		{"trailing record", []uint16{a, c, d, c}, 3},
		{"missing final", []uint16{a, c}, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(schema, sids(tc.records...))
			if tc.index < 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.index, failure(t, err).Index)
		})
	}
}

func TestCheckSuccessors(t *testing.T) {
	ok := []record.Record{record.NewDVal(2), &record.DVRecord{}, &record.DVRecord{}, record.NewEOF()}
	assert.NoError(t, CheckSuccessors(ok))

	short := []record.Record{record.NewDVal(2), &record.DVRecord{}, record.NewEOF()}
	f := failure(t, CheckSuccessors(short))
	assert.Equal(t, 0, f.Index)
	assert.Equal(t, uint16(record.XL_DVAL), f.Sid)

	extra := []record.Record{record.NewDVal(1), &record.DVRecord{}, &record.DVRecord{}}
	f = failure(t, CheckSuccessors(extra))
	assert.Equal(t, 2, f.Index)

	cf := []record.Record{record.NewCFHeader(nil, 2), &record.CFRuleRecord{}, record.NewEOF()}
	f = failure(t, CheckSuccessors(cf))
	assert.Equal(t, uint16(record.XL_CONDFMT), f.Sid)
}

func TestCheckStreamSheetCount(t *testing.T) {
	recs := sampleWorkbook(t).Records()
	// Drop the last sheet substream.
	last := len(recs) - 1
	for recs[last].Sid() != record.XL_BOF {
		last--
	}
	f := failure(t, CheckStream(recs[:last]))
	assert.Equal(t, uint16(record.XL_BOUNDSHEET), f.Sid)
	assert.Contains(t, f.Error(), "2 sheets declared, 1 substreams found")
}

func TestCheckStreamOffsetsFailures(t *testing.T) {
	recs := sampleWorkbook(t).Records()
	start := len(recs) - 1
	for recs[start].Sid() != record.XL_BOF {
		start--
	}
	sheet := recs[start:]
	win := indexOf(sheet, record.XL_WINDOW2)
	broken := append(append([]record.Record{}, recs[:start+win]...), recs[start+win+1:]...)

	f := failure(t, CheckStream(broken))
	assert.Equal(t, len(broken)-1, f.Index)
	assert.Equal(t, uint16(record.XL_EOF), f.Sid)
}
