package model

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/hssf-go/escher"
	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/record"
)

func newTestWorkbook(t *testing.T) (*Workbook, *Sheet) {
	t.Helper()
	w := NewWorkbook(nil)
	sh := NewSheet(nil)
	w.AddSheet("Data", sh)
	return w, sh
}

func number(row, col int, v float64) *record.NumberRecord {
	return &record.NumberRecord{CellHeader: record.CellHeader{R: uint16(row), C: uint16(col), XF: 15}, Value: v}
}

func reread(t *testing.T, w *Workbook, opts *Options) *Workbook {
	t.Helper()
	recs, err := record.Decode(w.Serialize(), nil)
	require.NoError(t, err)
	rw, err := ReadWorkbook(recs, opts)
	require.NoError(t, err)
	return rw
}

func TestWorkbookRoundTrip(t *testing.T) {
	w, sh := newTestWorkbook(t)
	require.NoError(t, sh.SetCell(number(0, 0, 1.5)))
	idx := w.SST().AddText("hello")
	require.NoError(t, sh.SetCell(&record.LabelSSTRecord{CellHeader: record.CellHeader{R: 2, C: 3, XF: 15}, SSTIndex: uint32(idx)}))

	rw := reread(t, w, nil)
	require.Equal(t, 1, rw.NumSheets())
	assert.Equal(t, "Data", rw.SheetName(0))

	rs := rw.Sheet(0)
	n, ok := rs.Cell(0, 0).(*record.NumberRecord)
	require.True(t, ok)
	assert.Equal(t, 1.5, n.Value)

	l, ok := rs.Cell(2, 3).(*record.LabelSSTRecord)
	require.True(t, ok)
	assert.Equal(t, "hello", rw.SST().String(int(l.SSTIndex)).Text)

	assert.Equal(t, w.Serialize(), rw.Serialize())
}

func TestReadWorkbookConvertsLabels(t *testing.T) {
	w := NewWorkbook(nil)
	sheet := []record.Record{
		record.NewBOF(record.XL_WORKSHEET),
		&record.LabelRecord{CellHeader: record.CellHeader{R: 0, C: 0, XF: 15}, Value: "plain"},
		&record.MulBlankRecord{R: 1, FirstCol: 2, XFs: []uint16{15, 15, 15}},
		record.NewWindow2(),
		record.NewEOF(),
	}
	sh, err := ReadSheet(sheet, w, nil)
	require.NoError(t, err)

	l, ok := sh.Cell(0, 0).(*record.LabelSSTRecord)
	require.True(t, ok)
	assert.Equal(t, "plain", w.SST().String(int(l.SSTIndex)).Text)
	for col := 2; col <= 4; col++ {
		_, ok := sh.Cell(1, col).(*record.BlankRecord)
		assert.True(t, ok, "column %d", col)
	}
	assert.Equal(t, 1, sh.stringRefs())
}

func TestSheetIndexOffsets(t *testing.T) {
	w, sh := newTestWorkbook(t)
	for r := 0; r < 40; r++ {
		require.NoError(t, sh.SetCell(number(r, 1, float64(r))))
	}
	recs := w.Records()
	data := record.Encode(recs)
	sidAt := func(pos int) uint16 { return binary.LittleEndian.Uint16(data[pos:]) }

	var index *record.IndexRecord
	var dbcells []*record.DBCellRecord
	pos := map[record.Record]int{}
	offset := 0
	for _, r := range recs {
		pos[r] = offset
		offset += record.RecordSize(r)
		switch x := r.(type) {
		case *record.IndexRecord:
			index = x
		case *record.DBCellRecord:
			dbcells = append(dbcells, x)
		}
	}
	require.NotNil(t, index)
	require.Len(t, index.DBCells, 2)
	require.Len(t, dbcells, 2)
	assert.Equal(t, uint32(0), index.FirstRow)
	assert.Equal(t, uint32(40), index.LastRowAdd1)
	assert.Equal(t, uint16(record.XL_DEFCOLWIDTH), sidAt(int(index.DefColWidthPos)))

	for i, db := range dbcells {
		at := int(index.DBCells[i])
		assert.Equal(t, pos[db], at)
		assert.Equal(t, uint16(record.XL_DBCELL), sidAt(at))

		firstRow := at - int(db.RowOffset)
		assert.Equal(t, uint16(record.XL_ROW), sidAt(firstRow))
		require.NotEmpty(t, db.CellOffsets)
		assert.Equal(t, uint16(record.XL_NUMBER), sidAt(firstRow+record.RowRecordSize+int(db.CellOffsets[0])))
	}
	assert.Len(t, dbcells[0].CellOffsets, 32)
	assert.Len(t, dbcells[1].CellOffsets, 8)
}

func TestDimensions(t *testing.T) {
	_, sh := newTestWorkbook(t)
	require.NoError(t, sh.SetCell(number(3, 2, 1)))
	require.NoError(t, sh.SetCell(number(7, 5, 1)))
	sh.CreateRow(9)

	d := sh.dimensions()
	assert.Equal(t, uint32(3), d.FirstRow)
	assert.Equal(t, uint32(10), d.LastRowAdd1)
	assert.Equal(t, uint16(2), d.FirstCol)
	assert.Equal(t, uint16(6), d.LastColAdd1)
}

func sharedSheet(t *testing.T, w *Workbook) *Sheet {
	t.Helper()
	anchor := formula.Encode([]formula.Ptg{formula.ExpPtg(0, 1)})
	f1 := record.NewFormula(0, 1, 15, record.Expr{Tokens: anchor})
	f1.SetShared(true)
	f2 := record.NewFormula(1, 1, 15, record.Expr{Tokens: append([]byte(nil), anchor...)})
	f2.SetShared(true)
	shr := &record.SharedFormulaRecord{
		Range: record.CellRange{FirstRow: 0, LastRow: 1, FirstCol: 1, LastCol: 1},
		Uses:  2,
		Expr: record.Expr{Tokens: formula.Encode([]formula.Ptg{
			{ID: formula.TRefN, Row: 0, Col: -1, RowRel: true, ColRel: true},
		})},
	}
	sh, err := ReadSheet([]record.Record{
		record.NewBOF(record.XL_WORKSHEET), f1, shr, f2, record.NewWindow2(), record.NewEOF(),
	}, w, nil)
	require.NoError(t, err)
	return sh
}

func TestSharedFormulaTokens(t *testing.T) {
	sh := sharedSheet(t, NewWorkbook(nil))
	require.Equal(t, 1, sh.SharedValues().NumShared())

	fc := sh.Cell(1, 1).(*FormulaCell)
	tokens, err := sh.FormulaTokens(fc.FormulaRecord)
	require.NoError(t, err)
	assert.Equal(t, "A2", formula.Render(tokens, nil, 1, 1))

	var sids []uint16
	for _, r := range sh.Records(0) {
		switch r.Sid() {
		case record.XL_FORMULA, record.XL_SHRFMLA:
			sids = append(sids, r.Sid())
		}
	}
	assert.Equal(t, []uint16{record.XL_FORMULA, record.XL_SHRFMLA, record.XL_FORMULA}, sids)
}

func TestEditingSharedMemberUnlinksGroup(t *testing.T) {
	sh := sharedSheet(t, NewWorkbook(nil))
	require.NoError(t, sh.SetCell(number(1, 1, 5)))

	assert.Equal(t, 0, sh.SharedValues().NumShared())
	fc, ok := sh.Cell(0, 1).(*FormulaCell)
	require.True(t, ok)
	assert.False(t, fc.IsShared())
	tokens, err := formula.Decode(fc.Expr.Tokens)
	require.NoError(t, err)
	assert.Equal(t, "A1", formula.Render(tokens, nil, 0, 1))

	for _, r := range sh.Records(0) {
		assert.NotEqual(t, uint16(record.XL_SHRFMLA), r.Sid())
	}
}

func TestArrayFormula(t *testing.T) {
	_, sh := newTestWorkbook(t)
	rng := record.CellRange{FirstRow: 0, LastRow: 1, FirstCol: 0, LastCol: 1}
	expr := record.Expr{Tokens: formula.Encode([]formula.Ptg{{ID: formula.TInt, Value: 7}})}
	_, err := sh.SetArrayFormula(rng, expr, 15)
	require.NoError(t, err)

	fc := sh.Cell(1, 1).(*FormulaCell)
	tokens, err := sh.FormulaTokens(fc.FormulaRecord)
	require.NoError(t, err)
	assert.Equal(t, "7", formula.Render(tokens, nil, 1, 1))

	assert.Equal(t, ErrPartOfArray, sh.SetCell(number(1, 1, 2)))
	_, err = sh.SetArrayFormula(record.CellRange{FirstRow: 1, LastRow: 2, FirstCol: 1, LastCol: 2}, expr, 15)
	assert.Equal(t, ErrArrayOverlap, err)

	got, err := sh.RemoveArrayFormula(1, 0)
	require.NoError(t, err)
	assert.Equal(t, rng, got)
	for r := 0; r <= 1; r++ {
		for c := 0; c <= 1; c++ {
			b, ok := sh.Cell(r, c).(*record.BlankRecord)
			require.True(t, ok)
			assert.Equal(t, 15, b.XFIndex())
		}
	}
	_, err = sh.RemoveArrayFormula(0, 0)
	assert.Equal(t, ErrNotArray, err)
}

func TestColumnWidths(t *testing.T) {
	_, sh := newTestWorkbook(t)
	assert.Equal(t, 8*256, sh.ColumnWidth(4))

	sh.SetColumnWidth(3, 4000)
	sh.SetColumnWidth(4, 4000)
	require.Len(t, sh.columns, 1)
	assert.Equal(t, uint16(3), sh.columns[0].FirstCol)
	assert.Equal(t, uint16(4), sh.columns[0].LastCol)

	sh.SetColumnWidth(4, 1000)
	require.Len(t, sh.columns, 2)
	assert.Equal(t, 4000, sh.ColumnWidth(3))
	assert.Equal(t, 1000, sh.ColumnWidth(4))
}

func TestCloneSheetCopiesRegionsAndBreaks(t *testing.T) {
	w, sh := newTestWorkbook(t)
	require.NoError(t, sh.SetCell(number(0, 0, 3)))
	sh.AddMergedRegion(record.CellRange{FirstRow: 0, LastRow: 1, FirstCol: 0, LastCol: 2})
	sh.SetRowBreak(4)
	sh.SetColumnBreak(2)

	i := w.CloneSheet(0, "Copy")
	require.Equal(t, 1, i)
	c := w.Sheet(i)
	assert.Equal(t, sh.MergedRegions(), c.MergedRegions())
	assert.True(t, c.IsRowBroken(4))
	assert.True(t, c.IsColumnBroken(2))
	assert.Equal(t, []int{4}, c.RowBreaks())

	c.RemoveRowBreak(4)
	c.RemoveMergedRegion(0)
	assert.True(t, sh.IsRowBroken(4))
	assert.Len(t, sh.MergedRegions(), 1)

	rw := reread(t, w, nil)
	assert.Equal(t, []int{2}, rw.Sheet(1).ColumnBreaks())
	assert.Empty(t, rw.Sheet(1).MergedRegions())
}

func TestMergedRegionsSplitAcrossRecords(t *testing.T) {
	_, sh := newTestWorkbook(t)
	for i := 0; i < record.MaxMergedRegionsPerRecord+5; i++ {
		sh.AddMergedRegion(record.CellRange{FirstRow: i, LastRow: i, FirstCol: 0, LastCol: 1})
	}
	var counts []int
	for _, r := range sh.Records(0) {
		if m, ok := r.(*record.MergeCellsRecord); ok {
			counts = append(counts, len(m.Regions))
		}
	}
	assert.Equal(t, []int{record.MaxMergedRegionsPerRecord, 5}, counts)
}

func TestLinkTableRemoveSheet(t *testing.T) {
	lt := NewLinkTable(3, nil)
	a := lt.InternalSheetIndex(0, 0)
	b := lt.InternalSheetIndex(1, 1)
	c := lt.InternalSheetIndex(2, 2)
	span := lt.InternalSheetIndex(0, 2)

	lt.removeSheet(1)

	ref, err := lt.Resolve(a)
	require.NoError(t, err)
	assert.Equal(t, 0, ref.FirstSheet)
	ref, err = lt.Resolve(b)
	require.NoError(t, err)
	assert.Equal(t, -1, ref.FirstSheet)
	ref, err = lt.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, 1, ref.FirstSheet)
	ref, err = lt.Resolve(span)
	require.NoError(t, err)
	assert.Equal(t, 0, ref.FirstSheet)
	assert.Equal(t, 1, ref.LastSheet)
}

func TestReferencePolicy(t *testing.T) {
	var log bytes.Buffer
	lt := NewLinkTable(1, &Options{Logfile: &log})
	i := lt.InternalSheetIndex(3, 3)
	ref, err := lt.Resolve(i)
	require.NoError(t, err)
	assert.False(t, ref.Valid)
	assert.Contains(t, log.String(), "extern sheet")

	strict := NewLinkTable(1, &Options{ReferencePolicy: ResolveStrict})
	i = strict.InternalSheetIndex(3, 3)
	_, err = strict.Resolve(i)
	assert.Equal(t, ErrUnresolvable, err)
	assert.True(t, IsErrNotFound(err))

	_, err = strict.Resolve(99)
	assert.Equal(t, ErrUnresolvable, err)
}

func TestExternalReferences(t *testing.T) {
	lt := NewLinkTable(1, nil)
	lt.AddExternalBook("/data/other.xls", []string{"S1", "S2"})

	i, err := lt.ExternalSheetIndex("other.xls", "s1", "S2")
	require.NoError(t, err)
	ref, err := lt.Resolve(i)
	require.NoError(t, err)
	assert.False(t, ref.Internal)
	assert.Equal(t, 0, ref.FirstSheet)
	assert.Equal(t, 1, ref.LastSheet)

	_, err = lt.ExternalSheetIndex("missing.xls", "S1", "S1")
	assert.Equal(t, ErrBookNotFound, err)
	_, err = lt.ExternalSheetIndex("other.xls", "S9", "S9")
	assert.Equal(t, ErrSheetNotFound, err)

	assert.True(t, lt.ChangeExternalReference("/data/other.xls", "/data/new.xls"))
	assert.False(t, lt.ChangeExternalReference("/data/other.xls", "/data/x.xls"))
	assert.Equal(t, []string{"/data/new.xls"}, lt.ExternalBooks())
}

func TestResolverRendersSheetNames(t *testing.T) {
	w, _ := newTestWorkbook(t)
	w.AddSheet("Other Sheet", NewSheet(nil))

	tokens, err := w.ParseFormula("SUM('Other Sheet'!A1:B2)", 0, formula.TypeCell)
	require.NoError(t, err)
	assert.Equal(t, "SUM('Other Sheet'!A1:B2)", w.RenderFormula(tokens, 0, 0, 0))

	w.RemoveSheet(1)
	assert.Equal(t, "SUM(#REF!)", w.RenderFormula(tokens, 0, 0, 0))
}

func TestMoveSheet(t *testing.T) {
	w, _ := newTestWorkbook(t)
	w.AddSheet("B", NewSheet(nil))
	w.AddSheet("C", NewSheet(nil))
	ixti := w.Links().InternalSheetIndex(2, 2)

	w.MoveSheet(2, 0)
	assert.Equal(t, "C", w.SheetName(0))
	assert.Equal(t, "Data", w.SheetName(1))
	assert.Equal(t, "B", w.SheetName(2))
	ref, err := w.Links().Resolve(ixti)
	require.NoError(t, err)
	assert.Equal(t, 0, ref.FirstSheet)

	rw := reread(t, w, nil)
	assert.Equal(t, "C", rw.SheetName(0))
	assert.Equal(t, "B", rw.SheetName(2))
}

func TestAddColor(t *testing.T) {
	w := NewWorkbook(nil)
	idx, err := w.AddColor([3]uint8{255, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 10, idx)

	idx, err = w.AddColor([3]uint8{1, 2, 3})
	require.NoError(t, err)
	got, ok := w.Color(idx)
	require.True(t, ok)
	assert.Equal(t, [3]uint8{1, 2, 3}, got)

	again, err := w.AddColor([3]uint8{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, idx, again)

	other, err := w.AddColor([3]uint8{4, 5, 6})
	require.NoError(t, err)
	assert.NotEqual(t, idx, other)
}

func TestFormatIndex(t *testing.T) {
	w := NewWorkbook(nil)
	assert.Equal(t, 0x0E, w.FormatIndex("m/d/yy"))
	i := w.FormatIndex("0.000")
	assert.GreaterOrEqual(t, i, FirstUserFormat)
	assert.Equal(t, i, w.FormatIndex("0.000"))
	s, ok := w.FormatString(i)
	require.True(t, ok)
	assert.Equal(t, "0.000", s)
}

func addRectangle(t *testing.T, w *Workbook, sh *Sheet) {
	t.Helper()
	dgID, dg := w.NewDrawing()
	d := NewDrawingAggregate(dg)
	anchor, err := escher.NewClientAnchor(0, 0, 0, 0, 2, 2, 0, 0)
	require.NoError(t, err)
	spid := w.AllocateShapeID(dgID)
	shape := escher.NewShape(escher.ShapeRectangle, spid, escher.SimpleShapeProperties(), anchor)
	d.AddShape(shape, spid, record.NewObj(record.ObjRectangle, int(spid%escher.ShapeIDsPerCluster)))
	sh.SetDrawing(d)
}

func TestDrawingRoundTrip(t *testing.T) {
	w, sh := newTestWorkbook(t)
	addRectangle(t, w, sh)

	var sids []uint16
	for _, r := range sh.Records(0) {
		switch r.Sid() {
		case record.XL_MSO_DRAWING, record.XL_OBJ:
			sids = append(sids, r.Sid())
		}
	}
	assert.Equal(t, []uint16{record.XL_MSO_DRAWING, record.XL_OBJ}, sids)

	rw := reread(t, w, nil)
	require.NotNil(t, rw.DrawingGroup())
	d := rw.Sheet(0).Drawing()
	require.NotNil(t, d)
	require.False(t, d.IsRaw())
	shapes := escher.Shapes(d.Dg)
	require.Len(t, shapes, 1)
	assert.NotNil(t, d.Object(shapes[0]))
}

func TestCloneSheetRenumbersDrawing(t *testing.T) {
	w, sh := newTestWorkbook(t)
	addRectangle(t, w, sh)

	c := w.Sheet(w.CloneSheet(0, "Copy"))
	src, err := escher.DecodeDg(sh.Drawing().Dg.Child(escher.Dg))
	require.NoError(t, err)
	dst, err := escher.DecodeDg(c.Drawing().Dg.Child(escher.Dg))
	require.NoError(t, err)
	assert.NotEqual(t, src.DrawingID, dst.DrawingID)

	a, err := escher.DecodeSp(escher.Shapes(sh.Drawing().Dg)[0].Child(escher.Sp))
	require.NoError(t, err)
	b, err := escher.DecodeSp(escher.Shapes(c.Drawing().Dg)[0].Child(escher.Sp))
	require.NoError(t, err)
	assert.NotEqual(t, a.ShapeID, b.ShapeID)
}

func TestUnreadableDrawingKeptVerbatim(t *testing.T) {
	var log bytes.Buffer
	opts := &Options{Logfile: &log}
	w := NewWorkbook(opts)
	raw := &record.DrawingRecord{Data: []byte{0x0F, 0x00, 0x02, 0xF0, 0xFF, 0xFF, 0x00, 0x00}}
	sh, err := ReadSheet([]record.Record{
		record.NewBOF(record.XL_WORKSHEET), raw, record.NewWindow2(), record.NewEOF(),
	}, w, opts)
	require.NoError(t, err)
	require.NotNil(t, sh.Drawing())
	assert.True(t, sh.Drawing().IsRaw())
	assert.Contains(t, log.String(), "drawing kept verbatim")

	found := false
	for _, r := range sh.Records(0) {
		if r == raw {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNonWorksheetKeptWhole(t *testing.T) {
	w := NewWorkbook(nil)
	chart := []record.Record{
		record.NewBOF(record.XL_CHART),
		&record.UnknownRecord{Type: 0x1002, Data: make([]byte, 16)},
		record.NewEOF(),
	}
	sh, err := ReadSheet(chart, w, nil)
	require.NoError(t, err)
	assert.False(t, sh.IsWorksheet())
	assert.Equal(t, chart, sh.Records(0))
}

func TestFilePassRejected(t *testing.T) {
	recs := []record.Record{
		record.NewBOF(record.XL_WORKBOOK_GLOBALS),
		&record.UnknownRecord{Type: record.XL_FILEPASS, Data: make([]byte, 54)},
		record.NewEOF(),
	}
	_, err := ReadWorkbook(recs, nil)
	assert.Equal(t, ErrEncrypted, err)
}

func TestValidationsWithoutDValGetOne(t *testing.T) {
	var log bytes.Buffer
	opts := &Options{Logfile: &log}
	w := NewWorkbook(opts)
	dv := record.NewDV(record.ValidationAny, nil, nil, []record.CellRange{{FirstRow: 0, LastRow: 3}})
	sh, err := ReadSheet([]record.Record{
		record.NewBOF(record.XL_WORKSHEET), record.NewWindow2(), dv, record.NewEOF(),
	}, w, opts)
	require.NoError(t, err)
	assert.Contains(t, log.String(), "without DVAL")

	var sids []uint16
	require.NotPanics(t, func() {
		for _, r := range sh.Records(0) {
			sids = append(sids, r.Sid())
		}
	})
	i := indexOfSid(sids, record.XL_DVAL)
	require.GreaterOrEqual(t, i, 0)
	require.Less(t, i+1, len(sids))
	assert.Equal(t, uint16(record.XL_DV), sids[i+1])
}

func indexOfSid(sids []uint16, sid uint16) int {
	for i, s := range sids {
		if s == sid {
			return i
		}
	}
	return -1
}
