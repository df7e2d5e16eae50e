package hssf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/hssf-go/poifs"
	"github.com/yamitzky/hssf-go/record"
	"github.com/yamitzky/hssf-go/sanity"
	"github.com/yamitzky/hssf-go/streamutil"
)

func newBook(t *testing.T, names ...string) *Workbook {
	t.Helper()
	wb := NewWorkbook(nil)
	for _, n := range names {
		_, err := wb.CreateSheet(n)
		require.NoError(t, err)
	}
	return wb
}

func reopen(t *testing.T, wb *Workbook, opts *Options) *Workbook {
	t.Helper()
	b, err := wb.Bytes()
	require.NoError(t, err)
	back, err := Open(bytes.NewReader(b), opts)
	require.NoError(t, err)
	return back
}

func TestCreateSheetValidatesNames(t *testing.T) {
	wb := newBook(t, "Data")

	_, err := wb.CreateSheet("data")
	assert.ErrorIs(t, err, ErrSheetExists)
	_, err = wb.CreateSheet("a/b")
	assert.ErrorIs(t, err, ErrInvalidSheetName)
	_, err = wb.CreateSheet(strings.Repeat("x", 32))
	assert.ErrorIs(t, err, ErrInvalidSheetName)
	_, err = wb.CreateSheet("'quoted")
	assert.True(t, IsErrInvalid(err))

	assert.True(t, wb.Sheet(0).IsSelected())
	s, err := wb.CreateSheet("Second")
	require.NoError(t, err)
	assert.False(t, s.IsSelected())
	assert.Nil(t, wb.Sheet(2))

	back := reopen(t, wb, nil)
	assert.True(t, back.Sheet(0).IsSelected())
	assert.False(t, back.Sheet(1).IsSelected())
}

func TestWriteRequiresASheet(t *testing.T) {
	_, err := NewWorkbook(nil).Bytes()
	assert.True(t, IsErrInvalid(err))
}

func TestRoundTripIsStable(t *testing.T) {
	wb := newBook(t, "Numbers", "Text")
	require.NoError(t, wb.Sheet(0).Cell(0, 0).SetNumber(42))
	require.NoError(t, wb.Sheet(1).Cell(3, 2).SetString("hello"))

	first, err := wb.Bytes()
	require.NoError(t, err)
	back := reopen(t, wb, nil)
	second, err := back.Bytes()
	require.NoError(t, err)

	diffs, err := streamutil.DiffStreams(io.NopCloser(bytes.NewReader(first)), io.NopCloser(bytes.NewReader(second)), nil)
	require.NoError(t, err)
	assert.Nil(t, diffs)

	assert.Equal(t, []string{"Numbers", "Text"}, back.SheetNames())
	assert.Equal(t, 42.0, back.Sheet(0).Cell(0, 0).Number())
	assert.Equal(t, "hello", back.Sheet(1).Cell(3, 2).StringValue())
	assert.NoError(t, sanity.CheckStream(back.Model().Records()))
}

func workbookStream(t *testing.T, wb *Workbook) []byte {
	t.Helper()
	b, err := wb.Bytes()
	require.NoError(t, err)
	fs, err := poifs.Open(b)
	require.NoError(t, err)
	data, err := WorkbookStream(fs)
	require.NoError(t, err)
	return data
}

// recordOffset returns the stream offset of the first record with sid.
func recordOffset(t *testing.T, data []byte, sid uint16) int {
	t.Helper()
	for pos := 0; pos+record.HeaderSize <= len(data); {
		if binary.LittleEndian.Uint16(data[pos:]) == sid {
			return pos
		}
		pos += record.HeaderSize + int(binary.LittleEndian.Uint16(data[pos+2:]))
	}
	t.Fatalf("no record 0x%04X", sid)
	return -1
}

func TestRoundTripAllowsUserNameRegion(t *testing.T) {
	wb := newBook(t, "S")
	require.NoError(t, wb.Sheet(0).Cell(0, 0).SetNumber(1))
	wb.Model().SetUserName("first author")
	first := workbookStream(t, wb)

	back := reopen(t, wb, nil)
	back.Model().SetUserName("someone else")
	second := workbookStream(t, back)
	require.Len(t, second, len(first))

	off := recordOffset(t, first, record.XL_WRITEACCESS)
	region := []int{off + record.HeaderSize, 112}

	diffs, err := streamutil.DiffStreams(io.NopCloser(bytes.NewReader(first)), io.NopCloser(bytes.NewReader(second)), nil)
	require.NoError(t, err)
	require.NotEmpty(t, diffs)
	for _, d := range diffs {
		assert.GreaterOrEqual(t, d, region[0])
		assert.Less(t, d, region[0]+region[1])
	}

	diffs, err = streamutil.DiffStreams(io.NopCloser(bytes.NewReader(first)), io.NopCloser(bytes.NewReader(second)), region)
	require.NoError(t, err)
	assert.Nil(t, diffs)
	assert.Equal(t, "someone else", reopen(t, back, nil).Model().UserName())
}

func TestWorkbookStreamNames(t *testing.T) {
	b, err := newBook(t, "Only").Bytes()
	require.NoError(t, err)

	for _, name := range []string{"WORKBOOK", "BOOK", "Book"} {
		fs, err := poifs.Open(b)
		require.NoError(t, err)
		require.NoError(t, fs.Root.Rename("Workbook", name))

		wb, err := OpenFileSystem(fs, nil)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"Only"}, wb.SheetNames())

		out, err := wb.Bytes()
		require.NoError(t, err)
		written, err := poifs.Open(out)
		require.NoError(t, err)
		assert.Contains(t, written.Root.EntryNames(), "Workbook")
		assert.False(t, written.Root.HasEntry("Book"))
	}

	fs := poifs.New()
	_, err = fs.Root.CreateDocument("Other", []byte{1, 2, 3})
	require.NoError(t, err)
	_, err = OpenFileSystem(fs, nil)
	assert.ErrorIs(t, err, ErrNoWorkbookStream)
	assert.True(t, IsErrNotFound(err))
}

func TestOldFormatRejected(t *testing.T) {
	bof := make([]byte, 4+8)
	binary.LittleEndian.PutUint16(bof, 0x0809)
	binary.LittleEndian.PutUint16(bof[2:], 8)
	binary.LittleEndian.PutUint16(bof[4:], 0x0500)
	binary.LittleEndian.PutUint16(bof[6:], 0x0005)
	binary.LittleEndian.PutUint16(bof[10:], 1993)

	fs := poifs.New()
	_, err := fs.Root.CreateDocument("Book", bof)
	require.NoError(t, err)

	_, err = OpenFileSystem(fs, nil)
	var old *OldExcelFormatError
	require.True(t, errors.As(err, &old))
	assert.Equal(t, record.BIFF5, old.Version)
	assert.Contains(t, err.Error(), "BIFF5")
}

func TestSheetOrder(t *testing.T) {
	wb := newBook(t, "A", "B", "C")
	require.NoError(t, wb.Sheet(0).Cell(0, 0).SetNumber(1))

	require.NoError(t, wb.SetSheetOrder("A", 2))
	assert.Equal(t, []string{"B", "C", "A"}, wb.SheetNames())
	assert.Equal(t, 2, wb.SheetByName("a").Index())

	back := reopen(t, wb, nil)
	assert.Equal(t, []string{"B", "C", "A"}, back.SheetNames())
	assert.Equal(t, 1.0, back.Sheet(2).Cell(0, 0).Number())

	assert.ErrorIs(t, wb.SetSheetOrder("missing", 0), ErrSheetNotFound)
	assert.True(t, IsErrInvalid(wb.SetSheetOrder("A", 3)))
}

func TestRenameAndRemoveSheet(t *testing.T) {
	wb := newBook(t, "A", "B")
	assert.ErrorIs(t, wb.SetSheetName(0, "b"), ErrSheetExists)
	require.NoError(t, wb.SetSheetName(0, "a"))
	require.NoError(t, wb.SetSheetName(0, "First"))
	assert.Equal(t, 0, wb.SheetIndex("FIRST"))

	sh := wb.Sheet(1)
	require.NoError(t, wb.RemoveSheet(0))
	assert.Equal(t, []string{"B"}, wb.SheetNames())
	assert.Equal(t, 0, sh.Index())
	assert.ErrorIs(t, wb.RemoveSheet(5), ErrSheetNotFound)
}

func TestCloneSheet(t *testing.T) {
	wb := newBook(t, "Data")
	src := wb.Sheet(0)
	require.NoError(t, src.Cell(0, 0).SetNumber(7))
	_, err := src.AddMergedRegion(CellRange{FirstRow: 0, LastRow: 1, FirstCol: 0, LastCol: 1})
	require.NoError(t, err)
	src.SetRowBreak(3)
	src.SetColumnBreak(4)

	c1, err := wb.CloneSheet(0)
	require.NoError(t, err)
	assert.Equal(t, "Data (2)", c1.Name())
	c2, err := wb.CloneSheet(c1.Index())
	require.NoError(t, err)
	assert.Equal(t, "Data (3)", c2.Name())

	assert.Equal(t, src.MergedRegions(), c1.MergedRegions())
	assert.True(t, c1.IsRowBroken(3))
	assert.True(t, c1.IsColumnBroken(4))
	assert.False(t, c1.IsSelected())

	c1.RemoveMergedRegion(0)
	c1.RemoveColumnBreak(4)
	require.NoError(t, c1.Cell(0, 0).SetNumber(8))
	assert.Len(t, src.MergedRegions(), 1)
	assert.True(t, src.IsColumnBroken(4))
	assert.Equal(t, 7.0, src.Cell(0, 0).Number())

	_, err = wb.CloneSheet(9)
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestCloneNameIsTruncated(t *testing.T) {
	wb := newBook(t, strings.Repeat("n", MaxSheetNameLength))
	c, err := wb.CloneSheet(0)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("n", MaxSheetNameLength-4)+" (2)", c.Name())
}

func TestSummaryRoundTrip(t *testing.T) {
	wb := newBook(t, "S")
	props, err := wb.Summary()
	require.NoError(t, err)
	assert.Nil(t, props)

	wb.SetSummary(poifs.SummaryProperties{Title: "Budget", Author: "Kim"})
	back := reopen(t, wb, nil)
	props, err = back.Summary()
	require.NoError(t, err)
	var values []string
	for _, p := range props {
		values = append(values, p.Value)
	}
	assert.Contains(t, values, "Budget")
	assert.Contains(t, values, "Kim")
}

func TestPreserveNodes(t *testing.T) {
	b, err := newBook(t, "S").Bytes()
	require.NoError(t, err)
	fs, err := poifs.Open(b)
	require.NoError(t, err)
	obj, err := fs.Root.CreateDirectory("MBD0001A2B3")
	require.NoError(t, err)
	_, err = obj.CreateDocument("\x01Ole", []byte{1, 0, 0, 2})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = fs.WriteTo(&buf)
	require.NoError(t, err)

	wb, err := Open(bytes.NewReader(buf.Bytes()), &Options{PreserveNodes: true})
	require.NoError(t, err)
	objs := wb.EmbeddedObjects()
	require.Len(t, objs, 1)
	assert.Equal(t, "MBD0001A2B3", objs[0].Name)

	kept := reopen(t, wb, nil)
	require.Len(t, kept.EmbeddedObjects(), 1)

	dropped, err := Open(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Empty(t, reopen(t, dropped, nil).EmbeddedObjects())
	assert.Nil(t, NewWorkbook(nil).EmbeddedObjects())
}

func TestIgnoreWorkbookCorruption(t *testing.T) {
	b, err := newBook(t, "S").Bytes()
	require.NoError(t, err)
	fs, err := poifs.Open(b)
	require.NoError(t, err)
	doc, err := fs.Root.Document("Workbook")
	require.NoError(t, err)
	// A record header promising more bytes than the stream holds.
	doc.Data = append(doc.Data, 0x3C, 0x00, 0x40, 0x00, 0x01)

	var log bytes.Buffer
	wb, err := OpenFileSystem(fs, &Options{Logfile: &log, IgnoreWorkbookCorruption: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, wb.SheetNames())
	assert.Contains(t, log.String(), "truncated")
}

func TestDateMode(t *testing.T) {
	wb := newBook(t, "S")
	assert.False(t, wb.Is1904())
	wb.Set1904(true)
	assert.True(t, reopen(t, wb, nil).Is1904())
}

func TestExternalWorkbookLinks(t *testing.T) {
	book := newBook(t, "Main")
	other := newBook(t, "Data")

	assert.Equal(t, 0, len(book.ExternalWorkbooks()))
	book.LinkExternalWorkbook("other.xls", other)
	assert.Equal(t, []string{"other.xls"}, book.ExternalWorkbooks())

	assert.False(t, book.ChangeExternalReference("missing.xls", "x.xls"))
	assert.True(t, book.ChangeExternalReference("other.xls", "renamed.xls"))
	assert.Equal(t, []string{"renamed.xls"}, book.ExternalWorkbooks())
}
