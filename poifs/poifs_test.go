package poifs

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func roundTrip(t *testing.T, fs *FileSystem) *FileSystem {
	t.Helper()
	var buf bytes.Buffer
	n, err := fs.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Zero(t, buf.Len()%SectorSize)

	back, err := Open(buf.Bytes())
	require.NoError(t, err)
	return back
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := New()
	_, err := fs.Root.CreateDocument("Workbook", pattern(10000))
	require.NoError(t, err)
	_, err = fs.Root.CreateDocument(SummaryInformationName, pattern(300))
	require.NoError(t, err)
	_, err = fs.Root.CreateDocument("Empty", nil)
	require.NoError(t, err)
	pool, err := fs.Root.CreateDirectory("ObjectPool")
	require.NoError(t, err)
	obj, err := pool.CreateDirectory("MBD0000001")
	require.NoError(t, err)
	_, err = obj.CreateDocument("\x01Ole10Native", pattern(5000))
	require.NoError(t, err)
	_, err = obj.CreateDocument("small", pattern(65))
	require.NoError(t, err)

	back := roundTrip(t, fs)

	wb, err := back.Root.Document("Workbook")
	require.NoError(t, err)
	assert.Equal(t, pattern(10000), wb.Data)

	si, err := back.Root.Document(SummaryInformationName)
	require.NoError(t, err)
	assert.Equal(t, pattern(300), si.Data)

	empty, err := back.Root.Document("Empty")
	require.NoError(t, err)
	assert.Empty(t, empty.Data)

	pool2, err := back.Root.Directory("ObjectPool")
	require.NoError(t, err)
	obj2, err := pool2.Directory("MBD0000001")
	require.NoError(t, err)
	native, err := obj2.Document("\x01Ole10Native")
	require.NoError(t, err)
	assert.Equal(t, pattern(5000), native.Data)
	small, err := obj2.Document("small")
	require.NoError(t, err)
	assert.Equal(t, pattern(65), small.Data)
}

func TestControlCharacterStoragesKeepChildren(t *testing.T) {
	fs := New()
	info, err := fs.Root.CreateDirectory("\x03ObjInfo")
	require.NoError(t, err)
	_, err = info.CreateDocument("\x01Ole", pattern(20))
	require.NoError(t, err)
	nested, err := info.CreateDirectory("\x01CompObj")
	require.NoError(t, err)
	_, err = nested.CreateDocument("data", pattern(70))
	require.NoError(t, err)

	back := roundTrip(t, fs)
	assert.Equal(t, []string{"\x03ObjInfo"}, back.Root.EntryNames())

	info2, err := back.Root.Directory("\x03ObjInfo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"\x01Ole", "\x01CompObj"}, info2.EntryNames())
	ole, err := info2.Document("\x01Ole")
	require.NoError(t, err)
	assert.Equal(t, pattern(20), ole.Data)

	nested2, err := info2.Directory("\x01CompObj")
	require.NoError(t, err)
	data, err := nested2.Document("data")
	require.NoError(t, err)
	assert.Equal(t, pattern(70), data.Data)
}

func TestWriteIsDeterministic(t *testing.T) {
	build := func() []byte {
		fs := New()
		fs.Root.CreateDocument("Workbook", pattern(5000))
		fs.Root.CreateDocument("b", pattern(10))
		return fs.Bytes()
	}
	assert.Equal(t, build(), build())
}

func TestManyEntries(t *testing.T) {
	fs := New()
	for i := 0; i < 60; i++ {
		_, err := fs.Root.CreateDocument(fmt.Sprintf("stream%d", i), pattern(i*13))
		require.NoError(t, err)
	}
	back := roundTrip(t, fs)
	for i := 0; i < 60; i++ {
		doc, err := back.Root.Document(fmt.Sprintf("STREAM%d", i))
		require.NoError(t, err)
		assert.Equal(t, pattern(i*13), doc.Data, "stream%d", i)
	}
}

func TestLargeStreamNeedsDIFAT(t *testing.T) {
	if testing.Short() {
		t.Skip("large allocation")
	}
	size := 110*idsPerSector*SectorSize + 1000
	fs := New()
	_, err := fs.Root.CreateDocument("Workbook", pattern(size))
	require.NoError(t, err)

	data := fs.Bytes()
	back, err := Open(data)
	require.NoError(t, err)
	doc, err := back.Root.Document("Workbook")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pattern(size), doc.Data))
}

func TestCaseInsensitiveLookup(t *testing.T) {
	fs := New()
	_, err := fs.Root.CreateDocument("WORKBOOK", []byte{1})
	require.NoError(t, err)

	assert.True(t, fs.Root.HasEntry("Workbook"))
	e, err := fs.Root.Entry("workbook")
	require.NoError(t, err)
	assert.Equal(t, "WORKBOOK", e.EntryName())

	_, err = fs.Root.CreateDocument("Workbook", nil)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.True(t, IsErrInvalid(err))

	require.NoError(t, fs.Root.Rename("WORKBOOK", "Workbook"))
	assert.Equal(t, []string{"Workbook"}, fs.Root.EntryNames())
}

func TestEntryErrors(t *testing.T) {
	fs := New()
	_, err := fs.Root.Entry("Book")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsErrNotFound(err))

	_, err = fs.Root.CreateDocument(strings.Repeat("x", 32), nil)
	assert.ErrorIs(t, err, ErrNameTooLong)
	_, err = fs.Root.CreateDocument(strings.Repeat("x", 31), nil)
	assert.NoError(t, err)

	assert.ErrorIs(t, fs.Root.Delete("missing"), ErrNotFound)
	require.NoError(t, fs.Root.Delete(strings.Repeat("X", 31)))
	assert.Empty(t, fs.Root.EntryNames())

	fs.Root.CreateDirectory("dir")
	_, err = fs.Root.Document("dir")
	assert.ErrorIs(t, err, ErrNotDocument)
}

func TestOpenRejectsBadInput(t *testing.T) {
	_, err := Open([]byte("PK\x03\x04 rest of a zip"))
	var ox *OfficeXMLError
	assert.True(t, errors.As(err, &ox))

	_, err = Open(make([]byte, 1024))
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))

	_, err = Open(Signature)
	assert.True(t, errors.As(err, &fe))
}

func TestCopyIsDeep(t *testing.T) {
	fs := New()
	dir, _ := fs.Root.CreateDirectory("d")
	dir.CreateDocument("s", []byte{1, 2})

	c := fs.Root.Copy()
	d2, err := c.Directory("d")
	require.NoError(t, err)
	s2, err := d2.Document("s")
	require.NoError(t, err)
	s2.Data[0] = 9

	s, _ := dir.Document("s")
	assert.Equal(t, byte(1), s.Data[0])
}

func TestSummaryInformation(t *testing.T) {
	data := BuildSummaryInformation(SummaryProperties{Title: "Quarterly", Author: "Ana"})
	props, err := ReadPropertySet(data)
	require.NoError(t, err)

	var values []string
	for _, p := range props {
		values = append(values, p.Value)
	}
	joined := strings.Join(values, "|")
	assert.Contains(t, joined, "Quarterly")
	assert.Contains(t, joined, "Ana")
}

func TestSummaryInformationCodepage(t *testing.T) {
	data := BuildSummaryInformation(SummaryProperties{Title: "Café", Author: "Müller"})
	props, err := ReadPropertySet(data)
	require.NoError(t, err)

	var values []string
	for _, p := range props {
		values = append(values, p.Value)
	}
	assert.Contains(t, values, "Café")
	assert.Contains(t, values, "Müller")

	assert.Equal(t, charmap.Windows1251, codepageEncoding("windows-1251 - ANSI Cyrillic; Cyrillic (Windows)"))
	assert.Nil(t, codepageEncoding("utf-16 - Unicode UTF-16"))
	assert.Nil(t, codepageEncoding(""))
}

func TestInspectFormat(t *testing.T) {
	assert.Equal(t, "xls", InspectFormat(New().Bytes()))
	assert.Equal(t, "", InspectFormat([]byte("short")))
	assert.Equal(t, "", InspectFormat([]byte("plain text file")))
	assert.Equal(t, "zip", InspectFormat([]byte("PK\x03\x04garbage!")))
}
