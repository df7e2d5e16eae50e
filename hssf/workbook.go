// Package hssf is the user model over BIFF8 workbooks: sheets, rows and
// cells, styles, pictures and formulas, read from and written to OLE2
// compound files.
//
// A Workbook owns the aggregated record model; Sheet, Cell, Font and
// CellStyle values are handles into it and are cheap to create. None of
// the types are safe for concurrent use.
package hssf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/poifs"
	"github.com/yamitzky/hssf-go/record"
)

// WorkbookStreamName is the stream Write stores the workbook in.
const WorkbookStreamName = "Workbook"

// Stream names a workbook may be found under, in lookup order. Entry
// lookup ignores case, so "WORKBOOK" matches the first.
var workbookStreamNames = []string{WorkbookStreamName, "Book"}

// Options controls reading and writing. A nil *Options means defaults.
type Options struct {
	// Logfile receives warnings about tolerated damage. Nil means silent.
	Logfile io.Writer

	// Verbosity increases the volume of trace output.
	Verbosity int

	// PreserveNodes keeps every other entry of the source compound file,
	// such as macros and embedded objects, when writing.
	PreserveNodes bool

	// ReferencePolicy governs extern sheet references that cannot be
	// resolved.
	ReferencePolicy model.ReferencePolicy

	// SubRecordPolicy governs malformed OBJ sub-records.
	SubRecordPolicy record.SubRecordPolicy

	// IgnoreWorkbookCorruption drops a truncated record at the end of the
	// workbook stream instead of failing.
	IgnoreWorkbookCorruption bool
}

func (o *Options) warnf(format string, args ...interface{}) {
	if o != nil && o.Logfile != nil {
		fmt.Fprintf(o.Logfile, "hssf: "+format+"\n", args...)
	}
}

func (o *Options) model() *model.Options {
	if o == nil {
		return nil
	}
	return &model.Options{Logfile: o.Logfile, Verbosity: o.Verbosity, ReferencePolicy: o.ReferencePolicy}
}

func (o *Options) decode() *record.DecodeOptions {
	if o == nil {
		return nil
	}
	return &record.DecodeOptions{SubRecordPolicy: o.SubRecordPolicy, Logfile: o.Logfile, Verbosity: o.Verbosity}
}

// Workbook is a BIFF8 workbook.
type Workbook struct {
	m    *model.Workbook
	opts *Options

	// fs is the compound file the workbook was read from, nil for a new
	// workbook.
	fs *poifs.FileSystem

	// summary replaces the SummaryInformation stream when set.
	summary []byte
}

// NewWorkbook creates an empty workbook. Add a sheet before writing it.
func NewWorkbook(opts *Options) *Workbook {
	return &Workbook{m: model.NewWorkbook(opts.model()), opts: opts}
}

// OpenFile reads the workbook in the compound file at path.
func OpenFile(path string, opts *Options) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fs, err := poifs.Open(data)
	if err != nil {
		return nil, err
	}
	return OpenFileSystem(fs, opts)
}

// Open reads the workbook in the compound file r supplies.
func Open(r io.Reader, opts *Options) (*Workbook, error) {
	fs, err := poifs.OpenReader(r)
	if err != nil {
		return nil, err
	}
	return OpenFileSystem(fs, opts)
}

// OpenFileSystem reads the workbook stream of an opened compound file.
func OpenFileSystem(fs *poifs.FileSystem, opts *Options) (*Workbook, error) {
	data, err := WorkbookStream(fs)
	if err != nil {
		return nil, err
	}
	version, err := record.SniffBiffVersion(data)
	if err != nil {
		return nil, fmt.Errorf("hssf: %w", err)
	}
	if version < record.BIFF8 {
		return nil, &OldExcelFormatError{Version: version}
	}
	if opts != nil && opts.IgnoreWorkbookCorruption {
		data = completeRecords(data, opts)
	}
	records, err := record.Decode(data, opts.decode())
	if err != nil {
		return nil, fmt.Errorf("hssf: %w", err)
	}
	m, err := model.ReadWorkbook(records, opts.model())
	if err != nil {
		return nil, fmt.Errorf("hssf: %w", err)
	}
	return &Workbook{m: m, opts: opts, fs: fs}, nil
}

// WorkbookStream returns the bytes of the workbook stream of fs.
func WorkbookStream(fs *poifs.FileSystem) ([]byte, error) {
	for _, name := range workbookStreamNames {
		if doc, err := fs.Root.Document(name); err == nil {
			return doc.Data, nil
		}
	}
	return nil, ErrNoWorkbookStream
}

// completeRecords cuts data after the last record whose header and
// payload are both present.
func completeRecords(data []byte, opts *Options) []byte {
	pos := 0
	for pos+record.HeaderSize <= len(data) {
		n := int(binary.LittleEndian.Uint16(data[pos+2:]))
		if pos+record.HeaderSize+n > len(data) {
			break
		}
		pos += record.HeaderSize + n
	}
	if pos < len(data) && !allZero(data[pos:]) {
		opts.warnf("workbook stream truncated: ignoring %d bytes after offset %d", len(data)-pos, pos)
		return data[:pos]
	}
	return data
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Model returns the aggregated records behind the workbook.
func (wb *Workbook) Model() *model.Workbook { return wb.m }

// Write stores the workbook as a compound file. The workbook always goes
// to a stream named "Workbook". Summary streams of the source file are
// carried over; other entries only with PreserveNodes.
func (wb *Workbook) Write(w io.Writer) (int64, error) {
	fs, err := wb.fileSystem()
	if err != nil {
		return 0, err
	}
	return fs.WriteTo(w)
}

// WriteFile writes the workbook to path.
func (wb *Workbook) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := wb.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Bytes returns the compound file Write would produce.
func (wb *Workbook) Bytes() ([]byte, error) {
	var b bytes.Buffer
	if _, err := wb.Write(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (wb *Workbook) fileSystem() (*poifs.FileSystem, error) {
	if wb.m.NumSheets() == 0 {
		return nil, InvalidError("hssf: a workbook needs at least one sheet")
	}
	fs := poifs.New()
	switch {
	case wb.fs != nil && wb.opts != nil && wb.opts.PreserveNodes:
		fs.Root = wb.fs.Root.Copy()
		for _, name := range workbookStreamNames {
			for fs.Root.HasEntry(name) {
				if err := fs.Root.Delete(name); err != nil {
					return nil, err
				}
			}
		}
	case wb.fs != nil:
		for _, name := range []string{poifs.SummaryInformationName, poifs.DocumentSummaryInformationName} {
			if doc, err := wb.fs.Root.Document(name); err == nil {
				if _, err := fs.Root.CreateDocument(name, append([]byte(nil), doc.Data...)); err != nil {
					return nil, err
				}
			}
		}
	}
	if wb.summary != nil {
		if fs.Root.HasEntry(poifs.SummaryInformationName) {
			if err := fs.Root.Delete(poifs.SummaryInformationName); err != nil {
				return nil, err
			}
		}
		if _, err := fs.Root.CreateDocument(poifs.SummaryInformationName, wb.summary); err != nil {
			return nil, err
		}
	}
	if _, err := fs.Root.CreateDocument(WorkbookStreamName, wb.m.Serialize()); err != nil {
		return nil, err
	}
	return fs, nil
}

// SetSummary replaces the document summary written with the workbook.
func (wb *Workbook) SetSummary(p poifs.SummaryProperties) {
	wb.summary = poifs.BuildSummaryInformation(p)
}

// Summary decodes the summary information the workbook will be written
// with. It returns nil when there is none.
func (wb *Workbook) Summary() ([]poifs.Property, error) {
	data := wb.summary
	if data == nil && wb.fs != nil {
		if doc, err := wb.fs.Root.Document(poifs.SummaryInformationName); err == nil {
			data = doc.Data
		}
	}
	if data == nil {
		return nil, nil
	}
	return poifs.ReadPropertySet(data)
}

// Is1904 reports whether dates count from 1904.
func (wb *Workbook) Is1904() bool { return wb.m.DateMode() == 1 }

// Set1904 selects the 1904 date system.
func (wb *Workbook) Set1904(v bool) {
	mode := 0
	if v {
		mode = 1
	}
	wb.m.SetRecord(record.NewValueRecord(record.XL_DATEMODE, mode))
}

// Sheets

// NumSheets returns the number of sheets.
func (wb *Workbook) NumSheets() int { return wb.m.NumSheets() }

// Sheet returns sheet i, or nil.
func (wb *Workbook) Sheet(i int) *Sheet {
	if i < 0 || i >= wb.m.NumSheets() {
		return nil
	}
	return &Sheet{wb: wb, m: wb.m.Sheet(i)}
}

// SheetByName returns the sheet named name, compared ignoring case, or
// nil.
func (wb *Workbook) SheetByName(name string) *Sheet {
	return wb.Sheet(wb.m.SheetIndex(name))
}

// SheetIndex returns the index of the sheet named name, or -1.
func (wb *Workbook) SheetIndex(name string) int { return wb.m.SheetIndex(name) }

// SheetName returns the name of sheet i.
func (wb *Workbook) SheetName(i int) string { return wb.m.SheetName(i) }

// SheetNames returns the sheet names in tab order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, wb.m.NumSheets())
	for i := range names {
		names[i] = wb.m.SheetName(i)
	}
	return names
}

// CreateSheet appends an empty worksheet.
func (wb *Workbook) CreateSheet(name string) (*Sheet, error) {
	if err := wb.checkNewName(name, -1); err != nil {
		return nil, err
	}
	sh := model.NewSheet(wb.opts.model())
	i := wb.m.AddSheet(name, sh)
	if i == 0 {
		if w := sh.Window2(); w != nil {
			w.SetSelected(true)
		}
	}
	return wb.Sheet(i), nil
}

// SetSheetName renames sheet i.
func (wb *Workbook) SetSheetName(i int, name string) error {
	if i < 0 || i >= wb.m.NumSheets() {
		return ErrSheetNotFound
	}
	if err := wb.checkNewName(name, i); err != nil {
		return err
	}
	wb.m.SetSheetName(i, name)
	return nil
}

// RemoveSheet deletes sheet i. Formulas referring to it render as #REF!.
func (wb *Workbook) RemoveSheet(i int) error {
	if i < 0 || i >= wb.m.NumSheets() {
		return ErrSheetNotFound
	}
	wb.m.RemoveSheet(i)
	return nil
}

// SetSheetOrder moves the sheet named name to position pos.
func (wb *Workbook) SetSheetOrder(name string, pos int) error {
	i := wb.m.SheetIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	if pos < 0 || pos >= wb.m.NumSheets() {
		return InvalidError(fmt.Sprintf("hssf: sheet position %d out of range", pos))
	}
	wb.m.MoveSheet(i, pos)
	return nil
}

// CloneSheet appends a copy of sheet i named after it: "Data" becomes
// "Data (2)", "Data (2)" becomes "Data (3)".
func (wb *Workbook) CloneSheet(i int) (*Sheet, error) {
	if i < 0 || i >= wb.m.NumSheets() {
		return nil, ErrSheetNotFound
	}
	return wb.Sheet(wb.m.CloneSheet(i, wb.cloneName(wb.m.SheetName(i)))), nil
}

var cloneSuffix = regexp.MustCompile(`^(.*) \((\d+)\)$`)

func (wb *Workbook) cloneName(src string) string {
	base, n := src, 2
	if m := cloneSuffix.FindStringSubmatch(src); m != nil {
		if k, err := strconv.Atoi(m[2]); err == nil {
			base, n = m[1], k+1
		}
	}
	for ; ; n++ {
		suffix := " (" + strconv.Itoa(n) + ")"
		b := base
		for utf8.RuneCountInString(b)+len(suffix) > MaxSheetNameLength {
			_, size := utf8.DecodeLastRuneInString(b)
			b = b[:len(b)-size]
		}
		if name := b + suffix; wb.m.SheetIndex(name) < 0 {
			return name
		}
	}
}

// MaxSheetNameLength is the longest sheet name Excel accepts.
const MaxSheetNameLength = 31

// ValidateSheetName checks the rules Excel applies to sheet names.
func ValidateSheetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSheetName)
	}
	if utf8.RuneCountInString(name) > MaxSheetNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidSheetName, name, MaxSheetNameLength)
	}
	if i := strings.IndexAny(name, `:\/?*[]`); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidSheetName, name, name[i])
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Errorf("%w: %q starts or ends with an apostrophe", ErrInvalidSheetName, name)
	}
	return nil
}

func (wb *Workbook) checkNewName(name string, self int) error {
	if err := ValidateSheetName(name); err != nil {
		return err
	}
	if i := wb.m.SheetIndex(name); i >= 0 && i != self {
		return fmt.Errorf("%w: %q", ErrSheetExists, name)
	}
	return nil
}

// External references

// LinkExternalWorkbook registers other as the external workbook name so
// formulas can refer to its sheets as [name]Sheet!A1. It returns the
// link table index of the book.
func (wb *Workbook) LinkExternalWorkbook(name string, other *Workbook) int {
	return wb.m.Links().AddExternalBook(name, other.SheetNames())
}

// ExternalWorkbooks returns the file names of the linked workbooks.
func (wb *Workbook) ExternalWorkbooks() []string { return wb.m.Links().ExternalBooks() }

// ChangeExternalReference points links to the workbook oldURL at newURL.
// It reports whether such a link existed.
func (wb *Workbook) ChangeExternalReference(oldURL, newURL string) bool {
	return wb.m.Links().ChangeExternalReference(oldURL, newURL)
}
