package model

import (
	"path/filepath"
	"strings"

	"github.com/yamitzky/hssf-go/record"
)

// ExternSheetRef is a resolved EXTERNSHEET entry.
type ExternSheetRef struct {
	// Book is the index of the SUPBOOK the entry points at.
	Book int

	// URL is the file reference of an external book, empty for this
	// workbook and add-ins.
	URL string

	Internal bool

	// FirstSheet and LastSheet are zero based, -1 for a deleted sheet.
	FirstSheet, LastSheet int

	// Valid is false when best-effort resolution had to accept an index
	// past the sheets of the book.
	Valid bool
}

type externalBook struct {
	supBook     *record.SupBookRecord
	externNames []*record.ExternNameRecord

	// cache holds the XCT/CRN records following the book, verbatim.
	cache []record.Record
}

func (b *externalBook) clone() *externalBook {
	c := &externalBook{supBook: b.supBook.Clone().(*record.SupBookRecord)}
	for _, n := range b.externNames {
		c.externNames = append(c.externNames, n.Clone().(*record.ExternNameRecord))
	}
	for _, r := range b.cache {
		c.cache = append(c.cache, r.Clone())
	}
	return c
}

// LinkTable owns the SUPBOOK, EXTERNNAME, EXTERNSHEET and NAME records of
// the workbook globals.
type LinkTable struct {
	books []*externalBook
	refs  []record.RefSubRecord
	names []*record.NameRecord

	numSheets int
	opts      *Options
}

// NewLinkTable creates an empty table for a workbook of numSheets sheets.
func NewLinkTable(numSheets int, opts *Options) *LinkTable {
	return &LinkTable{numSheets: numSheets, opts: opts}
}

// add consumes one link record from the globals. It returns false for
// records that do not belong to the table.
func (t *LinkTable) add(r record.Record) bool {
	switch rec := r.(type) {
	case *record.SupBookRecord:
		t.books = append(t.books, &externalBook{supBook: rec})
	case *record.ExternNameRecord:
		t.lastBook().externNames = append(t.lastBook().externNames, rec)
	case *record.ExternSheetRecord:
		// Some producers split the entries over several records.
		t.refs = append(t.refs, rec.Refs...)
	case *record.NameRecord:
		t.names = append(t.names, rec)
	default:
		switch r.Sid() {
		case record.XL_CRN, record.XL_XCT:
			b := t.lastBook()
			b.cache = append(b.cache, r)
		default:
			return false
		}
	}
	return true
}

func (t *LinkTable) lastBook() *externalBook {
	if len(t.books) == 0 {
		t.opts.warnf("link record without preceding SUPBOOK, assuming internal references")
		t.books = append(t.books, &externalBook{supBook: record.NewInternalSupBook(t.numSheets)})
	}
	return t.books[len(t.books)-1]
}

// validate checks every EXTERNSHEET entry after reading. Under
// ResolveStrict an entry that cannot be resolved fails the read.
func (t *LinkTable) validate() error {
	if len(t.refs) > 0 && len(t.books) == 0 {
		// NAME records and EXTERNSHEET without SUPBOOK: legacy writers
		// left the internal book implicit.
		t.opts.warnf("EXTERNSHEET without SUPBOOK, synthesizing the internal book")
		t.books = append(t.books, &externalBook{supBook: record.NewInternalSupBook(t.numSheets)})
	}
	for i := range t.refs {
		if _, err := t.Resolve(i); err != nil {
			return err
		}
	}
	return nil
}

// NumBooks returns the number of SUPBOOK entries.
func (t *LinkTable) NumBooks() int { return len(t.books) }

// NumRefs returns the number of EXTERNSHEET entries.
func (t *LinkTable) NumRefs() int { return len(t.refs) }

// Ref returns EXTERNSHEET entry i unresolved.
func (t *LinkTable) Ref(i int) record.RefSubRecord { return t.refs[i] }

// SupBook returns SUPBOOK i.
func (t *LinkTable) SupBook(i int) *record.SupBookRecord { return t.books[i].supBook }

// Resolve maps an EXTERNSHEET index to its book and sheet span. An index
// past the table is always ErrUnresolvable. Sheet indices past the
// sheets of their book are accepted with Valid false under
// ResolveBestEffort and rejected under ResolveStrict.
func (t *LinkTable) Resolve(ixti int) (ExternSheetRef, error) {
	if ixti < 0 || ixti >= len(t.refs) {
		return ExternSheetRef{}, ErrUnresolvable
	}
	ref := t.refs[ixti]
	if int(ref.SupBook) >= len(t.books) {
		if t.opts.policy() == ResolveStrict {
			return ExternSheetRef{}, ErrUnresolvable
		}
		t.opts.warnf("extern sheet %d points at book %d of %d", ixti, ref.SupBook, len(t.books))
		return ExternSheetRef{Book: int(ref.SupBook), FirstSheet: -1, LastSheet: -1}, nil
	}
	book := t.books[ref.SupBook].supBook
	out := ExternSheetRef{
		Book:       int(ref.SupBook),
		Internal:   book.IsInternal(),
		FirstSheet: int(ref.FirstSheet),
		LastSheet:  int(ref.LastSheet),
		Valid:      true,
	}
	n := int(book.NumSheets)
	if book.IsInternal() {
		n = t.numSheets
	} else if book.IsExternal() {
		out.URL = book.URL()
	}
	if book.IsAddIn() {
		return out, nil
	}
	if out.FirstSheet >= n || out.LastSheet >= n {
		if t.opts.policy() == ResolveStrict {
			return ExternSheetRef{}, ErrUnresolvable
		}
		t.opts.warnf("extern sheet %d spans sheets %d..%d of a book with %d", ixti, out.FirstSheet, out.LastSheet, n)
		out.Valid = false
	}
	return out, nil
}

// ExternSheetIndex returns the EXTERNSHEET index for the span, appending
// an entry when none matches.
func (t *LinkTable) ExternSheetIndex(book, first, last int) int {
	for i, r := range t.refs {
		if int(r.SupBook) == book && int(r.FirstSheet) == first && int(r.LastSheet) == last {
			return i
		}
	}
	t.refs = append(t.refs, record.RefSubRecord{SupBook: uint16(book), FirstSheet: int16(first), LastSheet: int16(last)})
	return len(t.refs) - 1
}

// InternalBook returns the index of the SUPBOOK for this workbook,
// creating it when missing.
func (t *LinkTable) InternalBook() int {
	for i, b := range t.books {
		if b.supBook.IsInternal() {
			return i
		}
	}
	t.books = append(t.books, &externalBook{supBook: record.NewInternalSupBook(t.numSheets)})
	return len(t.books) - 1
}

// InternalSheetIndex returns the EXTERNSHEET index for sheets first..last
// of this workbook.
func (t *LinkTable) InternalSheetIndex(first, last int) int {
	return t.ExternSheetIndex(t.InternalBook(), first, last)
}

// AddExternalBook registers an external workbook and returns its book
// index. A book with the same URL is reused and gets the new sheet list.
func (t *LinkTable) AddExternalBook(url string, sheets []string) int {
	if i := t.findBook(url); i >= 0 {
		sb := t.books[i].supBook
		sb.SheetNames = append([]string(nil), sheets...)
		sb.NumSheets = uint16(len(sheets))
		return i
	}
	t.books = append(t.books, &externalBook{supBook: record.NewExternalSupBook(url, sheets)})
	return len(t.books) - 1
}

func (t *LinkTable) findBook(name string) int {
	for i, b := range t.books {
		if !b.supBook.IsExternal() {
			continue
		}
		url := b.supBook.URL()
		if url == name || filepath.Base(url) == name {
			return i
		}
	}
	return -1
}

// ExternalSheetIndex returns the EXTERNSHEET index for sheets first..last
// of the external book named book.
func (t *LinkTable) ExternalSheetIndex(book, first, last string) (int, error) {
	bi := t.findBook(book)
	if bi < 0 {
		return 0, ErrBookNotFound
	}
	sb := t.books[bi].supBook
	fi, li := indexFold(sb.SheetNames, first), indexFold(sb.SheetNames, last)
	if fi < 0 || li < 0 {
		return 0, ErrSheetNotFound
	}
	return t.ExternSheetIndex(bi, fi, li), nil
}

func indexFold(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// BookSheetName returns sheet i of book b as recorded in its SUPBOOK.
func (t *LinkTable) BookSheetName(b, i int) (string, bool) {
	if b < 0 || b >= len(t.books) {
		return "", false
	}
	names := t.books[b].supBook.SheetNames
	if i < 0 || i >= len(names) {
		return "", false
	}
	return names[i], true
}

// ExternalBooks returns the URLs of the external books, in table order.
func (t *LinkTable) ExternalBooks() []string {
	var out []string
	for _, b := range t.books {
		if b.supBook.IsExternal() {
			out = append(out, b.supBook.URL())
		}
	}
	return out
}

// ChangeExternalReference points the external book oldURL at newURL. It
// reports whether a book matched.
func (t *LinkTable) ChangeExternalReference(oldURL, newURL string) bool {
	for _, b := range t.books {
		if b.supBook.IsExternal() && b.supBook.URL() == oldURL {
			b.supBook.SetURL(newURL)
			return true
		}
	}
	return false
}

// ExternName returns the one based EXTERNNAME index of the book an
// EXTERNSHEET entry points at.
func (t *LinkTable) ExternName(ixti, index int) (string, bool) {
	if ixti < 0 || ixti >= len(t.refs) {
		return "", false
	}
	b := int(t.refs[ixti].SupBook)
	if b >= len(t.books) || index < 1 || index > len(t.books[b].externNames) {
		return "", false
	}
	return t.books[b].externNames[index-1].Name, true
}

// NumNames returns the number of NAME records.
func (t *LinkTable) NumNames() int { return len(t.names) }

// Name returns NAME i, zero based.
func (t *LinkTable) Name(i int) *record.NameRecord { return t.names[i] }

// AddName appends a NAME record and returns its zero based index.
func (t *LinkTable) AddName(n *record.NameRecord) int {
	t.names = append(t.names, n)
	return len(t.names) - 1
}

// RemoveName deletes NAME i.
func (t *LinkTable) RemoveName(i int) {
	t.names = append(t.names[:i], t.names[i+1:]...)
}

// FindName returns the index of the name text visible from sheet (zero
// based, -1 for workbook scope only). Sheet-local names win.
func (t *LinkTable) FindName(text string, sheet int) int {
	global := -1
	for i, n := range t.names {
		if !strings.EqualFold(n.DisplayName(), text) {
			continue
		}
		if n.SheetIndex == 0 {
			if global < 0 {
				global = i
			}
		} else if int(n.SheetIndex)-1 == sheet {
			return i
		}
	}
	return global
}

// FindBuiltin returns the index of the built-in name code local to
// sheet, or -1.
func (t *LinkTable) FindBuiltin(code uint8, sheet int) int {
	for i, n := range t.names {
		if n.IsBuiltIn() && len(n.Name) == 1 && n.Name[0] == code && int(n.SheetIndex)-1 == sheet {
			return i
		}
	}
	return -1
}

// setSheetCount keeps the internal SUPBOOK in step with the workbook.
func (t *LinkTable) setSheetCount(n int) {
	t.numSheets = n
	for _, b := range t.books {
		if b.supBook.IsInternal() {
			b.supBook.NumSheets = uint16(n)
		}
	}
}

// removeSheet fixes internal references after sheet idx is deleted.
// References to the sheet alone become deleted references; names local
// to it go away.
func (t *LinkTable) removeSheet(idx int) {
	for i := range t.refs {
		r := &t.refs[i]
		if !t.isInternal(int(r.SupBook)) {
			continue
		}
		first, last := int(r.FirstSheet), int(r.LastSheet)
		switch {
		case first == idx && last == idx:
			r.FirstSheet, r.LastSheet = -1, -1
		case first > idx:
			r.FirstSheet--
			r.LastSheet--
		case last >= idx:
			r.LastSheet--
		}
	}
	kept := t.names[:0]
	for _, n := range t.names {
		switch {
		case int(n.SheetIndex) == idx+1:
			continue
		case int(n.SheetIndex) > idx+1:
			n.SheetIndex--
		}
		kept = append(kept, n)
	}
	t.names = kept
	t.setSheetCount(t.numSheets - 1)
}

// moveSheets applies a permutation to internal references: perm[old] is
// the new position of sheet old.
func (t *LinkTable) moveSheets(perm []int) {
	remap := func(v int16) int16 {
		if v < 0 || int(v) >= len(perm) {
			return v
		}
		return int16(perm[v])
	}
	for i := range t.refs {
		r := &t.refs[i]
		if !t.isInternal(int(r.SupBook)) {
			continue
		}
		r.FirstSheet, r.LastSheet = remap(r.FirstSheet), remap(r.LastSheet)
		if r.FirstSheet > r.LastSheet {
			r.FirstSheet, r.LastSheet = r.LastSheet, r.FirstSheet
		}
	}
	for _, n := range t.names {
		if n.SheetIndex > 0 {
			n.SheetIndex = uint16(remap(int16(n.SheetIndex-1)) + 1)
		}
	}
}

func (t *LinkTable) isInternal(book int) bool {
	return book < len(t.books) && t.books[book].supBook.IsInternal()
}

// records returns the link records in write order: each SUPBOOK with its
// EXTERNNAME and cache records, one EXTERNSHEET, then the NAMEs.
func (t *LinkTable) records() []record.Record {
	var out []record.Record
	for _, b := range t.books {
		out = append(out, b.supBook)
		for _, n := range b.externNames {
			out = append(out, n)
		}
		out = append(out, b.cache...)
	}
	if len(t.books) > 0 {
		out = append(out, &record.ExternSheetRecord{Refs: append([]record.RefSubRecord(nil), t.refs...)})
	}
	for _, n := range t.names {
		out = append(out, n)
	}
	return out
}

func (t *LinkTable) clone() *LinkTable {
	c := &LinkTable{numSheets: t.numSheets, opts: t.opts, refs: append([]record.RefSubRecord(nil), t.refs...)}
	for _, b := range t.books {
		c.books = append(c.books, b.clone())
	}
	for _, n := range t.names {
		c.names = append(c.names, n.Clone().(*record.NameRecord))
	}
	return c
}
