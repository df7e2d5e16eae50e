// Package poifs reads and writes OLE2 compound files, the container that
// holds the Workbook stream of a binary Excel file.
package poifs

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// MaxNameLength is the longest entry name in UTF-16 code units.
const MaxNameLength = 31

// Entry is a node in the directory tree.
type Entry interface {
	EntryName() string
	IsDirectory() bool
}

// DocumentEntry is a stream.
type DocumentEntry struct {
	Name string
	Data []byte
}

func (d *DocumentEntry) EntryName() string { return d.Name }
func (d *DocumentEntry) IsDirectory() bool { return false }

// DirectoryEntry is a storage holding other entries. Names are unique
// within a directory ignoring case, and keep the case they were created
// with.
type DirectoryEntry struct {
	Name    string
	CLSID   [16]byte
	entries []Entry
}

func (d *DirectoryEntry) EntryName() string { return d.Name }
func (d *DirectoryEntry) IsDirectory() bool { return true }

// Entries returns the children in creation order.
func (d *DirectoryEntry) Entries() []Entry {
	return append([]Entry(nil), d.entries...)
}

// EntryNames returns the child names in creation order.
func (d *DirectoryEntry) EntryNames() []string {
	names := make([]string, len(d.entries))
	for i, e := range d.entries {
		names[i] = e.EntryName()
	}
	return names
}

func (d *DirectoryEntry) index(name string) int {
	for i, e := range d.entries {
		if strings.EqualFold(e.EntryName(), name) {
			return i
		}
	}
	return -1
}

// HasEntry reports whether a child called name exists.
func (d *DirectoryEntry) HasEntry(name string) bool {
	return d.index(name) >= 0
}

// Entry looks a child up by name, ignoring case.
func (d *DirectoryEntry) Entry(name string) (Entry, error) {
	i := d.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d.entries[i], nil
}

// Document looks up a child stream.
func (d *DirectoryEntry) Document(name string) (*DocumentEntry, error) {
	e, err := d.Entry(name)
	if err != nil {
		return nil, err
	}
	doc, ok := e.(*DocumentEntry)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotDocument, name)
	}
	return doc, nil
}

// Directory looks up a child storage.
func (d *DirectoryEntry) Directory(name string) (*DirectoryEntry, error) {
	e, err := d.Entry(name)
	if err != nil {
		return nil, err
	}
	dir, ok := e.(*DirectoryEntry)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotDirectory, name)
	}
	return dir, nil
}

func checkName(name string) error {
	if len(utf16.Encode([]rune(name))) > MaxNameLength {
		return fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	if name == "" {
		return InvalidError("poifs: empty entry name")
	}
	return nil
}

func (d *DirectoryEntry) add(e Entry) error {
	if err := checkName(e.EntryName()); err != nil {
		return err
	}
	if d.HasEntry(e.EntryName()) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, e.EntryName())
	}
	d.entries = append(d.entries, e)
	return nil
}

// CreateDocument adds a stream holding data.
func (d *DirectoryEntry) CreateDocument(name string, data []byte) (*DocumentEntry, error) {
	doc := &DocumentEntry{Name: name, Data: data}
	if err := d.add(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateDirectory adds an empty storage.
func (d *DirectoryEntry) CreateDirectory(name string) (*DirectoryEntry, error) {
	dir := &DirectoryEntry{Name: name}
	if err := d.add(dir); err != nil {
		return nil, err
	}
	return dir, nil
}

// Delete removes a child and everything below it.
func (d *DirectoryEntry) Delete(name string) error {
	i := d.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	return nil
}

// Rename changes a child's name. Renaming to a spelling that differs only
// in case is allowed.
func (d *DirectoryEntry) Rename(oldName, newName string) error {
	i := d.index(oldName)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, oldName)
	}
	if err := checkName(newName); err != nil {
		return err
	}
	if j := d.index(newName); j >= 0 && j != i {
		return fmt.Errorf("%w: %q", ErrDuplicateName, newName)
	}
	switch e := d.entries[i].(type) {
	case *DocumentEntry:
		e.Name = newName
	case *DirectoryEntry:
		e.Name = newName
	}
	return nil
}

// Copy returns a deep copy of the directory.
func (d *DirectoryEntry) Copy() *DirectoryEntry {
	c := &DirectoryEntry{Name: d.Name, CLSID: d.CLSID}
	for _, e := range d.entries {
		switch e := e.(type) {
		case *DocumentEntry:
			c.entries = append(c.entries, &DocumentEntry{Name: e.Name, Data: append([]byte(nil), e.Data...)})
		case *DirectoryEntry:
			c.entries = append(c.entries, e.Copy())
		}
	}
	return c
}

// RootName is the name of the root storage.
const RootName = "Root Entry"

// FileSystem is an in-memory compound file.
type FileSystem struct {
	Root *DirectoryEntry
}

// New creates an empty compound file.
func New() *FileSystem {
	return &FileSystem{Root: &DirectoryEntry{Name: RootName}}
}
