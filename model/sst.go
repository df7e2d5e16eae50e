package model

import "github.com/yamitzky/hssf-go/record"

// SST is the workbook's shared string table. Equal strings share one
// entry.
type SST struct {
	strings []*record.UnicodeString
	index   map[string]int
}

// NewSST creates an empty table.
func NewSST() *SST {
	return &SST{index: map[string]int{}}
}

func sstFromRecord(r *record.SSTRecord) *SST {
	t := NewSST()
	for _, s := range r.Strings {
		key := s.Key()
		if _, dup := t.index[key]; !dup {
			t.index[key] = len(t.strings)
		}
		// Duplicates keep their slot so LABELSST indices stay valid.
		t.strings = append(t.strings, s)
	}
	return t
}

// Len returns the number of entries.
func (t *SST) Len() int { return len(t.strings) }

// String returns entry i, or nil when i is out of range.
func (t *SST) String(i int) *record.UnicodeString {
	if i < 0 || i >= len(t.strings) {
		return nil
	}
	return t.strings[i]
}

// Add returns the index of s, appending it when the table has no equal
// entry.
func (t *SST) Add(s *record.UnicodeString) int {
	key := s.Key()
	if i, ok := t.index[key]; ok {
		return i
	}
	t.index[key] = len(t.strings)
	t.strings = append(t.strings, s.Clone())
	return len(t.strings) - 1
}

// AddText is Add for a plain string.
func (t *SST) AddText(text string) int {
	return t.Add(&record.UnicodeString{Text: text})
}

func (t *SST) record(total int) *record.SSTRecord {
	return &record.SSTRecord{Total: uint32(total), Strings: t.strings}
}
