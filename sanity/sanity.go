// Package sanity checks that workbook and sheet record lists are in an
// order Excel will accept.
//
// A Schema is an ordered list of entries. Check walks the records with a
// cursor over the schema: each record advances the cursor to the entry
// it matches, mandatory entries passed over without a match fail, and a
// record matching no entry at or after the cursor fails. The records are
// never modified.
package sanity

import (
	"fmt"
	"strings"

	"github.com/yamitzky/hssf-go/record"
)

// Cardinality says how often, and where, an entry's records may occur.
type Cardinality int

const (
	// ExactlyOne records must occur once.
	ExactlyOne Cardinality = iota

	// Optional records occur at most once.
	Optional

	// MandatoryMany records occur at least once, contiguously.
	MandatoryMany

	// OptionalMany records occur any number of times, contiguously.
	OptionalMany

	// Anywhere records may occur any number of times anywhere after the
	// entry's position.
	Anywhere
)

func (c Cardinality) mandatory() bool { return c == ExactlyOne || c == MandatoryMany }

func (c Cardinality) repeatable() bool { return c == MandatoryMany || c == OptionalMany || c == Anywhere }

// Entry is one schema position. Any of Sids satisfies it.
type Entry struct {
	Sids []uint16
	Card Cardinality
}

func (e Entry) has(sid uint16) bool {
	for _, s := range e.Sids {
		if s == sid {
			return true
		}
	}
	return false
}

func (e Entry) String() string {
	names := make([]string, len(e.Sids))
	for i, s := range e.Sids {
		names[i] = record.Name(s)
	}
	return strings.Join(names, "|")
}

// Schema is the expected record order of a substream.
type Schema struct {
	Name    string
	Entries []Entry

	// Lenient skips records whose sid no entry names.
	Lenient bool
}

func (s *Schema) names(sid uint16) bool {
	for _, e := range s.Entries {
		if e.has(sid) {
			return true
		}
	}
	return false
}

// Failure is the first record that breaks a schema. Index is the
// position in the checked list; for a mandatory record missing at the
// end it is the list length.
type Failure struct {
	Index  int
	Sid    uint16
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("sanity: record %d (%s): %s", f.Index, record.Name(f.Sid), f.Reason)
}

func one(sid uint16) Entry      { return Entry{Sids: []uint16{sid}, Card: ExactlyOne} }
func opt(sid uint16) Entry      { return Entry{Sids: []uint16{sid}, Card: Optional} }
func some(sid uint16) Entry     { return Entry{Sids: []uint16{sid}, Card: MandatoryMany} }
func many(sids ...uint16) Entry { return Entry{Sids: sids, Card: OptionalMany} }

// find returns the entry the record sid satisfies given the cursor, or
// -1.
func (s *Schema) find(sid uint16, cursor int) int {
	for k := 0; k <= cursor; k++ {
		if e := s.Entries[k]; e.Card == Anywhere && e.has(sid) {
			return k
		}
	}
	if cursor >= 0 && s.Entries[cursor].Card.repeatable() && s.Entries[cursor].has(sid) {
		return cursor
	}
	for k := cursor + 1; k < len(s.Entries); k++ {
		if s.Entries[k].has(sid) {
			return k
		}
	}
	return -1
}

// Check verifies records against schema. It returns nil or a *Failure.
func Check(schema *Schema, records []record.Record) error {
	counts := make([]int, len(schema.Entries))
	cursor := -1
	for i := 0; i < len(records); i++ {
		sid := records[i].Sid()
		if sid == record.XL_BOF && i > 0 {
			// Chart and other substreams embedded in the sheet.
			end := skipSubstream(records, i)
			if end < 0 {
				return &Failure{Index: i, Sid: sid, Reason: "embedded substream has no EOF"}
			}
			i = end
			continue
		}
		j := schema.find(sid, cursor)
		if j < 0 {
			if !schema.names(sid) {
				if schema.Lenient {
					continue
				}
				return &Failure{Index: i, Sid: sid, Reason: fmt.Sprintf("not allowed in %s", schema.Name)}
			}
			return &Failure{Index: i, Sid: sid, Reason: "out of order"}
		}
		for k := cursor + 1; k < j; k++ {
			if schema.Entries[k].Card.mandatory() && counts[k] == 0 {
				return &Failure{Index: i, Sid: sid, Reason: "missing " + schema.Entries[k].String() + " before it"}
			}
		}
		if j > cursor {
			cursor = j
		}
		counts[j]++
	}
	for k := cursor + 1; k < len(schema.Entries); k++ {
		if e := schema.Entries[k]; e.Card.mandatory() && counts[k] == 0 {
			return &Failure{Index: len(records), Sid: e.Sids[0], Reason: "missing " + e.String()}
		}
	}
	return nil
}

// skipSubstream returns the index of the EOF closing the substream that
// starts at i, or -1.
func skipSubstream(records []record.Record, i int) int {
	depth := 0
	for ; i < len(records); i++ {
		switch records[i].Sid() {
		case record.XL_BOF:
			depth++
		case record.XL_EOF:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
