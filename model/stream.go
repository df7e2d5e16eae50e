package model

import "github.com/yamitzky/hssf-go/record"

// RecordStream is a cursor over decoded records.
type RecordStream struct {
	records []record.Record
	pos     int
}

// NewRecordStream starts a cursor at index start.
func NewRecordStream(records []record.Record, start int) *RecordStream {
	return &RecordStream{records: records, pos: start}
}

// HasNext reports whether records remain.
func (s *RecordStream) HasNext() bool { return s.pos < len(s.records) }

// PeekSid returns the sid of the next record, or 0 at the end.
func (s *RecordStream) PeekSid() uint16 {
	if !s.HasNext() {
		return 0
	}
	return s.records[s.pos].Sid()
}

// Peek returns the next record without consuming it.
func (s *RecordStream) Peek() record.Record {
	if !s.HasNext() {
		return nil
	}
	return s.records[s.pos]
}

// Next consumes and returns the next record.
func (s *RecordStream) Next() record.Record {
	r := s.Peek()
	if r != nil {
		s.pos++
	}
	return r
}

// Position returns the index of the next record.
func (s *RecordStream) Position() int { return s.pos }

// Substream consumes a BOF..EOF substream, nested substreams included,
// and returns its records. The stream must be positioned on the BOF.
func (s *RecordStream) Substream() []record.Record {
	start := s.pos
	depth := 0
	for s.HasNext() {
		switch s.Next().Sid() {
		case record.XL_BOF:
			depth++
		case record.XL_EOF:
			depth--
			if depth <= 0 {
				return s.records[start:s.pos]
			}
		}
	}
	return s.records[start:s.pos]
}
