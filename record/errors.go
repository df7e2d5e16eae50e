package record

import "fmt"

// RecordFormatError reports a record stream that cannot be decoded: a
// declared length running past the end of the data, a payload shorter
// than its type requires, or a malformed sub-record.
type RecordFormatError struct {
	// Sid is the type of the offending record.
	Sid uint16

	// Offset is the stream offset of the record header.
	Offset int

	// Message describes the problem.
	Message string
}

func (e *RecordFormatError) Error() string {
	return fmt.Sprintf("record: %s (sid 0x%04X at offset %d)", e.Message, e.Sid, e.Offset)
}

// newFormatError creates a RecordFormatError with a formatted message.
func newFormatError(sid uint16, offset int, format string, args ...interface{}) *RecordFormatError {
	return &RecordFormatError{Sid: sid, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// SubRecordError reports a malformed sub-record inside an OBJ record.
type SubRecordError struct {
	// Type is the sub-record type (ft).
	Type uint16

	// Message describes the problem.
	Message string
}

func (e *SubRecordError) Error() string {
	return fmt.Sprintf("record: obj sub-record 0x%04X: %s", e.Type, e.Message)
}

// InvalidError is the class of argument errors raised when building
// records by hand.
type InvalidError string

func (e InvalidError) Error() string { return string(e) }

// IsErrInvalid reports whether e belongs to the InvalidError class.
func IsErrInvalid(e error) bool { _, ok := e.(InvalidError); return ok }

var (
	ErrStringTooLong = InvalidError("string longer than 65535 characters")
	ErrTooManyRanges = InvalidError("too many cell ranges for a single record")
	ErrColumnRange   = InvalidError("column index out of range 0..255")
	ErrRowRange      = InvalidError("row index out of range 0..65535")
)
