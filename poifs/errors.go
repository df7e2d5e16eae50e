package poifs

import "errors"

// FormatError reports a compound file that cannot be read: bad header,
// broken sector chains or a corrupt directory.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string {
	return "poifs: " + e.Message
}

// OfficeXMLError is returned when an OOXML (zip) package is handed to the
// binary reader.
type OfficeXMLError struct{}

func (e *OfficeXMLError) Error() string {
	return "poifs: the supplied data appears to be in the Office 2007+ XML format, not OLE2"
}

// error classes
type NotFoundError string
type InvalidError string

func (e NotFoundError) Error() string { return string(e) }
func (e InvalidError) Error() string  { return string(e) }

// IsErrNotFound reports whether err is, or wraps, a NotFoundError.
func IsErrNotFound(err error) bool { var e NotFoundError; return errors.As(err, &e) }

// IsErrInvalid reports whether err is, or wraps, an InvalidError.
func IsErrInvalid(err error) bool { var e InvalidError; return errors.As(err, &e) }

var (
	ErrDuplicateName = InvalidError("poifs: duplicate entry name")
	ErrNameTooLong   = InvalidError("poifs: entry name longer than 31 characters")
	ErrNotDirectory  = InvalidError("poifs: entry is not a directory")
	ErrNotDocument   = InvalidError("poifs: entry is not a document")
	ErrNotFound      = NotFoundError("poifs: entry not found")
)
