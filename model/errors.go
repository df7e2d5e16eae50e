// Package model is the aggregation layer between the record codec and
// the user-facing workbook: it groups the records of the workbook
// globals and of each sheet into logical units, keeps the link table and
// shared values consistent, and replays the current state back into a
// canonical record sequence.
package model

import (
	"fmt"
	"io"
)

// InvalidError reports an operation the model state does not allow.
type InvalidError string

func (e InvalidError) Error() string { return string(e) }

// NotFoundError reports a lookup that matched nothing.
type NotFoundError string

func (e NotFoundError) Error() string { return string(e) }

// IsErrInvalid reports whether e is an InvalidError.
func IsErrInvalid(e error) bool { _, ok := e.(InvalidError); return ok }

// IsErrNotFound reports whether e is a NotFoundError.
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }

var (
	ErrUnresolvable  = NotFoundError("model: extern sheet reference cannot be resolved")
	ErrSheetNotFound = NotFoundError("model: no sheet with that name")
	ErrBookNotFound  = NotFoundError("model: no external workbook with that name")
	ErrPartOfArray   = InvalidError("model: cell is part of an array formula group")
	ErrArrayOverlap  = InvalidError("model: array formula overlaps an existing group")
	ErrNotWorksheet  = InvalidError("model: sheet substream is not a worksheet")
	ErrNotArray      = NotFoundError("model: cell is not part of an array formula group")
	ErrEncrypted     = InvalidError("model: workbook is password protected")
)

// ReferencePolicy decides how extern sheet indices that point past the
// link table, or past the sheets of their book, are handled.
type ReferencePolicy int

const (
	// ResolveBestEffort renders such references as #REF! and logs a
	// warning.
	ResolveBestEffort ReferencePolicy = iota

	// ResolveStrict fails with ErrUnresolvable, both on lookup and when
	// a workbook with such references is read.
	ResolveStrict
)

// Options controls reading a workbook. A nil *Options means defaults.
type Options struct {
	// Logfile receives warnings about tolerated inconsistencies. Nil
	// means silent.
	Logfile io.Writer

	// Verbosity increases the volume of trace output.
	Verbosity int

	ReferencePolicy ReferencePolicy
}

func (o *Options) warnf(format string, args ...interface{}) {
	if o != nil && o.Logfile != nil {
		fmt.Fprintf(o.Logfile, "model: "+format+"\n", args...)
	}
}

func (o *Options) tracef(level int, format string, args ...interface{}) {
	if o != nil && o.Logfile != nil && o.Verbosity >= level {
		fmt.Fprintf(o.Logfile, "model: "+format+"\n", args...)
	}
}

func (o *Options) policy() ReferencePolicy {
	if o == nil {
		return ResolveBestEffort
	}
	return o.ReferencePolicy
}
