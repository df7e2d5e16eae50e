package hssf

import (
	"errors"
	"fmt"

	"github.com/yamitzky/hssf-go/escher"
	"github.com/yamitzky/hssf-go/model"
)

// OldExcelFormatError is returned for BIFF5 and BIFF7 workbooks
// (Excel 5.0 to 95), which this package does not read.
type OldExcelFormatError struct {
	Version int
}

func (e *OldExcelFormatError) Error() string {
	return fmt.Sprintf("hssf: the supplied data appears to be in BIFF%d format (Excel 5.0/7.0); only BIFF8 (Excel 97 and later) is supported", e.Version/10)
}

// NotFoundError and InvalidError are the error classes of this package.
type (
	NotFoundError string
	InvalidError  string
)

func (e NotFoundError) Error() string { return string(e) }
func (e InvalidError) Error() string  { return string(e) }

var (
	ErrNoWorkbookStream = NotFoundError("hssf: no Workbook or Book stream in compound file")
	ErrSheetNotFound    = NotFoundError("hssf: no such sheet")
	ErrSheetExists      = InvalidError("hssf: a sheet with that name already exists")
	ErrInvalidSheetName = InvalidError("hssf: invalid sheet name")
	ErrInvalidAnchor    = InvalidError("hssf: invalid client anchor")
	ErrCellRange        = InvalidError("hssf: cell address out of range")
	ErrForeignStyle     = InvalidError("hssf: style belongs to another workbook")
	ErrNotWorksheet     = InvalidError("hssf: sheet is not a worksheet")
	ErrNotFormula       = InvalidError("hssf: cell does not hold a formula")
	ErrEnvironment      = InvalidError("hssf: workbook names and evaluators differ in length")
)

// Errors shared with the aggregation layer.
var (
	ErrPartOfArray = model.ErrPartOfArray
	ErrNotArray    = model.ErrNotArray
)

// IsErrNotFound reports whether err is, or wraps, a not-found error of
// this package or of the layers below it.
func IsErrNotFound(err error) bool {
	var e NotFoundError
	var m model.NotFoundError
	return errors.As(err, &e) || errors.As(err, &m)
}

// IsErrInvalid reports whether err is, or wraps, an invalid-argument
// error of this package or of the layers below it.
func IsErrInvalid(err error) bool {
	var e InvalidError
	var m model.InvalidError
	return errors.As(err, &e) || errors.As(err, &m)
}

func anchorError(err error) error {
	if errors.Is(err, escher.ErrInvalidAnchor) {
		return fmt.Errorf("%w: %v", ErrInvalidAnchor, err)
	}
	return err
}
