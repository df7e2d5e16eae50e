package hssf

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

// CellValue is the result of evaluating a cell.
type CellValue struct {
	Type      CellType
	Number    float64
	String    string
	Bool      bool
	ErrorCode uint8
}

// FormulaEvaluator computes formula results. Each evaluation mirrors the
// workbook, and the external workbooks of its environment, into an
// in-memory spreadsheet and lets excelize's calculation engine work on
// the copy; the workbook itself is only touched by EvaluateFormulaCell.
type FormulaEvaluator struct {
	wb  *Workbook
	env map[string]*Workbook
}

// NewFormulaEvaluator returns an evaluator for wb without external
// workbooks.
func NewFormulaEvaluator(wb *Workbook) *FormulaEvaluator {
	return &FormulaEvaluator{wb: wb}
}

// SetupEnvironment lets the evaluators resolve references to each other:
// names[i] is the file name formulas use for evaluators[i]'s workbook.
func SetupEnvironment(names []string, evaluators []*FormulaEvaluator) error {
	if len(names) != len(evaluators) {
		return fmt.Errorf("%w: %d names, %d evaluators", ErrEnvironment, len(names), len(evaluators))
	}
	env := make(map[string]*Workbook, len(names))
	for i, n := range names {
		env[n] = evaluators[i].wb
	}
	for _, e := range evaluators {
		e.env = env
	}
	return nil
}

// Evaluate computes the value of c. Cells without a formula evaluate to
// their stored value.
func (e *FormulaEvaluator) Evaluate(c *Cell) (CellValue, error) {
	if c.sheet.wb != e.wb {
		return CellValue{}, InvalidError("hssf: cell belongs to another workbook")
	}
	if c.Type() != CellFormula {
		return storedValue(c), nil
	}
	m, err := e.mirror()
	if err != nil {
		return CellValue{}, err
	}
	defer m.close()
	return m.calc(c)
}

// EvaluateFormulaCell evaluates c and stores the result as the cached
// value of its formula. It returns the type of the result, or CellNone
// for cells without a formula.
func (e *FormulaEvaluator) EvaluateFormulaCell(c *Cell) (CellType, error) {
	if c.Type() != CellFormula {
		return CellNone, nil
	}
	v, err := e.Evaluate(c)
	if err != nil {
		return CellNone, err
	}
	store(c, v)
	return v.Type, nil
}

// EvaluateAll recomputes every formula of the workbook and stores the
// results.
func (e *FormulaEvaluator) EvaluateAll() error {
	m, err := e.mirror()
	if err != nil {
		return err
	}
	defer m.close()
	for i := 0; i < e.wb.NumSheets(); i++ {
		sh := e.wb.Sheet(i)
		if !sh.IsWorksheet() {
			continue
		}
		for _, c := range sh.Cells() {
			if c.Type() != CellFormula {
				continue
			}
			v, err := m.calc(c)
			if err != nil {
				return err
			}
			store(c, v)
		}
	}
	return nil
}

func store(c *Cell, v CellValue) {
	f := c.record().(*model.FormulaCell)
	switch v.Type {
	case CellNumeric:
		f.SetCachedNumber(v.Number)
		f.String = nil
	case CellBoolean:
		f.SetCachedBool(v.Bool)
		f.String = nil
	case CellError:
		f.SetCachedError(v.ErrorCode)
		f.String = nil
	case CellString:
		f.SetCachedString(v.String)
	}
}

func storedValue(c *Cell) CellValue {
	v := CellValue{Type: c.Type()}
	switch v.Type {
	case CellNumeric:
		v.Number = c.Number()
	case CellString:
		v.String = c.StringValue()
	case CellBoolean:
		v.Bool = c.Bool()
	case CellError:
		v.ErrorCode = c.ErrorCode()
	}
	return v
}

// mirror is an excelize copy of a workbook and its environment.
type mirror struct {
	f     *excelize.File
	wb    *Workbook
	books map[string]string // env name to sheet name prefix
	env   map[string]*Workbook
}

func (e *FormulaEvaluator) mirror() (*mirror, error) {
	m := &mirror{f: excelize.NewFile(), wb: e.wb, books: map[string]string{}, env: e.env}
	names := make([]string, 0, len(e.env))
	for n, wb := range e.env {
		if wb != e.wb {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for k, n := range names {
		m.books[n] = "ext" + strconv.Itoa(k) + "_"
	}

	first := true
	addSheet := func(name string) error {
		if first {
			first = false
			return m.f.SetSheetName("Sheet1", name)
		}
		_, err := m.f.NewSheet(name)
		return err
	}
	for i := 0; i < e.wb.NumSheets(); i++ {
		if err := addSheet(e.wb.SheetName(i)); err != nil {
			m.close()
			return nil, fmt.Errorf("hssf: mirroring sheet %q: %w", e.wb.SheetName(i), err)
		}
	}
	for _, n := range names {
		for i := 0; i < e.env[n].NumSheets(); i++ {
			if err := addSheet(m.books[n] + strconv.Itoa(i)); err != nil {
				m.close()
				return nil, fmt.Errorf("hssf: mirroring %s: %w", n, err)
			}
		}
	}

	for i := 0; i < e.wb.NumSheets(); i++ {
		if err := m.copySheet(e.wb.Sheet(i), e.wb.SheetName(i), true); err != nil {
			m.close()
			return nil, err
		}
	}
	for _, n := range names {
		for i := 0; i < e.env[n].NumSheets(); i++ {
			if err := m.copySheet(e.env[n].Sheet(i), m.books[n]+strconv.Itoa(i), false); err != nil {
				m.close()
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *mirror) close() {
	if err := m.f.Close(); err != nil {
		m.wb.opts.warnf("closing evaluation workbook: %v", err)
	}
}

// copySheet writes the values of sh, and with formulas set its
// formulas, to the mirror sheet name.
func (m *mirror) copySheet(sh *Sheet, name string, formulas bool) error {
	if !sh.IsWorksheet() {
		return nil
	}
	for _, c := range sh.Cells() {
		ref, err := excelize.CoordinatesToCellName(c.col+1, c.row+1)
		if err != nil {
			return err
		}
		if formulas && c.Type() == CellFormula && !c.IsPartOfArrayFormulaGroup() {
			text, err := m.formulaText(c)
			if err != nil {
				return err
			}
			if err := m.f.SetCellFormula(name, ref, text); err != nil {
				return fmt.Errorf("hssf: %s!%s: %w", name, ref, err)
			}
			continue
		}
		if v := c.Value(); v != nil {
			if err := m.f.SetCellValue(name, ref, v); err != nil {
				return fmt.Errorf("hssf: %s!%s: %w", name, ref, err)
			}
		}
	}
	return nil
}

func (m *mirror) formulaText(c *Cell) (string, error) {
	f := c.record().(*model.FormulaCell)
	expr, err := c.sheet.m.FormulaExpr(f.FormulaRecord)
	if err != nil {
		return "", fmt.Errorf("hssf: %s: %w", c.Address(), err)
	}
	tokens, err := formula.Decode(expr.Tokens)
	if err != nil {
		return "", fmt.Errorf("hssf: %s: %w", c.Address(), err)
	}
	r := &mirrorResolver{Resolver: m.wb.m.Resolver(c.sheet.Index()), m: m}
	text, err := formula.RenderExpr(tokens, expr.Extra, r, c.row, c.col)
	if err != nil {
		return "", fmt.Errorf("hssf: %s: %w", c.Address(), err)
	}
	return text, nil
}

func (m *mirror) calc(c *Cell) (CellValue, error) {
	ref, err := excelize.CoordinatesToCellName(c.col+1, c.row+1)
	if err != nil {
		return CellValue{}, err
	}
	v, err := cellValueFromCalc(m.f.CalcCellValue(c.sheet.Name(), ref, excelize.Options{RawCellValue: true}))
	if err != nil {
		return CellValue{}, fmt.Errorf("hssf: evaluating %s: %w", c.Address(), err)
	}
	return v, nil
}

// cellValueFromCalc types a CalcCellValue result. Formula errors come
// back either as the result text or only as the error text.
func cellValueFromCalc(s string, err error) (CellValue, error) {
	if code, ok := record.ErrorCodeFromText(s); ok {
		return CellValue{Type: CellError, ErrorCode: code}, nil
	}
	if err != nil {
		if code, ok := record.ErrorCodeFromText(strings.TrimSpace(err.Error())); ok {
			return CellValue{Type: CellError, ErrorCode: code}, nil
		}
		return CellValue{}, err
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return CellValue{Type: CellNumeric, Number: n}, nil
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return CellValue{Type: CellBoolean, Bool: true}, nil
	case "FALSE":
		return CellValue{Type: CellBoolean}, nil
	}
	return CellValue{Type: CellString, String: s}, nil
}

// mirrorResolver renders references to external workbooks as the
// mirror sheets holding their copies.
type mirrorResolver struct {
	formula.Resolver
	m *mirror
}

func (r *mirrorResolver) ExternSheet(index int) (formula.SheetRef, bool) {
	ref, ok := r.Resolver.ExternSheet(index)
	if !ok || ref.Book == "" {
		return ref, ok
	}
	for name, wb := range r.m.env {
		prefix, mirrored := r.m.books[name]
		if !mirrored || (name != ref.Book && filepath.Base(name) != ref.Book) {
			continue
		}
		first, last := wb.SheetIndex(ref.First), wb.SheetIndex(ref.Last)
		if first < 0 || last < 0 {
			return formula.SheetRef{}, false
		}
		return formula.SheetRef{First: prefix + strconv.Itoa(first), Last: prefix + strconv.Itoa(last)}, true
	}
	return formula.SheetRef{}, false
}
