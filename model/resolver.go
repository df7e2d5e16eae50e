package model

import (
	"path/filepath"

	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/record"
)

// sheetResolver resolves formula tokens on behalf of one sheet, so that
// names local to it are found first.
type sheetResolver struct {
	w     *Workbook
	sheet int
}

// Resolver returns a formula.Resolver for formulas on sheet (zero
// based, -1 for workbook-level formulas such as defined names).
func (w *Workbook) Resolver(sheet int) formula.Resolver {
	return &sheetResolver{w: w, sheet: sheet}
}

func (r *sheetResolver) ExternSheet(index int) (formula.SheetRef, bool) {
	ref, err := r.w.links.Resolve(index)
	if err != nil || !ref.Valid || ref.FirstSheet < 0 || ref.LastSheet < 0 {
		return formula.SheetRef{}, false
	}
	if ref.Internal {
		return formula.SheetRef{First: r.w.SheetName(ref.FirstSheet), Last: r.w.SheetName(ref.LastSheet)}, true
	}
	first, ok1 := r.w.links.BookSheetName(ref.Book, ref.FirstSheet)
	last, ok2 := r.w.links.BookSheetName(ref.Book, ref.LastSheet)
	if !ok1 || !ok2 {
		return formula.SheetRef{}, false
	}
	return formula.SheetRef{Book: filepath.Base(ref.URL), First: first, Last: last}, true
}

func (r *sheetResolver) ExternSheetIndex(ref formula.SheetRef) (int, error) {
	last := ref.Last
	if last == "" {
		last = ref.First
	}
	if ref.Book != "" {
		return r.w.links.ExternalSheetIndex(ref.Book, ref.First, last)
	}
	first, lastIdx := r.w.SheetIndex(ref.First), r.w.SheetIndex(last)
	if first < 0 || lastIdx < 0 {
		return 0, ErrSheetNotFound
	}
	return r.w.links.InternalSheetIndex(first, lastIdx), nil
}

func (r *sheetResolver) NameText(index int) (string, bool) {
	if index < 1 || index > r.w.links.NumNames() {
		return "", false
	}
	return r.w.links.Name(index - 1).DisplayName(), true
}

func (r *sheetResolver) NameIndex(name string) (int, bool) {
	i := r.w.links.FindName(name, r.sheet)
	if i < 0 {
		return 0, false
	}
	return i + 1, true
}

func (r *sheetResolver) ExternNameText(sheet, index int) (string, bool) {
	return r.w.links.ExternName(sheet, index)
}

// RenderFormula renders the tokens of a formula on sheet at (row, col).
func (w *Workbook) RenderFormula(tokens []formula.Ptg, sheet, row, col int) string {
	return formula.Render(tokens, w.Resolver(sheet), row, col)
}

// RenderExpr renders a formula expression, array constants included.
func (w *Workbook) RenderExpr(expr record.Expr, sheet, row, col int) (string, error) {
	tokens, err := formula.Decode(expr.Tokens)
	if err != nil {
		return "", err
	}
	return formula.RenderExpr(tokens, expr.Extra, w.Resolver(sheet), row, col)
}

// ParseFormula compiles formula text for sheet.
func (w *Workbook) ParseFormula(text string, sheet int, t formula.Type) ([]formula.Ptg, error) {
	return formula.Parse(text, w.Resolver(sheet), t)
}
