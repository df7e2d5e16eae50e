package hssf

import (
	"fmt"

	"github.com/yamitzky/hssf-go/escher"
	"github.com/yamitzky/hssf-go/formula"
	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

// styleMapper re-creates styles of one workbook in another. Fonts, XFs
// and colors are matched against what dst already has before anything
// is added.
type styleMapper struct {
	src, dst *Workbook
	fonts    map[int]int
	xfs      map[int]int
	colors   map[int]int
}

func newStyleMapper(src, dst *Workbook) *styleMapper {
	return &styleMapper{
		src:    src,
		dst:    dst,
		fonts:  map[int]int{},
		xfs:    map[int]int{},
		colors: map[int]int{},
	}
}

// mapColor translates a palette index. Builtin and system colors keep
// their index; custom colors are matched by RGB, added, or replaced by
// the nearest dst color when the palette is full.
func (m *styleMapper) mapColor(idx int) int {
	if idx < model.FirstColorIndex || idx > model.LastColorIndex {
		return idx
	}
	if c, ok := m.colors[idx]; ok {
		return c
	}
	rgb, ok := m.src.m.Color(idx)
	if !ok {
		return idx
	}
	out, err := m.dst.m.AddColor(rgb)
	if err != nil {
		out = m.dst.Palette().FindSimilarColor(rgb[0], rgb[1], rgb[2])
		m.dst.opts.warnf("palette full, color %d replaced by %d", idx, out)
	}
	m.colors[idx] = out
	return out
}

func (m *styleMapper) mapFont(idx int) int {
	if f, ok := m.fonts[idx]; ok {
		return f
	}
	src := m.src.m.Font(idx)
	if src == nil {
		return 0
	}
	f := src.Clone().(*record.FontRecord)
	f.Color = uint16(m.mapColor(int(f.Color)))
	out := m.dst.m.FindFont(f)
	if out < 0 {
		out = m.dst.m.AddFont(f)
	}
	m.fonts[idx] = out
	return out
}

// convertXF returns a copy of x whose font, format and colors refer to
// dst. Cell XFs are reparented to the Normal style.
func (m *styleMapper) convertXF(x *record.ExtendedFormatRecord) (*record.ExtendedFormatRecord, error) {
	c := x.Clone().(*record.ExtendedFormatRecord)
	c.FontIndex = uint16(m.mapFont(int(x.FontIndex)))
	if s, ok := m.src.m.FormatString(int(x.FormatIndex)); ok {
		c.FormatIndex = uint16(m.dst.m.FormatIndex(s))
	} else {
		return nil, NotFoundError(fmt.Sprintf("hssf: number format %d is not defined", x.FormatIndex))
	}
	c.SetFillForeground(m.mapColor(x.FillForeground()))
	c.SetFillBackground(m.mapColor(x.FillBackground()))
	borders := x.BorderColors()
	for i := range borders {
		borders[i] = m.mapColor(borders[i])
	}
	c.SetBorderColors(borders)
	if !c.IsStyle() {
		c.CellOptions &^= record.XFParentMax << 4
	}
	return c, nil
}

// mapXF returns the dst index of src XF idx, adding it when dst has no
// identical XF.
func (m *styleMapper) mapXF(idx int) int {
	if out, ok := m.xfs[idx]; ok {
		return out
	}
	out := defaultXF
	if x := m.src.m.XF(idx); x != nil {
		c, err := m.convertXF(x)
		if err != nil {
			m.dst.opts.warnf("style %d not copied: %v", idx, err)
		} else if out = m.dst.m.FindXF(c); out < 0 {
			out = m.dst.m.AddXF(c)
		}
	}
	m.xfs[idx] = out
	return out
}

// CopyTo copies the sheet into dst under name and returns the copy.
//
// With copyStyles false every copied cell gets the default style and
// rich text loses its runs. With copyImages false the drawing is left
// behind. Formulas are re-compiled for dst; a formula referring to
// something dst lacks is replaced by its cached value.
func (s *Sheet) CopyTo(dst *Workbook, name string, copyStyles, copyImages bool) (*Sheet, error) {
	if err := dst.checkNewName(name, -1); err != nil {
		return nil, err
	}
	if dst == s.wb {
		c := s.m.CloneWith(dst.m, model.CloneOptions{NoDrawing: !copyImages})
		return dst.Sheet(dst.m.AddSheet(name, c)), nil
	}
	srcIndex := s.Index()
	c := s.m.CloneWith(dst.m, model.CloneOptions{
		NoDrawing: !copyImages,
		Picture:   func(pib int) int { return copyPicture(s.wb, dst, pib) },
	})
	out := dst.Sheet(dst.m.AddSheet(name, c))
	if !c.IsWorksheet() {
		return out, nil
	}
	sm := newStyleMapper(s.wb, dst)
	xf := func(idx int) int {
		if !copyStyles {
			return defaultXF
		}
		return sm.mapXF(idx)
	}

	var cells []record.CellValueRecord
	c.Cells(func(r record.CellValueRecord) { cells = append(cells, r) })
	for _, r := range cells {
		r.SetXFIndex(xf(r.XFIndex()))
		if l, ok := r.(*record.LabelSSTRecord); ok {
			l.SSTIndex = uint32(copyString(s.wb, dst, int(l.SSTIndex), copyStyles, sm))
		}
	}
	for _, n := range c.RowNumbers() {
		rr := c.Row(n).Record()
		if rr.Options&record.RowFormatted != 0 {
			rr.XF = rr.XF&^0x0FFF | uint16(xf(int(rr.XF&0x0FFF)))
		}
	}
	seen := map[*record.ColumnInfoRecord]bool{}
	for col := 0; col < MaxColumns; col++ {
		ci := c.ColumnInfo(col)
		if ci == nil || seen[ci] {
			continue
		}
		seen[ci] = true
		ci.XF = uint16(xf(int(ci.XF)))
	}

	s.retargetFormulas(out, srcIndex, cells)
	return out, nil
}

// copyPicture adds picture pib of src to dst and returns its dst index,
// or 0 when the picture cannot be read. Adding a picture dst already
// holds takes another reference on it.
func copyPicture(src, dst *Workbook, pib int) int {
	bse := src.m.Picture(pib)
	if bse == nil || bse.Blip == nil {
		dst.opts.warnf("picture %d is not stored in the workbook", pib)
		return 0
	}
	data, err := escher.PictureData(bse.Blip)
	if err != nil {
		dst.opts.warnf("picture %d: %v", pib, err)
		return 0
	}
	return dst.m.AddPicture(escher.BlipType(bse.Blip), data)
}

func copyString(src, dst *Workbook, idx int, styled bool, sm *styleMapper) int {
	us := src.m.SST().String(idx)
	if us == nil {
		return dst.m.SST().AddText("")
	}
	c := &record.UnicodeString{Text: us.Text, ExtRst: append([]byte(nil), us.ExtRst...)}
	if styled {
		for _, run := range us.Runs {
			c.Runs = append(c.Runs, record.FormatRun{Char: run.Char, Font: uint16(sm.mapFont(int(run.Font)))})
		}
	}
	return dst.m.SST().Add(c)
}

// retargetFormulas re-compiles the formulas of the copy out, taken from
// sheet srcIndex of s's workbook, against out's workbook.
func (s *Sheet) retargetFormulas(out *Sheet, srcIndex int, cells []record.CellValueRecord) {
	src, dst := s.wb.m, out.wb.m
	dstIndex := out.Index()
	recompile := func(expr record.Expr, row, col int, t formula.Type) ([]formula.Ptg, error) {
		text, err := src.RenderExpr(expr, srcIndex, row, col)
		if err != nil {
			return nil, err
		}
		return dst.ParseFormula(text, dstIndex, t)
	}

	for _, rng := range out.m.SharedValues().Arrays() {
		a := out.m.ArrayFormula(rng.FirstRow, rng.FirstCol)
		tokens, err := recompile(a.Expr, rng.FirstRow, rng.FirstCol, formula.TypeArray)
		if err != nil {
			out.wb.opts.warnf("array formula %s dropped: %v", rng, err)
			out.m.RemoveArrayFormula(rng.FirstRow, rng.FirstCol)
			continue
		}
		a.Expr.Tokens = formula.Encode(tokens)
	}

	for _, r := range cells {
		fc, ok := r.(*model.FormulaCell)
		if !ok || out.m.ArrayFormula(fc.Row(), fc.Column()) != nil {
			continue
		}
		out.m.UnlinkSharedMember(fc.Row(), fc.Column())
		var tokens []formula.Ptg
		expr, err := out.m.FormulaExpr(fc.FormulaRecord)
		if err == nil {
			tokens, err = recompile(expr, fc.Row(), fc.Column(), formula.TypeCell)
		}
		if err == nil {
			fc.Expr = record.Expr{Tokens: formula.Encode(tokens), Extra: fc.Expr.Extra}
			continue
		}
		out.wb.opts.warnf("formula at %s replaced by its value: %v", record.CellName(fc.Row(), fc.Column()), err)
		out.m.SetCell(cachedValue(fc, dst.SST()))
	}
}

// cachedValue returns a plain cell holding the cached result of f.
func cachedValue(f *model.FormulaCell, sst *model.SST) record.CellValueRecord {
	h := record.CellHeader{R: uint16(f.Row()), C: uint16(f.Column()), XF: uint16(f.XFIndex())}
	switch f.CachedType() {
	case record.CachedBool:
		r := &record.BoolErrRecord{CellHeader: h}
		if f.CachedBool() {
			r.Value = 1
		}
		return r
	case record.CachedError:
		return &record.BoolErrRecord{CellHeader: h, Value: f.CachedError(), IsError: true}
	case record.CachedString, record.CachedEmptyString:
		text := ""
		if f.String != nil {
			text = f.String.Value
		}
		return &record.LabelSSTRecord{CellHeader: h, SSTIndex: uint32(sst.AddText(text))}
	}
	return &record.NumberRecord{CellHeader: h, Value: f.CachedNumber()}
}
