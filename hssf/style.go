package hssf

import (
	"fmt"

	"github.com/yamitzky/hssf-go/model"
	"github.com/yamitzky/hssf-go/record"
)

// Font is a handle on an entry of the workbook font table.
type Font struct {
	wb    *Workbook
	index int
	rec   *record.FontRecord
}

// Font weights.
const (
	WeightNormal = 400
	WeightBold   = 700
)

// AutomaticColor is the color index meaning "window text".
const AutomaticColor = 0x7FFF

// NumFonts returns the size of the font table.
func (wb *Workbook) NumFonts() int { return wb.m.NumFonts() }

// FontAt returns font idx, or nil. Index 4 is never used.
func (wb *Workbook) FontAt(idx int) *Font {
	rec := wb.m.Font(idx)
	if rec == nil {
		return nil
	}
	return &Font{wb: wb, index: idx, rec: rec}
}

// CreateFont appends a copy of the default font.
func (wb *Workbook) CreateFont() *Font {
	rec := record.NewFont()
	return &Font{wb: wb, index: wb.m.AddFont(rec), rec: rec}
}

// FindFont returns a font with the given attributes, or nil.
func (wb *Workbook) FindFont(name string, heightTwips int, bold, italic bool, color int) *Font {
	probe := &Font{rec: record.NewFont()}
	probe.SetName(name)
	probe.rec.Height = uint16(heightTwips)
	probe.SetBold(bold)
	probe.SetItalic(italic)
	probe.SetColor(color)
	return wb.FontAt(wb.m.FindFont(probe.rec))
}

// Index returns the font's index in the font table.
func (f *Font) Index() int { return f.index }

// Name returns the typeface.
func (f *Font) Name() string { return f.rec.Name }

// SetName sets the typeface.
func (f *Font) SetName(name string) { f.rec.Name = name }

// Height returns the size in twips.
func (f *Font) Height() int { return int(f.rec.Height) }

// HeightInPoints returns the size in points.
func (f *Font) HeightInPoints() int { return int(f.rec.Height) / 20 }

// SetHeightInPoints sets the size in points.
func (f *Font) SetHeightInPoints(pt int) { f.rec.Height = uint16(pt * 20) }

// Bold reports a bold weight.
func (f *Font) Bold() bool { return f.rec.Weight >= WeightBold }

// SetBold switches between bold and normal weight.
func (f *Font) SetBold(v bool) {
	if v {
		f.rec.Weight = WeightBold
	} else {
		f.rec.Weight = WeightNormal
	}
}

// Italic reports italics.
func (f *Font) Italic() bool { return f.rec.Options&record.FontItalic != 0 }

// SetItalic switches italics.
func (f *Font) SetItalic(v bool) { f.setOption(record.FontItalic, v) }

// Strikeout reports strike-through.
func (f *Font) Strikeout() bool { return f.rec.Options&record.FontStrikeout != 0 }

// SetStrikeout switches strike-through.
func (f *Font) SetStrikeout(v bool) { f.setOption(record.FontStrikeout, v) }

func (f *Font) setOption(bit uint16, v bool) {
	if v {
		f.rec.Options |= bit
	} else {
		f.rec.Options &^= bit
	}
}

// Underline returns the underline style: 0 none, 1 single, 2 double.
func (f *Font) Underline() int { return int(f.rec.Underline) }

// SetUnderline sets the underline style.
func (f *Font) SetUnderline(u int) { f.rec.Underline = uint8(u) }

// Color returns the palette index of the font color.
func (f *Font) Color() int { return int(f.rec.Color) }

// SetColor sets the palette index of the font color.
func (f *Font) SetColor(idx int) { f.rec.Color = uint16(idx) }

// CellStyle is a handle on a cell XF.
type CellStyle struct {
	wb    *Workbook
	index int
	x     *record.ExtendedFormatRecord
}

// NumCellStyles returns the size of the XF table, style XFs included.
func (wb *Workbook) NumCellStyles() int { return wb.m.NumXFs() }

// CellStyleAt returns XF idx, or nil.
func (wb *Workbook) CellStyleAt(idx int) *CellStyle {
	x := wb.m.XF(idx)
	if x == nil {
		return nil
	}
	return &CellStyle{wb: wb, index: idx, x: x}
}

// CreateCellStyle appends a cell XF using the default font and the
// General format.
func (wb *Workbook) CreateCellStyle() *CellStyle {
	x := record.NewCellXF(0, 0)
	return &CellStyle{wb: wb, index: wb.m.AddXF(x), x: x}
}

// Index returns the XF index.
func (cs *CellStyle) Index() int { return cs.index }

// Font returns the style's font.
func (cs *CellStyle) Font() *Font { return cs.wb.FontAt(int(cs.x.FontIndex)) }

// SetFont uses f, which must belong to the same workbook.
func (cs *CellStyle) SetFont(f *Font) error {
	if f.wb != cs.wb {
		return InvalidError("hssf: font belongs to another workbook")
	}
	cs.x.FontIndex = uint16(f.index)
	return nil
}

// DataFormat returns the number format index.
func (cs *CellStyle) DataFormat() int { return int(cs.x.FormatIndex) }

// SetDataFormat sets the number format index.
func (cs *CellStyle) SetDataFormat(idx int) { cs.x.FormatIndex = uint16(idx) }

// DataFormatString returns the number format.
func (cs *CellStyle) DataFormatString() string {
	s, _ := cs.wb.m.FormatString(int(cs.x.FormatIndex))
	return s
}

// SetDataFormatString uses format s, adding it to the workbook when
// needed.
func (cs *CellStyle) SetDataFormatString(s string) {
	cs.x.FormatIndex = uint16(cs.wb.m.FormatIndex(s))
}

// Fill patterns.
const (
	FillNone  = 0
	FillSolid = 1
)

// FillPattern returns the fill pattern.
func (cs *CellStyle) FillPattern() int { return cs.x.FillPattern() }

// SetFillPattern sets the fill pattern.
func (cs *CellStyle) SetFillPattern(p int) { cs.x.SetFillPattern(p) }

// FillForegroundColor returns the palette index of the pattern color.
func (cs *CellStyle) FillForegroundColor() int { return cs.x.FillForeground() }

// SetFillForegroundColor sets the palette index of the pattern color.
func (cs *CellStyle) SetFillForegroundColor(idx int) { cs.x.SetFillForeground(idx) }

// FillBackgroundColor returns the palette index of the background.
func (cs *CellStyle) FillBackgroundColor() int { return cs.x.FillBackground() }

// SetFillBackgroundColor sets the palette index of the background.
func (cs *CellStyle) SetFillBackgroundColor(idx int) { cs.x.SetFillBackground(idx) }

// BorderColors returns the left, right, top and bottom border colors.
func (cs *CellStyle) BorderColors() [4]int { return cs.x.BorderColors() }

// SetBorderColors sets the left, right, top and bottom border colors.
func (cs *CellStyle) SetBorderColors(c [4]int) { cs.x.SetBorderColors(c) }

// CloneStyleFrom copies src into cs. A style of another workbook has its
// font, format and colors re-created in this one.
func (cs *CellStyle) CloneStyleFrom(src *CellStyle) error {
	if src.wb == cs.wb {
		*cs.x = *src.x
		return nil
	}
	x, err := newStyleMapper(src.wb, cs.wb).convertXF(src.x)
	if err != nil {
		return err
	}
	*cs.x = *x
	return nil
}

// Palette is the workbook's custom color table, indices 8 to 63.
type Palette struct {
	wb *Workbook
}

// Palette returns the workbook palette.
func (wb *Workbook) Palette() *Palette { return &Palette{wb: wb} }

// Color returns the color at idx.
func (p *Palette) Color(idx int) (r, g, b uint8, ok bool) {
	c, ok := p.wb.m.Color(idx)
	return c[0], c[1], c[2], ok
}

// SetColor overwrites idx.
func (p *Palette) SetColor(idx int, r, g, b uint8) error {
	if err := p.wb.m.SetColor(idx, [3]uint8{r, g, b}); err != nil {
		return fmt.Errorf("hssf: palette index %d: %w", idx, err)
	}
	return nil
}

// FindColor returns the index holding exactly (r, g, b), or -1.
func (p *Palette) FindColor(r, g, b uint8) int { return p.wb.m.FindColor([3]uint8{r, g, b}) }

// AddColor returns an index showing (r, g, b), taking over an unused
// slot when no index holds it yet.
func (p *Palette) AddColor(r, g, b uint8) (int, error) {
	return p.wb.m.AddColor([3]uint8{r, g, b})
}

// FindSimilarColor returns the index whose color is nearest (r, g, b).
func (p *Palette) FindSimilarColor(r, g, b uint8) int {
	colors := map[int][3]int{}
	for idx := model.FirstColorIndex; idx <= model.LastColorIndex; idx++ {
		if c, ok := p.wb.m.Color(idx); ok {
			colors[idx] = [3]int{int(c[0]), int(c[1]), int(c[2])}
		}
	}
	return nearestColorIndex(colors, [3]int{int(r), int(g), int(b)})
}

// nearestColorIndex finds the color closest to rgb by Euclidean
// distance. Ties go to the lowest index.
func nearestColorIndex(colors map[int][3]int, rgb [3]int) int {
	best, bestIdx := 3*256*256, -1
	for idx := model.FirstColorIndex; idx <= model.LastColorIndex; idx++ {
		cand, ok := colors[idx]
		if !ok {
			continue
		}
		metric := 0
		for i := 0; i < 3; i++ {
			d := rgb[i] - cand[i]
			metric += d * d
		}
		if metric < best {
			best, bestIdx = metric, idx
			if metric == 0 {
				break
			}
		}
	}
	return bestIdx
}
