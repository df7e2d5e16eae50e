package model

import "github.com/yamitzky/hssf-go/record"

// DefaultPalette is the BIFF8 color table for indices 8..63.
var DefaultPalette = [][3]uint8{
	{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0},
	{0, 0, 255}, {255, 255, 0}, {255, 0, 255}, {0, 255, 255},
	{128, 0, 0}, {0, 128, 0}, {0, 0, 128}, {128, 128, 0},
	{128, 0, 128}, {0, 128, 128}, {192, 192, 192}, {128, 128, 128},
	{153, 153, 255}, {153, 51, 102}, {255, 255, 204}, {204, 255, 255},
	{102, 0, 102}, {255, 128, 128}, {0, 102, 204}, {204, 204, 255},
	{0, 0, 128}, {255, 0, 255}, {255, 255, 0}, {0, 255, 255},
	{128, 0, 128}, {128, 0, 0}, {0, 128, 128}, {0, 0, 255},
	{0, 204, 255}, {204, 255, 255}, {204, 255, 204}, {255, 255, 153},
	{153, 204, 255}, {255, 153, 204}, {204, 153, 255}, {255, 204, 153},
	{51, 102, 255}, {51, 204, 204}, {153, 204, 0}, {255, 204, 0},
	{255, 153, 0}, {255, 102, 0}, {102, 102, 153}, {150, 150, 150},
	{0, 51, 102}, {51, 153, 102}, {0, 51, 0}, {51, 51, 0},
	{153, 51, 0}, {153, 51, 102}, {51, 51, 153}, {51, 51, 51},
}

// Palette index range a PALETTE record can override.
const (
	FirstColorIndex = record.FirstPaletteIndex
	LastColorIndex  = FirstColorIndex + 55
)

// ErrPaletteFull is returned when no palette slot is free for a new
// color.
var ErrPaletteFull = InvalidError("model: no free palette index")

// Color returns the RGB value of palette index idx.
func (w *Workbook) Color(idx int) ([3]uint8, bool) {
	i := idx - FirstColorIndex
	if w.palette != nil && i >= 0 && i < len(w.palette.Colors) {
		return w.palette.Colors[i], true
	}
	if i >= 0 && i < len(DefaultPalette) {
		return DefaultPalette[i], true
	}
	return [3]uint8{}, false
}

// SetColor overrides palette index idx.
func (w *Workbook) SetColor(idx int, rgb [3]uint8) error {
	if idx < FirstColorIndex || idx > LastColorIndex {
		return InvalidError("model: palette index out of range")
	}
	if w.palette == nil {
		w.palette = &record.PaletteRecord{Colors: append([][3]uint8(nil), DefaultPalette...)}
	}
	w.palette.Colors[idx-FirstColorIndex] = rgb
	return nil
}

// FindColor returns the palette index holding exactly rgb, or -1.
func (w *Workbook) FindColor(rgb [3]uint8) int {
	for idx := FirstColorIndex; idx <= LastColorIndex; idx++ {
		if c, _ := w.Color(idx); c == rgb {
			return idx
		}
	}
	return -1
}

// AddColor returns an index showing rgb. An exact match is reused;
// otherwise the highest index that nothing in the workbook refers to and
// that still holds its default color is overwritten, so existing colors
// are never clobbered.
func (w *Workbook) AddColor(rgb [3]uint8) (int, error) {
	if idx := w.FindColor(rgb); idx >= 0 {
		return idx, nil
	}
	used := w.usedColors()
	for idx := LastColorIndex; idx >= FirstColorIndex; idx-- {
		if used[idx] {
			continue
		}
		if c, _ := w.Color(idx); c != DefaultPalette[idx-FirstColorIndex] {
			continue
		}
		return idx, w.SetColor(idx, rgb)
	}
	return 0, ErrPaletteFull
}

func (w *Workbook) usedColors() map[int]bool {
	used := map[int]bool{}
	for _, f := range w.fonts {
		used[int(f.Color)] = true
	}
	for _, x := range w.xfs {
		used[x.FillForeground()] = true
		used[x.FillBackground()] = true
		for _, c := range x.BorderColors() {
			used[c] = true
		}
	}
	for _, sh := range w.sheets {
		for _, cf := range sh.condFormats {
			for _, r := range cf.Rules {
				if c := r.FillColor(); c >= 0 {
					used[c] = true
				}
			}
		}
	}
	return used
}
