package record

import "bytes"

// WriteAccessRecord stores the name of the user who last saved the file,
// padded with spaces to a fixed 112 bytes.
type WriteAccessRecord struct {
	UserName string

	// Padding is the filler written after the name.
	Padding []byte
}

const writeAccessSize = 112

// NewWriteAccess creates a WRITEACCESS record padded the way Excel
// writes it.
func NewWriteAccess(user string) *WriteAccessRecord {
	r := &WriteAccessRecord{UserName: user}
	n := writeAccessSize - UnicodeStringSize(user, false)
	if n > 0 {
		r.Padding = bytes.Repeat([]byte{' '}, n)
	}
	return r
}

func (r *WriteAccessRecord) Sid() uint16 { return XL_WRITEACCESS }

func (r *WriteAccessRecord) Serialize(out *Output) {
	out.WriteUnicodeString(r.UserName, false)
	out.Write(r.Padding)
}

func (r *WriteAccessRecord) Clone() Record {
	return &WriteAccessRecord{UserName: r.UserName, Padding: append([]byte(nil), r.Padding...)}
}

func decodeWriteAccess(in *InputStream, _ *DecodeOptions) (Record, error) {
	if in.Remaining() < 3 {
		return &UnknownRecord{Type: XL_WRITEACCESS, Data: in.ReadRemainder()}, nil
	}
	r := &WriteAccessRecord{UserName: in.ReadUnicodeString(false)}
	r.Padding = in.ReadRemainder()
	return r, nil
}

// TabIDRecord lists the sheet tab ids in tab order.
type TabIDRecord struct {
	IDs []uint16
}

func (r *TabIDRecord) Sid() uint16 { return XL_TABID }

func (r *TabIDRecord) Serialize(out *Output) {
	for _, id := range r.IDs {
		out.WriteShort(int(id))
	}
}

func (r *TabIDRecord) Clone() Record {
	return &TabIDRecord{IDs: append([]uint16(nil), r.IDs...)}
}

func decodeTabID(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &TabIDRecord{}
	for in.Remaining() >= 2 {
		r.IDs = append(r.IDs, in.ReadUShort())
	}
	return r, nil
}

// Window1Record holds workbook window settings.
type Window1Record struct {
	HPos, VPos, Width, Height int16
	Options                   uint16
	ActiveSheet               uint16
	FirstVisibleTab           uint16
	NumSelectedTabs           uint16
	TabWidthRatio             uint16
}

// NewWindow1 returns the defaults Excel writes for a new workbook.
func NewWindow1() *Window1Record {
	return &Window1Record{
		HPos: 0x168, VPos: 0x10E, Width: 0x3A5C, Height: 0x23BE,
		Options: 0x38, NumSelectedTabs: 1, TabWidthRatio: 0x258,
	}
}

func (r *Window1Record) Sid() uint16 { return XL_WINDOW1 }

func (r *Window1Record) Serialize(out *Output) {
	out.WriteShort(int(r.HPos))
	out.WriteShort(int(r.VPos))
	out.WriteShort(int(r.Width))
	out.WriteShort(int(r.Height))
	out.WriteShort(int(r.Options))
	out.WriteShort(int(r.ActiveSheet))
	out.WriteShort(int(r.FirstVisibleTab))
	out.WriteShort(int(r.NumSelectedTabs))
	out.WriteShort(int(r.TabWidthRatio))
}

func (r *Window1Record) Clone() Record { c := *r; return &c }

func decodeWindow1(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &Window1Record{
		HPos: in.ReadShort(), VPos: in.ReadShort(),
		Width: in.ReadShort(), Height: in.ReadShort(),
		Options:         in.ReadUShort(),
		ActiveSheet:     in.ReadUShort(),
		FirstVisibleTab: in.ReadUShort(),
		NumSelectedTabs: in.ReadUShort(),
		TabWidthRatio:   in.ReadUShort(),
	}, nil
}

// Font attribute bits.
const (
	FontItalic    = 0x0002
	FontStrikeout = 0x0008
	FontOutline   = 0x0010
	FontShadow    = 0x0020
)

// FontRecord describes one entry of the workbook font table.
type FontRecord struct {
	// Height is in twips (1/20 of a point).
	Height uint16

	// Options holds the Font* attribute bits.
	Options uint16

	// Color is a palette index.
	Color uint16

	// Weight is 400 for normal, 700 for bold.
	Weight uint16

	// Escapement: 0 none, 1 superscript, 2 subscript.
	Escapement uint16

	Underline uint8
	Family    uint8
	Charset   uint8
	Reserved  uint8

	Name string
}

// NewFont returns the default Arial 10pt font.
func NewFont() *FontRecord {
	return &FontRecord{Height: 200, Color: 0x7FFF, Weight: 400, Name: "Arial"}
}

func (r *FontRecord) Sid() uint16 { return XL_FONT }

func (r *FontRecord) Serialize(out *Output) {
	out.WriteShort(int(r.Height))
	out.WriteShort(int(r.Options))
	out.WriteShort(int(r.Color))
	out.WriteShort(int(r.Weight))
	out.WriteShort(int(r.Escapement))
	out.WriteUByte(int(r.Underline))
	out.WriteUByte(int(r.Family))
	out.WriteUByte(int(r.Charset))
	out.WriteUByte(int(r.Reserved))
	out.WriteUnicodeString(r.Name, true)
}

func (r *FontRecord) Clone() Record { c := *r; return &c }

// SameAs reports whether two fonts render identically.
func (r *FontRecord) SameAs(o *FontRecord) bool {
	a, b := *r, *o
	a.Reserved, b.Reserved = 0, 0
	return a == b
}

func decodeFont(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &FontRecord{
		Height:     in.ReadUShort(),
		Options:    in.ReadUShort(),
		Color:      in.ReadUShort(),
		Weight:     in.ReadUShort(),
		Escapement: in.ReadUShort(),
		Underline:  in.ReadUByte(),
		Family:     in.ReadUByte(),
		Charset:    in.ReadUByte(),
		Reserved:   in.ReadUByte(),
	}
	if in.Remaining() > 0 {
		r.Name = in.ReadUnicodeString(true)
	}
	return r, nil
}

// FormatRecord defines a number format string.
type FormatRecord struct {
	Index  uint16
	Format string
}

func (r *FormatRecord) Sid() uint16 { return XL_FORMAT }

func (r *FormatRecord) Serialize(out *Output) {
	out.WriteShort(int(r.Index))
	out.WriteUnicodeString(r.Format, false)
}

func (r *FormatRecord) Clone() Record { c := *r; return &c }

func decodeFormat(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &FormatRecord{Index: in.ReadUShort(), Format: in.ReadUnicodeString(false)}, nil
}

// XF cell option bits.
const (
	XFLocked    = 0x0001
	XFHidden    = 0x0002
	XFStyle     = 0x0004
	XFParentMax = 0x0FFF
)

// ExtendedFormatRecord (XF) is one entry of the cell style table. The
// packed fields keep their on-disk layout; accessors decode the parts the
// workbook model uses.
type ExtendedFormatRecord struct {
	FontIndex         uint16
	FormatIndex       uint16
	CellOptions       uint16
	AlignmentOptions  uint16
	IndentionOptions  uint16
	BorderOptions     uint16
	PaletteOptions    uint16
	AdditionalPalette uint32
	FillPalette       uint16
}

// NewCellXF returns a cell XF derived from the Normal style.
func NewCellXF(font, format uint16) *ExtendedFormatRecord {
	return &ExtendedFormatRecord{
		FontIndex:        font,
		FormatIndex:      format,
		CellOptions:      XFLocked,
		AlignmentOptions: 0x20,
		FillPalette:      0x20C0,
	}
}

// NewStyleXF returns a style XF.
func NewStyleXF(font uint16) *ExtendedFormatRecord {
	return &ExtendedFormatRecord{
		FontIndex:        font,
		CellOptions:      0xFFF5,
		AlignmentOptions: 0x20,
		IndentionOptions: 0xF400,
		FillPalette:      0x20C0,
	}
}

func (r *ExtendedFormatRecord) Sid() uint16 { return XL_XF }

func (r *ExtendedFormatRecord) Serialize(out *Output) {
	out.WriteShort(int(r.FontIndex))
	out.WriteShort(int(r.FormatIndex))
	out.WriteShort(int(r.CellOptions))
	out.WriteShort(int(r.AlignmentOptions))
	out.WriteShort(int(r.IndentionOptions))
	out.WriteShort(int(r.BorderOptions))
	out.WriteShort(int(r.PaletteOptions))
	out.WriteInt(int(r.AdditionalPalette))
	out.WriteShort(int(r.FillPalette))
}

func (r *ExtendedFormatRecord) Clone() Record { c := *r; return &c }

// IsStyle reports whether this XF is a style rather than a cell format.
func (r *ExtendedFormatRecord) IsStyle() bool { return r.CellOptions&XFStyle != 0 }

// Parent returns the index of the parent style XF.
func (r *ExtendedFormatRecord) Parent() int { return int(r.CellOptions>>4) & XFParentMax }

// FillForeground returns the palette index of the pattern foreground.
func (r *ExtendedFormatRecord) FillForeground() int { return int(r.FillPalette & 0x7F) }

// FillBackground returns the palette index of the pattern background.
func (r *ExtendedFormatRecord) FillBackground() int { return int(r.FillPalette>>7) & 0x7F }

// SetFillForeground stores a palette index as the pattern foreground.
func (r *ExtendedFormatRecord) SetFillForeground(idx int) {
	r.FillPalette = r.FillPalette&^0x7F | uint16(idx&0x7F)
}

// SetFillBackground stores a palette index as the pattern background.
func (r *ExtendedFormatRecord) SetFillBackground(idx int) {
	r.FillPalette = r.FillPalette&^(0x7F<<7) | uint16(idx&0x7F)<<7
}

// FillPattern returns the fill pattern (0 none, 1 solid, ...).
func (r *ExtendedFormatRecord) FillPattern() int { return int(r.AdditionalPalette>>26) & 0x3F }

// SetFillPattern sets the fill pattern.
func (r *ExtendedFormatRecord) SetFillPattern(p int) {
	r.AdditionalPalette = r.AdditionalPalette&^(0x3F<<26) | uint32(p&0x3F)<<26
}

// BorderColors returns the palette indices of the left, right, top and
// bottom borders.
func (r *ExtendedFormatRecord) BorderColors() [4]int {
	return [4]int{
		int(r.PaletteOptions & 0x7F),
		int(r.PaletteOptions>>7) & 0x7F,
		int(r.AdditionalPalette & 0x7F),
		int(r.AdditionalPalette>>7) & 0x7F,
	}
}

// SetBorderColors stores the left, right, top and bottom border colors.
func (r *ExtendedFormatRecord) SetBorderColors(c [4]int) {
	r.PaletteOptions = r.PaletteOptions&^0x3FFF | uint16(c[0]&0x7F) | uint16(c[1]&0x7F)<<7
	r.AdditionalPalette = r.AdditionalPalette&^0x3FFF | uint32(c[2]&0x7F) | uint32(c[3]&0x7F)<<7
}

func decodeXF(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &ExtendedFormatRecord{
		FontIndex:         in.ReadUShort(),
		FormatIndex:       in.ReadUShort(),
		CellOptions:       in.ReadUShort(),
		AlignmentOptions:  in.ReadUShort(),
		IndentionOptions:  in.ReadUShort(),
		BorderOptions:     in.ReadUShort(),
		PaletteOptions:    in.ReadUShort(),
		AdditionalPalette: in.ReadUInt(),
		FillPalette:       in.ReadUShort(),
	}, nil
}

// StyleRecord names a style XF. Built-in styles carry an id instead of
// a name.
type StyleRecord struct {
	XFIndex      uint16
	BuiltIn      bool
	BuiltInID    uint8
	OutlineLevel uint8
	Name         string
}

func (r *StyleRecord) Sid() uint16 { return XL_STYLE }

func (r *StyleRecord) Serialize(out *Output) {
	if r.BuiltIn {
		out.WriteShort(int(r.XFIndex&0x0FFF) | 0x8000)
		out.WriteUByte(int(r.BuiltInID))
		out.WriteUByte(int(r.OutlineLevel))
		return
	}
	out.WriteShort(int(r.XFIndex & 0x0FFF))
	out.WriteUnicodeString(r.Name, false)
}

func (r *StyleRecord) Clone() Record { c := *r; return &c }

func decodeStyle(in *InputStream, _ *DecodeOptions) (Record, error) {
	v := in.ReadUShort()
	r := &StyleRecord{XFIndex: v & 0x0FFF, BuiltIn: v&0x8000 != 0}
	if r.BuiltIn {
		r.BuiltInID = in.ReadUByte()
		r.OutlineLevel = in.ReadUByte()
		return r, nil
	}
	if in.Remaining() > 0 {
		r.Name = in.ReadUnicodeString(false)
	}
	return r, nil
}

// PaletteRecord overrides the colors of palette indices 8 and up.
type PaletteRecord struct {
	Colors [][3]uint8
}

// FirstPaletteIndex is the palette index of Colors[0].
const FirstPaletteIndex = 8

func (r *PaletteRecord) Sid() uint16 { return XL_PALETTE }

func (r *PaletteRecord) Serialize(out *Output) {
	out.WriteShort(len(r.Colors))
	for _, c := range r.Colors {
		out.Write([]byte{c[0], c[1], c[2], 0})
	}
}

func (r *PaletteRecord) Clone() Record {
	return &PaletteRecord{Colors: append([][3]uint8(nil), r.Colors...)}
}

func decodePalette(in *InputStream, _ *DecodeOptions) (Record, error) {
	n := int(in.ReadUShort())
	r := &PaletteRecord{Colors: make([][3]uint8, n)}
	for i := range r.Colors {
		b := in.ReadBytes(4)
		r.Colors[i] = [3]uint8{b[0], b[1], b[2]}
	}
	return r, nil
}

// Sheet visibility values for BOUNDSHEET.
const (
	SheetVisible    = 0
	SheetHidden     = 1
	SheetVeryHidden = 2
)

// BoundSheetRecord names a sheet and points at its BOF.
type BoundSheetRecord struct {
	// Position is the stream offset of the sheet's BOF record.
	Position   uint32
	Visibility uint8
	SheetType  uint8
	Name       string
}

func (r *BoundSheetRecord) Sid() uint16 { return XL_BOUNDSHEET }

func (r *BoundSheetRecord) Serialize(out *Output) {
	out.WriteInt(int(r.Position))
	out.WriteUByte(int(r.Visibility))
	out.WriteUByte(int(r.SheetType))
	out.WriteUnicodeString(r.Name, true)
}

func (r *BoundSheetRecord) Clone() Record { c := *r; return &c }

func decodeBoundSheet(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &BoundSheetRecord{
		Position:   in.ReadUInt(),
		Visibility: in.ReadUByte(),
		SheetType:  in.ReadUByte(),
		Name:       in.ReadUnicodeString(true),
	}, nil
}

func init() {
	register(XL_WRITEACCESS, decodeWriteAccess)
	register(XL_TABID, decodeTabID)
	register(XL_WINDOW1, decodeWindow1)
	register(XL_FONT, decodeFont)
	register(XL_FORMAT, decodeFormat)
	register(XL_XF, decodeXF)
	register(XL_STYLE, decodeStyle)
	register(XL_PALETTE, decodePalette)
	register(XL_BOUNDSHEET, decodeBoundSheet)
}
