package record

// IndexRecord follows a worksheet BOF and points at the DBCELL of every
// row block.
type IndexRecord struct {
	FirstRow    uint32
	LastRowAdd1 uint32

	// DefColWidthPos is the stream offset of the DEFCOLWIDTH record.
	DefColWidthPos uint32

	// DBCells holds the stream offset of each DBCELL record.
	DBCells []uint32
}

// IndexRecordSize returns the encoded size of an INDEX record with
// blocks row blocks.
func IndexRecordSize(blocks int) int { return HeaderSize + 16 + 4*blocks }

func (r *IndexRecord) Sid() uint16 { return XL_INDEX }

func (r *IndexRecord) Serialize(out *Output) {
	out.WriteInt(0)
	out.WriteInt(int(r.FirstRow))
	out.WriteInt(int(r.LastRowAdd1))
	out.WriteInt(int(r.DefColWidthPos))
	for _, p := range r.DBCells {
		out.WriteInt(int(p))
	}
}

func (r *IndexRecord) Clone() Record {
	c := *r
	c.DBCells = append([]uint32(nil), r.DBCells...)
	return &c
}

func decodeIndex(in *InputStream, _ *DecodeOptions) (Record, error) {
	in.ReadUInt()
	r := &IndexRecord{FirstRow: in.ReadUInt(), LastRowAdd1: in.ReadUInt(), DefColWidthPos: in.ReadUInt()}
	for in.Remaining() >= 4 {
		r.DBCells = append(r.DBCells, in.ReadUInt())
	}
	return r, nil
}

// DBCellRecord ends a row block and records where its rows and cells
// start.
type DBCellRecord struct {
	// RowOffset is the distance from the start of this record back to
	// the first ROW record of the block.
	RowOffset uint32

	// CellOffsets holds, per row, the offset of its first cell record:
	// relative to the end of the first ROW record for row 0, and to the
	// previous row's first cell after that.
	CellOffsets []uint16
}

func (r *DBCellRecord) Sid() uint16 { return XL_DBCELL }

func (r *DBCellRecord) Serialize(out *Output) {
	out.WriteInt(int(r.RowOffset))
	for _, o := range r.CellOffsets {
		out.WriteShort(int(o))
	}
}

func (r *DBCellRecord) Clone() Record {
	return &DBCellRecord{RowOffset: r.RowOffset, CellOffsets: append([]uint16(nil), r.CellOffsets...)}
}

func decodeDBCell(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &DBCellRecord{RowOffset: in.ReadUInt()}
	for in.Remaining() >= 2 {
		r.CellOffsets = append(r.CellOffsets, in.ReadUShort())
	}
	return r, nil
}

// DimensionsRecord holds the used area of a sheet; last row and column
// are exclusive.
type DimensionsRecord struct {
	FirstRow    uint32
	LastRowAdd1 uint32
	FirstCol    uint16
	LastColAdd1 uint16
	Reserved    uint16
}

func (r *DimensionsRecord) Sid() uint16 { return XL_DIMENSION }

func (r *DimensionsRecord) Serialize(out *Output) {
	out.WriteInt(int(r.FirstRow))
	out.WriteInt(int(r.LastRowAdd1))
	out.WriteShort(int(r.FirstCol))
	out.WriteShort(int(r.LastColAdd1))
	out.WriteShort(int(r.Reserved))
}

func (r *DimensionsRecord) Clone() Record { c := *r; return &c }

func decodeDimensions(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &DimensionsRecord{
		FirstRow: in.ReadUInt(), LastRowAdd1: in.ReadUInt(),
		FirstCol: in.ReadUShort(), LastColAdd1: in.ReadUShort(),
		Reserved: in.ReadUShort(),
	}, nil
}

// ROW option bits.
const (
	RowOutlineMask   = 0x0007
	RowCollapsed     = 0x0010
	RowZeroHeight    = 0x0020
	RowBadFontHeight = 0x0040
	RowFormatted     = 0x0080
	rowAlwaysSet     = 0x0100
)

// RowRecordSize is the encoded size of a ROW record.
const RowRecordSize = HeaderSize + 16

// RowRecord describes one row.
type RowRecord struct {
	RowNumber   uint16
	FirstCol    uint16
	LastColAdd1 uint16

	// Height is in twips; bit 15 set means default height.
	Height uint16

	Optimize uint16
	Reserved uint16
	Options  uint16

	// XF holds the row's XF index in the low 12 bits.
	XF uint16
}

// NewRow creates a ROW record with default height.
func NewRow(row int) *RowRecord {
	return &RowRecord{RowNumber: uint16(row), Height: 0xFF, Options: rowAlwaysSet, XF: 0x0F}
}

func (r *RowRecord) Sid() uint16 { return XL_ROW }

func (r *RowRecord) Serialize(out *Output) {
	out.WriteShort(int(r.RowNumber))
	out.WriteShort(int(r.FirstCol))
	out.WriteShort(int(r.LastColAdd1))
	out.WriteShort(int(r.Height))
	out.WriteShort(int(r.Optimize))
	out.WriteShort(int(r.Reserved))
	out.WriteShort(int(r.Options))
	out.WriteShort(int(r.XF))
}

func (r *RowRecord) Clone() Record { c := *r; return &c }

// IsEmpty reports whether the row carries no cells.
func (r *RowRecord) IsEmpty() bool { return r.FirstCol == r.LastColAdd1 }

func decodeRow(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &RowRecord{
		RowNumber: in.ReadUShort(), FirstCol: in.ReadUShort(), LastColAdd1: in.ReadUShort(),
		Height: in.ReadUShort(), Optimize: in.ReadUShort(), Reserved: in.ReadUShort(),
		Options: in.ReadUShort(), XF: in.ReadUShort(),
	}, nil
}

// WINDOW2 option bits.
const (
	Window2DisplayFormulas  = 0x0001
	Window2DisplayGridlines = 0x0002
	Window2DisplayHeadings  = 0x0004
	Window2FreezePanes      = 0x0008
	Window2DisplayZeros     = 0x0010
	Window2DefaultHeader    = 0x0020
	Window2Arabic           = 0x0040
	Window2DisplayGuts      = 0x0080
	Window2FreezeNoSplit    = 0x0100
	Window2Selected         = 0x0200
	Window2Active           = 0x0400
	Window2SavedInPageBreak = 0x0800
)

// Window2Record holds per-sheet window settings.
type Window2Record struct {
	Options     uint16
	TopRow      uint16
	LeftCol     uint16
	HeaderColor uint32

	// Tail holds the zoom fields of worksheet WINDOW2 records; chart
	// sheets omit them.
	Tail []byte
}

// NewWindow2 returns the WINDOW2 Excel writes for a new worksheet.
func NewWindow2() *Window2Record {
	return &Window2Record{Options: 0x00B6, HeaderColor: 0x40, Tail: make([]byte, 8)}
}

func (r *Window2Record) Sid() uint16 { return XL_WINDOW2 }

func (r *Window2Record) Serialize(out *Output) {
	out.WriteShort(int(r.Options))
	out.WriteShort(int(r.TopRow))
	out.WriteShort(int(r.LeftCol))
	out.WriteInt(int(r.HeaderColor))
	out.Write(r.Tail)
}

func (r *Window2Record) Clone() Record {
	c := *r
	c.Tail = append([]byte(nil), r.Tail...)
	return &c
}

// SetSelected sets or clears the tab-selected and active flags.
func (r *Window2Record) SetSelected(v bool) {
	if v {
		r.Options |= Window2Selected | Window2Active
	} else {
		r.Options &^= Window2Selected | Window2Active
	}
}

func decodeWindow2(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &Window2Record{Options: in.ReadUShort(), TopRow: in.ReadUShort(), LeftCol: in.ReadUShort()}
	r.HeaderColor = in.ReadUInt()
	r.Tail = in.ReadRemainder()
	return r, nil
}

// MaxMergedRegionsPerRecord is the most ranges one MERGECELLS record
// holds.
const MaxMergedRegionsPerRecord = 1027

// MergeCellsRecord lists merged regions.
type MergeCellsRecord struct {
	Regions []CellRange
}

func (r *MergeCellsRecord) Sid() uint16 { return XL_MERGEDCELLS }

func (r *MergeCellsRecord) Serialize(out *Output) {
	out.WriteShort(len(r.Regions))
	for _, c := range r.Regions {
		writeRange(out, c)
	}
}

func (r *MergeCellsRecord) Clone() Record {
	return &MergeCellsRecord{Regions: append([]CellRange(nil), r.Regions...)}
}

func decodeMergeCells(in *InputStream, _ *DecodeOptions) (Record, error) {
	n := int(in.ReadUShort())
	r := &MergeCellsRecord{}
	for i := 0; i < n && in.Err() == nil; i++ {
		r.Regions = append(r.Regions, readRange(in))
	}
	return r, nil
}

// PageBreak is one manual page break. For row breaks Main is the row
// after the break and SubFrom/SubTo the column span; column breaks swap
// the roles.
type PageBreak struct {
	Main    uint16
	SubFrom uint16
	SubTo   uint16
}

// PageBreakRecord holds the row (HORIZONTALPAGEBREAKS) or column
// (VERTICALPAGEBREAKS) breaks of a sheet, sorted by Main.
type PageBreakRecord struct {
	Type   uint16
	Breaks []PageBreak
}

func (r *PageBreakRecord) Sid() uint16 { return r.Type }

func (r *PageBreakRecord) Serialize(out *Output) {
	out.WriteShort(len(r.Breaks))
	for _, b := range r.Breaks {
		out.WriteShort(int(b.Main))
		out.WriteShort(int(b.SubFrom))
		out.WriteShort(int(b.SubTo))
	}
}

func (r *PageBreakRecord) Clone() Record {
	return &PageBreakRecord{Type: r.Type, Breaks: append([]PageBreak(nil), r.Breaks...)}
}

// Contains reports whether a break exists at main.
func (r *PageBreakRecord) Contains(main int) bool {
	for _, b := range r.Breaks {
		if int(b.Main) == main {
			return true
		}
	}
	return false
}

// Add inserts or replaces the break at b.Main, keeping the list sorted.
func (r *PageBreakRecord) Add(b PageBreak) {
	for i, x := range r.Breaks {
		if x.Main == b.Main {
			r.Breaks[i] = b
			return
		}
		if x.Main > b.Main {
			r.Breaks = append(r.Breaks[:i], append([]PageBreak{b}, r.Breaks[i:]...)...)
			return
		}
	}
	r.Breaks = append(r.Breaks, b)
}

// Remove deletes the break at main.
func (r *PageBreakRecord) Remove(main int) {
	for i, x := range r.Breaks {
		if int(x.Main) == main {
			r.Breaks = append(r.Breaks[:i], r.Breaks[i+1:]...)
			return
		}
	}
}

func decodePageBreak(in *InputStream, _ *DecodeOptions) (Record, error) {
	n := int(in.ReadUShort())
	r := &PageBreakRecord{Type: in.Sid()}
	for i := 0; i < n && in.Err() == nil; i++ {
		r.Breaks = append(r.Breaks, PageBreak{Main: in.ReadUShort(), SubFrom: in.ReadUShort(), SubTo: in.ReadUShort()})
	}
	return r, nil
}

// COLINFO option bits.
const (
	ColumnHidden       = 0x0001
	ColumnOutlineMask  = 0x0700
	ColumnCollapsed    = 0x1000
	ColumnOutlineShift = 8
)

// ColumnInfoRecord formats a span of columns.
type ColumnInfoRecord struct {
	FirstCol uint16
	LastCol  uint16

	// Width is in 1/256 of a character width.
	Width   uint16
	XF      uint16
	Options uint16

	// Tail is the reserved trailer, usually two zero bytes.
	Tail []byte
}

// NewColumnInfo creates a COLINFO record for a single column.
func NewColumnInfo(col int) *ColumnInfoRecord {
	return &ColumnInfoRecord{FirstCol: uint16(col), LastCol: uint16(col), Width: 2275, XF: 0x0F, Options: 2, Tail: []byte{0, 0}}
}

func (r *ColumnInfoRecord) Sid() uint16 { return XL_COLINFO }

func (r *ColumnInfoRecord) Serialize(out *Output) {
	out.WriteShort(int(r.FirstCol))
	out.WriteShort(int(r.LastCol))
	out.WriteShort(int(r.Width))
	out.WriteShort(int(r.XF))
	out.WriteShort(int(r.Options))
	out.Write(r.Tail)
}

func (r *ColumnInfoRecord) Clone() Record {
	c := *r
	c.Tail = append([]byte(nil), r.Tail...)
	return &c
}

// Contains reports whether col is in this span.
func (r *ColumnInfoRecord) Contains(col int) bool {
	return col >= int(r.FirstCol) && col <= int(r.LastCol)
}

// FormatMatches reports whether two spans format their columns alike.
func (r *ColumnInfoRecord) FormatMatches(o *ColumnInfoRecord) bool {
	return r.Width == o.Width && r.XF == o.XF && r.Options == o.Options
}

func decodeColumnInfo(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &ColumnInfoRecord{
		FirstCol: in.ReadUShort(), LastCol: in.ReadUShort(),
		Width: in.ReadUShort(), XF: in.ReadUShort(), Options: in.ReadUShort(),
	}
	r.Tail = in.ReadRemainder()
	return r, nil
}

// DefaultRowHeightRecord sets the height of rows without a ROW record.
type DefaultRowHeightRecord struct {
	Options uint16
	Height  uint16
}

func (r *DefaultRowHeightRecord) Sid() uint16 { return XL_DEFAULTROWHEIGHT }

func (r *DefaultRowHeightRecord) Serialize(out *Output) {
	out.WriteShort(int(r.Options))
	out.WriteShort(int(r.Height))
}

func (r *DefaultRowHeightRecord) Clone() Record { c := *r; return &c }

func decodeDefaultRowHeight(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &DefaultRowHeightRecord{Options: in.ReadUShort(), Height: in.ReadUShort()}, nil
}

func init() {
	register(XL_INDEX, decodeIndex)
	register(XL_DBCELL, decodeDBCell)
	register(XL_DIMENSION, decodeDimensions)
	register(XL_ROW, decodeRow)
	register(XL_WINDOW2, decodeWindow2)
	register(XL_MERGEDCELLS, decodeMergeCells)
	register(XL_HORIZONTALPAGEBREAKS, decodePageBreak)
	register(XL_VERTICALPAGEBREAKS, decodePageBreak)
	register(XL_COLINFO, decodeColumnInfo)
	register(XL_DEFAULTROWHEIGHT, decodeDefaultRowHeight)
}
