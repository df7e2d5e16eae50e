package record

// DValRecord heads the data validation block; DVCount DV records must
// follow it immediately.
type DValRecord struct {
	Options  uint16
	HorizPos uint32
	VertPos  uint32

	// ObjectID is the drop-down object id, 0xFFFFFFFF for none.
	ObjectID uint32
	DVCount  uint32
}

// NewDVal creates a DVAL record for count validations.
func NewDVal(count int) *DValRecord {
	return &DValRecord{ObjectID: 0xFFFFFFFF, DVCount: uint32(count)}
}

func (r *DValRecord) Sid() uint16 { return XL_DVAL }

func (r *DValRecord) Serialize(out *Output) {
	out.WriteShort(int(r.Options))
	out.WriteInt(int(r.HorizPos))
	out.WriteInt(int(r.VertPos))
	out.WriteInt(int(r.ObjectID))
	out.WriteInt(int(r.DVCount))
}

func (r *DValRecord) Clone() Record { c := *r; return &c }

func decodeDVal(in *InputStream, _ *DecodeOptions) (Record, error) {
	return &DValRecord{
		Options: in.ReadUShort(), HorizPos: in.ReadUInt(), VertPos: in.ReadUInt(),
		ObjectID: in.ReadUInt(), DVCount: in.ReadUInt(),
	}, nil
}

// Data validation types (low nibble of DV options).
const (
	ValidationAny     = 0
	ValidationInteger = 1
	ValidationDecimal = 2
	ValidationList    = 3
	ValidationDate    = 4
	ValidationTime    = 5
	ValidationLength  = 6
	ValidationFormula = 7
)

// DV option bits beyond the type.
const (
	DVExplicitList     = 0x00000080
	DVAllowBlank       = 0x00000100
	DVSuppressDropDown = 0x00000200
	DVShowPrompt       = 0x00040000
	DVShowError        = 0x00080000
)

// emptyDVString is how Excel stores an absent DV title or text: one
// compressed NUL character.
const emptyDVString = "\x00"

// DVRecord is one data validation rule and the cells it applies to.
type DVRecord struct {
	Options     uint32
	PromptTitle string
	ErrorTitle  string
	PromptText  string
	ErrorText   string
	Formula1    []byte
	Formula2    []byte
	Ranges      []CellRange
}

// NewDV creates a validation of the given type over ranges.
func NewDV(kind int, formula1, formula2 []byte, ranges []CellRange) *DVRecord {
	return &DVRecord{
		Options:     uint32(kind) | DVAllowBlank | DVShowPrompt | DVShowError,
		PromptTitle: emptyDVString, ErrorTitle: emptyDVString,
		PromptText: emptyDVString, ErrorText: emptyDVString,
		Formula1: formula1, Formula2: formula2, Ranges: ranges,
	}
}

// Type returns the validation type.
func (r *DVRecord) Type() int { return int(r.Options & 0x0F) }

func (r *DVRecord) Sid() uint16 { return XL_DV }

func (r *DVRecord) Serialize(out *Output) {
	out.WriteInt(int(r.Options))
	for _, s := range []string{r.PromptTitle, r.ErrorTitle, r.PromptText, r.ErrorText} {
		out.WriteUnicodeString(s, false)
	}
	for _, f := range [][]byte{r.Formula1, r.Formula2} {
		out.WriteShort(len(f))
		out.WriteShort(0)
		out.Write(f)
	}
	out.WriteShort(len(r.Ranges))
	for _, c := range r.Ranges {
		writeRange(out, c)
	}
}

func (r *DVRecord) Clone() Record {
	c := *r
	c.Formula1 = append([]byte(nil), r.Formula1...)
	c.Formula2 = append([]byte(nil), r.Formula2...)
	c.Ranges = append([]CellRange(nil), r.Ranges...)
	return &c
}

func decodeDV(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &DVRecord{Options: in.ReadUInt()}
	r.PromptTitle = in.ReadUnicodeString(false)
	r.ErrorTitle = in.ReadUnicodeString(false)
	r.PromptText = in.ReadUnicodeString(false)
	r.ErrorText = in.ReadUnicodeString(false)
	n := int(in.ReadUShort())
	in.ReadUShort()
	r.Formula1 = in.ReadBytes(n)
	n = int(in.ReadUShort())
	in.ReadUShort()
	r.Formula2 = in.ReadBytes(n)
	count := int(in.ReadUShort())
	for i := 0; i < count && in.Err() == nil; i++ {
		r.Ranges = append(r.Ranges, readRange(in))
	}
	return r, nil
}

// CFHeaderRecord heads a conditional format block: the cell ranges and
// the number of CF rules that follow.
type CFHeaderRecord struct {
	NumRules  uint16
	Options   uint16
	Enclosing CellRange
	Ranges    []CellRange
}

// NewCFHeader creates a header for rules applied to ranges.
func NewCFHeader(ranges []CellRange, rules int) *CFHeaderRecord {
	r := &CFHeaderRecord{NumRules: uint16(rules), Options: 1, Ranges: ranges}
	r.Enclosing = enclosing(ranges)
	return r
}

func enclosing(ranges []CellRange) CellRange {
	if len(ranges) == 0 {
		return CellRange{}
	}
	e := ranges[0]
	for _, c := range ranges[1:] {
		e.FirstRow = min(e.FirstRow, c.FirstRow)
		e.FirstCol = min(e.FirstCol, c.FirstCol)
		e.LastRow = max(e.LastRow, c.LastRow)
		e.LastCol = max(e.LastCol, c.LastCol)
	}
	return e
}

func (r *CFHeaderRecord) Sid() uint16 { return XL_CONDFMT }

func (r *CFHeaderRecord) Serialize(out *Output) {
	out.WriteShort(int(r.NumRules))
	out.WriteShort(int(r.Options))
	writeRange(out, r.Enclosing)
	out.WriteShort(len(r.Ranges))
	for _, c := range r.Ranges {
		writeRange(out, c)
	}
}

func (r *CFHeaderRecord) Clone() Record {
	c := *r
	c.Ranges = append([]CellRange(nil), r.Ranges...)
	return &c
}

func decodeCFHeader(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &CFHeaderRecord{NumRules: in.ReadUShort(), Options: in.ReadUShort()}
	r.Enclosing = readRange(in)
	n := int(in.ReadUShort())
	for i := 0; i < n && in.Err() == nil; i++ {
		r.Ranges = append(r.Ranges, readRange(in))
	}
	return r, nil
}

// Conditional format rule types and comparison operators.
const (
	CFTypeCellValue = 1
	CFTypeFormula   = 2

	CFOpNone         = 0
	CFOpBetween      = 1
	CFOpNotBetween   = 2
	CFOpEqual        = 3
	CFOpNotEqual     = 4
	CFOpGreaterThan  = 5
	CFOpLessThan     = 6
	CFOpGreaterEqual = 7
	CFOpLessEqual    = 8
)

// CF formatting block flags.
const (
	CFPatternBlock = 0x20000000
	CFBorderBlock  = 0x10000000
	CFFontBlock    = 0x04000000
)

// CFRuleRecord is one conditional format rule. The formatting blocks
// selected by Options are kept encoded.
type CFRuleRecord struct {
	ConditionType uint8
	Comparison    uint8
	Options       uint32
	Reserved      uint16
	Blocks        []byte
	Formula1      []byte
	Formula2      []byte
}

// NewCFRuleFill creates a rule that fills matching cells with a solid
// pattern of palette color fill.
func NewCFRuleFill(kind, op uint8, formula1, formula2 []byte, fill int) *CFRuleRecord {
	r := &CFRuleRecord{ConditionType: kind, Comparison: op, Formula1: formula1, Formula2: formula2}
	// Every "not modified" bit is set except those of the pattern.
	r.Options = 0x003FFFFF&^0x00070000 | CFPatternBlock
	r.Reserved = 0x8002
	pattern := uint16(1) << 10
	colors := uint16(fill&0x7F) | uint16(fill&0x7F)<<7
	r.Blocks = []byte{byte(pattern), byte(pattern >> 8), byte(colors), byte(colors >> 8)}
	return r
}

func (r *CFRuleRecord) Sid() uint16 { return XL_CF }

func (r *CFRuleRecord) Serialize(out *Output) {
	out.WriteUByte(int(r.ConditionType))
	out.WriteUByte(int(r.Comparison))
	out.WriteShort(len(r.Formula1))
	out.WriteShort(len(r.Formula2))
	out.WriteInt(int(r.Options))
	out.WriteShort(int(r.Reserved))
	out.Write(r.Blocks)
	out.Write(r.Formula1)
	out.Write(r.Formula2)
}

func (r *CFRuleRecord) Clone() Record {
	c := *r
	c.Blocks = append([]byte(nil), r.Blocks...)
	c.Formula1 = append([]byte(nil), r.Formula1...)
	c.Formula2 = append([]byte(nil), r.Formula2...)
	return &c
}

// FillColor returns the pattern foreground of the rule's pattern block,
// or -1 without one.
func (r *CFRuleRecord) FillColor() int {
	if r.Options&CFPatternBlock == 0 || len(r.Blocks) < 4 {
		return -1
	}
	off := len(r.Blocks) - 4
	return int(r.Blocks[off+2]) & 0x7F
}

func decodeCFRule(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &CFRuleRecord{ConditionType: in.ReadUByte(), Comparison: in.ReadUByte()}
	n1, n2 := int(in.ReadUShort()), int(in.ReadUShort())
	r.Options = in.ReadUInt()
	r.Reserved = in.ReadUShort()
	rest := in.ReadRemainder()
	if len(rest) < n1+n2 {
		return nil, newFormatError(XL_CF, in.Offset(), "formula sizes %d+%d exceed %d bytes", n1, n2, len(rest))
	}
	blocks := len(rest) - n1 - n2
	r.Blocks = rest[:blocks]
	r.Formula1 = rest[blocks : blocks+n1]
	r.Formula2 = rest[blocks+n1:]
	return r, nil
}

func init() {
	register(XL_DVAL, decodeDVal)
	register(XL_DV, decodeDV)
	register(XL_CONDFMT, decodeCFHeader)
	register(XL_CF, decodeCFRule)
}
