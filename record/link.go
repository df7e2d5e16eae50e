package record

import "strings"

// SUPBOOK markers.
const (
	supBookInternal = 0x0401
	supBookAddIn    = 0x3A01
)

// SupBookRecord describes a workbook referenced by EXTERNSHEET entries:
// this workbook, an add-in, or an external file with its sheet names.
type SupBookRecord struct {
	NumSheets uint16

	// Marker is supBookInternal or supBookAddIn for the short forms, 0
	// for an external book.
	Marker uint16

	// EncodedURL is the raw, encoded file reference of an external book.
	EncodedURL string
	SheetNames []string
}

// NewInternalSupBook creates the SUPBOOK for the workbook itself.
func NewInternalSupBook(sheets int) *SupBookRecord {
	return &SupBookRecord{NumSheets: uint16(sheets), Marker: supBookInternal}
}

// NewAddInSupBook creates the SUPBOOK that add-in functions link through.
func NewAddInSupBook() *SupBookRecord {
	return &SupBookRecord{NumSheets: 1, Marker: supBookAddIn}
}

// NewExternalSupBook creates a SUPBOOK for an external workbook.
func NewExternalSupBook(url string, sheets []string) *SupBookRecord {
	return &SupBookRecord{
		NumSheets:  uint16(len(sheets)),
		EncodedURL: EncodeFileName(url),
		SheetNames: append([]string(nil), sheets...),
	}
}

func (r *SupBookRecord) IsInternal() bool { return r.Marker == supBookInternal }
func (r *SupBookRecord) IsAddIn() bool    { return r.Marker == supBookAddIn }
func (r *SupBookRecord) IsExternal() bool { return r.Marker == 0 }

// URL returns the decoded file reference of an external book.
func (r *SupBookRecord) URL() string { return DecodeFileName(r.EncodedURL) }

// SetURL replaces the file reference.
func (r *SupBookRecord) SetURL(url string) {
	r.EncodedURL = EncodeFileName(url)
}

func (r *SupBookRecord) Sid() uint16 { return XL_SUPBOOK }

func (r *SupBookRecord) Serialize(out *Output) {
	out.WriteShort(int(r.NumSheets))
	if r.Marker != 0 {
		out.WriteShort(int(r.Marker))
		return
	}
	out.WriteUnicodeString(r.EncodedURL, false)
	for _, s := range r.SheetNames {
		out.WriteUnicodeString(s, false)
	}
}

func (r *SupBookRecord) Clone() Record {
	c := *r
	c.SheetNames = append([]string(nil), r.SheetNames...)
	return &c
}

func decodeSupBook(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &SupBookRecord{NumSheets: in.ReadUShort()}
	if in.Remaining() == 2 {
		r.Marker = in.ReadUShort()
		return r, nil
	}
	r.EncodedURL = in.ReadUnicodeString(false)
	for i := 0; i < int(r.NumSheets) && in.Err() == nil; i++ {
		r.SheetNames = append(r.SheetNames, in.ReadUnicodeString(false))
	}
	return r, nil
}

// File name encoding characters used in external references.
const (
	urlEncoded     = '\x01'
	urlVolume      = '\x01'
	urlSameVolume  = '\x02'
	urlDownDir     = '\x03'
	urlUpDir       = '\x04'
	urlLongVolume  = '\x05'
	urlStartupDir  = '\x06'
	urlAltStartup  = '\x07'
	urlLibraryDir  = '\x08'
	urlSimplePath  = '\x02'
	pathSeparator  = "/"
	uncVolumeLabel = '@'
)

// DecodeFileName turns an encoded SUPBOOK file reference into a path.
func DecodeFileName(encoded string) string {
	if encoded == "" {
		return ""
	}
	switch encoded[0] {
	case 0:
		return encoded[1:]
	case urlSimplePath:
		return encoded[1:]
	case urlEncoded:
	default:
		return encoded
	}
	var b strings.Builder
	s := encoded[1:]
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case urlVolume:
			if i+1 < len(s) {
				i++
				if s[i] == uncVolumeLabel {
					b.WriteString("//")
				} else {
					b.WriteByte(s[i])
					b.WriteString(":")
				}
			}
		case urlSameVolume, urlLongVolume:
			b.WriteString(pathSeparator)
		case urlDownDir:
			b.WriteString(pathSeparator)
		case urlUpDir:
			b.WriteString("..")
			b.WriteString(pathSeparator)
		case urlStartupDir, urlAltStartup, urlLibraryDir:
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// EncodeFileName encodes a path for a SUPBOOK record.
func EncodeFileName(path string) string {
	var b strings.Builder
	b.WriteByte(urlEncoded)
	if len(path) >= 2 && path[1] == ':' {
		b.WriteByte(urlVolume)
		b.WriteByte(path[0])
		path = path[2:]
	}
	for len(path) > 0 {
		if strings.HasPrefix(path, "../") || strings.HasPrefix(path, `..\`) {
			b.WriteByte(urlUpDir)
			path = path[3:]
			continue
		}
		c := path[0]
		if c == '/' || c == '\\' {
			b.WriteByte(urlDownDir)
		} else {
			b.WriteByte(c)
		}
		path = path[1:]
	}
	return b.String()
}

// ExternNameRecord is a name defined in an external workbook or add-in.
type ExternNameRecord struct {
	Options    uint16
	SheetIndex uint16
	Reserved   uint16
	Name       string

	// Rest is the encoded definition following the name.
	Rest []byte
}

func (r *ExternNameRecord) Sid() uint16 { return XL_EXTERNNAME }

func (r *ExternNameRecord) Serialize(out *Output) {
	out.WriteShort(int(r.Options))
	out.WriteShort(int(r.SheetIndex))
	out.WriteShort(int(r.Reserved))
	out.WriteUnicodeString(r.Name, true)
	out.Write(r.Rest)
}

func (r *ExternNameRecord) Clone() Record {
	c := *r
	c.Rest = append([]byte(nil), r.Rest...)
	return &c
}

func decodeExternName(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &ExternNameRecord{Options: in.ReadUShort(), SheetIndex: in.ReadUShort(), Reserved: in.ReadUShort()}
	r.Name = in.ReadUnicodeString(true)
	r.Rest = in.ReadAllContinued()
	return r, nil
}

// RefSubRecord is one EXTERNSHEET entry: a SUPBOOK index and a sheet
// span inside that book. Negative sheet indices mark deleted sheets.
type RefSubRecord struct {
	SupBook    uint16
	FirstSheet int16
	LastSheet  int16
}

// MaxRefsPerBlock is the number of entries fitting in one block.
const MaxRefsPerBlock = (MaxRecordDataSize - 2) / 6

// ExternSheetRecord lists the sheet references formulas index into.
type ExternSheetRecord struct {
	Refs []RefSubRecord
}

func (r *ExternSheetRecord) Sid() uint16 { return XL_EXTERNSHEET }

func (r *ExternSheetRecord) Serialize(out *Output) {
	out.WriteShort(len(r.Refs))
	for _, ref := range r.Refs {
		out.WriteShort(int(ref.SupBook))
		out.WriteShort(int(ref.FirstSheet))
		out.WriteShort(int(ref.LastSheet))
	}
}

func (r *ExternSheetRecord) SerializeContinued(out *ContinuableOutput) {
	out.WriteShort(len(r.Refs))
	for _, ref := range r.Refs {
		out.WriteContinueIfRequired(6)
		out.WriteShort(int(ref.SupBook))
		out.WriteShort(int(ref.FirstSheet))
		out.WriteShort(int(ref.LastSheet))
	}
}

func (r *ExternSheetRecord) Clone() Record {
	return &ExternSheetRecord{Refs: append([]RefSubRecord(nil), r.Refs...)}
}

func decodeExternSheet(in *InputStream, _ *DecodeOptions) (Record, error) {
	n := int(in.ReadUShort())
	r := &ExternSheetRecord{}
	for i := 0; i < n && in.Err() == nil; i++ {
		r.Refs = append(r.Refs, RefSubRecord{SupBook: in.ReadUShort(), FirstSheet: in.ReadShort(), LastSheet: in.ReadShort()})
	}
	return r, nil
}

// NAME option bits.
const (
	NameHidden   = 0x0001
	NameFunction = 0x0002
	NameCommand  = 0x0004
	NameMacro    = 0x0008
	NameComplex  = 0x0010
	NameBuiltIn  = 0x0020
)

// Built-in name codes.
const (
	BuiltinConsolidateArea = 0x00
	BuiltinAutoOpen        = 0x01
	BuiltinAutoClose       = 0x02
	BuiltinExtract         = 0x03
	BuiltinDatabase        = 0x04
	BuiltinCriteria        = 0x05
	BuiltinPrintArea       = 0x06
	BuiltinPrintTitles     = 0x07
	BuiltinRecorder        = 0x08
	BuiltinDataForm        = 0x09
	BuiltinAutoActivate    = 0x0A
	BuiltinAutoDeactivate  = 0x0B
	BuiltinSheetTitle      = 0x0C
	BuiltinFilterDatabase  = 0x0D
)

var builtinNames = []string{
	"Consolidate_Area", "Auto_Open", "Auto_Close", "Extract", "Database",
	"Criteria", "Print_Area", "Print_Titles", "Recorder", "Data_Form",
	"Auto_Activate", "Auto_Deactivate", "Sheet_Title", "_FilterDatabase",
}

// NameRecord defines a named range, formula or macro.
type NameRecord struct {
	Options  uint16
	Shortcut uint8
	Reserved uint16

	// SheetIndex is the one-based sheet the name is local to, 0 for
	// workbook scope.
	SheetIndex uint16

	// Name is the name text; built-in names hold their single code
	// character.
	Name string

	Expr Expr

	// Lengths of the trailing menu/description/help/status strings,
	// which are kept in Expr.Extra.
	MenuLen, DescLen, HelpLen, StatusLen uint8
}

// NewBuiltinName creates a built-in NAME of the given code local to
// sheetIndex (zero based).
func NewBuiltinName(code uint8, sheetIndex int, tokens []byte) *NameRecord {
	return &NameRecord{
		Options:    NameBuiltIn,
		SheetIndex: uint16(sheetIndex + 1),
		Name:       string(rune(code)),
		Expr:       Expr{Tokens: tokens},
	}
}

// IsBuiltIn reports whether this is a built-in name.
func (r *NameRecord) IsBuiltIn() bool { return r.Options&NameBuiltIn != 0 }

// DisplayName returns the name text, spelling out built-in codes.
func (r *NameRecord) DisplayName() string {
	if r.IsBuiltIn() && len(r.Name) == 1 && int(r.Name[0]) < len(builtinNames) {
		return builtinNames[r.Name[0]]
	}
	return r.Name
}

func (r *NameRecord) Sid() uint16 { return XL_NAME }

func (r *NameRecord) Serialize(out *Output) {
	wide := !IsCompressible(r.Name)
	out.WriteShort(int(r.Options))
	out.WriteUByte(int(r.Shortcut))
	out.WriteUByte(CharCount(r.Name))
	out.WriteShort(len(r.Expr.Tokens))
	out.WriteShort(int(r.Reserved))
	out.WriteShort(int(r.SheetIndex))
	out.WriteUByte(int(r.MenuLen))
	out.WriteUByte(int(r.DescLen))
	out.WriteUByte(int(r.HelpLen))
	out.WriteUByte(int(r.StatusLen))
	if wide {
		out.WriteUByte(1)
	} else {
		out.WriteUByte(0)
	}
	out.Write(EncodeCharacters(r.Name, wide))
	out.Write(r.Expr.Tokens)
	out.Write(r.Expr.Extra)
}

func (r *NameRecord) Clone() Record {
	c := *r
	c.Expr = r.Expr.clone()
	return &c
}

func decodeName(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &NameRecord{Options: in.ReadUShort(), Shortcut: in.ReadUByte()}
	n := int(in.ReadUByte())
	cce := int(in.ReadUShort())
	r.Reserved = in.ReadUShort()
	r.SheetIndex = in.ReadUShort()
	r.MenuLen, r.DescLen = in.ReadUByte(), in.ReadUByte()
	r.HelpLen, r.StatusLen = in.ReadUByte(), in.ReadUByte()
	opts := in.ReadUByte()
	r.Name = in.ReadCharacters(n, opts&0x01 != 0)
	r.Expr.Tokens = in.ReadBytes(cce)
	r.Expr.Extra = in.ReadAllContinued()
	return r, nil
}

func init() {
	register(XL_SUPBOOK, decodeSupBook)
	register(XL_EXTERNNAME, decodeExternName)
	register(XL_EXTERNSHEET, decodeExternSheet)
	register(XL_NAME, decodeName)
}
