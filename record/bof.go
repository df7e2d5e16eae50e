package record

import "encoding/binary"

// BIFF version numbers, ten times the major version.
const (
	BIFF2 = 20
	BIFF3 = 30
	BIFF4 = 40
	BIFF5 = 50
	BIFF7 = 70
	BIFF8 = 80
)

// BOFRecord opens a substream.
type BOFRecord struct {
	// Version is 0x0600 for BIFF8.
	Version uint16

	// Type is one of the XL_WORKBOOK_GLOBALS / XL_WORKSHEET / ... values.
	Type uint16

	Build uint16
	Year  uint16

	// History and RequiredVersion are the BIFF8 file history flags and
	// lowest BIFF version able to read all records.
	History         uint32
	RequiredVersion uint32
}

// NewBOF creates a BIFF8 BOF for the given substream type, stamped as
// Excel 97 (build 0x10D3, year 1996).
func NewBOF(streamType uint16) *BOFRecord {
	return &BOFRecord{
		Version:         0x0600,
		Type:            streamType,
		Build:           0x10D3,
		Year:            0x07CC,
		History:         0x41,
		RequiredVersion: 0x06,
	}
}

func (r *BOFRecord) Sid() uint16 { return XL_BOF }

func (r *BOFRecord) Serialize(out *Output) {
	out.WriteShort(int(r.Version))
	out.WriteShort(int(r.Type))
	out.WriteShort(int(r.Build))
	out.WriteShort(int(r.Year))
	out.WriteInt(int(r.History))
	out.WriteInt(int(r.RequiredVersion))
}

func (r *BOFRecord) Clone() Record { c := *r; return &c }

func decodeBOF(in *InputStream, _ *DecodeOptions) (Record, error) {
	if in.Remaining() != 16 {
		// BIFF5/7 BOFs are 8 bytes; keep them raw so the caller can
		// inspect the version.
		return &UnknownRecord{Type: XL_BOF, Data: in.ReadRemainder()}, nil
	}
	return &BOFRecord{
		Version:         in.ReadUShort(),
		Type:            in.ReadUShort(),
		Build:           in.ReadUShort(),
		Year:            in.ReadUShort(),
		History:         in.ReadUInt(),
		RequiredVersion: in.ReadUInt(),
	}, nil
}

var bofCodes = map[uint16]int{
	0x0009: BIFF2,
	0x0209: BIFF3,
	0x0409: BIFF4,
	0x0809: 0,
}

// SniffBiffVersion inspects the first record of a workbook stream and
// returns its BIFF version (20, 30, 40, 50, 70 or 80).
func SniffBiffVersion(data []byte) (int, error) {
	if len(data) < HeaderSize {
		return 0, newFormatError(0, 0, "expected BOF record; met end of stream")
	}
	opcode := binary.LittleEndian.Uint16(data)
	length := int(binary.LittleEndian.Uint16(data[2:]))
	version, ok := bofCodes[opcode]
	if !ok {
		return 0, newFormatError(opcode, 0, "expected BOF record; found 0x%04X", opcode)
	}
	if version != 0 {
		return version, nil
	}
	if length < 4 || HeaderSize+length > len(data) {
		return 0, newFormatError(opcode, 0, "invalid BOF length %d", length)
	}
	payload := make([]byte, 8)
	copy(payload, data[HeaderSize:HeaderSize+length])
	version2 := binary.LittleEndian.Uint16(payload)
	build := binary.LittleEndian.Uint16(payload[4:])
	year := binary.LittleEndian.Uint16(payload[6:])
	switch version2 {
	case 0x0600:
		return BIFF8, nil
	case 0x0500:
		if year < 1994 || build == 2412 || build == 3218 || build == 3321 {
			return BIFF5, nil
		}
		return BIFF7, nil
	case 0x0000, 0x0007:
		return 21, nil
	}
	return 0, newFormatError(opcode, 0, "unknown BIFF version 0x%04X", version2)
}

func init() {
	register(XL_BOF, decodeBOF)
}
