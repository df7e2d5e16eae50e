package record

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// MaxRecordDataSize is the largest payload a single BIFF8 record block may
// carry. Longer records are split into CONTINUE blocks.
const MaxRecordDataSize = 8224

// HeaderSize is the size of the (sid, length) record header.
const HeaderSize = 4

// InputStream walks a BIFF8 record stream block by block. Reads that run
// off the end of the current block move transparently into a following
// CONTINUE block; the first error is sticky and reported by Err.
type InputStream struct {
	data []byte

	// next is the stream offset of the next unread record header.
	next int

	sid    uint16
	offset int
	block  []byte
	pos    int

	err error
}

// NewInputStream creates an InputStream over a complete workbook stream.
func NewInputStream(data []byte) *InputStream {
	return &InputStream{data: data}
}

// HasNextRecord reports whether another record header follows. Zero
// padding after the final EOF is treated as the end of the stream.
func (in *InputStream) HasNextRecord() bool {
	if in.next+HeaderSize > len(in.data) {
		return false
	}
	return binary.LittleEndian.Uint16(in.data[in.next:]) != 0 ||
		binary.LittleEndian.Uint16(in.data[in.next+2:]) != 0
}

// NextRecord loads the next record header and its first block.
func (in *InputStream) NextRecord() error {
	if !in.HasNextRecord() {
		return newFormatError(0, in.next, "no record at end of stream")
	}
	return in.loadBlock(true)
}

func (in *InputStream) loadBlock(first bool) error {
	if in.next+HeaderSize > len(in.data) {
		in.err = newFormatError(in.sid, in.next, "truncated record header")
		return in.err
	}
	sid := binary.LittleEndian.Uint16(in.data[in.next:])
	size := int(binary.LittleEndian.Uint16(in.data[in.next+2:]))
	start := in.next + HeaderSize
	if start+size > len(in.data) {
		in.err = newFormatError(sid, in.next, "declared length %d runs past end of stream (%d bytes left)", size, len(in.data)-start)
		return in.err
	}
	if first {
		in.sid = sid
		in.offset = in.next
		in.err = nil
	}
	in.block = in.data[start : start+size]
	in.pos = 0
	in.next = start + size
	return nil
}

// Sid returns the type of the current record.
func (in *InputStream) Sid() uint16 { return in.sid }

// Offset returns the stream offset of the current record's header.
func (in *InputStream) Offset() int { return in.offset }

// Remaining returns the number of unread bytes in the current block.
func (in *InputStream) Remaining() int { return len(in.block) - in.pos }

// Err returns the first read error since the current record was loaded.
func (in *InputStream) Err() error { return in.err }

// IsContinueNext reports whether the record after the current block is a
// CONTINUE record.
func (in *InputStream) IsContinueNext() bool {
	if in.next+HeaderSize > len(in.data) {
		return false
	}
	return binary.LittleEndian.Uint16(in.data[in.next:]) == XL_CONTINUE
}

// NextContinue moves to the following CONTINUE block. Unread bytes of the
// current block are dropped.
func (in *InputStream) NextContinue() error {
	if !in.IsContinueNext() {
		in.fail("expected CONTINUE record")
		return in.err
	}
	return in.loadBlock(false)
}

func (in *InputStream) fail(format string, args ...interface{}) {
	if in.err == nil {
		in.err = newFormatError(in.sid, in.offset, format, args...)
	}
}

// take returns the next n bytes of the current block, moving to a
// CONTINUE block first when the current one is exhausted.
func (in *InputStream) take(n int) []byte {
	if in.err != nil {
		return make([]byte, n)
	}
	if in.Remaining() == 0 && n > 0 && in.IsContinueNext() {
		if in.loadBlock(false) != nil {
			return make([]byte, n)
		}
	}
	if in.Remaining() < n {
		in.fail("need %d bytes, %d left in block", n, in.Remaining())
		return make([]byte, n)
	}
	b := in.block[in.pos : in.pos+n]
	in.pos += n
	return b
}

func (in *InputStream) ReadUByte() uint8 { return in.take(1)[0] }

func (in *InputStream) ReadInt8() int8 { return int8(in.take(1)[0]) }

func (in *InputStream) ReadUShort() uint16 { return binary.LittleEndian.Uint16(in.take(2)) }

func (in *InputStream) ReadShort() int16 { return int16(in.ReadUShort()) }

func (in *InputStream) ReadUInt() uint32 { return binary.LittleEndian.Uint32(in.take(4)) }

func (in *InputStream) ReadInt() int32 { return int32(in.ReadUInt()) }

func (in *InputStream) ReadLong() int64 { return int64(binary.LittleEndian.Uint64(in.take(8))) }

func (in *InputStream) ReadDouble() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(in.take(8)))
}

// ReadBytes copies n bytes, spanning CONTINUE blocks if needed.
func (in *InputStream) ReadBytes(n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n && in.err == nil {
		if in.Remaining() == 0 {
			if !in.IsContinueNext() {
				in.fail("need %d bytes, record ended", n-len(out))
				break
			}
			if in.loadBlock(false) != nil {
				break
			}
			continue
		}
		chunk := n - len(out)
		if chunk > in.Remaining() {
			chunk = in.Remaining()
		}
		out = append(out, in.block[in.pos:in.pos+chunk]...)
		in.pos += chunk
	}
	for len(out) < n {
		out = append(out, 0)
	}
	return out
}

// ReadRemainder returns a copy of the unread part of the current block.
func (in *InputStream) ReadRemainder() []byte {
	b := append([]byte(nil), in.block[in.pos:]...)
	in.pos = len(in.block)
	return b
}

// ReadAllContinued returns the rest of the record including the payloads
// of every following CONTINUE block.
func (in *InputStream) ReadAllContinued() []byte {
	b := in.ReadRemainder()
	for in.IsContinueNext() {
		if in.loadBlock(false) != nil {
			break
		}
		b = append(b, in.ReadRemainder()...)
	}
	return b
}

// ReadCharacters reads n characters of string data. A string whose
// characters straddle a CONTINUE boundary carries a fresh option byte at
// the start of the continuation.
func (in *InputStream) ReadCharacters(n int, wide bool) string {
	units := make([]uint16, 0, n)
	for i := 0; i < n && in.err == nil; i++ {
		if in.Remaining() == 0 {
			if !in.IsContinueNext() {
				in.fail("string data truncated after %d of %d characters", i, n)
				break
			}
			if in.loadBlock(false) != nil {
				break
			}
			wide = in.ReadUByte()&0x01 != 0
		}
		if wide {
			units = append(units, in.ReadUShort())
		} else {
			// ISO-8859-1 maps one to one onto the first 256 code points.
			units = append(units, uint16(in.ReadUByte()))
		}
	}
	return string(utf16.Decode(units))
}

// ReadUnicodeString reads a BIFF8 string with a 16-bit character count
// (or 8-bit when shortLen is set) and an option byte.
func (in *InputStream) ReadUnicodeString(shortLen bool) string {
	var n int
	if shortLen {
		n = int(in.ReadUByte())
	} else {
		n = int(in.ReadUShort())
	}
	opts := in.ReadUByte()
	return in.ReadCharacters(n, opts&0x01 != 0)
}

// DecodeCompressed converts BIFF8 compressed (8-bit) string bytes to UTF-8.
func DecodeCompressed(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
