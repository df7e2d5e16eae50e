package record

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// Output accumulates a little-endian record payload.
type Output struct {
	buf []byte
}

// NewOutput creates an Output with room for size bytes.
func NewOutput(size int) *Output {
	return &Output{buf: make([]byte, 0, size)}
}

func (o *Output) WriteUByte(v int) { o.buf = append(o.buf, byte(v)) }

func (o *Output) WriteShort(v int) {
	o.buf = binary.LittleEndian.AppendUint16(o.buf, uint16(v))
}

func (o *Output) WriteInt(v int) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, uint32(v))
}

func (o *Output) WriteLong(v int64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, uint64(v))
}

func (o *Output) WriteDouble(v float64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, math.Float64bits(v))
}

func (o *Output) Write(b []byte) { o.buf = append(o.buf, b...) }

// WriteUnicodeString writes a character count (8-bit when shortLen is
// set), an option byte and the characters, compressed when possible.
func (o *Output) WriteUnicodeString(s string, shortLen bool) {
	wide := !IsCompressible(s)
	n := CharCount(s)
	if shortLen {
		o.WriteUByte(n)
	} else {
		o.WriteShort(n)
	}
	if wide {
		o.WriteUByte(0x01)
	} else {
		o.WriteUByte(0x00)
	}
	o.Write(EncodeCharacters(s, wide))
}

// Len returns the number of bytes written so far.
func (o *Output) Len() int { return len(o.buf) }

// Bytes returns the accumulated payload.
func (o *Output) Bytes() []byte { return o.buf }

// IsCompressible reports whether s can be stored as BIFF8 compressed
// (ISO-8859-1) characters.
func IsCompressible(s string) bool {
	_, err := charmap.ISO8859_1.NewEncoder().String(s)
	return err == nil
}

// CharCount returns the length of s in UTF-16 code units, which is how
// BIFF8 counts string characters.
func CharCount(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// EncodeCharacters returns the raw character bytes of s, two bytes per
// code unit when wide is set.
func EncodeCharacters(s string, wide bool) []byte {
	if !wide {
		b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
		if err == nil {
			return b
		}
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}

// UnicodeStringSize returns the encoded size of s as written by
// WriteUnicodeString.
func UnicodeStringSize(s string, shortLen bool) int {
	n := 3
	if shortLen {
		n = 2
	}
	if IsCompressible(s) {
		return n + CharCount(s)
	}
	return n + 2*CharCount(s)
}

// ContinuableOutput writes a record whose payload may exceed
// MaxRecordDataSize, starting a CONTINUE block whenever the current
// block fills up. Callers ask for room before writing fixed-size fields
// so that no field is split between blocks.
type ContinuableOutput struct {
	sid    uint16
	blocks [][]byte
	cur    []byte
}

// NewContinuableOutput starts a record of type sid.
func NewContinuableOutput(sid uint16) *ContinuableOutput {
	return &ContinuableOutput{sid: sid}
}

// Available returns the free space in the current block.
func (o *ContinuableOutput) Available() int { return MaxRecordDataSize - len(o.cur) }

// WriteContinue closes the current block and starts a CONTINUE block.
func (o *ContinuableOutput) WriteContinue() {
	o.blocks = append(o.blocks, o.cur)
	o.cur = nil
}

// WriteContinueIfRequired starts a CONTINUE block unless n more bytes fit.
func (o *ContinuableOutput) WriteContinueIfRequired(n int) {
	if o.Available() < n {
		o.WriteContinue()
	}
}

func (o *ContinuableOutput) WriteUByte(v int) {
	o.WriteContinueIfRequired(1)
	o.cur = append(o.cur, byte(v))
}

func (o *ContinuableOutput) WriteShort(v int) {
	o.WriteContinueIfRequired(2)
	o.cur = binary.LittleEndian.AppendUint16(o.cur, uint16(v))
}

func (o *ContinuableOutput) WriteInt(v int) {
	o.WriteContinueIfRequired(4)
	o.cur = binary.LittleEndian.AppendUint32(o.cur, uint32(v))
}

func (o *ContinuableOutput) WriteDouble(v float64) {
	o.WriteContinueIfRequired(8)
	o.cur = binary.LittleEndian.AppendUint64(o.cur, math.Float64bits(v))
}

// Write appends raw bytes, splitting them over as many blocks as needed.
func (o *ContinuableOutput) Write(b []byte) {
	for len(b) > 0 {
		if o.Available() == 0 {
			o.WriteContinue()
		}
		n := o.Available()
		if n > len(b) {
			n = len(b)
		}
		o.cur = append(o.cur, b[:n]...)
		b = b[n:]
	}
}

// WriteStringData writes the characters of s. When the characters do not
// fit the current block the remainder goes to a CONTINUE block that
// starts with a repeated option byte.
func (o *ContinuableOutput) WriteStringData(s string, wide bool) {
	width := 1
	if wide {
		width = 2
	}
	data := EncodeCharacters(s, wide)
	for len(data) > 0 {
		room := o.Available() / width * width
		if room == 0 {
			o.WriteContinue()
			if wide {
				o.cur = append(o.cur, 0x01)
			} else {
				o.cur = append(o.cur, 0x00)
			}
			continue
		}
		if room > len(data) {
			room = len(data)
		}
		o.cur = append(o.cur, data[:room]...)
		data = data[room:]
	}
}

// WriteStringHeader writes a string's count and option byte plus the
// optional run count and extended data size, never splitting them from
// the first character.
func (o *ContinuableOutput) WriteStringHeader(count int, wide bool, runs int, extLen int) {
	size := 3
	opts := 0
	if wide {
		opts |= 0x01
	}
	if runs > 0 {
		opts |= 0x08
		size += 2
	}
	if extLen > 0 {
		opts |= 0x04
		size += 4
	}
	// Keep at least one character with the header.
	if wide {
		size += 2
	} else {
		size++
	}
	o.WriteContinueIfRequired(size)
	o.cur = binary.LittleEndian.AppendUint16(o.cur, uint16(count))
	o.cur = append(o.cur, byte(opts))
	if runs > 0 {
		o.cur = binary.LittleEndian.AppendUint16(o.cur, uint16(runs))
	}
	if extLen > 0 {
		o.cur = binary.LittleEndian.AppendUint32(o.cur, uint32(extLen))
	}
}

// TotalSize returns the encoded size of the record including the header
// of every block.
func (o *ContinuableOutput) TotalSize() int {
	n := HeaderSize + len(o.cur)
	for _, b := range o.blocks {
		n += HeaderSize + len(b)
	}
	return n
}

// CurrentBlockOffset returns the position of the next byte relative to
// the start of the record's first header.
func (o *ContinuableOutput) CurrentBlockOffset() int {
	return o.TotalSize()
}

// Bytes returns the encoded record with all block headers.
func (o *ContinuableOutput) Bytes() []byte {
	out := make([]byte, 0, o.TotalSize())
	blocks := append(append([][]byte(nil), o.blocks...), o.cur)
	for i, b := range blocks {
		sid := o.sid
		if i > 0 {
			sid = XL_CONTINUE
		}
		out = binary.LittleEndian.AppendUint16(out, sid)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(b)))
		out = append(out, b...)
	}
	return out
}
