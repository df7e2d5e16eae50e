package record

import (
	"fmt"
	"strings"
)

// FormatRun switches to font Font starting at character Char.
type FormatRun struct {
	Char uint16
	Font uint16
}

// UnicodeString is a shared string: text plus optional rich-text runs
// and the opaque phonetic (ExtRst) block.
type UnicodeString struct {
	Text   string
	Runs   []FormatRun
	ExtRst []byte
}

// Key returns a value identifying strings that are interchangeable in
// the shared string table.
func (s *UnicodeString) Key() string {
	if len(s.Runs) == 0 && len(s.ExtRst) == 0 {
		return s.Text
	}
	var b strings.Builder
	b.WriteString(s.Text)
	for _, r := range s.Runs {
		fmt.Fprintf(&b, "\x00%d:%d", r.Char, r.Font)
	}
	fmt.Fprintf(&b, "\x00%x", s.ExtRst)
	return b.String()
}

// Clone returns a deep copy of s.
func (s *UnicodeString) Clone() *UnicodeString {
	return &UnicodeString{
		Text:   s.Text,
		Runs:   append([]FormatRun(nil), s.Runs...),
		ExtRst: append([]byte(nil), s.ExtRst...),
	}
}

func readSharedString(in *InputStream) *UnicodeString {
	n := int(in.ReadUShort())
	opts := in.ReadUByte()
	runs, ext := 0, 0
	if opts&0x08 != 0 {
		runs = int(in.ReadUShort())
	}
	if opts&0x04 != 0 {
		ext = int(in.ReadInt())
	}
	s := &UnicodeString{Text: in.ReadCharacters(n, opts&0x01 != 0)}
	for i := 0; i < runs && in.Err() == nil; i++ {
		s.Runs = append(s.Runs, FormatRun{Char: in.ReadUShort(), Font: in.ReadUShort()})
	}
	if ext > 0 {
		s.ExtRst = in.ReadBytes(ext)
	}
	return s
}

// headerRoom returns the bytes that must fit in one block for the string
// header plus its first character.
func (s *UnicodeString) headerRoom(wide bool) int {
	n := 4
	if wide {
		n = 5
	}
	if len(s.Runs) > 0 {
		n += 2
	}
	if len(s.ExtRst) > 0 {
		n += 4
	}
	return n
}

func (s *UnicodeString) serialize(out *ContinuableOutput) {
	wide := !IsCompressible(s.Text)
	out.WriteStringHeader(CharCount(s.Text), wide, len(s.Runs), len(s.ExtRst))
	out.WriteStringData(s.Text, wide)
	for _, r := range s.Runs {
		out.WriteContinueIfRequired(4)
		out.WriteShort(int(r.Char))
		out.WriteShort(int(r.Font))
	}
	out.Write(s.ExtRst)
}

// SSTRecord is the shared string table.
type SSTRecord struct {
	// Total is the number of string references in the workbook.
	Total uint32

	Strings []*UnicodeString

	bucketAbs []int
	bucketRel []int
}

// Bucket layout of EXTSST.
const (
	ExtSSTBucketSize = 8
	ExtSSTMaxBuckets = 128
)

func (r *SSTRecord) Sid() uint16 { return XL_SST }

func (r *SSTRecord) Serialize(out *Output) {
	c := NewContinuableOutput(XL_SST)
	r.SerializeContinued(c)
	// Flattened payload for dumps; encoding always goes through
	// SerializeContinued.
	b := c.Bytes()
	for len(b) >= HeaderSize {
		n := int(b[2]) | int(b[3])<<8
		out.Write(b[HeaderSize : HeaderSize+n])
		b = b[HeaderSize+n:]
	}
}

func (r *SSTRecord) SerializeContinued(out *ContinuableOutput) {
	out.WriteInt(int(r.Total))
	out.WriteInt(len(r.Strings))
	r.bucketAbs = r.bucketAbs[:0]
	r.bucketRel = r.bucketRel[:0]
	for i, s := range r.Strings {
		wide := !IsCompressible(s.Text)
		out.WriteContinueIfRequired(s.headerRoom(wide))
		if i%ExtSSTBucketSize == 0 && len(r.bucketAbs) < ExtSSTMaxBuckets {
			r.bucketAbs = append(r.bucketAbs, out.TotalSize())
			r.bucketRel = append(r.bucketRel, HeaderSize+MaxRecordDataSize-out.Available())
		}
		s.serialize(out)
	}
}

func (r *SSTRecord) Clone() Record {
	c := &SSTRecord{Total: r.Total, Strings: make([]*UnicodeString, len(r.Strings))}
	for i, s := range r.Strings {
		c.Strings[i] = s.Clone()
	}
	return c
}

// ExtSST builds the EXTSST index for this table as serialized at
// streamOffset.
func (r *SSTRecord) ExtSST(streamOffset int) *ExtSSTRecord {
	out := NewContinuableOutput(XL_SST)
	r.SerializeContinued(out)
	e := &ExtSSTRecord{BucketSize: ExtSSTBucketSize}
	for i := range r.bucketAbs {
		e.Buckets = append(e.Buckets, ExtSSTBucket{
			StreamPos: uint32(streamOffset + r.bucketAbs[i]),
			Offset:    uint16(r.bucketRel[i]),
		})
	}
	return e
}

func decodeSST(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &SSTRecord{Total: in.ReadUInt()}
	unique := int(in.ReadUInt())
	for i := 0; i < unique && in.Err() == nil; i++ {
		r.Strings = append(r.Strings, readSharedString(in))
	}
	return r, nil
}

// ExtSSTBucket locates every ExtSSTBucketSize-th shared string.
type ExtSSTBucket struct {
	// StreamPos is the absolute stream offset of the string.
	StreamPos uint32

	// Offset is the string's position inside its SST or CONTINUE block,
	// counted from the block header.
	Offset   uint16
	Reserved uint16
}

// ExtSSTRecord indexes the shared string table for random access.
type ExtSSTRecord struct {
	BucketSize uint16
	Buckets    []ExtSSTBucket
}

func (r *ExtSSTRecord) Sid() uint16 { return XL_EXTSST }

func (r *ExtSSTRecord) Serialize(out *Output) {
	out.WriteShort(int(r.BucketSize))
	for _, b := range r.Buckets {
		out.WriteInt(int(b.StreamPos))
		out.WriteShort(int(b.Offset))
		out.WriteShort(int(b.Reserved))
	}
}

func (r *ExtSSTRecord) Clone() Record {
	return &ExtSSTRecord{BucketSize: r.BucketSize, Buckets: append([]ExtSSTBucket(nil), r.Buckets...)}
}

func decodeExtSST(in *InputStream, _ *DecodeOptions) (Record, error) {
	r := &ExtSSTRecord{BucketSize: in.ReadUShort()}
	for in.Remaining() >= 8 {
		r.Buckets = append(r.Buckets, ExtSSTBucket{
			StreamPos: in.ReadUInt(),
			Offset:    in.ReadUShort(),
			Reserved:  in.ReadUShort(),
		})
	}
	return r, nil
}

func init() {
	register(XL_SST, decodeSST)
	register(XL_EXTSST, decodeExtSST)
}
