package escher

import (
	"bytes"
	"compress/zlib"
	"crypto/md5"
	"encoding/binary"
	"io"
)

// bseHeaderSize is the fixed part of a BSE record before the name and
// the embedded BLIP.
const bseHeaderSize = 36

// BSEData is a decoded picture store entry.
type BSEData struct {
	BlipTypeWin32 uint8
	BlipTypeMacOS uint8
	UID           [16]byte
	Tag           uint16
	Size          uint32
	RefCount      uint32
	DelayOffset   uint32
	Usage         uint8
	Name          []byte

	// Blip is the embedded BLIP record, nil when the picture lives in a
	// delay stream.
	Blip *Record
}

// DecodeBSE decodes a BSE atom.
func DecodeBSE(r *Record) (*BSEData, error) {
	if r == nil || r.Type != BSE || len(r.Data) < bseHeaderSize {
		return nil, &FormatError{Message: "BSE record shorter than 36 bytes"}
	}
	d := r.Data
	b := &BSEData{
		BlipTypeWin32: d[0],
		BlipTypeMacOS: d[1],
		Tag:           binary.LittleEndian.Uint16(d[18:]),
		Size:          binary.LittleEndian.Uint32(d[20:]),
		RefCount:      binary.LittleEndian.Uint32(d[24:]),
		DelayOffset:   binary.LittleEndian.Uint32(d[28:]),
		Usage:         d[32],
	}
	copy(b.UID[:], d[2:18])
	nameLen := int(d[33])
	pos := bseHeaderSize
	if pos+nameLen > len(d) {
		return nil, &FormatError{Offset: pos, Message: "BSE name runs past end of record"}
	}
	b.Name = append([]byte(nil), d[pos:pos+nameLen]...)
	pos += nameLen
	if pos < len(d) {
		blips, err := Parse(d[pos:])
		if err != nil {
			return nil, err
		}
		if len(blips) > 0 {
			b.Blip = blips[0]
		}
	}
	return b, nil
}

// Record encodes the entry as a BSE atom.
func (b *BSEData) Record() *Record {
	out := []byte{b.BlipTypeWin32, b.BlipTypeMacOS}
	out = append(out, b.UID[:]...)
	out = binary.LittleEndian.AppendUint16(out, b.Tag)
	size := b.Size
	if b.Blip != nil {
		size = uint32(b.Blip.Size())
	}
	out = binary.LittleEndian.AppendUint32(out, size)
	out = binary.LittleEndian.AppendUint32(out, b.RefCount)
	out = binary.LittleEndian.AppendUint32(out, b.DelayOffset)
	out = append(out, b.Usage, byte(len(b.Name)), 0, 0)
	out = append(out, b.Name...)
	if b.Blip != nil {
		out = append(out, b.Blip.Bytes()...)
	}
	return NewAtom(BSE, 2, int(b.BlipTypeWin32), out)
}

// UID returns the identifier Excel derives for picture data.
func UID(data []byte) [16]byte {
	return md5.Sum(data)
}

// IsMetafile reports whether blip type t stores a compressed metafile.
func IsMetafile(t int) bool {
	return t == BlipEMF || t == BlipWMF || t == BlipPICT
}

// NewPictureBSE builds a store entry holding data as a picture of blip
// type t with one reference.
func NewPictureBSE(t int, data []byte) *BSEData {
	uid := UID(data)
	var payload []byte
	payload = append(payload, uid[:]...)
	if IsMetafile(t) {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		w.Write(data)
		w.Close()
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(data)))
		// Bounds in EMUs and size are left zero; Excel recomputes them.
		payload = append(payload, make([]byte, 16+8)...)
		payload = binary.LittleEndian.AppendUint32(payload, uint32(z.Len()))
		payload = append(payload, 0x00, 0xFE)
		payload = append(payload, z.Bytes()...)
	} else {
		payload = append(payload, 0xFF)
		payload = append(payload, data...)
	}
	blip := NewAtom(uint16(BlipFirst+t), 0, blipSignatures[t], payload)
	macType := uint8(t)
	if t == BlipEMF || t == BlipWMF {
		macType = BlipPICT
	}
	winType := uint8(t)
	if t == BlipPICT {
		winType = BlipWMF
	}
	return &BSEData{
		BlipTypeWin32: winType,
		BlipTypeMacOS: macType,
		UID:           uid,
		Tag:           0xFF,
		RefCount:      1,
		Blip:          blip,
	}
}

// PictureData extracts the picture bytes from a BLIP record, inflating
// compressed metafiles.
func PictureData(blip *Record) ([]byte, error) {
	if blip == nil || blip.Type < BlipFirst || blip.Type > BlipLast {
		return nil, &FormatError{Message: "not a BLIP record"}
	}
	t := int(blip.Type - BlipFirst)
	uids := 1
	// An odd-numbered signature carries a second uid.
	if blip.Instance()&1 == 1 {
		uids = 2
	}
	pos := 16 * uids
	if IsMetafile(t) {
		if pos+34 > len(blip.Data) {
			return nil, &FormatError{Message: "metafile header truncated"}
		}
		compressed := blip.Data[pos+32] == 0x00
		data := blip.Data[pos+34:]
		if !compressed {
			return append([]byte(nil), data...), nil
		}
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	pos++
	if pos > len(blip.Data) {
		return nil, &FormatError{Message: "bitmap blip truncated"}
	}
	return append([]byte(nil), blip.Data[pos:]...), nil
}

// BlipType returns the blip type of a BLIP record.
func BlipType(blip *Record) int {
	return int(blip.Type - BlipFirst)
}
