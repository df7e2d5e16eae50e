// Package escher reads and writes Office Art ("escher") drawing records,
// the tree format BIFF8 embeds in MSODRAWING and MSODRAWINGGROUP records.
package escher

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of an escher record header: options, type and
// payload length.
const HeaderSize = 8

// Record is one node of an escher tree. Containers carry Children and no
// Data; atoms carry Data.
type Record struct {
	// Options holds the version in the low 4 bits and the instance in the
	// high 12 bits.
	Options uint16
	Type    uint16

	Data     []byte
	Children []*Record
}

// FormatError reports a malformed escher stream.
type FormatError struct {
	Offset  int
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("escher: %s at offset %d", e.Message, e.Offset)
}

// NewAtom creates an atom record of type typ with the given version and
// instance.
func NewAtom(typ uint16, version, instance int, data []byte) *Record {
	return &Record{Options: uint16(version&0x0F) | uint16(instance)<<4, Type: typ, Data: data}
}

// NewContainer creates an empty container of type typ.
func NewContainer(typ uint16, children ...*Record) *Record {
	return &Record{Options: 0x000F, Type: typ, Children: children}
}

// Version returns the record version nibble.
func (r *Record) Version() int { return int(r.Options & 0x0F) }

// Instance returns the 12-bit record instance.
func (r *Record) Instance() int { return int(r.Options >> 4) }

// SetInstance replaces the instance, keeping the version.
func (r *Record) SetInstance(v int) { r.Options = r.Options&0x0F | uint16(v)<<4 }

// IsContainer reports whether the record holds child records.
func (r *Record) IsContainer() bool { return r.Options&0x0F == 0x0F }

// Size returns the encoded size including the header.
func (r *Record) Size() int {
	if !r.IsContainer() {
		return HeaderSize + len(r.Data)
	}
	n := HeaderSize
	for _, c := range r.Children {
		n += c.Size()
	}
	return n
}

// Bytes encodes the record and its children.
func (r *Record) Bytes() []byte {
	return r.appendTo(make([]byte, 0, r.Size()), nil)
}

func (r *Record) appendTo(b []byte, onEnd func(*Record, int)) []byte {
	b = binary.LittleEndian.AppendUint16(b, r.Options)
	b = binary.LittleEndian.AppendUint16(b, r.Type)
	b = binary.LittleEndian.AppendUint32(b, uint32(r.Size()-HeaderSize))
	if r.IsContainer() {
		for _, c := range r.Children {
			b = c.appendTo(b, onEnd)
		}
	} else {
		b = append(b, r.Data...)
	}
	if onEnd != nil {
		onEnd(r, len(b))
	}
	return b
}

// Serialize encodes a list of top-level records.
func Serialize(records []*Record) []byte {
	return SerializeFunc(records, nil)
}

// SerializeFunc encodes records and calls onEnd after each record, in
// tree order, with the offset just past it.
func SerializeFunc(records []*Record, onEnd func(r *Record, end int)) []byte {
	var b []byte
	for _, r := range records {
		b = r.appendTo(b, onEnd)
	}
	return b
}

// Parse decodes a sequence of top-level records filling data.
func Parse(data []byte) ([]*Record, error) {
	var out []*Record
	pos := 0
	for pos < len(data) {
		if len(data)-pos < HeaderSize {
			// Excel pads some drawing streams with trailing zeros.
			if allZero(data[pos:]) {
				break
			}
			return nil, &FormatError{Offset: pos, Message: "truncated record header"}
		}
		r, n, err := parseRecord(data, pos, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		pos += n
	}
	return out, nil
}

const maxDepth = 64

func parseRecord(data []byte, pos, depth int) (*Record, int, error) {
	if depth > maxDepth {
		return nil, 0, &FormatError{Offset: pos, Message: "containers nested too deeply"}
	}
	if len(data)-pos < HeaderSize {
		return nil, 0, &FormatError{Offset: pos, Message: "truncated record header"}
	}
	r := &Record{
		Options: binary.LittleEndian.Uint16(data[pos:]),
		Type:    binary.LittleEndian.Uint16(data[pos+2:]),
	}
	size := int(binary.LittleEndian.Uint32(data[pos+4:]))
	start := pos + HeaderSize
	if size < 0 || start+size > len(data) {
		return nil, 0, &FormatError{Offset: pos, Message: fmt.Sprintf("record 0x%04X length %d runs past end of data", r.Type, size)}
	}
	if !r.IsContainer() {
		r.Data = append([]byte(nil), data[start:start+size]...)
		return r, HeaderSize + size, nil
	}
	end := start + size
	for p := start; p < end; {
		c, n, err := parseRecord(data[:end], p, depth+1)
		if err != nil {
			return nil, 0, err
		}
		r.Children = append(r.Children, c)
		p += n
	}
	return r, HeaderSize + size, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := &Record{Options: r.Options, Type: r.Type}
	if r.Data != nil {
		c.Data = append([]byte(nil), r.Data...)
	}
	for _, ch := range r.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return c
}

// Child returns the first direct child of type typ, or nil.
func (r *Record) Child(typ uint16) *Record {
	for _, c := range r.Children {
		if c.Type == typ {
			return c
		}
	}
	return nil
}

// Find returns the first record of type typ in depth-first order,
// including r itself, or nil.
func (r *Record) Find(typ uint16) *Record {
	var found *Record
	r.Walk(func(x *Record) bool {
		if x.Type == typ {
			found = x
			return false
		}
		return true
	})
	return found
}

// FindAll returns every record of type typ in depth-first order.
func (r *Record) FindAll(typ uint16) []*Record {
	var out []*Record
	r.Walk(func(x *Record) bool {
		if x.Type == typ {
			out = append(out, x)
		}
		return true
	})
	return out
}

// Walk visits r and its descendants depth first. Returning false from fn
// stops the walk.
func (r *Record) Walk(fn func(*Record) bool) bool {
	if !fn(r) {
		return false
	}
	for _, c := range r.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}
