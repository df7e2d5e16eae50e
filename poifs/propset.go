package poifs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/richardlehane/msoleps"
	"github.com/richardlehane/msoleps/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// Well-known property set stream names.
const (
	SummaryInformationName         = "\x05SummaryInformation"
	DocumentSummaryInformationName = "\x05DocumentSummaryInformation"
)

// Property is one decoded property of a property set stream.
type Property struct {
	Name  string
	Value string
}

// ReadPropertySet decodes a property set stream such as
// "\x05SummaryInformation".
func ReadPropertySet(data []byte) ([]Property, error) {
	r, err := msoleps.NewFrom(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{Message: fmt.Sprintf("property set: %v", err)}
	}
	props := make([]Property, 0, len(r.Property))
	for _, p := range r.Property {
		props = append(props, Property{Name: p.Name, Value: propertyText(p)})
	}
	return props, nil
}

// propertyText renders a property, decoding 8-bit strings in the code
// page of their property set.
func propertyText(p *msoleps.Property) string {
	cs, ok := p.T.(*types.CodeString)
	if !ok || len(cs.Chars) == 0 {
		return p.String()
	}
	enc := codepageEncoding(cs.Encoding())
	if enc == nil {
		return p.String()
	}
	chars := cs.Chars
	if i := bytes.IndexByte(chars, 0); i >= 0 {
		chars = chars[:i]
	}
	text, err := enc.NewDecoder().Bytes(chars)
	if err != nil {
		return p.String()
	}
	return string(text)
}

// codepageEncoding maps a code page description such as
// "windows-1252 - ANSI Latin 1" to its 8-bit encoding. Unicode code
// pages and unknown names give nil.
func codepageEncoding(desc string) encoding.Encoding {
	name, _, _ := strings.Cut(desc, " - ")
	lower := strings.ToLower(name)
	if name == "" || strings.HasPrefix(lower, "utf-") || strings.HasPrefix(lower, "unicode") {
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil
	}
	return enc
}

// SummaryProperties are the fields BuildSummaryInformation writes. Empty
// fields are omitted.
type SummaryProperties struct {
	Title       string
	Subject     string
	Author      string
	Keywords    string
	Comments    string
	LastAuthor  string
	Application string
}

// Summary information property ids.
const (
	pidCodepage    = 0x01
	pidTitle       = 0x02
	pidSubject     = 0x03
	pidAuthor      = 0x04
	pidKeywords    = 0x05
	pidComments    = 0x06
	pidLastAuthor  = 0x08
	pidApplication = 0x12

	vtI2    = 0x02
	vtLPSTR = 0x1E
)

// fmtidSummaryInformation is F29F85E0-4FF9-1068-AB91-08002B27B3D9 in
// stream byte order.
var fmtidSummaryInformation = []byte{
	0xE0, 0x85, 0x9F, 0xF2, 0xF9, 0x4F, 0x68, 0x10,
	0xAB, 0x91, 0x08, 0x00, 0x2B, 0x27, 0xB3, 0xD9,
}

// BuildSummaryInformation encodes a "\x05SummaryInformation" stream in
// code page 1252.
func BuildSummaryInformation(p SummaryProperties) []byte {
	le := binary.LittleEndian
	type prop struct {
		id    uint32
		value []byte
	}
	props := []prop{{pidCodepage, le.AppendUint16(le.AppendUint32(nil, vtI2), 1252)}}
	for _, f := range []struct {
		id uint32
		s  string
	}{
		{pidTitle, p.Title}, {pidSubject, p.Subject}, {pidAuthor, p.Author},
		{pidKeywords, p.Keywords}, {pidComments, p.Comments},
		{pidLastAuthor, p.LastAuthor}, {pidApplication, p.Application},
	} {
		if f.s == "" {
			continue
		}
		text, err := charmap.Windows1252.NewEncoder().Bytes([]byte(f.s))
		if err != nil {
			text = []byte(f.s)
		}
		text = append(text, 0)
		v := le.AppendUint32(nil, vtLPSTR)
		v = le.AppendUint32(v, uint32(len(text)))
		props = append(props, prop{f.id, append(v, text...)})
	}

	var body []byte
	offset := 8 + 8*len(props)
	var table []byte
	for _, pr := range props {
		for len(pr.value)%4 != 0 {
			pr.value = append(pr.value, 0)
		}
		table = le.AppendUint32(table, pr.id)
		table = le.AppendUint32(table, uint32(offset+len(body)))
		body = append(body, pr.value...)
	}
	section := le.AppendUint32(nil, uint32(8+len(table)+len(body)))
	section = le.AppendUint32(section, uint32(len(props)))
	section = append(section, table...)
	section = append(section, body...)

	out := le.AppendUint16(nil, 0xFFFE)
	out = le.AppendUint16(out, 0)
	out = le.AppendUint32(out, 0x00020A00)
	out = append(out, make([]byte, 16)...)
	out = le.AppendUint32(out, 1)
	out = append(out, fmtidSummaryInformation...)
	out = le.AppendUint32(out, 48)
	return append(out, section...)
}
