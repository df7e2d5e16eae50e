// Package record implements the BIFF8 record codec: a typed record for
// every structure the workbook model manipulates, a registry mapping
// sids to decoders, and byte-exact passthrough for everything else.
package record

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record is one logical BIFF8 record. Records longer than
// MaxRecordDataSize are exposed whole; the CONTINUE blocks they occupy on
// disk are an encoding detail.
type Record interface {
	// Sid returns the record type.
	Sid() uint16

	// Serialize writes the payload without header.
	Serialize(out *Output)

	// Clone returns an independent deep copy.
	Clone() Record
}

// Continuable is implemented by records that control where their payload
// is split into CONTINUE blocks (SST, EXTERNSHEET).
type Continuable interface {
	Record
	SerializeContinued(out *ContinuableOutput)
}

// SubRecordPolicy selects what happens to malformed OBJ sub-records.
type SubRecordPolicy int

const (
	// SubRecordsKeepRaw keeps a malformed sub-record sequence as opaque
	// bytes and writes a warning.
	SubRecordsKeepRaw SubRecordPolicy = iota

	// SubRecordsReject fails decoding with a RecordFormatError.
	SubRecordsReject
)

// DecodeOptions controls Decode. A nil *DecodeOptions means defaults.
type DecodeOptions struct {
	// SubRecordPolicy governs malformed OBJ sub-records.
	SubRecordPolicy SubRecordPolicy

	// Logfile receives warnings. Nil means silent.
	Logfile io.Writer

	// Verbosity is the level of diagnostic output.
	Verbosity int
}

func (o *DecodeOptions) warnf(format string, args ...interface{}) {
	if o != nil && o.Logfile != nil {
		fmt.Fprintf(o.Logfile, "record: "+format+"\n", args...)
	}
}

func (o *DecodeOptions) policy() SubRecordPolicy {
	if o == nil {
		return SubRecordsKeepRaw
	}
	return o.SubRecordPolicy
}

type decoder func(in *InputStream, opts *DecodeOptions) (Record, error)

var registry = map[uint16]decoder{}

func register(sid uint16, d decoder) {
	registry[sid] = d
}

// Decode splits a workbook stream into records. Trailing zero padding
// after the last record is ignored.
func Decode(data []byte, opts *DecodeOptions) ([]Record, error) {
	in := NewInputStream(data)
	var records []Record
	for in.HasNextRecord() {
		if err := in.NextRecord(); err != nil {
			return nil, err
		}
		r, err := DecodeRecord(in, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// DecodeRecord decodes the record the stream is positioned on. Unknown
// record types consume only their own block; CONTINUE blocks following
// them decode as ContinueRecords so the stream round-trips unchanged.
func DecodeRecord(in *InputStream, opts *DecodeOptions) (Record, error) {
	dec, ok := registry[in.Sid()]
	if !ok {
		return &UnknownRecord{Type: in.Sid(), Data: in.ReadRemainder()}, nil
	}
	r, err := dec(in, opts)
	if err != nil {
		return nil, err
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	if n := in.Remaining(); n > 0 {
		return nil, newFormatError(in.Sid(), in.Offset(), "%s has %d unread bytes", Name(in.Sid()), n)
	}
	return r, nil
}

// Serialize encodes a record including its header, splitting payloads
// longer than MaxRecordDataSize into CONTINUE blocks.
func Serialize(r Record) []byte {
	if c, ok := r.(Continuable); ok {
		out := NewContinuableOutput(r.Sid())
		c.SerializeContinued(out)
		return out.Bytes()
	}
	out := NewOutput(64)
	r.Serialize(out)
	return frame(r.Sid(), out.Bytes())
}

func frame(sid uint16, payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+HeaderSize)
	first := true
	for first || len(payload) > 0 {
		n := len(payload)
		if n > MaxRecordDataSize {
			n = MaxRecordDataSize
		}
		id := sid
		if !first {
			id = XL_CONTINUE
		}
		buf = binary.LittleEndian.AppendUint16(buf, id)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(n))
		buf = append(buf, payload[:n]...)
		payload = payload[n:]
		first = false
	}
	return buf
}

// RecordSize returns the encoded size of r including all block headers.
func RecordSize(r Record) int {
	return len(Serialize(r))
}

// Encode serializes records back to back.
func Encode(records []Record) []byte {
	var buf []byte
	for _, r := range records {
		buf = append(buf, Serialize(r)...)
	}
	return buf
}

// UnknownRecord carries a record this package has no type for, byte for
// byte.
type UnknownRecord struct {
	Type uint16
	Data []byte
}

func (r *UnknownRecord) Sid() uint16           { return r.Type }
func (r *UnknownRecord) Serialize(out *Output) { out.Write(r.Data) }
func (r *UnknownRecord) Clone() Record {
	return &UnknownRecord{Type: r.Type, Data: append([]byte(nil), r.Data...)}
}

// ContinueRecord is a CONTINUE block not absorbed by the record before it.
type ContinueRecord struct {
	Data []byte
}

func (r *ContinueRecord) Sid() uint16           { return XL_CONTINUE }
func (r *ContinueRecord) Serialize(out *Output) { out.Write(r.Data) }
func (r *ContinueRecord) Clone() Record {
	return &ContinueRecord{Data: append([]byte(nil), r.Data...)}
}

// ValueRecord is any record whose payload is a single 16-bit value:
// CALCMODE, REFMODE, BACKUP, PROTECT and the like.
type ValueRecord struct {
	Type  uint16
	Value uint16
}

// NewValueRecord creates a ValueRecord of type sid.
func NewValueRecord(sid uint16, value int) *ValueRecord {
	return &ValueRecord{Type: sid, Value: uint16(value)}
}

func (r *ValueRecord) Sid() uint16           { return r.Type }
func (r *ValueRecord) Serialize(out *Output) { out.WriteShort(int(r.Value)) }
func (r *ValueRecord) Clone() Record         { c := *r; return &c }

var valueSids = []uint16{
	XL_CALCCOUNT, XL_CALCMODE, XL_PRECISION, XL_REFMODE, XL_ITERATION,
	XL_PROTECT, XL_PASSWORD, XL_WINDOWPROTECT, XL_DATEMODE, XL_PRINTHEADERS,
	XL_PRINTGRIDLINES, XL_CODEPAGE, XL_BACKUP, XL_DEFCOLWIDTH, XL_OBJPROTECT,
	XL_WSBOOL, XL_GRIDSET, XL_HCENTER, XL_VCENTER, XL_HIDEOBJ, XL_FNGROUPCOUNT,
	XL_BOOKBOOL, XL_INTERFACEHDR, XL_USESELFS, XL_DSF, XL_PROTECTIONREV4,
	XL_PASSWORDREV4, XL_REFRESHALL, XL_COUNTRY, XL_XCT, XL_SCENPROTECT,
}

func decodeValue(in *InputStream, _ *DecodeOptions) (Record, error) {
	// A few of these carry extra bytes in some producers (COUNTRY has
	// two values, XCT a sheet index); keep those byte-exact.
	if in.Remaining() != 2 {
		return &UnknownRecord{Type: in.Sid(), Data: in.ReadRemainder()}, nil
	}
	return &ValueRecord{Type: in.Sid(), Value: in.ReadUShort()}, nil
}

// EmptyRecord is a record with no payload (EOF, INTERFACEEND, UNCALCED
// without data).
type EmptyRecord struct {
	Type uint16
}

func (r *EmptyRecord) Sid() uint16       { return r.Type }
func (r *EmptyRecord) Serialize(*Output) {}
func (r *EmptyRecord) Clone() Record     { c := *r; return &c }

// NewEOF returns an EOF record.
func NewEOF() *EmptyRecord { return &EmptyRecord{Type: XL_EOF} }

func decodeEmpty(in *InputStream, _ *DecodeOptions) (Record, error) {
	if in.Remaining() != 0 {
		return &UnknownRecord{Type: in.Sid(), Data: in.ReadRemainder()}, nil
	}
	return &EmptyRecord{Type: in.Sid()}, nil
}

func init() {
	for _, sid := range valueSids {
		register(sid, decodeValue)
	}
	register(XL_EOF, decodeEmpty)
	register(XL_INTERFACEEND, decodeEmpty)
	register(XL_CONTINUE, func(in *InputStream, _ *DecodeOptions) (Record, error) {
		return &ContinueRecord{Data: in.ReadRemainder()}, nil
	})
}
