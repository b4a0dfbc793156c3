package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// cursor is a forward-only reader over a byte slice. Decoding never fails
// on trailing bytes — callers simply stop reading once they've consumed
// every field they know about, which is what makes the format forward
// compatible with record versions that add fields.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) need(n int) error {
	if c.remaining() < n {
		return fmt.Errorf("codec: short read: need %d bytes, have %d", n, c.remaining())
	}
	return nil
}

func (c *cursor) readByte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readN(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) readU16() (uint16, error) {
	b, err := c.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) readU32() (uint32, error) {
	b, err := c.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) readU64() (uint64, error) {
	b, err := c.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *cursor) readString() (string, error) {
	n, err := c.readU32()
	if err != nil {
		return "", err
	}
	b, err := c.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --- fixint encoders (mirrors bincode's fixint mode: fixed-width, no varint) ---

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// EncodeValue appends the wire form of a single Value: a one-byte Kind tag
// followed by the variant payload, per the record format's
// "(utf8_len, utf8_bytes, value_tag, value_payload)" property shape.
func EncodeValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case KindEmpty:
		// no payload
	case KindString:
		buf = appendString(buf, v.str)
	case KindI8:
		buf = append(buf, byte(int8(v.i64)))
	case KindI16:
		buf = appendU16(buf, uint16(int16(v.i64)))
	case KindI32:
		buf = appendU32(buf, uint32(int32(v.i64)))
	case KindI64:
		buf = appendU64(buf, uint64(v.i64))
	case KindU8:
		buf = append(buf, byte(v.u64))
	case KindU16:
		buf = appendU16(buf, uint16(v.u64))
	case KindU32:
		buf = appendU32(buf, uint32(v.u64))
	case KindU64:
		buf = appendU64(buf, v.u64)
	case KindU128, KindID:
		buf = append(buf, v.u128[:]...)
	case KindF32:
		buf = appendU32(buf, math.Float32bits(float32(v.f64)))
	case KindF64:
		buf = appendU64(buf, math.Float64bits(v.f64))
	case KindBoolean:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindDate:
		buf = appendU64(buf, uint64(v.date))
	case KindArray:
		buf = appendU32(buf, uint32(len(v.arr)))
		for _, item := range v.arr {
			buf = EncodeValue(buf, item)
		}
	case KindObject:
		buf = appendU32(buf, uint32(len(v.obj)))
		for k, item := range v.obj {
			buf = appendString(buf, k)
			buf = EncodeValue(buf, item)
		}
	}
	return buf
}

// DecodeValue reads one Value from c, per EncodeValue's wire form.
func DecodeValue(c *cursor) (Value, error) {
	tag, err := c.readByte()
	if err != nil {
		return Value{}, err
	}
	kind := ValueKind(tag)
	switch kind {
	case KindEmpty:
		return Empty(), nil
	case KindString:
		s, err := c.readString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case KindI8:
		b, err := c.readByte()
		if err != nil {
			return Value{}, err
		}
		return I8(int8(b)), nil
	case KindI16:
		u, err := c.readU16()
		if err != nil {
			return Value{}, err
		}
		return I16(int16(u)), nil
	case KindI32:
		u, err := c.readU32()
		if err != nil {
			return Value{}, err
		}
		return I32(int32(u)), nil
	case KindI64:
		u, err := c.readU64()
		if err != nil {
			return Value{}, err
		}
		return I64(int64(u)), nil
	case KindU8:
		b, err := c.readByte()
		if err != nil {
			return Value{}, err
		}
		return U8(b), nil
	case KindU16:
		u, err := c.readU16()
		if err != nil {
			return Value{}, err
		}
		return U16(u), nil
	case KindU32:
		u, err := c.readU32()
		if err != nil {
			return Value{}, err
		}
		return U32(u), nil
	case KindU64:
		u, err := c.readU64()
		if err != nil {
			return Value{}, err
		}
		return U64(u), nil
	case KindU128, KindID:
		b, err := c.readN(16)
		if err != nil {
			return Value{}, err
		}
		var id [16]byte
		copy(id[:], b)
		if kind == KindID {
			return ID(id), nil
		}
		return U128(id), nil
	case KindF32:
		u, err := c.readU32()
		if err != nil {
			return Value{}, err
		}
		return F32(math.Float32frombits(u)), nil
	case KindF64:
		u, err := c.readU64()
		if err != nil {
			return Value{}, err
		}
		return F64(math.Float64frombits(u)), nil
	case KindBoolean:
		b, err := c.readByte()
		if err != nil {
			return Value{}, err
		}
		return Boolean(b != 0), nil
	case KindDate:
		u, err := c.readU64()
		if err != nil {
			return Value{}, err
		}
		return Date(int64(u)), nil
	case KindArray:
		n, err := c.readU32()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, n)
		for i := range items {
			items[i], err = DecodeValue(c)
			if err != nil {
				return Value{}, err
			}
		}
		return Array(items), nil
	case KindObject:
		n, err := c.readU32()
		if err != nil {
			return Value{}, err
		}
		obj := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			k, err := c.readString()
			if err != nil {
				return Value{}, err
			}
			v, err := DecodeValue(c)
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return Object(obj), nil
	default:
		return Value{}, fmt.Errorf("codec: unknown value tag %d", tag)
	}
}

// EncodeProperties appends a PropertyMap: nil/empty encodes as a zero-length
// marker (a single 0x00000000 count), matching the record format's "value
// None is encoded as a zero-length marker; a non-empty map is length-prefixed".
func EncodeProperties(buf []byte, p *PropertyMap) []byte {
	n := p.Len()
	buf = appendU32(buf, uint32(n))
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		buf = appendString(buf, k)
		buf = EncodeValue(buf, v)
	}
	return buf
}

// DecodeProperties reads a PropertyMap written by EncodeProperties.
func DecodeProperties(c *cursor) (*PropertyMap, error) {
	n, err := c.readU32()
	if err != nil {
		return nil, err
	}
	p := NewPropertyMap()
	for i := uint32(0); i < n; i++ {
		k, err := c.readString()
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(c)
		if err != nil {
			return nil, err
		}
		p.Set(k, v)
	}
	return p, nil
}

// RecordHeader is the common prefix of every entity record: label, then
// version. The id is never included — it is always the kv key.
type RecordHeader struct {
	Label   string
	Version uint8
}

func EncodeHeader(buf []byte, h RecordHeader) []byte {
	buf = appendString(buf, h.Label)
	buf = append(buf, h.Version)
	return buf
}

func DecodeHeader(c *cursor) (RecordHeader, error) {
	label, err := c.readString()
	if err != nil {
		return RecordHeader{}, err
	}
	version, err := c.readByte()
	if err != nil {
		return RecordHeader{}, err
	}
	return RecordHeader{Label: label, Version: version}, nil
}

// NewCursor exposes cursor construction to sibling packages (graph, vector)
// that build their own record shapes on top of these primitives.
func NewCursor(buf []byte) *Cursor { return &Cursor{c: &cursor{buf: buf}} }

// Cursor is the exported forward-only byte reader used by record decoders
// in the graph and vector packages.
type Cursor struct{ c *cursor }

func (cu *Cursor) ReadByte() (byte, error) { return cu.c.readByte() }
func (cu *Cursor) ReadN(n int) ([]byte, error) { return cu.c.readN(n) }
func (cu *Cursor) ReadU16() (uint16, error) { return cu.c.readU16() }
func (cu *Cursor) ReadU32() (uint32, error) { return cu.c.readU32() }
func (cu *Cursor) ReadU64() (uint64, error) { return cu.c.readU64() }
func (cu *Cursor) ReadString() (string, error) { return cu.c.readString() }
func (cu *Cursor) Remaining() int { return cu.c.remaining() }
func (cu *Cursor) DecodeHeader() (RecordHeader, error) { return DecodeHeader(cu.c) }
func (cu *Cursor) DecodeProperties() (*PropertyMap, error) { return DecodeProperties(cu.c) }

// AppendHeader/AppendProperties mirror the unexported encoders for use from
// sibling packages building composite records (Node/Edge/Vector).
func AppendHeader(buf []byte, h RecordHeader) []byte { return EncodeHeader(buf, h) }
func AppendProperties(buf []byte, p *PropertyMap) []byte { return EncodeProperties(buf, p) }
func AppendU16(buf []byte, v uint16) []byte { return appendU16(buf, v) }
func AppendU32(buf []byte, v uint32) []byte { return appendU32(buf, v) }
func AppendU64(buf []byte, v uint64) []byte               { return appendU64(buf, v) }
func AppendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}
