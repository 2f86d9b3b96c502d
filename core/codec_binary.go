// core/codec_binary.go
package core

// Binary codec — canonical wire format (spec §4.E). Big-endian for every
// multi-byte integer and for floats (IEEE-754 byte order normalized to
// big-endian). A 4-byte magic sentinel precedes the Header so DetectFormat
// (codec_detect.go) can distinguish this format from MessagePack/JSON/XML
// without ambiguity (spec §4.H: "custom sentinel for canonical binary").

import (
	"encoding/binary"
	"math"
	"time"
)

// binaryMagic is the canonical-binary sentinel prefix.
var binaryMagic = [4]byte{'C', 'B', 'F', '1'}

// maxContainerDepth bounds nested container/array recursion (spec §4.E
// edge cases: "recommend 64").
const maxContainerDepth = 64

// EncodeBinary serializes c into the canonical binary wire format.
func EncodeBinary(c *Container) ([]byte, error) {
	start := time.Now()
	defer func() { recordSerialization(time.Since(start)) }()
	w := newBinWriter()
	w.bytes(binaryMagic[:])
	if err := encodeContainerBinary(w, c, 0); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func encodeContainerBinary(w *binWriter, c *Container, depth int) error {
	if depth > maxContainerDepth {
		return errInvalidFormat("binary", "nested container depth exceeds limit")
	}
	c.mu.RLock()
	header := c.Header
	values := append([]Value(nil), c.values...)
	c.mu.RUnlock()

	w.varStr(header.SourceID)
	w.varStr(header.SourceSubID)
	w.varStr(header.TargetID)
	w.varStr(header.TargetSubID)
	w.varStr(header.MessageType)
	w.varStr(header.Version)

	w.u32(uint32(len(values)))
	for _, v := range values {
		if err := encodeValueBinary(w, v, depth); err != nil {
			return err
		}
	}
	return nil
}

func encodeValueBinary(w *binWriter, v Value, depth int) error {
	w.u8(uint8(v.kind))
	w.varStr(v.name)
	return encodePayloadBinary(w, v, depth)
}

func encodePayloadBinary(w *binWriter, v Value, depth int) error {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		b, _ := v.Bool()
		if b {
			w.u8(1)
		} else {
			w.u8(0)
		}
	case KindShort:
		w.u16(uint16(v.bits))
	case KindUShort:
		w.u16(uint16(v.bits))
	case KindInt:
		w.u32(uint32(v.bits))
	case KindUInt:
		w.u32(uint32(v.bits))
	case KindLong, KindLLong:
		w.u64(v.bits)
	case KindULong, KindULLong:
		w.u64(v.bits)
	case KindFloat:
		w.u32(uint32(v.bits))
	case KindDouble:
		w.u64(v.bits)
	case KindBytes, KindString:
		w.u32(uint32(len(v.blob)))
		w.bytes(v.blob)
	case KindContainer:
		if v.container == nil {
			return errInvalidFormat("binary", "nil container value")
		}
		return encodeContainerBinary(w, v.container, depth+1)
	case KindArray:
		if v.array == nil {
			return errInvalidFormat("binary", "nil array value")
		}
		w.u8(uint8(v.array.elemKind))
		w.u32(uint32(len(v.array.items)))
		for _, item := range v.array.items {
			if err := encodePayloadBinary(w, item, depth+1); err != nil {
				return err
			}
		}
	default:
		return errInvalidFormat("binary", "unknown kind")
	}
	return nil
}

// DecodeBinary parses the canonical binary wire format produced by
// EncodeBinary.
func DecodeBinary(data []byte) (*Container, error) {
	start := time.Now()
	defer func() { recordDeserialization(time.Since(start)) }()
	r := newBinReader(data)
	magic, err := r.take(4)
	if err != nil {
		return nil, errDeserializationFailed("binary", "truncated magic")
	}
	if string(magic) != string(binaryMagic[:]) {
		return nil, errInvalidFormat("binary", "bad magic")
	}
	return decodeContainerBinary(r, 0)
}

func decodeContainerBinary(r *binReader, depth int) (*Container, error) {
	if depth > maxContainerDepth {
		return nil, errInvalidFormat("binary", "nested container depth exceeds limit")
	}
	var h Header
	var err error
	if h.SourceID, err = r.varStr(); err != nil {
		return nil, err
	}
	if h.SourceSubID, err = r.varStr(); err != nil {
		return nil, err
	}
	if h.TargetID, err = r.varStr(); err != nil {
		return nil, err
	}
	if h.TargetSubID, err = r.varStr(); err != nil {
		return nil, err
	}
	if h.MessageType, err = r.varStr(); err != nil {
		return nil, err
	}
	if h.Version, err = r.varStr(); err != nil {
		return nil, err
	}

	count, err := r.u32()
	if err != nil {
		return nil, err
	}

	c := NewContainer(h)
	values := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := decodeValueBinary(r, depth)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := c.BulkInsert(values); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeValueBinary(r *binReader, depth int) (Value, error) {
	kindByte, err := r.u8()
	if err != nil {
		return Value{}, err
	}
	kind := Kind(kindByte)
	if !kind.Valid() {
		return Value{}, errInvalidFormat("binary", "unknown kind ordinal")
	}
	name, err := r.varStr()
	if err != nil {
		return Value{}, err
	}
	return decodePayloadBinary(r, name, kind, depth)
}

func decodePayloadBinary(r *binReader, name string, kind Kind, depth int) (Value, error) {
	switch kind {
	case KindNull:
		return NewNull(name), nil
	case KindBool:
		b, err := r.u8()
		if err != nil {
			return Value{}, err
		}
		return NewBool(name, b != 0), nil
	case KindShort:
		n, err := r.u16()
		if err != nil {
			return Value{}, err
		}
		return NewShort(name, int16(n)), nil
	case KindUShort:
		n, err := r.u16()
		if err != nil {
			return Value{}, err
		}
		return NewUShort(name, n), nil
	case KindInt:
		n, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		return NewInt(name, int32(n)), nil
	case KindUInt:
		n, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		return NewUInt(name, n), nil
	case KindLong, KindLLong:
		n, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		resolved := normalizeLongKind(kind, int64(n))
		if resolved == KindLLong {
			return NewLLong(name, int64(n)), nil
		}
		return NewLong(name, int64(n)), nil
	case KindULong:
		n, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		return NewULong(name, n), nil
	case KindULLong:
		n, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		return NewULLong(name, n), nil
	case KindFloat:
		n, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		return NewFloat(name, math.Float32frombits(n)), nil
	case KindDouble:
		n, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		return NewDouble(name, math.Float64frombits(n)), nil
	case KindBytes:
		b, err := r.lenBytes()
		if err != nil {
			return Value{}, err
		}
		return NewBytes(name, b), nil
	case KindString:
		b, err := r.lenBytes()
		if err != nil {
			return Value{}, err
		}
		return NewString(name, string(b)), nil
	case KindContainer:
		sub, err := decodeContainerBinary(r, depth+1)
		if err != nil {
			return Value{}, err
		}
		return NewContainerValue(name, sub), nil
	case KindArray:
		elemKindByte, err := r.u8()
		if err != nil {
			return Value{}, err
		}
		elemKind := Kind(elemKindByte)
		if !elemKind.Valid() {
			return Value{}, errInvalidFormat("binary", "unknown array element kind")
		}
		n, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			item, err := decodePayloadBinary(r, "", elemKind, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		arr, err := NewArray(elemKind, items)
		if err != nil {
			return Value{}, err
		}
		return NewArrayValue(name, arr), nil
	default:
		return Value{}, errInvalidFormat("binary", "unsupported kind")
	}
}

// binWriter accumulates the binary wire format.
type binWriter struct {
	buf []byte
}

func newBinWriter() *binWriter { return &binWriter{buf: make([]byte, 0, 256)} }

func (w *binWriter) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *binWriter) u8(b uint8) { w.buf = append(w.buf, b) }

func (w *binWriter) u16(n uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], n)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *binWriter) u32(n uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *binWriter) u64(n uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *binWriter) varStr(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// binReader consumes the binary wire format with bounds checking; any
// read past the end of data yields DeserializationFailed (spec §4.E
// "Truncated input yields DeserializationFailed").
type binReader struct {
	data []byte
	pos  int
}

func newBinReader(data []byte) *binReader { return &binReader{data: data} }

func (r *binReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, errDeserializationFailed("binary", "truncated input")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *binReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *binReader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *binReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *binReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *binReader) varStr() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *binReader) lenBytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
