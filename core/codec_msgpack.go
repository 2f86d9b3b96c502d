// core/codec_msgpack.go
package core

// MessagePack codec (spec §4 "pluggable serialization" — MessagePack is
// named alongside binary/JSON/XML as a supported wire format). Built on
// vmihailenco/msgpack/v5 against small exported wire-shape structs, since
// Value/Container keep their fields unexported for invariant enforcement.

import (
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type mpHeader struct {
	SourceID    string `msgpack:"source_id"`
	SourceSubID string `msgpack:"source_sub_id"`
	TargetID    string `msgpack:"target_id"`
	TargetSubID string `msgpack:"target_sub_id"`
	MessageType string `msgpack:"message_type"`
	Version     string `msgpack:"version"`
}

type mpContainer struct {
	Header mpHeader   `msgpack:"header"`
	Values []mpValue  `msgpack:"values"`
}

type mpValue struct {
	Name   string       `msgpack:"name"`
	Kind   uint8        `msgpack:"kind"`
	Bits   uint64       `msgpack:"bits,omitempty"`
	Blob   []byte       `msgpack:"blob,omitempty"`
	Sub    *mpContainer `msgpack:"sub,omitempty"`
	Elem   uint8        `msgpack:"elem,omitempty"`
	Items  []mpValue    `msgpack:"items,omitempty"`
}

// EncodeMsgpack serializes c using MessagePack.
func EncodeMsgpack(c *Container) ([]byte, error) {
	start := time.Now()
	defer func() { recordSerialization(time.Since(start)) }()
	wire, err := toMPContainer(c, 0)
	if err != nil {
		return nil, err
	}
	out, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, errInvalidFormat("msgpack", err.Error())
	}
	return out, nil
}

func toMPContainer(c *Container, depth int) (*mpContainer, error) {
	if depth > maxContainerDepth {
		return nil, errInvalidFormat("msgpack", "nested container depth exceeds limit")
	}
	c.mu.RLock()
	header := c.Header
	values := append([]Value(nil), c.values...)
	c.mu.RUnlock()

	wire := &mpContainer{
		Header: mpHeader{
			SourceID:    header.SourceID,
			SourceSubID: header.SourceSubID,
			TargetID:    header.TargetID,
			TargetSubID: header.TargetSubID,
			MessageType: header.MessageType,
			Version:     header.Version,
		},
		Values: make([]mpValue, 0, len(values)),
	}
	for _, v := range values {
		mv, err := toMPValue(v, depth)
		if err != nil {
			return nil, err
		}
		wire.Values = append(wire.Values, mv)
	}
	return wire, nil
}

func toMPValue(v Value, depth int) (mpValue, error) {
	mv := mpValue{Name: v.name, Kind: uint8(v.kind)}
	switch v.kind {
	case KindNull:
	case KindBool, KindShort, KindUShort, KindInt, KindUInt,
		KindLong, KindULong, KindLLong, KindULLong, KindFloat, KindDouble:
		mv.Bits = v.bits
	case KindBytes, KindString:
		mv.Blob = v.blob
	case KindContainer:
		if v.container == nil {
			return mpValue{}, errInvalidFormat("msgpack", "nil container value")
		}
		sub, err := toMPContainer(v.container, depth+1)
		if err != nil {
			return mpValue{}, err
		}
		mv.Sub = sub
	case KindArray:
		if v.array == nil {
			return mpValue{}, errInvalidFormat("msgpack", "nil array value")
		}
		mv.Elem = uint8(v.array.elemKind)
		mv.Items = make([]mpValue, 0, len(v.array.items))
		for _, item := range v.array.items {
			iv, err := toMPValue(item, depth+1)
			if err != nil {
				return mpValue{}, err
			}
			mv.Items = append(mv.Items, iv)
		}
	default:
		return mpValue{}, errInvalidFormat("msgpack", "unknown kind")
	}
	return mv, nil
}

// DecodeMsgpack parses a container produced by EncodeMsgpack.
func DecodeMsgpack(data []byte) (*Container, error) {
	start := time.Now()
	defer func() { recordDeserialization(time.Since(start)) }()
	var wire mpContainer
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, errDeserializationFailed("msgpack", err.Error())
	}
	return fromMPContainer(&wire, 0)
}

func fromMPContainer(wire *mpContainer, depth int) (*Container, error) {
	if depth > maxContainerDepth {
		return nil, errInvalidFormat("msgpack", "nested container depth exceeds limit")
	}
	h := Header{
		SourceID:    wire.Header.SourceID,
		SourceSubID: wire.Header.SourceSubID,
		TargetID:    wire.Header.TargetID,
		TargetSubID: wire.Header.TargetSubID,
		MessageType: wire.Header.MessageType,
		Version:     wire.Header.Version,
	}
	c := NewContainer(h)
	values := make([]Value, 0, len(wire.Values))
	for _, mv := range wire.Values {
		v, err := fromMPValue(mv, depth)
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

func fromMPValue(mv mpValue, depth int) (Value, error) {
	kind := Kind(mv.Kind)
	if !kind.Valid() {
		return Value{}, errInvalidFormat("msgpack", "unknown kind ordinal")
	}
	switch kind {
	case KindNull:
		return NewNull(mv.Name), nil
	case KindBool:
		return NewBool(mv.Name, mv.Bits != 0), nil
	case KindShort:
		return NewShort(mv.Name, int16(mv.Bits)), nil
	case KindUShort:
		return NewUShort(mv.Name, uint16(mv.Bits)), nil
	case KindInt:
		return NewInt(mv.Name, int32(mv.Bits)), nil
	case KindUInt:
		return NewUInt(mv.Name, uint32(mv.Bits)), nil
	case KindLong, KindLLong:
		resolved := normalizeLongKind(kind, int64(mv.Bits))
		if resolved == KindLLong {
			return NewLLong(mv.Name, int64(mv.Bits)), nil
		}
		return NewLong(mv.Name, int64(mv.Bits)), nil
	case KindULong:
		return NewULong(mv.Name, mv.Bits), nil
	case KindULLong:
		return NewULLong(mv.Name, mv.Bits), nil
	case KindFloat:
		return NewFloat(mv.Name, math.Float32frombits(uint32(mv.Bits))), nil
	case KindDouble:
		return NewDouble(mv.Name, math.Float64frombits(mv.Bits)), nil
	case KindBytes:
		return NewBytes(mv.Name, mv.Blob), nil
	case KindString:
		return NewString(mv.Name, string(mv.Blob)), nil
	case KindContainer:
		if mv.Sub == nil {
			return Value{}, errInvalidFormat("msgpack", "missing nested container")
		}
		sub, err := fromMPContainer(mv.Sub, depth+1)
		if err != nil {
			return Value{}, err
		}
		return NewContainerValue(mv.Name, sub), nil
	case KindArray:
		elemKind := Kind(mv.Elem)
		if !elemKind.Valid() {
			return Value{}, errInvalidFormat("msgpack", "unknown array element kind")
		}
		items := make([]Value, 0, len(mv.Items))
		for _, imv := range mv.Items {
			item, err := fromMPValue(imv, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		arr, err := NewArray(elemKind, items)
		if err != nil {
			return Value{}, err
		}
		return NewArrayValue(mv.Name, arr), nil
	default:
		return Value{}, errInvalidFormat("msgpack", "unsupported kind")
	}
}
