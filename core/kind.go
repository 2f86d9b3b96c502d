package core

import "fmt"

// Kind is the stable ordinal discriminant for a Value's payload shape.
// Ordinals are part of the wire contract: the binary codec (codec_binary.go)
// and the MessagePack codec write these exact values, so the order below
// must never change. The JSON/XML "type" fields carry the kindNames
// strings instead.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindShort     // int16
	KindUShort    // uint16
	KindInt       // int32
	KindUInt      // uint32
	KindLong      // int64, logical "long"
	KindULong     // uint64
	KindLLong     // int64, logical "long long"
	KindULLong    // uint64
	KindFloat     // float32
	KindDouble    // float64
	KindBytes     // []byte
	KindString    // UTF-8 string
	KindContainer // nested *Container
	KindArray     // homogeneous []Value
)

const kindCount = int(KindArray) + 1

var kindNames = [kindCount]string{
	"null", "bool", "short", "ushort", "int", "uint",
	"long", "ulong", "llong", "ullong", "float", "double",
	"bytes", "string", "container", "array",
}

// String renders the kind using its spec-defined lowercase name.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= kindCount {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the 16 defined discriminants.
func (k Kind) Valid() bool {
	return int(k) < kindCount
}

// IsScalar reports whether the kind's payload fits in the Value's inline
// 8-byte storage (bool through double).
func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindDouble
}

// IsInteger reports whether the kind is one of the eight integer kinds.
func (k Kind) IsInteger() bool {
	switch k {
	case KindShort, KindUShort, KindInt, KindUInt, KindLong, KindULong, KindLLong, KindULLong:
		return true
	default:
		return false
	}
}

// IsSigned reports whether an integer kind is signed. Only meaningful when
// IsInteger is true.
func (k Kind) IsSigned() bool {
	switch k {
	case KindShort, KindInt, KindLong, KindLLong:
		return true
	default:
		return false
	}
}
