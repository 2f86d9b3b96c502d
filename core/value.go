package core

import "math"

// inlineSmallBlockLimit is the threshold at or below which bytes/string payloads
// are served from the pool-backed small-object classes (core/pool.go)
// instead of the general heap allocator (spec §3.2).
const inlineSmallBlockLimit = 64

// Value is a named, kind-tagged datum. Scalar payloads (bool..double) are
// stored inline in bits; bytes/string payloads live in blob, pool-backed
// when small; container/array payloads hold a pointer. Values are immutable
// once inserted into a Container: every mutating Container API replaces the
// stored Value rather than mutating it (spec §3.2).
type Value struct {
	name      string
	kind      Kind
	bits      uint64 // inline payload for scalar kinds
	blob      []byte // payload for KindBytes / KindString
	container *Container
	array     *Array
	heap      bool // true when blob/container/array backing came from the general allocator, not the pool
	pooled    *poolBlock
}

// Array is a homogeneous, ordered sequence of Values sharing elemKind.
type Array struct {
	elemKind Kind
	items    []Value
}

// NewArray builds an Array of elemKind from items. Every item must carry
// elemKind; NewArray does not silently coerce.
func NewArray(elemKind Kind, items []Value) (*Array, error) {
	for i := range items {
		if items[i].kind != elemKind {
			return nil, errTypeMismatch("array", elemKind, items[i].kind)
		}
	}
	return &Array{elemKind: elemKind, items: items}, nil
}

// ElemKind returns the array's declared element kind.
func (a *Array) ElemKind() Kind { return a.elemKind }

// Items returns the array's elements in order. The returned slice must not
// be mutated by callers.
func (a *Array) Items() []Value { return a.items }

// Len returns the number of elements in the array.
func (a *Array) Len() int { return len(a.items) }

// Name returns the Value's key.
func (v Value) Name() string { return v.name }

// Kind returns the Value's discriminant.
func (v Value) Kind() Kind { return v.kind }

// Heap reports whether the payload was heap-allocated rather than inline or
// pool-backed, exposed for memory telemetry per spec §3.2.
func (v Value) Heap() bool { return v.heap }

// SizeBytes reports the payload footprint in bytes, per spec §4.A.
func (v Value) SizeBytes() int {
	switch v.kind {
	case KindNull:
		return 0
	case KindBool, KindShort, KindUShort:
		return 2
	case KindInt, KindUInt, KindFloat:
		return 4
	case KindLong, KindULong, KindLLong, KindULLong, KindDouble:
		return 8
	case KindBytes, KindString:
		return len(v.blob)
	case KindContainer:
		if v.container == nil {
			return 0
		}
		n := 0
		v.container.Iterate(func(x Value) bool {
			n += x.SizeBytes()
			return true
		})
		return n
	case KindArray:
		if v.array == nil {
			return 0
		}
		n := 0
		for i := range v.array.items {
			n += v.array.items[i].SizeBytes()
		}
		return n
	default:
		return 0
	}
}

func namedValue(name string, kind Kind) Value {
	return Value{name: name, kind: kind}
}

// Scalar constructors. Each stores its payload inline in bits; no pool or
// heap allocation is involved (spec §3.2).

func NewNull(name string) Value { return namedValue(name, KindNull) }

func NewBool(name string, b bool) Value {
	v := namedValue(name, KindBool)
	if b {
		v.bits = 1
	}
	return v
}

func NewShort(name string, n int16) Value {
	v := namedValue(name, KindShort)
	v.bits = uint64(uint16(n))
	return v
}

func NewUShort(name string, n uint16) Value {
	v := namedValue(name, KindUShort)
	v.bits = uint64(n)
	return v
}

func NewInt(name string, n int32) Value {
	v := namedValue(name, KindInt)
	v.bits = uint64(uint32(n))
	return v
}

func NewUInt(name string, n uint32) Value {
	v := namedValue(name, KindUInt)
	v.bits = uint64(n)
	return v
}

func NewLong(name string, n int64) Value {
	v := namedValue(name, KindLong)
	v.bits = uint64(n)
	return v
}

func NewULong(name string, n uint64) Value {
	v := namedValue(name, KindULong)
	v.bits = n
	return v
}

func NewLLong(name string, n int64) Value {
	v := namedValue(name, KindLLong)
	v.bits = uint64(n)
	return v
}

func NewULLong(name string, n uint64) Value {
	v := namedValue(name, KindULLong)
	v.bits = n
	return v
}

func NewFloat(name string, f float32) Value {
	v := namedValue(name, KindFloat)
	v.bits = uint64(math.Float32bits(f))
	return v
}

func NewDouble(name string, f float64) Value {
	v := namedValue(name, KindDouble)
	v.bits = math.Float64bits(f)
	return v
}

// NewBytes builds a KindBytes Value. Payloads of at most
// inlineSmallBlockLimit bytes are copied into a pool-backed small block
// (core/pool.go); larger payloads are copied onto the general heap.
func NewBytes(name string, data []byte) Value {
	v := namedValue(name, KindBytes)
	v.blob, v.pooled, v.heap = allocPayload(data)
	return v
}

// NewString builds a KindString Value. UTF-8 validity is not enforced at
// construction (spec §3.1); the JSON codec validates on emit/parse.
func NewString(name string, s string) Value {
	v := namedValue(name, KindString)
	v.blob, v.pooled, v.heap = allocPayload([]byte(s))
	return v
}

// NewContainerValue wraps a nested Container as a KindContainer Value. The
// nested container is a shared reference (spec §3.3/§9): mutating sub later
// is visible through every Value that wraps it.
func NewContainerValue(name string, sub *Container) Value {
	v := namedValue(name, KindContainer)
	v.container = sub
	v.heap = true
	return v
}

// NewArrayValue wraps an Array as a KindArray Value.
func NewArrayValue(name string, arr *Array) Value {
	v := namedValue(name, KindArray)
	v.array = arr
	v.heap = true
	return v
}

// Typed accessors. Each returns CodeTypeMismatch when the stored kind does
// not match and is not a valid narrowing target (see Int32/Uint32 below).

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, errTypeMismatch("value", KindBool, v.kind)
	}
	return v.bits != 0, nil
}

func (v Value) Bytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, errTypeMismatch("value", KindBytes, v.kind)
	}
	return v.blob, nil
}

func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", errTypeMismatch("value", KindString, v.kind)
	}
	return string(v.blob), nil
}

func (v Value) ContainerRef() (*Container, error) {
	if v.kind != KindContainer {
		return nil, errTypeMismatch("value", KindContainer, v.kind)
	}
	return v.container, nil
}

func (v Value) ArrayRef() (*Array, error) {
	if v.kind != KindArray {
		return nil, errTypeMismatch("value", KindArray, v.kind)
	}
	return v.array, nil
}

// signedValue returns the payload as a signed 64-bit integer for any signed
// integer kind, used by widening checks and CAS numeric comparison.
func (v Value) signedValue() (int64, bool) {
	switch v.kind {
	case KindShort:
		return int64(int16(v.bits)), true
	case KindInt:
		return int64(int32(v.bits)), true
	case KindLong, KindLLong:
		return int64(v.bits), true
	default:
		return 0, false
	}
}

func (v Value) unsignedValue() (uint64, bool) {
	switch v.kind {
	case KindUShort:
		return uint64(uint16(v.bits)), true
	case KindUInt:
		return uint64(uint32(v.bits)), true
	case KindULong, KindULLong:
		return v.bits, true
	default:
		return 0, false
	}
}

// Int32 returns the value as an int32, widening from a wider signed integer
// kind when the stored value fits int32's range (spec §4.A).
func (v Value) Int32() (int32, error) {
	if v.kind == KindInt {
		return int32(v.bits), nil
	}
	if n, ok := v.signedValue(); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
		return int32(n), nil
	}
	return 0, errTypeMismatch("value", KindInt, v.kind)
}

// Int64 returns the value as an int64 for any signed integer kind; no range
// restriction applies since int64 is the widest signed kind.
func (v Value) Int64() (int64, error) {
	if n, ok := v.signedValue(); ok {
		return n, nil
	}
	return 0, errTypeMismatch("value", KindLong, v.kind)
}

// Uint32 mirrors Int32 for the unsigned ladder.
func (v Value) Uint32() (uint32, error) {
	if v.kind == KindUInt {
		return uint32(v.bits), nil
	}
	if n, ok := v.unsignedValue(); ok && n <= math.MaxUint32 {
		return uint32(n), nil
	}
	return 0, errTypeMismatch("value", KindUInt, v.kind)
}

// Uint64 mirrors Int64 for the unsigned ladder.
func (v Value) Uint64() (uint64, error) {
	if n, ok := v.unsignedValue(); ok {
		return n, nil
	}
	return 0, errTypeMismatch("value", KindULong, v.kind)
}

func (v Value) Float32() (float32, error) {
	if v.kind != KindFloat {
		return 0, errTypeMismatch("value", KindFloat, v.kind)
	}
	return math.Float32frombits(uint32(v.bits)), nil
}

func (v Value) Float64() (float64, error) {
	switch v.kind {
	case KindDouble:
		return math.Float64frombits(v.bits), nil
	case KindFloat:
		return float64(math.Float32frombits(uint32(v.bits))), nil
	default:
		return 0, errTypeMismatch("value", KindDouble, v.kind)
	}
}

// equalNumeric implements the CAS numeric-equality rule of spec §4.B: same
// logical signedness family, compared by numeric value (not raw bits), with
// NaN never equal to itself (spec §9 open question).
func equalNumeric(a, b Value) bool {
	if a.kind.IsInteger() && b.kind.IsInteger() {
		if a.kind.IsSigned() != b.kind.IsSigned() {
			return false
		}
		if a.kind.IsSigned() {
			an, _ := a.signedValue()
			bn, _ := b.signedValue()
			return an == bn
		}
		an, _ := a.unsignedValue()
		bn, _ := b.unsignedValue()
		return an == bn
	}
	if (a.kind == KindFloat || a.kind == KindDouble) && (b.kind == KindFloat || b.kind == KindDouble) {
		af, _ := a.Float64()
		bf, _ := b.Float64()
		if math.IsNaN(af) || math.IsNaN(bf) {
			return false
		}
		return af == bf
	}
	if a.kind == KindBool && b.kind == KindBool {
		return a.bits == b.bits
	}
	return false
}

// equalValue implements full CAS equality across every kind (spec §4.B):
// scalars by numeric value, bytes/string by byte sequence, nested
// containers by canonical binary serialization.
func equalValue(a, b Value) (bool, error) {
	if a.kind.IsScalar() || b.kind.IsScalar() {
		if !a.kind.IsScalar() || !b.kind.IsScalar() {
			return false, nil
		}
		return equalNumeric(a, b), nil
	}
	switch a.kind {
	case KindBytes, KindString:
		if a.kind != b.kind {
			return false, nil
		}
		return string(a.blob) == string(b.blob), nil
	case KindContainer:
		if b.kind != KindContainer {
			return false, nil
		}
		if a.container == nil || b.container == nil {
			return a.container == b.container, nil
		}
		aw, err := EncodeBinary(a.container)
		if err != nil {
			return false, err
		}
		bw, err := EncodeBinary(b.container)
		if err != nil {
			return false, err
		}
		return string(aw) == string(bw), nil
	case KindArray:
		if b.kind != KindArray {
			return false, nil
		}
		if a.array == nil || b.array == nil {
			return a.array == b.array, nil
		}
		if a.array.elemKind != b.array.elemKind || len(a.array.items) != len(b.array.items) {
			return false, nil
		}
		for i := range a.array.items {
			eq, err := equalValue(a.array.items[i], b.array.items[i])
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	case KindNull:
		return b.kind == KindNull, nil
	default:
		return false, nil
	}
}

// normalizeLongKind applies the long/llong platform-normalization rule of
// spec §4.A to a decoded (kind, value) pair: a wire tag of KindLong is
// honored as-is only if the payload fits signed 32 bits; otherwise the
// decoded kind is promoted to KindLLong. KindLLong is never demoted — the
// tag is trusted first, per §9's "consult the tag first, not infer from
// range alone".
func normalizeLongKind(wireKind Kind, n int64) Kind {
	if wireKind == KindLong && (n < math.MinInt32 || n > math.MaxInt32) {
		return KindLLong
	}
	return wireKind
}
