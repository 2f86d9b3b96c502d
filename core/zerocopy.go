// core/zerocopy.go
package core

// Zero-copy view over a canonical-binary payload (spec §4.I). ParseView
// does no eager deserialization; the first call to Get builds a lazy name
// index by scanning the buffer once. String/bytes views borrow directly
// from the retained buffer; scalar views decode once and cache the result.
//
// Go cannot express a borrowed lifetime shorter than the buffer's, so
// ContainerView always retains its source slice for as long as the view is
// reachable (the spec's retain_buffer=true case) — callers that need the
// buffer freed should call ToOwned and drop the view.

import (
	"sync"
	"unsafe"
)

type viewEntry struct {
	offset int
	kind   Kind
}

// ContainerView is a read-only, non-owning handle onto a canonical-binary
// payload. It is safe for concurrent reads: index-building runs once under
// a sync.Once and the scalar cache is guarded by a mutex.
type ContainerView struct {
	buf    []byte
	header Header

	indexOnce sync.Once
	indexErr  error
	index     map[string]viewEntry
	order     []string

	cacheMu sync.Mutex
	cache   map[string]Value
}

// ParseView builds a ContainerView over data without deserializing any
// payload. data must be in canonical binary format (spec §4.E); the view
// retains data for its entire lifetime.
func ParseView(data []byte) (*ContainerView, error) {
	r := newBinReader(data)
	magic, err := r.take(4)
	if err != nil || string(magic) != string(binaryMagic[:]) {
		return nil, errInvalidFormat("zerocopy", "not canonical binary")
	}
	var h Header
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
	return &ContainerView{buf: data, header: h, cache: make(map[string]Value)}, nil
}

// Header returns the view's header, always available without indexing.
func (v *ContainerView) Header() Header { return v.header }

// buildIndex performs the one-time single-pass scan computing
// name -> (offset, kind) for every top-level value (spec §4.I).
func (v *ContainerView) buildIndex() {
	v.indexOnce.Do(func() {
		r := newBinReader(v.buf)
		if _, err := r.take(4); err != nil { // magic
			v.indexErr = err
			return
		}
		for i := 0; i < 6; i++ { // header fields
			if _, err := r.varStr(); err != nil {
				v.indexErr = err
				return
			}
		}
		count, err := r.u32()
		if err != nil {
			v.indexErr = err
			return
		}
		v.index = make(map[string]viewEntry, count)
		v.order = make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			kindByte, err := r.u8()
			if err != nil {
				v.indexErr = err
				return
			}
			kind := Kind(kindByte)
			if !kind.Valid() {
				v.indexErr = errInvalidFormat("zerocopy", "unknown kind ordinal")
				return
			}
			name, err := r.varStr()
			if err != nil {
				v.indexErr = err
				return
			}
			entry := viewEntry{offset: r.pos, kind: kind}
			if err := skipPayloadBinary(r, kind); err != nil {
				v.indexErr = err
				return
			}
			v.index[name] = entry
			v.order = append(v.order, name)
		}
	})
}

// skipPayloadBinary advances r past one value's payload without decoding
// it, used only to compute offsets during index construction.
func skipPayloadBinary(r *binReader, kind Kind) error {
	switch kind {
	case KindNull:
		return nil
	case KindBool:
		_, err := r.u8()
		return err
	case KindShort, KindUShort:
		_, err := r.u16()
		return err
	case KindInt, KindUInt, KindFloat:
		_, err := r.u32()
		return err
	case KindLong, KindULong, KindLLong, KindULLong, KindDouble:
		_, err := r.u64()
		return err
	case KindBytes, KindString:
		_, err := r.lenBytes()
		return err
	case KindContainer:
		// Re-parse recursively; the sub-container's own encoding is
		// self-delimiting via its value count, so decode fully to find
		// the end offset.
		_, err := decodeContainerBinary(r, 0)
		return err
	case KindArray:
		elemByte, err := r.u8()
		if err != nil {
			return err
		}
		elemKind := Kind(elemByte)
		if !elemKind.Valid() {
			return errInvalidFormat("zerocopy", "unknown array element kind")
		}
		n, err := r.u32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := skipPayloadBinary(r, elemKind); err != nil {
				return err
			}
		}
		return nil
	default:
		return errInvalidFormat("zerocopy", "unknown kind")
	}
}

// Get returns a non-owning ValueView for name, building the lazy index on
// first call (spec §4.I).
func (v *ContainerView) Get(name string) (ValueView, bool) {
	v.buildIndex()
	if v.indexErr != nil {
		return ValueView{}, false
	}
	entry, ok := v.index[name]
	if !ok {
		return ValueView{}, false
	}
	return ValueView{view: v, name: name, entry: entry}, true
}

// Names returns every top-level value name, in wire order. Triggers the
// lazy index if not already built.
func (v *ContainerView) Names() []string {
	v.buildIndex()
	return append([]string(nil), v.order...)
}

// ToOwned materializes the full view into an owned, mutable Container
// (spec §4.I: "any mutation requires materializing into an owned
// Container").
func (v *ContainerView) ToOwned() (*Container, error) {
	return DecodeBinary(v.buf)
}

// ValueView is a non-owning handle onto one value within a ContainerView.
// String and bytes accessors borrow directly from the source buffer;
// scalar accessors decode once and cache the result on the parent view.
type ValueView struct {
	view  *ContainerView
	name  string
	entry viewEntry
}

// Kind returns the view's kind without any decoding.
func (vv ValueView) Kind() Kind { return vv.entry.kind }

// Str returns the underlying string slice without copying — the returned
// string aliases vv's parent view's buffer, which must not be mutated while
// the string is in use.
func (vv ValueView) Str() (string, error) {
	if vv.entry.kind != KindString {
		return "", errTypeMismatch("zerocopy", KindString, vv.entry.kind)
	}
	n, err := readLenPrefix(vv.view.buf, vv.entry.offset)
	if err != nil {
		return "", err
	}
	start := vv.entry.offset + 4
	if start+n > len(vv.view.buf) {
		return "", errDeserializationFailed("zerocopy", "truncated input")
	}
	if n == 0 {
		return "", nil
	}
	return unsafe.String(&vv.view.buf[start], n), nil
}

// Bytes returns the underlying byte slice without copying the source
// buffer — the returned slice aliases vv's parent view's buffer and must
// not be mutated.
func (vv ValueView) Bytes() ([]byte, error) {
	if vv.entry.kind != KindBytes {
		return nil, errTypeMismatch("zerocopy", KindBytes, vv.entry.kind)
	}
	n, err := readLenPrefix(vv.view.buf, vv.entry.offset)
	if err != nil {
		return nil, err
	}
	start := vv.entry.offset + 4
	if start+n > len(vv.view.buf) {
		return nil, errDeserializationFailed("zerocopy", "truncated input")
	}
	return vv.view.buf[start : start+n], nil
}

func readLenPrefix(buf []byte, offset int) (int, error) {
	r := newBinReader(buf)
	r.pos = offset
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// decodeScalar decodes and caches vv's payload on the parent view, keyed by
// name (spec §4.I: "scalar views require a one-time decode per access,
// cached").
func (vv ValueView) decodeScalar() (Value, error) {
	vv.view.cacheMu.Lock()
	defer vv.view.cacheMu.Unlock()
	if cached, ok := vv.view.cache[vv.name]; ok {
		return cached, nil
	}
	r := newBinReader(vv.view.buf)
	r.pos = vv.entry.offset
	val, err := decodePayloadBinary(r, vv.name, vv.entry.kind, 0)
	if err != nil {
		return Value{}, err
	}
	vv.view.cache[vv.name] = val
	return val, nil
}

// Bool decodes and caches a KindBool view.
func (vv ValueView) Bool() (bool, error) {
	v, err := vv.decodeScalar()
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// Int64 decodes and caches any signed integer view.
func (vv ValueView) Int64() (int64, error) {
	v, err := vv.decodeScalar()
	if err != nil {
		return 0, err
	}
	return v.Int64()
}

// Uint64 decodes and caches any unsigned integer view.
func (vv ValueView) Uint64() (uint64, error) {
	v, err := vv.decodeScalar()
	if err != nil {
		return 0, err
	}
	return v.Uint64()
}

// Float64 decodes and caches a float/double view.
func (vv ValueView) Float64() (float64, error) {
	v, err := vv.decodeScalar()
	if err != nil {
		return 0, err
	}
	return v.Float64()
}

// ToValue fully materializes this view as an owned Value, decoding nested
// containers/arrays recursively.
func (vv ValueView) ToValue() (Value, error) {
	r := newBinReader(vv.view.buf)
	r.pos = vv.entry.offset
	return decodePayloadBinary(r, vv.name, vv.entry.kind, 0)
}
