package core

import "time"

// Set appends value if name is absent, or replaces the first match
// in-place (spec §4.B). Returns EmptyKey if name is empty.
func (c *Container) Set(name string, value Value) error {
	if name == "" {
		return errEmptyKey("container")
	}
	start := time.Now()
	defer func() { recordSetLatency(time.Since(start)) }()
	value.name = name

	c.mu.Lock()
	defer c.mu.Unlock()

	h := hashName(name)
	if positions, ok := c.index[h]; ok {
		for _, pos := range positions {
			if c.values[pos].name == name {
				old := c.values[pos]
				c.values[pos] = value
				c.trackAlloc(value)
				c.recent.Remove(name)
				c.recordWrite(old)
				return nil
			}
		}
	}

	pos := len(c.values)
	c.values = append(c.values, value)
	c.index[h] = append(c.index[h], pos)
	c.exists.add(name)
	c.trackAlloc(value)
	c.recordWrite()
	return nil
}

// SetAll appends or replaces each (name, value) pair in values, acquiring
// the exclusive lock once for the whole batch (spec §4.B "set_all").
func (c *Container) SetAll(values map[string]Value) error {
	for name := range values {
		if name == "" {
			return errEmptyKey("container")
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var stale []Value
	for name, value := range values {
		value.name = name
		h := hashName(name)
		replaced := false
		if positions, ok := c.index[h]; ok {
			for _, pos := range positions {
				if c.values[pos].name == name {
					stale = append(stale, c.values[pos])
					c.values[pos] = value
					c.trackAlloc(value)
					c.recent.Remove(name)
					replaced = true
					break
				}
			}
		}
		if !replaced {
			pos := len(c.values)
			c.values = append(c.values, value)
			c.index[h] = append(c.index[h], pos)
			c.exists.add(name)
			c.trackAlloc(value)
		}
	}
	c.recordWrite(stale...)
	return nil
}

// firstMatch returns the position of the first stored Value named name, or
// -1 if absent. Caller must hold at least a read lock.
func (c *Container) firstMatch(name string) int {
	if !c.exists.maybeContains(name) {
		return -1
	}
	h := hashName(name)
	for _, pos := range c.index[h] {
		if c.values[pos].name == name {
			return pos
		}
	}
	return -1
}

// allMatches returns every position storing name, in insertion order.
// Caller must hold at least a read lock.
func (c *Container) allMatches(name string) []int {
	if !c.exists.maybeContains(name) {
		return nil
	}
	h := hashName(name)
	var out []int
	for _, pos := range c.index[h] {
		if c.values[pos].name == name {
			out = append(out, pos)
		}
	}
	return out
}

// Get returns the first Value stored under name (spec §4.B: duplicate names
// retained, get returns first match).
func (c *Container) Get(name string) (Value, error) {
	start := time.Now()
	defer func() { recordGetLatency(time.Since(start)) }()

	if cached, ok := c.recent.Get(name); ok {
		c.reads.Add(1)
		recordRead()
		return cached, nil
	}

	c.mu.RLock()
	pos := c.firstMatch(name)
	var v Value
	if pos >= 0 {
		v = c.values[pos]
	}
	c.mu.RUnlock()

	c.reads.Add(1)
	recordRead()
	if pos < 0 {
		return Value{}, errKeyNotFound("container", name)
	}
	c.recent.Add(name, v)
	return v, nil
}

// Get is a generic typed accessor built on Container.Get, implementing the
// spec §4.A "get<T>() -> Result<T>" contract for scalar, string, bytes,
// container, and array kinds, including the single allowed integer
// narrowing widened per spec §4.A.
func Get[T any](c *Container, name string) (T, error) {
	var zero T
	v, err := c.Get(name)
	if err != nil {
		return zero, err
	}
	return convertValue[T](v)
}

func convertValue[T any](v Value) (T, error) {
	var zero T
	switch any(zero).(type) {
	case bool:
		b, err := v.Bool()
		return any(b).(T), err
	case int16:
		if v.kind != KindShort {
			return zero, errTypeMismatch("value", KindShort, v.kind)
		}
		return any(int16(v.bits)).(T), nil
	case uint16:
		if v.kind != KindUShort {
			return zero, errTypeMismatch("value", KindUShort, v.kind)
		}
		return any(uint16(v.bits)).(T), nil
	case int32:
		n, err := v.Int32()
		return any(n).(T), err
	case uint32:
		n, err := v.Uint32()
		return any(n).(T), err
	case int64:
		n, err := v.Int64()
		return any(n).(T), err
	case uint64:
		n, err := v.Uint64()
		return any(n).(T), err
	case float32:
		f, err := v.Float32()
		return any(f).(T), err
	case float64:
		f, err := v.Float64()
		return any(f).(T), err
	case string:
		s, err := v.Str()
		return any(s).(T), err
	case []byte:
		b, err := v.Bytes()
		return any(b).(T), err
	case *Container:
		sub, err := v.ContainerRef()
		return any(sub).(T), err
	case *Array:
		arr, err := v.ArrayRef()
		return any(arr).(T), err
	default:
		return zero, errTypeMismatch("value", v.kind, v.kind)
	}
}

// Contains reports whether name is stored at least once.
func (c *Container) Contains(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.firstMatch(name) >= 0
}

// Remove deletes every Value stored under name (spec §4.B). Returns
// KeyNotFound if none existed.
func (c *Container) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	positions := c.allMatches(name)
	if len(positions) == 0 {
		return errKeyNotFound("container", name)
	}
	stale := c.removePositions(positions)
	c.recent.Remove(name)
	c.recordWrite(stale...)
	return nil
}

// removePositions deletes the given positions (ascending order not
// required), rebuilds the index, and returns the removed Values so the
// caller can thread them through recordWrite for epoch-deferred pool
// release. Caller must hold the write lock.
func (c *Container) removePositions(positions []int) []Value {
	toRemove := make(map[int]bool, len(positions))
	stale := make([]Value, 0, len(positions))
	for _, p := range positions {
		toRemove[p] = true
		stale = append(stale, c.values[p])
	}
	newValues := make([]Value, 0, len(c.values)-len(positions))
	for i, v := range c.values {
		if !toRemove[i] {
			newValues = append(newValues, v)
		}
	}
	c.values = newValues

	c.index = make(map[uint64][]int, len(c.index))
	for i, v := range c.values {
		h := hashName(v.name)
		c.index[h] = append(c.index[h], i)
	}
	c.exists.reset()
	for _, v := range c.values {
		c.exists.add(v.name)
	}
	return stale
}

// Iterate calls fn for every stored Value in insertion order. Iteration
// takes a shared lock for its duration (spec §4.B); fn must not call back
// into mutating Container methods.
func (c *Container) Iterate(fn func(Value) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.values {
		if !fn(v) {
			return
		}
	}
}
