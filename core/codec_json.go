// core/codec_json.go
package core

// JSON codec — RFC 8259 compliant emit/parse (spec §4.F). Emission is
// hand-written (not encoding/json.Marshal) so integer kinds keep full
// 64-bit precision and control characters get the exact escape set the
// spec mandates; parsing leans on encoding/json's generic decoder with
// UseNumber so large integers are never routed through float64.

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// EncodeJSON serializes c as a JSON object with "header" and "values"
// fields (spec §4.F).
func EncodeJSON(c *Container) ([]byte, error) {
	start := time.Now()
	defer func() { recordSerialization(time.Since(start)) }()
	var buf bytes.Buffer
	if err := encodeContainerJSON(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeContainerJSON(buf *bytes.Buffer, c *Container) error {
	c.mu.RLock()
	header := c.Header
	values := append([]Value(nil), c.values...)
	c.mu.RUnlock()

	buf.WriteByte('{')
	buf.WriteString(`"header":`)
	encodeHeaderJSON(buf, header)
	buf.WriteString(`,"values":[`)
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValueEntryJSON(buf, v); err != nil {
			return err
		}
	}
	buf.WriteString(`]}`)
	return nil
}

func encodeHeaderJSON(buf *bytes.Buffer, h Header) {
	buf.WriteByte('{')
	fields := []struct{ key, val string }{
		{"source_id", h.SourceID},
		{"source_sub_id", h.SourceSubID},
		{"target_id", h.TargetID},
		{"target_sub_id", h.TargetSubID},
		{"message_type", h.MessageType},
		{"version", h.Version},
	}
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, f.key)
		buf.WriteByte(':')
		writeJSONString(buf, f.val)
	}
	buf.WriteByte('}')
}

func encodeValueEntryJSON(buf *bytes.Buffer, v Value) error {
	buf.WriteByte('{')
	buf.WriteString(`"name":`)
	writeJSONString(buf, v.name)
	buf.WriteString(`,"type":`)
	writeJSONString(buf, v.kind.String())
	buf.WriteString(`,"data":`)
	if err := encodeDataJSON(buf, v); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func encodeDataJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		b, _ := v.Bool()
		if b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindShort:
		n, _ := v.Int64()
		buf.WriteString(strconv.FormatInt(n, 10))
	case KindUShort, KindUInt:
		n, _ := v.Uint64()
		buf.WriteString(strconv.FormatUint(n, 10))
	case KindInt, KindLong, KindLLong:
		n, _ := v.Int64()
		buf.WriteString(strconv.FormatInt(n, 10))
	case KindULong, KindULLong:
		n, _ := v.Uint64()
		buf.WriteString(strconv.FormatUint(n, 10))
	case KindFloat:
		f, _ := v.Float32()
		buf.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	case KindDouble:
		f, _ := v.Float64()
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case KindBytes:
		writeJSONString(buf, "base64:"+base64.StdEncoding.EncodeToString(v.blob))
	case KindString:
		if !utf8.Valid(v.blob) {
			return errInvalidFormat("json", "string value is not valid UTF-8")
		}
		writeJSONString(buf, string(v.blob))
	case KindContainer:
		if v.container == nil {
			return errInvalidFormat("json", "nil container value")
		}
		return encodeContainerJSON(buf, v.container)
	case KindArray:
		if v.array == nil {
			return errInvalidFormat("json", "nil array value")
		}
		buf.WriteByte('{')
		buf.WriteString(`"elem_type":`)
		writeJSONString(buf, v.array.elemKind.String())
		buf.WriteString(`,"items":[`)
		for i, item := range v.array.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeDataJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteString(`]}`)
	default:
		return errInvalidFormat("json", "unknown kind")
	}
	return nil
}

// writeJSONString escapes s per RFC 8259: the mandatory `"`, `\`, and every
// control character 0x00-0x1F, using the short escapes where defined and
// \uXXXX otherwise (spec §4.F).
func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// DecodeJSON parses a container emitted by EncodeJSON. Field order within
// both the header and each value object is irrelevant (spec §4.F); extra
// whitespace is accepted per the JSON spec.
func DecodeJSON(data []byte) (*Container, error) {
	start := time.Now()
	defer func() { recordDeserialization(time.Since(start)) }()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, errDeserializationFailed("json", err.Error())
	}
	return decodeContainerJSON(raw)
}

func decodeContainerJSON(raw map[string]interface{}) (*Container, error) {
	headerRaw, ok := raw["header"].(map[string]interface{})
	if !ok {
		return nil, errInvalidFormat("json", "missing header object")
	}
	h := Header{
		SourceID:    jsonStringField(headerRaw, "source_id"),
		SourceSubID: jsonStringField(headerRaw, "source_sub_id"),
		TargetID:    jsonStringField(headerRaw, "target_id"),
		TargetSubID: jsonStringField(headerRaw, "target_sub_id"),
		MessageType: jsonStringField(headerRaw, "message_type"),
		Version:     jsonStringField(headerRaw, "version"),
	}

	valuesRaw, ok := raw["values"].([]interface{})
	if !ok {
		return nil, errInvalidFormat("json", "missing values array")
	}

	c := NewContainer(h)
	values := make([]Value, 0, len(valuesRaw))
	for _, entryRaw := range valuesRaw {
		entry, ok := entryRaw.(map[string]interface{})
		if !ok {
			return nil, errInvalidFormat("json", "value entry is not an object")
		}
		name, _ := entry["name"].(string)
		typeName, _ := entry["type"].(string)
		kind, ok := kindFromName(typeName)
		if !ok {
			return nil, errInvalidFormat("json", "unknown type name "+typeName)
		}
		v, err := decodeDataJSON(name, kind, entry["data"])
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

func jsonStringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func kindFromName(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

func decodeDataJSON(name string, kind Kind, data interface{}) (Value, error) {
	switch kind {
	case KindNull:
		return NewNull(name), nil
	case KindBool:
		b, ok := data.(bool)
		if !ok {
			return Value{}, errInvalidFormat("json", "expected bool")
		}
		return NewBool(name, b), nil
	case KindShort, KindInt, KindLong, KindLLong:
		n, err := jsonNumberToInt64(data)
		if err != nil {
			return Value{}, err
		}
		switch kind {
		case KindShort:
			return NewShort(name, int16(n)), nil
		case KindInt:
			return NewInt(name, int32(n)), nil
		default:
			resolved := normalizeLongKind(kind, n)
			if resolved == KindLLong {
				return NewLLong(name, n), nil
			}
			return NewLong(name, n), nil
		}
	case KindUShort, KindUInt, KindULong, KindULLong:
		n, err := jsonNumberToUint64(data)
		if err != nil {
			return Value{}, err
		}
		switch kind {
		case KindUShort:
			return NewUShort(name, uint16(n)), nil
		case KindUInt:
			return NewUInt(name, uint32(n)), nil
		case KindULong:
			return NewULong(name, n), nil
		default:
			return NewULLong(name, n), nil
		}
	case KindFloat:
		f, err := jsonNumberToFloat64(data)
		if err != nil {
			return Value{}, err
		}
		return NewFloat(name, float32(f)), nil
	case KindDouble:
		f, err := jsonNumberToFloat64(data)
		if err != nil {
			return Value{}, err
		}
		return NewDouble(name, f), nil
	case KindBytes:
		s, ok := data.(string)
		if !ok || len(s) < len("base64:") || s[:7] != "base64:" {
			return Value{}, errInvalidFormat("json", "expected base64: prefixed string")
		}
		raw, err := base64.StdEncoding.DecodeString(s[7:])
		if err != nil {
			return Value{}, errInvalidFormat("json", "invalid base64 payload")
		}
		return NewBytes(name, raw), nil
	case KindString:
		s, ok := data.(string)
		if !ok {
			return Value{}, errInvalidFormat("json", "expected string")
		}
		return NewString(name, s), nil
	case KindContainer:
		sub, ok := data.(map[string]interface{})
		if !ok {
			return Value{}, errInvalidFormat("json", "expected container object")
		}
		c, err := decodeContainerJSON(sub)
		if err != nil {
			return Value{}, err
		}
		return NewContainerValue(name, c), nil
	case KindArray:
		obj, ok := data.(map[string]interface{})
		if !ok {
			return Value{}, errInvalidFormat("json", "expected array object")
		}
		elemKind, ok := kindFromName(jsonStringField(obj, "elem_type"))
		if !ok {
			return Value{}, errInvalidFormat("json", "unknown array elem_type")
		}
		itemsRaw, ok := obj["items"].([]interface{})
		if !ok {
			return Value{}, errInvalidFormat("json", "expected items array")
		}
		items := make([]Value, 0, len(itemsRaw))
		for _, itemRaw := range itemsRaw {
			item, err := decodeDataJSON("", elemKind, itemRaw)
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
		return Value{}, errInvalidFormat("json", "unsupported kind")
	}
}

func jsonNumberToInt64(data interface{}) (int64, error) {
	num, ok := data.(json.Number)
	if !ok {
		return 0, errInvalidFormat("json", "expected number")
	}
	n, err := num.Int64()
	if err != nil {
		return 0, errInvalidFormat("json", "not a valid integer: "+err.Error())
	}
	return n, nil
}

func jsonNumberToUint64(data interface{}) (uint64, error) {
	num, ok := data.(json.Number)
	if !ok {
		return 0, errInvalidFormat("json", "expected number")
	}
	n, err := strconv.ParseUint(num.String(), 10, 64)
	if err != nil {
		return 0, errInvalidFormat("json", "not a valid unsigned integer: "+err.Error())
	}
	return n, nil
}

func jsonNumberToFloat64(data interface{}) (float64, error) {
	num, ok := data.(json.Number)
	if !ok {
		return 0, errInvalidFormat("json", "expected number")
	}
	f, err := num.Float64()
	if err != nil {
		return 0, errInvalidFormat("json", "not a valid float: "+err.Error())
	}
	return f, nil
}
