// core/codec_detect.go
package core

// Format auto-detection (spec §4.H): inspect the leading bytes of a wire
// payload and pick the right codec without the caller naming one.

import "bytes"

// Format names a detected wire format.
type Format string

const (
	FormatBinary   Format = "binary"
	FormatMsgpack  Format = "msgpack"
	FormatJSON     Format = "json"
	FormatXML      Format = "xml"
	FormatUnknown  Format = "unknown"
)

// DetectFormat inspects data's leading bytes and reports which codec
// produced it. Canonical binary is unambiguous (the "CBF1" sentinel);
// JSON and XML are detected from their mandatory leading punctuation;
// MessagePack is detected from its container encoding's leading map-type
// byte (fixmap, map16 or map32). Anything else is FormatUnknown.
func DetectFormat(data []byte) Format {
	if bytes.HasPrefix(data, binaryMagic[:]) {
		return FormatBinary
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch trimmed[0] {
	case '{', '[':
		return FormatJSON
	case '<':
		return FormatXML
	}
	if isMsgpackMapLead(trimmed[0]) {
		return FormatMsgpack
	}
	return FormatUnknown
}

// isMsgpackMapLead reports whether b is a MessagePack fixmap, map16, or
// map32 type byte — the only shapes EncodeMsgpack ever emits at the top
// level, since a container always serializes as a single map.
func isMsgpackMapLead(b byte) bool {
	return (b >= 0x80 && b <= 0x8f) || b == 0xde || b == 0xdf
}

// DecodeAuto detects data's format and decodes it with the matching codec.
func DecodeAuto(data []byte) (*Container, Format, error) {
	format := DetectFormat(data)
	var (
		c   *Container
		err error
	)
	switch format {
	case FormatBinary:
		c, err = DecodeBinary(data)
	case FormatMsgpack:
		c, err = DecodeMsgpack(data)
	case FormatJSON:
		c, err = DecodeJSON(data)
	case FormatXML:
		c, err = DecodeXML(data)
	default:
		return nil, FormatUnknown, errInvalidFormat("detect", "unrecognized wire format")
	}
	if err != nil {
		return nil, format, err
	}
	return c, format, nil
}
