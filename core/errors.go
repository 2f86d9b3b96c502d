package core

import "fmt"

// Code is a stable integer error code grouped by category, per spec §7:
// value (1xx), serialization (2xx), validation (3xx), resource (4xx),
// concurrency (5xx).
type Code int

const (
	CodeKeyNotFound Code = 100 + iota
	CodeTypeMismatch
	CodeEmptyKey
)

const (
	CodeSerializationFailed Code = 200 + iota
	CodeDeserializationFailed
	CodeInvalidFormat
	CodeVersionMismatch
)

const (
	CodeMissingRequired Code = 300 + iota
	CodeOutOfRange
	CodeLengthViolation
	CodePatternMismatch
	CodeNotInEnumeration
	CodeCustomPredicateFailed
	CodeNestedValidationFailed
)

const (
	CodePoolExhausted Code = 400 + iota
	CodeAllocationFailed
	CodeFileOpenFailed
	CodeFileWriteFailed
	CodeIOError
)

const (
	CodeLockAcquisitionFailed Code = 500 + iota
	CodeConcurrentModification
)

var codeMessages = map[Code]string{
	CodeKeyNotFound:             "key not found",
	CodeTypeMismatch:            "type mismatch",
	CodeEmptyKey:                "empty key",
	CodeSerializationFailed:     "serialization failed",
	CodeDeserializationFailed:   "deserialization failed",
	CodeInvalidFormat:           "invalid format",
	CodeVersionMismatch:         "version mismatch",
	CodeMissingRequired:         "missing required field",
	CodeOutOfRange:              "value out of range",
	CodeLengthViolation:         "length constraint violated",
	CodePatternMismatch:         "pattern did not match",
	CodeNotInEnumeration:        "value not in enumeration",
	CodeCustomPredicateFailed:   "custom predicate failed",
	CodeNestedValidationFailed:  "nested validation failed",
	CodePoolExhausted:           "pool exhausted",
	CodeAllocationFailed:        "allocation failed",
	CodeFileOpenFailed:          "file open failed",
	CodeFileWriteFailed:         "file write failed",
	CodeIOError:                 "io error",
	CodeLockAcquisitionFailed:   "lock acquisition failed",
	CodeConcurrentModification:  "concurrent modification detected",
}

// ErrorInfo is the public error shape returned across the Result boundary
// (spec §7): a stable code, a human message, the originating module, and an
// optional free-form details string. It implements the error interface so
// callers that only want fmt.Stringer-ish behavior can use %v/%s directly.
type ErrorInfo struct {
	Code    Code
	Message string
	Module  string
	Details string
}

// NewError builds an ErrorInfo for code, attributing it to module.
func NewError(code Code, module string) *ErrorInfo {
	return &ErrorInfo{Code: code, Message: codeMessages[code], Module: module}
}

// WithDetails returns a copy of e carrying the given details string.
func (e *ErrorInfo) WithDetails(details string) *ErrorInfo {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *ErrorInfo) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s (code %d)", e.Module, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s (code %d)", e.Module, e.Message, e.Details, e.Code)
}

// Is supports errors.Is against another *ErrorInfo with the same Code, so
// callers can write errors.Is(err, core.NewError(core.CodeKeyNotFound, "")).
// A bare Code is not an error value and never matches.
func (e *ErrorInfo) Is(target error) bool {
	if other, ok := target.(*ErrorInfo); ok {
		return other.Code == e.Code
	}
	return false
}

// Convenience constructors used throughout the container/codec/schema code.

func errKeyNotFound(module, name string) error {
	return NewError(CodeKeyNotFound, module).WithDetails(fmt.Sprintf("key %q", name))
}

func errTypeMismatch(module string, want, got Kind) error {
	return NewError(CodeTypeMismatch, module).WithDetails(fmt.Sprintf("want %s, got %s", want, got))
}

func errEmptyKey(module string) error {
	return NewError(CodeEmptyKey, module)
}

func errInvalidFormat(module, details string) error {
	return NewError(CodeInvalidFormat, module).WithDetails(details)
}

func errDeserializationFailed(module, details string) error {
	return NewError(CodeDeserializationFailed, module).WithDetails(details)
}

func errPoolExhausted(module string, class int) error {
	return NewError(CodePoolExhausted, module).WithDetails(fmt.Sprintf("class %dB", class))
}
