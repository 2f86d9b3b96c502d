// core/schema.go
package core

// Schema validator (spec §4.J): a chained builder describing required and
// optional fields, range/length/pattern/enumeration/custom constraints, and
// nested container schemas, with three validation entry points matching the
// spec's Option/slice/Result shapes.

import (
	"fmt"
	"regexp"

	"go.uber.org/multierr"
)

// ValidationErrorKind enumerates the violation categories of spec §4.J.
type ValidationErrorKind string

const (
	MissingRequired        ValidationErrorKind = "missing_required"
	TypeMismatchError      ValidationErrorKind = "type_mismatch"
	OutOfRange             ValidationErrorKind = "out_of_range"
	LengthViolation        ValidationErrorKind = "length_violation"
	PatternMismatch        ValidationErrorKind = "pattern_mismatch"
	NotInEnumeration       ValidationErrorKind = "not_in_enumeration"
	CustomPredicateFailed  ValidationErrorKind = "custom_predicate_failed"
	NestedValidationFailed ValidationErrorKind = "nested_validation_failed"
)

// ValidationError is one schema violation. Inner is populated only for
// NestedValidationFailed, carrying the sub-schema's own violations.
type ValidationError struct {
	Kind    ValidationErrorKind
	Field   string
	Message string
	Inner   []*ValidationError
}

func (e *ValidationError) Error() string {
	if len(e.Inner) == 0 {
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s (%d nested)", e.Field, e.Kind, e.Message, len(e.Inner))
}

type fieldRule struct {
	name     string
	kind     Kind
	required bool

	hasRange     bool
	rangeFloat   bool
	rangeMinInt  int64
	rangeMaxInt  int64
	rangeMinFlt  float64
	rangeMaxFlt  float64

	hasLength bool
	lengthMin int
	lengthMax int

	pattern *regexp.Regexp

	oneOf []Value

	custom func(Value) bool

	nested *Schema
}

// Schema describes the expected shape of a Container.
type Schema struct {
	fields   []*fieldRule
	byName   map[string]*fieldRule
	buildErr error
}

// NewSchema returns an empty Schema ready for chained field declarations.
func NewSchema() *Schema {
	return &Schema{byName: make(map[string]*fieldRule)}
}

func (s *Schema) rule(name string, kind Kind, required bool) *fieldRule {
	if r, ok := s.byName[name]; ok {
		r.kind = kind
		r.required = required
		return r
	}
	r := &fieldRule{name: name, kind: kind, required: required}
	s.fields = append(s.fields, r)
	s.byName[name] = r
	return r
}

// Require declares name as a mandatory field of kind.
func (s *Schema) Require(name string, kind Kind) *Schema {
	s.rule(name, kind, true)
	return s
}

// Optional declares name as an optional field of kind.
func (s *Schema) Optional(name string, kind Kind) *Schema {
	s.rule(name, kind, false)
	return s
}

// Range constrains an already-declared integer field to [min, max] inclusive.
func (s *Schema) Range(name string, min, max int64) *Schema {
	r, ok := s.byName[name]
	if !ok {
		r = s.rule(name, KindLong, false)
	}
	r.hasRange = true
	r.rangeFloat = false
	r.rangeMinInt, r.rangeMaxInt = min, max
	return s
}

// RangeFloat constrains an already-declared floating-point field.
func (s *Schema) RangeFloat(name string, min, max float64) *Schema {
	r, ok := s.byName[name]
	if !ok {
		r = s.rule(name, KindDouble, false)
	}
	r.hasRange = true
	r.rangeFloat = true
	r.rangeMinFlt, r.rangeMaxFlt = min, max
	return s
}

// Length constrains a bytes/string/array field's element count.
func (s *Schema) Length(name string, min, max int) *Schema {
	r, ok := s.byName[name]
	if !ok {
		r = s.rule(name, KindString, false)
	}
	r.hasLength = true
	r.lengthMin, r.lengthMax = min, max
	return s
}

// Pattern constrains a string field to match a regular expression. A bad
// expression is recorded and surfaced at validation time rather than
// panicking mid-chain.
func (s *Schema) Pattern(name, expr string) *Schema {
	r, ok := s.byName[name]
	if !ok {
		r = s.rule(name, KindString, false)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		s.buildErr = multierr.Append(s.buildErr, fmt.Errorf("schema: invalid pattern for %q: %w", name, err))
		return s
	}
	r.pattern = re
	return s
}

// OneOf constrains a field's value to one of the given values (compared by
// CAS equality semantics, core.equalValue).
func (s *Schema) OneOf(name string, values ...Value) *Schema {
	r, ok := s.byName[name]
	if !ok {
		r = s.rule(name, values[0].kind, false)
	}
	r.oneOf = values
	return s
}

// Custom attaches an arbitrary predicate to a field.
func (s *Schema) Custom(name string, predicate func(Value) bool) *Schema {
	r, ok := s.byName[name]
	if !ok {
		r = s.rule(name, KindString, false)
	}
	r.custom = predicate
	return s
}

// Field declares name as a required KindContainer field validated against
// sub recursively.
func (s *Schema) Field(name string, sub *Schema) *Schema {
	r := s.rule(name, KindContainer, true)
	r.nested = sub
	return s
}

// Validate returns the first violation found, or nil if c satisfies s.
func (s *Schema) Validate(c *Container) *ValidationError {
	errs := s.collect(c, true)
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// ValidateAll returns every violation found.
func (s *Schema) ValidateAll(c *Container) []*ValidationError {
	return s.collect(c, false)
}

// ValidateResult adapts ValidateAll to a single error, aggregating with
// go.uber.org/multierr, or nil when c is valid.
func (s *Schema) ValidateResult(c *Container) error {
	errs := s.ValidateAll(c)
	if len(errs) == 0 {
		return nil
	}
	log.Warnf("schema: container failed validation with %d violation(s)", len(errs))
	var combined error
	for _, e := range errs {
		combined = multierr.Append(combined, e)
	}
	return combined
}

func (s *Schema) collect(c *Container, stopAtFirst bool) []*ValidationError {
	var out []*ValidationError
	if s.buildErr != nil {
		out = append(out, &ValidationError{Kind: CustomPredicateFailed, Field: "<schema>", Message: s.buildErr.Error()})
		if stopAtFirst {
			return out
		}
	}
	for _, r := range s.fields {
		v, err := c.Get(r.name)
		if err != nil {
			if r.required {
				out = append(out, &ValidationError{Kind: MissingRequired, Field: r.name, Message: "field is required"})
				if stopAtFirst {
					return out
				}
			}
			continue
		}
		if ve := validateField(r, v); ve != nil {
			out = append(out, ve)
			if stopAtFirst {
				return out
			}
		}
	}
	return out
}

func validateField(r *fieldRule, v Value) *ValidationError {
	if v.kind != r.kind {
		return &ValidationError{Kind: TypeMismatchError, Field: r.name,
			Message: fmt.Sprintf("want %s, got %s", r.kind, v.kind)}
	}

	if r.hasRange {
		if r.rangeFloat {
			f, err := v.Float64()
			if err != nil || f < r.rangeMinFlt || f > r.rangeMaxFlt {
				return &ValidationError{Kind: OutOfRange, Field: r.name,
					Message: fmt.Sprintf("%v not in [%v, %v]", f, r.rangeMinFlt, r.rangeMaxFlt)}
			}
		} else {
			n, err := signedOrUnsignedAsInt64(v)
			if err != nil || n < r.rangeMinInt || n > r.rangeMaxInt {
				return &ValidationError{Kind: OutOfRange, Field: r.name,
					Message: fmt.Sprintf("%v not in [%v, %v]", n, r.rangeMinInt, r.rangeMaxInt)}
			}
		}
	}

	if r.hasLength {
		n, ok := valueLength(v)
		if !ok || n < r.lengthMin || n > r.lengthMax {
			return &ValidationError{Kind: LengthViolation, Field: r.name,
				Message: fmt.Sprintf("length %d not in [%d, %d]", n, r.lengthMin, r.lengthMax)}
		}
	}

	if r.pattern != nil {
		s, err := v.Str()
		if err != nil || !r.pattern.MatchString(s) {
			return &ValidationError{Kind: PatternMismatch, Field: r.name,
				Message: fmt.Sprintf("value does not match %s", r.pattern.String())}
		}
	}

	if len(r.oneOf) > 0 {
		matched := false
		for _, candidate := range r.oneOf {
			if eq, _ := equalValue(v, candidate); eq {
				matched = true
				break
			}
		}
		if !matched {
			return &ValidationError{Kind: NotInEnumeration, Field: r.name, Message: "value not in allowed set"}
		}
	}

	if r.custom != nil && !r.custom(v) {
		return &ValidationError{Kind: CustomPredicateFailed, Field: r.name, Message: "custom predicate rejected value"}
	}

	if r.nested != nil {
		sub, err := v.ContainerRef()
		if err != nil || sub == nil {
			return &ValidationError{Kind: TypeMismatchError, Field: r.name, Message: "expected nested container"}
		}
		inner := r.nested.ValidateAll(sub)
		if len(inner) > 0 {
			return &ValidationError{Kind: NestedValidationFailed, Field: r.name,
				Message: fmt.Sprintf("%d nested violation(s)", len(inner)), Inner: inner}
		}
	}

	return nil
}

func signedOrUnsignedAsInt64(v Value) (int64, error) {
	if n, err := v.Int64(); err == nil {
		return n, nil
	}
	n, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func valueLength(v Value) (int, bool) {
	switch v.kind {
	case KindBytes:
		b, err := v.Bytes()
		if err != nil {
			return 0, false
		}
		return len(b), true
	case KindString:
		s, err := v.Str()
		if err != nil {
			return 0, false
		}
		return len(s), true
	case KindArray:
		arr, err := v.ArrayRef()
		if err != nil || arr == nil {
			return 0, false
		}
		return arr.Len(), true
	default:
		return 0, false
	}
}
