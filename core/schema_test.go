package core

import "testing"

// TestSchemaRangeViolation is spec §8 end-to-end scenario: age in [0, 150]
// rejects 200.
func TestSchemaRangeViolation(t *testing.T) {
	schema := NewSchema().Require("age", KindInt).Range("age", 0, 150)

	c := NewContainer(sampleHeader())
	if err := c.Set("age", NewInt("age", 200)); err != nil {
		t.Fatal(err)
	}

	ve := schema.Validate(c)
	if ve == nil {
		t.Fatal("expected validation error for out-of-range age")
	}
	if ve.Kind != OutOfRange {
		t.Fatalf("expected OutOfRange, got %s", ve.Kind)
	}
	if ve.Field != "age" {
		t.Fatalf("expected field age, got %s", ve.Field)
	}
}

func TestSchemaValidValue(t *testing.T) {
	schema := NewSchema().Require("age", KindInt).Range("age", 0, 150)
	c := NewContainer(sampleHeader())
	if err := c.Set("age", NewInt("age", 30)); err != nil {
		t.Fatal(err)
	}
	if ve := schema.Validate(c); ve != nil {
		t.Fatalf("expected no violation, got %v", ve)
	}
}

func TestSchemaMissingRequired(t *testing.T) {
	schema := NewSchema().Require("name", KindString)
	c := NewContainer(sampleHeader())
	ve := schema.Validate(c)
	if ve == nil || ve.Kind != MissingRequired {
		t.Fatalf("expected MissingRequired, got %v", ve)
	}
}

func TestSchemaValidateAllCollectsEveryViolation(t *testing.T) {
	schema := NewSchema().
		Require("name", KindString).
		Require("age", KindInt).Range("age", 0, 150)

	c := NewContainer(sampleHeader())
	if err := c.Set("age", NewInt("age", -1)); err != nil {
		t.Fatal(err)
	}

	violations := schema.ValidateAll(c)
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations (missing name + out-of-range age), got %d: %v", len(violations), violations)
	}
}

func TestSchemaValidateResultAggregates(t *testing.T) {
	schema := NewSchema().Require("name", KindString)
	c := NewContainer(sampleHeader())
	err := schema.ValidateResult(c)
	if err == nil {
		t.Fatal("expected aggregated error")
	}
}

func TestSchemaPatternAndOneOfAndLength(t *testing.T) {
	schema := NewSchema().
		Require("code", KindString).Pattern("code", `^[A-Z]{3}$`).
		Require("status", KindString).OneOf("status", NewString("", "ok"), NewString("", "fail")).
		Require("tag", KindString).Length("tag", 1, 4)

	c := NewContainer(sampleHeader())
	if err := c.Set("code", NewString("code", "ABC")); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("status", NewString("status", "ok")); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("tag", NewString("tag", "ab")); err != nil {
		t.Fatal(err)
	}
	if ve := schema.Validate(c); ve != nil {
		t.Fatalf("expected valid, got %v", ve)
	}

	if err := c.Set("status", NewString("status", "bogus")); err != nil {
		t.Fatal(err)
	}
	ve := schema.Validate(c)
	if ve == nil || ve.Kind != NotInEnumeration {
		t.Fatalf("expected NotInEnumeration, got %v", ve)
	}
}

func TestSchemaNestedField(t *testing.T) {
	inner := NewSchema().Require("x", KindInt).Range("x", 0, 10)
	outer := NewSchema().Field("child", inner)

	sub := NewContainer(Header{MessageType: "inner"})
	if err := sub.Set("x", NewInt("x", 99)); err != nil {
		t.Fatal(err)
	}
	c := NewContainer(sampleHeader())
	if err := c.Set("child", NewContainerValue("child", sub)); err != nil {
		t.Fatal(err)
	}

	ve := outer.Validate(c)
	if ve == nil || ve.Kind != NestedValidationFailed {
		t.Fatalf("expected NestedValidationFailed, got %v", ve)
	}
	if len(ve.Inner) != 1 || ve.Inner[0].Kind != OutOfRange {
		t.Fatalf("expected inner OutOfRange violation, got %v", ve.Inner)
	}
}

func TestSchemaBadPatternSurfacesAtValidation(t *testing.T) {
	schema := NewSchema().Require("code", KindString).Pattern("code", "[")
	c := NewContainer(sampleHeader())
	if err := c.Set("code", NewString("code", "x")); err != nil {
		t.Fatal(err)
	}
	ve := schema.Validate(c)
	if ve == nil {
		t.Fatal("expected the bad pattern to surface as a violation rather than panic")
	}
}
