package core

import "testing"

func TestMsgpackRoundTripScalars(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("flag", NewBool("flag", true)); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("small", NewLong("small", 42)); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("huge", NewLLong("huge", 1<<40)); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("pi", NewDouble("pi", 2.71828)); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("blob", NewBytes("blob", []byte("abc"))); err != nil {
		t.Fatal(err)
	}

	data, err := EncodeMsgpack(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeMsgpack(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Header != c.Header {
		t.Fatalf("header mismatch")
	}
	small, err := Get[int64](back, "small")
	if err != nil || small != 42 {
		t.Fatalf("small round-trip failed: %v %v", small, err)
	}
	huge, err := Get[int64](back, "huge")
	if err != nil || huge != 1<<40 {
		t.Fatalf("huge round-trip failed: %v %v", huge, err)
	}
}

func TestMsgpackNestedContainer(t *testing.T) {
	inner := NewContainer(Header{MessageType: "inner"})
	if err := inner.Set("a", NewInt("a", 1)); err != nil {
		t.Fatal(err)
	}
	outer := NewContainer(sampleHeader())
	if err := outer.Set("child", NewContainerValue("child", inner)); err != nil {
		t.Fatal(err)
	}

	data, err := EncodeMsgpack(outer)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeMsgpack(data)
	if err != nil {
		t.Fatal(err)
	}
	childVal, err := back.Get("child")
	if err != nil {
		t.Fatal(err)
	}
	sub, err := childVal.ContainerRef()
	if err != nil {
		t.Fatal(err)
	}
	a, err := Get[int32](sub, "a")
	if err != nil || a != 1 {
		t.Fatalf("nested round-trip failed: %v %v", a, err)
	}
}

func TestMsgpackArrayRoundTrip(t *testing.T) {
	arr, err := NewArray(KindString, []Value{NewString("", "x"), NewString("", "y")})
	if err != nil {
		t.Fatal(err)
	}
	c := NewContainer(sampleHeader())
	if err := c.Set("words", NewArrayValue("words", arr)); err != nil {
		t.Fatal(err)
	}
	data, err := EncodeMsgpack(c)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeMsgpack(data)
	if err != nil {
		t.Fatal(err)
	}
	val, err := back.Get("words")
	if err != nil {
		t.Fatal(err)
	}
	gotArr, err := val.ArrayRef()
	if err != nil || gotArr.Len() != 2 {
		t.Fatalf("array round-trip failed: %v %v", gotArr, err)
	}
}
