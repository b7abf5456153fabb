package database

import "testing"

func TestBigIntJSONRoundTrip(t *testing.T) {
	orig := NewBigInt(123456789)

	data, err := orig.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	got := &BigInt{}
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}

	if got.Cmp(&orig.Int) != 0 {
		t.Fatalf("got %s, want %s", got.String(), orig.String())
	}
}

func TestBigIntUnmarshalBareNumber(t *testing.T) {
	got := &BigInt{}
	if err := got.UnmarshalJSON([]byte("42")); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if got.String() != "42" {
		t.Fatalf("got %s, want 42", got.String())
	}
}

func TestParseBigIntRejectsGarbage(t *testing.T) {
	if _, err := ParseBigInt("not-a-number"); err == nil {
		t.Fatalf("expected error parsing garbage")
	}
}

func TestAddSub(t *testing.T) {
	a := NewBigInt(10)
	b := NewBigInt(3)

	if Add(a, b).String() != "13" {
		t.Fatalf("Add: got %s", Add(a, b).String())
	}
	if Sub(a, b).String() != "7" {
		t.Fatalf("Sub: got %s", Sub(a, b).String())
	}
	if !Sub(b, a).IsNegative() {
		t.Fatalf("3 - 10 should be negative")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewBigInt(5)
	b := a.Clone()
	b.SetInt64(99)

	if a.String() != "5" {
		t.Fatalf("clone mutation leaked into original: a = %s", a.String())
	}
}
