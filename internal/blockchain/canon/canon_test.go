package canon

import "testing"

func TestJoinSeparatesFields(t *testing.T) {
	got := string(Join("a", "b", "c"))
	want := "a|b|c"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSortedMapIsOrderIndependent(t *testing.T) {
	m1 := map[string]string{"b": "2", "a": "1"}
	m2 := map[string]string{"a": "1", "b": "2"}

	if SortedMap(m1) != SortedMap(m2) {
		t.Fatalf("SortedMap must not depend on map iteration order")
	}
	if got := SortedMap(m1); got != "a:1,b:2" {
		t.Fatalf("got %q", got)
	}
}

func TestSortedMapEmpty(t *testing.T) {
	if got := SortedMap(nil); got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestUint(t *testing.T) {
	if got := Uint(42); got != "42" {
		t.Fatalf("got %q, want %q", got, "42")
	}
}
