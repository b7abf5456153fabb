package database

import (
	"strings"
	"testing"
)

func TestAddressIsValid(t *testing.T) {
	valid := Address(strings.Repeat("a", 64))
	if !valid.IsValid() {
		t.Fatalf("64 lowercase hex characters should be valid")
	}

	tooShort := Address(strings.Repeat("a", 63))
	if tooShort.IsValid() {
		t.Fatalf("63 characters should be invalid")
	}

	notHex := Address(strings.Repeat("g", 64))
	if notHex.IsValid() {
		t.Fatalf("non-hex characters should be invalid")
	}
}

func TestAddressRequireValid(t *testing.T) {
	if err := Address(strings.Repeat("a", 64)).RequireValid(); err != nil {
		t.Fatalf("RequireValid: %v", err)
	}
	if err := Address("short").RequireValid(); err == nil {
		t.Fatalf("expected error for a malformed address")
	}
}
