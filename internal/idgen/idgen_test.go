package idgen

import (
	"strings"
	"testing"
)

func TestNewShape(t *testing.T) {
	id := New(PrefixComponent, "FILE", "a.js")
	if !strings.HasPrefix(id, "cmp-") {
		t.Fatalf("id %q missing prefix", id)
	}
	body := strings.TrimPrefix(id, "cmp-")
	if len(body) != DefaultLength {
		t.Fatalf("id body %q has length %d, want %d", body, len(body), DefaultLength)
	}
	for _, c := range body {
		if !strings.ContainsRune(base36Alphabet, c) {
			t.Fatalf("id body %q contains non-base36 char %q", body, c)
		}
	}
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := New(PrefixTask, "same", "content")
		if seen[id] {
			t.Fatalf("duplicate id after %d generations: %s", i, id)
		}
		seen[id] = true
	}
}

func TestEncodeBase36(t *testing.T) {
	if got := EncodeBase36([]byte{0}, 4); got != "0000" {
		t.Fatalf("zero = %q, want 0000", got)
	}
	if got := EncodeBase36([]byte{35}, 2); got != "0z" {
		t.Fatalf("35 = %q, want 0z", got)
	}
	if got := EncodeBase36([]byte{1, 0}, 2); got != "74" {
		// 256 = 7*36 + 4
		t.Fatalf("256 = %q, want 74", got)
	}
	// Truncation keeps the least significant digits.
	long := EncodeBase36([]byte{0xff, 0xff, 0xff, 0xff}, 4)
	if len(long) != 4 {
		t.Fatalf("truncated length = %d, want 4", len(long))
	}
}
