package exchange

import (
	"errors"
	"strings"
	"testing"
)

type failingSource struct{}

func (failingSource) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func TestAllocator_PrefixAndUniqueness(t *testing.T) {
	a := NewAllocator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := a.Allocate()
		if !strings.HasPrefix(id, "temp-") {
			t.Fatalf("Allocate() = %q, want temp- prefix", id)
		}
		if seen[id] {
			t.Fatalf("Allocate() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestAllocator_FallbackSource(t *testing.T) {
	a := NewAllocatorWithSource(failingSource{})

	id := a.Allocate()
	if !strings.HasPrefix(id, "temp-") {
		t.Errorf("Allocate() = %q, want temp- prefix even on fallback", id)
	}
	if len(id) <= len("temp-") {
		t.Errorf("Allocate() = %q, want a non-empty fallback suffix", id)
	}
}

func TestIsProvisionalID(t *testing.T) {
	if !IsProvisionalID("temp-abc") {
		t.Error("IsProvisionalID(temp-abc) = false, want true")
	}
	if IsProvisionalID("abc") {
		t.Error("IsProvisionalID(abc) = true, want false")
	}
}
