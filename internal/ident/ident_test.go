package ident

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGeneratesValidIDs(t *testing.T) {
	gen := UUID{}
	id := gen.NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a parseable UUID, got %q: %v", id, err)
	}
}

func TestUUIDsAreUnique(t *testing.T) {
	gen := UUID{}
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := gen.NewID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
