package header

import "testing"

func TestResolveKeepsDuplicates(t *testing.T) {
	hs := Resolve([]string{"Sprint", "Status", "Sprint", "Sprint"})

	if len(hs) != 4 {
		t.Fatalf("expected 4 headers, got %d", len(hs))
	}

	wantKeys := []string{"sprint", "status", "sprint#dup1", "sprint#dup2"}
	for i, w := range wantKeys {
		if hs[i].Key != w {
			t.Errorf("header %d: key %q, want %q", i, hs[i].Key, w)
		}
	}

	if hs[2].Base != "sprint" || hs[2].Occurrence != 1 {
		t.Errorf("second Sprint: base=%q occ=%d", hs[2].Base, hs[2].Occurrence)
	}
	if hs[3].Occurrence != 2 {
		t.Errorf("third Sprint: occ=%d, want 2", hs[3].Occurrence)
	}
	if !hs[2].IsDuplicate() || hs[0].IsDuplicate() {
		t.Errorf("IsDuplicate flags wrong: %v %v", hs[0].IsDuplicate(), hs[2].IsDuplicate())
	}
}

func TestResolveKeysAreUnique(t *testing.T) {
	raw := []string{"A", "a", " A ", "á", "B", "A"}
	hs := Resolve(raw)

	seen := make(map[string]bool, len(hs))
	for _, h := range hs {
		if seen[h.Key] {
			t.Fatalf("duplicate key %q", h.Key)
		}
		seen[h.Key] = true
	}
}

func TestResolveDisjointFromBaseNames(t *testing.T) {
	// A crafted header whose text looks like a disambiguated key must not
	// collide, because '#' never survives Sanitize.
	hs := Resolve([]string{"sprint", "sprint#dup1", "sprint"})
	if hs[1].Key != "sprint_dup1" {
		t.Fatalf("unexpected key for sanitized literal: %q", hs[1].Key)
	}
	if hs[2].Key != "sprint#dup1" {
		t.Fatalf("duplicate sprint got key %q, want sprint#dup1", hs[2].Key)
	}
	if hs[1].Key == hs[2].Key {
		t.Fatalf("collision between literal header and disambiguated key: %q", hs[1].Key)
	}
}

func TestResolvePreservesOrderAndPositions(t *testing.T) {
	hs := Resolve([]string{"b", "a", "b"})
	for i, h := range hs {
		if h.Position != i {
			t.Errorf("header %d has position %d", i, h.Position)
		}
	}
}
