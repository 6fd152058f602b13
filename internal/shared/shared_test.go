package shared

import "testing"

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := GenerateID()
		if id == "" {
			t.Fatal("expected non-empty ID")
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateState(t *testing.T) {
	a, b := GenerateState(), GenerateState()
	if a == "" || a == b {
		t.Errorf("state tokens must be unique and non-empty: %q, %q", a, b)
	}
}
