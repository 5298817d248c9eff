package ratelimit

import "testing"

func TestAllowExhaustsBurst(t *testing.T) {
	l := New()
	if !l.Allow("k", 2, 0.001) {
		t.Fatalf("first call should pass")
	}
	if !l.Allow("k", 2, 0.001) {
		t.Fatalf("second call should pass")
	}
	if l.Allow("k", 2, 0.001) {
		t.Fatalf("burst of 2 should be exhausted")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		l.Allow("a", 1, 0.001)
	}
	if !l.Allow("b", 1, 0.001) {
		t.Fatalf("key b should have its own bucket")
	}
}
