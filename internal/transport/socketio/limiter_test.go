package socketio

import "testing"

func TestSessionLimiterWithinCap(t *testing.T) {
	l := NewSessionLimiter(2)

	if evicted := l.Admit("a"); evicted != "" {
		t.Errorf("first session should not evict, got %q", evicted)
	}
	if evicted := l.Admit("b"); evicted != "" {
		t.Errorf("second session should not evict, got %q", evicted)
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", l.Len())
	}
}

func TestSessionLimiterEvictsOldest(t *testing.T) {
	l := NewSessionLimiter(2)
	l.Admit("a")
	l.Admit("b")

	if evicted := l.Admit("c"); evicted != "a" {
		t.Errorf("expected eviction of a, got %q", evicted)
	}
	if evicted := l.Admit("d"); evicted != "b" {
		t.Errorf("expected eviction of b, got %q", evicted)
	}
}

func TestSessionLimiterReleaseFreesSlot(t *testing.T) {
	l := NewSessionLimiter(1)
	l.Admit("a")
	l.Release("a")

	if evicted := l.Admit("b"); evicted != "" {
		t.Errorf("released slot should be reusable, evicted %q", evicted)
	}
	l.Release("missing")
	if l.Len() != 1 {
		t.Errorf("expected 1 session, got %d", l.Len())
	}
}

func TestSessionLimiterDuplicateAdmit(t *testing.T) {
	l := NewSessionLimiter(1)
	l.Admit("a")
	if evicted := l.Admit("a"); evicted != "" {
		t.Errorf("re-admitting should not evict, got %q", evicted)
	}
}

func TestSessionLimiterUnlimited(t *testing.T) {
	l := NewSessionLimiter(0)
	for _, id := range []string{"a", "b", "c", "d"} {
		if evicted := l.Admit(id); evicted != "" {
			t.Errorf("unlimited limiter evicted %q", evicted)
		}
	}
}
