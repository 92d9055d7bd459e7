package socketio

import "sync"

// SessionLimiter caps the number of concurrent browser sessions. Each session
// owns a goroutine and a controller; when a new one exceeds the cap the
// oldest is evicted.
type SessionLimiter struct {
	mu    sync.Mutex
	max   int
	order []string // oldest first
	live  map[string]bool
}

// NewSessionLimiter creates a limiter for up to max sessions. max <= 0 means
// no limit.
func NewSessionLimiter(max int) *SessionLimiter {
	return &SessionLimiter{
		max:  max,
		live: make(map[string]bool),
	}
}

// Admit registers id and returns the session to evict, or "" if none.
func (l *SessionLimiter) Admit(id string) (evicted string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.live[id] {
		return ""
	}
	l.live[id] = true
	l.order = append(l.order, id)

	if l.max <= 0 || len(l.order) <= l.max {
		return ""
	}

	evicted = l.order[0]
	l.order = l.order[1:]
	delete(l.live, evicted)
	return evicted
}

// Release unregisters id when its connection closes.
func (l *SessionLimiter) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.live[id] {
		return
	}
	delete(l.live, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of admitted sessions.
func (l *SessionLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}
