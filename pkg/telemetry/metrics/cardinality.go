package metrics

import "sync"

// cardinalityLimiter tracks which label values have been seen and rejects
// new ones once the cap is reached. Existing values keep updating.
type cardinalityLimiter struct {
	mu   sync.Mutex
	seen map[string]struct{}
	max  int
}

func newCardinalityLimiter(max int) *cardinalityLimiter {
	return &cardinalityLimiter{
		seen: make(map[string]struct{}),
		max:  max,
	}
}

// admit reports whether the value may be used as a label.
func (l *cardinalityLimiter) admit(value string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[value]; ok {
		return true
	}
	if len(l.seen) >= l.max {
		return false
	}
	l.seen[value] = struct{}{}
	return true
}
