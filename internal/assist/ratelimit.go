package assist

import "time"

// Limiter is a sliding-window counter: at most max events per window.
// It is not safe for concurrent use on its own.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time
	events []time.Time
}

// NewLimiter returns a limiter allowing max events per window. A max of
// zero or less allows everything.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{max: max, window: window, now: time.Now}
}

// Allow records an event and reports true when the window has room.
// Rejected attempts are not recorded.
func (l *Limiter) Allow() bool {
	if l.max <= 0 {
		return true
	}
	now := l.now()
	l.prune(now)
	if len(l.events) >= l.max {
		return false
	}
	l.events = append(l.events, now)
	return true
}

// InWindow returns the number of events inside the current window.
func (l *Limiter) InWindow() int {
	l.prune(l.now())
	return len(l.events)
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.events[:0]
	for _, t := range l.events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.events = kept
}
