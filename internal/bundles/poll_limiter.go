package bundles

import (
	"sync"
	"time"
)

const pollLimitWindow = 1 * time.Second

// pollLimiter allows one status read per user and job per window.
type pollLimiter struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	now     func() time.Time
	window  time.Duration
}

func newPollLimiter(window time.Duration, now func() time.Time) *pollLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = pollLimitWindow
	}
	return &pollLimiter{
		lastHit: make(map[string]time.Time),
		now:     now,
		window:  window,
	}
}

func (l *pollLimiter) Allow(userID, jobID string) bool {
	if l == nil {
		return true
	}
	key := userID + "|" + jobID
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastHit[key]; ok && now.Sub(last) < l.window {
		return false
	}
	l.lastHit[key] = now
	// Entries older than the window can never block again.
	if len(l.lastHit) > 4096 {
		for k, t := range l.lastHit {
			if now.Sub(t) >= l.window {
				delete(l.lastHit, k)
			}
		}
	}
	return true
}

func (l *pollLimiter) RetryAfterSeconds() int {
	window := pollLimitWindow
	if l != nil {
		window = l.window
	}
	if secs := int(window.Seconds()); secs > 0 {
		return secs
	}
	return 1
}
