package session

import (
	"sync"
	"time"
)

// Throttle defaults: five consecutive failures lock an identifier out for
// fifteen minutes.
const (
	DefaultMaxAttempts   = 5
	DefaultLockoutWindow = 15 * time.Minute
)

// LoginThrottle blocks repeated failed login attempts per identifier.
// State is process-local and lost on restart: this is a client-side UX
// affordance, not a security control - server-side throttling remains the
// actual boundary.
type LoginThrottle struct {
	maxAttempts int
	window      time.Duration
	nowTime     func() time.Time

	lock        sync.Mutex
	attempts    map[string]int
	lastAttempt map[string]time.Time
}

// NewLoginThrottle creates a throttle allowing maxAttempts consecutive
// failures per identifier before rejecting logins for the lockout window.
func NewLoginThrottle(maxAttempts int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{
		maxAttempts: maxAttempts,
		window:      window,
		nowTime:     time.Now,
		attempts:    make(map[string]int),
		lastAttempt: make(map[string]time.Time),
	}
}

// Check returns ThrottledLoginErr when the identifier's bucket is full
// and the lockout window has not yet elapsed.
func (t *LoginThrottle) Check(identifier string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.attempts[identifier] >= t.maxAttempts &&
		t.nowTime().Sub(t.lastAttempt[identifier]) < t.window {
		return ThrottledLoginErr
	}
	return nil
}

// RecordFailure increments the identifier's bucket and stamps the attempt
// time.
func (t *LoginThrottle) RecordFailure(identifier string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.attempts[identifier]++
	t.lastAttempt[identifier] = t.nowTime()
}

// Reset clears the identifier's bucket after a successful login.
func (t *LoginThrottle) Reset(identifier string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.attempts[identifier] = 0
}

// Failures returns the identifier's consecutive failure count.
func (t *LoginThrottle) Failures(identifier string) int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.attempts[identifier]
}

func (t *LoginThrottle) setNowFunc(now func() time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.nowTime = now
}
