package config

import "time"

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetMaxLoginAttempts() int
	GetLockoutWindow() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshInterval returns how often the background refresher renews
// the token. Overridable via VF_REFRESH_INTERVAL (Go duration syntax).
func (Session) GetRefreshInterval() time.Duration {
	if raw := GetEnv("VF_REFRESH_INTERVAL", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return 10 * time.Minute
}

func (Session) GetMaxLoginAttempts() int {
	return 5
}

func (Session) GetLockoutWindow() time.Duration {
	return 15 * time.Minute
}
