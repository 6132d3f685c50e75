package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veloflux/go-session/token"
)

// DefaultRefreshInterval is how often the background refresher renews the
// token speculatively.
const DefaultRefreshInterval = 10 * time.Minute

// Refresher is the handle for the background refresh task. Stop is
// idempotent and waits for the loop to exit; an in-flight refresh is
// allowed to resolve and its result is discarded.
type Refresher struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartAutoRefresh launches a periodic task that calls RefreshToken while
// a token is held. Tick outcomes are logged, never escalated: the next
// authenticated request will 401 naturally if the session has truly
// expired, and the UI layer handles that path.
func (m *Manager) StartAutoRefresh(interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	r := &Refresher{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go r.run(m, interval)
	return r
}

// Stop cancels the periodic task and waits for it to finish.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}

func (r *Refresher) run(m *Manager, interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if m.Token() == "" {
				continue
			}
			if ok := m.RefreshToken(context.Background()); !ok {
				log.Warn().Msg("background token refresh failed, keeping current token")
				continue
			}
			if expiry := token.ExpiresAt(m.Token()); !expiry.IsZero() {
				log.Debug().Time("expires_at", expiry).Msg("token refreshed")
			} else {
				log.Debug().Msg("token refreshed")
			}
		}
	}
}
