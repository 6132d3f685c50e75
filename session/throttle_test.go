package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleAllowsUpToMaxAttempts(t *testing.T) {
	throttle := NewLoginThrottle(DefaultMaxAttempts, DefaultLockoutWindow)

	for i := 0; i < DefaultMaxAttempts; i++ {
		require.NoError(t, throttle.Check("a@x.com"))
		throttle.RecordFailure("a@x.com")
	}
	require.ErrorIs(t, throttle.Check("a@x.com"), ThrottledLoginErr)
}

func TestThrottleWindowExpiry(t *testing.T) {
	now := time.Date(2025, 6, 16, 7, 25, 0, 0, time.UTC)
	throttle := NewLoginThrottle(2, time.Minute)
	throttle.setNowFunc(func() time.Time { return now })

	throttle.RecordFailure("a@x.com")
	throttle.RecordFailure("a@x.com")
	require.ErrorIs(t, throttle.Check("a@x.com"), ThrottledLoginErr)

	now = now.Add(61 * time.Second)
	require.NoError(t, throttle.Check("a@x.com"))

	// a further failure restamps the bucket and locks it again
	throttle.RecordFailure("a@x.com")
	require.ErrorIs(t, throttle.Check("a@x.com"), ThrottledLoginErr)
}

func TestThrottleResetClearsCount(t *testing.T) {
	throttle := NewLoginThrottle(DefaultMaxAttempts, DefaultLockoutWindow)

	throttle.RecordFailure("a@x.com")
	throttle.RecordFailure("a@x.com")
	require.Equal(t, 2, throttle.Failures("a@x.com"))

	throttle.Reset("a@x.com")
	require.Equal(t, 0, throttle.Failures("a@x.com"))
	require.NoError(t, throttle.Check("a@x.com"))
}
