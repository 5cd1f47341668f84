package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicyExpiredByAge(t *testing.T) {
	p := Policy{MaxAge: time.Hour, MaxAttempts: 10}
	now := time.Now()

	fresh := Message{CreatedAt: now.Add(-30 * time.Minute).UnixMilli()}
	old := Message{CreatedAt: now.Add(-2 * time.Hour).UnixMilli()}
	boundary := Message{CreatedAt: now.Add(-time.Hour).UnixMilli()}

	require.False(t, p.Expired(fresh, now))
	require.True(t, p.Expired(old, now))
	require.True(t, p.Expired(boundary, now), "age >= max counts as expired")
}

func TestPolicyExpiredByAttempts(t *testing.T) {
	p := Policy{MaxAge: time.Hour, MaxAttempts: 3}
	now := time.Now()
	recent := now.UnixMilli()

	require.False(t, p.Expired(Message{CreatedAt: recent, RetryCount: 2}, now))
	require.True(t, p.Expired(Message{CreatedAt: recent, RetryCount: 3}, now))
	require.True(t, p.Expired(Message{CreatedAt: recent, RetryCount: 7}, now))
}

func TestPolicyDefaults(t *testing.T) {
	var p Policy // zero value falls back to defaults
	now := time.Now()

	require.False(t, p.Expired(Message{CreatedAt: now.UnixMilli(), RetryCount: 9}, now))
	require.True(t, p.Expired(Message{CreatedAt: now.UnixMilli(), RetryCount: 10}, now))
	require.True(t, p.Expired(Message{CreatedAt: now.Add(-8 * 24 * time.Hour).UnixMilli()}, now))
}
