package notify

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/qsubgo/internal/backend"
)

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), backend.Event{Type: backend.EventSubmitted}))
}

func TestPayload(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	got := payload(backend.Event{Type: backend.EventCancelled, Target: "align", JobID: "42", At: at})

	assert.Equal(t, map[string]any{
		"type":   "cancelled",
		"target": "align",
		"job_id": "42",
		"at":     "2025-06-01T08:30:00Z",
	}, got)
}

func TestSocketIOInvalidURL(t *testing.T) {
	s := &SocketIO{URL: "not a url"}
	err := s.Notify(context.Background(), backend.Event{})
	assert.ErrorContains(t, err, "parse notify url")
	require.NoError(t, s.Close())
}

func TestSocketIOUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := &SocketIO{URL: "http://" + addr + "/socket.io/", ConnectTimeout: 500 * time.Millisecond}
	err = s.Notify(context.Background(), backend.Event{Type: backend.EventSubmitted, Target: "a"})
	assert.Error(t, err)

	started := time.Now()
	err = s.Notify(context.Background(), backend.Event{Type: backend.EventSubmitted, Target: "b"})
	assert.ErrorIs(t, err, ErrBackoff)
	assert.Less(t, time.Since(started), 100*time.Millisecond, "no new connection attempt while backing off")
	require.NoError(t, s.Close())
}

func TestSocketIORetriesAfterBackoff(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s := &SocketIO{URL: "not a url", RetryAfter: 30 * time.Second}
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	err := s.Notify(ctx, backend.Event{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackoff)

	now = now.Add(10 * time.Second)
	err = s.Notify(ctx, backend.Event{})
	assert.ErrorIs(t, err, ErrBackoff)
	assert.ErrorContains(t, err, "parse notify url")

	now = now.Add(30 * time.Second)
	err = s.Notify(ctx, backend.Event{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackoff, "retry is due")
}
