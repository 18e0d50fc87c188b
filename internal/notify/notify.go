// Package notify publishes backend events to external listeners.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/qsubgo/internal/backend"
	"github.com/vk/qsubgo/internal/ctxlog"
)

const (
	DefaultEvent          = "qsubgo:job"
	DefaultConnectTimeout = 15 * time.Second
	DefaultRetryAfter     = time.Minute
)

// ErrBackoff is returned while a failed connection is not yet due for retry.
var ErrBackoff = errors.New("notifier is backing off after a failed connection")

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, backend.Event) error { return nil }

// SocketIO emits events to a socket.io namespace. The connection is opened
// on the first Notify and reused until Close. After a failed connection,
// events are dropped with ErrBackoff until RetryAfter has passed.
type SocketIO struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
	RetryAfter         time.Duration

	mu       sync.Mutex
	client   *socket.Socket
	failedAt time.Time
	lastErr  error
	clock    func() time.Time
}

func (s *SocketIO) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

func (s *SocketIO) retryAfter() time.Duration {
	if s.RetryAfter <= 0 {
		return DefaultRetryAfter
	}
	return s.RetryAfter
}

// Notify connects if needed and emits ev.
func (s *SocketIO) Notify(ctx context.Context, ev backend.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		if s.lastErr != nil && s.now().Sub(s.failedAt) < s.retryAfter() {
			return fmt.Errorf("%w: %w", ErrBackoff, s.lastErr)
		}
		client, err := s.connect(ctx)
		if err != nil {
			s.failedAt, s.lastErr = s.now(), err
			return err
		}
		s.client, s.lastErr = client, nil
	}

	event := s.Event
	if event == "" {
		event = DefaultEvent
	}
	ctxlog.FromContext(ctx).Debug("Emitting event.", "event", event, "type", ev.Type, "target", ev.Target)
	s.client.Emit(event, payload(ev))
	return nil
}

func payload(ev backend.Event) map[string]any {
	return map[string]any{
		"type":   string(ev.Type),
		"target": ev.Target,
		"job_id": ev.JobID,
		"at":     ev.At.Format(time.RFC3339),
	}
}

func (s *SocketIO) connect(ctx context.Context) (*socket.Socket, error) {
	logger := ctxlog.FromContext(ctx).With("url", s.URL, "namespace", s.Namespace)

	parsedURL, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parse notify url: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("parse notify url: %q has no scheme or host", s.URL)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if s.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	namespace := s.Namespace
	if namespace == "" {
		namespace = "/"
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	// both handlers may fire before the select below gives up
	connected := make(chan error, 2)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})

	timeout := s.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	logger.Debug("Connecting notifier.")
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		logger.Debug("Notifier connected.", "sid", io.Id())
		return io, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// Close disconnects the client, if one was opened.
func (s *SocketIO) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Disconnect()
		s.client = nil
	}
	return nil
}

var (
	_ backend.Notifier = Nop{}
	_ backend.Notifier = (*SocketIO)(nil)
)
