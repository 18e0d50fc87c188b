package backend

import (
	"context"
	"time"
)

type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventCancelled EventType = "cancelled"
	EventForgotten EventType = "forgotten"
)

// Event describes a change to the tracked job of one target.
type Event struct {
	Type   EventType `json:"type"`
	Target string    `json:"target"`
	JobID  string    `json:"job_id"`
	At     time.Time `json:"at"`
}

// Notifier receives an Event after every successful state change. Errors are
// logged by the backend and never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }
