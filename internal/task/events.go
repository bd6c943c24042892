// AngelaMos | 2026
// events.go

package task

import (
	"context"
	"time"
)

type EventKind string

const (
	EventCreated   EventKind = "created"
	EventAssigned  EventKind = "assigned"
	EventCompleted EventKind = "completed"
)

// Event is emitted after the mutation it describes has committed.
type Event struct {
	Kind       EventKind
	TaskID     string
	ActorID    string
	OccurredAt time.Time
}

// EventSink consumes lifecycle events. Emit must not block the caller on
// delivery and has no error to return: a sink that fails handles it.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

type EventSinkFunc func(ctx context.Context, e Event)

func (f EventSinkFunc) Emit(ctx context.Context, e Event) {
	f(ctx, e)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}
