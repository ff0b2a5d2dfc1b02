package timeoff

import (
	"context"
	"time"
)

type EventKind string

const (
	EventSubmitted EventKind = "leave_submitted"
	EventApproved  EventKind = "leave_approved"
	EventRejected  EventKind = "leave_rejected"
	EventRecorded  EventKind = "leave_recorded"
)

// Event describes a workflow transition. Resolution is nil for
// EventSubmitted.
type Event struct {
	Kind       EventKind    `json:"event"`
	Request    LeaveRequest `json:"request"`
	Resolution *Resolution  `json:"resolution,omitempty"`
	At         time.Time    `json:"at"`
}

// Notifier receives workflow events. Delivery is best effort: the
// workflow logs a returned error and carries on.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }
