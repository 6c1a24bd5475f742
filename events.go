package accounts

import (
	"context"
	"time"
)

// EventType enumerates session-establishment side effects.
type EventType string

const (
	EventLoginSuccess   EventType = "auth.login.success"
	EventLoginFailure   EventType = "auth.login.failure"
	EventRegistered     EventType = "auth.registered"
	EventActivated      EventType = "auth.activated"
	EventPasswordReset  EventType = "auth.password.reset"
	EventFederatedLogin EventType = "auth.federated.login"
)

// Event captures audit-friendly information about an auth outcome.
type Event struct {
	Type       EventType
	AccountID  string
	Provider   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// EventSink consumes auth events. Consumers register as implementations
// held by the session service, there is no global dispatch.
type EventSink interface {
	Record(ctx context.Context, event Event) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event Event) error

// Record implements EventSink.
func (f EventSinkFunc) Record(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopEventSink struct{}

func (noopEventSink) Record(context.Context, Event) error { return nil }

func normalizeEventSink(s EventSink) EventSink {
	if s == nil {
		return noopEventSink{}
	}
	return s
}
