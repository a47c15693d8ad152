package observe

import (
	"context"
	"time"

	"github.com/alephtav/go-ddd/core/query"
)

// EventType names a statement lifecycle event.
type EventType string

const (
	StatementStart   EventType = "statement:start"
	StatementSuccess EventType = "statement:success"
	StatementFailed  EventType = "statement:failed"
)

// Event describes one stage of a statement run through an observed executor.
// Start, success and failure events of the same statement share an ID.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	Operation string       `json:"operation"`
	SQL       string       `json:"sql"`
	Params    query.Params `json:"params"`
	Timestamp int64        `json:"timestamp"`          // Unix milliseconds.
	Duration  *int64       `json:"duration,omitempty"` // Milliseconds, set on success and failure.
	Affected  *int64       `json:"affected,omitempty"` // Set for successful Execute calls.
	Error     *string      `json:"error,omitempty"`
}

// Callback receives events for a subscription.
type Callback func(ctx context.Context, event Event) error

// SubscriptionOptions registers a callback for one event type.
type SubscriptionOptions struct {
	Event       EventType
	Label       *string
	Description *string
	Callback    Callback
}

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	ID          string    `json:"id"`
	Event       EventType `json:"event"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	unsubscribe func()
}

func newEvent(id string, eventType EventType, op, sql string, params query.Params, started time.Time, err error) Event {
	ev := Event{
		ID:        id,
		Type:      eventType,
		Operation: op,
		SQL:       sql,
		Params:    params,
		Timestamp: time.Now().UnixMilli(),
	}
	if eventType != StatementStart {
		d := time.Since(started).Milliseconds()
		ev.Duration = &d
	}
	if err != nil {
		msg := err.Error()
		ev.Error = &msg
	}
	return ev
}
