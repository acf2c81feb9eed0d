package notify

import (
	"context"

	"laundry-dispatch/internal/models"
)

// Event describes an accepted order state change.
type Event struct {
	Action    string
	Notes     string
	SendEmail bool
}

// Sink receives state-change events after the owning transaction has
// committed. Implementations must be best-effort: a failed notification is
// logged by the caller and never rolls anything back.
type Sink interface {
	Notify(ctx context.Context, order *models.Order, ev Event) error
}

// NoopSink discards all events. Used in tests and when email is disabled.
type NoopSink struct{}

func (NoopSink) Notify(ctx context.Context, order *models.Order, ev Event) error { return nil }
