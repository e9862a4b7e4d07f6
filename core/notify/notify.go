// Package notify publishes moderation events of the prompt library.
//
// A Notifier receives an Event whenever a prompt is submitted, approved,
// rejected or deleted. Delivery is best effort: callers log failures and
// carry on.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/promptlib/core/logger"
)

// EventType is the type of a moderation event
type EventType string

// all event types
const (
	PromptSubmitted EventType = "prompt.submitted"
	PromptApproved  EventType = "prompt.approved"
	PromptRejected  EventType = "prompt.rejected"
	PromptDeleted   EventType = "prompt.deleted"
)

// Event is a moderation event
type Event struct {
	Type      EventType `json:"type"`
	PromptID  uuid.UUID `json:"promptId"`
	Title     string    `json:"title,omitempty"`
	Category  string    `json:"category,omitempty"`
	AuthorID  string    `json:"authorId,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Context is the serialized logger context of the request which caused the event
	Context json.RawMessage `json:"context,omitempty"`
}

// NewEvent returns an event stamped with the current time and the logger context of ctx
func NewEvent(ctx context.Context, t EventType, promptID uuid.UUID) Event {
	return Event{
		Type:      t,
		PromptID:  promptID,
		Timestamp: time.Now().UTC(),
		Context:   logger.SerializeLoggerContext(ctx),
	}
}

// Notifier receives moderation events
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier logs events
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(ctx context.Context, event Event) error {
	logger.FromContext(ctx).
		WithField("event", event.Type).
		WithField("prompt", event.PromptID.String()).
		Infoln("moderation event")
	return nil
}

// Multi fans an event out to several notifiers. All notifiers are called,
// the errors are joined.
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
