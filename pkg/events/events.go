// Package events publishes assignment lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the assignments exchange.
const (
	TypeAssignmentDispatched = "assignment.dispatched"
	TypeAssignmentStarted    = "assignment.started"
	TypeAssignmentFinalized  = "assignment.finalized"
	TypeAssignmentCancelled  = "assignment.cancelled"
)

// Event is the envelope written to the broker.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	AssignmentID uuid.UUID       `json:"assignment_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// New builds an envelope, marshalling data when non-nil.
func New(eventType string, assignmentID uuid.UUID, data any) (Event, error) {
	evt := Event{
		ID:           uuid.New(),
		Type:         eventType,
		AssignmentID: assignmentID,
		OccurredAt:   time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		evt.Data = raw
	}
	return evt, nil
}

// Publisher sends events. Callers treat failures as best effort.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
