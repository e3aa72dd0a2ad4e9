// Package notification carries appointment lifecycle events out of the
// booking engine. Delivery is best effort: nothing here reports back to the
// operation that produced the event.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hackgods/clinic-booking/internal/identity"
)

type Kind string

const (
	KindBooked      Kind = "booked"
	KindConfirmed   Kind = "confirmed"
	KindRejected    Kind = "rejected"
	KindRescheduled Kind = "rescheduled"
	KindCompleted   Kind = "completed"
	KindCancelled   Kind = "cancelled"
)

// Event is addressed to one user. Patient and doctor ids are separate id
// spaces, so a recipient is identified by role and id together.
type Event struct {
	Kind          Kind           `json:"kind"`
	AppointmentID int64          `json:"appointment_id"`
	RecipientID   int64          `json:"recipient_id"`
	RecipientRole identity.Role  `json:"recipient_role"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (e Event) Recipient() identity.Principal {
	return identity.Principal{ID: e.RecipientID, Role: e.RecipientRole}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Sink delivers an event somewhere. Implementations may block; the
// Dispatcher keeps them off the request path.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
}

// Publisher is what the booking engine writes to. Publish must not block.
type Publisher interface {
	Publish(ev Event)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(Event) {}
