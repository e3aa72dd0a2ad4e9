package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/identity"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Notification is an inbox entry shown to a single user.
type Notification struct {
	ID            string        `json:"id"`
	UserID        int64         `json:"user_id"`
	UserRole      identity.Role `json:"user_role"`
	AppointmentID int64         `json:"appointment_id"`
	Kind          Kind          `json:"kind"`
	Title         string        `json:"title"`
	Message       string        `json:"message"`
	Read          bool          `json:"read"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Inbox keeps per-user notifications in memory, keyed by role and id. It is
// also a Sink, so the Dispatcher fills it from lifecycle events.
type Inbox struct {
	mu     sync.RWMutex
	byUser map[identity.Principal][]*Notification
}

func NewInbox() *Inbox {
	return &Inbox{byUser: make(map[identity.Principal][]*Notification)}
}

func (b *Inbox) Name() string { return "inbox" }

func (b *Inbox) Publish(_ context.Context, ev Event) error {
	now := time.Now()
	n := &Notification{
		ID:            uuid.NewString(),
		UserID:        ev.RecipientID,
		UserRole:      ev.RecipientRole,
		AppointmentID: ev.AppointmentID,
		Kind:          ev.Kind,
		Title:         titleFor(ev.Kind),
		Message:       messageFor(ev),
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     now,
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}

	b.mu.Lock()
	to := ev.Recipient()
	b.byUser[to] = append(b.byUser[to], n)
	b.mu.Unlock()
	return nil
}

// List returns the user's notifications, newest first.
func (b *Inbox) List(user identity.Principal) []Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()

	src := b.byUser[user]
	out := make([]Notification, 0, len(src))
	for _, n := range src {
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (b *Inbox) MarkRead(user identity.Principal, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.byUser[user] {
		if n.ID == id {
			n.Read = true
			n.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (b *Inbox) Delete(user identity.Principal, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.byUser[user]
	for i, n := range list {
		if n.ID == id {
			b.byUser[user] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}

func titleFor(k Kind) string {
	switch k {
	case KindBooked:
		return "Appointment requested"
	case KindConfirmed:
		return "Appointment confirmed"
	case KindRejected:
		return "Appointment rejected"
	case KindRescheduled:
		return "Appointment rescheduled"
	case KindCompleted:
		return "Appointment completed"
	case KindCancelled:
		return "Appointment cancelled"
	}
	return "Notification"
}

func messageFor(ev Event) string {
	date, _ := ev.Payload["date"].(string)
	slot, _ := ev.Payload["time_slot"].(string)
	if date == "" {
		return fmt.Sprintf("Appointment #%d is now %s.", ev.AppointmentID, ev.Kind)
	}
	return fmt.Sprintf("Appointment #%d on %s at %s is now %s.", ev.AppointmentID, date, slot, ev.Kind)
}
