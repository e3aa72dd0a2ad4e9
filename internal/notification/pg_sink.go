package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the part of pgxpool.Pool the event log needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgEventSink appends every event to the event_logs audit table.
type PgEventSink struct {
	db Execer
}

func NewPgEventSink(db Execer) *PgEventSink {
	return &PgEventSink{db: db}
}

func (s *PgEventSink) Name() string { return "postgres" }

func (s *PgEventSink) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, recipient_id, recipient_role, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`, string(ev.Kind), ev.AppointmentID, ev.RecipientID, string(ev.RecipientRole), payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
