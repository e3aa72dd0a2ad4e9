package appointment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
)

// Repository is the authoritative appointment storage. It assigns ids and
// keeps the conflict-key index; business rules live in Service.
type Repository interface {
	// Create assigns a fresh id to a and stores it. a.ID is overwritten.
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	// Update replaces the stored record with the same id.
	Update(ctx context.Context, a *Appointment) (*Appointment, error)

	QueryByDoctor(ctx context.Context, doctorID int64) ([]Appointment, error)
	QueryByPatient(ctx context.Context, patientID int64) ([]Appointment, error)

	// For conflict checks
	QueryByConflictKey(ctx context.Context, key ConflictKey) ([]Appointment, error)
	QueryByDay(ctx context.Context, key DayKey) ([]Appointment, error)

	List(ctx context.Context) ([]Appointment, error)
}
