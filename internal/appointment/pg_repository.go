package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is raised by appointments_active_slot_uq when two active
// appointments would share a conflict key.
const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, clinic_id, to_char(appt_date, 'YYYY-MM-DD'),
	time_slot, service, notes, status, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var notes *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ClinicID,
		&a.Date,
		&a.TimeSlot,
		&a.Service,
		&notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, translatePgError(err)
	}

	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrSlotConflict, pgErr.ConstraintName)
	}
	return err
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, clinic_id, appt_date, time_slot, service, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)
		RETURNING `+appointmentColumns,
		a.PatientID, a.DoctorID, a.ClinicID, a.Date, a.TimeSlot, a.Service, a.Notes, a.Status, a.CreatedAt, a.UpdatedAt)

	return scanAppointment(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    doctor_id = $3,
		    clinic_id = $4,
		    appt_date = $5::date,
		    time_slot = $6,
		    service = $7,
		    notes = $8,
		    status = $9,
		    updated_at = $10
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.Date, a.TimeSlot, a.Service, a.Notes, a.Status, a.UpdatedAt)

	return scanAppointment(row)
}

func (r *PgRepository) QueryByDoctor(ctx context.Context, doctorID int64) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY id
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("query by doctor: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) QueryByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY id
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query by patient: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) QueryByConflictKey(ctx context.Context, key ConflictKey) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND clinic_id = $2
		  AND appt_date = $3::date
		  AND time_slot = $4
		ORDER BY id
	`, key.DoctorID, key.ClinicID, key.Date, key.TimeSlot)
	if err != nil {
		return nil, fmt.Errorf("query by conflict key: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) QueryByDay(ctx context.Context, key DayKey) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND clinic_id = $2
		  AND appt_date = $3::date
		ORDER BY id
	`, key.DoctorID, key.ClinicID, key.Date)
	if err != nil {
		return nil, fmt.Errorf("query by day: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) List(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return scanAppointments(rows)
}
