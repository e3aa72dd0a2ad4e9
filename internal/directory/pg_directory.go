package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var fee *int

	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Location, &d.ClinicID, &fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if fee != nil {
		d.Fee = *fee
	}
	return &d, nil
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	var phone *string

	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Location, &phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	if phone != nil {
		c.Phone = *phone
	}
	return &c, nil
}

func (r *PgDirectory) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, location, clinic_id, consultation_fee
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgDirectory) GetClinic(ctx context.Context, id int64) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, address, location, phone
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgDirectory) ListDoctors(ctx context.Context, f Filter) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, location, clinic_id, consultation_fee
		FROM doctors
		WHERE ($1 = '' OR location ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR specialty ILIKE '%' || $2 || '%')
		ORDER BY id
	`, f.Location, f.Specialty)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgDirectory) ListClinics(ctx context.Context, f Filter) ([]Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, address, location, phone
		FROM clinics
		WHERE ($1 = '' OR location ILIKE '%' || $1 || '%')
		ORDER BY id
	`, f.Location)
	if err != nil {
		return nil, fmt.Errorf("list clinics: %w", err)
	}
	defer rows.Close()

	var result []Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}
