// Package directory is the read-only catalog of doctors and clinics that
// appointments reference.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found in directory")
	ErrDoctorNotFound = fmt.Errorf("doctor %w", ErrNotFound)
	ErrClinicNotFound = fmt.Errorf("clinic %w", ErrNotFound)
)

type Doctor struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Location  string `json:"location"`
	ClinicID  int64  `json:"clinic_id"`
	Fee       int    `json:"consultation_fee,omitempty"`
}

type Clinic struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Location string `json:"location"`
	Phone    string `json:"phone,omitempty"`
}

// Filter narrows list queries. Empty fields match everything; matching is
// case-insensitive substring.
type Filter struct {
	Location  string
	Specialty string
}

func (f Filter) matches(location, specialty string) bool {
	if f.Location != "" && !containsFold(location, f.Location) {
		return false
	}
	if f.Specialty != "" && !containsFold(specialty, f.Specialty) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Directory resolves references used by appointments.
type Directory interface {
	GetDoctor(ctx context.Context, id int64) (*Doctor, error)
	GetClinic(ctx context.Context, id int64) (*Clinic, error)
	ListDoctors(ctx context.Context, f Filter) ([]Doctor, error)
	ListClinics(ctx context.Context, f Filter) ([]Clinic, error)
}
