package appointment

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Active reports whether the status still holds its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

const (
	DefaultService = "General Consultation"
	DateLayout     = "2006-01-02"
)

type Appointment struct {
	ID        int64             `json:"id"`
	PatientID int64             `json:"patient_id"`
	DoctorID  int64             `json:"doctor_id"`
	ClinicID  int64             `json:"clinic_id"`
	Date      string            `json:"date"`
	TimeSlot  string            `json:"time_slot"`
	Service   string            `json:"service"`
	Notes     string            `json:"notes,omitempty"`
	Status    AppointmentStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (a *Appointment) ConflictKey() ConflictKey {
	return ConflictKey{DoctorID: a.DoctorID, ClinicID: a.ClinicID, Date: a.Date, TimeSlot: a.TimeSlot}
}

func (a *Appointment) DayKey() DayKey {
	return DayKey{DoctorID: a.DoctorID, ClinicID: a.ClinicID, Date: a.Date}
}

// ConflictKey identifies a bookable slot: at most one active appointment may hold it.
type ConflictKey struct {
	DoctorID int64
	ClinicID int64
	Date     string
	TimeSlot string
}

func (k ConflictKey) String() string {
	return fmt.Sprintf("slot:%d:%d:%s:%s", k.DoctorID, k.ClinicID, k.Date, k.TimeSlot)
}

// DayKey groups the slots of one doctor at one clinic on one date.
type DayKey struct {
	DoctorID int64
	ClinicID int64
	Date     string
}

func appointmentLockKey(id int64) string {
	return fmt.Sprintf("appointment:%d", id)
}

// BookingRequest is the input of RequestBooking.
type BookingRequest struct {
	PatientID int64
	DoctorID  int64
	ClinicID  int64
	Date      string
	TimeSlot  string
	Service   string
	Notes     string
}

// AppointmentView decorates an appointment with directory names for display.
type AppointmentView struct {
	Appointment
	DoctorName      string `json:"doctor_name,omitempty"`
	DoctorSpecialty string `json:"doctor_specialty,omitempty"`
	ClinicName      string `json:"clinic_name,omitempty"`
}
