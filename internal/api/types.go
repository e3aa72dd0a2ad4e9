package api

import (
	"encoding/json"
	"net/http"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/notification"
)

type CreateAppointmentRequest struct {
	// PatientID may be omitted by patients booking for themselves.
	PatientID int64  `json:"patient_id"`
	DoctorID  int64  `json:"doctor_id"`
	ClinicID  int64  `json:"clinic_id"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
	Service   string `json:"service"`
	Notes     string `json:"notes"`
}

type RescheduleRequest struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

type AppointmentListResponse struct {
	Appointments []appointment.AppointmentView `json:"appointments"`
	Count        int                           `json:"count"`
}

type SlotsResponse struct {
	DoctorID int64    `json:"doctor_id"`
	ClinicID int64    `json:"clinic_id"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

type DoctorListResponse struct {
	Doctors []directory.Doctor `json:"doctors"`
	Count   int                `json:"count"`
}

type ClinicListResponse struct {
	Clinics []directory.Clinic `json:"clinics"`
	Count   int                `json:"count"`
}

type NotificationListResponse struct {
	Notifications []notification.Notification `json:"notifications"`
	Unread        int                         `json:"unread"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
