package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/notification"
)

type transitionFunc func(ctx context.Context, p identity.Principal, id int64) (*appointment.Appointment, error)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.RequestBooking(r.Context(), p, appointment.BookingRequest{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			ClinicID:  req.ClinicID,
			Date:      req.Date,
			TimeSlot:  req.TimeSlot,
			Service:   req.Service,
			Notes:     req.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, decorateOne(r, svc, appt))
	}
}

func transitionHandler(svc *appointment.Service, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		appt, err := fn(r.Context(), p, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, decorateOne(r, svc, appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reschedule(r.Context(), p, id, req.Date, req.TimeSlot)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, decorateOne(r, svc, appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc, svc.Get)
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		list, err := svc.ListAll(r.Context(), p)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeList(w, r, svc, list)
	}
}

func listByOwnerHandler(svc *appointment.Service, list func(context.Context, identity.Principal, int64) ([]appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		appts, err := list(r.Context(), p, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeList(w, r, svc, appts)
	}
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		doctorID, err1 := strconv.ParseInt(q.Get("doctor_id"), 10, 64)
		clinicID, err2 := strconv.ParseInt(q.Get("clinic_id"), 10, 64)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "doctor_id and clinic_id must be integers")
			return
		}
		date := q.Get("date")

		slots, err := svc.AvailableSlots(r.Context(), p, doctorID, clinicID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			ClinicID: clinicID,
			Date:     date,
			Slots:    slots,
		})
	}
}

func listDoctorsHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := dir.ListDoctors(r.Context(), filterFrom(r))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DoctorListResponse{Doctors: doctors, Count: len(doctors)})
	}
}

func getDoctorHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		doc, err := dir.GetDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func listClinicsHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinics, err := dir.ListClinics(r.Context(), filterFrom(r))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ClinicListResponse{Clinics: clinics, Count: len(clinics)})
	}
}

func getClinicHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		c, err := dir.GetClinic(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func listNotificationsHandler(inbox *notification.Inbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		list := inbox.List(p)
		unread := 0
		for _, n := range list {
			if !n.Read {
				unread++
			}
		}
		writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: list, Unread: unread})
	}
}

func markNotificationReadHandler(inbox *notification.Inbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		if err := inbox.MarkRead(p, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteNotificationHandler(inbox *notification.Inbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		if err := inbox.Delete(p, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleServiceError maps engine and collaborator errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, identity.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrNotFound),
		errors.Is(err, directory.ErrNotFound),
		errors.Is(err, notification.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrSlotBusy):
		writeError(w, http.StatusConflict, "slot_busy", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func principal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal")
	}
	return p, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func filterFrom(r *http.Request) directory.Filter {
	q := r.URL.Query()
	return directory.Filter{Location: q.Get("location"), Specialty: q.Get("specialty")}
}

func decorateOne(r *http.Request, svc *appointment.Service, a *appointment.Appointment) appointment.AppointmentView {
	return svc.Decorate(r.Context(), []appointment.Appointment{*a})[0]
}

func writeList(w http.ResponseWriter, r *http.Request, svc *appointment.Service, list []appointment.Appointment) {
	views := svc.Decorate(r.Context(), list)
	writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: views, Count: len(views)})
}
