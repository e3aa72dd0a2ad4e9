package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notification"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slot"
)

const (
	OpRequestBooking = "request_booking"
	OpConfirm        = "confirm"
	OpReject         = "reject"
	OpReschedule     = "reschedule"
	OpComplete       = "complete"
	OpCancel         = "cancel"
)

// Dependencies wires a Service. Logger, Metrics, Notifier and Now default to
// no-op or wall-clock implementations when left empty.
type Dependencies struct {
	Repo      Repository
	Locker    Locker
	Directory directory.Directory
	Slots     *slot.Catalog
	Notifier  notification.Publisher
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Service is the appointment lifecycle engine. It owns every status change,
// authorises callers and keeps a conflict key held by at most one active
// appointment.
type Service struct {
	repo     Repository
	locker   Locker
	dir      directory.Directory
	slots    *slot.Catalog
	notifier notification.Publisher
	log      zerolog.Logger
	m        *metrics.Metrics
	now      func() time.Time
}

func NewService(d Dependencies) *Service {
	s := &Service{
		repo:     d.Repo,
		locker:   d.Locker,
		dir:      d.Directory,
		slots:    d.Slots,
		notifier: d.Notifier,
		log:      d.Logger.With().Str("component", "appointment_service").Logger(),
		m:        d.Metrics,
		now:      d.Now,
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.slots == nil {
		s.slots = slot.NewCatalog()
	}
	if s.notifier == nil {
		s.notifier = notification.Nop{}
	}
	if s.m == nil {
		s.m = metrics.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RequestBooking creates a pending appointment. The conflict check and the
// insert run under the conflict-key lock so two requests for the same slot
// cannot both succeed.
func (s *Service) RequestBooking(ctx context.Context, p identity.Principal, req BookingRequest) (appt *Appointment, err error) {
	defer s.observe(OpRequestBooking, time.Now(), &err)

	if req.PatientID == 0 && p.Role == identity.RolePatient {
		req.PatientID = p.ID
	}

	req, err = s.validateBooking(req)
	if err != nil {
		return nil, err
	}

	if !(p.Is(identity.RolePatient, req.PatientID) || p.Role == identity.RoleAdmin) {
		return nil, fmt.Errorf("%w: %s %d cannot book for patient %d", ErrForbidden, p.Role, p.ID, req.PatientID)
	}

	if err := s.resolve(ctx, req.DoctorID, req.ClinicID); err != nil {
		return nil, err
	}

	now := s.now()
	rec := &Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		ClinicID:  req.ClinicID,
		Date:      req.Date,
		TimeSlot:  req.TimeSlot,
		Service:   req.Service,
		Notes:     req.Notes,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	key := rec.ConflictKey()

	err = s.withLock(ctx, key.String(), func(lockCtx context.Context) error {
		// Inside the critical section check for an active appointment on this key
		if err := s.ensureFree(lockCtx, key, 0); err != nil {
			return err
		}

		created, err := s.repo.Create(lockCtx, rec)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		appt = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("appointment_id", appt.ID).
		Int64("patient_id", appt.PatientID).
		Str("slot", key.String()).
		Msg("appointment requested")
	s.notify(notification.KindBooked, appt, nil)

	return appt, nil
}

// Confirm moves a pending appointment to confirmed. Assigned doctor only.
func (s *Service) Confirm(ctx context.Context, p identity.Principal, id int64) (*Appointment, error) {
	return s.transition(ctx, p, id, transitionRule{
		op:        OpConfirm,
		kind:      notification.KindConfirmed,
		authorize: assignedDoctor,
		from:      []AppointmentStatus{StatusPending},
		to:        StatusConfirmed,
	})
}

// Reject moves a pending appointment to rejected. Assigned doctor only.
func (s *Service) Reject(ctx context.Context, p identity.Principal, id int64) (*Appointment, error) {
	return s.transition(ctx, p, id, transitionRule{
		op:        OpReject,
		kind:      notification.KindRejected,
		authorize: assignedDoctor,
		from:      []AppointmentStatus{StatusPending},
		to:        StatusRejected,
	})
}

// Complete moves a confirmed appointment to completed. Assigned doctor only.
func (s *Service) Complete(ctx context.Context, p identity.Principal, id int64) (*Appointment, error) {
	return s.transition(ctx, p, id, transitionRule{
		op:        OpComplete,
		kind:      notification.KindCompleted,
		authorize: assignedDoctor,
		from:      []AppointmentStatus{StatusConfirmed},
		to:        StatusCompleted,
	})
}

// Cancel is available to the owning patient and to admins while the
// appointment is still active.
func (s *Service) Cancel(ctx context.Context, p identity.Principal, id int64) (*Appointment, error) {
	return s.transition(ctx, p, id, transitionRule{
		op:        OpCancel,
		kind:      notification.KindCancelled,
		authorize: ownerOrAdmin,
		from:      []AppointmentStatus{StatusPending, StatusConfirmed},
		to:        StatusCancelled,
	})
}

// Reschedule moves an active appointment to a new date and slot and confirms
// it. The target slot is checked against every other appointment under its
// own lock; on conflict the record is left untouched.
func (s *Service) Reschedule(ctx context.Context, p identity.Principal, id int64, newDate, newTimeSlot string) (*Appointment, error) {
	date, slotLabel, verr := s.validateSlot(newDate, newTimeSlot)

	return s.transition(ctx, p, id, transitionRule{
		op:        OpReschedule,
		kind:      notification.KindRescheduled,
		precheck:  verr,
		authorize: assignedDoctor,
		from:      []AppointmentStatus{StatusPending, StatusConfirmed},
		to:        StatusConfirmed,
		persist: func(ctx context.Context, a *Appointment) (*Appointment, error) {
			a.Date = date
			a.TimeSlot = slotLabel
			key := a.ConflictKey()

			var out *Appointment
			err := s.withLock(ctx, key.String(), func(lockCtx context.Context) error {
				if err := s.ensureFree(lockCtx, key, a.ID); err != nil {
					return err
				}
				updated, err := s.repo.Update(lockCtx, a)
				if err != nil {
					return fmt.Errorf("update appointment: %w", err)
				}
				out = updated
				return nil
			})
			return out, err
		},
	})
}

type transitionRule struct {
	op        string
	kind      notification.Kind
	precheck  error
	authorize func(identity.Principal, *Appointment) bool
	from      []AppointmentStatus
	to        AppointmentStatus
	// persist stores the mutated record; defaults to Repository.Update.
	persist func(ctx context.Context, a *Appointment) (*Appointment, error)
}

func (s *Service) transition(ctx context.Context, p identity.Principal, id int64, t transitionRule) (appt *Appointment, err error) {
	defer s.observe(t.op, time.Now(), &err)

	if t.precheck != nil {
		return nil, t.precheck
	}

	var prev Appointment
	err = s.withLock(ctx, appointmentLockKey(id), func(lockCtx context.Context) error {
		current, err := s.repo.GetByID(lockCtx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		if !t.authorize(p, current) {
			return fmt.Errorf("%w: %s %d cannot %s appointment %d", ErrForbidden, p.Role, p.ID, t.op, id)
		}
		if !statusIn(current.Status, t.from) {
			return fmt.Errorf("%w: cannot %s a %s appointment", ErrInvalidTransition, t.op, current.Status)
		}

		prev = *current
		current.Status = t.to
		current.UpdatedAt = s.now()

		persist := t.persist
		if persist == nil {
			persist = func(ctx context.Context, a *Appointment) (*Appointment, error) {
				updated, err := s.repo.Update(ctx, a)
				if err != nil {
					return nil, fmt.Errorf("update appointment: %w", err)
				}
				return updated, nil
			}
		}

		appt, err = persist(lockCtx, current)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("appointment_id", appt.ID).
		Str("from", string(prev.Status)).
		Str("to", string(appt.Status)).
		Str("operation", t.op).
		Msg("appointment transitioned")

	var extra map[string]any
	if t.op == OpReschedule {
		extra = map[string]any{
			"previous_date":      prev.Date,
			"previous_time_slot": prev.TimeSlot,
		}
	}
	s.notify(t.kind, appt, extra)

	return appt, nil
}

// Get returns one appointment if the caller may see it.
func (s *Service) Get(ctx context.Context, p identity.Principal, id int64) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !canView(p, a) {
		return nil, fmt.Errorf("%w: appointment %d", ErrForbidden, id)
	}
	return a, nil
}

// ListForPatient returns every appointment of a patient, whatever the status.
func (s *Service) ListForPatient(ctx context.Context, p identity.Principal, patientID int64) ([]Appointment, error) {
	if !(p.Is(identity.RolePatient, patientID) || p.Role == identity.RoleAdmin) {
		return nil, fmt.Errorf("%w: appointments of patient %d", ErrForbidden, patientID)
	}

	list, err := s.repo.QueryByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return list, nil
}

// ListForDoctor returns every appointment assigned to a doctor.
func (s *Service) ListForDoctor(ctx context.Context, p identity.Principal, doctorID int64) ([]Appointment, error) {
	if !(p.Is(identity.RoleDoctor, doctorID) || p.Role == identity.RoleAdmin) {
		return nil, fmt.Errorf("%w: appointments of doctor %d", ErrForbidden, doctorID)
	}

	list, err := s.repo.QueryByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return list, nil
}

// ListAll is the admin view over every appointment.
func (s *Service) ListAll(ctx context.Context, p identity.Principal) ([]Appointment, error) {
	if p.Role != identity.RoleAdmin {
		return nil, fmt.Errorf("%w: listing all appointments requires admin", ErrForbidden)
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

// AvailableSlots returns the catalog slots for the date minus those held by a
// pending or confirmed appointment of this doctor at this clinic.
func (s *Service) AvailableSlots(ctx context.Context, p identity.Principal, doctorID, clinicID int64, date string) ([]string, error) {
	if p.ID <= 0 || !p.Role.Valid() {
		return nil, identity.ErrUnauthenticated
	}

	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	if doctorID <= 0 || clinicID <= 0 {
		return nil, fmt.Errorf("%w: doctor_id and clinic_id are required", ErrValidation)
	}
	if err := s.resolve(ctx, doctorID, clinicID); err != nil {
		return nil, err
	}

	booked, err := s.repo.QueryByDay(ctx, DayKey{DoctorID: doctorID, ClinicID: clinicID, Date: day.Format(DateLayout)})
	if err != nil {
		return nil, fmt.Errorf("query booked slots: %w", err)
	}

	var taken []string
	for _, a := range booked {
		if a.Status.Active() {
			taken = append(taken, a.TimeSlot)
		}
	}
	return s.slots.Available(day, taken), nil
}

// Decorate attaches doctor and clinic names. Directory misses leave the names empty.
func (s *Service) Decorate(ctx context.Context, list []Appointment) []AppointmentView {
	out := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		v := AppointmentView{Appointment: a}
		if doc, err := s.dir.GetDoctor(ctx, a.DoctorID); err == nil {
			v.DoctorName = doc.Name
			v.DoctorSpecialty = doc.Specialty
		}
		if c, err := s.dir.GetClinic(ctx, a.ClinicID); err == nil {
			v.ClinicName = c.Name
		}
		out = append(out, v)
	}
	return out
}

func (s *Service) validateBooking(req BookingRequest) (BookingRequest, error) {
	if req.PatientID <= 0 || req.DoctorID <= 0 || req.ClinicID <= 0 {
		return req, fmt.Errorf("%w: patient, doctor and clinic ids are required", ErrValidation)
	}

	date, label, err := s.validateSlot(req.Date, req.TimeSlot)
	if err != nil {
		return req, err
	}
	req.Date = date
	req.TimeSlot = label

	req.Service = strings.TrimSpace(req.Service)
	if req.Service == "" {
		req.Service = DefaultService
	}
	req.Notes = strings.TrimSpace(req.Notes)
	return req, nil
}

func (s *Service) validateSlot(date, timeSlot string) (string, string, error) {
	day, err := parseDate(date)
	if err != nil {
		return "", "", err
	}
	label, err := s.slots.Normalize(timeSlot)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return day.Format(DateLayout), label, nil
}

func parseDate(date string) (time.Time, error) {
	day, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, date)
	}
	return day, nil
}

func (s *Service) resolve(ctx context.Context, doctorID, clinicID int64) error {
	if _, err := s.dir.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.dir.GetClinic(ctx, clinicID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("load clinic: %w", err)
	}
	return nil
}

// ensureFree fails with ErrSlotConflict when an active appointment other than
// exclude holds key. Must run under the key's lock.
func (s *Service) ensureFree(ctx context.Context, key ConflictKey, exclude int64) error {
	existing, err := s.repo.QueryByConflictKey(ctx, key)
	if err != nil {
		return fmt.Errorf("check conflicting appointments: %w", err)
	}
	for _, a := range existing {
		if a.ID != exclude && a.Status.Active() {
			return fmt.Errorf("%w: held by appointment %d", ErrSlotConflict, a.ID)
		}
	}
	return nil
}

func (s *Service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	requested := time.Now()
	err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		s.m.LockWait.Observe(time.Since(requested).Seconds())
		return fn(lockCtx)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %s", ErrSlotBusy, key)
	}
	return err
}

func (s *Service) notify(kind notification.Kind, a *Appointment, extra map[string]any) {
	payload := map[string]any{
		"status":     string(a.Status),
		"date":       a.Date,
		"time_slot":  a.TimeSlot,
		"patient_id": a.PatientID,
		"doctor_id":  a.DoctorID,
		"clinic_id":  a.ClinicID,
		"service":    a.Service,
	}
	for k, v := range extra {
		payload[k] = v
	}

	now := s.now()
	recipients := []identity.Principal{
		{ID: a.PatientID, Role: identity.RolePatient},
		{ID: a.DoctorID, Role: identity.RoleDoctor},
	}
	for _, to := range recipients {
		s.notifier.Publish(notification.Event{
			Kind:          kind,
			AppointmentID: a.ID,
			RecipientID:   to.ID,
			RecipientRole: to.Role,
			Payload:       payload,
			CreatedAt:     now,
		})
	}
}

func (s *Service) observe(op string, started time.Time, err *error) {
	outcome := Outcome(*err)
	s.m.ObserveOperation(op, outcome, started)
	if *err != nil && outcome == "error" {
		s.log.Error().Err(*err).Str("operation", op).Msg("appointment operation failed")
	}
}

// Outcome names the error kind for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrSlotBusy):
		return "slot_busy"
	}
	return "error"
}

func assignedDoctor(p identity.Principal, a *Appointment) bool {
	return p.Is(identity.RoleDoctor, a.DoctorID)
}

func ownerOrAdmin(p identity.Principal, a *Appointment) bool {
	return p.Is(identity.RolePatient, a.PatientID) || p.Role == identity.RoleAdmin
}

func canView(p identity.Principal, a *Appointment) bool {
	return ownerOrAdmin(p, a) || assignedDoctor(p, a)
}

func statusIn(s AppointmentStatus, allowed []AppointmentStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
