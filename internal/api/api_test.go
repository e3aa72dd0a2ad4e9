package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notification"
)

// inboxPublisher delivers synchronously so tests can read the inbox right away.
type inboxPublisher struct {
	inbox *notification.Inbox
}

func (p inboxPublisher) Publish(ev notification.Event) {
	_ = p.inbox.Publish(context.Background(), ev)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	handler http.Handler
	jwt     *identity.JWT
	inbox   *notification.Inbox
}

func newTestServer(t *testing.T, deps ...Dependency) *testServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New("clinic", reg)
	dir := directory.NewDefaultDirectory()
	inbox := notification.NewInbox()
	jwt := identity.NewJWT("test-secret", time.Hour)

	svc := appointment.NewService(appointment.Dependencies{
		Repo:      appointment.NewMemoryRepository(),
		Locker:    appointment.NewLocalLocker(),
		Directory: dir,
		Notifier:  inboxPublisher{inbox: inbox},
		Metrics:   m,
	})

	h := NewRouter(RouterConfig{
		Service:      svc,
		Directory:    dir,
		Auth:         jwt,
		Inbox:        inbox,
		Dependencies: deps,
		Gatherer:     reg,
		Logger:       zerolog.Nop(),
		Env:          "test",
		Version:      "dev",
	})

	return &testServer{handler: h, jwt: jwt, inbox: inbox}
}

func (s *testServer) token(t *testing.T, role identity.Role, id int64) string {
	t.Helper()
	tok, err := s.jwt.Issue(identity.Principal{ID: id, Role: role})
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	patient := s.token(t, identity.RolePatient, 101)
	other := s.token(t, identity.RolePatient, 102)
	doctor := s.token(t, identity.RoleDoctor, 1)

	rec := s.do(t, http.MethodPost, "/appointments", patient, CreateAppointmentRequest{
		DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "10:00 AM",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[appointment.AppointmentView](t, rec)
	assert.Equal(t, appointment.StatusPending, created.Status)
	assert.Equal(t, "10:00", created.TimeSlot)
	assert.Equal(t, "Dr. Rajesh Kumar", created.DoctorName)

	rec = s.do(t, http.MethodPost, "/appointments", other, CreateAppointmentRequest{
		DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "10:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_conflict", decode[ErrorResponse](t, rec).Error)

	path := "/appointments/" + itoa(created.ID)

	rec = s.do(t, http.MethodPost, path+"/confirm", doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, appointment.StatusConfirmed, decode[appointment.AppointmentView](t, rec).Status)

	rec = s.do(t, http.MethodPost, path+"/complete", doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, path+"/cancel", patient, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/patients/101/appointments", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[AppointmentListResponse](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, appointment.StatusCompleted, list.Appointments[0].Status)
}

func TestRescheduleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	patient := s.token(t, identity.RolePatient, 101)
	doctor := s.token(t, identity.RoleDoctor, 1)

	rec := s.do(t, http.MethodPost, "/appointments", patient, CreateAppointmentRequest{
		DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "10:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[appointment.AppointmentView](t, rec).ID

	rec = s.do(t, http.MethodPost, "/appointments/"+itoa(id)+"/reschedule", doctor, RescheduleRequest{Date: "2025-07-21", TimeSlot: "11:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[appointment.AppointmentView](t, rec)
	assert.Equal(t, "2025-07-21", moved.Date)
	assert.Equal(t, appointment.StatusConfirmed, moved.Status)

	rec = s.do(t, http.MethodGet, "/slots?doctor_id=1&clinic_id=1&date=2025-07-20", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[SlotsResponse](t, rec).Slots, "10:00")

	rec = s.do(t, http.MethodGet, "/slots?doctor_id=1&clinic_id=1&date=2025-07-21", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode[SlotsResponse](t, rec).Slots, "11:00")
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	patient := s.token(t, identity.RolePatient, 101)
	doctor2 := s.token(t, identity.RoleDoctor, 2)

	rec := s.do(t, http.MethodPost, "/appointments", patient, CreateAppointmentRequest{
		DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := itoa(decode[appointment.AppointmentView](t, rec).ID)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, "/appointments/" + id, "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/appointments/" + id, "garbage", nil, http.StatusUnauthorized},
		{"validation", http.MethodPost, "/appointments", patient, CreateAppointmentRequest{DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "13:15"}, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/appointments/abc", patient, nil, http.StatusBadRequest},
		{"unknown appointment", http.MethodGet, "/appointments/9999", patient, nil, http.StatusNotFound},
		{"unknown doctor", http.MethodPost, "/appointments", patient, CreateAppointmentRequest{DoctorID: 99, ClinicID: 1, Date: "2025-07-20", TimeSlot: "09:30"}, http.StatusNotFound},
		{"wrong doctor", http.MethodPost, "/appointments/" + id + "/confirm", doctor2, nil, http.StatusForbidden},
		{"admin only list", http.MethodGet, "/appointments", patient, nil, http.StatusForbidden},
		{"slots bad query", http.MethodGet, "/slots?doctor_id=x&clinic_id=1&date=2025-07-20", patient, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandleServiceErrorSlotBusy(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, appointment.ErrSlotBusy)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_busy", decode[ErrorResponse](t, rec).Error)

	rec = httptest.NewRecorder()
	handleServiceError(rec, errors.New("db on fire"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db on fire")
}

func TestDirectoryRoutesArePublic(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/doctors?location=guntur", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[DoctorListResponse](t, rec)
	assert.Equal(t, 2, docs.Count)

	rec = s.do(t, http.MethodGet, "/clinics/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KIMS ICON Hospital", decode[directory.Clinic](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/doctors/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationInbox(t *testing.T) {
	s := newTestServer(t)
	patient := s.token(t, identity.RolePatient, 101)
	doctor := s.token(t, identity.RoleDoctor, 1)

	rec := s.do(t, http.MethodPost, "/appointments", patient, CreateAppointmentRequest{
		DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "15:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/notifications", doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[NotificationListResponse](t, rec)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, 1, inbox.Unread)
	assert.Equal(t, notification.KindBooked, inbox.Notifications[0].Kind)

	id := inbox.Notifications[0].ID
	rec = s.do(t, http.MethodPost, "/notifications/"+id+"/read", doctor, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/notifications/"+id+"/read", patient, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "notifications are per user")

	rec = s.do(t, http.MethodDelete, "/notifications/"+id, doctor, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.inbox.List(identity.Principal{ID: 1, Role: identity.RoleDoctor}))
}

func TestNotificationInboxKeepsPatientAndDoctorWithSameIDApart(t *testing.T) {
	s := newTestServer(t)
	booker := s.token(t, identity.RolePatient, 101)
	doctor := s.token(t, identity.RoleDoctor, 1)
	namesake := s.token(t, identity.RolePatient, 1)

	rec := s.do(t, http.MethodPost, "/appointments", booker, CreateAppointmentRequest{
		DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "15:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/notifications", namesake, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[NotificationListResponse](t, rec).Notifications)

	rec = s.do(t, http.MethodGet, "/appointments/1", namesake, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/notifications", doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	forDoctor := decode[NotificationListResponse](t, rec)
	require.Len(t, forDoctor.Notifications, 1)
	assert.Equal(t, identity.RoleDoctor, forDoctor.Notifications[0].UserRole)

	id := forDoctor.Notifications[0].ID
	rec = s.do(t, http.MethodPost, "/notifications/"+id+"/read", namesake, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/notifications/"+id, namesake, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/notifications", booker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	forBooker := decode[NotificationListResponse](t, rec)
	require.Len(t, forBooker.Notifications, 1)
	assert.Equal(t, identity.RolePatient, forBooker.Notifications[0].UserRole)
	assert.Equal(t, int64(101), forBooker.Notifications[0].UserID)
}

func TestHealthAndMetrics(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("down") })
	up := pingFunc(func(context.Context) error { return nil })

	s := newTestServer(t, Dependency{Name: "postgres", Check: up, Critical: true}, Dependency{Name: "redis", Check: down})

	rec := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])

	s = newTestServer(t, Dependency{Name: "postgres", Check: down, Critical: true})
	rec = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	patient := s.token(t, identity.RolePatient, 101)
	s.do(t, http.MethodPost, "/appointments", patient, CreateAppointmentRequest{DoctorID: 1, ClinicID: 1, Date: "2025-07-20", TimeSlot: "16:00"})

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_appointment_operations_total{operation="request_booking",outcome="ok"} 1`)
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(RouterConfig{
		Directory: directory.NewDefaultDirectory(),
		Auth:      identity.NewJWT("x", time.Hour),
		Logger:    zerolog.Nop(),
		RateLimit: 1,
		RateBurst: 2,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clinics", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RequestIDMiddleware(RecoveryMiddleware(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
