package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(ctx context.Context, ev Event) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherFansOutAndSurvivesSinkErrors(t *testing.T) {
	failing := &recordingSink{err: errors.New("smtp down")}
	ok := &recordingSink{}
	m := metrics.Discard()

	d := NewDispatcher([]Sink{failing, ok}, DispatcherOptions{Buffer: 8, Workers: 2}, zerolog.Nop(), m)

	for i := int64(1); i <= 5; i++ {
		d.Publish(Event{Kind: KindBooked, AppointmentID: i, RecipientID: 10})
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 5, failing.count())
	assert.Equal(t, 5, ok.count())
	assert.Equal(t, 5.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("recording", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("recording", "ok")))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	slow := &recordingSink{block: make(chan struct{})}
	m := metrics.Discard()
	d := NewDispatcher([]Sink{slow}, DispatcherOptions{Buffer: 1, Workers: 1}, zerolog.Nop(), m)

	start := time.Now()
	for i := 0; i < 20; i++ {
		d.Publish(Event{Kind: KindConfirmed, AppointmentID: int64(i)})
	}
	assert.Less(t, time.Since(start), time.Second, "publish must not block")
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.NotificationsLost), 18.0)

	close(slow.block)
	require.NoError(t, d.Close(context.Background()))

	d.Publish(Event{Kind: KindConfirmed})
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.NotificationsLost), 19.0)
}

func TestInbox(t *testing.T) {
	b := NewInbox()
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	patient := identity.Principal{ID: 5, Role: identity.RolePatient}
	other := identity.Principal{ID: 9, Role: identity.RolePatient}

	require.NoError(t, b.Publish(ctx, Event{Kind: KindBooked, AppointmentID: 1, RecipientID: 5, RecipientRole: identity.RolePatient,
		CreatedAt: base, Payload: map[string]any{"date": "2025-07-20", "time_slot": "10:00"}}))
	require.NoError(t, b.Publish(ctx, Event{Kind: KindConfirmed, AppointmentID: 1, RecipientID: 5, RecipientRole: identity.RolePatient,
		CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, b.Publish(ctx, Event{Kind: KindBooked, AppointmentID: 1, RecipientID: 9, RecipientRole: identity.RolePatient,
		CreatedAt: base}))

	list := b.List(patient)
	require.Len(t, list, 2)
	assert.Equal(t, KindConfirmed, list[0].Kind)
	assert.Equal(t, identity.RolePatient, list[0].UserRole)
	assert.Equal(t, "Appointment requested", list[1].Title)
	assert.Contains(t, list[1].Message, "2025-07-20 at 10:00")

	require.NoError(t, b.MarkRead(patient, list[1].ID))
	assert.True(t, b.List(patient)[1].Read)
	assert.ErrorIs(t, b.MarkRead(other, list[1].ID), ErrNotificationNotFound)

	require.NoError(t, b.Delete(patient, list[0].ID))
	assert.Len(t, b.List(patient), 1)
	assert.ErrorIs(t, b.Delete(patient, list[0].ID), ErrNotificationNotFound)
	assert.Len(t, b.List(other), 1)
}

func TestInboxSeparatesRolesSharingAnID(t *testing.T) {
	b := NewInbox()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, Event{Kind: KindBooked, AppointmentID: 7, RecipientID: 1, RecipientRole: identity.RoleDoctor}))

	patient := identity.Principal{ID: 1, Role: identity.RolePatient}
	doctor := identity.Principal{ID: 1, Role: identity.RoleDoctor}

	assert.Empty(t, b.List(patient))
	require.Len(t, b.List(doctor), 1)

	id := b.List(doctor)[0].ID
	assert.ErrorIs(t, b.MarkRead(patient, id), ErrNotificationNotFound)
	assert.ErrorIs(t, b.Delete(patient, id), ErrNotificationNotFound)
	assert.Len(t, b.List(doctor), 1)
}

func TestRedisSinkAndSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := Subscribe(ctx, client, "appointments", zerolog.Nop())

	// wait for the subscription to register before publishing
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("appointments")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sink := NewRedisSink(client, "appointments")
	require.NoError(t, sink.Publish(ctx, Event{Kind: KindCancelled, AppointmentID: 3, RecipientID: 4, RecipientRole: identity.RoleDoctor}))

	select {
	case ev := <-events:
		assert.Equal(t, KindCancelled, ev.Kind)
		assert.Equal(t, int64(3), ev.AppointmentID)
		assert.Equal(t, identity.Principal{ID: 4, Role: identity.RoleDoctor}, ev.Recipient())
	case <-ctx.Done():
		t.Fatal("event not received")
	}
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSinkKeysByAppointment(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)

	require.NoError(t, sink.Publish(context.Background(), Event{Kind: KindCompleted, AppointmentID: 77, RecipientID: 1}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "77", string(w.msgs[0].Key))

	ev, err := Unmarshal(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, KindCompleted, ev.Kind)
}

type fakeExecer struct {
	sql  string
	args []any
	err  error
}

func (e *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = sql
	e.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), e.err
}

func TestPgEventSinkInsertsEventLog(t *testing.T) {
	db := &fakeExecer{}
	sink := NewPgEventSink(db)

	err := sink.Publish(context.Background(), Event{
		Kind:          KindConfirmed,
		AppointmentID: 5,
		RecipientID:   101,
		RecipientRole: identity.RolePatient,
		Payload:       map[string]any{"date": "2025-07-20"},
	})
	require.NoError(t, err)

	assert.Contains(t, db.sql, "INSERT INTO event_logs")
	require.Len(t, db.args, 6)
	assert.Equal(t, "confirmed", db.args[0])
	assert.Equal(t, int64(5), db.args[1])
	assert.Equal(t, "patient", db.args[3])
	assert.JSONEq(t, `{"date":"2025-07-20"}`, string(db.args[4].([]byte)))
	assert.Nil(t, db.args[5], "zero time falls back to now() in SQL")

	db.err = errors.New("connection reset")
	assert.ErrorContains(t, sink.Publish(context.Background(), Event{Kind: KindCancelled}), "insert event log")
}
