package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/metrics"
)

// Dispatcher queues events on a buffered channel and fans them out to sinks
// from background workers. A full queue drops the event instead of blocking.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	timeout time.Duration
	log     zerolog.Logger
	m       *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOptions struct {
	Buffer  int
	Workers int
	// Timeout bounds a single sink delivery.
	Timeout time.Duration
}

func NewDispatcher(sinks []Sink, opts DispatcherOptions, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, opts.Buffer),
		timeout: opts.Timeout,
		log:     log.With().Str("component", "notification_dispatcher").Logger(),
		m:       m,
	}

	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) Publish(ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "closed")
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev Event, reason string) {
	d.m.NotificationsLost.Inc()
	d.log.Warn().
		Str("kind", string(ev.Kind)).
		Int64("appointment_id", ev.AppointmentID).
		Str("reason", reason).
		Msg("notification dropped")
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.Publish(ctx, ev)
		cancel()

		if err != nil {
			d.m.NotificationsSent.WithLabelValues(s.Name(), "error").Inc()
			d.log.Error().Err(err).
				Str("sink", s.Name()).
				Str("kind", string(ev.Kind)).
				Int64("appointment_id", ev.AppointmentID).
				Msg("notification delivery failed")
			continue
		}
		d.m.NotificationsSent.WithLabelValues(s.Name(), "ok").Inc()
	}
}
