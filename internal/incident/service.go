package incident

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/events"
)

const defaultNotifyTimeout = 15 * time.Second

// IngestResult is the outcome of submitting one event.
type IngestResult struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Notifier is the best-effort external delivery contract (Slack, SMS, ...).
// It is invoked fire-and-forget after correlation commits; errors and panics
// are swallowed and must never affect ingestion.
type Notifier interface {
	Notify(ctx context.Context, in *Incident, ev *event.Event) error
}

// Options tunes correlation policy.
type Options struct {
	// ReopenOnFiring allows a firing event to move a RESOLVED incident back
	// to OPEN. The state-mirrors-latest-event rule is a policy choice, so it
	// stays configurable.
	ReopenOnFiring bool

	// NotifyTimeout bounds one best-effort notifier invocation.
	NotifyTimeout time.Duration
}

// Service owns ingestion and all incident mutation. Writers for the same
// incident key are serialized on sharded locks; different keys proceed in
// parallel. Reads go straight to the store and may run concurrently with
// ingestion.
type Service struct {
	store    Store
	bus      *events.Bus
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics

	reopenOnFiring bool
	notifyTimeout  time.Duration
	locks          keyLocks
}

// NewService creates the correlation service. bus and notifier may be nil;
// a nil logger falls back to Nop.
func NewService(store Store, bus *events.Bus, notifier Notifier, logger log.Logger, metrics *Metrics, opts Options) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	return &Service{
		store:          store,
		bus:            bus,
		notifier:       notifier,
		logger:         logger,
		metrics:        metrics,
		reopenOnFiring: opts.ReopenOnFiring,
		notifyTimeout:  opts.NotifyTimeout,
	}
}

// Ingest validates and stores one event, correlates it into its incident,
// and triggers the post-commit fan-out. Re-delivery of a known event_id is
// rejected idempotently with Accepted=false, not an error.
func (s *Service) Ingest(ctx context.Context, ev *event.Event) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		s.metrics.EventsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	// Events are immutable once stored, so normalize on a copy before the
	// append. A missing timestamp is stamped at receipt and flagged.
	evCopy := *ev
	stamped := false
	if evCopy.ObservedAt.IsZero() {
		evCopy.ObservedAt = time.Now().UTC()
		stamped = true
	}

	inserted, err := s.store.InsertEvent(ctx, &evCopy)
	if err != nil {
		s.metrics.EventsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if !inserted {
		s.metrics.EventsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info(ctx, "duplicate event delivery", "event_id", evCopy.EventID)
		return &IngestResult{
			Accepted: false,
			Message:  fmt.Sprintf("duplicate event_id %q: already processed", evCopy.EventID),
		}, nil
	}

	key := KeyFor(&evCopy)
	start := time.Now()

	unlock := s.locks.lock(key)
	in, created, reopened, resolved, err := s.correlate(ctx, key, &evCopy, stamped)
	unlock()
	if err != nil {
		s.metrics.EventsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	s.metrics.CorrelateDuration.Observe(time.Since(start).Seconds())
	s.metrics.EventsTotal.WithLabelValues("accepted").Inc()
	if created {
		s.metrics.IncidentsCreated.Inc()
	}
	if reopened {
		s.metrics.IncidentsReopened.Inc()
	}
	if resolved {
		s.metrics.IncidentsResolved.Inc()
	}

	s.logger.Info(ctx, "event correlated",
		"event_id", evCopy.EventID,
		"incident", key.String(),
		"status", in.Status,
		"event_count", in.EventCount,
		"created", created,
	)

	// Fan-out strictly after the aggregate commit.
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.IncidentUpdated,
			DedupeKey: key.DedupeKey,
			Namespace: key.Namespace,
			Service:   key.Service,
			State:     string(in.Status),
		})
	}
	s.dispatchNotify(ctx, in, &evCopy)

	msg := "event accepted"
	if created {
		msg = "incident created"
	}
	return &IngestResult{Accepted: true, Message: msg}, nil
}

// correlate applies one accepted event to its aggregate. Caller holds the
// key lock. Returns a snapshot of the committed aggregate.
func (s *Service) correlate(ctx context.Context, key Key, ev *event.Event, stamped bool) (in *Incident, created, reopened, resolved bool, err error) {
	in, ok, err := s.store.GetIncident(ctx, key)
	if err != nil {
		return nil, false, false, false, fmt.Errorf("get incident: %w", err)
	}

	if !ok {
		in = NewFromEvent(ulid.Make().String(), ev)
		created = true
	} else {
		prev := in.Status
		in.Apply(ev, s.reopenOnFiring)
		reopened = prev == StatusResolved && in.Status == StatusOpen
		resolved = prev == StatusOpen && in.Status == StatusResolved
	}
	if stamped {
		in.addFlag(FlagMissingTimestamp)
	}

	if err := s.store.PutIncident(ctx, in); err != nil {
		return nil, false, false, false, fmt.Errorf("put incident: %w", err)
	}
	return in.Clone(), created, reopened, resolved, nil
}

// dispatchNotify hands the committed aggregate to the external notifier in
// the background. Failure is logged and counted, never propagated.
func (s *Service) dispatchNotify(ctx context.Context, in *Incident, ev *event.Event) {
	if s.notifier == nil {
		return
	}

	nctx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.metrics.NotifyTotal.WithLabelValues("panic").Inc()
				s.logger.Warn(nctx, "notifier panicked", "panic", r, "incident", in.Key().String())
			}
		}()

		cctx, cancel := context.WithTimeout(nctx, s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(cctx, in, ev); err != nil {
			s.metrics.NotifyTotal.WithLabelValues("error").Inc()
			s.logger.Warn(cctx, "notification delivery failed", "error", err, "incident", in.Key().String())
			return
		}
		s.metrics.NotifyTotal.WithLabelValues("ok").Inc()
	}()
}
