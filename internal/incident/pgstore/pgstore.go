// Package pgstore provides a PostgreSQL implementation of incident.Store.
// Events are kept as full JSONB payloads keyed by event_id; aggregates live
// in their own table keyed by (dedupe_key, namespace, service).
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/beacon/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists events and incidents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool is owned by the
// caller (main closes it on shutdown).
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// InsertEvent appends the event; a previously seen event_id is rejected
// without error via ON CONFLICT DO NOTHING.
func (s *Store) InsertEvent(ctx context.Context, ev *event.Event) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.InsertEvent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `INSERT INTO alert_events (event_id, dedupe_key, namespace, service, observed_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.DedupeKey, ev.Service.Namespace, ev.Service.Name, ev.ObservedAt, payload,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("insert event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetEvent retrieves a stored event by event_id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*event.Event, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetEvent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM alert_events WHERE event_id = $1`, eventID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("select event: %w", err)
	}

	var ev event.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, false, fmt.Errorf("unmarshal event: %w", err)
	}
	return &ev, true, nil
}

// ListEventsByKey returns the events for one incident key in arrival order.
func (s *Store) ListEventsByKey(ctx context.Context, key incident.Key) ([]*event.Event, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListEventsByKey", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT payload FROM alert_events
		WHERE dedupe_key = $1 AND namespace = $2 AND service = $3
		ORDER BY received_at`,
		key.DedupeKey, key.Namespace, key.Service,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev event.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

const incidentColumns = `id, dedupe_key, namespace, service, status, current_severity, current_action,
	current_priority, auto, risk_score, reason_codes, first_observed_at, last_observed_at, event_count, quality_flags`

// GetIncident retrieves the aggregate for a key.
func (s *Store) GetIncident(ctx context.Context, key incident.Key) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE dedupe_key = $1 AND namespace = $2 AND service = $3`
	in, err := scanIncident(s.pool.QueryRow(ctx, query, key.DedupeKey, key.Namespace, key.Service))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return in, true, nil
}

// PutIncident creates or replaces the aggregate.
func (s *Store) PutIncident(ctx context.Context, in *incident.Incident) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	reasonCodes, err := json.Marshal(in.ReasonCodes)
	if err != nil {
		return fmt.Errorf("marshal reason_codes: %w", err)
	}
	qualityFlags, err := json.Marshal(in.QualityFlags)
	if err != nil {
		return fmt.Errorf("marshal quality_flags: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO incidents (
		id, dedupe_key, namespace, service, status, current_severity, current_action,
		current_priority, auto, risk_score, reason_codes, first_observed_at, last_observed_at, event_count, quality_flags
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (dedupe_key, namespace, service) DO UPDATE SET
		status            = EXCLUDED.status,
		current_severity  = EXCLUDED.current_severity,
		current_action    = EXCLUDED.current_action,
		current_priority  = EXCLUDED.current_priority,
		auto              = EXCLUDED.auto,
		risk_score        = EXCLUDED.risk_score,
		reason_codes      = EXCLUDED.reason_codes,
		last_observed_at  = EXCLUDED.last_observed_at,
		event_count       = EXCLUDED.event_count,
		quality_flags     = EXCLUDED.quality_flags`,
		in.ID, in.DedupeKey, in.Namespace, in.Service, string(in.Status), in.CurrentSeverity, in.CurrentAction,
		in.CurrentPriority, in.Auto, in.RiskScore, reasonCodes, in.FirstObservedAt, in.LastObservedAt, in.EventCount, qualityFlags,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert incident: %w", err)
	}
	return nil
}

// ListIncidents returns a snapshot of every aggregate.
func (s *Store) ListIncidents(ctx context.Context) ([]*incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListIncidents", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+incidentColumns+` FROM incidents`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("select incidents: %w", err)
	}
	defer rows.Close()

	var out []*incident.Incident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(row scanner) (*incident.Incident, error) {
	var (
		in                        incident.Incident
		status                    string
		reasonCodes, qualityFlags []byte
	)
	if err := row.Scan(
		&in.ID,
		&in.DedupeKey,
		&in.Namespace,
		&in.Service,
		&status,
		&in.CurrentSeverity,
		&in.CurrentAction,
		&in.CurrentPriority,
		&in.Auto,
		&in.RiskScore,
		&reasonCodes,
		&in.FirstObservedAt,
		&in.LastObservedAt,
		&in.EventCount,
		&qualityFlags,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	in.Status = incident.Status(status)
	_ = json.Unmarshal(reasonCodes, &in.ReasonCodes)
	_ = json.Unmarshal(qualityFlags, &in.QualityFlags)
	return &in, nil
}
