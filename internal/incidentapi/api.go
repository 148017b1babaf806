// Package incidentapi exposes the REST surface of the correlation engine:
// webhook ingestion plus the dashboard query endpoints.
package incidentapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

// IncidentService defines the business operations incidentapi needs.
type IncidentService interface {
	Ingest(ctx context.Context, ev *event.Event) (*incident.IngestResult, error)
	Overview(ctx context.Context) (*incident.Overview, error)
	ServiceRollups(ctx context.Context) ([]*incident.ServiceRollup, error)
	ListIncidents(ctx context.Context, f incident.Filter) ([]*incident.Incident, error)
	IncidentDetail(ctx context.Context, key incident.Key) (*incident.Detail, bool, error)
	GetEvent(ctx context.Context, eventID string) (*event.Event, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    IncidentService
}

// New creates a new API handler.
func New(logger log.Logger, svc IncidentService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("incident service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Post("/ingest/webhook", a.handleIngestEvent)
	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", a.handleOverview)
		r.Get("/incidents", a.handleListIncidents)
		r.Get("/incidents/{dedupeKey}", a.handleIncidentDetail)
		r.Get("/services", a.handleServices)
		r.Get("/events/{eventID}", a.handleGetEvent)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
