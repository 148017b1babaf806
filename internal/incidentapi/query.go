package incidentapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/beacon/internal/incident"
)

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := a.svc.Overview(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "overview failed")
		respondError(w, http.StatusInternalServerError, "overview failed")
		return
	}
	respondJSON(w, http.StatusOK, ov)
}

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := incident.Filter{
		Status:    q.Get("status"),
		Severity:  q.Get("severity"),
		Namespace: q.Get("namespace"),
		Service:   q.Get("service"),
		Priority:  q.Get("priority"),
	}
	if raw := q.Get("auto"); raw != "" {
		auto, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "auto must be a boolean")
			return
		}
		f.Auto = &auto
	}

	list, err := a.svc.ListIncidents(r.Context(), f)
	if err != nil {
		a.logger.Error(r.Context(), err, "list incidents failed")
		respondError(w, http.StatusInternalServerError, "list incidents failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"incidents": list,
		"total":     len(list),
	})
}

func (a *API) handleIncidentDetail(w http.ResponseWriter, r *http.Request) {
	key := incident.Key{
		DedupeKey: chi.URLParam(r, "dedupeKey"),
		Namespace: r.URL.Query().Get("namespace"),
		Service:   r.URL.Query().Get("service"),
	}
	if key.Namespace == "" || key.Service == "" {
		respondError(w, http.StatusBadRequest, "namespace and service query params are required")
		return
	}

	detail, ok, err := a.svc.IncidentDetail(r.Context(), key)
	if err != nil {
		a.logger.Error(r.Context(), err, "incident detail failed", "dedupe_key", key.DedupeKey)
		respondError(w, http.StatusInternalServerError, "incident detail failed")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "incident not found")
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

func (a *API) handleServices(w http.ResponseWriter, r *http.Request) {
	rollups, err := a.svc.ServiceRollups(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "service rollups failed")
		respondError(w, http.StatusInternalServerError, "service rollups failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"services": rollups,
		"total":    len(rollups),
	})
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	ev, ok, err := a.svc.GetEvent(r.Context(), eventID)
	if err != nil {
		a.logger.Error(r.Context(), err, "get event failed", "event_id", eventID)
		respondError(w, http.StatusInternalServerError, "get event failed")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	respondJSON(w, http.StatusOK, ev)
}
