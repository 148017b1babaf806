package incidentapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/linnemanlabs/beacon/internal/event"
)

func (a *API) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res, err := a.svc.Ingest(r.Context(), &ev)
	if err != nil {
		if errors.Is(err, event.ErrMissingEventID) {
			respondError(w, http.StatusBadRequest, "event_id is required")
			return
		}
		a.logger.Error(r.Context(), err, "ingest failed", "event_id", ev.EventID)
		respondError(w, http.StatusInternalServerError, "ingest failed")
		return
	}

	respondJSON(w, http.StatusOK, res)
}
