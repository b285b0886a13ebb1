package firealert

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlink/hearth-core/internal/feature"
	"github.com/hearthlink/hearth-core/internal/identity"
	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
)

// Query defaults for the alert log endpoint.
const (
	defaultLogWindow = 7 * 24 * time.Hour
	defaultLogLimit  = 100
	maxLogLimit      = 1000
)

// API is the request-facing half: it serves the owner's alarm history
// and forwards silence commands to the ingestion half over the exchange.
type API struct {
	repo     Repository
	exchange *feature.Exchange
	events   feature.Notifier
	peer     feature.PeerRef[feature.IngestionHalf]
	log      *logging.Logger
}

// Descriptor implements feature.APIHalf.
func (a *API) Descriptor() feature.Descriptor { return Desc() }

// BindPeer implements feature.APIHalf.
func (a *API) BindPeer(peer feature.IngestionHalf) { a.peer.Bind(peer) }

// PushAlert delivers an accepted alarm to live subscribers. Called by
// the paired ingestion half on its dispatch goroutine; the hub must not
// block.
func (a *API) PushAlert(event AlertEvent) {
	a.events.Notify(Name, "alert", event)
}

// Routes returns the fragment mounted under /api/v1/firealert.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/detectors", a.latestAlerts)
	r.Get("/detectors/{detectorID}/alerts", a.alertLog)
	r.Post("/panels/{deviceID}/silence", a.silence)
	return r
}

func (a *API) latestAlerts(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	detectors, err := a.repo.LatestAlerts(r.Context(), caller)
	if err != nil {
		a.log.Error("latest alerts query failed", "owner", caller, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to query detectors")
		return
	}
	feature.WriteJSON(w, http.StatusOK, map[string]any{"detectors": detectors, "count": len(detectors)})
}

func (a *API) alertLog(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	detectorID := chi.URLParam(r, "detectorID")
	from, to, limit, err := parseLogQuery(r)
	if err != nil {
		feature.WriteError(w, http.StatusBadRequest, feature.ErrCodeBadRequest, err.Error())
		return
	}

	owned, err := a.repo.HasDetector(r.Context(), caller, detectorID)
	if err != nil {
		a.log.Error("detector check failed", "owner", caller, "detector_id", detectorID, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to check detector")
		return
	}
	if !owned {
		feature.WriteError(w, http.StatusNotFound, feature.ErrCodeNotFound, "detector not found")
		return
	}

	alerts, err := a.repo.AlertLog(r.Context(), caller, detectorID, from, to, limit)
	if err != nil {
		a.log.Error("alert log query failed", "owner", caller, "detector_id", detectorID, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to query alerts")
		return
	}
	feature.WriteJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
		"from":   from,
		"to":     to,
	})
}

// silence forwards a silence command to the alarm panel and relays the
// publish outcome.
func (a *API) silence(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	resp, err := a.exchange.Send(r.Context(), feature.Request{
		Action:   "silence",
		DeviceID: deviceID,
		Caller:   caller,
	})
	switch {
	case errors.Is(err, feature.ErrRequestTimeout):
		feature.WriteError(w, http.StatusGatewayTimeout, feature.ErrCodeTimeout, "panel command timed out")
		return
	case errors.Is(err, feature.ErrExchangeClosed):
		feature.WriteError(w, http.StatusServiceUnavailable, feature.ErrCodeInternal, "feature is shutting down")
		return
	case err != nil:
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "command failed")
		return
	}
	feature.WriteJSON(w, resp.Status, resp)
}

func parseLogQuery(r *http.Request) (from, to time.Time, limit int64, err error) {
	now := time.Now().UTC()
	from, to = now.Add(-defaultLogWindow), now
	limit = defaultLogLimit

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, limit, errors.New("from must be RFC 3339")
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, limit, errors.New("to must be RFC 3339")
		}
	}
	if v := q.Get("limit"); v != "" {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || n < 1 {
			return from, to, limit, errors.New("limit must be a positive integer")
		}
		limit = min(n, maxLogLimit)
	}
	if !from.Before(to) {
		return from, to, limit, errors.New("from must precede to")
	}
	return from, to, limit, nil
}
