package devicestatus

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlink/hearth-core/internal/feature"
	"github.com/hearthlink/hearth-core/internal/identity"
	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
)

// Query defaults for the component log endpoint.
const (
	defaultLogWindow = 24 * time.Hour
	defaultLogLimit  = 100
	maxLogLimit      = 1000
)

// API is the request-facing half: it serves the owner's device data and
// forwards commands to the ingestion half over the exchange.
type API struct {
	repo     Repository
	exchange *feature.Exchange
	peer     feature.PeerRef[feature.IngestionHalf]
	log      *logging.Logger
}

// Descriptor implements feature.APIHalf.
func (a *API) Descriptor() feature.Descriptor { return Desc() }

// BindPeer implements feature.APIHalf.
func (a *API) BindPeer(peer feature.IngestionHalf) { a.peer.Bind(peer) }

// Routes returns the fragment mounted under /api/v1/devicestatus.
// All handlers require the auth middleware upstream.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/devices", a.listDevices)
	r.Post("/devices/connect", a.connectDevice)
	r.Get("/devices/{deviceID}/components/{componentID}/log", a.componentLog)
	r.Get("/devices/{deviceID}/components/{componentID}/latest", a.latestReading)
	r.Post("/devices/{deviceID}/identify", a.identify)
	return r
}

func (a *API) listDevices(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	devices, err := a.repo.ListDevices(r.Context(), caller)
	if err != nil {
		a.log.Error("listing devices failed", "owner", caller, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to list devices")
		return
	}
	feature.WriteJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// connectDevice provisions a device for the caller. Idempotent: a
// duplicate connect appends a connect event to the existing record and
// never creates a second device.
func (a *API) connectDevice(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	var body struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DeviceID == "" {
		feature.WriteError(w, http.StatusBadRequest, feature.ErrCodeBadRequest, "device_id is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	if err := a.repo.EnsureOwner(ctx, caller); err != nil {
		a.log.Error("connect failed", "owner", caller, "device_id", body.DeviceID, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to connect device")
		return
	}
	if err := a.repo.EnsureDevice(ctx, caller, body.DeviceID, now); err != nil {
		a.log.Error("connect failed", "owner", caller, "device_id", body.DeviceID, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to connect device")
		return
	}
	if err := a.repo.AppendConnectEvent(ctx, caller, body.DeviceID, now); err != nil {
		a.log.Error("connect event not logged", "owner", caller, "device_id", body.DeviceID, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to connect device")
		return
	}

	feature.WriteJSON(w, http.StatusOK, map[string]any{
		"device_id":    body.DeviceID,
		"connected_at": now,
	})
}

func (a *API) componentLog(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	componentID, err := strconv.Atoi(chi.URLParam(r, "componentID"))
	if err != nil {
		feature.WriteError(w, http.StatusBadRequest, feature.ErrCodeBadRequest, "component id must be numeric")
		return
	}

	from, to, limit, err := parseLogQuery(r)
	if err != nil {
		feature.WriteError(w, http.StatusBadRequest, feature.ErrCodeBadRequest, err.Error())
		return
	}

	readings, err := a.repo.ComponentLog(r.Context(), caller, deviceID, componentID, from, to, limit)
	if err != nil {
		a.log.Error("component log query failed",
			"owner", caller,
			"device_id", deviceID,
			"component_id", componentID,
			"error", err,
		)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to query log")
		return
	}
	feature.WriteJSON(w, http.StatusOK, map[string]any{
		"readings": readings,
		"count":    len(readings),
		"from":     from,
		"to":       to,
	})
}

func (a *API) latestReading(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	componentID, err := strconv.Atoi(chi.URLParam(r, "componentID"))
	if err != nil {
		feature.WriteError(w, http.StatusBadRequest, feature.ErrCodeBadRequest, "component id must be numeric")
		return
	}

	reading, err := a.repo.LatestReading(r.Context(), caller, deviceID, componentID)
	switch {
	case errors.Is(err, ErrComponentNotFound):
		feature.WriteError(w, http.StatusNotFound, feature.ErrCodeNotFound, "component not found")
		return
	case errors.Is(err, ErrNoReadings):
		feature.WriteError(w, http.StatusNotFound, feature.ErrCodeNotFound, "component has no readings")
		return
	case err != nil:
		a.log.Error("latest reading query failed",
			"owner", caller,
			"device_id", deviceID,
			"component_id", componentID,
			"error", err,
		)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to query latest reading")
		return
	}
	feature.WriteJSON(w, http.StatusOK, reading)
}

// identify forwards an identify command over the exchange and relays
// the ingestion half's publish outcome.
func (a *API) identify(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	owned, err := a.repo.HasDevice(r.Context(), caller, deviceID)
	if err != nil {
		a.log.Error("ownership check failed", "owner", caller, "device_id", deviceID, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to check device")
		return
	}
	if !owned {
		feature.WriteError(w, http.StatusNotFound, feature.ErrCodeNotFound, "device not found")
		return
	}

	resp, err := a.exchange.Send(r.Context(), feature.Request{
		Action:   "identify",
		DeviceID: deviceID,
		Caller:   caller,
	})
	switch {
	case errors.Is(err, feature.ErrRequestTimeout):
		feature.WriteError(w, http.StatusGatewayTimeout, feature.ErrCodeTimeout, "device command timed out")
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

// parseLogQuery extracts from/to/limit with defaults: the last 24h,
// capped at 100 readings.
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
