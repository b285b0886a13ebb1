package remotecontrol

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlink/hearth-core/internal/feature"
	"github.com/hearthlink/hearth-core/internal/identity"
	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
)

// API is the request-facing half: it forwards control actions to the
// ingestion half and serves last-acknowledged device state.
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

// Routes returns the fragment mounted under /api/v1/remotecontrol.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/devices/{deviceID}/state", a.deviceState)
	r.Post("/devices/{deviceID}/components/{componentID}/command", a.command)
	return r
}

func (a *API) deviceState(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	components, err := a.repo.DeviceState(r.Context(), caller, deviceID)
	if err != nil {
		a.log.Error("device state query failed", "owner", caller, "device_id", deviceID, "error", err)
		feature.WriteError(w, http.StatusInternalServerError, feature.ErrCodeInternal, "failed to query device state")
		return
	}
	feature.WriteJSON(w, http.StatusOK, map[string]any{
		"device_id":  deviceID,
		"components": components,
	})
}

// command forwards a control action over the exchange. The response
// reflects the publish outcome, not device execution; callers observe
// execution through the acknowledged state.
func (a *API) command(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		feature.WriteError(w, http.StatusUnauthorized, feature.ErrCodeUnauthorized, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	componentID := chi.URLParam(r, "componentID")
	if _, err := strconv.Atoi(componentID); err != nil {
		feature.WriteError(w, http.StatusBadRequest, feature.ErrCodeBadRequest, "component id must be numeric")
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Action == "" {
		feature.WriteError(w, http.StatusBadRequest, feature.ErrCodeBadRequest, "action is required")
		return
	}

	resp, err := a.exchange.Send(r.Context(), feature.Request{
		Action:      body.Action,
		DeviceID:    deviceID,
		ComponentID: componentID,
		Caller:      caller,
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
