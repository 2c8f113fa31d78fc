package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"strollgo/pkg/location"
	"strollgo/pkg/model"
	"strollgo/pkg/tour"
	"strollgo/pkg/tourstate"
)

// TourHandler serves tour state and accepts state machine triggers.
type TourHandler struct {
	store    *tourstate.Store
	engine   *tour.Engine
	switcher *location.Switcher
	// appCtx outlives individual requests; the provider started by a demo
	// switch must not die with the request that triggered it.
	appCtx context.Context
}

// NewTourHandler creates a TourHandler. switcher may be nil when location
// sources are managed elsewhere (tests).
func NewTourHandler(appCtx context.Context, store *tourstate.Store, engine *tour.Engine, switcher *location.Switcher) *TourHandler {
	return &TourHandler{store: store, engine: engine, switcher: switcher, appCtx: appCtx}
}

// HandleSnapshot serves the full tour state.
func (h *TourHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.Snapshot())
}

// HandlePath serves the walking-path polyline to the active stop as GeoJSON.
func (h *TourHandler) HandlePath(w http.ResponseWriter, r *http.Request) {
	route := h.store.Route()
	if len(route.Path) == 0 {
		writeJSON(w, map[string]any{"geometry": nil})
		return
	}
	writeJSON(w, map[string]any{"geometry": geojson.NewGeometry(route.Path)})
}

type createRequest struct {
	Preferences model.PreferencesPatch `json:"preferences"`
}

// HandleCreate builds a new tour session. The request carries a partial
// preference patch applied over the defaults.
func (h *TourHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs := model.DefaultPreferences()
	req.Preferences.Apply(&prefs)

	if err := h.engine.CreateTour(r.Context(), prefs); err != nil {
		slog.Error("API: tour creation failed", "error", err)
		http.Error(w, "tour creation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.store.Snapshot())
}

type triggerRequest struct {
	Trigger string `json:"trigger"`
}

// HandleTrigger feeds a trigger to the state machine. Invalid triggers for
// the current status are no-ops, reported via the `changed` field.
func (h *TourHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, changed := h.engine.Apply(tour.Trigger(req.Trigger))
	writeJSON(w, map[string]any{"status": status, "changed": changed})
}

type gotoRequest struct {
	Index int `json:"index"`
}

// HandleGoToStop jumps the route cursor to an arbitrary stop.
func (h *TourHandler) HandleGoToStop(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ok := h.engine.GoToStop(req.Index)
	if !ok {
		http.Error(w, "stop index out of range", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"status": h.store.Status()})
}

// HandleLocation accepts a pushed position sample (the browser's geolocation
// relays through here in live mode).
func (h *TourHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	var ll model.LatLng
	if !decodeJSON(w, r, &ll) {
		return
	}

	h.engine.HandleSample(ll)
	writeJSON(w, map[string]any{"status": h.store.Status()})
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleChat forwards a typed user message to the guide.
func (h *TourHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		http.Error(w, "empty message", http.StatusBadRequest)
		return
	}

	reply, err := h.engine.Chat(r.Context(), req.Message)
	if err != nil {
		slog.Warn("API: chat failed", "error", err)
		http.Error(w, "chat unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"reply": reply})
}

type demoRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleDemoMode switches between the simulated walker and live positioning.
func (h *TourHandler) HandleDemoMode(w http.ResponseWriter, r *http.Request) {
	var req demoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if h.switcher == nil {
		http.Error(w, "location source switching unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := h.switcher.Use(h.appCtx, req.Enabled); err != nil {
		slog.Error("API: location source switch failed", "demo", req.Enabled, "error", err)
		http.Error(w, "location source switch failed", http.StatusInternalServerError)
		return
	}
	slog.Info("API: location source switched", "demo", req.Enabled)
	writeJSON(w, map[string]bool{"demo_mode": req.Enabled})
}
