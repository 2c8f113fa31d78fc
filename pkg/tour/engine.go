// Package tour drives tour progress: it owns the status state machine, tour
// creation with layered fallbacks, and the plumbing from position samples to
// arrival transitions and narration refreshes.
package tour

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"strollgo/pkg/backend"
	"strollgo/pkg/geo"
	"strollgo/pkg/model"
	"strollgo/pkg/proximity"
	"strollgo/pkg/tourstate"
)

// Trigger is a state machine input.
type Trigger string

// State machine triggers.
const (
	TriggerStart    Trigger = "start"
	TriggerArrived  Trigger = "arrived"
	TriggerSkip     Trigger = "skip"
	TriggerContinue Trigger = "continue"
	TriggerFinish   Trigger = "finish"
	TriggerReset    Trigger = "reset"
)

// Backend is the slice of the backend client the engine uses.
type Backend interface {
	CreateTour(ctx context.Context, prefs model.Preferences, start *model.LatLng) (string, []model.Stop, error)
	Transition(ctx context.Context, tourID string, newStatus model.Status) error
	Advance(ctx context.Context, tourID string) error
	UpdateLocation(ctx context.Context, tourID string, ll model.LatLng) (*backend.Directions, error)
	Narrate(ctx context.Context, tourID string) (string, error)
	Chat(ctx context.Context, tourID, message string) (string, error)
	ListPOIs(ctx context.Context, theme string) ([]model.Stop, error)
}

// Speaker is the audio coordinator surface the engine feeds narration into.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

// Engine applies triggers to the tour status and mirrors transitions to the
// backend. The local store is the source of truth; mirroring is best-effort
// and never rolls back a local transition.
type Engine struct {
	store    *tourstate.Store
	backend  Backend
	speaker  Speaker
	detector *proximity.Detector

	// mu serializes trigger application so concurrent signals (proximity,
	// manual buttons) see a consistent status.
	mu sync.Mutex
}

// New creates an Engine. speaker may be nil (narration is still stored).
func New(store *tourstate.Store, b Backend, speaker Speaker, detector *proximity.Detector) *Engine {
	return &Engine{
		store:    store,
		backend:  b,
		speaker:  speaker,
		detector: detector,
	}
}

// CreateTour builds a new tour session from the given preferences. Route
// creation degrades in layers: backend route, then the theme POI list, then
// the built-in minimal route, so a tour can always proceed.
func (e *Engine) CreateTour(ctx context.Context, prefs model.Preferences) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Reset()
	e.store.ReplacePreferences(prefs)

	var start *model.LatLng
	if ll, ok := e.store.Location(); ok {
		start = &ll
	}

	id, stops, err := e.backend.CreateTour(ctx, prefs, start)
	if err != nil {
		slog.Warn("Tour: route creation failed, trying POI list", "error", err)
		stops, err = e.backend.ListPOIs(ctx, prefs.Theme)
		if err != nil || len(stops) == 0 {
			slog.Warn("Tour: POI list unavailable, using built-in route", "error", err)
			stops = backend.FallbackStops(prefs.Theme)
		}
		id = backend.NewLocalSessionID()
	}

	e.store.SetSession(id)
	e.store.SetRoute(stops)
	slog.Info("Tour: session created", "session", id, "stops", len(stops))

	e.refreshNarration()
	return nil
}

// Apply feeds a trigger to the state machine. The transition function is
// total: an invalid trigger for the current status is a no-op. Returns the
// resulting status and whether it changed.
func (e *Engine) Apply(trig Trigger) (model.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := e.store.Status()

	switch {
	case trig == TriggerReset:
		e.store.StopAudio()
		e.store.Reset()
		slog.Info("Tour: reset")
		return model.StatusInitial, status != model.StatusInitial

	case status == model.StatusInitial && trig == TriggerStart:
		e.store.SetStatus(model.StatusTraveling)
		e.mirrorTransition(model.StatusTraveling)
		e.refreshNarration()
		return model.StatusTraveling, true

	case status == model.StatusTraveling && trig == TriggerArrived:
		e.store.SetStatus(model.StatusPOI)
		if stop := e.store.CurrentStop(); stop != nil {
			slog.Info("Tour: arrived at stop", "stop", stop.Name)
		}
		e.mirrorTransition(model.StatusPOI)
		e.refreshNarration()
		return model.StatusPOI, true

	case status == model.StatusTraveling && trig == TriggerSkip:
		e.advance()
		next := e.store.Status()
		if next == model.StatusComplete {
			e.mirrorTransition(model.StatusComplete)
		}
		e.refreshNarration()
		return next, next != status

	case status == model.StatusPOI && trig == TriggerContinue:
		e.advance()
		next := model.StatusTraveling
		if e.store.Status() == model.StatusComplete {
			// Continue past the last stop collapses into finish.
			next = model.StatusComplete
		} else {
			e.store.SetStatus(model.StatusTraveling)
		}
		e.mirrorTransition(next)
		e.refreshNarration()
		return next, true

	case status == model.StatusPOI && trig == TriggerFinish:
		e.store.SetStatus(model.StatusComplete)
		e.mirrorTransition(model.StatusComplete)
		e.refreshNarration()
		return model.StatusComplete, true
	}

	slog.Debug("Tour: trigger ignored", "status", status, "trigger", trig)
	return status, false
}

// GoToStop jumps the cursor to an arbitrary stop and resumes traveling.
// Out-of-range indices are a no-op.
func (e *Engine) GoToStop(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.GoToStop(i) {
		return false
	}
	e.store.SetStatus(model.StatusTraveling)
	e.mirrorTransition(model.StatusTraveling)
	e.refreshNarration()
	return true
}

// advance moves the stop cursor and mirrors it. The store forces status
// complete when the route is exhausted.
func (e *Engine) advance() {
	idx := e.store.AdvanceStop()
	slog.Debug("Tour: advanced stop cursor", "index", idx)

	id := e.store.SessionID()
	if id == "" {
		return
	}
	go func() {
		if err := e.backend.Advance(context.Background(), id); err != nil {
			slog.Warn("Tour: advance mirror failed", "error", err)
		}
	}()
}

// mirrorTransition reports a local status change to the backend,
// fire-and-forget.
func (e *Engine) mirrorTransition(st model.Status) {
	id := e.store.SessionID()
	if id == "" {
		return
	}
	go func() {
		if err := e.backend.Transition(context.Background(), id, st); err != nil {
			slog.Warn("Tour: transition mirror failed", "status", st, "error", err)
		}
	}()
}

// refreshNarration fetches narration for the current status/stop and hands it
// to the audio coordinator. Failures are logged; the state machine never
// blocks on narration.
func (e *Engine) refreshNarration() {
	id := e.store.SessionID()
	if id == "" {
		return
	}
	go func() {
		text, err := e.backend.Narrate(context.Background(), id)
		if err != nil {
			slog.Warn("Tour: narration fetch failed", "error", err)
			return
		}
		if text == "" {
			return
		}
		e.store.SetNarration(text)
		if e.speaker != nil {
			e.speaker.Speak(context.Background(), text)
		}
	}()
}

// HandleSample is the location SampleSink. It records the position, mirrors
// it to the backend for walking directions, and feeds the proximity detector.
func (e *Engine) HandleSample(ll model.LatLng) {
	e.store.UpdateLocation(ll)

	if id := e.store.SessionID(); id != "" {
		go func() {
			dir, err := e.backend.UpdateLocation(context.Background(), id, ll)
			if err != nil {
				slog.Debug("Tour: location mirror failed", "error", err)
				return
			}
			if dir != nil && len(dir.Geometry) > 0 {
				e.store.SetPath(geo.PathFromCoords(dir.Geometry))
			}
		}()
	}

	if e.detector != nil && e.detector.Check(context.Background(), ll) {
		e.Apply(TriggerArrived)
	}
}

// Chat sends a user message to the guide and speaks the reply. Used both by
// the HTTP surface and the pending-message pump.
func (e *Engine) Chat(ctx context.Context, message string) (string, error) {
	id := e.store.SessionID()
	if id == "" {
		return "", nil
	}
	reply, err := e.backend.Chat(ctx, id, message)
	if err != nil {
		return "", err
	}
	if reply != "" {
		e.store.SetNarration(reply)
		if e.speaker != nil {
			e.speaker.Speak(ctx, reply)
		}
	}
	return reply, nil
}

// Run pumps finalized voice utterances from the store into the chat flow
// until the context is canceled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := e.store.TakePendingMessage()
			if msg == nil {
				continue
			}
			if _, err := e.Chat(ctx, msg.Text); err != nil {
				slog.Warn("Tour: chat reply failed", "source", msg.Source, "error", err)
			}
		}
	}
}
