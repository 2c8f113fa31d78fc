package tour

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"strollgo/pkg/backend"
	"strollgo/pkg/model"
	"strollgo/pkg/tourstate"
)

type fakeBackend struct {
	mu          sync.Mutex
	createErr   error
	poisErr     error
	pois        []model.Stop
	narration   string
	chatReply   string
	chatErr     error
	transitions []model.Status
	advances    int
}

func (f *fakeBackend) CreateTour(ctx context.Context, prefs model.Preferences, start *model.LatLng) (string, []model.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", nil, f.createErr
	}
	return "backend-session", []model.Stop{
		{ID: "s1", Name: "First", Coordinates: model.LatLng{Lat: 41.83, Lng: -71.41}},
		{ID: "s2", Name: "Second", Coordinates: model.LatLng{Lat: 41.82, Lng: -71.40}},
	}, nil
}

func (f *fakeBackend) Transition(ctx context.Context, tourID string, st model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, st)
	return nil
}

func (f *fakeBackend) Advance(ctx context.Context, tourID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advances++
	return nil
}

func (f *fakeBackend) UpdateLocation(ctx context.Context, tourID string, ll model.LatLng) (*backend.Directions, error) {
	return nil, nil
}

func (f *fakeBackend) Narrate(ctx context.Context, tourID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.narration, nil
}

func (f *fakeBackend) Chat(ctx context.Context, tourID, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatReply, f.chatErr
}

func (f *fakeBackend) ListPOIs(ctx context.Context, theme string) ([]model.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pois, f.poisErr
}

func newTestEngine(t *testing.T) (*Engine, *fakeBackend, *tourstate.Store) {
	t.Helper()
	store := tourstate.New(model.DefaultPreferences())
	fb := &fakeBackend{narration: "a story"}
	return New(store, fb, nil, nil), fb, store
}

func create(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.CreateTour(context.Background(), model.DefaultPreferences()); err != nil {
		t.Fatalf("CreateTour failed: %v", err)
	}
}

func TestEngine_CreateTourBackendRoute(t *testing.T) {
	e, _, store := newTestEngine(t)
	create(t, e)

	if store.SessionID() != "backend-session" {
		t.Errorf("expected backend session id, got %s", store.SessionID())
	}
	if len(store.Route().Stops) != 2 {
		t.Errorf("expected 2 stops, got %d", len(store.Route().Stops))
	}
	if store.Status() != model.StatusInitial {
		t.Errorf("a new tour starts in initial, got %s", store.Status())
	}
}

func TestEngine_CreateTourPOIFallback(t *testing.T) {
	e, fb, store := newTestEngine(t)
	fb.createErr = errors.New("route generation down")
	fb.pois = []model.Stop{{ID: "p1", Name: "Fallback POI"}}

	create(t, e)

	if len(store.Route().Stops) != 1 || store.Route().Stops[0].ID != "p1" {
		t.Errorf("expected POI-list route, got %+v", store.Route().Stops)
	}
	if !strings.HasPrefix(store.SessionID(), "local-") {
		t.Errorf("expected locally minted session id, got %s", store.SessionID())
	}
}

func TestEngine_CreateTourBuiltinFallback(t *testing.T) {
	e, fb, store := newTestEngine(t)
	fb.createErr = errors.New("route generation down")
	fb.poisErr = errors.New("poi list down")

	create(t, e)

	if len(store.Route().Stops) == 0 {
		t.Fatal("the built-in route must never be empty")
	}
	if !strings.HasPrefix(store.SessionID(), "local-") {
		t.Errorf("expected locally minted session id, got %s", store.SessionID())
	}
}

func TestEngine_HappyPath(t *testing.T) {
	e, _, store := newTestEngine(t)
	create(t, e)

	if st, changed := e.Apply(TriggerStart); st != model.StatusTraveling || !changed {
		t.Fatalf("start: got %s changed=%v", st, changed)
	}
	if st, _ := e.Apply(TriggerArrived); st != model.StatusPOI {
		t.Fatalf("arrived: got %s", st)
	}
	if st, _ := e.Apply(TriggerContinue); st != model.StatusTraveling {
		t.Fatalf("continue: got %s", st)
	}
	if stop := store.CurrentStop(); stop == nil || stop.ID != "s2" {
		t.Fatalf("expected cursor on s2, got %+v", stop)
	}
	if st, _ := e.Apply(TriggerArrived); st != model.StatusPOI {
		t.Fatalf("second arrival: got %s", st)
	}
	if st, _ := e.Apply(TriggerFinish); st != model.StatusComplete {
		t.Fatalf("finish: got %s", st)
	}
}

func TestEngine_InvalidTriggersAreNoOps(t *testing.T) {
	e, _, store := newTestEngine(t)
	create(t, e)

	// Triggers that are invalid in initial.
	for _, trig := range []Trigger{TriggerArrived, TriggerSkip, TriggerContinue, TriggerFinish} {
		if st, changed := e.Apply(trig); changed || st != model.StatusInitial {
			t.Errorf("trigger %s in initial: got %s changed=%v", trig, st, changed)
		}
	}

	e.Apply(TriggerStart)
	// start again while traveling is a no-op.
	if st, changed := e.Apply(TriggerStart); changed || st != model.StatusTraveling {
		t.Errorf("start while traveling: got %s changed=%v", st, changed)
	}
	// finish while traveling is a no-op.
	if _, changed := e.Apply(TriggerFinish); changed {
		t.Error("finish while traveling must be a no-op")
	}

	// Unknown triggers never panic or change state.
	if st, changed := e.Apply(Trigger("bogus")); changed || st != model.StatusTraveling {
		t.Errorf("bogus trigger: got %s changed=%v", st, changed)
	}
	if store.Status() != model.StatusTraveling {
		t.Errorf("state leaked: %s", store.Status())
	}
}

func TestEngine_SkipThroughRoute(t *testing.T) {
	e, _, store := newTestEngine(t)
	create(t, e)
	e.Apply(TriggerStart)

	if st, _ := e.Apply(TriggerSkip); st != model.StatusTraveling {
		t.Fatalf("skip with stops remaining: got %s", st)
	}
	// Skipping the last stop exhausts the route and forces complete.
	if st, _ := e.Apply(TriggerSkip); st != model.StatusComplete {
		t.Fatalf("skip at last stop: got %s", st)
	}
	route := store.Route()
	if !route.Exhausted() {
		t.Error("route must be exhausted")
	}
}

func TestEngine_ContinueAtLastStopCompletes(t *testing.T) {
	e, _, _ := newTestEngine(t)
	create(t, e)
	e.Apply(TriggerStart)
	e.Apply(TriggerArrived)
	e.Apply(TriggerContinue)
	e.Apply(TriggerArrived)

	// No next stop: continue collapses into finish.
	if st, _ := e.Apply(TriggerContinue); st != model.StatusComplete {
		t.Fatalf("continue at last stop: got %s", st)
	}
}

func TestEngine_ResetFromAnywhere(t *testing.T) {
	e, _, store := newTestEngine(t)
	create(t, e)
	theme := "ghost"
	store.SetPreferences(model.PreferencesPatch{Theme: &theme})
	e.Apply(TriggerStart)
	e.Apply(TriggerArrived)

	if st, _ := e.Apply(TriggerReset); st != model.StatusInitial {
		t.Fatalf("reset: got %s", st)
	}
	if len(store.Route().Stops) != 0 {
		t.Error("reset must clear the route")
	}
	if store.Preferences().Theme != "ghost" {
		t.Error("reset must keep preferences")
	}
}

func TestEngine_MirrorsTransitions(t *testing.T) {
	e, fb, _ := newTestEngine(t)
	create(t, e)
	e.Apply(TriggerStart)
	e.Apply(TriggerArrived)

	// Mirroring is fire-and-forget; give the goroutines a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fb.mu.Lock()
		n := len(fb.transitions)
		fb.mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.transitions) < 2 {
		t.Fatalf("expected mirrored transitions, got %v", fb.transitions)
	}
}

func TestEngine_GoToStop(t *testing.T) {
	e, _, store := newTestEngine(t)
	create(t, e)
	e.Apply(TriggerStart)

	if e.GoToStop(7) {
		t.Error("out-of-range jump must fail")
	}
	if !e.GoToStop(1) {
		t.Fatal("in-range jump must succeed")
	}
	if store.Status() != model.StatusTraveling {
		t.Errorf("jump must resume traveling, got %s", store.Status())
	}
	if stop := store.CurrentStop(); stop == nil || stop.ID != "s2" {
		t.Errorf("expected cursor on s2, got %+v", stop)
	}
}

func TestEngine_ChatStoresReply(t *testing.T) {
	e, fb, store := newTestEngine(t)
	fb.mu.Lock()
	fb.chatReply = "the athenaeum opened in 1838"
	// Keep the async narration refresh from racing the chat reply.
	fb.narration = ""
	fb.mu.Unlock()
	create(t, e)

	reply, err := e.Chat(context.Background(), "when did it open?")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if reply != "the athenaeum opened in 1838" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if text, ok := store.Narration(); !ok || text != reply {
		t.Errorf("reply must become the current narration, got %q", text)
	}
}
