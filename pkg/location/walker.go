package location

import (
	"context"
	"sync"
	"time"

	"strollgo/pkg/geo"
	"strollgo/pkg/model"
)

// Walker is the simulated position source for demo mode. On each tick it
// moves the current location a fixed fraction of the remaining distance
// toward the active stop (exponential approach), so it closes in fast at
// first and creeps over the arrival threshold at the end.
type Walker struct {
	sink       SampleSink
	activeStop func() *model.Stop
	lastKnown  func() (model.LatLng, bool)

	tick     time.Duration
	fraction float64
	origin   model.LatLng

	mu      sync.Mutex
	current model.LatLng
	seeded  bool
	stopCh  chan struct{}
	started bool
	wg      sync.WaitGroup
}

// WalkerConfig holds the walker's tuning knobs.
type WalkerConfig struct {
	Tick           time.Duration
	ApproachFactor float64
	DefaultOrigin  model.LatLng
}

// NewWalker creates a simulated walker. activeStop and lastKnown are read on
// every tick so the walker always chases the store's current target.
func NewWalker(cfg WalkerConfig, activeStop func() *model.Stop, lastKnown func() (model.LatLng, bool), sink SampleSink) *Walker {
	tick := cfg.Tick
	if tick <= 0 {
		tick = 2 * time.Second
	}
	fraction := cfg.ApproachFactor
	if fraction <= 0 || fraction > 1 {
		fraction = 0.1
	}
	return &Walker{
		sink:       sink,
		activeStop: activeStop,
		lastKnown:  lastKnown,
		tick:       tick,
		fraction:   fraction,
		origin:     cfg.DefaultOrigin,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the tick loop.
func (w *Walker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Walker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Step()
		}
	}
}

// Step performs one movement tick. Exported so tests and the demo fast-forward
// control can drive the walker without waiting on the timer.
func (w *Walker) Step() {
	ll, ok := w.advance()
	if !ok {
		return
	}
	w.sink(ll)
}

// advance computes the next position. Returns false when there is nothing to
// emit (no target with coordinates and already seeded).
func (w *Walker) advance() (model.LatLng, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.seeded {
		// Adopt the device's last fix if one exists, else seed the default origin.
		if ll, ok := w.lastKnown(); ok {
			w.current = ll
		} else {
			w.current = w.origin
		}
		w.seeded = true
		return w.current, true
	}

	stop := w.activeStop()
	if stop == nil || stop.Coordinates.IsZero() {
		// No target: hold position, nothing to emit.
		return model.LatLng{}, false
	}

	w.current = geo.StepToward(w.current, stop.Coordinates, w.fraction)
	return w.current, true
}

// Close stops the tick loop.
func (w *Walker) Close() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	select {
	case <-w.stopCh:
		// already closed
	default:
		close(w.stopCh)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}
