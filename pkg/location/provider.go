// Package location produces the stream of position samples driving the tour,
// either from device geolocation or from a simulated walker.
package location

import (
	"context"
	"log/slog"
	"sync"

	"strollgo/pkg/model"
)

// SampleSink receives each position sample. The engine wires it to the state
// store, the backend mirror, and the proximity detector.
type SampleSink func(model.LatLng)

// Provider is a source of position samples. Exactly one provider is active at
// a time.
type Provider interface {
	// Start begins producing samples until the context is canceled or Close
	// is called.
	Start(ctx context.Context) error
	// Close tears down the subscription/timer. Safe to call more than once.
	Close() error
}

// Geolocator abstracts callback-based device positioning so the live provider
// is testable without real hardware.
type Geolocator interface {
	// Watch subscribes to position updates. The returned cancel function
	// stops the subscription.
	Watch(ctx context.Context, sample func(model.LatLng), fail func(error)) (cancel func(), err error)
}

// Switcher holds the active provider and swaps variants without dual-firing:
// the previous provider is fully closed before the next one starts.
type Switcher struct {
	mu      sync.Mutex
	active  Provider
	makeSim func() Provider
	makeLiv func() Provider
}

// NewSwitcher creates a Switcher with factories for both variants.
func NewSwitcher(makeLive, makeSim func() Provider) *Switcher {
	return &Switcher{
		makeSim: makeSim,
		makeLiv: makeLive,
	}
}

// Use activates the variant selected by demoMode, tearing down the previous
// provider first.
func (s *Switcher) Use(ctx context.Context, demoMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		if err := s.active.Close(); err != nil {
			slog.Warn("Location: previous provider close failed", "error", err)
		}
		s.active = nil
	}

	if demoMode {
		s.active = s.makeSim()
	} else {
		s.active = s.makeLiv()
	}
	return s.active.Start(ctx)
}

// Close tears down the active provider.
func (s *Switcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil
	}
	err := s.active.Close()
	s.active = nil
	return err
}
