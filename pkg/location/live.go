package location

import (
	"context"
	"log/slog"
	"sync"

	"strollgo/pkg/model"
)

// Live subscribes to device geolocation and forwards samples to the sink.
// Geolocation errors (permission denied, timeout) are logged and swallowed;
// the simulated walker is always available as a fallback, so positioning
// trouble must never surface as a user-facing failure.
type Live struct {
	geo  Geolocator
	sink SampleSink

	mu     sync.Mutex
	cancel func()
	closed bool
}

// NewLive creates a live provider over the given geolocator capability.
func NewLive(geo Geolocator, sink SampleSink) *Live {
	return &Live{geo: geo, sink: sink}
}

// Start subscribes to position updates.
func (l *Live) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.cancel != nil {
		return nil
	}

	cancel, err := l.geo.Watch(ctx,
		func(ll model.LatLng) {
			l.sink(ll)
		},
		func(err error) {
			slog.Warn("Location: geolocation error ignored", "error", err)
		},
	)
	if err != nil {
		// Subscription failure is also swallowed: the caller can switch to
		// the simulated walker.
		slog.Warn("Location: geolocation watch failed", "error", err)
		return nil
	}
	l.cancel = cancel
	return nil
}

// Close stops the subscription.
func (l *Live) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	return nil
}
