// Package proximity decides whether the user has arrived at the active stop.
package proximity

import (
	"context"
	"log/slog"

	"strollgo/pkg/geo"
	"strollgo/pkg/model"
	"strollgo/pkg/tourstate"
	"strollgo/pkg/tracker"
)

// RemoteChecker is the precise haversine check served by the backend.
type RemoteChecker interface {
	ProximityCheck(ctx context.Context, current, poi model.LatLng, thresholdMeters float64) (bool, error)
}

// Detector consumes position samples and emits at most one "arrived" signal
// per approach. It is stateless: the guard is the store's status itself, so a
// later traveling phase re-arms detection naturally.
type Detector struct {
	store   *tourstate.Store
	remote  RemoteChecker
	tracker *tracker.Tracker

	thresholdMeters float64
	bboxDeg         float64
}

// New creates a Detector.
func New(store *tourstate.Store, remote RemoteChecker, tr *tracker.Tracker, thresholdMeters, bboxDeg float64) *Detector {
	if thresholdMeters <= 0 {
		thresholdMeters = 50
	}
	if bboxDeg <= 0 {
		bboxDeg = 0.0005
	}
	return &Detector{
		store:           store,
		remote:          remote,
		tracker:         tr,
		thresholdMeters: thresholdMeters,
		bboxDeg:         bboxDeg,
	}
}

// Check reports whether the sample means "arrived at the active stop".
// It only fires while the tour status is traveling; in any other status the
// sample is ignored, which makes repeated in-radius samples idempotent once
// the tour has moved to poi.
func (d *Detector) Check(ctx context.Context, ll model.LatLng) bool {
	if d.store.Status() != model.StatusTraveling {
		return false
	}

	stop := d.store.CurrentStop()
	if stop == nil || stop.Coordinates.IsZero() {
		return false
	}

	if d.remote != nil {
		near, err := d.remote.ProximityCheck(ctx, ll, stop.Coordinates, d.thresholdMeters)
		if err == nil {
			return near
		}
		slog.Warn("Proximity: remote check failed, using bounding box", "stop", stop.ID, "error", err)
		if d.tracker != nil {
			d.tracker.TrackFallback("proximity")
		}
	}

	return geo.ApproxNear(ll, stop.Coordinates, d.bboxDeg)
}
