package tourstate

import (
	"strollgo/pkg/model"
)

// Snapshot is a consistent read of the whole store, as served to the UI.
type Snapshot struct {
	SessionID      string            `json:"session_id"`
	Status         model.Status      `json:"status"`
	Preferences    model.Preferences `json:"preferences"`
	Route          model.Route       `json:"route"`
	CurrentStop    *model.Stop       `json:"current_stop,omitempty"`
	Location       *model.LatLng     `json:"current_location,omitempty"`
	Narration      string            `json:"narration,omitempty"`
	AudioStopCount uint64            `json:"audio_stop_count"`
}

// Snapshot returns a copy of the full tour state under a single lock, so
// readers always see a consistent picture.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID:      s.sessionID,
		Status:         s.status,
		Preferences:    s.prefs,
		AudioStopCount: s.audioStopCount,
	}
	snap.Route = s.route
	snap.Route.Stops = append([]model.Stop(nil), s.route.Stops...)
	snap.Route.Path = nil // geometry is served separately, not in the snapshot

	if stop := s.route.CurrentStop(); stop != nil {
		cp := *stop
		snap.CurrentStop = &cp
	}
	if s.hasLocation {
		loc := s.location
		snap.Location = &loc
	}
	if s.narrationReady {
		snap.Narration = s.narration
	}
	return snap
}
