// Package tourstate holds the single shared record of tour progress.
// Every other component reads and mutates tour state exclusively through the
// Store; no component keeps a private duplicate. All mutations are synchronous
// and leave the store fully consistent after each call.
package tourstate

import (
	"sync"

	"github.com/paulmach/orb"

	"strollgo/pkg/model"
)

// Store is the tour state container. The zero value is not usable; use New.
type Store struct {
	mu sync.RWMutex

	sessionID   string
	prefs       model.Preferences
	route       model.Route
	status      model.Status
	location    model.LatLng
	hasLocation bool

	narration      string
	narrationReady bool

	// audioStopCount is a monotonically increasing interrupt signal. A counter
	// rather than a flag, so repeated interrupts in one tick are each observable.
	audioStopCount uint64
	onAudioStop    []func(count uint64)

	pending *model.ChatMessage
}

// New creates a Store with the given initial preferences and status `initial`.
func New(prefs model.Preferences) *Store {
	return &Store{
		prefs:  prefs,
		status: model.StatusInitial,
	}
}

// SetSession records the backend-assigned session id.
func (s *Store) SetSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
}

// SessionID returns the current session id ("" before creation).
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// SetPreferences merges a partial preference patch. The resulting preference
// set is always fully defined.
func (s *Store) SetPreferences(patch model.PreferencesPatch) model.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	patch.Apply(&s.prefs)
	return s.prefs
}

// ReplacePreferences swaps the whole preference record (tour creation).
func (s *Store) ReplacePreferences(p model.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// Preferences returns a copy of the current preferences.
func (s *Store) Preferences() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetRoute replaces the stop list and resets the cursor to 0.
func (s *Store) SetRoute(stops []model.Stop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = model.Route{Stops: append([]model.Stop(nil), stops...)}
}

// Route returns a copy of the route (stops and cursor).
func (s *Store) Route() model.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.route
	r.Stops = append([]model.Stop(nil), s.route.Stops...)
	r.Path = append(orb.LineString(nil), s.route.Path...)
	return r
}

// CurrentStop returns a copy of the active stop, or nil.
func (s *Store) CurrentStop() *model.Stop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stop := s.route.CurrentStop()
	if stop == nil {
		return nil
	}
	cp := *stop
	return &cp
}

// SetStatus overwrites the tour status. Transition legality is the state
// machine's concern (pkg/tour); the store only records.
func (s *Store) SetStatus(st model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// Status returns the current tour status.
func (s *Store) Status() model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdateLocation overwrites the latest known position. No history is kept.
func (s *Store) UpdateLocation(ll model.LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = ll
	s.hasLocation = true
}

// Location returns the latest position and whether one exists.
func (s *Store) Location() (model.LatLng, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location, s.hasLocation
}

// AdvanceStop increments the stop cursor. When the cursor reaches the route
// length the status is forced to complete. Returns the new cursor value.
func (s *Store) AdvanceStop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route.CurrentStopIndex < len(s.route.Stops) {
		s.route.CurrentStopIndex++
		s.route.Path = nil
	}
	if s.route.CurrentStopIndex >= len(s.route.Stops) {
		s.status = model.StatusComplete
	}
	return s.route.CurrentStopIndex
}

// GoToStop moves the cursor to an arbitrary stop. Out-of-range indices are a
// no-op; returns whether the jump happened.
func (s *Store) GoToStop(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.route.Stops) {
		return false
	}
	s.route.CurrentStopIndex = i
	s.route.Path = nil
	return true
}

// SetPath replaces the walking-path polyline to the active stop.
func (s *Store) SetPath(ls orb.LineString) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route.Path = ls
}

// SetNarration records the narration text the audio coordinator should speak.
func (s *Store) SetNarration(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narration = text
	s.narrationReady = text != ""
}

// Narration returns the current narration text and its ready flag.
func (s *Store) Narration() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.narration, s.narrationReady
}

// StopAudio increments the audio interrupt counter and notifies listeners
// synchronously. Returns the new counter value.
func (s *Store) StopAudio() uint64 {
	s.mu.Lock()
	s.audioStopCount++
	count := s.audioStopCount
	listeners := append([]func(uint64){}, s.onAudioStop...)
	s.mu.Unlock()

	// Listeners run outside the lock but within the same call, so the
	// interrupt takes effect in the same synchronous tick.
	for _, fn := range listeners {
		fn(count)
	}
	return count
}

// AudioStopCount returns the current interrupt counter value.
func (s *Store) AudioStopCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audioStopCount
}

// OnAudioStop registers a synchronous interrupt listener.
func (s *Store) OnAudioStop(fn func(count uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAudioStop = append(s.onAudioStop, fn)
}

// SetPendingMessage stages a finalized utterance for the chat collaborator.
// A newer message replaces an unconsumed one.
func (s *Store) SetPendingMessage(msg model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := msg
	s.pending = &cp
}

// TakePendingMessage returns and clears the staged message, or nil.
func (s *Store) TakePendingMessage() *model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.pending
	s.pending = nil
	return msg
}

// Reset returns the store to the initial state, keeping preferences.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = ""
	s.route = model.Route{}
	s.status = model.StatusInitial
	s.location = model.LatLng{}
	s.hasLocation = false
	s.narration = ""
	s.narrationReady = false
	s.pending = nil
	// audioStopCount is monotone for the process lifetime; listeners compare
	// against the last value they saw.
}
