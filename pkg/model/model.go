package model

import (
	"github.com/paulmach/orb"
)

// Status represents the tour progress phase.
type Status string

// Tour statuses. The progression is initial -> traveling -> poi -> ... -> complete.
const (
	StatusInitial   Status = "initial"
	StatusTraveling Status = "traveling"
	StatusPOI       Status = "poi"
	StatusComplete  Status = "complete"
)

// Personality is the guide's narration persona.
type Personality string

// Guide personalities.
const (
	PersonalityFunny    Personality = "funny"
	PersonalitySerious  Personality = "serious"
	PersonalityDramatic Personality = "dramatic"
	PersonalityFriendly Personality = "friendly"
)

// LatLng is a geographic coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinate is unset.
// (0, 0) is in the Gulf of Guinea; no tour stop lives there.
func (l LatLng) IsZero() bool {
	return l.Lat == 0 && l.Lng == 0
}

// Preferences holds the user's tour preferences.
// A Preferences value is always fully defined; partial updates go through
// PreferencesPatch.
type Preferences struct {
	TourLength          int         `json:"tour_length"` // minutes
	Theme               string      `json:"theme"`
	SoundEffects        bool        `json:"sound_effects"`
	GuidePersonality    Personality `json:"guide_personality"`
	Interactive         bool        `json:"interactive"`
	TTSEnabled          bool        `json:"tts_enabled"`
	ContinuousListening bool        `json:"continuous_listening"`
}

// DefaultPreferences returns the preference set used when the user skips the wizard.
func DefaultPreferences() Preferences {
	return Preferences{
		TourLength:       60,
		Theme:            "historical",
		SoundEffects:     true,
		GuidePersonality: PersonalityFriendly,
		Interactive:      true,
		TTSEnabled:       true,
	}
}

// PreferencesPatch is a partial preference update. Nil fields are left untouched.
type PreferencesPatch struct {
	TourLength          *int         `json:"tour_length,omitempty"`
	Theme               *string      `json:"theme,omitempty"`
	SoundEffects        *bool        `json:"sound_effects,omitempty"`
	GuidePersonality    *Personality `json:"guide_personality,omitempty"`
	Interactive         *bool        `json:"interactive,omitempty"`
	TTSEnabled          *bool        `json:"tts_enabled,omitempty"`
	ContinuousListening *bool        `json:"continuous_listening,omitempty"`
}

// Apply merges the patch into p.
func (patch *PreferencesPatch) Apply(p *Preferences) {
	if patch.TourLength != nil {
		p.TourLength = *patch.TourLength
	}
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.SoundEffects != nil {
		p.SoundEffects = *patch.SoundEffects
	}
	if patch.GuidePersonality != nil {
		p.GuidePersonality = *patch.GuidePersonality
	}
	if patch.Interactive != nil {
		p.Interactive = *patch.Interactive
	}
	if patch.TTSEnabled != nil {
		p.TTSEnabled = *patch.TTSEnabled
	}
	if patch.ContinuousListening != nil {
		p.ContinuousListening = *patch.ContinuousListening
	}
}

// Stop is a point of interest on the tour route.
// Immutable once the route is set, except full replacement of the stop list.
type Stop struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Coordinates   LatLng   `json:"coordinates"`
	Category      string   `json:"poi_type"`
	Themes        []string `json:"themes"`
	EstimatedTime int      `json:"estimated_time"` // dwell time in minutes
}

// Route is an ordered sequence of stops plus the visit cursor.
// Invariant: 0 <= CurrentStopIndex <= len(Stops); index == len(Stops) means
// the route is exhausted.
type Route struct {
	Stops            []Stop `json:"stops"`
	CurrentStopIndex int    `json:"current_stop_index"`

	// Path is the decoded walking-path polyline for the segment to the
	// active stop, refreshed from backend location updates. May be empty.
	Path orb.LineString `json:"-"`
}

// CurrentStop returns the active stop, or nil when the route is empty or exhausted.
func (r *Route) CurrentStop() *Stop {
	if r.CurrentStopIndex < 0 || r.CurrentStopIndex >= len(r.Stops) {
		return nil
	}
	return &r.Stops[r.CurrentStopIndex]
}

// NextStop returns the stop after the active one, or nil.
func (r *Route) NextStop() *Stop {
	next := r.CurrentStopIndex + 1
	if next >= len(r.Stops) {
		return nil
	}
	return &r.Stops[next]
}

// Exhausted reports whether the cursor has moved past the last stop.
func (r *Route) Exhausted() bool {
	return r.CurrentStopIndex >= len(r.Stops)
}

// Chat message sources.
const (
	SourceVoice = "voice"
	SourceText  = "text"
)

// ChatMessage is a finalized user utterance (voice or text) waiting for the
// chat collaborator.
type ChatMessage struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}
