package backend

import (
	"github.com/google/uuid"

	"strollgo/pkg/model"
)

// NewLocalSessionID mints a session id when the backend could not assign one.
// The backend treats unknown ids as new eventual-consistent sessions, so a
// locally created tour still mirrors its transitions once connectivity returns.
func NewLocalSessionID() string {
	return "local-" + uuid.New().String()
}

// FallbackStops returns the built-in minimal route so a tour can always
// proceed when both route creation and the POI list are unreachable.
// Stops are in downtown Providence, matching the default start location.
func FallbackStops(theme string) []model.Stop {
	stops := []model.Stop{
		{
			ID:            "fallback-state-house",
			Name:          "Rhode Island State House",
			Address:       "82 Smith St, Providence, RI 02903",
			Coordinates:   model.LatLng{Lat: 41.8311, Lng: -71.4149},
			Category:      "landmark",
			Themes:        []string{"historical"},
			EstimatedTime: 10,
		},
		{
			ID:            "fallback-athenaeum",
			Name:          "Providence Athenaeum",
			Address:       "251 Benefit St, Providence, RI 02903",
			Coordinates:   model.LatLng{Lat: 41.8266, Lng: -71.4075},
			Category:      "library",
			Themes:        []string{"historical", "art", "ghost"},
			EstimatedTime: 8,
		},
		{
			ID:            "fallback-waterplace",
			Name:          "Waterplace Park",
			Address:       "1 Finance Way, Providence, RI 02903",
			Coordinates:   model.LatLng{Lat: 41.8273, Lng: -71.4144},
			Category:      "park",
			Themes:        []string{"art", "historical"},
			EstimatedTime: 8,
		},
	}

	// Prefer stops matching the theme, but never return an empty route.
	if theme != "" {
		matched := make([]model.Stop, 0, len(stops))
		for _, s := range stops {
			for _, t := range s.Themes {
				if t == theme {
					matched = append(matched, s)
					break
				}
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return stops
}
