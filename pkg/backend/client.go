// Package backend is the JSON/HTTP client for the tour backend. Every call
// degrades gracefully: callers fall back to local defaults rather than block
// the state machine.
package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"

	"strollgo/pkg/model"
	"strollgo/pkg/request"
)

// Client talks to the tour backend.
type Client struct {
	baseURL string
	http    *request.Client
}

// New creates a backend client.
func New(baseURL string, httpClient *request.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
	}
}

// wireStop is the backend's stop encoding: coordinates as a [lat, lng] pair.
type wireStop struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Coordinates   []float64 `json:"coordinates"`
	Address       string    `json:"address"`
	Category      string    `json:"poi_type"`
	EstimatedTime int       `json:"estimated_time"`
	Themes        []string  `json:"themes"`
}

func (w *wireStop) toModel() model.Stop {
	s := model.Stop{
		ID:            w.ID,
		Name:          w.Name,
		Address:       w.Address,
		Category:      w.Category,
		EstimatedTime: w.EstimatedTime,
		Themes:        w.Themes,
	}
	if len(w.Coordinates) >= 2 {
		s.Coordinates = model.LatLng{Lat: w.Coordinates[0], Lng: w.Coordinates[1]}
	}
	return s
}

type createTourRequest struct {
	TourLength       int       `json:"tour_length"`
	Theme            string    `json:"theme"`
	SoundEffects     bool      `json:"sound_effects"`
	GuidePersonality string    `json:"guide_personality"`
	Interactive      bool      `json:"interactive"`
	StartLocation    []float64 `json:"start_location,omitempty"`
}

type createTourResponse struct {
	Success bool   `json:"success"`
	TourID  string `json:"tour_id"`
	Tour    struct {
		Route struct {
			Stops []wireStop `json:"stops"`
		} `json:"route"`
	} `json:"tour"`
}

// CreateTour asks the backend for a session id and a generated route.
func (c *Client) CreateTour(ctx context.Context, prefs model.Preferences, start *model.LatLng) (string, []model.Stop, error) {
	req := createTourRequest{
		TourLength:       prefs.TourLength,
		Theme:            prefs.Theme,
		SoundEffects:     prefs.SoundEffects,
		GuidePersonality: string(prefs.GuidePersonality),
		Interactive:      prefs.Interactive,
	}
	if start != nil {
		req.StartLocation = []float64{start.Lat, start.Lng}
	}

	var resp createTourResponse
	if err := c.postJSON(ctx, "/tour/create", req, &resp, ""); err != nil {
		return "", nil, err
	}
	if !resp.Success || resp.TourID == "" {
		return "", nil, fmt.Errorf("tour creation rejected by backend")
	}

	stops := make([]model.Stop, 0, len(resp.Tour.Route.Stops))
	for i := range resp.Tour.Route.Stops {
		stops = append(stops, resp.Tour.Route.Stops[i].toModel())
	}
	return resp.TourID, stops, nil
}

// Transition mirrors a local status transition. Fire-and-forget from the
// caller's perspective; the error is for logging only.
func (c *Client) Transition(ctx context.Context, tourID string, newStatus model.Status) error {
	body := map[string]string{"new_status": string(newStatus)}
	return c.postJSON(ctx, "/tour/"+url.PathEscape(tourID)+"/transition", body, nil, "")
}

// Advance mirrors a local stop advance.
func (c *Client) Advance(ctx context.Context, tourID string) error {
	return c.postJSON(ctx, "/tour/"+url.PathEscape(tourID)+"/advance", struct{}{}, nil, "")
}

// Directions is the walking guidance returned for a location update.
type Directions struct {
	DistanceMeters  float64     `json:"distance_meters"`
	DurationMinutes float64     `json:"duration_minutes"`
	Instruction     string      `json:"instruction"`
	Geometry        [][]float64 `json:"geometry,omitempty"` // [lng, lat] pairs to the active stop
}

type locationResponse struct {
	Success    bool        `json:"success"`
	Directions *Directions `json:"directions"`
}

// UpdateLocation mirrors a position sample and returns optional walking
// directions to the active stop.
func (c *Client) UpdateLocation(ctx context.Context, tourID string, ll model.LatLng) (*Directions, error) {
	body := map[string]float64{"lat": ll.Lat, "lng": ll.Lng}
	var resp locationResponse
	if err := c.postJSON(ctx, "/tour/"+url.PathEscape(tourID)+"/location", body, &resp, ""); err != nil {
		return nil, err
	}
	return resp.Directions, nil
}

// Narrate asks for narration text for the current status/stop. An empty text
// is a valid response (nothing to say).
func (c *Client) Narrate(ctx context.Context, tourID string) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	if err := c.postJSON(ctx, "/tour/"+url.PathEscape(tourID)+"/narrate", struct{}{}, &resp, ""); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Audio synthesizes narration audio for a text. Responses are cached by text
// hash so repeating a narration does not spend synthesis credits.
func (c *Client) Audio(ctx context.Context, tourID, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audio request: %w", err)
	}

	sum := sha256.Sum256([]byte(text))
	cacheKey := "audio:" + hex.EncodeToString(sum[:])

	data, err := c.http.PostWithCache(ctx, c.baseURL+"/tour/"+url.PathEscape(tourID)+"/audio",
		body, map[string]string{"Content-Type": "application/json"}, cacheKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	return data, nil
}

// Chat sends a user message and returns the guide's reply.
func (c *Client) Chat(ctx context.Context, tourID, message string) (string, error) {
	body := map[string]string{"message": message}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := c.postJSON(ctx, "/tour/"+url.PathEscape(tourID)+"/chat", body, &resp, ""); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// ProximityCheck asks the backend for a precise haversine arrival check.
func (c *Client) ProximityCheck(ctx context.Context, current, poi model.LatLng, thresholdMeters float64) (bool, error) {
	body := map[string]interface{}{
		"current_location": []float64{current.Lat, current.Lng},
		"poi_location":     []float64{poi.Lat, poi.Lng},
		"threshold":        thresholdMeters,
	}
	var resp struct {
		IsNear bool `json:"is_near"`
	}
	if err := c.postJSON(ctx, "/tour/proximity-check", body, &resp, ""); err != nil {
		return false, err
	}
	return resp.IsNear, nil
}

// ListPOIs fetches the fallback POI list, optionally filtered by theme.
// Responses are cached per theme.
func (c *Client) ListPOIs(ctx context.Context, theme string) ([]model.Stop, error) {
	u := c.baseURL + "/pois"
	if theme != "" {
		u += "?theme=" + url.QueryEscape(theme)
	}

	data, err := c.http.Get(ctx, u, "pois:"+theme)
	if err != nil {
		return nil, err
	}

	var resp struct {
		POIs []wireStop `json:"pois"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode poi list: %w", err)
	}

	stops := make([]model.Stop, 0, len(resp.POIs))
	for i := range resp.POIs {
		stops = append(stops, resp.POIs[i].toModel())
	}
	return stops, nil
}

// postJSON marshals body, posts it, and decodes the response into out (if non-nil).
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}, cacheKey string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	data, err := c.http.PostWithCache(ctx, c.baseURL+path, payload,
		map[string]string{"Content-Type": "application/json"}, cacheKey)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
