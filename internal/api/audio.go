package api

import (
	"net/http"

	"strollgo/pkg/audio"
	"strollgo/pkg/tourstate"
)

// AudioHandler exposes playback state and control: interrupt, retry, volume.
type AudioHandler struct {
	store  *tourstate.Store
	player *audio.Player
	out    audio.Output
}

// NewAudioHandler creates an AudioHandler.
func NewAudioHandler(store *tourstate.Store, player *audio.Player, out audio.Output) *AudioHandler {
	return &AudioHandler{store: store, player: player, out: out}
}

// HandleStatus serves the playback coordinator state.
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"state":  string(h.player.State()),
		"volume": h.out.Volume(),
	}
	if err := h.player.LastError(); err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, resp)
}

// HandleStop fires the interrupt signal. Playback stops and any in-flight
// fetch is canceled within this call.
func (h *AudioHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	count := h.store.StopAudio()
	writeJSON(w, map[string]uint64{"audio_stop_count": count})
}

// HandleRetry refetches the last failed narration.
func (h *AudioHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.player.Retry(r.Context())
	writeJSON(w, map[string]string{"state": string(h.player.State())})
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

// HandleVolume sets playback volume (0.0 to 1.0).
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.out.SetVolume(req.Volume)
	writeJSON(w, map[string]float64{"volume": h.out.Volume()})
}
