package api

import (
	"net/http"

	"strollgo/pkg/voice"
)

// VoiceHandler exposes the voice controller's state, manual retry, and the
// event relay the UI feeds recognizer callbacks into.
type VoiceHandler struct {
	ctrl  *voice.Controller
	relay *voice.RelayRecognizer
}

// NewVoiceHandler creates a VoiceHandler. relay may be nil when a native
// recognizer is wired instead.
func NewVoiceHandler(c *voice.Controller, relay *voice.RelayRecognizer) *VoiceHandler {
	return &VoiceHandler{ctrl: c, relay: relay}
}

// HandleStatus serves the controller state and last significant error.
func (h *VoiceHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"state":      string(h.ctrl.State()),
		"last_error": string(h.ctrl.LastError()),
	})
}

// HandleRetry clears an error block and restarts listening.
func (h *VoiceHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Retry()
	writeJSON(w, map[string]string{"state": string(h.ctrl.State())})
}

type voiceEvent struct {
	Type string `json:"type"` // interim | final | error | end
	Text string `json:"text,omitempty"`
	Code string `json:"code,omitempty"`
}

// HandleEvent accepts a relayed recognizer event from the UI.
func (h *VoiceHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if h.relay == nil {
		http.Error(w, "voice relay unavailable", http.StatusServiceUnavailable)
		return
	}

	var ev voiceEvent
	if !decodeJSON(w, r, &ev) {
		return
	}

	switch ev.Type {
	case "interim":
		h.relay.InjectInterim(ev.Text)
	case "final":
		h.relay.InjectFinal(ev.Text)
	case "error":
		h.relay.InjectError(voice.ErrorCode(ev.Code))
	case "end":
		h.relay.InjectEnd()
	default:
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"state": string(h.ctrl.State())})
}
