package api

import (
	"log/slog"
	"net/http"

	"strollgo/pkg/model"
	"strollgo/pkg/tourstate"
	"strollgo/pkg/voice"
)

// PrefsHandler serves and patches user preferences. A patch that toggles
// continuous listening also flips the voice controller.
type PrefsHandler struct {
	store *tourstate.Store
	voice *voice.Controller
}

// NewPrefsHandler creates a PrefsHandler. voice may be nil.
func NewPrefsHandler(store *tourstate.Store, vc *voice.Controller) *PrefsHandler {
	return &PrefsHandler{store: store, voice: vc}
}

// HandlePreferences serves GET (current preferences) and POST (partial patch).
func (h *PrefsHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.store.Preferences())

	case http.MethodPost:
		var patch model.PreferencesPatch
		if !decodeJSON(w, r, &patch) {
			return
		}

		prefs := h.store.SetPreferences(patch)
		slog.Info("API: preferences updated")

		if patch.ContinuousListening != nil && h.voice != nil {
			h.voice.SetEnabled(*patch.ContinuousListening)
		}
		writeJSON(w, prefs)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
