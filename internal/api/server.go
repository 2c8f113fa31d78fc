// Package api exposes the local control surface over HTTP: tour state and
// triggers, preferences, voice and audio control, and a websocket state
// stream for the UI.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"strollgo/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, tourH *TourHandler, prefsH *PrefsHandler, voiceH *VoiceHandler, audioH *AudioHandler, statsH *StatsHandler, streamH *StreamHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Tour Endpoints
	mux.HandleFunc("GET /api/tour", tourH.HandleSnapshot)
	mux.HandleFunc("GET /api/tour/path", tourH.HandlePath)
	mux.HandleFunc("POST /api/tour/create", tourH.HandleCreate)
	mux.HandleFunc("POST /api/tour/trigger", tourH.HandleTrigger)
	mux.HandleFunc("POST /api/tour/goto", tourH.HandleGoToStop)
	mux.HandleFunc("POST /api/tour/location", tourH.HandleLocation)
	mux.HandleFunc("POST /api/tour/chat", tourH.HandleChat)
	mux.HandleFunc("POST /api/tour/demo", tourH.HandleDemoMode)

	// 4. Preferences Endpoints
	mux.HandleFunc("/api/preferences", prefsH.HandlePreferences)

	// 5. Voice Endpoints
	if voiceH != nil {
		mux.HandleFunc("GET /api/voice/status", voiceH.HandleStatus)
		mux.HandleFunc("POST /api/voice/retry", voiceH.HandleRetry)
		mux.HandleFunc("POST /api/voice/event", voiceH.HandleEvent)
	}

	// 6. Audio Endpoints
	if audioH != nil {
		mux.HandleFunc("GET /api/audio/status", audioH.HandleStatus)
		mux.HandleFunc("POST /api/audio/stop", audioH.HandleStop)
		mux.HandleFunc("POST /api/audio/retry", audioH.HandleRetry)
		mux.HandleFunc("POST /api/audio/volume", audioH.HandleVolume)
	}

	// 7. Stats Endpoint
	mux.Handle("GET /api/stats", statsH)

	// 8. State Stream
	mux.HandleFunc("GET /api/stream", streamH.HandleStream)

	// 9. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}
