// Package voice manages a restartable speech-recognition session with
// bounded-retry error handling and barge-in signaling.
package voice

// ErrorCode mirrors the platform recognizer's error vocabulary.
type ErrorCode string

// Recognizer error codes.
const (
	ErrNoSpeech   ErrorCode = "no-speech"
	ErrAborted    ErrorCode = "aborted"
	ErrNetwork    ErrorCode = "network"
	ErrNotAllowed ErrorCode = "not-allowed"
)

// Handlers are the callbacks a recognition session invokes. Platform sessions
// may call them from any goroutine; the controller serializes internally.
type Handlers struct {
	// OnInterim fires on each interim transcript.
	OnInterim func(text string)
	// OnFinal fires when the recognizer reports a finalized utterance.
	OnFinal func(text string)
	// OnError fires on a recognition error. The session still ends afterwards.
	OnError func(code ErrorCode)
	// OnEnd fires when the session ends, naturally or after an error.
	OnEnd func()
}

// Recognizer abstracts the platform speech recognizer as a narrow capability,
// so the controller is testable without a real microphone.
type Recognizer interface {
	// Start begins a recognition session. Platform sessions are not truly
	// continuous; OnEnd will fire eventually and the caller restarts.
	Start(h Handlers) (Session, error)
}

// Session is a live recognition session handle.
type Session interface {
	// Abort cancels the session. The platform reports it via OnError(aborted)
	// followed by OnEnd, or just OnEnd.
	Abort()
}
