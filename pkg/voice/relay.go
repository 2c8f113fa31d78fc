package voice

import (
	"errors"
	"sync"
)

// ErrSessionActive is returned by Start while a relayed session is running.
var ErrSessionActive = errors.New("voice: recognition session already active")

// RelayRecognizer bridges recognition events produced outside the process
// into the controller: the UI runs the platform recognizer and relays each
// interim, final, error and end event through the HTTP surface, which calls
// the Inject methods.
type RelayRecognizer struct {
	mu     sync.Mutex
	h      Handlers
	active bool
}

// NewRelayRecognizer creates a RelayRecognizer.
func NewRelayRecognizer() *RelayRecognizer {
	return &RelayRecognizer{}
}

// Start implements Recognizer.
func (r *RelayRecognizer) Start(h Handlers) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil, ErrSessionActive
	}
	r.h = h
	r.active = true
	return &relaySession{r: r}, nil
}

// take returns the current handlers, optionally ending the session first.
func (r *RelayRecognizer) take(end bool) (Handlers, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return Handlers{}, false
	}
	h := r.h
	if end {
		r.active = false
		r.h = Handlers{}
	}
	return h, true
}

// InjectInterim relays an interim transcript.
func (r *RelayRecognizer) InjectInterim(text string) {
	if h, ok := r.take(false); ok && h.OnInterim != nil {
		h.OnInterim(text)
	}
}

// InjectFinal relays a finalized utterance.
func (r *RelayRecognizer) InjectFinal(text string) {
	if h, ok := r.take(false); ok && h.OnFinal != nil {
		h.OnFinal(text)
	}
}

// InjectError relays a recognition error. The platform still ends the session
// afterwards, via InjectEnd.
func (r *RelayRecognizer) InjectError(code ErrorCode) {
	if h, ok := r.take(false); ok && h.OnError != nil {
		h.OnError(code)
	}
}

// InjectEnd relays session end. The session is released before the handler
// runs, so a synchronous restart from the end handler can start a new one.
func (r *RelayRecognizer) InjectEnd() {
	if h, ok := r.take(true); ok && h.OnEnd != nil {
		h.OnEnd()
	}
}

type relaySession struct {
	r *RelayRecognizer
}

// Abort implements Session. It releases the session and reports it as ended.
func (s *relaySession) Abort() {
	if h, ok := s.r.take(true); ok {
		if h.OnError != nil {
			h.OnError(ErrAborted)
		}
		if h.OnEnd != nil {
			h.OnEnd()
		}
	}
}
