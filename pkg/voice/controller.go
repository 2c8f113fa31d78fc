package voice

import (
	"log/slog"
	"sync"
	"time"

	"strollgo/pkg/model"
	"strollgo/pkg/tourstate"
)

// State is the controller's user-visible phase.
type State string

// Controller states.
const (
	StateIdle              State = "idle"
	StateListening         State = "listening"
	StateSpeaking          State = "speaking"
	StateBlockedNetwork    State = "blocked_network"
	StateBlockedPermission State = "blocked_permission"
)

// Config holds the controller's tuning knobs.
type Config struct {
	// StartupDelay is waited before the first session after enabling, so the
	// rest of the app finishes initializing before the microphone opens.
	StartupDelay time.Duration
	// NetworkErrorCap is the consecutive network error count at which the
	// controller stops restarting and blocks until a manual retry.
	NetworkErrorCap int
}

// Controller runs a perpetual listen-restart loop over the platform
// recognizer. Sessions end on their own (silence timeout, errors); the
// controller restarts them synchronously from the end handler, unless the
// consecutive network error cap was reached or the microphone permission was
// denied, in which case it blocks until a manual retry.
type Controller struct {
	rec   Recognizer
	store *tourstate.Store

	startupDelay time.Duration
	errorCap     int

	mu        sync.Mutex
	enabled   bool
	state     State
	session   Session
	gen       uint64
	netErrors int
	lastError ErrorCode
	// hasPaused guards barge-in: playback is interrupted at most once per
	// utterance, on the first interim transcript.
	hasPaused bool
	delay     *time.Timer
}

// NewController creates a voice Controller. The controller is inert until
// SetEnabled(true).
func NewController(cfg Config, rec Recognizer, store *tourstate.Store) *Controller {
	cap := cfg.NetworkErrorCap
	if cap <= 0 {
		cap = 3
	}
	return &Controller{
		rec:          rec,
		store:        store,
		startupDelay: cfg.StartupDelay,
		errorCap:     cap,
		state:        StateIdle,
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent significant recognizer error ("" if none).
func (c *Controller) LastError() ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// SetEnabled turns voice input on or off. Enabling while blocked does not
// clear the block; that takes Retry. Enabling twice is harmless.
func (c *Controller) SetEnabled(on bool) {
	c.mu.Lock()
	if on == c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = on

	if !on {
		sess := c.session
		c.session = nil
		c.gen++
		c.hasPaused = false
		if c.delay != nil {
			c.delay.Stop()
			c.delay = nil
		}
		if c.state == StateListening || c.state == StateSpeaking {
			c.state = StateIdle
		}
		c.mu.Unlock()
		if sess != nil {
			sess.Abort()
		}
		return
	}

	if c.netErrors >= c.errorCap {
		// Stay blocked; the UI offers Retry.
		c.mu.Unlock()
		return
	}
	if c.startupDelay > 0 {
		c.delay = time.AfterFunc(c.startupDelay, c.startSession)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.startSession()
}

// Retry clears the error block and restarts listening. Only meaningful from a
// blocked state but safe to call anytime.
func (c *Controller) Retry() {
	c.mu.Lock()
	c.netErrors = 0
	c.lastError = ""
	if c.state == StateBlockedNetwork || c.state == StateBlockedPermission {
		c.state = StateIdle
	}
	enabled := c.enabled
	c.mu.Unlock()

	if enabled {
		c.startSession()
	}
}

// startSession tears down any previous session and starts a new one. The
// recognizer is called outside the lock; fake recognizers in tests may fire
// callbacks synchronously from Start.
func (c *Controller) startSession() {
	c.mu.Lock()
	if !c.enabled || c.netErrors >= c.errorCap || c.session != nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.hasPaused = false
	c.mu.Unlock()

	h := Handlers{
		OnInterim: func(text string) { c.handleInterim(gen, text) },
		OnFinal:   func(text string) { c.handleFinal(gen, text) },
		OnError:   func(code ErrorCode) { c.handleError(gen, code) },
		OnEnd:     func() { c.handleEnd(gen) },
	}
	sess, err := c.rec.Start(h)
	if err != nil {
		// Start can only fail when a session is already running on the
		// platform side; nothing to do.
		slog.Debug("Voice: recognizer start rejected", "error", err)
		return
	}

	c.mu.Lock()
	if gen != c.gen || !c.enabled {
		c.mu.Unlock()
		sess.Abort()
		return
	}
	c.session = sess
	if c.state == StateIdle {
		c.state = StateListening
	}
	c.mu.Unlock()
}

func (c *Controller) handleInterim(gen uint64, text string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateSpeaking
	// The user is audibly speaking, so the session is demonstrably working.
	c.netErrors = 0
	// An empty interim must not consume the utterance's one barge-in; the
	// guard is armed only when the interrupt actually fires.
	fire := text != "" && !c.hasPaused
	if fire {
		c.hasPaused = true
	}
	c.mu.Unlock()

	if fire {
		// Barge-in: silence narration as soon as speech is detected, once per
		// utterance.
		c.store.StopAudio()
	}
}

func (c *Controller) handleFinal(gen uint64, text string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.hasPaused = false
	c.netErrors = 0
	if c.state == StateSpeaking {
		c.state = StateListening
	}
	c.mu.Unlock()

	if text == "" {
		return
	}
	slog.Info("Voice: utterance finalized", "chars", len(text))
	c.store.SetPendingMessage(model.ChatMessage{Text: text, Source: model.SourceVoice})
}

func (c *Controller) handleError(gen uint64, code ErrorCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}

	switch code {
	case ErrNoSpeech, ErrAborted:
		// Routine session turnover, not a failure.
	case ErrNetwork:
		c.netErrors++
		c.lastError = code
		if c.netErrors >= c.errorCap {
			c.state = StateBlockedNetwork
			slog.Warn("Voice: recognition blocked after repeated network errors", "count", c.netErrors)
		}
	case ErrNotAllowed:
		// Permission denial is final; jump straight past the cap so the end
		// handler never restarts.
		c.netErrors = c.errorCap
		c.lastError = code
		c.state = StateBlockedPermission
		slog.Warn("Voice: microphone permission denied")
	default:
		slog.Warn("Voice: unrecognized recognizer error", "code", code)
	}
}

func (c *Controller) handleEnd(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.hasPaused = false

	if !c.enabled || c.netErrors >= c.errorCap {
		if c.state == StateListening || c.state == StateSpeaking {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()

	// Restart synchronously from the end handler to keep the listening gap
	// minimal.
	c.startSession()
}
