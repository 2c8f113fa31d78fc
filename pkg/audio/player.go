package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"strollgo/pkg/tourstate"
)

// Fetcher synthesizes narration text into audio bytes.
type Fetcher interface {
	Audio(ctx context.Context, tourID, text string) ([]byte, error)
}

// PlayerState is the coordinator's phase.
type PlayerState string

// Player states.
const (
	PlayerIdle    PlayerState = "idle"
	PlayerLoading PlayerState = "loading"
	PlayerPlaying PlayerState = "playing"
	PlayerError   PlayerState = "error"
)

// Player coordinates narration playback. It deduplicates per narration text,
// supersedes stale fetches when the text changes, and honors the store's audio
// interrupt signal synchronously.
type Player struct {
	out   Output
	fetch Fetcher
	store *tourstate.Store
	dir   string

	mu          sync.Mutex
	state       PlayerState
	handledText string
	failedText  string
	lastErr     error
	token       string
	cancel      context.CancelFunc
}

// NewPlayer creates a Player and subscribes it to the store's interrupt
// signal. dir is where fetched audio artifacts are written before playback.
func NewPlayer(out Output, fetch Fetcher, store *tourstate.Store, dir string) *Player {
	p := &Player{
		out:   out,
		fetch: fetch,
		store: store,
		dir:   dir,
		state: PlayerIdle,
	}
	store.OnAudioStop(func(uint64) { p.interrupt() })
	return p
}

// State returns the coordinator's current phase.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError returns the most recent fetch or playback error, or nil.
func (p *Player) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Speak plays the given narration text. The same text is never fetched twice
// in a row; a different text supersedes whatever is in flight or playing.
// With TTS disabled in preferences the text is marked handled without
// fetching, so enabling TTS later does not replay stale narration.
func (p *Player) Speak(ctx context.Context, text string) {
	if text == "" {
		return
	}

	p.mu.Lock()
	if text == p.handledText && p.state != PlayerError {
		p.mu.Unlock()
		return
	}

	if !p.store.Preferences().TTSEnabled {
		p.handledText = text
		p.failedText = ""
		p.lastErr = nil
		p.state = PlayerIdle
		p.mu.Unlock()
		return
	}

	// Supersede: a newer text cancels the previous fetch and invalidates its
	// token, so a late result cannot be applied. The fetch is detached from
	// the caller's cancellation; its lifetime is supersession or interrupt.
	if p.cancel != nil {
		p.cancel()
	}
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	token := uuid.NewString()
	p.cancel = cancel
	p.token = token
	p.handledText = text
	p.failedText = ""
	p.lastErr = nil
	p.state = PlayerLoading
	p.mu.Unlock()

	p.out.Stop()

	go p.run(fetchCtx, token, text)
}

func (p *Player) run(ctx context.Context, token, text string) {
	data, err := p.fetch.Audio(ctx, p.store.SessionID(), text)

	p.mu.Lock()
	if token != p.token {
		// Superseded or interrupted while in flight.
		p.mu.Unlock()
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.mu.Unlock()
			return
		}
		p.state = PlayerError
		p.failedText = text
		p.lastErr = err
		p.mu.Unlock()
		slog.Warn("Audio: narration fetch failed", "error", err)
		return
	}
	p.mu.Unlock()

	path, err := p.writeArtifact(token, data)
	if err == nil {
		// Re-check before touching the device: an interrupt may have landed
		// while the artifact was written.
		p.mu.Lock()
		stale := token != p.token
		p.mu.Unlock()
		if stale {
			return
		}
		err = p.out.Play(path, func() { p.playbackDone(token) })
	}

	p.mu.Lock()
	if token != p.token {
		p.mu.Unlock()
		// An interrupt landed while the device was starting; its Stop may
		// have run before Play took effect, so stop again rather than leave
		// stale audio playing behind an idle player.
		if err == nil {
			p.out.Stop()
		}
		return
	}
	if err != nil {
		p.state = PlayerError
		p.failedText = text
		p.lastErr = err
		p.mu.Unlock()
		slog.Warn("Audio: playback failed", "error", err)
		return
	}
	p.state = PlayerPlaying
	p.mu.Unlock()
}

func (p *Player) writeArtifact(token string, data []byte) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(p.dir, "narration-"+token+".mp3")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio artifact: %w", err)
	}
	return path, nil
}

func (p *Player) playbackDone(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.token || p.state != PlayerPlaying {
		return
	}
	p.state = PlayerIdle
}

// Retry refetches the last failed narration. No-op unless in the error state.
func (p *Player) Retry(ctx context.Context) {
	p.mu.Lock()
	if p.state != PlayerError || p.failedText == "" {
		p.mu.Unlock()
		return
	}
	text := p.failedText
	// Clear the handled marker so Speak does not suppress the retry.
	p.handledText = ""
	p.mu.Unlock()

	p.Speak(ctx, text)
}

// interrupt is the store's audio-stop listener. It runs inside the StopAudio
// call, so playback and loading are cleared within the same synchronous tick.
func (p *Player) interrupt() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	// Invalidate the token so any in-flight result is discarded.
	p.token = ""
	if p.state == PlayerLoading || p.state == PlayerPlaying {
		p.state = PlayerIdle
	}
	p.mu.Unlock()

	p.out.Stop()
}

// Shutdown stops playback and cleans up.
func (p *Player) Shutdown() {
	p.interrupt()
	p.out.Shutdown()
}
