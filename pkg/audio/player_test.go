package audio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"strollgo/pkg/model"
	"strollgo/pkg/tourstate"
)

type fakeOutput struct {
	mu         sync.Mutex
	played     []string
	stops      int
	onComplete func()
	playErr    error
	// gate, when set, blocks Play after recording the call, simulating a
	// slow device start.
	gate chan struct{}
}

func (f *fakeOutput) Play(path string, onComplete func()) error {
	f.mu.Lock()
	if f.playErr != nil {
		f.mu.Unlock()
		return f.playErr
	}
	f.played = append(f.played, path)
	f.onComplete = onComplete
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return nil
}

func (f *fakeOutput) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeOutput) SetVolume(vol float64) {}
func (f *fakeOutput) Volume() float64       { return 1 }
func (f *fakeOutput) Shutdown()             {}

func (f *fakeOutput) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

func (f *fakeOutput) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakeOutput) finish() {
	f.mu.Lock()
	cb := f.onComplete
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type fakeFetcher struct {
	mu        sync.Mutex
	calls     []string
	err       error
	blockText string
	release   chan struct{}
}

func (f *fakeFetcher) Audio(ctx context.Context, tourID, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	block := f.blockText == text
	release := f.release
	err := f.err
	f.mu.Unlock()

	if block {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte("audio for " + text), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestPlayer(t *testing.T) (*Player, *fakeOutput, *fakeFetcher, *tourstate.Store) {
	t.Helper()
	store := tourstate.New(model.DefaultPreferences())
	store.SetSession("sess-test")
	out := &fakeOutput{}
	fetch := &fakeFetcher{}
	p := NewPlayer(out, fetch, store, t.TempDir())
	return p, out, fetch, store
}

func waitState(t *testing.T, p *Player, want PlayerState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, at %s", want, p.State())
}

func TestPlayer_PlayAndComplete(t *testing.T) {
	p, out, _, _ := newTestPlayer(t)

	p.Speak(context.Background(), "welcome to providence")
	waitState(t, p, PlayerPlaying)

	if out.playCount() != 1 {
		t.Fatalf("expected one playback, got %d", out.playCount())
	}
	if !strings.Contains(out.played[0], "narration-") {
		t.Errorf("unexpected artifact path: %s", out.played[0])
	}

	out.finish()
	waitState(t, p, PlayerIdle)
}

func TestPlayer_DedupSameText(t *testing.T) {
	p, _, fetch, _ := newTestPlayer(t)

	p.Speak(context.Background(), "hello")
	waitState(t, p, PlayerPlaying)

	p.Speak(context.Background(), "hello")
	time.Sleep(20 * time.Millisecond)
	if fetch.callCount() != 1 {
		t.Errorf("same text must not be fetched twice, calls=%d", fetch.callCount())
	}
}

func TestPlayer_Supersession(t *testing.T) {
	p, out, fetch, _ := newTestPlayer(t)
	fetch.blockText = "first"
	fetch.release = make(chan struct{})

	p.Speak(context.Background(), "first")
	if p.State() != PlayerLoading {
		t.Fatalf("expected loading, got %s", p.State())
	}

	// A different text cancels the in-flight fetch; its late result, if any,
	// must be discarded.
	p.Speak(context.Background(), "second")
	waitState(t, p, PlayerPlaying)
	close(fetch.release)
	time.Sleep(20 * time.Millisecond)

	if out.playCount() != 1 {
		t.Fatalf("superseded fetch must not reach playback, plays=%d", out.playCount())
	}
	if p.State() != PlayerPlaying {
		t.Errorf("late result must not disturb the current state, got %s", p.State())
	}
}

func TestPlayer_InterruptWhilePlaying(t *testing.T) {
	p, out, _, store := newTestPlayer(t)

	p.Speak(context.Background(), "narration")
	waitState(t, p, PlayerPlaying)

	store.StopAudio()
	// The interrupt takes effect within the StopAudio call.
	if p.State() != PlayerIdle {
		t.Fatalf("interrupt must clear state synchronously, got %s", p.State())
	}
	out.mu.Lock()
	stops := out.stops
	out.mu.Unlock()
	if stops == 0 {
		t.Error("interrupt must stop the output")
	}
}

func TestPlayer_InterruptWhileLoading(t *testing.T) {
	p, out, fetch, store := newTestPlayer(t)
	fetch.blockText = "slow"
	fetch.release = make(chan struct{})

	p.Speak(context.Background(), "slow")
	if p.State() != PlayerLoading {
		t.Fatalf("expected loading, got %s", p.State())
	}

	store.StopAudio()
	if p.State() != PlayerIdle {
		t.Fatalf("interrupt must clear loading synchronously, got %s", p.State())
	}

	close(fetch.release)
	time.Sleep(20 * time.Millisecond)
	if out.playCount() != 0 {
		t.Error("canceled fetch must never reach playback")
	}
}

func TestPlayer_InterruptWhileOutputStarts(t *testing.T) {
	p, out, _, store := newTestPlayer(t)
	out.gate = make(chan struct{})

	p.Speak(context.Background(), "narration")

	// Wait for the device call to begin; it blocks on the gate.
	deadline := time.Now().Add(2 * time.Second)
	for out.playCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for playback to start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	store.StopAudio()
	if p.State() != PlayerIdle {
		t.Fatalf("interrupt must clear state synchronously, got %s", p.State())
	}
	stopsBefore := out.stopCount()

	// The device start completes after the interrupt; the output must be
	// stopped again, not left playing behind an idle player.
	close(out.gate)
	deadline = time.Now().Add(2 * time.Second)
	for out.stopCount() <= stopsBefore {
		if time.Now().After(deadline) {
			t.Fatal("late device start was not stopped after the interrupt")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if p.State() != PlayerIdle {
		t.Errorf("late device start must not disturb the state, got %s", p.State())
	}
}

func TestPlayer_ErrorAndRetry(t *testing.T) {
	p, _, fetch, _ := newTestPlayer(t)
	fetch.err = errors.New("synthesis unavailable")

	p.Speak(context.Background(), "flaky")
	waitState(t, p, PlayerError)
	if p.LastError() == nil {
		t.Error("expected a recorded error")
	}

	fetch.mu.Lock()
	fetch.err = nil
	fetch.mu.Unlock()

	p.Retry(context.Background())
	waitState(t, p, PlayerPlaying)
	if fetch.callCount() != 2 {
		t.Errorf("retry must refetch the same text, calls=%d", fetch.callCount())
	}
	fetch.mu.Lock()
	same := fetch.calls[0] == fetch.calls[1]
	fetch.mu.Unlock()
	if !same {
		t.Error("retry must reuse the failed text")
	}
}

func TestPlayer_TTSDisabledMarksHandled(t *testing.T) {
	p, _, fetch, store := newTestPlayer(t)
	off := false
	store.SetPreferences(model.PreferencesPatch{TTSEnabled: &off})

	p.Speak(context.Background(), "silent narration")
	if fetch.callCount() != 0 {
		t.Fatal("disabled TTS must not fetch")
	}
	if p.State() != PlayerIdle {
		t.Errorf("expected idle, got %s", p.State())
	}

	// Re-enabling TTS must not replay the already-handled text.
	on := true
	store.SetPreferences(model.PreferencesPatch{TTSEnabled: &on})
	p.Speak(context.Background(), "silent narration")
	time.Sleep(20 * time.Millisecond)
	if fetch.callCount() != 0 {
		t.Error("handled text must stay suppressed after toggling TTS")
	}
}
