// Package audio turns narration text into played sound: a beep-based speaker
// output plus the Player coordinator that fetches, dedups and supersedes
// narration audio.
package audio

import (
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// Output is the playback device the Player drives. Implementations must make
// Stop take effect immediately.
type Output interface {
	// Play starts playback of an audio file. onComplete fires when playback
	// finishes naturally, not when stopped.
	Play(path string, onComplete func()) error
	// Stop halts playback.
	Stop()
	// SetVolume sets playback volume (0.0 to 1.0).
	SetVolume(vol float64)
	// Volume returns the current volume level.
	Volume() float64
	// Shutdown stops playback and removes the last audio artifact.
	Shutdown()
}

// Speaker implements Output using gopxl/beep.
type Speaker struct {
	mu                 sync.RWMutex
	ctrl               *beep.Ctrl
	volume             float64
	lastFile           string
	speakerInitialized bool
	sampleRate         beep.SampleRate
	volStreamer        *effects.Volume
	track              beep.StreamSeekCloser
}

// NewSpeaker creates a Speaker at full volume. The audio device is opened
// lazily on first Play.
func NewSpeaker() *Speaker {
	return &Speaker{volume: 1.0}
}

// Play starts playback of an audio file.
func (s *Speaker) Play(path string, onComplete func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	streamer, format, err := s.decodeStreamer(path)
	if err != nil {
		return err
	}

	if err := s.ensureSpeakerInitialized(streamer); err != nil {
		return err
	}

	resampled := beep.Resample(3, format.SampleRate, s.sampleRate, streamer)
	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(s.volume),
		Silent:   s.volume <= 0.01,
	}

	s.volStreamer = volStreamer
	s.track = streamer
	s.ctrl = &beep.Ctrl{Streamer: volStreamer}

	speaker.Play(beep.Seq(s.ctrl, beep.Callback(func() {
		// Cleanup off the speaker thread.
		go func() {
			s.mu.Lock()
			s.ctrl = nil
			s.mu.Unlock()
			streamer.Close()

			if onComplete != nil {
				onComplete()
			}
		}()
	})))

	// The previous artifact is safe to delete once the new one is loaded.
	if s.lastFile != "" && s.lastFile != path {
		if err := os.Remove(s.lastFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("Audio: failed to clean up previous artifact", "path", s.lastFile, "error", err)
		}
	}
	s.lastFile = path

	slog.Debug("Audio: playing", "path", path)
	return nil
}

// Stop halts current playback.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Speaker) stopLocked() {
	if s.track != nil {
		s.track.Close()
		s.track = nil
	}
	if s.ctrl != nil {
		speaker.Clear()
		s.ctrl = nil
	}
}

func (s *Speaker) ensureSpeakerInitialized(streamer beep.StreamSeekCloser) error {
	const targetSampleRate = 48000
	if !s.speakerInitialized {
		err := speaker.Init(beep.SampleRate(targetSampleRate), beep.SampleRate(targetSampleRate).N(time.Second/10))
		if err != nil {
			streamer.Close()
			slog.Error("Audio: failed to initialize speaker", "error", err)
			return err
		}
		s.speakerInitialized = true
		s.sampleRate = beep.SampleRate(targetSampleRate)
	}
	return nil
}

// SetVolume sets playback volume (0.0 to 1.0).
func (s *Speaker) SetVolume(vol float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	s.volume = vol

	if s.volStreamer != nil {
		speaker.Lock()
		s.volStreamer.Volume = volumeToPower(vol)
		s.volStreamer.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

// Volume returns the current volume level.
func (s *Speaker) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// Shutdown stops playback and deletes the residual audio artifact.
func (s *Speaker) Shutdown() {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFile != "" {
		if err := os.Remove(s.lastFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("Audio: failed to clean up artifact on shutdown", "path", s.lastFile, "error", err)
		}
		s.lastFile = ""
	}
}

func (s *Speaker) decodeStreamer(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Audio: failed to open file", "path", path, "error", err)
		return nil, beep.Format{}, err
	}

	// MP3 first; the synthesis endpoint serves MP3 by default.
	streamer, format, err := mp3.Decode(f)
	if err == nil {
		return streamer, format, nil
	}

	// Reopen for the WAV attempt; a failed MP3 decode leaves the offset unknown.
	f.Close()
	f, err = os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	streamer, format, err = wav.Decode(f)
	if err != nil {
		f.Close()
		slog.Error("Audio: failed to decode file", "path", path, "error", err)
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

// volumeToPower maps linear 0..1 volume onto beep's base-2 exponent scale.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
