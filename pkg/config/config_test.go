package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("unexpected backend url: %s", cfg.Backend.BaseURL)
	}
	if cfg.Server.Address != "localhost:1893" {
		t.Errorf("unexpected server address: %s", cfg.Server.Address)
	}
	if cfg.Request.Retries != 3 {
		t.Errorf("unexpected retries: %d", cfg.Request.Retries)
	}
	if float64(cfg.Proximity.Threshold) != 50 {
		t.Errorf("unexpected proximity threshold: %v", cfg.Proximity.Threshold)
	}
	if cfg.Proximity.BBoxDegrees != 0.0005 {
		t.Errorf("unexpected bbox degrees: %v", cfg.Proximity.BBoxDegrees)
	}
	if cfg.Location.ApproachFactor != 0.1 {
		t.Errorf("unexpected approach factor: %v", cfg.Location.ApproachFactor)
	}
	if cfg.Location.DefaultOrigin.Lat != 41.8240 || cfg.Location.DefaultOrigin.Lng != -71.4128 {
		t.Errorf("unexpected default origin: %+v", cfg.Location.DefaultOrigin)
	}
	if cfg.Voice.NetworkErrorCap != 3 {
		t.Errorf("unexpected network error cap: %d", cfg.Voice.NetworkErrorCap)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"7d", 7 * Day},
		{"1w", Week},
		{"1d12h", 36 * time.Hour},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if err != nil {
			t.Errorf("ParseDuration(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseDuration("5x"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestParseDistance(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"50m", 50},
		{"1.5km", 1500},
		{"75", 75},
	}
	for _, c := range cases {
		got, err := ParseDistance(c.in)
		if err != nil {
			t.Errorf("ParseDistance(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseDistance(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseDistance("near"); err == nil {
		t.Error("expected error for non-numeric distance")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stroll.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != "localhost:1893" {
		t.Errorf("expected defaults, got %s", cfg.Server.Address)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	// Save injects option comments for constrained fields.
	if !strings.Contains(string(data), "# Options: funny, serious, dramatic, friendly") {
		t.Error("expected personality options comment in generated file")
	}
	if !strings.Contains(string(data), "demo_mode:") {
		t.Error("expected demo_mode field in generated file")
	}
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stroll.yaml")
	partial := "server:\n  address: \"localhost:9999\"\nproximity:\n  threshold: 80m\n"
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != "localhost:9999" {
		t.Errorf("file value not applied: %s", cfg.Server.Address)
	}
	if float64(cfg.Proximity.Threshold) != 80 {
		t.Errorf("distance value not parsed: %v", cfg.Proximity.Threshold)
	}
	// Untouched sections keep defaults.
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("default lost on merge: %s", cfg.Backend.BaseURL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stroll.yaml")
	if err := os.WriteFile(path, []byte("server:\n  address: \"localhost:9999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STROLL_BACKEND_URL", "http://tours.example:8000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://tours.example:8000" {
		t.Errorf("env override not applied: %s", cfg.Backend.BaseURL)
	}
}
