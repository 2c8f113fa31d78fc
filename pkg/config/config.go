package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"strollgo/pkg/model"
)

// Config holds the application configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Request   RequestConfig   `yaml:"request"`
	Location  LocationConfig  `yaml:"location"`
	Proximity ProximityConfig `yaml:"proximity"`
	Voice     VoiceConfig     `yaml:"voice"`
	Audio     AudioConfig     `yaml:"audio"`
	Tour      TourConfig      `yaml:"tour"`
}

// BackendConfig holds settings for the tour backend.
type BackendConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// ServerConfig holds local HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds cache database settings.
type DBConfig struct {
	Path     string   `yaml:"path"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LocationConfig holds settings for the position source.
type LocationConfig struct {
	// DemoMode selects the simulated walker instead of device geolocation.
	DemoMode bool `yaml:"demo_mode"`
	// Tick is the simulated walker's update interval.
	Tick Duration `yaml:"tick"`
	// ApproachFactor is the fraction of the remaining distance the walker
	// covers per tick.
	ApproachFactor float64 `yaml:"approach_factor"`
	// DefaultOrigin seeds the walker when no location exists yet.
	DefaultOrigin model.LatLng `yaml:"default_origin"`
}

// ProximityConfig holds arrival-detection settings.
type ProximityConfig struct {
	Threshold Distance `yaml:"threshold"`
	// BBoxDegrees is the half-width of the local fallback bounding box.
	BBoxDegrees float64 `yaml:"bbox_degrees"`
}

// VoiceConfig holds settings for the voice input controller.
type VoiceConfig struct {
	// StartupDelay tolerates double initialization in strict environments.
	StartupDelay Duration `yaml:"startup_delay"`
	// NetworkErrorCap is the consecutive network-error count that blocks
	// auto-restart until manual retry.
	NetworkErrorCap int `yaml:"network_error_cap"`
}

// AudioConfig holds settings for narration audio handling.
type AudioConfig struct {
	// Dir is where fetched narration audio artifacts are written before playback.
	Dir string `yaml:"dir"`
}

// TourConfig holds default tour settings.
type TourConfig struct {
	Theme            string `yaml:"theme"`
	LengthMinutes    int    `yaml:"length_minutes"`
	GuidePersonality string `yaml:"guide_personality"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Address: "localhost:1893",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:     "./data/stroll.db",
			CacheTTL: Duration(7 * Day),
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Location: LocationConfig{
			DemoMode:       false,
			Tick:           Duration(2 * time.Second),
			ApproachFactor: 0.1,
			DefaultOrigin:  model.LatLng{Lat: 41.8240, Lng: -71.4128},
		},
		Proximity: ProximityConfig{
			Threshold:   Distance(50),
			BBoxDegrees: 0.0005,
		},
		Voice: VoiceConfig{
			StartupDelay:    Duration(300 * time.Millisecond),
			NetworkErrorCap: 3,
		},
		Audio: AudioConfig{
			Dir: "./data/audio",
		},
		Tour: TourConfig{
			Theme:            "historical",
			LengthMinutes:    60,
			GuidePersonality: "friendly",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Env fallback, never saved back to disk
		if url := os.Getenv("STROLL_BACKEND_URL"); url != "" {
			cfg.Backend.BaseURL = url
		}

		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Strollgo Configuration
# ----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers)

`)
	data = append(header, data...)

	// Inject comments for fields with constrained values
	rePersonality := regexp.MustCompile(`(?m)^(\s+)guide_personality:`)
	data = rePersonality.ReplaceAll(data, []byte("${1}# Options: funny, serious, dramatic, friendly\n${1}guide_personality:"))

	reDemoMode := regexp.MustCompile(`(?m)^(\s+)demo_mode:`)
	data = reDemoMode.ReplaceAll(data, []byte("${1}# true = simulated walker, false = device geolocation\n${1}demo_mode:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
