package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"strollgo/internal/api"
	"strollgo/pkg/audio"
	"strollgo/pkg/backend"
	"strollgo/pkg/cache"
	"strollgo/pkg/config"
	"strollgo/pkg/db"
	"strollgo/pkg/location"
	"strollgo/pkg/logging"
	"strollgo/pkg/model"
	"strollgo/pkg/proximity"
	"strollgo/pkg/request"
	"strollgo/pkg/tour"
	"strollgo/pkg/tourstate"
	"strollgo/pkg/tracker"
	"strollgo/pkg/version"
	"strollgo/pkg/voice"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault("configs/stroll.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/stroll.yaml")
		return
	}

	if err := run(context.Background(), "configs/stroll.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Secrets and overrides may live in a .env next to the binary.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: .env not loaded: %v\n", err)
	}

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("StrollGo started", "version", version.Version)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.PruneCache(time.Duration(appCfg.DB.CacheTTL)); err != nil {
		slog.Warn("Cache pruning failed", "error", err)
	}

	tr := tracker.New()
	reqClient := request.New(&appCfg.Request, cache.NewSQLiteCache(dbConn), tr)
	backendClient := backend.New(appCfg.Backend.BaseURL, reqClient)

	store := tourstate.New(defaultPreferences(appCfg))

	// Audio: beep speaker + coordinator.
	speaker := audio.NewSpeaker()
	player := audio.NewPlayer(speaker, backendClient, store, appCfg.Audio.Dir)
	defer player.Shutdown()

	// Proximity + state machine.
	detector := proximity.New(store, backendClient, tr,
		float64(appCfg.Proximity.Threshold), appCfg.Proximity.BBoxDegrees)
	engine := tour.New(store, backendClient, player, detector)
	go engine.Run(ctx)

	// Voice input. The platform recognizer runs in the UI; its events are
	// relayed through POST /api/voice/event into the controller.
	voiceRelay := voice.NewRelayRecognizer()
	voiceCtrl := voice.NewController(voice.Config{
		StartupDelay:    time.Duration(appCfg.Voice.StartupDelay),
		NetworkErrorCap: appCfg.Voice.NetworkErrorCap,
	}, voiceRelay, store)
	if store.Preferences().ContinuousListening {
		voiceCtrl.SetEnabled(true)
	}

	// Location sources: simulated walker vs pushed device fixes.
	switcher := location.NewSwitcher(
		func() location.Provider { return location.NewPush() },
		func() location.Provider {
			return location.NewWalker(location.WalkerConfig{
				Tick:           time.Duration(appCfg.Location.Tick),
				ApproachFactor: appCfg.Location.ApproachFactor,
				DefaultOrigin:  appCfg.Location.DefaultOrigin,
			}, store.CurrentStop, store.Location, engine.HandleSample)
		},
	)
	if err := switcher.Use(ctx, appCfg.Location.DemoMode); err != nil {
		return fmt.Errorf("failed to start location provider: %w", err)
	}
	defer switcher.Close()

	return runServer(ctx, appCfg, store, engine, switcher, voiceCtrl, voiceRelay, player, speaker, tr)
}

func defaultPreferences(cfg *config.Config) model.Preferences {
	prefs := model.DefaultPreferences()
	if cfg.Tour.Theme != "" {
		prefs.Theme = cfg.Tour.Theme
	}
	if cfg.Tour.LengthMinutes > 0 {
		prefs.TourLength = cfg.Tour.LengthMinutes
	}
	if cfg.Tour.GuidePersonality != "" {
		prefs.GuidePersonality = model.Personality(cfg.Tour.GuidePersonality)
	}
	return prefs
}

func runServer(ctx context.Context, cfg *config.Config, store *tourstate.Store, engine *tour.Engine, switcher *location.Switcher, voiceCtrl *voice.Controller, voiceRelay *voice.RelayRecognizer, player *audio.Player, speaker *audio.Speaker, tr *tracker.Tracker) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewTourHandler(ctx, store, engine, switcher),
		api.NewPrefsHandler(store, voiceCtrl),
		api.NewVoiceHandler(voiceCtrl, voiceRelay),
		api.NewAudioHandler(store, player, speaker),
		api.NewStatsHandler(tr),
		api.NewStreamHandler(store, 500*time.Millisecond),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
