package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/api"
	"github.com/nikolastojadinov/hajde-music-stream/app/catalog"
	"github.com/nikolastojadinov/hajde-music-stream/app/cfg"
	"github.com/nikolastojadinov/hajde-music-stream/app/config"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/manifest"
	"github.com/nikolastojadinov/hajde-music-stream/app/refresh"
	"github.com/nikolastojadinov/hajde-music-stream/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting playlist refresh service", "version", appCfg.Version, "timezone", appCfg.Timezone)

	policy, err := config.Load(appCfg.PolicyFile)
	if err != nil {
		slog.Error("Failed to load refresh policy", "file", appCfg.PolicyFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Refresh policy loaded", "slots_per_day", policy.Schedule.SlotsPerDay,
		"batch_size", policy.Selection.BatchSize, "track_cap", policy.Refresh.TrackCap)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	playlistRepo := database.NewPlaylistRepository(db)
	trackRepo := database.NewTrackRepository(db)
	jobRepo := database.NewJobRepository(db)

	client := catalog.NewClient(catalog.Options{
		BaseURL:           appCfg.CatalogBaseURL,
		APIKey:            appCfg.CatalogAPIKey,
		UserAgent:         appCfg.UserAgent,
		PageSize:          policy.Catalog.PageSize,
		MaxRetries:        policy.Catalog.MaxRetries,
		InitialBackoff:    time.Duration(policy.Catalog.InitialBackoffSec) * time.Second,
		RequestTimeout:    time.Duration(policy.Catalog.RequestTimeoutSec) * time.Second,
		RequestsPerSecond: policy.Catalog.RequestsPerSecond,
	})

	var manifestStore manifest.Store
	if appCfg.ManifestStore == "db" {
		manifestStore = manifest.NewDBStore(db)
	} else {
		manifestStore = manifest.NewFileStore(appCfg.ManifestDir)
	}

	var registry refresh.Registry
	if appCfg.RedisAddr != "" {
		redisRegistry, err := refresh.NewRedisRegistry(appCfg.RedisAddr, 0)
		if err != nil {
			slog.Error("Failed to connect refresh registry to Redis", "addr", appCfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisRegistry.Close()
		registry = redisRegistry
		slog.Info("Using Redis refresh registry", "addr", appCfg.RedisAddr)
	} else {
		registry = refresh.NewMemoryRegistry(0)
	}

	delta := refresh.NewDelta(trackRepo, policy.Refresh.ChunkSize)
	preparer := refresh.NewPreparer(playlistRepo, manifestStore,
		policy.Selection.BatchSize, policy.Selection.MinTrackCount, policy.Selection.MixPrefixes)
	engine := refresh.NewEngine(playlistRepo, client, delta, registry, manifestStore,
		policy.Refresh.TrackCap, policy.Selection.BatchSize, policy.Selection.MinTrackCount,
		policy.Selection.MixPrefixes)

	slotScheduler := tasks.NewSlotScheduler(jobRepo, policy.Schedule, appCfg.Location)
	slotScheduler.Start()
	defer slotScheduler.Stop()

	processor := tasks.NewProcessor(jobRepo,
		time.Duration(policy.Schedule.TickSeconds)*time.Second,
		time.Duration(policy.Schedule.StaleRunningMin)*time.Minute,
		appCfg.DisabledJobTypes)
	processor.Register(tasks.NewPrepareBatchTask(preparer))
	processor.Register(tasks.NewRunBatchTask(engine, jobRepo))
	processor.Register(tasks.NewPostbatchTask(jobRepo, policy.Schedule.RetentionDays))
	processor.Start()
	defer processor.Stop()

	apiHandler := api.NewHandler(playlistRepo, trackRepo, jobRepo, engine)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Slot scheduler and processor are stopped via defer
	slog.Info("Shutdown complete")
}
