package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"argus/internal/adapters/capture"
	"argus/internal/adapters/stream"
	"argus/internal/bus"
	"argus/internal/handlers"
	"argus/internal/httpapi"
	"argus/internal/pipeline"
	"argus/internal/pkg/logger"
	"argus/internal/pkg/shutdown"
	"argus/internal/ports"
	"argus/internal/repositories"
	"argus/internal/resolver"
	"argus/internal/storage"
	"argus/internal/supervisor"
	"argus/internal/worker"
)

func main() {
	// Initialize logger
	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "argusd",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting ARGUS daemon",
		"version", "0.1.0",
	)

	// Load configuration
	httpPort := getEnv("HTTP_PORT", "8080")
	dbURL := mustEnv(log, "DATABASE_URL")

	ctx := context.Background()

	// Initialize shutdown manager
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Connect to PostgreSQL
	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	// Verify PostgreSQL connection
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	// Connect the event bus
	log.Info("connecting event bus")
	eventBus, err := bus.NewBus(log)
	if err != nil {
		log.LogFatal("failed to initialize event bus", err)
	}
	if err := eventBus.Ping(ctx); err != nil {
		log.LogFatal("failed to ping event bus", err)
	}
	log.Info("event bus connected", "provider", eventBus.Provider())
	shutdownMgr.Register("event-bus", func(ctx context.Context) error {
		return eventBus.Close()
	})

	// Initialize snapshot store
	log.Info("initializing snapshot store")
	store, err := storage.NewStore()
	if err != nil {
		log.LogFatal("failed to initialize snapshot store", err)
	}
	log.Info("snapshot store initialized", "provider", store.Provider())

	// Streaming subsystem client, when configured
	var streamServer ports.StreamServer = stream.Noop{}
	if baseURL := getEnv("STREAM_HTTP_BASEURL", ""); baseURL != "" {
		streamServer = stream.NewHTTPClient(baseURL)
		log.Info("stream client configured", "base_url", baseURL)
	}

	// Assemble the event pipeline
	cameras := repositories.NewCameraRepository(pool)
	snapshots := repositories.NewSnapshotRepository(pool)

	pollControl := handlers.NewPollControl(log)
	registry := pipeline.Registry{
		pipeline.TagBroadcast:   handlers.NewBroadcast(eventBus, getEnv("BUS_SUBJECT_PREFIX", ""), log),
		pipeline.TagPersistence: handlers.NewPersistence(snapshots, log),
		pipeline.TagPollControl: pollControl,
		pipeline.TagStorage:     handlers.NewStorage(store, log),
	}

	tags := pipeline.DefaultTags
	if raw := getEnv("PIPELINE_HANDLERS", ""); raw != "" {
		tags = splitCSV(raw)
	}
	pipe, err := pipeline.Build(log, tags, registry)
	if err != nil {
		log.LogFatal("failed to build event pipeline", err)
	}
	log.Info("event pipeline ready", "handlers", pipe.Names())

	// Supervisor
	sup := supervisor.New(supervisor.Deps{
		Log:             log,
		Resolver:        resolver.New(pipe),
		Factory:         worker.NewFactory(capture.NewHTTPCapturer(), log),
		Catalog:         cameras,
		Stream:          streamServer,
		RestartMinDelay: durEnv(log, "RESTART_MIN_DELAY"),
		RestartMaxDelay: durEnv(log, "RESTART_MAX_DELAY"),
	})
	pollControl.SetController(sup)
	shutdownMgr.Register("supervisor", func(ctx context.Context) error {
		return sup.Close(ctx)
	})

	// Create HTTP router
	router := httpapi.NewRouter(httpapi.Deps{
		Pool:    pool,
		Bus:     eventBus,
		Store:   store,
		Catalog: cameras,
		Manager: sup,
		Log:     log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         "0.0.0.0:" + httpPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Register server shutdown
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", httpPort,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	// Bulk worker bootstrap, unless disabled for maintenance
	if boolEnv("BOOTSTRAP_WORKERS", true) {
		sup.StartBootstrap(ctx)
	} else {
		log.Info("worker bootstrap disabled")
	}

	// Wait for shutdown signal
	shutdownMgr.Wait()
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}

// mustEnv gets a required environment variable or exits.
func mustEnv(log *logger.Logger, key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		log.Error("missing required environment variable", "key", key)
		os.Exit(1)
	}
	return v
}

// boolEnv reads an env var as bool, keeping def when empty or invalid.
func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// durEnv reads an env var as a duration. Zero means the supervisor default.
func durEnv(log *logger.Logger, key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("invalid duration env, using default", "key", key, "value", v)
		return 0
	}
	return d
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
