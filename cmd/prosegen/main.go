package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/calyptra/prosegen/pkg/markov"
	"github.com/calyptra/prosegen/pkg/textcache"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan // Wait for a signal
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(actionChan)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			break
		}

		if action == actionRestart {
			baseLogger.Info("--- Server Restarting ---")
			continue
		} else {
			break
		}
	}

	baseLogger.Info("prosegen has shut down.")
}

// run is the main loop that hosts the API server, and returns whenever the
// server is shut down or restarted.
func run(actionChan chan string) (string, error) {

	config, err := LoadConfig("./config.json")
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}

	var logLevel slog.Level
	switch strings.ToLower(config.Server.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	logger.Info("Starting server cycle...")

	if err = os.MkdirAll(config.Server.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}

	store, db, err := buildStore(config, logger)
	if err != nil {
		return "", err
	}

	manager := textcache.NewManager(store,
		textcache.WithSizeLimit(config.Cache.SizeLimitBytes),
		textcache.WithEvictionWindow(time.Duration(config.Cache.EvictionWindowHours)*time.Hour),
	)
	manager.SetLogger(logger)

	var source markov.Source
	if len(config.Engine.SourceURLs) > 0 {
		httpSource := markov.NewHTTPSource(config.Engine.SourceURLs, nil)
		httpSource.SetLogger(logger)
		source = httpSource
	}

	engine := markov.NewEngine(markov.EngineConfig{
		Order:    config.Engine.Order,
		CacheKey: config.Engine.CacheKey,
		CacheTTL: time.Duration(config.Engine.CacheTTLHours) * time.Hour,
	}, manager, source)
	engine.SetLogger(logger)

	// Warm the model up front so the first API call doesn't pay for a fetch.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 60*time.Second)
	if err := engine.Load(loadCtx); err != nil {
		logger.Error("Initial model load failed", "error", err)
	}
	cancelLoad()
	status := engine.Status()
	logger.Info("Engine initialized", "tier", status.Tier, "beginnings", status.Beginnings)

	server := NewServer(config, logger, engine, actionChan)
	apiHttpServer := &http.Server{Addr: config.Server.ApiAddr, Handler: server.mux}

	go func() {
		logger.Info("Starting prosegen api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()

	action := <-actionChan // Block here until API or OS signal sends an action.

	logger.Info("Stopping server for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = apiHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	closeStore(store, db, logger)

	return action, nil
}

// buildStore constructs the cache store selected by the config. The returned
// *sql.DB is non-nil only for the sqlite backend and must be closed by the
// caller at the end of the run.
func buildStore(config *Config, logger *slog.Logger) (textcache.Store, *sql.DB, error) {
	switch strings.ToLower(config.Engine.CacheBackend) {
	case "redis":
		store, err := textcache.NewRedisStore(config.Engine.RedisURL, config.Engine.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect cache redis: %w", err)
		}
		return store, nil, nil

	case "memory":
		logger.Warn("Using in-memory cache store; the corpus cache will not survive restarts")
		return textcache.NewMemoryStore(0), nil, nil

	default:
		db, err := initDB(config.Server.CacheDatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		if err = textcache.SetupSchema(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to setup cache schema: %w", err)
		}
		store, err := textcache.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to create cache store: %w", err)
		}
		return store, db, nil
	}
}

func closeStore(store textcache.Store, db *sql.DB, logger *slog.Logger) {
	if s, ok := store.(*textcache.SQLiteStore); ok {
		s.Close()
	}
	if s, ok := store.(*textcache.RedisStore); ok {
		if err := s.Close(); err != nil {
			logger.Error("Failed to close redis store", "error", err)
		}
	}
	if db != nil {
		logger.Info("Closing cache database connection.")
		if err := db.Close(); err != nil {
			logger.Error("Failed to close cache database", "error", err)
		}
	}
}
