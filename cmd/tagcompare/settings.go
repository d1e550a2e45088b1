package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/config"
	"github.com/jonathan/tagcompare/internal/db"
	"github.com/jonathan/tagcompare/internal/observability"
)

// loadSettings loads --settings merged with defaults. A missing default
// settings file is not an error.
func loadSettings() (config.Settings, error) {
	defaults := config.Defaults()

	resolved, err := config.ResolvePath(settingsPath)
	if err != nil {
		return config.Settings{}, err
	}
	if _, statErr := os.Stat(resolved); errors.Is(statErr, os.ErrNotExist) && settingsPath == config.DefaultSettingsFile {
		slog.Debug("no settings file, using defaults", "path", resolved)
		defaults.ApplyEnv()
		return defaults, nil
	}

	loaded, err := config.LoadSettings(settingsPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return config.Settings{}, err
	}
	if loaded.Verbose && !verbose {
		verbose = true
		_ = setupLogging(nil, nil)
	}
	return loaded.MergeWithDefaults(defaults), nil
}

func loadCompareSet() (*config.CompareSet, error) {
	cs, err := config.LoadCompareSet(compareConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load compare config: %w", err)
	}
	return cs, nil
}

// openStore connects to the report database, or returns nil when none is
// configured or it cannot be reached.
func openStore(ctx context.Context, databaseURL string) *db.DB {
	if databaseURL == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := db.Connect(connectCtx, databaseURL)
	if err != nil {
		slog.Warn("report database unavailable, results will not be stored", "error", err)
		return nil
	}
	if err := store.EnsureSchema(connectCtx); err != nil {
		slog.Warn("failed to prepare report database", "error", err)
		store.Close()
		return nil
	}
	return store
}

// saveJob stores a finished job. Failures are logged.
func saveJob(ctx context.Context, store *db.DB, job *compare.Job) {
	if store == nil || job == nil {
		return
	}
	runID, err := store.CreateRun(ctx, job)
	if err != nil {
		slog.Warn("failed to store comparison run", "job", job.ID, "error", err)
		return
	}
	for _, u := range job.Units() {
		if err := store.SaveUnit(ctx, runID, u); err != nil {
			slog.Warn("failed to store comparison unit", "job", job.ID, "error", err)
		}
	}
	if err := store.CompleteRun(ctx, job); err != nil {
		slog.Warn("failed to complete comparison run", "job", job.ID, "error", err)
		return
	}
	slog.Debug("stored comparison run", "job", job.ID)
}

// startMetrics serves Prometheus metrics on addr. It returns nil metrics and
// a no-op stop function when addr is empty.
func startMetrics(ctx context.Context, addr string) (*observability.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}
	metrics, handler, err := observability.NewMetrics(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metrics.Shutdown(shutdownCtx)
	}
	return metrics, stop, nil
}

// recorder returns metrics as a compare.Recorder, or nil without metrics.
func recorder(metrics *observability.Metrics) compare.Recorder {
	if metrics == nil {
		return nil
	}
	return metrics
}
