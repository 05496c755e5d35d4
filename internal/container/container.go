// Package container wires the application's dependency graph from configuration.
package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go-media-analyzer/internal/config"
	"go-media-analyzer/internal/factory"
	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/orchestration"
	"go-media-analyzer/internal/repository"
	"go-media-analyzer/internal/service"
	"go-media-analyzer/internal/storage"
	"go-media-analyzer/internal/store"
	"go-media-analyzer/internal/thumbnail"
	"go-media-analyzer/internal/transport"
	"go-media-analyzer/internal/worker"
)

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	backend  storage.Backend
	events   *observer.EventPublisher
	metrics  *observer.MetricsObserver
	pool     *worker.Pool
	state    *orchestration.State
	settings *store.SettingsStore
	history  *store.HistoryStore
	analysis service.AnalysisService
	handler  http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	backend, err := components.BackendFactory.CreateBackend(ctx, cfg.StorageBackend)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageBackend, err)
	}
	if !storage.Probe(ctx, backend) {
		logger.WithField("backend", cfg.StorageBackend).
			Warn("Storage backend unavailable, settings and history will not persist")
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	settings := store.NewSettingsStore(ctx, repository.NewSettingsRepository(backend), store.SettingsStoreOptions{
		Debounce: cfg.SettingsDebounce,
		Events:   events,
	})

	historyRepo := repository.NewHistoryRepository(backend, repository.HistoryOptions{
		MaxEntries: cfg.MaxHistoryEntries,
		Thumbnail: thumbnail.Options{
			MaxWidth: cfg.MaxThumbnailWidth,
			Quality:  cfg.ThumbnailQuality,
			Timeout:  cfg.CompressionTimeout,
		},
		QuotaBytes: cfg.StorageQuotaBytes,
	})
	pool := worker.NewPool(cfg.HistoryWorkers)
	pool.Start()
	history := store.NewHistoryStore(ctx, historyRepo, pool, events)

	engines, err := components.EngineFactory.CreateEngines()
	if err != nil {
		pool.Close()
		backend.Close()
		return nil, err
	}

	state := orchestration.NewState(events)
	mediaRepo := repository.NewHTTPMediaRepository(storage.NewHTTPImageFetcher(cfg.MediaFetchTimeout), nil)
	analysis, err := service.NewAnalysisService(state, engines, settings, history, mediaRepo, events, service.Options{
		AnalysisTimeout:   cfg.AnalysisTimeout,
		MediaFetchTimeout: cfg.MediaFetchTimeout,
	})
	if err != nil {
		pool.Close()
		backend.Close()
		return nil, err
	}

	handler := transport.NewHandler(transport.Dependencies{
		Analysis: analysis,
		Settings: settings,
		History:  history,
		Events:   events,
		Metrics:  metrics.Handler(),
	}, cfg)

	return &Container{
		config:   cfg,
		backend:  backend,
		events:   events,
		metrics:  metrics,
		pool:     pool,
		state:    state,
		settings: settings,
		history:  history,
		analysis: analysis,
		handler:  handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) Settings() *store.SettingsStore { return c.settings }

func (c *Container) History() *store.HistoryStore { return c.history }

func (c *Container) Analysis() service.AnalysisService { return c.analysis }

// Close stops streams and engines, flushes a pending settings write, drains
// queued history writes and closes the storage backend
func (c *Container) Close(ctx context.Context) error {
	errs := []error{c.analysis.Close()}
	c.settings.Close(ctx)
	c.pool.Close()
	errs = append(errs, c.backend.Close())
	return errors.Join(errs...)
}
