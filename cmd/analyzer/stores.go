package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go-media-analyzer/internal/config"
	"go-media-analyzer/internal/factory"
	"go-media-analyzer/internal/repository"
	"go-media-analyzer/internal/storage"
)

// openBackend opens the configured storage without starting the server
func openBackend(ctx context.Context) (*config.Config, storage.Backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	backend, err := factory.NewBackendFactory(cfg).CreateBackend(ctx, cfg.StorageBackend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageBackend, err)
	}
	return cfg, backend, nil
}

func historyRepository(cfg *config.Config, backend storage.Backend) *repository.KVHistoryRepository {
	opts := repository.DefaultHistoryOptions()
	opts.MaxEntries = cfg.MaxHistoryEntries
	opts.QuotaBytes = cfg.StorageQuotaBytes
	return repository.NewHistoryRepository(backend, opts)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
