package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has no value
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the write would exceed capacity
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrUnavailable is returned when the backend cannot be used at all
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// DefaultQuotaBytes is the typical per-origin quota the repositories report
const DefaultQuotaBytes int64 = 5 * 1024 * 1024

// Backend is a string key-value store with last-write-wins semantics
type Backend interface {
	// Get returns ErrNotFound when key is absent
	Get(ctx context.Context, key string) (string, error)
	// Set may fail with ErrQuotaExceeded or ErrUnavailable
	Set(ctx context.Context, key, value string) error
	// Delete is a no-op for absent keys
	Delete(ctx context.Context, key string) error
	Close() error
}

// Probe checks that the backend accepts a throwaway write and delete. A
// backend that is merely full still counts as available.
func Probe(ctx context.Context, b Backend) bool {
	if b == nil {
		return false
	}
	const probeKey = "__storage_probe__"
	if err := b.Set(ctx, probeKey, probeKey); err != nil {
		return errors.Is(err, ErrQuotaExceeded)
	}
	return b.Delete(ctx, probeKey) == nil
}
