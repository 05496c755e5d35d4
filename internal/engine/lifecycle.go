package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "go-media-analyzer/internal/errors"
)

// Lifecycle guards an engine's load and unload. Concurrent Initialize calls
// share one load.
type Lifecycle struct {
	name   string
	load   func(ctx context.Context) error
	unload func() error

	group singleflight.Group
	mu    sync.Mutex
	ready bool
}

// NewLifecycle creates a lifecycle; unload may be nil
func NewLifecycle(name string, load func(ctx context.Context) error, unload func() error) *Lifecycle {
	return &Lifecycle{name: name, load: load, unload: unload}
}

func (l *Lifecycle) Initialize(ctx context.Context) error {
	if l.Ready() {
		return nil
	}
	_, err, _ := l.group.Do(l.name, func() (interface{}, error) {
		if l.Ready() {
			return nil, nil
		}
		if err := l.load(ctx); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeModelLoad) {
				return nil, err
			}
			return nil, apperrors.NewModelLoadError(l.name+" failed to initialize", err)
		}
		l.mu.Lock()
		l.ready = true
		l.mu.Unlock()
		return nil, nil
	})
	return err
}

func (l *Lifecycle) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Dispose unloads once; later calls are no-ops
func (l *Lifecycle) Dispose() error {
	l.mu.Lock()
	wasReady := l.ready
	l.ready = false
	l.mu.Unlock()

	if !wasReady || l.unload == nil {
		return nil
	}
	return l.unload()
}

// requireReady is the guard every Infer starts with
func (l *Lifecycle) requireReady() error {
	if l.Ready() {
		return nil
	}
	return apperrors.NewModelLoadError(l.name+" is not initialized", nil)
}
