// Package factory builds the pluggable parts of the analyzer from configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"go-media-analyzer/internal/config"
	"go-media-analyzer/internal/engine"
	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/storage"
	"go-media-analyzer/pkg/models"
)

// EngineFactory creates inference engines
type EngineFactory interface {
	CreateEngine(mode models.AnalysisMode) (engine.Engine, error)
	CreateEngines() (map[models.AnalysisMode]engine.Engine, error)
}

// BackendFactory creates key-value storage backends
type BackendFactory interface {
	CreateBackend(ctx context.Context, kind string) (storage.Backend, error)
}

// engineFactory implements EngineFactory
type engineFactory struct {
	backend  string
	modelDir string
}

// NewEngineFactory creates an engine factory for the builtin or native backend
func NewEngineFactory(backend, modelDir string) EngineFactory {
	return &engineFactory{backend: backend, modelDir: modelDir}
}

// CreateEngine creates the engine serving mode. Classification is always the
// pure Go quality classifier; OCR always uses tesseract.
func (f *engineFactory) CreateEngine(mode models.AnalysisMode) (engine.Engine, error) {
	switch mode {
	case models.ModeDetection:
		switch f.backend {
		case config.EngineBuiltin:
			return engine.NewRegionDetector(), nil
		case config.EngineNative:
			return engine.NewGoCVDetector(), nil
		default:
			return nil, fmt.Errorf("unsupported engine backend: %s", f.backend)
		}
	case models.ModeClassification:
		return engine.NewQualityClassifier(), nil
	case models.ModeOCR:
		return engine.NewTesseractEngine(f.modelDir), nil
	default:
		return nil, fmt.Errorf("unsupported analysis mode: %s", mode)
	}
}

// CreateEngines creates one engine per analysis mode
func (f *engineFactory) CreateEngines() (map[models.AnalysisMode]engine.Engine, error) {
	engines := make(map[models.AnalysisMode]engine.Engine, len(models.AllModes))
	for _, mode := range models.AllModes {
		e, err := f.CreateEngine(mode)
		if err != nil {
			return nil, err
		}
		engines[mode] = e
	}
	logger.WithFields(logrus.Fields{
		"backend": f.backend,
		"engines": len(engines),
	}).Info("Inference engines created")
	return engines, nil
}

// backendFactory implements BackendFactory
type backendFactory struct {
	cfg *config.Config
}

// NewBackendFactory creates a backend factory reading connection details from cfg
func NewBackendFactory(cfg *config.Config) BackendFactory {
	return &backendFactory{cfg: cfg}
}

// CreateBackend creates a storage backend of the given kind
func (f *backendFactory) CreateBackend(ctx context.Context, kind string) (storage.Backend, error) {
	quota := f.cfg.StorageQuotaBytes
	switch kind {
	case config.StorageMemory:
		return storage.NewMemoryBackend(quota), nil
	case config.StorageSQLite:
		b, err := storage.OpenSQLite(f.cfg.SQLitePath, quota)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.StorageAzure:
		b, err := storage.NewAzureBackend(ctx, f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.AzureContainer, quota)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", kind)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory  EngineFactory
	BackendFactory BackendFactory
}

// NewComponentFactory creates a component factory from configuration
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:  NewEngineFactory(cfg.EngineBackend, cfg.ModelDir),
		BackendFactory: NewBackendFactory(cfg),
	}
}
