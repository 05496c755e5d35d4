package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/storage"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

// SettingsKey is the backend key holding the settings record
const SettingsKey = "media-analyzer:settings"

// KVSettingsRepository stores AppSettings as one JSON document. Every value
// read or written passes through the settings validator.
type KVSettingsRepository struct {
	backend storage.Backend
	log     *logrus.Entry
}

var _ SettingsRepository = (*KVSettingsRepository)(nil)

func NewSettingsRepository(backend storage.Backend) *KVSettingsRepository {
	return &KVSettingsRepository{
		backend: backend,
		log:     logger.ForComponent("settings_repository"),
	}
}

// Load returns the persisted settings, or defaults when the record is absent,
// unreadable or the backend is unavailable.
func (r *KVSettingsRepository) Load(ctx context.Context) models.AppSettings {
	raw, err := r.backend.Get(ctx, SettingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return validation.DefaultSettings()
	}
	if err != nil {
		r.log.WithError(err).Warn("Settings backend unavailable, using defaults")
		return validation.DefaultSettings()
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		r.log.WithError(err).Warn("Stored settings are corrupt, using defaults")
		return validation.DefaultSettings()
	}

	if version := storedVersion(decoded); version != validation.CurrentSettingsVersion {
		decoded = r.migrateSettings(decoded, version)
	}
	return validation.ValidateSettings(decoded)
}

// migrateSettings is the hook for shape changes between versions. No shape
// has changed yet, so it only records the upgrade.
func (r *KVSettingsRepository) migrateSettings(raw map[string]any, from int) map[string]any {
	r.log.WithFields(logrus.Fields{
		"from_version": from,
		"to_version":   validation.CurrentSettingsVersion,
	}).Info("Migrating stored settings")
	return raw
}

func storedVersion(raw map[string]any) int {
	if v, ok := raw["version"].(float64); ok {
		return int(v)
	}
	return 0
}

// Save validates and persists settings. It reports false on any backend failure.
func (r *KVSettingsRepository) Save(ctx context.Context, settings models.AppSettings) bool {
	validated := validation.NormalizeSettings(settings)
	data, err := json.Marshal(validated)
	if err != nil {
		r.log.WithError(err).Error("Failed to encode settings")
		return false
	}

	if err := r.backend.Set(ctx, SettingsKey, string(data)); err != nil {
		entry := r.log.WithError(err).WithField("bytes", len(data))
		if errors.Is(err, storage.ErrQuotaExceeded) {
			entry.Warn("Settings exceed storage quota, not saved")
		} else {
			entry.Warn("Failed to save settings")
		}
		return false
	}
	return true
}

// ResetToDefaults removes the persisted record. Errors are logged and dropped.
func (r *KVSettingsRepository) ResetToDefaults(ctx context.Context) {
	if err := r.backend.Delete(ctx, SettingsKey); err != nil {
		r.log.WithError(err).Warn("Failed to clear stored settings")
	}
}

// IsAvailable probes the backend with a throwaway write
func (r *KVSettingsRepository) IsAvailable(ctx context.Context) bool {
	return storage.Probe(ctx, r.backend)
}
