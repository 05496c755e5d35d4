package repository

import (
	"context"
	"image"

	"go-media-analyzer/pkg/models"
)

// SettingsRepository is the single owner of the persisted settings record
type SettingsRepository interface {
	Load(ctx context.Context) models.AppSettings
	Save(ctx context.Context, settings models.AppSettings) bool
	ResetToDefaults(ctx context.Context)
	IsAvailable(ctx context.Context) bool
}

// HistoryRepository is the single owner of the persisted history log
type HistoryRepository interface {
	GetEntries(ctx context.Context) []models.HistoryEntry
	AddEntry(ctx context.Context, input models.HistoryInput) *models.HistoryEntry
	DeleteEntry(ctx context.Context, id string) bool
	ClearHistory(ctx context.Context)
	GetStorageUsage(ctx context.Context) *models.StorageUsage
}

// MediaRepository resolves a media element from a remote URL or a data URL
type MediaRepository interface {
	FetchImage(ctx context.Context, mediaURL string) (image.Image, error)
	DecodeDataURL(dataURL string) (image.Image, error)
}
