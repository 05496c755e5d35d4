package repository

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/storage"
	"go-media-analyzer/internal/thumbnail"
	"go-media-analyzer/internal/timeutil"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

// HistoryKey is the backend key holding the history array
const HistoryKey = "media-analyzer:history"

// HistoryOptions configure the history log
type HistoryOptions struct {
	MaxEntries int
	Thumbnail  thumbnail.Options
	// QuotaBytes is reported as available space; it is an estimate, not measured
	QuotaBytes int64
}

// DefaultHistoryOptions keeps ten entries with 400px wide thumbnails
func DefaultHistoryOptions() HistoryOptions {
	return HistoryOptions{
		MaxEntries: 10,
		Thumbnail:  thumbnail.DefaultOptions(),
		QuotaBytes: storage.DefaultQuotaBytes,
	}
}

// CompressFunc shrinks an image data URL
type CompressFunc func(ctx context.Context, dataURL string, opts thumbnail.Options) (thumbnail.Result, error)

// KVHistoryRepository stores history as one JSON array, newest first.
// Writes are serialized so concurrent adds cannot lose each other's entries.
type KVHistoryRepository struct {
	backend  storage.Backend
	opts     HistoryOptions
	clock    timeutil.Clock
	newID    func() (string, error)
	compress CompressFunc
	log      *logrus.Entry

	writeMu sync.Mutex
}

var _ HistoryRepository = (*KVHistoryRepository)(nil)

func NewHistoryRepository(backend storage.Backend, opts HistoryOptions) *KVHistoryRepository {
	if opts.MaxEntries < 1 {
		opts.MaxEntries = DefaultHistoryOptions().MaxEntries
	}
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = storage.DefaultQuotaBytes
	}
	return &KVHistoryRepository{
		backend:  backend,
		opts:     opts,
		clock:    timeutil.RealClock{},
		newID:    newUUID,
		compress: thumbnail.Compress,
		log:      logger.ForComponent("history_repository"),
	}
}

// WithClock replaces the clock used for entry timestamps
func (r *KVHistoryRepository) WithClock(clock timeutil.Clock) *KVHistoryRepository {
	r.clock = clock
	return r
}

// WithIDGenerator replaces the entry id source
func (r *KVHistoryRepository) WithIDGenerator(newID func() (string, error)) *KVHistoryRepository {
	r.newID = newID
	return r
}

// WithCompressor replaces the image compressor
func (r *KVHistoryRepository) WithCompressor(compress CompressFunc) *KVHistoryRepository {
	r.compress = compress
	return r
}

// GetEntries returns every well-formed persisted entry, newest first.
// Unreadable or malformed data yields an empty list.
func (r *KVHistoryRepository) GetEntries(ctx context.Context) []models.HistoryEntry {
	raw, err := r.backend.Get(ctx, HistoryKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.HistoryEntry{}
	}
	if err != nil {
		r.log.WithError(err).Warn("History backend unavailable")
		return []models.HistoryEntry{}
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		r.log.WithError(err).Warn("Stored history is corrupt, treating as empty")
		return []models.HistoryEntry{}
	}
	if _, ok := decoded.([]any); !ok {
		r.log.WithField("type", fmt.Sprintf("%T", decoded)).Warn("Stored history is not an array, treating as empty")
		return []models.HistoryEntry{}
	}

	entries := validation.FilterValid(decoded)
	if dropped := len(decoded.([]any)) - len(entries); dropped > 0 {
		r.log.WithField("dropped", dropped).Warn("Dropped malformed history entries")
	}
	return entries
}

// AddEntry compresses the image, rescales the result geometry to match,
// prepends the entry and persists the capped list. It returns nil when the
// entry could not be stored.
func (r *KVHistoryRepository) AddEntry(ctx context.Context, input models.HistoryInput) *models.HistoryEntry {
	if !input.AnalysisType.Valid() || input.Results == nil || input.Results.Mode() != input.AnalysisType {
		r.log.WithField("analysis_type", input.AnalysisType).Warn("Refusing history entry with mismatched results")
		return nil
	}
	if !storage.Probe(ctx, r.backend) {
		r.log.Warn("History backend unavailable, entry not saved")
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	imageDataURL, dims, scale := r.compressImage(ctx, input)

	results := input.Results
	if scale != 1 {
		results = results.Rescaled(scale)
	}

	id, err := r.newID()
	if err != nil {
		r.log.WithError(err).Error("Failed to generate history entry id")
		return nil
	}

	entry := models.HistoryEntry{
		ID:              id,
		Timestamp:       models.FormatTimestamp(r.clock.Now()),
		AnalysisType:    input.AnalysisType,
		ImageDataURL:    imageDataURL,
		Results:         results,
		ImageDimensions: dims,
	}

	entries := append([]models.HistoryEntry{entry}, r.GetEntries(ctx)...)
	if len(entries) > r.opts.MaxEntries {
		entries = entries[:r.opts.MaxEntries]
	}

	if err := r.persist(ctx, entries); err != nil {
		if !errors.Is(err, storage.ErrQuotaExceeded) {
			r.log.WithError(err).Error("Failed to save history entry")
			return nil
		}

		keep := max(1, len(entries)/2)
		r.log.WithFields(logrus.Fields{"from": len(entries), "to": keep}).
			Warn("History exceeds storage quota, dropping oldest entries")
		entries = entries[:keep]

		if err := r.persist(ctx, entries); err != nil {
			r.log.WithError(err).Error("History still exceeds quota after truncation, clearing it")
			if delErr := r.backend.Delete(ctx, HistoryKey); delErr != nil {
				r.log.WithError(delErr).Error("Failed to clear history")
			}
			return nil
		}
	}

	r.log.WithFields(logrus.Fields{
		"id":            entry.ID,
		"analysis_type": entry.AnalysisType,
		"scale":         scale,
		"entries":       len(entries),
	}).Info("History entry saved")
	return &entry
}

// compressImage falls back to the original image at scale 1 on any failure
func (r *KVHistoryRepository) compressImage(ctx context.Context, input models.HistoryInput) (string, models.Dimensions, float64) {
	res, err := r.compress(ctx, input.ImageDataURL, r.opts.Thumbnail)
	if err != nil {
		r.log.WithError(err).Warn("Image compression failed, storing original")
		return input.ImageDataURL, input.ImageDimensions, 1
	}
	return res.DataURL, models.Dimensions{Width: res.Dimensions.X, Height: res.Dimensions.Y}, res.Scale
}

func (r *KVHistoryRepository) persist(ctx context.Context, entries []models.HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return r.backend.Set(ctx, HistoryKey, string(data))
}

// DeleteEntry removes one entry. It reports false when the id is unknown,
// the backend is unavailable or the write fails.
func (r *KVHistoryRepository) DeleteEntry(ctx context.Context, id string) bool {
	if !storage.Probe(ctx, r.backend) {
		r.log.Warn("History backend unavailable, entry not deleted")
		return false
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	entries := r.GetEntries(ctx)
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false
	}

	if err := r.persist(ctx, kept); err != nil {
		r.log.WithError(err).WithField("id", id).Error("Failed to delete history entry")
		return false
	}
	return true
}

// ClearHistory deletes the persisted log. Errors are logged and dropped.
func (r *KVHistoryRepository) ClearHistory(ctx context.Context) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.backend.Delete(ctx, HistoryKey); err != nil {
		r.log.WithError(err).Warn("Failed to clear history")
	}
}

// GetStorageUsage reports the size of the persisted log against the quota
// estimate, or nil when the backend is unavailable.
func (r *KVHistoryRepository) GetStorageUsage(ctx context.Context) *models.StorageUsage {
	if !storage.Probe(ctx, r.backend) {
		return nil
	}
	raw, err := r.backend.Get(ctx, HistoryKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.log.WithError(err).Warn("Failed to read history size")
		return nil
	}
	return &models.StorageUsage{
		UsedBytes:      int64(len(raw)),
		AvailableBytes: r.opts.QuotaBytes,
	}
}

// newUUID prefers a crypto-backed v4 UUID and falls back to an RFC 4122
// shaped value from a non-crypto source.
func newUUID() (string, error) {
	id, err := uuid.NewRandomFromReader(rand.Reader)
	if err == nil {
		return id.String(), nil
	}

	var b [16]byte
	for i := range b {
		b[i] = byte(mrand.IntN(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
