// Package store holds the in-memory views of settings and history that the
// UI reads synchronously, backed by the repositories.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/repository"
	"go-media-analyzer/internal/timeutil"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

// DefaultSettingsDebounce is the quiet period before a settings write
const DefaultSettingsDebounce = 500 * time.Millisecond

// SettingsStoreOptions configures a SettingsStore
type SettingsStoreOptions struct {
	Debounce time.Duration
	Clock    timeutil.Clock
	Events   observer.Subject
}

// SettingsStore keeps the validated settings in memory and persists them
// after a quiet period. Only the last write of a burst reaches the backend.
type SettingsStore struct {
	repo     repository.SettingsRepository
	debounce time.Duration
	clock    timeutil.Clock
	events   observer.Subject
	log      *logrus.Entry

	// writeMu orders backend writes so a reset is never overwritten by an
	// older save. It is taken before mu.
	writeMu sync.Mutex

	mu      sync.Mutex
	current models.AppSettings
	// pending is nil when no write is scheduled
	pending    timeutil.Timer
	generation uint64
}

// NewSettingsStore loads the persisted settings and returns the store
func NewSettingsStore(ctx context.Context, repo repository.SettingsRepository, opts SettingsStoreOptions) *SettingsStore {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultSettingsDebounce
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &SettingsStore{
		repo:     repo,
		debounce: opts.Debounce,
		clock:    opts.Clock,
		events:   opts.Events,
		log:      logger.ForComponent("settings_store"),
		current:  repo.Load(ctx),
	}
}

// Get returns the in-memory settings
func (s *SettingsStore) Get() models.AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set validates settings, applies them immediately and schedules a write
func (s *SettingsStore) Set(settings models.AppSettings) models.AppSettings {
	normalized := validation.NormalizeSettings(settings)

	s.mu.Lock()
	s.current = normalized
	s.schedule()
	s.mu.Unlock()

	s.notify(observer.SettingsChanged, true)
	return normalized
}

// Update applies fn to a copy of the current settings and stores the result
func (s *SettingsStore) Update(fn func(*models.AppSettings)) models.AppSettings {
	next := s.Get()
	fn(&next)
	return s.Set(next)
}

func (s *SettingsStore) UpdateConfidenceThreshold(v float64) models.AppSettings {
	return s.Update(func(a *models.AppSettings) { a.Detection.ConfidenceThreshold = v })
}

func (s *SettingsStore) UpdateMaxDetections(n int) models.AppSettings {
	return s.Update(func(a *models.AppSettings) { a.Detection.MaxDetections = n })
}

func (s *SettingsStore) UpdateShowLabels(show bool) models.AppSettings {
	return s.Update(func(a *models.AppSettings) { a.Detection.ShowLabels = show })
}

func (s *SettingsStore) UpdateShowScores(show bool) models.AppSettings {
	return s.Update(func(a *models.AppSettings) { a.Detection.ShowScores = show })
}

func (s *SettingsStore) UpdateLanguage(code string) models.AppSettings {
	return s.Update(func(a *models.AppSettings) { a.OCR.Language = code })
}

func (s *SettingsStore) UpdateMinConfidence(v float64) models.AppSettings {
	return s.Update(func(a *models.AppSettings) { a.OCR.MinConfidence = v })
}

// UpdateVideoFPS clamps fps into 1-15
func (s *SettingsStore) UpdateVideoFPS(fps int) models.AppSettings {
	return s.Update(func(a *models.AppSettings) { a.Performance.VideoFPS = fps })
}

// schedule restarts the debounce deadline. Caller holds mu.
func (s *SettingsStore) schedule() {
	s.cancelPending()
	s.generation++
	gen := s.generation
	s.pending = s.clock.AfterFunc(s.debounce, func() { s.flush(gen) })
}

// cancelPending drops the scheduled write, if any. Caller holds mu.
func (s *SettingsStore) cancelPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *SettingsStore) flush(gen uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if gen != s.generation || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	settings := s.current
	s.mu.Unlock()

	s.persist(context.Background(), settings)
}

func (s *SettingsStore) persist(ctx context.Context, settings models.AppSettings) bool {
	ok := s.repo.Save(ctx, settings)
	if !ok {
		s.log.Warn("Settings were not persisted")
	}
	s.notify(observer.SettingsPersisted, ok)
	return ok
}

// HasPendingWrite reports whether a debounced write is scheduled
func (s *SettingsStore) HasPendingWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// SaveNow cancels the debounce and writes the current settings immediately
func (s *SettingsStore) SaveNow(ctx context.Context) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.cancelPending()
	s.generation++
	settings := s.current
	s.mu.Unlock()

	return s.persist(ctx, settings)
}

// Reset cancels any pending write, removes the persisted record and returns
// the in-memory value to the defaults
func (s *SettingsStore) Reset(ctx context.Context) models.AppSettings {
	s.writeMu.Lock()
	s.mu.Lock()
	s.cancelPending()
	s.generation++
	s.current = validation.DefaultSettings()
	defaults := s.current
	s.mu.Unlock()

	s.repo.ResetToDefaults(ctx)
	s.writeMu.Unlock()
	s.notify(observer.SettingsChanged, true)
	return defaults
}

// Cleanup cancels a pending write without saving it
func (s *SettingsStore) Cleanup() {
	s.mu.Lock()
	s.cancelPending()
	s.generation++
	s.mu.Unlock()
}

// Close writes any pending change before shutting the debounce down
func (s *SettingsStore) Close(ctx context.Context) {
	if s.HasPendingWrite() {
		s.SaveNow(ctx)
	}
	s.Cleanup()
}

func (s *SettingsStore) notify(t observer.EventType, success bool) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(context.Background(), observer.Event{Type: t, Success: success})
}
