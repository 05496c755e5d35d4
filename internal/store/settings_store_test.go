package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/repository"
	"go-media-analyzer/internal/storage"
	"go-media-analyzer/internal/timeutil"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

var epoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// countingRepo records every Save that reaches the repository
type countingRepo struct {
	repository.SettingsRepository

	mu    sync.Mutex
	saved []models.AppSettings
	fail  bool
}

func (r *countingRepo) Save(ctx context.Context, s models.AppSettings) bool {
	r.mu.Lock()
	r.saved = append(r.saved, s)
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return false
	}
	return r.SettingsRepository.Save(ctx, s)
}

func (r *countingRepo) saves() []models.AppSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AppSettings(nil), r.saved...)
}

type recorder struct {
	mu     sync.Mutex
	events []observer.Event
}

func (r *recorder) OnEvent(ctx context.Context, e observer.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) GetObserverName() string { return "recorder" }

func (r *recorder) count(t observer.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t observer.EventType) (observer.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return observer.Event{}, false
}

type settingsFixture struct {
	store   *SettingsStore
	repo    *countingRepo
	backend *storage.MemoryBackend
	clock   *timeutil.MockClock
	events  *recorder
}

func newSettingsFixture(t *testing.T) settingsFixture {
	t.Helper()
	backend := storage.NewMemoryBackend(0)
	repo := &countingRepo{SettingsRepository: repository.NewSettingsRepository(backend)}
	clock := timeutil.NewMockClock(epoch)
	pub := observer.NewSyncEventPublisher()
	rec := &recorder{}
	pub.Subscribe(rec)
	s := NewSettingsStore(context.Background(), repo, SettingsStoreOptions{Clock: clock, Events: pub})
	return settingsFixture{store: s, repo: repo, backend: backend, clock: clock, events: rec}
}

func (f settingsFixture) persisted(t *testing.T) models.AppSettings {
	t.Helper()
	return repository.NewSettingsRepository(f.backend).Load(context.Background())
}

func TestSettingsStore_StartsFromPersistedValue(t *testing.T) {
	backend := storage.NewMemoryBackend(0)
	repo := repository.NewSettingsRepository(backend)
	saved := validation.DefaultSettings()
	saved.OCR.Language = "deu"
	require.True(t, repo.Save(context.Background(), saved))

	s := NewSettingsStore(context.Background(), repo, SettingsStoreOptions{Clock: timeutil.NewMockClock(epoch)})

	assert.Equal(t, "deu", s.Get().OCR.Language)
	assert.False(t, s.HasPendingWrite())
}

func TestSettingsStore_VideoFPSIsClampedAndPersistedAfterDebounce(t *testing.T) {
	f := newSettingsFixture(t)

	got := f.store.UpdateVideoFPS(0)
	assert.Equal(t, 1, got.Performance.VideoFPS)
	assert.Equal(t, 1, f.store.Get().Performance.VideoFPS)

	got = f.store.UpdateVideoFPS(999)
	assert.Equal(t, 15, got.Performance.VideoFPS)
	assert.Empty(t, f.repo.saves(), "nothing is written before the quiet period")

	f.clock.Advance(DefaultSettingsDebounce)

	require.Len(t, f.repo.saves(), 1)
	assert.Equal(t, 15, f.persisted(t).Performance.VideoFPS)
	assert.False(t, f.store.HasPendingWrite())
}

func TestSettingsStore_BurstPersistsOnlyLastValue(t *testing.T) {
	f := newSettingsFixture(t)

	for _, v := range []float64{10, 20, 30, 40} {
		f.store.UpdateConfidenceThreshold(v)
		f.clock.Advance(DefaultSettingsDebounce / 2)
	}
	assert.Empty(t, f.repo.saves())

	f.clock.Advance(DefaultSettingsDebounce)

	saves := f.repo.saves()
	require.Len(t, saves, 1)
	assert.Equal(t, 40.0, saves[0].Detection.ConfidenceThreshold)
	assert.Equal(t, 4, f.events.count(observer.SettingsChanged))

	ev, ok := f.events.last(observer.SettingsPersisted)
	require.True(t, ok)
	assert.True(t, ev.Success)
}

func TestSettingsStore_UpdatersNormalize(t *testing.T) {
	f := newSettingsFixture(t)

	f.store.UpdateConfidenceThreshold(250)
	f.store.UpdateMaxDetections(-3)
	f.store.UpdateShowLabels(false)
	f.store.UpdateShowScores(false)
	f.store.UpdateLanguage("not-a-language")
	got := f.store.UpdateMinConfidence(42)

	assert.Equal(t, 100.0, got.Detection.ConfidenceThreshold)
	assert.Equal(t, 1, got.Detection.MaxDetections)
	assert.False(t, got.Detection.ShowLabels)
	assert.False(t, got.Detection.ShowScores)
	assert.Equal(t, validation.DefaultLanguage, got.OCR.Language)
	assert.Equal(t, 42.0, got.OCR.MinConfidence)
}

func TestSettingsStore_SaveNowCancelsDebounce(t *testing.T) {
	f := newSettingsFixture(t)

	f.store.UpdateLanguage("fra")
	require.True(t, f.store.HasPendingWrite())

	assert.True(t, f.store.SaveNow(context.Background()))
	assert.False(t, f.store.HasPendingWrite())

	f.clock.Advance(2 * DefaultSettingsDebounce)
	assert.Len(t, f.repo.saves(), 1)
	assert.Equal(t, "fra", f.persisted(t).OCR.Language)
}

func TestSettingsStore_FailedWriteIsReported(t *testing.T) {
	f := newSettingsFixture(t)
	f.repo.fail = true

	f.store.UpdateShowScores(false)
	f.clock.Advance(DefaultSettingsDebounce)

	ev, ok := f.events.last(observer.SettingsPersisted)
	require.True(t, ok)
	assert.False(t, ev.Success)
	assert.False(t, f.store.Get().Detection.ShowScores, "memory keeps the new value")
}

func TestSettingsStore_ResetDropsPendingWrite(t *testing.T) {
	f := newSettingsFixture(t)
	f.store.UpdateVideoFPS(12)
	require.True(t, f.store.SaveNow(context.Background()))

	f.store.UpdateVideoFPS(3)
	got := f.store.Reset(context.Background())
	f.clock.Advance(DefaultSettingsDebounce)

	assert.Equal(t, validation.DefaultSettings(), got)
	assert.Equal(t, validation.DefaultSettings(), f.store.Get())
	assert.Len(t, f.repo.saves(), 1)
	assert.Equal(t, validation.DefaultSettings(), f.persisted(t))
}

// gatedRepo holds the first Save until release is closed
type gatedRepo struct {
	repository.SettingsRepository

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *gatedRepo) Save(ctx context.Context, s models.AppSettings) bool {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.SettingsRepository.Save(ctx, s)
}

func TestSettingsStore_ResetIsNotOverwrittenByInFlightWrite(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend(0)
	repo := &gatedRepo{
		SettingsRepository: repository.NewSettingsRepository(backend),
		entered:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	clock := timeutil.NewMockClock(epoch)
	s := NewSettingsStore(ctx, repo, SettingsStoreOptions{Clock: clock})

	s.UpdateVideoFPS(4)
	go clock.Advance(DefaultSettingsDebounce)
	select {
	case <-repo.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced write never started")
	}

	resetDone := make(chan models.AppSettings, 1)
	go func() { resetDone <- s.Reset(ctx) }()
	select {
	case <-resetDone:
		t.Fatal("reset finished while a write was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(repo.release)
	select {
	case got := <-resetDone:
		assert.Equal(t, validation.DefaultSettings(), got)
	case <-time.After(2 * time.Second):
		t.Fatal("reset never finished")
	}

	assert.Equal(t, validation.DefaultSettings(), repository.NewSettingsRepository(backend).Load(ctx))
	assert.Equal(t, validation.DefaultSettings(), s.Get())
}

func TestSettingsStore_CleanupDiscardsAndCloseFlushes(t *testing.T) {
	t.Run("cleanup", func(t *testing.T) {
		f := newSettingsFixture(t)
		f.store.UpdateMaxDetections(7)
		f.store.Cleanup()
		f.clock.Advance(DefaultSettingsDebounce)
		assert.Empty(t, f.repo.saves())
	})

	t.Run("close", func(t *testing.T) {
		f := newSettingsFixture(t)
		f.store.UpdateMaxDetections(7)
		f.store.Close(context.Background())
		require.Len(t, f.repo.saves(), 1)
		assert.Equal(t, 7, f.persisted(t).Detection.MaxDetections)

		f.clock.Advance(DefaultSettingsDebounce)
		assert.Len(t, f.repo.saves(), 1)
	})

	t.Run("close without changes", func(t *testing.T) {
		f := newSettingsFixture(t)
		f.store.Close(context.Background())
		assert.Empty(t, f.repo.saves())
	})
}
