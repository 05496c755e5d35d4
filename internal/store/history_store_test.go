package store

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/repository"
	"go-media-analyzer/internal/storage"
	"go-media-analyzer/internal/thumbnail"
	"go-media-analyzer/internal/timeutil"
	"go-media-analyzer/internal/worker"
	"go-media-analyzer/pkg/models"
)

func keepImage(ctx context.Context, dataURL string, opts thumbnail.Options) (thumbnail.Result, error) {
	return thumbnail.Result{DataURL: dataURL, Scale: 1, Dimensions: image.Pt(8, 8)}, nil
}

func newHistoryRepo(backend storage.Backend) *repository.KVHistoryRepository {
	var n atomic.Int64
	return repository.NewHistoryRepository(backend, repository.DefaultHistoryOptions()).
		WithClock(timeutil.NewMockClock(epoch)).
		WithCompressor(keepImage).
		WithIDGenerator(func() (string, error) { return fmt.Sprintf("h-%d", n.Add(1)), nil })
}

func classificationInput(t *testing.T) models.HistoryInput {
	t.Helper()
	u, err := thumbnail.EncodePNGDataURL(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	return models.HistoryInput{
		AnalysisType:    models.ModeClassification,
		ImageDataURL:    u,
		Results:         models.ClassificationResult{Predictions: []models.Prediction{{Label: "sharp", Confidence: 0.9}}},
		ImageDimensions: models.Dimensions{Width: 8, Height: 8},
	}
}

// refusingRepo never confirms a delete
type refusingRepo struct {
	repository.HistoryRepository
}

func (refusingRepo) DeleteEntry(ctx context.Context, id string) bool { return false }

func newObservedHistory(repo repository.HistoryRepository, pool *worker.Pool) (*HistoryStore, *recorder) {
	pub := observer.NewSyncEventPublisher()
	rec := &recorder{}
	pub.Subscribe(rec)
	return NewHistoryStore(context.Background(), repo, pool, pub), rec
}

func TestHistoryStore_AddReloadsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, rec := newObservedHistory(newHistoryRepo(storage.NewMemoryBackend(0)), nil)
	require.Zero(t, s.Count())

	first := s.AddToHistory(ctx, classificationInput(t))
	second := s.AddToHistory(ctx, classificationInput(t))
	require.NotNil(t, first)
	require.NotNil(t, second)

	state := s.State()
	require.Len(t, state.Entries, 2)
	assert.Equal(t, second.ID, state.Entries[0].ID)
	assert.Equal(t, first.ID, state.Entries[1].ID)
	assert.Equal(t, 2, rec.count(observer.HistoryChanged))
	assert.Len(t, s.EntriesByType(models.ModeClassification), 2)
	assert.Empty(t, s.EntriesByType(models.ModeOCR))
}

func TestHistoryStore_FailedAddLeavesListUntouched(t *testing.T) {
	backend := storage.NewMemoryBackend(0)
	s, rec := newObservedHistory(newHistoryRepo(backend), nil)
	backend.SetAvailable(false)

	assert.Nil(t, s.AddToHistory(context.Background(), classificationInput(t)))
	assert.Zero(t, s.Count())
	assert.Zero(t, rec.count(observer.HistoryChanged))
}

func TestHistoryStore_SelectionFollowsEntries(t *testing.T) {
	ctx := context.Background()
	s, _ := newObservedHistory(newHistoryRepo(storage.NewMemoryBackend(0)), nil)
	entry := s.AddToHistory(ctx, classificationInput(t))
	require.NotNil(t, entry)

	assert.False(t, s.Select("missing"))
	require.True(t, s.Select(entry.ID))
	got, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, entry.ID, got.ID)

	require.True(t, s.DeleteHistoryEntry(ctx, entry.ID))
	_, ok = s.Selected()
	assert.False(t, ok)
	assert.Empty(t, s.State().SelectedEntryID)
	assert.Zero(t, s.Count())
}

func TestHistoryStore_DeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	repo := newHistoryRepo(storage.NewMemoryBackend(0))
	require.NotNil(t, repo.AddEntry(ctx, classificationInput(t)))

	s, rec := newObservedHistory(refusingRepo{repo}, nil)
	require.Equal(t, 1, s.Count())
	id := s.State().Entries[0].ID
	require.True(t, s.Select(id))

	assert.False(t, s.DeleteHistoryEntry(ctx, id))
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, id, s.State().SelectedEntryID)
	assert.Zero(t, rec.count(observer.HistoryChanged))
}

func TestHistoryStore_ReloadDropsStaleSelection(t *testing.T) {
	ctx := context.Background()
	repo := newHistoryRepo(storage.NewMemoryBackend(0))
	s, _ := newObservedHistory(repo, nil)
	entry := s.AddToHistory(ctx, classificationInput(t))
	require.NotNil(t, entry)
	require.True(t, s.Select(entry.ID))

	require.True(t, repo.DeleteEntry(ctx, entry.ID))
	s.Reload(ctx)

	assert.Empty(t, s.State().SelectedEntryID)
}

func TestHistoryStore_ClearHistory(t *testing.T) {
	ctx := context.Background()
	s, _ := newObservedHistory(newHistoryRepo(storage.NewMemoryBackend(0)), nil)
	entry := s.AddToHistory(ctx, classificationInput(t))
	require.NotNil(t, entry)
	s.Select(entry.ID)

	s.ClearHistory(ctx)

	assert.Equal(t, models.HistoryState{}, s.State())
	usage := s.StorageUsage(ctx)
	require.NotNil(t, usage)
	assert.Zero(t, usage.UsedBytes)
}

func TestHistoryStore_AsyncAddRunsOnPool(t *testing.T) {
	pool := worker.NewPool(2)
	pool.Start()
	defer pool.Close()

	s, _ := newObservedHistory(newHistoryRepo(storage.NewMemoryBackend(0)), pool)
	done := make(chan *models.HistoryEntry, 1)

	require.True(t, s.AddToHistoryAccepted(classificationInput(t), func(e *models.HistoryEntry) { done <- e }))

	select {
	case e := <-done:
		require.NotNil(t, e)
		_, ok := s.Entry(e.ID)
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("async add never completed")
	}
}

func TestHistoryStore_AsyncAddRefusedAfterClose(t *testing.T) {
	pool := worker.NewPool(1)
	pool.Close()

	s, _ := newObservedHistory(newHistoryRepo(storage.NewMemoryBackend(0)), pool)
	assert.False(t, s.AddToHistoryAccepted(classificationInput(t), nil))
}
