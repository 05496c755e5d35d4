package store

import (
	"context"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/repository"
	"go-media-analyzer/internal/worker"
	"go-media-analyzer/pkg/models"
)

// HistoryStore mirrors the persisted history plus the current selection.
// The in-memory list only changes after the repository has confirmed a write.
type HistoryStore struct {
	repo   repository.HistoryRepository
	pool   *worker.Pool
	events observer.Subject
	log    *logrus.Entry

	mu       sync.RWMutex
	entries  []models.HistoryEntry
	selected string
}

// NewHistoryStore loads the persisted entries. pool may be nil, in which
// case AddToHistoryAccepted runs its work on a new goroutine.
func NewHistoryStore(ctx context.Context, repo repository.HistoryRepository, pool *worker.Pool, events observer.Subject) *HistoryStore {
	s := &HistoryStore{
		repo:   repo,
		pool:   pool,
		events: events,
		log:    logger.ForComponent("history_store"),
	}
	s.entries = repo.GetEntries(ctx)
	return s
}

// Reload replaces the in-memory list with the persisted one and drops a
// selection that no longer exists
func (s *HistoryStore) Reload(ctx context.Context) []models.HistoryEntry {
	entries := s.repo.GetEntries(ctx)

	s.mu.Lock()
	s.entries = entries
	if s.selected != "" && indexOf(entries, s.selected) < 0 {
		s.selected = ""
	}
	out := slices.Clone(entries)
	s.mu.Unlock()

	s.notify(ctx)
	return out
}

// AddToHistory persists input and refreshes the list. It returns nil when
// the repository rejected or failed to store the entry.
func (s *HistoryStore) AddToHistory(ctx context.Context, input models.HistoryInput) *models.HistoryEntry {
	entry := s.repo.AddEntry(ctx, input)
	if entry == nil {
		s.log.WithField("analysis_type", input.AnalysisType).Warn("History entry was not saved")
		return nil
	}
	s.Reload(ctx)
	return entry
}

// AddToHistoryAccepted queues the add on the worker pool. It reports whether
// the job was accepted; done, when non-nil, receives the outcome.
func (s *HistoryStore) AddToHistoryAccepted(input models.HistoryInput, done func(*models.HistoryEntry)) bool {
	job := func(ctx context.Context) {
		entry := s.AddToHistory(ctx, input)
		if done != nil {
			done(entry)
		}
	}
	if s.pool == nil {
		go job(context.Background())
		return true
	}
	return s.pool.Submit(job)
}

// DeleteHistoryEntry removes id from the backend and, only if that
// succeeded, from memory
func (s *HistoryStore) DeleteHistoryEntry(ctx context.Context, id string) bool {
	if !s.repo.DeleteEntry(ctx, id) {
		return false
	}

	s.mu.Lock()
	if i := indexOf(s.entries, id); i >= 0 {
		s.entries = slices.Delete(slices.Clone(s.entries), i, i+1)
	}
	if s.selected == id {
		s.selected = ""
	}
	s.mu.Unlock()

	s.notify(ctx)
	return true
}

// ClearHistory removes everything and clears the selection
func (s *HistoryStore) ClearHistory(ctx context.Context) {
	s.repo.ClearHistory(ctx)

	s.mu.Lock()
	s.entries = nil
	s.selected = ""
	s.mu.Unlock()

	s.notify(ctx)
}

// Select marks id as selected. An empty id clears the selection; an unknown
// id is refused.
func (s *HistoryStore) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && indexOf(s.entries, id) < 0 {
		return false
	}
	s.selected = id
	return true
}

// Selected returns the selected entry, if any
func (s *HistoryStore) Selected() (models.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.entries, s.selected); i >= 0 && s.selected != "" {
		return s.entries[i], true
	}
	return models.HistoryEntry{}, false
}

// Entry returns the entry with id
func (s *HistoryStore) Entry(id string) (models.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.entries, id); i >= 0 {
		return s.entries[i], true
	}
	return models.HistoryEntry{}, false
}

func (s *HistoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// EntriesByType returns entries of one analysis mode, newest first
func (s *HistoryStore) EntriesByType(mode models.AnalysisMode) []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.HistoryEntry
	for _, e := range s.entries {
		if e.AnalysisType == mode {
			out = append(out, e)
		}
	}
	return out
}

// State returns a copy of the entries and the selection
func (s *HistoryStore) State() models.HistoryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.HistoryState{
		Entries:         slices.Clone(s.entries),
		SelectedEntryID: s.selected,
	}
}

func (s *HistoryStore) StorageUsage(ctx context.Context) *models.StorageUsage {
	return s.repo.GetStorageUsage(ctx)
}

func (s *HistoryStore) notify(ctx context.Context) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(ctx, observer.Event{
		Type:     observer.HistoryChanged,
		Success:  true,
		Metadata: map[string]interface{}{"count": s.Count()},
	})
}

func indexOf(entries []models.HistoryEntry, id string) int {
	return slices.IndexFunc(entries, func(e models.HistoryEntry) bool { return e.ID == id })
}
