package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in process memory. It enforces a quota on the
// total size of stored values and can be switched off to simulate a disabled
// store.
type MemoryBackend struct {
	mu          sync.RWMutex
	values      map[string]string
	quota       int64
	unavailable bool
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty backend; quota <= 0 means unlimited
func NewMemoryBackend(quota int64) *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string]string),
		quota:  quota,
	}
}

// SetAvailable toggles whether operations succeed
func (m *MemoryBackend) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = !available
}

// SetQuota changes the total byte quota
func (m *MemoryBackend) SetQuota(quota int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = quota
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return "", ErrUnavailable
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	if m.quota > 0 {
		var used int64
		for k, v := range m.values {
			if k != key {
				used += int64(len(v))
			}
		}
		if used+int64(len(value)) > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.values[key] = value
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	delete(m.values, key)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
