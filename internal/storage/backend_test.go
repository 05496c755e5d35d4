package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendContract runs the behaviour every Backend must share
func backendContract(t *testing.T, newBackend func(t *testing.T, quota int64) Backend) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		b := newBackend(t, 0)
		_, err := b.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set get overwrite delete", func(t *testing.T) {
		b := newBackend(t, 0)
		require.NoError(t, b.Set(ctx, "k", "v1"))
		require.NoError(t, b.Set(ctx, "k", "v2"))

		got, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", got)

		require.NoError(t, b.Delete(ctx, "k"))
		_, err = b.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, b.Delete(ctx, "k"), "deleting an absent key is a no-op")
	})

	t.Run("quota counts every key", func(t *testing.T) {
		b := newBackend(t, 10)
		require.NoError(t, b.Set(ctx, "a", "123456"))
		assert.ErrorIs(t, b.Set(ctx, "b", "12345"), ErrQuotaExceeded)
		require.NoError(t, b.Set(ctx, "b", "1234"))

		// replacing a value only counts the new size
		require.NoError(t, b.Set(ctx, "a", "123456"))
		got, err := b.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "1234", got)
	})

	t.Run("quota rejection keeps old value", func(t *testing.T) {
		b := newBackend(t, 8)
		require.NoError(t, b.Set(ctx, "k", "small"))
		assert.ErrorIs(t, b.Set(ctx, "k", strings.Repeat("x", 9)), ErrQuotaExceeded)
		got, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "small", got)
	})

	t.Run("probe", func(t *testing.T) {
		b := newBackend(t, 0)
		assert.True(t, Probe(ctx, b))
		_, err := b.Get(ctx, "__storage_probe__")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryBackend(t *testing.T) {
	backendContract(t, func(t *testing.T, quota int64) Backend {
		return NewMemoryBackend(quota)
	})
}

func TestSQLiteBackend(t *testing.T) {
	backendContract(t, func(t *testing.T, quota int64) Backend {
		b, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"), quota)
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	b, err := OpenSQLite(path, 0)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "settings", `{"version":1}`))
	require.NoError(t, b.Close())

	reopened, err := OpenSQLite(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, got)
}

func TestSQLiteBackend_ClosedIsUnavailable(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(":memory:", 0)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Set(ctx, "k", "v"), ErrUnavailable)
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, Probe(ctx, b))
}

func TestMemoryBackend_Unavailable(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	require.NoError(t, b.Set(ctx, "k", "v"))

	b.SetAvailable(false)
	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, b.Set(ctx, "k", "v"), ErrUnavailable)
	assert.ErrorIs(t, b.Delete(ctx, "k"), ErrUnavailable)
	assert.False(t, Probe(ctx, b))

	b.SetAvailable(true)
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestProbeFullBackendIsAvailable(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(4)
	require.NoError(t, b.Set(ctx, "k", "full"))
	assert.True(t, Probe(ctx, b))
}

func TestProbeNilBackend(t *testing.T) {
	assert.False(t, Probe(context.Background(), nil))
}

func TestNewAzureBackend_RejectsMalformedKey(t *testing.T) {
	_, err := NewAzureBackend(context.Background(), "account", "not base64 !!", "history", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure credential")
}
