package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ core.KVStore = (*DB)(nil)
	_ core.KVStore = (*MemoryStore)(nil)
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(context.Background(), filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestKVOperations(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	_, found, err := database.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, database.Set(ctx, core.KeyRegionDetection, []byte(`{"region":"CN"}`)))
	value, found, err := database.Get(ctx, core.KeyRegionDetection)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"region":"CN"}`, string(value))

	// Overwrite replaces the whole value
	require.NoError(t, database.Set(ctx, core.KeyRegionDetection, []byte(`{"region":"INTERNATIONAL"}`)))
	value, _, err = database.Get(ctx, core.KeyRegionDetection)
	require.NoError(t, err)
	assert.JSONEq(t, `{"region":"INTERNATIONAL"}`, string(value))

	require.NoError(t, database.Delete(ctx, core.KeyRegionDetection))
	_, found, err = database.Get(ctx, core.KeyRegionDetection)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting again is fine
	assert.NoError(t, database.Delete(ctx, core.KeyRegionDetection))
}

func TestKVPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, core.KeyPackageMeta, []byte("meta")))
	require.NoError(t, first.Close())

	second, err := New(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	value, found, err := second.Get(ctx, core.KeyPackageMeta)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "meta", string(value))
	assert.Equal(t, path, second.Path())
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []*HistoryEntry{
		{Kind: HistoryDependency, Subject: "dotnet", Version: "8.0.3", Region: "CN", Command: "apt install", Success: true, FinishedAt: base},
		{Kind: HistoryDependency, Subject: "node", Success: false, Error: "exit status 1", FinishedAt: base.Add(time.Minute)},
		{Kind: HistoryPackage, Subject: "app-0.1.0-linux-x64.zip", Version: "0.1.0", Success: true, FinishedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, database.RecordInstall(ctx, e))
		assert.NotZero(t, e.ID)
	}

	all, err := database.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "app-0.1.0-linux-x64.zip", all[0].Subject)
	assert.Equal(t, HistoryPackage, all[0].Kind)
	assert.Equal(t, "dotnet", all[2].Subject)
	assert.Equal(t, "CN", all[2].Region)

	limited, err := database.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	last, err := database.LastInstall(ctx, "node")
	require.NoError(t, err)
	assert.False(t, last.Success)
	assert.Equal(t, "exit status 1", last.Error)

	_, err = database.LastInstall(ctx, "java")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Error(t, database.RecordInstall(ctx, nil))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	v, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))

	require.NoError(t, store.Delete(ctx, "k"))
	_, found, _ = store.Get(ctx, "k")
	assert.False(t, found)

	store.Fail = assert.AnError
	_, _, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, store.Set(ctx, "k", nil), assert.AnError)
	assert.ErrorIs(t, store.Delete(ctx, "k"), assert.AnError)
}
