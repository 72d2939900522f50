package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harun/casegen/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileStore(t *testing.T) {
	t.Run("missing file starts empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")

		store, err := OpenFileStore(path)
		require.NoError(t, err)

		n, err := store.Len(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err), "opening must not create the snapshot")
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := OpenFileStore("")
		assert.Error(t, err)
	})

	t.Run("loads legacy snapshot", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")
		legacy := `{"abc": {"manual": "**Case 1:** Открыть страницу"}}`
		require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

		store, err := OpenFileStore(path)
		require.NoError(t, err)

		s, ok, err := store.Get(context.Background(), "abc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "**Case 1:** Открыть страницу", s.Manual)
	})

	malformed := map[string]string{
		"not json":           `{"abc": `,
		"empty file":         "   \n",
		"array root":         `["abc"]`,
		"missing manual":     `{"abc": {"text": "x"}}`,
		"manual not string":  `{"abc": {"manual": 42}}`,
		"session not object": `{"abc": "manual"}`,
	}
	for name, content := range malformed {
		t.Run("malformed: "+name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sessions.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))

			store, err := OpenFileStore(path)
			assert.Nil(t, store)
			assert.True(t, errors.Is(err, ErrMalformedSnapshot), "got %v", err)
		})
	}
}

func TestFileStorePutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "sessions.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	id := NewID()
	created := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, id, Session{Manual: "T <b>&</b>", CreatedAt: created}))

	s, ok, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T <b>&</b>", s.Manual)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "T <b>&</b>", "snapshot must stay human-readable")
	assert.Contains(t, string(data), "\n  ")

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "T <b>&</b>", raw[id]["manual"])
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)

	id := NewID()
	require.NoError(t, store.Put(ctx, id, Session{Manual: "manual text"}))
	require.NoError(t, store.Put(ctx, "second", Session{Manual: "other"}))
	require.NoError(t, store.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)

	s, ok, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "manual text", s.Manual)

	n, _ := reopened.Len(ctx)
	assert.Equal(t, 2, n)
}

func TestFileStorePutOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a", Session{Manual: "v1"}))
	require.NoError(t, store.Put(ctx, "a", Session{Manual: "v2"}))

	s, _, _ := store.Get(ctx, "a")
	assert.Equal(t, "v2", s.Manual)
	n, _ := store.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestFileStorePutEmptyID(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)

	assert.Error(t, store.Put(context.Background(), "", Session{Manual: "x"}))
}

func TestFileStorePersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	blocker := filepath.Join(dir, "blocker")
	store, err := OpenFileStore(filepath.Join(blocker, "sessions.json"))
	require.NoError(t, err)

	// The snapshot directory can no longer be created.
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0600))

	err = store.Put(ctx, "a", Session{Manual: "lost"})
	require.Error(t, err)

	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok, "failed put must not leave the session in memory")
}

func TestFileStoreConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Put(ctx, fmt.Sprintf("s-%d", i), Session{Manual: fmt.Sprintf("m-%d", i)}))
		}(i)
	}
	wg.Wait()

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	n, _ := reopened.Len(ctx)
	assert.Equal(t, 32, n)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".sessions.json-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStoreMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "sessions.json"), WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "a", Session{Manual: "x"}))
	require.NoError(t, store.Put(context.Background(), "b", Session{Manual: "y"}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsStored))
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
