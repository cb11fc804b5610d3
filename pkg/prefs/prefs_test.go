package prefs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreTests exercises the behavior every backend shares.
func runStoreTests(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := s.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "previousDirection", "TB"))
		v, ok, err := s.Get(ctx, "previousDirection")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "TB", v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "previousDirection", "RL"))
		v, _, err := s.Get(ctx, "previousDirection")
		require.NoError(t, err)
		assert.Equal(t, "RL", v)
	})

	t.Run("empty value is present", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "blank", ""))
		_, ok, err := s.Get(ctx, "blank")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for _, v := range []string{"LR", "RL", "TB", "BT"} {
			wg.Add(1)
			go func(v string) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, "race", v))
			}(v)
		}
		wg.Wait()
		v, ok, err := s.Get(ctx, "race")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, []string{"LR", "RL", "TB", "BT"}, v)
	})
}

func TestStores_Clear(t *testing.T) {
	ctx := context.Background()
	backends := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			return s
		},
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			require.NoError(t, s.Set(ctx, "previousDirection", "TB"))
			require.NoError(t, s.Set(ctx, "theme", "dark"))
			require.NoError(t, s.Clear(ctx))

			for _, key := range []string{"previousDirection", "theme"} {
				_, ok, err := s.Get(ctx, key)
				require.NoError(t, err)
				assert.False(t, ok, key)
			}

			require.NoError(t, s.Set(ctx, "previousDirection", "BT"))
			v, ok, err := s.Get(ctx, "previousDirection")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "BT", v)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	runStoreTests(t, s)

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='client_state'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "client_state", name)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "previousDirection", "BT"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "previousDirection")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "BT", v)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	runStoreTests(t, s)

	data, err := os.ReadFile(filepath.Join(dir, "previousDirection"))
	require.NoError(t, err)
	assert.Equal(t, "RL", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files are renamed or removed")
	}
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/b", "/abs"} {
		assert.ErrorIs(t, s.Set(ctx, key, "x"), ErrInvalidKey, "key %q", key)
		_, _, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "memory")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, "file:"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, "file:")
	assert.Error(t, err)

	_, err = Open(ctx, "etcd://localhost")
	assert.Error(t, err)
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	url := "redis://" + mr.Addr()

	s, err := Open(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "previousDirection", "TB"))
	got, err := mr.Get("graphview:state:previousDirection")
	require.NoError(t, err)
	assert.Equal(t, "TB", got)

	mr.Close()
	_, err = Open(ctx, url)
	assert.Error(t, err)
}
