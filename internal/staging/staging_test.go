package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
	"github.com/stretchr/testify/require"
)

func chunk(n int) []byte {
	return []byte(fmt.Sprintf(`{"type":"Feature","geometry":null,"properties":{"n":%d}}`, n))
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileSystemStore(t.TempDir(), 2)
	require.NoError(t, err)
	return map[string]Store{
		"filesystem": fs,
		"memory":     NewMemoryStore(0),
	}
}

func TestStore_AppendAndReadBack(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			// Interleave more units than the handle cache holds.
			ids := []groupkey.Identifier{"North", "South", "East", "North", "West", "South"}
			for i, id := range ids {
				require.NoError(t, store.Append(id, chunk(i)))
			}

			units, err := store.Units()
			require.NoError(t, err)
			require.Equal(t, []groupkey.Identifier{"North", "South", "East", "West"}, units)

			north, err := store.ReadAll("North")
			require.NoError(t, err)
			require.Len(t, north, 2)
			require.Equal(t, string(chunk(0)), string(north[0]))
			require.Equal(t, string(chunk(3)), string(north[1]))

			// Appending after a read continues the same unit.
			require.NoError(t, store.Append("North", chunk(9)))
			north, err = store.ReadAll("North")
			require.NoError(t, err)
			require.Len(t, north, 3)
		})
	}
}

func TestStore_RejectsBadChunks(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			require.ErrorIs(t, store.Append("a", nil), coreerr.ErrStagingIO)
			require.ErrorIs(t, store.Append("a", []byte("{}\n{}")), coreerr.ErrStagingIO)
		})
	}
}

func TestStore_CorruptChunkIsReported(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			require.NoError(t, store.Append("u", chunk(1)))
			require.NoError(t, store.Append("u", []byte(`{"type":"Feature","geometry":`)))

			_, err := store.ReadAll("u")
			require.ErrorIs(t, err, coreerr.ErrStagingCorrupt)

			var corrupt *coreerr.StagingCorruptError
			require.ErrorAs(t, err, &corrupt)
			require.Equal(t, "u", corrupt.Unit)
			require.Equal(t, 2, corrupt.Line)
		})
	}
}

func TestStore_ClosedStoreFails(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Append("u", chunk(1)))
			require.NoError(t, store.Close())
			require.NoError(t, store.Close())

			require.ErrorIs(t, store.Append("u", chunk(2)), coreerr.ErrStagingIO)
			_, err := store.Units()
			require.ErrorIs(t, err, coreerr.ErrStagingIO)
			_, err = store.ReadAll("u")
			require.ErrorIs(t, err, coreerr.ErrStagingIO)
		})
	}
}

func TestFileSystemStore_CloseRemovesWorkspace(t *testing.T) {
	parent := t.TempDir()
	store, err := NewFileSystemStore(parent, 4)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(store.Dir(), parent))

	require.NoError(t, store.Append("a", chunk(1)))
	require.NoError(t, store.Append("b", chunk(2)))

	require.NoError(t, store.Close())
	_, err = os.Stat(store.Dir())
	require.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFileSystemStore_LongIdentifiers(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), 4)
	require.NoError(t, err)
	defer store.Close()

	long := groupkey.Identifier(strings.Repeat("北", 200))
	require.NoError(t, store.Append(long, chunk(1)))

	got, err := store.ReadAll(long)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFileSystemStore_BoundsOpenHandles(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), 3)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, store.Append(groupkey.Identifier(fmt.Sprintf("g%d", i)), chunk(i)))
		require.LessOrEqual(t, store.handles.len(), 3)
	}

	files, err := filepath.Glob(filepath.Join(store.Dir(), "*.ndjson"))
	require.NoError(t, err)
	require.Len(t, files, 50)
}

func TestFileSystemStore_ConcurrentReads(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), 8)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 20; i++ {
		for j := 0; j < 5; j++ {
			require.NoError(t, store.Append(groupkey.Identifier(fmt.Sprintf("g%d", i)), chunk(j)))
		}
	}

	units, err := store.Units()
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, len(units))
	for _, id := range units {
		wg.Add(1)
		go func(id groupkey.Identifier) {
			defer wg.Done()
			got, err := store.ReadAll(id)
			if err == nil && len(got) != 5 {
				err = fmt.Errorf("unit %s: got %d chunks", id, len(got))
			}
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestMemoryStore_Limit(t *testing.T) {
	c := chunk(1)
	store := NewMemoryStore(int64(len(c)) * 2)
	defer store.Close()

	require.NoError(t, store.Append("a", c))
	require.NoError(t, store.Append("b", c))
	require.ErrorIs(t, store.Append("a", c), coreerr.ErrStagingIO)
	require.Equal(t, int64(len(c))*2, store.Size())
}
