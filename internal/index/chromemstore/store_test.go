package chromemstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag_chat/internal/chunker"
	"rag_chat/internal/index"
	"rag_chat/internal/shared"
)

func entry(id, source string, start int, vec ...float32) index.Entry {
	return index.Entry{
		Chunk:     chunker.Chunk{ID: id, Source: source, Start: start, End: start + 4, Text: "text " + id},
		Embedding: vec,
	}
}

func TestStoreAddAndSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := New()
	require.NoError(t, err)

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	assert.True(t, errors.Is(err, shared.ErrEmptyIndex))

	require.NoError(t, s.Add(ctx, []index.Entry{
		entry("a", "sky.txt", 0, 1, 0, 0),
		entry("b", "grass.txt", 0, 0, 1, 0),
		entry("c", "sky.txt", 3, 0.8, 0.2, 0),
	}))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.Dimension())

	res, err := s.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "a", res[0].Chunk.ID)
	assert.Equal(t, "sky.txt", res[0].Chunk.Source)
	assert.Equal(t, "text a", res[0].Chunk.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "c", res[1].Chunk.ID)
	assert.Equal(t, 3, res[1].Chunk.Start)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestStoreDimensionChecks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := New()
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []index.Entry{entry("a", "x", 0, 1, 0)}))

	err = s.Add(ctx, []index.Entry{entry("b", "x", 4, 1, 0, 0)})
	assert.True(t, errors.Is(err, shared.ErrDimensionMismatch))
	assert.Equal(t, 1, s.Len())

	_, err = s.Search(ctx, []float32{1, 0, 0}, 1)
	assert.True(t, errors.Is(err, shared.ErrDimensionMismatch))

	_, err = s.Search(ctx, []float32{1, 0}, 0)
	assert.True(t, errors.Is(err, shared.ErrConfiguration))
}

func TestStorePersistLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New()
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []index.Entry{
		entry("a", "sky.txt", 0, 1, 0),
		entry("b", "grass.txt", 0, 0, 1),
	}))
	require.NoError(t, s.Persist(dir))
	assert.True(t, Exists(dir))

	loaded, err := Load(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, 2, loaded.Dimension())

	want, err := s.Search(ctx, []float32{0.3, 0.7}, 2)
	require.NoError(t, err)
	got, err := loaded.Search(ctx, []float32{0.3, 0.7}, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := Load(ctx, t.TempDir())
	assert.True(t, errors.Is(err, shared.ErrIndexNotFound))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("garbage"), 0o644))
	_, err = Load(ctx, dir)
	assert.True(t, errors.Is(err, shared.ErrCorruptIndex))

	// экспорт без служебной коллекции
	dir = t.TempDir()
	s, err := New()
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []index.Entry{entry("a", "x", 0, 1, 0)}))
	require.NoError(t, s.db.ExportToFile(filepath.Join(dir, FileName), true, "", collectionName))
	_, err = Load(ctx, dir)
	assert.True(t, errors.Is(err, shared.ErrCorruptIndex))
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := New()
	require.NoError(t, err)
	entries := make([]index.Entry, 8)
	for i := range entries {
		entries[i] = entry(fmt.Sprintf("e%d", i), "same.txt", i*4, 1, 1, 0)
	}
	require.NoError(t, s.Add(ctx, entries))

	for run := 0; run < 20; run++ {
		res, err := s.Search(ctx, []float32{1, 1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "e0", res[0].Chunk.ID, "run %d", run)
		assert.Equal(t, "e1", res[1].Chunk.ID, "run %d", run)
	}
}

func TestSearchScoresMatchMemoryIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	entries := []index.Entry{
		entry("a", "x", 0, 1, 2, 3),
		entry("b", "x", 4, 0, 0, 0),
		entry("c", "x", 8, -1, 0.5, 2),
	}
	s, err := New()
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, entries))
	mem := index.New()
	require.NoError(t, mem.Add(ctx, entries))

	query := []float32{1, 2, 3}
	got, err := s.Search(ctx, query, 3)
	require.NoError(t, err)
	want, err := mem.Search(ctx, query, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1.0, got[0].Score)

	for _, r := range got {
		if r.Chunk.ID == "b" {
			assert.Equal(t, 0.0, r.Score)
		}
	}
}

func TestPersistReplacesIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New()
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []index.Entry{entry("a", "x", 0, 1, 0)}))
	require.NoError(t, s.Persist(dir))

	require.NoError(t, s.Add(ctx, []index.Entry{entry("b", "x", 4, 0, 1)}))
	require.NoError(t, s.Persist(dir))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, FileName, files[0].Name())

	loaded, err := Load(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	res, err := loaded.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", res[0].Chunk.ID)
	assert.Equal(t, 1.0, res[0].Score)
}
