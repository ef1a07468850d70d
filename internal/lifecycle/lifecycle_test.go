package lifecycle

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/coordinator/internal/buffer"
	"github.com/distfs/coordinator/internal/cache"
	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/chunkpipeline"
	"github.com/distfs/coordinator/internal/crypto"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
)

func readerOf(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}

func newTestMaintainer(t *testing.T) (*Maintainer, *chunkpipeline.Pipeline, map[string]string) {
	t.Helper()
	dirs := map[string]string{
		"node1": t.TempDir(),
		"node2": t.TempDir(),
		"node3": t.TempDir(),
	}
	reg := registry.New(dirs)
	eng := placement.NewEngine(reg, 500*1024*1024)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	key, err := crypto.LoadOrCreate(filepath.Join(t.TempDir(), "crypto.key"), filepath.Join(t.TempDir(), "crypto.salt"), 1000)
	require.NoError(t, err)
	cipher := crypto.New(key)

	ch := cache.NewChunkCache(nil)
	pool := buffer.NewBytePool()

	pipeline := chunkpipeline.New(reg, eng, cat, cipher, ch, pool)
	m := New(cat, reg, eng, cipher, ch, nil, "node3")
	return m, pipeline, dirs
}

func TestRunDeduplicationLinksSecondFileToPrimary(t *testing.T) {
	m, pipeline, _ := newTestMaintainer(t)
	ctx := context.Background()

	_, err := pipeline.Upload(ctx, "a.txt", readerOf("identical content"))
	require.NoError(t, err)
	_, err = pipeline.Upload(ctx, "b.txt", readerOf("identical content"))
	require.NoError(t, err)

	require.NoError(t, m.RunDeduplication(ctx))

	fa, err := m.catalog.GetFileByFilename(ctx, "a.txt")
	require.NoError(t, err)
	fb, err := m.catalog.GetFileByFilename(ctx, "b.txt")
	require.NoError(t, err)

	require.NotNil(t, fb.DeduplicationRef)
	assert.Equal(t, fa.ID, *fb.DeduplicationRef)

	entries, err := m.catalog.ListDeduplication(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].ReferenceCount)
}

func TestArchiveAndRestoreFile(t *testing.T) {
	m, pipeline, dirs := newTestMaintainer(t)
	ctx := context.Background()

	result, err := pipeline.Upload(ctx, "cold.bin", readerOf("data to archive"))
	require.NoError(t, err)

	require.NoError(t, m.ArchiveFile(ctx, result.FileID))

	f, err := m.catalog.GetFileByID(ctx, result.FileID)
	require.NoError(t, err)
	assert.True(t, f.IsArchived)

	archiveDir := filepath.Join(dirs["node3"], "archives")
	entries, err := os.ReadDir(archiveDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	require.NoError(t, m.RestoreFile(ctx, result.FileID, chunkpipeline.ChunkSize))

	f, err = m.catalog.GetFileByID(ctx, result.FileID)
	require.NoError(t, err)
	assert.False(t, f.IsArchived)

	chunks, err := m.catalog.ListChunks(ctx, result.FileID, 1)
	require.NoError(t, err)
	found := false
	for _, c := range chunks {
		if c.Status == "active" {
			found = true
		}
	}
	assert.True(t, found, "restore must insert at least one active chunk row")
}
