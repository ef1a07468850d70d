package chunkpipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/coordinator/internal/buffer"
	"github.com/distfs/coordinator/internal/cache"
	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/crypto"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
)

func newTestPipeline(t *testing.T) (*Pipeline, map[string]string) {
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

	return New(reg, eng, cat, cipher, ch, pool), dirs
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	content := bytes.Repeat([]byte("coordinator-data-"), 1000)
	result, err := p.Upload(ctx, "report.txt", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	assert.Positive(t, result.FileID)

	path, version, err := p.Download(ctx, "report.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	defer os.Remove(path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUploadSpansMultipleChunks(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	content := bytes.Repeat([]byte("x"), ChunkSize*2+100)
	result, err := p.Upload(ctx, "big.bin", bytes.NewReader(content))
	require.NoError(t, err)

	chunks, err := p.catalog.ListChunks(ctx, result.FileID, 1)
	require.NoError(t, err)

	indexes := map[int]bool{}
	for _, c := range chunks {
		indexes[c.ChunkIndex] = true
	}
	assert.Len(t, indexes, 3, "a file spanning just over two chunk boundaries must produce three indexes")

	path, _, err := p.Download(ctx, "big.bin", nil)
	require.NoError(t, err)
	defer os.Remove(path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUploadReplicatesChunks(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.Upload(ctx, "small.txt", bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)

	chunks, err := p.catalog.ListChunks(ctx, result.FileID, 1)
	require.NoError(t, err)
	assert.Len(t, chunks, 1+ReplicaCount, "one primary plus two replicas for a single-chunk file")

	nodes := map[string]bool{}
	for _, c := range chunks {
		nodes[c.NodeName] = true
	}
	assert.Len(t, nodes, 3, "replicas must land on distinct nodes")
}

func TestSecondUploadAdvancesVersion(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Upload(ctx, "doc.txt", bytes.NewReader([]byte("v1")))
	require.NoError(t, err)

	result2, err := p.Upload(ctx, "doc.txt", bytes.NewReader([]byte("v2 longer content")))
	require.NoError(t, err)
	assert.Equal(t, 2, result2.Version)

	path, version, err := p.Download(ctx, "doc.txt", nil)
	require.NoError(t, err)
	defer os.Remove(path)
	assert.Equal(t, 2, version)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2 longer content", string(got))
}

func TestDownloadFailsOverToReplicaWhenPrimaryMissing(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.Upload(ctx, "f.txt", bytes.NewReader([]byte("replicated content")))
	require.NoError(t, err)

	chunks, err := p.catalog.ListChunks(ctx, result.FileID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	require.NoError(t, os.Remove(chunks[0].ChunkLocation))

	path, _, err := p.Download(ctx, "f.txt", nil)
	require.NoError(t, err)
	defer os.Remove(path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replicated content", string(got))
}

func TestDownloadUnrecoverableWhenAllCopiesMissing(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.Upload(ctx, "gone.txt", bytes.NewReader([]byte("will vanish")))
	require.NoError(t, err)

	chunks, err := p.catalog.ListChunks(ctx, result.FileID, 1)
	require.NoError(t, err)
	for _, c := range chunks {
		require.NoError(t, os.Remove(c.ChunkLocation))
	}

	_, _, err = p.Download(ctx, "gone.txt", nil)
	assert.Error(t, err)
}
