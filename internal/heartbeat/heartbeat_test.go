package heartbeat

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
)

func newTestMonitor(t *testing.T, period, threshold time.Duration) (*Monitor, map[string]string) {
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

	return New(reg, cat, eng, period, threshold, nil), dirs
}

func TestIngestReportsRecoveryOnFirstHeartbeat(t *testing.T) {
	m, _ := newTestMonitor(t, time.Hour, time.Hour)
	ctx := context.Background()

	recovered, err := m.Ingest(ctx, "node1")
	require.NoError(t, err)
	assert.True(t, recovered)

	recovered, err = m.Ingest(ctx, "node1")
	require.NoError(t, err)
	assert.False(t, recovered, "a second heartbeat from an already-live node is not a recovery")
}

func TestRedistributeChunksMovesChunksOffFailedNode(t *testing.T) {
	m, dirs := newTestMonitor(t, time.Hour, time.Hour)
	ctx := context.Background()

	chunkPath := filepath.Join(dirs["node1"], "f_v1_chunk_0")
	require.NoError(t, os.WriteFile(chunkPath, []byte("chunk bytes"), 0o644))

	id, err := m.catalog.CreateFile(ctx, catalog.File{Filename: "f", Size: 11, CompressedSize: 11, Location: "node1", StorageTier: "hot", RetentionPolicy: "default", ContentHash: "h"})
	require.NoError(t, err)

	require.NoError(t, m.catalog.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := m.catalog.InsertChunk(ctx, tx, catalog.Chunk{
			FileID: id, VersionNumber: 1, ChunkIndex: 0,
			ChunkLocation: chunkPath, NodeName: "node1",
			OriginalSize: 11, CompressedSize: 11, ChunkHash: "h", StorageTier: "hot",
		})
		return err
	}))

	require.NoError(t, RedistributeChunks(ctx, m.catalog, m.registry, m.placement, "node1"))

	chunks, err := m.catalog.ListChunks(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEqual(t, "node1", chunks[0].NodeName)
	assert.Equal(t, "active", chunks[0].Status, "redistribution must not downgrade chunk status")

	got, err := os.ReadFile(chunks[0].ChunkLocation)
	require.NoError(t, err)
	assert.Equal(t, "chunk bytes", string(got))
}
