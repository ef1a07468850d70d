package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/registry"
)

func newTestEngine(t *testing.T) (*Engine, map[string]string) {
	t.Helper()
	dirs := map[string]string{
		"node1": t.TempDir(),
		"node2": t.TempDir(),
		"node3": t.TempDir(),
	}
	reg := registry.New(dirs)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	return New(reg, cat), dirs
}

func TestEnsureVersionConsistencySucceedsAcrossAllTargets(t *testing.T) {
	e, dirs := newTestEngine(t)
	ctx := context.Background()

	src := filepath.Join(dirs["node1"], "chunk_0")
	require.NoError(t, os.WriteFile(src, []byte("chunk payload"), 0o644))

	id, err := e.catalog.CreateFile(ctx, catalog.File{Filename: "f", Size: 13, CompressedSize: 13, Location: "node1", StorageTier: "hot", RetentionPolicy: "default", ContentHash: "h"})
	require.NoError(t, err)

	ok, err := e.EnsureVersionConsistency(ctx, id, 1, []string{"node2", "node3"}, []string{src})
	require.NoError(t, err)
	assert.True(t, ok)

	got2, err := os.ReadFile(filepath.Join(dirs["node2"], "chunk_0"))
	require.NoError(t, err)
	assert.Equal(t, "chunk payload", string(got2))

	synced, err := e.EnsureAllNodesSynced(ctx, id, 1, []string{"node2", "node3"})
	require.NoError(t, err)
	assert.True(t, synced)
}

func TestEnsureVersionConsistencyReportsUnknownNodeAsFailedWithoutShortCircuiting(t *testing.T) {
	e, dirs := newTestEngine(t)
	ctx := context.Background()

	src := filepath.Join(dirs["node1"], "chunk_0")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	id, err := e.catalog.CreateFile(ctx, catalog.File{Filename: "f", Size: 7, CompressedSize: 7, Location: "node1", StorageTier: "hot", RetentionPolicy: "default", ContentHash: "h"})
	require.NoError(t, err)

	ok, err := e.EnsureVersionConsistency(ctx, id, 1, []string{"ghost", "node2"}, []string{src})
	require.NoError(t, err)
	assert.False(t, ok, "one failing target must fail the aggregate result")

	rows, err := e.catalog.ConsistencyForVersion(ctx, id, 1)
	require.NoError(t, err)
	statuses := make(map[string]string)
	for _, r := range rows {
		statuses[r.NodeName] = r.Status
	}
	assert.Equal(t, "failed", statuses["ghost"])
	assert.Equal(t, "synced", statuses["node2"], "node2 must still be attempted and recorded despite ghost's failure")
}
