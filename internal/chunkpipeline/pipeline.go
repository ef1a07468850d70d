// Package chunkpipeline implements the write and read paths that turn an
// uploaded file into encrypted, compressed, replicated chunks scattered
// across storage nodes, and back again (§4.4/§4.5).
package chunkpipeline

import (
	"os"

	"github.com/distfs/coordinator/internal/buffer"
	"github.com/distfs/coordinator/internal/cache"
	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/crypto"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
)

// ChunkSize is the fixed unit of splitting, CHUNK_SIZE = 4 MiB (§4.4).
const ChunkSize = 4 * 1024 * 1024

// ReplicaCount is the number of additional copies made of every chunk
// beyond its primary placement (§4.5).
const ReplicaCount = 2

// Pipeline owns everything the write/read paths need: node directories,
// placement, the catalog, encryption, and the decoded-chunk cache.
type Pipeline struct {
	registry  *registry.Registry
	placement *placement.Engine
	catalog   *catalog.Catalog
	cipher    *crypto.Cipher
	cache     *cache.ChunkCache
	pool      *buffer.BytePool
}

// New creates a Pipeline wiring the given components together.
func New(reg *registry.Registry, eng *placement.Engine, cat *catalog.Catalog, cph *crypto.Cipher, ch *cache.ChunkCache, pool *buffer.BytePool) *Pipeline {
	return &Pipeline{registry: reg, placement: eng, catalog: cat, cipher: cph, cache: ch, pool: pool}
}

// writtenChunk records where one chunk copy landed, for catalog insertion
// and for best-effort cleanup if the upload fails partway through.
type writtenChunk struct {
	index    int
	path     string
	nodeName string
	hash     string
	origSize int64
	compSize int64
}

// writeAtomic writes data to path by writing to a sibling temp file first
// and renaming over it, so a concurrent reader never observes a partial
// chunk file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// cleanupChunks best-effort removes every chunk file written so far,
// used when an upload fails after chunks have already hit disk (§4.4 step 5).
func cleanupChunks(written []writtenChunk) {
	for _, w := range written {
		os.Remove(w.path)
	}
}
