// Package lifecycle runs the coordinator's periodic maintenance sweeps:
// tier migration, deduplication, retention enforcement, and cold-storage
// archive/restore (§4.10).
package lifecycle

import (
	"context"
	"database/sql"
	"time"

	"github.com/distfs/coordinator/internal/cache"
	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/crypto"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
	"github.com/distfs/coordinator/pkg/logging"
)

// Idle thresholds for the hot -> warm -> cold sweep.
const (
	hotToWarmIdle  = 30 * 24 * time.Hour
	warmToColdIdle = 90 * 24 * time.Hour
	coldToArchive  = 180 * 24 * time.Hour
	// hotToWarmMaxAccess is the extra hot->warm condition: a file accessed
	// often stays hot even past the idle threshold.
	hotToWarmMaxAccess = 10
)

// ErrorBackoff is how long the maintenance loops wait before retrying after
// an unhandled error, instead of spinning the normal period.
const ErrorBackoff = 5 * time.Minute

// Maintainer runs the tier migration, dedup, retention, and archive/restore
// sweeps over the catalog.
type Maintainer struct {
	catalog   *catalog.Catalog
	registry  *registry.Registry
	placement *placement.Engine
	cipher    *crypto.Cipher
	cache     *cache.ChunkCache
	logger    *logging.StructuredLogger
	coldNode  string
}

// New creates a Maintainer. coldNode names the node whose directory holds
// the archives/ subdirectory used for cold-storage bundles (§4.10).
func New(cat *catalog.Catalog, reg *registry.Registry, eng *placement.Engine, cipher *crypto.Cipher, ch *cache.ChunkCache, logger *logging.StructuredLogger, coldNode string) *Maintainer {
	return &Maintainer{catalog: cat, registry: reg, placement: eng, cipher: cipher, cache: ch, logger: logger, coldNode: coldNode}
}

// RunTierMigration sweeps hot->warm->cold, re-encoding each migrated file's
// active chunks at the destination tier's compression level.
func (m *Maintainer) RunTierMigration(ctx context.Context) error {
	for _, step := range []struct{ from, to string; idle time.Duration }{
		{"hot", "warm", hotToWarmIdle},
		{"warm", "cold", warmToColdIdle},
	} {
		cutoff := time.Now().Add(-step.idle)
		candidates, err := m.catalog.FilesForTierMigration(ctx, step.from, cutoff.UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
		for _, f := range candidates {
			if step.from == "hot" && f.AccessCount >= hotToWarmMaxAccess {
				continue
			}
			if err := m.migrateFileTier(ctx, f, step.to); err != nil && m.logger != nil {
				m.logger.Error("tier migration failed", map[string]interface{}{"file_id": f.ID, "to_tier": step.to, "error": err.Error()})
			}
		}
	}

	archiveCandidates, err := m.catalog.ArchivedFilesOlderThan(ctx, time.Now().Add(-coldToArchive))
	if err != nil {
		return err
	}
	for _, f := range archiveCandidates {
		if f.StorageTier != "cold" {
			continue
		}
		if err := m.ArchiveFile(ctx, f.ID); err != nil && m.logger != nil {
			m.logger.Error("archival failed", map[string]interface{}{"file_id": f.ID, "error": err.Error()})
		}
	}
	return nil
}

// migrateFileTier re-encodes every active chunk of f at tier's compression
// level and updates the file's recorded storage tier.
func (m *Maintainer) migrateFileTier(ctx context.Context, f catalog.File, tier string) error {
	tierCfg, err := m.catalog.GetStorageTier(ctx, tier)
	if err != nil {
		return err
	}

	chunks, err := m.catalog.ListChunks(ctx, f.ID, f.CurrentVersion)
	if err != nil {
		return err
	}

	for _, ch := range chunks {
		if ch.Status != "active" {
			continue
		}
		if err := m.reencodeChunk(ctx, ch, tierCfg.CompressionLevel, tier); err != nil {
			continue // best-effort; a stuck chunk must not block its siblings
		}
		m.cache.Invalidate(cache.Key(ch.FileID, ch.VersionNumber, ch.ChunkIndex))
	}

	return m.catalog.UpdateFileStorageTier(ctx, f.ID, tier)
}

func (m *Maintainer) reencodeChunk(ctx context.Context, ch catalog.Chunk, level int, tier string) error {
	stored, err := readFile(ch.ChunkLocation)
	if err != nil {
		return err
	}
	plain, err := m.cipher.DecryptDecompress(stored)
	if err != nil {
		return err
	}
	reencoded, err := m.cipher.EncryptCompress(plain, level)
	if err != nil {
		return err
	}
	if err := writeFile(ch.ChunkLocation, reencoded); err != nil {
		return err
	}

	return m.catalog.RunInTx(ctx, func(tx *sql.Tx) error {
		return m.catalog.UpdateChunkLocation(ctx, tx, ch.ID, ch.NodeName, ch.ChunkLocation, int64(len(reencoded)), tier)
	})
}
