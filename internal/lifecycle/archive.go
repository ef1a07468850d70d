package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/hash"
	coorderrors "github.com/distfs/coordinator/pkg/errors"
	"github.com/distfs/coordinator/pkg/pathsafe"
)

// ArchiveFile concatenates every active chunk of fileID's current version,
// in chunk_index order, into a single bundle under the cold node's
// archives/ directory, records the Archive row, marks the file and its
// chunks archived, and removes the original chunk files (§4.10).
func (m *Maintainer) ArchiveFile(ctx context.Context, fileID int64) error {
	f, err := m.catalog.GetFileByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.IsArchived {
		return nil
	}

	chunks, err := m.catalog.ListChunks(ctx, fileID, f.CurrentVersion)
	if err != nil {
		return err
	}

	coldDir, ok := m.registry.Dir(m.coldNode)
	if !ok {
		return coorderrors.NewNotFound("cold node has no known directory").WithComponent("lifecycle").WithOperation("ArchiveFile")
	}
	archiveDir := filepath.Join(coldDir, "archives")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return coorderrors.NewIO("failed to create archive directory").WithComponent("lifecycle").WithOperation("ArchiveFile").WithCause(err)
	}
	archivePath := filepath.Join(archiveDir, pathsafe.SafeFilename(f.Filename)+".archive")

	var active []catalog.Chunk
	out, err := os.Create(archivePath)
	if err != nil {
		return coorderrors.NewIO("failed to create archive file").WithComponent("lifecycle").WithOperation("ArchiveFile").WithCause(err)
	}
	for _, ch := range chunks {
		if ch.Status != "active" {
			continue
		}
		data, err := readFile(ch.ChunkLocation)
		if err != nil {
			out.Close()
			return err
		}
		if _, err := out.Write(data); err != nil {
			out.Close()
			return coorderrors.NewIO("failed to append chunk to archive").WithComponent("lifecycle").WithOperation("ArchiveFile").WithCause(err)
		}
		active = append(active, ch)
	}
	if err := out.Close(); err != nil {
		return coorderrors.NewIO("failed to finalize archive file").WithComponent("lifecycle").WithOperation("ArchiveFile").WithCause(err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return coorderrors.NewIO("failed to stat archive file").WithComponent("lifecycle").WithOperation("ArchiveFile").WithCause(err)
	}

	err = m.catalog.RunInTx(ctx, func(tx *sql.Tx) error {
		if _, err := m.catalog.CreateArchive(ctx, tx, catalog.Archive{
			FileID: fileID, ArchiveLocation: archivePath, ArchiveSize: info.Size(), ArchiveTier: "cold",
		}); err != nil {
			return err
		}
		for _, ch := range active {
			if err := m.catalog.SetChunkStatus(ctx, tx, ch.ID, "archived"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ch := range active {
		os.Remove(ch.ChunkLocation) // best-effort: the bundle is already durable
	}
	return nil
}

// RestoreFile reads fileID's most recent archive bundle, splits it back
// into CHUNK_SIZE pieces, places each on a placement-selected node, and
// records fresh Chunk rows at version_number=1 status active, clearing the
// archived flag (§4.10).
func (m *Maintainer) RestoreFile(ctx context.Context, fileID int64, chunkSize int) error {
	f, err := m.catalog.GetFileByID(ctx, fileID)
	if err != nil {
		return err
	}
	if !f.IsArchived {
		return nil
	}

	archive, err := m.catalog.GetArchive(ctx, fileID)
	if err != nil {
		return err
	}

	data, err := readFile(archive.ArchiveLocation)
	if err != nil {
		return err
	}

	type placed struct {
		index int
		path  string
		node  string
		size  int
		hash  string
	}
	var pieces []placed
	for i := 0; i*chunkSize < len(data); i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		piece := data[start:end]

		target, err := m.placement.Select(int64(len(piece)), nil)
		if err != nil {
			return err
		}
		dir, ok := m.registry.Dir(target)
		if !ok {
			return coorderrors.NewNotFound("restore target has no known directory").WithComponent("lifecycle").WithOperation("RestoreFile")
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_chunk_%d", pathsafe.SafeFilename(f.Filename), i))
		if err := writeFile(path, piece); err != nil {
			return err
		}
		pieces = append(pieces, placed{index: i, path: path, node: target, size: len(piece), hash: hash.Sum(piece)})
	}

	return m.catalog.RunInTx(ctx, func(tx *sql.Tx) error {
		for _, p := range pieces {
			if _, err := m.catalog.InsertChunk(ctx, tx, catalog.Chunk{
				FileID: fileID, VersionNumber: 1, ChunkIndex: p.index,
				ChunkLocation: p.path, NodeName: p.node,
				OriginalSize: int64(p.size), CompressedSize: int64(p.size),
				ChunkHash: p.hash, StorageTier: "hot",
			}); err != nil {
				return err
			}
		}
		if err := m.catalog.RecordRestore(ctx, tx, archive.ID, fileID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE metadata SET storage_tier = 'hot' WHERE id = ?`, fileID); err != nil {
			return coorderrors.NewIO("failed to reset file storage tier after restore").WithComponent("lifecycle").WithOperation("RestoreFile").WithCause(err)
		}
		return nil
	})
}
