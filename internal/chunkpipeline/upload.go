package chunkpipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/hash"
	coorderrors "github.com/distfs/coordinator/pkg/errors"
	"github.com/distfs/coordinator/pkg/pathsafe"
)

// UploadResult reports where an upload landed.
type UploadResult struct {
	FileID  int64
	Version int
}

// Upload runs the full write path (§4.4 steps 1-5) for a new or existing
// filename: split r into CHUNK_SIZE pieces, encrypt+compress each, place
// and replicate it across nodes, then record everything in one catalog
// transaction.
func (p *Pipeline) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	tmp, err := os.CreateTemp("", "coordinator-upload-*")
	if err != nil {
		return UploadResult{}, coorderrors.NewIO("failed to create temp upload file").WithComponent("chunkpipeline").WithOperation("Upload").WithCause(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := hash.NewStreamHasher()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	tmp.Close()
	if err != nil {
		return UploadResult{}, coorderrors.NewIO("failed to persist upload").WithComponent("chunkpipeline").WithOperation("Upload").WithCause(err)
	}
	contentHash := hasher.Sum()

	existing, err := p.catalog.GetFileByFilename(ctx, filename)
	var coordErr *coorderrors.CoordinatorError
	if err != nil {
		if !asNotFound(err, &coordErr) {
			return UploadResult{}, err
		}
		existing = nil
	}

	tier := "hot"
	if existing != nil {
		tier = existing.StorageTier
	}
	tierCfg, err := p.catalog.GetStorageTier(ctx, tier)
	if err != nil {
		return UploadResult{}, err
	}

	// Advisory only (§4.4 step 2): recorded as metadata.location but never
	// consulted again, since each chunk is placed independently in step 3.
	initialNode, err := p.placement.LeastUsedNode()
	if err != nil {
		return UploadResult{}, err
	}

	version := 1
	if existing != nil {
		version = existing.CurrentVersion + 1
	}

	safeName := pathsafe.SafeFilename(filename)
	f, err := os.Open(tmpPath)
	if err != nil {
		return UploadResult{}, coorderrors.NewIO("failed to reopen temp upload file").WithComponent("chunkpipeline").WithOperation("Upload").WithCause(err)
	}
	defer f.Close()

	var written []writtenChunk
	buf := p.pool.GetBuffer(ChunkSize)
	defer p.pool.PutBuffer(buf)

	for index := 0; ; index++ {
		n, readErr := io.ReadFull(f, buf)
		if n == 0 {
			break
		}
		chunk := buf[:n]

		encoded, err := p.cipher.EncryptCompress(chunk, tierCfg.CompressionLevel)
		if err != nil {
			cleanupChunks(written)
			return UploadResult{}, coorderrors.NewCrypto("failed to encrypt chunk").WithComponent("chunkpipeline").WithOperation("Upload").WithCause(err)
		}

		target, err := p.placement.Select(int64(len(encoded)), nil)
		if err != nil {
			cleanupChunks(written)
			return UploadResult{}, err
		}
		dir, _ := p.registry.Dir(target)
		path := filepath.Join(dir, chunkFilename(safeName, version, index))
		if err := writeAtomic(path, encoded); err != nil {
			cleanupChunks(written)
			return UploadResult{}, coorderrors.NewIO("failed to write chunk").WithComponent("chunkpipeline").WithOperation("Upload").WithCause(err)
		}

		w := writtenChunk{
			index: index, path: path, nodeName: target,
			hash: hash.Sum(encoded), origSize: int64(n), compSize: int64(len(encoded)),
		}
		written = append(written, w)

		replicas, err := p.replicate(w, chunkFilename(safeName, version, index), encoded)
		if err != nil {
			cleanupChunks(written)
			return UploadResult{}, err
		}
		written = append(written, replicas...)

		if readErr == io.ErrUnexpectedEOF || readErr == io.EOF {
			break
		}
		if readErr != nil {
			cleanupChunks(written)
			return UploadResult{}, coorderrors.NewIO("failed to read upload").WithComponent("chunkpipeline").WithOperation("Upload").WithCause(readErr)
		}
	}

	fileID, err := p.commitUpload(ctx, existing, filename, size, contentHash, tier, initialNode, version, written)
	if err != nil {
		cleanupChunks(written)
		return UploadResult{}, err
	}
	return UploadResult{FileID: fileID, Version: version}, nil
}

// replicate creates ReplicaCount additional copies of a just-written
// primary chunk on other nodes, growing the exclusion set with each pick
// (§4.5). Only a placement failure is returned as an error; a replica
// whose copy fails is skipped, and the failure is not logged.
func (p *Pipeline) replicate(primary writtenChunk, filename string, payload []byte) ([]writtenChunk, error) {
	excluded := map[string]bool{primary.nodeName: true}
	var replicas []writtenChunk

	for i := 0; i < ReplicaCount; i++ {
		target, err := p.placement.Select(int64(len(payload)), excluded)
		if err != nil {
			// No eligible node left; fewer than ReplicaCount replicas is
			// acceptable degradation, not a failed upload (§4.5/P4).
			break
		}
		excluded[target] = true

		dir, ok := p.registry.Dir(target)
		if !ok {
			continue
		}
		path := filepath.Join(dir, filename)
		if _, err := os.Stat(path); err == nil {
			continue // already present, skip per §4.5
		}
		if err := writeAtomic(path, payload); err != nil {
			continue // best-effort: the failed replica is skipped, not logged
		}
		replicas = append(replicas, writtenChunk{
			index: primary.index, path: path, nodeName: target,
			hash: primary.hash, origSize: primary.origSize, compSize: primary.compSize,
		})
	}
	return replicas, nil
}

// commitUpload performs §4.4 step 4: one catalog transaction that creates
// or advances the File row, inserts the Version row, inserts every Chunk
// row (primary and replicas), updates File.replicas, and records the
// VersionChange audit row.
func (p *Pipeline) commitUpload(ctx context.Context, existing *catalog.File, filename string, size int64, contentHash, tier, initialNode string, version int, written []writtenChunk) (int64, error) {
	var fileID int64
	err := p.catalog.RunInTx(ctx, func(tx *sql.Tx) error {
		if existing == nil {
			id, err := p.catalog.CreateFileTx(ctx, tx, catalog.File{
				Filename: filename, Size: size, CompressedSize: totalCompressed(written),
				CompressionRatio: ratio(size, totalCompressed(written)),
				Location:         initialNode, Replicas: nodeList(written),
				StorageTier: tier, RetentionPolicy: "default", ContentHash: contentHash,
			})
			if err != nil {
				return err
			}
			fileID = id
		} else {
			fileID = existing.ID
			if _, err := p.catalog.AddVersionTx(ctx, tx, fileID, catalog.Version{
				Size: size, CompressedSize: totalCompressed(written), Hash: contentHash, StorageTier: tier,
			}, "update", "", ""); err != nil {
				return err
			}
		}

		for _, w := range written {
			if _, err := p.catalog.InsertChunk(ctx, tx, catalog.Chunk{
				FileID: fileID, VersionNumber: version, ChunkIndex: w.index,
				ChunkLocation: w.path, NodeName: w.nodeName,
				OriginalSize: w.origSize, CompressedSize: w.compSize,
				ChunkHash: w.hash, StorageTier: tier,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fileID, nil
}

func chunkFilename(safeName string, version, index int) string {
	return fmt.Sprintf("%s_v%d_chunk_%d", safeName, version, index)
}

func nodeList(written []writtenChunk) string {
	seen := make(map[string]bool)
	var nodes []string
	for _, w := range written {
		if !seen[w.nodeName] {
			seen[w.nodeName] = true
			nodes = append(nodes, w.nodeName)
		}
	}
	sort.Strings(nodes)
	out := ""
	for i, n := range nodes {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

func totalCompressed(written []writtenChunk) int64 {
	seen := make(map[int]bool)
	var total int64
	for _, w := range written {
		if seen[w.index] {
			continue
		}
		seen[w.index] = true
		total += w.compSize
	}
	return total
}

func ratio(size, compressedSize int64) float64 {
	if size == 0 {
		return 0
	}
	return float64(size-compressedSize) / float64(size)
}

func asNotFound(err error, target **coorderrors.CoordinatorError) bool {
	ce, ok := err.(*coorderrors.CoordinatorError)
	if !ok {
		return false
	}
	*target = ce
	return ce.Category == coorderrors.CategoryNotFound
}
