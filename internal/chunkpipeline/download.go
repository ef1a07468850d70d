package chunkpipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/distfs/coordinator/internal/cache"
	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/hash"
	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

// tempCleanupDelay is how long a delivered download's temp file is kept
// around after being handed to the caller before it is removed (§4.4 step 4).
const tempCleanupDelay = time.Second

// Download runs the read path (§4.4 steps 1-4) for filename at the given
// version (current version if version is nil): resolve the version's
// active chunks, verify or
// fail over to a replica, decrypt-decompress, and stream-concatenate into
// a temp file whose path is returned. The caller owns reading the file;
// it is removed automatically shortly after this call returns.
func (p *Pipeline) Download(ctx context.Context, filename string, version *int) (string, int, error) {
	file, err := p.catalog.GetFileByFilename(ctx, filename)
	if err != nil {
		return "", 0, err
	}

	versionNumber := file.CurrentVersion
	if version != nil {
		versionNumber = *version
		if _, err := p.catalog.GetVersion(ctx, file.ID, versionNumber); err != nil {
			return "", 0, err
		}
	}

	rows, err := p.catalog.ListChunks(ctx, file.ID, versionNumber)
	if err != nil {
		return "", 0, err
	}
	var chunks []catalog.Chunk
	for _, ch := range rows {
		if ch.Status == "active" {
			chunks = append(chunks, ch)
		}
	}
	if len(chunks) == 0 {
		return "", 0, coorderrors.NewNotFound("no active chunks for this version").
			WithComponent("chunkpipeline").WithOperation("Download").
			WithDetail("filename", filename).WithDetail("version", versionNumber)
	}

	byIndex := groupByIndex(chunks)
	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out, err := os.CreateTemp("", "coordinator-download-*")
	if err != nil {
		return "", 0, coorderrors.NewIO("failed to create temp download file").WithComponent("chunkpipeline").WithOperation("Download").WithCause(err)
	}
	outPath := out.Name()

	for _, idx := range indexes {
		plain, err := p.readVerifiedChunk(file.ID, versionNumber, idx, byIndex[idx])
		if err != nil {
			out.Close()
			os.Remove(outPath)
			return "", 0, err
		}
		if _, err := out.Write(plain); err != nil {
			out.Close()
			os.Remove(outPath)
			return "", 0, coorderrors.NewIO("failed to assemble download").WithComponent("chunkpipeline").WithOperation("Download").WithCause(err)
		}
	}
	out.Close()

	time.AfterFunc(tempCleanupDelay, func() { os.Remove(outPath) })
	return outPath, versionNumber, nil
}

// readVerifiedChunk returns the decrypted-decompressed bytes for one chunk
// index, trying each candidate copy in order until one verifies (§4.4 step 3).
func (p *Pipeline) readVerifiedChunk(fileID int64, versionNumber, index int, candidates []catalog.Chunk) ([]byte, error) {
	key := cache.Key(fileID, versionNumber, index)
	if cached := p.cache.Get(key); cached != nil {
		return cached, nil
	}

	var lastErr error
	for _, c := range candidates {
		encoded, err := os.ReadFile(c.ChunkLocation)
		if err != nil {
			lastErr = err
			continue
		}
		if hash.Sum(encoded) != c.ChunkHash {
			lastErr = fmt.Errorf("hash mismatch for chunk %d at %s", index, c.ChunkLocation)
			continue
		}
		plain, err := p.cipher.DecryptDecompress(encoded)
		if err != nil {
			lastErr = err
			continue
		}
		p.cache.Put(key, plain)
		return plain, nil
	}

	return nil, coorderrors.NewUnrecoverable(fmt.Sprintf("no verified copy of chunk %d available", index)).
		WithComponent("chunkpipeline").WithOperation("readVerifiedChunk").
		WithDetail("file_id", fileID).WithDetail("version", versionNumber).WithDetail("chunk_index", index).
		WithCause(lastErr)
}

// groupByIndex buckets every replica row of a version's chunks by index,
// ordering rows within a bucket by id (original write order) so the
// primary copy is tried first.
func groupByIndex(chunks []catalog.Chunk) map[int][]catalog.Chunk {
	out := make(map[int][]catalog.Chunk)
	for _, c := range chunks {
		out[c.ChunkIndex] = append(out[c.ChunkIndex], c)
	}
	return out
}
