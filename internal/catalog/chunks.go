package catalog

import (
	"context"
	"database/sql"
	"time"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

// InsertChunk records a placed chunk row within an existing transaction,
// used by the write pipeline so every chunk of a version, plus its
// replicas, commit together with the version row itself.
func (c *Catalog) InsertChunk(ctx context.Context, tx *sql.Tx, ch Chunk) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO chunks
			(file_id, version_number, chunk_index, chunk_location, node_name,
			 original_size, compressed_size, chunk_hash, storage_tier, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'active')`,
		ch.FileID, ch.VersionNumber, ch.ChunkIndex, ch.ChunkLocation, ch.NodeName,
		ch.OriginalSize, ch.CompressedSize, ch.ChunkHash, ch.StorageTier)
	if err != nil {
		return 0, coorderrors.NewIO("failed to insert chunk").WithComponent("catalog").WithOperation("InsertChunk").WithCause(err)
	}
	return res.LastInsertId()
}

// ListChunks returns every chunk row (all replicas) for a file's version,
// ordered by chunk index then row id, so callers can group replicas per
// index in the order they were written.
func (c *Catalog) ListChunks(ctx context.Context, fileID int64, versionNumber int) ([]Chunk, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, file_id, version_number, chunk_index, chunk_location, node_name,
		       original_size, compressed_size, chunk_hash, storage_tier, deduplication_ref, status
		FROM chunks WHERE file_id = ? AND version_number = ?
		ORDER BY chunk_index, id`, fileID, versionNumber)
	if err != nil {
		return nil, coorderrors.NewIO("failed to list chunks").WithComponent("catalog").WithOperation("ListChunks").WithCause(err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, coorderrors.NewIO("failed to scan chunk row").WithComponent("catalog").WithOperation("ListChunks").WithCause(err)
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

// ChunksByNode returns every chunk row currently placed on nodeName,
// across all files and versions, used by heartbeat-triggered
// redistribution (§4.9).
func (c *Catalog) ChunksByNode(ctx context.Context, nodeName string) ([]Chunk, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, file_id, version_number, chunk_index, chunk_location, node_name,
		       original_size, compressed_size, chunk_hash, storage_tier, deduplication_ref, status
		FROM chunks WHERE node_name = ?
		ORDER BY file_id, version_number, chunk_index`, nodeName)
	if err != nil {
		return nil, coorderrors.NewIO("failed to list chunks by node").WithComponent("catalog").WithOperation("ChunksByNode").WithCause(err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, coorderrors.NewIO("failed to scan chunk row").WithComponent("catalog").WithOperation("ChunksByNode").WithCause(err)
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

// UpdateChunkLocation rewrites a chunk's node/location/tier in place,
// within an existing transaction. Used by redistribution (new node, same
// chunk identity) and by tier migration re-encoding (new compressed size,
// new tier, same node).
func (c *Catalog) UpdateChunkLocation(ctx context.Context, tx *sql.Tx, chunkID int64, nodeName, location string, compressedSize int64, tier string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE chunks SET node_name = ?, chunk_location = ?, compressed_size = ?, storage_tier = ?
		WHERE id = ?`, nodeName, location, compressedSize, tier, chunkID)
	if err != nil {
		return coorderrors.NewIO("failed to update chunk location").WithComponent("catalog").WithOperation("UpdateChunkLocation").WithCause(err)
	}
	return nil
}

// SetChunkStatus transitions a chunk's lifecycle status (active,
// deprecated, archived).
func (c *Catalog) SetChunkStatus(ctx context.Context, tx *sql.Tx, chunkID int64, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE chunks SET status = ? WHERE id = ?`, status, chunkID)
	if err != nil {
		return coorderrors.NewIO("failed to set chunk status").WithComponent("catalog").WithOperation("SetChunkStatus").WithCause(err)
	}
	return nil
}

// UpsertConsistencyStatus records the sync state of one (file, version,
// node) triple, overwriting any prior row for the same triple.
func (c *Catalog) UpsertConsistencyStatus(ctx context.Context, fileID int64, versionNumber int, nodeName, status string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO consistency_status (file_id, version_number, node_name, status, last_update)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_id, version_number, node_name) DO UPDATE SET status = excluded.status, last_update = excluded.last_update`,
		fileID, versionNumber, nodeName, status, nowString(time.Now()))
	if err != nil {
		return coorderrors.NewIO("failed to upsert consistency status").WithComponent("catalog").WithOperation("UpsertConsistencyStatus").WithCause(err)
	}
	return nil
}

// ConsistencyForVersion returns every recorded consistency_status row for
// a (file, version) pair, used to aggregate ensure_version_consistency's
// per-node results (§4.8).
func (c *Catalog) ConsistencyForVersion(ctx context.Context, fileID int64, versionNumber int) ([]ConsistencyStatus, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, file_id, version_number, node_name, status, last_update
		FROM consistency_status WHERE file_id = ? AND version_number = ?`, fileID, versionNumber)
	if err != nil {
		return nil, coorderrors.NewIO("failed to read consistency status").WithComponent("catalog").WithOperation("ConsistencyForVersion").WithCause(err)
	}
	defer rows.Close()

	var out []ConsistencyStatus
	for rows.Next() {
		var cs ConsistencyStatus
		if err := rows.Scan(&cs.ID, &cs.FileID, &cs.VersionNumber, &cs.NodeName, &cs.Status, &cs.LastUpdate); err != nil {
			return nil, coorderrors.NewIO("failed to scan consistency row").WithComponent("catalog").WithOperation("ConsistencyForVersion").WithCause(err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// UpsertNodeHeartbeat records the catalog-visible last_heartbeat for a
// node, mirroring internal/registry's in-memory view for operator queries
// against the database directly.
func (c *Catalog) UpsertNodeHeartbeat(ctx context.Context, nodeName string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO nodes (node_name, last_heartbeat) VALUES (?, ?)
		ON CONFLICT(node_name) DO UPDATE SET last_heartbeat = excluded.last_heartbeat`,
		nodeName, nowString(time.Now()))
	if err != nil {
		return coorderrors.NewIO("failed to record node heartbeat").WithComponent("catalog").WithOperation("UpsertNodeHeartbeat").WithCause(err)
	}
	return nil
}

func scanChunk(row scanner) (*Chunk, error) {
	var ch Chunk
	if err := row.Scan(
		&ch.ID, &ch.FileID, &ch.VersionNumber, &ch.ChunkIndex, &ch.ChunkLocation, &ch.NodeName,
		&ch.OriginalSize, &ch.CompressedSize, &ch.ChunkHash, &ch.StorageTier, &ch.DeduplicationRef, &ch.Status,
	); err != nil {
		return nil, err
	}
	return &ch, nil
}
