package catalog

import (
	"context"
	"time"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

// FindDeduplicationByHash looks up an existing deduplication entry for a
// content hash, returning nil (no error) when none exists yet.
func (c *Catalog) FindDeduplicationByHash(ctx context.Context, hash string) (*DeduplicationEntry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, content_hash, reference_count, total_space_saved, first_seen, last_reference
		FROM deduplication WHERE content_hash = ?`, hash)
	var d DeduplicationEntry
	err := row.Scan(&d.ID, &d.ContentHash, &d.ReferenceCount, &d.TotalSpaceSaved, &d.FirstSeen, &d.LastReference)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, coorderrors.NewIO("failed to read deduplication entry").WithComponent("catalog").WithOperation("FindDeduplicationByHash").WithCause(err)
	}
	return &d, nil
}

// RecordDeduplication upserts the deduplication entry for hash: on first
// sight it is created with reference_count 1; on every later sight the
// reference count is bumped and spaceSaved is added to the running total
// (§4.10, metadata-only dedup per the Open Question resolution — chunk
// payloads for the duplicate are never written).
func (c *Catalog) RecordDeduplication(ctx context.Context, hash string, spaceSaved int64) error {
	now := nowString(time.Now())
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO deduplication (content_hash, reference_count, total_space_saved, first_seen, last_reference)
		VALUES (?, 1, 0, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			reference_count = reference_count + 1,
			total_space_saved = total_space_saved + ?,
			last_reference = ?`,
		hash, now, now, spaceSaved, now)
	if err != nil {
		return coorderrors.NewIO("failed to record deduplication").WithComponent("catalog").WithOperation("RecordDeduplication").WithCause(err)
	}
	return nil
}

// LinkDeduplicationRef points a file's metadata.deduplication_ref at the
// file ID it duplicates, used by reporting to trace a dedup chain back to
// its first owner.
func (c *Catalog) LinkDeduplicationRef(ctx context.Context, fileID, refFileID int64) error {
	_, err := c.db.ExecContext(ctx, `UPDATE metadata SET deduplication_ref = ? WHERE id = ?`, refFileID, fileID)
	if err != nil {
		return coorderrors.NewIO("failed to link deduplication ref").WithComponent("catalog").WithOperation("LinkDeduplicationRef").WithCause(err)
	}
	return nil
}

// ListDeduplication returns every tracked content hash and its savings,
// ordered by total space saved descending, for the admin deduplication
// report.
func (c *Catalog) ListDeduplication(ctx context.Context) ([]DeduplicationEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, content_hash, reference_count, total_space_saved, first_seen, last_reference
		FROM deduplication ORDER BY total_space_saved DESC`)
	if err != nil {
		return nil, coorderrors.NewIO("failed to list deduplication entries").WithComponent("catalog").WithOperation("ListDeduplication").WithCause(err)
	}
	defer rows.Close()

	var out []DeduplicationEntry
	for rows.Next() {
		var d DeduplicationEntry
		if err := rows.Scan(&d.ID, &d.ContentHash, &d.ReferenceCount, &d.TotalSpaceSaved, &d.FirstSeen, &d.LastReference); err != nil {
			return nil, coorderrors.NewIO("failed to scan deduplication row").WithComponent("catalog").WithOperation("ListDeduplication").WithCause(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
