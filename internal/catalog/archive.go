package catalog

import (
	"context"
	"database/sql"
	"time"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

// CreateArchive records a new archive bundle for a file within an existing
// transaction, used alongside marking the file's chunks archived so both
// commit together (§4.10).
func (c *Catalog) CreateArchive(ctx context.Context, tx *sql.Tx, a Archive) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO archives (file_id, archive_date, archive_location, archive_size, archive_tier)
		VALUES (?, ?, ?, ?, ?)`,
		a.FileID, nowString(time.Now()), a.ArchiveLocation, a.ArchiveSize, a.ArchiveTier)
	if err != nil {
		return 0, coorderrors.NewIO("failed to insert archive").WithComponent("catalog").WithOperation("CreateArchive").WithCause(err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE metadata SET is_archived = 1, archive_date = ? WHERE id = ?`, nowString(time.Now()), a.FileID); err != nil {
		return 0, coorderrors.NewIO("failed to mark file archived").WithComponent("catalog").WithOperation("CreateArchive").WithCause(err)
	}
	return res.LastInsertId()
}

// GetArchive returns the most recent archive row for fileID.
func (c *Catalog) GetArchive(ctx context.Context, fileID int64) (*Archive, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, file_id, archive_date, archive_location, archive_size, restore_count, last_restore_date, archive_tier
		FROM archives WHERE file_id = ? ORDER BY id DESC LIMIT 1`, fileID)
	var a Archive
	err := row.Scan(&a.ID, &a.FileID, &a.ArchiveDate, &a.ArchiveLocation, &a.ArchiveSize, &a.RestoreCount, &a.LastRestoreDate, &a.ArchiveTier)
	if err != nil {
		if isNoRows(err) {
			return nil, coorderrors.NewNotFound("archive not found").WithComponent("catalog").WithOperation("GetArchive").WithDetail("file_id", fileID)
		}
		return nil, coorderrors.NewIO("failed to read archive").WithComponent("catalog").WithOperation("GetArchive").WithCause(err)
	}
	return &a, nil
}

// RecordRestore bumps an archive's restore_count/last_restore_date and
// clears the file's archived flag, within an existing transaction so the
// restore operation's chunk rewrites commit atomically with it.
func (c *Catalog) RecordRestore(ctx context.Context, tx *sql.Tx, archiveID, fileID int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE archives SET restore_count = restore_count + 1, last_restore_date = ? WHERE id = ?`,
		nowString(time.Now()), archiveID); err != nil {
		return coorderrors.NewIO("failed to bump restore count").WithComponent("catalog").WithOperation("RecordRestore").WithCause(err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE metadata SET is_archived = 0, archive_date = NULL WHERE id = ?`, fileID); err != nil {
		return coorderrors.NewIO("failed to clear archived flag").WithComponent("catalog").WithOperation("RecordRestore").WithCause(err)
	}
	return nil
}

// ArchivedFilesOlderThan returns metadata rows eligible for archival: not
// already archived, whose last access (or upload, if never accessed) is
// older than cutoff.
func (c *Catalog) ArchivedFilesOlderThan(ctx context.Context, cutoff time.Time) ([]File, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, filename, current_version, size, compressed_size, compression_ratio,
		       upload_timestamp, location, replicas, storage_tier, last_accessed,
		       access_count, retention_policy, is_archived, archive_date, content_hash, deduplication_ref
		FROM metadata
		WHERE is_archived = 0 AND COALESCE(last_accessed, upload_timestamp) < ?`, nowString(cutoff))
	if err != nil {
		return nil, coorderrors.NewIO("failed to list archive candidates").WithComponent("catalog").WithOperation("ArchivedFilesOlderThan").WithCause(err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, coorderrors.NewIO("failed to scan file row").WithComponent("catalog").WithOperation("ArchivedFilesOlderThan").WithCause(err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
