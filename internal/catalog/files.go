package catalog

import (
	"context"
	"database/sql"
	"time"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

// CreateFile inserts the first metadata row for filename and its version 1
// row in a single transaction, returning the new file ID.
func (c *Catalog) CreateFile(ctx context.Context, f File) (int64, error) {
	var id int64
	err := c.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = c.CreateFileTx(ctx, tx, f)
		return err
	})
	return id, err
}

// CreateFileTx is CreateFile's logic scoped to a caller-owned transaction,
// so the write pipeline can insert version 1's chunk rows in the same
// transaction as the file and version rows (§4.4 step 4).
func (c *Catalog) CreateFileTx(ctx context.Context, tx *sql.Tx, f File) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO metadata
			(filename, current_version, size, compressed_size, compression_ratio,
			 upload_timestamp, location, replicas, storage_tier, last_accessed,
			 access_count, retention_policy, content_hash)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		f.Filename, f.Size, f.CompressedSize, f.CompressionRatio,
		nowString(time.Now()), f.Location, f.Replicas, f.StorageTier,
		nowString(time.Now()), f.RetentionPolicy, f.ContentHash)
	if err != nil {
		return 0, coorderrors.NewIO("failed to insert file metadata").WithComponent("catalog").WithOperation("CreateFileTx").WithCause(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, coorderrors.NewIO("failed to read new file id").WithComponent("catalog").WithOperation("CreateFileTx").WithCause(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO versions (file_id, version_number, timestamp, size, compressed_size, hash, storage_tier)
		VALUES (?, 1, ?, ?, ?, ?, ?)`,
		id, nowString(time.Now()), f.Size, f.CompressedSize, f.ContentHash, f.StorageTier); err != nil {
		return 0, coorderrors.NewIO("failed to insert initial version").WithComponent("catalog").WithOperation("CreateFileTx").WithCause(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO version_changes (file_id, old_version, new_version, change_type, timestamp)
		VALUES (?, 0, 1, 'create', ?)`, id, nowString(time.Now())); err != nil {
		return 0, coorderrors.NewIO("failed to insert version_changes row").WithComponent("catalog").WithOperation("CreateFileTx").WithCause(err)
	}
	return id, nil
}

// GetFileByFilename looks up the metadata row for filename.
func (c *Catalog) GetFileByFilename(ctx context.Context, filename string) (*File, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, filename, current_version, size, compressed_size, compression_ratio,
		       upload_timestamp, location, replicas, storage_tier, last_accessed,
		       access_count, retention_policy, is_archived, archive_date, content_hash, deduplication_ref
		FROM metadata WHERE filename = ?`, filename)
	f, err := scanFile(row)
	if err != nil {
		if isNoRows(err) {
			return nil, coorderrors.NewNotFound("file not found").WithComponent("catalog").WithOperation("GetFileByFilename").WithDetail("filename", filename)
		}
		return nil, coorderrors.NewIO("failed to read file metadata").WithComponent("catalog").WithOperation("GetFileByFilename").WithCause(err)
	}
	return f, nil
}

// GetFileByID looks up the metadata row by its primary key.
func (c *Catalog) GetFileByID(ctx context.Context, id int64) (*File, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, filename, current_version, size, compressed_size, compression_ratio,
		       upload_timestamp, location, replicas, storage_tier, last_accessed,
		       access_count, retention_policy, is_archived, archive_date, content_hash, deduplication_ref
		FROM metadata WHERE id = ?`, id)
	f, err := scanFile(row)
	if err != nil {
		if isNoRows(err) {
			return nil, coorderrors.NewNotFound("file not found").WithComponent("catalog").WithOperation("GetFileByID").WithDetail("file_id", id)
		}
		return nil, coorderrors.NewIO("failed to read file metadata").WithComponent("catalog").WithOperation("GetFileByID").WithCause(err)
	}
	return f, nil
}

// ListFiles returns every metadata row, ordered by filename.
func (c *Catalog) ListFiles(ctx context.Context) ([]File, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, filename, current_version, size, compressed_size, compression_ratio,
		       upload_timestamp, location, replicas, storage_tier, last_accessed,
		       access_count, retention_policy, is_archived, archive_date, content_hash, deduplication_ref
		FROM metadata ORDER BY filename`)
	if err != nil {
		return nil, coorderrors.NewIO("failed to list files").WithComponent("catalog").WithOperation("ListFiles").WithCause(err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, coorderrors.NewIO("failed to scan file row").WithComponent("catalog").WithOperation("ListFiles").WithCause(err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// AddVersion inserts a new version row for fileID and advances
// metadata.current_version, recording a version_changes audit row in the
// same transaction.
func (c *Catalog) AddVersion(ctx context.Context, fileID int64, v Version, changeType, description, userID string) (int, error) {
	var newVersion int
	err := c.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		newVersion, err = c.AddVersionTx(ctx, tx, fileID, v, changeType, description, userID)
		return err
	})
	return newVersion, err
}

// AddVersionTx is AddVersion's logic scoped to a caller-owned transaction,
// so the write pipeline can insert a version's chunk rows and advance its
// version number in the same catalog transaction (§4.4 step 4).
func (c *Catalog) AddVersionTx(ctx context.Context, tx *sql.Tx, fileID int64, v Version, changeType, description, userID string) (int, error) {
	var current int
	if err := tx.QueryRowContext(ctx, `SELECT current_version FROM metadata WHERE id = ?`, fileID).Scan(&current); err != nil {
		if isNoRows(err) {
			return 0, coorderrors.NewNotFound("file not found").WithComponent("catalog").WithOperation("AddVersionTx").WithDetail("file_id", fileID)
		}
		return 0, coorderrors.NewIO("failed to read current version").WithComponent("catalog").WithOperation("AddVersionTx").WithCause(err)
	}
	newVersion := current + 1

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO versions (file_id, version_number, timestamp, size, compressed_size, hash, storage_tier)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fileID, newVersion, nowString(time.Now()), v.Size, v.CompressedSize, v.Hash, v.StorageTier); err != nil {
		return 0, coorderrors.NewIO("failed to insert version").WithComponent("catalog").WithOperation("AddVersionTx").WithCause(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE metadata SET current_version = ?, size = ?, compressed_size = ?,
			compression_ratio = ?, content_hash = ?, upload_timestamp = ?
		WHERE id = ?`,
		newVersion, v.Size, v.CompressedSize, compressionRatio(v.Size, v.CompressedSize), v.Hash, nowString(time.Now()), fileID); err != nil {
		return 0, coorderrors.NewIO("failed to update metadata current_version").WithComponent("catalog").WithOperation("AddVersionTx").WithCause(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO version_changes (file_id, old_version, new_version, change_type, change_description, user_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fileID, current, newVersion, changeType, description, userID, nowString(time.Now())); err != nil {
		return 0, coorderrors.NewIO("failed to insert version_changes row").WithComponent("catalog").WithOperation("AddVersionTx").WithCause(err)
	}
	return newVersion, nil
}

// GetVersion returns a specific version row of fileID.
func (c *Catalog) GetVersion(ctx context.Context, fileID int64, versionNumber int) (*Version, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, file_id, version_number, timestamp, size, compressed_size, hash, storage_tier, is_archived
		FROM versions WHERE file_id = ? AND version_number = ?`, fileID, versionNumber)
	v, err := scanVersion(row)
	if err != nil {
		if isNoRows(err) {
			return nil, coorderrors.NewNotFound("version not found").WithComponent("catalog").WithOperation("GetVersion").
				WithDetail("file_id", fileID).WithDetail("version_number", versionNumber)
		}
		return nil, coorderrors.NewIO("failed to read version").WithComponent("catalog").WithOperation("GetVersion").WithCause(err)
	}
	return v, nil
}

// ListVersions returns every version row for fileID, oldest first.
func (c *Catalog) ListVersions(ctx context.Context, fileID int64) ([]Version, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, file_id, version_number, timestamp, size, compressed_size, hash, storage_tier, is_archived
		FROM versions WHERE file_id = ? ORDER BY version_number`, fileID)
	if err != nil {
		return nil, coorderrors.NewIO("failed to list versions").WithComponent("catalog").WithOperation("ListVersions").WithCause(err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, coorderrors.NewIO("failed to scan version row").WithComponent("catalog").WithOperation("ListVersions").WithCause(err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// SetCurrentVersion points metadata.current_version at versionNumber
// without inserting a new version row, used by rollback. The caller is
// responsible for writing the accompanying version_changes row in the
// same transaction via AddVersionChange.
func (c *Catalog) SetCurrentVersion(ctx context.Context, tx *sql.Tx, fileID int64, versionNumber int) error {
	v, err := scanVersionTx(ctx, tx, fileID, versionNumber)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE metadata SET current_version = ?, size = ?, compressed_size = ?,
			compression_ratio = ?, content_hash = ?
		WHERE id = ?`,
		versionNumber, v.Size, v.CompressedSize, compressionRatio(v.Size, v.CompressedSize), v.Hash, fileID); err != nil {
		return coorderrors.NewIO("failed to update metadata current_version").WithComponent("catalog").WithOperation("SetCurrentVersion").WithCause(err)
	}
	return nil
}

// AddVersionChange inserts a version_changes audit row within an
// existing transaction. Used by rollback so the audit row and the
// current-version update commit atomically (§13 fix #1).
func (c *Catalog) AddVersionChange(ctx context.Context, tx *sql.Tx, vc VersionChange) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO version_changes (file_id, old_version, new_version, change_type, change_description, user_id, timestamp, parent_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		vc.FileID, vc.OldVersion, vc.NewVersion, vc.ChangeType, vc.ChangeDescription, vc.UserID, nowString(time.Now()), vc.ParentVersion)
	if err != nil {
		return coorderrors.NewIO("failed to insert version_changes row").WithComponent("catalog").WithOperation("AddVersionChange").WithCause(err)
	}
	return nil
}

// RunInTx exposes WithTx for multi-step operations owned by other packages
// (version rollback, lifecycle archive/restore) that need several catalog
// calls to commit atomically.
func (c *Catalog) RunInTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return c.WithTx(ctx, fn)
}

// RecordAccess bumps access_count/last_accessed on metadata and appends an
// access_history row, both in one transaction.
func (c *Catalog) RecordAccess(ctx context.Context, fileID int64, accessType, userID string) error {
	return c.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE metadata SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`,
			nowString(time.Now()), fileID); err != nil {
			return coorderrors.NewIO("failed to bump access_count").WithComponent("catalog").WithOperation("RecordAccess").WithCause(err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO access_history (file_id, access_type, access_timestamp, user_id)
			VALUES (?, ?, ?, ?)`, fileID, accessType, nowString(time.Now()), userID); err != nil {
			return coorderrors.NewIO("failed to insert access_history row").WithComponent("catalog").WithOperation("RecordAccess").WithCause(err)
		}
		return nil
	})
}

// TagVersion attaches a named tag to a specific version.
func (c *Catalog) TagVersion(ctx context.Context, fileID int64, versionNumber int, tagName, description, createdBy string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO version_tags (file_id, version_number, tag_name, tag_description, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fileID, versionNumber, tagName, description, nowString(time.Now()), createdBy)
	if err != nil {
		return coorderrors.NewIO("failed to tag version").WithComponent("catalog").WithOperation("TagVersion").WithCause(err)
	}
	return nil
}

func compressionRatio(size, compressedSize int64) float64 {
	if size == 0 {
		return 0
	}
	return float64(size-compressedSize) / float64(size)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row scanner) (*File, error) {
	var f File
	if err := row.Scan(
		&f.ID, &f.Filename, &f.CurrentVersion, &f.Size, &f.CompressedSize, &f.CompressionRatio,
		&f.UploadTimestamp, &f.Location, &f.Replicas, &f.StorageTier, &f.LastAccessed,
		&f.AccessCount, &f.RetentionPolicy, &f.IsArchived, &f.ArchiveDate, &f.ContentHash, &f.DeduplicationRef,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanVersion(row scanner) (*Version, error) {
	var v Version
	if err := row.Scan(&v.ID, &v.FileID, &v.VersionNumber, &v.Timestamp, &v.Size, &v.CompressedSize, &v.Hash, &v.StorageTier, &v.IsArchived); err != nil {
		return nil, err
	}
	return &v, nil
}

func scanVersionTx(ctx context.Context, tx *sql.Tx, fileID int64, versionNumber int) (*Version, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, file_id, version_number, timestamp, size, compressed_size, hash, storage_tier, is_archived
		FROM versions WHERE file_id = ? AND version_number = ?`, fileID, versionNumber)
	v, err := scanVersion(row)
	if err != nil {
		if isNoRows(err) {
			return nil, coorderrors.NewNotFound("version not found").WithComponent("catalog").WithOperation("scanVersionTx").
				WithDetail("file_id", fileID).WithDetail("version_number", versionNumber)
		}
		return nil, coorderrors.NewIO("failed to read version").WithComponent("catalog").WithOperation("scanVersionTx").WithCause(err)
	}
	return v, nil
}
