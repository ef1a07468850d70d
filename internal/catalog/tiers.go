package catalog

import (
	"context"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

// GetStorageTier looks up a named tier's configuration (hot, warm, cold).
func (c *Catalog) GetStorageTier(ctx context.Context, tierName string) (*StorageTier, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, tier_name, max_size, retention_days, auto_archive_days, compression_level
		FROM storage_tiers WHERE tier_name = ?`, tierName)
	var t StorageTier
	err := row.Scan(&t.ID, &t.TierName, &t.MaxSize, &t.RetentionDays, &t.AutoArchiveDays, &t.CompressionLevel)
	if err != nil {
		if isNoRows(err) {
			return nil, coorderrors.NewNotFound("storage tier not found").WithComponent("catalog").WithOperation("GetStorageTier").WithDetail("tier_name", tierName)
		}
		return nil, coorderrors.NewIO("failed to read storage tier").WithComponent("catalog").WithOperation("GetStorageTier").WithCause(err)
	}
	return &t, nil
}

// ListStorageTiers returns all configured tiers.
func (c *Catalog) ListStorageTiers(ctx context.Context) ([]StorageTier, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, tier_name, max_size, retention_days, auto_archive_days, compression_level
		FROM storage_tiers ORDER BY id`)
	if err != nil {
		return nil, coorderrors.NewIO("failed to list storage tiers").WithComponent("catalog").WithOperation("ListStorageTiers").WithCause(err)
	}
	defer rows.Close()

	var out []StorageTier
	for rows.Next() {
		var t StorageTier
		if err := rows.Scan(&t.ID, &t.TierName, &t.MaxSize, &t.RetentionDays, &t.AutoArchiveDays, &t.CompressionLevel); err != nil {
			return nil, coorderrors.NewIO("failed to scan storage tier row").WithComponent("catalog").WithOperation("ListStorageTiers").WithCause(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetRetentionPolicy looks up a named retention policy.
func (c *Catalog) GetRetentionPolicy(ctx context.Context, policyName string) (*RetentionPolicy, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, policy_name, min_versions, max_versions, retention_period_days, auto_archive_enabled, archive_after_days
		FROM retention_policies WHERE policy_name = ?`, policyName)
	var p RetentionPolicy
	err := row.Scan(&p.ID, &p.PolicyName, &p.MinVersions, &p.MaxVersions, &p.RetentionPeriodDays, &p.AutoArchiveEnabled, &p.ArchiveAfterDays)
	if err != nil {
		if isNoRows(err) {
			return nil, coorderrors.NewNotFound("retention policy not found").WithComponent("catalog").WithOperation("GetRetentionPolicy").WithDetail("policy_name", policyName)
		}
		return nil, coorderrors.NewIO("failed to read retention policy").WithComponent("catalog").WithOperation("GetRetentionPolicy").WithCause(err)
	}
	return &p, nil
}

// UpdateFileStorageTier moves a file to a new tier, used by tier
// migration (§4.10) after its chunks have been re-encoded at the new
// compression level.
func (c *Catalog) UpdateFileStorageTier(ctx context.Context, fileID int64, tier string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE metadata SET storage_tier = ? WHERE id = ?`, tier, fileID)
	if err != nil {
		return coorderrors.NewIO("failed to update file storage tier").WithComponent("catalog").WithOperation("UpdateFileStorageTier").WithCause(err)
	}
	return nil
}

// FilesForTierMigration returns metadata rows currently in fromTier whose
// last access (or upload, if never accessed) predates cutoff — candidates
// for the hot->warm->cold sweep (§4.10).
func (c *Catalog) FilesForTierMigration(ctx context.Context, fromTier string, cutoffRFC3339 string) ([]File, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, filename, current_version, size, compressed_size, compression_ratio,
		       upload_timestamp, location, replicas, storage_tier, last_accessed,
		       access_count, retention_policy, is_archived, archive_date, content_hash, deduplication_ref
		FROM metadata
		WHERE storage_tier = ? AND is_archived = 0 AND COALESCE(last_accessed, upload_timestamp) < ?`,
		fromTier, cutoffRFC3339)
	if err != nil {
		return nil, coorderrors.NewIO("failed to list tier migration candidates").WithComponent("catalog").WithOperation("FilesForTierMigration").WithCause(err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, coorderrors.NewIO("failed to scan file row").WithComponent("catalog").WithOperation("FilesForTierMigration").WithCause(err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
