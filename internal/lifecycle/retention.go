package lifecycle

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/distfs/coordinator/internal/catalog"
)

// RunRetention enforces each file's retention policy: keep the newest
// min_versions, keep any version whose age is within retention_period_days,
// and always keep the current version. Every other version's active chunks
// are marked deprecated (§4.10).
func (m *Maintainer) RunRetention(ctx context.Context) error {
	files, err := m.catalog.ListFiles(ctx)
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := m.enforceRetention(ctx, f); err != nil {
			continue // best-effort, one file's policy lookup failing must not stall the sweep
		}
	}
	return nil
}

func (m *Maintainer) enforceRetention(ctx context.Context, f catalog.File) error {
	policy, err := m.catalog.GetRetentionPolicy(ctx, f.RetentionPolicy)
	if err != nil {
		return err
	}

	versions, err := m.catalog.ListVersions(ctx, f.ID)
	if err != nil {
		return err
	}
	sort.Slice(versions, func(a, b int) bool { return versions[a].VersionNumber > versions[b].VersionNumber })

	now := time.Now()
	kept := make(map[int]bool, len(versions))
	for i, v := range versions {
		if i < policy.MinVersions {
			kept[v.VersionNumber] = true
			continue
		}
		if v.VersionNumber == f.CurrentVersion {
			kept[v.VersionNumber] = true
			continue
		}
		ts, err := time.Parse(time.RFC3339, v.Timestamp)
		if err == nil && now.Sub(ts) <= time.Duration(policy.RetentionPeriodDays)*24*time.Hour {
			kept[v.VersionNumber] = true
		}
	}

	for _, v := range versions {
		if kept[v.VersionNumber] {
			continue
		}
		if err := m.deprecateVersionChunks(ctx, f.ID, v.VersionNumber); err != nil {
			continue
		}
	}
	return nil
}

func (m *Maintainer) deprecateVersionChunks(ctx context.Context, fileID int64, versionNumber int) error {
	chunks, err := m.catalog.ListChunks(ctx, fileID, versionNumber)
	if err != nil {
		return err
	}
	return m.catalog.RunInTx(ctx, func(tx *sql.Tx) error {
		for _, ch := range chunks {
			if ch.Status != "active" {
				continue
			}
			if err := m.catalog.SetChunkStatus(ctx, tx, ch.ID, "deprecated"); err != nil {
				return err
			}
		}
		return nil
	})
}
