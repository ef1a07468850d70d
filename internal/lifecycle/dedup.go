package lifecycle

import (
	"context"
	"sort"
)

// RunDeduplication groups files by content hash and, for each group sharing
// a hash, marks every file but the lowest-ID primary as a duplicate: the
// duplicate's metadata.deduplication_ref points at the primary, and the
// shared deduplication entry's reference_count/total_space_saved are
// updated. This is metadata-only — no chunk payload is rewritten or
// removed, since a duplicate's chunks still back its own version history
// (§4.10 Open Question resolution). Idempotent: re-running over files
// already linked is a no-op for them.
func (m *Maintainer) RunDeduplication(ctx context.Context) error {
	files, err := m.catalog.ListFiles(ctx)
	if err != nil {
		return err
	}

	byHash := make(map[string][]int)
	for i, f := range files {
		if f.ContentHash == "" {
			continue
		}
		byHash[f.ContentHash] = append(byHash[f.ContentHash], i)
	}

	for hash, idxs := range byHash {
		if len(idxs) < 2 {
			continue
		}
		sort.Slice(idxs, func(a, b int) bool { return files[idxs[a]].ID < files[idxs[b]].ID })
		primary := files[idxs[0]]

		existing, err := m.catalog.FindDeduplicationByHash(ctx, hash)
		if err != nil {
			return err
		}
		if existing == nil {
			// first sighting of this hash: the primary's entry saves nothing
			if err := m.catalog.RecordDeduplication(ctx, hash, 0); err != nil {
				return err
			}
		}

		for _, idx := range idxs[1:] {
			dup := files[idx]
			if dup.DeduplicationRef != nil && *dup.DeduplicationRef == primary.ID {
				continue // already linked
			}
			if err := m.catalog.LinkDeduplicationRef(ctx, dup.ID, primary.ID); err != nil {
				return err
			}
			if err := m.catalog.RecordDeduplication(ctx, hash, dup.Size); err != nil {
				return err
			}
		}
	}
	return nil
}
