package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/chunkpipeline"
	"github.com/distfs/coordinator/internal/hash"
	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

// handleAdminFiles lists every file with its chunk locations, the admin
// view of /files (§6).
func (s *Server) handleAdminFiles(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	files, err := s.catalog.ListFiles(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}

	type fileView struct {
		catalog.File
		ChunkLocations []string `json:"chunk_locations"`
	}
	views := make([]fileView, 0, len(files))
	for _, f := range files {
		chunks, err := s.catalog.ListChunks(r.Context(), f.ID, f.CurrentVersion)
		if err != nil {
			respondErr(w, err)
			return
		}
		locs := make([]string, 0, len(chunks))
		for _, c := range chunks {
			if c.Status == "active" {
				locs = append(locs, c.ChunkLocation)
			}
		}
		views = append(views, fileView{File: f, ChunkLocations: locs})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"files": views})
}

// handleAdminReallocate moves every active chunk of a file to a freshly
// selected node, verifying each chunk's hash before and after the move,
// one independent transaction per chunk (§13 per-chunk commit pattern).
func (s *Server) handleAdminReallocate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fileID, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	f, err := s.catalog.GetFileByID(r.Context(), fileID)
	if err != nil {
		respondErr(w, err)
		return
	}
	chunks, err := s.catalog.ListChunks(r.Context(), fileID, f.CurrentVersion)
	if err != nil {
		respondErr(w, err)
		return
	}

	var succeeded, failed []map[string]interface{}
	for _, ch := range chunks {
		if ch.Status != "active" {
			continue
		}
		newLoc, newNode, err := s.reallocateChunk(r.Context(), ch)
		if err != nil {
			failed = append(failed, map[string]interface{}{"chunk_index": ch.ChunkIndex, "error": err.Error()})
			continue
		}
		succeeded = append(succeeded, map[string]interface{}{"chunk_index": ch.ChunkIndex, "old_location": ch.ChunkLocation, "new_location": newLoc, "node": newNode})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":             "reallocation complete",
		"reallocated_chunks":  succeeded,
		"failed_chunks":       failed,
	})
}

func (s *Server) reallocateChunk(ctx context.Context, ch catalog.Chunk) (string, string, error) {
	data, err := os.ReadFile(ch.ChunkLocation)
	if err != nil {
		return "", "", coorderrors.NewIO("failed to read chunk for reallocation").WithComponent("httpapi").WithOperation("reallocateChunk").WithCause(err)
	}
	if hash.Sum(data) != ch.ChunkHash {
		return "", "", coorderrors.NewCorruption("chunk failed integrity check before reallocation").WithComponent("httpapi").WithOperation("reallocateChunk")
	}

	target, err := s.placement.Select(int64(len(data)), map[string]bool{ch.NodeName: true})
	if err != nil {
		return "", "", err
	}
	dir, ok := s.registry.Dir(target)
	if !ok {
		return "", "", coorderrors.NewNotFound("reallocation target has no known directory").WithComponent("httpapi").WithOperation("reallocateChunk")
	}
	newPath := filepath.Join(dir, filepath.Base(ch.ChunkLocation)+"_new")
	if err := writeAndVerify(newPath, data, ch.ChunkHash); err != nil {
		return "", "", err
	}

	err = s.catalog.RunInTx(ctx, func(tx *sql.Tx) error {
		return s.catalog.UpdateChunkLocation(ctx, tx, ch.ID, target, newPath, ch.CompressedSize, ch.StorageTier)
	})
	if err != nil {
		return "", "", err
	}

	os.Remove(ch.ChunkLocation)
	return newPath, target, nil
}

func writeAndVerify(path string, data []byte, expectedHash string) error {
	out, err := os.Create(path)
	if err != nil {
		return coorderrors.NewIO("failed to create reallocation target").WithComponent("httpapi").WithOperation("writeAndVerify").WithCause(err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return coorderrors.NewIO("failed to write reallocation target").WithComponent("httpapi").WithOperation("writeAndVerify").WithCause(err)
	}
	if err := out.Close(); err != nil {
		return coorderrors.NewIO("failed to finalize reallocation target").WithComponent("httpapi").WithOperation("writeAndVerify").WithCause(err)
	}
	verify, err := os.ReadFile(path)
	if err != nil || hash.Sum(verify) != expectedHash {
		return coorderrors.NewCorruption("reallocated chunk failed post-write verification").WithComponent("httpapi").WithOperation("writeAndVerify")
	}
	return nil
}

// handleAdminArchive manually triggers cold-storage archival for a file.
func (s *Server) handleAdminArchive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fileID, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	if s.maintainer == nil {
		respondErrorMessage(w, http.StatusServiceUnavailable, "lifecycle maintenance not configured")
		return
	}
	if err := s.maintainer.ArchiveFile(r.Context(), fileID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "file archived"})
}

// handleAdminRestore manually triggers restoration of an archived file.
func (s *Server) handleAdminRestore(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fileID, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	if s.maintainer == nil {
		respondErrorMessage(w, http.StatusServiceUnavailable, "lifecycle maintenance not configured")
		return
	}
	if err := s.maintainer.RestoreFile(r.Context(), fileID, chunkpipeline.ChunkSize); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "file restored"})
}

// handleAdminNodesHealth reports heartbeat age and disk usage per node.
func (s *Server) handleAdminNodesHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snapshot := s.registry.Snapshot()
	now := time.Now()

	report := make(map[string]interface{}, len(s.registry.Directories()))
	for node, dir := range s.registry.Directories() {
		last, seen := snapshot[node]
		age := -1.0
		if seen {
			age = now.Sub(last).Seconds()
		}
		used, _ := dirSize(dir)
		report[node] = map[string]interface{}{
			"heartbeat_age_seconds": age,
			"used_bytes":            used,
			"alive":                 seen && age <= s.nodeDeadThreshold.Seconds(),
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"nodes": report})
}

func dirSize(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// handleAdminNodeVerify re-hashes every active chunk recorded on a node and
// classifies each as verified, corrupted, or missing (§6).
func (s *Server) handleAdminNodeVerify(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	node := ps.ByName("name")
	if _, ok := s.registry.Dir(node); !ok {
		respondErrorMessage(w, http.StatusNotFound, "node not found")
		return
	}

	chunks, err := s.catalog.ChunksByNode(r.Context(), node)
	if err != nil {
		respondErr(w, err)
		return
	}

	var verified, corrupted, missing []map[string]interface{}
	for _, ch := range chunks {
		if ch.Status != "active" {
			continue
		}
		data, err := os.ReadFile(ch.ChunkLocation)
		if err != nil {
			missing = append(missing, map[string]interface{}{"chunk_id": ch.ID, "file_id": ch.FileID, "location": ch.ChunkLocation})
			continue
		}
		if hash.Sum(data) != ch.ChunkHash {
			corrupted = append(corrupted, map[string]interface{}{"chunk_id": ch.ID, "file_id": ch.FileID, "location": ch.ChunkLocation})
			continue
		}
		verified = append(verified, map[string]interface{}{"chunk_id": ch.ID, "file_id": ch.FileID, "location": ch.ChunkLocation})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"verified_chunks":  verified,
		"corrupted_chunks": corrupted,
		"missing_chunks":   missing,
	})
}

// handleAdminStorageTiers lists the configured storage tiers.
func (s *Server) handleAdminStorageTiers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tiers, err := s.catalog.ListStorageTiers(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tiers": tiers})
}

// handleAdminDeduplication lists the deduplication savings ledger.
func (s *Server) handleAdminDeduplication(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries, err := s.catalog.ListDeduplication(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deduplication": entries})
}
