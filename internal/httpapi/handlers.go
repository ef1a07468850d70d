package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// handleUpload accepts a multipart "file" field and runs the write path.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	result, err := s.pipeline.Upload(r.Context(), header.Filename, file)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"file_id": result.FileID,
		"version": result.Version,
	})
}

// handleDownload streams filename at an optional ?version= back to the caller.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	filename := ps.ByName("filename")

	var version *int
	if q := r.URL.Query().Get("version"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			respondErrorMessage(w, http.StatusBadRequest, "version must be an integer")
			return
		}
		version = &v
	}

	path, resolvedVersion, err := s.pipeline.Download(r.Context(), filename, version)
	if err != nil {
		respondErr(w, err)
		return
	}

	w.Header().Set("X-Resolved-Version", strconv.Itoa(resolvedVersion))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

// handleVersions lists every recorded version of filename.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	filename := ps.ByName("filename")
	f, err := s.catalog.GetFileByFilename(r.Context(), filename)
	if err != nil {
		respondErr(w, err)
		return
	}
	versions, err := s.catalog.ListVersions(r.Context(), f.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"filename":        filename,
		"current_version": f.CurrentVersion,
		"versions":        versions,
	})
}

// handleRollback sets filename's current version back to an earlier one.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	filename := ps.ByName("filename")
	target, err := strconv.Atoi(ps.ByName("version"))
	if err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "version must be an integer")
		return
	}
	if err := s.versions.Rollback(r.Context(), filename, target); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "rollback complete"})
}

// handleDiff compares two versions of filename via ?v1=&v2=.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	filename := ps.ByName("filename")
	from, err := strconv.Atoi(r.URL.Query().Get("v1"))
	if err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "v1 must be an integer")
		return
	}
	to, err := strconv.Atoi(r.URL.Query().Get("v2"))
	if err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "v2 must be an integer")
		return
	}
	diff, err := s.versions.Diff(r.Context(), filename, from, to)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, diff)
}

// handleFiles lists every file's metadata.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	files, err := s.catalog.ListFiles(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"files": files, "count": len(files)})
}

// handleHeartbeat ingests a node's liveness ping (§4.9).
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		NodeName string `json:"node_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.NodeName == "" {
		respondErrorMessage(w, http.StatusBadRequest, "node_name is required")
		return
	}

	if s.heartbeat == nil {
		respondErrorMessage(w, http.StatusServiceUnavailable, "heartbeat monitor not configured")
		return
	}

	recovered, err := s.heartbeat.Ingest(r.Context(), body.NodeName)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"recovered": recovered})
}

// handleLogin checks an admin key without granting a session; callers send
// the same key on every subsequent admin request (§6).
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		AdminKey string `json:"adminKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AdminKey == "" {
		respondErrorMessage(w, http.StatusBadRequest, "admin key is required")
		return
	}
	if s.config.AdminKey == "" || body.AdminKey != s.config.AdminKey {
		respondJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "invalid admin key"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "login successful"})
}
