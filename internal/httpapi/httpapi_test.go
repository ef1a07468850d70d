package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/coordinator/internal/buffer"
	"github.com/distfs/coordinator/internal/cache"
	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/chunkpipeline"
	"github.com/distfs/coordinator/internal/crypto"
	"github.com/distfs/coordinator/internal/heartbeat"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
	"github.com/distfs/coordinator/internal/syncengine"
	"github.com/distfs/coordinator/internal/version"
)

const testAdminKey = "test-admin-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dirs := map[string]string{
		"node1": t.TempDir(),
		"node2": t.TempDir(),
		"node3": t.TempDir(),
	}
	reg := registry.New(dirs)
	eng := placement.NewEngine(reg, 500*1024*1024)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	key, err := crypto.LoadOrCreate(filepath.Join(t.TempDir(), "crypto.key"), filepath.Join(t.TempDir(), "crypto.salt"), 1000)
	require.NoError(t, err)
	cipher := crypto.New(key)

	ch := cache.NewChunkCache(nil)
	pool := buffer.NewBytePool()
	pipeline := chunkpipeline.New(reg, eng, cat, cipher, ch, pool)
	versions := version.New(cat)
	syncEng := syncengine.New(reg, cat)
	hb := heartbeat.New(reg, cat, eng, time.Minute, time.Minute, nil)

	cfg := DefaultConfig()
	cfg.AdminKey = testAdminKey

	return New(cfg, cat, reg, eng, pipeline, versions, syncEng, hb, nil, nil, nil, time.Minute)
}

func doUpload(t *testing.T, s *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	return rec
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := doUpload(t, s, "hello.txt", "hello world")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/download/hello.txt", nil)
	rec = httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
}

func TestDownloadUnknownFileReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/download/ghost.txt", nil)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVersionsRollbackAndDiff(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, doUpload(t, s, "doc.txt", "version one").Code)
	require.Equal(t, http.StatusOK, doUpload(t, s, "doc.txt", "version two is longer").Code)

	req := httptest.NewRequest(http.MethodGet, "/versions/doc.txt", nil)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var versionsBody struct {
		CurrentVersion int `json:"current_version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versionsBody))
	assert.Equal(t, 2, versionsBody.CurrentVersion)

	req = httptest.NewRequest(http.MethodGet, "/diff/doc.txt?v1=1&v2=2", nil)
	rec = httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/rollback/doc.txt/1", nil)
	rec = httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/versions/doc.txt", nil)
	rec = httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versionsBody))
	assert.Equal(t, 1, versionsBody.CurrentVersion)
}

func TestHeartbeatRequiresNodeName(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/heartbeat", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/heartbeat", bytes.NewBufferString(`{"node_name":"node1"}`))
	rec = httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginAcceptsConfiguredKeyOnly(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"adminKey":"wrong"}`))
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"adminKey":"`+testAdminKey+`"}`))
	rec = httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndpointsRejectMissingKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/files", nil)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminFilesListsUploadedFile(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, doUpload(t, s, "seen.txt", "admin visible").Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/files", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seen.txt")
}

func TestAdminStorageTiersAndDeduplicationEndpoints(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/storage/tiers", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/storage/deduplication", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	rec = httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminNodesHealthReportsEveryNode(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/nodes/health", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Nodes map[string]interface{} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Nodes, 3)
}
