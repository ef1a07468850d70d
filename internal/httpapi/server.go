// Package httpapi exposes the coordinator's upload/download/version/admin
// surface over HTTP, grounded on the teacher's Server/ServerConfig/NewServer
// shape (§6, §12).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/chunkpipeline"
	"github.com/distfs/coordinator/internal/heartbeat"
	"github.com/distfs/coordinator/internal/lifecycle"
	"github.com/distfs/coordinator/internal/metrics"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
	"github.com/distfs/coordinator/internal/syncengine"
	"github.com/distfs/coordinator/internal/version"
	"github.com/distfs/coordinator/pkg/logging"
)

// Config configures the coordinator's HTTP listener.
type Config struct {
	Address      string
	AdminKey     string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig mirrors the teacher's DefaultServerConfig shape.
func DefaultConfig() Config {
	return Config{
		Address:      ":8443",
		CORSOrigins:  []string{"*"},
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second,
	}
}

// Server wires every coordinator engine to its HTTP surface.
type Server struct {
	httpServer *http.Server
	config     Config

	catalog     *catalog.Catalog
	registry    *registry.Registry
	placement   *placement.Engine
	pipeline    *chunkpipeline.Pipeline
	versions    *version.Engine
	sync        *syncengine.Engine
	heartbeat   *heartbeat.Monitor
	maintainer  *lifecycle.Maintainer
	metrics     *metrics.Collector
	logger      *logging.StructuredLogger

	nodeDeadThreshold time.Duration
}

// New builds a Server. The heartbeat monitor and the lifecycle maintainer
// may be nil, and the handlers that need them then respond 503; logger and
// metrics may be nil too. Every other dependency is used without a nil check.
func New(
	config Config,
	cat *catalog.Catalog,
	reg *registry.Registry,
	placementEngine *placement.Engine,
	pipeline *chunkpipeline.Pipeline,
	versions *version.Engine,
	syncEngine *syncengine.Engine,
	hb *heartbeat.Monitor,
	maintainer *lifecycle.Maintainer,
	collector *metrics.Collector,
	logger *logging.StructuredLogger,
	nodeDeadThreshold time.Duration,
) *Server {
	s := &Server{
		config:            config,
		catalog:           cat,
		registry:          reg,
		placement:         placementEngine,
		pipeline:          pipeline,
		versions:          versions,
		sync:              syncEngine,
		heartbeat:         hb,
		maintainer:        maintainer,
		metrics:           collector,
		logger:            logger,
		nodeDeadThreshold: nodeDeadThreshold,
	}

	router := s.newRouter()
	handler := s.loggingMiddleware(router)
	handler = s.corsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) newRouter() *httprouter.Router {
	router := httprouter.New()

	router.POST("/upload", s.handleUpload)
	router.GET("/download/:filename", s.handleDownload)
	router.GET("/versions/:filename", s.handleVersions)
	router.POST("/rollback/:filename/:version", s.handleRollback)
	router.GET("/diff/:filename", s.handleDiff)
	router.GET("/files", s.handleFiles)
	router.POST("/heartbeat", s.handleHeartbeat)
	router.POST("/login", s.handleLogin)

	router.GET("/admin/files", s.requireAdmin(s.handleAdminFiles))
	router.POST("/admin/files/:id/reallocate", s.requireAdmin(s.handleAdminReallocate))
	router.POST("/admin/files/:id/archive", s.requireAdmin(s.handleAdminArchive))
	router.POST("/admin/files/:id/restore", s.requireAdmin(s.handleAdminRestore))
	router.GET("/admin/nodes/health", s.requireAdmin(s.handleAdminNodesHealth))
	router.POST("/admin/nodes/:name/verify", s.requireAdmin(s.handleAdminNodeVerify))
	router.GET("/admin/storage/tiers", s.requireAdmin(s.handleAdminStorageTiers))
	router.GET("/admin/storage/deduplication", s.requireAdmin(s.handleAdminDeduplication))

	return router
}

// Start runs the HTTP server, blocking until it stops.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("starting coordinator HTTP server", map[string]interface{}{"address": s.config.Address})
	}
	return s.httpServer.ListenAndServe()
}

// StartBackground runs Start in a goroutine, logging any non-graceful exit.
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("HTTP server exited", map[string]interface{}{"error": err.Error()})
			}
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("shutting down coordinator HTTP server", nil)
	}
	return s.httpServer.Shutdown(ctx)
}
