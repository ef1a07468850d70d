// Command coordinatord runs the distributed storage coordinator: the HTTP
// surface, the node heartbeat monitor, and the tier migration / dedup /
// retention maintenance loops, all wired to one SQLite catalog.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uplo-tech/threadgroup"

	"github.com/distfs/coordinator/internal/buffer"
	"github.com/distfs/coordinator/internal/cache"
	"github.com/distfs/coordinator/internal/catalog"
	"github.com/distfs/coordinator/internal/chunkpipeline"
	"github.com/distfs/coordinator/internal/config"
	"github.com/distfs/coordinator/internal/crypto"
	"github.com/distfs/coordinator/internal/heartbeat"
	"github.com/distfs/coordinator/internal/httpapi"
	"github.com/distfs/coordinator/internal/lifecycle"
	"github.com/distfs/coordinator/internal/metrics"
	"github.com/distfs/coordinator/internal/placement"
	"github.com/distfs/coordinator/internal/registry"
	"github.com/distfs/coordinator/internal/syncengine"
	"github.com/distfs/coordinator/internal/version"
	"github.com/distfs/coordinator/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file; defaults if omitted")
	coldNode := flag.String("cold-node", "node3", "node whose directory holds cold-storage archive bundles")
	flag.Parse()

	cfg := config.NewDefault()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatalf("failed to overlay environment configuration: %v", err)
	}

	logger, err := logging.NewStructuredLogger(logging.DefaultStructuredLoggerConfig())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	reg := registry.New(cfg.Nodes.Directories)
	placementEngine := placement.NewEngine(reg, cfg.Chunk.NodeCapacityBytes)

	cat, err := catalog.Open(cfg.Catalog.DatabasePath, cfg.Catalog.BusyTimeout)
	if err != nil {
		logger.Fatal("failed to open catalog", map[string]interface{}{"error": err.Error()})
	}
	defer cat.Close()

	key, err := crypto.LoadOrCreate(cfg.Crypto.KeyFile, cfg.Crypto.SaltFile, cfg.Crypto.PBKDF2Iterations)
	if err != nil {
		logger.Fatal("failed to load or create encryption key", map[string]interface{}{"error": err.Error()})
	}
	cipher := crypto.New(key)

	chunkCache := cache.NewChunkCache(nil)
	pool := buffer.NewBytePool()

	pipeline := chunkpipeline.New(reg, placementEngine, cat, cipher, chunkCache, pool)
	versions := version.New(cat)
	syncEngine := syncengine.New(reg, cat)
	hbMonitor := heartbeat.New(reg, cat, placementEngine, cfg.Lifecycle.HeartbeatInterval, cfg.Lifecycle.NodeDeadThreshold, logger.WithComponent("heartbeat"))
	maintainer := lifecycle.New(cat, reg, placementEngine, cipher, chunkCache, logger.WithComponent("lifecycle"), *coldNode)

	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Port: 0, Namespace: "coordinator"})
	if err != nil {
		logger.Fatal("failed to create metrics collector", map[string]interface{}{"error": err.Error()})
	}

	httpConfig := httpapi.Config{
		Address:      cfg.Server.ListenAddress,
		AdminKey:     cfg.Server.AdminKey,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	server := httpapi.New(httpConfig, cat, reg, placementEngine, pipeline, versions, syncEngine, hbMonitor, maintainer, collector, logger.WithComponent("httpapi"), cfg.Lifecycle.NodeDeadThreshold)

	var threads threadgroup.ThreadGroup

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := threads.Add(); err != nil {
		logger.Fatal("failed to start heartbeat monitor", map[string]interface{}{"error": err.Error()})
	}
	go func() {
		defer threads.Done()
		hbMonitor.Run(ctx)
	}()

	if err := threads.Add(); err != nil {
		logger.Fatal("failed to start lifecycle sweeps", map[string]interface{}{"error": err.Error()})
	}
	go func() {
		defer threads.Done()
		runLifecycleLoops(ctx, cfg, maintainer, logger)
	}()

	threads.OnStop(func() error {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	server.StartBackground()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutdown signal received", nil)
	cancel()
	if err := threads.Stop(); err != nil {
		logger.Error("error during shutdown", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

// runLifecycleLoops runs the tier migration, dedup, and retention sweeps on
// their configured periods until ctx is cancelled (§4.10); after a failed
// sweep that loop waits lifecycle.ErrorBackoff before its next run.
func runLifecycleLoops(ctx context.Context, cfg *config.Configuration, m *lifecycle.Maintainer, logger *logging.StructuredLogger) {
	tierTicker := time.NewTicker(cfg.Lifecycle.TierMigrationInterval)
	dedupTicker := time.NewTicker(cfg.Lifecycle.DedupInterval)
	retentionTicker := time.NewTicker(cfg.Lifecycle.RetentionInterval)
	defer tierTicker.Stop()
	defer dedupTicker.Stop()
	defer retentionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tierTicker.C:
			if err := m.RunTierMigration(ctx); err != nil {
				logger.Error("tier migration sweep failed", map[string]interface{}{"error": err.Error()})
				tierTicker.Reset(lifecycle.ErrorBackoff)
			} else {
				tierTicker.Reset(cfg.Lifecycle.TierMigrationInterval)
			}
		case <-dedupTicker.C:
			if err := m.RunDeduplication(ctx); err != nil {
				logger.Error("deduplication sweep failed", map[string]interface{}{"error": err.Error()})
				dedupTicker.Reset(lifecycle.ErrorBackoff)
			} else {
				dedupTicker.Reset(cfg.Lifecycle.DedupInterval)
			}
		case <-retentionTicker.C:
			if err := m.RunRetention(ctx); err != nil {
				logger.Error("retention sweep failed", map[string]interface{}{"error": err.Error()})
				retentionTicker.Reset(lifecycle.ErrorBackoff)
			} else {
				retentionTicker.Reset(cfg.Lifecycle.RetentionInterval)
			}
		}
	}
}
