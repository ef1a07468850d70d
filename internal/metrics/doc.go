/*
Package metrics provides the coordinator's Prometheus metrics collection and
a lightweight debug HTTP surface.

# Overview

The collector exports counters, histograms, and gauges for the operations a
coordinator performs (upload, download, rollback, diff, sync, heartbeat,
tier_migration, dedup, retention, archive, restore), the chunk payload
cache's hit rate, per-node placement counts, and per-node health as tracked
by the heartbeat monitor.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9110,
		Path:      "/metrics",
		Namespace: "coordinator",
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := collector.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer collector.Stop(ctx)

# Recording

	start := time.Now()
	_, err := pipeline.Upload(ctx, filename, bytes.NewReader(data))
	collector.RecordOperation("upload", time.Since(start), int64(len(data)), err == nil)
	if err != nil {
		collector.RecordError("upload", err)
	}

	collector.RecordPlacement(nodeName, placed)
	collector.UpdateNodeHealth(nodeName, alive)
	collector.RecordCacheHit(size)
	collector.UpdateCacheSize(cache.Stats().Size)

# Exported metrics

Counters:
  - coordinator_operations_total{operation,status}
  - coordinator_chunk_cache_requests_total{type}
  - coordinator_errors_total{operation,type}
  - coordinator_chunk_placements_total{node,status}

Histograms:
  - coordinator_operation_duration_seconds{operation}
  - coordinator_operation_size_bytes{operation}

Gauges:
  - coordinator_chunk_cache_size_bytes{level}
  - coordinator_active_connections
  - coordinator_node_health{node}

# HTTP endpoints

The metrics server listens on the port set in the collector's Config, separate
from the main data-plane API:

	/metrics           Prometheus exposition format
	/health            {"status":"healthy","service":"coordinator-metrics"}
	/debug/metrics     human-readable JSON summary
	/debug/operations  tabular text summary

# See also

  - internal/circuit: per-node circuit breaker
  - internal/registry: node liveness tracked by the heartbeat monitor
  - pkg/errors: structured error categories used to classify RecordError calls
*/
package metrics
