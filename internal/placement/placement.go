// Package placement chooses which storage node should receive a chunk of a
// given size, honoring per-node capacity and an exclusion set (used to keep
// replicas off the nodes a chunk already lives on).
package placement

import (
	"os"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/distfs/coordinator/internal/registry"
	"github.com/distfs/coordinator/pkg/errors"
)

// Engine selects storage nodes by current utilization against a fixed
// per-node capacity.
type Engine struct {
	registry      *registry.Registry
	capacityBytes int64
}

// NewEngine creates a placement Engine over reg, enforcing capacityBytes
// per node (§4.3's CAP constant, made configurable via ChunkConfig).
func NewEngine(reg *registry.Registry, capacityBytes int64) *Engine {
	return &Engine{registry: reg, capacityBytes: capacityBytes}
}

// Select picks the least-utilized eligible node for a chunk of size bytes,
// excluding any node name present in excluded. It fails with a NoSpaceError
// when no eligible node has enough headroom.
func (e *Engine) Select(size int64, excluded map[string]bool) (string, error) {
	type candidate struct {
		name string
		used int64
	}

	var candidates []candidate
	for _, name := range e.registry.Nodes() {
		if excluded[name] {
			continue
		}
		dir, ok := e.registry.Dir(name)
		if !ok {
			continue
		}
		used, err := usedBytes(dir)
		if err != nil {
			continue
		}
		available := e.capacityBytes - used
		if available >= size {
			candidates = append(candidates, candidate{name: name, used: used})
		}
	}

	if len(candidates) == 0 {
		return "", errors.NewNoSpace("no storage node has capacity for this chunk").
			WithComponent("placement").WithOperation("Select").
			WithDetail("size_bytes", size)
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri := float64(candidates[i].used) / float64(e.capacityBytes)
		rj := float64(candidates[j].used) / float64(e.capacityBytes)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].name < candidates[j].name
	})

	return candidates[0].name, nil
}

// LeastUsedNode returns the node with the smallest used/capacity ratio,
// ignoring exclusions and the chunk's size. Used for the advisory
// File.primary_location pick (§4.4 step 2).
func (e *Engine) LeastUsedNode() (string, error) {
	nodes := e.registry.Nodes()
	if len(nodes) == 0 {
		return "", errors.NewNoSpace("no storage nodes configured")
	}

	best := ""
	bestRatio := -1.0
	for _, name := range nodes {
		dir, ok := e.registry.Dir(name)
		if !ok {
			continue
		}
		used, err := usedBytes(dir)
		if err != nil {
			continue
		}
		ratio := float64(used) / float64(e.capacityBytes)
		if bestRatio < 0 || ratio < bestRatio {
			bestRatio = ratio
			best = name
		}
	}

	if best == "" {
		return "", errors.NewNoSpace("no storage node is reachable")
	}
	return best, nil
}

// Utilization reports, per node, the current used bytes.
func (e *Engine) Utilization() (map[string]int64, error) {
	out := make(map[string]int64)
	for _, name := range e.registry.Nodes() {
		dir, ok := e.registry.Dir(name)
		if !ok {
			continue
		}
		used, err := usedBytes(dir)
		if err != nil {
			return nil, err
		}
		out[name] = used
	}
	return out, nil
}

// FairnessReport summarizes P7's max/min utilization ratio property as an
// inspectable metric: mean used bytes across nodes, the population standard
// deviation, and max(used)/min(used) (0 when the least-used node has no
// usage recorded).
type FairnessReport struct {
	MeanUsedBytes   float64
	StdDevUsedBytes float64
	MaxMinRatio     float64
}

// Fairness computes a FairnessReport over the current per-node utilization.
func (e *Engine) Fairness() (FairnessReport, error) {
	usage, err := e.Utilization()
	if err != nil {
		return FairnessReport{}, err
	}

	values := make([]float64, 0, len(usage))
	for _, used := range usage {
		values = append(values, float64(used))
	}
	if len(values) == 0 {
		return FairnessReport{}, nil
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return FairnessReport{}, errors.NewValidation("failed to compute mean utilization").WithCause(err)
	}
	stddev, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return FairnessReport{}, errors.NewValidation("failed to compute utilization stddev").WithCause(err)
	}
	maxV, err := stats.Max(values)
	if err != nil {
		return FairnessReport{}, errors.NewValidation("failed to compute max utilization").WithCause(err)
	}
	minV, err := stats.Min(values)
	if err != nil {
		return FairnessReport{}, errors.NewValidation("failed to compute min utilization").WithCause(err)
	}

	ratio := 0.0
	if minV > 0 {
		ratio = maxV / minV
	}

	return FairnessReport{
		MeanUsedBytes:   mean,
		StdDevUsedBytes: stddev,
		MaxMinRatio:     ratio,
	}, nil
}

// usedBytes sums the size of regular files directly inside dir.
func usedBytes(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	return total, nil
}
