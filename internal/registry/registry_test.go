package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *Registry {
	return New(map[string]string{
		"node1": "/tmp/node1",
		"node2": "/tmp/node2",
		"node3": "/tmp/node3",
	})
}

func TestHeartbeatReportsRecovery(t *testing.T) {
	r := newTestRegistry()

	recovered := r.Heartbeat("node1")
	assert.True(t, recovered, "first heartbeat should be reported as a recovery")

	recovered = r.Heartbeat("node1")
	assert.False(t, recovered, "second heartbeat should not be a recovery")

	r.Evict("node1")
	recovered = r.Heartbeat("node1")
	assert.True(t, recovered, "heartbeat after eviction should be a recovery")
}

func TestNodesSortedAndOtherNodesExcludes(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, []string{"node1", "node2", "node3"}, r.Nodes())
	assert.Equal(t, []string{"node2", "node3"}, r.OtherNodes("node1"))
}

func TestIsAliveHonorsThreshold(t *testing.T) {
	r := newTestRegistry()
	assert.False(t, r.IsAlive("node1", time.Minute), "unseen node is never alive")

	r.Heartbeat("node1")
	assert.True(t, r.IsAlive("node1", time.Minute))
}

func TestDirLookup(t *testing.T) {
	r := newTestRegistry()
	dir, ok := r.Dir("node2")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/node2", dir)

	_, ok = r.Dir("unknown")
	assert.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := newTestRegistry()
	r.Heartbeat("node1")

	snap := r.Snapshot()
	r.Heartbeat("node2")

	_, hasNode2 := snap["node2"]
	assert.False(t, hasNode2, "snapshot must not observe heartbeats recorded after it was taken")
}
