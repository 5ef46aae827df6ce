package network

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
)

// Topology owns the node set and its links, and runs block and transaction
// propagation over them. One lock serializes all topology mutation.
type Topology struct {
	mu      sync.Mutex
	nodes   []*Node
	byID    map[string]*Node
	stats   *blockchain.NetworkStats
	rng     *rand.Rand
	log     *zap.Logger
	severed []edge
}

type edge struct {
	a, b *Node
}

// NewTopology builds nodeCount nodes and links each to up to neighborCount
// random distinct peers. Links are bidirectional, never to self and never
// duplicated; a node can end with a higher degree than neighborCount through
// links initiated by its peers.
func NewTopology(nodeCount, neighborCount int, tuning config.NetworkTuning, stats *blockchain.NetworkStats, rng *rand.Rand, log *zap.Logger) *Topology {
	t := &Topology{
		byID:  make(map[string]*Node, nodeCount),
		stats: stats,
		rng:   rng,
		log:   log,
	}
	for i := 0; i < nodeCount; i++ {
		n := newNode(fmt.Sprintf("node_%d", i), tuning, rng)
		t.nodes = append(t.nodes, n)
		t.byID[n.NodeID] = n
	}

	if neighborCount > nodeCount-1 {
		neighborCount = nodeCount - 1
	}
	for _, n := range t.nodes {
		for n.NeighborCount() < neighborCount {
			peer := t.nodes[rng.Intn(nodeCount)]
			if peer == n || n.isNeighbor(peer.NodeID) {
				continue
			}
			n.addNeighbor(peer)
			peer.addNeighbor(n)
		}
	}

	log.Info("network topology built",
		zap.Int("nodes", nodeCount),
		zap.Int("neighbors", neighborCount))
	return t
}

// Node looks up a node by ID.
func (t *Topology) Node(nodeID string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byID[nodeID]
}

// NodeCount returns the number of nodes.
func (t *Topology) NodeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// RandomNode returns a uniformly random node, nil when the topology is empty.
func (t *Topology) RandomNode() *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.nodes) == 0 {
		return nil
	}
	return t.nodes[t.rng.Intn(len(t.nodes))]
}

// BroadcastBlock floods a block from the origin node across the topology.
// The flood is breadth-first and idempotent: a node that already stores the
// block neither stores it again nor forwards it, so rebroadcasting an old
// block is a no-op. Every first-time delivery charges the block size and the
// receiving node's transmission delay to the propagation stats. Returns the
// number of nodes that newly stored the block.
func (t *Topology) BroadcastBlock(block *blockchain.Block, originID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	origin, ok := t.byID[originID]
	if !ok || !origin.storeBlock(block) {
		return 0
	}

	delivered := 1
	queue := []*Node{origin}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, id := range current.NeighborIDs() {
			peer := current.neighbors[id]
			if peer.HasBlock(block.BlockID) {
				continue
			}
			if t.rng.Float64() < peer.PacketLoss {
				continue // dropped; another peer may still deliver
			}
			peer.storeBlock(block)
			peer.dataVolume += block.Size
			t.stats.RecordPropagation(block.Size, peer.transmissionDelay(block.Size))
			delivered++
			queue = append(queue, peer)
		}
	}
	return delivered
}

// BroadcastTransaction delivers a pending transaction to every node's local
// unconfirmed pool.
func (t *Topology) BroadcastTransaction(tx *blockchain.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, n := range t.nodes {
		n.addPendingTransaction(tx)
		n.dataVolume += blockchain.TransactionSize
	}
	t.stats.RecordTransaction()
}

// Partition severs every link between a randomly chosen set of size nodes
// and the rest of the network. Links inside either side survive; the severed
// links are remembered for Heal. Returns the IDs of the partitioned nodes.
func (t *Topology) Partition(size int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if size <= 0 || size >= len(t.nodes) {
		return nil
	}
	cut := make(map[string]bool, size)
	ids := make([]string, 0, size)
	for _, idx := range t.rng.Perm(len(t.nodes))[:size] {
		n := t.nodes[idx]
		cut[n.NodeID] = true
		ids = append(ids, n.NodeID)
	}
	sort.Strings(ids)

	for _, n := range t.nodes {
		if !cut[n.NodeID] {
			continue
		}
		for _, id := range n.NeighborIDs() {
			if cut[id] {
				continue
			}
			peer := n.neighbors[id]
			n.removeNeighbor(id)
			peer.removeNeighbor(n.NodeID)
			t.severed = append(t.severed, edge{a: n, b: peer})
		}
	}
	t.log.Warn("network partitioned",
		zap.Strings("nodes", ids),
		zap.Int("severed_links", len(t.severed)))
	return ids
}

// Heal restores every link severed by Partition.
func (t *Topology) Heal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.severed {
		e.a.addNeighbor(e.b)
		e.b.addNeighbor(e.a)
	}
	restored := len(t.severed)
	t.severed = nil
	if restored > 0 {
		t.log.Info("network healed", zap.Int("restored_links", restored))
	}
}

// NetworkStats returns a copy of the propagation stats, safe to read and
// marshal while broadcasts continue.
func (t *Topology) NetworkStats() blockchain.NetworkStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.stats
}

// TopologyStats is the topology-wide view exposed in result snapshots.
// CumulativeIO counts one I/O per stored block per node.
type TopologyStats struct {
	Nodes             int     `json:"nodes"`
	AverageNeighbors  float64 `json:"average_neighbors"`
	TotalStoredBlocks int     `json:"total_stored_blocks"`
	TotalDataVolume   int     `json:"total_data_volume"`
	CumulativeIO      int     `json:"cumulative_io"`
}

// Stats assembles the topology-wide snapshot.
func (t *Topology) Stats() TopologyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := TopologyStats{Nodes: len(t.nodes)}
	var degrees int
	for _, n := range t.nodes {
		degrees += n.NeighborCount()
		stats.TotalStoredBlocks += n.StoredBlocks()
		stats.TotalDataVolume += n.DataVolume()
	}
	if len(t.nodes) > 0 {
		stats.AverageNeighbors = float64(degrees) / float64(len(t.nodes))
	}
	stats.CumulativeIO = stats.TotalStoredBlocks
	return stats
}
