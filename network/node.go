// Package network models the peer-to-peer topology: randomized node links,
// idempotent block flooding and transaction broadcast accounting.
package network

import (
	"math/rand"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
)

// storedBlockCapacity bounds the per-node stored-block set. It is far above
// any reachable chain length so the flood stays idempotent for a whole run.
const storedBlockCapacity = 1 << 20

// Node is one participant in the topology. Link parameters are randomized at
// creation within the configured bands and stay fixed for the run.
type Node struct {
	NodeID     string  `json:"node_id"`
	Latency    float64 `json:"latency"`
	Bandwidth  float64 `json:"bandwidth"`
	PacketLoss float64 `json:"packet_loss"`

	neighbors  map[string]*Node
	stored     *lru.Cache[string, struct{}]
	pending    []*blockchain.Transaction
	dataVolume int
}

func newNode(nodeID string, tuning config.NetworkTuning, rng *rand.Rand) *Node {
	stored, _ := lru.New[string, struct{}](storedBlockCapacity)
	return &Node{
		NodeID:     nodeID,
		Latency:    tuning.LatencyMin + rng.Float64()*(tuning.LatencyMax-tuning.LatencyMin),
		Bandwidth:  tuning.BandwidthLimit * (0.8 + rng.Float64()*0.4),
		PacketLoss: tuning.PacketLossRate * (0.5 + rng.Float64()),
		neighbors:  make(map[string]*Node),
		stored:     stored,
	}
}

func (n *Node) addNeighbor(peer *Node) {
	n.neighbors[peer.NodeID] = peer
}

func (n *Node) removeNeighbor(peerID string) {
	delete(n.neighbors, peerID)
}

func (n *Node) isNeighbor(peerID string) bool {
	_, ok := n.neighbors[peerID]
	return ok
}

// NeighborCount returns the node's degree.
func (n *Node) NeighborCount() int {
	return len(n.neighbors)
}

// NeighborIDs returns the node's neighbor IDs, sorted.
func (n *Node) NeighborIDs() []string {
	ids := make([]string, 0, len(n.neighbors))
	for id := range n.neighbors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// storeBlock records the block locally. It reports false when the node had
// already stored it, which terminates the flood at this node.
func (n *Node) storeBlock(block *blockchain.Block) bool {
	if _, seen := n.stored.Get(block.BlockID); seen {
		return false
	}
	n.stored.Add(block.BlockID, struct{}{})
	n.pruneConfirmed(block.Transactions)
	return true
}

// HasBlock reports whether the node stores the block.
func (n *Node) HasBlock(blockID string) bool {
	_, ok := n.stored.Get(blockID)
	return ok
}

// StoredBlocks returns how many blocks the node stores.
func (n *Node) StoredBlocks() int {
	return n.stored.Len()
}

// DataVolume returns the cumulative bytes this node has received.
func (n *Node) DataVolume() int {
	return n.dataVolume
}

// transmissionDelay models receiving size bytes over this node's link.
func (n *Node) transmissionDelay(size int) float64 {
	return n.Latency + float64(size)/n.Bandwidth
}

func (n *Node) addPendingTransaction(tx *blockchain.Transaction) {
	n.pending = append(n.pending, tx)
}

// PendingTransactions returns the size of the node's local unconfirmed pool.
func (n *Node) PendingTransactions() int {
	return len(n.pending)
}

// pruneConfirmed drops transactions confirmed by a stored block from the
// local unconfirmed pool.
func (n *Node) pruneConfirmed(txIDs []string) {
	if len(n.pending) == 0 || len(txIDs) == 0 {
		return
	}
	confirmed := make(map[string]struct{}, len(txIDs))
	for _, id := range txIDs {
		confirmed[id] = struct{}{}
	}
	kept := n.pending[:0]
	for _, tx := range n.pending {
		if _, ok := confirmed[tx.TxID]; !ok {
			kept = append(kept, tx)
		}
	}
	n.pending = kept
}
