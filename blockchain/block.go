package blockchain

const (
	// HeaderSize is the fixed size of a block header in bytes.
	HeaderSize = 1024

	// TransactionSize is the accounted size of a single transaction in bytes.
	TransactionSize = 256
)

// Block represents a mined block in the simulated chain.
//
// The hash is computed once at construction from the identity fields
// (block ID, timestamp, previous hash, miner ID) and never mutated.
// Blocks are appended to the chain exactly once; there is no reorg model.
type Block struct {
	BlockID          string   `json:"block_id"`
	Timestamp        float64  `json:"timestamp"`
	TimeSinceLast    float64  `json:"time_since_last"`
	TransactionCount int      `json:"transaction_count"`
	Size             int      `json:"size"`
	Transactions     []string `json:"transactions"`
	MinerReward      float64  `json:"miner_reward"`
	PreviousHash     string   `json:"previous_hash"`
	MinerID          string   `json:"miner_id"`
	Difficulty       float64  `json:"difficulty"`
	Hash             string   `json:"hash"`
}

// NewBlock creates a block and computes its identity hash. The size is the
// header plus a per-transaction constant.
func NewBlock(blockID string, timestamp, timeSinceLast float64, txIDs []string, reward float64, previousHash, minerID string, difficulty float64) *Block {
	b := &Block{
		BlockID:          blockID,
		Timestamp:        timestamp,
		TimeSinceLast:    timeSinceLast,
		TransactionCount: len(txIDs),
		Size:             HeaderSize + len(txIDs)*TransactionSize,
		Transactions:     txIDs,
		MinerReward:      reward,
		PreviousHash:     previousHash,
		MinerID:          minerID,
		Difficulty:       difficulty,
	}
	b.Hash = b.ComputeHash()
	return b
}

// ComputeHash derives the block hash from its identity fields. Recomputing it
// from the stored fields reproduces the stored hash.
func (b *Block) ComputeHash() string {
	return hashFields(b.BlockID, formatAmount(b.Timestamp), b.PreviousHash, b.MinerID).String()
}
