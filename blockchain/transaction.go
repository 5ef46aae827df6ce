package blockchain

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Priority is the fee priority class of a transaction.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Transaction represents a value transfer between two wallets.
//
// The hash is computed once at construction. NetworkCongestion is a snapshot
// of the congestion level at creation time, used by the fee model.
type Transaction struct {
	TxID              string   `json:"tx_id"`
	Sender            string   `json:"sender"`
	Recipient         string   `json:"recipient"`
	Amount            float64  `json:"amount"`
	Fee               float64  `json:"fee"`
	Timestamp         float64  `json:"timestamp"`
	Status            Status   `json:"status"`
	Priority          Priority `json:"priority"`
	NetworkCongestion float64  `json:"network_congestion"`
	Hash              string   `json:"hash"`
}

// NewTransaction creates a pending normal-priority transaction and computes
// its identity hash.
func NewTransaction(txID, sender, recipient string, amount, fee, timestamp float64) *Transaction {
	tx := &Transaction{
		TxID:      txID,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		Timestamp: timestamp,
		Status:    StatusPending,
		Priority:  PriorityNormal,
	}
	tx.Hash = tx.ComputeHash()
	return tx
}

// ComputeHash derives the transaction hash from its identity fields.
func (tx *Transaction) ComputeHash() string {
	return hashFields(tx.TxID, tx.Sender, tx.Recipient,
		formatAmount(tx.Amount), formatAmount(tx.Fee),
		formatAmount(tx.Timestamp), string(tx.Priority)).String()
}
