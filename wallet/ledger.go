package wallet

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cryptoecon/chainsim/blockchain"
)

// historyLimit bounds the retained transaction history.
const historyLimit = 10000

// Ledger owns the wallet map, generates the synthetic transaction workload
// and credits confirmed transactions. All cross-component mutation goes
// through its methods.
type Ledger struct {
	mu          sync.Mutex
	walletCount int
	txPerWallet int
	interval    float64
	wallets     map[string]*blockchain.Wallet
	fees        *FeeModel
	history     []*blockchain.Transaction
	congestion  float64
	utilization float64
	rng         *rand.Rand
	log         *zap.Logger
}

// NewLedger creates walletCount wallets. The first half receive a random
// initial balance in [10, 100) so the workload has funded senders.
func NewLedger(walletCount, txPerWallet int, interval float64, fees *FeeModel, rng *rand.Rand, log *zap.Logger) *Ledger {
	l := &Ledger{
		walletCount: walletCount,
		txPerWallet: txPerWallet,
		interval:    interval,
		wallets:     make(map[string]*blockchain.Wallet, walletCount),
		fees:        fees,
		utilization: 0.5,
		rng:         rng,
		log:         log,
	}
	for i := 0; i < walletCount; i++ {
		id := fmt.Sprintf("wallet_%d", i)
		var balance float64
		if i < walletCount/2 {
			balance = 10.0 + rng.Float64()*90.0
		}
		l.wallets[id] = blockchain.NewWallet(id, balance)
	}
	log.Info("wallet ledger initialized", zap.Int("wallets", walletCount))
	return l
}

// GenerateWorkload produces walletCount x txPerWallet transactions, cycling
// senders across wallets and paying the next wallet (mod wallet count), with
// a fixed amount and fee for throughput. The callback is invoked
// synchronously for each transaction; generation completes before mining is
// allowed to start.
func (l *Ledger) GenerateWorkload(cb func(*blockchain.Transaction)) int {
	if l.walletCount == 0 || l.txPerWallet <= 0 {
		return 0
	}

	total := l.walletCount * l.txPerWallet
	l.log.Info("generating transaction workload", zap.Int("transactions", total))

	for i := 0; i < total; i++ {
		senderIdx := i / l.txPerWallet
		sender := fmt.Sprintf("wallet_%d", senderIdx)
		recipient := fmt.Sprintf("wallet_%d", (senderIdx+1)%l.walletCount)

		tx := blockchain.NewTransaction(fmt.Sprintf("tx_%d", i), sender, recipient, 1.0, 0.01, 0)
		tx.NetworkCongestion = l.currentCongestion()

		l.recordHistory(tx)
		cb(tx)
	}
	return total
}

// Confirm credits the recipient and marks the transaction confirmed. The
// sender is deliberately not debited; see the conservation note on
// blockchain.Wallet.
func (l *Ledger) Confirm(tx *blockchain.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w, ok := l.wallets[tx.Recipient]; ok {
		w.Credit(tx.Amount)
	}
	tx.Status = blockchain.StatusConfirmed
}

// AddMiningReward credits a coinbase reward to the miner's wallet, creating
// the wallet on first use.
func (l *Ledger) AddMiningReward(minerID string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wallets[minerID]
	if !ok {
		w = blockchain.NewWallet(minerID, 0)
		l.wallets[minerID] = w
	}
	w.Credit(amount)
}

// UpdateNetworkConditions pushes fresh congestion and utilization readings
// into the ledger and its fee model.
func (l *Ledger) UpdateNetworkConditions(congestion, blockUtilization float64) {
	l.mu.Lock()
	l.congestion = clamp01(congestion)
	l.utilization = clamp01(blockUtilization)
	l.mu.Unlock()

	l.fees.SetBlockUtilization(blockUtilization)
}

// Fees returns the ledger's fee model.
func (l *Ledger) Fees() *FeeModel {
	return l.fees
}

// Balance returns the balance of a wallet, zero if unknown.
func (l *Ledger) Balance(walletID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.wallets[walletID]; ok {
		return w.Balance
	}
	return 0
}

// TotalBalance sums all wallet balances.
func (l *Ledger) TotalBalance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, w := range l.wallets {
		total += w.Balance
	}
	return total
}

// WalletCount returns the number of wallets in the ledger.
func (l *Ledger) WalletCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.wallets)
}

func (l *Ledger) currentCongestion() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.congestion
}

func (l *Ledger) recordHistory(tx *blockchain.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, tx)
	if len(l.history) > historyLimit {
		l.history = l.history[len(l.history)-historyLimit:]
	}
}

// WalletSnapshot is the per-wallet view exposed in result snapshots.
type WalletSnapshot struct {
	WalletID             string  `json:"wallet_id"`
	Balance              float64 `json:"balance"`
	TransactionsSent     int     `json:"transactions_sent"`
	TransactionsReceived int     `json:"transactions_received"`
	TotalSent            float64 `json:"total_sent"`
	TotalReceived        float64 `json:"total_received"`
	TotalFees            float64 `json:"total_fees"`
	AverageFeeRate       float64 `json:"average_fee_rate"`
}

// LedgerStats is the ledger-wide view exposed in result snapshots.
type LedgerStats struct {
	TotalWallets     int              `json:"total_wallets"`
	TotalBalance     float64          `json:"total_balance"`
	Congestion       float64          `json:"congestion"`
	BlockUtilization float64          `json:"block_utilization"`
	Wallets          []WalletSnapshot `json:"wallets"`
}

// Stats assembles the ledger-wide snapshot, wallets sorted by ID.
func (l *Ledger) Stats() LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := LedgerStats{
		TotalWallets:     len(l.wallets),
		Congestion:       l.congestion,
		BlockUtilization: l.utilization,
		Wallets:          make([]WalletSnapshot, 0, len(l.wallets)),
	}
	for _, w := range l.wallets {
		stats.TotalBalance += w.Balance
		stats.Wallets = append(stats.Wallets, snapshotWallet(w))
	}
	sort.Slice(stats.Wallets, func(i, j int) bool {
		return stats.Wallets[i].WalletID < stats.Wallets[j].WalletID
	})
	return stats
}

// RichestWallets returns the top count wallets by balance.
func (l *Ledger) RichestWallets(count int) []WalletSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]WalletSnapshot, 0, len(l.wallets))
	for _, w := range l.wallets {
		all = append(all, snapshotWallet(w))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Balance > all[j].Balance })
	if count < len(all) {
		all = all[:count]
	}
	return all
}

// FeeBucket aggregates fees for one priority class.
type FeeBucket struct {
	Count     int     `json:"count"`
	TotalFees float64 `json:"total_fees"`
}

// FeeStatistics summarizes fees across the retained transaction history.
type FeeStatistics struct {
	TotalFees       float64                           `json:"total_fees"`
	AverageFee      float64                           `json:"average_fee"`
	MinFee          float64                           `json:"min_fee"`
	MaxFee          float64                           `json:"max_fee"`
	FeeDistribution map[blockchain.Priority]FeeBucket `json:"fee_distribution"`
}

// FeeStats summarizes the fees of the retained history by priority class.
func (l *Ledger) FeeStats() FeeStatistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := FeeStatistics{FeeDistribution: make(map[blockchain.Priority]FeeBucket)}
	if len(l.history) == 0 {
		return stats
	}

	stats.MinFee = l.history[0].Fee
	stats.MaxFee = l.history[0].Fee
	for _, tx := range l.history {
		stats.TotalFees += tx.Fee
		if tx.Fee < stats.MinFee {
			stats.MinFee = tx.Fee
		}
		if tx.Fee > stats.MaxFee {
			stats.MaxFee = tx.Fee
		}
		bucket := stats.FeeDistribution[tx.Priority]
		bucket.Count++
		bucket.TotalFees += tx.Fee
		stats.FeeDistribution[tx.Priority] = bucket
	}
	stats.AverageFee = stats.TotalFees / float64(len(l.history))
	return stats
}

func snapshotWallet(w *blockchain.Wallet) WalletSnapshot {
	return WalletSnapshot{
		WalletID:             w.WalletID,
		Balance:              w.Balance,
		TransactionsSent:     w.TransactionsSent,
		TransactionsReceived: w.TransactionsReceived,
		TotalSent:            w.TotalSent,
		TotalReceived:        w.TotalReceived,
		TotalFees:            w.TotalFees,
		AverageFeeRate:       w.AverageFeeRate(),
	}
}
