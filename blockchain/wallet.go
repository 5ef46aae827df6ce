package blockchain

import "fmt"

// Wallet represents a user wallet and its running counters.
//
// Confirmation is credit-only: the confirmation path credits recipients and
// never debits senders, so the sum of wallet balances is not conserved and
// does not equal coins minted minus fees. Debit exists for explicit transfers
// and does enforce sufficient balance.
type Wallet struct {
	WalletID             string  `json:"wallet_id"`
	Balance              float64 `json:"balance"`
	TransactionsSent     int     `json:"transactions_sent"`
	TransactionsReceived int     `json:"transactions_received"`
	TotalSent            float64 `json:"total_sent"`
	TotalReceived        float64 `json:"total_received"`
	TotalFees            float64 `json:"total_fees"`
}

// NewWallet creates a wallet with an initial balance.
func NewWallet(walletID string, balance float64) *Wallet {
	return &Wallet{WalletID: walletID, Balance: balance}
}

// Credit adds amount to the balance and bumps the received counters.
func (w *Wallet) Credit(amount float64) {
	w.Balance += amount
	w.TotalReceived += amount
	w.TransactionsReceived++
}

// Debit removes amount plus fee from the balance. It fails without mutating
// the wallet when the balance is insufficient.
func (w *Wallet) Debit(amount, fee float64) error {
	total := amount + fee
	if w.Balance < total {
		return fmt.Errorf("wallet %s: insufficient balance %.6f < %.6f", w.WalletID, w.Balance, total)
	}
	w.Balance -= total
	w.TotalSent += amount
	w.TotalFees += fee
	w.TransactionsSent++
	return nil
}

// AverageFeeRate returns total fees paid per unit sent.
func (w *Wallet) AverageFeeRate() float64 {
	if w.TotalSent <= 0 {
		return 0
	}
	return w.TotalFees / w.TotalSent
}
