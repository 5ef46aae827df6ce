// Package trace loads externally recorded transaction workloads so a run can
// replay real traffic instead of the synthetic generator.
package trace

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cryptoecon/chainsim/blockchain"
)

// Record is one transaction row of a trace file.
type Record struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Fee       float64 `json:"fee"`
	Timestamp float64 `json:"timestamp"`
	Priority  string  `json:"priority"`
}

// Transaction converts the record into a transaction with the given ID.
// An empty or unknown priority falls back to normal.
func (r Record) Transaction(txID string) *blockchain.Transaction {
	tx := blockchain.NewTransaction(txID, r.Sender, r.Recipient, r.Amount, r.Fee, r.Timestamp)
	switch p := blockchain.Priority(r.Priority); p {
	case blockchain.PriorityLow, blockchain.PriorityHigh, blockchain.PriorityUrgent:
		tx.Priority = p
		tx.Hash = tx.ComputeHash()
	}
	return tx
}

// Transactions converts all records, assigning sequential tx_N identifiers.
func Transactions(records []Record) []*blockchain.Transaction {
	txs := make([]*blockchain.Transaction, len(records))
	for i, r := range records {
		txs[i] = r.Transaction(fmt.Sprintf("tx_%d", i))
	}
	return txs
}

// LoadJSON reads a trace from a JSON file holding an array of records.
func LoadJSON(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trace: read %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("trace: parse %s: %w", path, err)
	}
	return records, nil
}

// LoadCSV reads a trace from a CSV file with the header
// sender,recipient,amount,fee,timestamp,priority. The priority column is
// optional.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("trace: read header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"sender", "recipient", "amount", "fee", "timestamp"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("trace: %s missing column %q", path, required)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trace: read %s line %d: %w", path, line, err)
		}

		r := Record{
			Sender:    row[col["sender"]],
			Recipient: row[col["recipient"]],
		}
		if r.Amount, err = strconv.ParseFloat(row[col["amount"]], 64); err != nil {
			return nil, fmt.Errorf("trace: %s line %d: bad amount: %w", path, line, err)
		}
		if r.Fee, err = strconv.ParseFloat(row[col["fee"]], 64); err != nil {
			return nil, fmt.Errorf("trace: %s line %d: bad fee: %w", path, line, err)
		}
		if r.Timestamp, err = strconv.ParseFloat(row[col["timestamp"]], 64); err != nil {
			return nil, fmt.Errorf("trace: %s line %d: bad timestamp: %w", path, line, err)
		}
		if i, ok := col["priority"]; ok && i < len(row) {
			r.Priority = row[i]
		}
		records = append(records, r)
	}
	return records, nil
}
