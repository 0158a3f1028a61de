package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/txn"
)

// kindName renders an order.Kind the way a human reading transactions.csv
// expects, rather than a bare integer.
func kindName(k order.Kind) string {
	switch k {
	case order.Limit:
		return "LIMIT"
	case order.Market:
		return "MARKET"
	case order.Withdraw:
		return "WITHDRAW"
	default:
		return "UNKNOWN"
	}
}

// TransactionRecorder appends one row per completed order leg to a single
// shared transactions.csv: (now, creationTime, orderId, orderType,
// initialCcy, finalCcy, amount, rate, finalAmount, fee). It implements
// operation.TransactionRecorder.
type TransactionRecorder struct {
	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

// NewTransactionRecorder opens (or creates) transactions.csv in dir.
func NewTransactionRecorder(dir string) (*TransactionRecorder, error) {
	path := filepath.Join(dir, "transactions.csv")
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvlog: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if needsHeader {
		_ = w.Write([]string{"now", "creationTime", "orderId", "orderType", "initialCcy", "finalCcy", "amount", "rate", "finalAmount", "fee"})
		w.Flush()
	}
	return &TransactionRecorder{w: w, f: f}, nil
}

// RecordTransaction writes one transactions.csv row for a completed leg.
// amount is the amount the leg was actually filled for (the completion
// event's payload), not the amount it was originally submitted for.
func (r *TransactionRecorder) RecordTransaction(orderID string, creationTime int64, o *order.Order, amount float64) {
	rate := o.Rate
	finalAmount := txn.ApplyFee(o.Transaction, amount*rate)
	fee := amount*rate - finalAmount

	r.mu.Lock()
	defer r.mu.Unlock()

	row := []string{
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		strconv.FormatInt(creationTime, 10),
		orderID,
		kindName(o.Kind),
		o.Transaction.Initial().Id(),
		o.Transaction.Final().Id(),
		strconv.FormatFloat(amount, 'f', -1, 64),
		strconv.FormatFloat(rate, 'f', -1, 64),
		strconv.FormatFloat(finalAmount, 'f', -1, 64),
		strconv.FormatFloat(fee, 'f', -1, 64),
	}
	if err := r.w.Write(row); err != nil {
		return
	}
	r.w.Flush()
}

// Close flushes and closes transactions.csv.
func (r *TransactionRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	return r.f.Close()
}
