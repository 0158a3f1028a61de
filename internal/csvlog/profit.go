package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/operation"
)

// ProfitRecorder appends one row per currency with nonzero profit when a
// chain's OperationContext completes: (timestamp_ms, strategyId,
// initialCcy, initialAmount, failureCause, profitCcy, profitAmount). A
// chain that failed still gets a row, with profitAmount 0 and
// failureCause set, so profit.csv also doubles as a failure log.
//
// Callers wire this by registering ctx.OnComplete(recorder.RecordProfit)
// on the context returned by operation.NewContext, once per chain.
type ProfitRecorder struct {
	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

// NewProfitRecorder opens (or creates) profit.csv in dir.
func NewProfitRecorder(dir string) (*ProfitRecorder, error) {
	path := filepath.Join(dir, "profit.csv")
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvlog: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if needsHeader {
		_ = w.Write([]string{"timestamp_ms", "strategyId", "initialCcy", "initialAmount", "failureCause", "profitCcy", "profitAmount"})
		w.Flush()
	}
	return &ProfitRecorder{w: w, f: f}, nil
}

// RecordProfit writes one row per currency the context accumulated profit
// in, or a single zero-profit row if the chain never recorded any.
func (r *ProfitRecorder) RecordProfit(ctx *operation.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	initial := ctx.InitialCurrency()
	initialID := "NONE"
	if initial != nil {
		initialID = initial.Id()
	}
	cause := ctx.FailureCause()

	profit := ctx.Profit()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(profit) == 0 {
		r.writeLocked(now, ctx.StrategyID, initialID, ctx.InitialAmount(), cause, "", 0)
		return
	}
	for cur, amount := range profit {
		r.writeLocked(now, ctx.StrategyID, initialID, ctx.InitialAmount(), cause, cur.Id(), amount)
	}
}

func (r *ProfitRecorder) writeLocked(now, strategyID, initialID string, initialAmount float64, cause, profitCcy string, profitAmount float64) {
	row := []string{
		now,
		strategyID,
		initialID,
		strconv.FormatFloat(initialAmount, 'f', -1, 64),
		cause,
		profitCcy,
		strconv.FormatFloat(profitAmount, 'f', -1, 64),
	}
	if err := r.w.Write(row); err != nil {
		return
	}
	r.w.Flush()
}

// Close flushes and closes profit.csv.
func (r *ProfitRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	return r.f.Close()
}
