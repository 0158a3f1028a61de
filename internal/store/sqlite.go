// Package store implements an optional SQLite mirror of the transaction
// and profit CSV logs, so historical fills can be queried instead of
// grepped out of a flat file. The in-memory rate history stays RAM-bounded
// (internal/ringbuffer); only completed transactions and profit rows are
// durable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polybot/internal/operation"
	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func nowMs() int64 { return time.Now().UnixMilli() }

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	now            INTEGER NOT NULL,
	creation_time  INTEGER NOT NULL,
	order_id       TEXT    NOT NULL,
	order_type     TEXT    NOT NULL,
	initial_ccy    TEXT    NOT NULL,
	final_ccy      TEXT    NOT NULL,
	amount         REAL    NOT NULL,
	rate           REAL    NOT NULL,
	final_amount   REAL    NOT NULL,
	fee            REAL    NOT NULL
);

CREATE TABLE IF NOT EXISTS profit (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp_ms    INTEGER NOT NULL,
	strategy_id     TEXT    NOT NULL,
	initial_ccy     TEXT    NOT NULL,
	initial_amount  REAL    NOT NULL,
	failure_cause   TEXT    NOT NULL DEFAULT '',
	profit_ccy      TEXT    NOT NULL DEFAULT '',
	profit_amount   REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions(order_id);
CREATE INDEX IF NOT EXISTS idx_profit_strategy ON profit(strategy_id);
`

// Recorder mirrors completed transaction and profit rows into a SQLite
// database, pure-Go via modernc.org/sqlite (no cgo).
type Recorder struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the
// schema.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: apply schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// RecordTransaction inserts one transaction row, implementing
// operation.TransactionRecorder so it can be composed with
// csvlog.TransactionRecorder at the same call site.
func (r *Recorder) RecordTransaction(orderID string, creationTime int64, o *order.Order, amount float64) {
	rate := o.Rate
	finalAmount := txn.ApplyFee(o.Transaction, amount*rate)
	fee := amount*rate - finalAmount

	r.db.Exec(
		`INSERT INTO transactions (now, creation_time, order_id, order_type, initial_ccy, final_ccy, amount, rate, final_amount, fee)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nowMs(), creationTime, orderID, kindName(o.Kind),
		o.Transaction.Initial().Id(), o.Transaction.Final().Id(),
		amount, rate, finalAmount, fee,
	)
}

// RecordProfit inserts one profit row per currency the context
// accumulated profit in, mirroring csvlog.ProfitRecorder.RecordProfit so
// both can be registered on the same ctx.OnComplete call.
func (r *Recorder) RecordProfit(ctx *operation.Context) {
	initial := ctx.InitialCurrency()
	initialID := "NONE"
	if initial != nil {
		initialID = initial.Id()
	}
	cause := ctx.FailureCause()

	profit := ctx.Profit()
	if len(profit) == 0 {
		r.insertProfitRow(ctx.StrategyID, initialID, ctx.InitialAmount(), cause, "", 0)
		return
	}
	for cur, amount := range profit {
		r.insertProfitRow(ctx.StrategyID, initialID, ctx.InitialAmount(), cause, cur.Id(), amount)
	}
}

func (r *Recorder) insertProfitRow(strategyID, initialCcy string, initialAmount float64, failureCause, profitCcy string, profitAmount float64) {
	r.db.Exec(
		`INSERT INTO profit (timestamp_ms, strategy_id, initial_ccy, initial_amount, failure_cause, profit_ccy, profit_amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nowMs(), strategyID, initialCcy, initialAmount, failureCause, profitCcy, profitAmount,
	)
}

// Transactions returns every recorded transaction row for orderID, newest
// first.
func (r *Recorder) Transactions(ctx context.Context, orderID string) ([]TransactionRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT now, creation_time, order_id, order_type, initial_ccy, final_ccy, amount, rate, final_amount, fee
		 FROM transactions WHERE order_id = ? ORDER BY id DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("store.Transactions: query: %w", err)
	}
	defer rows.Close()

	var out []TransactionRow
	for rows.Next() {
		var t TransactionRow
		if err := rows.Scan(&t.Now, &t.CreationTime, &t.OrderID, &t.OrderType, &t.InitialCcy, &t.FinalCcy, &t.Amount, &t.Rate, &t.FinalAmount, &t.Fee); err != nil {
			return nil, fmt.Errorf("store.Transactions: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	Now          int64
	CreationTime int64
	OrderID      string
	OrderType    string
	InitialCcy   string
	FinalCcy     string
	Amount       float64
	Rate         float64
	FinalAmount  float64
	Fee          float64
}

// Close closes the underlying database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}

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
