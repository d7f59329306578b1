package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bondscan/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access for backtests and state restore.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars returns stored minute bars for symbol with timestamps in
// [from, to], oldest first. A zero to means "everything after from".
func (r *Reader) ReadBars(symbol string, from, to time.Time) ([]model.Bar, error) {
	toUnix := int64(1<<62 - 1)
	if !to.IsZero() {
		toUnix = to.Unix()
	}

	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars_1m
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, symbol, from.Unix(), toUnix)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars_1m: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars_1m: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadTrades returns trades for a backtest run (or all live trades for a
// symbol when runID is empty), oldest exit first.
func (r *Reader) ReadTrades(symbol, runID string) ([]*model.Trade, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, entry_ts, entry_price, exit_ts, exit_price, exit_reason, pnl
		FROM trades
		WHERE symbol = ? AND run_id = ?
		ORDER BY exit_ts ASC
	`, symbol, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []*model.Trade
	for rows.Next() {
		t := &model.Trade{}
		var entryTS, exitTS int64
		var reason string
		if err := rows.Scan(&t.ID, &t.Symbol, &entryTS, &t.EntryPrice, &exitTS, &t.ExitPrice, &reason, &t.PnL); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		t.EntryTime = time.Unix(entryTS, 0).UTC()
		t.ExitTime = time.Unix(exitTS, 0).UTC()
		t.ExitReason = model.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ReadRun loads one stored backtest run result into out.
func (r *Reader) ReadRun(runID string, out any) error {
	var data string
	err := r.db.QueryRow(`SELECT result FROM backtest_runs WHERE id = ?`, runID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("backtest run %s not found", runID)
		}
		return fmt.Errorf("sqlite read run: %w", err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("unmarshal run result: %w", err)
	}
	return nil
}

// ReadIndicatorState loads a symbol's last indicator checkpoint.
// Returns nil data when no checkpoint exists.
func (r *Reader) ReadIndicatorState(symbol string) ([]byte, error) {
	var data string
	err := r.db.QueryRow(`SELECT data FROM indicator_states WHERE symbol = ?`, symbol).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read indicator state: %w", err)
	}
	return []byte(data), nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
