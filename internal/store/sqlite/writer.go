// Package sqlite persists minute bars, trades, backtest runs, and
// indicator checkpoints. One WAL-mode database file serves both the live
// scanner (writer) and backtests (reader).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bondscan/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to the database file, e.g. "data/bondscan.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching for
// the bar stream and synchronous inserts for low-volume records.
type Writer struct {
	db *sql.DB

	// OnCommit, when set, is called after each batch commit with its
	// duration and row count.
	OnCommit func(d time.Duration, rows int)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database, enables WAL mode, and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars_1m (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  INTEGER NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id          TEXT PRIMARY KEY,
			symbol      TEXT    NOT NULL,
			entry_ts    INTEGER NOT NULL,
			entry_price REAL    NOT NULL,
			exit_ts     INTEGER NOT NULL,
			exit_price  REAL    NOT NULL,
			exit_reason TEXT    NOT NULL,
			pnl         REAL    NOT NULL,
			run_id      TEXT
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			id         TEXT PRIMARY KEY,
			symbol     TEXT    NOT NULL,
			strategy   TEXT    NOT NULL,
			result     TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS indicator_states (
			symbol     TEXT PRIMARY KEY,
			data       TEXT    NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Run reads bars from barCh and inserts them in batched transactions.
// Flushes every batchSize bars OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			if w.OnCommit != nil {
				w.OnCommit(time.Since(start), len(batch))
			}
			log.Printf("[sqlite] committed %d bars in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertBatch(bars []model.Bar) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars_1m (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(b.Symbol, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// SaveBars inserts a bar slice synchronously. Used by the backfill path
// where the batching loop is not running.
func (w *Writer) SaveBars(bars []model.Bar) error {
	return w.insertBatch(bars)
}

// SaveTrade records one completed trade, optionally tagged with the
// backtest run that produced it (empty runID for live trades).
func (w *Writer) SaveTrade(t *model.Trade, runID string) error {
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO trades (id, symbol, entry_ts, entry_price, exit_ts, exit_price, exit_reason, pnl, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Symbol, t.EntryTime.Unix(), t.EntryPrice, t.ExitTime.Unix(), t.ExitPrice, string(t.ExitReason), t.PnL, runID)
	if err != nil {
		return fmt.Errorf("sqlite insert trade: %w", err)
	}
	return nil
}

// SaveRun stores a backtest run record as JSON alongside its identity
// columns so runs can be listed without decoding.
func (w *Writer) SaveRun(runID, symbol, strategyName string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	_, err = w.db.Exec(`
		INSERT OR REPLACE INTO backtest_runs (id, symbol, strategy, result)
		VALUES (?, ?, ?, ?)
	`, runID, symbol, strategyName, string(data))
	if err != nil {
		return fmt.Errorf("sqlite insert run: %w", err)
	}
	return nil
}

// SaveIndicatorState checkpoints one symbol's serialized indicator state,
// replacing any previous checkpoint for the symbol.
func (w *Writer) SaveIndicatorState(symbol string, data []byte) error {
	_, err := w.db.Exec(`
		INSERT INTO indicator_states (symbol, data, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(symbol) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, symbol, string(data))
	if err != nil {
		return fmt.Errorf("sqlite save indicator state: %w", err)
	}
	return nil
}

// LastBarTS returns the newest stored bar timestamp for a symbol, zero
// time if none exist.
func (w *Writer) LastBarTS(symbol string) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(`SELECT MAX(ts) FROM bars_1m WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
