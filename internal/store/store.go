// Package store keeps a history of backtest runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"orb/internal/backtest"
	"orb/pkg/model"
)

// timeLayout has a fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run id has no stored row
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	source        TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	period        TEXT NOT NULL,
	bar_interval  TEXT NOT NULL,
	opening_time  TEXT NOT NULL,
	trading_window TEXT NOT NULL,
	exit_time     TEXT NOT NULL,
	cost_rate     REAL NOT NULL,
	ticks         INTEGER NOT NULL,
	bars          INTEGER NOT NULL,
	total_trades  INTEGER NOT NULL,
	winning       INTEGER NOT NULL,
	losing        INTEGER NOT NULL,
	total_pnl     REAL NOT NULL,
	max_drawdown  REAL NOT NULL,
	sharpe        REAL NOT NULL,
	calmar        REAL NOT NULL,
	win_rate      REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq              INTEGER NOT NULL,
	date             TEXT NOT NULL,
	entry_time       TEXT NOT NULL,
	entry_price      REAL NOT NULL,
	exit_time        TEXT NOT NULL,
	exit_price       REAL NOT NULL,
	signal           INTEGER NOT NULL,
	gross_pnl        REAL NOT NULL,
	transaction_cost REAL NOT NULL,
	net_pnl          REAL NOT NULL,
	cum_pnl          REAL NOT NULL,
	running_max      REAL NOT NULL,
	drawdown         REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// Run is one stored backtest with its headline numbers
type Run struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	Source      string        `json:"source"`
	Strategy    string        `json:"strategy"`
	Period      string        `json:"period"`
	BarInterval string        `json:"bar_interval"`
	OpeningTime string        `json:"opening_time"`
	Window      string        `json:"window"`
	ExitTime    string        `json:"exit_time"`
	CostRate    float64       `json:"cost_rate"`
	Ticks       int           `json:"ticks"`
	Bars        int           `json:"bars"`
	Summary     model.Summary `json:"summary"`
}

// Store wraps the run history database
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file and schema if needed
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialising %s: %w", path, err)
		}
	}

	log.Printf("[STORE] Opened run history at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its trades in one transaction
func (s *Store) SaveRun(ctx context.Context, source string, result *backtest.BacktestResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cfg := result.Config
	sum := result.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, source, strategy, period, bar_interval, opening_time, trading_window,
			exit_time, cost_rate, ticks, bars, total_trades, winning, losing, total_pnl, max_drawdown,
			sharpe, calmar, win_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, time.Now().UTC().Format(timeLayout), source, result.Strategy, result.Period,
		cfg.BarInterval.String(), cfg.OpeningRangeTime.String(), cfg.TradingWindow.String(),
		cfg.ExitTime.String(), cfg.CostRate, result.Ticks, result.Bars,
		sum.TotalTrades, sum.WinningTrades, sum.LosingTrades, sum.TotalPnL, sum.MaxDrawdown,
		sum.SharpeRatio, sum.CalmarRatio, sum.WinRate)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, seq, date, entry_time, entry_price, exit_time, exit_price, signal,
			gross_pnl, transaction_cost, net_pnl, cum_pnl, running_max, drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range result.Trades {
		_, err := stmt.ExecContext(ctx, result.RunID, i, t.Date.String(),
			t.EntryTime.Format(timeLayout), t.EntryPrice,
			t.ExitTime.Format(timeLayout), t.ExitPrice, int(t.Signal),
			t.GrossPnL, t.TransactionCost, t.NetPnL, t.CumPnL, t.RunningMax, t.Drawdown)
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, result.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[STORE] Saved run %s (%d trades, net=%.2f)", result.RunID, len(result.Trades), sum.TotalPnL)
	return nil
}

// Runs lists the most recent runs first; limit <= 0 means all
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, source, strategy, period, bar_interval, opening_time, trading_window, exit_time,
			cost_rate, ticks, bars, total_trades, winning, losing, total_pnl, max_drawdown, sharpe,
			calmar, win_rate
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run fetches a single run by id
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, source, strategy, period, bar_interval, opening_time, trading_window, exit_time,
			cost_rate, ticks, bars, total_trades, winning, losing, total_pnl, max_drawdown, sharpe,
			calmar, win_rate
		FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Trades returns the stored trades of a run in entry order
func (s *Store) Trades(ctx context.Context, runID string) ([]model.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, entry_time, entry_price, exit_time, exit_price, signal, gross_pnl,
			transaction_cost, net_pnl, cum_pnl, running_max, drawdown
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var (
			t                 model.Trade
			date, entry, exit string
			signal            int
		)
		if err := rows.Scan(&date, &entry, &t.EntryPrice, &exit, &t.ExitPrice, &signal,
			&t.GrossPnL, &t.TransactionCost, &t.NetPnL, &t.CumPnL, &t.RunningMax, &t.Drawdown); err != nil {
			return nil, err
		}
		if err := t.Date.UnmarshalText([]byte(date)); err != nil {
			return nil, err
		}
		if t.EntryTime, err = time.Parse(timeLayout, entry); err != nil {
			return nil, err
		}
		if t.ExitTime, err = time.Parse(timeLayout, exit); err != nil {
			return nil, err
		}
		t.Signal = model.Signal(signal)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DeleteRun removes a run and its trades
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	log.Printf("[STORE] Deleted run %s", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		created string
	)
	err := sc.Scan(&r.ID, &created, &r.Source, &r.Strategy, &r.Period, &r.BarInterval, &r.OpeningTime,
		&r.Window, &r.ExitTime, &r.CostRate, &r.Ticks, &r.Bars,
		&r.Summary.TotalTrades, &r.Summary.WinningTrades, &r.Summary.LosingTrades, &r.Summary.TotalPnL,
		&r.Summary.MaxDrawdown, &r.Summary.SharpeRatio, &r.Summary.CalmarRatio, &r.Summary.WinRate)
	if err != nil {
		return Run{}, err
	}
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Run{}, err
	}
	return r, nil
}
