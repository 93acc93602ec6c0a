// Package sqlite is the persistence boundary: user autotrade settings, the
// trade ledger and signal history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signalengine/internal/model"
)

// Store implements model.UserStore, model.TradeLedger and model.SignalRecorder.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex // serializes writes
	now func() time.Time
	log *slog.Logger
}

var (
	_ model.UserStore      = (*Store)(nil)
	_ model.TradeLedger    = (*Store)(nil)
	_ model.SignalRecorder = (*Store)(nil)
)

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string, log *slog.Logger) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = "file::memory:?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// single writer; an in-memory database also lives on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	log.Info("sqlite store opened", "path", path)
	return &Store{db: db, now: time.Now, log: log.With("component", "sqlite")}, nil
}

// WithClock replaces the time source used for "today". Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                       INTEGER PRIMARY KEY,
			username                 TEXT    NOT NULL DEFAULT '',
			notifications_enabled    INTEGER NOT NULL DEFAULT 1,
			risk_per_trade           REAL    NOT NULL DEFAULT 1.0,
			autotrade_enabled        INTEGER NOT NULL DEFAULT 0,
			autotrade_min_confidence REAL    NOT NULL DEFAULT 75.0,
			autotrade_max_trades     INTEGER NOT NULL DEFAULT 5,
			autotrade_assets         TEXT    NOT NULL DEFAULT 'BTC/USDT,ETH/USDT,GC=F',
			joined_at                INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS trade_executions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER NOT NULL,
			asset       TEXT    NOT NULL,
			direction   TEXT    NOT NULL,
			amount      REAL    NOT NULL,
			entry_price REAL,
			confidence  REAL,
			status      TEXT    NOT NULL,
			contract_id TEXT,
			message     TEXT,
			ts          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_user_ts ON trade_executions(user_id, ts);

		CREATE TABLE IF NOT EXISTS signal_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id   TEXT    NOT NULL,
			asset       TEXT    NOT NULL,
			direction   TEXT    NOT NULL,
			entry_price REAL    NOT NULL,
			tp          REAL,
			sl          REAL,
			confidence  REAL    NOT NULL,
			strategy    TEXT,
			expiry      TEXT,
			ts          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_signals_ts ON signal_history(ts);
	`)
	return err
}

// ── Users ──

// UpsertUser inserts or replaces a user's settings. Zero values take the
// model defaults so a bare {UserID, Enabled} row is usable.
func (s *Store) UpsertUser(ctx context.Context, cfg model.AutotradeConfig) error {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = model.DefaultMinConfidence
	}
	if cfg.MaxTradesPerDay <= 0 {
		cfg.MaxTradesPerDay = model.DefaultMaxTradesPerDay
	}
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = model.DefaultRiskPerTrade
	}
	if strings.TrimSpace(cfg.Assets) == "" {
		cfg.Assets = model.DefaultAutotradeAssets
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, notifications_enabled, risk_per_trade, autotrade_enabled,
			autotrade_min_confidence, autotrade_max_trades, autotrade_assets)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notifications_enabled    = excluded.notifications_enabled,
			risk_per_trade           = excluded.risk_per_trade,
			autotrade_enabled        = excluded.autotrade_enabled,
			autotrade_min_confidence = excluded.autotrade_min_confidence,
			autotrade_max_trades     = excluded.autotrade_max_trades,
			autotrade_assets         = excluded.autotrade_assets
	`, cfg.UserID, cfg.NotificationsEnabled, cfg.RiskPerTrade, cfg.Enabled,
		cfg.MinConfidence, cfg.MaxTradesPerDay, cfg.Assets)
	if err != nil {
		return fmt.Errorf("sqlite upsert user %d: %w", cfg.UserID, err)
	}
	return nil
}

const userColumns = `id, autotrade_enabled, autotrade_min_confidence, autotrade_max_trades,
	risk_per_trade, autotrade_assets, notifications_enabled`

func scanUser(sc interface{ Scan(...any) error }) (model.AutotradeConfig, error) {
	var c model.AutotradeConfig
	err := sc.Scan(&c.UserID, &c.Enabled, &c.MinConfidence, &c.MaxTradesPerDay,
		&c.RiskPerTrade, &c.Assets, &c.NotificationsEnabled)
	return c, err
}

// GetUserConfig returns one user's configuration.
func (s *Store) GetUserConfig(ctx context.Context, userID int64) (model.AutotradeConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	c, err := scanUser(row)
	if err != nil {
		return model.AutotradeConfig{}, fmt.Errorf("sqlite get user %d: %w", userID, err)
	}
	return c, nil
}

// ListAutotradeUsers returns users with autotrading enabled, by id.
func (s *Store) ListAutotradeUsers(ctx context.Context) ([]model.AutotradeConfig, error) {
	return s.listUsers(ctx, `autotrade_enabled = 1`)
}

// ListNotifiableUsers returns users that opted into signal notifications.
func (s *Store) ListNotifiableUsers(ctx context.Context) ([]model.AutotradeConfig, error) {
	return s.listUsers(ctx, `notifications_enabled = 1`)
}

func (s *Store) listUsers(ctx context.Context, where string) ([]model.AutotradeConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list users: %w", err)
	}
	defer rows.Close()

	var out []model.AutotradeConfig
	for rows.Next() {
		c, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan user: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ── Trade ledger ──

// startOfDay returns midnight UTC of t's day.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CountTradesToday counts the user's trades since midnight UTC.
func (s *Store) CountTradesToday(ctx context.Context, userID int64) (int, error) {
	since := startOfDay(s.now()).Unix()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trade_executions WHERE user_id = ? AND ts >= ?`,
		userID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite count trades %d: %w", userID, err)
	}
	return n, nil
}

// RecordTrade appends an execution outcome. A zero Timestamp means now.
func (s *Store) RecordTrade(ctx context.Context, rec model.TradeRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_executions (user_id, asset, direction, amount, entry_price,
			confidence, status, contract_id, message, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.UserID, rec.Asset, string(rec.Direction), rec.Amount, rec.EntryPrice,
		rec.Confidence, string(rec.Status), rec.ContractID, rec.Message, ts.Unix())
	if err != nil {
		return fmt.Errorf("sqlite record trade: %w", err)
	}
	return nil
}

// RecentTrades returns a user's latest trades, newest first.
func (s *Store) RecentTrades(ctx context.Context, userID int64, limit int) ([]model.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, asset, direction, amount, COALESCE(entry_price, 0), COALESCE(confidence, 0),
			status, COALESCE(contract_id, ''), COALESCE(message, ''), ts
		FROM trade_executions WHERE user_id = ?
		ORDER BY ts DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite recent trades: %w", err)
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var (
			r         model.TradeRecord
			dir, st   string
			tsSeconds int64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Asset, &dir, &r.Amount, &r.EntryPrice,
			&r.Confidence, &st, &r.ContractID, &r.Message, &tsSeconds); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		r.Direction = model.Direction(dir)
		r.Status = model.ExecutionStatus(st)
		r.Timestamp = time.Unix(tsSeconds, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// ── Signal history ──

// RecordSignal appends a produced signal.
func (s *Store) RecordSignal(ctx context.Context, sig model.Signal) error {
	ts := sig.CreatedAt
	if ts.IsZero() {
		ts = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signal_history (signal_id, asset, direction, entry_price, tp, sl,
			confidence, strategy, expiry, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.Asset, string(sig.Direction), sig.Entry, sig.TakeProfit, sig.StopLoss,
		sig.Confidence, sig.Strategy, sig.Expiry, ts.Unix())
	if err != nil {
		return fmt.Errorf("sqlite record signal: %w", err)
	}
	return nil
}

// SignalCount returns the number of stored signals.
func (s *Store) SignalCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signal_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count signals: %w", err)
	}
	return n, nil
}
