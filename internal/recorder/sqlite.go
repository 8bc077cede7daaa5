package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id              TEXT PRIMARY KEY,
			timestamp       INTEGER NOT NULL,
			pair            TEXT,
			side            TEXT,
			entry           REAL,
			stop_loss       REAL,
			take_profit     REAL,
			confidence      REAL,
			matched_zones   TEXT,
			filters_passed  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(timestamp)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id          TEXT,
			timestamp   INTEGER NOT NULL,
			pair        TEXT,
			side        TEXT,
			type        TEXT,
			quantity    REAL,
			limit_price REAL,
			stop_price  REAL,
			status      TEXT,
			fill_price  REAL,
			signal_id   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_id ON orders(id)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id         TEXT PRIMARY KEY,
			order_id   TEXT,
			timestamp  INTEGER NOT NULL,
			pair       TEXT,
			side       TEXT,
			quantity   REAL,
			fill_price REAL,
			commission REAL,
			slippage   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(timestamp)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			cash            REAL,
			realized_pnl    REAL,
			unrealized_pnl  REAL,
			total_value     REAL,
			open_positions  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSignal(sig *model.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT OR IGNORE INTO signals
		(id, timestamp, pair, side, entry, stop_loss, take_profit, confidence, matched_zones, filters_passed)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		sig.ID, sig.Time.Unix(), sig.Pair, string(sig.Side),
		sig.Entry, sig.StopLoss, sig.TakeProfit, sig.Confidence,
		strings.Join(sig.MatchedZoneIDs, ","), strings.Join(sig.FiltersPassed, ","),
	)
	return err
}

func (r *SQLiteRecorder) RecordOrder(o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO orders
		(id, timestamp, pair, side, type, quantity, limit_price, stop_price, status, fill_price, signal_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.CreatedAt.Unix(), o.Pair, string(o.Side), string(o.Type),
		o.Quantity, o.LimitPrice, o.StopPrice, string(o.Status), o.FillPrice, o.SignalID,
	)
	return err
}

func (r *SQLiteRecorder) RecordTrade(t *model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT OR IGNORE INTO trades
		(id, order_id, timestamp, pair, side, quantity, fill_price, commission, slippage)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OrderID, t.Time.Unix(), t.Pair, string(t.Side),
		t.Quantity, t.FillPrice, t.Commission, t.Slippage,
	)
	return err
}

func (r *SQLiteRecorder) RecordSnapshot(snap *model.PortfolioSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO snapshots
		(timestamp, cash, realized_pnl, unrealized_pnl, total_value, open_positions)
		VALUES (?,?,?,?,?,?)`,
		snap.Time.Unix(), snap.Cash, snap.RealizedPnL, snap.UnrealizedPnL,
		snap.TotalValue, len(snap.Positions),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
