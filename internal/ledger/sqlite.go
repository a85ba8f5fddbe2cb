package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"alpaca-trader/internal/errors"
)

// SQLiteLedger keeps the trade history in SQLite. Duplicate detection
// rides on a unique index over the record identity, so idempotence holds
// even across concurrent writers.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite-backed ledger at dbPath.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", errors.ErrPersistence, dbPath, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, quantity, price, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing schema: %v", errors.ErrPersistence, err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Append writes a record, refusing duplicates via the unique index.
func (l *SQLiteLedger) Append(ctx context.Context, record TradeRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO trades (order_id, symbol, side, quantity, price, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.OrderID, record.Symbol, record.Side, record.Quantity, record.Price,
		record.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s %s @ %.5f", errors.ErrLedgerDuplicate, record.Symbol, record.Side, record.Price)
		}
		return fmt.Errorf("%w: inserting trade: %v", errors.ErrPersistence, err)
	}
	return nil
}

// Records returns all entries, oldest first.
func (l *SQLiteLedger) Records(ctx context.Context) ([]TradeRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT order_id, symbol, side, quantity, price, timestamp
		 FROM trades ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying trades: %v", errors.ErrPersistence, err)
	}
	defer rows.Close()

	var records []TradeRecord
	for rows.Next() {
		var r TradeRecord
		var ts string
		if err := rows.Scan(&r.OrderID, &r.Symbol, &r.Side, &r.Quantity, &r.Price, &ts); err != nil {
			return nil, fmt.Errorf("%w: scanning trade: %v", errors.ErrPersistence, err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing timestamp %q: %v", errors.ErrPersistence, ts, err)
		}
		r.Timestamp = parsed
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading trades: %v", errors.ErrPersistence, err)
	}
	return records, nil
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Open builds a ledger for the configured backend.
func Open(backend, path string) (Ledger, error) {
	switch backend {
	case "sqlite":
		return NewSQLiteLedger(path)
	case "csv", "":
		return NewCSVLedger(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
