package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"alpaca-trader/internal/errors"
)

// CSVLedger keeps the trade history as a single CSV file. The whole file
// is loaded at open and rewritten atomically on every append; trade
// volume is bounded by the daily cap, so the rewrite stays cheap.
type CSVLedger struct {
	mu      sync.Mutex
	path    string
	records []TradeRecord
	seen    map[string]struct{}
}

// NewCSVLedger opens or creates a CSV-backed ledger at path.
func NewCSVLedger(path string) (*CSVLedger, error) {
	l := &CSVLedger{
		path: path,
		seen: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errors.ErrPersistence, path, err)
	}
	if len(data) == 0 {
		return l, nil
	}

	if err := gocsv.UnmarshalBytes(data, &l.records); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", errors.ErrPersistence, path, err)
	}
	for _, r := range l.records {
		l.seen[r.key()] = struct{}{}
	}
	return l, nil
}

// Append writes a record, refusing duplicates.
func (l *CSVLedger) Append(ctx context.Context, record TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[record.key()]; dup {
		return fmt.Errorf("%w: %s %s @ %.5f", errors.ErrLedgerDuplicate, record.Symbol, record.Side, record.Price)
	}

	updated := append(l.records, record)
	if err := l.write(updated); err != nil {
		return err
	}
	l.records = updated
	l.seen[record.key()] = struct{}{}
	return nil
}

// Records returns a copy of all entries, oldest first.
func (l *CSVLedger) Records(ctx context.Context) ([]TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]TradeRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}

// Close is a no-op; every append is already durable.
func (l *CSVLedger) Close() error { return nil }

// write replaces the file atomically via a temp file in the same
// directory.
func (l *CSVLedger) write(records []TradeRecord) error {
	data, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return fmt.Errorf("%w: encoding ledger: %v", errors.ErrPersistence, err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", errors.ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".trades-*.csv")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", errors.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file: %v", errors.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", errors.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", errors.ErrPersistence, l.path, err)
	}
	return nil
}
