package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpaca-trader/internal/errors"
)

func sampleRecord(symbol string, ts time.Time) TradeRecord {
	return TradeRecord{
		OrderID:   "ord-" + symbol,
		Symbol:    symbol,
		Side:      "buy",
		Quantity:  1.5,
		Price:     102.34,
		Timestamp: ts,
	}
}

func TestCSVLedgerAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

	l, err := NewCSVLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, sampleRecord("GLD", ts)))
	require.NoError(t, l.Append(ctx, sampleRecord("BTCUSD", ts.Add(time.Minute))))

	// Reopen from disk and confirm the history survived.
	reloaded, err := NewCSVLedger(path)
	require.NoError(t, err)
	records, err := reloaded.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "GLD", records[0].Symbol)
	assert.Equal(t, 102.34, records[0].Price)
	assert.True(t, records[0].Timestamp.Equal(ts))
}

func TestCSVLedgerRejectsDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

	l, err := NewCSVLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, sampleRecord("GLD", ts)))

	err = l.Append(ctx, sampleRecord("GLD", ts))
	assert.ErrorIs(t, err, errors.ErrLedgerDuplicate)

	records, err := l.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCSVLedgerDuplicateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	l, err := NewCSVLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, sampleRecord("SLV", ts)))

	// A replay after restart must still be caught.
	reopened, err := NewCSVLedger(path)
	require.NoError(t, err)
	err = reopened.Append(ctx, sampleRecord("SLV", ts))
	assert.ErrorIs(t, err, errors.ErrLedgerDuplicate)
}

func TestCSVLedgerDistinctRecordsAccepted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	l, err := NewCSVLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, sampleRecord("GLD", ts)))

	// Same symbol and price, different timestamp: a genuine second trade.
	require.NoError(t, l.Append(ctx, sampleRecord("GLD", ts.Add(time.Second))))

	// Different price at the same moment is also distinct.
	other := sampleRecord("GLD", ts)
	other.Price = 103
	require.NoError(t, l.Append(ctx, other))

	records, err := l.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestSQLiteLedgerAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

	l, err := NewSQLiteLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, sampleRecord("GLD", ts)))
	require.NoError(t, l.Append(ctx, sampleRecord("BTCUSD", ts.Add(time.Minute))))
	require.NoError(t, l.Close())

	reopened, err := NewSQLiteLedger(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "GLD", records[0].Symbol)
	assert.True(t, records[0].Timestamp.Equal(ts))
}

func TestSQLiteLedgerRejectsDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

	l, err := NewSQLiteLedger(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(ctx, sampleRecord("GLD", ts)))
	err = l.Append(ctx, sampleRecord("GLD", ts))
	assert.ErrorIs(t, err, errors.ErrLedgerDuplicate)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	csvLedger, err := Open("csv", filepath.Join(dir, "t.csv"))
	require.NoError(t, err)
	assert.IsType(t, &CSVLedger{}, csvLedger)

	sqliteLedger, err := Open("sqlite", filepath.Join(dir, "t.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteLedger{}, sqliteLedger)
	sqliteLedger.Close()

	_, err = Open("mongo", "x")
	assert.Error(t, err)
}
