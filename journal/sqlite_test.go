package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func filled(at time.Time) OrderRecord {
	return OrderRecord{
		Time:       at,
		Action:     "open",
		Status:     "filled",
		Symbol:     "USTEC",
		Side:       "buy",
		Volume:     0.5,
		Price:      18001.5,
		StopLoss:   17991.5,
		StopPoints: 1000,
		Ticket:     1001,
		Retcode:    10009,
		Magic:      123456,
		Comment:    "RiskOnAuto",
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('orders','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())
	assert.True(t, found["orders"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordAndGetOrder(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	at := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	rec := filled(at)
	rec.ID = "01JNH7Z6ZQ0000000000000001"
	require.NoError(t, j.RecordOrder(rec))

	got, err := j.GetOrder(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, at.Equal(got.Time))
	assert.Equal(t, "USTEC", got.Symbol)
	assert.Equal(t, uint64(1001), got.Ticket)
	assert.Equal(t, uint32(10009), got.Retcode)
	assert.Equal(t, uint64(123456), got.Magic)
	assert.InDelta(t, 0.5, got.Volume, 1e-12)
	assert.Equal(t, 1000, got.StopPoints)

	_, err = j.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSQLiteListOrders(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	base := time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := filled(base.Add(time.Duration(i) * time.Minute))
		rec.Ticket = uint64(1000 + i)
		require.NoError(t, j.RecordOrder(rec))
	}
	skip := OrderRecord{Time: base.Add(10 * time.Minute), Action: "close_half", Status: "skipped", Symbol: "EURUSD", Reason: "below minimum volume"}
	require.NoError(t, j.RecordOrder(skip))

	recent, err := j.ListOrders(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "skipped", recent[0].Status)
	assert.NotEmpty(t, recent[0].ID)
	assert.Equal(t, uint64(1002), recent[1].Ticket)

	all, err := j.ListOrders(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	between, err := j.ListOrdersBetween(context.Background(), base, base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, uint64(1000), between[0].Ticket)

	sum, err := j.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"filled": 3, "skipped": 1}, sum)
}

func TestSQLiteRecordEquity(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: time.Now().UTC(), Login: 5555, Currency: "USD", Balance: 10000, Equity: 10025.5,
	}))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		login  int64
		equity float64
	)
	require.NoError(t, db.QueryRow(`SELECT login, equity FROM equity`).Scan(&login, &equity))
	assert.Equal(t, int64(5555), login)
	assert.InDelta(t, 10025.5, equity, 1e-9)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	j, err := Open(TypeNone, "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, j)

	j, err = Open(TypeSQLite, filepath.Join(dir, "sub", "j.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, j)
	assert.NoError(t, j.Close())

	j, err = Open(TypeCSV, filepath.Join(dir, "csv"))
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, j)
	assert.NoError(t, j.Close())

	_, err = Open("mongo", "")
	assert.Error(t, err)
}
