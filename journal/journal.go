// Package journal is an append-only audit trail of order outcomes and
// account snapshots. Nothing in the engine reads it back.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rustyeddy/riskdesk/id"
)

// OrderRecord is one order attempt and its result, whether filled, rejected
// or skipped.
type OrderRecord struct {
	ID         string
	Time       time.Time
	Action     string // open, close_half, close
	Status     string // filled, rejected, skipped, unavailable, failed
	Symbol     string
	Side       string
	Volume     float64
	Price      float64
	StopLoss   float64
	StopPoints int
	Ticket     uint64
	Retcode    uint32
	Magic      uint64
	Comment    string
	Reason     string
}

// stamped fills in ID and Time when the caller left them empty.
func (r OrderRecord) stamped() OrderRecord {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	r.Time = r.Time.UTC()
	if r.ID == "" {
		r.ID = id.At(r.Time)
	}
	return r
}

type EquitySnapshot struct {
	Time     time.Time
	Login    uint64
	Currency string
	Balance  float64
	Equity   float64
	Margin   float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

const (
	TypeNone   = "none"
	TypeCSV    = "csv"
	TypeSQLite = "sqlite"
)

// Open returns the journal for kind. For csv, path is a directory that
// receives orders.csv and equity.csv; for sqlite it is the database file.
func Open(kind, path string) (Journal, error) {
	switch kind {
	case "", TypeNone:
		return Nop{}, nil
	case TypeCSV:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
		return NewCSV(filepath.Join(path, "orders.csv"), filepath.Join(path, "equity.csv"))
	case TypeSQLite:
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("journal dir: %w", err)
			}
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal type %q", kind)
	}
}
