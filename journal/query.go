package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrOrderNotFound = errors.New("order record not found")

const orderColumns = `id, time, action, status, symbol, side, volume, price, stop_loss, stop_points, ticket, retcode, magic, comment, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (OrderRecord, error) {
	var (
		rec                    OrderRecord
		ticket, retcode, magic int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.Time,
		&rec.Action,
		&rec.Status,
		&rec.Symbol,
		&rec.Side,
		&rec.Volume,
		&rec.Price,
		&rec.StopLoss,
		&rec.StopPoints,
		&ticket,
		&retcode,
		&magic,
		&rec.Comment,
		&rec.Reason,
	)
	rec.Ticket, rec.Retcode, rec.Magic = uint64(ticket), uint32(retcode), uint64(magic)
	return rec, err
}

// GetOrder returns a single order record by ID.
func (j *SQLite) GetOrder(ctx context.Context, id string) (OrderRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	rec, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrderRecord{}, fmt.Errorf("%w: %q", ErrOrderNotFound, id)
		}
		return OrderRecord{}, err
	}
	return rec, nil
}

// ListOrders returns the most recent limit order records, newest first.
// A limit <= 0 returns everything.
func (j *SQLite) ListOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	q := `SELECT ` + orderColumns + ` FROM orders ORDER BY time DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return j.queryOrders(ctx, q, args...)
}

// ListOrdersBetween returns records with time in [start, end), oldest first.
func (j *SQLite) ListOrdersBetween(ctx context.Context, start, end time.Time) ([]OrderRecord, error) {
	return j.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, start, end)
}

func (j *SQLite) queryOrders(ctx context.Context, q string, args ...any) ([]OrderRecord, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary counts records per status.
func (j *SQLite) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
