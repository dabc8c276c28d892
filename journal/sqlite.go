package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(r OrderRecord) error {
	r = r.stamped()
	_, err := j.db.Exec(`
		INSERT INTO orders
		(id, time, action, status, symbol, side, volume, price, stop_loss, stop_points, ticket, retcode, magic, comment, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Time, r.Action, r.Status, r.Symbol, r.Side, r.Volume, r.Price,
		r.StopLoss, r.StopPoints, int64(r.Ticket), int64(r.Retcode), int64(r.Magic), r.Comment, r.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, login, currency, balance, equity, margin)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, int64(e.Login), e.Currency, e.Balance, e.Equity, e.Margin,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
