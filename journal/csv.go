package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var (
	orderHeader  = []string{"id", "time", "action", "status", "symbol", "side", "volume", "price", "stop_loss", "stop_points", "ticket", "retcode", "magic", "comment", "reason"}
	equityHeader = []string{"time", "login", "currency", "balance", "equity", "margin"}
)

// CSV appends to two files, writing headers only when a file is new.
type CSV struct {
	orders *csv.Writer
	equity *csv.Writer
	of, ef *os.File
}

func NewCSV(ordersPath, equityPath string) (*CSV, error) {
	of, ow, err := openAppend(ordersPath, orderHeader)
	if err != nil {
		return nil, err
	}
	ef, ew, err := openAppend(equityPath, equityHeader)
	if err != nil {
		_ = of.Close()
		return nil, err
	}
	return &CSV{orders: ow, equity: ew, of: of, ef: ef}, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(fh)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = fh.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = fh.Close()
			return nil, nil, err
		}
	}
	return fh, w, nil
}

func (j *CSV) RecordOrder(r OrderRecord) error {
	r = r.stamped()
	err := j.orders.Write([]string{
		r.ID,
		r.Time.Format(time.RFC3339Nano),
		r.Action,
		r.Status,
		r.Symbol,
		r.Side,
		f(r.Volume),
		f(r.Price),
		f(r.StopLoss),
		strconv.Itoa(r.StopPoints),
		strconv.FormatUint(r.Ticket, 10),
		strconv.FormatUint(uint64(r.Retcode), 10),
		strconv.FormatUint(r.Magic, 10),
		r.Comment,
		r.Reason,
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.UTC().Format(time.RFC3339),
		strconv.FormatUint(e.Login, 10),
		e.Currency,
		f(e.Balance),
		f(e.Equity),
		f(e.Margin),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	j.orders.Flush()
	if err := j.orders.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.of.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
