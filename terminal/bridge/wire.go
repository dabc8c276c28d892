package bridge

import (
	"time"

	"github.com/rustyeddy/riskdesk/terminal"
)

// The sidecar speaks the MetaTrader5 Python package's field names and
// numeric enums: order types are 0/1 and times are epoch milliseconds.

type initRequest struct {
	Path     string `json:"path,omitempty"`
	Login    uint64 `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
	Server   string `json:"server,omitempty"`
}

type selectRequest struct {
	Enable bool `json:"enable"`
}

type wireTick struct {
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	TimeMsc int64   `json:"time_msc"`
}

func (w wireTick) tick(symbol string) terminal.Tick {
	return terminal.Tick{Symbol: symbol, Bid: w.Bid, Ask: w.Ask, Time: time.UnixMilli(w.TimeMsc).UTC()}
}

type wirePosition struct {
	Ticket    uint64  `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      int     `json:"type"`
	Volume    float64 `json:"volume"`
	PriceOpen float64 `json:"price_open"`
	SL        float64 `json:"sl"`
	Magic     uint64  `json:"magic"`
	Comment   string  `json:"comment"`
	TimeMsc   int64   `json:"time_msc"`
}

func (w wirePosition) position() terminal.Position {
	return terminal.Position{
		Ticket:    w.Ticket,
		Symbol:    w.Symbol,
		Type:      terminal.OrderType(w.Type),
		Volume:    w.Volume,
		PriceOpen: w.PriceOpen,
		StopLoss:  w.SL,
		Magic:     w.Magic,
		Comment:   w.Comment,
		Time:      time.UnixMilli(w.TimeMsc).UTC(),
	}
}

type wireOrder struct {
	Action      int     `json:"action"`
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Type        int     `json:"type"`
	Price       float64 `json:"price"`
	Deviation   int     `json:"deviation"`
	SL          float64 `json:"sl,omitempty"`
	Position    uint64  `json:"position,omitempty"`
	Magic       uint64  `json:"magic"`
	Comment     string  `json:"comment"`
	TypeTime    int     `json:"type_time"`
	TypeFilling int     `json:"type_filling"`
}

func toWireOrder(r terminal.OrderRequest) wireOrder {
	return wireOrder{
		Action:      int(r.Action),
		Symbol:      r.Symbol,
		Volume:      r.Volume,
		Type:        int(r.Type),
		Price:       r.Price,
		Deviation:   r.Deviation,
		SL:          r.StopLoss,
		Position:    r.Position,
		Magic:       r.Magic,
		Comment:     r.Comment,
		TypeTime:    int(r.TypeTime),
		TypeFilling: int(r.TypeFilling),
	}
}

type wireResult struct {
	Retcode uint32  `json:"retcode"`
	Deal    uint64  `json:"deal"`
	Order   uint64  `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Comment string  `json:"comment"`
}

// errorBody is what the sidecar returns on non-2xx: the terminal's
// last_error pair when there is one.
type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
