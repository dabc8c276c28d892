package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrNoTick         = errors.New("no tick data")
)

// Terminal is the capability surface of a trading terminal binding.
// Implementations are not required to be safe for concurrent use.
type Terminal interface {
	Initialize(ctx context.Context, profile ConnectionProfile) error
	Shutdown(ctx context.Context) error
	AccountInfo(ctx context.Context) (AccountInfo, error)
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)
	SymbolSelect(ctx context.Context, symbol string, enable bool) error
	SymbolTick(ctx context.Context, symbol string) (Tick, error)
	Positions(ctx context.Context) ([]Position, error)
	OrderSend(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// ConnectionProfile selects a terminal installation and account. Every field
// is optional; the zero value attaches to whatever terminal is running.
type ConnectionProfile struct {
	Path     string `json:"path,omitempty"`
	Login    uint64 `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
	Server   string `json:"server,omitempty"`
}

func (p ConnectionProfile) IsZero() bool {
	return p == ConnectionProfile{}
}

// String never includes the password.
func (p ConnectionProfile) String() string {
	if p.IsZero() {
		return "default"
	}
	return fmt.Sprintf("login=%d server=%q path=%q", p.Login, p.Server, p.Path)
}

type AccountInfo struct {
	Login    uint64  `json:"login"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	Margin   float64 `json:"margin"`
	Server   string  `json:"server"`
}

type SymbolInfo struct {
	Name         string  `json:"name"`
	Visible      bool    `json:"visible"`
	Digits       int     `json:"digits"`
	Point        float64 `json:"point"`
	ContractSize float64 `json:"trade_contract_size"`
	TickValue    float64 `json:"trade_tick_value"`
	StopsLevel   int     `json:"trade_stops_level"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"`
	VolumeStep   float64 `json:"volume_step"`
}

type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

type Position struct {
	Ticket    uint64    `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Type      OrderType `json:"type"`
	Volume    float64   `json:"volume"`
	PriceOpen float64   `json:"price_open"`
	StopLoss  float64   `json:"sl"`
	Magic     uint64    `json:"magic"`
	Comment   string    `json:"comment"`
	Time      time.Time `json:"time"`
}
