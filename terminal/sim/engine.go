package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/riskdesk/terminal"
)

var (
	ErrNotInitialized = errors.New("terminal not initialized")
	ErrInitFailed     = errors.New("(-10005, 'IPC timeout')")
)

// Engine is an in-memory trading terminal. Market deals fill immediately at
// the current tick: buys at ask, sells at bid.
type Engine struct {
	mu sync.Mutex

	acct      terminal.AccountInfo
	symbols   map[string]terminal.SymbolInfo
	ticks     map[string]terminal.Tick
	positions map[uint64]*terminal.Position
	nextID    uint64

	initialized  bool
	initCalls    int
	initFailures int
	initErr      error

	rejectNext uint32
	requests   []terminal.OrderRequest
}

var _ terminal.Terminal = (*Engine)(nil)

func NewEngine(acct terminal.AccountInfo) *Engine {
	if acct.Equity == 0 {
		acct.Equity = acct.Balance
	}
	return &Engine{
		acct:      acct,
		symbols:   make(map[string]terminal.SymbolInfo),
		ticks:     make(map[string]terminal.Tick),
		positions: make(map[uint64]*terminal.Position),
		nextID:    1000,
		initErr:   ErrInitFailed,
	}
}

// AddSymbol registers or replaces an instrument.
func (e *Engine) AddSymbol(info terminal.SymbolInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols[info.Name] = info
}

// SetTick stores a tick without evaluating stops.
func (e *Engine) SetTick(t terminal.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.Time.IsZero() {
		t.Time = time.Now()
	}
	e.ticks[t.Symbol] = t
}

// ClearTick removes the tick for symbol, as if the market were closed.
func (e *Engine) ClearTick(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ticks, symbol)
}

// FailInitialize makes the next n Initialize calls fail with err.
// A nil err keeps the default IPC timeout error.
func (e *Engine) FailInitialize(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initFailures = e.initCalls + n
	if err != nil {
		e.initErr = err
	}
}

// RejectNext makes the next OrderSend return code instead of executing.
func (e *Engine) RejectNext(code uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejectNext = code
}

func (e *Engine) InitializeCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCalls
}

func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Requests returns every request passed to OrderSend, in order.
func (e *Engine) Requests() []terminal.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]terminal.OrderRequest, len(e.requests))
	copy(out, e.requests)
	return out
}

// OpenPosition inserts a position directly, bypassing OrderSend.
func (e *Engine) OpenPosition(p terminal.Position) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Ticket == 0 {
		p.Ticket = e.newIDLocked()
	}
	if p.Time.IsZero() {
		p.Time = time.Now()
	}
	e.positions[p.Ticket] = &p
	return p.Ticket
}

func (e *Engine) Initialize(ctx context.Context, profile terminal.ConnectionProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.initCalls++
	if e.initCalls <= e.initFailures {
		return fmt.Errorf("initialize: %w", e.initErr)
	}
	if profile.Login != 0 && e.acct.Login != 0 && profile.Login != e.acct.Login {
		return fmt.Errorf("initialize: authorization failed for login %d", profile.Login)
	}
	if e.acct.Login == 0 {
		e.acct.Login = profile.Login
	}
	if profile.Server != "" {
		e.acct.Server = profile.Server
	}
	e.initialized = true
	return nil
}

func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = false
	return nil
}

func (e *Engine) AccountInfo(ctx context.Context) (terminal.AccountInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return terminal.AccountInfo{}, ErrNotInitialized
	}
	e.revalueLocked()
	return e.acct, nil
}

func (e *Engine) SymbolInfo(ctx context.Context, symbol string) (terminal.SymbolInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return terminal.SymbolInfo{}, ErrNotInitialized
	}
	info, ok := e.symbols[symbol]
	if !ok {
		return terminal.SymbolInfo{}, fmt.Errorf("%w: %q", terminal.ErrSymbolNotFound, symbol)
	}
	return info, nil
}

func (e *Engine) SymbolSelect(ctx context.Context, symbol string, enable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	info, ok := e.symbols[symbol]
	if !ok {
		return fmt.Errorf("%w: %q", terminal.ErrSymbolNotFound, symbol)
	}
	info.Visible = enable
	e.symbols[symbol] = info
	return nil
}

// SymbolTick only reports ticks for symbols in the market watch.
func (e *Engine) SymbolTick(ctx context.Context, symbol string) (terminal.Tick, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return terminal.Tick{}, ErrNotInitialized
	}
	info, ok := e.symbols[symbol]
	if !ok {
		return terminal.Tick{}, fmt.Errorf("%w: %q", terminal.ErrSymbolNotFound, symbol)
	}
	t, ok := e.ticks[symbol]
	if !ok || !info.Visible {
		return terminal.Tick{}, fmt.Errorf("%w: %q", terminal.ErrNoTick, symbol)
	}
	return t, nil
}

func (e *Engine) Positions(ctx context.Context) ([]terminal.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]terminal.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (e *Engine) OrderSend(ctx context.Context, req terminal.OrderRequest) (terminal.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return terminal.OrderResult{}, ErrNotInitialized
	}

	e.requests = append(e.requests, req)
	res := terminal.OrderResult{Request: req}

	if e.rejectNext != 0 {
		res.Retcode = e.rejectNext
		res.Comment = "rejected by simulator"
		e.rejectNext = 0
		return res, nil
	}

	info, ok := e.symbols[req.Symbol]
	if !ok || req.Action != terminal.ActionDeal {
		res.Retcode = terminal.RetcodeInvalid
		res.Comment = "invalid request"
		return res, nil
	}
	if req.TypeFilling != terminal.FillingIOC && req.TypeFilling != terminal.FillingFOK {
		res.Retcode = terminal.RetcodeInvalidFill
		res.Comment = "unsupported filling mode"
		return res, nil
	}
	tick, ok := e.ticks[req.Symbol]
	if !ok {
		res.Retcode = terminal.RetcodeMarketClosed
		res.Comment = "market closed"
		return res, nil
	}
	res.Bid, res.Ask = tick.Bid, tick.Ask

	if !validVolume(info, req.Volume) {
		res.Retcode = terminal.RetcodeInvalidVolume
		res.Comment = "invalid volume"
		return res, nil
	}

	price := tick.Ask
	if req.Type == terminal.OrderSell {
		price = tick.Bid
	}
	if math.Abs(price-req.Price) > float64(req.Deviation)*info.Point+1e-12 {
		res.Retcode = terminal.RetcodeRequote
		res.Comment = "requote"
		return res, nil
	}

	if req.Position != 0 {
		return e.closeLocked(info, req, price, res)
	}
	return e.openLocked(info, req, tick, price, res)
}

func (e *Engine) openLocked(info terminal.SymbolInfo, req terminal.OrderRequest, tick terminal.Tick, price float64, res terminal.OrderResult) (terminal.OrderResult, error) {
	if req.StopLoss != 0 {
		minDist := float64(info.StopsLevel) * info.Point
		var dist float64
		if req.Type == terminal.OrderBuy {
			dist = price - req.StopLoss
		} else {
			dist = req.StopLoss - price
		}
		if dist <= 0 || dist+1e-9 < minDist {
			res.Retcode = terminal.RetcodeInvalidStops
			res.Comment = "invalid stops"
			return res, nil
		}
	}

	ticket := e.newIDLocked()
	e.positions[ticket] = &terminal.Position{
		Ticket:    ticket,
		Symbol:    req.Symbol,
		Type:      req.Type,
		Volume:    req.Volume,
		PriceOpen: price,
		StopLoss:  req.StopLoss,
		Magic:     req.Magic,
		Comment:   req.Comment,
		Time:      tick.Time,
	}

	res.Retcode = terminal.RetcodeDone
	res.Deal = e.newIDLocked()
	res.Order = ticket
	res.Volume = req.Volume
	res.Price = price
	res.Comment = "Request executed"
	return res, nil
}

func (e *Engine) closeLocked(info terminal.SymbolInfo, req terminal.OrderRequest, price float64, res terminal.OrderResult) (terminal.OrderResult, error) {
	p, ok := e.positions[req.Position]
	if !ok {
		res.Retcode = terminal.RetcodePositionGone
		res.Comment = "position not found"
		return res, nil
	}
	if p.Symbol != req.Symbol || req.Type != p.Type.Opposite() {
		res.Retcode = terminal.RetcodeInvalid
		res.Comment = "close side does not match position"
		return res, nil
	}
	if req.Volume > p.Volume+1e-9 {
		res.Retcode = terminal.RetcodeInvalidVolume
		res.Comment = "volume exceeds position"
		return res, nil
	}

	e.realizeLocked(info, p, price, req.Volume)

	res.Retcode = terminal.RetcodeDone
	res.Deal = e.newIDLocked()
	res.Order = e.newIDLocked()
	res.Volume = req.Volume
	res.Price = price
	res.Comment = "Request executed"
	return res, nil
}

// UpdateTick stores t and closes every position on t.Symbol whose stop loss
// was crossed. Longs are marked on bid, shorts on ask. It returns the
// tickets that were stopped out.
func (e *Engine) UpdateTick(t terminal.Tick) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.Time.IsZero() {
		t.Time = time.Now()
	}
	e.ticks[t.Symbol] = t
	info := e.symbols[t.Symbol]

	var stopped []uint64
	for _, p := range e.positions {
		if p.Symbol != t.Symbol || p.StopLoss == 0 {
			continue
		}
		mark := markPrice(p, t)
		if hitStopLoss(p, mark) {
			stopped = append(stopped, p.Ticket)
		}
	}
	sort.Slice(stopped, func(i, j int) bool { return stopped[i] < stopped[j] })

	for _, ticket := range stopped {
		p := e.positions[ticket]
		e.realizeLocked(info, p, markPrice(p, t), p.Volume)
	}
	e.revalueLocked()
	return stopped
}

func (e *Engine) realizeLocked(info terminal.SymbolInfo, p *terminal.Position, closePrice, volume float64) {
	e.acct.Balance += PL(info, *p, closePrice, volume)

	remaining := decimal.NewFromFloat(p.Volume).Sub(decimal.NewFromFloat(volume))
	if !remaining.IsPositive() {
		delete(e.positions, p.Ticket)
	} else {
		p.Volume = remaining.InexactFloat64()
	}
	e.revalueLocked()
}

func (e *Engine) revalueLocked() {
	equity := e.acct.Balance
	for _, p := range e.positions {
		t, ok := e.ticks[p.Symbol]
		if !ok {
			continue
		}
		equity += PL(e.symbols[p.Symbol], *p, markPrice(p, t), p.Volume)
	}
	e.acct.Equity = equity
}

func (e *Engine) newIDLocked() uint64 {
	e.nextID++
	return e.nextID
}

func markPrice(p *terminal.Position, t terminal.Tick) float64 {
	if p.Type == terminal.OrderBuy {
		return t.Bid
	}
	return t.Ask
}

func hitStopLoss(p *terminal.Position, mark float64) bool {
	if p.Type == terminal.OrderBuy {
		return mark <= p.StopLoss
	}
	return mark >= p.StopLoss
}

func validVolume(info terminal.SymbolInfo, v float64) bool {
	if v <= 0 || v+1e-9 < info.VolumeMin || (info.VolumeMax > 0 && v > info.VolumeMax+1e-9) {
		return false
	}
	if info.VolumeStep <= 0 {
		return true
	}
	return decimal.NewFromFloat(v).Mod(decimal.NewFromFloat(info.VolumeStep)).IsZero()
}
