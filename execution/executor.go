// Package execution builds, sends and classifies market orders against a
// connected session.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/riskdesk/journal"
	"github.com/rustyeddy/riskdesk/logging"
	"github.com/rustyeddy/riskdesk/market"
	"github.com/rustyeddy/riskdesk/metrics"
	"github.com/rustyeddy/riskdesk/risk"
	"github.com/rustyeddy/riskdesk/session"
	"github.com/rustyeddy/riskdesk/terminal"
)

const (
	DefaultMagic     uint64 = 123456
	DefaultDeviation        = 250

	CommentOpen      = "AutoTrade"
	CommentCloseHalf = "PartialClose50"
	CommentCloseAll  = "CloseAllScript"
)

type Options struct {
	Magic     uint64
	Deviation int

	// FreshTickTimeout bounds how long OpenSized waits for a tick newer than
	// the one used for sizing. Zero sends immediately.
	FreshTickTimeout time.Duration

	Journal journal.Journal
}

type Executor struct {
	sess    *session.Session
	gate    *market.Gate
	log     *zap.Logger
	metrics *metrics.Metrics
	journal journal.Journal

	Magic            uint64
	Deviation        int
	FreshTickTimeout time.Duration
}

func New(sess *session.Session, gate *market.Gate, opts Options) *Executor {
	x := &Executor{
		sess:             sess,
		gate:             gate,
		log:              logging.OrNop(sess.Logger()),
		metrics:          sess.Metrics(),
		journal:          opts.Journal,
		Magic:            opts.Magic,
		Deviation:        opts.Deviation,
		FreshTickTimeout: opts.FreshTickTimeout,
	}
	if x.Magic == 0 {
		x.Magic = DefaultMagic
	}
	if x.Deviation <= 0 {
		x.Deviation = DefaultDeviation
	}
	if x.journal == nil {
		x.journal = journal.Nop{}
	}
	return x
}

// OpenMarketOrder sends a market order with a protective stop stopPoints
// away from the fill price. The stop is raised to the broker minimum using a
// fresh snapshot taken here, not the one used for sizing.
func (x *Executor) OpenMarketOrder(ctx context.Context, symbol string, side terminal.OrderType, volume float64, stopPoints int, comment string) Outcome {
	return x.record(x.openMarket(ctx, symbol, side, volume, stopPoints, comment))
}

// OpenSized places an order the Sizer approved. When FreshTickTimeout is set
// it first waits for a tick newer than the one the size was computed from.
// A stop raised at sizing time stays marked as adjusted on the outcome.
func (x *Executor) OpenSized(ctx context.Context, o risk.SizedOrder, comment string) Outcome {
	if x.FreshTickTimeout > 0 {
		if _, err := x.gate.WaitFreshTick(ctx, o.Symbol, o.TickTime, x.FreshTickTimeout); err != nil {
			x.log.Debug("fresh tick wait failed", zap.String("symbol", o.Symbol), zap.Error(err))
		}
	}

	out := x.openMarket(ctx, o.Symbol, o.Side, o.Volume, o.StopPoints(), comment)
	if o.Stop.Adjusted {
		out.Stop.Requested = o.Stop.Requested
		out.Stop.Adjusted = true
		if out.Stop.Minimum < o.Stop.Minimum {
			out.Stop.Minimum = o.Stop.Minimum
		}
	}
	return x.record(out)
}

func (x *Executor) openMarket(ctx context.Context, symbol string, side terminal.OrderType, volume float64, stopPoints int, comment string) Outcome {
	if comment == "" {
		comment = CommentOpen
	}
	out := Outcome{Action: ActionOpen, Symbol: symbol, Side: side, Volume: volume, Comment: comment}

	if volume <= 0 || stopPoints <= 0 {
		out.Status = StatusSkipped
		out.Reason = fmt.Sprintf("volume %g and stop %d points must be positive", volume, stopPoints)
		return out
	}

	snap, err := x.gate.Snapshot(ctx, symbol)
	if err != nil {
		return x.notSent(out, err)
	}
	if err := snap.Usable(); err != nil {
		out.Status = StatusSkipped
		out.Reason = err.Error()
		return out
	}

	out.Stop = x.gate.EnforceMinStop(snap, stopPoints)
	out.Price = snap.EntryPrice(side)
	out.StopLoss = snap.StopPrice(side, out.Price, out.Stop.Effective)

	req := x.request(symbol, side, volume, out.Price, comment)
	req.StopLoss = out.StopLoss

	return x.send(ctx, out, req)
}

// CloseHalfPosition closes half of p, floored to the symbol's volume step. A
// half below the minimum volume is skipped and nothing is sent.
func (x *Executor) CloseHalfPosition(ctx context.Context, p terminal.Position) Outcome {
	out := Outcome{Action: ActionCloseHalf, Symbol: p.Symbol, Side: p.Type.Opposite(), Ticket: p.Ticket, Comment: CommentCloseHalf}

	info, err := x.gate.ResolveSymbol(ctx, p.Symbol)
	if err != nil {
		return x.record(x.notSent(out, err))
	}

	if info.VolumeStep <= 0 {
		out.Status = StatusSkipped
		out.Reason = fmt.Sprintf("%s: volume step %g must be positive", p.Symbol, info.VolumeStep)
		return x.record(out)
	}

	half := risk.FloorToStep(p.Volume/2, info.VolumeStep)
	out.Volume = half
	if half <= 0 || half < info.VolumeMin {
		out.Status = StatusSkipped
		out.Reason = fmt.Sprintf("half volume %g of %g is below minimum %g", half, p.Volume, info.VolumeMin)
		return x.record(out)
	}

	tick, err := x.gate.CurrentTick(ctx, p.Symbol)
	if err != nil {
		return x.record(x.notSent(out, err))
	}
	return x.record(x.closePosition(ctx, out, p, half, tick))
}

// CloseAllPositions closes every open position at full volume. A position
// whose symbol has no tick is reported unavailable and the rest still close.
func (x *Executor) CloseAllPositions(ctx context.Context) ([]Outcome, error) {
	positions, err := x.positions(ctx)
	if err != nil {
		return nil, err
	}

	outs := make([]Outcome, 0, len(positions))
	for _, p := range positions {
		out := Outcome{Action: ActionClose, Symbol: p.Symbol, Side: p.Type.Opposite(), Volume: p.Volume, Ticket: p.Ticket, Comment: CommentCloseAll}

		tick, err := x.gate.CurrentTick(ctx, p.Symbol)
		if err != nil {
			outs = append(outs, x.record(x.notSent(out, err)))
			continue
		}
		outs = append(outs, x.record(x.closePosition(ctx, out, p, p.Volume, tick)))
	}
	return outs, nil
}

// CloseHalfAll closes half of every open position.
func (x *Executor) CloseHalfAll(ctx context.Context) ([]Outcome, error) {
	positions, err := x.positions(ctx)
	if err != nil {
		return nil, err
	}

	outs := make([]Outcome, 0, len(positions))
	for _, p := range positions {
		outs = append(outs, x.CloseHalfPosition(ctx, p))
	}
	return outs, nil
}

// Leg is one symbol of a basket.
type Leg struct {
	Symbol     string
	Side       terminal.OrderType
	StopPoints int
}

// RunBasket sizes and opens each leg at riskPercent. Legs the sizer refuses
// are reported and skipped; the rest are still placed.
func (x *Executor) RunBasket(ctx context.Context, sizer *risk.Sizer, legs []Leg, riskPercent float64, comment string) []Outcome {
	outs := make([]Outcome, 0, len(legs))
	for _, leg := range legs {
		d := sizer.Size(ctx, risk.Request{
			Symbol:      leg.Symbol,
			Side:        leg.Side,
			StopPoints:  leg.StopPoints,
			RiskPercent: riskPercent,
		})
		if !d.Trade {
			out := Outcome{Action: ActionOpen, Symbol: leg.Symbol, Side: leg.Side, Comment: comment,
				Status: StatusSkipped, Reason: fmt.Sprintf("%s: %s", d.Skip, d.Reason)}
			if d.Skip == risk.CodeNoSymbol || d.Skip == risk.CodeNoTick {
				out.Status = StatusUnavailable
			}
			outs = append(outs, x.record(out))
			continue
		}
		outs = append(outs, x.OpenSized(ctx, d.Order, comment))
	}
	return outs
}

func (x *Executor) positions(ctx context.Context) ([]terminal.Position, error) {
	positions, err := x.sess.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	if len(positions) == 0 {
		x.log.Info("no open positions")
	}
	return positions, nil
}

func (x *Executor) closePosition(ctx context.Context, out Outcome, p terminal.Position, volume float64, tick terminal.Tick) Outcome {
	// Longs close against the bid, shorts against the ask.
	price := tick.Bid
	if p.Type == terminal.OrderSell {
		price = tick.Ask
	}
	out.Price = price
	out.Volume = volume

	req := x.request(p.Symbol, p.Type.Opposite(), volume, price, out.Comment)
	req.Position = p.Ticket

	out = x.send(ctx, out, req)
	out.Ticket = p.Ticket
	return out
}

func (x *Executor) request(symbol string, side terminal.OrderType, volume, price float64, comment string) terminal.OrderRequest {
	return terminal.OrderRequest{
		Action:      terminal.ActionDeal,
		Symbol:      symbol,
		Volume:      volume,
		Type:        side,
		Price:       price,
		Deviation:   x.Deviation,
		Magic:       x.Magic,
		Comment:     comment,
		TypeTime:    terminal.OrderTimeGTC,
		TypeFilling: terminal.FillingIOC,
	}
}

func (x *Executor) send(ctx context.Context, out Outcome, req terminal.OrderRequest) Outcome {
	res, err := x.sess.OrderSend(ctx, req)
	if err != nil {
		out.Status = StatusFailed
		out.Reason = err.Error()
		return out
	}

	out.Result = &res
	out.Retcode = res.Retcode
	if !res.Done() {
		out.Status = StatusRejected
		out.Reason = fmt.Sprintf("retcode %d (%s): %s", res.Retcode, terminal.RetcodeName(res.Retcode), res.Comment)
		return out
	}

	out.Status = StatusFilled
	if res.Price != 0 {
		out.Price = res.Price
	}
	if req.Position == 0 {
		out.Ticket = res.Order
	}
	return out
}

func (x *Executor) notSent(out Outcome, err error) Outcome {
	out.Reason = err.Error()
	out.Status = StatusUnavailable
	if errors.Is(err, session.ErrNotConnected) || !errors.Is(err, market.ErrUnavailable) {
		out.Status = StatusFailed
	}
	return out
}

func (x *Executor) record(out Outcome) Outcome {
	x.metrics.Order(out.Action, string(out.Status))

	fields := []zap.Field{
		zap.String("action", out.Action),
		zap.String("status", string(out.Status)),
		zap.String("symbol", out.Symbol),
		zap.Stringer("side", out.Side),
		zap.Float64("volume", out.Volume),
	}
	reason := out.Reason
	if out.Stop.Adjusted {
		fields = append(fields,
			zap.Int("stop_requested", out.Stop.Requested),
			zap.Int("stop_effective", out.Stop.Effective))
		raised := fmt.Sprintf("stop raised from %d to %d points", out.Stop.Requested, out.Stop.Effective)
		if reason == "" {
			reason = raised
		} else {
			reason += "; " + raised
		}
	}
	switch out.Status {
	case StatusFilled:
		x.log.Info("order filled", append(fields,
			zap.Float64("price", out.Price),
			zap.Float64("sl", out.StopLoss),
			zap.Uint64("ticket", out.Ticket))...)
	case StatusRejected:
		x.log.Warn("order rejected", append(fields,
			zap.Uint32("retcode", out.Retcode),
			zap.String("reason", out.Reason))...)
	default:
		x.log.Warn("order not sent", append(fields, zap.String("reason", out.Reason))...)
	}

	err := x.journal.RecordOrder(journal.OrderRecord{
		Action:     out.Action,
		Status:     string(out.Status),
		Symbol:     out.Symbol,
		Side:       out.Side.String(),
		Volume:     out.Volume,
		Price:      out.Price,
		StopLoss:   out.StopLoss,
		StopPoints: out.Stop.Effective,
		Ticket:     out.Ticket,
		Retcode:    out.Retcode,
		Magic:      x.Magic,
		Comment:    out.Comment,
		Reason:     reason,
	})
	if err != nil {
		x.log.Warn("journal write failed", zap.Error(err))
	}
	return out
}
