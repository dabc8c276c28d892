// Package market resolves an instrument's tradable state before anything
// sizes or sends an order for it.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/riskdesk/logging"
	"github.com/rustyeddy/riskdesk/metrics"
	"github.com/rustyeddy/riskdesk/session"
	"github.com/rustyeddy/riskdesk/terminal"
)

// ErrUnavailable marks a symbol that cannot be traded right now: no symbol
// info, or no tick. It is reported and skipped, never fatal.
var ErrUnavailable = errors.New("symbol unavailable")

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultFreshTimeout = 500 * time.Millisecond
)

type Gate struct {
	sess         *session.Session
	log          *zap.Logger
	metrics      *metrics.Metrics
	PollInterval time.Duration
}

func NewGate(sess *session.Session) *Gate {
	return &Gate{
		sess:         sess,
		log:          logging.OrNop(sess.Logger()),
		metrics:      sess.Metrics(),
		PollInterval: DefaultPollInterval,
	}
}

// ResolveSymbol returns the symbol's info, first adding it to the market
// watch if the terminal has it but it is not visible.
func (g *Gate) ResolveSymbol(ctx context.Context, symbol string) (terminal.SymbolInfo, error) {
	info, err := g.sess.SymbolInfo(ctx, symbol)
	if err != nil {
		return terminal.SymbolInfo{}, g.unavailable(symbol, "no symbol info", err)
	}
	if info.Visible {
		return info, nil
	}

	g.log.Debug("activating symbol", zap.String("symbol", symbol))
	if err := g.sess.SymbolSelect(ctx, symbol, true); err != nil {
		return terminal.SymbolInfo{}, g.unavailable(symbol, "symbol select", err)
	}
	info, err = g.sess.SymbolInfo(ctx, symbol)
	if err != nil {
		return terminal.SymbolInfo{}, g.unavailable(symbol, "no symbol info", err)
	}
	return info, nil
}

// CurrentTick returns the latest tick for symbol.
func (g *Gate) CurrentTick(ctx context.Context, symbol string) (terminal.Tick, error) {
	tick, err := g.sess.SymbolTick(ctx, symbol)
	if err != nil {
		return terminal.Tick{}, g.unavailable(symbol, "no tick data", err)
	}
	return tick, nil
}

// Snapshot resolves symbol and pairs it with its current tick.
func (g *Gate) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	info, err := g.ResolveSymbol(ctx, symbol)
	if err != nil {
		return Snapshot{}, err
	}
	tick, err := g.CurrentTick(ctx, symbol)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(info, tick), nil
}

// WaitFreshTick polls until the symbol's tick is newer than after, or
// timeout elapses. On timeout it returns whatever tick is current.
func (g *Gate) WaitFreshTick(ctx context.Context, symbol string, after time.Time, timeout time.Duration) (terminal.Tick, error) {
	if timeout <= 0 {
		timeout = DefaultFreshTimeout
	}
	interval := g.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tick, err := g.sess.SymbolTick(ctx, symbol)
		if err == nil && tick.Time.After(after) {
			return tick, nil
		}

		select {
		case <-ctx.Done():
			return terminal.Tick{}, ctx.Err()
		case <-deadline.C:
			g.log.Debug("no fresh tick before timeout",
				zap.String("symbol", symbol),
				zap.Duration("timeout", timeout))
			return g.CurrentTick(ctx, symbol)
		case <-ticker.C:
		}
	}
}

// EnforceMinStop applies the broker minimum stop distance, logging and
// counting any adjustment.
func (g *Gate) EnforceMinStop(s Snapshot, requested int) StopDistance {
	d := EnforceMinStopDistance(s, requested)
	if d.Adjusted {
		g.log.Warn("stop distance below broker minimum, adjusted",
			zap.String("symbol", s.Symbol),
			zap.Int("requested", d.Requested),
			zap.Int("effective", d.Effective))
		g.metrics.StopAdjusted(s.Symbol)
	}
	return d
}

func (g *Gate) unavailable(symbol, what string, err error) error {
	if errors.Is(err, session.ErrNotConnected) {
		return err
	}
	g.log.Warn(what, zap.String("symbol", symbol), zap.Error(err))
	return fmt.Errorf("%w: %s: %s: %w", ErrUnavailable, symbol, what, err)
}
