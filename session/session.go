// Package session owns the connection to the trading terminal. A Session is
// the explicit handle every market, sizing and execution call goes through.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"

	"github.com/rustyeddy/riskdesk/logging"
	"github.com/rustyeddy/riskdesk/metrics"
	"github.com/rustyeddy/riskdesk/terminal"
)

var (
	// ErrConnect is fatal: nothing else can run without a terminal.
	ErrConnect      = errors.New("terminal connection failed")
	ErrNotConnected = errors.New("session not connected")
)

const (
	DefaultMaxAttempts = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultSettleDelay = 200 * time.Millisecond
)

type Options struct {
	MaxAttempts int           // values below 1 mean 1
	RetryDelay  time.Duration // wait between failed attempts
	SettleDelay time.Duration // wait after a successful initialize, before the ping
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
		SettleDelay: DefaultSettleDelay,
	}
}

// Session serializes access to a Terminal; bindings are not safe for
// concurrent use.
type Session struct {
	mu        sync.Mutex
	term      terminal.Terminal
	profile   terminal.ConnectionProfile
	log       *zap.Logger
	metrics   *metrics.Metrics
	connected bool
	account   terminal.AccountInfo
}

// Connect initializes term with profile, retrying up to opts.MaxAttempts
// times. The returned error wraps ErrConnect and the terminal's last error.
func Connect(ctx context.Context, term terminal.Terminal, profile terminal.ConnectionProfile, opts Options) (*Session, error) {
	log := logging.OrNop(opts.Logger)
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	builder := retrypolicy.NewBuilder[any]().
		WithMaxAttempts(attempts).
		ReturnLastFailure()
	if opts.RetryDelay > 0 {
		builder = builder.WithDelay(opts.RetryDelay)
	}

	attempt := 0
	err := failsafe.With[any](builder.Build()).WithContext(ctx).Run(func() error {
		attempt++
		err := term.Initialize(ctx, profile)
		opts.Metrics.ConnectAttempt(err == nil)
		if err != nil {
			log.Warn("initialize failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrConnect, attempt, err)
	}

	if opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			_ = term.Shutdown(context.Background())
			return nil, fmt.Errorf("%w: %w", ErrConnect, ctx.Err())
		case <-time.After(opts.SettleDelay):
		}
	}

	acct, err := term.AccountInfo(ctx)
	if err != nil {
		_ = term.Shutdown(context.Background())
		return nil, fmt.Errorf("%w: account ping: %w", ErrConnect, err)
	}

	log.Info("terminal connected",
		zap.Stringer("profile", profile),
		zap.Uint64("login", acct.Login),
		zap.String("server", acct.Server),
		zap.Int("attempts", attempt))

	return &Session{
		term:      term,
		profile:   profile,
		log:       log,
		metrics:   opts.Metrics,
		connected: true,
		account:   acct,
	}, nil
}

// Disconnect shuts the terminal down if the session is connected. Calling it
// again is a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.term.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("terminal disconnected")
	return nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Logger() *zap.Logger { return s.log }

func (s *Session) Metrics() *metrics.Metrics { return s.metrics }

// Account returns the account info observed by the connect ping.
func (s *Session) Account() terminal.AccountInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

func (s *Session) do(fn func(terminal.Terminal) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	return fn(s.term)
}

func (s *Session) AccountInfo(ctx context.Context) (acct terminal.AccountInfo, err error) {
	err = s.do(func(t terminal.Terminal) error {
		acct, err = t.AccountInfo(ctx)
		return err
	})
	return
}

func (s *Session) SymbolInfo(ctx context.Context, symbol string) (info terminal.SymbolInfo, err error) {
	err = s.do(func(t terminal.Terminal) error {
		info, err = t.SymbolInfo(ctx, symbol)
		return err
	})
	return
}

func (s *Session) SymbolSelect(ctx context.Context, symbol string, enable bool) error {
	return s.do(func(t terminal.Terminal) error {
		return t.SymbolSelect(ctx, symbol, enable)
	})
}

func (s *Session) SymbolTick(ctx context.Context, symbol string) (tick terminal.Tick, err error) {
	err = s.do(func(t terminal.Terminal) error {
		tick, err = t.SymbolTick(ctx, symbol)
		return err
	})
	return
}

func (s *Session) Positions(ctx context.Context) (positions []terminal.Position, err error) {
	err = s.do(func(t terminal.Terminal) error {
		positions, err = t.Positions(ctx)
		return err
	})
	return
}

func (s *Session) OrderSend(ctx context.Context, req terminal.OrderRequest) (res terminal.OrderResult, err error) {
	err = s.do(func(t terminal.Terminal) error {
		res, err = t.OrderSend(ctx, req)
		return err
	})
	return
}
