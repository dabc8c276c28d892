package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/riskdesk/config"
	"github.com/rustyeddy/riskdesk/execution"
	"github.com/rustyeddy/riskdesk/journal"
	"github.com/rustyeddy/riskdesk/logging"
	"github.com/rustyeddy/riskdesk/market"
	"github.com/rustyeddy/riskdesk/metrics"
	"github.com/rustyeddy/riskdesk/risk"
	"github.com/rustyeddy/riskdesk/session"
	"github.com/rustyeddy/riskdesk/terminal"
	"github.com/rustyeddy/riskdesk/terminal/bridge"
	"github.com/rustyeddy/riskdesk/terminal/sim"
)

// app is everything a trading command needs, connected.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	journal journal.Journal
	sess    *session.Session
	gate    *market.Gate
	sizer   *risk.Sizer
	exec    *execution.Executor
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if terminalKind != "" {
		cfg.Terminal.Kind = terminalKind
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp loads config and connects. A connection failure is returned
// wrapped in session.ErrConnect and ends the command with exit status 1.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	term := newTerminal(cfg, log)
	log.Info("connecting",
		zap.String("terminal", cfg.Terminal.Kind),
		zap.Stringer("profile", cfg.Profile()))

	sess, err := session.Connect(ctx, term, cfg.Profile(), session.Options{
		MaxAttempts: cfg.Terminal.MaxAttempts,
		RetryDelay:  cfg.Terminal.RetryDelay.Std(),
		SettleDelay: cfg.Terminal.SettleDelay.Std(),
		Logger:      log,
		Metrics:     m,
	})
	if err != nil {
		log.Error("connection failed", zap.Error(err))
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Warn("metrics textfile", zap.Error(werr))
		}
		_ = j.Close()
		_ = log.Sync()
		return nil, err
	}

	gate := market.NewGate(sess)
	sizer := risk.NewSizer(sess, gate)
	sizer.MaxRiskPercent = cfg.Risk.MaxPercent
	sizer.StrictMinVolume = cfg.Risk.StrictMinVolume

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		journal: j,
		sess:    sess,
		gate:    gate,
		sizer:   sizer,
		exec: execution.New(sess, gate, execution.Options{
			Magic:            cfg.Execution.Magic,
			Deviation:        cfg.Execution.Deviation,
			FreshTickTimeout: cfg.Execution.FreshTickTimeout.Std(),
			Journal:          j,
		}),
	}, nil
}

func newTerminal(cfg *config.Config, log *zap.Logger) terminal.Terminal {
	if cfg.Terminal.Kind == config.TerminalBridge {
		opts := []bridge.Option{bridge.WithLogger(log)}
		if cfg.Terminal.RateLimit > 0 {
			opts = append(opts, bridge.WithRateLimit(rate.Limit(cfg.Terminal.RateLimit), 5))
		}
		return bridge.New(cfg.Terminal.BridgeURL, opts...)
	}

	e := sim.NewEngine(terminal.AccountInfo{
		Login:    cfg.Sim.Login,
		Currency: cfg.Sim.Currency,
		Balance:  cfg.Sim.Balance,
		Equity:   cfg.Sim.Balance,
		Server:   "riskdesk-sim",
	})
	now := time.Now()
	for _, s := range cfg.Sim.Symbols {
		e.AddSymbol(s.Info())
		if s.Bid > 0 && s.Ask > 0 {
			e.SetTick(terminal.Tick{Symbol: s.Name, Bid: s.Bid, Ask: s.Ask, Time: now})
		}
	}
	return e
}

// Close journals an equity snapshot, disconnects and flushes metrics.
func (a *app) Close(ctx context.Context) {
	if acct, err := a.sess.AccountInfo(ctx); err == nil {
		if err := a.journal.RecordEquity(journal.EquitySnapshot{
			Time:     time.Now().UTC(),
			Login:    acct.Login,
			Currency: acct.Currency,
			Balance:  acct.Balance,
			Equity:   acct.Equity,
			Margin:   acct.Margin,
		}); err != nil {
			a.log.Warn("journal equity", zap.Error(err))
		}
	}
	if err := a.sess.Disconnect(ctx); err != nil {
		a.log.Warn("disconnect", zap.Error(err))
	}
	if err := a.journal.Close(); err != nil {
		a.log.Warn("journal close", zap.Error(err))
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn("metrics textfile", zap.Error(err))
	}
	_ = a.log.Sync()
}
