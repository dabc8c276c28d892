package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/riskdesk/logging"
	"github.com/rustyeddy/riskdesk/market"
	"github.com/rustyeddy/riskdesk/metrics"
	"github.com/rustyeddy/riskdesk/session"
)

// Sizer turns a Request into a broker-legal volume using the session's
// account balance and a fresh instrument snapshot.
type Sizer struct {
	sess    *session.Session
	gate    *market.Gate
	log     *zap.Logger
	metrics *metrics.Metrics

	// MaxRiskPercent caps Request.RiskPercent; 0 disables the cap.
	MaxRiskPercent  float64
	StrictMinVolume bool
}

func NewSizer(sess *session.Session, gate *market.Gate) *Sizer {
	return &Sizer{
		sess:    sess,
		gate:    gate,
		log:     logging.OrNop(sess.Logger()),
		metrics: sess.Metrics(),
	}
}

// Size never returns an error: every failure is a no-trade Decision so a
// caller looping over symbols can skip and continue.
func (s *Sizer) Size(ctx context.Context, req Request) Decision {
	d := s.size(ctx, req)
	if d.Trade {
		s.metrics.Sizing("trade")
		s.log.Info("position sized",
			zap.String("symbol", req.Symbol),
			zap.Stringer("side", req.Side),
			zap.Float64("volume", d.Order.Volume),
			zap.Float64("raw_volume", d.Order.RawVolume),
			zap.Float64("risk_amount", d.Order.RiskAmount),
			zap.Int("stop_points", d.Order.StopPoints()))
		return d
	}
	s.metrics.Sizing(string(d.Skip))
	s.log.Warn("sizing skipped",
		zap.String("symbol", req.Symbol),
		zap.String("code", string(d.Skip)),
		zap.String("reason", d.Reason))
	return d
}

func (s *Sizer) size(ctx context.Context, req Request) Decision {
	if req.StopPoints <= 0 || req.RiskPercent <= 0 {
		return skipDecision(req, CodeBadRequest,
			fmt.Sprintf("%s: stop %d points and risk %g%% must be positive", req.Symbol, req.StopPoints, req.RiskPercent))
	}

	if s.MaxRiskPercent > 0 && req.RiskPercent > s.MaxRiskPercent {
		return skipDecision(req, CodeRiskTooHigh,
			fmt.Sprintf("%s: planned risk %.2f%% exceeds max %.2f%%", req.Symbol, req.RiskPercent, s.MaxRiskPercent))
	}

	acct, err := s.sess.AccountInfo(ctx)
	if err != nil {
		return skipDecision(req, CodeNoAccount, fmt.Sprintf("unable to retrieve account info: %v", err))
	}

	info, err := s.gate.ResolveSymbol(ctx, req.Symbol)
	if err != nil {
		return skipDecision(req, CodeNoSymbol, err.Error())
	}
	tick, err := s.gate.CurrentTick(ctx, req.Symbol)
	if err != nil {
		return skipDecision(req, CodeNoTick, err.Error())
	}
	snap := market.NewSnapshot(info, tick)
	stop := s.gate.EnforceMinStop(snap, req.StopPoints)

	res := Calculate(Inputs{
		Balance:         acct.Balance,
		RiskPercent:     req.RiskPercent,
		StopPoints:      stop.Effective,
		Point:           snap.Point,
		ContractSize:    snap.ContractSize,
		TickValue:       snap.TickValue,
		MinVolume:       snap.MinVolume,
		MaxVolume:       snap.MaxVolume,
		VolumeStep:      snap.VolumeStep,
		StrictMinVolume: s.StrictMinVolume,
	})
	if !res.OK() {
		d := skipDecision(req, res.Skip, fmt.Sprintf("%s: %s", req.Symbol, res.Msg))
		d.Result = res
		return d
	}

	return Decision{
		Request: req,
		Trade:   true,
		Result:  res,
		Order: SizedOrder{
			Symbol:     req.Symbol,
			Side:       req.Side,
			Volume:     res.Volume,
			Stop:       stop,
			LimitPrice: snap.EntryPrice(req.Side),
			TickTime:   snap.TickTime,
			RiskAmount: res.RiskAmount,
			RawVolume:  res.RawVolume,
		},
	}
}
