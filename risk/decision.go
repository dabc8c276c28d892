package risk

import (
	"time"

	"github.com/rustyeddy/riskdesk/market"
	"github.com/rustyeddy/riskdesk/terminal"
)

// Code names why a symbol was not traded.
type Code string

const (
	CodeNoAccount       Code = "NO_ACCOUNT"
	CodeNoSymbol        Code = "NO_SYMBOL"
	CodeNoTick          Code = "NO_TICK"
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeBadContract     Code = "BAD_CONTRACT"
	CodeBadStopRange    Code = "BAD_STOP_RANGE"
	CodeZeroValuePerLot Code = "ZERO_VALUE_PER_LOT"
	CodeBadVolumeLimits Code = "BAD_VOLUME_LIMITS"
	CodeBelowMinVolume  Code = "BELOW_MIN_VOLUME"
	CodeRiskTooHigh     Code = "RISK_TOO_HIGH"
)

// Request is a caller's risk budget for one symbol.
type Request struct {
	Symbol      string
	Side        terminal.OrderType
	StopPoints  int
	RiskPercent float64
}

// SizedOrder is a volume ready to send. LimitPrice is the bid or ask at
// decision time.
type SizedOrder struct {
	Symbol     string
	Side       terminal.OrderType
	Volume     float64
	Stop       market.StopDistance
	LimitPrice float64
	TickTime   time.Time
	RiskAmount float64
	RawVolume  float64
}

// StopPoints is the effective stop distance, after any broker minimum.
func (o SizedOrder) StopPoints() int { return o.Stop.Effective }

// Decision is the Sizer's answer for one Request. When Trade is false, Skip
// and Reason say why and Order is empty.
type Decision struct {
	Request Request
	Trade   bool
	Order   SizedOrder
	Skip    Code
	Reason  string
	Result  Result
}

// Volume is the order volume, or 0 for a no-trade decision.
func (d Decision) Volume() float64 {
	if !d.Trade {
		return 0
	}
	return d.Order.Volume
}

func skipDecision(req Request, code Code, reason string) Decision {
	return Decision{Request: req, Skip: code, Reason: reason}
}
