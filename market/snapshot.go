package market

import (
	"fmt"
	"time"

	"github.com/rustyeddy/riskdesk/terminal"
)

// Snapshot is an instrument's tradable state at one moment: the latest tick
// plus the broker's contract and volume constraints. Build a new one for
// every decision; ticks and constraints change between calls.
type Snapshot struct {
	Symbol        string
	Bid           float64
	Ask           float64
	TickTime      time.Time
	Point         float64
	ContractSize  float64
	TickValue     float64
	MinStopPoints int
	MinVolume     float64
	MaxVolume     float64
	VolumeStep    float64
	Visible       bool
}

func NewSnapshot(info terminal.SymbolInfo, tick terminal.Tick) Snapshot {
	return Snapshot{
		Symbol:        info.Name,
		Bid:           tick.Bid,
		Ask:           tick.Ask,
		TickTime:      tick.Time,
		Point:         info.Point,
		ContractSize:  info.ContractSize,
		TickValue:     info.TickValue,
		MinStopPoints: info.StopsLevel,
		MinVolume:     info.VolumeMin,
		MaxVolume:     info.VolumeMax,
		VolumeStep:    info.VolumeStep,
		Visible:       info.Visible,
	}
}

// Usable reports whether the snapshot can be used for sizing.
func (s Snapshot) Usable() error {
	if s.Point <= 0 || s.ContractSize <= 0 || s.TickValue <= 0 {
		return fmt.Errorf("%s: invalid contract parameters (point=%g contract_size=%g tick_value=%g)",
			s.Symbol, s.Point, s.ContractSize, s.TickValue)
	}
	return nil
}

// EntryPrice is the price a market order on side fills against.
func (s Snapshot) EntryPrice(side terminal.OrderType) float64 {
	if side == terminal.OrderBuy {
		return s.Ask
	}
	return s.Bid
}

// StopPrice places a stop points away from entry, below for longs and above
// for shorts.
func (s Snapshot) StopPrice(side terminal.OrderType, entry float64, points int) float64 {
	d := float64(points) * s.Point
	if side == terminal.OrderBuy {
		return entry - d
	}
	return entry + d
}

// StopDistance is a stop distance in points after the broker minimum was
// applied. Adjusted is set when Effective differs from Requested.
type StopDistance struct {
	Requested int
	Effective int
	Minimum   int
	Adjusted  bool
}

func (d StopDistance) String() string {
	if d.Adjusted {
		return fmt.Sprintf("%d (raised from %d to broker minimum)", d.Effective, d.Requested)
	}
	return fmt.Sprintf("%d", d.Effective)
}

// EnforceMinStopDistance raises requested to the snapshot's minimum stop
// distance when it is smaller.
func EnforceMinStopDistance(s Snapshot, requested int) StopDistance {
	d := StopDistance{Requested: requested, Effective: requested, Minimum: s.MinStopPoints}
	if requested < s.MinStopPoints {
		d.Effective = s.MinStopPoints
		d.Adjusted = true
	}
	return d
}
