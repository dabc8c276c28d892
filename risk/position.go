package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Inputs is everything Calculate needs; no terminal access.
type Inputs struct {
	Balance      float64
	RiskPercent  float64 // 0.25 means 0.25% of balance
	StopPoints   int     // already raised to the broker minimum
	Point        float64
	ContractSize float64
	TickValue    float64 // account currency per point per lot
	MinVolume    float64
	MaxVolume    float64
	VolumeStep   float64

	// StrictMinVolume skips instead of raising a raw volume below
	// MinVolume up to it.
	StrictMinVolume bool
}

type Result struct {
	Volume      float64
	RawVolume   float64
	RiskAmount  float64
	StopRange   float64 // stop distance in price units
	ValuePerLot float64 // loss per 1.0 lot if the stop is hit

	Skip Code // empty when Volume is tradable
	Msg  string
}

func (r Result) OK() bool { return r.Skip == "" }

func (r *Result) skip(code Code, format string, args ...any) Result {
	r.Volume = 0
	r.Skip = code
	r.Msg = fmt.Sprintf(format, args...)
	return *r
}

// Calculate converts a percent-of-balance risk budget and a stop distance
// into a broker-legal volume. The volume is clamped to [MinVolume,
// MaxVolume], floored to VolumeStep and rounded to 3 decimals. Floors, never
// rounds up: rounding up would risk more than requested.
//
// The loss per lot is StopRange * TickValue/Point, which assumes TickValue is
// quoted per point per lot in account currency.
func Calculate(in Inputs) Result {
	r := Result{}

	if in.RiskPercent <= 0 || in.Balance <= 0 {
		return r.skip(CodeBadRequest, "risk percent %g and balance %g must be positive", in.RiskPercent, in.Balance)
	}
	r.RiskAmount = in.RiskPercent / 100 * in.Balance

	if in.ContractSize <= 0 || in.TickValue <= 0 || in.Point <= 0 {
		return r.skip(CodeBadContract, "invalid contract or tick value (contract_size=%g tick_value=%g point=%g)",
			in.ContractSize, in.TickValue, in.Point)
	}

	r.StopRange = float64(in.StopPoints) * in.Point
	if r.StopRange <= 0 {
		return r.skip(CodeBadStopRange, "stop range %g from %d points is not positive", r.StopRange, in.StopPoints)
	}

	r.ValuePerLot = r.StopRange * (in.TickValue / in.Point)
	if r.ValuePerLot == 0 {
		return r.skip(CodeZeroValuePerLot, "stop value per lot is zero")
	}

	r.RawVolume = r.RiskAmount / r.ValuePerLot

	if in.VolumeStep <= 0 || in.MinVolume <= 0 || in.MaxVolume <= 0 {
		return r.skip(CodeBadVolumeLimits, "invalid volume constraints (min=%g max=%g step=%g)",
			in.MinVolume, in.MaxVolume, in.VolumeStep)
	}
	if in.StrictMinVolume && r.RawVolume < in.MinVolume {
		return r.skip(CodeBelowMinVolume, "raw volume %.5f is below minimum %g", r.RawVolume, in.MinVolume)
	}

	lot := max(in.MinVolume, min(r.RawVolume, in.MaxVolume))
	lot = FloorToStep(lot, in.VolumeStep)

	if lot < in.MinVolume {
		return r.skip(CodeBelowMinVolume, "volume %g after flooring to step %g is below minimum %g",
			lot, in.VolumeStep, in.MinVolume)
	}

	r.Volume = lot
	return r
}

// FloorToStep floors v to a multiple of step and rounds the result to 3
// decimals. Decimal arithmetic keeps values like 0.3/0.1 from flooring to 2.
func FloorToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	s := decimal.NewFromFloat(step)
	return decimal.NewFromFloat(v).Div(s).Floor().Mul(s).Round(3).InexactFloat64()
}
