package execution

import (
	"fmt"

	"github.com/rustyeddy/riskdesk/market"
	"github.com/rustyeddy/riskdesk/terminal"
)

type Status string

const (
	StatusFilled      Status = "filled"
	StatusRejected    Status = "rejected"
	StatusSkipped     Status = "skipped"
	StatusUnavailable Status = "unavailable"
	StatusFailed      Status = "failed"
)

const (
	ActionOpen      = "open"
	ActionCloseHalf = "close_half"
	ActionClose     = "close"
)

// Outcome is the result of one order operation. Result is set whenever the
// terminal answered, including rejections.
type Outcome struct {
	Action   string
	Status   Status
	Symbol   string
	Side     terminal.OrderType
	Volume   float64
	Price    float64
	StopLoss float64
	Stop     market.StopDistance
	Ticket   uint64 // opened or closed position
	Retcode  uint32
	Comment  string
	Result   *terminal.OrderResult
	Reason   string
}

func (o Outcome) Filled() bool { return o.Status == StatusFilled }

func (o Outcome) String() string {
	switch o.Status {
	case StatusFilled:
		return fmt.Sprintf("%s %s %s %.3f @ %g ticket=%d", o.Action, o.Side, o.Symbol, o.Volume, o.Price, o.Ticket)
	case StatusRejected:
		return fmt.Sprintf("%s %s %s %.3f rejected: retcode=%d (%s)", o.Action, o.Side, o.Symbol, o.Volume,
			o.Retcode, terminal.RetcodeName(o.Retcode))
	default:
		return fmt.Sprintf("%s %s %s: %s", o.Action, o.Symbol, o.Status, o.Reason)
	}
}

// Count tallies outcomes by status.
func Count(outs []Outcome) map[Status]int {
	m := map[Status]int{}
	for _, o := range outs {
		m[o.Status]++
	}
	return m
}
