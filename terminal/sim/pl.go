package sim

import "github.com/rustyeddy/riskdesk/terminal"

// PL is the profit or loss in account currency of closing volume lots of p
// at closePrice. TickValue is the value of one point per lot.
func PL(info terminal.SymbolInfo, p terminal.Position, closePrice, volume float64) float64 {
	if info.Point <= 0 {
		return 0
	}
	move := closePrice - p.PriceOpen
	if p.Type == terminal.OrderSell {
		move = -move
	}
	return move / info.Point * info.TickValue * volume
}
