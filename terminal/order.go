package terminal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OrderType is the direction of an order or position.
type OrderType int

const (
	OrderBuy  OrderType = 0
	OrderSell OrderType = 1
)

func (t OrderType) String() string {
	switch t {
	case OrderBuy:
		return "buy"
	case OrderSell:
		return "sell"
	default:
		return fmt.Sprintf("OrderType(%d)", int(t))
	}
}

// Opposite returns the side that closes a position of type t.
func (t OrderType) Opposite() OrderType {
	if t == OrderBuy {
		return OrderSell
	}
	return OrderBuy
}

// ParseOrderType accepts buy/long and sell/short in any case.
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return OrderBuy, nil
	case "sell", "short":
		return OrderSell, nil
	default:
		return 0, fmt.Errorf("unknown order side %q (want buy|sell)", s)
	}
}

func (t OrderType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *OrderType) UnmarshalText(b []byte) error {
	v, err := ParseOrderType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type TradeAction int

const (
	ActionDeal TradeAction = 1
)

type OrderTime int

const (
	OrderTimeGTC OrderTime = 0
)

type OrderFilling int

const (
	FillingFOK    OrderFilling = 0
	FillingIOC    OrderFilling = 1
	FillingReturn OrderFilling = 2
)

// OrderRequest is a trade request in terminal terms. Deviation is in points,
// StopLoss is an absolute price. Position is set only when closing.
type OrderRequest struct {
	Action      TradeAction  `json:"action"`
	Symbol      string       `json:"symbol"`
	Volume      float64      `json:"volume"`
	Type        OrderType    `json:"type"`
	Price       float64      `json:"price"`
	Deviation   int          `json:"deviation"`
	StopLoss    float64      `json:"sl,omitempty"`
	Position    uint64       `json:"position,omitempty"`
	Magic       uint64       `json:"magic"`
	Comment     string       `json:"comment"`
	TypeTime    OrderTime    `json:"type_time"`
	TypeFilling OrderFilling `json:"type_filling"`
}

// OrderResult is the terminal's acknowledgement of an OrderRequest.
type OrderResult struct {
	Retcode uint32       `json:"retcode"`
	Deal    uint64       `json:"deal"`
	Order   uint64       `json:"order"`
	Volume  float64      `json:"volume"`
	Price   float64      `json:"price"`
	Bid     float64      `json:"bid"`
	Ask     float64      `json:"ask"`
	Comment string       `json:"comment"`
	Request OrderRequest `json:"request"`
}

func (r OrderResult) Done() bool {
	return r.Retcode == RetcodeDone
}

// String renders the full result for diagnostics.
func (r OrderResult) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%+v", struct {
			Retcode uint32
			Comment string
		}{r.Retcode, r.Comment})
	}
	return string(b)
}

// Trade server return codes.
const (
	RetcodeRequote       uint32 = 10004
	RetcodeReject        uint32 = 10006
	RetcodeCancel        uint32 = 10007
	RetcodePlaced        uint32 = 10008
	RetcodeDone          uint32 = 10009
	RetcodeDonePartial   uint32 = 10010
	RetcodeError         uint32 = 10011
	RetcodeInvalid       uint32 = 10013
	RetcodeInvalidVolume uint32 = 10014
	RetcodeInvalidPrice  uint32 = 10015
	RetcodeInvalidStops  uint32 = 10016
	RetcodeMarketClosed  uint32 = 10018
	RetcodeNoMoney       uint32 = 10019
	RetcodePriceChanged  uint32 = 10020
	RetcodePositionGone  uint32 = 10036
	RetcodeInvalidFill   uint32 = 10030
)

var retcodeNames = map[uint32]string{
	RetcodeRequote:       "REQUOTE",
	RetcodeReject:        "REJECT",
	RetcodeCancel:        "CANCEL",
	RetcodePlaced:        "PLACED",
	RetcodeDone:          "DONE",
	RetcodeDonePartial:   "DONE_PARTIAL",
	RetcodeError:         "ERROR",
	RetcodeInvalid:       "INVALID",
	RetcodeInvalidVolume: "INVALID_VOLUME",
	RetcodeInvalidPrice:  "INVALID_PRICE",
	RetcodeInvalidStops:  "INVALID_STOPS",
	RetcodeMarketClosed:  "MARKET_CLOSED",
	RetcodeNoMoney:       "NO_MONEY",
	RetcodePriceChanged:  "PRICE_CHANGED",
	RetcodePositionGone:  "POSITION_CLOSED",
	RetcodeInvalidFill:   "INVALID_FILL",
}

// RetcodeName returns the symbolic name of a return code, or its number.
func RetcodeName(code uint32) string {
	if n, ok := retcodeNames[code]; ok {
		return n
	}
	return fmt.Sprintf("%d", code)
}
