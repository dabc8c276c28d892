package config

import (
	"time"

	"github.com/rustyeddy/riskdesk/terminal/bridge"
)

// Default returns a configuration that runs against the simulated terminal
// with the riskon and riskoff baskets.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Terminal: TerminalConfig{
			Kind:        TerminalSim,
			BridgeURL:   bridge.DefaultURL,
			RateLimit:   20,
			MaxAttempts: 2,
			RetryDelay:  Duration(500 * time.Millisecond),
			SettleDelay: Duration(200 * time.Millisecond),
		},
		Risk: RiskConfig{
			Percent:    0.25,
			MaxPercent: 2,
		},
		Execution: ExecutionConfig{
			Magic:            123456,
			Deviation:        250,
			FreshTickTimeout: Duration(500 * time.Millisecond),
			Comment:          "AutoTrade",
		},
		Baskets: map[string]Basket{
			"riskon": {
				Comment: "RiskOnAuto",
				Legs: []Leg{
					{Symbol: "USTEC", Side: "buy", StopPoints: 1000},
					{Symbol: "US500", Side: "buy", StopPoints: 500},
					{Symbol: "DE40", Side: "buy", StopPoints: 1000},
					{Symbol: "UK100", Side: "buy", StopPoints: 1000},
					{Symbol: "USDJPY", Side: "sell", StopPoints: 150},
					{Symbol: "EURUSD", Side: "buy", StopPoints: 150},
				},
			},
			"riskoff": {
				Comment: "RiskOffAuto",
				Legs: []Leg{
					{Symbol: "USTEC", Side: "sell", StopPoints: 1000},
					{Symbol: "US500", Side: "sell", StopPoints: 500},
					{Symbol: "DE40", Side: "sell", StopPoints: 1000},
					{Symbol: "USDJPY", Side: "buy", StopPoints: 150},
					{Symbol: "CHFJPY", Side: "buy", StopPoints: 150},
					{Symbol: "XAUUSD", Side: "buy", StopPoints: 5000},
					{Symbol: "EURUSD", Side: "sell", StopPoints: 150},
				},
			},
		},
		Journal: JournalConfig{Type: "none"},
		Sim: SimConfig{
			Login:    1000001,
			Currency: "USD",
			Balance:  10000,
			Symbols: []SimSymbol{
				index("USTEC", 18000.00, 18001.50),
				index("US500", 5600.00, 5600.50),
				index("DE40", 22000.00, 22001.20),
				index("UK100", 8300.00, 8301.00),
				fx("EURUSD", 5, 1.0, 1.08500, 1.08512),
				fx("USDJPY", 3, 0.67, 149.500, 149.512),
				fx("CHFJPY", 3, 0.67, 169.800, 169.825),
				{
					Name: "XAUUSD", Hidden: true, Digits: 2, Point: 0.01, ContractSize: 100, TickValue: 1,
					StopsLevel: 0, VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01, Bid: 2900.00, Ask: 2900.25,
				},
			},
		},
	}
}

func index(name string, bid, ask float64) SimSymbol {
	return SimSymbol{
		Name: name, Digits: 2, Point: 0.01, ContractSize: 1, TickValue: 0.01,
		StopsLevel: 1200, VolumeMin: 0.1, VolumeMax: 200, VolumeStep: 0.1, Bid: bid, Ask: ask,
	}
}

func fx(name string, digits int, tickValue, bid, ask float64) SimSymbol {
	point := 0.00001
	if digits == 3 {
		point = 0.001
	}
	return SimSymbol{
		Name: name, Digits: digits, Point: point, ContractSize: 100000, TickValue: tickValue,
		StopsLevel: 10, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01, Bid: bid, Ask: ask,
	}
}
