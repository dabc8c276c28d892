package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskdesk/session"
	"github.com/rustyeddy/riskdesk/terminal"
	"github.com/rustyeddy/riskdesk/terminal/sim"
)

var t0 = time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

func ustec(visible bool) terminal.SymbolInfo {
	return terminal.SymbolInfo{
		Name:         "USTEC",
		Visible:      visible,
		Digits:       2,
		Point:        0.01,
		ContractSize: 1,
		TickValue:    0.01,
		StopsLevel:   1200,
		VolumeMin:    0.1,
		VolumeMax:    200,
		VolumeStep:   0.1,
	}
}

func newGate(t *testing.T, e *sim.Engine) *Gate {
	t.Helper()
	s, err := session.Connect(context.Background(), e, terminal.ConnectionProfile{}, session.Options{MaxAttempts: 1})
	require.NoError(t, err)
	return NewGate(s)
}

func newEngine(visible bool) *sim.Engine {
	e := sim.NewEngine(terminal.AccountInfo{Balance: 10000, Currency: "USD"})
	e.AddSymbol(ustec(visible))
	e.SetTick(terminal.Tick{Symbol: "USTEC", Bid: 18000.00, Ask: 18001.50, Time: t0})
	return e
}

func TestResolveSymbolActivatesHiddenSymbol(t *testing.T) {
	t.Parallel()

	g := newGate(t, newEngine(false))
	info, err := g.ResolveSymbol(context.Background(), "USTEC")
	require.NoError(t, err)
	assert.True(t, info.Visible)
	assert.Equal(t, 0.01, info.Point)
}

func TestResolveSymbolMissing(t *testing.T) {
	t.Parallel()

	g := newGate(t, newEngine(true))
	_, err := g.ResolveSymbol(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, terminal.ErrSymbolNotFound)
}

func TestCurrentTickUnavailable(t *testing.T) {
	t.Parallel()

	e := newEngine(true)
	e.ClearTick("USTEC")
	g := newGate(t, e)

	_, err := g.CurrentTick(context.Background(), "USTEC")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = g.Snapshot(context.Background(), "USTEC")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	g := newGate(t, newEngine(false))
	s, err := g.Snapshot(context.Background(), "USTEC")
	require.NoError(t, err)

	assert.Equal(t, "USTEC", s.Symbol)
	assert.Equal(t, 18000.00, s.Bid)
	assert.Equal(t, 18001.50, s.Ask)
	assert.Equal(t, t0, s.TickTime)
	assert.Equal(t, 1200, s.MinStopPoints)
	assert.True(t, s.Visible)
	assert.NoError(t, s.Usable())
}

func TestWaitFreshTickReturnsNewerTick(t *testing.T) {
	t.Parallel()

	e := newEngine(true)
	g := newGate(t, e)
	g.PollInterval = 5 * time.Millisecond

	go func() {
		time.Sleep(30 * time.Millisecond)
		e.SetTick(terminal.Tick{Symbol: "USTEC", Bid: 18002, Ask: 18003, Time: t0.Add(time.Second)})
	}()

	tick, err := g.WaitFreshTick(context.Background(), "USTEC", t0, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Second), tick.Time)
	assert.Equal(t, 18002.0, tick.Bid)
}

func TestWaitFreshTickTimesOutWithCurrent(t *testing.T) {
	t.Parallel()

	g := newGate(t, newEngine(true))
	g.PollInterval = 5 * time.Millisecond

	start := time.Now()
	tick, err := g.WaitFreshTick(context.Background(), "USTEC", t0, 40*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, t0, tick.Time)
}

func TestWaitFreshTickImmediateWhenAlreadyNewer(t *testing.T) {
	t.Parallel()

	g := newGate(t, newEngine(true))
	tick, err := g.WaitFreshTick(context.Background(), "USTEC", time.Time{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, t0, tick.Time)
}

func TestEnforceMinStop(t *testing.T) {
	t.Parallel()

	s := Snapshot{Symbol: "USTEC", MinStopPoints: 1200}

	tests := []struct {
		name      string
		requested int
		effective int
		adjusted  bool
	}{
		{"below minimum", 1000, 1200, true},
		{"at minimum", 1200, 1200, false},
		{"above minimum", 1500, 1500, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := EnforceMinStopDistance(s, tt.requested)
			assert.Equal(t, tt.effective, d.Effective)
			assert.Equal(t, tt.requested, d.Requested)
			assert.Equal(t, tt.adjusted, d.Adjusted)
		})
	}
}

func TestStopPrice(t *testing.T) {
	t.Parallel()

	s := Snapshot{Point: 0.0001, Bid: 1.1000, Ask: 1.1002}
	assert.InDelta(t, 1.0852, s.StopPrice(terminal.OrderBuy, s.EntryPrice(terminal.OrderBuy), 150), 1e-9)
	assert.InDelta(t, 1.1150, s.StopPrice(terminal.OrderSell, s.EntryPrice(terminal.OrderSell), 150), 1e-9)
}

func TestSnapshotUsable(t *testing.T) {
	t.Parallel()

	assert.Error(t, Snapshot{Symbol: "X", Point: 0.01, ContractSize: 1}.Usable())
	assert.Error(t, Snapshot{Symbol: "X", TickValue: 1, ContractSize: 1}.Usable())
	assert.NoError(t, Snapshot{Symbol: "X", Point: 0.01, TickValue: 1, ContractSize: 1}.Usable())
}
