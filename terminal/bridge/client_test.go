package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskdesk/terminal"
)

// sidecar is an in-process stand-in for the Python bridge.
type sidecar struct {
	mu         sync.Mutex
	requestIDs []string
	orders     []wireOrder
	selected   map[string]bool
	initBody   initRequest
}

func (sc *sidecar) snapshot() (ids []string, orders []wireOrder, selected map[string]bool, init initRequest) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sel := make(map[string]bool, len(sc.selected))
	for k, v := range sc.selected {
		sel[k] = v
	}
	return append([]string(nil), sc.requestIDs...), append([]wireOrder(nil), sc.orders...), sel, sc.initBody
}

func newSidecar(t *testing.T) (*sidecar, *Client) {
	t.Helper()

	sc := &sidecar{selected: map[string]bool{}}
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /initialize", func(w http.ResponseWriter, r *http.Request) {
		var in initRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		sc.mu.Lock()
		sc.initBody = in
		sc.mu.Unlock()
		if in.Login == 13 {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "IPC timeout", Code: -10005})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("POST /shutdown", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"login": 5555, "currency": "USD", "balance": 10000.0, "equity": 10010.5, "margin": 0, "server": "Demo"})
	})
	mux.HandleFunc("GET /symbols/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("symbol") != "EURUSD" {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown symbol"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name": "EURUSD", "visible": true, "digits": 5, "point": 0.00001,
			"trade_contract_size": 100000, "trade_tick_value": 1, "trade_stops_level": 10,
			"volume_min": 0.01, "volume_max": 100, "volume_step": 0.01,
		})
	})
	mux.HandleFunc("POST /symbols/{symbol}/select", func(w http.ResponseWriter, r *http.Request) {
		var in selectRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		sc.mu.Lock()
		sc.selected[r.PathValue("symbol")] = in.Enable
		sc.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("GET /symbols/{symbol}/tick", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("symbol") != "EURUSD" {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "no tick"})
			return
		}
		writeJSON(w, http.StatusOK, wireTick{Bid: 1.1, Ask: 1.10012, TimeMsc: 1741012200123})
	})
	mux.HandleFunc("GET /positions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []wirePosition{
			{Ticket: 42, Symbol: "EURUSD", Type: 1, Volume: 0.3, PriceOpen: 1.1050, SL: 1.12, Magic: 123456, Comment: "AutoTrade", TimeMsc: 1741012200000},
		})
	})
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		var in wireOrder
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		sc.mu.Lock()
		sc.orders = append(sc.orders, in)
		sc.mu.Unlock()
		if in.Volume > 50 {
			writeJSON(w, http.StatusOK, wireResult{Retcode: terminal.RetcodeNoMoney, Comment: "No money"})
			return
		}
		writeJSON(w, http.StatusOK, wireResult{Retcode: terminal.RetcodeDone, Deal: 7, Order: 8, Volume: in.Volume, Price: in.Price, Comment: "Request executed"})
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc.mu.Lock()
		sc.requestIDs = append(sc.requestIDs, r.Header.Get("X-Request-ID"))
		sc.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return sc, New(srv.URL+"/", WithHTTPClient(srv.Client()))
}

func TestInitializeSendsProfile(t *testing.T) {
	t.Parallel()

	sc, c := newSidecar(t)
	err := c.Initialize(context.Background(), terminal.ConnectionProfile{Login: 5555, Password: "pw", Server: "Demo"})
	require.NoError(t, err)
	_, _, _, got := sc.snapshot()
	assert.Equal(t, initRequest{Login: 5555, Password: "pw", Server: "Demo"}, got)

	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestInitializeFailureCarriesTerminalError(t *testing.T) {
	t.Parallel()

	_, c := newSidecar(t)
	err := c.Initialize(context.Background(), terminal.ConnectionProfile{Login: 13})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, -10005, apiErr.Code)
	assert.Equal(t, "IPC timeout", apiErr.Message)
	assert.Contains(t, err.Error(), "-10005")
}

func TestAccountAndSymbol(t *testing.T) {
	t.Parallel()

	sc, c := newSidecar(t)
	ctx := context.Background()

	acct, err := c.AccountInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5555), acct.Login)
	assert.Equal(t, 10000.0, acct.Balance)

	info, err := c.SymbolInfo(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 0.00001, info.Point)
	assert.Equal(t, 10, info.StopsLevel)
	assert.Equal(t, 0.01, info.VolumeStep)

	_, err = c.SymbolInfo(ctx, "NOPE")
	assert.ErrorIs(t, err, terminal.ErrSymbolNotFound)

	require.NoError(t, c.SymbolSelect(ctx, "EURUSD", true))
	ids, _, selected, _ := sc.snapshot()
	assert.True(t, selected["EURUSD"])

	require.Len(t, ids, 4)
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "request id %q", id)
	}
}

func TestSymbolTick(t *testing.T) {
	t.Parallel()

	_, c := newSidecar(t)

	tick, err := c.SymbolTick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", tick.Symbol)
	assert.Equal(t, 1.10012, tick.Ask)
	assert.Equal(t, time.UnixMilli(1741012200123).UTC(), tick.Time)

	_, err = c.SymbolTick(context.Background(), "GBPUSD")
	assert.ErrorIs(t, err, terminal.ErrNoTick)
}

func TestPositions(t *testing.T) {
	t.Parallel()

	_, c := newSidecar(t)
	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, uint64(42), p.Ticket)
	assert.Equal(t, terminal.OrderSell, p.Type)
	assert.Equal(t, 1.12, p.StopLoss)
	assert.Equal(t, uint64(123456), p.Magic)
}

func TestOrderSend(t *testing.T) {
	t.Parallel()

	sc, c := newSidecar(t)
	req := terminal.OrderRequest{
		Action:      terminal.ActionDeal,
		Symbol:      "EURUSD",
		Volume:      0.16,
		Type:        terminal.OrderSell,
		Price:       1.1,
		Deviation:   250,
		StopLoss:    1.1015,
		Magic:       123456,
		Comment:     "AutoTrade",
		TypeTime:    terminal.OrderTimeGTC,
		TypeFilling: terminal.FillingIOC,
	}

	res, err := c.OrderSend(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Done())
	assert.Equal(t, uint64(8), res.Order)
	assert.Equal(t, req, res.Request)

	_, orders, _, _ := sc.snapshot()
	require.Len(t, orders, 1)
	sent := orders[0]
	assert.Equal(t, 1, sent.Action)
	assert.Equal(t, 1, sent.Type)
	assert.Equal(t, 1, sent.TypeFilling)
	assert.Equal(t, 0, sent.TypeTime)
	assert.Equal(t, 1.1015, sent.SL)

	req.Volume = 99
	res, err = c.OrderSend(context.Background(), req)
	require.NoError(t, err, "a rejection is a result, not an error")
	assert.False(t, res.Done())
	assert.Equal(t, terminal.RetcodeNoMoney, res.Retcode)
}

func TestHTTPErrorWithoutJSON(t *testing.T) {
	t.Parallel()

	_, c := newSidecar(t)
	err := c.do(context.Background(), http.MethodGet, "/broken", nil, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Zero(t, apiErr.Code)
}

func TestRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	_, c := newSidecar(t)
	WithRateLimit(0.001, 1)(c)
	require.NoError(t, c.Shutdown(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.Shutdown(ctx))
}

func TestDefaultURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultURL, New("").URL())
	assert.Equal(t, "http://localhost:9000", New(" http://localhost:9000/ ").URL())
}
