// Package bridge implements terminal.Terminal over HTTP against a local
// sidecar process that owns the MetaTrader 5 terminal connection.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/riskdesk/logging"
	"github.com/rustyeddy/riskdesk/terminal"
)

const (
	DefaultURL     = "http://127.0.0.1:8788"
	DefaultTimeout = 15 * time.Second
)

// APIError is a non-2xx reply from the sidecar.
type APIError struct {
	Status  int
	Code    int // terminal last_error code, 0 if none
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("bridge http %d: (%d, %q)", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("bridge http %d: %s", e.Status, e.Message)
}

var _ terminal.Terminal = (*Client)(nil)

// Client talks to the sidecar. Calls are throttled by a token bucket so a
// close-all over many positions cannot flood the terminal.
type Client struct {
	base    string
	hc      *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(l) }
}

func New(base string, opts ...Option) *Client {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultURL
	}
	c := &Client{
		base:    base,
		hc:      &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(20), 5),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) URL() string { return c.base }

func (c *Client) Initialize(ctx context.Context, p terminal.ConnectionProfile) error {
	return c.do(ctx, http.MethodPost, "/initialize", initRequest{
		Path:     p.Path,
		Login:    p.Login,
		Password: p.Password,
		Server:   p.Server,
	}, nil)
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/shutdown", nil, nil)
}

func (c *Client) AccountInfo(ctx context.Context) (terminal.AccountInfo, error) {
	var out terminal.AccountInfo
	err := c.do(ctx, http.MethodGet, "/account", nil, &out)
	return out, err
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (terminal.SymbolInfo, error) {
	var out terminal.SymbolInfo
	err := c.do(ctx, http.MethodGet, "/symbols/"+url.PathEscape(symbol), nil, &out)
	if isNotFound(err) {
		return terminal.SymbolInfo{}, fmt.Errorf("%s: %w", symbol, terminal.ErrSymbolNotFound)
	}
	if out.Name == "" {
		out.Name = symbol
	}
	return out, err
}

func (c *Client) SymbolSelect(ctx context.Context, symbol string, enable bool) error {
	err := c.do(ctx, http.MethodPost, "/symbols/"+url.PathEscape(symbol)+"/select", selectRequest{Enable: enable}, nil)
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", symbol, terminal.ErrSymbolNotFound)
	}
	return err
}

func (c *Client) SymbolTick(ctx context.Context, symbol string) (terminal.Tick, error) {
	var out wireTick
	err := c.do(ctx, http.MethodGet, "/symbols/"+url.PathEscape(symbol)+"/tick", nil, &out)
	if isNotFound(err) {
		return terminal.Tick{}, fmt.Errorf("%s: %w", symbol, terminal.ErrNoTick)
	}
	if err != nil {
		return terminal.Tick{}, err
	}
	return out.tick(symbol), nil
}

func (c *Client) Positions(ctx context.Context) ([]terminal.Position, error) {
	var rows []wirePosition
	if err := c.do(ctx, http.MethodGet, "/positions", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]terminal.Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.position())
	}
	return out, nil
}

// OrderSend returns a result for every order the terminal answered, even a
// rejected one. An error means the request never got a trade server reply.
func (c *Client) OrderSend(ctx context.Context, req terminal.OrderRequest) (terminal.OrderResult, error) {
	var w wireResult
	if err := c.do(ctx, http.MethodPost, "/orders", toWireOrder(req), &w); err != nil {
		return terminal.OrderResult{}, err
	}
	return terminal.OrderResult{
		Retcode: w.Retcode,
		Deal:    w.Deal,
		Order:   w.Order,
		Volume:  w.Volume,
		Price:   w.Price,
		Bid:     w.Bid,
		Ask:     w.Ask,
		Comment: w.Comment,
		Request: req,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("newrequest %s: %w (url=%s)", path, err, u)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "riskdesk/bridge")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	c.log.Debug("bridge call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("elapsed", time.Since(start)))

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))
		apiErr := &APIError{Status: res.StatusCode, Message: strings.TrimSpace(string(b))}
		var eb errorBody
		if json.Unmarshal(b, &eb) == nil && eb.Error != "" {
			apiErr.Code = eb.Code
			apiErr.Message = eb.Error
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
