package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskdesk/metrics"
	"github.com/rustyeddy/riskdesk/terminal"
)

type mockTerminal struct {
	mock.Mock
}

func (m *mockTerminal) Initialize(ctx context.Context, p terminal.ConnectionProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockTerminal) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTerminal) AccountInfo(ctx context.Context) (terminal.AccountInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(terminal.AccountInfo), args.Error(1)
}

func (m *mockTerminal) SymbolInfo(ctx context.Context, symbol string) (terminal.SymbolInfo, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(terminal.SymbolInfo), args.Error(1)
}

func (m *mockTerminal) SymbolSelect(ctx context.Context, symbol string, enable bool) error {
	return m.Called(ctx, symbol, enable).Error(0)
}

func (m *mockTerminal) SymbolTick(ctx context.Context, symbol string) (terminal.Tick, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(terminal.Tick), args.Error(1)
}

func (m *mockTerminal) Positions(ctx context.Context) ([]terminal.Position, error) {
	args := m.Called(ctx)
	return args.Get(0).([]terminal.Position), args.Error(1)
}

func (m *mockTerminal) OrderSend(ctx context.Context, req terminal.OrderRequest) (terminal.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(terminal.OrderResult), args.Error(1)
}

var profile = terminal.ConnectionProfile{Login: 52474875, Server: "Broker-Demo"}

func TestConnectExhaustsAttempts(t *testing.T) {
	t.Parallel()

	ipc := errors.New("(-10005, 'IPC timeout')")
	m := &mockTerminal{}
	m.On("Initialize", mock.Anything, profile).Return(ipc).Times(3)

	delay := 20 * time.Millisecond
	start := time.Now()
	s, err := Connect(context.Background(), m, profile, Options{
		MaxAttempts: 3,
		RetryDelay:  delay,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrConnect)
	assert.ErrorIs(t, err, ipc)
	assert.Contains(t, err.Error(), "3 attempt(s)")
	assert.GreaterOrEqual(t, elapsed, 2*delay)
	m.AssertNumberOfCalls(t, "Initialize", 3)
	m.AssertNotCalled(t, "AccountInfo", mock.Anything)
}

func TestConnectMinimumOneAttempt(t *testing.T) {
	t.Parallel()

	m := &mockTerminal{}
	m.On("Initialize", mock.Anything, mock.Anything).Return(errors.New("no terminal"))

	_, err := Connect(context.Background(), m, terminal.ConnectionProfile{}, Options{MaxAttempts: 0})
	assert.ErrorIs(t, err, ErrConnect)
	m.AssertNumberOfCalls(t, "Initialize", 1)
}

func TestConnectRetriesThenPings(t *testing.T) {
	t.Parallel()

	m := &mockTerminal{}
	m.On("Initialize", mock.Anything, profile).Return(errors.New("busy")).Once()
	m.On("Initialize", mock.Anything, profile).Return(nil).Once()
	m.On("AccountInfo", mock.Anything).Return(terminal.AccountInfo{Login: 52474875, Balance: 10000}, nil).Once()

	mt := metrics.New()
	s, err := Connect(context.Background(), m, profile, Options{
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
		SettleDelay: time.Millisecond,
		Metrics:     mt,
	})
	require.NoError(t, err)
	assert.True(t, s.Connected())
	assert.Equal(t, 10000.0, s.Account().Balance)
	m.AssertExpectations(t)
}

func TestConnectFailedPingIsFatal(t *testing.T) {
	t.Parallel()

	m := &mockTerminal{}
	m.On("Initialize", mock.Anything, mock.Anything).Return(nil)
	m.On("AccountInfo", mock.Anything).Return(terminal.AccountInfo{}, errors.New("not logged in"))
	m.On("Shutdown", mock.Anything).Return(nil).Once()

	_, err := Connect(context.Background(), m, profile, DefaultOptions())
	assert.ErrorIs(t, err, ErrConnect)
	m.AssertExpectations(t)
}

func TestConnectHonorsContext(t *testing.T) {
	t.Parallel()

	m := &mockTerminal{}
	m.On("Initialize", mock.Anything, mock.Anything).Return(errors.New("busy"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, m, profile, Options{MaxAttempts: 100, RetryDelay: 10 * time.Second})
	assert.ErrorIs(t, err, ErrConnect)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	t.Parallel()

	m := &mockTerminal{}
	m.On("Initialize", mock.Anything, mock.Anything).Return(nil)
	m.On("AccountInfo", mock.Anything).Return(terminal.AccountInfo{}, nil)
	m.On("Shutdown", mock.Anything).Return(nil).Once()

	ctx := context.Background()
	s, err := Connect(ctx, m, terminal.ConnectionProfile{}, Options{MaxAttempts: 1})
	require.NoError(t, err)

	assert.NoError(t, s.Disconnect(ctx))
	assert.NoError(t, s.Disconnect(ctx))
	assert.False(t, s.Connected())
	m.AssertNumberOfCalls(t, "Shutdown", 1)
}

func TestCallsAfterDisconnect(t *testing.T) {
	t.Parallel()

	m := &mockTerminal{}
	m.On("Initialize", mock.Anything, mock.Anything).Return(nil)
	m.On("AccountInfo", mock.Anything).Return(terminal.AccountInfo{}, nil).Once()
	m.On("Shutdown", mock.Anything).Return(nil)

	ctx := context.Background()
	s, err := Connect(ctx, m, terminal.ConnectionProfile{}, Options{MaxAttempts: 1})
	require.NoError(t, err)
	require.NoError(t, s.Disconnect(ctx))

	_, err = s.AccountInfo(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Positions(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.OrderSend(ctx, terminal.OrderRequest{})
	assert.ErrorIs(t, err, ErrNotConnected)
}
