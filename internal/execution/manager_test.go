package execution

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"helmsman/internal/decision"
	"helmsman/internal/gateway/exchange"
	"helmsman/internal/risk"
	"helmsman/internal/store"
)

type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) Name() string { return "mock" }

func (m *mockExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(exchange.OrderResult), args.Error(1)
}

func (m *mockExchange) GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (exchange.OrderResult, error) {
	args := m.Called(ctx, symbol, clientOrderID)
	return args.Get(0).(exchange.OrderResult), args.Error(1)
}

func newTestLedger(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(store.Config{
		Path:         filepath.Join(dir, "primary.db"),
		FallbackPath: filepath.Join(dir, "fallback.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestManager(t *testing.T, exch exchange.Exchange, ledger Ledger) *Manager {
	t.Helper()
	m := NewManager(exch, ledger, Config{StatusRetries: 3, RetryDelay: time.Millisecond})
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

func buyOrder() risk.ApprovedOrder {
	return risk.ApprovedOrder{
		Symbol:     "BTC/USDT",
		Side:       decision.ActionBuy,
		Quantity:   decimal.NewFromFloat(0.01),
		Notional:   decimal.NewFromInt(500),
		Price:      decimal.NewFromInt(50000),
		StopLoss:   decimal.NewFromInt(48500),
		TakeProfit: decimal.NewFromInt(53000),
	}
}

func filledResult(clientID string) exchange.OrderResult {
	return exchange.OrderResult{
		OrderID:       "ex-1",
		ClientOrderID: clientID,
		Symbol:        "BTC/USDT",
		Status:        exchange.StatusFilled,
		FilledQty:     0.01,
		AvgPrice:      50012,
		UpdatedAt:     time.Now(),
	}
}

func TestExecuteFillRecordsTradeAndPosition(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ClientOrderID == "coid-1" && req.Side == exchange.SideBuy && req.Type == exchange.OrderMarket
	})).Return(filledResult("coid-1"), nil).Once()

	fill, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1", Reasoning: "oversold"})
	require.NoError(t, err)
	assert.False(t, fill.Rejected)
	assert.InDelta(t, 50012, fill.Price, 1e-9)
	assert.InDelta(t, 0.01, fill.Quantity, 1e-12)

	pending, ok, err := ledger.PendingOrder(ctx, "coid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.OrderFilled, pending.State)

	open, err := ledger.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.InDelta(t, 50012, open[0].EntryPrice, 1e-9)
	assert.InDelta(t, 48500, open[0].StopLoss, 1e-9)

	exch.AssertExpectations(t)
}

func TestExecuteDuplicateClientIDIsNoOp(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).Return(filledResult("coid-1"), nil).Once()

	first, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	require.NoError(t, err)

	// Second call must not reach the exchange (.Once above enforces it).
	second, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	exch.AssertExpectations(t)
}

func TestExecuteSurvivesRestartWithoutResubmitting(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).Return(filledResult("coid-1"), nil).Once()

	m1 := newTestManager(t, exch, ledger)
	first, err := m1.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	require.NoError(t, err)

	// Fresh manager, same store: the persisted outcome wins.
	m2 := newTestManager(t, exch, ledger)
	second, err := m2.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, first.Quantity, second.Quantity)

	exch.AssertExpectations(t)
}

func TestExecuteReconcilesAmbiguousSubmitAsFill(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{}, errors.New("gateway timeout")).Once()
	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(filledResult("coid-1"), nil).Once()

	fill, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.False(t, fill.Rejected)
	assert.InDelta(t, 50012, fill.Price, 1e-9)

	exch.AssertExpectations(t)
}

func TestExecuteSubmitFailureWithNoOrderIsDefinitive(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{}, errors.New("connection refused")).Once()
	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(exchange.OrderResult{}, exchange.ErrOrderNotFound).Once()

	_, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	require.Error(t, err)
	var ambiguous *AmbiguousError
	assert.False(t, errors.As(err, &ambiguous), "not-found is definitive, not ambiguous")

	pending, ok, lerr := ledger.PendingOrder(ctx, "coid-1")
	require.NoError(t, lerr)
	require.True(t, ok)
	assert.Equal(t, store.OrderAbandoned, pending.State)

	exch.AssertExpectations(t)
}

func TestExecuteAmbiguousAfterRetriesNeverBlindRetries(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{}, errors.New("gateway timeout")).Once()
	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(exchange.OrderResult{}, errors.New("still down")).Times(3)

	_, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, "coid-1", ambiguous.ClientOrderID)

	pending, ok, lerr := ledger.PendingOrder(ctx, "coid-1")
	require.NoError(t, lerr)
	require.True(t, ok)
	assert.Equal(t, store.OrderUnknown, pending.State)

	// PlaceOrder was called exactly once: ambiguity never resubmits.
	exch.AssertExpectations(t)
}

func TestResolveUnknownSettlesLostAckFill(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	// Park the order: submit and every status poll fail.
	exch.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{}, errors.New("gateway timeout")).Once()
	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(exchange.OrderResult{}, errors.New("still down")).Times(3)

	_, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1", Reasoning: "oversold"})
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))

	// The exchange comes back and knows the order: it filled.
	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(filledResult("coid-1"), nil).Once()

	fills, err := m.ResolveUnknown(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.False(t, fills[0].Rejected)
	assert.InDelta(t, 50012.0, fills[0].Price, 1e-9)

	pending, ok, lerr := ledger.PendingOrder(ctx, "coid-1")
	require.NoError(t, lerr)
	require.True(t, ok)
	assert.Equal(t, store.OrderFilled, pending.State)

	positions, perr := ledger.OpenPositions(ctx)
	require.NoError(t, perr)
	require.Len(t, positions, 1)
	assert.InDelta(t, 48500.0, positions[0].StopLoss, 1e-9, "settlement keeps the stop persisted at submit time")

	trades, terr := ledger.TradesSince(ctx, "sess-1", time.Time{})
	require.NoError(t, terr)
	require.Len(t, trades, 1)
	assert.Equal(t, store.TradeFilled, trades[0].Status)
	exch.AssertExpectations(t)
}

func TestResolveUnknownAbandonsOrderNotFound(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{}, errors.New("gateway timeout")).Once()
	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(exchange.OrderResult{}, errors.New("still down")).Times(3)

	_, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))

	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(exchange.OrderResult{}, exchange.ErrOrderNotFound).Once()

	fills, err := m.ResolveUnknown(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Rejected)

	pending, ok, lerr := ledger.PendingOrder(ctx, "coid-1")
	require.NoError(t, lerr)
	require.True(t, ok)
	assert.Equal(t, store.OrderAbandoned, pending.State)

	positions, perr := ledger.OpenPositions(ctx)
	require.NoError(t, perr)
	assert.Empty(t, positions)
	exch.AssertExpectations(t)
}

func TestResolveUnknownLeavesUnansweredParked(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{}, errors.New("gateway timeout")).Once()
	exch.On("GetOrderStatus", mock.Anything, "BTC/USDT", "coid-1").
		Return(exchange.OrderResult{}, errors.New("still down")).Times(4)

	_, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))

	fills, rerr := m.ResolveUnknown(ctx)
	require.NoError(t, rerr)
	assert.Empty(t, fills)

	pending, ok, lerr := ledger.PendingOrder(ctx, "coid-1")
	require.NoError(t, lerr)
	require.True(t, ok)
	assert.Equal(t, store.OrderUnknown, pending.State, "no answer keeps the order parked")
	exch.AssertExpectations(t)
}

func TestExecuteRejectedOrderLeavesNoPosition(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	exch.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{
		OrderID:       "ex-1",
		ClientOrderID: "coid-1",
		Symbol:        "BTC/USDT",
		Status:        exchange.StatusRejected,
		Reason:        "insufficient balance",
	}, nil).Once()

	fill, err := m.ExecuteWithID(ctx, buyOrder(), "coid-1", Meta{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.True(t, fill.Rejected)
	assert.Equal(t, "insufficient balance", fill.Reason)

	open, err := ledger.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	trades, err := ledger.TradesSince(ctx, "sess-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, store.TradeRejected, trades[0].Status)

	exch.AssertExpectations(t)
}

func TestExecuteSellClosesPositionWithPnL(t *testing.T) {
	exch := new(mockExchange)
	ledger := newTestLedger(t)
	m := newTestManager(t, exch, ledger)
	ctx := context.Background()

	require.NoError(t, ledger.SavePosition(ctx, store.Position{
		Symbol: "BTC/USDT", EntryPrice: 48000, Quantity: 0.01,
		Status: store.PositionOpen, OpenedAt: time.Now(),
	}))

	sell := buyOrder()
	sell.Side = decision.ActionSell
	exch.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.Side == exchange.SideSell
	})).Return(filledResult("coid-2"), nil).Once()

	fill, err := m.ExecuteWithID(ctx, sell, "coid-2", Meta{SessionID: "sess-1", EntryPrice: 48000})
	require.NoError(t, err)
	assert.False(t, fill.Rejected)

	open, err := ledger.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "sell fill closes the position")

	trades, err := ledger.TradesSince(ctx, "sess-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, (50012-48000)*0.01, trades[0].PnL, 1e-9)

	exch.AssertExpectations(t)
}
