// Package execution turns approved orders into exchange orders with
// at-most-once semantics: every order gets a client ID persisted before
// submission, ambiguous responses are reconciled by status query, and
// replaying an already-executed client ID returns the recorded outcome.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"helmsman/internal/decision"
	"helmsman/internal/gateway/exchange"
	"helmsman/internal/logger"
	"helmsman/internal/risk"
	"helmsman/internal/store"
)

// AmbiguousError means the order's fate is unknown after submit and
// status reconciliation both failed. It must never be blind-retried;
// the client ID stays persisted for the next reconciliation attempt.
type AmbiguousError struct {
	ClientOrderID string
	Err           error
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("execution ambiguous for order %s: %v", e.ClientOrderID, e.Err)
}

func (e *AmbiguousError) Unwrap() error { return e.Err }

type Fill struct {
	ClientOrderID string
	OrderID       string
	Symbol        string
	Side          string
	Quantity      float64
	Price         float64
	Notional      float64
	Rejected      bool
	Reason        string
	FilledAt      time.Time
}

// Meta carries the audit context an ApprovedOrder does not.
type Meta struct {
	SessionID  string
	Reasoning  string
	EntryPrice float64 // for SELLs: the position's entry, used for pnl
}

// Ledger is the slice of the store the manager writes through.
type Ledger interface {
	SavePendingOrder(ctx context.Context, o store.PendingOrder) error
	PendingOrder(ctx context.Context, clientOrderID string) (store.PendingOrder, bool, error)
	UnknownOrders(ctx context.Context) ([]store.PendingOrder, error)
	SaveTrade(ctx context.Context, t store.Trade) error
	SavePosition(ctx context.Context, p store.Position) error
}

type Config struct {
	OrderType     exchange.OrderType
	StatusRetries int
	RetryDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.OrderType == "" {
		c.OrderType = exchange.OrderMarket
	}
	if c.StatusRetries <= 0 {
		c.StatusRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	return c
}

type Manager struct {
	exch   exchange.Exchange
	ledger Ledger
	cfg    Config

	mu      sync.Mutex
	results map[string]Fill

	newID func() string
	clock func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewManager(exch exchange.Exchange, ledger Ledger, cfg Config) *Manager {
	return &Manager{
		exch:    exch,
		ledger:  ledger,
		cfg:     cfg.withDefaults(),
		results: make(map[string]Fill),
		newID:   uuid.NewString,
		clock:   time.Now,
		sleep:   sleepCtx,
	}
}

// Execute submits the order under a fresh client ID.
func (m *Manager) Execute(ctx context.Context, order risk.ApprovedOrder, meta Meta) (Fill, error) {
	return m.ExecuteWithID(ctx, order, m.newID(), meta)
}

// ExecuteWithID is the idempotent form: calling it twice with the same
// client ID returns the first call's outcome without touching the
// exchange again.
func (m *Manager) ExecuteWithID(ctx context.Context, order risk.ApprovedOrder, clientOrderID string, meta Meta) (Fill, error) {
	if fill, ok := m.recorded(clientOrderID); ok {
		return fill, nil
	}
	if fill, ok, err := m.recordedInStore(ctx, clientOrderID); err != nil {
		return Fill{}, err
	} else if ok {
		m.remember(fill)
		return fill, nil
	}

	qty, _ := order.Quantity.Float64()
	price, _ := order.Price.Float64()
	stop, _ := order.StopLoss.Float64()
	take, _ := order.TakeProfit.Float64()

	// The row carries everything settlement needs so a parked order can
	// still be settled by a later resolution pass or another process.
	pending := store.PendingOrder{
		ClientOrderID: clientOrderID,
		SessionID:     meta.SessionID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		OrderType:     string(m.cfg.OrderType),
		Quantity:      qty,
		Price:         price,
		StopLoss:      stop,
		TakeProfit:    take,
		State:         store.OrderPending,
		CreatedAt:     m.clock(),
	}
	// Never submit an order whose existence is not on disk.
	if err := m.ledger.SavePendingOrder(ctx, pending); err != nil {
		return Fill{}, fmt.Errorf("persist pending order: %w", err)
	}

	req := exchange.OrderRequest{
		ClientOrderID: clientOrderID,
		Symbol:        order.Symbol,
		Side:          exchange.Side(order.Side),
		Type:          m.cfg.OrderType,
		Quantity:      qty,
	}
	switch m.cfg.OrderType {
	case exchange.OrderLimit:
		req.Price = price
	case exchange.OrderStopLoss:
		req.StopPrice = stop
	}

	result, err := m.exch.PlaceOrder(ctx, req)
	if err != nil {
		result, err = m.reconcile(ctx, pending, err)
		if err != nil {
			return Fill{}, err
		}
	}
	if result.Status == exchange.StatusNew {
		result, err = m.awaitFinal(ctx, pending, result)
		if err != nil {
			return Fill{}, err
		}
	}

	return m.settle(ctx, order, pending, result, meta)
}

func (m *Manager) recorded(clientOrderID string) (Fill, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fill, ok := m.results[clientOrderID]
	return fill, ok
}

func (m *Manager) remember(fill Fill) {
	m.mu.Lock()
	m.results[fill.ClientOrderID] = fill
	m.mu.Unlock()
}

// recordedInStore rebuilds the outcome of an order settled before a
// restart.
func (m *Manager) recordedInStore(ctx context.Context, clientOrderID string) (Fill, bool, error) {
	o, ok, err := m.ledger.PendingOrder(ctx, clientOrderID)
	if err != nil || !ok {
		return Fill{}, false, err
	}
	switch o.State {
	case store.OrderFilled:
		return Fill{
			ClientOrderID: o.ClientOrderID,
			OrderID:       o.ExchangeOrderID,
			Symbol:        o.Symbol,
			Side:          o.Side,
			Quantity:      o.FilledQty,
			Price:         o.FilledPrice,
			Notional:      o.FilledQty * o.FilledPrice,
			FilledAt:      o.UpdatedAt,
		}, true, nil
	case store.OrderRejected:
		return Fill{
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          o.Side,
			Rejected:      true,
			Reason:        o.Reason,
		}, true, nil
	default:
		return Fill{}, false, nil
	}
}

// reconcile resolves a failed submit by querying status by client ID.
// Not-found means the order never landed and the failure is definitive;
// a found order continues as if the submit had answered.
func (m *Manager) reconcile(ctx context.Context, pending store.PendingOrder, submitErr error) (exchange.OrderResult, error) {
	logger.Warnf("execution: submit failed for %s (%s), reconciling: %v", pending.ClientOrderID, pending.Symbol, submitErr)
	for attempt := 0; attempt < m.cfg.StatusRetries; attempt++ {
		result, err := m.exch.GetOrderStatus(ctx, pending.Symbol, pending.ClientOrderID)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, exchange.ErrOrderNotFound) {
			pending.State = store.OrderAbandoned
			pending.Reason = submitErr.Error()
			m.persistPending(ctx, pending)
			return exchange.OrderResult{}, fmt.Errorf("order %s never reached exchange: %w", pending.ClientOrderID, submitErr)
		}
		if serr := m.sleep(ctx, m.cfg.RetryDelay); serr != nil {
			break
		}
	}
	pending.State = store.OrderUnknown
	pending.Reason = submitErr.Error()
	m.persistPending(ctx, pending)
	return exchange.OrderResult{}, &AmbiguousError{ClientOrderID: pending.ClientOrderID, Err: submitErr}
}

// awaitFinal polls a not-yet-final order. Running out of polls is
// ambiguous, not a failure.
func (m *Manager) awaitFinal(ctx context.Context, pending store.PendingOrder, last exchange.OrderResult) (exchange.OrderResult, error) {
	for attempt := 0; attempt < m.cfg.StatusRetries; attempt++ {
		if err := m.sleep(ctx, m.cfg.RetryDelay); err != nil {
			break
		}
		result, err := m.exch.GetOrderStatus(ctx, pending.Symbol, pending.ClientOrderID)
		if err != nil {
			continue
		}
		last = result
		if result.Status != exchange.StatusNew {
			return result, nil
		}
	}
	pending.State = store.OrderUnknown
	pending.ExchangeOrderID = last.OrderID
	m.persistPending(ctx, pending)
	return exchange.OrderResult{}, &AmbiguousError{ClientOrderID: pending.ClientOrderID, Err: fmt.Errorf("order still %s after %d polls", last.Status, m.cfg.StatusRetries)}
}

// ResolveUnknown re-queries every order parked after an ambiguous
// submit. Orders the exchange can now account for are settled exactly
// like a live fill; not-found orders are abandoned. Anything still
// unanswered stays parked for the next pass.
func (m *Manager) ResolveUnknown(ctx context.Context) ([]Fill, error) {
	parked, err := m.ledger.UnknownOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unknown orders: %w", err)
	}
	var fills []Fill
	for _, o := range parked {
		result, err := m.exch.GetOrderStatus(ctx, o.Symbol, o.ClientOrderID)
		if errors.Is(err, exchange.ErrOrderNotFound) {
			o.State = store.OrderAbandoned
			o.Reason = "not found on exchange after ambiguous submit"
			m.persistPending(ctx, o)
			fill := Fill{
				ClientOrderID: o.ClientOrderID,
				Symbol:        o.Symbol,
				Side:          o.Side,
				Rejected:      true,
				Reason:        o.Reason,
			}
			m.remember(fill)
			fills = append(fills, fill)
			continue
		}
		if err != nil {
			logger.Warnf("execution: order %s still unresolved: %v", o.ClientOrderID, err)
			continue
		}
		if result.Status == exchange.StatusNew {
			// Live at the exchange, keep it parked.
			continue
		}
		order := risk.ApprovedOrder{
			Symbol:     o.Symbol,
			Side:       decision.Action(o.Side),
			Quantity:   decimal.NewFromFloat(o.Quantity),
			Notional:   decimal.NewFromFloat(o.Quantity * o.Price),
			Price:      decimal.NewFromFloat(o.Price),
			StopLoss:   decimal.NewFromFloat(o.StopLoss),
			TakeProfit: decimal.NewFromFloat(o.TakeProfit),
		}
		fill, err := m.settle(ctx, order, o, result, Meta{SessionID: o.SessionID})
		if err != nil {
			return fills, err
		}
		logger.Infof("execution: parked order %s resolved as %s", o.ClientOrderID, result.Status)
		fills = append(fills, fill)
	}
	return fills, nil
}

// settle folds a final exchange result into the ledger and the in-memory
// outcome cache.
func (m *Manager) settle(ctx context.Context, order risk.ApprovedOrder, pending store.PendingOrder, result exchange.OrderResult, meta Meta) (Fill, error) {
	now := m.clock()
	pending.ExchangeOrderID = result.OrderID

	if result.Status != exchange.StatusFilled {
		pending.State = store.OrderRejected
		pending.Reason = result.Reason
		m.persistPending(ctx, pending)

		fill := Fill{
			ClientOrderID: pending.ClientOrderID,
			OrderID:       result.OrderID,
			Symbol:        order.Symbol,
			Side:          string(order.Side),
			Rejected:      true,
			Reason:        result.Reason,
		}
		if err := m.ledger.SaveTrade(ctx, store.Trade{
			ID:        pending.ClientOrderID,
			SessionID: meta.SessionID,
			Symbol:    order.Symbol,
			Side:      string(order.Side),
			Status:    store.TradeRejected,
			Reason:    result.Reason,
			Reasoning: meta.Reasoning,
			CreatedAt: now,
		}); err != nil {
			return Fill{}, fmt.Errorf("record rejected trade: %w", err)
		}
		m.remember(fill)
		return fill, nil
	}

	price := result.AvgPrice
	if price <= 0 {
		price, _ = order.Price.Float64()
	}
	fill := Fill{
		ClientOrderID: pending.ClientOrderID,
		OrderID:       result.OrderID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Quantity:      result.FilledQty,
		Price:         price,
		Notional:      result.FilledQty * price,
		FilledAt:      now,
	}

	pending.State = store.OrderFilled
	pending.FilledQty = fill.Quantity
	pending.FilledPrice = fill.Price
	m.persistPending(ctx, pending)

	trade := store.Trade{
		ID:        pending.ClientOrderID,
		SessionID: meta.SessionID,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Quantity:  fill.Quantity,
		Price:     fill.Price,
		Notional:  fill.Notional,
		Status:    store.TradeFilled,
		Reasoning: meta.Reasoning,
		CreatedAt: now,
	}
	if order.Side == decision.ActionSell && meta.EntryPrice > 0 {
		trade.PnL = (fill.Price - meta.EntryPrice) * fill.Quantity
	}
	if err := m.ledger.SaveTrade(ctx, trade); err != nil {
		return Fill{}, fmt.Errorf("record trade: %w", err)
	}

	if err := m.ledger.SavePosition(ctx, m.positionFor(order, fill, meta, now)); err != nil {
		return Fill{}, fmt.Errorf("record position: %w", err)
	}

	m.remember(fill)
	return fill, nil
}

func (m *Manager) positionFor(order risk.ApprovedOrder, fill Fill, meta Meta, now time.Time) store.Position {
	stop, _ := order.StopLoss.Float64()
	take, _ := order.TakeProfit.Float64()
	if order.Side == decision.ActionSell {
		return store.Position{
			Symbol:     order.Symbol,
			EntryPrice: meta.EntryPrice,
			Quantity:   fill.Quantity,
			Status:     store.PositionClosed,
			ClosedAt:   now,
		}
	}
	return store.Position{
		Symbol:     order.Symbol,
		EntryPrice: fill.Price,
		Quantity:   fill.Quantity,
		StopLoss:   stop,
		TakeProfit: take,
		Status:     store.PositionOpen,
		OpenedAt:   now,
	}
}

func (m *Manager) persistPending(ctx context.Context, pending store.PendingOrder) {
	if err := m.ledger.SavePendingOrder(ctx, pending); err != nil {
		logger.Errorf("execution: failed to persist order %s state %s: %v", pending.ClientOrderID, pending.State, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
