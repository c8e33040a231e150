// Package trader orchestrates one decision cycle per symbol: fetch,
// derive, enrich, decide, authorize, execute, persist. A symbol's
// failure degrades that symbol only; the cycle always reaches the rest.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"helmsman/internal/decision"
	"helmsman/internal/execution"
	"helmsman/internal/gateway/notifier"
	"helmsman/internal/logger"
	"helmsman/internal/market"
	"helmsman/internal/risk"
	"helmsman/internal/scheduler"
	"helmsman/internal/sentiment"
	"helmsman/internal/signal"
	"helmsman/internal/store"
)

type MarketData interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
	GetSpotPrice(ctx context.Context, symbol string) (float64, error)
}

type SentimentScorer interface {
	Score(ctx context.Context, symbol, corpus string) sentiment.Result
}

type Decider interface {
	Decide(symbol string, b signal.Bundle, s sentiment.Result, r decision.RiskContext, t decision.TimingContext) decision.Decision
}

type Executor interface {
	Execute(ctx context.Context, order risk.ApprovedOrder, meta execution.Meta) (execution.Fill, error)
	ResolveUnknown(ctx context.Context) ([]execution.Fill, error)
}

type Publisher interface {
	Publish(e notifier.Event) error
}

// Ledger is the store surface the trader reads and bootstraps from.
type Ledger interface {
	OpenPositions(ctx context.Context) ([]store.Position, error)
	UnknownOrders(ctx context.Context) ([]store.PendingOrder, error)
	TradesSince(ctx context.Context, sessionID string, since time.Time) ([]store.Trade, error)
	SaveSession(ctx context.Context, s store.Session) error
	LoadSession(ctx context.Context, id string) (store.Session, error)
	Reconcile(ctx context.Context) (int, error)
}

type Config struct {
	SessionID       string
	Symbols         []string
	Interval        string
	CandleLimit     int
	MaxConcurrent   int
	CycleBudget     time.Duration
	MaxPositions    int
	MaxDailyLossPct float64
	ReviewLookback  time.Duration
}

func (c Config) withDefaults() Config {
	if c.CandleLimit <= 0 {
		c.CandleLimit = 120
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.CycleBudget <= 0 {
		c.CycleBudget = 2 * time.Minute
	}
	if c.Interval == "" {
		c.Interval = "15m"
	}
	if c.ReviewLookback <= 0 {
		c.ReviewLookback = 7 * 24 * time.Hour
	}
	return c
}

type Trader struct {
	cfg     Config
	signals signal.Settings

	markets MarketData
	scorer  SentimentScorer
	engine  Decider
	riskMgr *risk.Manager
	exec    Executor
	ledger  Ledger
	notify  Publisher

	locks *scheduler.KeyedLock
	clock func() time.Time

	// parked holds symbols with an order in the unknown state. No new
	// order may open or close on a parked symbol until resolution.
	parkedMu sync.Mutex
	parked   map[string]struct{}
}

func New(cfg Config, signals signal.Settings, markets MarketData, scorer SentimentScorer, engine Decider,
	riskMgr *risk.Manager, exec Executor, ledger Ledger, notify Publisher) *Trader {
	return &Trader{
		cfg:     cfg.withDefaults(),
		signals: signals,
		markets: markets,
		scorer:  scorer,
		engine:  engine,
		riskMgr: riskMgr,
		exec:    exec,
		ledger:  ledger,
		notify:  notify,
		locks:   scheduler.NewKeyedLock(),
		clock:   time.Now,
		parked:  make(map[string]struct{}),
	}
}

func (t *Trader) park(symbol string) {
	t.parkedMu.Lock()
	t.parked[symbol] = struct{}{}
	t.parkedMu.Unlock()
}

func (t *Trader) unpark(symbol string) {
	t.parkedMu.Lock()
	delete(t.parked, symbol)
	t.parkedMu.Unlock()
}

func (t *Trader) isParked(symbol string) bool {
	t.parkedMu.Lock()
	defer t.parkedMu.Unlock()
	_, ok := t.parked[symbol]
	return ok
}

// Bootstrap restores the portfolio from persisted open positions and
// registers the session.
func (t *Trader) Bootstrap(ctx context.Context) error {
	if err := t.ledger.SaveSession(ctx, store.Session{
		ID:        t.cfg.SessionID,
		StartedAt: t.clock(),
		Status:    "ACTIVE",
	}); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	positions, err := t.ledger.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}
	for _, pos := range positions {
		notional := decimal.NewFromFloat(pos.EntryPrice * pos.Quantity)
		t.riskMgr.Portfolio().RestorePosition(pos.Symbol, notional)
		logger.Infof("trader: restored open position %s qty=%.8f entry=%.4f", pos.Symbol, pos.Quantity, pos.EntryPrice)
	}

	// Orders parked before the restart still block their symbols until
	// the review cadence resolves them against the exchange.
	parked, err := t.ledger.UnknownOrders(ctx)
	if err != nil {
		return fmt.Errorf("load parked orders: %w", err)
	}
	for _, o := range parked {
		t.park(o.Symbol)
		logger.Warnf("trader: order %s on %s still unresolved, symbol blocked until resolution", o.ClientOrderID, o.Symbol)
	}
	return nil
}

// RunCycle runs one decision pass over all configured symbols under the
// cycle's wall-clock budget. Symbols already mid-cycle are skipped.
func (t *Trader) RunCycle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CycleBudget)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(t.cfg.MaxConcurrent)
	for _, sym := range t.cfg.Symbols {
		sym := sym
		g.Go(func() error {
			if !t.locks.TryLock(sym) {
				logger.Warnf("trader: cycle for %s still running, skipping this tick", sym)
				return nil
			}
			defer t.locks.Unlock(sym)
			t.runSymbol(ctx, sym)
			return nil
		})
	}
	g.Wait()
}

func (t *Trader) runSymbol(ctx context.Context, sym string) {
	if t.isParked(sym) {
		logger.Warnf("trader: %s has an unresolved order, skipping this tick", sym)
		return
	}
	candles, err := t.markets.GetCandles(ctx, sym, t.cfg.Interval, t.cfg.CandleLimit)
	if err != nil {
		if errors.Is(err, market.ErrDataUnavailable) {
			logger.Warnf("trader: %s data unavailable, holding: %v", sym, err)
		} else {
			logger.Errorf("trader: %s candle fetch failed: %v", sym, err)
		}
		return
	}
	if d, ok := scheduler.ParseIntervalDuration(t.cfg.Interval); ok {
		candles = market.DropUnclosed(candles, d)
	}

	bundle, err := signal.Compute(candles, t.signals)
	if err != nil {
		if errors.Is(err, signal.ErrInsufficientHistory) {
			logger.Warnf("trader: %s has %d candles, not enough history, skipping", sym, len(candles))
		} else {
			logger.Errorf("trader: %s signal computation failed: %v", sym, err)
		}
		return
	}

	sent := t.scorer.Score(ctx, sym, corpusFor(sym, bundle))

	portfolio := t.riskMgr.Portfolio()
	riskCtx := decision.RiskContext{
		PositionLoad: portfolio.PositionLoad(t.cfg.MaxPositions),
		LossLoad:     portfolio.LossLoad(t.cfg.MaxDailyLossPct),
		Volatility:   bandVolatility(bundle),
	}
	timingCtx := decision.TimingContext{
		FreshData:   t.freshData(candles),
		VolumeRatio: bundle.VolumeRatio,
	}

	d := t.engine.Decide(sym, bundle, sent, riskCtx, timingCtx)
	logger.Infof("trader: %s decision=%s confidence=%.2f composite=%+.3f", sym, d.Action, d.Confidence, d.Composite)

	order, err := t.riskMgr.Authorize(d, bundle.LastClose)
	if err != nil {
		var rej *risk.RejectError
		if errors.As(err, &rej) {
			logger.Infof("trader: %s not authorized: %v", sym, rej)
		} else {
			logger.Errorf("trader: %s risk check failed: %v", sym, err)
		}
		return
	}

	t.submit(ctx, d, order)
}

// submit runs the approved order through execution and settles the
// portfolio reservation. Execution failures always reach the notifier.
func (t *Trader) submit(ctx context.Context, d decision.Decision, order risk.ApprovedOrder) {
	portfolio := t.riskMgr.Portfolio()
	meta := execution.Meta{SessionID: t.cfg.SessionID, Reasoning: d.Reasoning}
	if order.Side == decision.ActionSell {
		meta.EntryPrice = t.entryPrice(ctx, order.Symbol)
	}

	fill, err := t.exec.Execute(ctx, order, meta)
	if err != nil {
		var amb *execution.AmbiguousError
		if errors.As(err, &amb) {
			// The order may be live on the exchange. Hold the slot and
			// block the symbol so nothing else trades it until the
			// parked order is resolved against the exchange.
			t.park(order.Symbol)
			logger.Warnf("trader: %s outcome unknown, holding reservation until resolution: %v", order.Symbol, err)
			t.publish(notifier.Event{
				Type:   notifier.EventExecutionErr,
				Symbol: order.Symbol,
				Action: string(order.Side),
				Detail: "order outcome unknown, parked for resolution: " + err.Error(),
				At:     t.clock(),
			})
			return
		}
		if order.Side == decision.ActionBuy {
			portfolio.Release(order.Symbol)
		}
		logger.Errorf("trader: execution failed for %s: %v", order.Symbol, err)
		t.publish(notifier.Event{
			Type:   notifier.EventExecutionErr,
			Symbol: order.Symbol,
			Action: string(order.Side),
			Detail: err.Error(),
			At:     t.clock(),
		})
		return
	}

	if fill.Rejected {
		if order.Side == decision.ActionBuy {
			portfolio.Release(order.Symbol)
		}
		logger.Warnf("trader: order rejected for %s: %s", order.Symbol, fill.Reason)
		t.publish(notifier.Event{
			Type:   notifier.EventTradeRejected,
			Symbol: order.Symbol,
			Action: string(order.Side),
			Detail: fill.Reason,
			At:     t.clock(),
		})
		return
	}

	switch order.Side {
	case decision.ActionBuy:
		portfolio.Commit(order.Symbol, decimal.NewFromFloat(fill.Notional))
		t.publish(notifier.Event{
			Type:       notifier.EventTradeOpened,
			Symbol:     order.Symbol,
			Action:     string(order.Side),
			Price:      fill.Price,
			Quantity:   fill.Quantity,
			StopLoss:   toFloat(order.StopLoss),
			TakeProfit: toFloat(order.TakeProfit),
			Confidence: d.Confidence,
			Reasoning:  d.Reasoning,
			At:         t.clock(),
		})
	case decision.ActionSell:
		pnl := (fill.Price - meta.EntryPrice) * fill.Quantity
		portfolio.Close(order.Symbol, decimal.NewFromFloat(pnl))
		t.publish(notifier.Event{
			Type:       notifier.EventTradeClosed,
			Symbol:     order.Symbol,
			Action:     string(order.Side),
			Price:      fill.Price,
			Quantity:   fill.Quantity,
			PnL:        pnl,
			Confidence: d.Confidence,
			Reasoning:  d.Reasoning,
			At:         t.clock(),
		})
	}
}

func (t *Trader) entryPrice(ctx context.Context, sym string) float64 {
	positions, err := t.ledger.OpenPositions(ctx)
	if err != nil {
		logger.Warnf("trader: cannot load entry price for %s: %v", sym, err)
		return 0
	}
	for _, pos := range positions {
		if pos.Symbol == sym {
			return pos.EntryPrice
		}
	}
	return 0
}

// freshData checks the newest candle closed within two intervals of now.
func (t *Trader) freshData(candles []market.Candle) bool {
	if len(candles) == 0 {
		return false
	}
	d, ok := scheduler.ParseIntervalDuration(t.cfg.Interval)
	if !ok {
		return true
	}
	last := candles[len(candles)-1]
	closeAt := time.UnixMilli(last.OpenTime).Add(d)
	return t.clock().Sub(closeAt) < 2*d
}

func (t *Trader) publish(e notifier.Event) {
	if t.notify == nil {
		return
	}
	if err := t.notify.Publish(e); err != nil {
		logger.Warnf("trader: notify %s failed: %v", e.Type, err)
	}
}

func corpusFor(sym string, b signal.Bundle) string {
	return fmt.Sprintf("%s last=%.4f rsi=%.1f macd_hist=%+.5f ema_fast=%.4f ema_slow=%.4f volume_ratio=%.2f support=%.4f resistance=%.4f",
		sym, b.LastClose, b.RSI, b.MACDHist, b.EMAFast, b.EMASlow, b.VolumeRatio, b.Support, b.Resistance)
}

// bandVolatility approximates short-term volatility as band width over
// the middle band.
func bandVolatility(b signal.Bundle) float64 {
	if b.BandMiddle <= 0 {
		return 0
	}
	return (b.BandUpper - b.BandLower) / b.BandMiddle / 2
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
