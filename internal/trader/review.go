package trader

import (
	"context"

	"github.com/shopspring/decimal"

	"helmsman/internal/decision"
	"helmsman/internal/gateway/notifier"
	"helmsman/internal/logger"
	"helmsman/internal/risk"
	"helmsman/internal/store"
)

// Review recomputes win rate and payoff ratio over recent closed trades
// and feeds them to the Kelly estimator. It also retries journal
// reconciliation so a recovered primary drains the fallback, and
// resolves orders parked after an ambiguous submit.
func (t *Trader) Review(ctx context.Context) {
	if n, err := t.ledger.Reconcile(ctx); err != nil {
		logger.Warnf("trader: store reconciliation incomplete after %d entries: %v", n, err)
	}
	t.resolveParked(ctx)

	since := t.clock().Add(-t.cfg.ReviewLookback)
	trades, err := t.ledger.TradesSince(ctx, t.cfg.SessionID, since)
	if err != nil {
		logger.Errorf("trader: review cannot load trades: %v", err)
		return
	}

	stats, closed := reviewStats(trades)
	if closed < 5 {
		// Too few closes to beat the cautious defaults.
		logger.Infof("trader: review has %d closed trades, keeping sizing stats", closed)
		return
	}
	t.riskMgr.UpdateStats(stats)
	logger.Infof("trader: review over %d closes -> win_rate=%.2f payoff=%.2f", closed, stats.WinRate, stats.Payoff)
}

// resolveParked settles orders whose outcome was unknown at submit
// time. A resolved BUY fill converts the held reservation into an open
// position; a rejected or abandoned order frees the slot.
func (t *Trader) resolveParked(ctx context.Context) {
	fills, err := t.exec.ResolveUnknown(ctx)
	if err != nil {
		logger.Warnf("trader: parked-order resolution incomplete: %v", err)
	}
	portfolio := t.riskMgr.Portfolio()
	for _, fill := range fills {
		t.unpark(fill.Symbol)
		if fill.Rejected {
			if fill.Side == string(decision.ActionBuy) {
				portfolio.Release(fill.Symbol)
			}
			logger.Warnf("trader: parked order %s resolved as rejected: %s", fill.ClientOrderID, fill.Reason)
			t.publish(notifier.Event{
				Type:   notifier.EventTradeRejected,
				Symbol: fill.Symbol,
				Action: fill.Side,
				Detail: fill.Reason,
				At:     t.clock(),
			})
			continue
		}
		switch fill.Side {
		case string(decision.ActionBuy):
			portfolio.Commit(fill.Symbol, decimal.NewFromFloat(fill.Notional))
			logger.Infof("trader: parked order %s resolved as filled, position opened", fill.ClientOrderID)
			t.publish(notifier.Event{
				Type:     notifier.EventTradeOpened,
				Symbol:   fill.Symbol,
				Action:   fill.Side,
				Price:    fill.Price,
				Quantity: fill.Quantity,
				At:       t.clock(),
			})
		case string(decision.ActionSell):
			// Entry price is gone by the time a close resolves late;
			// the daily-loss accumulator only ever under-counts here.
			portfolio.Close(fill.Symbol, decimal.Zero)
			logger.Infof("trader: parked order %s resolved as filled, position closed", fill.ClientOrderID)
			t.publish(notifier.Event{
				Type:     notifier.EventTradeClosed,
				Symbol:   fill.Symbol,
				Action:   fill.Side,
				Price:    fill.Price,
				Quantity: fill.Quantity,
				At:       t.clock(),
			})
		}
	}
}

// reviewStats folds filled SELLs into win rate and payoff ratio. BUY
// fills open positions and carry no realized pnl.
func reviewStats(trades []store.Trade) (risk.Stats, int) {
	var wins, losses int
	var winSum, lossSum float64
	for _, tr := range trades {
		if tr.Status != store.TradeFilled || tr.Side != "SELL" {
			continue
		}
		if tr.PnL > 0 {
			wins++
			winSum += tr.PnL
		} else {
			losses++
			lossSum += -tr.PnL
		}
	}
	closed := wins + losses
	if closed == 0 || wins == 0 || losses == 0 || lossSum <= 0 {
		return risk.Stats{}, closed
	}
	return risk.Stats{
		WinRate: float64(wins) / float64(closed),
		Payoff:  (winSum / float64(wins)) / (lossSum / float64(losses)),
	}, closed
}
