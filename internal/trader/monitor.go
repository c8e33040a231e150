package trader

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"helmsman/internal/decision"
	"helmsman/internal/execution"
	"helmsman/internal/gateway/notifier"
	"helmsman/internal/logger"
	"helmsman/internal/risk"
)

// MonitorPositions checks every open position against its stop-loss and
// take-profit. Protective closes bypass the decision pipeline: the exit
// was already authorized when the position opened.
func (t *Trader) MonitorPositions(ctx context.Context) {
	positions, err := t.ledger.OpenPositions(ctx)
	if err != nil {
		logger.Errorf("trader: monitor cannot load positions: %v", err)
		return
	}

	for _, pos := range positions {
		if t.isParked(pos.Symbol) {
			// An unresolved order owns this symbol; closing now could
			// double-sell once it resolves as a fill.
			continue
		}
		price, err := t.markets.GetSpotPrice(ctx, pos.Symbol)
		if err != nil {
			logger.Warnf("trader: monitor has no price for %s: %v", pos.Symbol, err)
			continue
		}

		var reason string
		switch {
		case pos.StopLoss > 0 && price <= pos.StopLoss:
			reason = fmt.Sprintf("stop-loss hit: %.4f <= %.4f", price, pos.StopLoss)
		case pos.TakeProfit > 0 && price >= pos.TakeProfit:
			reason = fmt.Sprintf("take-profit hit: %.4f >= %.4f", price, pos.TakeProfit)
		default:
			continue
		}

		if !t.locks.TryLock(pos.Symbol) {
			// A decision cycle owns this symbol right now.
			continue
		}
		t.closePosition(ctx, pos.Symbol, pos.EntryPrice, pos.Quantity, price, reason)
		t.locks.Unlock(pos.Symbol)
	}
}

func (t *Trader) closePosition(ctx context.Context, sym string, entry, qty, price float64, reason string) {
	order := risk.ApprovedOrder{
		Symbol:   sym,
		Side:     decision.ActionSell,
		Quantity: decimal.NewFromFloat(qty),
		Notional: decimal.NewFromFloat(qty * price),
		Price:    decimal.NewFromFloat(price),
	}
	meta := execution.Meta{SessionID: t.cfg.SessionID, Reasoning: reason, EntryPrice: entry}

	fill, err := t.exec.Execute(ctx, order, meta)
	if err != nil {
		logger.Errorf("trader: protective close failed for %s: %v", sym, err)
		t.publish(notifier.Event{
			Type:   notifier.EventExecutionErr,
			Symbol: sym,
			Action: "SELL",
			Detail: fmt.Sprintf("protective close failed (%s): %v", reason, err),
			At:     t.clock(),
		})
		return
	}
	if fill.Rejected {
		logger.Errorf("trader: protective close rejected for %s: %s", sym, fill.Reason)
		t.publish(notifier.Event{
			Type:   notifier.EventExecutionErr,
			Symbol: sym,
			Action: "SELL",
			Detail: fmt.Sprintf("protective close rejected (%s): %s", reason, fill.Reason),
			At:     t.clock(),
		})
		return
	}

	pnl := (fill.Price - entry) * fill.Quantity
	t.riskMgr.Portfolio().Close(sym, decimal.NewFromFloat(pnl))
	logger.Infof("trader: closed %s at %.4f (%s), pnl=%+.2f", sym, fill.Price, reason, pnl)
	t.publish(notifier.Event{
		Type:      notifier.EventTradeClosed,
		Symbol:    sym,
		Action:    "SELL",
		Price:     fill.Price,
		Quantity:  fill.Quantity,
		PnL:       pnl,
		Reasoning: reason,
		At:        t.clock(),
	})
}
