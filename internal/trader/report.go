package trader

import (
	"context"
	"fmt"

	"helmsman/internal/gateway/notifier"
	"helmsman/internal/logger"
)

// Report publishes session totals. The totals come from the trade
// ledger, not in-memory counters, so a restart cannot skew them.
func (t *Trader) Report(ctx context.Context) {
	sess, err := t.ledger.LoadSession(ctx, t.cfg.SessionID)
	if err != nil {
		logger.Errorf("trader: report cannot load session: %v", err)
		t.publish(notifier.Event{
			Type:   notifier.EventStoreErr,
			Detail: fmt.Sprintf("session %s unreadable: %v", t.cfg.SessionID, err),
			At:     t.clock(),
		})
		return
	}

	positions, err := t.ledger.OpenPositions(ctx)
	openCount := len(positions)
	if err != nil {
		logger.Warnf("trader: report cannot count open positions: %v", err)
		openCount = -1
	}

	t.publish(notifier.Event{
		Type: notifier.EventReport,
		PnL:  sess.RealizedPnL,
		Detail: fmt.Sprintf("session %s: %d filled trades, %d open positions, running since %s",
			sess.ID, sess.TradeCount, openCount, sess.StartedAt.Format("2006-01-02 15:04")),
		At: t.clock(),
	})
	logger.Infof("trader: report trades=%d pnl=%+.2f open=%d", sess.TradeCount, sess.RealizedPnL, openCount)
}
