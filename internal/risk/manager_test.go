package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helmsman/internal/decision"
)

func buyDecision(symbol string, confidence float64) decision.Decision {
	return decision.Decision{Symbol: symbol, Action: decision.ActionBuy, Confidence: confidence}
}

func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg, NewPortfolio(cfg.Capital))
	require.NoError(t, err)
	return m
}

func rejectCode(t *testing.T, err error) RejectCode {
	t.Helper()
	var re *RejectError
	require.True(t, errors.As(err, &re), "expected RejectError, got %v", err)
	return re.Code
}

func TestAuthorizeSizesWithinProfileCeiling(t *testing.T) {
	for _, profile := range []string{"conservative", "balanced", "aggressive"} {
		for _, kelly := range []bool{false, true} {
			m := newManager(t, Config{
				Profile: profile, Capital: 10000,
				MaxPositions: 5, MinNotional: 10, KellySizing: kelly,
			})
			// Push Kelly as high as it can go.
			m.UpdateStats(Stats{WinRate: 0.9, Payoff: 3})

			order, err := m.Authorize(buyDecision("BTC/USDT", 0.9), 50000)
			require.NoError(t, err, "%s kelly=%v", profile, kelly)

			ceiling := decimal.NewFromFloat(10000 * profiles[profile].MaxFraction)
			assert.True(t, order.Notional.LessThanOrEqual(ceiling),
				"%s kelly=%v: notional %s exceeds ceiling %s", profile, kelly, order.Notional, ceiling)
			assert.True(t, order.Quantity.Mul(order.Price).Sub(order.Notional).Abs().LessThan(decimal.NewFromFloat(0.01)))
		}
	}
}

func TestKellyIsAdvisoryCeilingIsBinding(t *testing.T) {
	assert.Equal(t, 0.05, kellyFraction(0.9, 3), "kelly clamps at 5%")
	assert.Equal(t, 0.001, kellyFraction(0.3, 1), "negative edge clamps at floor")
	assert.Equal(t, 0.01, kellyFraction(0, 2), "degenerate inputs fall back to 1%")
	assert.Equal(t, 0.01, kellyFraction(0.6, 0))

	// Conservative ceiling 3% stays above a clamped Kelly of 5%? No:
	// kelly 5% > 3% ceiling, so the ceiling wins.
	m := newManager(t, Config{Profile: "conservative", Capital: 10000, MaxPositions: 5, MinNotional: 10, KellySizing: true})
	m.UpdateStats(Stats{WinRate: 0.9, Payoff: 3})
	order, err := m.Authorize(buyDecision("ETH/USDT", 0.9), 3000)
	require.NoError(t, err)
	assert.True(t, order.Notional.Equal(decimal.NewFromInt(300)), "got %s", order.Notional)
}

func TestAuthorizeRejectsLowConfidence(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 5, MinNotional: 10, MinConfidence: 0.75})

	for _, conf := range []float64{0, 0.3, 0.5, 0.74} {
		_, err := m.Authorize(buyDecision("BTC/USDT", conf), 50000)
		assert.Equal(t, RejectConfidenceFloor, rejectCode(t, err), "confidence %.2f", conf)
	}
	assert.Equal(t, 0, m.Portfolio().OpenCount(), "rejects must not leak reservations")
}

func TestAuthorizeRejectsHold(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 5, MinNotional: 10})
	d := decision.Decision{Symbol: "BTC/USDT", Action: decision.ActionHold, Confidence: 0.9}
	_, err := m.Authorize(d, 50000)
	assert.Equal(t, RejectHold, rejectCode(t, err))
}

func TestAuthorizeRejectsAtDailyLossCap(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 5, MinNotional: 10, MaxDailyLossPct: 0.05})
	// Cap is 500; accumulate 99% of it.
	m.Portfolio().RecordLoss(decimal.NewFromInt(495))

	_, err := m.Authorize(buyDecision("BTC/USDT", 0.9), 50000)
	assert.Equal(t, RejectDailyLossCap, rejectCode(t, err))
	assert.Equal(t, 0, m.Portfolio().OpenCount())
}

func TestAuthorizeRejectsMaxPositions(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 1, MinNotional: 10})

	_, err := m.Authorize(buyDecision("BTC/USDT", 0.9), 50000)
	require.NoError(t, err)

	_, err = m.Authorize(buyDecision("ETH/USDT", 0.9), 3000)
	assert.Equal(t, RejectMaxPositions, rejectCode(t, err))
}

func TestAuthorizeRejectsDuplicateSymbol(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 5, MinNotional: 10})

	_, err := m.Authorize(buyDecision("BTC/USDT", 0.9), 50000)
	require.NoError(t, err)

	_, err = m.Authorize(buyDecision("BTC/USDT", 0.9), 50000)
	assert.Equal(t, RejectMaxPositions, rejectCode(t, err))
}

func TestAuthorizeRejectsBelowMinNotional(t *testing.T) {
	m := newManager(t, Config{Profile: "conservative", Capital: 100, MaxPositions: 5, MinNotional: 10})
	// 3% of 100 = 3, below the 10 floor.
	_, err := m.Authorize(buyDecision("BTC/USDT", 0.9), 50000)
	assert.Equal(t, RejectMinNotional, rejectCode(t, err))
}

func TestReleaseFreesTheSlot(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 1, MinNotional: 10})

	_, err := m.Authorize(buyDecision("BTC/USDT", 0.9), 50000)
	require.NoError(t, err)
	m.Portfolio().Release("BTC/USDT")

	_, err = m.Authorize(buyDecision("ETH/USDT", 0.9), 3000)
	assert.NoError(t, err)
}

func TestAuthorizeSellRequiresOpenPosition(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 5, MinNotional: 10})

	d := decision.Decision{Symbol: "BTC/USDT", Action: decision.ActionSell, Confidence: 0.9}
	_, err := m.Authorize(d, 50000)
	assert.Equal(t, RejectHold, rejectCode(t, err))

	m.Portfolio().Reserve("BTC/USDT", decimal.NewFromInt(700), 5)
	m.Portfolio().Commit("BTC/USDT", decimal.NewFromInt(700))

	order, err := m.Authorize(d, 50000)
	require.NoError(t, err)
	assert.Equal(t, decision.ActionSell, order.Side)
	assert.True(t, order.Notional.Equal(decimal.NewFromInt(700)))
}

func TestExitPricesFollowProfile(t *testing.T) {
	m := newManager(t, Config{Profile: "balanced", Capital: 10000, MaxPositions: 5, MinNotional: 10})

	order, err := m.Authorize(buyDecision("BTC/USDT", 0.9), 100)
	require.NoError(t, err)
	// Balanced: 3% stop, 2x reward.
	assert.True(t, order.StopLoss.Equal(decimal.NewFromInt(97)), "stop %s", order.StopLoss)
	assert.True(t, order.TakeProfit.Equal(decimal.NewFromInt(106)), "take %s", order.TakeProfit)
}

func TestPortfolioDailyLossResetsAtMidnightUTC(t *testing.T) {
	p := NewPortfolio(10000)
	now := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	p.clock = func() time.Time { return now }
	p.dayKey = now.UTC().Format("2006-01-02")

	p.RecordLoss(decimal.NewFromInt(300))
	assert.True(t, p.DailyLoss().Equal(decimal.NewFromInt(300)))

	now = now.Add(2 * time.Hour)
	assert.True(t, p.DailyLoss().IsZero(), "loss accumulator must reset on day change")
}

func TestPortfolioCloseAccumulatesLoss(t *testing.T) {
	p := NewPortfolio(10000)
	p.Reserve("BTC/USDT", decimal.NewFromInt(700), 5)
	p.Commit("BTC/USDT", decimal.NewFromInt(700))
	assert.Equal(t, 1, p.OpenCount())

	p.Close("BTC/USDT", decimal.NewFromInt(-50))
	assert.Equal(t, 0, p.OpenCount())
	assert.True(t, p.DailyLoss().Equal(decimal.NewFromInt(50)))

	// Profitable closes leave the accumulator alone.
	p.Reserve("ETH/USDT", decimal.NewFromInt(300), 5)
	p.Commit("ETH/USDT", decimal.NewFromInt(300))
	p.Close("ETH/USDT", decimal.NewFromInt(120))
	assert.True(t, p.DailyLoss().Equal(decimal.NewFromInt(50)))
}
