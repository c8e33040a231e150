// Package risk sizes orders and enforces the portfolio limits that a
// decision alone cannot see: position count, daily loss, minimum
// notional, and the profile's capital-fraction ceiling.
package risk

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"helmsman/internal/decision"
)

type RejectCode string

const (
	RejectHold            RejectCode = "HOLD"
	RejectConfidenceFloor RejectCode = "CONFIDENCE_FLOOR"
	RejectMaxPositions    RejectCode = "MAX_POSITIONS"
	RejectDailyLossCap    RejectCode = "DAILY_LOSS_CAP"
	RejectMinNotional     RejectCode = "MIN_NOTIONAL"
)

// RejectError is non-fatal: the cycle logs it and moves to the next
// symbol.
type RejectError struct {
	Code   RejectCode
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("risk rejected [%s]: %s", e.Code, e.Reason)
}

func reject(code RejectCode, format string, args ...any) error {
	return &RejectError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ApprovedOrder carries everything the execution layer needs. The
// portfolio slot is already reserved when it is returned; the caller
// must Commit or Release it.
type ApprovedOrder struct {
	Symbol     string
	Side       decision.Action
	Quantity   decimal.Decimal
	Notional   decimal.Decimal
	Price      decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Fraction   float64
}

// Stats feeds the Kelly refinement. Updated by the periodic trade
// review; the zero value is replaced by cautious defaults.
type Stats struct {
	WinRate float64 // fraction of closed trades with positive pnl
	Payoff  float64 // avg win / avg loss
}

type Config struct {
	Profile         string
	Capital         float64
	MaxPositions    int
	MaxDailyLossPct float64
	MinNotional     float64
	KellySizing     bool
	MinConfidence   float64
}

type Manager struct {
	mu      sync.RWMutex
	profile Profile
	cfg     Config
	stats   Stats

	portfolio *Portfolio
}

func NewManager(cfg Config, portfolio *Portfolio) (*Manager, error) {
	profile, err := ProfileByName(cfg.Profile)
	if err != nil {
		return nil, err
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.75
	}
	return &Manager{profile: profile, cfg: cfg, portfolio: portfolio, stats: Stats{WinRate: 0.5, Payoff: 1.5}}, nil
}

func (m *Manager) Portfolio() *Portfolio { return m.portfolio }

func (m *Manager) ProfileName() string { return m.profile.Name }

// UpdateStats replaces the Kelly inputs with fresh review results.
func (m *Manager) UpdateStats(s Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.WinRate > 0 && s.WinRate < 1 && s.Payoff > 0 {
		m.stats = s
	}
}

// Authorize validates and sizes a decision. A nil error means the
// portfolio slot is reserved and the order may be sent.
func (m *Manager) Authorize(d decision.Decision, price float64) (ApprovedOrder, error) {
	if d.Action == decision.ActionHold {
		return ApprovedOrder{}, reject(RejectHold, "%s: no actionable signal", d.Symbol)
	}
	if d.Confidence < m.cfg.MinConfidence {
		return ApprovedOrder{}, reject(RejectConfidenceFloor, "%s: confidence %.2f below %.2f", d.Symbol, d.Confidence, m.cfg.MinConfidence)
	}
	if price <= 0 {
		return ApprovedOrder{}, reject(RejectMinNotional, "%s: no reference price", d.Symbol)
	}

	// SELL closes an existing position; sizing follows the held
	// notional, not a fresh capital fraction.
	if d.Action == decision.ActionSell {
		return m.authorizeClose(d, price)
	}

	fraction := m.sizingFraction()
	capital := m.portfolio.Capital()
	notional := capital.Mul(decimal.NewFromFloat(fraction))

	minNotional := decimal.NewFromFloat(m.cfg.MinNotional)
	if notional.LessThan(minNotional) {
		return ApprovedOrder{}, reject(RejectMinNotional, "%s: notional %s below exchange floor %s", d.Symbol, notional.StringFixed(2), minNotional.StringFixed(2))
	}

	if err := m.checkDailyLoss(d.Symbol, notional, capital); err != nil {
		return ApprovedOrder{}, err
	}

	if !m.portfolio.Reserve(d.Symbol, notional, m.cfg.MaxPositions) {
		return ApprovedOrder{}, reject(RejectMaxPositions, "%s: %d positions open or in flight (cap %d)", d.Symbol, m.portfolio.OpenCount(), m.cfg.MaxPositions)
	}

	px := decimal.NewFromFloat(price)
	stop, take := m.exitPrices(d, price)
	return ApprovedOrder{
		Symbol:     d.Symbol,
		Side:       decision.ActionBuy,
		Quantity:   notional.Div(px),
		Notional:   notional,
		Price:      px,
		StopLoss:   stop,
		TakeProfit: take,
		Fraction:   fraction,
	}, nil
}

func (m *Manager) authorizeClose(d decision.Decision, price float64) (ApprovedOrder, error) {
	notional, ok := m.portfolio.NotionalOf(d.Symbol)
	if !ok {
		return ApprovedOrder{}, reject(RejectHold, "%s: SELL with no open position", d.Symbol)
	}
	px := decimal.NewFromFloat(price)
	return ApprovedOrder{
		Symbol:   d.Symbol,
		Side:     decision.ActionSell,
		Quantity: notional.Div(px),
		Notional: notional,
		Price:    px,
	}, nil
}

// sizingFraction is the Kelly refinement clamped to the profile
// ceiling. Kelly is advisory; the ceiling is binding.
func (m *Manager) sizingFraction() float64 {
	fraction := m.profile.MaxFraction
	if !m.cfg.KellySizing {
		return fraction
	}
	m.mu.RLock()
	stats := m.stats
	m.mu.RUnlock()

	kelly := kellyFraction(stats.WinRate, stats.Payoff)
	if kelly < fraction {
		fraction = kelly
	}
	return fraction
}

// kellyFraction computes f = (b*p - q) / b and clamps it to
// [0.001, 0.05]. Degenerate inputs fall back to a flat 1%.
func kellyFraction(winProb, payoff float64) float64 {
	if payoff <= 0 || winProb <= 0 || winProb >= 1 {
		return 0.01
	}
	f := (payoff*winProb - (1 - winProb)) / payoff
	if f < 0.001 {
		f = 0.001
	}
	if f > 0.05 {
		f = 0.05
	}
	return f
}

// checkDailyLoss rejects when today's realized loss plus this trade's
// worst-case loss would breach the daily cap.
func (m *Manager) checkDailyLoss(symbol string, notional, capital decimal.Decimal) error {
	if m.cfg.MaxDailyLossPct <= 0 {
		return nil
	}
	limit := capital.Mul(decimal.NewFromFloat(m.cfg.MaxDailyLossPct))
	worstCase := notional.Mul(decimal.NewFromFloat(m.profile.StopLossPct))
	projected := m.portfolio.DailyLoss().Add(worstCase)
	if projected.GreaterThanOrEqual(limit) {
		return reject(RejectDailyLossCap, "%s: daily loss %s + worst case %s breaches cap %s",
			symbol, m.portfolio.DailyLoss().StringFixed(2), worstCase.StringFixed(2), limit.StringFixed(2))
	}
	return nil
}

func (m *Manager) exitPrices(d decision.Decision, price float64) (stop, take decimal.Decimal) {
	px := decimal.NewFromFloat(price)
	stopPct := decimal.NewFromFloat(m.profile.StopLossPct)

	if d.StopLoss > 0 && d.StopLoss < price {
		stop = decimal.NewFromFloat(d.StopLoss)
	} else {
		stop = px.Mul(decimal.NewFromInt(1).Sub(stopPct))
	}

	risk := px.Sub(stop)
	take = px.Add(risk.Mul(decimal.NewFromFloat(m.profile.TakeProfitRatio)))
	if d.TargetPrice > price {
		target := decimal.NewFromFloat(d.TargetPrice)
		// Prefer the closer of the structural target and the
		// ratio-derived one.
		if target.LessThan(take) {
			take = target
		}
	}
	return stop, take
}
