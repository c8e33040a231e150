package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the single owner of the mutable trading counters: open
// position notionals, in-flight reservations, and the daily realized
// loss accumulator. All mutation goes through its methods under one
// mutex; callers never see intermediate states.
type Portfolio struct {
	mu       sync.Mutex
	capital  decimal.Decimal
	open     map[string]decimal.Decimal // symbol -> committed notional
	reserved map[string]decimal.Decimal // symbol -> reserved, not yet filled

	dailyLoss decimal.Decimal
	dayKey    string

	clock func() time.Time
}

func NewPortfolio(capital float64) *Portfolio {
	p := &Portfolio{
		capital:  decimal.NewFromFloat(capital),
		open:     make(map[string]decimal.Decimal),
		reserved: make(map[string]decimal.Decimal),
		clock:    time.Now,
	}
	p.dayKey = p.clock().UTC().Format("2006-01-02")
	return p
}

// Reserve claims a slot for symbol before the order is sent. It fails
// when the symbol already has an open or in-flight position, or when
// committing would exceed maxPositions. The reservation must later be
// resolved by Commit or Release.
func (p *Portfolio) Reserve(symbol string, notional decimal.Decimal, maxPositions int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.open[symbol]; dup {
		return false
	}
	if _, dup := p.reserved[symbol]; dup {
		return false
	}
	if maxPositions > 0 && len(p.open)+len(p.reserved) >= maxPositions {
		return false
	}
	p.reserved[symbol] = notional
	return true
}

// Commit converts a reservation into a committed open position, using
// the actually filled notional.
func (p *Portfolio) Commit(symbol string, filled decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, symbol)
	p.open[symbol] = filled
}

// Release abandons a reservation after a reject or failed order.
func (p *Portfolio) Release(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, symbol)
}

// Close removes the symbol's open position and folds realized pnl into
// the daily loss accumulator when negative.
func (p *Portfolio) Close(symbol string, pnl decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.open, symbol)
	p.rotateDayLocked()
	if pnl.IsNegative() {
		p.dailyLoss = p.dailyLoss.Add(pnl.Neg())
	}
}

func (p *Portfolio) Capital() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capital
}

func (p *Portfolio) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open) + len(p.reserved)
}

func (p *Portfolio) OpenNotional() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := decimal.Zero
	for _, n := range p.open {
		total = total.Add(n)
	}
	for _, n := range p.reserved {
		total = total.Add(n)
	}
	return total
}

// NotionalOf returns the committed notional for one symbol.
func (p *Portfolio) NotionalOf(symbol string) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.open[symbol]
	return n, ok
}

func (p *Portfolio) HasOpen(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.open[symbol]
	return ok
}

// DailyLoss returns the realized loss accumulated today (UTC). Crossing
// midnight resets the accumulator.
func (p *Portfolio) DailyLoss() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateDayLocked()
	return p.dailyLoss
}

// RecordLoss adds directly to today's loss accumulator. Used when
// restoring state and by monitoring paths that close positions outside
// Close.
func (p *Portfolio) RecordLoss(loss decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateDayLocked()
	if loss.IsPositive() {
		p.dailyLoss = p.dailyLoss.Add(loss)
	}
}

// RestorePosition re-registers a position loaded from the store at
// startup, bypassing the reservation handshake.
func (p *Portfolio) RestorePosition(symbol string, notional decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open[symbol] = notional
}

// PositionLoad maps position-count pressure to [0,1] for decision
// scoring.
func (p *Portfolio) PositionLoad(maxPositions int) float64 {
	if maxPositions <= 0 {
		return 0
	}
	return float64(p.OpenCount()) / float64(maxPositions)
}

// LossLoad maps the daily loss against its cap to [0,1].
func (p *Portfolio) LossLoad(maxDailyLossPct float64) float64 {
	if maxDailyLossPct <= 0 {
		return 0
	}
	limit := p.Capital().Mul(decimal.NewFromFloat(maxDailyLossPct))
	if limit.IsZero() {
		return 0
	}
	load, _ := p.DailyLoss().Div(limit).Float64()
	if load > 1 {
		load = 1
	}
	if load < 0 {
		load = 0
	}
	return load
}

func (p *Portfolio) rotateDayLocked() {
	key := p.clock().UTC().Format("2006-01-02")
	if key != p.dayKey {
		p.dayKey = key
		p.dailyLoss = decimal.Zero
	}
}
