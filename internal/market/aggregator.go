package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"helmsman/internal/logger"
)

// Options bound the aggregator's fallback and caching policy.
type Options struct {
	CacheTTL         time.Duration
	FailureThreshold float64
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	// RatePerMinute caps outbound calls per provider name. Zero means
	// no limit for that provider.
	RatePerMinute map[string]int
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 30 * time.Second
	}
	if o.FailureThreshold <= 0 || o.FailureThreshold > 1 {
		o.FailureThreshold = 0.5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Minute
	}
	return o
}

// Aggregator normalizes quotes and candles from N providers behind one
// interface. Providers are tried in health-weighted order; unhealthy or
// rate-exhausted providers are skipped fast so a bad vendor bounds
// latency instead of consuming it.
type Aggregator struct {
	providers []Provider
	health    map[string]*Health
	limiters  map[string]*rate.Limiter
	cache     *ttlCache
	clock     func() time.Time
}

func NewAggregator(providers []Provider, opts Options) *Aggregator {
	opts = opts.withDefaults()
	a := &Aggregator{
		providers: providers,
		health:    make(map[string]*Health, len(providers)),
		limiters:  make(map[string]*rate.Limiter, len(providers)),
		cache:     newTTLCache(opts.CacheTTL),
		clock:     time.Now,
	}
	for _, p := range providers {
		h := NewHealth(p.Name(), opts.FailureThreshold, opts.BackoffBase, opts.BackoffMax)
		h.SetStateChangeHandler(func(name string, from, to HealthState) {
			logger.Warnf("provider %s health: %s -> %s", name, from, to)
		})
		a.health[p.Name()] = h
		if rpm := opts.RatePerMinute[p.Name()]; rpm > 0 {
			a.limiters[p.Name()] = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/10+1)
		}
	}
	return a
}

// GetCandles returns an ordered candle series for symbol/interval, trying
// providers in health order and caching the first success.
func (a *Aggregator) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if cached, ok := a.cache.getCandles(symbol, interval); ok {
		return cached, nil
	}
	var lastErr error
	for _, p := range a.eligible() {
		if !a.allow(p.Name()) {
			continue
		}
		start := a.clock()
		candles, err := p.FetchCandles(ctx, symbol, interval, limit)
		latency := a.clock().Sub(start)
		if err != nil {
			lastErr = err
			a.health[p.Name()].RecordFailure(a.clock())
			logger.Warnf("provider %s candles %s/%s failed: %v", p.Name(), symbol, interval, err)
			continue
		}
		a.health[p.Name()].RecordSuccess(latency)
		for i := range candles {
			candles[i].Symbol = symbol
			candles[i].Provider = p.Name()
			candles[i].Latency = latency
		}
		sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime < candles[j].OpenTime })
		a.cache.setCandles(symbol, interval, candles)
		return candles, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrDataUnavailable, symbol, interval, lastErr)
	}
	return nil, fmt.Errorf("%w: %s %s: no provider eligible", ErrDataUnavailable, symbol, interval)
}

// GetSpotPrice returns the latest traded price for symbol.
func (a *Aggregator) GetSpotPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	if cached, ok := a.cache.getPrice(symbol); ok {
		return cached, nil
	}
	var lastErr error
	for _, p := range a.eligible() {
		if !a.allow(p.Name()) {
			continue
		}
		start := a.clock()
		price, err := p.FetchPrice(ctx, symbol)
		latency := a.clock().Sub(start)
		if err != nil {
			lastErr = err
			a.health[p.Name()].RecordFailure(a.clock())
			logger.Warnf("provider %s price %s failed: %v", p.Name(), symbol, err)
			continue
		}
		a.health[p.Name()].RecordSuccess(latency)
		a.cache.setPrice(symbol, price)
		return price, nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, symbol, lastErr)
	}
	return 0, fmt.Errorf("%w: %s: no provider eligible", ErrDataUnavailable, symbol)
}

// ProviderHealth exposes a provider's health for observability.
func (a *Aggregator) ProviderHealth(name string) *Health {
	return a.health[name]
}

// allow consumes a rate token for the provider about to be called.
// A provider with an exhausted budget is skipped, not failed.
func (a *Aggregator) allow(name string) bool {
	lim := a.limiters[name]
	if lim == nil {
		return true
	}
	if !lim.Allow() {
		logger.Debugf("provider %s rate limited, skipping", name)
		return false
	}
	return true
}

// eligible returns providers available right now, healthy first, ties
// broken by last observed latency. Configured order is the final
// tie-breaker since sort.SliceStable preserves it.
func (a *Aggregator) eligible() []Provider {
	now := a.clock()
	out := make([]Provider, 0, len(a.providers))
	for _, p := range a.providers {
		h := a.health[p.Name()]
		if !h.Available(now) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, li := a.health[out[i].Name()].rank()
		sj, lj := a.health[out[j].Name()].rank()
		if si != sj {
			return si < sj
		}
		if li == 0 || lj == 0 {
			return false
		}
		return li < lj
	})
	return out
}
