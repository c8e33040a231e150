// Package decision combines technical, sentiment, risk and timing factors
// into a single reproducible trading decision per symbol per cycle.
package decision

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"helmsman/internal/sentiment"
	"helmsman/internal/signal"
)

type Config struct {
	Weights       Weights
	Threshold     float64 // composite band: > +t BUY, < -t SELL
	MinConfidence float64 // below this the action is downgraded to HOLD
}

func (c Config) withDefaults() Config {
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Technical: 0.4, Sentiment: 0.2, Risk: 0.2, Timing: 0.2}
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.15
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.75
	}
	return c
}

// Engine maps factor inputs to a Decision. Config may be swapped at
// runtime (weight hot-reload), so reads go through the mutex.
type Engine struct {
	mu  sync.RWMutex
	cfg Config

	clock func() time.Time
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults(), clock: time.Now}
}

// UpdateConfig swaps weights/thresholds; invalid values fall back to
// defaults rather than being rejected.
func (e *Engine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.withDefaults()
	e.mu.Unlock()
}

func (e *Engine) config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Decide produces the cycle's decision for one symbol. Pure in its
// inputs apart from the creation timestamp.
func (e *Engine) Decide(symbol string, b signal.Bundle, sent sentiment.Result, riskCtx RiskContext, timingCtx TimingContext) Decision {
	cfg := e.config()

	scores := Scores{
		Technical: technicalScore(b),
		Sentiment: clamp(sent.Score, -1, 1),
		Risk:      riskScore(riskCtx),
		Timing:    timingScore(b, timingCtx),
	}
	if sent.Degraded {
		scores.Sentiment = 0
	}

	composite := cfg.Weights.Technical*scores.Technical +
		cfg.Weights.Sentiment*scores.Sentiment +
		cfg.Weights.Risk*scores.Risk +
		cfg.Weights.Timing*scores.Timing

	action := ActionHold
	switch {
	case composite > cfg.Threshold:
		action = ActionBuy
	case composite < -cfg.Threshold:
		action = ActionSell
	}

	confidence := confidenceFor(composite, cfg.Threshold)
	downgraded := false
	if action != ActionHold && confidence < cfg.MinConfidence {
		action = ActionHold
		downgraded = true
	}

	target, stop := exitLevels(action, b)

	return Decision{
		Symbol:            symbol,
		Action:            action,
		Confidence:        confidence,
		Composite:         composite,
		Scores:            scores,
		Weights:           cfg.Weights,
		TargetPrice:       target,
		StopLoss:          stop,
		Reasoning:         reasoning(action, composite, cfg, scores, b, sent, downgraded),
		SentimentDegraded: sent.Degraded,
		CreatedAt:         e.clock(),
	}
}

// technicalScore folds the indicator bundle into [-1,1].
func technicalScore(b signal.Bundle) float64 {
	// RSI: oversold bullish, overbought bearish.
	rsi := clamp((50-b.RSI)/20, -1, 1)

	var macd float64
	switch {
	case b.MACDCrossedUp:
		macd = 1
	case b.MACDCrossedDn:
		macd = -1
	case b.MACDHist > 0:
		macd = 0.5
	case b.MACDHist < 0:
		macd = -0.5
	}

	var trend float64
	if b.EMASlow > 0 {
		trend = clamp((b.EMAFast-b.EMASlow)/b.EMASlow*50, -1, 1)
	}

	var band float64
	if width := b.BandUpper - b.BandLower; width > 0 {
		// Below the middle band is mean-reversion bullish.
		band = clamp(2*(b.BandMiddle-b.LastClose)/width, -1, 1)
	}

	return clamp(0.35*rsi+0.35*macd+0.15*trend+0.15*band, -1, 1)
}

// riskScore measures headroom: full caps or high volatility push it
// negative, an empty book pushes it positive.
func riskScore(ctx RiskContext) float64 {
	load := ctx.PositionLoad
	if ctx.LossLoad > load {
		load = ctx.LossLoad
	}
	base := 1 - 2*clamp(load, 0, 1)
	volPenalty := clamp(ctx.Volatility*2, 0, 0.5)
	return clamp(base-volPenalty, -1, 1)
}

// timingScore is short-term momentum confirmed by volume. Stale data
// halves the score rather than inventing a fresh one.
func timingScore(b signal.Bundle, ctx TimingContext) float64 {
	dir := 0.0
	switch {
	case b.LastClose > b.EMAFast:
		dir = 1
	case b.LastClose < b.EMAFast:
		dir = -1
	}
	vol := clamp(ctx.VolumeRatio/1.5, 0, 1)
	score := dir * vol
	if !ctx.FreshData {
		score *= 0.5
	}
	return clamp(score, -1, 1)
}

// confidenceFor maps the margin above the threshold band to [0,1],
// monotonically: exactly at the band edge yields 0.5, a composite of
// ±(threshold+0.5) or beyond saturates at 1.
func confidenceFor(composite, threshold float64) float64 {
	margin := abs(composite) - threshold
	if margin <= 0 {
		return clamp(0.5*abs(composite)/threshold, 0, 0.5)
	}
	return clamp(0.5+margin, 0, 1)
}

func exitLevels(action Action, b signal.Bundle) (target, stop float64) {
	switch action {
	case ActionBuy:
		target = b.Resistance
		if target <= b.LastClose {
			target = b.LastClose * 1.02
		}
		stop = b.Support
		if stop >= b.LastClose || stop == 0 {
			stop = b.LastClose * 0.98
		}
	case ActionSell:
		target = b.Support
		if target >= b.LastClose || target == 0 {
			target = b.LastClose * 0.98
		}
		stop = b.Resistance
		if stop <= b.LastClose {
			stop = b.LastClose * 1.02
		}
	}
	return target, stop
}

// reasoning enumerates which sub-scores drove the action, for the audit
// trail and notifications.
func reasoning(action Action, composite float64, cfg Config, s Scores, b signal.Bundle, sent sentiment.Result, downgraded bool) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("technical %+.2f (RSI %.1f, MACD hist %+.4f%s)",
		s.Technical, b.RSI, b.MACDHist, macdNote(b)))
	if sent.Degraded {
		parts = append(parts, "sentiment 0.00 (degraded, neutral fallback)")
	} else {
		parts = append(parts, fmt.Sprintf("sentiment %+.2f", s.Sentiment))
	}
	parts = append(parts, fmt.Sprintf("risk %+.2f", s.Risk))
	parts = append(parts, fmt.Sprintf("timing %+.2f", s.Timing))
	verdict := fmt.Sprintf("composite %+.2f vs band ±%.2f -> %s", composite, cfg.Threshold, action)
	if downgraded {
		verdict = fmt.Sprintf("composite %+.2f vs band ±%.2f -> HOLD (confidence below %.2f floor)",
			composite, cfg.Threshold, cfg.MinConfidence)
	}
	return strings.Join(parts, "; ") + "; " + verdict
}

func macdNote(b signal.Bundle) string {
	switch {
	case b.MACDCrossedUp:
		return ", bullish crossover"
	case b.MACDCrossedDn:
		return ", bearish crossover"
	default:
		return ""
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
