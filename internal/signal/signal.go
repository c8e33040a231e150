// Package signal derives technical indicators from a normalized candle
// window. Compute is a pure function: the same window always yields the
// same bundle.
package signal

import (
	"errors"
	"math"

	"github.com/markcheno/go-talib"

	"helmsman/internal/market"
)

// ErrInsufficientHistory means the candle series is shorter than the
// longest lookback required. No partial bundle is ever returned.
var ErrInsufficientHistory = errors.New("insufficient candle history")

// Settings 描述计算指标所需的最小配置。
type Settings struct {
	RSIPeriod     int
	EMAFast       int
	EMASlow       int
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BandPeriod    int
	BandStdDev    float64
	VolumePeriod  int
	PivotLookback int
}

func (s Settings) withDefaults() Settings {
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.EMAFast <= 0 {
		s.EMAFast = 12
	}
	if s.EMASlow <= 0 {
		s.EMASlow = 26
	}
	if s.MACDFast <= 0 {
		s.MACDFast = 12
	}
	if s.MACDSlow <= 0 {
		s.MACDSlow = 26
	}
	if s.MACDSignal <= 0 {
		s.MACDSignal = 9
	}
	if s.BandPeriod <= 0 {
		s.BandPeriod = 20
	}
	if s.BandStdDev <= 0 {
		s.BandStdDev = 2
	}
	if s.VolumePeriod <= 0 {
		s.VolumePeriod = 20
	}
	if s.PivotLookback <= 0 {
		s.PivotLookback = 20
	}
	return s
}

// MinHistory is the shortest candle window Compute accepts.
func (s Settings) MinHistory() int {
	s = s.withDefaults()
	min := s.EMASlow
	if n := s.MACDSlow + s.MACDSignal; n > min {
		min = n
	}
	if s.BandPeriod > min {
		min = s.BandPeriod
	}
	if n := s.RSIPeriod + 1; n > min {
		min = n
	}
	if s.VolumePeriod > min {
		min = s.VolumePeriod
	}
	if s.PivotLookback > min {
		min = s.PivotLookback
	}
	return min
}

// Bundle holds one cycle's indicator snapshot for a symbol.
type Bundle struct {
	Symbol string

	RSI float64

	MACD           float64
	MACDSignal     float64
	MACDHist       float64
	MACDCrossedUp  bool
	MACDCrossedDn  bool

	EMAFast float64
	EMASlow float64

	BandUpper  float64
	BandMiddle float64
	BandLower  float64

	VolumeRatio float64

	Support    float64
	Resistance float64

	LastClose float64
}

// Compute derives the full indicator bundle from a candle window.
func Compute(candles []market.Candle, cfg Settings) (Bundle, error) {
	cfg = cfg.withDefaults()
	if len(candles) < cfg.MinHistory() {
		return Bundle{}, ErrInsufficientHistory
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	var b Bundle
	if len(candles) > 0 {
		b.Symbol = candles[0].Symbol
	}
	b.LastClose = closes[len(closes)-1]

	rsi := talib.Rsi(closes, cfg.RSIPeriod)
	b.RSI = lastValid(rsi)

	macd, sig, hist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	b.MACD = lastValid(macd)
	b.MACDSignal = lastValid(sig)
	b.MACDHist = lastValid(hist)
	if prev, cur, ok := lastTwoValid(hist); ok {
		b.MACDCrossedUp = prev <= 0 && cur > 0
		b.MACDCrossedDn = prev >= 0 && cur < 0
	}

	b.EMAFast = lastValid(talib.Ema(closes, cfg.EMAFast))
	b.EMASlow = lastValid(talib.Ema(closes, cfg.EMASlow))

	upper, middle, lower := talib.BBands(closes, cfg.BandPeriod, cfg.BandStdDev, cfg.BandStdDev, talib.SMA)
	b.BandUpper = lastValid(upper)
	b.BandMiddle = lastValid(middle)
	b.BandLower = lastValid(lower)

	volSMA := lastValid(talib.Sma(volumes, cfg.VolumePeriod))
	if volSMA > 0 {
		b.VolumeRatio = volumes[len(volumes)-1] / volSMA
	}

	b.Support, b.Resistance = localExtrema(highs, lows, cfg.PivotLookback)

	return b, nil
}

// localExtrema estimates support/resistance as the extremes of the
// lookback window. Deliberately unoptimized.
func localExtrema(highs, lows []float64, lookback int) (support, resistance float64) {
	if lookback > len(lows) {
		lookback = len(lows)
	}
	support = math.Inf(1)
	resistance = math.Inf(-1)
	for i := len(lows) - lookback; i < len(lows); i++ {
		if lows[i] < support {
			support = lows[i]
		}
		if highs[i] > resistance {
			resistance = highs[i]
		}
	}
	if math.IsInf(support, 1) {
		support = 0
	}
	if math.IsInf(resistance, -1) {
		resistance = 0
	}
	return support, resistance
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

func lastTwoValid(series []float64) (prev, cur float64, ok bool) {
	found := 0
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if found == 0 {
			cur = v
			found++
			continue
		}
		prev = v
		return prev, cur, true
	}
	return 0, 0, false
}
