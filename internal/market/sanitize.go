package market

import "time"

// DefaultKlineGrace allows for provider clock skew when deciding
// whether the last candle has closed.
const DefaultKlineGrace = 10 * time.Second

// DropUnclosed removes the trailing candle when it is still forming.
// Most venues return the in-progress bar last; indicators must only see
// closed bars. Candle times are milliseconds since epoch.
func DropUnclosed(candles []Candle, interval time.Duration) []Candle {
	return dropUnclosedAt(candles, interval, time.Now().UTC(), DefaultKlineGrace)
}

func dropUnclosedAt(candles []Candle, interval time.Duration, now time.Time, grace time.Duration) []Candle {
	if len(candles) == 0 || interval <= 0 {
		return candles
	}
	if grace < 0 {
		grace = 0
	}
	last := candles[len(candles)-1]
	if last.OpenTime <= 0 {
		return candles
	}
	cutoff := last.OpenTime + interval.Milliseconds() + grace.Milliseconds()
	if now.UnixMilli() < cutoff {
		return candles[:len(candles)-1]
	}
	return candles
}
