package market

import "time"

// Candle is one OHLCV bar, immutable once fetched.
type Candle struct {
	Symbol    string        `json:"symbol"`
	OpenTime  int64         `json:"open_time"`
	CloseTime int64         `json:"close_time"`
	Open      float64       `json:"open"`
	High      float64       `json:"high"`
	Low       float64       `json:"low"`
	Close     float64       `json:"close"`
	Volume    float64       `json:"volume"`
	Provider  string        `json:"provider,omitempty"`
	Latency   time.Duration `json:"-"`
}
