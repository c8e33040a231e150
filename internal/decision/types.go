package decision

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Scores are the normalized per-factor sub-scores, each in [-1,1] with
// positive meaning bullish.
type Scores struct {
	Technical float64 `json:"technical"`
	Sentiment float64 `json:"sentiment"`
	Risk      float64 `json:"risk"`
	Timing    float64 `json:"timing"`
}

type Weights struct {
	Technical float64 `json:"technical"`
	Sentiment float64 `json:"sentiment"`
	Risk      float64 `json:"risk"`
	Timing    float64 `json:"timing"`
}

// Decision is one cycle's verdict for a symbol. Immutable after creation.
type Decision struct {
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Composite  float64   `json:"composite"`
	Scores     Scores    `json:"scores"`
	Weights    Weights   `json:"weights"`

	TargetPrice float64 `json:"target_price"`
	StopLoss    float64 `json:"stop_loss"`

	Reasoning         string    `json:"reasoning"`
	SentimentDegraded bool      `json:"sentiment_degraded,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// RiskContext carries the portfolio's current capacity to take risk.
// Loads are fractions of their caps, in [0,1].
type RiskContext struct {
	PositionLoad float64
	LossLoad     float64
	Volatility   float64 // relative band width, (upper-lower)/middle
}

// TimingContext carries cycle-timing inputs: whether the candle window is
// fresh and how volume compares to its own average.
type TimingContext struct {
	FreshData   bool
	VolumeRatio float64
}
