// Package sentiment scores a news/social text corpus through an external
// reasoning service. Sentiment is one of several decision factors and must
// never block a cycle: any failure degrades to a neutral score.
package sentiment

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"helmsman/internal/logger"
	"helmsman/internal/pkg/jsonutil"
)

const systemPrompt = `You are a market sentiment analyst. Given a symbol and a corpus of ` +
	`recent news and social text, respond ONLY with compact JSON: ` +
	`{"score": <float in [-1,1], negative = bearish>, "confidence": <float in [0,1]>}`

// Result is a bounded sentiment reading. Degraded marks a neutral
// fallback produced because the reasoning service failed or timed out.
type Result struct {
	Score      float64
	Confidence float64
	Degraded   bool
}

type Client interface {
	CallWithMessages(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Config struct {
	APIURL     string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Headers    map[string]string
}

type Scorer struct {
	client  Client
	timeout time.Duration
}

func NewScorer(cfg Config) *Scorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scorer{
		client: &ChatClient{
			BaseURL:      cfg.APIURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			Timeout:      timeout,
			MaxRetries:   cfg.MaxRetries,
			ExtraHeaders: cfg.Headers,
		},
		timeout: timeout,
	}
}

// NewScorerWithClient wires a custom client, used by tests.
func NewScorerWithClient(client Client, timeout time.Duration) *Scorer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scorer{client: client, timeout: timeout}
}

// Score returns a sentiment reading in [-1,1] for the corpus. It never
// returns an error: timeouts and service failures yield a neutral,
// degraded result so the decision cycle keeps moving.
func (s *Scorer) Score(ctx context.Context, symbol, corpus string) Result {
	if corpus == "" {
		return Result{Degraded: true}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user := fmt.Sprintf("symbol: %s\ncorpus:\n%s", symbol, corpus)
	raw, err := s.client.CallWithMessages(ctx, systemPrompt, user)
	if err != nil {
		logger.Warnf("sentiment degraded for %s: %v", symbol, err)
		return Result{Degraded: true}
	}
	// 模型有时把 JSON 包在 code fence 里，先剥一层。
	if extracted, ok := jsonutil.ExtractJSON(raw); ok {
		raw = extracted
	}
	score := gjson.Get(raw, "score")
	if !score.Exists() {
		logger.Warnf("sentiment degraded for %s: no score in response", symbol)
		return Result{Degraded: true}
	}
	confidence := gjson.Get(raw, "confidence").Float()
	return Result{
		Score:      clamp(score.Float(), -1, 1),
		Confidence: clamp(confidence, 0, 1),
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
