package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubClient struct {
	response string
	err      error
	delay    time.Duration
}

func (s *stubClient) CallWithMessages(ctx context.Context, system, user string) (string, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.response, s.err
}

func TestScoreParsesResponse(t *testing.T) {
	scorer := NewScorerWithClient(&stubClient{response: `{"score": 0.4, "confidence": 0.8}`}, time.Second)

	res := scorer.Score(context.Background(), "BTC/USDT", "etf inflows accelerating")
	assert.False(t, res.Degraded)
	assert.Equal(t, 0.4, res.Score)
	assert.Equal(t, 0.8, res.Confidence)
}

func TestScoreParsesFencedResponse(t *testing.T) {
	scorer := NewScorerWithClient(&stubClient{
		response: "```json\n{\"score\": -0.6, \"confidence\": 0.9}\n```",
	}, time.Second)

	res := scorer.Score(context.Background(), "BTC/USDT", "exchange hack rumors spreading")
	assert.False(t, res.Degraded)
	assert.Equal(t, -0.6, res.Score)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestScoreClampsOutOfRange(t *testing.T) {
	scorer := NewScorerWithClient(&stubClient{response: `{"score": 3.5, "confidence": 1.7}`}, time.Second)

	res := scorer.Score(context.Background(), "BTC/USDT", "to the moon")
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestScoreDegradesOnError(t *testing.T) {
	scorer := NewScorerWithClient(&stubClient{err: errors.New("service down")}, time.Second)

	res := scorer.Score(context.Background(), "BTC/USDT", "some news")
	assert.True(t, res.Degraded)
	assert.Equal(t, 0.0, res.Score)
}

func TestScoreDegradesOnTimeout(t *testing.T) {
	scorer := NewScorerWithClient(&stubClient{delay: time.Second, response: `{"score": 1}`}, 20*time.Millisecond)

	res := scorer.Score(context.Background(), "BTC/USDT", "slow news day")
	assert.True(t, res.Degraded)
	assert.Equal(t, 0.0, res.Score)
}

func TestScoreDegradesOnGarbage(t *testing.T) {
	scorer := NewScorerWithClient(&stubClient{response: "I think the market looks bullish!"}, time.Second)

	res := scorer.Score(context.Background(), "BTC/USDT", "some news")
	assert.True(t, res.Degraded)
}

func TestScoreEmptyCorpusIsNeutral(t *testing.T) {
	scorer := NewScorerWithClient(&stubClient{response: `{"score": 0.9}`}, time.Second)

	res := scorer.Score(context.Background(), "BTC/USDT", "")
	assert.True(t, res.Degraded)
	assert.Equal(t, 0.0, res.Score)
}
