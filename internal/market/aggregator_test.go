package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	candles    []Candle
	price      float64
	err        error
	callCount  int
	priceCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeProvider) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	f.priceCalls++
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func testCandles(n int) []Candle {
	out := make([]Candle, n)
	for i := range out {
		out[i] = Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100.5,
			Volume:    10,
		}
	}
	return out
}

func TestAggregatorFallsThroughToNextProvider(t *testing.T) {
	bad := &fakeProvider{name: "binance", err: errors.New("boom")}
	good := &fakeProvider{name: "kraken", candles: testCandles(3)}
	agg := NewAggregator([]Provider{bad, good}, Options{})

	candles, err := agg.GetCandles(context.Background(), "BTC/USDT", "15m", 3)
	require.NoError(t, err)
	assert.Len(t, candles, 3)
	assert.Equal(t, "kraken", candles[0].Provider)
	assert.Equal(t, "BTC/USDT", candles[0].Symbol)
	assert.Equal(t, 1, bad.callCount)
}

func TestAggregatorAllProvidersFail(t *testing.T) {
	p1 := &fakeProvider{name: "binance", err: errors.New("down")}
	p2 := &fakeProvider{name: "kraken", err: errors.New("down too")}
	agg := NewAggregator([]Provider{p1, p2}, Options{})

	_, err := agg.GetCandles(context.Background(), "BTC/USDT", "15m", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = agg.GetSpotPrice(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAggregatorCachesCandles(t *testing.T) {
	p := &fakeProvider{name: "binance", candles: testCandles(2)}
	agg := NewAggregator([]Provider{p}, Options{CacheTTL: time.Minute})

	_, err := agg.GetCandles(context.Background(), "BTC/USDT", "15m", 2)
	require.NoError(t, err)
	_, err = agg.GetCandles(context.Background(), "BTC/USDT", "15m", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount, "second call must be served from cache")
}

func TestAggregatorSkipsProviderInBackoff(t *testing.T) {
	bad := &fakeProvider{name: "binance", err: errors.New("boom")}
	good := &fakeProvider{name: "kraken", price: 42000}
	agg := NewAggregator([]Provider{bad, good}, Options{CacheTTL: time.Nanosecond})

	// Drive binance into BACKOFF.
	for i := 0; i < 3; i++ {
		_, err := agg.GetSpotPrice(context.Background(), "BTC/USDT")
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, StateBackoff, agg.ProviderHealth("binance").State())

	callsBefore := bad.priceCalls
	_, err := agg.GetSpotPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, callsBefore, bad.priceCalls, "backoff provider must be skipped")
}

func TestAggregatorOrdersCandles(t *testing.T) {
	unordered := []Candle{
		{OpenTime: 120_000, Close: 3},
		{OpenTime: 0, Close: 1},
		{OpenTime: 60_000, Close: 2},
	}
	p := &fakeProvider{name: "coingecko", candles: unordered}
	agg := NewAggregator([]Provider{p}, Options{})

	candles, err := agg.GetCandles(context.Background(), "ETH/USDT", "1m", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, []float64{candles[0].Close, candles[1].Close, candles[2].Close})
}

func TestAggregatorPrefersHealthyProvider(t *testing.T) {
	flaky := &fakeProvider{name: "binance", err: errors.New("boom")}
	steady := &fakeProvider{name: "kraken", price: 100}
	agg := NewAggregator([]Provider{flaky, steady}, Options{CacheTTL: time.Nanosecond})

	_, err := agg.GetSpotPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	// binance is now DEGRADED; kraken should be tried first.
	flaky.err = nil
	flaky.price = 99
	price, err := agg.GetSpotPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
}
