package kraken

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"helmsman/internal/market"
	symbolpkg "helmsman/internal/pkg/symbol"
)

// Source fetches candles and spot prices from Kraken's public REST API.
type Source struct {
	baseURL string
	client  *http.Client
}

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

func New(cfg Config) *Source {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.kraken.com/0/public"
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *Source) Name() string { return "kraken" }

func (s *Source) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	pair := symbolpkg.Kraken.ToExchange(symbol)
	minutes, ok := intervalMinutes(interval)
	if !ok {
		return nil, fmt.Errorf("kraken does not support interval %q", interval)
	}
	url := fmt.Sprintf("%s/OHLC?pair=%s&interval=%d", s.baseURL, pair, minutes)

	body, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if apiErr := gjson.GetBytes(body, "error.0"); apiErr.Exists() {
		return nil, fmt.Errorf("kraken api error: %s", apiErr.String())
	}
	series := firstPairResult(body)
	if !series.Exists() || !series.IsArray() {
		return nil, fmt.Errorf("kraken ohlc: empty result for %s", pair)
	}
	barSpan := int64(minutes) * 60
	out := make([]market.Candle, 0, limit)
	series.ForEach(func(_, row gjson.Result) bool {
		vals := row.Array()
		if len(vals) < 7 {
			return true
		}
		openSec := vals[0].Int()
		out = append(out, market.Candle{
			OpenTime:  openSec * 1000,
			CloseTime: (openSec+barSpan)*1000 - 1,
			Open:      vals[1].Float(),
			High:      vals[2].Float(),
			Low:       vals[3].Float(),
			Close:     vals[4].Float(),
			Volume:    vals[6].Float(),
		})
		return true
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("kraken ohlc: empty series for %s", pair)
	}
	// Kraken always returns the full window; the last bar is still open.
	out = out[:len(out)-1]
	if len(out) > limit && limit > 0 {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Source) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	pair := symbolpkg.Kraken.ToExchange(symbol)
	url := fmt.Sprintf("%s/Ticker?pair=%s", s.baseURL, pair)

	body, err := s.get(ctx, url)
	if err != nil {
		return 0, err
	}
	if apiErr := gjson.GetBytes(body, "error.0"); apiErr.Exists() {
		return 0, fmt.Errorf("kraken api error: %s", apiErr.String())
	}
	ticker := firstPairResult(body)
	last := ticker.Get("c.0")
	if !last.Exists() || last.Float() <= 0 {
		return 0, fmt.Errorf("kraken returned no price for %s", pair)
	}
	return last.Float(), nil
}

func (s *Source) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("kraken status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// firstPairResult returns result.<pair>; Kraken renames pairs in the
// response (e.g. XBTUSDT -> XBTUSDT or XXBTZUSD), so take the first key
// that is not "last".
func firstPairResult(body []byte) gjson.Result {
	var out gjson.Result
	gjson.GetBytes(body, "result").ForEach(func(key, value gjson.Result) bool {
		if key.String() == "last" {
			return true
		}
		out = value
		return false
	})
	return out
}

func intervalMinutes(interval string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "1m":
		return 1, true
	case "5m":
		return 5, true
	case "15m":
		return 15, true
	case "30m":
		return 30, true
	case "1h":
		return 60, true
	case "4h":
		return 240, true
	case "1d":
		return 1440, true
	case "1w":
		return 10080, true
	default:
		return 0, false
	}
}
