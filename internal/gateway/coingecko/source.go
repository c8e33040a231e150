package coingecko

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

// Source fetches candles and spot prices from the CoinGecko public API.
// CoinGecko has no per-interval kline endpoint; the OHLC endpoint picks
// granularity from the requested day span, which makes it a fallback
// vendor rather than a primary one.
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
		base = "https://api.coingecko.com/api/v3"
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

func (s *Source) Name() string { return "coingecko" }

func (s *Source) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	coinID := symbolpkg.CoinGecko.ToExchange(symbol)
	if coinID == "" {
		return nil, fmt.Errorf("unknown coingecko id for %s", symbol)
	}
	vs := symbolpkg.CoinGecko.VsCurrency(symbol)
	days := daySpan(interval, limit)
	url := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=%s&days=%d", s.baseURL, coinID, vs, days)

	body, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	rows := gjson.ParseBytes(body)
	if !rows.IsArray() {
		return nil, fmt.Errorf("coingecko ohlc: unexpected payload")
	}
	out := make([]market.Candle, 0, limit)
	rows.ForEach(func(_, row gjson.Result) bool {
		vals := row.Array()
		if len(vals) < 5 {
			return true
		}
		ts := vals[0].Int()
		out = append(out, market.Candle{
			OpenTime:  ts,
			CloseTime: ts,
			Open:      vals[1].Float(),
			High:      vals[2].Float(),
			Low:       vals[3].Float(),
			Close:     vals[4].Float(),
		})
		return true
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("coingecko ohlc: empty series for %s", coinID)
	}
	if len(out) > limit && limit > 0 {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Source) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	coinID := symbolpkg.CoinGecko.ToExchange(symbol)
	if coinID == "" {
		return 0, fmt.Errorf("unknown coingecko id for %s", symbol)
	}
	vs := symbolpkg.CoinGecko.VsCurrency(symbol)
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", s.baseURL, coinID, vs)

	body, err := s.get(ctx, url)
	if err != nil {
		return 0, err
	}
	price := gjson.GetBytes(body, coinID+"."+vs)
	if !price.Exists() || price.Float() <= 0 {
		return 0, fmt.Errorf("coingecko returned no price for %s", coinID)
	}
	return price.Float(), nil
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
		return nil, fmt.Errorf("coingecko status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// daySpan converts interval+limit into the day span CoinGecko expects.
func daySpan(interval string, limit int) int {
	dur := 30 * time.Minute
	if d, ok := parseInterval(interval); ok {
		dur = d
	}
	if limit <= 0 {
		limit = 100
	}
	days := int((dur*time.Duration(limit) + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}
	return days
}

func parseInterval(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	switch interval[len(interval)-1] {
	case 'm':
		if n, err := parseNum(interval); err == nil {
			return time.Duration(n) * time.Minute, true
		}
	case 'h':
		if n, err := parseNum(interval); err == nil {
			return time.Duration(n) * time.Hour, true
		}
	case 'd':
		if n, err := parseNum(interval); err == nil {
			return time.Duration(n) * 24 * time.Hour, true
		}
	}
	return 0, false
}

func parseNum(interval string) (int, error) {
	var n int
	_, err := fmt.Sscanf(interval[:len(interval)-1], "%d", &n)
	return n, err
}
