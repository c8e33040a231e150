package market

import (
	"context"
	"errors"
)

// ErrDataUnavailable means every configured provider was exhausted for a
// request. Upstream components treat the missing data as absent and must
// not invent a value.
var ErrDataUnavailable = errors.New("market data unavailable")

// Provider adapts one external data vendor to the normalized candle/price
// contract. Implementations live under internal/gateway.
type Provider interface {
	Name() string

	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	FetchPrice(ctx context.Context, symbol string) (float64, error)
}
