package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedPrice(px float64) PriceFunc {
	return func(ctx context.Context, symbol string) (float64, error) {
		return px, nil
	}
}

func TestPaperFillsMarketWithSlippage(t *testing.T) {
	p := NewPaper(fixedPrice(50000), 10) // 10 bps

	result, err := p.PlaceOrder(context.Background(), OrderRequest{
		ClientOrderID: "coid-1",
		Symbol:        "BTC/USDT",
		Side:          SideBuy,
		Type:          OrderMarket,
		Quantity:      0.01,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, result.Status)
	assert.InDelta(t, 50050, result.AvgPrice, 1e-6, "buys pay up by the slippage")
	assert.Equal(t, 0.01, result.FilledQty)

	sell, err := p.PlaceOrder(context.Background(), OrderRequest{
		ClientOrderID: "coid-2",
		Symbol:        "BTC/USDT",
		Side:          SideSell,
		Type:          OrderMarket,
		Quantity:      0.01,
	})
	require.NoError(t, err)
	assert.InDelta(t, 49950, sell.AvgPrice, 1e-6, "sells give up the slippage")
}

func TestPaperDuplicateClientIDReturnsOriginal(t *testing.T) {
	p := NewPaper(fixedPrice(100), 0)
	req := OrderRequest{ClientOrderID: "coid-1", Symbol: "ETH/USDT", Side: SideBuy, Type: OrderMarket, Quantity: 1}

	first, err := p.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	req.Quantity = 999 // must be ignored
	second, err := p.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPaperStatusLookup(t *testing.T) {
	p := NewPaper(fixedPrice(100), 0)
	_, err := p.GetOrderStatus(context.Background(), "ETH/USDT", "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = p.PlaceOrder(context.Background(), OrderRequest{ClientOrderID: "coid-1", Symbol: "ETH/USDT", Side: SideBuy, Type: OrderMarket, Quantity: 1})
	require.NoError(t, err)

	result, err := p.GetOrderStatus(context.Background(), "ETH/USDT", "coid-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, result.Status)
}

func TestPaperLostAckStillFills(t *testing.T) {
	p := NewPaper(fixedPrice(100), 0)
	p.submitErr = errors.New("gateway timeout")
	p.fillAnyway = true

	_, err := p.PlaceOrder(context.Background(), OrderRequest{ClientOrderID: "coid-1", Symbol: "ETH/USDT", Side: SideBuy, Type: OrderMarket, Quantity: 1})
	require.Error(t, err)

	// The venue recorded the fill even though the ack was lost.
	result, err := p.GetOrderStatus(context.Background(), "ETH/USDT", "coid-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, result.Status)
}

func TestPaperRejectsNonPositiveQuantity(t *testing.T) {
	p := NewPaper(fixedPrice(100), 0)
	result, err := p.PlaceOrder(context.Background(), OrderRequest{ClientOrderID: "coid-1", Symbol: "ETH/USDT", Side: SideBuy, Type: OrderMarket})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
	assert.NotEmpty(t, result.Reason)
}
