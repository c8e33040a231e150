package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Symbol{Base: "BTC", Quote: "USDT"}, Parse("BTC/USDT"))
	assert.Equal(t, Symbol{Base: "BTC", Quote: "USDT"}, Parse("btcusdt"))
	assert.Equal(t, Symbol{Base: "ETH", Quote: "USD"}, Parse("ETH/USD"))
	assert.Equal(t, Symbol{}, Parse(""))
	assert.Equal(t, Symbol{Base: "ETH", Quote: "USDT"}, Parse("ETH/USDT:USDT"))
}

func TestConverters(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance.ToExchange("BTC/USDT"))
	assert.Equal(t, "BTC/USDT", Binance.FromExchange("BTCUSDT"))

	assert.Equal(t, "XBTUSDT", Kraken.ToExchange("BTC/USDT"))
	assert.Equal(t, "BTC/USDT", Kraken.FromExchange("XBTUSDT"))

	assert.Equal(t, "bitcoin", CoinGecko.ToExchange("BTC/USDT"))
	assert.Equal(t, "usd", CoinGecko.VsCurrency("BTC/USDT"))
	assert.Equal(t, "BTC/USDT", CoinGecko.FromExchange("bitcoin"))
}

func TestNormalizeList(t *testing.T) {
	out := NormalizeList([]string{"btc/usdt", "BTCUSDT", "eth/usdt"})
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, out)
}
