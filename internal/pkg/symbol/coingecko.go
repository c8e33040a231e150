package symbol

import "strings"

// CoinGecko addresses assets by coin id, not pair. ToExchange maps the
// base asset to its coin id; the quote becomes the vs_currency parameter.
type CoinGeckoConverter struct{}

var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"ADA":  "cardano",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
	"LINK": "chainlink",
}

func (CoinGeckoConverter) ToExchange(internal string) string {
	sym := Parse(internal)
	if id, ok := coinGeckoIDs[sym.Base]; ok {
		return id
	}
	return strings.ToLower(sym.Base)
}

// VsCurrency maps the quote asset to CoinGecko's vs_currency parameter.
func (CoinGeckoConverter) VsCurrency(internal string) string {
	sym := Parse(internal)
	switch sym.Quote {
	case "USDT", "USDC", "USD", "":
		return "usd"
	default:
		return strings.ToLower(sym.Quote)
	}
}

func (CoinGeckoConverter) FromExchange(raw string) string {
	for base, id := range coinGeckoIDs {
		if id == strings.ToLower(strings.TrimSpace(raw)) {
			return base + "/USDT"
		}
	}
	return ""
}

func (CoinGeckoConverter) Format() Format {
	return FormatCoinGecko
}

var CoinGecko = CoinGeckoConverter{}
