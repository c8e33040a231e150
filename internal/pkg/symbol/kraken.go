package symbol

import "strings"

// Kraken spells BTC as XBT and takes pairs without a separator.
type KrakenConverter struct{}

func (KrakenConverter) ToExchange(internal string) string {
	sym := Parse(internal)
	if sym.Base == "" {
		return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(internal)), "/", "")
	}
	base := sym.Base
	if base == "BTC" {
		base = "XBT"
	}
	return base + sym.Quote
}

func (KrakenConverter) FromExchange(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	raw = strings.ReplaceAll(raw, "XBT", "BTC")
	return Parse(raw).Internal()
}

func (KrakenConverter) Format() Format {
	return FormatKraken
}

var Kraken = KrakenConverter{}
