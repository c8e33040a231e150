package config

import (
	"fmt"
	"math"
	"strings"
)

var knownProviders = map[string]bool{
	"binance":   true,
	"coingecko": true,
	"kraken":    true,
}

var knownProfiles = map[string]bool{
	"conservative": true,
	"balanced":     true,
	"aggressive":   true,
}

// validate 对配置进行基础校验。
func validate(c *Config) error {
	for _, s := range c.App.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("app.symbols contains empty symbol")
		}
	}
	for _, p := range c.Market.Providers {
		if !knownProviders[strings.ToLower(p)] {
			return fmt.Errorf("market.providers contains unknown provider: %s", p)
		}
	}
	if !knownProfiles[strings.ToLower(c.Risk.Profile)] {
		return fmt.Errorf("risk.profile must be conservative, balanced or aggressive (got %q)", c.Risk.Profile)
	}
	if c.Decision.MinConfidence < 0 || c.Decision.MinConfidence > 1 {
		return fmt.Errorf("decision.min_confidence must be in [0,1]")
	}
	if c.Decision.Threshold <= 0 || c.Decision.Threshold >= 1 {
		return fmt.Errorf("decision.threshold must be in (0,1)")
	}
	w := c.Decision.Weights
	sum := w.Technical + w.Sentiment + w.Risk + w.Timing
	if w.Technical < 0 || w.Sentiment < 0 || w.Risk < 0 || w.Timing < 0 {
		return fmt.Errorf("decision.weights must be non-negative")
	}
	if math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("decision.weights must sum to 1 (got %.3f)", sum)
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct >= 1 {
		return fmt.Errorf("risk.max_daily_loss_pct must be in (0,1)")
	}
	switch strings.ToLower(c.Execution.Exchange) {
	case "paper", "binance":
	default:
		return fmt.Errorf("execution.exchange must be paper or binance (got %q)", c.Execution.Exchange)
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
		}
	}
	return nil
}
