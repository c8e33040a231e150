package app

import (
	"fmt"
	"strings"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/decision"
	"helmsman/internal/execution"
	"helmsman/internal/gateway/binance"
	"helmsman/internal/gateway/coingecko"
	"helmsman/internal/gateway/exchange"
	"helmsman/internal/gateway/kraken"
	"helmsman/internal/gateway/notifier"
	"helmsman/internal/market"
	"helmsman/internal/signal"
	"helmsman/internal/trader"
)

// buildProviders 按配置声明的优先级顺序组装行情数据源。
func buildProviders(cfg config.MarketConfig) ([]market.Provider, error) {
	names := cfg.Providers
	if len(names) == 0 {
		names = []string{"binance", "coingecko", "kraken"}
	}
	providers := make([]market.Provider, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "binance":
			providers = append(providers, binance.New(binance.Config{
				RESTBaseURL: cfg.Binance.RESTBaseURL,
				HTTPTimeout: time.Duration(cfg.Binance.TimeoutSeconds) * time.Second,
			}))
		case "coingecko":
			providers = append(providers, coingecko.New(coingecko.Config{
				BaseURL:     cfg.CoinGecko.BaseURL,
				HTTPTimeout: time.Duration(cfg.CoinGecko.TimeoutSeconds) * time.Second,
			}))
		case "kraken":
			providers = append(providers, kraken.New(kraken.Config{
				BaseURL:     cfg.Kraken.BaseURL,
				HTTPTimeout: time.Duration(cfg.Kraken.TimeoutSeconds) * time.Second,
			}))
		default:
			return nil, fmt.Errorf("unknown market provider %q", name)
		}
	}
	return providers, nil
}

func buildExchange(cfg config.ExecutionConfig, agg *market.Aggregator) (exchange.Exchange, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Exchange)) {
	case "", "paper":
		return exchange.NewPaper(agg.GetSpotPrice, cfg.SlippageBps), nil
	case "binance":
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return nil, fmt.Errorf("binance exchange requires api_key and api_secret")
		}
		return exchange.NewBinance(exchange.BinanceConfig{
			APIKey:      cfg.APIKey,
			APISecret:   cfg.APISecret,
			RESTBaseURL: cfg.RESTBaseURL,
			HTTPTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange)
	}
}

func buildNotifier(cfg config.NotifyConfig) *notifier.Notifier {
	if cfg.Telegram.Enabled {
		return notifier.New(notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	// 无下游时 Publish 退化为日志，不应阻塞交易主流程。
	return notifier.New(nil)
}

func decisionConfig(cfg config.DecisionConfig) decision.Config {
	return decision.Config{
		Weights: decision.Weights{
			Technical: cfg.Weights.Technical,
			Sentiment: cfg.Weights.Sentiment,
			Risk:      cfg.Weights.Risk,
			Timing:    cfg.Weights.Timing,
		},
		Threshold:     cfg.Threshold,
		MinConfidence: cfg.MinConfidence,
	}
}

func executionConfig(cfg config.ExecutionConfig) execution.Config {
	return execution.Config{
		OrderType:     exchange.OrderType(strings.ToUpper(strings.TrimSpace(cfg.OrderType))),
		StatusRetries: cfg.StatusRetries,
	}
}

func signalSettings(cfg config.SignalConfig) signal.Settings {
	return signal.Settings{
		RSIPeriod:     cfg.RSIPeriod,
		EMAFast:       cfg.EMAFast,
		EMASlow:       cfg.EMASlow,
		MACDFast:      cfg.MACDFast,
		MACDSlow:      cfg.MACDSlow,
		MACDSignal:    cfg.MACDSignal,
		BandPeriod:    cfg.BandPeriod,
		BandStdDev:    cfg.BandStdDev,
		VolumePeriod:  cfg.VolumePeriod,
		PivotLookback: cfg.PivotLookback,
	}
}

func traderConfig(cfg *config.Config) trader.Config {
	return trader.Config{
		// 按 UTC 日期滚动会话：当日重启恢复同一会话与持仓。
		SessionID:       "live-" + time.Now().UTC().Format("20060102"),
		Symbols:         cfg.App.Symbols,
		Interval:        cfg.App.Interval,
		CandleLimit:     cfg.Market.CandleLimit,
		MaxConcurrent:   cfg.Schedule.MaxConcurrentSymbols,
		CycleBudget:     cfg.Schedule.CycleBudget(),
		MaxPositions:    cfg.Risk.MaxPositions,
		MaxDailyLossPct: cfg.Risk.MaxDailyLossPct,
	}
}
