package config

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppInterval      = "15m"
	defaultCandleLimit      = 200
	defaultCacheTTLSec      = 30
	defaultFailureThreshold = 0.5
	defaultBackoffBaseSec   = 5
	defaultBackoffMaxSec    = 300
	defaultBinanceREST      = "https://api.binance.com"
	defaultCoinGeckoREST    = "https://api.coingecko.com/api/v3"
	defaultKrakenREST       = "https://api.kraken.com/0/public"
	defaultProviderTimeout  = 10
	defaultSentimentURL     = "https://api.openai.com/v1"
	defaultSentimentModel   = "gpt-4o-mini"
	defaultSentimentTimeout = 30
	defaultDecisionThresh   = 0.15
	defaultMinConfidence    = 0.75
	defaultRiskProfile      = "balanced"
	defaultMaxPositions     = 5
	defaultMaxDailyLossPct  = 0.05
	defaultMinNotional      = 10
	defaultExchange         = "paper"
	defaultOrderType        = "MARKET"
	defaultExecTimeout      = 15
	defaultStatusRetries    = 3
	defaultStorePath        = "data/helmsman.db"
	defaultFallbackPath     = "data/fallback.db"
	defaultDecisionSec      = 180
	defaultMonitorSec       = 30
	defaultReviewSec        = 1800
	defaultReportSec        = 3600
	defaultMaxConcurrent    = 4
	defaultCycleBudgetSec   = 120
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.Interval == "" {
		c.App.Interval = defaultAppInterval
	}
	if len(c.App.Symbols) == 0 {
		c.App.Symbols = []string{"BTC/USDT"}
	}

	if len(c.Market.Providers) == 0 {
		c.Market.Providers = []string{"binance", "coingecko", "kraken"}
	}
	if c.Market.CandleLimit <= 0 {
		c.Market.CandleLimit = defaultCandleLimit
	}
	if c.Market.CacheTTLSeconds <= 0 {
		c.Market.CacheTTLSeconds = defaultCacheTTLSec
	}
	if c.Market.FailureThreshold <= 0 || c.Market.FailureThreshold > 1 {
		c.Market.FailureThreshold = defaultFailureThreshold
	}
	if c.Market.BackoffBaseSeconds <= 0 {
		c.Market.BackoffBaseSeconds = defaultBackoffBaseSec
	}
	if c.Market.BackoffMaxSeconds <= 0 {
		c.Market.BackoffMaxSeconds = defaultBackoffMaxSec
	}
	if c.Market.Binance.RESTBaseURL == "" {
		c.Market.Binance.RESTBaseURL = defaultBinanceREST
	}
	if c.Market.Binance.TimeoutSeconds <= 0 {
		c.Market.Binance.TimeoutSeconds = defaultProviderTimeout
	}
	if c.Market.CoinGecko.BaseURL == "" {
		c.Market.CoinGecko.BaseURL = defaultCoinGeckoREST
	}
	if c.Market.CoinGecko.TimeoutSeconds <= 0 {
		c.Market.CoinGecko.TimeoutSeconds = defaultProviderTimeout
	}
	if c.Market.Kraken.BaseURL == "" {
		c.Market.Kraken.BaseURL = defaultKrakenREST
	}
	if c.Market.Kraken.TimeoutSeconds <= 0 {
		c.Market.Kraken.TimeoutSeconds = defaultProviderTimeout
	}

	if c.Signal.RSIPeriod <= 0 {
		c.Signal.RSIPeriod = 14
	}
	if c.Signal.EMAFast <= 0 {
		c.Signal.EMAFast = 12
	}
	if c.Signal.EMASlow <= 0 {
		c.Signal.EMASlow = 26
	}
	if c.Signal.MACDFast <= 0 {
		c.Signal.MACDFast = 12
	}
	if c.Signal.MACDSlow <= 0 {
		c.Signal.MACDSlow = 26
	}
	if c.Signal.MACDSignal <= 0 {
		c.Signal.MACDSignal = 9
	}
	if c.Signal.BandPeriod <= 0 {
		c.Signal.BandPeriod = 20
	}
	if c.Signal.BandStdDev <= 0 {
		c.Signal.BandStdDev = 2
	}
	if c.Signal.VolumePeriod <= 0 {
		c.Signal.VolumePeriod = 20
	}
	if c.Signal.PivotLookback <= 0 {
		c.Signal.PivotLookback = 20
	}

	if c.Sentiment.APIURL == "" {
		c.Sentiment.APIURL = defaultSentimentURL
	}
	if c.Sentiment.Model == "" {
		c.Sentiment.Model = defaultSentimentModel
	}
	if c.Sentiment.TimeoutSeconds <= 0 {
		c.Sentiment.TimeoutSeconds = defaultSentimentTimeout
	}
	if c.Sentiment.MaxRetries < 0 {
		c.Sentiment.MaxRetries = 0
	}

	if c.Decision.Weights == (WeightConfig{}) {
		c.Decision.Weights = WeightConfig{Technical: 0.4, Sentiment: 0.2, Risk: 0.2, Timing: 0.2}
	}
	if c.Decision.Threshold <= 0 {
		c.Decision.Threshold = defaultDecisionThresh
	}
	if c.Decision.MinConfidence <= 0 {
		c.Decision.MinConfidence = defaultMinConfidence
	}

	if c.Risk.Profile == "" {
		c.Risk.Profile = defaultRiskProfile
	}
	if c.Risk.Capital <= 0 {
		c.Risk.Capital = 10000
	}
	if c.Risk.MaxPositions <= 0 {
		c.Risk.MaxPositions = defaultMaxPositions
	}
	if c.Risk.MaxDailyLossPct <= 0 {
		c.Risk.MaxDailyLossPct = defaultMaxDailyLossPct
	}
	if c.Risk.MinNotional <= 0 {
		c.Risk.MinNotional = defaultMinNotional
	}

	if c.Execution.Exchange == "" {
		c.Execution.Exchange = defaultExchange
	}
	if c.Execution.OrderType == "" {
		c.Execution.OrderType = defaultOrderType
	}
	if c.Execution.TimeoutSeconds <= 0 {
		c.Execution.TimeoutSeconds = defaultExecTimeout
	}
	if c.Execution.StatusRetries <= 0 {
		c.Execution.StatusRetries = defaultStatusRetries
	}

	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Store.FallbackPath == "" {
		c.Store.FallbackPath = defaultFallbackPath
	}

	if c.Schedule.DecisionIntervalSeconds <= 0 {
		c.Schedule.DecisionIntervalSeconds = defaultDecisionSec
	}
	if c.Schedule.MonitorIntervalSeconds <= 0 {
		c.Schedule.MonitorIntervalSeconds = defaultMonitorSec
	}
	if c.Schedule.ReviewIntervalSeconds <= 0 {
		c.Schedule.ReviewIntervalSeconds = defaultReviewSec
	}
	if c.Schedule.ReportIntervalSeconds <= 0 {
		c.Schedule.ReportIntervalSeconds = defaultReportSec
	}
	if c.Schedule.MaxConcurrentSymbols <= 0 {
		c.Schedule.MaxConcurrentSymbols = defaultMaxConcurrent
	}
	if c.Schedule.CycleBudgetSeconds <= 0 {
		c.Schedule.CycleBudgetSeconds = defaultCycleBudgetSec
	}
}
