package config

import "time"

// Config 是 Helmsman 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Signal    SignalConfig    `toml:"signal"`
	Sentiment SentimentConfig `toml:"sentiment"`
	Decision  DecisionConfig  `toml:"decision"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Store     StoreConfig     `toml:"store"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string   `toml:"env"`
	LogLevel string   `toml:"log_level"`
	LogPath  string   `toml:"log_path"`
	Symbols  []string `toml:"symbols"`
	Interval string   `toml:"interval"`
}

// MarketConfig 控制多数据源聚合：优先级、缓存与健康策略。
type MarketConfig struct {
	Providers          []string       `toml:"providers"`
	CandleLimit        int            `toml:"candle_limit"`
	CacheTTLSeconds    int            `toml:"cache_ttl_seconds"`
	FailureThreshold   float64        `toml:"failure_threshold"`
	BackoffBaseSeconds int            `toml:"backoff_base_seconds"`
	BackoffMaxSeconds  int            `toml:"backoff_max_seconds"`
	RatePerMinute      map[string]int `toml:"rate_per_minute"`
	Binance            BinanceConfig  `toml:"binance"`
	CoinGecko          RESTConfig     `toml:"coingecko"`
	Kraken             RESTConfig     `toml:"kraken"`
}

type BinanceConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type RESTConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type SignalConfig struct {
	RSIPeriod     int     `toml:"rsi_period"`
	EMAFast       int     `toml:"ema_fast"`
	EMASlow       int     `toml:"ema_slow"`
	MACDFast      int     `toml:"macd_fast"`
	MACDSlow      int     `toml:"macd_slow"`
	MACDSignal    int     `toml:"macd_signal"`
	BandPeriod    int     `toml:"band_period"`
	BandStdDev    float64 `toml:"band_std_dev"`
	VolumePeriod  int     `toml:"volume_period"`
	PivotLookback int     `toml:"pivot_lookback"`
}

// SentimentConfig 描述外部推理服务（OpenAI 兼容接口）的访问方式。
type SentimentConfig struct {
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	Headers        map[string]string `toml:"headers"`
}

// DecisionConfig 暴露决策权重与阈值；来源文档对这些常量记载不一致，
// 因此全部作为配置面，不写死任何单一观测值。
type DecisionConfig struct {
	Weights       WeightConfig `toml:"weights"`
	Threshold     float64      `toml:"threshold"`
	MinConfidence float64      `toml:"min_confidence"`
}

type WeightConfig struct {
	Technical float64 `toml:"technical"`
	Sentiment float64 `toml:"sentiment"`
	Risk      float64 `toml:"risk"`
	Timing    float64 `toml:"timing"`
}

type RiskConfig struct {
	Profile         string  `toml:"profile"` // conservative | balanced | aggressive
	Capital         float64 `toml:"capital"`
	MaxPositions    int     `toml:"max_positions"`
	MaxDailyLossPct float64 `toml:"max_daily_loss_pct"`
	MinNotional     float64 `toml:"min_notional"`
	KellySizing     bool    `toml:"kelly_sizing"`
}

type ExecutionConfig struct {
	Exchange       string  `toml:"exchange"` // "paper" | "binance"
	OrderType      string  `toml:"order_type"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	StatusRetries  int     `toml:"status_retries"`
	SlippageBps    float64 `toml:"slippage_bps"` // paper fills only
	APIKey         string  `toml:"api_key"`
	APISecret      string  `toml:"api_secret"`
	RESTBaseURL    string  `toml:"rest_base_url"`
}

type StoreConfig struct {
	Path         string `toml:"path"`
	FallbackPath string `toml:"fallback_path"`
}

type ScheduleConfig struct {
	DecisionIntervalSeconds int `toml:"decision_interval_seconds"`
	MonitorIntervalSeconds  int `toml:"monitor_interval_seconds"`
	ReviewIntervalSeconds   int `toml:"review_interval_seconds"`
	ReportIntervalSeconds   int `toml:"report_interval_seconds"`
	MaxConcurrentSymbols    int `toml:"max_concurrent_symbols"`
	CycleBudgetSeconds      int `toml:"cycle_budget_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

func (m MarketConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

func (m MarketConfig) BackoffBase() time.Duration {
	return time.Duration(m.BackoffBaseSeconds) * time.Second
}

func (m MarketConfig) BackoffMax() time.Duration {
	return time.Duration(m.BackoffMaxSeconds) * time.Second
}

func (s ScheduleConfig) DecisionInterval() time.Duration {
	return time.Duration(s.DecisionIntervalSeconds) * time.Second
}

func (s ScheduleConfig) MonitorInterval() time.Duration {
	return time.Duration(s.MonitorIntervalSeconds) * time.Second
}

func (s ScheduleConfig) ReviewInterval() time.Duration {
	return time.Duration(s.ReviewIntervalSeconds) * time.Second
}

func (s ScheduleConfig) ReportInterval() time.Duration {
	return time.Duration(s.ReportIntervalSeconds) * time.Second
}

func (s ScheduleConfig) CycleBudget() time.Duration {
	return time.Duration(s.CycleBudgetSeconds) * time.Second
}
