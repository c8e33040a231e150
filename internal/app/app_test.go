package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helmsman/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App: config.AppConfig{
			Symbols:  []string{"BTC/USDT", "ETH/USDT"},
			Interval: "15m",
		},
		Market: config.MarketConfig{
			Providers:   []string{"binance", "coingecko"},
			CandleLimit: 120,
		},
		Decision: config.DecisionConfig{
			Weights:       config.WeightConfig{Technical: 0.4, Sentiment: 0.2, Risk: 0.2, Timing: 0.2},
			Threshold:     0.15,
			MinConfidence: 0.75,
		},
		Risk: config.RiskConfig{
			Profile:         "balanced",
			Capital:         10000,
			MaxPositions:    5,
			MaxDailyLossPct: 0.05,
			MinNotional:     10,
		},
		Execution: config.ExecutionConfig{Exchange: "paper"},
		Store: config.StoreConfig{
			Path:         filepath.Join(dir, "helmsman.db"),
			FallbackPath: filepath.Join(dir, "fallback.db"),
		},
		Schedule: config.ScheduleConfig{
			DecisionIntervalSeconds: 180,
			MonitorIntervalSeconds:  30,
			ReviewIntervalSeconds:   1800,
			ReportIntervalSeconds:   3600,
		},
	}
}

func TestNewAppWiresPaperPipeline(t *testing.T) {
	app, err := NewApp(testConfig(t), "")
	require.NoError(t, err)
	defer app.store.Close()

	assert.NotNil(t, app.trader)
	assert.NotNil(t, app.markets)
	assert.NotNil(t, app.engine)
}

func TestBuildProvidersKeepsConfiguredOrder(t *testing.T) {
	providers, err := buildProviders(config.MarketConfig{
		Providers: []string{"kraken", "binance"},
	})
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "kraken", providers[0].Name())
	assert.Equal(t, "binance", providers[1].Name())
}

func TestBuildProvidersRejectsUnknownName(t *testing.T) {
	_, err := buildProviders(config.MarketConfig{Providers: []string{"ftx"}})
	assert.ErrorContains(t, err, "unknown market provider")
}

func TestBuildExchangeRequiresBinanceCredentials(t *testing.T) {
	_, err := buildExchange(config.ExecutionConfig{Exchange: "binance"}, nil)
	assert.ErrorContains(t, err, "api_key")
}

func TestNewAppRejectsBadRiskProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Risk.Profile = "yolo"
	_, err := NewApp(cfg, "")
	assert.Error(t, err)
}
