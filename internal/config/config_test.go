package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  symbols: ["BTC/USDT", "ETH/USDT"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.App.Symbols)
	assert.Equal(t, "15m", cfg.App.Interval)
	assert.Equal(t, []string{"binance", "coingecko", "kraken"}, cfg.Market.Providers)
	assert.Equal(t, 0.4, cfg.Decision.Weights.Technical)
	assert.Equal(t, 0.75, cfg.Decision.MinConfidence)
	assert.Equal(t, "balanced", cfg.Risk.Profile)
	assert.Equal(t, "paper", cfg.Execution.Exchange)
	assert.Equal(t, 30, cfg.Market.CacheTTLSeconds)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
decision:
  threshold: 0.2
  min_confidence: 0.8
  weights:
    technical: 0.5
    sentiment: 0.2
    risk: 0.2
    timing: 0.1
risk:
  profile: aggressive
  capital: 50000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Decision.Threshold)
	assert.Equal(t, 0.8, cfg.Decision.MinConfidence)
	assert.Equal(t, 0.5, cfg.Decision.Weights.Technical)
	assert.Equal(t, "aggressive", cfg.Risk.Profile)
	assert.Equal(t, 50000.0, cfg.Risk.Capital)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			name: "unknown provider",
			body: "market:\n  providers: [\"bitfinex\"]\n",
		},
		{
			name: "unknown risk profile",
			body: "risk:\n  profile: yolo\n",
		},
		{
			name: "weights do not sum to one",
			body: "decision:\n  weights:\n    technical: 0.9\n    sentiment: 0.9\n    risk: 0.1\n    timing: 0.1\n",
		},
		{
			name: "telegram enabled without token",
			body: "notify:\n  telegram:\n    enabled: true\n",
		},
		{
			name: "unknown exchange",
			body: "execution:\n  exchange: ftx\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
