package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Trading: TradingConfig{
			CEX:            "binance",
			BaseAsset:      "ETH",
			QuoteAsset:     "USDT",
			Timeframe:      "1m",
			InitialCapital: 10000.0,
		},
		Strategy: StrategyConfig{
			Parameters: defaultV5Parameters(),
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty cex",
			mutate: func(c *Config) { c.Trading.CEX = "" },
		},
		{
			name:   "empty base asset",
			mutate: func(c *Config) { c.Trading.BaseAsset = "" },
		},
		{
			name:   "unsupported timeframe",
			mutate: func(c *Config) { c.Trading.Timeframe = "1d" },
		},
		{
			name:   "zero capital",
			mutate: func(c *Config) { c.Trading.InitialCapital = 0 },
		},
		{
			name: "take profit weights not summing to one",
			mutate: func(c *Config) {
				c.Strategy.Parameters.TakeProfitWeight1 = 0.6
				c.Strategy.Parameters.TakeProfitWeight2 = 0.6
			},
		},
		{
			name: "profit taking beyond max holding",
			mutate: func(c *Config) {
				c.Strategy.Parameters.ProfitTakingMinutes = 300
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestV5Parameters_ToParams(t *testing.T) {
	params := defaultV5Parameters().ToParams()

	require.NoError(t, params.Validate())
	assert.Equal(t, 0.017, params.StopLoss)
	assert.Equal(t, 5*time.Minute, params.MinHoldingTime)
	assert.Equal(t, 4*time.Hour, params.MaxHoldingTime)
	assert.Equal(t, time.Hour, params.ProfitTakingTime)
	assert.Equal(t, 30*time.Minute, params.CooldownPeriod)
	assert.Equal(t, 100.0, params.PositionSize())
}

func TestConfig_GetTradingPair(t *testing.T) {
	cfg := validConfig()
	pair := cfg.GetTradingPair()

	assert.Equal(t, "ETH/USDT", pair.String())
	assert.Equal(t, "ETHUSDT", pair.Symbol())
}
