package config

import (
	"fmt"
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/history"
	"scalpbot/src/strategy"
	"scalpbot/src/timeframes"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-config/configs"
)

// Config 主配置结构
type Config struct {
	Trading  TradingConfig  `conf:"trading,交易基础配置"`
	Strategy StrategyConfig `conf:"strategy,V5策略配置"`
	History  HistoryConfig  `conf:"history,交易历史库配置"`
}

// TradingConfig 交易配置
type TradingConfig struct {
	CEX            string  `conf:"cex,交易所名称 - 目前支持binance"`
	BaseAsset      string  `conf:"base_asset,基础资产 - 如ETH、BTC"`
	QuoteAsset     string  `conf:"quote_asset,计价资产 - 如USDT"`
	Timeframe      string  `conf:"timeframe,K线周期 - 支持1m,3m,5m,15m,30m,1h"`
	InitialCapital float64 `conf:"initial_capital,初始资金 - 绩效统计的起始金额(计价资产)"`
}

// StrategyConfig V5策略配置
type StrategyConfig struct {
	Parameters V5Parameters `conf:"parameters,V5动量策略参数"`
}

// V5Parameters V5动量策略参数，时间类参数以分钟为单位
type V5Parameters struct {
	StopLoss          float64 `conf:"stop_loss,止损比例 - 默认0.017"`
	TakeProfitLevel1  float64 `conf:"take_profit_level1,第一档止盈比例 - 默认0.012"`
	TakeProfitLevel2  float64 `conf:"take_profit_level2,第二档止盈比例 - 默认0.022"`
	TakeProfitLevel3  float64 `conf:"take_profit_level3,第三档止盈比例 - 默认0.035"`
	TakeProfitWeight1 float64 `conf:"take_profit_weight1,第一档平仓比例 - 默认0.5"`
	TakeProfitWeight2 float64 `conf:"take_profit_weight2,第二档平仓比例 - 默认0.3"`
	TakeProfitWeight3 float64 `conf:"take_profit_weight3,第三档平仓比例 - 默认0.2"`

	TrailingStopActivation float64 `conf:"trailing_stop_activation,启用移动止损的浮盈比例 - 默认0.010"`
	TrailingStopDistance   float64 `conf:"trailing_stop_distance,移动止损距离 - 默认0.005"`

	RSIPeriod     int     `conf:"rsi_period,RSI周期 - 默认14"`
	RSIOversold   float64 `conf:"rsi_oversold,RSI超卖阈值 - 默认35"`
	RSIOverbought float64 `conf:"rsi_overbought,RSI超买阈值 - 默认65"`

	EMAFastPeriod          int     `conf:"ema_fast_period,EMA快线周期 - 默认9"`
	EMASlowPeriod          int     `conf:"ema_slow_period,EMA慢线周期 - 默认21"`
	TrendStrengthThreshold float64 `conf:"trend_strength_threshold,趋势强度阈值 - 默认0.003"`

	VolatilityMin  float64 `conf:"volatility_min,波动率下限 - 默认0.002"`
	VolatilityMax  float64 `conf:"volatility_max,波动率上限 - 默认0.075"`
	VolumeRatioMin float64 `conf:"volume_ratio_min,量比下限 - 默认0.7"`

	MinHoldingMinutes   int `conf:"min_holding_minutes,最短持仓时间(分钟) - 默认5"`
	MaxHoldingMinutes   int `conf:"max_holding_minutes,最长持仓时间(分钟) - 默认240"`
	ProfitTakingMinutes int `conf:"profit_taking_minutes,有浮盈即离场的持仓时间(分钟) - 默认60"`

	MaxConsecutiveLosses int `conf:"max_consecutive_losses,触发冷却的连续亏损次数 - 默认3"`
	CooldownMinutes      int `conf:"cooldown_minutes,冷却时长(分钟) - 默认30"`
	MaxDailyTrades       int `conf:"max_daily_trades,单日最大开仓次数 - 默认10"`

	BasePositionSize       float64 `conf:"base_position_size,基础仓位(计价资产) - 默认100"`
	PositionSizeMultiplier float64 `conf:"position_size_multiplier,仓位倍数 - 默认1.0"`
}

// HistoryConfig 交易历史库配置
type HistoryConfig struct {
	Enabled  bool                   `conf:"enabled,是否落盘交易记录"`
	Database history.DatabaseConfig `conf:"database,PostgreSQL连接配置"`
}

// defaultV5Parameters 默认参数与策略包保持一致
func defaultV5Parameters() V5Parameters {
	params := strategy.GetDefaultV5Params()
	return V5Parameters{
		StopLoss:          params.StopLoss,
		TakeProfitLevel1:  params.TakeProfitLevel1,
		TakeProfitLevel2:  params.TakeProfitLevel2,
		TakeProfitLevel3:  params.TakeProfitLevel3,
		TakeProfitWeight1: params.TakeProfitWeight1,
		TakeProfitWeight2: params.TakeProfitWeight2,
		TakeProfitWeight3: params.TakeProfitWeight3,

		TrailingStopActivation: params.TrailingStopActivation,
		TrailingStopDistance:   params.TrailingStopDistance,

		RSIPeriod:     params.RSIPeriod,
		RSIOversold:   params.RSIOversold,
		RSIOverbought: params.RSIOverbought,

		EMAFastPeriod:          params.EMAFastPeriod,
		EMASlowPeriod:          params.EMASlowPeriod,
		TrendStrengthThreshold: params.TrendStrengthThreshold,

		VolatilityMin:  params.VolatilityMin,
		VolatilityMax:  params.VolatilityMax,
		VolumeRatioMin: params.VolumeRatioMin,

		MinHoldingMinutes:   int(params.MinHoldingTime.Minutes()),
		MaxHoldingMinutes:   int(params.MaxHoldingTime.Minutes()),
		ProfitTakingMinutes: int(params.ProfitTakingTime.Minutes()),

		MaxConsecutiveLosses: params.MaxConsecutiveLosses,
		CooldownMinutes:      int(params.CooldownPeriod.Minutes()),
		MaxDailyTrades:       params.MaxDailyTrades,

		BasePositionSize:       params.BasePositionSize,
		PositionSizeMultiplier: params.PositionSizeMultiplier,
	}
}

// AppConfig 全局配置实例
var AppConfig = &Config{
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
	History: HistoryConfig{
		Enabled:  false,
		Database: history.GetDefaultDatabaseConfig("scalpbot"),
	},
}

func init() {
	configs.Unmarshal(AppConfig)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Trading.CEX == "" {
		return fmt.Errorf("cex name cannot be empty")
	}

	if c.Trading.BaseAsset == "" || c.Trading.QuoteAsset == "" {
		return fmt.Errorf("trading pair assets cannot be empty")
	}

	if _, err := timeframes.ParseTimeframe(c.Trading.Timeframe); err != nil {
		return fmt.Errorf("invalid timeframe: %w", err)
	}

	if c.Trading.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}

	return c.Strategy.Parameters.ToParams().Validate()
}

// GetTradingPair 获取交易对
func (c *Config) GetTradingPair() cex.TradingPair {
	return cex.TradingPair{
		Base:  c.Trading.BaseAsset,
		Quote: c.Trading.QuoteAsset,
	}
}

// GetInitialCapital 获取初始资金
func (c *Config) GetInitialCapital() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.InitialCapital)
}

// ToParams 转换为策略参数
func (p V5Parameters) ToParams() *strategy.V5Params {
	return &strategy.V5Params{
		StopLoss:          p.StopLoss,
		TakeProfitLevel1:  p.TakeProfitLevel1,
		TakeProfitLevel2:  p.TakeProfitLevel2,
		TakeProfitLevel3:  p.TakeProfitLevel3,
		TakeProfitWeight1: p.TakeProfitWeight1,
		TakeProfitWeight2: p.TakeProfitWeight2,
		TakeProfitWeight3: p.TakeProfitWeight3,

		TrailingStopActivation: p.TrailingStopActivation,
		TrailingStopDistance:   p.TrailingStopDistance,

		RSIPeriod:     p.RSIPeriod,
		RSIOversold:   p.RSIOversold,
		RSIOverbought: p.RSIOverbought,

		EMAFastPeriod:          p.EMAFastPeriod,
		EMASlowPeriod:          p.EMASlowPeriod,
		TrendStrengthThreshold: p.TrendStrengthThreshold,

		VolatilityMin:  p.VolatilityMin,
		VolatilityMax:  p.VolatilityMax,
		VolumeRatioMin: p.VolumeRatioMin,

		MinHoldingTime:   time.Duration(p.MinHoldingMinutes) * time.Minute,
		MaxHoldingTime:   time.Duration(p.MaxHoldingMinutes) * time.Minute,
		ProfitTakingTime: time.Duration(p.ProfitTakingMinutes) * time.Minute,

		MaxConsecutiveLosses: p.MaxConsecutiveLosses,
		CooldownPeriod:       time.Duration(p.CooldownMinutes) * time.Minute,
		MaxDailyTrades:       p.MaxDailyTrades,

		BasePositionSize:       p.BasePositionSize,
		PositionSizeMultiplier: p.PositionSizeMultiplier,
	}
}
