package strategy

import (
	"fmt"
	"time"

	"scalpbot/src/indicators"
)

// V5Params V5动量策略参数
// 构造后视为不可变，交易过程中不得修改
type V5Params struct {
	// 止损止盈
	StopLoss          float64 // 止损比例，默认0.017 (1.7%)
	TakeProfitLevel1  float64 // 第一档止盈比例，默认0.012
	TakeProfitLevel2  float64 // 第二档止盈比例，默认0.022
	TakeProfitLevel3  float64 // 第三档止盈比例，默认0.035
	TakeProfitWeight1 float64 // 第一档平仓比例，默认0.5
	TakeProfitWeight2 float64 // 第二档平仓比例，默认0.3
	TakeProfitWeight3 float64 // 第三档平仓比例，默认0.2

	// 移动止损
	TrailingStopActivation float64 // 启用移动止损的浮盈比例，默认0.010
	TrailingStopDistance   float64 // 移动止损距离，默认0.005

	// RSI
	RSIPeriod     int     // RSI周期，默认14
	RSIOversold   float64 // 超卖阈值，默认35
	RSIOverbought float64 // 超买阈值，默认65

	// EMA趋势
	EMAFastPeriod          int     // 快线周期，默认9
	EMASlowPeriod          int     // 慢线周期，默认21
	TrendStrengthThreshold float64 // 趋势强度阈值，默认0.003

	// 波动率与量能闸门
	VolatilityMin  float64 // 波动率下限，默认0.002
	VolatilityMax  float64 // 波动率上限，默认0.075
	VolumeRatioMin float64 // 量比下限，默认0.7

	// 持仓时间
	MinHoldingTime   time.Duration // 最短持仓时间，默认5分钟
	MaxHoldingTime   time.Duration // 最长持仓时间，默认4小时
	ProfitTakingTime time.Duration // 持仓超时且有浮盈即离场的时间，默认1小时

	// 风控
	MaxConsecutiveLosses int           // 触发冷却的连续亏损次数，默认3
	CooldownPeriod       time.Duration // 冷却时长，默认30分钟
	MaxDailyTrades       int           // 单日最大开仓次数，默认10

	// 仓位
	BasePositionSize       float64 // 基础仓位（计价货币），默认100
	PositionSizeMultiplier float64 // 仓位倍数，默认1.0
}

// GetDefaultV5Params 获取默认的V5策略参数
func GetDefaultV5Params() *V5Params {
	return &V5Params{
		StopLoss:          0.017,
		TakeProfitLevel1:  0.012,
		TakeProfitLevel2:  0.022,
		TakeProfitLevel3:  0.035,
		TakeProfitWeight1: 0.5,
		TakeProfitWeight2: 0.3,
		TakeProfitWeight3: 0.2,

		TrailingStopActivation: 0.010,
		TrailingStopDistance:   0.005,

		RSIPeriod:     14,
		RSIOversold:   35,
		RSIOverbought: 65,

		EMAFastPeriod:          9,
		EMASlowPeriod:          21,
		TrendStrengthThreshold: 0.003,

		VolatilityMin:  0.002,
		VolatilityMax:  0.075,
		VolumeRatioMin: 0.7,

		MinHoldingTime:   5 * time.Minute,
		MaxHoldingTime:   4 * time.Hour,
		ProfitTakingTime: 1 * time.Hour,

		MaxConsecutiveLosses: 3,
		CooldownPeriod:       30 * time.Minute,
		MaxDailyTrades:       10,

		BasePositionSize:       100.0,
		PositionSizeMultiplier: 1.0,
	}
}

// PositionSize 计算开仓金额（计价货币）
func (p *V5Params) PositionSize() float64 {
	return p.BasePositionSize * p.PositionSizeMultiplier
}

// TakeProfitLevels 返回有序的止盈档位与平仓比例
func (p *V5Params) TakeProfitLevels() ([3]float64, [3]float64) {
	return [3]float64{p.TakeProfitLevel1, p.TakeProfitLevel2, p.TakeProfitLevel3},
		[3]float64{p.TakeProfitWeight1, p.TakeProfitWeight2, p.TakeProfitWeight3}
}

// Validate 验证参数有效性
func (p *V5Params) Validate() error {
	if p.StopLoss <= 0 || p.StopLoss >= 1 {
		return fmt.Errorf("stop_loss must be in (0,1), got %f", p.StopLoss)
	}
	if p.TakeProfitLevel1 <= 0 || p.TakeProfitLevel2 <= p.TakeProfitLevel1 || p.TakeProfitLevel3 <= p.TakeProfitLevel2 {
		return fmt.Errorf("take profit levels must be positive and ascending, got %f/%f/%f",
			p.TakeProfitLevel1, p.TakeProfitLevel2, p.TakeProfitLevel3)
	}

	weightSum := p.TakeProfitWeight1 + p.TakeProfitWeight2 + p.TakeProfitWeight3
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("take profit weights must sum to 1.0, got %f", weightSum)
	}

	if p.TrailingStopActivation <= 0 || p.TrailingStopDistance <= 0 {
		return fmt.Errorf("trailing stop parameters must be positive, got activation=%f distance=%f",
			p.TrailingStopActivation, p.TrailingStopDistance)
	}

	if p.RSIPeriod <= 0 {
		return fmt.Errorf("rsi_period %d: %w", p.RSIPeriod, indicators.ErrInvalidPeriod)
	}
	if p.RSIOversold <= 0 || p.RSIOverbought >= 100 || p.RSIOversold >= p.RSIOverbought {
		return fmt.Errorf("rsi bands must satisfy 0 < oversold < overbought < 100, got %f/%f",
			p.RSIOversold, p.RSIOverbought)
	}

	if p.EMAFastPeriod <= 0 || p.EMASlowPeriod <= 0 {
		return fmt.Errorf("ema periods %d/%d: %w", p.EMAFastPeriod, p.EMASlowPeriod, indicators.ErrInvalidPeriod)
	}
	if p.EMASlowPeriod <= p.EMAFastPeriod {
		return fmt.Errorf("ema periods must satisfy fast < slow, got %d/%d",
			p.EMAFastPeriod, p.EMASlowPeriod)
	}
	if p.TrendStrengthThreshold <= 0 {
		return fmt.Errorf("trend_strength_threshold must be positive, got %f", p.TrendStrengthThreshold)
	}

	if p.VolatilityMin < 0 || p.VolatilityMax <= p.VolatilityMin {
		return fmt.Errorf("volatility band must satisfy 0 <= min < max, got %f/%f",
			p.VolatilityMin, p.VolatilityMax)
	}
	if p.VolumeRatioMin <= 0 {
		return fmt.Errorf("volume_ratio_min must be positive, got %f", p.VolumeRatioMin)
	}

	if p.MinHoldingTime < 0 || p.MaxHoldingTime <= 0 {
		return fmt.Errorf("holding times must be positive")
	}
	if p.ProfitTakingTime < p.MinHoldingTime || p.ProfitTakingTime > p.MaxHoldingTime {
		return fmt.Errorf("profit_taking_time must be within [min_holding_time, max_holding_time]")
	}

	if p.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("max_consecutive_losses must be positive, got %d", p.MaxConsecutiveLosses)
	}
	if p.CooldownPeriod <= 0 {
		return fmt.Errorf("cooldown_period must be positive")
	}
	if p.MaxDailyTrades <= 0 {
		return fmt.Errorf("max_daily_trades must be positive, got %d", p.MaxDailyTrades)
	}

	if p.BasePositionSize <= 0 || p.PositionSizeMultiplier <= 0 {
		return fmt.Errorf("position sizing must be positive, got base=%f multiplier=%f",
			p.BasePositionSize, p.PositionSizeMultiplier)
	}

	return nil
}
