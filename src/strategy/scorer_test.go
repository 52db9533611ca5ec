package strategy

import (
	"testing"
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/indicators"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeBars 由收盘价和成交量序列构造测试K线
func makeBars(closes, volumes []float64) []*cex.KlineData {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*cex.KlineData, len(closes))
	for i := range closes {
		close := decimal.NewFromFloat(closes[i])
		bars[i] = &cex.KlineData{
			TradingPair: cex.TradingPair{Base: "ETH", Quote: "USDT"},
			Interval:    "1m",
			OpenTime:    start.Add(time.Duration(i) * time.Minute),
			CloseTime:   start.Add(time.Duration(i+1) * time.Minute),
			Open:        close,
			High:        close,
			Low:         close,
			Close:       close,
			Volume:      decimal.NewFromFloat(volumes[i]),
			IsFinal:     true,
		}
	}
	return bars
}

// flatVolumes 生成恒定成交量序列
func flatVolumes(n int, v float64) []float64 {
	volumes := make([]float64, n)
	for i := range volumes {
		volumes[i] = v
	}
	return volumes
}

// wiggle 生成有界波动的横盘序列（波动率落在接受区间内，RSI居中）
func wiggle(n int, base float64) []float64 {
	closes := make([]float64, n)
	price := base
	for i := range closes {
		if i%2 == 0 {
			price *= 1.004
		} else {
			price *= 0.996
		}
		closes[i] = price
	}
	return closes
}

// declineTail 横盘后持续下跌的序列（尾部RSI超卖）
func declineTail(n, tailLen int, base float64) []float64 {
	closes := wiggle(n-tailLen, base)
	price := closes[len(closes)-1]
	for i := 0; i < tailLen; i++ {
		// 跌幅交替，避免收益率恒定导致波动率为零
		if i%2 == 0 {
			price *= 0.990
		} else {
			price *= 0.997
		}
		closes = append(closes, price)
	}
	return closes
}

func TestScorer_InsufficientBars(t *testing.T) {
	scorer := NewScorer(GetDefaultV5Params())

	bars := makeBars(wiggle(MinBarsForSignal-1, 100), flatVolumes(MinBarsForSignal-1, 1000))
	signal, err := scorer.Evaluate(bars)

	assert.Nil(t, signal)
	assert.ErrorIs(t, err, indicators.ErrInsufficientData)
}

func TestScorer_VolatilityGate(t *testing.T) {
	scorer := NewScorer(GetDefaultV5Params())

	// 完全横盘：波动率为0，低于下限0.002
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	signal, err := scorer.Evaluate(makeBars(closes, flatVolumes(60, 1000)))

	assert.NoError(t, err)
	assert.Nil(t, signal)
}

func TestScorer_VolumeRatioGate(t *testing.T) {
	scorer := NewScorer(GetDefaultV5Params())

	// 尾部RSI超卖、波动率正常，但当前量比0.5低于下限0.7
	closes := declineTail(60, 15, 100)
	volumes := flatVolumes(60, 1000)
	volumes[59] = 500

	signal, err := scorer.Evaluate(makeBars(closes, volumes))

	assert.NoError(t, err)
	assert.Nil(t, signal)
}

func TestScorer_OversoldLongSignal(t *testing.T) {
	params := GetDefaultV5Params()
	// 抬高趋势阈值使趋势指标保持沉默，只验证RSI路径
	params.TrendStrengthThreshold = 0.10
	scorer := NewScorer(params)

	// 尾部连续下跌：RSI超卖；恒定成交量：量比1.0 > 1.2*0.7，量能确认生效
	closes := declineTail(60, 15, 100)
	signal, err := scorer.Evaluate(makeBars(closes, flatVolumes(60, 1000)))

	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, DirectionLong, signal.Direction)
	// RSI 0.40 + 量能确认 0.20 + 波动率确认 0.10
	assert.InDelta(t, 0.70, signal.Strength, 1e-9)
	assert.InDelta(t, 0.91, signal.Confidence, 1e-9)
	assert.Equal(t, 3, signal.Agreements)
	assert.GreaterOrEqual(t, signal.Strength, 0.0)
	assert.LessOrEqual(t, signal.Strength, 1.0)
}

func TestScorer_OverboughtShortSignal(t *testing.T) {
	params := GetDefaultV5Params()
	params.TrendStrengthThreshold = 0.10
	scorer := NewScorer(params)

	// 尾部连续上涨：RSI超买
	closes := wiggle(45, 100)
	price := closes[len(closes)-1]
	for i := 0; i < 15; i++ {
		if i%2 == 0 {
			price *= 1.010
		} else {
			price *= 1.003
		}
		closes = append(closes, price)
	}

	signal, err := scorer.Evaluate(makeBars(closes, flatVolumes(60, 1000)))

	require.NoError(t, err)
	require.NotNil(t, signal)
	assert.Equal(t, DirectionShort, signal.Direction)
	assert.InDelta(t, 0.70, signal.Strength, 1e-9)
}

func TestScorer_DirectionConflictRejected(t *testing.T) {
	params := GetDefaultV5Params()
	// 极低趋势阈值：下跌序列必然触发趋势做空，与RSI超卖做多冲突
	params.TrendStrengthThreshold = 0.0001
	scorer := NewScorer(params)

	closes := declineTail(60, 15, 100)
	signal, err := scorer.Evaluate(makeBars(closes, flatVolumes(60, 1000)))

	assert.NoError(t, err)
	assert.Nil(t, signal)
}

func TestScorer_TrendOnlySignal(t *testing.T) {
	scorer := NewScorer(GetDefaultV5Params())

	// 温和上行：涨1.0%、跌0.7%交替
	// RSI约58，落在35-65中性区；EMA快线高于慢线且偏离超过0.3%
	closes := make([]float64, 60)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price *= 1.010
		} else {
			price *= 0.993
		}
		closes[i] = price
	}

	signal, err := scorer.Evaluate(makeBars(closes, flatVolumes(60, 1000)))

	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, DirectionLong, signal.Direction)
	// 趋势 0.30 + 量能确认 0.20 + 波动率确认 0.10
	assert.InDelta(t, 0.60, signal.Strength, 1e-9)
	assert.InDelta(t, 0.78, signal.Confidence, 1e-9)
}

func TestScorer_AgreementMandatoryEvenWhenTrendWeak(t *testing.T) {
	// 趋势阈值调低后，下跌序列的趋势指标必然给出short提议
	// 与RSI超卖的long提议冲突，即使两者单独都足以成signal也必须整体拒绝
	params := GetDefaultV5Params()
	params.TrendStrengthThreshold = 0.002
	scorer := NewScorer(params)

	closes := declineTail(60, 15, 100)
	signal, err := scorer.Evaluate(makeBars(closes, flatVolumes(60, 1000)))

	require.NoError(t, err)
	assert.Nil(t, signal)
}

func TestV5Params_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, GetDefaultV5Params().Validate())
	})

	t.Run("take profit weights must sum to one", func(t *testing.T) {
		params := GetDefaultV5Params()
		params.TakeProfitWeight3 = 0.5
		assert.Error(t, params.Validate())
	})

	t.Run("rsi bands must be ordered", func(t *testing.T) {
		params := GetDefaultV5Params()
		params.RSIOversold = 70
		params.RSIOverbought = 65
		assert.Error(t, params.Validate())
	})

	t.Run("volatility band must be ordered", func(t *testing.T) {
		params := GetDefaultV5Params()
		params.VolatilityMax = 0.001
		assert.Error(t, params.Validate())
	})

	t.Run("stop loss must be fractional", func(t *testing.T) {
		params := GetDefaultV5Params()
		params.StopLoss = 1.5
		assert.Error(t, params.Validate())
	})

	t.Run("rsi period must be positive", func(t *testing.T) {
		params := GetDefaultV5Params()
		params.RSIPeriod = 0
		assert.ErrorIs(t, params.Validate(), indicators.ErrInvalidPeriod)
	})

	t.Run("ema periods must be positive", func(t *testing.T) {
		params := GetDefaultV5Params()
		params.EMAFastPeriod = 0
		assert.ErrorIs(t, params.Validate(), indicators.ErrInvalidPeriod)
	})

	t.Run("position size computed from base and multiplier", func(t *testing.T) {
		params := GetDefaultV5Params()
		params.BasePositionSize = 200
		params.PositionSizeMultiplier = 1.5
		assert.InDelta(t, 300.0, params.PositionSize(), 1e-9)
	})
}
