package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimals(values ...float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(values))
	for i, v := range values {
		result[i] = decimal.NewFromFloat(v)
	}
	return result
}

func assertClose(t *testing.T, expected float64, actual decimal.Decimal, tolerance float64) {
	t.Helper()
	diff := actual.Sub(decimal.NewFromFloat(expected)).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(tolerance)),
		"expected %v, got %s", expected, actual.String())
}

func TestRSI(t *testing.T) {
	t.Run("insufficient data returns 50", func(t *testing.T) {
		// period=14 需要15个收盘价
		result := RSI(decimals(100, 101, 102), 14)
		assert.True(t, result.Equal(decimal.NewFromInt(50)))
	})

	t.Run("zero average loss returns 100", func(t *testing.T) {
		// 单边上涨，平均跌幅为零
		result := RSI(decimals(100, 101, 102, 103, 104), 3)
		assert.True(t, result.Equal(decimal.NewFromInt(100)))
	})

	t.Run("known values", func(t *testing.T) {
		// 涨1、跌1、涨1: avgGain=2/3, avgLoss=1/3, RS=2
		// RSI = 100 - 100/3 ≈ 66.67
		result := RSI(decimals(10, 11, 10, 11), 3)
		assertClose(t, 66.6667, result, 0.01)
	})

	t.Run("all losses", func(t *testing.T) {
		// 单边下跌，avgGain=0, RS=0, RSI=0
		result := RSI(decimals(104, 103, 102, 101, 100), 3)
		assertClose(t, 0, result, 0.01)
	})

	t.Run("invalid period returns 50", func(t *testing.T) {
		result := RSI(decimals(100, 101, 102), 0)
		assert.True(t, result.Equal(decimal.NewFromInt(50)))
	})
}

func TestEMA(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		result := EMA(nil, 5)
		assert.True(t, result.IsZero())
	})

	t.Run("single point returns last close", func(t *testing.T) {
		result := EMA(decimals(123.45), 5)
		assertClose(t, 123.45, result, 1e-9)
	})

	t.Run("seeded with first element", func(t *testing.T) {
		// period=3, k=0.5: ema = 20*0.5 + 10*0.5 = 15
		result := EMA(decimals(10, 20), 3)
		assertClose(t, 15, result, 1e-9)
	})

	t.Run("recursive smoothing", func(t *testing.T) {
		// period=3, k=0.5
		// ema1 = 10; ema2 = 20*0.5+10*0.5 = 15; ema3 = 30*0.5+15*0.5 = 22.5
		result := EMA(decimals(10, 20, 30), 3)
		assertClose(t, 22.5, result, 1e-9)
	})

	t.Run("constant series converges to constant", func(t *testing.T) {
		result := EMA(decimals(50, 50, 50, 50, 50), 4)
		assertClose(t, 50, result, 1e-9)
	})
}

func TestVolatility(t *testing.T) {
	t.Run("insufficient data returns 0", func(t *testing.T) {
		result := Volatility(decimals(100, 101), 5)
		assert.True(t, result.IsZero())
	})

	t.Run("constant prices have zero volatility", func(t *testing.T) {
		result := Volatility(decimals(100, 100, 100, 100), 3)
		assertClose(t, 0, result, 1e-9)
	})

	t.Run("known values", func(t *testing.T) {
		// 收益率: +0.1, -0.1; 均值0; 方差0.01; 标准差0.1
		result := Volatility(decimals(100, 110, 99), 2)
		assertClose(t, 0.1, result, 1e-6)
	})
}

func TestVolumeRatio(t *testing.T) {
	t.Run("insufficient data returns 1", func(t *testing.T) {
		result := VolumeRatio(decimals(100, 200), 5)
		assert.True(t, result.Equal(decimal.NewFromInt(1)))
	})

	t.Run("zero average returns 1", func(t *testing.T) {
		result := VolumeRatio(decimals(0, 0, 0, 500), 3)
		assert.True(t, result.Equal(decimal.NewFromInt(1)))
	})

	t.Run("excludes current volume from average", func(t *testing.T) {
		// 之前3根平均: (10+20+30)/3 = 20; 当前 40 → 2.0
		result := VolumeRatio(decimals(10, 20, 30, 40), 3)
		assertClose(t, 2.0, result, 1e-9)
	})

	t.Run("ratio of one for average volume", func(t *testing.T) {
		result := VolumeRatio(decimals(20, 20, 20, 20), 3)
		assertClose(t, 1.0, result, 1e-9)
	})
}
