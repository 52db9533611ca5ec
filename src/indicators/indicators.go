package indicators

import (
	"math"

	"github.com/shopspring/decimal"
)

// 本包内全部为无状态的纯函数计算。
// 数据不足时不返回错误，而是返回各自的中性回退值（RSI=50、EMA=最新收盘价、
// 波动率=0、量比=1），下游的信号闸门依赖这些回退值的确切语义。

var (
	fifty   = decimal.NewFromInt(50)
	hundred = decimal.NewFromInt(100)
)

// RSI 计算相对强弱指数（Wilder平均涨跌幅比值）
// 数据不足时返回50；平均跌幅恰好为零时返回100
func RSI(closes []decimal.Decimal, period int) decimal.Decimal {
	if period <= 0 || len(closes) < period+1 {
		return fifty
	}

	window := closes[len(closes)-period-1:]

	gains := decimal.Zero
	losses := decimal.Zero
	for i := 1; i < len(window); i++ {
		change := window[i].Sub(window[i-1])
		if change.IsPositive() {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Neg())
		}
	}

	periodDec := decimal.NewFromInt(int64(period))
	avgGain := gains.Div(periodDec)
	avgLoss := losses.Div(periodDec)

	if avgLoss.IsZero() {
		return hundred
	}

	rs := avgGain.Div(avgLoss)
	// RSI = 100 - 100/(1+RS)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// EMA 计算指数移动平均
// 以第一个元素为种子，平滑系数 k = 2/(period+1)
// 序列少于2个点时返回最新收盘价
func EMA(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) == 0 {
		return decimal.Zero
	}
	if period <= 0 || len(closes) < 2 {
		return closes[len(closes)-1]
	}

	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1))
	oneMinusK := decimal.NewFromInt(1).Sub(k)

	ema := closes[0]
	for i := 1; i < len(closes); i++ {
		ema = closes[i].Mul(k).Add(ema.Mul(oneMinusK))
	}

	return ema
}

// Volatility 计算收益率标准差（已实现波动率）
// 取末尾 period 个简单收益率的总体标准差，数据不足时返回0
func Volatility(closes []decimal.Decimal, period int) decimal.Decimal {
	if period <= 0 || len(closes) < period+1 {
		return decimal.Zero
	}

	window := closes[len(closes)-period-1:]

	returns := make([]float64, 0, period)
	for i := 1; i < len(window); i++ {
		if window[i-1].IsZero() {
			return decimal.Zero
		}
		r := window[i].Sub(window[i-1]).Div(window[i-1])
		returns = append(returns, r.InexactFloat64())
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))

	// decimal 没有开方，经由 float64 计算标准差
	return decimal.NewFromFloat(math.Sqrt(variance))
}

// VolumeRatio 计算量比：当前成交量 / 之前 period 根K线的平均成交量（不含当前）
// 数据不足或平均值为零时返回1
func VolumeRatio(volumes []decimal.Decimal, period int) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if period <= 0 || len(volumes) < period+1 {
		return one
	}

	current := volumes[len(volumes)-1]
	prior := volumes[len(volumes)-1-period : len(volumes)-1]

	sum := decimal.Zero
	for _, v := range prior {
		sum = sum.Add(v)
	}
	avg := sum.Div(decimal.NewFromInt(int64(period)))

	if avg.IsZero() {
		return one
	}

	return current.Div(avg)
}
