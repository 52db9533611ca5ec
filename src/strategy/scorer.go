package strategy

import (
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/indicators"

	"github.com/shopspring/decimal"
)

// Direction 信号方向
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// MinBarsForSignal 评分所需的最少K线数量
const MinBarsForSignal = 50

// 各指标的评分权重与接受阈值
// 这些数值决定了系统的交易频率与质量的权衡，不可随意调整
const (
	rsiWeight        = 0.40
	trendWeight      = 0.30
	volumeWeight     = 0.20
	volatilityWeight = 0.10

	minAcceptStrength    = 0.40
	confidenceMultiplier = 1.3

	// 量能确认阈值相对量比下限的倍数
	volumeConfirmFactor = 1.2

	// 波动率与量比的统计窗口
	volatilityPeriod  = 20
	volumeRatioPeriod = 20
)

// TradingSignal 交易信号
// 即时产生即时消费，不做持久化
type TradingSignal struct {
	Direction  Direction       `json:"direction"`
	Strength   float64         `json:"strength"`   // 信号强度 [0,1]
	Confidence float64         `json:"confidence"` // min(strength*1.3, 1)
	Agreements int             `json:"agreements"` // 参与评分的指标数量
	Timestamp  time.Time       `json:"timestamp"`
	Price      decimal.Decimal `json:"price"` // 触发价格
}

// Scorer V5信号评分器
// 将多个技术指标的输出合成为单一的开仓决策
type Scorer struct {
	params *V5Params
}

// NewScorer 创建信号评分器
func NewScorer(params *V5Params) *Scorer {
	return &Scorer{params: params}
}

// GetParams 获取策略参数
func (s *Scorer) GetParams() *V5Params {
	return s.params
}

// Evaluate 评估K线缓冲区，产生交易信号或无信号(nil)
// 评分流程：
//  1. 波动率与量比闸门，任一不满足直接放弃
//  2. RSI(±0.40)与趋势(±0.30)为方向性指标，方向冲突时放弃
//  3. 量能(+0.20)与波动率(+0.10)为确认性指标，不影响方向
//  4. 强度达到0.40且方向确立才接受
func (s *Scorer) Evaluate(bars []*cex.KlineData) (*TradingSignal, error) {
	if len(bars) < MinBarsForSignal {
		return nil, indicators.ErrInsufficientData
	}

	closes := make([]decimal.Decimal, len(bars))
	volumes := make([]decimal.Decimal, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}

	volatility := indicators.Volatility(closes, volatilityPeriod).InexactFloat64()
	volumeRatio := indicators.VolumeRatio(volumes, volumeRatioPeriod).InexactFloat64()

	// 闸门：波动率出界或量能不足时不评分
	if volatility < s.params.VolatilityMin || volatility > s.params.VolatilityMax {
		return nil, nil
	}
	if volumeRatio < s.params.VolumeRatioMin {
		return nil, nil
	}

	var (
		strength   float64
		agreements int
		direction  Direction
	)

	// RSI：超卖提议做多，超买提议做空
	rsi := indicators.RSI(closes, s.params.RSIPeriod).InexactFloat64()
	if rsi <= s.params.RSIOversold {
		strength += rsiWeight
		agreements++
		direction = DirectionLong
	} else if rsi >= s.params.RSIOverbought {
		strength += rsiWeight
		agreements++
		direction = DirectionShort
	}

	// 趋势：快慢EMA相对偏离超过阈值时提议方向
	// 与RSI方向冲突时整体放弃——方向一致是硬性要求
	emaFast := indicators.EMA(closes, s.params.EMAFastPeriod)
	emaSlow := indicators.EMA(closes, s.params.EMASlowPeriod)
	if !emaSlow.IsZero() {
		trendStrength := emaFast.Sub(emaSlow).Div(emaSlow).InexactFloat64()
		if trendStrength > s.params.TrendStrengthThreshold || trendStrength < -s.params.TrendStrengthThreshold {
			trendDirection := DirectionLong
			if emaFast.LessThan(emaSlow) {
				trendDirection = DirectionShort
			}

			if direction != "" && direction != trendDirection {
				return nil, nil
			}

			strength += trendWeight
			agreements++
			direction = trendDirection
		}
	}

	// 量能确认：无方向性
	if volumeRatio > volumeConfirmFactor*s.params.VolumeRatioMin {
		strength += volumeWeight
		agreements++
	}

	// 波动率确认：严格落在接受区间内部
	if volatility > s.params.VolatilityMin && volatility < s.params.VolatilityMax {
		strength += volatilityWeight
		agreements++
	}

	if direction == "" || strength < minAcceptStrength {
		return nil, nil
	}

	confidence := strength * confidenceMultiplier
	if confidence > 1.0 {
		confidence = 1.0
	}

	latest := bars[len(bars)-1]
	return &TradingSignal{
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Agreements: agreements,
		Timestamp:  latest.CloseTime,
		Price:      latest.Close,
	}, nil
}
