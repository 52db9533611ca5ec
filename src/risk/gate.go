package risk

import (
	"fmt"
	"time"

	"scalpbot/src/state"
	"scalpbot/src/strategy"

	"github.com/shopspring/decimal"
)

// Gate 开仓风控闸门
// 在每次尝试接受信号之前评估，任一条件不满足则本轮静默跳过
type Gate struct {
	state  *state.TradingState
	params *strategy.V5Params
}

// NewGate 创建风控闸门
func NewGate(tradingState *state.TradingState, params *strategy.V5Params) *Gate {
	return &Gate{
		state:  tradingState,
		params: params,
	}
}

// ShouldTrade 是否允许开新仓
// 返回false时附带原因，仅用于日志，不作为错误
func (g *Gate) ShouldTrade(now time.Time) (bool, string) {
	// 冷却窗口：连亏达到阈值后，自最近一次亏损起冷却期内禁止开仓
	if g.state.ConsecutiveLosses() >= g.params.MaxConsecutiveLosses {
		elapsed := now.Sub(g.state.LastLossTime())
		if elapsed < g.params.CooldownPeriod {
			return false, fmt.Sprintf("in cooldown: %d consecutive losses, %s remaining",
				g.state.ConsecutiveLosses(), (g.params.CooldownPeriod - elapsed).Round(time.Second))
		}
	}

	// 当日开仓上限（跨日自动清零）
	if daily := g.state.DailyTrades(now); daily >= g.params.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d/%d", daily, g.params.MaxDailyTrades)
	}

	// 余额下限
	required := decimal.NewFromFloat(g.params.PositionSize())
	if g.state.Balance().LessThan(required) {
		return false, fmt.Sprintf("insufficient balance: %s < %s",
			g.state.Balance().String(), required.String())
	}

	// 单仓约束
	if g.state.HasOpenPosition() {
		return false, "position already open"
	}

	return true, ""
}
