package risk

import (
	"testing"
	"time"

	"scalpbot/src/position"
	"scalpbot/src/state"
	"scalpbot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newGate(balance float64) (*Gate, *state.TradingState) {
	s := state.NewTradingState(decimal.NewFromFloat(balance))
	return NewGate(s, strategy.GetDefaultV5Params()), s
}

func TestGate_AllowsTradeByDefault(t *testing.T) {
	gate, _ := newGate(10000)

	ok, reason := gate.ShouldTrade(now)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestGate_CooldownAfterConsecutiveLosses(t *testing.T) {
	gate, s := newGate(10000)

	// 三连亏触发冷却（默认阈值3，冷却30分钟）
	for i := 0; i < 3; i++ {
		s.FinalizeTrade(decimal.NewFromFloat(-10), now)
	}

	ok, reason := gate.ShouldTrade(now.Add(10 * time.Minute))
	assert.False(t, ok)
	assert.Contains(t, reason, "cooldown")

	// 冷却期过后放行
	ok, _ = gate.ShouldTrade(now.Add(31 * time.Minute))
	assert.True(t, ok)
}

func TestGate_CooldownRequiresThreshold(t *testing.T) {
	gate, s := newGate(10000)

	// 两连亏未达阈值，不触发冷却
	s.FinalizeTrade(decimal.NewFromFloat(-10), now)
	s.FinalizeTrade(decimal.NewFromFloat(-10), now)

	ok, _ := gate.ShouldTrade(now.Add(time.Minute))
	assert.True(t, ok)
}

func TestGate_DailyTradeLimit(t *testing.T) {
	gate, s := newGate(10000)

	// 达到当日上限后无论信号质量如何都拒绝
	for i := 0; i < strategy.GetDefaultV5Params().MaxDailyTrades; i++ {
		s.RegisterTradeOpened(now)
	}

	ok, reason := gate.ShouldTrade(now.Add(time.Minute))
	assert.False(t, ok)
	assert.Contains(t, reason, "daily trade limit")

	// 跨日后计数清零，恢复放行
	nextDay := time.Date(2024, 3, 2, 0, 5, 0, 0, time.UTC)
	ok, _ = gate.ShouldTrade(nextDay)
	assert.True(t, ok)
}

func TestGate_InsufficientBalance(t *testing.T) {
	// 默认仓位 100*1.0，余额50不足
	gate, _ := newGate(50)

	ok, reason := gate.ShouldTrade(now)
	assert.False(t, ok)
	assert.Contains(t, reason, "insufficient balance")
}

func TestGate_SinglePositionInvariant(t *testing.T) {
	gate, s := newGate(10000)

	s.SetPosition(&position.Position{ID: "pos_1"})

	ok, reason := gate.ShouldTrade(now)
	assert.False(t, ok)
	assert.Contains(t, reason, "position already open")
}
