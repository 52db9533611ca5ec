package state

import (
	"sync"
	"time"

	"scalpbot/src/position"

	"github.com/shopspring/decimal"
)

// TradingState 进程级交易状态聚合
// 余额、当前持仓、计数器与运行统计的唯一持有者
// 所有读写经由互斥锁串行化，其余组件通过引用共享本对象
type TradingState struct {
	mu sync.Mutex

	balance  decimal.Decimal
	position *position.Position

	dailyTrades int
	dailyAnchor time.Time // 当日计数的日期锚点(UTC)

	consecutiveLosses int
	lastLossTime      time.Time

	totalPnL  decimal.Decimal
	totalFees decimal.Decimal
	wins      int
	losses    int

	peakBalance decimal.Decimal
	maxDrawdown decimal.Decimal

	active bool
}

// Snapshot 状态快照
type Snapshot struct {
	Balance           decimal.Decimal    `json:"balance"`
	Position          *position.Position `json:"position,omitempty"`
	DailyTrades       int                `json:"daily_trades"`
	ConsecutiveLosses int                `json:"consecutive_losses"`
	LastLossTime      time.Time          `json:"last_loss_time"`
	TotalPnL          decimal.Decimal    `json:"total_pnl"`
	TotalFees         decimal.Decimal    `json:"total_fees"`
	Wins              int                `json:"wins"`
	Losses            int                `json:"losses"`
	PeakBalance       decimal.Decimal    `json:"peak_balance"`
	MaxDrawdown       decimal.Decimal    `json:"max_drawdown"`
	IsActive          bool               `json:"is_active"`
}

// PerformanceStats 运行绩效摘要
type PerformanceStats struct {
	TotalTrades     int             `json:"total_trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         float64         `json:"win_rate"`
	NetPnL          decimal.Decimal `json:"net_pnl"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
	ActivePositions int             `json:"active_positions"`
}

// NewTradingState 创建交易状态，初始余额来自交易所账户查询
func NewTradingState(initialBalance decimal.Decimal) *TradingState {
	return &TradingState{
		balance:     initialBalance,
		peakBalance: initialBalance,
	}
}

// SetActive 设置行情连接状态
func (s *TradingState) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// IsActive 行情连接是否正常
func (s *TradingState) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Balance 当前余额
func (s *TradingState) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// SetPosition 记录当前持仓（nil表示无持仓）
// 存入深拷贝：引擎goroutine会继续原地修改活动仓位（移动止损、止盈档位成交），
// 本对象持有的副本只能通过再次SetPosition整体替换
func (s *TradingState) SetPosition(pos *position.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos.Clone()
}

// Position 当前持仓的拷贝，调用方修改不影响内部状态
func (s *TradingState) Position() *position.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position.Clone()
}

// HasOpenPosition 是否有未平仓位
func (s *TradingState) HasOpenPosition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position != nil
}

// RegisterTradeOpened 记录一次开仓，跨日时先清零当日计数
func (s *TradingState) RegisterTradeOpened(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollDailyLocked(now)
	s.dailyTrades++
}

// DailyTrades 当日开仓次数，跨日自动清零
func (s *TradingState) DailyTrades(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollDailyLocked(now)
	return s.dailyTrades
}

// rollDailyLocked UTC日期变更时重置当日计数
func (s *TradingState) rollDailyLocked(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.Equal(s.dailyAnchor) {
		s.dailyAnchor = day
		s.dailyTrades = 0
	}
}

// ConsecutiveLosses 连续亏损次数
func (s *TradingState) ConsecutiveLosses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveLosses
}

// LastLossTime 最近一次亏损的时间
func (s *TradingState) LastLossTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLossTime
}

// ApplyRealizedPnL 在每次（部分或全部）平仓时更新余额与回撤
// 余额变动 = pnl - fee；峰值余额取运行最大值
func (s *TradingState) ApplyRealizedPnL(pnl, fee decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balance = s.balance.Add(pnl.Sub(fee))
	s.totalPnL = s.totalPnL.Add(pnl)
	s.totalFees = s.totalFees.Add(fee)

	if s.balance.GreaterThan(s.peakBalance) {
		s.peakBalance = s.balance
	}
	if s.peakBalance.IsPositive() {
		drawdown := s.peakBalance.Sub(s.balance).Div(s.peakBalance)
		if drawdown.GreaterThan(s.maxDrawdown) {
			s.maxDrawdown = drawdown
		}
	}
}

// FinalizeTrade 在仓位完全平掉后结算胜负与连亏
// 盈利清零连亏计数；亏损（含打平）递增连亏并记录亏损时间供冷却使用
func (s *TradingState) FinalizeTrade(totalPnL decimal.Decimal, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if totalPnL.IsPositive() {
		s.wins++
		s.consecutiveLosses = 0
	} else {
		s.losses++
		s.consecutiveLosses++
		s.lastLossTime = now
	}
}

// Snapshot 取状态快照
func (s *TradingState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Balance:           s.balance,
		Position:          s.position.Clone(),
		DailyTrades:       s.dailyTrades,
		ConsecutiveLosses: s.consecutiveLosses,
		LastLossTime:      s.lastLossTime,
		TotalPnL:          s.totalPnL,
		TotalFees:         s.totalFees,
		Wins:              s.wins,
		Losses:            s.losses,
		PeakBalance:       s.peakBalance,
		MaxDrawdown:       s.maxDrawdown,
		IsActive:          s.active,
	}
}

// Stats 计算运行绩效摘要
func (s *TradingState) Stats() PerformanceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.wins + s.losses
	winRate := 0.0
	if total > 0 {
		winRate = float64(s.wins) / float64(total)
	}

	activePositions := 0
	if s.position != nil {
		activePositions = 1
	}

	return PerformanceStats{
		TotalTrades:     total,
		Wins:            s.wins,
		Losses:          s.losses,
		WinRate:         winRate,
		NetPnL:          s.totalPnL.Sub(s.totalFees),
		TotalFees:       s.totalFees,
		MaxDrawdown:     s.maxDrawdown,
		ActivePositions: activePositions,
	}
}
