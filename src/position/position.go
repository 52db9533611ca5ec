package position

import (
	"fmt"
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/strategy"

	"github.com/shopspring/decimal"
)

// CloseReason 平仓原因
type CloseReason string

const (
	CloseReasonStopLoss     CloseReason = "stop_loss"
	CloseReasonTakeProfit   CloseReason = "take_profit"
	CloseReasonTrailingStop CloseReason = "trailing_stop"
	CloseReasonMaxTime      CloseReason = "max_time"
	CloseReasonProfitTaking CloseReason = "profit_taking"
	CloseReasonShutdown     CloseReason = "shutdown"
)

// TakeProfitLevel 止盈档位
type TakeProfitLevel struct {
	Price    decimal.Decimal `json:"price"`    // 目标价格
	Weight   float64         `json:"weight"`   // 平仓比例
	Quantity decimal.Decimal `json:"quantity"` // 分配的数量
	Filled   bool            `json:"filled"`
}

// Position 持仓
// 进程内同一时刻至多存在一个未删除的Position（单仓约束）
type Position struct {
	ID          string             `json:"id"`
	TradingPair cex.TradingPair    `json:"trading_pair"`
	Side        strategy.Direction `json:"side"`
	EntryPrice  decimal.Decimal    `json:"entry_price"`
	Quantity    decimal.Decimal    `json:"quantity"` // 开仓数量
	EntryTime   time.Time          `json:"entry_time"`

	StopLossPrice decimal.Decimal    `json:"stop_loss_price"`
	TakeProfits   []*TakeProfitLevel `json:"take_profits"`

	TrailingStopPrice decimal.Decimal `json:"trailing_stop_price"`
	TrailingActivated bool            `json:"trailing_activated"`

	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	Fees              decimal.Decimal `json:"fees"`

	EntryOrderID  string   `json:"entry_order_id"`
	CloseOrderIDs []string `json:"close_order_ids"`

	// 平仓单提交失败后置位，下一个tick优先重试平仓
	PendingClose       bool        `json:"pending_close"`
	PendingCloseReason CloseReason `json:"pending_close_reason,omitempty"`
}

// newPosition 根据接受的信号与成交结果构造持仓
func newPosition(signal *strategy.TradingSignal, order *cex.OrderResult, params *strategy.V5Params) *Position {
	entryPrice := order.AvgPrice
	if entryPrice.IsZero() {
		entryPrice = signal.Price
	}

	quantity := order.ExecutedQuantity
	if quantity.IsZero() {
		quantity = decimal.NewFromFloat(params.PositionSize()).Div(entryPrice)
	}

	pos := &Position{
		ID:                fmt.Sprintf("pos_%d", time.Now().UnixNano()),
		TradingPair:       order.TradingPair,
		Side:              signal.Direction,
		EntryPrice:        entryPrice,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		EntryTime:         order.TransactTime,
		EntryOrderID:      order.OrderID,
		Fees:              order.Commission,
	}

	stopLoss := decimal.NewFromFloat(params.StopLoss)
	levels, weights := params.TakeProfitLevels()

	one := decimal.NewFromInt(1)
	if signal.Direction == strategy.DirectionLong {
		pos.StopLossPrice = entryPrice.Mul(one.Sub(stopLoss))
		for i := range levels {
			pos.TakeProfits = append(pos.TakeProfits, &TakeProfitLevel{
				Price:    entryPrice.Mul(one.Add(decimal.NewFromFloat(levels[i]))),
				Weight:   weights[i],
				Quantity: quantity.Mul(decimal.NewFromFloat(weights[i])),
			})
		}
	} else {
		pos.StopLossPrice = entryPrice.Mul(one.Add(stopLoss))
		for i := range levels {
			pos.TakeProfits = append(pos.TakeProfits, &TakeProfitLevel{
				Price:    entryPrice.Mul(one.Sub(decimal.NewFromFloat(levels[i]))),
				Weight:   weights[i],
				Quantity: quantity.Mul(decimal.NewFromFloat(weights[i])),
			})
		}
	}

	return pos
}

// Clone 返回持仓的深拷贝
// 仓位对象只在引擎goroutine内被原地修改，跨goroutine暴露时必须使用拷贝
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}

	dup := *p
	dup.TakeProfits = make([]*TakeProfitLevel, len(p.TakeProfits))
	for i, level := range p.TakeProfits {
		levelCopy := *level
		dup.TakeProfits[i] = &levelCopy
	}
	dup.CloseOrderIDs = append([]string(nil), p.CloseOrderIDs...)

	return &dup
}

// UnrealizedPnL 剩余仓位按当前价格计算的浮动盈亏
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if p.Side == strategy.DirectionLong {
		return price.Sub(p.EntryPrice).Mul(p.RemainingQuantity)
	}
	return p.EntryPrice.Sub(price).Mul(p.RemainingQuantity)
}

// ProfitRatio 当前价格相对开仓价的盈利比例（按方向取正）
func (p *Position) ProfitRatio(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	if p.Side == strategy.DirectionLong {
		return price.Sub(p.EntryPrice).Div(p.EntryPrice)
	}
	return p.EntryPrice.Sub(price).Div(p.EntryPrice)
}

// HoldingTime 已持仓时长
func (p *Position) HoldingTime(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// AllTakeProfitsFilled 止盈档位是否已全部成交
func (p *Position) AllTakeProfitsFilled() bool {
	for _, level := range p.TakeProfits {
		if !level.Filled {
			return false
		}
	}
	return true
}

// nextUnfilledTakeProfit 返回最近的未成交止盈档位
func (p *Position) nextUnfilledTakeProfit() *TakeProfitLevel {
	for _, level := range p.TakeProfits {
		if !level.Filled {
			return level
		}
	}
	return nil
}

// stopLossBreached 止损价是否被触及
func (p *Position) stopLossBreached(price decimal.Decimal) bool {
	if p.Side == strategy.DirectionLong {
		return price.LessThanOrEqual(p.StopLossPrice)
	}
	return price.GreaterThanOrEqual(p.StopLossPrice)
}

// takeProfitReached 指定止盈档位是否被触及
func (p *Position) takeProfitReached(level *TakeProfitLevel, price decimal.Decimal) bool {
	if p.Side == strategy.DirectionLong {
		return price.GreaterThanOrEqual(level.Price)
	}
	return price.LessThanOrEqual(level.Price)
}

// trailingStopBreached 移动止损价是否被触及
func (p *Position) trailingStopBreached(price decimal.Decimal) bool {
	if !p.TrailingActivated {
		return false
	}
	if p.Side == strategy.DirectionLong {
		return price.LessThanOrEqual(p.TrailingStopPrice)
	}
	return price.GreaterThanOrEqual(p.TrailingStopPrice)
}

// updateTrailingStop 激活或抬升移动止损价
// 止损价只向有利方向收紧，绝不放松
func (p *Position) updateTrailingStop(price decimal.Decimal, params *strategy.V5Params) bool {
	activation := decimal.NewFromFloat(params.TrailingStopActivation)
	distance := decimal.NewFromFloat(params.TrailingStopDistance)
	one := decimal.NewFromInt(1)

	if !p.TrailingActivated {
		if p.ProfitRatio(price).LessThan(activation) {
			return false
		}
		p.TrailingActivated = true
		if p.Side == strategy.DirectionLong {
			p.TrailingStopPrice = price.Mul(one.Sub(distance))
		} else {
			p.TrailingStopPrice = price.Mul(one.Add(distance))
		}
		return true
	}

	if p.Side == strategy.DirectionLong {
		candidate := price.Mul(one.Sub(distance))
		if candidate.GreaterThan(p.TrailingStopPrice) {
			p.TrailingStopPrice = candidate
			return true
		}
	} else {
		candidate := price.Mul(one.Add(distance))
		if candidate.LessThan(p.TrailingStopPrice) {
			p.TrailingStopPrice = candidate
			return true
		}
	}
	return false
}

// realize 记录一笔平仓成交，返回本次实现的盈亏
func (p *Position) realize(price, quantity, fee decimal.Decimal, orderID string) decimal.Decimal {
	var pnl decimal.Decimal
	if p.Side == strategy.DirectionLong {
		pnl = price.Sub(p.EntryPrice).Mul(quantity)
	} else {
		pnl = p.EntryPrice.Sub(price).Mul(quantity)
	}

	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.Fees = p.Fees.Add(fee)
	p.RemainingQuantity = p.RemainingQuantity.Sub(quantity)
	if orderID != "" {
		p.CloseOrderIDs = append(p.CloseOrderIDs, orderID)
	}

	return pnl
}
