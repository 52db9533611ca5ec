package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

var (
	// ErrPositionOpen 已有持仓时不允许再开仓
	ErrPositionOpen = errors.New("a position is already open")

	// ErrNoPosition 无持仓
	ErrNoPosition = errors.New("no open position")
)

// TradeEventType 持仓事件类型
type TradeEventType string

const (
	TradeEventOpened          TradeEventType = "opened"
	TradeEventPartialClose    TradeEventType = "partial_close"
	TradeEventFullClose       TradeEventType = "full_close"
	TradeEventTrailingUpdated TradeEventType = "trailing_updated"
	TradeEventCloseFailed     TradeEventType = "close_failed"
)

// TradeEvent 持仓生命周期事件
type TradeEvent struct {
	Type     TradeEventType
	Position *Position
	Reason   CloseReason
	Price    decimal.Decimal
	Quantity decimal.Decimal
	PnL      decimal.Decimal // 本次实现的盈亏（平仓事件）
	Fee      decimal.Decimal
	Time     time.Time
	Err      error // close_failed 时携带
}

// Manager 持仓生命周期管理器
// 持有至多一个仓位，在每个tick上按固定顺序评估离场条件：
// 止损 → 止盈阶梯 → 移动止损 → 超时离场
// 调用方负责串行化：同一交易对的 Open/OnBar/CloseCurrent 不得并发执行
type Manager struct {
	client cex.CEXClient
	pair   cex.TradingPair
	params *strategy.V5Params

	position  *Position
	lastPrice decimal.Decimal
}

// NewManager 创建持仓管理器
func NewManager(client cex.CEXClient, pair cex.TradingPair, params *strategy.V5Params) *Manager {
	return &Manager{
		client: client,
		pair:   pair,
		params: params,
	}
}

// HasOpenPosition 是否有未平仓位
func (m *Manager) HasOpenPosition() bool {
	return m.position != nil
}

// Position 当前持仓（可能为nil）
func (m *Manager) Position() *Position {
	return m.position
}

// Open 接受信号并开仓
// 先提交市价单，成交后才创建Position；下单失败不产生任何仓位
func (m *Manager) Open(ctx context.Context, signal *strategy.TradingSignal) (*TradeEvent, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("PositionManager")

	if m.position != nil {
		return nil, ErrPositionOpen
	}

	positionSize := decimal.NewFromFloat(m.params.PositionSize())
	quantity := positionSize.Div(signal.Price)

	req := cex.OrderRequest{
		TradingPair: m.pair,
		Type:        cex.OrderTypeMarket,
		Quantity:    quantity,
		Price:       signal.Price,
	}
	req.Side = entrySide(signal.Direction)
	if req.Side == cex.OrderSideBuy {
		// 市价买入按计价金额下单
		req.QuoteAmount = positionSize
	}

	order, err := m.client.PlaceOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("entry order failed: %w", err)
	}

	m.position = newPosition(signal, order, m.params)
	m.lastPrice = m.position.EntryPrice

	logger.Info(fmt.Sprintf("position opened: id=%s, side=%s, entry=%s, qty=%s, stop=%s",
		m.position.ID, m.position.Side,
		m.position.EntryPrice.String(), m.position.Quantity.String(),
		m.position.StopLossPrice.String()))

	return &TradeEvent{
		Type:     TradeEventOpened,
		Position: m.position,
		Price:    m.position.EntryPrice,
		Quantity: m.position.Quantity,
		Time:     m.position.EntryTime,
	}, nil
}

// OnBar 用新收盘价评估持仓的离场条件
// 每个tick至多执行一个离场动作；幸存的仓位在后续tick继续评估
func (m *Manager) OnBar(ctx context.Context, bar *cex.KlineData) ([]*TradeEvent, error) {
	if m.position == nil {
		return nil, nil
	}

	pos := m.position
	price := bar.Close
	now := bar.CloseTime
	m.lastPrice = price

	// 上一tick平仓失败：优先重试，重试期间不做其他评估
	if pos.PendingClose {
		event := m.closeAll(ctx, price, pos.PendingCloseReason, now)
		return []*TradeEvent{event}, nil
	}

	// 1. 止损
	if pos.stopLossBreached(price) {
		event := m.closeAll(ctx, price, CloseReasonStopLoss, now)
		return []*TradeEvent{event}, nil
	}

	// 2. 止盈阶梯：触及最近的未成交档位则部分平仓
	if level := pos.nextUnfilledTakeProfit(); level != nil && pos.takeProfitReached(level, price) {
		event := m.fillTakeProfit(ctx, level, price, now)
		return []*TradeEvent{event}, nil
	}

	// 3. 移动止损：先判断触发，未触发则尝试激活或抬升
	if pos.trailingStopBreached(price) {
		event := m.closeAll(ctx, price, CloseReasonTrailingStop, now)
		return []*TradeEvent{event}, nil
	}
	if pos.updateTrailingStop(price, m.params) {
		return []*TradeEvent{{
			Type:     TradeEventTrailingUpdated,
			Position: pos,
			Price:    pos.TrailingStopPrice,
			Time:     now,
		}}, nil
	}

	// 4. 持仓超时：到达最长持仓时间无条件离场
	holding := pos.HoldingTime(now)
	if holding >= m.params.MaxHoldingTime {
		event := m.closeAll(ctx, price, CloseReasonMaxTime, now)
		return []*TradeEvent{event}, nil
	}

	// 5. 获利了结：持仓超过阈值且有浮盈即落袋
	if holding >= m.params.ProfitTakingTime && pos.UnrealizedPnL(price).IsPositive() {
		event := m.closeAll(ctx, price, CloseReasonProfitTaking, now)
		return []*TradeEvent{event}, nil
	}

	return nil, nil
}

// CloseCurrent 主动平掉当前持仓（停机排空时使用）
func (m *Manager) CloseCurrent(ctx context.Context, reason CloseReason) (*TradeEvent, error) {
	if m.position == nil {
		return nil, ErrNoPosition
	}

	price := m.lastPrice
	if price.IsZero() {
		price = m.position.EntryPrice
	}

	event := m.closeAll(ctx, price, reason, time.Now())
	if event.Type == TradeEventCloseFailed {
		return event, event.Err
	}
	return event, nil
}

// fillTakeProfit 执行一档止盈的部分平仓
// 下单失败只记录日志：档位保持未成交，下一tick同一条件会再次触发
func (m *Manager) fillTakeProfit(ctx context.Context, level *TakeProfitLevel, price decimal.Decimal, now time.Time) *TradeEvent {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("PositionManager")

	pos := m.position

	order, err := m.client.PlaceOrder(ctx, cex.OrderRequest{
		TradingPair: m.pair,
		Side:        m.closeSide(),
		Type:        cex.OrderTypeMarket,
		Quantity:    level.Quantity,
		Price:       price,
	})
	if err != nil {
		logger.Error(fmt.Sprintf("take profit order failed: id=%s, level=%s, err=%v",
			pos.ID, level.Price.String(), err))
		return &TradeEvent{
			Type:     TradeEventCloseFailed,
			Position: pos,
			Reason:   CloseReasonTakeProfit,
			Price:    price,
			Quantity: level.Quantity,
			Time:     now,
			Err:      err,
		}
	}

	fillPrice, fee, orderID := fillDetails(order, price)

	level.Filled = true
	pnl := pos.realize(fillPrice, level.Quantity, fee, orderID)

	logger.Info(fmt.Sprintf("take profit filled: id=%s, price=%s, qty=%s, pnl=%s",
		pos.ID, fillPrice.String(), level.Quantity.String(), pnl.String()))

	event := &TradeEvent{
		Position: pos,
		Reason:   CloseReasonTakeProfit,
		Price:    fillPrice,
		Quantity: level.Quantity,
		PnL:      pnl,
		Fee:      fee,
		Time:     now,
	}

	if pos.AllTakeProfitsFilled() {
		// 阶梯全部成交，仓位结束
		event.Type = TradeEventFullClose
		m.position = nil
	} else {
		event.Type = TradeEventPartialClose
	}

	return event
}

// closeAll 对剩余仓位提交全平市价单
// 失败时仓位标记pending-close，内存状态不回滚，下一tick重试
func (m *Manager) closeAll(ctx context.Context, price decimal.Decimal, reason CloseReason, now time.Time) *TradeEvent {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("PositionManager")

	pos := m.position

	order, err := m.client.PlaceOrder(ctx, cex.OrderRequest{
		TradingPair: m.pair,
		Side:        m.closeSide(),
		Type:        cex.OrderTypeMarket,
		Quantity:    pos.RemainingQuantity,
		Price:       price,
	})
	if err != nil {
		pos.PendingClose = true
		pos.PendingCloseReason = reason
		logger.Error(fmt.Sprintf("close order failed: id=%s, reason=%s, err=%v, will retry next tick",
			pos.ID, reason, err))
		return &TradeEvent{
			Type:     TradeEventCloseFailed,
			Position: pos,
			Reason:   reason,
			Price:    price,
			Quantity: pos.RemainingQuantity,
			Time:     now,
			Err:      err,
		}
	}

	fillPrice, fee, orderID := fillDetails(order, price)

	quantity := pos.RemainingQuantity
	pnl := pos.realize(fillPrice, quantity, fee, orderID)
	pos.PendingClose = false
	pos.PendingCloseReason = ""

	logger.Info(fmt.Sprintf("position closed: id=%s, reason=%s, price=%s, pnl=%s, fees=%s",
		pos.ID, reason, fillPrice.String(), pos.RealizedPnL.String(), pos.Fees.String()))

	m.position = nil

	return &TradeEvent{
		Type:     TradeEventFullClose,
		Position: pos,
		Reason:   reason,
		Price:    fillPrice,
		Quantity: quantity,
		PnL:      pnl,
		Fee:      fee,
		Time:     now,
	}
}

// entrySide 开仓方向对应的订单方向
func entrySide(direction strategy.Direction) cex.OrderSide {
	if direction == strategy.DirectionLong {
		return cex.OrderSideBuy
	}
	return cex.OrderSideSell
}

// closeSide 平仓方向与开仓方向相反
func (m *Manager) closeSide() cex.OrderSide {
	return entrySide(m.position.Side).Opposite()
}

// fillDetails 从订单结果提取成交价与手续费，缺省回退到触发价
func fillDetails(order *cex.OrderResult, fallbackPrice decimal.Decimal) (price, fee decimal.Decimal, orderID string) {
	price = order.AvgPrice
	if price.IsZero() {
		price = fallbackPrice
	}
	return price, order.Commission, order.OrderID
}
