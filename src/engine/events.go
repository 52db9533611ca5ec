package engine

import (
	"time"

	"scalpbot/src/position"

	"github.com/shopspring/decimal"
)

// EventType 引擎事件类型
type EventType string

const (
	EventPositionOpened       EventType = "position_opened"
	EventPositionPartialClose EventType = "position_partial_close"
	EventPositionClosed       EventType = "position_closed"
	EventConnectivity         EventType = "connectivity"
	EventError                EventType = "error"
)

// Event 引擎对外推送的事件
// 订阅方只读，不影响交易流程；通道满时丢弃最旧事件
type Event struct {
	Type      EventType            `json:"type"`
	Time      time.Time            `json:"time"`
	Symbol    string               `json:"symbol"`
	Side      string               `json:"side,omitempty"`
	Reason    position.CloseReason `json:"reason,omitempty"`
	Price     decimal.Decimal      `json:"price,omitempty"`
	Quantity  decimal.Decimal      `json:"quantity,omitempty"`
	PnL       decimal.Decimal      `json:"pnl,omitempty"`
	Connected bool                 `json:"connected,omitempty"`
	Message   string               `json:"message,omitempty"`
}

// emitEvent 推送引擎事件，订阅方消费缓慢时丢弃最旧事件
func (e *V5Engine) emitEvent(event Event) {
	select {
	case e.events <- event:
	default:
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- event:
		default:
		}
	}
}
