package cex

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TradingPair 标准化的交易对
type TradingPair struct {
	Base  string // 基础货币，如 BTC, ETH
	Quote string // 计价货币，如 USDT, USDC
}

// String 返回标准化的交易对字符串表示
func (tp TradingPair) String() string {
	return tp.Base + "/" + tp.Quote
}

// Symbol 返回交易所格式的交易对（无分隔符），如 ETHUSDT
func (tp TradingPair) Symbol() string {
	return tp.Base + tp.Quote
}

// KlineData 标准化的K线数据
// IsFinal 标记该K线是否已收盘，引擎只消费已收盘的K线
type KlineData struct {
	TradingPair TradingPair     `json:"trading_pair"`
	Interval    string          `json:"interval"`
	OpenTime    time.Time       `json:"open_time"`
	CloseTime   time.Time       `json:"close_time"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
	QuoteVolume decimal.Decimal `json:"quote_volume"`
	IsFinal     bool            `json:"is_final"`
}

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite 返回相反方向（平仓时使用）
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRequest 下单请求
// 市价买入可用 QuoteAmount 按计价货币金额下单，其余情况使用 Quantity
type OrderRequest struct {
	TradingPair TradingPair     `json:"trading_pair"`
	Side        OrderSide       `json:"side"`
	Type        OrderType       `json:"type"`
	Quantity    decimal.Decimal `json:"quantity"`
	QuoteAmount decimal.Decimal `json:"quote_amount,omitempty"`
	Price       decimal.Decimal `json:"price,omitempty"` // 限价单时需要
}

// OrderFill 单笔成交明细
type OrderFill struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Commission decimal.Decimal `json:"commission"`
}

// OrderResult 订单结果
type OrderResult struct {
	TradingPair      TradingPair     `json:"trading_pair"`
	OrderID          string          `json:"order_id"`
	ClientOrderID    string          `json:"client_order_id"`
	Side             OrderSide       `json:"side"`
	Type             OrderType       `json:"type"`
	ExecutedQuantity decimal.Decimal `json:"executed_quantity"`
	AvgPrice         decimal.Decimal `json:"avg_price"`
	Commission       decimal.Decimal `json:"commission"`
	TransactTime     time.Time       `json:"transact_time"`
	Fills            []OrderFill     `json:"fills,omitempty"`
}

// ConnState 行情连接状态
type ConnState string

const (
	ConnStateConnected    ConnState = "connected"
	ConnStateDisconnected ConnState = "disconnected"
)

// ConnEvent 行情连接事件
type ConnEvent struct {
	State  ConnState `json:"state"`
	Time   time.Time `json:"time"`
	Reason string    `json:"reason,omitempty"`
}

// KlineStream K线订阅流
// Bars 推送实时K线更新（含未收盘），消费方按 IsFinal 过滤；
// Events 推送连接/断开事件
type KlineStream interface {
	Bars() <-chan *KlineData

	Events() <-chan ConnEvent

	// Close 关闭订阅，Bars/Events 通道随之关闭
	Close() error
}

// CEXClient 中心化交易所客户端接口
type CEXClient interface {
	// GetName 获取交易所名称
	GetName() string

	// GetTradingFee 获取交易手续费率
	GetTradingFee() float64

	// GetKlines 获取最近的K线数据（REST）
	GetKlines(ctx context.Context, pair TradingPair, interval string, limit int) ([]*KlineData, error)

	// SubscribeKlines 订阅K线推送
	SubscribeKlines(ctx context.Context, pair TradingPair, interval string) (KlineStream, error)

	// PlaceOrder 提交订单（市价开仓与平仓共用）
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// GetFreeBalance 获取指定资产的可用余额
	GetFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// CanTrade 账户是否具备交易权限
	CanTrade(ctx context.Context) (bool, error)

	// Ping 测试连接
	Ping(ctx context.Context) error

	// GetServerTime 获取服务器时间
	GetServerTime(ctx context.Context) (time.Time, error)
}
