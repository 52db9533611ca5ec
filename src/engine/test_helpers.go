package engine

import (
	"context"
	"sync"
	"time"

	"scalpbot/src/cex"

	"github.com/shopspring/decimal"
)

// mockKlineStream 测试用K线流，由测试用例手动推送K线与连接事件
type mockKlineStream struct {
	bars   chan *cex.KlineData
	events chan cex.ConnEvent

	closed    chan struct{}
	closeOnce sync.Once
}

func newMockKlineStream() *mockKlineStream {
	return &mockKlineStream{
		bars:   make(chan *cex.KlineData, 16),
		events: make(chan cex.ConnEvent, 16),
		closed: make(chan struct{}),
	}
}

func (s *mockKlineStream) Bars() <-chan *cex.KlineData { return s.bars }
func (s *mockKlineStream) Events() <-chan cex.ConnEvent {
	return s.events
}

func (s *mockKlineStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

func (s *mockKlineStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *mockKlineStream) pushBar(bar *cex.KlineData) {
	s.bars <- bar
}

func (s *mockKlineStream) pushConnEvent(event cex.ConnEvent) {
	s.events <- event
}

// mockEngineCEX 引擎测试用CEX客户端
// 订单在测试goroutine与引擎goroutine间共享，用互斥锁保护
type mockEngineCEX struct {
	mutex sync.Mutex

	warmup []*cex.KlineData
	stream *mockKlineStream
	orders []cex.OrderRequest
	// 每笔订单下达时行情流是否已关闭
	streamClosedAt []bool

	pingErr      error
	tradeAllowed bool
	orderTime    time.Time
}

func newMockEngineCEX(warmup []*cex.KlineData) *mockEngineCEX {
	return &mockEngineCEX{
		warmup:       warmup,
		stream:       newMockKlineStream(),
		tradeAllowed: true,
		orderTime:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockEngineCEX) GetName() string        { return "mock" }
func (m *mockEngineCEX) GetTradingFee() float64 { return 0.001 }

func (m *mockEngineCEX) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	return m.warmup, nil
}

func (m *mockEngineCEX) SubscribeKlines(ctx context.Context, pair cex.TradingPair, interval string) (cex.KlineStream, error) {
	return m.stream, nil
}

func (m *mockEngineCEX) PlaceOrder(ctx context.Context, req cex.OrderRequest) (*cex.OrderResult, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.orders = append(m.orders, req)
	m.streamClosedAt = append(m.streamClosedAt, m.stream.isClosed())
	return &cex.OrderResult{
		TradingPair:      req.TradingPair,
		OrderID:          "mock_order",
		Side:             req.Side,
		Type:             req.Type,
		ExecutedQuantity: req.Quantity,
		AvgPrice:         req.Price,
		Commission:       req.Quantity.Mul(req.Price).Mul(decimal.NewFromFloat(0.001)),
		TransactTime:     m.orderTime,
	}, nil
}

func (m *mockEngineCEX) GetFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.NewFromInt(10000), nil
}

func (m *mockEngineCEX) CanTrade(ctx context.Context) (bool, error) {
	return m.tradeAllowed, nil
}

func (m *mockEngineCEX) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockEngineCEX) GetServerTime(ctx context.Context) (time.Time, error) {
	return m.orderTime, nil
}

func (m *mockEngineCEX) orderCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.orders)
}

func (m *mockEngineCEX) orderAt(i int) cex.OrderRequest {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.orders[i]
}

func (m *mockEngineCEX) streamClosedAtOrder(i int) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.streamClosedAt[i]
}
