package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/position"
	"scalpbot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPair  = cex.TradingPair{Base: "ETH", Quote: "USDT"}
	seriesAt  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	barPeriod = time.Minute
)

// engineBars 由收盘价序列构造已收盘K线，成交量恒定
func engineBars(closes []float64, volume float64) []*cex.KlineData {
	bars := make([]*cex.KlineData, len(closes))
	for i := range closes {
		price := decimal.NewFromFloat(closes[i])
		bars[i] = &cex.KlineData{
			TradingPair: testPair,
			Interval:    "1m",
			OpenTime:    seriesAt.Add(time.Duration(i) * barPeriod),
			CloseTime:   seriesAt.Add(time.Duration(i+1) * barPeriod),
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      decimal.NewFromFloat(volume),
			IsFinal:     true,
		}
	}
	return bars
}

// sidewaysCloses 有界横盘序列，不产生信号
func sidewaysCloses(n int, base float64) []float64 {
	closes := make([]float64, n)
	price := base
	for i := range closes {
		if i%2 == 0 {
			price *= 1.004
		} else {
			price *= 0.996
		}
		closes[i] = price
	}
	return closes
}

// oversoldCloses 横盘后持续下跌的序列，尾部RSI超卖触发做多信号
func oversoldCloses(n, tailLen int, base float64) []float64 {
	closes := sidewaysCloses(n-tailLen, base)
	price := closes[len(closes)-1]
	for i := 0; i < tailLen; i++ {
		if i%2 == 0 {
			price *= 0.990
		} else {
			price *= 0.997
		}
		closes = append(closes, price)
	}
	return closes
}

// entryParams 抬高趋势阈值，只让RSI路径驱动开仓
func entryParams() *strategy.V5Params {
	params := strategy.GetDefaultV5Params()
	params.TrendStrengthThreshold = 0.10
	return params
}

// newTestEngine 构造引擎与信号K线：warmup预加载60根，signalBar推送后触发做多
func newTestEngine(t *testing.T, params *strategy.V5Params) (*V5Engine, *mockEngineCEX, *cex.KlineData) {
	t.Helper()

	bars := engineBars(oversoldCloses(61, 16, 100), 1000)
	client := newMockEngineCEX(bars[:60])

	eng := NewV5Engine(client, testPair, "1m", params, decimal.NewFromInt(10000), nil)
	return eng, client, bars[60]
}

func waitForEvent(t *testing.T, eng *V5Engine, eventType EventType) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-eng.Events():
			if event.Type == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
		}
	}
}

func TestV5Engine_StartStopIdempotent(t *testing.T) {
	bars := engineBars(sidewaysCloses(60, 100), 1000)
	client := newMockEngineCEX(bars)
	eng := NewV5Engine(client, testPair, "1m", strategy.GetDefaultV5Params(), decimal.NewFromInt(10000), nil)

	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	assert.True(t, eng.State().IsActive())

	// 运行中不允许重复启动
	assert.Error(t, eng.Start(ctx))

	require.NoError(t, eng.Stop(ctx))
	assert.False(t, eng.State().IsActive())

	// 重复停止幂等，且不产生额外订单
	require.NoError(t, eng.Stop(ctx))
	assert.Equal(t, 0, client.orderCount())
}

func TestV5Engine_PreflightFailure(t *testing.T) {
	bars := engineBars(sidewaysCloses(60, 100), 1000)

	client := newMockEngineCEX(bars)
	client.pingErr = errors.New("network unreachable")
	eng := NewV5Engine(client, testPair, "1m", strategy.GetDefaultV5Params(), decimal.NewFromInt(10000), nil)
	assert.Error(t, eng.Start(context.Background()))

	client = newMockEngineCEX(bars)
	client.tradeAllowed = false
	eng = NewV5Engine(client, testPair, "1m", strategy.GetDefaultV5Params(), decimal.NewFromInt(10000), nil)
	err := eng.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading is disabled")
}

func TestV5Engine_EntryOnSignal(t *testing.T) {
	eng, client, signalBar := newTestEngine(t, entryParams())

	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer eng.Stop(ctx)

	client.stream.pushBar(signalBar)

	event := waitForEvent(t, eng, EventPositionOpened)
	assert.Equal(t, string(strategy.DirectionLong), event.Side)
	assert.Equal(t, testPair.Symbol(), event.Symbol)

	require.Equal(t, 1, client.orderCount())
	order := client.orderAt(0)
	assert.Equal(t, cex.OrderSideBuy, order.Side)
	assert.Equal(t, cex.OrderTypeMarket, order.Type)
	// 市价买入按计价金额下单
	assert.True(t, order.QuoteAmount.Equal(decimal.NewFromInt(100)),
		"expected quote amount 100, got %s", order.QuoteAmount)

	assert.True(t, eng.State().HasOpenPosition())
	assert.Equal(t, 1, eng.State().DailyTrades(signalBar.CloseTime))

	// 对外快照持有仓位拷贝，引擎后续原地更新不会穿透
	snap := eng.State().Snapshot()
	require.NotNil(t, snap.Position)
	assert.NotSame(t, eng.manager.Position(), snap.Position)
}

func TestV5Engine_NoEntryOnSidewaysMarket(t *testing.T) {
	bars := engineBars(sidewaysCloses(61, 100), 1000)
	client := newMockEngineCEX(bars[:60])
	eng := NewV5Engine(client, testPair, "1m", strategy.GetDefaultV5Params(), decimal.NewFromInt(10000), nil)

	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	client.stream.pushBar(bars[60])
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 0, client.orderCount())
	assert.False(t, eng.State().HasOpenPosition())

	require.NoError(t, eng.Stop(ctx))
}

func TestV5Engine_DisconnectPausesEntries(t *testing.T) {
	eng, client, signalBar := newTestEngine(t, entryParams())

	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer eng.Stop(ctx)

	client.stream.pushConnEvent(cex.ConnEvent{
		State:  cex.ConnStateDisconnected,
		Time:   signalBar.CloseTime,
		Reason: "stream closed by remote",
	})
	event := waitForEvent(t, eng, EventConnectivity)
	assert.False(t, event.Connected)
	assert.False(t, eng.State().IsActive())

	// 断线期间收到信号K线也不开仓
	client.stream.pushBar(signalBar)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, client.orderCount())

	// 恢复连接后下一根信号K线重新放行
	client.stream.pushConnEvent(cex.ConnEvent{
		State: cex.ConnStateConnected,
		Time:  signalBar.CloseTime.Add(barPeriod),
	})
	event = waitForEvent(t, eng, EventConnectivity)
	assert.True(t, event.Connected)

	nextBar := *signalBar
	nextBar.OpenTime = signalBar.OpenTime.Add(barPeriod)
	nextBar.CloseTime = signalBar.CloseTime.Add(barPeriod)
	client.stream.pushBar(&nextBar)

	waitForEvent(t, eng, EventPositionOpened)
	assert.Equal(t, 1, client.orderCount())
}

func TestV5Engine_StopDrainsOpenPosition(t *testing.T) {
	eng, client, signalBar := newTestEngine(t, entryParams())

	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	client.stream.pushBar(signalBar)
	waitForEvent(t, eng, EventPositionOpened)

	require.NoError(t, eng.Stop(ctx))

	// 停机时市价平掉持仓
	require.Equal(t, 2, client.orderCount())
	closeOrder := client.orderAt(1)
	assert.Equal(t, cex.OrderSideSell, closeOrder.Side)
	assert.Equal(t, cex.OrderTypeMarket, closeOrder.Type)

	// 平仓单必须在行情连接断开之前下达
	assert.False(t, client.streamClosedAtOrder(1))
	assert.True(t, client.stream.isClosed())

	event := waitForEvent(t, eng, EventPositionClosed)
	assert.Equal(t, position.CloseReasonShutdown, event.Reason)

	assert.False(t, eng.State().HasOpenPosition())
	assert.Equal(t, 1, eng.State().Stats().TotalTrades)
}
