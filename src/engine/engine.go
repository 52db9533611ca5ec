package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/history"
	"scalpbot/src/position"
	"scalpbot/src/risk"
	"scalpbot/src/state"
	"scalpbot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

const (
	// warmupBars 启动时通过REST预加载的历史K线数量
	warmupBars = 2 * strategy.MinBarsForSignal

	// maxBarWindow K线滚动窗口上限
	maxBarWindow = 200

	// drainTimeout 停机清仓的超时时间
	drainTimeout = 30 * time.Second
)

// V5Engine V5策略交易引擎
// 串行消费已收盘K线：先评估持仓离场，再评估开仓信号
type V5Engine struct {
	client   cex.CEXClient
	pair     cex.TradingPair
	interval string
	params   *strategy.V5Params

	scorer  *strategy.Scorer
	gate    *risk.Gate
	manager *position.Manager
	state   *state.TradingState
	store   *history.Store // 可为nil，此时不落盘交易记录

	bars   []*cex.KlineData
	events chan Event

	mutex   sync.Mutex
	running bool
	stream  cex.KlineStream
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewV5Engine 创建交易引擎
// store 为nil时不持久化交易记录
func NewV5Engine(client cex.CEXClient, pair cex.TradingPair, interval string,
	params *strategy.V5Params, initialBalance decimal.Decimal, store *history.Store) *V5Engine {

	tradingState := state.NewTradingState(initialBalance)

	return &V5Engine{
		client:   client,
		pair:     pair,
		interval: interval,
		params:   params,
		scorer:   strategy.NewScorer(params),
		gate:     risk.NewGate(tradingState, params),
		manager:  position.NewManager(client, pair, params),
		state:    tradingState,
		store:    store,
		events:   make(chan Event, 32),
	}
}

// Events 获取引擎事件通道
func (e *V5Engine) Events() <-chan Event {
	return e.events
}

// State 获取交易状态
func (e *V5Engine) State() *state.TradingState {
	return e.state
}

// Start 启动引擎：预检账户、预加载历史K线并订阅行情
func (e *V5Engine) Start(ctx context.Context) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.running {
		return errors.New("engine is already running")
	}

	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("V5Engine")

	if err := e.preflight(ctx); err != nil {
		return err
	}

	// 预加载历史K线，订阅前先填满评分窗口
	bars, err := e.client.GetKlines(ctx, e.pair, e.interval, warmupBars)
	if err != nil {
		return fmt.Errorf("failed to load warmup klines: %w", err)
	}
	e.bars = bars
	logger.Info(fmt.Sprintf("Loaded %d warmup bars for %s %s", len(bars), e.pair.Symbol(), e.interval))

	runCtx, cancel := context.WithCancel(context.Background())

	stream, err := e.client.SubscribeKlines(runCtx, e.pair, e.interval)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe klines: %w", err)
	}

	e.stream = stream
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	e.state.SetActive(true)

	go e.run(runCtx)

	logger.Info(fmt.Sprintf("Engine started: %s %s", e.pair.Symbol(), e.interval))
	return nil
}

// Stop 停止引擎并清仓，可重复调用
func (e *V5Engine) Stop(ctx context.Context) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.running {
		return nil
	}

	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("V5Engine")
	logger.Info("Stopping engine")

	e.cancel()
	<-e.done

	e.running = false
	e.state.SetActive(false)

	// 先尽力平掉持仓再断开行情连接，平仓失败只记录不阻塞停机
	if e.manager.HasOpenPosition() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		event, err := e.manager.CloseCurrent(drainCtx, position.CloseReasonShutdown)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to close position on shutdown: %v", err))
			e.emitEvent(Event{
				Type:    EventError,
				Time:    time.Now(),
				Symbol:  e.pair.Symbol(),
				Message: fmt.Sprintf("shutdown close failed: %v", err),
			})
		} else if event != nil {
			e.applyTradeEvent(ctx, event)
		}
	}

	if err := e.stream.Close(); err != nil {
		logger.Error(fmt.Sprintf("Failed to close kline stream: %v", err))
	}

	logger.Info("Engine stopped")
	return nil
}

// preflight 启动前账户预检
func (e *V5Engine) preflight(ctx context.Context) error {
	ctx, logger := log.WithCtx(ctx)

	if err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("exchange ping failed: %w", err)
	}

	canTrade, err := e.client.CanTrade(ctx)
	if err != nil {
		return fmt.Errorf("failed to check trading permission: %w", err)
	}
	if !canTrade {
		return errors.New("account trading is disabled")
	}

	balance, err := e.client.GetFreeBalance(ctx, e.pair.Quote)
	if err != nil {
		return fmt.Errorf("failed to get %s balance: %w", e.pair.Quote, err)
	}
	logger.Info(fmt.Sprintf("Account ready, free %s balance: %s", e.pair.Quote, balance.String()))

	return nil
}

// run 串行事件循环：同一goroutine内处理K线与连接事件
func (e *V5Engine) run(ctx context.Context) {
	defer close(e.done)

	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("V5Engine")

	for {
		select {
		case bar, ok := <-e.stream.Bars():
			if !ok {
				return
			}
			if !bar.IsFinal {
				continue
			}
			e.appendBar(bar)
			e.handleBar(ctx, bar)

		case connEvent, ok := <-e.stream.Events():
			if !ok {
				return
			}
			e.handleConnEvent(ctx, connEvent)

		case <-ctx.Done():
			return
		}
	}
}

// appendBar 维护K线滚动窗口
func (e *V5Engine) appendBar(bar *cex.KlineData) {
	e.bars = append(e.bars, bar)
	if len(e.bars) > maxBarWindow {
		e.bars = e.bars[len(e.bars)-maxBarWindow:]
	}
}

// handleConnEvent 处理行情连接事件：断开时暂停开仓，恢复后继续
func (e *V5Engine) handleConnEvent(ctx context.Context, event cex.ConnEvent) {
	ctx, logger := log.WithCtx(ctx)

	connected := event.State == cex.ConnStateConnected
	e.state.SetActive(connected)

	if connected {
		logger.Info("Kline stream connected")
	} else {
		logger.Error(fmt.Sprintf("Kline stream disconnected: %s, entries paused", event.Reason))
	}

	e.emitEvent(Event{
		Type:      EventConnectivity,
		Time:      event.Time,
		Symbol:    e.pair.Symbol(),
		Connected: connected,
		Message:   event.Reason,
	})
}

// handleBar 处理一根已收盘K线：先离场后进场
func (e *V5Engine) handleBar(ctx context.Context, bar *cex.KlineData) {
	ctx, logger := log.WithCtx(ctx)

	// 持仓离场评估优先于开仓
	tradeEvents, err := e.manager.OnBar(ctx, bar)
	if err != nil {
		logger.Error(fmt.Sprintf("Position evaluation failed: %v", err))
	}
	for _, event := range tradeEvents {
		e.applyTradeEvent(ctx, event)
	}

	e.tryEnter(ctx, bar)
}

// tryEnter 评估开仓：连接、风控、信号依次放行
func (e *V5Engine) tryEnter(ctx context.Context, bar *cex.KlineData) {
	ctx, logger := log.WithCtx(ctx)

	if e.manager.HasOpenPosition() {
		return
	}

	if !e.state.IsActive() {
		return
	}

	if ok, reason := e.gate.ShouldTrade(bar.CloseTime); !ok {
		logger.Info(fmt.Sprintf("Entry blocked: %s", reason))
		return
	}

	signal, err := e.scorer.Evaluate(e.bars)
	if err != nil {
		logger.Debug(fmt.Sprintf("Signal evaluation failed: %v", err))
		return
	}
	if signal == nil {
		return
	}

	logger.Info(fmt.Sprintf("Signal accepted: %s strength=%.2f confidence=%.2f agreements=%d",
		signal.Direction, signal.Strength, signal.Confidence, signal.Agreements))

	event, err := e.manager.Open(ctx, signal)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to open position: %v", err))
		e.emitEvent(Event{
			Type:    EventError,
			Time:    bar.CloseTime,
			Symbol:  e.pair.Symbol(),
			Message: fmt.Sprintf("open failed: %v", err),
		})
		return
	}

	pos := e.manager.Position()
	e.state.SetPosition(pos)
	e.state.RegisterTradeOpened(bar.CloseTime)

	e.emitEvent(Event{
		Type:     EventPositionOpened,
		Time:     event.Time,
		Symbol:   e.pair.Symbol(),
		Side:     string(pos.Side),
		Price:    pos.EntryPrice,
		Quantity: pos.Quantity,
	})
}

// applyTradeEvent 将持仓事件落到交易状态、历史库与引擎事件流
func (e *V5Engine) applyTradeEvent(ctx context.Context, event *position.TradeEvent) {
	ctx, logger := log.WithCtx(ctx)

	switch event.Type {
	case position.TradeEventPartialClose:
		e.state.ApplyRealizedPnL(event.PnL, event.Fee)
		e.state.SetPosition(event.Position)
		e.emitEvent(Event{
			Type:     EventPositionPartialClose,
			Time:     event.Time,
			Symbol:   e.pair.Symbol(),
			Side:     string(event.Position.Side),
			Reason:   event.Reason,
			Price:    event.Price,
			Quantity: event.Quantity,
			PnL:      event.PnL,
		})

	case position.TradeEventFullClose:
		e.state.ApplyRealizedPnL(event.PnL, event.Fee)
		e.state.FinalizeTrade(event.Position.RealizedPnL, event.Time)
		e.state.SetPosition(nil)
		e.persistTrade(ctx, event)
		e.emitEvent(Event{
			Type:     EventPositionClosed,
			Time:     event.Time,
			Symbol:   e.pair.Symbol(),
			Side:     string(event.Position.Side),
			Reason:   event.Reason,
			Price:    event.Price,
			Quantity: event.Quantity,
			PnL:      event.Position.RealizedPnL,
		})

	case position.TradeEventCloseFailed:
		// 平仓失败会置位pending-close，刷新对外快照
		e.state.SetPosition(event.Position)
		e.emitEvent(Event{
			Type:    EventError,
			Time:    event.Time,
			Symbol:  e.pair.Symbol(),
			Reason:  event.Reason,
			Message: fmt.Sprintf("close order failed: %v", event.Err),
		})

	case position.TradeEventTrailingUpdated:
		e.state.SetPosition(event.Position)
		logger.Info(fmt.Sprintf("Trailing stop moved to %s", event.Price.String()))
	}
}

// persistTrade 保存已完结交易，失败不影响交易流程
func (e *V5Engine) persistTrade(ctx context.Context, event *position.TradeEvent) {
	if e.store == nil {
		return
	}

	ctx, logger := log.WithCtx(ctx)
	pos := event.Position

	record := &history.TradeRecord{
		PositionID: pos.ID,
		Symbol:     e.pair.Symbol(),
		Side:       string(pos.Side),
		Reason:     event.Reason,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  event.Price,
		PnL:        pos.RealizedPnL,
		Fee:        pos.Fees,
		OpenedAt:   pos.EntryTime,
		ClosedAt:   event.Time,
	}

	if err := e.store.SaveTrade(ctx, record); err != nil {
		logger.Error(fmt.Sprintf("Failed to persist trade %s: %v", pos.ID, err))
	}
}
