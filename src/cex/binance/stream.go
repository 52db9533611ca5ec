package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scalpbot/src/cex"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// reconnectDelay 断线后重新订阅的等待时间
const reconnectDelay = 5 * time.Second

// klineStream 币安K线订阅流
// 内部维护重连循环：连接断开后自动重新订阅，并通过 Events 通道
// 上报 connected/disconnected 事件
type klineStream struct {
	pair     cex.TradingPair
	interval string

	bars   chan *cex.KlineData
	events chan cex.ConnEvent

	closed    chan struct{}
	closeOnce sync.Once
}

// SubscribeKlines 订阅K线推送
func (c *Client) SubscribeKlines(ctx context.Context, pair cex.TradingPair, interval string) (cex.KlineStream, error) {
	s := &klineStream{
		pair:     pair,
		interval: interval,
		bars:     make(chan *cex.KlineData, 128),
		events:   make(chan cex.ConnEvent, 16),
		closed:   make(chan struct{}),
	}

	go s.run(ctx)

	return s, nil
}

func (s *klineStream) Bars() <-chan *cex.KlineData {
	return s.bars
}

func (s *klineStream) Events() <-chan cex.ConnEvent {
	return s.events
}

// Close 关闭订阅
func (s *klineStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

// run 订阅主循环，断开后自动重连
func (s *klineStream) run(ctx context.Context) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("BinanceKlineStream")

	defer close(s.bars)
	defer close(s.events)

	symbol := s.pair.Symbol()

	for {
		select {
		case <-s.closed:
			return
		case <-ctx.Done():
			return
		default:
		}

		doneC, stopC, err := binance.WsKlineServe(symbol, s.interval, s.handleEvent, func(err error) {
			logger.Error(fmt.Sprintf("kline stream error: symbol=%s, err=%v", symbol, err))
		})
		if err != nil {
			s.emitEvent(cex.ConnEvent{
				State:  cex.ConnStateDisconnected,
				Time:   time.Now(),
				Reason: err.Error(),
			})
			logger.Error(fmt.Sprintf("failed to subscribe klines: symbol=%s, err=%v", symbol, err))

			select {
			case <-time.After(reconnectDelay):
				continue
			case <-s.closed:
				return
			case <-ctx.Done():
				return
			}
		}

		s.emitEvent(cex.ConnEvent{State: cex.ConnStateConnected, Time: time.Now()})
		logger.Info(fmt.Sprintf("kline stream connected: symbol=%s, interval=%s", symbol, s.interval))

		select {
		case <-doneC:
			// 连接断开，等待后重连
			s.emitEvent(cex.ConnEvent{
				State:  cex.ConnStateDisconnected,
				Time:   time.Now(),
				Reason: "stream closed by remote",
			})
			logger.Error(fmt.Sprintf("kline stream disconnected: symbol=%s, reconnecting in %s", symbol, reconnectDelay))

			select {
			case <-time.After(reconnectDelay):
			case <-s.closed:
				return
			case <-ctx.Done():
				return
			}

		case <-s.closed:
			close(stopC)
			<-doneC
			return

		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		}
	}
}

// handleEvent 转换并推送K线事件
func (s *klineStream) handleEvent(event *binance.WsKlineEvent) {
	kline := s.convertWsKline(&event.Kline)

	select {
	case s.bars <- kline:
	case <-s.closed:
	}
}

// emitEvent 推送连接事件，通道满时丢弃最旧事件
func (s *klineStream) emitEvent(event cex.ConnEvent) {
	select {
	case s.events <- event:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- event:
		default:
		}
	}
}

// convertWsKline 转换WebSocket K线数据为标准格式
func (s *klineStream) convertWsKline(kline *binance.WsKline) *cex.KlineData {
	open, _ := decimal.NewFromString(kline.Open)
	high, _ := decimal.NewFromString(kline.High)
	low, _ := decimal.NewFromString(kline.Low)
	close, _ := decimal.NewFromString(kline.Close)
	volume, _ := decimal.NewFromString(kline.Volume)
	quoteVolume, _ := decimal.NewFromString(kline.QuoteVolume)

	return &cex.KlineData{
		TradingPair: s.pair,
		Interval:    kline.Interval,
		OpenTime:    time.Unix(kline.StartTime/1000, 0),
		CloseTime:   time.Unix(kline.EndTime/1000, 0),
		Open:        open,
		High:        high,
		Low:         low,
		Close:       close,
		Volume:      volume,
		QuoteVolume: quoteVolume,
		IsFinal:     kline.IsFinal,
	}
}
