package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scalpbot/src/cex"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// Client Binance客户端实现
type Client struct {
	client    *binance.Client
	apiKey    string
	secretKey string
}

// NewClient 创建Binance客户端
func NewClient(apiKey, secretKey, baseURL string) *Client {
	binanceClient := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		binanceClient.BaseURL = baseURL
	}

	return &Client{
		client:    binanceClient,
		apiKey:    apiKey,
		secretKey: secretKey,
	}
}

// GetName 获取交易所名称
func (c *Client) GetName() string {
	return "binance"
}

// GetTradingFee 获取交易手续费率
func (c *Client) GetTradingFee() float64 {
	return ConfigValue.Fee
}

// tradingPairToSymbol 将标准化交易对转换为Binance格式
func (c *Client) tradingPairToSymbol(pair cex.TradingPair) string {
	// Binance格式: BTCUSDT, ETHUSDT (无分隔符)
	return strings.ToUpper(pair.Base) + strings.ToUpper(pair.Quote)
}

// convertKlineData 转换Binance K线数据为标准格式
// REST接口只返回已收盘的K线，IsFinal恒为true
func (c *Client) convertKlineData(kline *binance.Kline, pair cex.TradingPair, interval string) *cex.KlineData {
	open, _ := decimal.NewFromString(kline.Open)
	high, _ := decimal.NewFromString(kline.High)
	low, _ := decimal.NewFromString(kline.Low)
	close, _ := decimal.NewFromString(kline.Close)
	volume, _ := decimal.NewFromString(kline.Volume)
	quoteVolume, _ := decimal.NewFromString(kline.QuoteAssetVolume)

	return &cex.KlineData{
		TradingPair: pair,
		Interval:    interval,
		OpenTime:    time.Unix(kline.OpenTime/1000, 0),
		CloseTime:   time.Unix(kline.CloseTime/1000, 0),
		Open:        open,
		High:        high,
		Low:         low,
		Close:       close,
		Volume:      volume,
		QuoteVolume: quoteVolume,
		IsFinal:     true,
	}
}

// GetKlines 获取最近的K线数据
func (c *Client) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	symbol := c.tradingPairToSymbol(pair)

	klines, err := c.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines from Binance: %w", err)
	}

	result := make([]*cex.KlineData, 0, len(klines))
	for _, kline := range klines {
		result = append(result, c.convertKlineData(kline, pair, interval))
	}

	return result, nil
}

// PlaceOrder 提交订单
// 只读模式下不触达交易所，返回按请求价格成交的模拟结果
func (c *Client) PlaceOrder(ctx context.Context, req cex.OrderRequest) (*cex.OrderResult, error) {
	if c.simulated() {
		return c.simulateOrder(req), nil
	}

	symbol := c.tradingPairToSymbol(req.TradingPair)

	service := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(req.Side)).
		Type(binance.OrderType(req.Type))

	if req.Type == cex.OrderTypeMarket && req.Side == cex.OrderSideBuy && !req.QuoteAmount.IsZero() {
		// 市价买入按计价货币金额下单
		service = service.QuoteOrderQty(req.QuoteAmount.String())
	} else {
		service = service.Quantity(req.Quantity.String())
	}
	if req.Type == cex.OrderTypeLimit {
		service = service.Price(req.Price.String()).TimeInForce(binance.TimeInForceTypeGTC)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s order on Binance: %w", req.Side, err)
	}

	return c.convertOrderResult(resp, req), nil
}

// convertOrderResult 转换Binance订单响应为标准格式
func (c *Client) convertOrderResult(resp *binance.CreateOrderResponse, req cex.OrderRequest) *cex.OrderResult {
	executedQty, _ := decimal.NewFromString(resp.ExecutedQuantity)
	cumQuote, _ := decimal.NewFromString(resp.CummulativeQuoteQuantity)

	avgPrice := decimal.Zero
	if !executedQty.IsZero() {
		avgPrice = cumQuote.Div(executedQty)
	}

	result := &cex.OrderResult{
		TradingPair:      req.TradingPair,
		OrderID:          fmt.Sprintf("%d", resp.OrderID),
		ClientOrderID:    resp.ClientOrderID,
		Side:             req.Side,
		Type:             req.Type,
		ExecutedQuantity: executedQty,
		AvgPrice:         avgPrice,
		TransactTime:     time.Unix(resp.TransactTime/1000, 0),
	}

	commission := decimal.Zero
	for _, fill := range resp.Fills {
		price, _ := decimal.NewFromString(fill.Price)
		qty, _ := decimal.NewFromString(fill.Quantity)
		fee, _ := decimal.NewFromString(fill.Commission)
		commission = commission.Add(fee)
		result.Fills = append(result.Fills, cex.OrderFill{
			Price:      price,
			Quantity:   qty,
			Commission: fee,
		})
	}
	result.Commission = commission

	return result
}

// simulateOrder 只读模式下的模拟成交
func (c *Client) simulateOrder(req cex.OrderRequest) *cex.OrderResult {
	qty := req.Quantity
	if qty.IsZero() && !req.QuoteAmount.IsZero() && !req.Price.IsZero() {
		qty = req.QuoteAmount.Div(req.Price)
	}
	return &cex.OrderResult{
		TradingPair:      req.TradingPair,
		OrderID:          fmt.Sprintf("dry_%d", time.Now().UnixNano()),
		Side:             req.Side,
		Type:             req.Type,
		ExecutedQuantity: qty,
		AvgPrice:         req.Price,
		Commission:       qty.Mul(req.Price).Mul(decimal.NewFromFloat(ConfigValue.Fee)),
		TransactTime:     time.Now(),
	}
}

// simulated 是否处于模拟下单模式
func (c *Client) simulated() bool {
	return ConfigValue.ReadOnly || !ConfigValue.EnableTrading
}

// GetFreeBalance 获取指定资产的可用余额
// 模拟模式下无API密钥时返回零，余额只用于启动日志
func (c *Client) GetFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if c.apiKey == "" && c.simulated() {
		return decimal.Zero, nil
	}

	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account from Binance: %w", err)
	}

	for _, balance := range account.Balances {
		if balance.Asset == asset {
			free, err := decimal.NewFromString(balance.Free)
			if err != nil {
				return decimal.Zero, fmt.Errorf("invalid balance for %s: %w", asset, err)
			}
			return free, nil
		}
	}

	return decimal.Zero, nil
}

// CanTrade 账户是否具备交易权限
// 模拟模式下无API密钥时视为可交易
func (c *Client) CanTrade(ctx context.Context) (bool, error) {
	if c.apiKey == "" && c.simulated() {
		return true, nil
	}

	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get account from Binance: %w", err)
	}
	return account.CanTrade, nil
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	err := c.client.NewPingService().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping Binance: %w", err)
	}
	return nil
}

// GetServerTime 获取服务器时间
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	serverTime, err := c.client.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get server time from Binance: %w", err)
	}
	return time.Unix(serverTime/1000, 0), nil
}
