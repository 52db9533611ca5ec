package cmd

import (
	"context"
	"fmt"
	"time"

	"scalpbot/src/cex"
	"scalpbot/src/config"
	"scalpbot/src/strategy"
	"scalpbot/src/timeframes"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterSignalCmd 注册一次性信号评估命令
// 拉取最近的K线，打印当前的信号评分结果，不下单
func RegisterSignalCmd() {
	var base string
	var quote string
	var timeframe string

	cmd.RegisterCmd("signal", "evaluate the current entry signal without trading", func(args *arg.Arg) {
		args.String(&base, "base", "base currency (default from config, e.g., ETH)")
		args.String(&quote, "quote", "quote currency (default from config, e.g., USDT)")
		args.String(&timeframe, "t", "timeframe (default from config, e.g., 1m, 5m)")
		args.Parse()

		if base == "" {
			base = config.AppConfig.Trading.BaseAsset
		}
		if quote == "" {
			quote = config.AppConfig.Trading.QuoteAsset
		}
		if timeframe == "" {
			timeframe = config.AppConfig.Trading.Timeframe
		}

		err := runSignalCheck(CreateTradingPair(base, quote), timeframe)
		if err != nil {
			fmt.Printf("❌ Signal check failed: %v\n", err)
		}
	})
}

// runSignalCheck 执行一次信号评估
func runSignalCheck(pair cex.TradingPair, timeframe string) error {
	tf, err := timeframes.ParseTimeframe(timeframe)
	if err != nil {
		return err
	}

	client, err := cex.CreateCEXClient(config.AppConfig.Trading.CEX)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bars, err := client.GetKlines(ctx, pair, tf.GetBinanceInterval(), 2*strategy.MinBarsForSignal)
	if err != nil {
		return fmt.Errorf("failed to fetch klines: %w", err)
	}

	params := config.AppConfig.Strategy.Parameters.ToParams()
	scorer := strategy.NewScorer(params)

	signal, err := scorer.Evaluate(bars)
	if err != nil {
		return err
	}

	last := bars[len(bars)-1]
	fmt.Printf("📊 %s %s 信号评估\n", pair.Symbol(), timeframe)
	fmt.Println("================================")
	fmt.Printf("最新价格: %s (%s)\n", last.Close.String(), last.CloseTime.Format("2006-01-02 15:04:05"))

	if signal == nil {
		fmt.Println("当前无可接受的开仓信号")
		return nil
	}

	fmt.Printf("方向: %s\n", signal.Direction)
	fmt.Printf("强度: %.2f\n", signal.Strength)
	fmt.Printf("置信度: %.2f\n", signal.Confidence)
	fmt.Printf("确认指标数: %d\n", signal.Agreements)
	return nil
}
