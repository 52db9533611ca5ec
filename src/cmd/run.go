package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scalpbot/src/cex"
	"scalpbot/src/cex/binance"
	"scalpbot/src/config"
	"scalpbot/src/engine"
	"scalpbot/src/history"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterRunCmd 注册实盘/模拟运行命令
func RegisterRunCmd() {
	var base string
	var quote string
	var timeframe string
	var capital float64
	var dry bool

	cmd.RegisterCmd("run", "run the V5 momentum strategy (default: dry run, no real orders)", func(args *arg.Arg) {
		args.String(&base, "base", "base currency (default from config, e.g., ETH)")
		args.String(&quote, "quote", "quote currency (default from config, e.g., USDT)")
		args.String(&timeframe, "t", "timeframe (default from config, e.g., 1m, 5m)")
		args.Float64(&capital, "capital", "initial capital for performance tracking (default from config)")
		args.Bool(&dry, "dry", "dry run mode: live data but simulated orders (default: true unless trading enabled)")
		args.Parse()

		// 命令行参数覆盖配置文件
		if base != "" {
			config.AppConfig.Trading.BaseAsset = base
		}
		if quote != "" {
			config.AppConfig.Trading.QuoteAsset = quote
		}
		if timeframe != "" {
			config.AppConfig.Trading.Timeframe = timeframe
		}
		if capital > 0 {
			config.AppConfig.Trading.InitialCapital = capital
		}

		if err := config.AppConfig.Validate(); err != nil {
			fmt.Printf("❌ Invalid configuration: %v\n", err)
			return
		}

		if dry {
			binance.ConfigValue.ReadOnly = true
		}

		if err := runEngine(); err != nil {
			fmt.Printf("❌ Engine failed: %v\n", err)
		}
	})
}

// runEngine 启动引擎并阻塞直到收到退出信号
func runEngine() error {
	cfg := config.AppConfig
	pair := cfg.GetTradingPair()

	mode := "LIVE"
	if binance.ConfigValue.ReadOnly || !binance.ConfigValue.EnableTrading {
		mode = "DRY RUN"
	}
	fmt.Printf("🚀 V5动量策略启动: %s %s [%s]\n", pair.Symbol(), cfg.Trading.Timeframe, mode)

	client, err := cex.CreateCEXClient(cfg.Trading.CEX)
	if err != nil {
		return err
	}

	// 交易历史落盘为可选能力
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.NewStore(cfg.History.Database)
		if err != nil {
			return fmt.Errorf("failed to connect trade history database: %w", err)
		}
		defer store.Close()

		if err := store.InitSchema(context.Background()); err != nil {
			return err
		}
	}

	eng := engine.NewV5Engine(client, pair, cfg.Trading.Timeframe,
		cfg.Strategy.Parameters.ToParams(), cfg.GetInitialCapital(), store)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		return err
	}

	go printEvents(eng)

	// 等待退出信号后优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n🛑 收到退出信号，正在停机...")
	if err := eng.Stop(ctx); err != nil {
		return err
	}

	printSummary(eng)
	return nil
}

// printEvents 打印引擎事件
func printEvents(eng *engine.V5Engine) {
	for event := range eng.Events() {
		switch event.Type {
		case engine.EventPositionOpened:
			fmt.Printf("📈 开仓 %s %s @ %s 数量 %s\n",
				event.Symbol, event.Side, event.Price.String(), event.Quantity.String())
		case engine.EventPositionPartialClose:
			fmt.Printf("💰 部分平仓 %s [%s] @ %s 盈亏 %s\n",
				event.Symbol, event.Reason, event.Price.String(), event.PnL.String())
		case engine.EventPositionClosed:
			fmt.Printf("🏁 平仓 %s [%s] @ %s 总盈亏 %s\n",
				event.Symbol, event.Reason, event.Price.String(), event.PnL.String())
		case engine.EventConnectivity:
			if event.Connected {
				fmt.Printf("🔌 行情已连接 %s\n", event.Symbol)
			} else {
				fmt.Printf("⚠️ 行情断开 %s: %s\n", event.Symbol, event.Message)
			}
		case engine.EventError:
			fmt.Printf("❌ %s: %s\n", event.Symbol, event.Message)
		}
	}
}

// printSummary 打印运行绩效摘要
func printSummary(eng *engine.V5Engine) {
	stats := eng.State().Stats()

	fmt.Println()
	fmt.Println("📊 运行绩效摘要")
	fmt.Println("================================")
	fmt.Printf("总交易次数: %d\n", stats.TotalTrades)
	fmt.Printf("胜/负: %d/%d\n", stats.Wins, stats.Losses)
	fmt.Printf("胜率: %.1f%%\n", stats.WinRate*100)
	fmt.Printf("净盈亏: %s\n", stats.NetPnL.String())
	fmt.Printf("总手续费: %s\n", stats.TotalFees.String())
	fmt.Printf("最大回撤: %s\n", stats.MaxDrawdown.String())
	fmt.Printf("期末余额: %s\n", eng.State().Balance().String())
}
