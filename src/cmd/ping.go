package cmd

import (
	"context"
	"fmt"
	"math"
	"time"

	"scalpbot/src/cex/binance"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterPingCmd 注册ping测试命令
func RegisterPingCmd() {
	var verbose bool
	var timeout int

	cmd.RegisterCmd("ping", "test connectivity to the exchange API server", func(args *arg.Arg) {
		args.Bool(&verbose, "v", "verbose output with detailed information")
		args.Int(&timeout, "t", "timeout in seconds (default: 10)")
		args.Parse()

		if timeout <= 0 {
			timeout = 10
		}

		err := runPingTest(verbose, timeout)
		if err != nil {
			fmt.Printf("❌ Ping test failed: %v\n", err)
			return
		}
		fmt.Println("✅ Ping test successful!")
	})
}

// runPingTest 执行ping测试
func runPingTest(verbose bool, timeoutSeconds int) error {
	if verbose {
		fmt.Println("🌐 交易所API连通性测试")
		fmt.Println("================================")
		fmt.Printf("📡 目标服务器: %s\n", binance.ConfigValue.BaseURL)
		fmt.Printf("⏰ 超时时间: %d秒\n", timeoutSeconds)
		fmt.Println()
	}

	// ping测试不需要API密钥
	client := binance.NewClient("", "", binance.ConfigValue.BaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	startTime := time.Now()
	err := client.Ping(ctx)
	latency := time.Since(startTime)

	if err != nil {
		if verbose {
			fmt.Printf("\n❌ 连接失败: %v\n", err)
			fmt.Printf("⏱️ 测试耗时: %v\n", latency)
		}
		return err
	}

	if verbose {
		fmt.Printf("✅ 服务器响应正常\n")
		fmt.Printf("⏱️ 响应延迟: %v\n", latency)

		// 获取服务器时间做额外校验
		serverTime, timeErr := client.GetServerTime(ctx)
		if timeErr == nil {
			fmt.Printf("🕐 服务器时间: %v\n", serverTime.Format("2006-01-02 15:04:05 MST"))

			timeDiff := int64(math.Abs(float64(serverTime.Unix() - time.Now().Unix())))
			fmt.Printf("⏰ 本地时间差: %ds", timeDiff)
			if timeDiff > 60 {
				fmt.Printf(" ⚠️ 时间差较大，可能影响API调用")
			}
			fmt.Println()
		} else {
			fmt.Printf("🕐 获取服务器时间失败: %v\n", timeErr)
		}
	}

	return nil
}
