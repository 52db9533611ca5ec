package main

import (
	"context"
	"os"
	"path/filepath"

	tradingcmd "scalpbot/src/cmd"
	"scalpbot/src/config"

	"github.com/xpwu/go-cmd/cmd"
	"github.com/xpwu/go-config/configs"
	"github.com/xpwu/go-log/log"
)

func main() {
	// 设置 JSON 配置格式
	configs.SetConfigurator(&configs.JsonConfig{})

	// 智能查找配置文件
	setupConfigPath()

	// 读取配置文件
	err := configs.ReadWithErr()
	if err != nil {
		// 读取失败时生成默认配置文件
		printErr := configs.Print()
		if printErr != nil {
			panic("生成默认配置文件失败: " + printErr.Error())
		}
		panic("请修改 config.json 配置文件后重新运行")
	}

	// 验证配置
	if err := config.AppConfig.Validate(); err != nil {
		panic("配置验证失败: " + err.Error())
	}

	ctx := context.Background()
	_, logger := log.WithCtx(ctx)
	logger.PushPrefix("ScalpBot")
	logger.Info("V5动量策略机器人启动")

	// 注册交易相关命令
	tradingcmd.RegisterAllTradingCommands()

	// 运行命令行程序
	cmd.Run()
}

// setupConfigPath 智能设置配置文件路径
// 优先级: 1. bin/config.json 2. config.json 3. 生成默认配置
func setupConfigPath() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	execDir := filepath.Dir(execPath)
	binConfigPath := filepath.Join(execDir, "config.json")

	if _, err := os.Stat(binConfigPath); err == nil {
		os.Chdir(execDir)
		return
	}

	if _, err := os.Stat("config.json"); err == nil {
		return
	}

	// 都没有找到则由程序生成默认配置
}
