package cmd

import (
	"strings"

	"scalpbot/src/cex"
)

// RegisterAllTradingCommands 注册所有交易相关命令
func RegisterAllTradingCommands() {
	RegisterRunCmd()
	RegisterSignalCmd()
	RegisterPingCmd()
}

// CreateTradingPair 创建交易对
func CreateTradingPair(base, quote string) cex.TradingPair {
	return cex.TradingPair{
		Base:  strings.ToUpper(base),
		Quote: strings.ToUpper(quote),
	}
}
