package timeframes

import (
	"fmt"
	"time"
)

// Timeframe K线周期
type Timeframe string

const (
	// 策略面向超短线，只支持日内周期
	Timeframe1m  Timeframe = "1m"  // 1分钟
	Timeframe3m  Timeframe = "3m"  // 3分钟
	Timeframe5m  Timeframe = "5m"  // 5分钟
	Timeframe15m Timeframe = "15m" // 15分钟
	Timeframe30m Timeframe = "30m" // 30分钟
	Timeframe1h  Timeframe = "1h"  // 1小时
)

var durations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe3m:  3 * time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
}

// GetDuration 获取周期对应的Duration
func (tf Timeframe) GetDuration() (time.Duration, error) {
	duration, ok := durations[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return duration, nil
}

// String 返回字符串表示
func (tf Timeframe) String() string {
	return string(tf)
}

// IsValid 检查周期是否有效
func (tf Timeframe) IsValid() bool {
	_, ok := durations[tf]
	return ok
}

// GetAllTimeframes 获取所有支持的周期
func GetAllTimeframes() []Timeframe {
	return []Timeframe{
		Timeframe1m,
		Timeframe3m,
		Timeframe5m,
		Timeframe15m,
		Timeframe30m,
		Timeframe1h,
	}
}

// ParseTimeframe 解析周期字符串
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.IsValid() {
		return "", fmt.Errorf("invalid timeframe: %s, supported: %v", s, GetAllTimeframes())
	}
	return tf, nil
}

// GetBinanceInterval 获取币安API对应的时间间隔字符串
func (tf Timeframe) GetBinanceInterval() string {
	// 币安API的间隔格式与本定义一致
	return string(tf)
}

// WarmupDuration 计算预加载指定数量K线所需的时间跨度
func (tf Timeframe) WarmupDuration(bars int) (time.Duration, error) {
	duration, err := tf.GetDuration()
	if err != nil {
		return 0, err
	}
	return time.Duration(bars) * duration, nil
}
