// Package collector 定义采集器接口以及各个领域（CPU、内存、磁盘、网络、安全、系统、树莓派、Supervisor）的实现。
//
// 采集器只负责把数据源读数转换成 sensor.Metric，数据源本身通过接口注入：
// 生产环境使用 gopsutil，测试使用假实现。
package collector

import (
	"context"
	"regexp"
	"strings"

	"github.com/system-monitor-pro/pkg/sensor"
)

// Collector 采集器核心接口（所有采集器必须实现）
type Collector interface {
	Name() string                                       // 采集器名称（唯一标识）
	Describe() []sensor.Descriptor                      // 当前已知的全部传感器描述
	Sample(ctx context.Context) ([]sensor.Metric, error) // 采集一次；出错时仍可返回部分结果
}

// 采集器名称
const (
	NameCPU        = "cpu"
	NameMemory     = "memory"
	NameDisk       = "disk"
	NameNetwork    = "network"
	NameSecurity   = "security"
	NameSystem     = "system"
	NameRPi        = "rpi"
	NameSupervisor = "supervisor"
)

const (
	gib        = 1 << 30
	diagnostic = "diagnostic"
)

// toGiB 字节转换为 GB（1024 进制），与 hub 上的 data_size 单位保持一致
func toGiB(b uint64) float64 {
	return float64(b) / gib
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9_]`)

// SanitizeKey 把挂载点、网卡名等子键转换为 metric key 片段；"/" 记为 root
func SanitizeKey(s string) string {
	if s == "/" {
		return "root"
	}
	s = strings.TrimLeft(s, "/")
	s = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(strings.ToLower(s))
	s = nonKeyChars.ReplaceAllString(s, "")
	if s == "" {
		return "unknown"
	}
	return s
}
