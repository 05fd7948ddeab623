package registers

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/collector"
	"github.com/system-monitor-pro/pkg/config"
)

// Module 采集器注册项：开关 + 构造函数；available 为 false 表示探测失败，不参与调度
type Module struct {
	Enabled bool
	Name    string
	NewFunc func() (c collector.Collector, available bool)
}

// Sources 各领域的数据源
type Sources struct {
	CPU      collector.CPUSource
	Memory   collector.MemorySource
	Disk     collector.DiskSource
	Network  collector.NetworkSource
	Security collector.SecuritySource
	System   collector.SystemSource
}

// HostSources 全部使用 gopsutil 的默认数据源
func HostSources() Sources {
	h := collector.HostSource{}
	return Sources{CPU: h, Memory: h, Disk: h, Network: h, Security: h, System: h}
}

// Deps 构造采集器所需的依赖
type Deps struct {
	Sources   Sources
	Runner    collector.CommandRunner
	Clock     clockwork.Clock
	OSVersion string
	Logger    *zap.Logger
}

// RegisterCollectors 采集器注册统一入口（扩展仅需修改此函数）：开关控制 + 能力探测。
// 新增采集器只需在 modules 列表添加一条；返回顺序即每轮采样顺序。
func RegisterCollectors(ctx context.Context, cfg *config.Config, deps Deps) ([]collector.Collector, error) {
	col := cfg.Monitor.Collectors
	named := func(name string) *zap.Logger {
		return deps.Logger.Named(name).With(zap.String("collector", name))
	}

	modules := []Module{
		{
			Enabled: true,
			Name:    collector.NameCPU,
			NewFunc: func() (collector.Collector, bool) {
				return collector.NewCPUCollector(ctx, deps.Sources.CPU, named(collector.NameCPU)), true
			},
		},
		{
			Enabled: true,
			Name:    collector.NameMemory,
			NewFunc: func() (collector.Collector, bool) {
				return collector.NewMemoryCollector(ctx, deps.Sources.Memory, named(collector.NameMemory)), true
			},
		},
		{
			Enabled: true,
			Name:    collector.NameDisk,
			NewFunc: func() (collector.Collector, bool) {
				return collector.NewDiskCollector(ctx, deps.Sources.Disk, cfg.Monitor.MonitoredDisks, named(collector.NameDisk)), true
			},
		},
		{
			Enabled: true,
			Name:    collector.NameNetwork,
			NewFunc: func() (collector.Collector, bool) {
				return collector.NewNetworkCollector(deps.Sources.Network, named(collector.NameNetwork)), true
			},
		},
		{
			Enabled: col.Security.Enable,
			Name:    collector.NameSecurity,
			NewFunc: func() (collector.Collector, bool) {
				return collector.NewSecurityCollector(deps.Sources.Security, named(collector.NameSecurity)), true
			},
		},
		{
			Enabled: true,
			Name:    collector.NameSystem,
			NewFunc: func() (collector.Collector, bool) {
				return collector.NewSystemCollector(ctx, deps.Sources.System, deps.Clock, deps.OSVersion, named(collector.NameSystem)), true
			},
		},
		{
			Enabled: col.RPi.Enable,
			Name:    collector.NameRPi,
			NewFunc: func() (collector.Collector, bool) {
				c := collector.NewRPiCollector(ctx, true, deps.Runner, named(collector.NameRPi))
				return c, c.Available()
			},
		},
		{
			Enabled: col.Supervisor.Enable,
			Name:    collector.NameSupervisor,
			NewFunc: func() (collector.Collector, bool) {
				c := collector.NewSupervisorCollector(true, col.Supervisor.URL, col.Supervisor.Token, named(collector.NameSupervisor))
				return c, c.Available()
			},
		},
	}

	var registered []collector.Collector
	for _, m := range modules {
		if !m.Enabled {
			deps.Logger.Debug("collector disabled", zap.String("name", m.Name))
			continue
		}
		c, available := m.NewFunc()
		if !available {
			deps.Logger.Info("collector unavailable on this host, skipping", zap.String("name", m.Name))
			continue
		}
		registered = append(registered, c)
		deps.Logger.Debug("registered collector", zap.String("name", m.Name))
	}
	if len(registered) == 0 {
		return nil, errors.New("no collectors registered")
	}

	// 日志输出所有已启用的采集器（便于排查配置）
	names := make([]string, 0, len(registered))
	for _, c := range registered {
		names = append(names, c.Name())
	}
	deps.Logger.Info("all enabled collectors registered", zap.Strings("enabled_collectors", names))
	return registered, nil
}
