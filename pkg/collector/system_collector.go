package collector

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

// SystemCollector 系统信息采集器：运行时长、进程数、负载与静态系统信息
type SystemCollector struct {
	src    SystemSource
	clock  clockwork.Clock
	logger *zap.Logger
	static map[string]any
	osName string
}

// NewSystemCollector 创建系统采集器，静态信息只在构造时读取一次
func NewSystemCollector(ctx context.Context, src SystemSource, clock clockwork.Clock, osVersion string, logger *zap.Logger) *SystemCollector {
	c := &SystemCollector{src: src, clock: clock, logger: logger, osName: osVersion}
	static := map[string]any{
		"os":           runtime.GOOS,
		"os_version":   osVersion,
		"architecture": runtime.GOARCH,
		"go_version":   runtime.Version(),
	}
	if info, err := src.HostInfo(ctx); err == nil && info != nil {
		static["kernel"] = info.KernelVersion
		static["hostname"] = info.Hostname
		if info.KernelArch != "" {
			static["architecture"] = info.KernelArch
		}
		if c.osName == "" {
			c.osName = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
			static["os_version"] = c.osName
		}
	} else if err != nil {
		logger.Debug("failed to read host info", zap.Error(err))
	}
	if cpus, err := src.Info(ctx); err == nil && len(cpus) > 0 {
		static["cpu_model"] = cpus[0].ModelName
	}
	c.static = static
	return c
}

func (c *SystemCollector) Name() string { return NameSystem }

func (c *SystemCollector) Describe() []sensor.Descriptor {
	return []sensor.Descriptor{
		{Key: "uptime", Name: "System Uptime", Class: sensor.ClassCounter, Unit: "s", Icon: "mdi:clock-outline", DeviceClass: "duration"},
		{Key: "process_count", Name: "Process Count", Class: sensor.ClassMeasurement, Icon: "mdi:format-list-numbered", Category: diagnostic},
		{Key: "load_1m", Name: "Load Average 1m", Class: sensor.ClassMeasurement, Icon: "mdi:gauge", Precision: sensor.Precision(2)},
		{Key: "load_5m", Name: "Load Average 5m", Class: sensor.ClassMeasurement, Icon: "mdi:gauge", Category: diagnostic, Precision: sensor.Precision(2)},
		{Key: "load_15m", Name: "Load Average 15m", Class: sensor.ClassMeasurement, Icon: "mdi:gauge", Category: diagnostic, Precision: sensor.Precision(2)},
		{Key: "system_info", Name: "System Info", Class: sensor.ClassText, Icon: "mdi:information", Category: diagnostic, Attributes: true, Retain: true},
	}
}

func (c *SystemCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	var (
		metrics []sensor.Metric
		errs    []error
	)

	if boot, err := c.src.BootTime(ctx); err != nil {
		errs = append(errs, fmt.Errorf("boot time: %w", err))
	} else {
		uptime := c.clock.Now().Unix() - int64(boot)
		if uptime < 0 {
			uptime = 0
		}
		metrics = append(metrics, sensor.Metric{Key: "uptime", Value: sensor.Int(uptime), Unit: "s"})
	}

	if pids, err := c.src.Pids(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pids: %w", err))
	} else {
		metrics = append(metrics, sensor.Metric{Key: "process_count", Value: sensor.Int(int64(len(pids)))})
	}

	// 部分平台没有负载均值，读取失败不算错误
	if avg, err := c.src.LoadAvg(ctx); err == nil && avg != nil {
		metrics = append(metrics,
			sensor.Metric{Key: "load_1m", Value: sensor.Number(avg.Load1, 2)},
			sensor.Metric{Key: "load_5m", Value: sensor.Number(avg.Load5, 2)},
			sensor.Metric{Key: "load_15m", Value: sensor.Number(avg.Load15, 2)},
		)
	}

	metrics = append(metrics, sensor.Metric{Key: "system_info", Value: sensor.Text(c.osName), Attributes: c.static})
	return metrics, errors.Join(errs...)
}
