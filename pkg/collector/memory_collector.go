package collector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

// MemoryCollector 内存与交换分区采集器
type MemoryCollector struct {
	src     MemorySource
	logger  *zap.Logger
	hasSwap bool
}

// NewMemoryCollector 创建内存采集器，构造时探测是否存在交换分区
func NewMemoryCollector(ctx context.Context, src MemorySource, logger *zap.Logger) *MemoryCollector {
	c := &MemoryCollector{src: src, logger: logger}
	if swap, err := src.SwapMemory(ctx); err == nil && swap != nil && swap.Total > 0 {
		c.hasSwap = true
	}
	logger.Debug("memory collector probed", zap.Bool("swap", c.hasSwap))
	return c
}

func (c *MemoryCollector) Name() string { return NameMemory }

func (c *MemoryCollector) Describe() []sensor.Descriptor {
	descs := []sensor.Descriptor{
		{Key: "memory_usage", Name: "Memory Usage", Class: sensor.ClassMeasurement, Unit: "%", Icon: "mdi:memory", Precision: sensor.Precision(1)},
		dataSize("memory_total", "Memory Total", "mdi:memory", diagnostic),
		dataSize("memory_used", "Memory Used", "mdi:memory", ""),
		dataSize("memory_available", "Memory Available", "mdi:memory", ""),
	}
	if c.hasSwap {
		descs = append(descs,
			sensor.Descriptor{Key: "swap_usage", Name: "Swap Usage", Class: sensor.ClassMeasurement, Unit: "%", Icon: "mdi:harddisk", Category: diagnostic, Precision: sensor.Precision(1)},
			dataSize("swap_used", "Swap Used", "mdi:harddisk", diagnostic),
			dataSize("swap_total", "Swap Total", "mdi:harddisk", diagnostic),
		)
	}
	return descs
}

func (c *MemoryCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	var (
		metrics []sensor.Metric
		errs    []error
	)
	vm, err := c.src.VirtualMemory(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("virtual memory: %w", err))
	} else {
		metrics = append(metrics,
			percent("memory_usage", vm.UsedPercent),
			gigabytes("memory_total", vm.Total),
			gigabytes("memory_used", vm.Used),
			gigabytes("memory_available", vm.Available),
		)
	}

	if c.hasSwap {
		swap, err := c.src.SwapMemory(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("swap memory: %w", err))
		} else {
			metrics = append(metrics,
				percent("swap_usage", swap.UsedPercent),
				gigabytes("swap_used", swap.Used),
				gigabytes("swap_total", swap.Total),
			)
		}
	}
	return metrics, errors.Join(errs...)
}

// dataSize GB 单位的容量类传感器
func dataSize(key, name, icon, category string) sensor.Descriptor {
	return sensor.Descriptor{
		Key:         key,
		Name:        name,
		Class:       sensor.ClassMeasurement,
		Unit:        "GB",
		Icon:        icon,
		DeviceClass: "data_size",
		Category:    category,
		Precision:   sensor.Precision(2),
	}
}

func percent(key string, v float64) sensor.Metric {
	return sensor.Metric{Key: key, Value: sensor.Number(v, 1), Unit: "%"}
}

func gigabytes(key string, b uint64) sensor.Metric {
	return sensor.Metric{Key: key, Value: sensor.Number(toGiB(b), 2), Unit: "GB"}
}
