package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

// 常见 CPU 温度传感器名称，按优先级排列
var cpuTempSensors = []string{"coretemp", "cpu_thermal", "cpu-thermal", "k10temp", "zenpower"}

// CPUTimes 存储CPU各模式的累计时间
type CPUTimes struct {
	User    float64
	Nice    float64
	System  float64
	Idle    float64
	Iowait  float64
	Irq     float64
	Softirq float64
	Steal   float64
}

func newCPUTimes(t cpu.TimesStat) CPUTimes {
	return CPUTimes{
		User:    t.User,
		Nice:    t.Nice,
		System:  t.System,
		Idle:    t.Idle,
		Iowait:  t.Iowait,
		Irq:     t.Irq,
		Softirq: t.Softirq,
		Steal:   t.Steal,
	}
}

// Total 各模式时间之和
func (t CPUTimes) Total() float64 {
	return t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
}

// UsagePercent 两次读数之间的使用率（100% - 空闲率），总时间未变化时 ok=false
func UsagePercent(prev, cur CPUTimes) (float64, bool) {
	deltaTotal := cur.Total() - prev.Total()
	if deltaTotal <= 0 {
		return 0, false
	}
	deltaIdle := cur.Idle - prev.Idle
	usage := (deltaTotal - deltaIdle) / deltaTotal * 100
	return math.Max(0, math.Min(100, usage)), true
}

// CPUCollector CPU采集器：总体/每核使用率、温度、频率
type CPUCollector struct {
	src    CPUSource
	logger *zap.Logger

	hasTemp bool

	mu        sync.Mutex
	cores     int
	lastTimes map[string]CPUTimes // 上一次的CPU时间，用于计算使用率
}

// NewCPUCollector 创建CPU采集器。构造时探测温度传感器，并记录一次 CPU 时间作为首轮基准。
func NewCPUCollector(ctx context.Context, src CPUSource, logger *zap.Logger) *CPUCollector {
	c := &CPUCollector{
		src:       src,
		logger:    logger,
		lastTimes: make(map[string]CPUTimes),
	}
	if n, err := src.Count(ctx); err == nil {
		c.cores = n
	} else {
		logger.Warn("failed to get CPU counts", zap.Error(err))
	}
	if temps, _ := src.Temperatures(ctx); len(temps) > 0 {
		c.hasTemp = true
	}
	if _, err := c.usage(ctx); err != nil {
		logger.Debug("failed to prime CPU times", zap.Error(err))
	}
	logger.Debug("cpu collector probed", zap.Int("cores", c.cores), zap.Bool("temperature", c.hasTemp))
	return c
}

func (c *CPUCollector) Name() string { return NameCPU }

func (c *CPUCollector) Describe() []sensor.Descriptor {
	c.mu.Lock()
	cores := c.cores
	c.mu.Unlock()

	descs := []sensor.Descriptor{{
		Key:       "cpu_usage",
		Name:      "CPU Usage",
		Class:     sensor.ClassMeasurement,
		Unit:      "%",
		Icon:      "mdi:cpu-64-bit",
		Precision: sensor.Precision(1),
	}}
	for i := 0; i < cores; i++ {
		descs = append(descs, sensor.Descriptor{
			Key:       coreKey(i),
			Name:      fmt.Sprintf("CPU Core %d Usage", i),
			Class:     sensor.ClassMeasurement,
			Unit:      "%",
			Icon:      "mdi:chip",
			Category:  diagnostic,
			Precision: sensor.Precision(1),
		})
	}
	if c.hasTemp {
		descs = append(descs, sensor.Descriptor{
			Key:         "cpu_temperature",
			Name:        "CPU Temperature",
			Class:       sensor.ClassMeasurement,
			Unit:        "°C",
			DeviceClass: "temperature",
			Precision:   sensor.Precision(1),
		})
	}
	descs = append(descs, sensor.Descriptor{
		Key:         "cpu_frequency",
		Name:        "CPU Frequency",
		Class:       sensor.ClassMeasurement,
		Unit:        "MHz",
		Icon:        "mdi:speedometer",
		DeviceClass: "frequency",
	})
	return descs
}

func (c *CPUCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	var errs []error
	metrics, err := c.usage(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	if c.hasTemp {
		if temp, ok := c.temperature(ctx); ok {
			metrics = append(metrics, sensor.Metric{Key: "cpu_temperature", Value: sensor.Number(temp, 1), Unit: "°C"})
		}
	}

	info, err := c.src.Info(ctx)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("cpu info: %w", err))
	case len(info) > 0 && info[0].Mhz > 0:
		metrics = append(metrics, sensor.Metric{Key: "cpu_frequency", Value: sensor.Int(int64(math.Round(info[0].Mhz))), Unit: "MHz"})
	}
	return metrics, errors.Join(errs...)
}

// usage 读取总体与每核 CPU 时间，与上次读数做差得到使用率；首次出现的 CPU 只记录基准
func (c *CPUCollector) usage(ctx context.Context) ([]sensor.Metric, error) {
	total, err := c.src.Times(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("cpu times: %w", err)
	}
	perCore, err := c.src.Times(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("per-cpu times: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var metrics []sensor.Metric
	if len(total) > 0 {
		if usage, ok := c.delta("cpu-total", newCPUTimes(total[0])); ok {
			metrics = append(metrics, sensor.Metric{Key: "cpu_usage", Value: sensor.Number(usage, 1), Unit: "%"})
		}
	}
	if len(perCore) > c.cores {
		c.cores = len(perCore)
	}
	for i, t := range perCore {
		usage, ok := c.delta(fmt.Sprintf("cpu%d", i), newCPUTimes(t))
		if !ok {
			continue
		}
		metrics = append(metrics, sensor.Metric{
			Key:    coreKey(i),
			Value:  sensor.Number(usage, 1),
			Unit:   "%",
			Family: "cpu_core_usage",
			SubKey: fmt.Sprintf("%d", i),
		})
	}
	return metrics, nil
}

func (c *CPUCollector) delta(id string, cur CPUTimes) (float64, bool) {
	prev, exists := c.lastTimes[id]
	c.lastTimes[id] = cur
	if !exists {
		return 0, false
	}
	return UsagePercent(prev, cur)
}

// temperature 优先使用常见 CPU 传感器，否则取第一个读数
func (c *CPUCollector) temperature(ctx context.Context) (float64, bool) {
	temps, err := c.src.Temperatures(ctx)
	if len(temps) == 0 {
		if err != nil {
			c.logger.Debug("failed to read CPU temperature", zap.Error(err))
		}
		return 0, false
	}
	return pickCPUTemperature(temps)
}

func pickCPUTemperature(temps []host.TemperatureStat) (float64, bool) {
	for _, name := range cpuTempSensors {
		for _, t := range temps {
			if strings.HasPrefix(t.SensorKey, name) {
				return t.Temperature, true
			}
		}
	}
	if len(temps) == 0 {
		return 0, false
	}
	return temps[0].Temperature, true
}

func coreKey(i int) string {
	return fmt.Sprintf("cpu_core_%d_usage", i)
}
