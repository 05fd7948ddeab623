package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

// vcgencmdTimeout 单次 vcgencmd 调用的最长时间
const vcgencmdTimeout = 5 * time.Second

// ThrottledFlags get_throttled 返回值各标志位
var ThrottledFlags = map[string]uint{
	"under_voltage":            0,
	"arm_frequency_capped":     1,
	"throttled":                2,
	"soft_temp_limit":          3,
	"under_voltage_occurred":   16,
	"arm_freq_capped_occurred": 17,
	"throttled_occurred":       18,
	"soft_temp_limit_occurred": 19,
}

// CommandRunner 执行外部命令并返回标准输出
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner 基于 os/exec 的 CommandRunner
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, vcgencmdTimeout)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(out.String()), nil
}

// RPiCollector 树莓派采集器：降频/欠压标志、核心电压与 GPU 温度（依赖 vcgencmd）
type RPiCollector struct {
	runner    CommandRunner
	logger    *zap.Logger
	available bool
}

// NewRPiCollector 创建树莓派采集器；未启用或探测不到 vcgencmd 时为空操作
func NewRPiCollector(ctx context.Context, enabled bool, runner CommandRunner, logger *zap.Logger) *RPiCollector {
	c := &RPiCollector{runner: runner, logger: logger}
	if !enabled {
		return c
	}
	if _, err := runner.Run(ctx, "vcgencmd", "version"); err != nil {
		logger.Debug("vcgencmd not available", zap.Error(err))
		return c
	}
	c.available = true
	logger.Info("Raspberry Pi detected, enabling RPi sensors")
	return c
}

func (c *RPiCollector) Name() string { return NameRPi }

// Available 探测结果
func (c *RPiCollector) Available() bool { return c.available }

func (c *RPiCollector) Describe() []sensor.Descriptor {
	if !c.available {
		return nil
	}
	return []sensor.Descriptor{
		{Key: "rpi_throttled", Name: "RPi Throttled", Class: sensor.ClassBinary, Icon: "mdi:speedometer-slow", DeviceClass: "running", Category: diagnostic},
		{Key: "rpi_under_voltage", Name: "RPi Under Voltage", Class: sensor.ClassBinary, Icon: "mdi:flash-alert", DeviceClass: "problem", Category: diagnostic},
		{Key: "rpi_temp_limited", Name: "RPi Temperature Limited", Class: sensor.ClassBinary, Icon: "mdi:thermometer-alert", DeviceClass: "heat", Category: diagnostic},
		{Key: "rpi_freq_capped", Name: "RPi Frequency Capped", Class: sensor.ClassBinary, Icon: "mdi:speedometer-slow", DeviceClass: "running", Category: diagnostic},
		{Key: "rpi_core_voltage", Name: "RPi Core Voltage", Class: sensor.ClassMeasurement, Unit: "V", DeviceClass: "voltage", Category: diagnostic, Precision: sensor.Precision(4)},
		{Key: "rpi_gpu_temperature", Name: "RPi GPU Temperature", Class: sensor.ClassMeasurement, Unit: "°C", DeviceClass: "temperature", Precision: sensor.Precision(1)},
		{Key: "rpi_throttle_raw", Name: "RPi Throttle Status", Class: sensor.ClassText, Icon: "mdi:information", Category: diagnostic, Attributes: true},
	}
}

func (c *RPiCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	if !c.available {
		return nil, nil
	}
	var (
		metrics []sensor.Metric
		errs    []error
	)

	if out, err := c.runner.Run(ctx, "vcgencmd", "get_throttled"); err != nil {
		errs = append(errs, err)
	} else if raw, err := ParseThrottled(out); err != nil {
		errs = append(errs, err)
	} else {
		flags := DecodeThrottled(raw)
		attrs := make(map[string]any, len(flags))
		for k, v := range flags {
			attrs[k] = v
		}
		metrics = append(metrics,
			sensor.Metric{Key: "rpi_throttled", Value: sensor.Bool(flags["throttled"])},
			sensor.Metric{Key: "rpi_under_voltage", Value: sensor.Bool(flags["under_voltage"])},
			sensor.Metric{Key: "rpi_temp_limited", Value: sensor.Bool(flags["soft_temp_limit"])},
			sensor.Metric{Key: "rpi_freq_capped", Value: sensor.Bool(flags["arm_frequency_capped"])},
			sensor.Metric{Key: "rpi_throttle_raw", Value: sensor.Text(fmt.Sprintf("0x%x", raw)), Attributes: attrs},
		)
	}

	if out, err := c.runner.Run(ctx, "vcgencmd", "measure_volts", "core"); err != nil {
		errs = append(errs, err)
	} else if v, err := parseReading(out, "V"); err != nil {
		c.logger.Debug("failed to parse voltage", zap.String("output", out), zap.Error(err))
	} else {
		metrics = append(metrics, sensor.Metric{Key: "rpi_core_voltage", Value: sensor.Number(v, 4), Unit: "V"})
	}

	if out, err := c.runner.Run(ctx, "vcgencmd", "measure_temp"); err != nil {
		errs = append(errs, err)
	} else if v, err := parseReading(out, "'C"); err != nil {
		c.logger.Debug("failed to parse GPU temperature", zap.String("output", out), zap.Error(err))
	} else {
		metrics = append(metrics, sensor.Metric{Key: "rpi_gpu_temperature", Value: sensor.Number(v, 1), Unit: "°C"})
	}

	return metrics, errors.Join(errs...)
}

// ParseThrottled 解析 "throttled=0x50000"
func ParseThrottled(out string) (uint64, error) {
	_, v, ok := strings.Cut(strings.TrimSpace(out), "=")
	if !ok {
		return 0, fmt.Errorf("unexpected get_throttled output %q", out)
	}
	raw, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(v), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse throttled %q: %w", out, err)
	}
	return raw, nil
}

// DecodeThrottled 把原始值拆成各个标志位
func DecodeThrottled(raw uint64) map[string]bool {
	flags := make(map[string]bool, len(ThrottledFlags))
	for name, bit := range ThrottledFlags {
		flags[name] = raw&(1<<bit) != 0
	}
	return flags
}

// parseReading 解析 "volt=1.2000V"、"temp=42.0'C" 这类输出
func parseReading(out, suffix string) (float64, error) {
	_, v, ok := strings.Cut(strings.TrimSpace(out), "=")
	if !ok {
		return 0, fmt.Errorf("unexpected output %q", out)
	}
	return strconv.ParseFloat(strings.TrimSuffix(v, suffix), 64)
}
