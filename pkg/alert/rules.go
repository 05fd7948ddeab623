package alert

import "time"

// 内置规则引用的 metric key / family
const (
	KeyCPUUsage       = "cpu_usage"
	KeyMemoryUsage    = "memory_usage"
	KeyCPUTemperature = "cpu_temperature"
	KeyGPUTemperature = "rpi_gpu_temperature"
	FamilyDiskUsage   = "disk_usage"
	KeyUnderVoltage   = "rpi_under_voltage"
	KeyThrottled      = "rpi_throttled"
	KeyTempLimited    = "rpi_temp_limited"
)

// Thresholds 内置规则使用的阈值
type Thresholds struct {
	CPU         float64
	Memory      float64
	Disk        float64
	Temperature float64
	Cooldown    time.Duration
}

// DefaultRules 生成内置规则集：CPU、内存、温度、磁盘（按挂载点），以及树莓派供电/降频状态
func DefaultRules(t Thresholds) []Rule {
	return []Rule{
		{Key: KeyCPUUsage, Name: "CPU Usage", Comparison: GreaterThan, Threshold: t.CPU, Cooldown: t.Cooldown},
		{Key: KeyMemoryUsage, Name: "Memory Usage", Comparison: GreaterThan, Threshold: t.Memory, Cooldown: t.Cooldown},
		{Key: KeyCPUTemperature, Name: "CPU Temperature", Comparison: GreaterThan, Threshold: t.Temperature, Cooldown: t.Cooldown},
		{Key: KeyGPUTemperature, Name: "GPU Temperature", Comparison: GreaterThan, Threshold: t.Temperature, Cooldown: t.Cooldown},
		{Key: FamilyDiskUsage, Family: true, Name: "Disk Usage", Comparison: GreaterThan, Threshold: t.Disk, Cooldown: t.Cooldown},
		{Key: KeyUnderVoltage, Name: "Under Voltage", Comparison: BoolTrue, Cooldown: t.Cooldown},
		{Key: KeyThrottled, Name: "Thermal Throttling", Comparison: BoolTrue, Cooldown: t.Cooldown},
		{Key: KeyTempLimited, Name: "Temperature Limited", Comparison: BoolTrue, Cooldown: t.Cooldown},
	}
}
