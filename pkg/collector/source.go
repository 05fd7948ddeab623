package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// CPUSource CPU 读数来源
type CPUSource interface {
	Times(ctx context.Context, perCPU bool) ([]cpu.TimesStat, error)
	Count(ctx context.Context) (int, error)
	Info(ctx context.Context) ([]cpu.InfoStat, error)
	Temperatures(ctx context.Context) ([]host.TemperatureStat, error)
}

// MemorySource 内存读数来源
type MemorySource interface {
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error)
}

// DiskSource 分区与用量读数来源
type DiskSource interface {
	Partitions(ctx context.Context) ([]disk.PartitionStat, error)
	Usage(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NetworkSource 网卡计数器与地址来源
type NetworkSource interface {
	IOCounters(ctx context.Context, perNIC bool) ([]net.IOCountersStat, error)
	Interfaces(ctx context.Context) (net.InterfaceStatList, error)
}

// SecuritySource 套接字与进程名来源
type SecuritySource interface {
	Connections(ctx context.Context) ([]net.ConnectionStat, error)
	ProcessName(ctx context.Context, pid int32) (string, error)
}

// SystemSource 主机级读数来源
type SystemSource interface {
	BootTime(ctx context.Context) (uint64, error)
	Pids(ctx context.Context) ([]int32, error)
	LoadAvg(ctx context.Context) (*load.AvgStat, error)
	HostInfo(ctx context.Context) (*host.InfoStat, error)
	Info(ctx context.Context) ([]cpu.InfoStat, error)
}

// HostSource 基于 gopsutil 的默认数据源，实现上面全部接口
type HostSource struct{}

func (HostSource) Times(ctx context.Context, perCPU bool) ([]cpu.TimesStat, error) {
	return cpu.TimesWithContext(ctx, perCPU)
}

func (HostSource) Count(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

func (HostSource) Info(ctx context.Context) ([]cpu.InfoStat, error) {
	return cpu.InfoWithContext(ctx)
}

func (HostSource) Temperatures(ctx context.Context) ([]host.TemperatureStat, error) {
	return host.SensorsTemperaturesWithContext(ctx)
}

func (HostSource) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (HostSource) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}

func (HostSource) Partitions(ctx context.Context) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, false)
}

func (HostSource) Usage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

func (HostSource) IOCounters(ctx context.Context, perNIC bool) ([]net.IOCountersStat, error) {
	return net.IOCountersWithContext(ctx, perNIC)
}

func (HostSource) Interfaces(ctx context.Context) (net.InterfaceStatList, error) {
	return net.InterfacesWithContext(ctx)
}

func (HostSource) Connections(ctx context.Context) ([]net.ConnectionStat, error) {
	return net.ConnectionsWithContext(ctx, "inet")
}

func (HostSource) ProcessName(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

func (HostSource) BootTime(ctx context.Context) (uint64, error) {
	return host.BootTimeWithContext(ctx)
}

func (HostSource) Pids(ctx context.Context) ([]int32, error) {
	return process.PidsWithContext(ctx)
}

func (HostSource) LoadAvg(ctx context.Context) (*load.AvgStat, error) {
	return load.AvgWithContext(ctx)
}

func (HostSource) HostInfo(ctx context.Context) (*host.InfoStat, error) {
	return host.InfoWithContext(ctx)
}
