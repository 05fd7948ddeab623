package collector_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/system-monitor-pro/pkg/sensor"
)

var errUnavailable = errors.New("unavailable")

type fakeCPU struct {
	total   []cpu.TimesStat
	perCore []cpu.TimesStat
	info    []cpu.InfoStat
	temps   []host.TemperatureStat
}

func (f *fakeCPU) Times(_ context.Context, perCPU bool) ([]cpu.TimesStat, error) {
	if perCPU {
		return f.perCore, nil
	}
	return f.total, nil
}
func (f *fakeCPU) Count(context.Context) (int, error)                  { return len(f.perCore), nil }
func (f *fakeCPU) Info(context.Context) ([]cpu.InfoStat, error)         { return f.info, nil }
func (f *fakeCPU) Temperatures(context.Context) ([]host.TemperatureStat, error) {
	return f.temps, nil
}

type fakeMemory struct {
	vm   *mem.VirtualMemoryStat
	swap *mem.SwapMemoryStat
	err  error
}

func (f *fakeMemory) VirtualMemory(context.Context) (*mem.VirtualMemoryStat, error) {
	return f.vm, f.err
}
func (f *fakeMemory) SwapMemory(context.Context) (*mem.SwapMemoryStat, error) {
	if f.swap == nil {
		return nil, errUnavailable
	}
	return f.swap, nil
}

type fakeDisk struct {
	parts []disk.PartitionStat
	usage map[string]*disk.UsageStat
}

func (f *fakeDisk) Partitions(context.Context) ([]disk.PartitionStat, error) { return f.parts, nil }
func (f *fakeDisk) Usage(_ context.Context, path string) (*disk.UsageStat, error) {
	u, ok := f.usage[path]
	if !ok {
		return nil, fmt.Errorf("%s: permission denied", path)
	}
	return u, nil
}

type fakeNetwork struct {
	totals []net.IOCountersStat
	perNIC []net.IOCountersStat
	ifaces net.InterfaceStatList
}

func (f *fakeNetwork) IOCounters(_ context.Context, perNIC bool) ([]net.IOCountersStat, error) {
	if perNIC {
		return f.perNIC, nil
	}
	return f.totals, nil
}
func (f *fakeNetwork) Interfaces(context.Context) (net.InterfaceStatList, error) { return f.ifaces, nil }

type fakeSecurity struct {
	conns []net.ConnectionStat
	names map[int32]string
}

func (f *fakeSecurity) Connections(context.Context) ([]net.ConnectionStat, error) { return f.conns, nil }
func (f *fakeSecurity) ProcessName(_ context.Context, pid int32) (string, error) {
	name, ok := f.names[pid]
	if !ok {
		return "", errUnavailable
	}
	return name, nil
}

type fakeSystem struct {
	boot uint64
	pids []int32
	avg  *load.AvgStat
	info *host.InfoStat
}

func (f *fakeSystem) BootTime(context.Context) (uint64, error) { return f.boot, nil }
func (f *fakeSystem) Pids(context.Context) ([]int32, error)    { return f.pids, nil }
func (f *fakeSystem) LoadAvg(context.Context) (*load.AvgStat, error) {
	if f.avg == nil {
		return nil, errUnavailable
	}
	return f.avg, nil
}
func (f *fakeSystem) HostInfo(context.Context) (*host.InfoStat, error) { return f.info, nil }
func (f *fakeSystem) Info(context.Context) ([]cpu.InfoStat, error) {
	return []cpu.InfoStat{{ModelName: "Cortex-A72"}}, nil
}

type fakeRunner struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, cmd)
	out, ok := f.outputs[cmd]
	if !ok {
		return "", fmt.Errorf("%s: executable file not found", name)
	}
	return out, nil
}

func byKey(ms []sensor.Metric) map[string]sensor.Metric {
	out := make(map[string]sensor.Metric, len(ms))
	for _, m := range ms {
		out[m.Key] = m
	}
	return out
}

func descriptorKeys(ds []sensor.Descriptor) []string {
	keys := make([]string, 0, len(ds))
	for _, d := range ds {
		keys = append(keys, d.Key)
	}
	return keys
}
