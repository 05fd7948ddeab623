package collector_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/system-monitor-pro/pkg/collector"
	"github.com/system-monitor-pro/pkg/sensor"
)

func TestSanitizeKey(t *testing.T) {
	tests := map[string]string{
		"/":             "root",
		"/data":         "data",
		"/mnt/usb-disk": "mnt_usb_disk",
		"eth0":          "eth0",
		"wlan0.100":     "wlan0_100",
		"/$$$":          "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, collector.SanitizeKey(in), in)
	}
}

func TestUsagePercent(t *testing.T) {
	prev := collector.CPUTimes{User: 10, Idle: 90}
	cur := collector.CPUTimes{User: 30, Idle: 150}
	usage, ok := collector.UsagePercent(prev, cur)
	require.True(t, ok)
	assert.InDelta(t, 25.0, usage, 1e-9)

	_, ok = collector.UsagePercent(cur, cur)
	assert.False(t, ok)
}

func TestCPUCollector(t *testing.T) {
	ctx := context.Background()
	src := &fakeCPU{
		total:   []cpu.TimesStat{{CPU: "cpu-total", User: 10, Idle: 90}},
		perCore: []cpu.TimesStat{{CPU: "cpu0", User: 5, Idle: 45}, {CPU: "cpu1", User: 5, Idle: 45}},
		info:    []cpu.InfoStat{{Mhz: 1499.6}},
		temps:   []host.TemperatureStat{{SensorKey: "acpitz", Temperature: 30}, {SensorKey: "cpu_thermal", Temperature: 48.3}},
	}
	c := collector.NewCPUCollector(ctx, src, zaptest.NewLogger(t))
	assert.Equal(t, "cpu", c.Name())
	assert.Equal(t,
		[]string{"cpu_usage", "cpu_core_0_usage", "cpu_core_1_usage", "cpu_temperature", "cpu_frequency"},
		descriptorKeys(c.Describe()))

	src.total = []cpu.TimesStat{{CPU: "cpu-total", User: 30, Idle: 150}}
	src.perCore = []cpu.TimesStat{{CPU: "cpu0", User: 15, Idle: 75}, {CPU: "cpu1", User: 5, Idle: 85}}
	ms, err := c.Sample(ctx)
	require.NoError(t, err)

	got := byKey(ms)
	assert.Equal(t, "25.0", got["cpu_usage"].Value.String())
	assert.Equal(t, "25.0", got["cpu_core_0_usage"].Value.String())
	assert.Equal(t, "0.0", got["cpu_core_1_usage"].Value.String())
	assert.Equal(t, "cpu_core_usage", got["cpu_core_1_usage"].Family)
	assert.Equal(t, "1", got["cpu_core_1_usage"].SubKey)
	assert.Equal(t, "48.3", got["cpu_temperature"].Value.String())
	assert.Equal(t, "1500", got["cpu_frequency"].Value.String())
}

func TestCPUCollectorNewCoreIsDescribed(t *testing.T) {
	ctx := context.Background()
	src := &fakeCPU{perCore: []cpu.TimesStat{{User: 1, Idle: 1}}}
	c := collector.NewCPUCollector(ctx, src, zaptest.NewLogger(t))
	assert.NotContains(t, descriptorKeys(c.Describe()), "cpu_core_1_usage")
	assert.NotContains(t, descriptorKeys(c.Describe()), "cpu_temperature")

	src.perCore = append(src.perCore, cpu.TimesStat{User: 1, Idle: 1})
	_, err := c.Sample(ctx)
	require.NoError(t, err)
	assert.Contains(t, descriptorKeys(c.Describe()), "cpu_core_1_usage")
}

func TestMemoryCollector(t *testing.T) {
	ctx := context.Background()
	src := &fakeMemory{
		vm: &mem.VirtualMemoryStat{Total: 8 << 30, Used: 2 << 30, Available: 6 << 30, UsedPercent: 25.04},
	}
	c := collector.NewMemoryCollector(ctx, src, zaptest.NewLogger(t))
	assert.Len(t, c.Describe(), 4)

	ms, err := c.Sample(ctx)
	require.NoError(t, err)
	got := byKey(ms)
	assert.Equal(t, "25.0", got["memory_usage"].Value.String())
	assert.Equal(t, "8.00", got["memory_total"].Value.String())
	assert.Equal(t, "6.00", got["memory_available"].Value.String())
	assert.NotContains(t, got, "swap_usage")
}

func TestMemoryCollectorWithSwap(t *testing.T) {
	ctx := context.Background()
	src := &fakeMemory{
		vm:   &mem.VirtualMemoryStat{Total: 1 << 30},
		swap: &mem.SwapMemoryStat{Total: 1 << 30, Used: 1 << 29, UsedPercent: 50},
	}
	c := collector.NewMemoryCollector(ctx, src, zaptest.NewLogger(t))
	assert.Len(t, c.Describe(), 7)

	ms, err := c.Sample(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.50", byKey(ms)["swap_used"].Value.String())
}

func TestMemoryCollectorError(t *testing.T) {
	ctx := context.Background()
	c := collector.NewMemoryCollector(ctx, &fakeMemory{err: errUnavailable}, zaptest.NewLogger(t))
	ms, err := c.Sample(ctx)
	assert.Error(t, err)
	assert.Empty(t, ms)
}

func TestDiskCollector(t *testing.T) {
	ctx := context.Background()
	src := &fakeDisk{
		parts: []disk.PartitionStat{
			{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4"},
			{Device: "/dev/sda2", Mountpoint: "/data", Fstype: "ext4"},
			{Device: "tmpfs", Mountpoint: "/run", Fstype: "tmpfs"},
			{Device: "/dev/sdb1", Mountpoint: "/locked", Fstype: "ext4"},
		},
		usage: map[string]*disk.UsageStat{
			"/":     {Total: 100 << 30, Free: 40 << 30, UsedPercent: 60},
			"/data": {Total: 10 << 30, Free: 1 << 30, UsedPercent: 90},
			"/run":  {Total: 1 << 30, UsedPercent: 1},
		},
	}
	c := collector.NewDiskCollector(ctx, src, nil, zaptest.NewLogger(t))
	assert.Equal(t, []string{
		"disk_root_usage", "disk_root_free", "disk_root_total",
		"disk_data_usage", "disk_data_free", "disk_data_total",
	}, descriptorKeys(c.Describe()))
	assert.Equal(t, "Disk Usage Root", c.Describe()[0].Name)

	ms, err := c.Sample(ctx)
	require.NoError(t, err)
	got := byKey(ms)
	assert.Equal(t, "90.0", got["disk_data_usage"].Value.String())
	assert.Equal(t, collector.DiskUsageFamily, got["disk_data_usage"].Family)
	assert.Equal(t, "/data", got["disk_data_usage"].SubKey)
	assert.Equal(t, "40.00", got["disk_root_free"].Value.String())

	// /data 被卸载后不再产出，也不报错
	src.parts = src.parts[:1]
	ms, err = c.Sample(ctx)
	require.NoError(t, err)
	assert.Len(t, ms, 3)
	assert.NotContains(t, byKey(ms), "disk_data_usage")
}

func TestDiskCollectorAllowList(t *testing.T) {
	ctx := context.Background()
	src := &fakeDisk{
		parts: []disk.PartitionStat{
			{Mountpoint: "/", Fstype: "ext4"},
			{Mountpoint: "/data", Fstype: "ext4"},
		},
		usage: map[string]*disk.UsageStat{
			"/":     {Total: 1 << 30},
			"/data": {Total: 1 << 30},
		},
	}
	c := collector.NewDiskCollector(ctx, src, []string{"/data"}, zaptest.NewLogger(t))
	assert.Equal(t, []string{"disk_data_usage", "disk_data_free", "disk_data_total"}, descriptorKeys(c.Describe()))
}

func TestDiskCollectorNewMountIsDescribed(t *testing.T) {
	ctx := context.Background()
	src := &fakeDisk{
		parts: []disk.PartitionStat{{Mountpoint: "/", Fstype: "ext4"}},
		usage: map[string]*disk.UsageStat{"/": {Total: 1 << 30}, "/media/usb": {Total: 1 << 30}},
	}
	c := collector.NewDiskCollector(ctx, src, nil, zaptest.NewLogger(t))
	require.Len(t, c.Describe(), 3)

	src.parts = append(src.parts, disk.PartitionStat{Mountpoint: "/media/usb", Fstype: "vfat"})
	_, err := c.Sample(ctx)
	require.NoError(t, err)
	assert.Contains(t, descriptorKeys(c.Describe()), "disk_media_usb_usage")
}

func TestNetworkCollector(t *testing.T) {
	ctx := context.Background()
	src := &fakeNetwork{
		totals: []net.IOCountersStat{{BytesSent: 3 << 30, BytesRecv: 1 << 30, PacketsSent: 10, PacketsRecv: 20, Errin: 1, Errout: 2, Dropin: 3}},
		perNIC: []net.IOCountersStat{
			{Name: "lo", BytesSent: 1},
			{Name: "eth0", BytesSent: 2 << 30, BytesRecv: 1 << 29},
		},
		ifaces: net.InterfaceStatList{
			{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: net.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			{Name: "eth0", HardwareAddr: "dc:a6:32:00:00:01", Flags: []string{"up"}, Addrs: net.InterfaceAddrList{
				{Addr: "192.168.1.10/24"}, {Addr: "fe80::1/64"}, {Addr: "2001:db8::10/64"},
			}},
			{Name: "wlan0", Flags: []string{}, Addrs: net.InterfaceAddrList{{Addr: "10.0.0.2/24"}}},
		},
	}
	c := collector.NewNetworkCollector(src, zaptest.NewLogger(t))
	ms, err := c.Sample(ctx)
	require.NoError(t, err)

	got := byKey(ms)
	assert.Equal(t, "3.000", got["network_bytes_sent"].Value.String())
	assert.Equal(t, "3", got["network_errors"].Value.String())
	assert.Equal(t, "3", got["network_drops"].Value.String())
	assert.Equal(t, "192.168.1.10", got["network_ip_address"].Value.String())

	ifaces := got["network_ip_address"].Attributes["interfaces"].(map[string]any)
	require.Contains(t, ifaces, "eth0")
	assert.NotContains(t, ifaces, "wlan0")
	assert.Equal(t, collector.InterfaceInfo{IPv4: "192.168.1.10", IPv6: "2001:db8::10", MAC: "dc:a6:32:00:00:01"}, ifaces["eth0"])

	assert.Equal(t, "2.000", got["network_eth0_bytes_sent"].Value.String())
	assert.NotContains(t, got, "network_lo_bytes_sent")
	assert.Contains(t, descriptorKeys(c.Describe()), "network_eth0_bytes_recv")
}

func TestPrimaryIPUnknown(t *testing.T) {
	assert.Equal(t, "unknown", collector.PrimaryIP(nil))
	assert.Equal(t, "unknown", collector.PrimaryIP(map[string]collector.InterfaceInfo{"eth0": {IPv6: "2001:db8::1"}}))
}

func TestSecurityCollector(t *testing.T) {
	ctx := context.Background()
	src := &fakeSecurity{
		conns: []net.ConnectionStat{
			{Type: uint32(syscall.SOCK_STREAM), Status: "LISTEN", Laddr: net.Addr{IP: "0.0.0.0", Port: 8123}, Pid: 42},
			{Type: uint32(syscall.SOCK_STREAM), Status: "LISTEN", Laddr: net.Addr{IP: "0.0.0.0", Port: 22}, Pid: 7},
			{Type: uint32(syscall.SOCK_STREAM), Status: "ESTABLISHED", Pid: 42},
			{Type: uint32(syscall.SOCK_STREAM), Status: "ESTABLISHED"},
			{Type: uint32(syscall.SOCK_DGRAM), Status: "NONE"},
		},
		names: map[int32]string{42: "python3"},
	}
	c := collector.NewSecurityCollector(src, zaptest.NewLogger(t))
	ms, err := c.Sample(ctx)
	require.NoError(t, err)

	got := byKey(ms)
	assert.Equal(t, "2", got["open_ports"].Value.String())
	assert.Equal(t, "2", got["active_connections"].Value.String())
	assert.Equal(t, "5", got["total_connections"].Value.String())
	assert.Equal(t, "2", got["listening_sockets"].Value.String())

	ports := got["open_ports"].Attributes["ports"].([]collector.ListeningPort)
	require.Len(t, ports, 2)
	assert.Equal(t, uint32(22), ports[0].Port)
	assert.Equal(t, "unknown", ports[0].Service)
	assert.Equal(t, "python3", ports[1].Service)
	assert.Equal(t, "tcp", ports[1].Protocol)
}

func TestSystemCollector(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_000_000, 0))
	src := &fakeSystem{
		boot: 1_000_000 - 3600,
		pids: []int32{1, 2, 3},
		avg:  &load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.75},
		info: &host.InfoStat{Hostname: "pi", KernelVersion: "6.6.31", KernelArch: "aarch64"},
	}
	c := collector.NewSystemCollector(ctx, src, clock, "Debian GNU/Linux 12 (bookworm)", zaptest.NewLogger(t))
	ms, err := c.Sample(ctx)
	require.NoError(t, err)

	got := byKey(ms)
	assert.Equal(t, "3600", got["uptime"].Value.String())
	assert.Equal(t, "3", got["process_count"].Value.String())
	assert.Equal(t, "0.50", got["load_1m"].Value.String())
	assert.Equal(t, "0.75", got["load_15m"].Value.String())
	assert.Equal(t, "Debian GNU/Linux 12 (bookworm)", got["system_info"].Value.String())
	assert.Equal(t, "6.6.31", got["system_info"].Attributes["kernel"])
	assert.Equal(t, "aarch64", got["system_info"].Attributes["architecture"])
	assert.Equal(t, "Cortex-A72", got["system_info"].Attributes["cpu_model"])

	clock.Advance(time.Minute)
	ms, err = c.Sample(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3660", byKey(ms)["uptime"].Value.String())
}

func TestSystemCollectorWithoutLoad(t *testing.T) {
	ctx := context.Background()
	src := &fakeSystem{info: &host.InfoStat{}}
	c := collector.NewSystemCollector(ctx, src, clockwork.NewFakeClock(), "", zaptest.NewLogger(t))
	ms, err := c.Sample(ctx)
	require.NoError(t, err)
	assert.NotContains(t, byKey(ms), "load_1m")
}

func TestParseThrottled(t *testing.T) {
	raw, err := collector.ParseThrottled("throttled=0x50005")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x50005), raw)

	flags := collector.DecodeThrottled(raw)
	assert.True(t, flags["under_voltage"])
	assert.True(t, flags["throttled"])
	assert.False(t, flags["arm_frequency_capped"])
	assert.True(t, flags["under_voltage_occurred"])
	assert.True(t, flags["throttled_occurred"])

	_, err = collector.ParseThrottled("garbage")
	assert.Error(t, err)
}

func TestRPiCollector(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{outputs: map[string]string{
		"vcgencmd version":            "Version abc",
		"vcgencmd get_throttled":      "throttled=0x4",
		"vcgencmd measure_volts core": "volt=0.8500V",
		"vcgencmd measure_temp":       "temp=51.5'C",
	}}
	c := collector.NewRPiCollector(ctx, true, runner, zaptest.NewLogger(t))
	require.True(t, c.Available())
	assert.Len(t, c.Describe(), 7)

	ms, err := c.Sample(ctx)
	require.NoError(t, err)
	got := byKey(ms)
	assert.Equal(t, "on", got["rpi_throttled"].Value.String())
	assert.Equal(t, "off", got["rpi_under_voltage"].Value.String())
	assert.Equal(t, sensor.KindBool, got["rpi_temp_limited"].Value.Kind())
	assert.Equal(t, "0x4", got["rpi_throttle_raw"].Value.String())
	assert.Equal(t, true, got["rpi_throttle_raw"].Attributes["throttled"])
	assert.Equal(t, "0.8500", got["rpi_core_voltage"].Value.String())
	assert.Equal(t, "51.5", got["rpi_gpu_temperature"].Value.String())
}

func TestRPiCollectorProbe(t *testing.T) {
	ctx := context.Background()

	missing := collector.NewRPiCollector(ctx, true, &fakeRunner{}, zaptest.NewLogger(t))
	assert.False(t, missing.Available())
	assert.Empty(t, missing.Describe())
	ms, err := missing.Sample(ctx)
	assert.NoError(t, err)
	assert.Empty(t, ms)

	runner := &fakeRunner{outputs: map[string]string{"vcgencmd version": "ok"}}
	disabled := collector.NewRPiCollector(ctx, false, runner, zaptest.NewLogger(t))
	assert.False(t, disabled.Available())
	assert.Empty(t, runner.calls)
}

func TestSupervisorCollector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/addons":
			_, _ = w.Write([]byte(`{"data":{"addons":[
				{"name":"Mosquitto","slug":"core_mosquitto","version":"6.4","state":"started","installed":true},
				{"name":"Samba","slug":"core_samba","version":"12","state":"stopped","installed":true}]}}`))
		case "/core/info":
			_, _ = w.Write([]byte(`{"data":{"version":"2024.6.1","arch":"aarch64","machine":"raspberrypi4-64","image":"ghcr.io/home-assistant/core"}}`))
		case "/core/api/states":
			_, _ = w.Write([]byte(`[{"entity_id":"automation.lights"},{"entity_id":"script.bed"},{"entity_id":"sensor.x"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := collector.NewSupervisorCollector(true, srv.URL, "secret", zaptest.NewLogger(t))
	require.True(t, c.Available())
	ms, err := c.Sample(context.Background())
	require.NoError(t, err)

	got := byKey(ms)
	assert.Equal(t, "1", got["ha_addons_running"].Value.String())
	assert.Equal(t, 2, got["ha_addons_running"].Attributes["total_installed"])
	assert.Equal(t, "2024.6.1", got["ha_core_version"].Value.String())
	assert.Equal(t, "3", got["ha_entities"].Value.String())
	assert.Equal(t, "1", got["ha_automations"].Value.String())
	assert.Equal(t, "1", got["ha_scripts"].Value.String())
}

func TestSupervisorCollectorPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/core/info" {
			_, _ = w.Write([]byte(`{"data":{"version":"2024.6.1"}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := collector.NewSupervisorCollector(true, srv.URL, "secret", zaptest.NewLogger(t))
	ms, err := c.Sample(context.Background())
	assert.Error(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "ha_core_version", ms[0].Key)
}

func TestSupervisorCollectorWithoutToken(t *testing.T) {
	c := collector.NewSupervisorCollector(true, "", "", zaptest.NewLogger(t))
	assert.False(t, c.Available())
	assert.Empty(t, c.Describe())
	ms, err := c.Sample(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, ms)
}
