package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

var excludedInterfaces = map[string]struct{}{"lo": {}, "localhost": {}}

// InterfaceInfo 网卡地址信息，作为 IP 传感器的属性发布
type InterfaceInfo struct {
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`
	MAC  string `json:"mac,omitempty"`
}

// NetworkCollector 网络采集器：总流量/包数/错误、主 IP 以及每个网卡的收发字节
type NetworkCollector struct {
	src    NetworkSource
	logger *zap.Logger

	mu     sync.Mutex
	ifaces []string // 出现过的网卡，按首次出现顺序
	seen   map[string]struct{}
}

func NewNetworkCollector(src NetworkSource, logger *zap.Logger) *NetworkCollector {
	return &NetworkCollector{src: src, logger: logger, seen: make(map[string]struct{})}
}

func (c *NetworkCollector) Name() string { return NameNetwork }

func (c *NetworkCollector) Describe() []sensor.Descriptor {
	descs := []sensor.Descriptor{
		traffic("network_bytes_sent", "Network Bytes Sent", "mdi:upload-network", ""),
		traffic("network_bytes_recv", "Network Bytes Received", "mdi:download-network", ""),
		counter("network_packets_sent", "Network Packets Sent", "mdi:upload-network"),
		counter("network_packets_recv", "Network Packets Received", "mdi:download-network"),
		counter("network_errors", "Network Errors", "mdi:alert-circle"),
		counter("network_drops", "Network Drops", "mdi:alert-circle"),
		{
			Key:        "network_ip_address",
			Name:       "IP Address",
			Class:      sensor.ClassText,
			Icon:       "mdi:ip-network",
			Attributes: true,
			Retain:     true,
		},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range c.ifaces {
		key := "network_" + SanitizeKey(name)
		descs = append(descs,
			traffic(key+"_bytes_sent", fmt.Sprintf("Network %s Sent", name), "mdi:upload-network", diagnostic),
			traffic(key+"_bytes_recv", fmt.Sprintf("Network %s Received", name), "mdi:download-network", diagnostic),
		)
	}
	return descs
}

func (c *NetworkCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	var (
		metrics []sensor.Metric
		errs    []error
	)

	totals, err := c.src.IOCounters(ctx, false)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("net io counters: %w", err))
	case len(totals) > 0:
		t := totals[0]
		metrics = append(metrics,
			sensor.Metric{Key: "network_bytes_sent", Value: sensor.Number(toGiB(t.BytesSent), 3), Unit: "GB"},
			sensor.Metric{Key: "network_bytes_recv", Value: sensor.Number(toGiB(t.BytesRecv), 3), Unit: "GB"},
			sensor.Metric{Key: "network_packets_sent", Value: sensor.Int(int64(t.PacketsSent))},
			sensor.Metric{Key: "network_packets_recv", Value: sensor.Int(int64(t.PacketsRecv))},
			sensor.Metric{Key: "network_errors", Value: sensor.Int(int64(t.Errin + t.Errout))},
			sensor.Metric{Key: "network_drops", Value: sensor.Int(int64(t.Dropin + t.Dropout))},
		)
	}

	ifaces, err := c.src.Interfaces(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("net interfaces: %w", err))
	}
	infos := InterfaceAddresses(ifaces)
	attrs := make(map[string]any, len(infos))
	for name, info := range infos {
		attrs[name] = info
	}
	metrics = append(metrics, sensor.Metric{
		Key:        "network_ip_address",
		Value:      sensor.Text(PrimaryIP(infos)),
		Attributes: map[string]any{"interfaces": attrs},
	})

	perNIC, err := c.src.IOCounters(ctx, true)
	if err != nil {
		errs = append(errs, fmt.Errorf("per-nic io counters: %w", err))
	}
	for _, nic := range perNIC {
		if _, ok := infos[nic.Name]; !ok {
			continue
		}
		c.track(nic.Name)
		key := "network_" + SanitizeKey(nic.Name)
		metrics = append(metrics,
			sensor.Metric{Key: key + "_bytes_sent", Value: sensor.Number(toGiB(nic.BytesSent), 3), Unit: "GB", Family: "network_interface_sent", SubKey: nic.Name},
			sensor.Metric{Key: key + "_bytes_recv", Value: sensor.Number(toGiB(nic.BytesRecv), 3), Unit: "GB", Family: "network_interface_recv", SubKey: nic.Name},
		)
	}
	return metrics, errors.Join(errs...)
}

func (c *NetworkCollector) track(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[name]; ok {
		return
	}
	c.seen[name] = struct{}{}
	c.ifaces = append(c.ifaces, name)
	c.logger.Debug("monitoring network interface", zap.String("interface", name))
}

// InterfaceAddresses 提取处于 up 状态且有地址的网卡（跳过回环与 fe80 链路本地地址）
func InterfaceAddresses(list net.InterfaceStatList) map[string]InterfaceInfo {
	out := make(map[string]InterfaceInfo)
	for _, iface := range list {
		if _, skip := excludedInterfaces[strings.ToLower(iface.Name)]; skip {
			continue
		}
		if !hasFlag(iface.Flags, "up") {
			continue
		}
		info := InterfaceInfo{MAC: iface.HardwareAddr}
		for _, a := range iface.Addrs {
			ip, _, _ := strings.Cut(a.Addr, "/")
			switch {
			case strings.Contains(ip, ":"):
				if !strings.HasPrefix(strings.ToLower(ip), "fe80") {
					info.IPv6 = ip
				}
			case ip != "":
				info.IPv4 = ip
			}
		}
		if info.IPv4 != "" || info.IPv6 != "" {
			out[iface.Name] = info
		}
	}
	return out
}

// PrimaryIP 按网卡名排序后第一个非 127.* 的 IPv4 地址
func PrimaryIP(infos map[string]InterfaceInfo) string {
	names := make([]string, 0, len(infos))
	for name := range infos {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ip := infos[name].IPv4
		if ip != "" && !strings.HasPrefix(ip, "127.") {
			return ip
		}
	}
	return "unknown"
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func traffic(key, name, icon, category string) sensor.Descriptor {
	return sensor.Descriptor{
		Key:         key,
		Name:        name,
		Class:       sensor.ClassCounter,
		Unit:        "GB",
		Icon:        icon,
		DeviceClass: "data_size",
		Category:    category,
		Precision:   sensor.Precision(3),
	}
}

func counter(key, name, icon string) sensor.Descriptor {
	return sensor.Descriptor{Key: key, Name: name, Class: sensor.ClassCounter, Icon: icon, Category: diagnostic}
}
