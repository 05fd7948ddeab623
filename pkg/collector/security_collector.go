package collector

import (
	"context"
	"fmt"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

// maxListedPorts 属性中最多列出的监听端口数
const maxListedPorts = 50

// ListeningPort 一个监听中的端口
type ListeningPort struct {
	Port     uint32 `json:"port"`
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Service  string `json:"service"`
	PID      int32  `json:"pid"`
}

// SecurityCollector 安全采集器：监听端口与连接状态统计
type SecurityCollector struct {
	src    SecuritySource
	logger *zap.Logger
}

func NewSecurityCollector(src SecuritySource, logger *zap.Logger) *SecurityCollector {
	return &SecurityCollector{src: src, logger: logger}
}

func (c *SecurityCollector) Name() string { return NameSecurity }

func (c *SecurityCollector) Describe() []sensor.Descriptor {
	return []sensor.Descriptor{
		{Key: "open_ports", Name: "Open Ports", Class: sensor.ClassMeasurement, Icon: "mdi:lan-connect", Attributes: true},
		{Key: "active_connections", Name: "Active Connections", Class: sensor.ClassMeasurement, Icon: "mdi:lan-pending", Attributes: true},
		{Key: "total_connections", Name: "Total Connections", Class: sensor.ClassMeasurement, Icon: "mdi:lan", Category: diagnostic},
		{Key: "listening_sockets", Name: "Listening Sockets", Class: sensor.ClassMeasurement, Icon: "mdi:server-network", Category: diagnostic},
	}
}

func (c *SecurityCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	conns, err := c.src.Connections(ctx)
	if err != nil {
		// 权限不足时只能拿到部分连接
		if len(conns) == 0 {
			return nil, fmt.Errorf("net connections: %w", err)
		}
		c.logger.Warn("limited access to connection info", zap.Error(err))
	}

	stats := make(map[string]any)
	counts := make(map[string]int)
	names := make(map[int32]string)
	var ports []ListeningPort
	for _, conn := range conns {
		counts[conn.Status]++
		if conn.Status != "LISTEN" {
			continue
		}
		protocol := "udp"
		if conn.Type == uint32(syscall.SOCK_STREAM) {
			protocol = "tcp"
		}
		ports = append(ports, ListeningPort{
			Port:     conn.Laddr.Port,
			Protocol: protocol,
			Address:  conn.Laddr.IP,
			Service:  c.processName(ctx, conn.Pid, names),
			PID:      conn.Pid,
		})
	}
	sort.SliceStable(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })

	total := 0
	for status, n := range counts {
		stats[status] = n
		total += n
	}
	listed := ports
	if len(listed) > maxListedPorts {
		listed = listed[:maxListedPorts]
	}

	return []sensor.Metric{
		{Key: "open_ports", Value: sensor.Int(int64(len(ports))), Attributes: map[string]any{"ports": listed}},
		{Key: "active_connections", Value: sensor.Int(int64(counts["ESTABLISHED"])), Attributes: stats},
		{Key: "total_connections", Value: sensor.Int(int64(total))},
		{Key: "listening_sockets", Value: sensor.Int(int64(counts["LISTEN"]))},
	}, nil
}

func (c *SecurityCollector) processName(ctx context.Context, pid int32, cache map[int32]string) string {
	if pid <= 0 {
		return "unknown"
	}
	if name, ok := cache[pid]; ok {
		return name
	}
	name, err := c.src.ProcessName(ctx, pid)
	if err != nil || name == "" {
		name = "unknown"
	}
	cache[pid] = name
	return name
}
