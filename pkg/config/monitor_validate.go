package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	minInterval = 5 * time.Second
	maxInterval = 3600 * time.Second
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 	校验Addr格式(必须是 ":port" 或 "ip:port")
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

func (m *MonitorConfig) Validate() error {
	if err := valid.Struct(m); err != nil {
		return err
	}
	if m.Interval < minInterval || m.Interval > maxInterval {
		return fmt.Errorf("monitor.interval must be between %s and %s, got %s", minInterval, maxInterval, m.Interval)
	}
	if m.CollectTimeout >= m.Interval {
		return fmt.Errorf("monitor.collect_timeout must be shorter than monitor.interval (%s), got %s", m.Interval, m.CollectTimeout)
	}

	// 	校验挂载点列表
	seen := map[string]bool{}
	for _, d := range m.MonitoredDisks {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("monitor.monitored_disks cannot contain empty string")
		}
		if !strings.HasPrefix(d, "/") {
			return fmt.Errorf("monitor.monitored_disks: %q must be an absolute mount point", d)
		}
		// 重复项检查
		if seen[d] {
			return fmt.Errorf("monitor.monitored_disks duplicated entry: %q", d)
		}
		seen[d] = true
	}

	return m.Collectors.validate()
}

func (col *CollectorConfig) validate() error {
	if err := valid.Struct(col); err != nil {
		return err
	}
	// 	启用 supervisor 时地址不能为空；token 可以为空（采集器自动跳过）
	if col.Supervisor.Enable && col.Supervisor.URL == "" {
		return errors.New("monitor.collectors.supervisor.url cannot be empty when supervisor collector is enabled")
	}
	return nil
}
