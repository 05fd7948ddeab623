package collector

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

// excludedFstypes 虚拟、临时文件系统不参与监控
var excludedFstypes = map[string]struct{}{
	"squashfs": {}, "tmpfs": {}, "devtmpfs": {}, "overlay": {}, "aufs": {},
	"proc": {}, "sysfs": {}, "devpts": {}, "cgroup": {}, "cgroup2": {},
	"securityfs": {}, "debugfs": {}, "tracefs": {}, "configfs": {},
	"fusectl": {}, "mqueue": {}, "hugetlbfs": {}, "pstore": {},
	"binfmt_misc": {}, "rpc_pipefs": {}, "nfsd": {}, "autofs": {},
}

// DiskUsageFamily 磁盘使用率告警按挂载点路由所用的 family
const DiskUsageFamily = "disk_usage"

type mount struct {
	path string
	key  string // disk_<sanitized>
}

// DiskCollector 磁盘采集器：每次采样重新枚举分区，挂载点作为子键
type DiskCollector struct {
	src     DiskSource
	logger  *zap.Logger
	allowed map[string]struct{}

	mu     sync.Mutex
	mounts []mount // 出现过的挂载点，按首次出现顺序
	seen   map[string]struct{}
}

// NewDiskCollector 创建磁盘采集器；allowList 非空时只监控其中的挂载点
func NewDiskCollector(ctx context.Context, src DiskSource, allowList []string, logger *zap.Logger) *DiskCollector {
	c := &DiskCollector{
		src:    src,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
	if len(allowList) > 0 {
		c.allowed = make(map[string]struct{}, len(allowList))
		for _, m := range allowList {
			c.allowed[m] = struct{}{}
		}
	}
	if _, err := c.Sample(ctx); err != nil {
		logger.Warn("failed to enumerate disk partitions", zap.Error(err))
	}
	logger.Info("monitoring disk partitions", zap.Int("count", len(c.mounts)))
	return c
}

func (c *DiskCollector) Name() string { return NameDisk }

func (c *DiskCollector) Describe() []sensor.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	var descs []sensor.Descriptor
	for _, m := range c.mounts {
		suffix := m.path
		if m.path == "/" {
			suffix = "Root"
		}
		free := dataSize(m.key+"_free", "Disk Free "+suffix, "mdi:harddisk", diagnostic)
		total := dataSize(m.key+"_total", "Disk Total "+suffix, "mdi:harddisk", diagnostic)
		descs = append(descs,
			sensor.Descriptor{
				Key:        m.key + "_usage",
				Name:       "Disk Usage " + suffix,
				Class:      sensor.ClassMeasurement,
				Unit:       "%",
				Icon:       "mdi:harddisk",
				Precision:  sensor.Precision(1),
				Attributes: true,
			},
			free,
			total,
		)
	}
	return descs
}

func (c *DiskCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	parts, err := c.src.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", err)
	}

	var metrics []sensor.Metric
	for _, p := range parts {
		if _, skip := excludedFstypes[p.Fstype]; skip {
			continue
		}
		if c.allowed != nil {
			if _, ok := c.allowed[p.Mountpoint]; !ok {
				continue
			}
		}
		usage, err := c.src.Usage(ctx, p.Mountpoint)
		if err != nil {
			c.logger.Debug("skipping inaccessible partition", zap.String("mount", p.Mountpoint), zap.Error(err))
			continue
		}
		if usage.Total == 0 {
			continue
		}

		key := c.track(p.Mountpoint)
		metrics = append(metrics,
			sensor.Metric{
				Key:    key + "_usage",
				Value:  sensor.Number(usage.UsedPercent, 1),
				Unit:   "%",
				Family: DiskUsageFamily,
				SubKey: p.Mountpoint,
				Attributes: map[string]any{
					"device": p.Device,
					"fstype": p.Fstype,
				},
			},
			gigabytes(key+"_free", usage.Free),
			gigabytes(key+"_total", usage.Total),
		)
	}
	return metrics, nil
}

// track 记录挂载点并返回其 key 前缀
func (c *DiskCollector) track(path string) string {
	key := "disk_" + SanitizeKey(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[path]; !ok {
		c.seen[path] = struct{}{}
		c.mounts = append(c.mounts, mount{path: path, key: key})
		c.logger.Debug("monitoring disk", zap.String("mount", path))
	}
	return key
}
