package agent

import (
	"github.com/spf13/cobra"
)

func initMonitorFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	col := defaultCfg.Monitor.Collectors

	f.Duration("monitor.interval", defaultCfg.Monitor.Interval, "-> Collection interval (采集间隔)")
	f.Duration("monitor.collect_timeout", defaultCfg.Monitor.CollectTimeout, "-> Per-collector sampling timeout (单个采集器超时)")
	f.String("monitor.hostname", defaultCfg.Monitor.Hostname, "-> Device hostname, empty for system hostname (设备主机名)")
	f.StringSlice("monitor.monitored_disks", defaultCfg.Monitor.MonitoredDisks, "-> Only monitor these mount points (只监控这些挂载点)")

	f.Bool("monitor.collectors.security.enable", col.Security.Enable, "-> Enable port/connection sensors (启用安全采集器)")
	f.Bool("monitor.collectors.rpi.enable", col.RPi.Enable, "-> Enable Raspberry Pi sensors (启用树莓派采集器)")
	f.Bool("monitor.collectors.supervisor.enable", col.Supervisor.Enable, "-> Enable supervisor sensors (启用Supervisor采集器)")
	f.String("monitor.collectors.supervisor.url", col.Supervisor.URL, "-> Supervisor API URL (Supervisor 地址)")
}
