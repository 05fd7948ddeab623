package agent

import (
	"github.com/spf13/cobra"
)

func initMQTTFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "mqtt."

	f.String(p+"host", defaultCfg.MQTT.Host, "-> MQTT broker host (broker 地址)")
	f.Int(p+"port", defaultCfg.MQTT.Port, "-> MQTT broker port (broker 端口)")
	f.String(p+"username", defaultCfg.MQTT.Username, "-> MQTT username (用户名)")
	f.String(p+"client_id", defaultCfg.MQTT.ClientID, "-> MQTT client id, empty for device id (客户端ID)")
	f.String(p+"topic_prefix", defaultCfg.MQTT.TopicPrefix, "-> State/alert topic prefix (状态主题前缀)")
	f.String(p+"discovery_prefix", defaultCfg.MQTT.DiscoveryPrefix, "-> Discovery topic prefix (发现主题前缀)")
	f.Int(p+"qos", defaultCfg.MQTT.QoS, "-> Publish QoS [0,1,2] (发布 QoS)")
	f.Duration(p+"connect_timeout", defaultCfg.MQTT.ConnectTimeout, "-> Broker connect timeout (连接超时)")
	f.Bool(p+"dry_run", defaultCfg.MQTT.DryRun, "-> Log messages instead of publishing (只打印不发布)")
	f.Bool(p+"keep_retained", defaultCfg.MQTT.KeepRetained, "-> Keep discovery documents on exit (退出时保留发现文档)")
}

func initAlertFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "alerts."

	f.Bool(p+"enable", defaultCfg.Alerts.Enable, "-> Enable threshold alerts (启用告警)")
	f.Float64(p+"cpu_threshold", defaultCfg.Alerts.CPUThreshold, "-> CPU usage threshold % (CPU 阈值)")
	f.Float64(p+"memory_threshold", defaultCfg.Alerts.MemoryThreshold, "-> Memory usage threshold % (内存阈值)")
	f.Float64(p+"disk_threshold", defaultCfg.Alerts.DiskThreshold, "-> Disk usage threshold % (磁盘阈值)")
	f.Float64(p+"temp_threshold", defaultCfg.Alerts.TempThreshold, "-> Temperature threshold °C (温度阈值)")
	f.Duration(p+"cooldown", defaultCfg.Alerts.Cooldown, "-> Minimum interval between repeated alerts (告警冷却时间)")
}
