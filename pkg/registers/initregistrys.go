package registers

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/system-monitor-pro/pkg/metrics"
)

// InitPromRegistry 返回值
// promReg	*prometheus.Registry	Prometheus 指标注册器，供 /metrics 暴露或单元测试
// m	    *metrics.AgentMetrics	调度器、发布器、告警管理器共用的自监控指标
func InitPromRegistry(enableRuntime bool) (*prometheus.Registry, *metrics.AgentMetrics) {
	promReg := prometheus.NewRegistry()
	reg := metrics.NewPromRegistry(promReg)
	// Go 运行时与进程指标（可选）
	if enableRuntime {
		metrics.RegisterRuntime(reg)
	}
	return promReg, metrics.NewAgentMetrics(metrics.NewMetricFactory(reg))
}
