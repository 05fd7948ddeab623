package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewCollectDurationSeconds 创建「采集器采集耗时分布」指标
// 指标类型：Histogram，标签 collector 为采集器名称
// 分桶说明：0.005s ~ 10s 的默认分桶覆盖本地采集与 supervisor HTTP 调用
func (m *MetricFactory) NewCollectDurationSeconds() *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "collect_duration_seconds",
		Help:      "Collection duration per collector",
		Buckets:   prometheus.DefBuckets,
	}, []string{"collector"})
	m.reg.MustRegister(h)
	return h
}

// NewCollectErrorsTotal 创建「采集器错误总数」指标
// 指标类型：Counter，包含超时、返回错误与 panic 三种失败
func (m *MetricFactory) NewCollectErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "collect_errors_total",
		Help:      "Total collection errors",
	}, []string{"collector"})
	m.reg.MustRegister(c)
	return c
}

// NewMetricsSampledTotal 每个采集器产出的观测值数量
func (m *MetricFactory) NewMetricsSampledTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "metrics_sampled_total",
		Help:      "Total metrics produced per collector",
	}, []string{"collector"})
	m.reg.MustRegister(c)
	return c
}

// NewSensorValue 最近一次采集到的数值型传感器值（布尔为 0/1，文本不导出）
func (m *MetricFactory) NewSensorValue() *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "sensor_value",
		Help:      "Latest numeric value per sensor",
	}, []string{"collector", "sensor"})
	m.reg.MustRegister(g)
	return g
}

// NewPublishTotal 按消息类型（discovery/state/attributes/alert/availability）统计发布次数
func (m *MetricFactory) NewPublishTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "publish_total",
		Help:      "Total messages published by kind",
	}, []string{"kind"})
	m.reg.MustRegister(c)
	return c
}

func (m *MetricFactory) NewPublishErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "publish_errors_total",
		Help:      "Total publish failures by kind",
	}, []string{"kind"})
	m.reg.MustRegister(c)
	return c
}

func (m *MetricFactory) NewAlertsFiredTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "alerts_fired_total",
		Help:      "Total alerts fired per rule",
	}, []string{"rule"})
	m.reg.MustRegister(c)
	return c
}

// NewTickDurationSeconds 一轮完整采集/发布的耗时
func (m *MetricFactory) NewTickDurationSeconds() prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one collection cycle",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s ~ 20.48s
	})
	m.reg.MustRegister(h)
	return h
}

func (m *MetricFactory) NewTickOverrunsTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tick_overruns_total",
		Help:      "Cycles that took longer than the configured interval",
	})
	m.reg.MustRegister(c)
	return c
}

func (m *MetricFactory) NewAnnouncedSensors() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "announced_sensors",
		Help:      "Number of sensors announced to the hub",
	})
	m.reg.MustRegister(g)
	return g
}

// NewAgentState 调度器状态：0=starting 1=running 2=draining 3=stopped
func (m *MetricFactory) NewAgentState() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "agent_state",
		Help:      "Orchestrator lifecycle state (0=starting 1=running 2=draining 3=stopped)",
	})
	m.reg.MustRegister(g)
	return g
}

// AgentMetrics 调度器、发布器共用的自监控指标集合
type AgentMetrics struct {
	CollectDuration  *prometheus.HistogramVec
	CollectErrors    *prometheus.CounterVec
	MetricsSampled   *prometheus.CounterVec
	SensorValue      *prometheus.GaugeVec
	PublishTotal     *prometheus.CounterVec
	PublishErrors    *prometheus.CounterVec
	AlertsFired      *prometheus.CounterVec
	TickDuration     prometheus.Histogram
	TickOverruns     prometheus.Counter
	AnnouncedSensors prometheus.Gauge
	State            prometheus.Gauge
}

// NewAgentMetrics 创建并注册全部自监控指标，同一个 registry 只能调用一次
func NewAgentMetrics(f *MetricFactory) *AgentMetrics {
	return &AgentMetrics{
		CollectDuration:  f.NewCollectDurationSeconds(),
		CollectErrors:    f.NewCollectErrorsTotal(),
		MetricsSampled:   f.NewMetricsSampledTotal(),
		SensorValue:      f.NewSensorValue(),
		PublishTotal:     f.NewPublishTotal(),
		PublishErrors:    f.NewPublishErrorsTotal(),
		AlertsFired:      f.NewAlertsFiredTotal(),
		TickDuration:     f.NewTickDurationSeconds(),
		TickOverruns:     f.NewTickOverrunsTotal(),
		AnnouncedSensors: f.NewAnnouncedSensors(),
		State:            f.NewAgentState(),
	}
}

// NewTestMetrics 在独立 registry 上创建指标，供测试使用
func NewTestMetrics() *AgentMetrics {
	f, _ := NewIsolatedFactory()
	return NewAgentMetrics(f)
}
