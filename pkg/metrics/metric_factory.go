package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace 所有自监控指标的公共前缀
const Namespace = "sysmon"

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewIsolatedFactory 基于一个全新的 registry 创建工厂，返回 registry 供 /metrics 使用
func NewIsolatedFactory() (*MetricFactory, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	return NewMetricFactory(NewPromRegistry(registry)), registry
}
