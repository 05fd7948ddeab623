// Package alert 按阈值规则评估观测值，维护每个 (规则, 子键) 的告警状态并限制重复告警频率。
package alert

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/metrics"
	"github.com/system-monitor-pro/pkg/sensor"
)

// Comparison 规则的比较方式
type Comparison int

const (
	GreaterThan Comparison = iota // 数值严格大于阈值
	BoolTrue                      // 布尔值为 true
)

func (c Comparison) String() string {
	if c == BoolTrue {
		return "bool_true"
	}
	return "greater_than"
}

// Rule 告警规则，启动时构建后不再修改
type Rule struct {
	// Key 匹配 Metric.Key；Family 为 true 时匹配 Metric.Family，子键取 Metric.SubKey
	Key        string
	Family     bool
	Name       string
	Comparison Comparison
	Threshold  float64
	Cooldown   time.Duration
}

// Alert 一次告警事件
type Alert struct {
	Sensor    string  `json:"sensor"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`

	Rule    string    `json:"-"`
	SubKey  string    `json:"-"`
	FiredAt time.Time `json:"-"`
}

// Active 当前处于告警态的 (规则, 子键)
type Active struct {
	Rule      string    `json:"rule"`
	SubKey    string    `json:"sub_key,omitempty"`
	Sensor    string    `json:"sensor"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	LastFired time.Time `json:"last_fired"`
}

type stateKey struct {
	rule   string
	subKey string
}

type state struct {
	alerting  bool
	lastFired time.Time
	last      Alert
}

// Manager 告警管理器。只在调度循环中使用，不做并发保护。
type Manager struct {
	rules   []Rule
	states  map[stateKey]*state
	logger  *zap.Logger
	metrics *metrics.AgentMetrics
}

// NewManager 创建告警管理器，rules 为空时 Evaluate 永远不产生告警
func NewManager(rules []Rule, logger *zap.Logger, m *metrics.AgentMetrics) *Manager {
	return &Manager{
		rules:   rules,
		states:  make(map[stateKey]*state),
		logger:  logger,
		metrics: m,
	}
}

// Rules 返回规则列表的副本
func (m *Manager) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Evaluate 用同一时刻 now 评估本轮所有观测值，返回需要发布的告警
func (m *Manager) Evaluate(now time.Time, ms []sensor.Metric) []Alert {
	var fired []Alert
	for _, metric := range ms {
		for _, rule := range m.rules {
			subKey, ok := match(rule, metric)
			if !ok {
				continue
			}
			if a, fire := m.EvaluateRule(now, rule, subKey, metric); fire {
				fired = append(fired, a)
			}
		}
	}
	return fired
}

// EvaluateRule 推进单个 (规则, 子键) 的状态机：
// 首次越限立即告警；持续越限时距上次告警不少于 cooldown 才再次告警；回落时静默复位。
func (m *Manager) EvaluateRule(now time.Time, rule Rule, subKey string, metric sensor.Metric) (Alert, bool) {
	key := stateKey{rule: rule.Key, subKey: subKey}
	st, ok := m.states[key]
	if !ok {
		st = &state{}
		m.states[key] = st
	}

	value, exceeded := exceeds(rule, metric.Value)
	if !exceeded {
		if st.alerting {
			m.logger.Info("alert cleared", zap.String("rule", rule.Key), zap.String("sub_key", subKey))
		}
		st.alerting = false
		return Alert{}, false
	}

	if st.alerting && now.Sub(st.lastFired) < rule.Cooldown {
		return Alert{}, false
	}

	a := Alert{
		Sensor:    metric.Key,
		Name:      displayName(rule, subKey),
		Value:     value,
		Threshold: threshold(rule),
		Rule:      rule.Key,
		SubKey:    subKey,
		FiredAt:   now,
	}
	st.alerting = true
	st.lastFired = now
	st.last = a

	m.metrics.AlertsFired.WithLabelValues(rule.Key).Inc()
	m.logger.Warn("alert fired",
		zap.String("sensor", a.Sensor),
		zap.String("name", a.Name),
		zap.Float64("value", a.Value),
		zap.Float64("threshold", a.Threshold))
	return a, true
}

// Active 列出当前处于告警态的 (规则, 子键)，按规则与子键排序
func (m *Manager) Active() []Active {
	var out []Active
	for key, st := range m.states {
		if !st.alerting {
			continue
		}
		out = append(out, Active{
			Rule:      key.rule,
			SubKey:    key.subKey,
			Sensor:    st.last.Sensor,
			Name:      st.last.Name,
			Value:     st.last.Value,
			Threshold: st.last.Threshold,
			LastFired: st.lastFired,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		return out[i].SubKey < out[j].SubKey
	})
	return out
}

func match(rule Rule, metric sensor.Metric) (string, bool) {
	if rule.Family {
		if metric.Family == "" || metric.Family != rule.Key {
			return "", false
		}
		return metric.SubKey, true
	}
	return "", metric.Key == rule.Key
}

// exceeds 文本、NaN 与无法解析的值永远不越限
func exceeds(rule Rule, v sensor.Value) (float64, bool) {
	switch rule.Comparison {
	case BoolTrue:
		if v.Kind() == sensor.KindNumber {
			return 0, false
		}
		return 1, v.Truth()
	default:
		if v.Kind() != sensor.KindNumber {
			return 0, false
		}
		f, ok := v.Float()
		if !ok {
			return 0, false
		}
		return f, f > rule.Threshold
	}
}

func threshold(rule Rule) float64 {
	if rule.Comparison == BoolTrue {
		return 1
	}
	return rule.Threshold
}

func displayName(rule Rule, subKey string) string {
	if subKey == "" {
		return rule.Name
	}
	return fmt.Sprintf("%s (%s)", rule.Name, subKey)
}
