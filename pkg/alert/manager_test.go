package alert_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/system-monitor-pro/pkg/alert"
	"github.com/system-monitor-pro/pkg/metrics"
	"github.com/system-monitor-pro/pkg/sensor"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newManager(t *testing.T, rules ...alert.Rule) *alert.Manager {
	return alert.NewManager(rules, zaptest.NewLogger(t), metrics.NewTestMetrics())
}

func cpu(v float64) []sensor.Metric {
	return []sensor.Metric{{Key: "cpu_usage", Value: sensor.Number(v, 1), Unit: "%"}}
}

func disk(mount string, v float64) sensor.Metric {
	return sensor.Metric{Key: "disk_" + mount + "_usage", Value: sensor.Number(v, 1), Family: "disk_usage", SubKey: mount}
}

func TestCPUScenario(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "cpu_usage", Name: "CPU Usage", Threshold: 90, Cooldown: 300 * time.Second})

	got := m.Evaluate(t0, cpu(95))
	require.Len(t, got, 1)
	assert.Equal(t, "cpu_usage", got[0].Sensor)
	assert.Equal(t, 95.0, got[0].Value)
	assert.Equal(t, 90.0, got[0].Threshold)

	assert.Empty(t, m.Evaluate(t0.Add(60*time.Second), cpu(96)))

	got = m.Evaluate(t0.Add(310*time.Second), cpu(97))
	require.Len(t, got, 1)
	assert.Equal(t, 97.0, got[0].Value)

	assert.Empty(t, m.Evaluate(t0.Add(370*time.Second), cpu(80)))
	assert.Empty(t, m.Active())
}

func TestSingleCrossingFiresOnce(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "cpu_usage", Name: "CPU Usage", Threshold: 90, Cooldown: time.Hour})
	total := 0
	for i, v := range []float64{50, 60, 91, 95, 99, 92, 93} {
		total += len(m.Evaluate(t0.Add(time.Duration(i)*time.Minute), cpu(v)))
	}
	assert.Equal(t, 1, total)
}

func TestThresholdIsExclusive(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "cpu_usage", Name: "CPU Usage", Threshold: 90})
	assert.Empty(t, m.Evaluate(t0, cpu(90)))
	assert.Len(t, m.Evaluate(t0, cpu(90.1)), 1)
}

func TestRecoveryIsSilentAndRearms(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "cpu_usage", Name: "CPU Usage", Threshold: 90, Cooldown: time.Hour})
	require.Len(t, m.Evaluate(t0, cpu(95)), 1)
	assert.Empty(t, m.Evaluate(t0.Add(time.Minute), cpu(50)))
	// 回落后再次越限立即告警，不受 cooldown 限制
	assert.Len(t, m.Evaluate(t0.Add(2*time.Minute), cpu(95)), 1)
}

func TestZeroCooldownFiresEveryTick(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "cpu_usage", Name: "CPU Usage", Threshold: 90})
	for i := 0; i < 3; i++ {
		assert.Len(t, m.Evaluate(t0.Add(time.Duration(i)*time.Minute), cpu(95)), 1)
	}
}

func TestSubKeyIndependence(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "disk_usage", Family: true, Name: "Disk Usage", Threshold: 85, Cooldown: time.Hour})

	got := m.Evaluate(t0, []sensor.Metric{disk("data", 95)})
	require.Len(t, got, 1)
	assert.Equal(t, "Disk Usage (data)", got[0].Name)

	// /data 处于冷却期不影响 / 的首次越限
	got = m.Evaluate(t0.Add(time.Minute), []sensor.Metric{disk("data", 96), disk("root", 90)})
	require.Len(t, got, 1)
	assert.Equal(t, "disk_root_usage", got[0].Sensor)
	assert.Equal(t, "root", got[0].SubKey)
}

func TestDiskMountDisappears(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "disk_usage", Family: true, Name: "Disk Usage", Threshold: 85, Cooldown: time.Hour})
	assert.Len(t, m.Evaluate(t0, []sensor.Metric{disk("root", 90), disk("data", 90)}), 2)
	assert.Empty(t, m.Evaluate(t0.Add(time.Minute), []sensor.Metric{disk("root", 91)}))

	active := m.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "data", active[0].SubKey)
	assert.Equal(t, "root", active[1].SubKey)
}

func TestBooleanRule(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "rpi_under_voltage", Name: "Under Voltage", Comparison: alert.BoolTrue, Cooldown: time.Hour})

	assert.Empty(t, m.Evaluate(t0, []sensor.Metric{{Key: "rpi_under_voltage", Value: sensor.Bool(false)}}))
	got := m.Evaluate(t0, []sensor.Metric{{Key: "rpi_under_voltage", Value: sensor.Bool(true)}})
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Value)
	assert.Equal(t, 1.0, got[0].Threshold)

	data, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"sensor":"rpi_under_voltage","name":"Under Voltage","value":1,"threshold":1}`, string(data))
}

func TestMalformedValuesNeverExceed(t *testing.T) {
	m := newManager(t, alert.Rule{Key: "cpu_usage", Name: "CPU Usage", Threshold: 10})
	values := []sensor.Value{
		sensor.Number(math.NaN(), 1),
		sensor.Number(math.Inf(1), 1),
		sensor.Text("99"),
		sensor.Text("garbage"),
	}
	for _, v := range values {
		assert.Empty(t, m.Evaluate(t0, []sensor.Metric{{Key: "cpu_usage", Value: v}}), v.String())
	}
}

func TestUnmatchedMetricsIgnored(t *testing.T) {
	m := newManager(t, alert.DefaultRules(alert.Thresholds{CPU: 90, Memory: 85, Disk: 85, Temperature: 80})...)
	assert.Empty(t, m.Evaluate(t0, []sensor.Metric{
		{Key: "load_1m", Value: sensor.Number(500, 2)},
		{Key: "disk_root_free", Value: sensor.Number(999, 2)},
	}))
}

func TestDefaultRules(t *testing.T) {
	rules := alert.DefaultRules(alert.Thresholds{CPU: 90, Memory: 85, Disk: 80, Temperature: 70, Cooldown: time.Minute})
	byKey := make(map[string]alert.Rule)
	for _, r := range rules {
		byKey[r.Key] = r
		assert.Equal(t, time.Minute, r.Cooldown)
	}
	assert.Equal(t, 90.0, byKey[alert.KeyCPUUsage].Threshold)
	assert.Equal(t, 70.0, byKey[alert.KeyGPUTemperature].Threshold)
	assert.True(t, byKey[alert.FamilyDiskUsage].Family)
	assert.Equal(t, 80.0, byKey[alert.FamilyDiskUsage].Threshold)
	assert.Equal(t, alert.BoolTrue, byKey[alert.KeyThrottled].Comparison)
}
