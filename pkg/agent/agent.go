// Package agent 调度器：启动时发布发现文档，按固定间隔驱动所有采集器，
// 把结果交给发现发布器与告警管理器，收到取消信号后撤销发现并断开总线。
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/alert"
	"github.com/system-monitor-pro/pkg/bus"
	"github.com/system-monitor-pro/pkg/collector"
	"github.com/system-monitor-pro/pkg/discovery"
	"github.com/system-monitor-pro/pkg/metrics"
	"github.com/system-monitor-pro/pkg/sensor"
)

const (
	DefaultInterval        = 60 * time.Second
	DefaultCollectTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// State 调度器生命周期状态
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options 调度参数
type Options struct {
	Interval        time.Duration // 采集间隔
	CollectTimeout  time.Duration // 单个采集器单次采样的时间预算
	ShutdownTimeout time.Duration // 撤销发现、发布 offline 的总时限
	KeepRetained    bool          // 退出时保留 hub 上的发现文档
}

// Deps 调度器依赖
type Deps struct {
	Collectors []collector.Collector
	Bus        bus.Client
	Publisher  *discovery.Publisher
	Alerts     *alert.Manager
	Clock      clockwork.Clock
	Logger     *zap.Logger
	Metrics    *metrics.AgentMetrics
}

// Reading 快照中的一条最新读数
type Reading struct {
	Collector  string         `json:"collector"`
	Value      sensor.Value   `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Snapshot 最近一轮采集结果，发布后不再修改，供状态接口无锁读取
type Snapshot struct {
	State     State              `json:"state"`
	Ticks     uint64             `json:"ticks"`
	UpdatedAt time.Time          `json:"updated_at"`
	Metrics   map[string]Reading `json:"metrics"`
	Alerts    []alert.Active     `json:"alerts"`
	Errors    map[string]string  `json:"errors,omitempty"`
}

// Agent 调度器。Run 只能调用一次；除 State/Snapshot 外的方法都只在调度循环内使用。
type Agent struct {
	collectors []collector.Collector
	client     bus.Client
	publisher  *discovery.Publisher
	alerts     *alert.Manager
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    *metrics.AgentMetrics
	opts       Options

	state     atomic.Int32
	snapshot  atomic.Pointer[Snapshot]
	ticks     uint64
	announced map[string]map[string]struct{} // 采集器名 -> 已发布发现文档的 key
}

type result struct {
	metrics []sensor.Metric
	err     error
}

// New 创建调度器，未设置的选项取默认值
func New(deps Deps, opts Options) *Agent {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = DefaultCollectTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	a := &Agent{
		collectors: deps.Collectors,
		client:     deps.Bus,
		publisher:  deps.Publisher,
		alerts:     deps.Alerts,
		clock:      deps.Clock,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		opts:       opts,
		announced:  make(map[string]map[string]struct{}, len(deps.Collectors)),
	}
	for _, c := range a.collectors {
		a.announced[c.Name()] = make(map[string]struct{})
	}
	a.snapshot.Store(&Snapshot{State: StateStarting, Metrics: map[string]Reading{}})
	a.metrics.State.Set(float64(StateStarting))
	return a
}

// State 当前生命周期状态
func (a *Agent) State() State {
	return State(a.state.Load())
}

// Snapshot 最近一轮采集的快照，可在任意 goroutine 调用
func (a *Agent) Snapshot() *Snapshot {
	return a.snapshot.Load()
}

// Run 连接总线、发布发现文档并进入调度循环，直到 ctx 取消。
// 总线连接失败时直接返回错误；正常退出返回 nil。
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting",
		zap.Int("collectors", len(a.collectors)),
		zap.Duration("interval", a.opts.Interval),
		zap.Duration("collect_timeout", a.opts.CollectTimeout))

	descs := make(map[string][]sensor.Descriptor, len(a.collectors))
	for _, c := range a.collectors {
		descs[c.Name()] = a.describe(c)
	}

	if err := a.client.Connect(ctx); err != nil {
		a.setState(StateStopped)
		return fmt.Errorf("connect bus: %w", err)
	}
	a.logger.Info("bus connected")

	for _, c := range a.collectors {
		a.announce(ctx, c.Name(), descs[c.Name()])
	}
	if err := a.publisher.PublishAvailability(ctx, true); err != nil {
		a.logger.Warn("failed to publish availability", zap.Error(err))
	}
	a.setState(StateRunning)
	a.logger.Info("agent running", zap.Int("sensors", a.publisher.AnnouncedCount()))

	for {
		start := a.clock.Now()
		// 已开始的一轮要完整结束，取消信号只在轮间等待时生效
		a.tick(context.WithoutCancel(ctx), start)

		elapsed := a.clock.Since(start)
		a.metrics.TickDuration.Observe(elapsed.Seconds())
		wait := a.opts.Interval - elapsed
		if wait <= 0 {
			a.metrics.TickOverruns.Inc()
			a.logger.Warn("tick overran interval, starting next tick immediately",
				zap.Duration("elapsed", elapsed), zap.Duration("interval", a.opts.Interval))
			wait = 0
		}
		if !a.wait(ctx, wait) {
			break
		}
	}

	a.drain(ctx)
	return nil
}

// wait 轮间等待，是循环中唯一响应取消的位置；返回 false 表示应退出
func (a *Agent) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := a.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func (a *Agent) tick(ctx context.Context, now time.Time) {
	a.ticks++
	readings := make(map[string]Reading)
	errs := make(map[string]string)

	for _, c := range a.collectors {
		name := c.Name()
		ms, err := a.sample(ctx, c)
		if err != nil {
			a.metrics.CollectErrors.WithLabelValues(name).Inc()
			errs[name] = err.Error()
			a.logger.Warn("collection failed", zap.String("collector", name), zap.Int("partial", len(ms)), zap.Error(err))
		}
		if len(ms) == 0 {
			continue
		}
		a.metrics.MetricsSampled.WithLabelValues(name).Add(float64(len(ms)))

		a.announceNew(ctx, c, ms)
		if err := a.publisher.PublishState(ctx, ms); err != nil {
			a.logger.Warn("failed to publish state", zap.String("collector", name), zap.Error(err))
		}
		for _, fired := range a.alerts.Evaluate(now, ms) {
			a.logger.Info("alert fired",
				zap.String("sensor", fired.Sensor),
				zap.String("name", fired.Name),
				zap.Float64("value", fired.Value),
				zap.Float64("threshold", fired.Threshold))
			if err := a.publisher.PublishAlert(ctx, fired); err != nil {
				a.logger.Warn("failed to publish alert", zap.String("sensor", fired.Sensor), zap.Error(err))
			}
		}

		for _, m := range ms {
			readings[m.Key] = Reading{Collector: name, Value: m.Value, Unit: m.Unit, Attributes: m.Attributes}
			if v, ok := m.Value.Float(); ok && m.Value.Kind() != sensor.KindText {
				a.metrics.SensorValue.WithLabelValues(name, m.Key).Set(v)
			}
		}
	}

	a.snapshot.Store(&Snapshot{
		State:     a.State(),
		Ticks:     a.ticks,
		UpdatedAt: now,
		Metrics:   readings,
		Alerts:    a.alerts.Active(),
		Errors:    errs,
	})
	a.logger.Debug("tick finished", zap.Uint64("tick", a.ticks), zap.Int("metrics", len(readings)))
}

// sample 在独立 goroutine 中采样，超出时间预算即放弃结果；panic 视为采样失败
func (a *Agent) sample(ctx context.Context, c collector.Collector) ([]sensor.Metric, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.CollectTimeout)
	defer cancel()

	start := a.clock.Now()
	done := make(chan result, 1)
	go func() {
		var (
			pc panics.Catcher
			r  result
		)
		pc.Try(func() { r.metrics, r.err = c.Sample(ctx) })
		if rec := pc.Recovered(); rec != nil {
			r = result{err: fmt.Errorf("collector panicked: %w", rec.AsError())}
		}
		done <- r
	}()

	select {
	case r := <-done:
		a.metrics.CollectDuration.WithLabelValues(c.Name()).Observe(a.clock.Since(start).Seconds())
		return r.metrics, r.err
	case <-ctx.Done():
		a.metrics.CollectDuration.WithLabelValues(c.Name()).Observe(a.opts.CollectTimeout.Seconds())
		return nil, fmt.Errorf("sample abandoned after %s: %w", a.opts.CollectTimeout, ctx.Err())
	}
}

func (a *Agent) describe(c collector.Collector) []sensor.Descriptor {
	var (
		pc    panics.Catcher
		descs []sensor.Descriptor
	)
	pc.Try(func() { descs = c.Describe() })
	if rec := pc.Recovered(); rec != nil {
		a.logger.Error("collector describe panicked", zap.String("collector", c.Name()), zap.Error(rec.AsError()))
		return nil
	}
	return descs
}

// announceNew 样本中出现未发布过的 key 时重新 Describe，并在发布状态之前补发发现文档
func (a *Agent) announceNew(ctx context.Context, c collector.Collector, ms []sensor.Metric) {
	known := a.announced[c.Name()]
	fresh := false
	for _, m := range ms {
		if _, ok := known[m.Key]; !ok {
			fresh = true
			break
		}
	}
	if !fresh {
		return
	}

	var pending []sensor.Descriptor
	for _, d := range a.describe(c) {
		if _, ok := known[d.Key]; !ok {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return
	}
	a.logger.Info("new sensors discovered", zap.String("collector", c.Name()), zap.Int("sensors", len(pending)))
	a.announce(ctx, c.Name(), pending)
}

func (a *Agent) announce(ctx context.Context, name string, descs []sensor.Descriptor) {
	if len(descs) == 0 {
		return
	}
	if err := a.publisher.Announce(ctx, descs); err != nil {
		a.logger.Warn("failed to announce sensors", zap.String("collector", name), zap.Error(err))
	}
	known := a.announced[name]
	for _, d := range descs {
		if a.publisher.Announced(d.Key) {
			known[d.Key] = struct{}{}
		}
	}
}

// drain 撤销发现文档（除非配置保留）、发布 offline 并断开总线
func (a *Agent) drain(parent context.Context) {
	a.setState(StateDraining)
	a.logger.Info("agent draining", zap.Bool("keep_retained", a.opts.KeepRetained))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.opts.ShutdownTimeout)
	defer cancel()

	if !a.opts.KeepRetained {
		if err := a.publisher.UnpublishAll(ctx); err != nil {
			a.logger.Warn("failed to remove discovery", zap.Error(err))
		}
	}
	if a.client.IsConnected() {
		if err := a.publisher.PublishAvailability(ctx, false); err != nil {
			a.logger.Warn("failed to publish availability", zap.Error(err))
		}
	}
	if err := a.client.Disconnect(ctx); err != nil {
		a.logger.Warn("failed to disconnect bus", zap.Error(err))
	}

	a.setState(StateStopped)
	a.logger.Info("agent stopped", zap.Uint64("ticks", a.ticks))
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
	a.metrics.State.Set(float64(s))
	prev := a.snapshot.Load()
	next := *prev
	next.State = s
	a.snapshot.Store(&next)
}
