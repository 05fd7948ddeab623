package registers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/collector"
	"github.com/system-monitor-pro/pkg/config"
	"github.com/system-monitor-pro/pkg/registers"
)

type runnerFunc func(ctx context.Context, name string, args ...string) (string, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) (string, error) {
	return f(ctx, name, args...)
}

func noVcgencmd(context.Context, string, ...string) (string, error) {
	return "", errors.New("executable file not found")
}

func names(cs []collector.Collector) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name())
	}
	return out
}

func testDeps(runner collector.CommandRunner) registers.Deps {
	return registers.Deps{
		Sources:   registers.HostSources(),
		Runner:    runner,
		Clock:     clockwork.NewFakeClock(),
		OSVersion: "test",
		Logger:    zap.NewNop(),
	}
}

func TestRegisterCollectorsSkipsUnavailable(t *testing.T) {
	cfg := config.NewDefaultConfig()

	cs, err := registers.RegisterCollectors(context.Background(), cfg, testDeps(runnerFunc(noVcgencmd)))
	require.NoError(t, err)
	// 没有 vcgencmd 与 supervisor token 时两者被跳过
	assert.Equal(t, []string{"cpu", "memory", "disk", "network", "security", "system"}, names(cs))
}

func TestRegisterCollectorsHonoursToggles(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Monitor.Collectors.Security.Enable = false
	cfg.Monitor.Collectors.RPi.Enable = false
	cfg.Monitor.Collectors.Supervisor.Token = "secret"

	called := false
	runner := runnerFunc(func(context.Context, string, ...string) (string, error) {
		called = true
		return "", nil
	})

	cs, err := registers.RegisterCollectors(context.Background(), cfg, testDeps(runner))
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu", "memory", "disk", "network", "system", "supervisor"}, names(cs))
	assert.False(t, called, "disabled rpi collector must not probe vcgencmd")
}

func TestRegisterCollectorsWithRPi(t *testing.T) {
	cfg := config.NewDefaultConfig()
	runner := runnerFunc(func(context.Context, string, ...string) (string, error) {
		return "version 1", nil
	})

	cs, err := registers.RegisterCollectors(context.Background(), cfg, testDeps(runner))
	require.NoError(t, err)
	assert.Contains(t, names(cs), "rpi")
}

func TestInitPromRegistry(t *testing.T) {
	reg, m := registers.InitPromRegistry(false)
	require.NotNil(t, m)

	m.TickOverruns.Inc()
	count, err := testutil.GatherAndCount(reg, "sysmon_tick_overruns_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
