package signal_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/system-monitor-pro/pkg/signal"
)

func TestWithShutdownCancelsOnSignal(t *testing.T) {
	ctx, stop := signal.WithShutdown(context.Background(), zap.NewNop())
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}

	// 第二次信号不会导致进程退出
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	time.Sleep(50 * time.Millisecond)
}

func TestWithShutdownStop(t *testing.T) {
	ctx, stop := signal.WithShutdown(context.Background(), zaptest.NewLogger(t))
	stop()
	stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWithShutdownFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := signal.WithShutdown(parent, zaptest.NewLogger(t))
	defer stop()
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
