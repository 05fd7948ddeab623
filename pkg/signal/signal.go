package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// WithShutdown 返回在收到 SIGINT/SIGTERM 时取消的 ctx。
// 重复信号只记录日志；调用返回的 stop 释放信号监听。
func WithShutdown(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer signal.Stop(sigChan)
		received := 0
		for {
			select {
			case sig := <-sigChan:
				received++
				if received == 1 {
					logger.Info("received shutdown signal", zap.String("signal", sig.String()))
					cancel()
					continue
				}
				logger.Warn("shutdown already in progress", zap.String("signal", sig.String()))
			case <-done:
				return
			case <-parent.Done():
				cancel()
				return
			}
		}
	}()

	var once sync.Once
	return ctx, func() {
		cancel()
		once.Do(func() { close(done) })
	}
}
