// Package bus 消息总线能力：连接、发布（可选 retain）、断开。
// 生产环境使用 MQTT 实现，测试与 dry-run 使用内存实现。
package bus

import (
	"context"
	"errors"
)

// ErrNotConnected 总线未连接时发布返回该错误
var ErrNotConnected = errors.New("bus not connected")

// Message 一条待发布的消息
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Client 消息总线客户端；同一时刻只被调度循环使用
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, msg Message) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
}
