package bus

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Memory 内存总线：记录所有发布的消息并维护 retained 视图。
// 用于 --mqtt.dry_run（带 logger 时逐条打印）与单元测试。
type Memory struct {
	mu        sync.Mutex
	logger    *zap.Logger
	connected bool
	messages  []Message
	retained  map[string][]byte
	dryRun    bool

	// ConnectErr / PublishErr 注入故障
	ConnectErr error
	PublishErr func(Message) error
}

// NewMemory 创建内存总线，logger 可为 nil
func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{logger: logger, retained: make(map[string][]byte)}
}

// NewDryRun 创建 dry run 总线：每条消息以 info 级别打印，不保留发布历史
func NewDryRun(logger *zap.Logger) *Memory {
	m := NewMemory(logger)
	m.dryRun = true
	return m
}

func (m *Memory) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	return nil
}

func (m *Memory) Publish(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	if m.PublishErr != nil {
		if err := m.PublishErr(msg); err != nil {
			return err
		}
	}
	payload := append([]byte(nil), msg.Payload...)
	if !m.dryRun {
		m.messages = append(m.messages, Message{Topic: msg.Topic, Payload: payload, Retain: msg.Retain})
	}
	if msg.Retain {
		// 空 payload 的 retained 消息会清除 broker 上的保留值
		if len(payload) == 0 {
			delete(m.retained, msg.Topic)
		} else {
			m.retained[msg.Topic] = payload
		}
	}
	if m.logger != nil {
		level := zap.DebugLevel
		if m.dryRun {
			level = zap.InfoLevel
		}
		m.logger.Log(level, "publish",
			zap.String("topic", msg.Topic),
			zap.Bool("retain", msg.Retain),
			zap.ByteString("payload", payload))
	}
	return nil
}

func (m *Memory) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *Memory) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Messages 返回已发布消息的副本（按发布顺序）
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Topics 按顺序返回满足前缀/后缀条件的主题
func (m *Memory) Topics(prefix, suffix string) []string {
	var topics []string
	for _, msg := range m.Messages() {
		if strings.HasPrefix(msg.Topic, prefix) && strings.HasSuffix(msg.Topic, suffix) {
			topics = append(topics, msg.Topic)
		}
	}
	return topics
}

// Retained 返回当前保留在 topic 上的 payload
func (m *Memory) Retained(topic string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.retained[topic]
	return p, ok
}

// RetainedCount 当前保留消息数量
func (m *Memory) RetainedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retained)
}

// Reset 清空消息记录（保留 retained 视图）
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}
