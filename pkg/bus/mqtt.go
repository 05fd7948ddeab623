package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTOptions MQTT 连接参数
type MQTTOptions struct {
	Host           string
	Port           int
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	// Birth 每次（重）连成功后发布；Will 由 broker 在异常断开时代发
	Birth *Message
	Will  *Message
}

// MQTT 基于 paho 的总线实现，断线自动重连由 paho 负责
type MQTT struct {
	opts   MQTTOptions
	logger *zap.Logger
	client mqtt.Client
}

// NewMQTT 创建 MQTT 客户端（不连接）
func NewMQTT(opts MQTTOptions, logger *zap.Logger) *MQTT {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	m := &MQTT{opts: opts, logger: logger}

	co := mqtt.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.ConnectTimeout).
		SetOrderMatters(false).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	if opts.Will != nil {
		co.SetBinaryWill(opts.Will.Topic, opts.Will.Payload, opts.QoS, opts.Will.Retain)
	}
	m.client = mqtt.NewClient(co)
	return m
}

func (m *MQTT) onConnect(c mqtt.Client) {
	m.logger.Info("connected to MQTT broker",
		zap.String("host", m.opts.Host), zap.Int("port", m.opts.Port))
	if m.opts.Birth == nil {
		return
	}
	// 回调运行在 paho 的 goroutine 中，不等待 token 以免阻塞重连
	c.Publish(m.opts.Birth.Topic, m.opts.QoS, m.opts.Birth.Retain, m.opts.Birth.Payload)
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	m.logger.Warn("disconnected from MQTT broker", zap.Error(err))
}

// Connect 连接 broker，超时或 ctx 取消返回错误
func (m *MQTT) Connect(ctx context.Context) error {
	m.logger.Info("connecting to MQTT broker",
		zap.String("host", m.opts.Host), zap.Int("port", m.opts.Port),
		zap.String("client_id", m.opts.ClientID))

	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	if err := wait(ctx, m.client.Connect()); err != nil {
		return fmt.Errorf("connect to %s:%d: %w", m.opts.Host, m.opts.Port, err)
	}
	return nil
}

// Publish 发布消息并等待 broker 确认（QoS>0）或写出
func (m *MQTT) Publish(ctx context.Context, msg Message) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := wait(ctx, m.client.Publish(msg.Topic, m.opts.QoS, msg.Retain, msg.Payload)); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}

// Disconnect 断开连接，最多等待 250ms 让未完成的消息写出
func (m *MQTT) Disconnect(_ context.Context) error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
		m.logger.Info("disconnected from MQTT broker")
	}
	return nil
}

func (m *MQTT) IsConnected() bool {
	return m.client.IsConnectionOpen()
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return errors.Join(ctx.Err(), token.Error())
	}
}
