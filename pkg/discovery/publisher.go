// Package discovery 把传感器描述、状态值与告警按 hub 的自动发现协议发布到消息总线。
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/alert"
	"github.com/system-monitor-pro/pkg/bus"
	"github.com/system-monitor-pro/pkg/device"
	"github.com/system-monitor-pro/pkg/metrics"
	"github.com/system-monitor-pro/pkg/sensor"
)

// DefaultDiscoveryPrefix hub 默认监听的发现主题前缀
const DefaultDiscoveryPrefix = "homeassistant"

// 可用性主题上的取值
const (
	Online  = "online"
	Offline = "offline"
)

// 发布消息类型，对应 sysmon_publish_total 的 kind 标签
const (
	kindDiscovery    = "discovery"
	kindState        = "state"
	kindAttributes   = "attributes"
	kindAlert        = "alert"
	kindAvailability = "availability"
	kindUnpublish    = "unpublish"
)

// ErrNotAnnounced 状态先于发现文档发布时返回
var ErrNotAnnounced = errors.New("sensor not announced")

// Options 发布器配置
type Options struct {
	TopicPrefix     string
	DiscoveryPrefix string
}

// Publisher 发现/状态/告警发布器。只在调度循环中使用，不做并发保护。
type Publisher struct {
	client          bus.Client
	identity        device.Identity
	prefix          string
	discoveryPrefix string
	logger          *zap.Logger
	metrics         *metrics.AgentMetrics

	descriptors map[string]sensor.Descriptor
	// 已发布的发现主题，按首次发布顺序
	topics []string
}

// New 创建发布器
func New(client bus.Client, identity device.Identity, opts Options, logger *zap.Logger, m *metrics.AgentMetrics) *Publisher {
	dp := opts.DiscoveryPrefix
	if dp == "" {
		dp = DefaultDiscoveryPrefix
	}
	return &Publisher{
		client:          client,
		identity:        identity,
		prefix:          opts.TopicPrefix,
		discoveryPrefix: dp,
		logger:          logger,
		metrics:         m,
		descriptors:     make(map[string]sensor.Descriptor),
	}
}

// UniqueID 传感器在 hub 上的唯一 ID
func (p *Publisher) UniqueID(key string) string {
	return p.identity.ID() + "_" + key
}

// DiscoveryTopic homeassistant/<entity-kind>/<instance-id>_<key>/config
func (p *Publisher) DiscoveryTopic(desc sensor.Descriptor) string {
	return fmt.Sprintf("%s/%s/%s/config", p.discoveryPrefix, desc.Class.EntityKind(), p.UniqueID(desc.Key))
}

// StateTopic <prefix>/<instance-id>/<key>/state
func (p *Publisher) StateTopic(key string) string {
	return fmt.Sprintf("%s/%s/%s/state", p.prefix, p.identity.ID(), key)
}

// AttributesTopic <prefix>/<instance-id>/<key>/attributes
func (p *Publisher) AttributesTopic(key string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", p.prefix, p.identity.ID(), key)
}

// AlertTopic <prefix>/alerts
func (p *Publisher) AlertTopic() string {
	return p.prefix + "/alerts"
}

// AvailabilityTopic <prefix>/<instance-id>/status
func (p *Publisher) AvailabilityTopic() string {
	return availabilityTopic(p.prefix, p.identity)
}

func availabilityTopic(prefix string, identity device.Identity) string {
	return fmt.Sprintf("%s/%s/status", prefix, identity.ID())
}

// AvailabilityMessages 返回 birth/will 消息；总线客户端创建前即可计算，用于 MQTT 连接参数
func AvailabilityMessages(prefix string, identity device.Identity) (birth, will bus.Message) {
	topic := availabilityTopic(prefix, identity)
	birth = bus.Message{Topic: topic, Payload: []byte(Online), Retain: true}
	will = bus.Message{Topic: topic, Payload: []byte(Offline), Retain: true}
	return birth, will
}

// Birth 连接（重连）成功后发布的可用性消息
func (p *Publisher) Birth() bus.Message {
	birth, _ := AvailabilityMessages(p.prefix, p.identity)
	return birth
}

// Will 异常断开时由 broker 代发的遗嘱消息
func (p *Publisher) Will() bus.Message {
	_, will := AvailabilityMessages(p.prefix, p.identity)
	return will
}

// Announced 报告 key 是否已发布过发现文档
func (p *Publisher) Announced(key string) bool {
	_, ok := p.descriptors[key]
	return ok
}

// AnnouncedCount 已发布的传感器数量
func (p *Publisher) AnnouncedCount() int {
	return len(p.descriptors)
}

type deviceBlock struct {
	Identifiers      []string `json:"identifiers"`
	Name             string   `json:"name"`
	Model            string   `json:"model,omitempty"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	SWVersion        string   `json:"sw_version,omitempty"`
	HWVersion        string   `json:"hw_version,omitempty"`
	ConfigurationURL string   `json:"configuration_url,omitempty"`
}

type document struct {
	Name              string      `json:"name"`
	UniqueID          string      `json:"unique_id"`
	StateTopic        string      `json:"state_topic"`
	AvailabilityTopic string      `json:"availability_topic"`
	DeviceClass       string      `json:"device_class,omitempty"`
	StateClass        string      `json:"state_class,omitempty"`
	Unit              string      `json:"unit_of_measurement,omitempty"`
	Icon              string      `json:"icon,omitempty"`
	EntityCategory    string      `json:"entity_category,omitempty"`
	Precision         *int        `json:"suggested_display_precision,omitempty"`
	AttributesTopic   string      `json:"json_attributes_topic,omitempty"`
	PayloadOn         string      `json:"payload_on,omitempty"`
	PayloadOff        string      `json:"payload_off,omitempty"`
	Device            deviceBlock `json:"device"`
}

// Document 构建单个传感器的发现文档
func (p *Publisher) Document(desc sensor.Descriptor) ([]byte, error) {
	doc := document{
		Name:              desc.Name,
		UniqueID:          p.UniqueID(desc.Key),
		StateTopic:        p.StateTopic(desc.Key),
		AvailabilityTopic: p.AvailabilityTopic(),
		DeviceClass:       desc.DeviceClass,
		StateClass:        desc.Class.StateClass(),
		Unit:              desc.Unit,
		Icon:              desc.Icon,
		EntityCategory:    desc.Category,
		Precision:         desc.Precision,
		Device: deviceBlock{
			Identifiers:      []string{p.identity.ID()},
			Name:             p.identity.Name(),
			Model:            p.identity.Model(),
			Manufacturer:     p.identity.Manufacturer(),
			SWVersion:        p.identity.SWVersion(),
			HWVersion:        p.identity.HWVersion(),
			ConfigurationURL: p.identity.ConfigurationURL(),
		},
	}
	if desc.Attributes {
		doc.AttributesTopic = p.AttributesTopic(desc.Key)
	}
	if desc.Class == sensor.ClassBinary {
		doc.PayloadOn = sensor.PayloadOn
		doc.PayloadOff = sensor.PayloadOff
	}
	return json.Marshal(doc)
}

// Announce 为每个描述发布一条 retained 发现文档；重复调用会覆盖，结果不变。
// 单个失败不会中断其余发布，全部错误合并返回。
func (p *Publisher) Announce(ctx context.Context, descs []sensor.Descriptor) error {
	var errs []error
	for _, desc := range descs {
		payload, err := p.Document(desc)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode discovery for %s: %w", desc.Key, err))
			continue
		}
		topic := p.DiscoveryTopic(desc)
		if err := p.publish(ctx, kindDiscovery, bus.Message{Topic: topic, Payload: payload, Retain: true}); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, seen := p.descriptors[desc.Key]; !seen {
			p.topics = append(p.topics, topic)
		}
		p.descriptors[desc.Key] = desc
	}
	p.metrics.AnnouncedSensors.Set(float64(len(p.descriptors)))
	if len(errs) == 0 {
		p.logger.Debug("discovery published", zap.Int("sensors", len(descs)))
	}
	return errors.Join(errs...)
}

// PublishState 发布状态值与属性；未发布发现文档的 key 返回 ErrNotAnnounced 且不发布
func (p *Publisher) PublishState(ctx context.Context, ms []sensor.Metric) error {
	var errs []error
	for _, m := range ms {
		desc, ok := p.descriptors[m.Key]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotAnnounced, m.Key))
			continue
		}
		msg := bus.Message{Topic: p.StateTopic(m.Key), Payload: []byte(m.Value.String()), Retain: desc.Retain}
		if err := p.publish(ctx, kindState, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		if len(m.Attributes) == 0 {
			continue
		}
		payload, err := json.Marshal(m.Attributes)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode attributes for %s: %w", m.Key, err))
			continue
		}
		msg = bus.Message{Topic: p.AttributesTopic(m.Key), Payload: payload, Retain: desc.Retain}
		if err := p.publish(ctx, kindAttributes, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAlert 发布一条告警事件（不保留）
func (p *Publisher) PublishAlert(ctx context.Context, a alert.Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", a.Sensor, err)
	}
	return p.publish(ctx, kindAlert, bus.Message{Topic: p.AlertTopic(), Payload: payload})
}

// PublishAvailability 发布 online/offline
func (p *Publisher) PublishAvailability(ctx context.Context, online bool) error {
	msg := p.Will()
	if online {
		msg = p.Birth()
	}
	return p.publish(ctx, kindAvailability, msg)
}

// UnpublishAll 向所有已发布的发现主题写入空的 retained 消息，使 hub 移除实体。
// 尽力而为：总线已断开时直接跳过，ctx 到期后停止。
func (p *Publisher) UnpublishAll(ctx context.Context) error {
	if !p.client.IsConnected() {
		p.logger.Warn("bus disconnected, skip unpublish", zap.Int("sensors", len(p.topics)))
		return nil
	}
	var errs []error
	removed := 0
	for _, topic := range p.topics {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("unpublish interrupted: %w", err))
			break
		}
		if err := p.publish(ctx, kindUnpublish, bus.Message{Topic: topic, Retain: true}); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	p.logger.Info("discovery removed", zap.Int("sensors", removed), zap.Int("total", len(p.topics)))
	return errors.Join(errs...)
}

func (p *Publisher) publish(ctx context.Context, kind string, msg bus.Message) error {
	if err := p.client.Publish(ctx, msg); err != nil {
		p.metrics.PublishErrors.WithLabelValues(kind).Inc()
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	p.metrics.PublishTotal.WithLabelValues(kind).Inc()
	return nil
}
