package config

import (
	"fmt"
	"strings"
	"time"
)

const maxCooldown = 24 * time.Hour

// Validate MQTT配置校验
func (m *MQTTConfig) Validate() error {
	if err := valid.Struct(m); err != nil {
		return err
	}
	if err := validateTopicPrefix("mqtt.topic_prefix", m.TopicPrefix); err != nil {
		return err
	}
	return validateTopicPrefix("mqtt.discovery_prefix", m.DiscoveryPrefix)
}

// validateTopicPrefix 前缀会拼进发布主题，不能含通配符，也不能以 / 开头或结尾
func validateTopicPrefix(field, prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if strings.ContainsAny(prefix, "+#") {
		return fmt.Errorf("%s must not contain MQTT wildcards, got %q", field, prefix)
	}
	if strings.HasPrefix(prefix, "/") || strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("%s must not start or end with '/', got %q", field, prefix)
	}
	if strings.ContainsAny(prefix, " \t\r\n") {
		return fmt.Errorf("%s must not contain whitespace, got %q", field, prefix)
	}
	return nil
}

// Validate 告警配置校验
func (a *AlertsConfig) Validate() error {
	if err := valid.Struct(a); err != nil {
		return err
	}
	if a.Cooldown < 0 || a.Cooldown > maxCooldown {
		return fmt.Errorf("alerts.cooldown must be between 0 and %s, got %s", maxCooldown, a.Cooldown)
	}
	return nil
}
