package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/sensor"
)

// DefaultSupervisorURL add-on 内可访问的 Supervisor API 地址
const DefaultSupervisorURL = "http://supervisor"

const supervisorTimeout = 10 * time.Second

// Addon Supervisor /addons 返回的单个 add-on
type Addon struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Version   string `json:"version"`
	State     string `json:"state"`
	Installed bool   `json:"installed"`
}

type addonsResponse struct {
	Data struct {
		Addons []Addon `json:"addons"`
	} `json:"data"`
}

type coreInfoResponse struct {
	Data struct {
		Version string `json:"version"`
		Arch    string `json:"arch"`
		Machine string `json:"machine"`
		Image   string `json:"image"`
	} `json:"data"`
}

type entityState struct {
	EntityID string `json:"entity_id"`
}

// SupervisorCollector hub Supervisor 统计：add-on、Core 版本、实体/自动化/脚本数量
type SupervisorCollector struct {
	baseURL   string
	token     string
	client    *http.Client
	logger    *zap.Logger
	available bool
}

// NewSupervisorCollector 创建 Supervisor 采集器；未启用或没有 token 时为空操作
func NewSupervisorCollector(enabled bool, baseURL, token string, logger *zap.Logger) *SupervisorCollector {
	if baseURL == "" {
		baseURL = DefaultSupervisorURL
	}
	c := &SupervisorCollector{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: supervisorTimeout},
		logger:  logger,
	}
	c.available = enabled && token != ""
	if enabled && token == "" {
		logger.Debug("no supervisor token available, skipping supervisor sensors")
	}
	return c
}

func (c *SupervisorCollector) Name() string { return NameSupervisor }

// Available 探测结果
func (c *SupervisorCollector) Available() bool { return c.available }

func (c *SupervisorCollector) Describe() []sensor.Descriptor {
	if !c.available {
		return nil
	}
	return []sensor.Descriptor{
		{Key: "ha_addons_running", Name: "HA Running Add-ons", Class: sensor.ClassMeasurement, Icon: "mdi:puzzle", Attributes: true},
		{Key: "ha_core_version", Name: "HA Core Version", Class: sensor.ClassText, Icon: "mdi:home-assistant", Attributes: true, Retain: true},
		{Key: "ha_entities", Name: "HA Entity Count", Class: sensor.ClassMeasurement, Icon: "mdi:format-list-bulleted"},
		{Key: "ha_automations", Name: "HA Automations", Class: sensor.ClassMeasurement, Icon: "mdi:robot"},
		{Key: "ha_scripts", Name: "HA Scripts", Class: sensor.ClassMeasurement, Icon: "mdi:script-text"},
	}
}

func (c *SupervisorCollector) Sample(ctx context.Context) ([]sensor.Metric, error) {
	if !c.available {
		return nil, nil
	}
	var (
		metrics []sensor.Metric
		errs    []error
	)

	var addons addonsResponse
	if err := c.get(ctx, "/addons", &addons); err != nil {
		errs = append(errs, err)
	} else {
		metrics = append(metrics, addonsMetric(addons.Data.Addons))
	}

	var core coreInfoResponse
	if err := c.get(ctx, "/core/info", &core); err != nil {
		errs = append(errs, err)
	} else {
		version := core.Data.Version
		if version == "" {
			version = "unknown"
		}
		metrics = append(metrics, sensor.Metric{
			Key:   "ha_core_version",
			Value: sensor.Text(version),
			Attributes: map[string]any{
				"arch":    core.Data.Arch,
				"machine": core.Data.Machine,
				"image":   core.Data.Image,
			},
		})
	}

	// 实体列表需要 add-on 开启 homeassistant_api
	var states []entityState
	if err := c.get(ctx, "/core/api/states", &states); err != nil {
		errs = append(errs, err)
	} else {
		var automations, scripts int64
		for _, s := range states {
			switch {
			case strings.HasPrefix(s.EntityID, "automation."):
				automations++
			case strings.HasPrefix(s.EntityID, "script."):
				scripts++
			}
		}
		if len(states) > 0 {
			metrics = append(metrics, sensor.Metric{Key: "ha_entities", Value: sensor.Int(int64(len(states)))})
		}
		metrics = append(metrics,
			sensor.Metric{Key: "ha_automations", Value: sensor.Int(automations)},
			sensor.Metric{Key: "ha_scripts", Value: sensor.Int(scripts)},
		)
	}

	return metrics, errors.Join(errs...)
}

// addonsMetric 运行中的 add-on 数量；没有运行中的则报告全部
func addonsMetric(addons []Addon) sensor.Metric {
	var running []Addon
	for _, a := range addons {
		if a.State == "started" || a.State == "running" {
			running = append(running, a)
		}
	}
	display := running
	if len(running) == 0 {
		display = addons
	}

	listed := make([]Addon, 0, len(display))
	installed := 0
	for _, a := range addons {
		if a.Installed {
			installed++
		}
	}
	for _, a := range display {
		if a.Installed {
			listed = append(listed, a)
		}
	}
	return sensor.Metric{
		Key:   "ha_addons_running",
		Value: sensor.Int(int64(len(display))),
		Attributes: map[string]any{
			"addons":          listed,
			"total_installed": installed,
		},
	}
}

func (c *SupervisorCollector) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("supervisor %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("supervisor %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("supervisor %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("supervisor %s: decode: %w", path, err)
	}
	return nil
}
