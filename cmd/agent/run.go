package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/cmd/server"
	"github.com/system-monitor-pro/pkg/agent"
	"github.com/system-monitor-pro/pkg/alert"
	"github.com/system-monitor-pro/pkg/bus"
	"github.com/system-monitor-pro/pkg/collector"
	"github.com/system-monitor-pro/pkg/config"
	"github.com/system-monitor-pro/pkg/device"
	"github.com/system-monitor-pro/pkg/discovery"
	"github.com/system-monitor-pro/pkg/logger"
	"github.com/system-monitor-pro/pkg/registers"
	"github.com/system-monitor-pro/pkg/signal"
	"github.com/system-monitor-pro/pkg/util"
	"github.com/system-monitor-pro/pkg/version"
)

const serverShutdownTimeout = 5 * time.Second

// run 组装全部组件并阻塞到收到退出信号
func run(parent context.Context, cfg *config.Config) error {
	// 1. 初始化日志
	log, err := logger.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// 2. banner
	util.PrintBanner(os.Stdout, "system-monitor",
		fmt.Sprintf("%s %s (%s)", version.Product, version.Version, version.Commit), "ColorBlue")
	log.Info("log initialization successful",
		zap.String("path", cfg.Log.Path), zap.String("level", cfg.Log.Level), zap.String("format", cfg.Log.Format))
	log.Debug("configuration initialization successful", zap.String("path", cfgFile))

	// 3. 自监控指标
	registry, m := registers.InitPromRegistry(true)

	// 4. 设备标识
	hostname := cfg.Monitor.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	osVersion := device.DetectOSVersion(parent)
	identity := device.New(device.Options{
		Hostname:    hostname,
		Product:     version.Product,
		Version:     version.Version,
		Model:       device.DetectModel(parent),
		OSVersion:   osVersion,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	})
	log.Info("device identity", zap.String("id", identity.ID()), zap.String("name", identity.Name()),
		zap.String("model", identity.Model()))

	// 5. 消息总线
	client := newBus(cfg.MQTT, identity, logger.Component(log, "bus"))

	// 6. 发布器、告警、采集器
	publisher := discovery.New(client, identity, discovery.Options{
		TopicPrefix:     cfg.MQTT.TopicPrefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
	}, logger.Component(log, "discovery"), m)

	var rules []alert.Rule
	if cfg.Alerts.Enable {
		rules = alert.DefaultRules(alert.Thresholds{
			CPU:         cfg.Alerts.CPUThreshold,
			Memory:      cfg.Alerts.MemoryThreshold,
			Disk:        cfg.Alerts.DiskThreshold,
			Temperature: cfg.Alerts.TempThreshold,
			Cooldown:    cfg.Alerts.Cooldown,
		})
	}
	alerts := alert.NewManager(rules, logger.Component(log, "alert"), m)

	clock := clockwork.NewRealClock()
	collectors, err := registers.RegisterCollectors(parent, cfg, registers.Deps{
		Sources:   registers.HostSources(),
		Runner:    collector.ExecRunner{},
		Clock:     clock,
		OSVersion: osVersion,
		Logger:    logger.Component(log, "collector"),
	})
	if err != nil {
		return fmt.Errorf("register collectors: %w", err)
	}

	a := agent.New(agent.Deps{
		Collectors: collectors,
		Bus:        client,
		Publisher:  publisher,
		Alerts:     alerts,
		Clock:      clock,
		Logger:     logger.Component(log, "agent"),
		Metrics:    m,
	}, agent.Options{
		Interval:       cfg.Monitor.Interval,
		CollectTimeout: cfg.Monitor.CollectTimeout,
		KeepRetained:   cfg.MQTT.KeepRetained,
	})

	// 7. HTTP 状态服务
	var httpServer *server.Server
	if cfg.Server.Enable {
		httpServer = server.NewHTTPServer(cfg.Server, logger.Component(log, "http"), registry, a)
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("start HTTP server failed: %w", err)
		}
	}

	// 8. 阻塞到退出信号
	ctx, stop := signal.WithShutdown(parent, log)
	defer stop()
	log.Info("service running, waiting for SIGINT/SIGTERM...")

	runErr := a.Run(ctx)

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown failed", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}
	log.Info("shutdown workflow finished, exiting program")
	return nil
}

// newBus dry_run 时使用内存总线，只打印发布内容
func newBus(cfg config.MQTTConfig, identity device.Identity, log *zap.Logger) bus.Client {
	if cfg.DryRun {
		log.Warn("dry run enabled, messages are logged instead of published")
		return bus.NewDryRun(log)
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = identity.ID()
	}
	birth, will := discovery.AvailabilityMessages(cfg.TopicPrefix, identity)
	return bus.NewMQTT(bus.MQTTOptions{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ClientID:       clientID,
		Username:       cfg.Username,
		Password:       cfg.Password,
		QoS:            byte(cfg.QoS),
		ConnectTimeout: cfg.ConnectTimeout,
		Birth:          &birth,
		Will:           &will,
	}, log)
}
