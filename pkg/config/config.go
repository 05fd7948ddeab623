package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" comment:"HTTP状态服务配置"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor" comment:"监控采集配置"`
	MQTT    MQTTConfig    `yaml:"mqtt" mapstructure:"mqtt" comment:"MQTT总线与发现配置"`
	Alerts  AlertsConfig  `yaml:"alerts" mapstructure:"alerts" comment:"告警阈值配置"`
	Log     ZapLogConfig  `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Enable       bool          `yaml:"enable" mapstructure:"enable" env:"SERVER_ENABLE" comment:"是否启动状态服务" default:"true"`
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"SERVER_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" env:"SERVER_READ_TIMEOUT" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" env:"SERVER_WRITE_TIMEOUT" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
}

// MonitorConfig 监控采集全局配置
type MonitorConfig struct {
	Interval       time.Duration   `yaml:"interval" mapstructure:"interval" env:"MONITOR_INTERVAL" validate:"required,gt=0" comment:"采集间隔（5s~3600s）" default:"60s"`
	CollectTimeout time.Duration   `yaml:"collect_timeout" mapstructure:"collect_timeout" env:"MONITOR_COLLECT_TIMEOUT" validate:"required,gt=0" comment:"单个采集器单次采样超时，必须小于采集间隔" default:"10s"`
	Hostname       string          `yaml:"hostname" mapstructure:"hostname" env:"SYSTEM_HOSTNAME" comment:"设备主机名，为空时读取系统主机名"`
	MonitoredDisks []string        `yaml:"monitored_disks" mapstructure:"monitored_disks" env:"MONITOR_MONITORED_DISKS" comment:"只监控这些挂载点，为空表示全部" default:"[]"`
	Collectors     CollectorConfig `yaml:"collectors" mapstructure:"collectors" comment:"可选采集器开关"`
}

// CollectorConfig 可选采集器配置；cpu/memory/disk/network/system 始终启用
type CollectorConfig struct {
	Security   SecurityConfig   `yaml:"security" mapstructure:"security" comment:"端口与连接统计"`
	RPi        RPiConfig        `yaml:"rpi" mapstructure:"rpi" comment:"树莓派供电/降频状态（vcgencmd）"`
	Supervisor SupervisorConfig `yaml:"supervisor" mapstructure:"supervisor" comment:"hub Supervisor 统计"`
}

// SecurityConfig 安全采集器配置
type SecurityConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"MONITOR_COLLECTORS_SECURITY_ENABLE" comment:"是否启用安全采集器" default:"true"`
}

// RPiConfig 树莓派采集器配置
type RPiConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"MONITOR_COLLECTORS_RPI_ENABLE" comment:"是否启用树莓派采集器（探测不到 vcgencmd 时自动跳过）" default:"true"`
}

// SupervisorConfig Supervisor 采集器配置
type SupervisorConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable" env:"MONITOR_COLLECTORS_SUPERVISOR_ENABLE" comment:"是否启用Supervisor采集器（没有 token 时自动跳过）" default:"true"`
	URL    string `yaml:"url" mapstructure:"url" env:"MONITOR_COLLECTORS_SUPERVISOR_URL" validate:"omitempty,url" comment:"Supervisor API 地址" default:"http://supervisor"`
	Token  string `yaml:"token" mapstructure:"token" env:"SUPERVISOR_TOKEN" comment:"Supervisor API token"`
}

// MQTTConfig MQTT 连接与主题配置
type MQTTConfig struct {
	Host            string        `yaml:"host" mapstructure:"host" env:"MQTT_HOST" validate:"required" comment:"broker 地址" default:"core-mosquitto"`
	Port            int           `yaml:"port" mapstructure:"port" env:"MQTT_PORT" validate:"min=1,max=65535" comment:"broker 端口" default:"1883"`
	Username        string        `yaml:"username" mapstructure:"username" env:"MQTT_USERNAME" comment:"用户名"`
	Password        string        `yaml:"password" mapstructure:"password" env:"MQTT_PASSWORD" comment:"密码"`
	ClientID        string        `yaml:"client_id" mapstructure:"client_id" env:"MQTT_CLIENT_ID" comment:"客户端ID，为空时使用设备ID"`
	TopicPrefix     string        `yaml:"topic_prefix" mapstructure:"topic_prefix" env:"MQTT_TOPIC_PREFIX" validate:"required" comment:"状态/告警主题前缀" default:"system_monitor_pro"`
	DiscoveryPrefix string        `yaml:"discovery_prefix" mapstructure:"discovery_prefix" env:"MQTT_DISCOVERY_PREFIX" validate:"required" comment:"发现主题前缀" default:"homeassistant"`
	QoS             int           `yaml:"qos" mapstructure:"qos" env:"MQTT_QOS" validate:"min=0,max=2" comment:"发布 QoS" default:"0"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout" env:"MQTT_CONNECT_TIMEOUT" validate:"required,gt=0" comment:"连接超时" default:"10s"`
	DryRun          bool          `yaml:"dry_run" mapstructure:"dry_run" env:"MQTT_DRY_RUN" comment:"不连接 broker，只在日志中打印发布内容" default:"false"`
	KeepRetained    bool          `yaml:"keep_retained" mapstructure:"keep_retained" env:"MQTT_KEEP_RETAINED" comment:"退出时保留发现文档" default:"false"`
}

// AlertsConfig 告警配置
type AlertsConfig struct {
	Enable          bool          `yaml:"enable" mapstructure:"enable" env:"ALERTS_ENABLE" comment:"是否启用告警" default:"true"`
	CPUThreshold    float64       `yaml:"cpu_threshold" mapstructure:"cpu_threshold" env:"ALERTS_CPU_THRESHOLD" validate:"gt=0,lte=100" comment:"CPU 使用率阈值（%）" default:"90"`
	MemoryThreshold float64       `yaml:"memory_threshold" mapstructure:"memory_threshold" env:"ALERTS_MEMORY_THRESHOLD" validate:"gt=0,lte=100" comment:"内存使用率阈值（%）" default:"85"`
	DiskThreshold   float64       `yaml:"disk_threshold" mapstructure:"disk_threshold" env:"ALERTS_DISK_THRESHOLD" validate:"gt=0,lte=100" comment:"磁盘使用率阈值（%）" default:"85"`
	TempThreshold   float64       `yaml:"temp_threshold" mapstructure:"temp_threshold" env:"ALERTS_TEMP_THRESHOLD" validate:"gt=0,lte=150" comment:"温度阈值（°C）" default:"80"`
	Cooldown        time.Duration `yaml:"cooldown" mapstructure:"cooldown" env:"ALERTS_COOLDOWN" comment:"同一告警重复发送的最小间隔（0~24h）" default:"300s"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"控制台日志格式（json/console）" default:"console"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数（max_age 为 0 时生效）" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enable:       true,
			Addr:         "0.0.0.0:8099",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Monitor: MonitorConfig{
			Interval:       60 * time.Second,
			CollectTimeout: 10 * time.Second,
			MonitoredDisks: []string{},
			Collectors: CollectorConfig{
				Security:   SecurityConfig{Enable: true},
				RPi:        RPiConfig{Enable: true},
				Supervisor: SupervisorConfig{Enable: true, URL: "http://supervisor"},
			},
		},
		MQTT: MQTTConfig{
			Host:            "core-mosquitto",
			Port:            1883,
			TopicPrefix:     "system_monitor_pro",
			DiscoveryPrefix: "homeassistant",
			ConnectTimeout:  10 * time.Second,
		},
		Alerts: AlertsConfig{
			Enable:          true,
			CPUThreshold:    90,
			MemoryThreshold: 85,
			DiskThreshold:   85,
			TempThreshold:   80,
			Cooldown:        300 * time.Second,
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "console",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
		},
	}
}

// envAliases 不遵循 section_key 命名的环境变量（来自 add-on 运行环境）
var envAliases = map[string][]string{
	"monitor.hostname":                   {"SYSTEM_HOSTNAME", "HOSTNAME"},
	"monitor.collectors.supervisor.token": {"SUPERVISOR_TOKEN"},
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （MQTT_HOST -> mqtt.host）
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	// 4. 解码反序列化到结构体（支持 time.Duration）
	if err := Decode(v.AllSettings(), cfg); err != nil {
		return nil, err
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Decode 把 viper 的嵌套 map 解码到 cfg 上，未出现的字段保留原值
func Decode(settings map[string]any, cfg *Config) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1,校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验采集配置
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	// 	3，校验MQTT与告警配置
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Alerts.Validate(); err != nil {
		return err
	}
	// 	4，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
