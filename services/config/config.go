package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
)

// Hardware modes.
const (
	ModeLinux = "linux"
	ModeSim   = "sim"
)

// Config is the logger configuration: a YAML file with environment overrides.
type Config struct {
	Sampling  SamplingConfig  `yaml:"sampling"`
	Power     PowerConfig     `yaml:"power"`
	Clock     ClockConfig     `yaml:"clock"`
	Store     StoreConfig     `yaml:"store"`
	Retention RetentionConfig `yaml:"retention"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	HTTP      HTTPConfig      `yaml:"http"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type HeartbeatConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds" env:"HEARTBEAT_INTERVAL_SECONDS" env-default:"10"`
}

type SamplingConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds" env:"SAMPLE_INTERVAL_SECONDS" env-default:"10"`
}

// PowerConfig bounds the Active period and configures the wake sources.
type PowerConfig struct {
	ActiveSeconds int `yaml:"activeSeconds" env:"ACTIVE_SECONDS" env-default:"100"`
	SleepSeconds  int `yaml:"sleepSeconds" env:"SLEEP_SECONDS" env-default:"600"`
	ButtonPin     int `yaml:"buttonPin" env:"BUTTON_PIN" env-default:"14"`
	TickMillis    int `yaml:"tickMillis" env:"TICK_MILLIS" env-default:"100"`
}

type ClockConfig struct {
	Server        string `yaml:"server" env:"NTP_SERVER" env-default:"pool.ntp.org"`
	OffsetSeconds int    `yaml:"offsetSeconds" env:"NTP_OFFSET_SECONDS" env-default:"0"`
	Attempts      int    `yaml:"attempts" env:"NTP_ATTEMPTS" env-default:"5"`
	BackoffMillis int    `yaml:"backoffMillis" env:"NTP_BACKOFF_MILLIS" env-default:"500"`
	TimeoutMillis int    `yaml:"timeoutMillis" env:"NTP_TIMEOUT_MILLIS" env-default:"2000"`
}

type StoreConfig struct {
	Dir          string `yaml:"dir" env:"STORE_DIR" env-default:"/mnt/sd"`
	File         string `yaml:"file" env:"STORE_FILE" env-default:"data.txt"`
	ReseedHeader bool   `yaml:"reseedHeader" env:"STORE_RESEED_HEADER" env-default:"true"`
}

type RetentionConfig struct {
	Path string `yaml:"path" env:"RETENTION_PATH" env-default:"/run/envlogger/retention.db"`
}

type HardwareConfig struct {
	Mode           string  `yaml:"mode" env:"HARDWARE_MODE" env-default:"linux"`
	W1Device       string  `yaml:"w1Device" env:"W1_DEVICE"`
	W1Root         string  `yaml:"w1Root" env:"W1_ROOT" env-default:"/sys/bus/w1/devices"`
	GPIORoot       string  `yaml:"gpioRoot" env:"GPIO_ROOT" env-default:"/sys/class/gpio"`
	SimTemperature float64 `yaml:"simTemperature" env:"SIM_TEMPERATURE" env-default:"21.5"`
	SimButtonFile  string  `yaml:"simButtonFile" env:"SIM_BUTTON_FILE" env-default:"/tmp/envlogger.button"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr" env:"HTTP_ADDR" env-default:":80"`
	StaticDir string `yaml:"staticDir" env:"HTTP_STATIC_DIR"`
}

// MQTTConfig enables the MQTT live feed sink when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"MQTT_BROKER"`
	Topic    string `yaml:"topic" env:"MQTT_TOPIC" env-default:"envlogger/reading"`
	ClientID string `yaml:"clientId" env:"MQTT_CLIENT_ID"`
}

// Load reads path (if non-empty) and applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and normalizes enum fields.
func (c *Config) Validate() error {
	if c.Sampling.IntervalSeconds < 1 {
		return fmt.Errorf("sample interval must be at least 1 second")
	}
	if c.Power.ActiveSeconds < 1 {
		return fmt.Errorf("active period must be at least 1 second")
	}
	if c.Power.SleepSeconds < 1 {
		return fmt.Errorf("sleep period must be at least 1 second")
	}
	if c.Power.ButtonPin < 0 {
		return fmt.Errorf("button pin must be >= 0, got %d", c.Power.ButtonPin)
	}
	if c.Power.TickMillis < 1 || time.Duration(c.Power.TickMillis)*time.Millisecond > c.SampleInterval() {
		return fmt.Errorf("tick must be between 1 ms and the sample interval, got %d ms", c.Power.TickMillis)
	}

	if c.Clock.Server == "" {
		return fmt.Errorf("ntp server is required")
	}
	if c.Clock.Attempts < 1 {
		return fmt.Errorf("ntp attempts must be at least 1")
	}
	if c.Clock.BackoffMillis < 0 || c.Clock.TimeoutMillis < 1 {
		return fmt.Errorf("ntp backoff must be >= 0 and timeout >= 1 ms")
	}

	if c.Store.Dir == "" || c.Store.File == "" {
		return fmt.Errorf("store dir and file are required")
	}
	if strings.ContainsAny(c.Store.File, `/\`) {
		return fmt.Errorf("store file must be a bare name, got %q", c.Store.File)
	}

	c.Hardware.Mode = strings.ToLower(c.Hardware.Mode)
	switch c.Hardware.Mode {
	case ModeLinux, ModeSim:
	default:
		return fmt.Errorf("hardware mode must be 'linux' or 'sim', got '%s'", c.Hardware.Mode)
	}

	if c.Heartbeat.IntervalSeconds < 1 {
		return fmt.Errorf("heartbeat interval must be at least 1 second")
	}

	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt topic is required when a broker is set")
	}

	return ValidateLogging(&c.Logging)
}

func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Sampling.IntervalSeconds) * time.Second
}

func (c *Config) ActiveFor() time.Duration {
	return time.Duration(c.Power.ActiveSeconds) * time.Second
}

func (c *Config) SleepFor() time.Duration {
	return time.Duration(c.Power.SleepSeconds) * time.Second
}

func (c *Config) Tick() time.Duration {
	return time.Duration(c.Power.TickMillis) * time.Millisecond
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.IntervalSeconds) * time.Second
}

// PrintConfig logs the effective configuration.
func (c *Config) PrintConfig(logger *zap.Logger) {
	logger.Info("configuration loaded",
		zap.Int("sample_interval_seconds", c.Sampling.IntervalSeconds),
		zap.Int("active_seconds", c.Power.ActiveSeconds),
		zap.Int("sleep_seconds", c.Power.SleepSeconds),
		zap.Int("button_pin", c.Power.ButtonPin),
		zap.String("ntp_server", c.Clock.Server),
		zap.Int("ntp_attempts", c.Clock.Attempts),
		zap.String("store_dir", c.Store.Dir),
		zap.String("store_file", c.Store.File),
		zap.String("retention_path", c.Retention.Path),
		zap.String("hardware_mode", c.Hardware.Mode),
		zap.String("http_addr", c.HTTP.Addr),
		zap.Bool("mqtt_enabled", c.MQTT.Broker != ""),
		zap.Int("heartbeat_interval_seconds", c.Heartbeat.IntervalSeconds),
		zap.String("log_format", c.Logging.Format),
		zap.String("log_level", c.Logging.Level),
	)
}
