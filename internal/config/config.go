// Package config loads the alerter settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/door-alerter/internal/gpio"
	"github.com/sweeney/door-alerter/internal/incident"
	"github.com/sweeney/door-alerter/internal/mqtt"
	"github.com/sweeney/door-alerter/internal/presence"
)

// Config is the full alerter configuration.
type Config struct {
	Device    Device    `yaml:"device"`
	Door      Door      `yaml:"door"`
	Presence  Presence  `yaml:"presence"`
	PagerDuty PagerDuty `yaml:"pagerduty"`
	Telegram  Telegram  `yaml:"telegram"`
	Webhook   Webhook   `yaml:"webhook"`
	MQTT      MQTT      `yaml:"mqtt"`
	HTTP      HTTP      `yaml:"http"`
	Prefs     Prefs     `yaml:"prefs"`
	Log       Log       `yaml:"log"`
}

type Device struct {
	Name string `yaml:"name"`
	// TTL restarts the process after this long. Zero disables.
	TTL     time.Duration `yaml:"ttl"`
	Stealth bool          `yaml:"stealth"`
}

type Door struct {
	Chip         string        `yaml:"chip"`
	Pin          int           `yaml:"pin"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LEDOpenPin   int           `yaml:"led_open_pin"`
	LEDClosedPin int           `yaml:"led_closed_pin"`
}

type Presence struct {
	Enabled      bool          `yaml:"enabled"`
	Tokens       []string      `yaml:"tokens"`
	ScanDuration time.Duration `yaml:"scan_duration"`
	MinRSSI      int           `yaml:"min_rssi"`
}

type PagerDuty struct {
	Enabled    bool   `yaml:"enabled"`
	RoutingKey string `yaml:"routing_key"`
	Severity   string `yaml:"severity"`
	Summary    string `yaml:"summary"`
	Source     string `yaml:"source"`
	// Endpoint overrides the Events API v2 URL.
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Telegram struct {
	Enabled      bool          `yaml:"enabled"`
	Token        string        `yaml:"token"`
	OwnerChatID  int64         `yaml:"owner_chat_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Webhook struct {
	Enabled bool          `yaml:"enabled"`
	TLS     bool          `yaml:"tls"`
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type MQTT struct {
	Enabled     bool          `yaml:"enabled"`
	Broker      string        `yaml:"broker"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
}

type HTTP struct {
	// Addr is the status server listen address. Empty disables it.
	Addr string `yaml:"addr"`
}

type Prefs struct {
	// Path is the SQLite file. Empty keeps preferences in memory.
	Path string `yaml:"path"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Defaults.
const (
	DefaultConfigFilename   = "door-alerter.yaml"
	DefaultDeviceName       = "garage-door"
	DefaultTTL              = 24 * time.Hour
	DefaultPollInterval     = 2 * time.Second
	DefaultChatPollInterval = 5 * time.Second
	DefaultSummary          = "Garage door opened"
	DefaultHeartbeat        = 15 * time.Minute
	DefaultHTTPAddr         = ":80"
	DefaultLogLevel         = "info"
)

// Environment overrides for secrets.
const (
	EnvTelegramToken       = "DOOR_TELEGRAM_TOKEN"
	EnvPagerDutyRoutingKey = "DOOR_PAGERDUTY_ROUTING_KEY"
)

var (
	errRoutingKeyRequired = errors.New("pagerduty.routing_key must be provided when pagerduty is enabled")
	errTelegramToken      = errors.New("telegram.token must be provided when telegram is enabled")
	errTelegramOwner      = errors.New("telegram.owner_chat_id must be provided when telegram is enabled")
	errWebhookHost        = errors.New("webhook.host must be provided when webhook is enabled")
	errBrokerRequired     = errors.New("mqtt.broker must be provided when mqtt is enabled")
)

// Default returns a configuration with every default applied and all
// optional channels disabled.
func Default() *Config {
	cfg := &Config{}
	_ = Validate(cfg)
	return cfg
}

// Load reads the file at path, applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyEnv(&cfg, os.Getenv)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overrides secrets from the environment when set.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvTelegramToken); v != "" {
		cfg.Telegram.Token = v
	}
	if v := getenv(EnvPagerDutyRoutingKey); v != "" {
		cfg.PagerDuty.RoutingKey = v
	}
}

// Validate fills defaults and checks enabled sections for required fields.
func Validate(cfg *Config) error {
	if cfg.Device.Name == "" {
		cfg.Device.Name = DefaultDeviceName
	}
	if cfg.Device.TTL < 0 {
		return fmt.Errorf("device.ttl must not be negative: %s", cfg.Device.TTL)
	}

	if cfg.Door.Chip == "" {
		cfg.Door.Chip = gpio.DefaultChip
	}
	if cfg.Door.Pin == 0 {
		cfg.Door.Pin = gpio.DefaultPinDoor
	}
	if cfg.Door.LEDOpenPin == 0 {
		cfg.Door.LEDOpenPin = gpio.DefaultPinLEDOpen
	}
	if cfg.Door.LEDClosedPin == 0 {
		cfg.Door.LEDClosedPin = gpio.DefaultPinLEDClosed
	}
	if cfg.Door.PollInterval <= 0 {
		cfg.Door.PollInterval = DefaultPollInterval
	}

	if cfg.Presence.ScanDuration <= 0 {
		cfg.Presence.ScanDuration = presence.DefaultScanDuration
	}
	if cfg.Presence.MinRSSI == 0 {
		cfg.Presence.MinRSSI = presence.DefaultMinRSSI
	}

	if cfg.PagerDuty.Severity == "" {
		cfg.PagerDuty.Severity = string(incident.SeverityCritical)
	}
	if _, ok := incident.ParseSeverity(cfg.PagerDuty.Severity); !ok {
		return fmt.Errorf("invalid pagerduty.severity %q", cfg.PagerDuty.Severity)
	}
	if cfg.PagerDuty.Summary == "" {
		cfg.PagerDuty.Summary = DefaultSummary
	}
	if cfg.PagerDuty.Source == "" {
		cfg.PagerDuty.Source = cfg.Device.Name
	}
	if cfg.PagerDuty.Timeout <= 0 {
		cfg.PagerDuty.Timeout = incident.DefaultTimeout
	}
	if cfg.PagerDuty.Enabled && strings.TrimSpace(cfg.PagerDuty.RoutingKey) == "" {
		return errRoutingKeyRequired
	}

	if cfg.Telegram.PollInterval <= 0 {
		cfg.Telegram.PollInterval = DefaultChatPollInterval
	}
	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return errTelegramToken
		}
		if cfg.Telegram.OwnerChatID == 0 {
			return errTelegramOwner
		}
	}

	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/"
	}
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 80
		if cfg.Webhook.TLS {
			cfg.Webhook.Port = 443
		}
	}
	if cfg.Webhook.Enabled && cfg.Webhook.Host == "" {
		return errWebhookHost
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = mqtt.DefaultTopicPrefix
	}
	if cfg.MQTT.Heartbeat == 0 {
		cfg.MQTT.Heartbeat = DefaultHeartbeat
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return errBrokerRequired
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	return nil
}

// Tokens returns the authorized token names, or none when presence is disabled.
func (c *Config) Tokens() presence.TokenSet {
	if !c.Presence.Enabled {
		return presence.NewTokenSet()
	}
	return presence.NewTokenSet(c.Presence.Tokens...)
}
