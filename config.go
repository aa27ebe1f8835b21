package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configDirName = "arduino-climate-plotter"
const configFileName = "config.yaml"

const (
	defaultInterval = time.Second
	defaultLogLevel = "info"
)

// Config holds the settings read from config.yaml, overridable by flags.
type Config struct {
	Port        string     `yaml:"port"`
	BaudRate    int        `yaml:"baud_rate"`
	ReadTimeout Duration   `yaml:"read_timeout"`
	SettleDelay Duration   `yaml:"settle_delay"`
	Interval    Duration   `yaml:"interval"`
	Capacity    int        `yaml:"capacity"`
	LogLevel    string     `yaml:"log_level"`
	CSVHeader   []string   `yaml:"csv_header,omitempty"`
	MQTT        MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig enables sample publishing when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Duration is a time.Duration written as "1s" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func DefaultConfig() Config {
	return Config{
		BaudRate:    defaultBaudRate,
		ReadTimeout: Duration(defaultReadTimeout),
		SettleDelay: Duration(defaultSettleDelay),
		Interval:    Duration(defaultInterval),
		Capacity:    DefaultCapacity,
		LogLevel:    defaultLogLevel,
		MQTT: MQTTConfig{
			Topic:    defaultMQTTTopic,
			ClientID: defaultMQTTClientID,
		},
	}
}

// Validate rejects settings the acquisition loop cannot run with.
func (c Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", time.Duration(c.Interval))
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %v", time.Duration(c.ReadTimeout))
	}
	if c.ReadTimeout >= c.Interval {
		return fmt.Errorf("read_timeout (%v) must be shorter than interval (%v)",
			time.Duration(c.ReadTimeout), time.Duration(c.Interval))
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative, got %v", time.Duration(c.SettleDelay))
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return errors.New("mqtt.topic is required when mqtt.broker is set")
	}
	return nil
}

// configDir returns the path to the app's config directory.
func configDir() (string, error) {
	appData, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	dir := filepath.Join(appData, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return dir, nil
}

// defaultConfigPath returns config.yaml inside the app's config directory.
func defaultConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
