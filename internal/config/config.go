// Package config loads and validates the daemon's YAML settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/garage-opener/internal/gpio"
	"github.com/sweeney/garage-opener/internal/mqtt"
)

// DefaultPath is where the daemon looks for its settings.
const DefaultPath = "/etc/garage-opener/config.yaml"

// IndicatorDisabled as the indicator pin runs without an indicator LED.
const IndicatorDisabled = -1

// Config holds the daemon settings.
type Config struct {
	GPIO GPIOConfig `yaml:"gpio"`
	MQTT MQTTConfig `yaml:"mqtt"`
	HTTP HTTPConfig `yaml:"http"`

	// Heartbeat is the interval between HEARTBEAT events; 0 disables them.
	Heartbeat time.Duration `yaml:"heartbeat" validate:"gte=0"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// GPIOConfig selects the relay and indicator lines (BCM offsets).
type GPIOConfig struct {
	Chip         string `yaml:"chip" validate:"required"`
	Door1Pin     int    `yaml:"door1_pin" validate:"gte=0,nefield=Door2Pin"`
	Door2Pin     int    `yaml:"door2_pin" validate:"gte=0"`
	IndicatorPin int    `yaml:"indicator_pin" validate:"gte=-1"`
}

// MQTTConfig configures the broker connection. An empty broker runs without MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker" validate:"omitempty,url"`
	ClientID    string `yaml:"client_id" validate:"required_with=Broker"`
	TopicPrefix string `yaml:"topic_prefix" validate:"required"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

var errPinConflict = errors.New("indicator pin must differ from door pins")

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		GPIO: GPIOConfig{
			Chip:         gpio.DefaultChip,
			Door1Pin:     gpio.DefaultPinDoor1,
			Door2Pin:     gpio.DefaultPinDoor2,
			IndicatorPin: gpio.DefaultPinIndicator,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://127.0.0.1:1883",
			ClientID:    "garage-opener",
			TopicPrefix: mqtt.DefaultPrefix,
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Heartbeat: 15 * time.Minute,
		LogLevel:  "info",
	}
}

// Load reads settings from path on top of Default. When path is DefaultPath
// and the file does not exist, the defaults are returned; any other missing
// file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		return cfg, Validate(cfg)
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and pin conflicts.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	ind := cfg.GPIO.IndicatorPin
	if ind != IndicatorDisabled && (ind == cfg.GPIO.Door1Pin || ind == cfg.GPIO.Door2Pin) {
		return fmt.Errorf("invalid settings: %w (pin %d)", errPinConflict, ind)
	}
	return nil
}
