package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Serial   SerialConfig   `yaml:"serial"`
	Redis    RedisConfig    `yaml:"redis"`
	Programs ProgramsConfig `yaml:"programs"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ClientBuffer   int           `yaml:"client_buffer"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`

	// FrameRate is how many video frames per second are pushed to clients.
	// Zero disables the preview.
	FrameRate float64 `yaml:"frame_rate"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SerialConfig configures the controller link.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// RedisConfig configures the optional console lease.
// The lease is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// Enabled reports whether a redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ProgramsConfig configures program execution.
type ProgramsConfig struct {
	LogHistory      int           `yaml:"log_history"`
	DisplaceTimeout time.Duration `yaml:"displace_timeout"`
	OutputDir       string        `yaml:"output_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8765,
			ClientBuffer:  64,
			PingInterval:  30 * time.Second,
			ShutdownGrace: 5 * time.Second,
			FrameRate:     10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Serial: SerialConfig{
			BaudRate:    9600,
			ReadTimeout: time.Second,
		},
		Redis: RedisConfig{
			Prefix:   "switchbot:",
			LeaseTTL: 30 * time.Second,
		},
		Programs: ProgramsConfig{
			LogHistory:      10,
			DisplaceTimeout: 2 * time.Second,
			OutputDir:       ".",
		},
	}
}

// Load reads path on top of the defaults. An empty path uses the defaults only.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SWITCHBOT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SWITCHBOT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SWITCHBOT_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SWITCHBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SWITCHBOT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SWITCHBOT_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv("SWITCHBOT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SWITCHBOT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SWITCHBOT_OUTPUT_DIR"); v != "" {
		cfg.Programs.OutputDir = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.ClientBuffer < 1 {
		errs = append(errs, "server.client_buffer must be positive")
	}
	if c.Server.FrameRate < 0 {
		errs = append(errs, "server.frame_rate must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, "logging.format must be text or json")
	}
	if c.Serial.BaudRate <= 0 {
		errs = append(errs, "serial.baud_rate must be positive")
	}
	if c.Redis.Enabled() && c.Redis.LeaseTTL < time.Second {
		errs = append(errs, "redis.lease_ttl must be at least 1s")
	}
	if c.Programs.LogHistory < 1 {
		errs = append(errs, "programs.log_history must be positive")
	}
	if c.Programs.DisplaceTimeout <= 0 {
		errs = append(errs, "programs.displace_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
