// Package config loads the device configuration from a TOML file,
// applying defaults and validating the result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full device configuration.
type Config struct {
	Transfer TransferConfig `toml:"transfer"`
	Log      LogConfig      `toml:"log"`
	Retry    RetryConfig    `toml:"retry"`
	IoT      IoTConfig      `toml:"iot"`
}

// TransferConfig configures one file transfer endpoint pair.
type TransferConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	ListenPort         int    `toml:"listen_port"`
	ChunkSize          int    `toml:"chunk_size"`
	ConnectTimeoutSecs int    `toml:"connect_timeout_seconds"`
	ReadTimeoutSecs    int    `toml:"read_timeout_seconds"`
}

// ConnectTimeout returns the connect-phase timeout as a duration.
func (c TransferConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSecs) * time.Second
}

// ReadTimeout returns the per-phase read timeout as a duration.
// Zero means fully blocking reads.
func (c TransferConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSecs) * time.Second
}

// LogConfig configures the default file logger.
type LogConfig struct {
	Dir  string `toml:"dir"`
	Name string `toml:"name"`
}

// RetryConfig configures the caller-level retry policy applied around
// the whole connect-through-transfer sequence.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	DelaySecs   int `toml:"delay_seconds"`
}

// Delay returns the fixed inter-attempt delay as a duration.
func (c RetryConfig) Delay() time.Duration {
	return time.Duration(c.DelaySecs) * time.Second
}

// IoTConfig configures the MQTT device client.
type IoTConfig struct {
	Endpoint string `toml:"endpoint"`
	Port     int    `toml:"port"`
	ClientID string `toml:"client_id"`
	CertPath string `toml:"cert_path"`
	KeyPath  string `toml:"key_path"`
	CAPath   string `toml:"ca_path"`
}

// Load reads path, applies defaults and validates.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Transfer.Port == 0 {
		cfg.Transfer.Port = 9000
	}
	if cfg.Transfer.ListenPort == 0 {
		cfg.Transfer.ListenPort = cfg.Transfer.Port
	}
	if cfg.Transfer.ChunkSize == 0 {
		cfg.Transfer.ChunkSize = 4096
	}
	if cfg.Transfer.ConnectTimeoutSecs == 0 {
		cfg.Transfer.ConnectTimeoutSecs = 10
	}
	if cfg.Log.Name == "" {
		cfg.Log.Name = "sdlkit"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.DelaySecs == 0 {
		cfg.Retry.DelaySecs = 5
	}
	if cfg.IoT.Port == 0 {
		cfg.IoT.Port = 8883
	}
}

// Validate rejects configurations that cannot work.
func Validate(cfg Config) error {
	if cfg.Transfer.Port < 1 || cfg.Transfer.Port > 65535 {
		return fmt.Errorf("transfer port %d out of range", cfg.Transfer.Port)
	}
	if cfg.Transfer.ListenPort < 1 || cfg.Transfer.ListenPort > 65535 {
		return fmt.Errorf("transfer listen_port %d out of range", cfg.Transfer.ListenPort)
	}
	if cfg.Transfer.ChunkSize < 1 {
		return fmt.Errorf("transfer chunk_size must be positive, got %d", cfg.Transfer.ChunkSize)
	}
	if cfg.Transfer.ConnectTimeoutSecs < 0 || cfg.Transfer.ReadTimeoutSecs < 0 {
		return fmt.Errorf("transfer timeouts must not be negative")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if strings.TrimSpace(cfg.Log.Name) == "" {
		return fmt.Errorf("log name missing")
	}
	return nil
}
