package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// TASKBOARD_BOARD_DEBOUNCE=250ms.
const EnvPrefix = "TASKBOARD"

// Transport kinds understood by the CLI when joining a board.
const (
	TransportMemory = "memory"
	TransportRelay  = "relay"
	TransportRedis  = "redis"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Board     BoardConfig     `mapstructure:"board"`
	Transport TransportConfig `mapstructure:"transport"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Log       LogConfig       `mapstructure:"log"`
}

// BoardConfig tunes a participant session.
type BoardConfig struct {
	Channel  string        `mapstructure:"channel"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// TransportConfig selects and configures the channel transport.
type TransportConfig struct {
	Kind      string `mapstructure:"kind"`
	RelayAddr string `mapstructure:"relay_addr"`
	// RelayFilter is an optional CEL expression evaluated by the relay.
	RelayFilter string `mapstructure:"relay_filter"`
	RedisURL    string `mapstructure:"redis_url"`
	// ReconnectMaxElapsed bounds how long a broken relay subscription is
	// retried before the handle gives up. Zero retries forever.
	ReconnectMaxElapsed time.Duration `mapstructure:"reconnect_max_elapsed"`
}

// RelayConfig configures the bundled relay server.
type RelayConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
	// RetainEntries caps how many recent events each channel keeps in memory.
	RetainEntries int           `mapstructure:"retain_entries"`
	TrimInterval  time.Duration `mapstructure:"trim_interval"`
	// SubscribeBuffer is the per-subscriber read batch size.
	SubscribeBuffer int `mapstructure:"subscribe_buffer"`
	// PayloadMaxBytes is the default cap on an event's data for new channels.
	PayloadMaxBytes int `mapstructure:"payload_max_bytes"`
}

// GeneratorConfig configures the draft generator client.
type GeneratorConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// RequestsPerSecond limits outgoing completions; zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// BreakerFailures consecutive failures open the circuit breaker.
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// LogConfig mirrors pkg/log.Config.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Board: BoardConfig{
			Channel:  "task-board-channel",
			Debounce: 600 * time.Millisecond,
		},
		Transport: TransportConfig{
			Kind:                TransportRelay,
			RelayAddr:           "127.0.0.1:50061",
			RedisURL:            "redis://127.0.0.1:6379/0",
			ReconnectMaxElapsed: 2 * time.Minute,
		},
		Relay: RelayConfig{
			GRPCAddr:        ":50061",
			HTTPAddr:        ":8090",
			RetainEntries:   1024,
			TrimInterval:    30 * time.Second,
			SubscribeBuffer: 128,
			PayloadMaxBytes: 64 << 10,
		},
		Generator: GeneratorConfig{
			BaseURL:           "https://api.groq.com/openai/v1",
			Model:             "llama3-8b-8192",
			Temperature:       0.57,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 1,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from an optional JSON or YAML file (by extension)
// and overlays TASKBOARD_* environment variables. If path is empty, only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the board cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Board.Channel) == "" {
		return errors.New("config: board.channel is required")
	}
	if c.Board.Debounce <= 0 {
		return errors.New("config: board.debounce must be positive")
	}
	switch c.Transport.Kind {
	case TransportMemory, TransportRelay, TransportRedis:
	default:
		return fmt.Errorf("config: unknown transport.kind %q", c.Transport.Kind)
	}
	if c.Relay.RetainEntries < 0 {
		return errors.New("config: relay.retain_entries must not be negative")
	}
	return nil
}

// newViper registers every default so AutomaticEnv can resolve each key.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("board.channel", d.Board.Channel)
	v.SetDefault("board.debounce", d.Board.Debounce)
	v.SetDefault("transport.kind", d.Transport.Kind)
	v.SetDefault("transport.relay_addr", d.Transport.RelayAddr)
	v.SetDefault("transport.relay_filter", d.Transport.RelayFilter)
	v.SetDefault("transport.redis_url", d.Transport.RedisURL)
	v.SetDefault("transport.reconnect_max_elapsed", d.Transport.ReconnectMaxElapsed)
	v.SetDefault("relay.grpc_addr", d.Relay.GRPCAddr)
	v.SetDefault("relay.http_addr", d.Relay.HTTPAddr)
	v.SetDefault("relay.retain_entries", d.Relay.RetainEntries)
	v.SetDefault("relay.trim_interval", d.Relay.TrimInterval)
	v.SetDefault("relay.subscribe_buffer", d.Relay.SubscribeBuffer)
	v.SetDefault("relay.payload_max_bytes", d.Relay.PayloadMaxBytes)
	v.SetDefault("generator.base_url", d.Generator.BaseURL)
	v.SetDefault("generator.api_key", d.Generator.APIKey)
	v.SetDefault("generator.model", d.Generator.Model)
	v.SetDefault("generator.temperature", d.Generator.Temperature)
	v.SetDefault("generator.timeout", d.Generator.Timeout)
	v.SetDefault("generator.requests_per_second", d.Generator.RequestsPerSecond)
	v.SetDefault("generator.breaker_failures", d.Generator.BreakerFailures)
	v.SetDefault("generator.breaker_timeout", d.Generator.BreakerTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	return v
}
