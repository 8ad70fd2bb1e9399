// Package config loads settings from a YAML file with environment overrides.
// Priority: environment > YAML file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chat-sync/internal/validation"
	"chat-sync/internal/ws"
)

type ReconnectConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMS int     `yaml:"initial_delay_ms"`
	MaxDelayMS     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

type WSConfig struct {
	PingPeriodSec  int   `yaml:"ping_period_sec"`
	PongWaitSec    int   `yaml:"pong_wait_sec"`
	WriteWaitSec   int   `yaml:"write_wait_sec"`
	MaxMessageSize int64 `yaml:"max_message_size"`
}

type CacheConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type CredentialsConfig struct {
	Store    string `yaml:"store"`
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"`
	Token    string `yaml:"-"`
}

type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

type Config struct {
	Service      string            `yaml:"service"`
	Env          string            `yaml:"env"`
	ServerURL    string            `yaml:"server_url"`
	WSURL        string            `yaml:"ws_url"`
	ListenAddr   string            `yaml:"listen_addr"`
	PageSize     int               `yaml:"page_size"`
	LogLevel     string            `yaml:"log_level"`
	OTLPEndpoint string            `yaml:"otlp_endpoint"`
	Reconnect    ReconnectConfig   `yaml:"reconnect"`
	WS           WSConfig          `yaml:"ws"`
	Limits       validation.Limits `yaml:"limits"`
	Cache        CacheConfig       `yaml:"cache"`
	Credentials  CredentialsConfig `yaml:"credentials"`
	AMQP         AMQPConfig        `yaml:"amqp"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Service:    "chat-sync",
		Env:        "development",
		ServerURL:  "http://localhost:8080",
		ListenAddr: "127.0.0.1:8090",
		PageSize:   30,
		LogLevel:   "info",
		Reconnect: ReconnectConfig{
			MaxAttempts:    5,
			InitialDelayMS: 500,
			MaxDelayMS:     30000,
			Multiplier:     2,
		},
		WS: WSConfig{
			PingPeriodSec:  54,
			PongWaitSec:    60,
			WriteWaitSec:   10,
			MaxMessageSize: 1 << 20,
		},
		Limits: validation.DefaultLimits(),
		Cache:  CacheConfig{Driver: "sqlite", DSN: "chat-sync.db"},
		Credentials: CredentialsConfig{
			Store:    "memory",
			RedisKey: "chat-sync:credentials",
		},
		AMQP: AMQPConfig{Exchange: "chat.events", RoutingKey: "chat.notifications"},
	}
}

// Load reads CONFIG_PATH (or config/chat-sync.yaml when present) over the
// defaults and applies environment overrides.
func Load() (Config, error) {
	cfg := Default()

	paths := []string{os.Getenv("CONFIG_PATH"), "config/chat-sync.yaml"}
	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if i == 0 {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		break
	}

	applyEnv(&cfg)
	if cfg.WSURL == "" {
		cfg.WSURL = wsURLFrom(cfg.ServerURL)
	}
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	cfg.Env = envStr("APP_ENV", cfg.Env)
	cfg.ServerURL = envStr("CHAT_SERVER_URL", cfg.ServerURL)
	cfg.WSURL = envStr("CHAT_WS_URL", cfg.WSURL)
	cfg.ListenAddr = envStr("LISTEN_ADDR", cfg.ListenAddr)
	cfg.PageSize = envInt("PAGE_SIZE", cfg.PageSize)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.Reconnect.MaxAttempts = envInt("WS_RECONNECT_MAX_ATTEMPTS", cfg.Reconnect.MaxAttempts)
	cfg.Reconnect.InitialDelayMS = envInt("WS_RECONNECT_INITIAL_MS", cfg.Reconnect.InitialDelayMS)
	cfg.Reconnect.MaxDelayMS = envInt("WS_RECONNECT_MAX_MS", cfg.Reconnect.MaxDelayMS)
	cfg.WS.PingPeriodSec = envInt("WS_PING_PERIOD_SEC", cfg.WS.PingPeriodSec)
	cfg.WS.PongWaitSec = envInt("WS_PONG_WAIT_SEC", cfg.WS.PongWaitSec)
	cfg.WS.WriteWaitSec = envInt("WS_WRITE_WAIT_SEC", cfg.WS.WriteWaitSec)
	cfg.Cache.Driver = envStr("CACHE_DRIVER", cfg.Cache.Driver)
	cfg.Cache.DSN = envStr("CACHE_DSN", cfg.Cache.DSN)
	cfg.Credentials.Store = envStr("CREDENTIALS_STORE", cfg.Credentials.Store)
	cfg.Credentials.RedisURL = envStr("REDIS_URL", cfg.Credentials.RedisURL)
	cfg.Credentials.RedisKey = envStr("REDIS_CREDENTIALS_KEY", cfg.Credentials.RedisKey)
	cfg.Credentials.Token = envStr("CHAT_TOKEN", cfg.Credentials.Token)
	cfg.AMQP.URL = envStr("AMQP_URL", cfg.AMQP.URL)
	cfg.AMQP.Exchange = envStr("AMQP_EXCHANGE", cfg.AMQP.Exchange)
	cfg.AMQP.RoutingKey = envStr("AMQP_ROUTING_KEY", cfg.AMQP.RoutingKey)
}

func (c Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	switch c.Credentials.Store {
	case "memory":
	case "redis":
		if c.Credentials.RedisURL == "" {
			return fmt.Errorf("credentials.redis_url is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown credentials store %q", c.Credentials.Store)
	}
	return nil
}

// ReconnectPolicy builds the websocket policy. Zero attempts disables redialing.
func (c Config) ReconnectPolicy() ws.ReconnectPolicy {
	if c.Reconnect.MaxAttempts <= 0 {
		return ws.NoReconnect{}
	}
	return ws.ExponentialBackoff{
		Initial:     time.Duration(c.Reconnect.InitialDelayMS) * time.Millisecond,
		Max:         time.Duration(c.Reconnect.MaxDelayMS) * time.Millisecond,
		Multiplier:  c.Reconnect.Multiplier,
		MaxAttempts: c.Reconnect.MaxAttempts,
	}
}

// WebSocket returns the connection manager settings for userID.
func (c Config) WebSocket(userID int) ws.Config {
	out := ws.DefaultConfig(c.WSURL)
	out.LocalUserID = userID
	if c.WS.PingPeriodSec > 0 {
		out.PingPeriod = time.Duration(c.WS.PingPeriodSec) * time.Second
	}
	if c.WS.PongWaitSec > 0 {
		out.PongWait = time.Duration(c.WS.PongWaitSec) * time.Second
	}
	if c.WS.WriteWaitSec > 0 {
		out.WriteWait = time.Duration(c.WS.WriteWaitSec) * time.Second
	}
	if c.WS.MaxMessageSize > 0 {
		out.MaxMessageSize = c.WS.MaxMessageSize
	}
	return out
}

func wsURLFrom(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "https://"):
		return "wss://" + strings.TrimPrefix(serverURL, "https://")
	case strings.HasPrefix(serverURL, "http://"):
		return "ws://" + strings.TrimPrefix(serverURL, "http://")
	default:
		return serverURL
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
