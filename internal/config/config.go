package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/pkg/icron"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// Config is the process configuration shared by both contexts. It is
// distinct from UserConfig, which lives in durable storage and is only
// delivered to the host context over the channel.
//
// Environment Variables:
//
// System:
// - ADSKIP_DATA_DIR: directory holding the storage database (default: /app/data)
// - ADSKIP_LOG_LEVEL: debug|info|warn|error (default: info)
// - ADSKIP_LOCALE: locale of user-facing notifications (default: en)
//
// Privileged server:
// - ADSKIP_ADDR: listen address of the channel server (default: 127.0.0.1:7766)
// - ADSKIP_CACHE_SWEEP_CRON: optional cron schedule for proactive eviction (default: off)
//
// Host:
// - ADSKIP_CHANNEL_URL: websocket URL of the privileged server (default: ws://127.0.0.1:7766/channel)
// - ADSKIP_POLL_INTERVAL: navigation poll interval (default: 300ms)
// - ADSKIP_CONFIG_WAIT: how long a triggered run waits for CONFIG (default: 10s)
// - ADSKIP_PROBE_TIMEOUT: connectivity probe timeout (default: 15s)
// - ADSKIP_CLASSIFY_TIMEOUT: classification call timeout (default: 60s)
// - ADSKIP_BACKEND_RPS: backend calls per second (default: 1)
// - ADSKIP_BACKEND_BURST: backend call burst (default: 2)
// - ADSKIP_METADATA_ENDPOINT: URL fragment of the player metadata API (default: api.bilibili.com/x/player/wbi/v2)
type Config struct {
	System SystemConfig `json:"system"`
	HTTP   HTTPConfig   `json:"http"`
	Cache  CacheConfig  `json:"cache"`
	Host   HostConfig   `json:"host"`
}

type SystemConfig struct {
	DataDir  string       `json:"data_dir"`
	LogLevel string       `json:"log_level"`
	Locale   language.Tag `json:"locale"`
}

type HTTPConfig struct {
	Addr       string `json:"addr"`
	ChannelURL string `json:"channel_url"`
}

type CacheConfig struct {
	SweepCron string        `json:"sweep_cron"`
	TTL       time.Duration `json:"ttl"`
}

type HostConfig struct {
	PollInterval     time.Duration `json:"poll_interval"`
	ConfigWait       time.Duration `json:"config_wait"`
	ProbeTimeout     time.Duration `json:"probe_timeout"`
	ClassifyTimeout  time.Duration `json:"classify_timeout"`
	BackendRPS       float64       `json:"backend_rps"`
	BackendBurst     int           `json:"backend_burst"`
	MetadataEndpoint string        `json:"metadata_endpoint"`
}

const dbFileName = "adskip.db"

// DBPath is the location of the storage database inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, dbFileName)
}

type Option func(*Config)

func WithDataDir(dir string) Option {
	return func(c *Config) {
		if strings.TrimSpace(dir) != "" {
			c.System.DataDir = dir
		}
	}
}

func WithAddr(addr string) Option {
	return func(c *Config) {
		if strings.TrimSpace(addr) != "" {
			c.HTTP.Addr = addr
		}
	}
}

func WithChannelURL(url string) Option {
	return func(c *Config) {
		if strings.TrimSpace(url) != "" {
			c.HTTP.ChannelURL = url
		}
	}
}

// NewFromEnv loads an optional .env file from the working directory, then
// builds the configuration from the environment and applies opts.
func NewFromEnv(opts ...Option) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	locale, err := language.Parse(getEnvString("ADSKIP_LOCALE", "en"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADSKIP_LOCALE: %w", err)
	}

	config := &Config{
		System: SystemConfig{
			DataDir:  getEnvString("ADSKIP_DATA_DIR", "/app/data"),
			LogLevel: getEnvString("ADSKIP_LOG_LEVEL", "info"),
			Locale:   locale,
		},
		HTTP: HTTPConfig{
			Addr:       getEnvString("ADSKIP_ADDR", "127.0.0.1:7766"),
			ChannelURL: getEnvString("ADSKIP_CHANNEL_URL", "ws://127.0.0.1:7766/channel"),
		},
		Cache: CacheConfig{
			SweepCron: getEnvString("ADSKIP_CACHE_SWEEP_CRON", ""),
			TTL:       getEnvDuration("ADSKIP_CACHE_TTL", 72*time.Hour),
		},
		Host: HostConfig{
			PollInterval:     getEnvDuration("ADSKIP_POLL_INTERVAL", 300*time.Millisecond),
			ConfigWait:       getEnvDuration("ADSKIP_CONFIG_WAIT", 10*time.Second),
			ProbeTimeout:     getEnvDuration("ADSKIP_PROBE_TIMEOUT", 15*time.Second),
			ClassifyTimeout:  getEnvDuration("ADSKIP_CLASSIFY_TIMEOUT", 60*time.Second),
			BackendRPS:       getEnvFloat("ADSKIP_BACKEND_RPS", 1),
			BackendBurst:     getEnvInt("ADSKIP_BACKEND_BURST", 2),
			MetadataEndpoint: getEnvString("ADSKIP_METADATA_ENDPOINT", "api.bilibili.com/x/player/wbi/v2"),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.System.DataDir) == "" {
		return fmt.Errorf("ADSKIP_DATA_DIR is required")
	}
	if c.Host.PollInterval <= 0 {
		return fmt.Errorf("ADSKIP_POLL_INTERVAL must be positive")
	}
	if c.Host.ProbeTimeout <= 0 || c.Host.ClassifyTimeout <= 0 {
		return fmt.Errorf("backend timeouts must be positive")
	}
	if c.Host.BackendRPS <= 0 || c.Host.BackendBurst < 1 {
		return fmt.Errorf("backend rate limit must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("ADSKIP_CACHE_TTL must be positive")
	}
	if c.Cache.SweepCron != "" {
		if _, err := icron.Parse(c.Cache.SweepCron); err != nil {
			return fmt.Errorf("invalid ADSKIP_CACHE_SWEEP_CRON: %w", err)
		}
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration syntax ("300ms", "1m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
