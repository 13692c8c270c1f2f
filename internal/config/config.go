package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradingmodels/internal/daytrading"
	"tradingmodels/internal/logger"
)

// Config represents the application configuration
type Config struct {
	DataDir      string            `yaml:"data_dir"`
	ArtifactsDir string            `yaml:"artifacts_dir"`
	Log          logger.Config     `yaml:"log"`
	API          APIConfig         `yaml:"api"`
	Cache        CacheConfig       `yaml:"cache"`
	Broker       BrokerConfig      `yaml:"broker"`
	Server       ServerConfig      `yaml:"server"`
	Kafka        KafkaConfig       `yaml:"kafka"`
	Recorder     RecorderConfig    `yaml:"recorder"`
	Scheduler    SchedulerConfig   `yaml:"scheduler"`
	DayTrading   daytrading.Config `yaml:"day_trading"`
}

// APIConfig holds market data provider configurations
type APIConfig struct {
	Yahoo        ProviderConfig `yaml:"yahoo"`
	AlphaVantage ProviderConfig `yaml:"alphavantage"`
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	Key       string        `yaml:"key"`
	RateLimit int           `yaml:"rate_limit"` // requests per minute
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig selects where fetched bars are cached
type CacheConfig struct {
	Backend string      `yaml:"backend"` // file or redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// BrokerConfig holds broker REST credentials
type BrokerConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// KafkaConfig enables publishing stream points when brokers are set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RecorderConfig holds the training run database settings
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // relative paths live under data_dir
}

// SchedulerConfig holds serve-mode background jobs
type SchedulerConfig struct {
	StreamRefresh   bool   `yaml:"stream_refresh"`
	MarketHoursOnly bool   `yaml:"market_hours_only"` // skip refreshes outside the regular session
	RetrainCron     string `yaml:"retrain_cron"`      // empty disables scheduled retraining
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "data",
		ArtifactsDir: "artifacts",
		Log: logger.Config{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		API: APIConfig{
			Yahoo: ProviderConfig{
				RateLimit: 30,
				Timeout:   30 * time.Second,
			},
			AlphaVantage: ProviderConfig{
				Key:       os.Getenv("ALPHAVANTAGE_API_KEY"),
				RateLimit: 5,
				Timeout:   30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Backend: "file",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				TTL:  24 * time.Hour,
			},
		},
		Broker: BrokerConfig{
			BaseURL: "https://paper-api.alpaca.markets",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "day_trading.stream",
		},
		Recorder: RecorderConfig{
			Enabled: true,
			Path:    "runs.db",
		},
		Scheduler: SchedulerConfig{
			StreamRefresh:   true,
			MarketHoursOnly: true,
		},
		DayTrading: daytrading.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file, then a .env file, then the environment
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TRADING_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TRADING_ARTIFACTS_DIR"); v != "" {
		c.ArtifactsDir = v
	}
	if v := os.Getenv("TRADING_DEFAULT_SYMBOL"); v != "" {
		c.DayTrading.Symbol = strings.ToUpper(v)
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.API.AlphaVantage.Key = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("BROKER_API_SECRET"); v != "" {
		c.Broker.APISecret = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		c.Broker.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DataDir == "" || c.ArtifactsDir == "" {
		return fmt.Errorf("data_dir and artifacts_dir are required")
	}
	if c.Cache.Backend != "file" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'file' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.API.Yahoo.RateLimit < 1 {
		return fmt.Errorf("api.yahoo.rate_limit must be at least 1")
	}
	return c.DayTrading.Validate()
}

// EnsureDirectories creates the data and artifact directories
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.ArtifactsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// DayTradingStorage is the artifact directory of the day-trading model
func (c *Config) DayTradingStorage() string {
	return filepath.Join(c.ArtifactsDir, "day_trading")
}

// DayTradingData is the bar cache directory of the day-trading model
func (c *Config) DayTradingData() string {
	return filepath.Join(c.DataDir, "day_trading")
}

// RecorderPath resolves the run database location
func (c *Config) RecorderPath() string {
	if filepath.IsAbs(c.Recorder.Path) {
		return c.Recorder.Path
	}
	return filepath.Join(c.DataDir, c.Recorder.Path)
}
