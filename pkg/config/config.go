package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"CoinPulse/pkg/util"
)

// Backend names accepted by the storage section.
const (
	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		IngestRPS       float64       `yaml:"ingest_rps"`
		IngestBurst     int           `yaml:"ingest_burst"`
	} `yaml:"server"`
	Storage struct {
		Signals       string `yaml:"signals"`
		Rules         string `yaml:"rules"`
		Notifications string `yaml:"notifications"`
		Watchlists    string `yaml:"watchlists"`
		Windows       string `yaml:"windows"`
	} `yaml:"storage"`
	Pipeline struct {
		ResolveTimeout time.Duration `yaml:"resolve_timeout"`
		StoreTimeout   time.Duration `yaml:"store_timeout"`
		FanoutWorkers  int           `yaml:"fanout_workers"`
		GroupWindow    time.Duration `yaml:"group_window"`
		RuleCacheTTL   time.Duration `yaml:"rule_cache_ttl"`
		GateMaxRPS     int           `yaml:"gate_max_rps"`
		GateBuffer     int           `yaml:"gate_buffer"`
	} `yaml:"pipeline"`
	Feeds struct {
		Enabled      bool          `yaml:"enabled"`
		Symbols      []string      `yaml:"symbols"`
		Interval     time.Duration `yaml:"interval"`
		Timeout      time.Duration `yaml:"timeout"`
		PriceURL     string        `yaml:"price_url"`
		SentimentURL string        `yaml:"sentiment_url"`
		NarrativeURL string        `yaml:"narrative_url"`
		APIKey       string        `yaml:"api_key"`
	} `yaml:"feeds"`
	Delivery struct {
		Mode         string        `yaml:"mode"` // direct or queue
		Timeout      time.Duration `yaml:"timeout"`
		PushProvider string        `yaml:"push_provider"` // webhook, telegram or none
		Webhook      struct {
			URL string `yaml:"url"`
		} `yaml:"webhook"`
		Telegram struct {
			Token     string  `yaml:"token"`
			RateLimit float64 `yaml:"rate_limit"`
		} `yaml:"telegram"`
		Email struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			From     string `yaml:"from"`
		} `yaml:"email"`
		Queue struct {
			Name           string        `yaml:"name"`
			Workers        int           `yaml:"workers"`
			RetryLimit     int           `yaml:"retry_limit"`
			RetryDelay     time.Duration `yaml:"retry_delay"`
			EnableDLQ      bool          `yaml:"enable_dlq"`
			PollInterval   time.Duration `yaml:"poll_interval"`
			ProcessTimeout time.Duration `yaml:"process_timeout"`
		} `yaml:"queue"`
	} `yaml:"delivery"`
	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topics  struct {
			Observations  string `yaml:"observations"`
			Signals       string `yaml:"signals"`
			Notifications string `yaml:"notifications"`
			Logs          string `yaml:"logs"`
		} `yaml:"topics"`
		Producer struct {
			RequiredAcks int           `yaml:"required_acks"`
			Compression  string        `yaml:"compression"`
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			BatchBytes   int           `yaml:"batch_bytes"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	} `yaml:"postgres"`
	Redis struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv loads an optional .env file from the working directory, then
// the YAML config, then overrides selected fields from the environment.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(path, true)
}

func load(path string, withEnv bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if withEnv {
		c.applyEnv()
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COINPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feeds.Symbols = util.SplitSymbols(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Delivery.Telegram.Token = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Delivery.Email.Password = v
	}
	if v := os.Getenv("FANOUT_WORKERS"); v != "" {
		c.Pipeline.FanoutWorkers = util.ParseIntDefault(v, c.Pipeline.FanoutWorkers)
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.IngestRPS == 0 {
		c.Server.IngestRPS = 50
	}
	if c.Server.IngestBurst == 0 {
		c.Server.IngestBurst = 100
	}

	for _, s := range []*string{
		&c.Storage.Signals, &c.Storage.Rules, &c.Storage.Notifications,
		&c.Storage.Watchlists, &c.Storage.Windows,
	} {
		if *s == "" {
			*s = BackendMemory
		}
	}

	if c.Pipeline.ResolveTimeout == 0 {
		c.Pipeline.ResolveTimeout = 500 * time.Millisecond
	}
	if c.Pipeline.StoreTimeout == 0 {
		c.Pipeline.StoreTimeout = 2 * time.Second
	}
	if c.Pipeline.FanoutWorkers <= 0 {
		c.Pipeline.FanoutWorkers = 8
	}
	if c.Pipeline.GroupWindow == 0 {
		c.Pipeline.GroupWindow = 5 * time.Minute
	}
	if c.Pipeline.RuleCacheTTL == 0 {
		c.Pipeline.RuleCacheTTL = 30 * time.Second
	}
	if c.Pipeline.GateBuffer == 0 {
		c.Pipeline.GateBuffer = 1000
	}

	if c.Feeds.Interval == 0 {
		c.Feeds.Interval = time.Minute
	}
	if c.Feeds.Timeout == 0 {
		c.Feeds.Timeout = 10 * time.Second
	}

	if c.Delivery.Mode == "" {
		c.Delivery.Mode = "direct"
	}
	if c.Delivery.Timeout == 0 {
		c.Delivery.Timeout = 5 * time.Second
	}
	if c.Delivery.PushProvider == "" {
		c.Delivery.PushProvider = "none"
	}
	if c.Delivery.Queue.Name == "" {
		c.Delivery.Queue.Name = "deliveries"
	}
	if c.Delivery.Queue.Workers == 0 {
		c.Delivery.Queue.Workers = 4
	}
	if c.Delivery.Queue.RetryLimit == 0 {
		c.Delivery.Queue.RetryLimit = 3
	}
	if c.Delivery.Queue.RetryDelay == 0 {
		c.Delivery.Queue.RetryDelay = 5 * time.Second
	}

	if c.Kafka.Topics.Observations == "" {
		c.Kafka.Topics.Observations = "observations"
	}
	if c.Kafka.Topics.Signals == "" {
		c.Kafka.Topics.Signals = "signals"
	}
	if c.Kafka.Topics.Notifications == "" {
		c.Kafka.Topics.Notifications = "notifications"
	}
	if c.Kafka.Topics.Logs == "" {
		c.Kafka.Topics.Logs = "service-logs"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "coinpulse-pipeline"
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "coinpulse"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}

	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"storage.signals", c.Storage.Signals, []string{BackendMemory, BackendClickHouse}},
		{"storage.rules", c.Storage.Rules, []string{BackendMemory, BackendRedis}},
		{"storage.notifications", c.Storage.Notifications, []string{BackendMemory, BackendPostgres}},
		{"storage.watchlists", c.Storage.Watchlists, []string{BackendMemory, BackendPostgres}},
		{"storage.windows", c.Storage.Windows, []string{BackendMemory, BackendRedis}},
		{"delivery.mode", c.Delivery.Mode, []string{"direct", "queue"}},
		{"delivery.push_provider", c.Delivery.PushProvider, []string{"none", "webhook", "telegram"}},
	}
	for _, ch := range checks {
		if !contains(ch.allowed, ch.value) {
			return fmt.Errorf("%s must be one of %s, got '%s'", ch.field, strings.Join(ch.allowed, "|"), ch.value)
		}
	}

	if c.UsesBackend(BackendRedis) || c.Delivery.Mode == "queue" {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
	}
	if c.UsesBackend(BackendPostgres) && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.UsesBackend(BackendClickHouse) && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Feeds.Enabled && len(c.Feeds.Symbols) == 0 {
		return fmt.Errorf("feeds.symbols cannot be empty when feeds are enabled")
	}
	switch c.Delivery.PushProvider {
	case "webhook":
		if c.Delivery.Webhook.URL == "" {
			return fmt.Errorf("delivery.webhook.url is required")
		}
	case "telegram":
		if c.Delivery.Telegram.Token == "" {
			return fmt.Errorf("delivery.telegram.token is required")
		}
	}
	if c.Delivery.Email.Enabled && (c.Delivery.Email.Host == "" || c.Delivery.Email.From == "") {
		return fmt.Errorf("delivery.email.host and delivery.email.from are required")
	}
	return nil
}

// UsesBackend reports whether any store is configured with the given backend.
func (c *Config) UsesBackend(name string) bool {
	for _, b := range []string{
		c.Storage.Signals, c.Storage.Rules, c.Storage.Notifications,
		c.Storage.Watchlists, c.Storage.Windows,
	} {
		if b == name {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
