package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Transport TransportConfig `yaml:"transport"`
	Identity  IdentityConfig  `yaml:"identity"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL runs the
// in-memory store.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// RedisConfig holds Redis configuration. An empty URL uses the in-process
// rate limiter and lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// DispatchConfig bounds the batch dispatcher.
type DispatchConfig struct {
	PoolSize               int     `yaml:"pool_size"`
	SendsPerSecond         float64 `yaml:"sends_per_second"`
	ProviderTimeoutSeconds int     `yaml:"provider_timeout_seconds"`
	ProgressFlushEvery     int     `yaml:"progress_flush_every"`
	LookupConcurrency      int     `yaml:"lookup_concurrency"`
}

// ProviderTimeout returns the per-send timeout as a duration
func (c DispatchConfig) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// TransportConfig selects the email provider.
type TransportConfig struct {
	Provider string     `yaml:"provider"` // ses, smtp or log
	SES      SESConfig  `yaml:"ses"`
	SMTP     SMTPConfig `yaml:"smtp"`
}

// SESConfig holds AWS SES configuration
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// SMTPConfig holds SMTP relay configuration
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IdentityConfig holds the user directory client configuration. An empty
// base URL runs against a static directory.
type IdentityConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the lookup timeout as a duration
func (c IdentityConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QueueConfig selects the trigger queue.
type QueueConfig struct {
	Driver  string    `yaml:"driver"` // memory or sqs
	SQS     SQSConfig `yaml:"sqs"`
	Workers int       `yaml:"workers"`
	Buffer  int       `yaml:"buffer"`
}

// SQSConfig holds AWS SQS configuration
type SQSConfig struct {
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
}

// SchedulerConfig holds the scheduled campaign poller configuration.
type SchedulerConfig struct {
	Enabled             bool `yaml:"enabled"`
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	LockTTLSeconds      int  `yaml:"lock_ttl_seconds"`
}

// PollInterval returns the polling interval as a duration
func (c SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// LockTTL returns the scheduler lock TTL as a duration
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for runs
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 3
	}
	if cfg.Dispatch.PoolSize == 0 {
		cfg.Dispatch.PoolSize = 10
	}
	if cfg.Dispatch.ProviderTimeoutSeconds == 0 {
		cfg.Dispatch.ProviderTimeoutSeconds = 10
	}
	if cfg.Dispatch.ProgressFlushEvery == 0 {
		cfg.Dispatch.ProgressFlushEvery = 50
	}
	if cfg.Dispatch.LookupConcurrency == 0 {
		cfg.Dispatch.LookupConcurrency = 8
	}
	if cfg.Transport.Provider == "" {
		cfg.Transport.Provider = "log"
	}
	if cfg.Transport.SES.Region == "" {
		cfg.Transport.SES.Region = "us-east-1"
	}
	if cfg.Transport.SMTP.Port == 0 {
		cfg.Transport.SMTP.Port = 587
	}
	if cfg.Identity.TimeoutSeconds == 0 {
		cfg.Identity.TimeoutSeconds = 10
	}
	if cfg.Identity.MaxRetries == 0 {
		cfg.Identity.MaxRetries = 3
	}
	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = "memory"
	}
	if cfg.Queue.SQS.Region == "" {
		cfg.Queue.SQS.Region = cfg.Transport.SES.Region
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 2
	}
	if cfg.Queue.Buffer == 0 {
		cfg.Queue.Buffer = 256
	}
	if cfg.Scheduler.PollIntervalSeconds == 0 {
		cfg.Scheduler.PollIntervalSeconds = 30
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
// An empty path skips the file and starts from Default.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Transport.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Transport.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Transport.SES.Region = v
	}
	if v := os.Getenv("EMAIL_PROVIDER"); v != "" {
		cfg.Transport.Provider = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Transport.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Transport.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Transport.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Transport.SMTP.Password = v
	}
	if v := os.Getenv("IDENTITY_BASE_URL"); v != "" {
		cfg.Identity.BaseURL = v
	}
	if v := os.Getenv("IDENTITY_API_KEY"); v != "" {
		cfg.Identity.APIKey = v
	}
	if v := os.Getenv("SQS_QUEUE_URL"); v != "" {
		cfg.Queue.SQS.QueueURL = v
		cfg.Queue.Driver = "sqs"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
