package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/aimkt/marketing-api/internal/repository/postgres"
	redisbroker "github.com/aimkt/marketing-api/pkg/messaging/redis"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Campaign  CampaignConfig  `mapstructure:"campaign"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Email     EmailConfig     `mapstructure:"email"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// ToDBConfig converts to the postgres package's config type.
func (c DatabaseConfig) ToDBConfig() postgres.DBConfig {
	return postgres.DBConfig{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
		SSLMode:  c.SSLMode,
	}
}

// ToBrokerConfig converts to the redis broker's config type.
func (c RedisConfig) ToBrokerConfig() redisbroker.Config {
	return redisbroker.Config{
		URL:          c.URL,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type CampaignConfig struct {
	// FailureThreshold is the failed fraction of attempted deliveries at or
	// above which a finished run counts as failed.
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	ContentCacheTTL  time.Duration `mapstructure:"content_cache_ttl"`
	AlertAddress     string        `mapstructure:"alert_address"`
}

type DispatchConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Workers    int           `mapstructure:"workers"`
}

// RateLimitConfig holds per-channel messages-per-minute budgets.
type RateLimitConfig struct {
	EmailPerMinute    int `mapstructure:"email_per_minute"`
	WhatsAppPerMinute int `mapstructure:"whatsapp_per_minute"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Subject  string `mapstructure:"subject"`
}

type WhatsAppConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Token       string        `mapstructure:"token"`
	From        string        `mapstructure:"from"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures int           `mapstructure:"max_failures"`
}

type WorkerConfig struct {
	SchedulerInterval time.Duration `mapstructure:"scheduler_interval"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	MetricsPort       int           `mapstructure:"metrics_port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("campaign.failure_threshold", 0.5)
	viper.SetDefault("campaign.lease_ttl", 15*time.Minute)
	viper.SetDefault("campaign.content_cache_ttl", time.Hour)
	viper.SetDefault("dispatch.max_retries", 3)
	viper.SetDefault("dispatch.base_delay", 500*time.Millisecond)
	viper.SetDefault("dispatch.max_delay", 30*time.Second)
	viper.SetDefault("dispatch.workers", 8)
	viper.SetDefault("rate_limit.email_per_minute", 600)
	viper.SetDefault("rate_limit.whatsapp_per_minute", 60)
	viper.SetDefault("email.port", 587)
	viper.SetDefault("email.subject", "A message from your favorite brand")
	viper.SetDefault("whatsapp.timeout", 10*time.Second)
	viper.SetDefault("whatsapp.max_failures", 5)
	viper.SetDefault("worker.scheduler_interval", time.Minute)
	viper.SetDefault("worker.sweep_interval", 30*time.Second)
	viper.SetDefault("worker.batch_size", 100)
	viper.SetDefault("worker.metrics_port", 9090)
	viper.SetDefault("log.level", "info")
}
