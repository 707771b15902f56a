// Package config loads process configuration from an optional YAML file,
// a local .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Auth      AuthConfig      `yaml:"auth"`
	Services  ServicesConfig  `yaml:"services"`
	Email     EmailConfig     `yaml:"email"`
	Auction   AuctionConfig   `yaml:"auction"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL     string        `yaml:"url"`
	CartTTL time.Duration `yaml:"cart_ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type ServicesConfig struct {
	MarketplaceURL string `yaml:"marketplace_url"`
	EmailURL       string `yaml:"email_url"`
}

type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromAddress    string `yaml:"from_address"`
	FromName       string `yaml:"from_name"`
}

type AuctionConfig struct {
	BidAttempts    int    `yaml:"bid_attempts"`
	SettleSchedule string `yaml:"settle_schedule"`
}

type NotifyConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	ServiceVersion string `yaml:"service_version"`
}

// Load reads the YAML file at path when path is not empty, then applies .env
// and environment overrides, defaults and validation.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.overrideWithEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) overrideWithEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Postgres.URL, "POSTGRES_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Kafka.GroupID, "KAFKA_GROUP_ID")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Services.MarketplaceURL, "MARKETPLACE_SERVICE_URL")
	setString(&c.Services.EmailURL, "EMAIL_SERVICE_URL")
	setString(&c.Email.SendGridAPIKey, "SENDGRID_API_KEY")
	setString(&c.Email.FromAddress, "EMAIL_FROM_ADDRESS")
	setString(&c.Email.FromName, "EMAIL_FROM_NAME")
	setString(&c.Auction.SettleSchedule, "AUCTION_SETTLE_SCHEDULE")
	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Telemetry.ServiceVersion, "SERVICE_VERSION")

	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("OTEL_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("OTEL_ENABLED: %w", err)
		}
		c.Telemetry.Enabled = enabled
	}
	if err := setDuration(&c.Redis.CartTTL, "CART_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.Auth.TokenTTL, "TOKEN_TTL"); err != nil {
		return err
	}
	if err := setInt(&c.Auction.BidAttempts, "AUCTION_BID_ATTEMPTS"); err != nil {
		return err
	}
	if err := setInt(&c.Notify.QueueSize, "NOTIFY_QUEUE_SIZE"); err != nil {
		return err
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Redis.CartTTL == 0 {
		c.Redis.CartTTL = 30 * 24 * time.Hour
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "notification-worker"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Email.FromAddress == "" {
		c.Email.FromAddress = "no-reply@farmconnect.local"
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "FarmConnect"
	}
	if c.Auction.BidAttempts == 0 {
		c.Auction.BidAttempts = 5
	}
	if c.Auction.SettleSchedule == "" {
		c.Auction.SettleSchedule = "0 * * * * *"
	}
	if c.Notify.QueueSize == 0 {
		c.Notify.QueueSize = 256
	}
	if c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = "localhost:4317"
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = "0.1.0"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port != "" {
		port, err := strconv.Atoi(c.Server.Port)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid server port: %q", c.Server.Port)
		}
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT secret must be at least 32 characters")
	}
	if c.Auction.BidAttempts < 1 {
		return fmt.Errorf("auction bid attempts must be positive, got %d", c.Auction.BidAttempts)
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("notify queue size must be positive, got %d", c.Notify.QueueSize)
	}
	return nil
}

// ListenAddr returns ":port", falling back to the binary's default port.
func (c *Config) ListenAddr(defaultPort string) string {
	if c.Server.Port == "" {
		return ":" + defaultPort
	}
	return ":" + c.Server.Port
}

func (c *Config) RequirePostgres() error {
	if c.Postgres.URL == "" {
		return errors.New("POSTGRES_URL is required")
	}
	return nil
}

func (c *Config) RequireRedis() error {
	if c.Redis.URL == "" {
		return errors.New("REDIS_URL is required")
	}
	return nil
}

func (c *Config) RequireKafka() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	return nil
}

func (c *Config) RequireJWTSecret() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
