package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Events     EventsConfig     `yaml:"events"`
	Queue      QueueConfig      `yaml:"queue"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	HTTP       HTTPConfig       `yaml:"http"`
}

type ServiceConfig struct {
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	// SeedFile lists the orders the memory driver starts with. The memory driver owns no order
	// intake, so without it every Enqueue answers not found.
	SeedFile string `yaml:"seed_file"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Prefetch int    `yaml:"prefetch"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RedisConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

type EventsConfig struct {
	// Driver selects where status updates go: "rabbitmq", "kafka" or "none".
	Driver string `yaml:"driver"`
}

type PreparationConfig struct {
	BaseMinutes          int `yaml:"base_minutes"`
	PerAdditionalMinutes int `yaml:"per_additional_minutes"`
}

type QueueConfig struct {
	Preparation     PreparationConfig `yaml:"preparation"`
	MaxAttempts     int               `yaml:"max_attempts"`
	RetryBackoff    time.Duration     `yaml:"retry_backoff"`
	ReadyWindow     time.Duration     `yaml:"ready_window"`
	Retention       time.Duration     `yaml:"retention"`
	PreparerTimeout time.Duration     `yaml:"preparer_timeout"`
}

func (c QueueConfig) Policy() domain.PreparationPolicy {
	return domain.PreparationPolicy{
		BaseMinutes:          c.Preparation.BaseMinutes,
		PerAdditionalMinutes: c.Preparation.PerAdditionalMinutes,
	}
}

type ReconcilerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	ReorderAfterRepair *bool         `yaml:"reorder_after_repair"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Load reads path, applies .env and environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	LoadEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	applyEnv(&cfg)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Service.LogLevel == "" {
		c.Service.LogLevel = "INFO"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Prefetch == 0 {
		c.RabbitMQ.Prefetch = 1
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "coffee.queue.status"
	}
	if c.Redis.SummaryTTL == 0 {
		c.Redis.SummaryTTL = 5 * time.Second
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "rabbitmq"
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Queue.RetryBackoff == 0 {
		c.Queue.RetryBackoff = 50 * time.Millisecond
	}
	if c.Queue.ReadyWindow == 0 {
		c.Queue.ReadyWindow = 15 * time.Minute
	}
	if c.Queue.Retention == 0 {
		c.Queue.Retention = 7 * 24 * time.Hour
	}
	if c.Queue.PreparerTimeout == 0 {
		c.Queue.PreparerTimeout = 10 * time.Minute
	}
	if c.Reconciler.Interval == 0 {
		c.Reconciler.Interval = time.Minute
	}
	if c.Reconciler.ReorderAfterRepair == nil {
		reorder := true
		c.Reconciler.ReorderAfterRepair = &reorder
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
}

// Validate fails on anything the service cannot start without. The preparation policy has no default.
func (c *Config) Validate() error {
	if err := c.Queue.Policy().Validate(); err != nil {
		return fmt.Errorf("queue.preparation: %w", err)
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.SeedFile != "" {
			return fmt.Errorf("database.seed_file is only read by the memory driver: %w", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("unknown database driver %q: %w", c.Database.Driver, domain.ErrConfig)
	}

	switch c.Events.Driver {
	case "rabbitmq", "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("events driver kafka needs kafka.brokers: %w", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("unknown events driver %q: %w", c.Events.Driver, domain.ErrConfig)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis is enabled without redis.addr: %w", domain.ErrConfig)
	}
	return nil
}
