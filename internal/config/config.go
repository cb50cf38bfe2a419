package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Http struct {
	Host string `validate:"required"`
	Port int    `validate:"required,gt=0"`
}

func (h Http) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type Cors struct {
	AllowedOrigins []string
}

type Storage struct {
	Driver      string `validate:"required,oneof=memory postgres"`
	SeedDrivers bool
}

type Postgres struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required,gt=0"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Database string `validate:"required"`
	SSLMode  string `validate:"required"`
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

type Kafka struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type Cache struct {
	Capacity int           `validate:"gt=0"`
	TTL      time.Duration `validate:"gt=0"`
}

type WS struct {
	SendBuffer int `validate:"gt=0"`
}

type Config struct {
	Env     string `validate:"required,oneof=development stage production"`
	Http    Http
	Cors    Cors
	Storage Storage
	// Validated on demand, only when the postgres driver is selected.
	Postgres Postgres `validate:"-"`
	Kafka    Kafka
	Cache    Cache
	WS       WS
}

func New() (*Config, error) {
	conf := &Config{
		Env: env("ENV", "development"),
		Http: Http{
			Host: env("HTTP_HOST", "0.0.0.0"),
			Port: envInt("HTTP_PORT", 8080),
		},
		Cors: Cors{
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Storage: Storage{
			Driver:      env("STORAGE_DRIVER", "memory"),
			SeedDrivers: envBool("STORAGE_SEED_DRIVERS", true),
		},
		Postgres: Postgres{
			Host:     env("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			User:     env("POSTGRES_USER", "postgres"),
			Password: env("POSTGRES_PASSWORD", ""),
			Database: env("POSTGRES_DB", "dispatch"),
			SSLMode:  env("POSTGRES_SSLMODE", "disable"),
		},
		Kafka: Kafka{
			Enabled:      envBool("KAFKA_ENABLED", false),
			Brokers:      envList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:        env("KAFKA_TOPIC", "delivery-events"),
			BatchTimeout: envDuration("KAFKA_BATCH_TIMEOUT", 100*time.Millisecond),
		},
		Cache: Cache{
			Capacity: envInt("CACHE_CAPACITY", 1024),
			TTL:      envDuration("CACHE_TTL", 5*time.Minute),
		},
		WS: WS{
			SendBuffer: envInt("WS_SEND_BUFFER", 16),
		},
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// Postgres settings only matter when that driver is selected, so the
	// struct is validated separately.
	if c.Storage.Driver == "postgres" {
		if err := validate.Struct(c.Postgres); err != nil {
			return fmt.Errorf("invalid postgres config: %w", err)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid kafka config: brokers are required when enabled")
	}
	return nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return def
}
