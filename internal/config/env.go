package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "COFFEEQ_"

// LoadEnv loads .env into the process environment when the file exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using system environment")
	}
}

func GetEnv(key, defaultVal string) string {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("ignoring %s%s=%q: not a number", envPrefix, key, val)
		return defaultVal
	}
	return n
}

func applyEnv(cfg *Config) {
	cfg.Service.LogLevel = GetEnv("LOG_LEVEL", cfg.Service.LogLevel)

	cfg.Database.Driver = GetEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.SeedFile = GetEnv("DB_SEED_FILE", cfg.Database.SeedFile)
	cfg.Database.Host = GetEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = GetEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = GetEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = GetEnv("DB_NAME", cfg.Database.Database)

	cfg.RabbitMQ.Host = GetEnv("RABBITMQ_HOST", cfg.RabbitMQ.Host)
	cfg.RabbitMQ.Port = getEnvInt("RABBITMQ_PORT", cfg.RabbitMQ.Port)
	cfg.RabbitMQ.User = GetEnv("RABBITMQ_USER", cfg.RabbitMQ.User)
	cfg.RabbitMQ.Password = GetEnv("RABBITMQ_PASSWORD", cfg.RabbitMQ.Password)

	if brokers := GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	cfg.Redis.Addr = GetEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Events.Driver = GetEnv("EVENTS_DRIVER", cfg.Events.Driver)
	cfg.HTTP.Port = getEnvInt("HTTP_PORT", cfg.HTTP.Port)
}
