package config

import (
	"fmt"
	"os"
	"strconv"

	"path/filepath"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

type AMQPConfig struct {
	// URL is the broker connection string. Empty disables AMQP
	// publishing; events go to the log instead.
	URL      string
	Exchange string
}

type ServerConfig struct {
	Addr           string
	MigrationsPath string
}

type Config struct {
	DB     DBConfig
	AMQP   AMQPConfig
	Server ServerConfig
}

func Load() (*Config, error) {
	// config.env is optional; system environment variables win in
	// deployed environments.
	_ = godotenv.Load(filepath.Join("config.env"))

	dbCfg, err := loadDBConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		DB: *dbCfg,
		AMQP: AMQPConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "banking.transaction.events"),
		},
		Server: ServerConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
	}, nil
}

func loadDBConfig() (*DBConfig, error) {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdle, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	return &DBConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
