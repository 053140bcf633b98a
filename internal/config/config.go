package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// Load builds the process configuration from environment variables.
// Callers that want .env support load it first (godotenv) before calling.
func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	readTimeout, err := getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	idleTimeout, err := getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "openfinance.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			PingTimeout:     pingTimeout,
		},
		Server: models.ServerConfig{
			Port:         getEnvString("PORT", "8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		Extract: models.ExtractConfig{
			Model:           getEnvString("EXTRACTION_MODEL", "gemini-2.5-flash"),
			MaxIterations:   getEnvInt("EXTRACTION_MAX_ITERATIONS", 3),
			DefaultTimezone: getEnvString("DEFAULT_TIMEZONE", "America/New_York"),
		},
		Storage: models.StorageConfig{
			Bucket: getEnvString("GCS_BUCKET", ""),
		},
		Notion: models.NotionConfig{
			Token:      getEnvString("NOTION_TOKEN", ""),
			DatabaseID: getEnvString("NOTION_NET_WORTH_DATABASE_ID", ""),
		},
	}, nil
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration for %s: %w", key, err)
	}
	return d, nil
}
