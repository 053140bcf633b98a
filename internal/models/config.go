package models

import "time"

// Config is the full process configuration, loaded from the environment.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Extract  ExtractConfig
	Storage  StorageConfig
	Notion   NotionConfig
}

type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type ExtractConfig struct {
	Model           string
	MaxIterations   int
	DefaultTimezone string
}

type StorageConfig struct {
	Bucket string
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

// Enabled reports whether Notion export is configured.
func (n NotionConfig) Enabled() bool {
	return n.Token != "" && n.DatabaseID != ""
}
