// Package config provides configuration loading and validation for the
// Data Explorer backend. It supports TOML configuration files with
// environment variable expansion, default values, and validation.
//
// Configuration structure:
//   - [server]: HTTP listen address and base path
//   - [auth]: accepted Authorization header values
//   - [logging]: logging level, format, and output
//   - [staging]: staging directory for downloaded dataset files
//   - [storage]: sqlite database location
//   - [datasets]: dataset catalog override and sampling
//   - [fetch]: dataset download client settings
//   - [refresh]: scheduled refresh settings
//   - [workers]: worker pool sizing
//   - [metrics]: prometheus endpoint toggle
//   - [crontab]: system crontab installer settings
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax. For example: api_keys = ["${GF_BACKEND_API_KEY:ZIMMERMAN}"]
package config

// Config represents the main application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Logging  LoggingConfig  `toml:"logging"`
	Staging  StagingConfig  `toml:"staging"`
	Storage  StorageConfig  `toml:"storage"`
	Datasets DatasetsConfig `toml:"datasets"`
	Fetch    FetchConfig    `toml:"fetch"`
	Refresh  RefreshConfig  `toml:"refresh"`
	Workers  WorkersConfig  `toml:"workers"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Crontab  CrontabConfig  `toml:"crontab"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen   string `toml:"listen"`
	BasePath string `toml:"base_path"`
}

// AuthConfig lists the accepted Authorization header values.
type AuthConfig struct {
	APIKeys []string `toml:"api_keys"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// StagingConfig configures the staging directory where downloaded dataset
// files and metadata.json live.
type StagingConfig struct {
	Path string `toml:"path"`
}

// StorageConfig configures the sqlite store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// DatasetsConfig configures the dataset catalog.
type DatasetsConfig struct {
	// RegistryPath points at an optional YAML file replacing the built-in
	// Global Fund catalog.
	RegistryPath string `toml:"registry_path"`
	SampleRows   int    `toml:"sample_rows"`
}

// FetchConfig configures the dataset download client.
type FetchConfig struct {
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxResponseSize int64  `toml:"max_response_size"`
	UserAgent       string `toml:"user_agent"`
	MaxAttempts     int    `toml:"max_attempts"`
}

// RefreshConfig configures the in-process refresh scheduler.
type RefreshConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
	Timezone string `toml:"timezone"`
}

// WorkersConfig configures the worker pool.
type WorkersConfig struct {
	PoolSize  int `toml:"pool_size"`
	QueueSize int `toml:"queue_size"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// CrontabConfig configures the system crontab installer.
type CrontabConfig struct {
	Endpoint string `toml:"endpoint"`
}
