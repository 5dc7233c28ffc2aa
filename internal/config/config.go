package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// DefaultConfigPath is the config file looked up when no flag is given.
const DefaultConfigPath = "./config.toml"

// Load reads configuration from a TOML file, applies defaults, and expands
// environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// config file exists on disk.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	expandEnvVars(&cfg)
	return &cfg
}

// LoadOrDefault loads the file at path if it exists, otherwise returns the
// built-in defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Server.Listen == "" {
		errors = append(errors, fmt.Errorf("server.listen is required"))
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		errors = append(errors, fmt.Errorf("server.base_path must start with '/': %s", c.Server.BasePath))
	}

	if len(c.Auth.APIKeys) == 0 {
		errors = append(errors, fmt.Errorf("auth.api_keys cannot be empty"))
	} else {
		for _, key := range c.Auth.APIKeys {
			if key == "" {
				errors = append(errors, fmt.Errorf("auth.api_keys contains an empty key"))
			}
		}
	}

	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}
	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}
	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Staging.Path == "" {
		errors = append(errors, fmt.Errorf("staging.path is required"))
	} else if err := validatePath(c.Staging.Path, "staging.path"); err != nil {
		errors = append(errors, err)
	}
	if c.Storage.Path == "" {
		errors = append(errors, fmt.Errorf("storage.path is required"))
	} else if err := validatePath(c.Storage.Path, "storage.path"); err != nil {
		errors = append(errors, err)
	}

	if c.Datasets.SampleRows <= 0 {
		errors = append(errors, fmt.Errorf("datasets.sample_rows must be positive, got %d", c.Datasets.SampleRows))
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		errors = append(errors, fmt.Errorf("fetch.timeout_seconds must be positive, got %d", c.Fetch.TimeoutSeconds))
	}
	if c.Fetch.MaxResponseSize <= 0 {
		errors = append(errors, fmt.Errorf("fetch.max_response_size must be positive, got %d", c.Fetch.MaxResponseSize))
	}
	if c.Fetch.MaxAttempts <= 0 {
		errors = append(errors, fmt.Errorf("fetch.max_attempts must be positive, got %d", c.Fetch.MaxAttempts))
	}

	if c.Refresh.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Refresh.Schedule); err != nil {
			errors = append(errors, fmt.Errorf("invalid refresh.schedule %q: %w", c.Refresh.Schedule, err))
		}
	}

	if c.Workers.PoolSize <= 0 {
		errors = append(errors, fmt.Errorf("workers.pool_size must be positive, got %d", c.Workers.PoolSize))
	}
	if c.Workers.QueueSize <= 0 {
		errors = append(errors, fmt.Errorf("workers.queue_size must be positive, got %d", c.Workers.QueueSize))
	}

	if c.Crontab.Endpoint != "" &&
		!strings.HasPrefix(c.Crontab.Endpoint, "http://") &&
		!strings.HasPrefix(c.Crontab.Endpoint, "https://") {
		errors = append(errors, fmt.Errorf("crontab.endpoint must start with http:// or https://"))
	}

	return errors
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.HasPrefix(path, "~") {
		return nil
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}
	return nil
}

// applyDefaults fills in defaults for every unset field.
func applyDefaults(c *Config) {
	if c.Server.Listen == "" {
		c.Server.Listen = ":5000"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/backup"
	}

	if len(c.Auth.APIKeys) == 0 {
		c.Auth.APIKeys = []string{"${GF_BACKEND_API_KEY:ZIMMERMAN}"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Staging.Path == "" {
		c.Staging.Path = "./staging"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/datasets.db"
	}

	if c.Datasets.SampleRows == 0 {
		c.Datasets.SampleRows = 10
	}

	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = 300
	}
	if c.Fetch.MaxResponseSize == 0 {
		c.Fetch.MaxResponseSize = 512 << 20 // 512 MB, the largest GF extract is well below this
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "data-explorer-backend/1.0"
	}
	if c.Fetch.MaxAttempts == 0 {
		c.Fetch.MaxAttempts = 3
	}

	if c.Refresh.Schedule == "" {
		c.Refresh.Schedule = "30 9 * * *"
	}
	if c.Refresh.Timezone == "" {
		c.Refresh.Timezone = "Local"
	}

	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = 1
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 16
	}

	if c.Crontab.Endpoint == "" {
		c.Crontab.Endpoint = "http://localhost:5000/backup/update-tgf-datasets"
	}
}

// expandEnvVars expands ${VAR} and ${VAR:default} references in the fields
// that commonly carry secrets or machine-specific paths.
func expandEnvVars(c *Config) {
	for i, key := range c.Auth.APIKeys {
		c.Auth.APIKeys[i] = expandEnv(key)
	}
	c.Staging.Path = expandHome(expandEnv(c.Staging.Path))
	c.Storage.Path = expandHome(expandEnv(c.Storage.Path))
	c.Datasets.RegistryPath = expandHome(expandEnv(c.Datasets.RegistryPath))
	c.Crontab.Endpoint = expandEnv(c.Crontab.Endpoint)
	c.Logging.Output = expandHome(c.Logging.Output)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	return os.Getenv(s[2:end])
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
