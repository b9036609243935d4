package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all aguid configuration.
type Config struct {
	// Service identity
	ServiceName string `yaml:"service_name"`

	// HTTP server
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`

	// CORS
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`

	// Auth. When set, requests to the agent endpoints must carry
	// "Authorization: Bearer <token>" whose bcrypt hash matches.
	AuthTokenHash *string `yaml:"auth_token_hash"`

	// Event stream pacing
	EventDelayMs int `yaml:"event_delay_ms"`
	TextDelayMs  int `yaml:"text_delay_ms"`
	EventBuffer  int `yaml:"event_buffer"`

	// Request logging
	LogRequestBodyLimit int `yaml:"log_request_body_limit"`

	// Paths
	DataDir string `yaml:"data_dir"`

	// Retention
	RetentionDays    int    `yaml:"retention_days"`
	LogMaxAgeDays    int    `yaml:"log_max_age_days"`
	RetentionCron    string `yaml:"retention_cron"`
	RetentionEnabled bool   `yaml:"retention_enabled"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	return Config{
		ServiceName:         "aguid",
		Host:                "127.0.0.1",
		Port:                8000,
		AllowedOrigins:      []string{"*"},
		EventDelayMs:        300,
		TextDelayMs:         50,
		EventBuffer:         100,
		LogRequestBodyLimit: 64 * 1024,
		DataDir:             "./aguid.data",
		RetentionDays:       30,
		LogMaxAgeDays:       30,
		RetentionCron:       "@hourly",
		RetentionEnabled:    true,
	}
}

// LoadConfig reads and parses the configuration file.
// Resolution order: AGUID_CONFIG env → ./aguid.config.yaml → ./aguid.config.yml.
// A missing file is not an error; the defaults describe a working local server.
func LoadConfig() (*Config, error) {
	path := os.Getenv("AGUID_CONFIG")
	if path == "" {
		candidates := []string{"aguid.config.yaml", "aguid.config.yml"}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.postDeserialize()
	return &cfg, nil
}

// postDeserialize normalizes config after YAML parsing.
func (c *Config) postDeserialize() {
	if c.ServiceName == "" {
		c.ServiceName = "aguid"
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 100
	}
	if c.EventDelayMs < 0 {
		c.EventDelayMs = 0
	}
	if c.TextDelayMs < 0 {
		c.TextDelayMs = 0
	}
	if c.LogRequestBodyLimit <= 0 {
		c.LogRequestBodyLimit = 64 * 1024
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.LogMaxAgeDays <= 0 {
		c.LogMaxAgeDays = 30
	}
	if c.RetentionCron == "" {
		c.RetentionCron = "@hourly"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

// Validate checks for configuration errors.
func (c *Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("port must be set")
	}
	// Require auth for non-local hosts; the event stream is otherwise open
	// to anyone who can reach the socket.
	if !isLocalHost(c.Host) {
		if c.AuthTokenHash == nil || *c.AuthTokenHash == "" {
			return fmt.Errorf("auth_token_hash is required when host is not localhost")
		}
	}
	return nil
}

func isLocalHost(host string) bool {
	return host == "127.0.0.1" || host == "localhost" || host == "::1" || host == ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "aguid.db")
}

// LogsDir returns the rotated-log directory path.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// EventDelay returns the pacing delay between lifecycle events.
func (c *Config) EventDelay() time.Duration {
	return time.Duration(c.EventDelayMs) * time.Millisecond
}

// TextDelay returns the pacing delay between text content deltas.
func (c *Config) TextDelay() time.Duration {
	return time.Duration(c.TextDelayMs) * time.Millisecond
}
