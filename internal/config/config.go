package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/gmail-sweeper/")
	v.AddConfigPath("$HOME/.gmail-sweeper")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("GMAIL_SWEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Credentials defaults
	v.SetDefault("google_credentials_path", "")
	v.SetDefault("domain", "")
	v.SetDefault("check_interval_seconds", 300)
	v.SetDefault("start_date", "")

	// Gmail client defaults
	v.SetDefault("gmail.token_cache_path", "/var/lib/gmail-sweeper/token_cache.json")

	// Sweep defaults
	v.SetDefault("sweep.action", "delete")
	v.SetDefault("sweep.policy_path", "/etc/gmail-sweeper/policy.yaml")
	v.SetDefault("sweep.advance_watermark", true)

	// Audit defaults
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.type", "memory")
	v.SetDefault("audit.retention", "720h")
	v.SetDefault("audit.cleanup_frequency", "1h")
	v.SetDefault("audit.sqlite_path", "/var/lib/gmail-sweeper/audit.db")
	v.SetDefault("audit.mysql_dsn", "user:password@tcp(localhost:3306)/gmail_sweeper")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
