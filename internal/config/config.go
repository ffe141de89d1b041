package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfigPath names the environment variable holding the config file path
const EnvConfigPath = "CONFIG_PATH"

// ConfigError reports an unusable configuration. It is fatal before any
// delivery is attempted.
type ConfigError struct {
	Key    string // Configuration key at fault, empty for file level errors
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg += " for " + e.Key
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New loads the configuration from path. An empty path falls back to
// CONFIG_PATH and then to config.yaml in the standard search locations.
func New(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
		v.AddConfigPath("/etc/torrent-hook/")
		v.AddConfigPath("$HOME/.torrent-hook")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("TORRENT_HOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Reason: "config file not found", Err: err}
		}
		return nil, &ConfigError{Reason: "failed to read config file", Err: err}
	}

	cfg := &Config{v: v}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	folder := cfg.GetString("calibre_ingest_folder")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, &ConfigError{Key: "calibre_ingest_folder", Reason: "cannot create ingest folder", Err: err}
	}

	return cfg, nil
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
	// SMTP defaults
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout", "30s")
	v.SetDefault("smtp.subject", "Your Book")
	v.SetDefault("smtp.ca_file", "")

	// Label vocabulary defaults
	v.SetDefault("labels.ingest", "Add to Calibre")
	v.SetDefault("labels.device_prefix", "Send to ")

	// Policy defaults
	v.SetDefault("ingest.overwrite", true)
	v.SetDefault("devices.strict", false)
	v.SetDefault("cleanup.require_all_delivered", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
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

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetStringMapString gets a string map value from the configuration
func (c *Config) GetStringMapString(key string) map[string]string {
	return c.v.GetStringMapString(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}

// ConfigFileUsed returns the path of the loaded configuration file
func (c *Config) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

func invalid(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}
