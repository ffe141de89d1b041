package config

import (
	"time"

	"github.com/mikey/torrent-hook/internal/core"
)

// SMTPConfig represents the SMTP submission account used for device deliveries
type SMTPConfig struct {
	Email    string
	Server   string
	Port     int
	Password string
	Timeout  time.Duration
	Subject  string
	CAFile   string
}

// LabelsConfig represents the label vocabulary
type LabelsConfig struct {
	Ingest       string
	DevicePrefix string
}

// IngestConfig represents the local ingest copy settings
type IngestConfig struct {
	Folder    string
	Overwrite bool
}

// DevicesConfig represents the device directory settings
type DevicesConfig struct {
	Addresses map[string]string
	Strict    bool
}

// LoggingConfig represents the logging settings
type LoggingConfig struct {
	Level  string
	Format string
}

// GetSupportedFormats returns the configured file extensions, uppercase and
// without a leading dot
func (c *Config) GetSupportedFormats() []string {
	raw := c.GetStringSlice("supported_formats")
	formats := make([]string, len(raw))
	for i, f := range raw {
		formats[i] = core.NormalizeFormat(f)
	}
	return formats
}

// GetSMTP returns the SMTP configuration
func (c *Config) GetSMTP() SMTPConfig {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		timeout = 0
	}

	return SMTPConfig{
		Email:    c.GetString("smtp.email"),
		Server:   c.GetString("smtp.server"),
		Port:     c.GetInt("smtp.port"),
		Password: c.GetString("smtp.password"),
		Timeout:  timeout,
		Subject:  c.GetString("smtp.subject"),
		CAFile:   c.GetString("smtp.ca_file"),
	}
}

// GetLabels returns the label vocabulary
func (c *Config) GetLabels() LabelsConfig {
	return LabelsConfig{
		Ingest:       c.GetString("labels.ingest"),
		DevicePrefix: c.GetString("labels.device_prefix"),
	}
}

// GetIngest returns the ingest configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		Folder:    c.GetString("calibre_ingest_folder"),
		Overwrite: c.GetBool("ingest.overwrite"),
	}
}

// GetDevices returns the device configuration. Device identifiers are
// lowercase.
func (c *Config) GetDevices() DevicesConfig {
	return DevicesConfig{
		Addresses: c.GetStringMapString("kindle_emails"),
		Strict:    c.GetBool("devices.strict"),
	}
}

// RequireAllDelivered reports whether cleanup needs every action to succeed
func (c *Config) RequireAllDelivered() bool {
	return c.GetBool("cleanup.require_all_delivered")
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
