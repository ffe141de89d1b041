package config

import (
	"fmt"
	"net/mail"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"auto": true, "json": true, "console": true}
)

// Validate checks the loaded configuration and returns the first problem
// found as a *ConfigError
func (c *Config) Validate() error {
	formats := c.GetSupportedFormats()
	if len(formats) == 0 {
		return invalid("supported_formats", "at least one format is required")
	}
	for _, f := range formats {
		if f == "" {
			return invalid("supported_formats", "blank format entry")
		}
	}

	if strings.TrimSpace(c.GetString("calibre_ingest_folder")) == "" {
		return invalid("calibre_ingest_folder", "ingest folder is required")
	}

	if err := c.validateDevices(); err != nil {
		return err
	}

	if err := c.validateSMTP(); err != nil {
		return err
	}

	labels := c.GetLabels()
	if strings.TrimSpace(labels.Ingest) == "" {
		return invalid("labels.ingest", "ingest label must not be blank")
	}
	if strings.TrimSpace(labels.DevicePrefix) == "" {
		return invalid("labels.device_prefix", "device prefix must not be blank")
	}

	logging := c.GetLogging()
	if !validLevels[strings.ToLower(logging.Level)] {
		return invalid("logging.level", "unknown level %q", logging.Level)
	}
	if !validFormats[strings.ToLower(logging.Format)] {
		return invalid("logging.format", "unknown format %q", logging.Format)
	}

	return nil
}

func (c *Config) validateSMTP() error {
	smtp := c.GetSMTP()

	if err := checkAddress(smtp.Email); err != nil {
		return &ConfigError{Key: "smtp.email", Reason: "invalid email address", Err: err}
	}
	if strings.TrimSpace(smtp.Server) == "" {
		return invalid("smtp.server", "server is required")
	}
	if smtp.Port < 1 || smtp.Port > 65535 {
		return invalid("smtp.port", "port %d out of range", smtp.Port)
	}
	if smtp.Password == "" {
		return invalid("smtp.password", "password is required")
	}

	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		return &ConfigError{Key: "smtp.timeout", Reason: "invalid duration", Err: err}
	}
	if timeout <= 0 {
		return invalid("smtp.timeout", "timeout must be positive")
	}

	if smtp.CAFile != "" {
		if _, err := os.Stat(smtp.CAFile); err != nil {
			return &ConfigError{Key: "smtp.ca_file", Reason: "cannot read CA file", Err: err}
		}
	}

	return nil
}

func (c *Config) validateDevices() error {
	for device, address := range c.GetDevices().Addresses {
		if strings.TrimSpace(device) == "" {
			return invalid("kindle_emails", "blank device identifier")
		}
		if err := checkAddress(address); err != nil {
			return &ConfigError{Key: "kindle_emails." + device, Reason: "invalid email address", Err: err}
		}
	}

	return c.checkDuplicateDevices()
}

// checkDuplicateDevices looks for device identifiers that only differ in
// case. Viper folds map keys to lowercase, so the raw file is inspected.
func (c *Config) checkDuplicateDevices() error {
	path := c.ConfigFileUsed()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Reason: "failed to read config file", Err: err}
	}

	var raw struct {
		KindleEmails yaml.Node `yaml:"kindle_emails"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Not YAML; viper already parsed it, nothing to compare
		return nil
	}
	if raw.KindleEmails.Kind != yaml.MappingNode {
		return nil
	}

	seen := make(map[string]string)
	content := raw.KindleEmails.Content
	for i := 0; i+1 < len(content); i += 2 {
		device := content[i].Value
		key := strings.ToLower(strings.TrimSpace(device))
		if prev, ok := seen[key]; ok {
			return invalid("kindle_emails", "device %q duplicates %q", device, prev)
		}
		seen[key] = device
	}

	return nil
}

// checkAddress accepts bare addresses only, no display names
func checkAddress(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return err
	}
	if addr.Address != strings.TrimSpace(s) {
		return fmt.Errorf("expected a bare address, got %q", s)
	}
	return nil
}
