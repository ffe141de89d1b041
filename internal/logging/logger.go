package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mikey/torrent-hook/internal/config"
)

// InitLogger initializes a logger based on configuration. The verbose flag
// forces debug level.
func InitLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	logging := cfg.GetLogging()

	level := parseLevel(logging.Level)
	if verbose {
		level = zapcore.DebugLevel
	}

	return build(level, useJSON(logging.Format, os.Stderr.Fd()))
}

// InitConsoleLogger initializes a console-friendly logger, used before the
// configuration is available
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	var level zapcore.Level
	if verbose {
		level = zapcore.DebugLevel
	} else {
		level = zapcore.InfoLevel
	}

	return build(level, jsonFormat)
}

func build(level zapcore.Level, jsonFormat bool) (*zap.Logger, error) {
	var logConfig zap.Config
	if jsonFormat {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// useJSON resolves the configured format; auto picks the console encoder
// when fd is a terminal
func useJSON(format string, fd uintptr) bool {
	switch strings.ToLower(format) {
	case "json":
		return true
	case "console":
		return false
	default:
		return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
}
