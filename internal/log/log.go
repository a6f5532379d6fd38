// Package log builds the process logger: zap with a console or JSON
// encoder, optionally teed into a rotating file.
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls level, encoding and file rotation.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console or json
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", c.Format)
	}
	return nil
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func fileWriter(c Config) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(c.File), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB, // megabytes
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays, // days
		Compress:   c.Compress,
	}), nil
}

// New builds a logger writing to stderr and, when File is set, to a
// rotated JSON file.
func New(c Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	atom := zap.NewAtomicLevelAt(level)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(c.Format), zapcore.Lock(os.Stderr), atom),
	}
	if c.File != "" {
		w, err := fileWriter(c)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder("json"), w, atom))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Must is New for command setup, falling back to a no-op logger.
func Must(c Config) *zap.Logger {
	l, err := New(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return zap.NewNop()
	}
	return l
}
