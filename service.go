package fgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gobeaver/beaver-kit/config"

	"github.com/gobeaver/fgen/storage/local"
)

// Builder provides a way to create Dispatcher instances with custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Config loads the configuration using the builder's prefix
func (b *Builder) Config() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New creates a new Dispatcher instance using the builder's prefix
func (b *Builder) New(opts ...Option) (*Dispatcher, error) {
	cfg, err := b.Config()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// NewFromEnv creates a Dispatcher from environment configuration
func NewFromEnv(opts ...Option) (*Dispatcher, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// New creates a Dispatcher reading from cfg.SourceDir and writing to the
// configured storage. opts are applied after the ones derived from cfg.
func New(cfg *Config, opts ...Option) (*Dispatcher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	source, err := local.Open(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}

	dest, err := CreateStorage(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	logger, err := NewLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithDestinationFS(dest),
		WithFallbackHandler(cfg.FallbackHandler),
		WithZeroConfig(cfg.ZeroConfig),
		WithFileTypeEqualDriverName(cfg.FileTypeEqualDriverName),
	}
	if cfg.Parallel {
		base = append(base, WithParallel(cfg.MaxWorkers))
	}

	return NewDispatcher(source, append(base, opts...)...), nil
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.SourceDir == "" {
		return errors.New("source directory is required")
	}
	if cfg.Storage == "" {
		return errors.New("storage is required")
	}

	switch cfg.Storage {
	case "s3":
		if cfg.S3Bucket == "" {
			return errors.New("S3 bucket is required for S3 storage")
		}
		// Access keys can be provided via IAM roles, so not always required
	default:
		if !storageRegistered(cfg.Storage) {
			return fmt.Errorf("unknown storage: %s", cfg.Storage)
		}
	}

	if cfg.MaxWorkers < 0 {
		return fmt.Errorf("max workers must not be negative: %d", cfg.MaxWorkers)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", cfg.LogFormat)
	}

	return nil
}

// NewLogger builds the slog logger described by cfg.LogLevel and
// cfg.LogFormat.
func NewLogger(cfg *Config, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}
