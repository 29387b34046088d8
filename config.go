package fgen

import (
	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Directory files are read from
	SourceDir string `env:"FGEN_SOURCE_DIR,default:./storage"`

	// Output directory for the local backend. Empty writes next to the source.
	DestinationDir string `env:"FGEN_DESTINATION_DIR"`

	// Output backend (local, memory, s3)
	Storage string `env:"FGEN_STORAGE,default:local"`

	// S3 output configuration
	S3Region          string `env:"FGEN_S3_REGION,default:us-east-1"`
	S3Bucket          string `env:"FGEN_S3_BUCKET"`
	S3Prefix          string `env:"FGEN_S3_PREFIX"`
	S3Endpoint        string `env:"FGEN_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"FGEN_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"FGEN_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"FGEN_S3_FORCE_PATH_STYLE,default:false"`

	// Dispatch behaviour
	FileTypeEqualDriverName bool   `env:"FGEN_FILE_TYPE_EQUAL_DRIVER_NAME,default:true"`
	ZeroConfig              bool   `env:"FGEN_ZERO_CONFIG,default:true"`
	FallbackHandler         string `env:"FGEN_FALLBACK_HANDLER"`
	Parallel                bool   `env:"FGEN_PARALLEL,default:false"`
	MaxWorkers              int    `env:"FGEN_MAX_WORKERS,default:4"`

	// Logging
	LogLevel  string `env:"FGEN_LOG_LEVEL,default:info"`
	LogFormat string `env:"FGEN_LOG_FORMAT,default:text"` // text or json

	// Watch mode
	WatchPattern    string `env:"FGEN_WATCH_PATTERN,default:*"`
	WatchDebounceMS int    `env:"FGEN_WATCH_DEBOUNCE_MS,default:500"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
