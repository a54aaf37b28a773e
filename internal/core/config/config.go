package config

import (
	"time"

	"github.com/vietddude/mender/internal/infra/forge"
	"github.com/vietddude/mender/internal/infra/model"
	redisclient "github.com/vietddude/mender/internal/infra/redis"
	"github.com/vietddude/mender/internal/infra/storage/postgres"
	"github.com/vietddude/mender/internal/resolve/priority"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Batch    BatchConfig        `yaml:"batch"`
	Priority priority.Config    `yaml:"priority"`
	Forge    forge.Config       `yaml:"forge"`
	Model    model.Config       `yaml:"model"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BatchConfig holds batch scheduling settings.
type BatchConfig struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	MaxRefineAttempts int           `yaml:"max_refine_attempts"`
	Deadline          time.Duration `yaml:"deadline"` // 0 = none
	ScanInterval      time.Duration `yaml:"scan_interval"`
	BatchSize         int           `yaml:"batch_size"`
	Retention         time.Duration `yaml:"retention"` // 0 = keep history forever
}
