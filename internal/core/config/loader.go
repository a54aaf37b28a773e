package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/mender/internal/resolve/priority"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Batch.MaxConcurrent == 0 {
		cfg.Batch.MaxConcurrent = 4
	}
	if cfg.Batch.MaxRefineAttempts == 0 {
		cfg.Batch.MaxRefineAttempts = 3
	}
	if cfg.Batch.ScanInterval == 0 {
		cfg.Batch.ScanInterval = 30 * time.Second
	}
	if cfg.Batch.BatchSize == 0 {
		cfg.Batch.BatchSize = 20
	}
	if len(cfg.Priority.UrgentLabels) == 0 && len(cfg.Priority.BugLabels) == 0 {
		defaults := priority.DefaultConfig()
		cfg.Priority.UrgentLabels = defaults.UrgentLabels
		cfg.Priority.BugLabels = defaults.BugLabels
	}
	// Jitter is not representable in YAML; loaded configs get the default
	cfg.Priority.Jitter = priority.DefaultJitter
}
