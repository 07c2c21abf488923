package main

import (
	"go.uber.org/zap"

	"github.com/phanatic/phanatic/internal/config"
)

// loadConfig returns the config file named by --config, or the defaults
// when no file is given. Command flags are applied by the caller.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Debug("Loaded config", zap.String("path", configPath))
	}
	return cfg, nil
}
