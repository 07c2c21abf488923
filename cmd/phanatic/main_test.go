package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/phanatic/phanatic/internal/config"
	"github.com/phanatic/phanatic/internal/ledger"
)

func TestNewLogger(t *testing.T) {
	quiet, err := newLogger(false)
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

	debug, err := newLogger(true)
	require.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))
}

func TestApplyRunFlags_OnlyChangedFlagsOverride(t *testing.T) {
	require.NoError(t, runCommand.ParseFlags([]string{
		"--input", "/data/reads",
		"--filter-length", "2000",
		"--mapping=false",
		"--re-assembly",
		"--barcode=false",
	}))

	cfg := config.Default()
	cfg.OutputDir = "/from/config"
	applyRunFlags(runCommand, &cfg)

	assert.Equal(t, "/data/reads", cfg.InputDir)
	assert.Equal(t, "/from/config", cfg.OutputDir, "unset flag keeps config value")
	assert.Equal(t, 2000, cfg.FilterLength)
	assert.False(t, cfg.Pipeline.Mapping)
	assert.True(t, cfg.Pipeline.ReAssembly)
	assert.False(t, cfg.Pipeline.Barcode)
	assert.True(t, cfg.Pipeline.Normalise, "unset toggle keeps default")
	assert.Equal(t, 100, cfg.TargetCoverage)
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	configPath = ""
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestRecordConfigError_WritesLedger(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")

	recordConfigError(&cfg, &config.ConfigurationError{Field: "input_dir", Message: "is required"})

	entries, err := ledger.ReadEntries(filepath.Join(cfg.OutputDir, "phanatic_log.tsv"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stageConfiguration, entries[0].Stage)
	assert.Equal(t, "config error: 'input_dir' is required", entries[0].Message)
}

func TestRecordConfigError_NoOutputDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = ""
	assert.NotPanics(t, func() {
		recordConfigError(&cfg, &config.ConfigurationError{Field: "output_dir", Message: "is required"})
	})
}

func TestEnvironmentIsHermetic(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "AWS_ENDPOINT_URL_S3"} {
		value, set := os.LookupEnv(key)
		assert.True(t, set, "%s stays set so .env cannot fill it", key)
		assert.Empty(t, value, key)
	}
}
