package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBundlerConfig(t *testing.T) {
	cfg := DefaultBundlerConfig()

	assert.Equal(t, 5, cfg.Executor.MaxTries)
	assert.Equal(t, time.Second, cfg.Executor.Stagger)
	assert.Equal(t, 5, cfg.Jito.SubAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Jito.SubAttemptDelay)
	assert.Len(t, cfg.Jito.Endpoints, 6)
	assert.Equal(t, "0.001", cfg.Jito.FeeSOL)
	assert.Equal(t, 15*time.Second, cfg.Launch.LUTActivationWait)
	require.NoError(t, Validate(cfg))
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundler.yaml")
	content := []byte("executor:\n  max_tries: 3\n  stagger: 500ms\nlaunch:\n  platform: letsbonk\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("BUNDLER_JITO_UUID", "test-uuid")
	t.Setenv("BUNDLER_JITO_ENDPOINTS", "https://a.example/api/v1, https://b.example/api/v1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Executor.MaxTries)
	assert.Equal(t, 500*time.Millisecond, cfg.Executor.Stagger)
	assert.Equal(t, "letsbonk", cfg.Launch.Platform)
	assert.Equal(t, "test-uuid", cfg.Jito.UUID)
	assert.Equal(t, []string{"https://a.example/api/v1", "https://b.example/api/v1"}, cfg.Jito.Endpoints)
	// untouched keys keep their defaults
	assert.Equal(t, 5, cfg.Jito.SubAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultBundlerConfig()
	cfg.Executor.MaxTries = 0
	assert.Error(t, Validate(cfg))

	cfg = DefaultBundlerConfig()
	cfg.Jito.Endpoints = []string{"ftp://nope"}
	assert.Error(t, Validate(cfg))

	cfg = DefaultBundlerConfig()
	cfg.Jito.ProxyURL = "http://proxy.example:8000"
	assert.NoError(t, Validate(cfg))
}
