package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "redis", cfg.Transport)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server:\n  port: \"9000\"\nredis:\n  addr: file-redis:6379\n"), 0o644))

	t.Setenv("REDIS_ADDR", "env-redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port, "file overrides default")
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr, "env overrides file")
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_RejectsUnknownTransport(t *testing.T) {
	t.Setenv("MATCH_TRANSPORT", "carrier-pigeon")
	_, err := Load("")
	assert.Error(t, err)
}
