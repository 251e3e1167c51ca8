package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "switchbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Programs.LogHistory)
	assert.Equal(t, 2*time.Second, cfg.Programs.DisplaceTimeout)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
serial:
  port: /dev/ttyUSB0
redis:
  addr: localhost:6379
  lease_ttl: 10s
programs:
  output_dir: /tmp/switchbot
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 10*time.Second, cfg.Redis.LeaseTTL)
	assert.Equal(t, "/tmp/switchbot", cfg.Programs.OutputDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SWITCHBOT_PORT", "7000")
	t.Setenv("SWITCHBOT_LOG_LEVEL", "debug")
	t.Setenv("SWITCHBOT_REDIS_ADDR", "redis:6379")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 70000\nlogging:\n  format: xml\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.format")

	t.Setenv("SWITCHBOT_PORT", "not-a-number")
	_, err = Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
