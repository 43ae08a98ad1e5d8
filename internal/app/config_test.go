package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "127.0.0.1:6379", cfg.Redis.Address)
	require.Equal(t, 10*time.Second, cfg.Attendance.RotationInterval)
	require.Equal(t, 16, cfg.Attendance.TokenBytes)
	require.Equal(t, time.Second, cfg.Attendance.LivenessPoll)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9100
  log_level: debug
attendance:
  rotation_interval: 5s
  token_bytes: 32
  liveness_poll: 500ms
redis:
  address: redis.internal:6380
  db: 2
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 5*time.Second, cfg.Attendance.RotationInterval)
	require.Equal(t, 32, cfg.Attendance.TokenBytes)
	require.Equal(t, 500*time.Millisecond, cfg.Attendance.LivenessPoll)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Address)
	require.Equal(t, 2, cfg.Redis.DB)
}

func TestLoadConfigRejectsBadRotationInterval(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
attendance:
  rotation_interval: 100ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rotation_interval")
}
