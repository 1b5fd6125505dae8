package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SEND_RATE_PER_MINUTE", "not-a-number")
	t.Setenv("SEND_BURST", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, 20, cfg.SendRatePerMinute)
	require.Equal(t, 3, cfg.SendBurst)
}

func TestLoadClientConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHAT_SERVER_URL", "https://chat.example.com/")
	t.Setenv("CHAT_TOKEN", "tok")
	t.Setenv("CHAT_REQUEST_TIMEOUT", "30")
	t.Setenv("CHAT_DRAFTS_PATH", filepath.Join(dir, "drafts.db"))

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	require.Equal(t, "https://chat.example.com", cfg.ServerURL)
	require.Equal(t, "tok", cfg.Token)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, filepath.Join(dir, "drafts.db"), cfg.DraftsPath)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TIMEOUT_A", "2m")
	t.Setenv("TIMEOUT_B", "-1s")

	require.Equal(t, 2*time.Minute, getEnvDuration("TIMEOUT_A", time.Second))
	require.Equal(t, time.Second, getEnvDuration("TIMEOUT_B", time.Second))
	require.Equal(t, time.Second, getEnvDuration("TIMEOUT_UNSET", time.Second))
}

func TestNormalizeEnv(t *testing.T) {
	require.Equal(t, "production", normalizeEnv(" PROD "))
	require.Equal(t, "staging", normalizeEnv("stage"))
	require.Equal(t, "test", normalizeEnv("testing"))
	require.Equal(t, "qa", normalizeEnv("QA"))
}
