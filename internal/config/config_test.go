package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
	assert.Equal(t, 5*time.Minute, cfg.RatesInterval)
	assert.Empty(t, cfg.HMACSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SOLANA_RPC_URL", "http://localhost:8899")
	t.Setenv("PENDING_TTL", "30m")
	t.Setenv("HMAC_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "http://localhost:8899", cfg.SolanaRPCURL)
	assert.Equal(t, 30*time.Minute, cfg.PendingTTL)
	assert.Equal(t, "s3cret", cfg.HMACSecret)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "solpay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_port: \"7000\"\nsolana_commitment: finalized\nrates_interval: 1m\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.AppPort)
	assert.Equal(t, "finalized", cfg.Commitment)
	assert.Equal(t, time.Minute, cfg.RatesInterval)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REQUEST_LOG_DIR=/tmp/solpay-logs\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("REQUEST_LOG_DIR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/solpay-logs", cfg.RequestLogDir)
}

func TestLoad_InvalidCommitment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SOLANA_COMMITMENT", "eventually")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MalformedDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_PORT='9090\n"), 0o644))

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
