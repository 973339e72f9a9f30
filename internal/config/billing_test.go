package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBillingConfigHolderDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, DefaultBillingConfig(), got)
}

func TestNewBillingConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := []byte("billing:\n  scheduler:\n    runInterval: 1m\n    batchSize: 25\n    timezone: UTC\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	got := holder.Get().Scheduler
	assert.Equal(t, time.Minute, got.RunInterval)
	assert.Equal(t, 25, got.BatchSize)
	assert.Equal(t, 10*time.Minute, got.TickLockTTL)
}

func TestNewBillingConfigHolderRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := []byte("billing:\n  scheduler:\n    batchSize: -1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))

	_, err := NewBillingConfigHolder(zap.NewNop())
	assert.Error(t, err)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ASAAS_ALLOW_PIX", "true")
	t.Setenv("GATEWAY_TIMEOUT", "1500")
	t.Setenv("ASAAS_BASE_URL", "https://api.asaas.com/v3/")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	assert.True(t, cfg.Asaas.AllowPix)
	assert.Equal(t, 1500*time.Millisecond, cfg.Gateway.Timeout)
	assert.Equal(t, "https://api.asaas.com/v3", cfg.Asaas.BaseURL)
	assert.False(t, cfg.Redis.Enabled())
}
