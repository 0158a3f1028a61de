package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/config"
	"github.com/alejandrodnm/polybot/internal/exchange"
)

const sampleYAML = `
output_directory: /tmp/example
log:
  level: debug
  format: json
exchanges:
  - name: venue-a
    rates_polling: UPDATE_RATES_IMPL
    rates_polling_period_ms: 1000
    order_polling_period_ms: 2000
    properties_polling_period_ms: 3600000
    order_register_timeout_ms: 5000
    read_only: true
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesYAMLAndFillsDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/example", cfg.OutputDirectory)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	require.Len(t, cfg.Exchanges, 1)
	assert.Equal(t, "venue-a", cfg.Exchanges[0].Name)
	assert.True(t, cfg.Exchanges[0].ReadOnly)
}

func TestLoad_AppliesEngineDefaultsWhenUnset(t *testing.T) {
	path := writeTempConfig(t, `exchanges: [{name: bare}]`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.OutputDirectory)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 30_000, cfg.Exchanges[0].OrderRegisterTimeoutMs)
}

func TestLoad_ErrorsOnMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesTakePrecedence(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OUTPUT_DIRECTORY", "/override")
	t.Setenv("READ_ONLY", "false")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/override", cfg.OutputDirectory)
	assert.False(t, cfg.Exchanges[0].ReadOnly)
}

func TestExchangeConfig_ToExchangeConfig_ConvertsDurationsAndFallsBackOutputDir(t *testing.T) {
	ec := config.ExchangeConfig{
		Name:                 "venue-b",
		RatesPolling:         "UPDATE_RATES_SPECIFIC_PAIR_IMPL",
		RatesPollingPeriodMs: 1500,
		OrderRegisterTimeoutMs: 9000,
	}

	out := ec.ToExchangeConfig("/fallback")
	assert.Equal(t, "venue-b", out.Name)
	assert.Equal(t, "/fallback", out.OutputDirectory)
	assert.Equal(t, exchange.RatesPerPair, out.RatesPolling)
	assert.Equal(t, 1500*time.Millisecond, out.RatesPollingPeriod)
	assert.Equal(t, 9000*time.Millisecond, out.OrderRegisterTimeout)
}

func TestExchangeConfig_ToExchangeConfig_PrefersOwnOutputDirectory(t *testing.T) {
	ec := config.ExchangeConfig{Name: "venue-c", OutputDirectory: "/own"}
	out := ec.ToExchangeConfig("/fallback")
	assert.Equal(t, "/own", out.OutputDirectory)
}
