package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "GBP", cfg.FX.BaseCurrency)
	assert.Equal(t, []string{"USD", "EUR", "MAD"}, cfg.FX.TargetCurrencies)
	assert.Equal(t, "data/raw", cfg.Ingestion.RawDataPath)
	assert.Equal(t, "retail_dw", cfg.GCP.DatasetID)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 0.8, cfg.CDC.SplitRatio)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BASE_CURRENCY", "EUR")
	t.Setenv("TARGET_CURRENCIES", "USD, GBP")
	t.Setenv("CDC_SPLIT_RATIO", "0.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.FX.BaseCurrency)
	assert.Equal(t, []string{"USD", "GBP"}, cfg.FX.TargetCurrencies)
	assert.Equal(t, 0.5, cfg.CDC.SplitRatio)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("split ratio out of range", func(t *testing.T) {
		t.Setenv("CDC_SPLIT_RATIO", "1.5")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "split ratio")
	})

	t.Run("malformed currency code", func(t *testing.T) {
		t.Setenv("TARGET_CURRENCIES", "DOLLARS")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3-letter")
	})

	t.Run("unknown log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log level")
	})
}
