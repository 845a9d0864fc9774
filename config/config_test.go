package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "EUR/USD", cfg.Calculator.Pair)
	assert.Equal(t, 1.0, cfg.Calculator.TPPercent)
	assert.Equal(t, 14, cfg.Calculator.ATRPeriod)
	assert.Equal(t, "simple", cfg.Calculator.ATRMethod)
	assert.Equal(t, "D", cfg.OANDA.Granularity)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"zero period", func(c *Config) { c.Calculator.ATRPeriod = 0 }, "calculator.atr_period must be positive"},
		{"wilder method", func(c *Config) { c.Calculator.ATRMethod = "wilder" }, ""},
		{"unknown method", func(c *Config) { c.Calculator.ATRMethod = "ema" }, "calculator.atr_method must be"},
		{"count too small", func(c *Config) { c.OANDA.Count = 14 }, "oanda.count must exceed"},
		{"count too large", func(c *Config) { c.OANDA.Count = 6000 }, "oanda.count cannot exceed 5000"},
		{"no retries", func(c *Config) { c.OANDA.Retries = 0 }, "oanda.retries"},
		{"bad ttl", func(c *Config) { c.Cache.TTL = "soon" }, "cache.ttl"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "postgres" }, "journal.type must be"},
		{"csv without file", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }, "journal file required"},
		{"sqlite without path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }, "journal db_path required"},
		{"no journal", func(c *Config) { c.Journal = JournalConfig{Type: "none"} }, ""},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
		{"yml format", ".yml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Calculator.Pair = "USD/JPY"
			cfg.Calculator.TPPercent = 1.5
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Calculator, loaded.Calculator)
			assert.Equal(t, cfg.OANDA, loaded.OANDA)
			assert.Equal(t, cfg.Journal, loaded.Journal)
		})
	}
}

func TestLoadFromFile_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calculator:\n  pair: GBP/USD\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "GBP/USD", cfg.Calculator.Pair)
	assert.Equal(t, 14, cfg.Calculator.ATRPeriod)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calculator: [unclosed"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PIPCALC_OANDA_TOKEN", "secret")
	t.Setenv("PIPCALC_SERVER_ADDR", ":9999")
	t.Setenv("PIPCALC_CALCULATOR_TP_PERCENT", "2.5")
	t.Setenv("PIPCALC_JOURNAL_TYPE", "none")
	t.Setenv("PIPCALC_CALCULATOR_ATR_METHOD", "wilder")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.OANDA.Token)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 2.5, cfg.Calculator.TPPercent)
	assert.Equal(t, "none", cfg.Journal.Type)
	assert.Equal(t, "wilder", cfg.Calculator.ATRMethod)
}

func TestLoad_EnvInvalid(t *testing.T) {
	t.Setenv("PIPCALC_CALCULATOR_ATR_PERIOD", "fourteen")

	_, err := Load("")
	assert.Error(t, err)
}

func TestCacheParseTTL(t *testing.T) {
	tests := []struct {
		ttl     string
		want    time.Duration
		wantErr bool
	}{
		{"30m", 30 * time.Minute, false},
		{"1h", time.Hour, false},
		{"", 0, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.ttl, func(t *testing.T) {
			d, err := CacheConfig{TTL: tt.ttl}.ParseTTL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}
