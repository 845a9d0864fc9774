package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. PIPCALC_OANDA_TOKEN.
const EnvPrefix = "PIPCALC"

// Config is the complete pipcalc configuration
type Config struct {
	Calculator CalculatorConfig `json:"calculator" yaml:"calculator"`
	OANDA      OANDAConfig      `json:"oanda" yaml:"oanda"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// CalculatorConfig holds the defaults the CLI and web form start from
type CalculatorConfig struct {
	Pair         string  `json:"pair" yaml:"pair" split_words:"true"`
	TPPercent    float64 `json:"tp_percent" yaml:"tp_percent" split_words:"true"`
	SLMultiplier float64 `json:"sl_multiplier" yaml:"sl_multiplier" split_words:"true"`
	ATRPeriod    int     `json:"atr_period" yaml:"atr_period" split_words:"true"`
	ATRMethod    string  `json:"atr_method" yaml:"atr_method" split_words:"true"` // "simple" or "wilder"
}

// OANDAConfig contains the market data credentials and request shape
type OANDAConfig struct {
	Token       string `json:"token,omitempty" yaml:"token,omitempty" split_words:"true"`
	Practice    bool   `json:"practice" yaml:"practice" split_words:"true"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty" split_words:"true"` // overrides practice/live
	Granularity string `json:"granularity" yaml:"granularity" split_words:"true"`
	Count       int    `json:"count" yaml:"count" split_words:"true"`
	Retries     uint   `json:"retries" yaml:"retries" split_words:"true"`
}

// CacheConfig controls how long a fetched ATR is reused
type CacheConfig struct {
	TTL string `json:"ttl" yaml:"ttl" split_words:"true"` // e.g. "30m"
}

// ParseTTL converts the ttl string to time.Duration
func (c CacheConfig) ParseTTL() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.TTL)
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type" split_words:"true"` // "csv", "sqlite" or "none"
	File   string `json:"file,omitempty" yaml:"file,omitempty" split_words:"true"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty" split_words:"true"`
}

// ServerConfig is the web host
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" split_words:"true"`
}

// LogConfig selects the zap logger
type LogConfig struct {
	Level       string `json:"level" yaml:"level" split_words:"true"`
	Development bool   `json:"development" yaml:"development" split_words:"true"`
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Unset keys keep their defaults
	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load reads path when it is set, otherwise starts from Default, and
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv loads a .env file if there is one and overlays PIPCALC_*
// variables, e.g. PIPCALC_OANDA_TOKEN or PIPCALC_SERVER_ADDR.
func (c *Config) ApplyEnv() error {
	// .env is optional
	_ = godotenv.Load()

	sections := []struct {
		name   string
		target any
	}{
		{"CALCULATOR", &c.Calculator},
		{"OANDA", &c.OANDA},
		{"CACHE", &c.Cache},
		{"JOURNAL", &c.Journal},
		{"SERVER", &c.Server},
		{"LOG", &c.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process(EnvPrefix+"_"+s.name, s.target); err != nil {
			return fmt.Errorf("env %s: %w", strings.ToLower(s.name), err)
		}
	}
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Calculator.ATRPeriod <= 0 {
		return fmt.Errorf("calculator.atr_period must be positive")
	}
	switch c.Calculator.ATRMethod {
	case "", "simple", "wilder":
	default:
		return fmt.Errorf("calculator.atr_method must be 'simple' or 'wilder'")
	}
	if c.OANDA.Count != 0 && c.OANDA.Count <= c.Calculator.ATRPeriod {
		return fmt.Errorf("oanda.count must exceed calculator.atr_period")
	}
	if c.OANDA.Count > 5000 {
		return fmt.Errorf("oanda.count cannot exceed 5000")
	}
	if c.OANDA.Retries == 0 {
		return fmt.Errorf("oanda.retries must be at least 1")
	}
	if _, err := c.Cache.ParseTTL(); err != nil {
		return fmt.Errorf("cache.ttl: %w", err)
	}
	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.File == "" {
			return fmt.Errorf("journal file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Calculator: CalculatorConfig{
			Pair:         "EUR/USD",
			TPPercent:    1.0,
			SLMultiplier: 0.5,
			ATRPeriod:    14,
			ATRMethod:    "simple",
		},
		OANDA: OANDAConfig{
			Practice:    true,
			Granularity: "D",
			Count:       66, // about three months of daily candles
			Retries:     3,
		},
		Cache: CacheConfig{
			TTL: "30m",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./pipcalc.sqlite",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
