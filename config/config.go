// Package config loads the engine's YAML configuration file, overlaying
// .env / environment-variable overrides on top, and converts the loaded
// values into the internal/exchange.Config each registered venue runs
// with.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polybot/internal/exchange"
)

// Config is the complete engine configuration: where shared output goes,
// and one entry per exchange to register.
type Config struct {
	OutputDirectory string           `yaml:"output_directory"`
	Log             LogConfig        `yaml:"log"`
	Exchanges       []ExchangeConfig `yaml:"exchanges"`
}

// LogConfig controls the engine's structured-logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// ExchangeConfig is one venue's section of the YAML file. Field names
// mirror internal/exchange.Config; ToExchangeConfig converts the loaded
// values, resolving millisecond fields into time.Duration and the rates
// polling enum string into its exchange.RatesPollingMode.
type ExchangeConfig struct {
	Name string `yaml:"name"`

	OutputDirectory       string `yaml:"output_directory"`
	BalanceIncludeReserve bool   `yaml:"balance_include_reserve"`
	RatesRecording        bool   `yaml:"rates_recording"`
	RatesPolling          string `yaml:"rates_polling"`

	RatesPollingPeriodMs      int `yaml:"rates_polling_period_ms"`
	OrderPollingPeriodMs      int `yaml:"order_polling_period_ms"`
	PropertiesPollingPeriodMs int `yaml:"properties_polling_period_ms"`

	OrderRegisterTimeoutMs int  `yaml:"order_register_timeout_ms"`
	OrderDiversification   bool `yaml:"order_diversification"`
	ReadOnly               bool `yaml:"read_only"`
}

// ToExchangeConfig converts a loaded section into the internal runtime's
// Config, falling back to the engine's shared output directory when the
// exchange doesn't name its own.
func (e ExchangeConfig) ToExchangeConfig(engineOutputDirectory string) exchange.Config {
	dir := e.OutputDirectory
	if dir == "" {
		dir = engineOutputDirectory
	}
	return exchange.Config{
		Name: e.Name,

		OutputDirectory:       dir,
		BalanceIncludeReserve: e.BalanceIncludeReserve,
		RatesRecording:        e.RatesRecording,
		RatesPolling:          exchange.RatesPollingModeFromString(e.RatesPolling),

		RatesPollingPeriod:      time.Duration(e.RatesPollingPeriodMs) * time.Millisecond,
		OrderPollingPeriod:      time.Duration(e.OrderPollingPeriodMs) * time.Millisecond,
		PropertiesPollingPeriod: time.Duration(e.PropertiesPollingPeriodMs) * time.Millisecond,

		OrderRegisterTimeout: time.Duration(e.OrderRegisterTimeoutMs) * time.Millisecond,
		OrderDiversification: e.OrderDiversification,
		ReadOnly:             e.ReadOnly,
	}
}

// Load reads the YAML file at path, overlays a .env file if one exists,
// then environment-variable overrides, and fills in engine-level
// defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites values with environment variables when
// present. Only engine-wide settings are overridable this way; per-exchange
// credentials belong to each adapter, not this package.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("OUTPUT_DIRECTORY"); v != "" {
		cfg.OutputDirectory = v
	}
	if v := os.Getenv("READ_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			for i := range cfg.Exchanges {
				cfg.Exchanges[i].ReadOnly = b
			}
		}
	}
}

// setDefaults fills unset values with the engine's standard cadence;
// per-exchange poller periods are left to exchange.Config.setDefaults,
// applied when the exchange is registered.
func setDefaults(cfg *Config) {
	if cfg.OutputDirectory == "" {
		cfg.OutputDirectory = "output"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	for i := range cfg.Exchanges {
		if cfg.Exchanges[i].OrderRegisterTimeoutMs == 0 {
			cfg.Exchanges[i].OrderRegisterTimeoutMs = 30_000
		}
	}
}
