package exchange

import "time"

// RatesPollingModeFromString parses the config enum value.
func RatesPollingModeFromString(s string) RatesPollingMode {
	switch s {
	case "UPDATE_RATES_IMPL":
		return RatesUpdateAll
	case "UPDATE_RATES_SPECIFIC_CURRENCY_IMPL":
		return RatesPerCurrency
	case "UPDATE_RATES_SPECIFIC_PAIR_IMPL":
		return RatesPerPair
	default:
		return RatesPush
	}
}

// Config holds the per-exchange options: where to write CSVs, which
// pollers to run and how often, and the safety toggles (read-only,
// diversification).
type Config struct {
	Name string

	OutputDirectory       string
	BalanceIncludeReserve bool
	RatesRecording        bool
	RatesPolling          RatesPollingMode

	RatesPollingPeriod      time.Duration
	OrderPollingPeriod      time.Duration
	PropertiesPollingPeriod time.Duration

	OrderRegisterTimeout time.Duration
	OrderDiversification bool
	ReadOnly             bool
}

// setDefaults fills unset duration/period fields with the engine's
// standard polling cadence.
func (c *Config) setDefaults() {
	if c.RatesPollingPeriod == 0 {
		c.RatesPollingPeriod = 5 * time.Second
	}
	if c.OrderPollingPeriod == 0 {
		c.OrderPollingPeriod = 5 * time.Second
	}
	if c.PropertiesPollingPeriod == 0 {
		c.PropertiesPollingPeriod = time.Hour
	}
	if c.OrderRegisterTimeout == 0 {
		c.OrderRegisterTimeout = 30 * time.Second
	}
}
