// Package config loads and validates the bot's TOML configuration file and
// the .env-sourced exchange credentials it references.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/stratconfig"
)

// Config is the complete bot configuration: one exchange connection, one
// strategy instance, and the ambient engine/logging/telemetry knobs.
type Config struct {
	Exchange  ExchangeConfig  `toml:"exchange"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Engine    EngineConfig    `toml:"engine"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ExchangeConfig names the venue and credential environment variables.
// Credentials are never stored in the TOML file itself; Load reads them
// from the process environment (populated from a .env file via godotenv)
// after the API/secret key field names here are resolved.
type ExchangeConfig struct {
	Venue         string `toml:"venue" validate:"required"`
	APIKeyEnv     string `toml:"api_key_env"`
	APISecretEnv  string `toml:"api_secret_env"`
	APIKey        Secret `toml:"-"`
	APISecret     Secret `toml:"-"`
	MarginAsset   string `toml:"margin_asset"`
	BaseURL       string `toml:"base_url"`
}

// StrategyConfig mirrors stratconfig.Config's TOML shape. Kind and Bias
// are parsed from their string names rather than stratconfig's int enums,
// since a config file author writes "spot_grid"/"long", not "0"/"2".
type StrategyConfig struct {
	Kind            string  `toml:"kind" validate:"required,oneof=spot_grid perp_grid"`
	Symbol          string  `toml:"symbol" validate:"required"`
	BaseSymbol      string  `toml:"base_symbol"`
	QuoteSymbol     string  `toml:"quote_symbol"`
	UpperPrice      string  `toml:"upper_price" validate:"required"`
	LowerPrice      string  `toml:"lower_price" validate:"required"`
	GridCount       int     `toml:"grid_count" validate:"required"`
	TotalInvestment string  `toml:"total_investment" validate:"required"`
	GridType        string  `toml:"grid_type"`
	TriggerPrice    *string `toml:"trigger_price"`
	Leverage        int     `toml:"leverage"`
	MaxLeverage     int     `toml:"max_leverage"`
	Bias            string  `toml:"bias"`
	IsIsolated      bool    `toml:"is_isolated"`
}

// EngineConfig tunes the engine's periodic tick, its reconnect/submit
// timing, and the dashboard's WebSocket broadcast server.
type EngineConfig struct {
	TickIntervalSeconds  int      `toml:"tick_interval_seconds"`
	ReconnectBaseMs      int      `toml:"reconnect_base_ms"`
	ReconnectMaxSeconds  int      `toml:"reconnect_max_seconds"`
	SubmitTimeoutSeconds int      `toml:"submit_timeout_seconds"`
	DashboardEnabled     bool     `toml:"dashboard_enabled"`
	DashboardPort        int      `toml:"dashboard_port"`
	DashboardOrigins     []string `toml:"dashboard_origins"`
}

// LoggingConfig selects the zap log level and output encoding.
type LoggingConfig struct {
	Level    string `toml:"level" validate:"oneof=debug info warn error"`
	Encoding string `toml:"encoding" validate:"oneof=json console"`
}

// TelemetryConfig enables the Prometheus metrics endpoint and OTel tracing.
type TelemetryConfig struct {
	MetricsEnabled bool   `toml:"metrics_enabled"`
	MetricsPort    int    `toml:"metrics_port"`
	TracingEnabled bool   `toml:"tracing_enabled"`
	ServiceName    string `toml:"service_name"`
}

// Load reads a TOML config file at path, resolves exchange credentials
// from the environment (loading envFile first, if it exists), and
// validates the result.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.Exchange.APIKey = Secret(os.Getenv(cfg.Exchange.APIKeyEnv))
	cfg.Exchange.APISecret = Secret(os.Getenv(cfg.Exchange.APISecretEnv))

	if cfg.Engine.TickIntervalSeconds <= 0 {
		cfg.Engine.TickIntervalSeconds = 1
	}
	if cfg.Engine.ReconnectBaseMs <= 0 {
		cfg.Engine.ReconnectBaseMs = 500
	}
	if cfg.Engine.ReconnectMaxSeconds <= 0 {
		cfg.Engine.ReconnectMaxSeconds = 30
	}
	if cfg.Engine.SubmitTimeoutSeconds <= 0 {
		cfg.Engine.SubmitTimeoutSeconds = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate aggregates every configuration problem into one error instead
// of stopping at the first, matching stratconfig's all-errors-at-once
// reporting style.
func (c *Config) Validate() error {
	var errs []string
	check := func(cond bool, msg string) {
		if !cond {
			errs = append(errs, msg)
		}
	}

	check(c.Exchange.Venue != "", "exchange.venue must not be empty")
	check(c.Exchange.APIKey != "", fmt.Sprintf("exchange credential env var %q is unset", c.Exchange.APIKeyEnv))
	check(c.Exchange.APISecret != "", fmt.Sprintf("exchange credential env var %q is unset", c.Exchange.APISecretEnv))

	validLevels := []string{"debug", "info", "warn", "error"}
	check(containsFold(validLevels, c.Logging.Level), "logging.level must be one of debug/info/warn/error")

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	sc, err := c.StrategyConfig()
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	return nil
}

// StrategyConfig parses the TOML [strategy] table into a validated
// stratconfig.Config, resolving its string enums and decimal fields.
func (c *Config) StrategyConfig() (stratconfig.Config, error) {
	s := c.Strategy
	var errs []string

	parseDecimal := func(field, value string) decimal.Decimal {
		d, err := decimal.NewFromString(value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("strategy.%s %q is not a valid number", field, value))
			return decimal.Zero
		}
		return d
	}

	var kind stratconfig.Kind
	switch strings.ToLower(s.Kind) {
	case "spot_grid":
		kind = stratconfig.SpotGrid
	case "perp_grid":
		kind = stratconfig.PerpGrid
	default:
		errs = append(errs, fmt.Sprintf("strategy.kind %q must be spot_grid or perp_grid", s.Kind))
	}

	gridType := stratconfig.Arithmetic
	if strings.EqualFold(s.GridType, "geometric") {
		gridType = stratconfig.Geometric
	}

	bias := stratconfig.Long
	switch strings.ToLower(s.Bias) {
	case "", "long":
		bias = stratconfig.Long
	case "short":
		bias = stratconfig.Short
	case "neutral":
		bias = stratconfig.Neutral
	default:
		errs = append(errs, fmt.Sprintf("strategy.bias %q must be long, short, or neutral", s.Bias))
	}

	cfg := stratconfig.Config{
		Kind:            kind,
		Symbol:          s.Symbol,
		UpperPrice:      parseDecimal("upper_price", s.UpperPrice),
		LowerPrice:      parseDecimal("lower_price", s.LowerPrice),
		GridCount:       s.GridCount,
		TotalInvestment: parseDecimal("total_investment", s.TotalInvestment),
		GridType:        gridType,
		Leverage:        s.Leverage,
		MaxLeverage:     s.MaxLeverage,
		Bias:            bias,
		IsIsolated:      s.IsIsolated,
	}
	if s.TriggerPrice != nil {
		tp := parseDecimal("trigger_price", *s.TriggerPrice)
		cfg.TriggerPrice = &tp
	}

	if len(errs) > 0 {
		return stratconfig.Config{}, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// ValidationError aggregates every configuration problem found.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0]
	}
	msg := fmt.Sprintf("invalid configuration (%d issues):", len(e.Errors))
	for _, s := range e.Errors {
		msg += "\n  - " + s
	}
	return msg
}

func containsFold(opts []string, v string) bool {
	for _, o := range opts {
		if strings.EqualFold(o, v) {
			return true
		}
	}
	return false
}
