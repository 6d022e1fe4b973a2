package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

const validTOML = `
[exchange]
venue = "mock"
api_key_env = "TEST_GRIDBOT_API_KEY"
api_secret_env = "TEST_GRIDBOT_API_SECRET"
margin_asset = "USD"

[strategy]
kind = "spot_grid"
symbol = "BTC-USD"
base_symbol = "BTC"
quote_symbol = "USD"
upper_price = "110"
lower_price = "90"
grid_count = 5
total_investment = "1000"
grid_type = "arithmetic"

[engine]
tick_interval_seconds = 2

[logging]
level = "debug"
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gridbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("TEST_GRIDBOT_API_KEY", "key123")
	t.Setenv("TEST_GRIDBOT_API_SECRET", "secret123")

	path := writeTempConfig(t, validTOML)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Exchange.Venue)
	assert.Equal(t, Secret("key123"), cfg.Exchange.APIKey)
	assert.Equal(t, "[REDACTED]", cfg.Exchange.APIKey.String())
	assert.Equal(t, 2, cfg.Engine.TickIntervalSeconds)

	sc, err := cfg.StrategyConfig()
	require.NoError(t, err)
	assert.True(t, sc.UpperPrice.Equal(dd("110")))
	assert.Equal(t, 5, sc.GridCount)
}

func TestLoadMissingCredentialsFails(t *testing.T) {
	t.Setenv("TEST_GRIDBOT_API_KEY", "")
	t.Setenv("TEST_GRIDBOT_API_SECRET", "")

	path := writeTempConfig(t, validTOML)
	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestLoadDefaultsTickIntervalAndLogLevel(t *testing.T) {
	t.Setenv("TEST_GRIDBOT_API_KEY", "key123")
	t.Setenv("TEST_GRIDBOT_API_SECRET", "secret123")

	body := `
[exchange]
venue = "mock"
api_key_env = "TEST_GRIDBOT_API_KEY"
api_secret_env = "TEST_GRIDBOT_API_SECRET"

[strategy]
kind = "spot_grid"
symbol = "BTC-USD"
upper_price = "110"
lower_price = "90"
grid_count = 5
total_investment = "1000"
`
	path := writeTempConfig(t, body)
	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Engine.TickIntervalSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsBadStrategyKind(t *testing.T) {
	t.Setenv("TEST_GRIDBOT_API_KEY", "key123")
	t.Setenv("TEST_GRIDBOT_API_SECRET", "secret123")

	body := `
[exchange]
venue = "mock"
api_key_env = "TEST_GRIDBOT_API_KEY"
api_secret_env = "TEST_GRIDBOT_API_SECRET"

[strategy]
kind = "not_a_real_kind"
symbol = "BTC-USD"
upper_price = "110"
lower_price = "90"
grid_count = 5
total_investment = "1000"
`
	path := writeTempConfig(t, body)
	_, err := Load(path, "")
	assert.Error(t, err)
}
