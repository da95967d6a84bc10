package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "waterfall.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 10, cfg.Store.MaxConns)
	assert.Equal(t, "0.01", cfg.Waterfall.RoundingTolerance)
	assert.Equal(t, "ordinary_income", cfg.Waterfall.IncomeClassification)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentCalculations)
	assert.Equal(t, 3, cfg.Batch.CommitRetries)
	assert.Equal(t, 100, cfg.MonteCarlo.Runs)
	assert.Equal(t, "USD", cfg.Export.Currency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/waterfall
waterfall:
  rounding_tolerance: "0.005"
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_concurrent_calculations: 10
`
	wd, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(wd, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/waterfall", cfg.Store.DatabaseURL)
	assert.Equal(t, "0.005", cfg.Waterfall.RoundingTolerance)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentCalculations)
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.MonteCarlo.Runs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	wd, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(wd, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("STRATCAP_STORE_DRIVER", "postgres")
	t.Setenv("STRATCAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("STRATCAP_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "waterfall.db"
	cfg.Waterfall.RoundingTolerance = "0.01"
	cfg.Batch.MaxConcurrentCalculations = 4
	cfg.Batch.CommitRetries = 3
	cfg.MonteCarlo.Runs = 100
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "oracle"
	cfg.Store.DatabaseURL = ""
	cfg.Waterfall.RoundingTolerance = "loose"

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "rounding_tolerance must be a decimal")
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentCalculations = 0
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_calculations must be between 1 and 50")

	cfg.Batch.MaxConcurrentCalculations = 51
	err = cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_calculations must be between 1 and 50")

	cfg.Batch.MaxConcurrentCalculations = 50
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateMonteCarloRuns(t *testing.T) {
	cfg := validDefaults()
	cfg.MonteCarlo.Runs = 0

	err := cfg.Validate("montecarlo")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "montecarlo.runs must be >= 1")

	cfg.MonteCarlo.Runs = 500
	assert.NoError(t, cfg.Validate("montecarlo"))
}

func TestTolerance(t *testing.T) {
	cfg := validDefaults()
	d, err := cfg.Tolerance()
	require.NoError(t, err)
	assert.Equal(t, "0.01", d.String())

	cfg.Waterfall.RoundingTolerance = "tight"
	_, err = cfg.Tolerance()
	assert.Error(t, err)
}
