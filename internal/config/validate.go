package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Validate checks the configuration for the given command mode. Modes share
// the common checks; "serve" additionally requires a usable port.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if _, err := decimal.NewFromString(c.Waterfall.RoundingTolerance); err != nil {
		problems = append(problems, "waterfall.rounding_tolerance must be a decimal")
	}
	switch c.Waterfall.IncomeClassification {
	case "", "ordinary_income", "carried_interest", "return_of_capital", "mixed":
	default:
		problems = append(problems, "waterfall.income_classification is not a tax classification")
	}

	if c.Batch.MaxConcurrentCalculations < 1 || c.Batch.MaxConcurrentCalculations > 50 {
		problems = append(problems, "batch.max_concurrent_calculations must be between 1 and 50")
	}
	if c.Batch.CommitRetries < 1 {
		problems = append(problems, "batch.commit_retries must be >= 1")
	}

	switch mode {
	case "run", "montecarlo", "export":
		if mode == "montecarlo" && c.MonteCarlo.Runs < 1 {
			problems = append(problems, "montecarlo.runs must be >= 1")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Tolerance parses the configured rounding tolerance.
func (c *Config) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Waterfall.RoundingTolerance)
	if err != nil {
		return decimal.Decimal{}, eris.Wrap(err, "config: parse rounding tolerance")
	}
	return d, nil
}
