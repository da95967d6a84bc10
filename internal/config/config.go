package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Waterfall  WaterfallConfig  `yaml:"waterfall" mapstructure:"waterfall"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	MonteCarlo MonteCarloConfig `yaml:"montecarlo" mapstructure:"montecarlo"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// WaterfallConfig configures allocation policy.
type WaterfallConfig struct {
	// RoundingTolerance is the maximum residual (in currency units) that
	// reconciliation accepts after the final tier.
	RoundingTolerance string `yaml:"rounding_tolerance" mapstructure:"rounding_tolerance"`
	// IncomeClassification is the tax treatment applied to preferred-return
	// and catch-up proceeds, per fund configuration.
	IncomeClassification string `yaml:"income_classification" mapstructure:"income_classification"`
}

// BatchConfig configures batch calculation runs.
type BatchConfig struct {
	MaxConcurrentCalculations int `yaml:"max_concurrent_calculations" mapstructure:"max_concurrent_calculations"`
	CommitRetries             int `yaml:"commit_retries" mapstructure:"commit_retries"`
}

// MonteCarloConfig configures scenario generation.
type MonteCarloConfig struct {
	Runs int   `yaml:"runs" mapstructure:"runs"`
	Seed int64 `yaml:"seed" mapstructure:"seed"`
}

// ExportConfig configures statement rendering.
type ExportConfig struct {
	Currency string `yaml:"currency" mapstructure:"currency"`
	OutDir   string `yaml:"out_dir" mapstructure:"out_dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STRATCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "waterfall.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("waterfall.rounding_tolerance", "0.01")
	v.SetDefault("waterfall.income_classification", "ordinary_income")
	v.SetDefault("batch.max_concurrent_calculations", 4)
	v.SetDefault("batch.commit_retries", 3)
	v.SetDefault("montecarlo.runs", 100)
	v.SetDefault("montecarlo.seed", 0)
	v.SetDefault("export.currency", "USD")
	v.SetDefault("export.out_dir", ".")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
