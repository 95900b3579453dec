package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "librarydq/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
}

// PathsConfig contains input and output file locations
type PathsConfig struct {
	BooksFile     string `yaml:"books_file" envconfig:"BOOKS_FILE" default:"data/03_Library_Systembook.csv" validate:"required"`
	CustomersFile string `yaml:"customers_file" envconfig:"CUSTOMERS_FILE" default:"data/03_Library_SystemCustomers.csv" validate:"required"`
	OutputDir     string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pipeline.log"`
}

// PipelineConfig contains tunables for the cleaning and enrichment stages.
// The loan period drives the expected return date (checkout + N days).
type PipelineConfig struct {
	LoanPeriodDays int  `yaml:"loan_period_days" envconfig:"LOAN_PERIOD_DAYS" default:"14" validate:"min=1"`
	Parallel       bool `yaml:"parallel" envconfig:"PARALLEL" default:"false"`
}

// DatabaseConfig contains relational store settings for the bronze loader.
// Driver selects between an embedded sqlite file and an external postgres.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" envconfig:"DRIVER" default:"sqlite" validate:"oneof=sqlite postgres"`
	DSN             string        `yaml:"dsn" envconfig:"DSN" default:"library_dq.db"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"1h"`
}

// Load loads configuration from environment variables and an optional YAML
// file. File values fill in whatever the environment left at its default;
// environment variables take precedence.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("LDQ", &cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, apperrors.NewConfigError("failed to load config file", err).
					WithContext("path", configFile)
			}
			cfg = mergeConfigs(*fileCfg, cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file and no environment
// overrides are present. Handy for tests and for the CLI's fallback path.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults are static and validated by tests; Load cannot fail here.
		panic(err)
	}
	return cfg
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	defaults := defaultsFromTags()

	if envConfig.Paths.BooksFile == defaults.Paths.BooksFile && fileConfig.Paths.BooksFile != "" {
		envConfig.Paths.BooksFile = fileConfig.Paths.BooksFile
	}
	if envConfig.Paths.CustomersFile == defaults.Paths.CustomersFile && fileConfig.Paths.CustomersFile != "" {
		envConfig.Paths.CustomersFile = fileConfig.Paths.CustomersFile
	}
	if envConfig.Paths.OutputDir == defaults.Paths.OutputDir && fileConfig.Paths.OutputDir != "" {
		envConfig.Paths.OutputDir = fileConfig.Paths.OutputDir
	}
	if envConfig.Logging.Level == defaults.Logging.Level && fileConfig.Logging.Level != "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if envConfig.Logging.Format == defaults.Logging.Format && fileConfig.Logging.Format != "" {
		envConfig.Logging.Format = fileConfig.Logging.Format
	}
	if envConfig.Logging.Output == defaults.Logging.Output && fileConfig.Logging.Output != "" {
		envConfig.Logging.Output = fileConfig.Logging.Output
	}
	if envConfig.Logging.FilePath == defaults.Logging.FilePath && fileConfig.Logging.FilePath != "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if envConfig.Pipeline.LoanPeriodDays == defaults.Pipeline.LoanPeriodDays && fileConfig.Pipeline.LoanPeriodDays != 0 {
		envConfig.Pipeline.LoanPeriodDays = fileConfig.Pipeline.LoanPeriodDays
	}
	if fileConfig.Pipeline.Parallel {
		envConfig.Pipeline.Parallel = true
	}
	if envConfig.Database.Driver == defaults.Database.Driver && fileConfig.Database.Driver != "" {
		envConfig.Database.Driver = fileConfig.Database.Driver
	}
	if envConfig.Database.DSN == defaults.Database.DSN && fileConfig.Database.DSN != "" {
		envConfig.Database.DSN = fileConfig.Database.DSN
	}
	if envConfig.Database.ConnMaxLifetime == defaults.Database.ConnMaxLifetime && fileConfig.Database.ConnMaxLifetime != 0 {
		envConfig.Database.ConnMaxLifetime = fileConfig.Database.ConnMaxLifetime
	}

	return envConfig
}

// defaultsFromTags materializes the struct-tag defaults without consulting
// the process environment, so merging can tell "still at default" apart
// from "explicitly set via env".
func defaultsFromTags() Config {
	var cfg Config
	// envconfig with an unused prefix leaves only the default tags applied.
	_ = envconfig.Process("LDQ_DEFAULTS_ONLY", &cfg)
	return cfg
}

// validate runs struct-tag validation over the assembled configuration.
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return apperrors.NewConfigError("logging.file_path required when output includes a file", nil)
	}
	return nil
}
