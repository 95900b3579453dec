package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "librarydq/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/03_Library_Systembook.csv", cfg.Paths.BooksFile)
	assert.Equal(t, "data/03_Library_SystemCustomers.csv", cfg.Paths.CustomersFile)
	assert.Equal(t, "output", cfg.Paths.OutputDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, 14, cfg.Pipeline.LoanPeriodDays)
	assert.False(t, cfg.Pipeline.Parallel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
paths:
  books_file: custom/books.csv
  output_dir: custom_out
logging:
  level: debug
pipeline:
  loan_period_days: 21
  parallel: true
database:
  driver: postgres
  dsn: host=localhost user=dq dbname=library
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom/books.csv", cfg.Paths.BooksFile)
	assert.Equal(t, "custom_out", cfg.Paths.OutputDir)
	// Untouched fields keep their defaults.
	assert.Equal(t, "data/03_Library_SystemCustomers.csv", cfg.Paths.CustomersFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 21, cfg.Pipeline.LoanPeriodDays)
	assert.True(t, cfg.Pipeline.Parallel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoad_FileLogFormatAndConnLifetime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// yaml.v2 carries time.Duration as nanoseconds.
	content := []byte(`
logging:
  format: text
database:
  conn_max_lifetime: 7200000000000
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 2*time.Hour, cfg.Database.ConnMaxLifetime)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644))

	t.Setenv("LDQ_LOGGING_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad log level", yaml: "logging:\n  level: loud\n"},
		{name: "bad driver", yaml: "database:\n  driver: oracle\n"},
		{name: "zero loan period", yaml: "pipeline:\n  loan_period_days: -3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
		})
	}
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	cfg, err := Load("does/not/exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, "output", cfg.Paths.OutputDir)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, 14, cfg.Pipeline.LoanPeriodDays)
}
