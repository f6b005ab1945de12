package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitstat/pkg/config"
	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gitstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultExportDir(), cfg.Export.Dir)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	assert.Equal(t, "commit", cfg.Export.Granularity)
	assert.False(t, cfg.Export.CSVBOM)
	assert.Equal(t, 50000, cfg.Export.SpillRows)
	assert.Empty(t, cfg.Scan.Ignore)
	assert.Zero(t, cfg.Scan.MaxDepth)
	assert.Equal(t, 50, cfg.Git.SimilarityThreshold)
	assert.Empty(t, cfg.Extension.Script)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
export:
  dir: /srv/exports
  format: csv
  granularity: file
  csv_bom: true
  spill_rows: 10
scan:
  ignore: ["archive/"]
  max_depth: 4
git:
  similarity_threshold: 80
extension:
  script: /etc/gitstat/hook.js
logging:
  level: debug
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/exports", cfg.Export.Dir)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, "file", cfg.Export.Granularity)
	assert.True(t, cfg.Export.CSVBOM)
	assert.Equal(t, 10, cfg.Export.SpillRows)
	assert.Equal(t, []string{"archive/"}, cfg.Scan.Ignore)
	assert.Equal(t, 4, cfg.Scan.MaxDepth)
	assert.Equal(t, 80, cfg.Git.SimilarityThreshold)
	assert.Equal(t, "/etc/gitstat/hook.js", cfg.Extension.Script)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.OTLPInsecure)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("GITSTAT_EXPORT_FORMAT", "csv")
	t.Setenv("GITSTAT_GIT_SIMILARITY_THRESHOLD", "75")

	cfg, err := config.LoadConfig(writeConfig(t, "export:\n  format: xlsx\n"))
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, 75, cfg.Git.SimilarityThreshold)
}

func TestLoadConfig_EnvValidated(t *testing.T) {
	t.Setenv("GITSTAT_GIT_SIMILARITY_THRESHOLD", "0")

	_, err := config.LoadConfig(writeConfig(t, ""))
	require.ErrorIs(t, err, config.ErrInvalidSimilarity)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_SchemaViolationsListed(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
export:
  format: pdf
  spill_rows: -1
unknown_section: true
`)

	_, err := config.LoadConfig(path)
	require.ErrorIs(t, err, config.ErrSchemaViolation)

	msg := err.Error()
	assert.Contains(t, msg, "export.format")
	assert.Contains(t, msg, "export.spill_rows")
	assert.Contains(t, msg, "unknown_section")
}

func TestValidate_Ranges(t *testing.T) {
	t.Parallel()

	valid := func() config.Config {
		return config.Config{
			Export:  config.ExportConfig{Dir: "/tmp/out", Format: "csv", Granularity: "commit"},
			Git:     config.GitConfig{SimilarityThreshold: 50},
			Logging: config.LoggingConfig{Format: "text"},
		}
	}

	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"empty dir", func(c *config.Config) { c.Export.Dir = " " }, config.ErrEmptyExportDir},
		{"format", func(c *config.Config) { c.Export.Format = "pdf" }, config.ErrInvalidFormat},
		{"granularity", func(c *config.Config) { c.Export.Granularity = "line" }, config.ErrInvalidGranularity},
		{"spill rows", func(c *config.Config) { c.Export.SpillRows = -1 }, config.ErrInvalidSpillRows},
		{"max depth", func(c *config.Config) { c.Scan.MaxDepth = -2 }, config.ErrInvalidMaxDepth},
		{"similarity high", func(c *config.Config) { c.Git.SimilarityThreshold = 101 }, config.ErrInvalidSimilarity},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, config.ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_SelectorErrorsKeepInvalidInput(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Export:  config.ExportConfig{Dir: "/tmp/out", Format: "pdf", Granularity: "commit"},
		Git:     config.GitConfig{SimilarityThreshold: 50},
		Logging: config.LoggingConfig{Format: "text"},
	}

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidFormat)
	assert.ErrorIs(t, err, faults.ErrInvalidInput)
	assert.Contains(t, err.Error(), `"pdf"`)

	cfg.Export.Format = "csv"
	cfg.Export.Granularity = "hunk"

	err = cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidGranularity)
	assert.ErrorIs(t, err, faults.ErrInvalidInput)
}

func TestEnsureExportDir(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Export: config.ExportConfig{Dir: filepath.Join(t.TempDir(), "a", "b")}}

	dir, err := cfg.EnsureExportDir()
	require.NoError(t, err)
	assert.Equal(t, cfg.Export.Dir, dir)
	assert.DirExists(t, dir)
}
