// Package config loads gitstat settings from defaults, a YAML file, and
// GITSTAT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/gitstat/pkg/export"
	"github.com/Sumatoshi-tech/gitstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
)

// Sentinel validation errors.
var (
	ErrInvalidFormat      = errors.New("invalid export format")
	ErrInvalidGranularity = errors.New("invalid export granularity")
	ErrInvalidSpillRows   = errors.New("spill rows must not be negative")
	ErrInvalidMaxDepth    = errors.New("max depth must not be negative")
	ErrInvalidSimilarity  = errors.New("similarity threshold must be between 1 and 100")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
	ErrEmptyExportDir     = errors.New("export directory must not be empty")
)

const (
	envPrefix        = "GITSTAT"
	configName       = "gitstat"
	defaultSpillRows = 50000
	maxSimilarity    = 100

	// LogFormatText and LogFormatJSON are the accepted logging.format values.
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all gitstat settings.
type Config struct {
	Export    ExportConfig    `mapstructure:"export"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Git       GitConfig       `mapstructure:"git"`
	Extension ExtensionConfig `mapstructure:"extension"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ExportConfig controls the output file.
type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	Format      string `mapstructure:"format"`
	Granularity string `mapstructure:"granularity"`
	CSVBOM      bool   `mapstructure:"csv_bom"`
	SpillRows   int    `mapstructure:"spill_rows"`
}

// ScanConfig controls repository discovery.
type ScanConfig struct {
	Ignore   []string `mapstructure:"ignore"`
	MaxDepth int      `mapstructure:"max_depth"`
}

// GitConfig controls diff computation.
type GitConfig struct {
	SimilarityThreshold int `mapstructure:"similarity_threshold"`
}

// ExtensionConfig names the default extension script.
type ExtensionConfig struct {
	Script string `mapstructure:"script"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
}

// DefaultExportDir is the export directory used when none is configured.
func DefaultExportDir() string {
	return filepath.Join(os.TempDir(), "gitstat-export")
}

// LoadConfig loads configuration. An explicit configPath must exist; without
// one, gitstat.yaml is looked up in ".", "./config", and "/etc/gitstat" and
// its absence is not an error. A file that is found is validated against the
// embedded schema before use.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/gitstat")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	if used := viperCfg.ConfigFileUsed(); used != "" && readErr == nil {
		schemaErr := ValidateFile(used)
		if schemaErr != nil {
			return nil, schemaErr
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("export.dir", DefaultExportDir())
	viperCfg.SetDefault("export.format", string(export.FormatXLSX))
	viperCfg.SetDefault("export.granularity", string(record.GranularityCommit))
	viperCfg.SetDefault("export.csv_bom", false)
	viperCfg.SetDefault("export.spill_rows", defaultSpillRows)

	viperCfg.SetDefault("scan.ignore", []string{})
	viperCfg.SetDefault("scan.max_depth", 0)

	viperCfg.SetDefault("git.similarity_threshold", gitlib.DefaultSimilarityThreshold)

	viperCfg.SetDefault("extension.script", "")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", LogFormatText)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Export.Dir) == "" {
		return ErrEmptyExportDir
	}

	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	if _, err := record.ParseGranularity(c.Export.Granularity); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGranularity, err)
	}

	if c.Export.SpillRows < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSpillRows, c.Export.SpillRows)
	}

	if c.Scan.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDepth, c.Scan.MaxDepth)
	}

	if c.Git.SimilarityThreshold < 1 || c.Git.SimilarityThreshold > maxSimilarity {
		return fmt.Errorf("%w: %d", ErrInvalidSimilarity, c.Git.SimilarityThreshold)
	}

	if c.Logging.Format != LogFormatText && c.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// EnsureExportDir creates the export directory when missing and returns it.
func (c *Config) EnsureExportDir() (string, error) {
	err := os.MkdirAll(c.Export.Dir, 0o755)
	if err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	return c.Export.Dir, nil
}
