package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitstat/pkg/config"
	"github.com/Sumatoshi-tech/gitstat/pkg/gitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/observability"
)

// Output renderings of an export result.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// ErrUnknownOutput is returned for an --output value other than text, json or yaml.
var ErrUnknownOutput = errors.New("unknown output rendering (want text, json or yaml)")

// ExportCommand holds the flags of the export command.
type ExportCommand struct {
	format          string
	granularity     string
	ext             string
	outDir          string
	pathsFile       string
	ignore          []string
	maxDepth        int
	similarity      int
	spillRows       int
	bom             bool
	output          string
	metricsTextfile string
	noColor         bool
	silent          bool
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	ec := &ExportCommand{}

	cmd := &cobra.Command{
		Use:   "export [roots...]",
		Short: "Export commit statistics of every repository under the roots",
		Long: `Export walks every git repository found under the given root directories
and writes their full history into one xlsx or csv file in the export
directory. Roots may also be listed one per line in --paths-file.`,
		RunE: ec.run,
	}

	cmd.Flags().StringVar(&ec.format, "format", "", "output format: xlsx or csv (overrides export.format)")
	cmd.Flags().StringVar(&ec.granularity, "granularity", "", "row granularity: commit or file (overrides export.granularity)")
	cmd.Flags().StringVar(&ec.ext, "ext", "", "JavaScript extension script adding columns (overrides extension.script)")
	cmd.Flags().StringVar(&ec.outDir, "out-dir", "", "directory receiving the export file (overrides export.dir)")
	cmd.Flags().StringVar(&ec.pathsFile, "paths-file", "", "file listing root directories, one per line")
	cmd.Flags().StringSliceVar(&ec.ignore, "ignore", nil, "gitignore-style patterns skipped while scanning (overrides scan.ignore)")
	cmd.Flags().IntVar(&ec.maxDepth, "max-depth", 0, "maximum directory depth below each root (0 = unlimited)")
	cmd.Flags().IntVar(&ec.similarity, "similarity", 0, "rename/copy similarity threshold in percent (1-100)")
	cmd.Flags().IntVar(&ec.spillRows, "spill-rows", 0, "csv rows buffered in memory before spilling to disk")
	cmd.Flags().BoolVar(&ec.bom, "bom", false, "prefix csv output with a UTF-8 byte order mark")
	cmd.Flags().StringVarP(&ec.output, "output", "o", OutputText, "result rendering: text, json or yaml")
	cmd.Flags().StringVar(&ec.metricsTextfile, "metrics-textfile", "", "write Prometheus textfile metrics to this path")
	cmd.Flags().BoolVar(&ec.noColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&ec.silent, "silent", false, "disable progress output")

	return cmd
}

func (ec *ExportCommand) run(cmd *cobra.Command, args []string) error {
	if !validOutput(ec.output) {
		return fmt.Errorf("%w: %q", ErrUnknownOutput, ec.output)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ec.applyOverrides(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return err
	}

	roots, err := resolveRoots(args, ec.pathsFile)
	if err != nil {
		return err
	}

	outDir, err := cfg.EnsureExportDir()
	if err != nil {
		return err
	}

	providers, err := observability.Init(observabilityConfig(cfg, observability.ModeCLI, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer shutdownProviders(cmd, providers)

	meter := providers.Meter

	var textfile *observability.Textfile

	if ec.metricsTextfile != "" {
		textfile, err = observability.NewTextfile(ec.metricsTextfile)
		if err != nil {
			return err
		}
		defer func() { _ = textfile.Shutdown(cmd.Context()) }()

		meter = textfile.Meter()
	}

	metrics, err := observability.NewExportMetrics(meter)
	if err != nil {
		return err
	}

	exporter := &gitstat.Exporter{
		OutputDir:           outDir,
		SimilarityThreshold: cfg.Git.SimilarityThreshold,
		SpillRows:           cfg.Export.SpillRows,
		IgnorePatterns:      cfg.Scan.Ignore,
		MaxDepth:            cfg.Scan.MaxDepth,
		CSVBOM:              cfg.Export.CSVBOM,
		Logger:              providers.Logger,
		Tracer:              providers.Tracer,
		Metrics:             metrics,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	progress := cmd.ErrOrStderr()
	ec.progressf(progress, "exporting %d root(s) to %s", len(roots), outDir)

	result, runErr := exporter.Run(ctx, gitstat.Request{
		Roots:         roots,
		Format:        cfg.Export.Format,
		Granularity:   cfg.Export.Granularity,
		ExtensionPath: cfg.Extension.Script,
	})

	if textfile != nil {
		writeErr := textfile.Write()
		if writeErr != nil {
			providers.Logger.Warn("metrics textfile not written", "path", textfile.Path(), "error", writeErr)
		}
	}

	if runErr != nil {
		return runErr
	}

	ec.progressf(progress, "export completed")

	return renderResult(cmd.OutOrStdout(), result, ec.output, ec.noColor)
}

// applyOverrides copies explicitly set flags over the loaded configuration.
func (ec *ExportCommand) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Export.Format = ec.format
	}

	if flags.Changed("granularity") {
		cfg.Export.Granularity = ec.granularity
	}

	if flags.Changed("ext") {
		cfg.Extension.Script = ec.ext
	}

	if flags.Changed("out-dir") {
		cfg.Export.Dir = ec.outDir
	}

	if flags.Changed("ignore") {
		cfg.Scan.Ignore = ec.ignore
	}

	if flags.Changed("max-depth") {
		cfg.Scan.MaxDepth = ec.maxDepth
	}

	if flags.Changed("similarity") {
		cfg.Git.SimilarityThreshold = ec.similarity
	}

	if flags.Changed("spill-rows") {
		cfg.Export.SpillRows = ec.spillRows
	}

	if flags.Changed("bom") {
		cfg.Export.CSVBOM = ec.bom
	}
}

func (ec *ExportCommand) progressf(writer io.Writer, format string, args ...any) {
	if ec.silent {
		return
	}

	_, _ = fmt.Fprintf(writer, "progress: "+format+"\n", args...)
}

func validOutput(output string) bool {
	switch output {
	case OutputText, OutputJSON, OutputYAML:
		return true
	default:
		return false
	}
}
