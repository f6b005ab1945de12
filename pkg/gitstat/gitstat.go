// Package gitstat runs a complete export: locate repositories, walk their
// history, turn commits into rows, pass rows through the extension, and
// write them to a single file.
package gitstat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gitstat/pkg/commitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/export"
	"github.com/Sumatoshi-tech/gitstat/pkg/extension"
	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/observability"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
	"github.com/Sumatoshi-tech/gitstat/pkg/repofind"
)

const tracerName = "github.com/Sumatoshi-tech/gitstat/pkg/gitstat"

// Request describes one export.
type Request struct {
	Roots         []string `json:"roots"`
	Format        string   `json:"format"`
	Granularity   string   `json:"granularity"`
	ExtensionPath string   `json:"extension,omitempty"`
}

// Result summarizes a finished export.
type Result struct {
	Message         string        `json:"message"`
	DownloadAddress string        `json:"downloadAddress"`
	Repositories    int64         `json:"repositories"`
	Commits         int64         `json:"commits"`
	Rows            int64         `json:"rows"`
	Elapsed         time.Duration `json:"elapsed"`
	Path            string        `json:"path"`
}

// Exporter holds the settings shared by every run. Runs are independent, so
// one Exporter may serve concurrent calls to Run.
type Exporter struct {
	// OutputDir must exist.
	OutputDir           string
	SimilarityThreshold int
	SpillRows           int
	// IgnorePatterns are gitignore-style directory patterns skipped while scanning.
	IgnorePatterns []string
	MaxDepth       int
	CSVBOM         bool

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.ExportMetrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// run is the mutable state of one export.
type run struct {
	schema  record.Schema
	gran    record.Granularity
	hook    *extension.Extension
	sink    export.Sink
	commits int64
}

// Run executes one export. Input problems are reported before any file or
// repository is touched; the first failure afterwards aborts the run and
// leaves the partial output file behind.
func (e *Exporter) Run(ctx context.Context, req Request) (*Result, error) {
	started := e.now()
	logger := e.logger()

	ctx, span := e.tracer().Start(ctx, "gitstat.export",
		trace.WithAttributes(
			attribute.String("export.format", req.Format),
			attribute.String("export.granularity", req.Granularity),
			attribute.Int("export.roots", len(req.Roots)),
		))
	defer span.End()

	result, err := e.run(ctx, req, started)
	if err != nil {
		observability.RecordSpanError(span, err, errorType(err), errorSource(err))
		e.Metrics.RecordError(ctx, errorKind(err))
		logger.ErrorContext(ctx, "export failed", "error", err)

		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("export.repositories", result.Repositories),
		attribute.Int64("export.commits", result.Commits),
		attribute.Int64("export.rows", result.Rows),
	)

	e.Metrics.RecordRun(ctx, observability.ExportStats{
		Format:       req.Format,
		Granularity:  req.Granularity,
		Repositories: result.Repositories,
		Commits:      result.Commits,
		Rows:         result.Rows,
		Duration:     result.Elapsed,
	})

	logger.InfoContext(ctx, "export finished",
		"file", result.Path,
		"repositories", result.Repositories,
		"commits", result.Commits,
		"rows", result.Rows,
		"elapsed", result.Elapsed)

	return result, nil
}

func (e *Exporter) run(ctx context.Context, req Request, started time.Time) (*Result, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}

	gran, err := record.ParseGranularity(req.Granularity)
	if err != nil {
		return nil, err
	}

	st := &run{gran: gran}

	if req.ExtensionPath != "" {
		st.hook, err = extension.Load(req.ExtensionPath, extension.WithLogger(e.logger()))
		if err != nil {
			return nil, err
		}
	}

	repos, err := repofind.FindAllGitRepos(req.Roots, e.findOptions()...)
	if err != nil {
		return nil, err
	}

	st.schema = record.Schema{Granularity: gran, ExtFields: st.hook.Fields()}

	st.sink, err = export.Open(format, e.OutputDir, st.schema, started, export.Options{BOM: e.CSVBOM, SpillRows: e.SpillRows})
	if err != nil {
		return nil, err
	}

	walker := &commitstat.Walker{
		SimilarityThreshold: e.SimilarityThreshold,
		Logger:              e.logger(),
		Tracer:              e.tracer(),
	}

	for _, repoPath := range repos {
		err = walker.AnalyseRepoCommits(ctx, repoPath, st.consume)
		if err != nil {
			return nil, errors.Join(err, st.sink.Abort())
		}
	}

	err = st.sink.Close()
	if err != nil {
		return nil, err
	}

	elapsed := e.now().Sub(started)
	repoCount := int64(len(repos))

	return &Result{
		Message:         finishedMessage(repoCount, st.commits, st.sink.Rows(), elapsed),
		DownloadAddress: filepath.Base(st.sink.Path()),
		Repositories:    repoCount,
		Commits:         st.commits,
		Rows:            st.sink.Rows(),
		Elapsed:         elapsed,
		Path:            st.sink.Path(),
	}, nil
}

func (st *run) consume(ci *commitstat.CommitStatInfo) error {
	st.commits++

	for _, bean := range record.ToRecords(ci, st.gran) {
		err := st.hook.Apply(ci, bean)
		if err != nil {
			return err
		}

		err = st.sink.Append(bean)
		if err != nil {
			return err
		}
	}

	return nil
}

func finishedMessage(repos, commits, rows int64, elapsed time.Duration) string {
	return fmt.Sprintf("export finished: processed %d repositories, %d commits (%d rows) in %.2fs",
		repos, commits, rows, elapsed.Seconds())
}

func (e *Exporter) findOptions() []repofind.Option {
	opts := []repofind.Option{
		repofind.WithMaxDepth(e.MaxDepth),
		repofind.WithLogger(e.logger()),
	}

	if len(e.IgnorePatterns) > 0 {
		opts = append(opts, repofind.WithIgnorePatterns(e.IgnorePatterns))
	}

	return opts
}

func (e *Exporter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}

	return time.Now()
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}

	return slog.Default()
}

func (e *Exporter) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}

	return otel.Tracer(tracerName)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, faults.ErrInvalidInput):
		return faults.ErrInvalidInput.Error()
	case errors.Is(err, faults.ErrRepositoryOpen):
		return faults.ErrRepositoryOpen.Error()
	case errors.Is(err, faults.ErrRepositoryRead):
		return faults.ErrRepositoryRead.Error()
	case errors.Is(err, faults.ErrExtensionLoad):
		return faults.ErrExtensionLoad.Error()
	case errors.Is(err, faults.ErrExtensionRuntime):
		return faults.ErrExtensionRuntime.Error()
	case errors.Is(err, faults.ErrWrite):
		return faults.ErrWrite.Error()
	default:
		return "internal"
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, faults.ErrInvalidInput), errors.Is(err, faults.ErrExtensionLoad):
		return observability.ErrTypeValidation
	case errors.Is(err, faults.ErrRepositoryOpen), errors.Is(err, faults.ErrRepositoryRead), errors.Is(err, faults.ErrWrite):
		return observability.ErrTypeDependencyUnavailable
	default:
		return observability.ErrTypeInternal
	}
}

func errorSource(err error) string {
	if errors.Is(err, faults.ErrInvalidInput) || errors.Is(err, faults.ErrExtensionLoad) || errors.Is(err, faults.ErrExtensionRuntime) {
		return observability.ErrSourceClient
	}

	return observability.ErrSourceServer
}
