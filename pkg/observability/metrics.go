package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "gitstat.requests.total"
	metricRequestDuration  = "gitstat.request.duration.seconds"
	metricErrorsTotal      = "gitstat.errors.total"
	metricInflightRequests = "gitstat.inflight.requests"

	metricExportRepositories = "gitstat.export.repositories.total"
	metricExportCommits      = "gitstat.export.commits.total"
	metricExportRows         = "gitstat.export.rows.total"
	metricExportDuration     = "gitstat.export.duration.seconds"
	metricExportErrors       = "gitstat.export.errors.total"

	attrOp          = "op"
	attrStatus      = "status"
	attrFormat      = "format"
	attrGranularity = "granularity"
	attrKind        = "kind"

	// StatusOK and StatusError label completed requests.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries spans 10ms to 10 minutes; small repositories
// export in milliseconds while large monorepo histories take minutes.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// REDMetrics holds rate, error, and duration instruments for served requests.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight counter and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// ExportStats summarizes one finished export run.
type ExportStats struct {
	Format       string
	Granularity  string
	Repositories int64
	Commits      int64
	Rows         int64
	Duration     time.Duration
}

// ExportMetrics records per-run export totals.
type ExportMetrics struct {
	repositories metric.Int64Counter
	commits      metric.Int64Counter
	rows         metric.Int64Counter
	duration     metric.Float64Histogram
	errors       metric.Int64Counter
}

// NewExportMetrics creates export instruments from the given meter.
func NewExportMetrics(mt metric.Meter) (*ExportMetrics, error) {
	b := newMetricBuilder(mt)

	em := &ExportMetrics{
		repositories: b.counter(metricExportRepositories, "Repositories exported", "{repository}"),
		commits:      b.counter(metricExportCommits, "Commits visited", "{commit}"),
		rows:         b.counter(metricExportRows, "Rows written", "{row}"),
		duration:     b.histogram(metricExportDuration, "Export duration in seconds", "s", durationBucketBoundaries...),
		errors:       b.counter(metricExportErrors, "Failed exports", "{error}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return em, nil
}

// RecordRun records a completed export. Nil receivers are no-ops.
func (em *ExportMetrics) RecordRun(ctx context.Context, stats ExportStats) {
	if em == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrFormat, stats.Format),
		attribute.String(attrGranularity, stats.Granularity),
	)

	em.repositories.Add(ctx, stats.Repositories, attrs)
	em.commits.Add(ctx, stats.Commits, attrs)
	em.rows.Add(ctx, stats.Rows, attrs)
	em.duration.Record(ctx, stats.Duration.Seconds(), attrs)
}

// RecordError counts a failed export by error kind. Nil receivers are no-ops.
func (em *ExportMetrics) RecordError(ctx context.Context, kind string) {
	if em == nil {
		return
	}

	em.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}
