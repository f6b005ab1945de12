package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error classification recorded on failed spans.
const (
	ErrTypeValidation            = "validation"
	ErrTypeDependencyUnavailable = "dependency_unavailable"
	ErrTypeInternal              = "internal"

	ErrSourceClient     = "client"
	ErrSourceServer     = "server"
	ErrSourceDependency = "dependency"
)

const (
	attrErrorType   = "error.type"
	attrErrorSource = "error.source"
)

// RecordSpanError marks the span failed and tags it with the error type and,
// when non-empty, its source.
func RecordSpanError(span trace.Span, err error, errType, source string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	attrs := []attribute.KeyValue{attribute.String(attrErrorType, errType)}
	if source != "" {
		attrs = append(attrs, attribute.String(attrErrorSource, source))
	}

	span.SetAttributes(attrs...)
}
