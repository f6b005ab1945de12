package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Textfile collects metrics into a private Prometheus registry and writes
// them in the node-exporter textfile format.
type Textfile struct {
	path     string
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewTextfile creates a collector that writes to path on Write. Each call uses
// an independent registry so collectors never conflict.
func NewTextfile(path string) (*Textfile, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Textfile{
		path:     path,
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// Meter returns a meter whose instruments land in the textfile.
func (tf *Textfile) Meter() metric.Meter {
	return tf.provider.Meter(instrumentationName)
}

// Path returns the destination file.
func (tf *Textfile) Path() string {
	return tf.path
}

// Write gathers the registry and atomically replaces the textfile.
func (tf *Textfile) Write() error {
	err := prometheus.WriteToTextfile(tf.path, tf.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}

// Shutdown releases the meter provider.
func (tf *Textfile) Shutdown(ctx context.Context) error {
	err := tf.provider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown textfile provider: %w", err)
	}

	return nil
}
