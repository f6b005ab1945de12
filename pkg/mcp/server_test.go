package mcp_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/gitstat/pkg/gitlib/gitlibtest"
	"github.com/Sumatoshi-tech/gitstat/pkg/gitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/mcp"
	"github.com/Sumatoshi-tech/gitstat/pkg/observability"
)

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func sampleRoot(t *testing.T) string {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	repo := gitlibtest.NewAt(t, filepath.Join(root, "app"))
	repo.WriteFile("main.go", "package main\n\nfunc main() {}\n")
	repo.Commit("initial")
	repo.WriteFile("main.go", "package main\n\nfunc main() { println() }\n")
	repo.Commit("print")

	return root
}

func textOf(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	return text.Text
}

func TestServer_ListToolNames(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})

	assert.Equal(t, []string{mcp.ToolNameExport}, srv.ListToolNames())
}

func TestServer_ToolsListOverTransport(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)

	assert.Equal(t, mcp.ToolNameExport, tools.Tools[0].Name)
	assert.NotNil(t, tools.Tools[0].InputSchema)
	assert.NotEmpty(t, tools.Tools[0].Description)
}

func TestServer_ExportWritesFile(t *testing.T) {
	t.Parallel()

	root := sampleRoot(t)
	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Exporter: &gitstat.Exporter{OutputDir: t.TempDir()},
	}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: mcp.ToolNameExport,
		Arguments: map[string]any{
			"roots":  []string{root},
			"format": "csv",
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	var payload gitstat.Result

	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))

	assert.Equal(t, int64(1), payload.Repositories)
	assert.Equal(t, int64(2), payload.Commits)
	assert.Equal(t, int64(2), payload.Rows)
	assert.Equal(t, ".csv", filepath.Ext(payload.Path))
	assert.FileExists(t, payload.Path)
	assert.Contains(t, payload.Message, "processed 1 repositories, 2 commits")
}

func TestServer_ExportDefaultsFormat(t *testing.T) {
	t.Parallel()

	root := sampleRoot(t)
	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Exporter:           &gitstat.Exporter{OutputDir: t.TempDir()},
		DefaultGranularity: "file",
	}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameExport,
		Arguments: map[string]any{"roots": []string{root}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	var payload gitstat.Result

	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))

	assert.Equal(t, ".xlsx", filepath.Ext(payload.Path))
	assert.Equal(t, int64(2), payload.Rows)
}

func TestServer_ExportRejectsBadInput(t *testing.T) {
	t.Parallel()

	root := sampleRoot(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "no roots", args: map[string]any{"roots": []string{}}, want: mcp.ErrEmptyRoots.Error()},
		{name: "relative root", args: map[string]any{"roots": []string{"repos"}}, want: mcp.ErrRootNotAbsolute.Error()},
		{name: "bad format", args: map[string]any{"roots": []string{root}, "format": "pdf"}, want: "invalid input"},
		{name: "bad granularity", args: map[string]any{"roots": []string{root}, "granularity": "hunk"}, want: "invalid input"},
	}

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Exporter: &gitstat.Exporter{OutputDir: t.TempDir()},
	}))

	for _, tt := range tests {
		result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
			Name:      mcp.ToolNameExport,
			Arguments: tt.args,
		})
		require.NoError(t, err, tt.name)

		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, textOf(t, result), tt.want, tt.name)
	}
}

func TestServer_ExportWithoutExporter(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameExport,
		Arguments: map[string]any{"roots": []string{"/tmp"}},
	})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Equal(t, mcp.ErrNoExporter.Error(), textOf(t, result))
}

func TestServer_RecordsMetricsAndSpans(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Metrics: red,
		Tracer:  tp.Tracer("test"),
	}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameExport,
		Arguments: map[string]any{"roots": []string{"/tmp"}},
	})
	require.NoError(t, err)
	require.True(t, result.IsError)

	require.Len(t, result.Content, 2)

	traceText, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, traceText.Text, "trace_id=")

	ended := spans.GetSpans()
	require.Len(t, ended, 1)
	assert.Equal(t, "mcp."+mcp.ToolNameExport, ended[0].Name)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["gitstat.requests.total"])
	assert.True(t, names["gitstat.errors.total"])
}
