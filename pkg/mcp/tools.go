package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/gitstat/pkg/gitstat"
)

// ToolNameExport is the name of the export tool.
const ToolNameExport = "gitstat_export"

const (
	defaultFormat      = "xlsx"
	defaultGranularity = "commit"
)

// Sentinel errors for tool input validation.
var (
	// ErrNoExporter indicates the server was built without an exporter.
	ErrNoExporter = errors.New("export is not configured on this server")
	// ErrEmptyRoots indicates the roots parameter is empty.
	ErrEmptyRoots = errors.New("roots parameter is required and must not be empty")
	// ErrRootNotAbsolute indicates a root is not an absolute path.
	ErrRootNotAbsolute = errors.New("roots must be absolute paths")
)

// ExportInput is the input schema for the gitstat_export tool.
type ExportInput struct {
	Roots       []string `json:"roots"                 jsonschema:"absolute directories to search for git repositories"`
	Format      string   `json:"format,omitempty"      jsonschema:"output format: xlsx or csv (default: xlsx)"`
	Granularity string   `json:"granularity,omitempty" jsonschema:"one row per commit or per changed file (default: commit)"`
	Extension   string   `json:"extension,omitempty"   jsonschema:"optional path to a JavaScript extension script"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleExport(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ExportInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.exporter == nil {
		return errorResult(ErrNoExporter)
	}

	req, err := s.request(input)
	if err != nil {
		return errorResult(err)
	}

	result, err := s.exporter.Run(ctx, req)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// request applies server defaults and checks the roots.
func (s *Server) request(input ExportInput) (gitstat.Request, error) {
	if len(input.Roots) == 0 {
		return gitstat.Request{}, ErrEmptyRoots
	}

	for _, root := range input.Roots {
		if !filepath.IsAbs(root) {
			return gitstat.Request{}, fmt.Errorf("%w: %q", ErrRootNotAbsolute, root)
		}
	}

	return gitstat.Request{
		Roots:         input.Roots,
		Format:        fallback(input.Format, s.defaults.Format),
		Granularity:   fallback(input.Granularity, s.defaults.Granularity),
		ExtensionPath: input.Extension,
	}, nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
