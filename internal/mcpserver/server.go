// Package mcpserver exposes pipeline and quality queries as MCP tools over
// stdio so an editor agent can inspect a manuscript's state.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alexanderramin/inkwell/internal/service"
)

// Version is reported to MCP clients.
var Version = "dev"

// Tool is one registered MCP tool.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates the MCP server with every tool registered.
func New(pipelines service.RefineService, quality service.QualityService) *server.MCPServer {
	s := server.NewMCPServer(
		"inkwell",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(pipelines, quality) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// Tools returns the tool set in registration order.
func Tools(pipelines service.RefineService, quality service.QualityService) []Tool {
	return []Tool{
		NewPipelineListTool(pipelines),
		NewPipelineReportTool(pipelines),
		NewPipelineExportTool(pipelines),
		NewQualityRecordTool(quality),
		NewQualityAlertsTool(quality),
		NewQualityReportTool(quality),
	}
}

// ServeStdio blocks serving s on stdin and stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = "inkwell tracks AI refinement pipelines for novel chapters and raises quality alerts " +
	"from per-chapter scores. Use pipeline_list to find a pipeline, pipeline_report or pipeline_export to " +
	"inspect it, quality_record to add a chapter's scores, and quality_alerts or quality_report to review trends."
