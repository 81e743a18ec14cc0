package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/service"
)

// PipelineListTool handles the pipeline_list MCP tool.
type PipelineListTool struct {
	pipelines service.RefineService
}

// NewPipelineListTool creates a PipelineListTool.
func NewPipelineListTool(pipelines service.RefineService) *PipelineListTool {
	return &PipelineListTool{pipelines: pipelines}
}

// Definition returns the MCP tool definition for pipeline_list.
func (t *PipelineListTool) Definition() mcp.Tool {
	return mcp.NewTool("pipeline_list",
		mcp.WithDescription("List refinement pipelines, newest first, with status and progress."),
		mcp.WithString("status",
			mcp.Description("Only pipelines in this status"),
			mcp.Enum("idle", "running", "paused", "completed", "failed"),
		),
	)
}

// Handle processes the pipeline_list tool call.
func (t *PipelineListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	if status != "" && !domain.ValidPipelineStatuses[status] {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", status)), nil
	}

	list, err := t.pipelines.List(ctx, domain.PipelineStatus(status))
	if err != nil {
		return failure("listing pipelines", err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No pipelines found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Pipelines (%d)\n\n", len(list))
	for _, p := range list {
		fmt.Fprintf(&b, "- `%s` **%s**: %d/%d stages (%d%%), %d chapters, %d failed",
			p.ID, p.Status, p.Progress.Completed, p.Progress.Total, p.Progress.Percentage, len(p.Tasks), p.Progress.Failed)
		if p.Source != "" {
			fmt.Fprintf(&b, ", from %s", p.Source)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// PipelineReportTool handles the pipeline_report MCP tool.
type PipelineReportTool struct {
	pipelines service.RefineService
}

// NewPipelineReportTool creates a PipelineReportTool.
func NewPipelineReportTool(pipelines service.RefineService) *PipelineReportTool {
	return &PipelineReportTool{pipelines: pipelines}
}

// Definition returns the MCP tool definition for pipeline_report.
func (t *PipelineReportTool) Definition() mcp.Tool {
	return mcp.NewTool("pipeline_report",
		mcp.WithDescription("Markdown report of one pipeline: stages, per-chapter status, errors and timing."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Pipeline id"),
		),
	)
}

// Handle processes the pipeline_report tool call.
func (t *PipelineReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	report, err := t.pipelines.Report(ctx, id)
	if err != nil {
		return failure("pipeline "+id, err), nil
	}
	return mcp.NewToolResultText(report), nil
}

// PipelineExportTool handles the pipeline_export MCP tool.
type PipelineExportTool struct {
	pipelines service.RefineService
}

// NewPipelineExportTool creates a PipelineExportTool.
func NewPipelineExportTool(pipelines service.RefineService) *PipelineExportTool {
	return &PipelineExportTool{pipelines: pipelines}
}

// Definition returns the MCP tool definition for pipeline_export.
func (t *PipelineExportTool) Definition() mcp.Tool {
	return mcp.NewTool("pipeline_export",
		mcp.WithDescription("Export the original and refined text of every completed chapter."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Pipeline id"),
		),
		mcp.WithString("format",
			mcp.Description("Output encoding (default json)"),
			mcp.Enum("json", "csv"),
		),
	)
}

// Handle processes the pipeline_export tool call.
func (t *PipelineExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	format := service.ExportFormat(req.GetString("format", string(service.ExportJSON)))

	var b strings.Builder
	n, err := t.pipelines.Export(ctx, id, format, &b)
	if err != nil {
		return failure("exporting "+id, err), nil
	}
	if n == 0 {
		return mcp.NewToolResultText("No completed chapters to export yet."), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}
