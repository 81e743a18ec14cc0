package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/quality"
	"github.com/alexanderramin/inkwell/internal/service"
)

// scoreArgs maps tool argument names onto the raw score fields.
var scoreArgs = []struct {
	key  string
	desc string
	set  func(*domain.RawQualityScores, float64)
}{
	{"overall", "Overall score 0-100", func(r *domain.RawQualityScores, v float64) { r.Overall = v }},
	{"aiFlavor", "Machine-like prose 0-100, higher is worse", func(r *domain.RawQualityScores, v float64) { r.AIFlavor = v }},
	{"coolPointDensity", "Payoff moments per scene, 0-1", func(r *domain.RawQualityScores, v float64) { r.CoolPointDensity = v }},
	{"pacing", "Pacing score 0-100", func(r *domain.RawQualityScores, v float64) { r.Pacing = v }},
	{"consistency", "Consistency score 0-100", func(r *domain.RawQualityScores, v float64) { r.Consistency = v }},
	{"repetition", "Repetition 0-100, higher is worse", func(r *domain.RawQualityScores, v float64) { r.Repetition = v }},
}

// QualityRecordTool handles the quality_record MCP tool.
type QualityRecordTool struct {
	quality service.QualityService
}

// NewQualityRecordTool creates a QualityRecordTool.
func NewQualityRecordTool(q service.QualityService) *QualityRecordTool {
	return &QualityRecordTool{quality: q}
}

// Definition returns the MCP tool definition for quality_record.
func (t *QualityRecordTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Record one chapter's quality scores and return the alerts they raise."),
		mcp.WithNumber("chapter",
			mcp.Required(),
			mcp.Description("Chapter number, starting at 1"),
		),
	}
	for _, a := range scoreArgs {
		opts = append(opts, mcp.WithNumber(a.key, mcp.Required(), mcp.Description(a.desc)))
	}
	return mcp.NewTool("quality_record", opts...)
}

// Handle processes the quality_record tool call.
func (t *QualityRecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chapter := intArg(req, "chapter", 0)
	if chapter < 1 {
		return mcp.NewToolResultError("'chapter' must be a positive number"), nil
	}
	var raw domain.RawQualityScores
	var missing []string
	for _, a := range scoreArgs {
		v, ok := floatArg(req, a.key)
		if !ok {
			missing = append(missing, a.key)
			continue
		}
		a.set(&raw, v)
	}
	if len(missing) > 0 {
		return mcp.NewToolResultError("missing scores: " + strings.Join(missing, ", ")), nil
	}

	alerts, err := t.quality.Record(ctx, chapter, raw)
	if err != nil {
		return failure("recording scores", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recorded chapter %d (overall %.0f).\n\n", chapter, raw.Overall)
	writeAlerts(&b, alerts)
	return mcp.NewToolResultText(b.String()), nil
}

// QualityAlertsTool handles the quality_alerts MCP tool.
type QualityAlertsTool struct {
	quality service.QualityService
}

// NewQualityAlertsTool creates a QualityAlertsTool.
func NewQualityAlertsTool(q service.QualityService) *QualityAlertsTool {
	return &QualityAlertsTool{quality: q}
}

// Definition returns the MCP tool definition for quality_alerts.
func (t *QualityAlertsTool) Definition() mcp.Tool {
	types := make([]string, len(domain.AllAlertTypes))
	for i, ty := range domain.AllAlertTypes {
		types[i] = string(ty)
	}
	severities := make([]string, len(domain.AllSeverities))
	for i, s := range domain.AllSeverities {
		severities[i] = string(s)
	}
	return mcp.NewTool("quality_alerts",
		mcp.WithDescription("List quality alerts by descending priority. With active=true only "+
			"conditions that still hold for the current history are returned."),
		mcp.WithString("type", mcp.Description("Only this alert type"), mcp.Enum(types...)),
		mcp.WithString("severity", mcp.Description("Only this severity"), mcp.Enum(severities...)),
		mcp.WithNumber("minPriority", mcp.Description("Only alerts at or above this priority")),
		mcp.WithBoolean("active", mcp.Description("Re-evaluate against current history (default false)")),
	)
}

// Handle processes the quality_alerts tool call.
func (t *QualityAlertsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := quality.AlertFilter{
		Type:        domain.AlertType(req.GetString("type", "")),
		Severity:    domain.Severity(req.GetString("severity", "")),
		MinPriority: intArg(req, "minPriority", 0),
	}

	var alerts []domain.QualityAlert
	var err error
	if boolArg(req, "active", false) {
		alerts, err = t.quality.Active(ctx)
		alerts = applyFilter(alerts, filter)
	} else {
		alerts, err = t.quality.Alerts(ctx, filter)
	}
	if err != nil {
		return failure("listing alerts", err), nil
	}

	var b strings.Builder
	writeAlerts(&b, alerts)
	return mcp.NewToolResultText(b.String()), nil
}

// QualityReportTool handles the quality_report MCP tool.
type QualityReportTool struct {
	quality service.QualityService
}

// NewQualityReportTool creates a QualityReportTool.
func NewQualityReportTool(q service.QualityService) *QualityReportTool {
	return &QualityReportTool{quality: q}
}

// Definition returns the MCP tool definition for quality_report.
func (t *QualityReportTool) Definition() mcp.Tool {
	return mcp.NewTool("quality_report",
		mcp.WithDescription("Markdown quality report: statistics and every active alert with suggestions."),
	)
}

// Handle processes the quality_report tool call.
func (t *QualityReportTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.quality.Report(ctx)
	if err != nil {
		return failure("building report", err), nil
	}
	return mcp.NewToolResultText(report), nil
}

func writeAlerts(b *strings.Builder, alerts []domain.QualityAlert) {
	if len(alerts) == 0 {
		b.WriteString("No alerts.\n")
		return
	}
	fmt.Fprintf(b, "## Alerts (%d)\n\n", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(b, "- **[%s] %s** (`%s`, priority %d, chapters %s): %s\n",
			strings.ToUpper(string(a.Severity)), a.Title, a.Type, a.Priority, joinInts(a.AffectedChapters), a.Message)
		for _, s := range a.Suggestions {
			fmt.Fprintf(b, "  - %s\n", s)
		}
	}
}

func applyFilter(alerts []domain.QualityAlert, f quality.AlertFilter) []domain.QualityAlert {
	out := alerts[:0:0]
	for _, a := range alerts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ", ")
}
