package refine

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// GenerateReport renders a deterministic Markdown summary of the pipeline.
func GenerateReport(p *domain.RefinementPipeline) string {
	progress := domain.ComputeProgress(p.Tasks, p.Stages)

	var sb strings.Builder
	sb.WriteString("# Refinement Pipeline Report\n\n")
	sb.WriteString(fmt.Sprintf("- **Pipeline**: %s\n", p.ID))
	sb.WriteString(fmt.Sprintf("- **Status**: %s\n", p.Status))
	sb.WriteString(fmt.Sprintf("- **Progress**: %d/%d stages (%d%%)\n", progress.Completed, progress.Total, progress.Percentage))
	sb.WriteString(fmt.Sprintf("- **Failed tasks**: %d\n", progress.Failed))
	sb.WriteString(fmt.Sprintf("- **Started**: %s\n", formatTime(p.StartTime)))
	sb.WriteString(fmt.Sprintf("- **Finished**: %s\n", formatTime(p.EndTime)))

	sb.WriteString("\n## Stages\n\n")
	for i, s := range p.Stages {
		sb.WriteString(fmt.Sprintf("%d. %s (`%s`)\n", i+1, Label(s), s))
	}

	sb.WriteString("\n## Tasks\n\n")
	if len(p.Tasks) == 0 {
		sb.WriteString("_No tasks._\n")
	}
	for i, t := range p.Tasks {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("### %d. %s (`%s`)\n\n", i+1, t.DisplayTitle(), t.ChapterID))
		sb.WriteString(fmt.Sprintf("- Status: %s\n", t.Status))
		sb.WriteString(fmt.Sprintf("- Current stage: %s\n", t.CurrentStage))
		sb.WriteString(fmt.Sprintf("- Completed stages: %d/%d", len(t.CompletedStages), len(p.Stages)))
		if len(t.CompletedStages) > 0 {
			names := make([]string, len(t.CompletedStages))
			for j, s := range t.CompletedStages {
				names[j] = string(s)
			}
			sb.WriteString(" (" + strings.Join(names, ", ") + ")")
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("- Started: %s\n", formatTime(t.StartTime)))
		sb.WriteString(fmt.Sprintf("- Finished: %s\n", formatTime(t.EndTime)))
		if d, ok := t.Duration(); ok {
			sb.WriteString(fmt.Sprintf("- Duration: %s\n", d.Round(time.Second)))
		}
		if t.Error != "" {
			sb.WriteString(fmt.Sprintf("- Error: %s\n", t.Error))
		}
	}

	counts := p.CountByStatus()
	sb.WriteString("\n## Summary\n\n")
	sb.WriteString("| Status | Tasks |\n")
	sb.WriteString("|--------|-------|\n")
	for _, s := range domain.AllTaskStatuses {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", s, counts[s]))
	}
	sb.WriteString(fmt.Sprintf("| **total** | %d |\n", len(p.Tasks)))

	return sb.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
