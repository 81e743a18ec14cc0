package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/refine"
)

// FormatPipelineList renders pipelines as a table, newest first as given.
func FormatPipelineList(pipelines []*domain.RefinementPipeline) string {
	headers := []string{"ID", "STATUS", "PROGRESS", "TASKS", "SOURCE", "CREATED"}
	rows := make([][]string, 0, len(pipelines))
	for _, p := range pipelines {
		source := p.Source
		if source == "" {
			source = "--"
		}
		created := p.CreatedAt
		rows = append(rows, []string{
			TruncID(p.ID),
			PipelineStatusPill(p.Status),
			RenderProgress(p.Progress, 10),
			fmt.Sprintf("%d", len(p.Tasks)),
			Truncate(source, 32),
			Timestamp(&created),
		})
	}
	return RenderTable(headers, rows)
}

// FormatPipelineDetail renders a summary box followed by the task table.
func FormatPipelineDetail(p *domain.RefinementPipeline) string {
	var b strings.Builder

	stageLabels := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		stageLabels[i] = refine.Label(s)
	}

	fmt.Fprintf(&b, "%s  %s\n", Bold("Pipeline"), p.ID)
	fmt.Fprintf(&b, "%s  %s\n", Bold("Status  "), PipelineStatusPill(p.Status))
	fmt.Fprintf(&b, "%s  %s\n", Bold("Progress"), RenderProgress(p.Progress, 20))
	fmt.Fprintf(&b, "%s  %s\n", Bold("Stages  "), strings.Join(stageLabels, " → "))
	if p.Source != "" {
		fmt.Fprintf(&b, "%s  %s\n", Bold("Source  "), p.Source)
	}
	fmt.Fprintf(&b, "%s  %s", Bold("Started "), Timestamp(p.StartTime))
	if p.EndTime != nil {
		fmt.Fprintf(&b, "\n%s  %s", Bold("Ended   "), Timestamp(p.EndTime))
	}

	out := RenderBox("Refinement pipeline", b.String())
	if len(p.Tasks) == 0 {
		return out + "\n" + Dim("No chapters.") + "\n"
	}
	return out + "\n\n" + FormatTaskTable(p)
}

// FormatTaskTable renders one row per task.
func FormatTaskTable(p *domain.RefinementPipeline) string {
	headers := []string{"#", "CHAPTER", "STATUS", "STAGE", "DONE", "NOTE"}
	rows := make([][]string, 0, len(p.Tasks))
	for i, t := range p.Tasks {
		note := ""
		if t.Error != "" {
			note = StyleBad.Render(Truncate(t.Error, 48))
		} else if d, ok := t.Duration(); ok {
			note = Dim(FormatDuration(d))
		}
		title := t.DisplayTitle()
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			Truncate(title, 32),
			TaskStatusPill(t.Status),
			refine.Label(t.CurrentStage),
			fmt.Sprintf("%d/%d", len(t.CompletedStages), len(p.Stages)),
			note,
		})
	}
	return RenderTable(headers, rows)
}

// FormatStageCatalog lists the available stages in default order.
func FormatStageCatalog(stages []refine.StageInfo) string {
	headers := []string{"#", "STAGE", "LABEL", "DESCRIPTION"}
	rows := make([][]string, 0, len(stages))
	for i, s := range stages {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			StyleAccent.Render(string(s.Stage)),
			s.Label,
			Dim(s.Description),
		})
	}
	return RenderTable(headers, rows)
}
