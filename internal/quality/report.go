package quality

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// GenerateAlertReport renders the statistics and active alerts as Markdown.
func (e *Engine) GenerateAlertReport() string {
	stats := e.GetAlertStats()
	active := e.GetActiveAlerts()

	var sb strings.Builder
	sb.WriteString("# Quality Alert Report\n\n")
	sb.WriteString("## Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Chapters tracked**: %d\n", e.recorder.Len()))
	sb.WriteString(fmt.Sprintf("- **Alerts recorded**: %d\n", stats.Total))
	sb.WriteString(fmt.Sprintf("- **Active alerts**: %d\n", stats.ActiveCount))

	sb.WriteString("\n### By severity\n\n")
	sb.WriteString("| Severity | Alerts |\n")
	sb.WriteString("|----------|--------|\n")
	for _, s := range domain.AllSeverities {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", s, stats.BySeverity[s]))
	}

	sb.WriteString("\n### By type\n\n")
	sb.WriteString("| Type | Alerts |\n")
	sb.WriteString("|------|--------|\n")
	for _, t := range domain.AllAlertTypes {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", t, stats.ByType[t]))
	}

	sb.WriteString("\n## Active Alerts\n\n")
	if len(active) == 0 {
		sb.WriteString("_No active alerts._\n")
	}
	for i, a := range active {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("### %d. [%s] %s\n\n", i+1, strings.ToUpper(string(a.Severity)), a.Title))
		sb.WriteString(fmt.Sprintf("- Type: %s\n", a.Type))
		sb.WriteString(fmt.Sprintf("- Priority: %d\n", a.Priority))
		sb.WriteString(fmt.Sprintf("- Chapters: %s\n", joinInts(a.AffectedChapters)))
		sb.WriteString(fmt.Sprintf("- Detail: %s\n", a.Message))
		if len(a.Suggestions) > 0 {
			sb.WriteString("- Suggestions:\n")
			for _, s := range a.Suggestions {
				sb.WriteString("  - " + s + "\n")
			}
		}
	}
	return sb.String()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
