package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Palette: ink tones on a parchment foreground. Colors are named for what
// they signal so views pick them by meaning.
var (
	ColorOK     = lipgloss.Color("#7fb069")
	ColorWarn   = lipgloss.Color("#e6aa68")
	ColorBad    = lipgloss.Color("#ca3c25")
	ColorInfo   = lipgloss.Color("#5b8fb9")
	ColorAccent = lipgloss.Color("#9d79bc")
	ColorMuted  = lipgloss.Color("#8a8d91")
	ColorText   = lipgloss.Color("#e8e1d3")
	ColorTitle  = lipgloss.Color("#c8a96a")
)

var (
	StyleOK     = lipgloss.NewStyle().Foreground(ColorOK)
	StyleWarn   = lipgloss.NewStyle().Foreground(ColorWarn)
	StyleBad    = lipgloss.NewStyle().Foreground(ColorBad)
	StyleInfo   = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleAccent = lipgloss.NewStyle().Foreground(ColorAccent)
	StyleMuted  = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleText   = lipgloss.NewStyle().Foreground(ColorText)
	StyleTitle  = lipgloss.NewStyle().Foreground(ColorTitle).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
)

// SeverityStyle maps alert severity to a color.
func SeverityStyle(s domain.Severity) lipgloss.Style {
	switch s {
	case domain.SeverityCritical:
		return StyleBad.Bold(true)
	case domain.SeverityHigh:
		return StyleBad
	case domain.SeverityMedium:
		return StyleWarn
	case domain.SeverityLow:
		return StyleInfo
	default:
		return StyleMuted
	}
}

// SeverityBadge renders e.g. "▲ HIGH".
func SeverityBadge(s domain.Severity) string {
	mark := "●"
	if s == domain.SeverityCritical || s == domain.SeverityHigh {
		mark = "▲"
	}
	return SeverityStyle(s).Render(mark + " " + strings.ToUpper(string(s)))
}

// PipelineStatusPill returns a colored status indicator for a pipeline.
func PipelineStatusPill(status domain.PipelineStatus) string {
	switch status {
	case domain.PipelineRunning:
		return StyleOK.Render("● Running")
	case domain.PipelinePaused:
		return StyleWarn.Render("○ Paused")
	case domain.PipelineCompleted:
		return StyleMuted.Render("✔ Completed")
	case domain.PipelineFailed:
		return StyleBad.Render("✖ Failed")
	case domain.PipelineIdle:
		return StyleInfo.Render("○ Idle")
	default:
		return StyleMuted.Render(string(status))
	}
}

// TaskStatusPill returns a colored status indicator for a task.
func TaskStatusPill(status domain.TaskStatus) string {
	switch status {
	case domain.TaskPending:
		return StyleInfo.Render("○ Pending")
	case domain.TaskProcessing:
		return StyleOK.Render("● Processing")
	case domain.TaskCompleted:
		return StyleMuted.Render("✔ Completed")
	case domain.TaskFailed:
		return StyleBad.Render("✖ Failed")
	case domain.TaskPaused:
		return StyleWarn.Render("⊘ Paused")
	default:
		return StyleMuted.Render(string(status))
	}
}

// Header renders an upper-cased section title over a muted rule.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleTitle.Render(upper), StyleMuted.Render(line))
}

// Dim renders text in the muted color.
func Dim(text string) string {
	return StyleMuted.Render(text)
}

// Bold renders text in bold with the foreground color.
func Bold(text string) string {
	return StyleBold.Render(text)
}
