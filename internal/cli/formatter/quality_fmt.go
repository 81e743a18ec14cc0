package formatter

import (
	"fmt"
	"math"
	"strings"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/quality"
)

// FormatAlerts renders alerts as cards in the given order.
func FormatAlerts(alerts []domain.QualityAlert) string {
	if len(alerts) == 0 {
		return Dim("No alerts.") + "\n"
	}
	var b strings.Builder
	for i, a := range alerts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s %s\n", SeverityBadge(a.Severity), Bold(a.Title), Dim(fmt.Sprintf("(%s, priority %d)", a.Type, a.Priority)))
		fmt.Fprintf(&b, "   %s\n", a.Message)
		fmt.Fprintf(&b, "   %s %s\n", Dim("chapters"), ChapterList(a.AffectedChapters))
		for _, s := range a.Suggestions {
			fmt.Fprintf(&b, "   %s %s\n", StyleOK.Render("→"), s)
		}
	}
	return b.String()
}

// FormatAlertStats renders totals and per-severity and per-type counts.
func FormatAlertStats(s quality.AlertStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d   %s %d\n\n", Bold("Recorded"), s.Total, Bold("Active"), s.ActiveCount)

	rows := make([][]string, 0, len(domain.AllSeverities))
	for _, sev := range domain.AllSeverities {
		rows = append(rows, []string{SeverityBadge(sev), fmt.Sprintf("%d", s.BySeverity[sev])})
	}
	b.WriteString(RenderTable([]string{"SEVERITY", "COUNT"}, rows))
	b.WriteString("\n")

	rows = rows[:0]
	for _, t := range domain.AllAlertTypes {
		rows = append(rows, []string{string(t), fmt.Sprintf("%d", s.ByType[t])})
	}
	b.WriteString(RenderTable([]string{"TYPE", "COUNT"}, rows))
	return b.String()
}

// FormatThresholds renders detector settings, marking disabled detectors.
func FormatThresholds(th domain.Thresholds) string {
	state := func(t domain.AlertType) string {
		if th.Enabled(t) {
			return StyleOK.Render("on")
		}
		return StyleMuted.Render("off")
	}
	rows := [][]string{
		{string(domain.AlertLowScore), fmt.Sprintf("overall < %.0f for %d chapters", th.LowScoreThreshold, th.LowScoreMinRun), state(domain.AlertLowScore)},
		{string(domain.AlertAIFlavor), fmt.Sprintf("ai flavor > %.0f", th.AIFlavorThreshold), state(domain.AlertAIFlavor)},
		{string(domain.AlertCoolPoint), fmt.Sprintf("density < %.2f over %d chapters", th.CoolPointMinDensity, th.CoolPointWindow), state(domain.AlertCoolPoint)},
		{string(domain.AlertPacing), fmt.Sprintf("pacing < %.0f", th.PacingThreshold), state(domain.AlertPacing)},
		{string(domain.AlertConsistency), fmt.Sprintf("consistency < %.0f", th.ConsistencyThreshold), state(domain.AlertConsistency)},
		{string(domain.AlertRepetition), fmt.Sprintf("repetition > %.0f", th.RepetitionThreshold), state(domain.AlertRepetition)},
	}
	return RenderTable([]string{"DETECTOR", "RULE", "ENABLED"}, rows)
}

// FormatHistory renders recorded snapshots, oldest first.
func FormatHistory(history []domain.QualityMetrics) string {
	rows := make([][]string, 0, len(history))
	for _, m := range history {
		ts := m.Timestamp
		rows = append(rows, []string{
			fmt.Sprintf("%d", m.ChapterNumber),
			score(m.OverallScore),
			score(m.AIFlavorScore),
			fmt.Sprintf("%.2f", m.CoolPointDensity),
			score(m.PacingScore),
			score(m.ConsistencyScore),
			score(m.RepetitionScore),
			Timestamp(&ts),
		})
	}
	return RenderTable([]string{"CH", "OVERALL", "AI", "COOL", "PACING", "CONSIST", "REPEAT", "RECORDED"}, rows)
}

func score(v float64) string {
	if math.IsNaN(v) {
		return "--"
	}
	return fmt.Sprintf("%.0f", v)
}

// FormatScores renders one chapter's raw scores on a single line.
func FormatScores(r domain.RawQualityScores) string {
	return fmt.Sprintf("%s %s  %s %s  %s %.2f  %s %s  %s %s  %s %s\n",
		Dim("overall"), score(r.Overall),
		Dim("ai"), score(r.AIFlavor),
		Dim("cool"), r.CoolPointDensity,
		Dim("pacing"), score(r.Pacing),
		Dim("consistency"), score(r.Consistency),
		Dim("repetition"), score(r.Repetition))
}
