package quality

import (
	"fmt"
	"math"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// detector inspects the full history (oldest first) and returns zero or more
// alerts. Detectors are pure and must tolerate any float input.
type detector func(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert

var detectors = map[domain.AlertType]detector{
	domain.AlertLowScore:    detectLowScore,
	domain.AlertAIFlavor:    detectAIFlavor,
	domain.AlertCoolPoint:   detectCoolPoint,
	domain.AlertPacing:      detectPacing,
	domain.AlertConsistency: detectConsistency,
	domain.AlertRepetition:  detectRepetition,
}

const (
	lowScoreCriticalGap      = 10.0
	aiFlavorHighExcess       = 20.0
	consistencyHighShortfall = 15.0
)

// evaluate runs every enabled detector in detection order.
func evaluate(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert {
	if len(history) == 0 {
		return nil
	}
	var out []domain.QualityAlert
	for _, t := range domain.AllAlertTypes {
		if !th.Enabled(t) {
			continue
		}
		out = append(out, detectors[t](history, th)...)
	}
	return out
}

func alertID(t domain.AlertType, anchor int) string {
	return fmt.Sprintf("%s:%d", t, anchor)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func newAlert(t domain.AlertType, sev domain.Severity, anchor int, latest domain.QualityMetrics) domain.QualityAlert {
	return domain.QualityAlert{
		ID:         alertID(t, anchor),
		Type:       t,
		Severity:   sev,
		Priority:   sev.Priority(),
		DetectedAt: latest.Timestamp,
	}
}

func detectLowScore(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert {
	minRun := th.LowScoreMinRun
	if minRun <= 0 {
		minRun = domain.DefaultThresholds().LowScoreMinRun
	}

	start := len(history)
	for start > 0 {
		v := history[start-1].OverallScore
		if !finite(v) || v >= th.LowScoreThreshold {
			break
		}
		start--
	}
	run := history[start:]
	if len(run) < minRun {
		return nil
	}

	chapters := make([]int, 0, len(run))
	var sum float64
	for _, m := range run {
		chapters = append(chapters, m.ChapterNumber)
		sum += m.OverallScore
	}
	avg := sum / float64(len(run))

	sev := domain.SeverityMedium
	if th.LowScoreThreshold-avg >= lowScoreCriticalGap {
		sev = domain.SeverityCritical
	}
	a := newAlert(domain.AlertLowScore, sev, run[0].ChapterNumber, run[len(run)-1])
	a.Title = "Sustained low scores"
	a.Message = fmt.Sprintf("%d consecutive chapters scored below %.0f (average %.1f)", len(run), th.LowScoreThreshold, avg)
	a.Value = avg
	a.Threshold = th.LowScoreThreshold
	a.AffectedChapters = chapters
	a.Suggestions = []string{
		"Re-read the affected chapters back to back and look for a shared weakness",
		"Run the refinement pipeline on the affected chapters",
		"Revisit the outline for this stretch of the story",
	}
	return []domain.QualityAlert{a}
}

func detectAIFlavor(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert {
	latest := history[len(history)-1]
	v := latest.AIFlavorScore
	if !finite(v) || v <= th.AIFlavorThreshold {
		return nil
	}
	sev := domain.SeverityMedium
	if v-th.AIFlavorThreshold >= aiFlavorHighExcess {
		sev = domain.SeverityHigh
	}
	a := newAlert(domain.AlertAIFlavor, sev, latest.ChapterNumber, latest)
	a.Title = "Machine-like prose"
	a.Message = fmt.Sprintf("Chapter %d has an AI-flavor score of %.1f (limit %.0f)", latest.ChapterNumber, v, th.AIFlavorThreshold)
	a.Value = v
	a.Threshold = th.AIFlavorThreshold
	a.AffectedChapters = []int{latest.ChapterNumber}
	a.Suggestions = []string{
		"Replace stock phrases and hedging transitions with concrete detail",
		"Vary sentence length and rhythm",
		"Run the remove-ai-flavor stage on this chapter",
	}
	return []domain.QualityAlert{a}
}

func detectCoolPoint(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert {
	window := th.CoolPointWindow
	if window <= 0 {
		window = domain.DefaultThresholds().CoolPointWindow
	}
	if len(history) < window {
		return nil
	}
	recent := history[len(history)-window:]
	chapters := make([]int, 0, window)
	var sum float64
	for _, m := range recent {
		if !finite(m.CoolPointDensity) {
			return nil
		}
		sum += m.CoolPointDensity
		chapters = append(chapters, m.ChapterNumber)
	}
	avg := sum / float64(window)
	if avg >= th.CoolPointMinDensity {
		return nil
	}
	a := newAlert(domain.AlertCoolPoint, domain.SeverityHigh, recent[0].ChapterNumber, recent[len(recent)-1])
	a.Title = "Too few payoff moments"
	a.Message = fmt.Sprintf("Average cool-point density over the last %d chapters is %.2f (minimum %.2f)", window, avg, th.CoolPointMinDensity)
	a.Value = avg
	a.Threshold = th.CoolPointMinDensity
	a.AffectedChapters = chapters
	a.Suggestions = []string{
		"Plant a reversal, reveal or victory in the next chapter",
		"Shorten setup scenes that delay the payoff",
	}
	return []domain.QualityAlert{a}
}

func detectPacing(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert {
	latest := history[len(history)-1]
	v := latest.PacingScore
	if !finite(v) || v >= th.PacingThreshold {
		return nil
	}
	a := newAlert(domain.AlertPacing, domain.SeverityMedium, latest.ChapterNumber, latest)
	a.Title = "Pacing problem"
	a.Message = fmt.Sprintf("Chapter %d has a pacing score of %.1f (minimum %.0f)", latest.ChapterNumber, v, th.PacingThreshold)
	a.Value = v
	a.Threshold = th.PacingThreshold
	a.AffectedChapters = []int{latest.ChapterNumber}
	a.Suggestions = []string{
		"Cut or compress scenes that do not move the plot",
		"Run the enhance-tension stage on this chapter",
	}
	return []domain.QualityAlert{a}
}

func detectConsistency(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert {
	latest := history[len(history)-1]
	v := latest.ConsistencyScore
	if !finite(v) || v >= th.ConsistencyThreshold {
		return nil
	}
	sev := domain.SeverityMedium
	if th.ConsistencyThreshold-v >= consistencyHighShortfall {
		sev = domain.SeverityHigh
	}
	a := newAlert(domain.AlertConsistency, sev, latest.ChapterNumber, latest)
	a.Title = "Consistency issues"
	a.Message = fmt.Sprintf("Chapter %d has a consistency score of %.1f (minimum %.0f)", latest.ChapterNumber, v, th.ConsistencyThreshold)
	a.Value = v
	a.Threshold = th.ConsistencyThreshold
	a.AffectedChapters = []int{latest.ChapterNumber}
	a.Suggestions = []string{
		"Check character names, abilities and timeline against earlier chapters",
		"Run the improve-character stage on this chapter",
	}
	return []domain.QualityAlert{a}
}

func detectRepetition(history []domain.QualityMetrics, th domain.Thresholds) []domain.QualityAlert {
	latest := history[len(history)-1]
	v := latest.RepetitionScore
	if !finite(v) || v <= th.RepetitionThreshold {
		return nil
	}
	a := newAlert(domain.AlertRepetition, domain.SeverityMedium, latest.ChapterNumber, latest)
	a.Title = "Repetitive wording"
	a.Message = fmt.Sprintf("Chapter %d has a repetition score of %.1f (limit %.0f)", latest.ChapterNumber, v, th.RepetitionThreshold)
	a.Value = v
	a.Threshold = th.RepetitionThreshold
	a.AffectedChapters = []int{latest.ChapterNumber}
	a.Suggestions = []string{
		"Search for repeated phrases and descriptions and vary them",
	}
	return []domain.QualityAlert{a}
}
