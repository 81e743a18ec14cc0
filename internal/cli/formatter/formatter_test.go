package formatter

import (
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/quality"
	"github.com/alexanderramin/inkwell/internal/refine"
	"github.com/stretchr/testify/assert"
)

// ansiPattern matches ANSI escape sequences so assertions are
// terminal-independent.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestRenderTable_AlignsColumns(t *testing.T) {
	got := stripANSI(RenderTable([]string{"A", "LONG"}, [][]string{{"wide cell", "x"}, {"y", StyleBad.Render("z")}}))
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")

	assert.Len(t, lines, 4)
	assert.Equal(t, "A          LONG", lines[0])
	assert.Equal(t, "─────────  ────", lines[1])
	assert.Equal(t, "wide cell  x", lines[2])
	assert.Equal(t, "y          z", lines[3])
}

func TestRenderTable_NoHeaders(t *testing.T) {
	assert.Empty(t, RenderTable(nil, [][]string{{"x"}}))
}

func TestRenderProgress(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Progress
		want string
	}{
		{"empty", domain.Progress{}, "[░░░░░░░░░░]   0% 0/0"},
		{"half", domain.Progress{Total: 4, Completed: 2, Percentage: 50}, "[█████░░░░░]  50% 2/4"},
		{"done", domain.Progress{Total: 4, Completed: 4, Percentage: 100}, "[██████████] 100% 4/4"},
		{"clamps", domain.Progress{Percentage: 140}, "[██████████] 100% 0/0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripANSI(RenderProgress(tt.p, 10)))
		})
	}
}

func TestChapterList(t *testing.T) {
	assert.Equal(t, "--", ChapterList(nil))
	assert.Equal(t, "4", ChapterList([]int{4}))
	assert.Equal(t, "1-3, 7, 9-10", ChapterList([]int{1, 2, 3, 7, 9, 10}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "longe…", Truncate("longer text", 6))
	assert.Equal(t, "ünïc…", Truncate("ünïcode", 5))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m 05s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h 30m", FormatDuration(90*time.Minute))
}

func TestFormatPipelineDetail_ShowsTasks(t *testing.T) {
	p, err := refine.NewOrchestrator().CreatePipeline([]refine.ChapterInput{
		{ID: "c1", Title: "Arrival", Content: "x"},
		{ID: "c2", Content: "y"},
	}, domain.StageRemoveAIFlavor, domain.StageEnhanceTension)
	assert.NoError(t, err)
	p.Source = "book.json"
	p.Tasks[1].SetStatus(domain.TaskFailed, "model down", time.Now())

	got := stripANSI(FormatPipelineDetail(p))
	assert.Contains(t, got, p.ID)
	assert.Contains(t, got, "book.json")
	assert.Contains(t, got, "Arrival")
	assert.Contains(t, got, "c2", "untitled chapters fall back to the id")
	assert.Contains(t, got, "model down")
	assert.Contains(t, got, refine.Label(domain.StageRemoveAIFlavor)+" → "+refine.Label(domain.StageEnhanceTension))
}

func TestFormatStageCatalog(t *testing.T) {
	got := stripANSI(FormatStageCatalog(refine.Catalog()))
	for _, s := range domain.DefaultStages() {
		assert.Contains(t, got, string(s))
	}
}

func TestFormatAlerts(t *testing.T) {
	assert.Equal(t, "No alerts.\n", stripANSI(FormatAlerts(nil)))

	got := stripANSI(FormatAlerts([]domain.QualityAlert{{
		Type:             domain.AlertLowScore,
		Severity:         domain.SeverityHigh,
		Priority:         75,
		Title:            "Sustained low scores",
		Message:          "3 consecutive chapters scored below 60",
		AffectedChapters: []int{4, 5, 6},
		Suggestions:      []string{"Revisit the outline"},
	}}))
	assert.Contains(t, got, "▲ HIGH  Sustained low scores (low-score, priority 75)")
	assert.Contains(t, got, "chapters 4-6")
	assert.Contains(t, got, "→ Revisit the outline")
}

func TestFormatAlertStats_ListsEveryBucket(t *testing.T) {
	got := stripANSI(FormatAlertStats(quality.AlertStats{
		Total:       2,
		ActiveCount: 1,
		ByType:      map[domain.AlertType]int{domain.AlertPacing: 2},
		BySeverity:  map[domain.Severity]int{domain.SeverityMedium: 2},
	}))
	assert.Contains(t, got, "Recorded 2   Active 1")
	for _, ty := range domain.AllAlertTypes {
		assert.Contains(t, got, string(ty))
	}
	assert.Contains(t, got, "MEDIUM")
}

func TestFormatThresholds_MarksDisabled(t *testing.T) {
	th := domain.DefaultThresholds()
	th.Disabled = map[domain.AlertType]bool{domain.AlertPacing: true}

	got := stripANSI(FormatThresholds(th))
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "pacing") {
			assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "off"))
		}
		if strings.HasPrefix(line, "low-score") {
			assert.Contains(t, line, "overall < 60 for 3 chapters")
			assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "on"))
		}
	}
}

func TestFormatHistory_NaNScore(t *testing.T) {
	got := stripANSI(FormatHistory([]domain.QualityMetrics{{
		ChapterNumber: 2,
		OverallScore:  math.NaN(),
		Timestamp:     time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
	}}))
	assert.Contains(t, got, "--")
}

func TestFormatScores_OneLine(t *testing.T) {
	got := stripANSI(FormatScores(domain.RawQualityScores{
		Overall: 72, AIFlavor: 18, CoolPointDensity: 0.45, Pacing: 66, Consistency: 90, Repetition: math.NaN(),
	}))
	assert.Equal(t, "overall 72  ai 18  cool 0.45  pacing 66  consistency 90  repetition --\n", got)
}
