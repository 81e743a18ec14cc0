package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/refine"
)

var testChapterCounter atomic.Int64

// Chapter options
type ChapterOption func(*refine.ChapterInput)

func WithChapterID(id string) ChapterOption {
	return func(c *refine.ChapterInput) {
		c.ID = id
	}
}

func WithContent(content string) ChapterOption {
	return func(c *refine.ChapterInput) {
		c.Content = content
	}
}

// NewTestChapter returns a chapter with a unique id and placeholder prose.
func NewTestChapter(title string, opts ...ChapterOption) refine.ChapterInput {
	n := testChapterCounter.Add(1)
	c := refine.ChapterInput{
		ID:      fmt.Sprintf("ch-%03d", n),
		Title:   title,
		Content: fmt.Sprintf("%s opens on a quiet street. Nothing happens yet.", title),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewTestChapters returns n chapters titled "Chapter 1".."Chapter n".
func NewTestChapters(n int) []refine.ChapterInput {
	out := make([]refine.ChapterInput, n)
	for i := range out {
		out[i] = NewTestChapter(fmt.Sprintf("Chapter %d", i+1))
	}
	return out
}

// NewTestPipeline creates an idle pipeline over the given chapters.
func NewTestPipeline(t *testing.T, chapters []refine.ChapterInput, stages ...domain.RefinementStage) *domain.RefinementPipeline {
	t.Helper()
	p, err := refine.NewOrchestrator().CreatePipeline(chapters, stages...)
	if err != nil {
		t.Fatalf("failed to create test pipeline: %v", err)
	}
	return p
}

// Metrics options
type MetricsOption func(*domain.QualityMetrics)

func WithOverall(v float64) MetricsOption {
	return func(m *domain.QualityMetrics) {
		m.OverallScore = v
	}
}

func WithAIFlavor(v float64) MetricsOption {
	return func(m *domain.QualityMetrics) {
		m.AIFlavorScore = v
	}
}

func WithRecordedAt(ts time.Time) MetricsOption {
	return func(m *domain.QualityMetrics) {
		m.Timestamp = ts
	}
}

// NewTestMetrics returns a snapshot that trips no detector under the
// default thresholds.
func NewTestMetrics(chapter int, opts ...MetricsOption) domain.QualityMetrics {
	m := domain.QualityMetrics{
		ChapterNumber:    chapter,
		Timestamp:        time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC).Add(time.Duration(chapter) * time.Minute),
		OverallScore:     80,
		AIFlavorScore:    10,
		CoolPointDensity: 0.6,
		PacingScore:      75,
		ConsistencyScore: 85,
		RepetitionScore:  5,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}
