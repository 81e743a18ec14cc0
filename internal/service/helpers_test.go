package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/llm"
	"github.com/alexanderramin/inkwell/internal/quality"
	"github.com/alexanderramin/inkwell/internal/repository"
	"github.com/alexanderramin/inkwell/internal/testutil"
)

// scriptedLLM answers Stream calls with reply. The default reply echoes the
// stage label found in the prompt.
type scriptedLLM struct {
	mu    sync.Mutex
	calls []llm.GenerateRequest
	reply func(ctx context.Context, call int, req llm.GenerateRequest) (string, error)
}

func (s *scriptedLLM) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return s.Stream(ctx, req, nil)
}

func (s *scriptedLLM) Stream(ctx context.Context, req llm.GenerateRequest, onChunk func(string)) (*llm.GenerateResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	call := len(s.calls)
	s.mu.Unlock()

	text := fmt.Sprintf("refined #%d", call)
	if s.reply != nil {
		var err error
		text, err = s.reply(ctx, call, req)
		if err != nil {
			return nil, err
		}
	}
	if onChunk != nil {
		for _, word := range strings.SplitAfter(text, " ") {
			onChunk(word)
		}
	}
	return &llm.GenerateResponse{Text: text, Model: "fake"}, nil
}

func (s *scriptedLLM) Available(context.Context) bool { return true }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixedScorer struct {
	raw domain.RawQualityScores
	err error
}

func (f fixedScorer) Score(context.Context, string) (domain.RawQualityScores, error) {
	return f.raw, f.err
}

var errModelDown = errors.New("model down")

type fixture struct {
	db      *sql.DB
	llm     *scriptedLLM
	quality QualityService
	refine  RefineService
}

// newFixture wires both services over one in-memory database. scorer may
// be nil.
func newFixture(t *testing.T, scorer quality.Scorer) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	f := &fixture{db: database, llm: &scriptedLLM{}}
	f.quality = newQuality(database, scorer)
	f.refine = NewRefineService(
		repository.NewSQLitePipelineRepo(database),
		testutil.NewTestUoW(database),
		f.llm,
		f.quality,
		nil,
	)
	return f
}

func newQuality(database *sql.DB, scorer quality.Scorer, opts ...QualityOption) QualityService {
	return NewQualityService(
		repository.NewSQLiteMetricsRepo(database),
		repository.NewSQLiteThresholdsRepo(database),
		scorer,
		opts...,
	)
}

func (f *fixture) create(t *testing.T, chapters int, stages ...domain.RefinementStage) *domain.RefinementPipeline {
	t.Helper()
	if len(stages) == 0 {
		stages = []domain.RefinementStage{domain.StageRemoveAIFlavor, domain.StageEnhanceTension}
	}
	p, err := f.refine.Create(context.Background(), testutil.NewTestChapters(chapters), stages, "")
	if err != nil {
		t.Fatalf("creating pipeline: %v", err)
	}
	return p
}

type eventLog struct {
	mu     sync.Mutex
	events []RunEvent
}

func (l *eventLog) record(ev RunEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []RunEventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RunEventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) count(kind RunEventKind) int {
	n := 0
	for _, k := range l.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}
