// Package scoring grades chapter prose with the completion backend.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/llm"
	"github.com/alexanderramin/inkwell/internal/quality"
)

var _ quality.Scorer = (*LLMScorer)(nil)

const systemPrompt = `You are a strict fiction editor. Grade the chapter you are given and answer with a single JSON object and nothing else:
{"overall":0-100,"aiFlavor":0-100,"coolPointDensity":0.0-1.0,"pacing":0-100,"consistency":0-100,"repetition":0-100}
overall is overall quality. aiFlavor is how machine-written the prose feels (higher is worse). coolPointDensity is the share of scenes that deliver a payoff. pacing and consistency are higher when better. repetition is higher when wording repeats more.`

// scoreResponse uses pointers so missing fields can be told apart from zero.
type scoreResponse struct {
	Overall          *float64 `json:"overall"`
	AIFlavor         *float64 `json:"aiFlavor"`
	CoolPointDensity *float64 `json:"coolPointDensity"`
	Pacing           *float64 `json:"pacing"`
	Consistency      *float64 `json:"consistency"`
	Repetition       *float64 `json:"repetition"`
}

func validate(r scoreResponse) error {
	var missing []string
	for name, v := range map[string]*float64{
		"overall":          r.Overall,
		"aiFlavor":         r.AIFlavor,
		"coolPointDensity": r.CoolPointDensity,
		"pacing":           r.Pacing,
		"consistency":      r.Consistency,
		"repetition":       r.Repetition,
	} {
		if v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing scores: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LLMScorer asks the model for a JSON score card.
type LLMScorer struct {
	client llm.LLMClient
}

// NewLLMScorer creates a scorer backed by client.
func NewLLMScorer(client llm.LLMClient) *LLMScorer {
	return &LLMScorer{client: client}
}

// ErrEmptyChapter is returned when there is no prose to grade.
var ErrEmptyChapter = errors.New("chapter content is empty")

// Score grades content. Values are passed through unclamped.
func (s *LLMScorer) Score(ctx context.Context, content string) (domain.RawQualityScores, error) {
	if strings.TrimSpace(content) == "" {
		return domain.RawQualityScores{}, ErrEmptyChapter
	}
	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskScore,
		SystemPrompt: systemPrompt,
		UserPrompt:   "Chapter:\n" + content,
	})
	if err != nil {
		return domain.RawQualityScores{}, fmt.Errorf("scoring chapter: %w", err)
	}

	r, err := llm.ExtractJSON(resp.Text, validate)
	if err != nil {
		return domain.RawQualityScores{}, fmt.Errorf("scoring chapter: %w", err)
	}
	return domain.RawQualityScores{
		Overall:          *r.Overall,
		AIFlavor:         *r.AIFlavor,
		CoolPointDensity: *r.CoolPointDensity,
		Pacing:           *r.Pacing,
		Consistency:      *r.Consistency,
		Repetition:       *r.Repetition,
	}, nil
}
