package refine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// ExportRecord is the hand-off shape for one completed chapter.
type ExportRecord struct {
	ChapterID       string                   `json:"chapterId"`
	ChapterTitle    string                   `json:"chapterTitle"`
	OriginalContent string                   `json:"originalContent"`
	RefinedContent  string                   `json:"refinedContent"`
	CompletedStages []domain.RefinementStage `json:"completedStages"`
}

// ExportResults returns one record per completed task, in pipeline order.
func ExportResults(p *domain.RefinementPipeline) []ExportRecord {
	out := make([]ExportRecord, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.Status != domain.TaskCompleted {
			continue
		}
		out = append(out, ExportRecord{
			ChapterID:       t.ChapterID,
			ChapterTitle:    t.ChapterTitle,
			OriginalContent: t.OriginalContent,
			RefinedContent:  t.CurrentContent,
			CompletedStages: append([]domain.RefinementStage(nil), t.CompletedStages...),
		})
	}
	return out
}

var csvHeader = []string{"chapter_id", "chapter_title", "completed_stages", "original_content", "refined_content"}

// WriteCSV writes records with a header row. Stages are joined with "|".
func WriteCSV(w io.Writer, records []ExportRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		stages := make([]string, len(r.CompletedStages))
		for i, s := range r.CompletedStages {
			stages[i] = string(s)
		}
		row := []string{r.ChapterID, r.ChapterTitle, strings.Join(stages, "|"), r.OriginalContent, r.RefinedContent}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %s: %w", r.ChapterID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []ExportRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}
