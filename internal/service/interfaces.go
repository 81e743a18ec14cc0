package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/quality"
	"github.com/alexanderramin/inkwell/internal/refine"
)

var (
	// ErrErrorPolicyUnset is returned when Run is called without choosing
	// what happens after a failed stage.
	ErrErrorPolicyUnset = errors.New("error policy must be set to continue or halt")

	// ErrScorerUnavailable is returned by Score when no scorer is wired.
	ErrScorerUnavailable = errors.New("no quality scorer configured")

	// ErrUnknownExportFormat is returned for export formats other than json and csv.
	ErrUnknownExportFormat = errors.New("unknown export format")
)

// ErrorPolicy decides how Run reacts to a failed stage.
type ErrorPolicy int

const (
	// ErrorPolicyUnset is the zero value and is rejected by Run.
	ErrorPolicyUnset ErrorPolicy = iota
	// ErrorPolicyContinue marks the task failed and moves on to the next one.
	ErrorPolicyContinue
	// ErrorPolicyHalt marks the task failed and fails the pipeline.
	ErrorPolicyHalt
)

func (p ErrorPolicy) String() string {
	switch p {
	case ErrorPolicyContinue:
		return "continue"
	case ErrorPolicyHalt:
		return "halt"
	default:
		return "unset"
	}
}

// ParseErrorPolicy accepts "continue" or "halt".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "continue":
		return ErrorPolicyContinue, nil
	case "halt":
		return ErrorPolicyHalt, nil
	default:
		return ErrorPolicyUnset, fmt.Errorf("%w: got %q", ErrErrorPolicyUnset, s)
	}
}

// RunEventKind labels progress notifications from Run.
type RunEventKind string

const (
	EventStageStarted   RunEventKind = "stage_started"
	EventStageCompleted RunEventKind = "stage_completed"
	EventTaskFailed     RunEventKind = "task_failed"
	EventResultDropped  RunEventKind = "result_dropped"
	EventChapterScored  RunEventKind = "chapter_scored"
	EventScoreFailed    RunEventKind = "score_failed"
	EventPipelineDone   RunEventKind = "pipeline_done"
)

// RunEvent is delivered to RunOptions.OnEvent after each transition.
type RunEvent struct {
	Kind         RunEventKind
	PipelineID   string
	TaskID       string
	ChapterTitle string
	Stage        domain.RefinementStage
	Status       domain.PipelineStatus
	Progress     domain.Progress
	Alerts       []domain.QualityAlert
	Err          error
}

// RunOptions configures one Run call.
type RunOptions struct {
	OnError ErrorPolicy
	Prompt  refine.PromptConfig
	// ScoreCompleted grades each chapter once its last stage completes.
	ScoreCompleted bool
	// OnChunk receives streamed text of the stage in flight.
	OnChunk func(taskID, chunk string)
	OnEvent func(RunEvent)
}

// ExportFormat selects the Export encoding.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// RefineService drives refinement pipelines and persists every transition.
type RefineService interface {
	Create(ctx context.Context, chapters []refine.ChapterInput, stages []domain.RefinementStage, source string) (*domain.RefinementPipeline, error)
	Get(ctx context.Context, id string) (*domain.RefinementPipeline, error)
	List(ctx context.Context, status domain.PipelineStatus) ([]*domain.RefinementPipeline, error)
	// Run processes tasks until the pipeline finishes, is paused or stopped
	// elsewhere, or ctx is cancelled (which pauses it).
	Run(ctx context.Context, id string, opts RunOptions) (*domain.RefinementPipeline, error)
	Pause(ctx context.Context, id string) (*domain.RefinementPipeline, error)
	Resume(ctx context.Context, id string) (*domain.RefinementPipeline, error)
	Stop(ctx context.Context, id string) (*domain.RefinementPipeline, error)
	Retry(ctx context.Context, id string) (int, error)
	Report(ctx context.Context, id string) (string, error)
	Export(ctx context.Context, id string, format ExportFormat, w io.Writer) (int, error)
	Delete(ctx context.Context, id string) error
}

// QualityService records chapter scores and answers alert queries. The
// engine is rebuilt from stored metrics on first use.
type QualityService interface {
	Record(ctx context.Context, chapter int, raw domain.RawQualityScores) ([]domain.QualityAlert, error)
	Score(ctx context.Context, chapter int, content string) (domain.RawQualityScores, []domain.QualityAlert, error)
	Alerts(ctx context.Context, filter quality.AlertFilter) ([]domain.QualityAlert, error)
	Active(ctx context.Context) ([]domain.QualityAlert, error)
	Stats(ctx context.Context) (quality.AlertStats, error)
	Report(ctx context.Context) (string, error)
	History(ctx context.Context) ([]domain.QualityMetrics, error)
	Thresholds(ctx context.Context) (domain.Thresholds, error)
	UpdateThresholds(ctx context.Context, patch domain.ThresholdsPatch) (domain.Thresholds, error)
	// Clear removes all history when since is nil, otherwise only snapshots
	// strictly older than since.
	Clear(ctx context.Context, since *time.Time) error
}
