// Package refine implements the batch refinement pipeline: a stage catalog
// and an orchestrator that moves chapter tasks through an ordered sequence
// of rewrite stages. The orchestrator only keeps bookkeeping; it performs no
// I/O and never cancels in-flight completion calls itself.
package refine

import (
	"fmt"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/google/uuid"
)

// ChapterInput is one chapter handed to CreatePipeline.
type ChapterInput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Orchestrator applies pipeline operations to pipelines owned by a single
// driver. It is not safe for concurrent mutation of the same pipeline.
type Orchestrator struct {
	now   func() time.Time
	newID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides how pipeline and task ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// NewOrchestrator creates an Orchestrator with a UTC wall clock and uuid ids.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ValidateStages checks that stages is non-empty, free of duplicates and
// known to the catalog.
func ValidateStages(stages []domain.RefinementStage) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: at least one stage is required", ErrInvalidStages)
	}
	seen := make(map[domain.RefinementStage]bool, len(stages))
	for _, s := range stages {
		if _, err := Lookup(s); err != nil {
			return err
		}
		if seen[s] {
			return fmt.Errorf("%w: stage %q listed twice", ErrInvalidStages, s)
		}
		seen[s] = true
	}
	return nil
}

// CreatePipeline builds an idle pipeline with one pending task per chapter.
// With no stages the full default sequence is used.
func (o *Orchestrator) CreatePipeline(chapters []ChapterInput, stages ...domain.RefinementStage) (*domain.RefinementPipeline, error) {
	if len(stages) == 0 {
		stages = domain.DefaultStages()
	}
	if err := ValidateStages(stages); err != nil {
		return nil, err
	}

	now := o.now()
	p := &domain.RefinementPipeline{
		ID:        o.newID(),
		Stages:    append([]domain.RefinementStage(nil), stages...),
		Tasks:     make([]*domain.RefinementTask, 0, len(chapters)),
		Status:    domain.PipelineIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, ch := range chapters {
		if ch.ID == "" {
			return nil, fmt.Errorf("chapter %d: id is required", i+1)
		}
		p.Tasks = append(p.Tasks, &domain.RefinementTask{
			ID:              o.newID(),
			ChapterID:       ch.ID,
			ChapterTitle:    ch.Title,
			OriginalContent: ch.Content,
			CurrentContent:  ch.Content,
			CurrentStage:    stages[0],
			Status:          domain.TaskPending,
		})
	}
	p.RefreshProgress()
	return p, nil
}

// TerminalError says why a completed pipeline refuses further work: it was
// stopped with tasks left, or every task finished. It is nil for a
// pipeline that is not completed.
func TerminalError(p *domain.RefinementPipeline) error {
	if p.Status != domain.PipelineCompleted {
		return nil
	}
	for _, t := range p.Tasks {
		if !t.IsTerminal() {
			return ErrPipelineStopped
		}
	}
	return ErrPipelineFinished
}

// Start marks the pipeline running. StartTime is stamped only once.
func (o *Orchestrator) Start(p *domain.RefinementPipeline) error {
	if err := TerminalError(p); err != nil {
		return err
	}
	now := o.now()
	p.Status = domain.PipelineRunning
	if p.StartTime == nil {
		p.StartTime = &now
	}
	o.touch(p, now)
	return nil
}

// GetNextTask returns the first pending or paused task at or after the
// resume cursor and moves the cursor onto it. Nil means nothing is left.
func (o *Orchestrator) GetNextTask(p *domain.RefinementPipeline) *domain.RefinementTask {
	start := p.CurrentTaskIndex
	if start < 0 {
		start = 0
	}
	for i := start; i < len(p.Tasks); i++ {
		if p.Tasks[i].IsRunnable() {
			p.CurrentTaskIndex = i
			return p.Tasks[i]
		}
	}
	return nil
}

// MarkProcessing moves a task into processing.
func (o *Orchestrator) MarkProcessing(p *domain.RefinementPipeline, taskID string) (*domain.RefinementTask, error) {
	return o.UpdateTaskStatus(p, taskID, domain.TaskProcessing, "")
}

// UpdateTaskStatus sets a task's status. errMsg is recorded only for failed.
// Moves the task state machine does not allow fail with
// ErrInvalidTransition and leave the task untouched.
func (o *Orchestrator) UpdateTaskStatus(p *domain.RefinementPipeline, taskID string, status domain.TaskStatus, errMsg string) (*domain.RefinementTask, error) {
	task, _ := p.TaskByID(taskID)
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	if !task.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: task %s cannot go from %s to %s", ErrInvalidTransition, taskID, task.Status, status)
	}
	now := o.now()
	task.SetStatus(status, errMsg, now)
	o.touch(p, now)
	return task, nil
}

// CompleteTaskStage records refined as the output of executed. The task
// advances to the next stage (pending) or, after the last one, completes.
func (o *Orchestrator) CompleteTaskStage(p *domain.RefinementPipeline, taskID string, executed domain.RefinementStage, refined string) (*domain.RefinementTask, error) {
	task, _ := p.TaskByID(taskID)
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.IsTerminal() {
		return nil, fmt.Errorf("%w: task %s already completed", ErrStageMismatch, taskID)
	}
	if task.HasCompleted(executed) {
		return nil, fmt.Errorf("%w: task %s already ran %q", ErrStageMismatch, taskID, executed)
	}
	if task.CurrentStage != executed {
		return nil, fmt.Errorf("%w: task %s is on %q, got %q", ErrStageMismatch, taskID, task.CurrentStage, executed)
	}
	if idx := p.StageIndex(executed); idx != len(task.CompletedStages) {
		return nil, fmt.Errorf("%w: task %s has %d completed stages but %q is stage %d",
			ErrStageMismatch, taskID, len(task.CompletedStages), executed, idx)
	}

	now := o.now()
	task.CompletedStages = append(task.CompletedStages, executed)
	task.CurrentContent = refined

	if next, ok := p.NextStage(executed); ok {
		task.CurrentStage = next
		task.SetStatus(domain.TaskPending, "", now)
	} else {
		task.SetStatus(domain.TaskCompleted, "", now)
	}
	o.touch(p, now)
	return task, nil
}

// PausePipeline marks the pipeline paused and parks any processing task.
// Callers are expected to abandon the in-flight completion call.
func (o *Orchestrator) PausePipeline(p *domain.RefinementPipeline) {
	now := o.now()
	p.Status = domain.PipelinePaused
	for _, t := range p.Tasks {
		if t.Status == domain.TaskProcessing {
			t.SetStatus(domain.TaskPaused, "", now)
		}
	}
	o.touch(p, now)
}

// ResumePipeline marks the pipeline running and returns paused tasks to
// pending. The cursor rewinds to the first resumed task.
func (o *Orchestrator) ResumePipeline(p *domain.RefinementPipeline) error {
	if err := TerminalError(p); err != nil {
		return err
	}
	now := o.now()
	p.Status = domain.PipelineRunning
	if p.StartTime == nil {
		p.StartTime = &now
	}
	first := -1
	for i, t := range p.Tasks {
		if t.Status == domain.TaskPaused {
			t.SetStatus(domain.TaskPending, "", now)
			if first < 0 {
				first = i
			}
		}
	}
	o.rewind(p, first)
	o.touch(p, now)
	return nil
}

// StopPipeline ends the pipeline. Unfinished tasks are parked as paused so
// a later inspection shows exactly what did not run.
func (o *Orchestrator) StopPipeline(p *domain.RefinementPipeline) {
	now := o.now()
	p.Status = domain.PipelineCompleted
	p.EndTime = &now
	for _, t := range p.Tasks {
		if t.Status == domain.TaskProcessing || t.Status == domain.TaskPending {
			t.SetStatus(domain.TaskPaused, "", now)
		}
	}
	o.touch(p, now)
}

// RetryFailedTasks returns every failed task to pending on the same stage
// with its error cleared. It reports how many tasks were reset.
func (o *Orchestrator) RetryFailedTasks(p *domain.RefinementPipeline) (int, error) {
	if err := TerminalError(p); err != nil {
		return 0, err
	}
	now := o.now()
	first := -1
	n := 0
	for i, t := range p.Tasks {
		if t.Status != domain.TaskFailed {
			continue
		}
		t.SetStatus(domain.TaskPending, "", now)
		t.EndTime = nil
		n++
		if first < 0 {
			first = i
		}
	}
	if n > 0 && p.Status == domain.PipelineFailed {
		p.Status = domain.PipelinePaused
		p.EndTime = nil
	}
	o.rewind(p, first)
	o.touch(p, now)
	return n, nil
}

// Fail marks the pipeline failed, used when a driver halts on a task error.
func (o *Orchestrator) Fail(p *domain.RefinementPipeline) {
	now := o.now()
	p.Status = domain.PipelineFailed
	p.EndTime = &now
	o.touch(p, now)
}

// Finish closes a pipeline whose GetNextTask returned nil.
func (o *Orchestrator) Finish(p *domain.RefinementPipeline) {
	now := o.now()
	p.Status = domain.PipelineCompleted
	for _, t := range p.Tasks {
		if t.Status == domain.TaskFailed {
			p.Status = domain.PipelineFailed
			break
		}
	}
	p.EndTime = &now
	o.touch(p, now)
}

// UpdatePipelineProgress recomputes progress from the current tasks.
func (o *Orchestrator) UpdatePipelineProgress(p *domain.RefinementPipeline) domain.Progress {
	p.RefreshProgress()
	return p.Progress
}

func (o *Orchestrator) rewind(p *domain.RefinementPipeline, idx int) {
	if idx >= 0 && idx < p.CurrentTaskIndex {
		p.CurrentTaskIndex = idx
	}
}

func (o *Orchestrator) touch(p *domain.RefinementPipeline, now time.Time) {
	p.UpdatedAt = now
	p.RefreshProgress()
}
