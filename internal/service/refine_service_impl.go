package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alexanderramin/inkwell/internal/db"
	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/llm"
	"github.com/alexanderramin/inkwell/internal/refine"
	"github.com/alexanderramin/inkwell/internal/repository"
)

const refineSystemPrompt = "You are an experienced fiction editor revising a novel one chapter at a time. " +
	"Preserve the plot, the point of view and the language of the original."

var errEmptyCompletion = errors.New("model returned no text")

type refineService struct {
	pipelines repository.PipelineRepo
	uow       db.UnitOfWork
	client    llm.LLMClient
	quality   QualityService
	orch      *refine.Orchestrator
	observer  UseCaseObserver
}

// NewRefineService wires the driver. qualitySvc may be nil, in which case
// RunOptions.ScoreCompleted is ignored.
func NewRefineService(
	pipelines repository.PipelineRepo,
	uow db.UnitOfWork,
	client llm.LLMClient,
	qualitySvc QualityService,
	orch *refine.Orchestrator,
	observers ...UseCaseObserver,
) RefineService {
	if orch == nil {
		orch = refine.NewOrchestrator()
	}
	return &refineService{
		pipelines: pipelines,
		uow:       uow,
		client:    client,
		quality:   qualitySvc,
		orch:      orch,
		observer:  combineObservers(observers),
	}
}

func (s *refineService) save(ctx context.Context, p *domain.RefinementPipeline) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLitePipelineRepo(tx).Save(ctx, p)
	})
}

func (s *refineService) Create(ctx context.Context, chapters []refine.ChapterInput, stages []domain.RefinementStage, source string) (p *domain.RefinementPipeline, err error) {
	fields := map[string]any{"chapters": len(chapters), "stages": len(stages)}
	done := track(ctx, s.observer, "create-pipeline", fields)
	defer func() { done(err) }()

	p, err = s.orch.CreatePipeline(chapters, stages...)
	if err != nil {
		return nil, err
	}
	p.Source = source
	fields["pipeline"] = p.ID
	if err = s.save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving pipeline: %w", err)
	}
	return p, nil
}

func (s *refineService) Get(ctx context.Context, id string) (*domain.RefinementPipeline, error) {
	return s.pipelines.GetByID(ctx, id)
}

func (s *refineService) List(ctx context.Context, status domain.PipelineStatus) ([]*domain.RefinementPipeline, error) {
	return s.pipelines.List(ctx, status)
}

// mutate loads, applies fn and saves in one transaction.
func (s *refineService) mutate(ctx context.Context, name, id string, fn func(p *domain.RefinementPipeline) error) (p *domain.RefinementPipeline, err error) {
	fields := map[string]any{"pipeline": id}
	done := track(ctx, s.observer, name, fields)
	defer func() { done(err) }()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLitePipelineRepo(tx)
		loaded, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(loaded); err != nil {
			return err
		}
		p = loaded
		fields["status"] = string(p.Status)
		return repo.Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *refineService) Pause(ctx context.Context, id string) (*domain.RefinementPipeline, error) {
	return s.mutate(ctx, "pause-pipeline", id, func(p *domain.RefinementPipeline) error {
		if err := refine.TerminalError(p); err != nil {
			return err
		}
		s.orch.PausePipeline(p)
		return nil
	})
}

// Resume marks the pipeline running again. Tasks are only processed by Run.
func (s *refineService) Resume(ctx context.Context, id string) (*domain.RefinementPipeline, error) {
	return s.mutate(ctx, "resume-pipeline", id, func(p *domain.RefinementPipeline) error {
		return s.orch.ResumePipeline(p)
	})
}

func (s *refineService) Stop(ctx context.Context, id string) (*domain.RefinementPipeline, error) {
	return s.mutate(ctx, "stop-pipeline", id, func(p *domain.RefinementPipeline) error {
		s.orch.StopPipeline(p)
		return nil
	})
}

func (s *refineService) Retry(ctx context.Context, id string) (int, error) {
	var n int
	_, err := s.mutate(ctx, "retry-pipeline", id, func(p *domain.RefinementPipeline) error {
		var err error
		n, err = s.orch.RetryFailedTasks(p)
		return err
	})
	return n, err
}

func (s *refineService) Report(ctx context.Context, id string) (string, error) {
	p, err := s.pipelines.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return refine.GenerateReport(p), nil
}

func (s *refineService) Export(ctx context.Context, id string, format ExportFormat, w io.Writer) (int, error) {
	p, err := s.pipelines.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	records := refine.ExportResults(p)
	switch format {
	case ExportJSON, "":
		err = refine.WriteJSON(w, records)
	case ExportCSV:
		err = refine.WriteCSV(w, records)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownExportFormat, format)
	}
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *refineService) Delete(ctx context.Context, id string) (err error) {
	done := track(ctx, s.observer, "delete-pipeline", map[string]any{"pipeline": id})
	defer func() { done(err) }()
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLitePipelineRepo(tx).Delete(ctx, id)
	})
}

func (s *refineService) Run(ctx context.Context, id string, opts RunOptions) (p *domain.RefinementPipeline, err error) {
	fields := map[string]any{"pipeline": id, "on_error": opts.OnError.String()}
	done := track(ctx, s.observer, "run-pipeline", fields)
	defer func() { done(err) }()

	if opts.OnError != ErrorPolicyContinue && opts.OnError != ErrorPolicyHalt {
		return nil, ErrErrorPolicyUnset
	}

	p, err = s.begin(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &driver{svc: s, id: id, opts: opts}
	p, err = d.loop(ctx, p)
	fields["stages_run"] = d.stages
	if p != nil {
		fields["status"] = string(p.Status)
	}
	return p, err
}

// begin moves the pipeline into running. Tasks left processing by an
// interrupted run are returned to pending.
func (s *refineService) begin(ctx context.Context, id string) (*domain.RefinementPipeline, error) {
	var p *domain.RefinementPipeline
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLitePipelineRepo(tx)
		loaded, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		switch loaded.Status {
		case domain.PipelineCompleted:
			return refine.TerminalError(loaded)
		case domain.PipelinePaused:
			if err := s.orch.ResumePipeline(loaded); err != nil {
				return err
			}
		default:
			if err := s.orch.Start(loaded); err != nil {
				return err
			}
		}
		for _, t := range loaded.Tasks {
			if t.Status == domain.TaskProcessing {
				if _, err := s.orch.UpdateTaskStatus(loaded, t.ID, domain.TaskPending, ""); err != nil {
					return err
				}
			}
		}
		loaded.CurrentTaskIndex = 0
		p = loaded
		return repo.Save(ctx, loaded)
	})
	return p, err
}

type driver struct {
	svc    *refineService
	id     string
	opts   RunOptions
	stages int
}

func (d *driver) emit(p *domain.RefinementPipeline, ev RunEvent) {
	if d.opts.OnEvent == nil {
		return
	}
	ev.PipelineID = p.ID
	ev.Status = p.Status
	ev.Progress = p.Progress
	d.opts.OnEvent(ev)
}

func (d *driver) loop(ctx context.Context, p *domain.RefinementPipeline) (*domain.RefinementPipeline, error) {
	for {
		if ctx.Err() != nil {
			return d.interrupt(ctx)
		}

		c, err := d.claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return d.interrupt(ctx)
			}
			return p, err
		}
		p = c.pipeline
		if c.finished {
			d.emit(p, RunEvent{Kind: EventPipelineDone})
			return p, nil
		}
		if c.task == nil {
			return p, nil
		}

		task := c.task
		d.emit(p, RunEvent{Kind: EventStageStarted, TaskID: task.ID, ChapterTitle: task.ChapterTitle, Stage: task.CurrentStage})

		refined, callErr := d.complete(ctx, task.ID, task.CurrentStage, task.CurrentContent)
		if ctx.Err() != nil {
			return d.interrupt(ctx)
		}

		if p, err = d.settle(ctx, task, refined, callErr); err != nil {
			return p, err
		}
	}
}

// claimed is what one claim transaction decided. task is a snapshot of the
// task moved into processing, nil when the pipeline is no longer running
// or has just finished.
type claimed struct {
	pipeline *domain.RefinementPipeline
	task     *domain.RefinementTask
	finished bool
}

// claim picks the next task and marks it processing, or finishes the
// pipeline when nothing is left. Load, check and save share one
// transaction so a concurrent pause or stop is never overwritten.
func (d *driver) claim(ctx context.Context) (claimed, error) {
	s := d.svc
	var c claimed
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		c = claimed{}
		repo := repository.NewSQLitePipelineRepo(tx)
		p, err := repo.GetByID(ctx, d.id)
		if err != nil {
			return err
		}
		c.pipeline = p
		if p.Status != domain.PipelineRunning {
			return nil
		}

		task := s.orch.GetNextTask(p)
		if task == nil {
			s.orch.Finish(p)
			c.finished = true
			return repo.Save(ctx, p)
		}
		if task.Status == domain.TaskPaused {
			if _, err := s.orch.UpdateTaskStatus(p, task.ID, domain.TaskPending, ""); err != nil {
				return err
			}
		}
		if _, err := s.orch.MarkProcessing(p, task.ID); err != nil {
			return err
		}
		if err := repo.Save(ctx, p); err != nil {
			return err
		}
		c.task = task.Clone()
		return nil
	})
	return c, err
}

// complete runs one stage through the model and returns the refined text.
func (d *driver) complete(ctx context.Context, taskID string, stage domain.RefinementStage, content string) (string, error) {
	prompt, err := refine.BuildStagePrompt(stage, content, d.opts.Prompt)
	if err != nil {
		return "", err
	}
	onChunk := func(chunk string) {
		if d.opts.OnChunk != nil {
			d.opts.OnChunk(taskID, chunk)
		}
	}
	resp, err := d.svc.client.Stream(ctx, llm.GenerateRequest{
		Task:         llm.TaskRefine,
		SystemPrompt: refineSystemPrompt,
		UserPrompt:   prompt,
	}, onChunk)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// settle applies a finished completion call to the pipeline as stored
// now, inside one transaction. Results for a pipeline that stopped running
// meanwhile, or for a task that moved on, are dropped.
func (d *driver) settle(ctx context.Context, claimedTask *domain.RefinementTask, refined string, callErr error) (*domain.RefinementPipeline, error) {
	s := d.svc
	taskID, stage := claimedTask.ID, claimedTask.CurrentStage

	var (
		p       *domain.RefinementPipeline
		settled *domain.RefinementTask
		chapter int
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		settled = nil
		repo := repository.NewSQLitePipelineRepo(tx)
		loaded, err := repo.GetByID(ctx, d.id)
		if err != nil {
			return err
		}
		p = loaded
		task, idx := loaded.TaskByID(taskID)
		if loaded.Status != domain.PipelineRunning || task == nil || task.Status != domain.TaskProcessing || task.CurrentStage != stage {
			return nil
		}

		if callErr != nil {
			if _, err := s.orch.UpdateTaskStatus(loaded, taskID, domain.TaskFailed, callErr.Error()); err != nil {
				return err
			}
			if d.opts.OnError == ErrorPolicyHalt {
				s.orch.Fail(loaded)
			}
		} else if _, err := s.orch.CompleteTaskStage(loaded, taskID, stage, refined); err != nil {
			return err
		}
		if err := repo.Save(ctx, loaded); err != nil {
			return err
		}
		settled, chapter = task.Clone(), idx+1
		return nil
	})
	if err != nil {
		return p, err
	}

	if settled == nil {
		d.emit(p, RunEvent{Kind: EventResultDropped, TaskID: taskID, Stage: stage})
		return p, nil
	}
	if callErr != nil {
		d.emit(p, RunEvent{Kind: EventTaskFailed, TaskID: taskID, ChapterTitle: settled.ChapterTitle, Stage: stage, Err: callErr})
		return p, nil
	}
	d.stages++
	d.emit(p, RunEvent{Kind: EventStageCompleted, TaskID: taskID, ChapterTitle: settled.ChapterTitle, Stage: stage})

	if settled.Status == domain.TaskCompleted && d.opts.ScoreCompleted && s.quality != nil {
		d.score(ctx, p, settled, chapter)
	}
	return p, nil
}

// score grades a finished chapter. Failures are reported but never fail
// the pipeline.
func (d *driver) score(ctx context.Context, p *domain.RefinementPipeline, task *domain.RefinementTask, chapter int) {
	_, alerts, err := d.svc.quality.Score(ctx, chapter, task.CurrentContent)
	if err != nil {
		d.emit(p, RunEvent{Kind: EventScoreFailed, TaskID: task.ID, ChapterTitle: task.ChapterTitle, Err: err})
		return
	}
	d.emit(p, RunEvent{Kind: EventChapterScored, TaskID: task.ID, ChapterTitle: task.ChapterTitle, Alerts: alerts})
}

// interrupt pauses the pipeline after the caller cancelled ctx so a later
// Run picks up where this one stopped.
func (d *driver) interrupt(ctx context.Context) (*domain.RefinementPipeline, error) {
	cause := ctx.Err()
	saveCtx := context.WithoutCancel(ctx)
	s := d.svc

	var p *domain.RefinementPipeline
	err := s.uow.WithinTx(saveCtx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLitePipelineRepo(tx)
		loaded, err := repo.GetByID(ctx, d.id)
		if err != nil {
			return err
		}
		p = loaded
		if loaded.Status != domain.PipelineRunning {
			return nil
		}
		s.orch.PausePipeline(loaded)
		return repo.Save(ctx, loaded)
	})
	if err != nil {
		return p, errors.Join(cause, err)
	}
	return p, cause
}
