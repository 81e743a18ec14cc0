package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/alexanderramin/inkwell/internal/db"
	"github.com/alexanderramin/inkwell/internal/domain"
)

var pipelineColumns = []string{
	"id", "source", "status", "stages", "current_task_index",
	"start_time", "end_time", "created_at", "updated_at",
}

var taskColumns = []string{
	"id", "pipeline_id", "position", "chapter_id", "chapter_title",
	"original_content", "current_content", "current_stage", "completed_stages",
	"status", "error", "start_time", "end_time",
}

// SQLitePipelineRepo implements PipelineRepo. Save issues several statements,
// so callers run it inside a unit of work.
type SQLitePipelineRepo struct {
	db db.DBTX
}

// NewSQLitePipelineRepo creates a new SQLitePipelineRepo.
func NewSQLitePipelineRepo(db db.DBTX) *SQLitePipelineRepo {
	return &SQLitePipelineRepo{db: db}
}

func (r *SQLitePipelineRepo) Save(ctx context.Context, p *domain.RefinementPipeline) error {
	stages, err := json.Marshal(p.Stages)
	if err != nil {
		return fmt.Errorf("encoding stages: %w", err)
	}

	query, args, err := sq.Insert("pipelines").
		Columns(pipelineColumns...).
		Values(p.ID, p.Source, string(p.Status), string(stages), p.CurrentTaskIndex,
			nullableTime(p.StartTime), nullableTime(p.EndTime), formatTime(p.CreatedAt), formatTime(p.UpdatedAt)).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			status = excluded.status,
			stages = excluded.stages,
			current_task_index = excluded.current_task_index,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building pipeline upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting pipeline: %w", err)
	}

	query, args, err = sq.Delete("refinement_tasks").Where(sq.Eq{"pipeline_id": p.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("building task delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}

	if len(p.Tasks) == 0 {
		return nil
	}
	insert := sq.Insert("refinement_tasks").Columns(taskColumns...)
	for i, t := range p.Tasks {
		completed, err := json.Marshal(t.CompletedStages)
		if err != nil {
			return fmt.Errorf("encoding completed stages: %w", err)
		}
		insert = insert.Values(t.ID, p.ID, i, t.ChapterID, t.ChapterTitle,
			t.OriginalContent, t.CurrentContent, string(t.CurrentStage), string(completed),
			string(t.Status), t.Error, nullableTime(t.StartTime), nullableTime(t.EndTime))
	}
	query, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("building task insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting tasks: %w", err)
	}
	return nil
}

func (r *SQLitePipelineRepo) GetByID(ctx context.Context, id string) (*domain.RefinementPipeline, error) {
	pipelines, err := r.query(ctx, sq.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(pipelines) == 0 {
		return nil, fmt.Errorf("pipeline %s: %w", id, ErrNotFound)
	}
	return pipelines[0], nil
}

func (r *SQLitePipelineRepo) List(ctx context.Context, status domain.PipelineStatus) ([]*domain.RefinementPipeline, error) {
	var where sq.Sqlizer = sq.Expr("1 = 1")
	if status != "" {
		where = sq.Eq{"status": string(status)}
	}
	return r.query(ctx, where)
}

func (r *SQLitePipelineRepo) Delete(ctx context.Context, id string) error {
	query, args, err := sq.Delete("pipelines").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building pipeline delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting pipeline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting pipeline: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("pipeline %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLitePipelineRepo) query(ctx context.Context, where sq.Sqlizer) ([]*domain.RefinementPipeline, error) {
	query, args, err := sq.Select(pipelineColumns...).
		From("pipelines").
		Where(where).
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building pipeline query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}

	var (
		pipelines []*domain.RefinementPipeline
		ids       []string
	)
	byID := make(map[string]*domain.RefinementPipeline)
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pipelines = append(pipelines, p)
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating pipelines: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.loadTasks(ctx, ids, byID); err != nil {
		return nil, err
	}
	for _, p := range pipelines {
		p.RefreshProgress()
	}
	return pipelines, nil
}

func (r *SQLitePipelineRepo) loadTasks(ctx context.Context, ids []string, byID map[string]*domain.RefinementPipeline) error {
	query, args, err := sq.Select(taskColumns...).
		From("refinement_tasks").
		Where(sq.Eq{"pipeline_id": ids}).
		OrderBy("pipeline_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("building task query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pipelineID, t, err := scanTask(rows)
		if err != nil {
			return err
		}
		if p, ok := byID[pipelineID]; ok {
			p.Tasks = append(p.Tasks, t)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating tasks: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row scanner) (*domain.RefinementPipeline, error) {
	var (
		p                    domain.RefinementPipeline
		status, stages       string
		start, end           sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Source, &status, &stages, &p.CurrentTaskIndex,
		&start, &end, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pipeline: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning pipeline: %w", err)
	}
	p.Status = domain.PipelineStatus(status)
	if err := json.Unmarshal([]byte(stages), &p.Stages); err != nil {
		return nil, fmt.Errorf("decoding stages: %w", err)
	}

	var err error
	if p.StartTime, err = parseNullableTime(start, "start_time"); err != nil {
		return nil, err
	}
	if p.EndTime, err = parseNullableTime(end, "end_time"); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanTask(row scanner) (string, *domain.RefinementTask, error) {
	var (
		t                        domain.RefinementTask
		pipelineID               string
		position                 int
		stage, completed, status string
		start, end               sql.NullString
	)
	if err := row.Scan(&t.ID, &pipelineID, &position, &t.ChapterID, &t.ChapterTitle,
		&t.OriginalContent, &t.CurrentContent, &stage, &completed,
		&status, &t.Error, &start, &end); err != nil {
		return "", nil, fmt.Errorf("scanning task: %w", err)
	}
	t.CurrentStage = domain.RefinementStage(stage)
	t.Status = domain.TaskStatus(status)
	if err := json.Unmarshal([]byte(completed), &t.CompletedStages); err != nil {
		return "", nil, fmt.Errorf("decoding completed stages: %w", err)
	}

	var err error
	if t.StartTime, err = parseNullableTime(start, "task start_time"); err != nil {
		return "", nil, err
	}
	if t.EndTime, err = parseNullableTime(end, "task end_time"); err != nil {
		return "", nil, err
	}
	return pipelineID, &t, nil
}
