package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// PipelineRepo persists pipelines together with their tasks.
type PipelineRepo interface {
	// Save upserts the pipeline row and replaces its task rows.
	Save(ctx context.Context, p *domain.RefinementPipeline) error
	GetByID(ctx context.Context, id string) (*domain.RefinementPipeline, error)
	// List returns pipelines newest first. An empty status matches all.
	List(ctx context.Context, status domain.PipelineStatus) ([]*domain.RefinementPipeline, error)
	Delete(ctx context.Context, id string) error
}

// MetricsFilter narrows MetricsRepo.List.
type MetricsFilter struct {
	Since *time.Time // inclusive
	Limit int        // keep only the newest Limit rows; 0 means all
}

// MetricsRepo is the append-only store behind the quality engine.
type MetricsRepo interface {
	Append(ctx context.Context, m domain.QualityMetrics) error
	// List returns snapshots in insertion order.
	List(ctx context.Context, f MetricsFilter) ([]domain.QualityMetrics, error)
	DeleteBefore(ctx context.Context, ts time.Time) (int64, error)
	DeleteAll(ctx context.Context) error
	// Revision changes whenever a row is appended or deleted.
	Revision(ctx context.Context) (MetricsRevision, error)
}

// MetricsRevision identifies the state of the metrics log. Seq never goes
// back, so two equal revisions describe the same rows.
type MetricsRevision struct {
	MaxSeq int64
	Count  int64
}

// ThresholdsRepo stores the single alert threshold configuration.
type ThresholdsRepo interface {
	Get(ctx context.Context) (domain.Thresholds, error)
	Save(ctx context.Context, th domain.Thresholds) error
	// Revision is empty until thresholds are saved and changes on every
	// save that alters them.
	Revision(ctx context.Context) (string, error)
}
