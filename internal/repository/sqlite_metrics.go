package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/alexanderramin/inkwell/internal/db"
	"github.com/alexanderramin/inkwell/internal/domain"
)

var metricsColumns = []string{
	"chapter_number", "recorded_at", "overall", "ai_flavor",
	"cool_point_density", "pacing", "consistency", "repetition",
}

// SQLiteMetricsRepo implements MetricsRepo.
type SQLiteMetricsRepo struct {
	db db.DBTX
}

// NewSQLiteMetricsRepo creates a new SQLiteMetricsRepo.
func NewSQLiteMetricsRepo(db db.DBTX) *SQLiteMetricsRepo {
	return &SQLiteMetricsRepo{db: db}
}

func (r *SQLiteMetricsRepo) Append(ctx context.Context, m domain.QualityMetrics) error {
	query, args, err := sq.Insert("quality_metrics").
		Columns(metricsColumns...).
		Values(m.ChapterNumber, formatTime(m.Timestamp),
			nullableScore(m.OverallScore), nullableScore(m.AIFlavorScore),
			nullableScore(m.CoolPointDensity), nullableScore(m.PacingScore),
			nullableScore(m.ConsistencyScore), nullableScore(m.RepetitionScore)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building metrics insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting quality metrics: %w", err)
	}
	return nil
}

func (r *SQLiteMetricsRepo) List(ctx context.Context, f MetricsFilter) ([]domain.QualityMetrics, error) {
	q := sq.Select(metricsColumns...).From("quality_metrics").OrderBy("seq DESC")
	if f.Since != nil {
		q = q.Where(sq.GtOrEq{"recorded_at": formatTime(*f.Since)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building metrics query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing quality metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.QualityMetrics
	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quality metrics: %w", err)
	}

	// Rows came newest first so Limit keeps the tail of the log.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SQLiteMetricsRepo) DeleteBefore(ctx context.Context, ts time.Time) (int64, error) {
	query, args, err := sq.Delete("quality_metrics").Where(sq.Lt{"recorded_at": formatTime(ts)}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building metrics delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("pruning quality metrics: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteMetricsRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM quality_metrics`); err != nil {
		return fmt.Errorf("clearing quality metrics: %w", err)
	}
	return nil
}

func (r *SQLiteMetricsRepo) Revision(ctx context.Context) (MetricsRevision, error) {
	var rev MetricsRevision
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0), COUNT(*) FROM quality_metrics`).
		Scan(&rev.MaxSeq, &rev.Count)
	if err != nil {
		return rev, fmt.Errorf("reading metrics revision: %w", err)
	}
	return rev, nil
}

func scanMetrics(row scanner) (domain.QualityMetrics, error) {
	var (
		m                                  domain.QualityMetrics
		recordedAt                         string
		overall, aiFlavor, density, pacing sql.NullFloat64
		consistency, repetition            sql.NullFloat64
	)
	if err := row.Scan(&m.ChapterNumber, &recordedAt, &overall, &aiFlavor,
		&density, &pacing, &consistency, &repetition); err != nil {
		return m, fmt.Errorf("scanning quality metrics: %w", err)
	}
	ts, err := parseTime(recordedAt, "recorded_at")
	if err != nil {
		return m, err
	}
	m.Timestamp = ts
	m.OverallScore = scoreFromNull(overall)
	m.AIFlavorScore = scoreFromNull(aiFlavor)
	m.CoolPointDensity = scoreFromNull(density)
	m.PacingScore = scoreFromNull(pacing)
	m.ConsistencyScore = scoreFromNull(consistency)
	m.RepetitionScore = scoreFromNull(repetition)
	return m, nil
}
