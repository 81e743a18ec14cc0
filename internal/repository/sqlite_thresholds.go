package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/alexanderramin/inkwell/internal/db"
	"github.com/alexanderramin/inkwell/internal/domain"
)

// SQLiteThresholdsRepo implements ThresholdsRepo as a single JSON row.
type SQLiteThresholdsRepo struct {
	db  db.DBTX
	now func() time.Time
}

// NewSQLiteThresholdsRepo creates a new SQLiteThresholdsRepo.
func NewSQLiteThresholdsRepo(db db.DBTX) *SQLiteThresholdsRepo {
	return &SQLiteThresholdsRepo{db: db, now: time.Now}
}

func (r *SQLiteThresholdsRepo) Get(ctx context.Context) (domain.Thresholds, error) {
	query, args, err := sq.Select("data").From("alert_thresholds").Where(sq.Eq{"id": 1}).ToSql()
	if err != nil {
		return domain.Thresholds{}, fmt.Errorf("building thresholds query: %w", err)
	}
	var data string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Thresholds{}, fmt.Errorf("alert thresholds: %w", ErrNotFound)
		}
		return domain.Thresholds{}, fmt.Errorf("loading alert thresholds: %w", err)
	}

	// Start from defaults so fields added later keep a sane value.
	th := domain.DefaultThresholds()
	if err := json.Unmarshal([]byte(data), &th); err != nil {
		return domain.Thresholds{}, fmt.Errorf("decoding alert thresholds: %w", err)
	}
	return th, nil
}

func (r *SQLiteThresholdsRepo) Save(ctx context.Context, th domain.Thresholds) error {
	data, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("encoding alert thresholds: %w", err)
	}
	query, args, err := sq.Insert("alert_thresholds").
		Columns("id", "data", "updated_at").
		Values(1, string(data), formatTime(r.now())).
		Suffix("ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building thresholds upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving alert thresholds: %w", err)
	}
	return nil
}

func (r *SQLiteThresholdsRepo) Revision(ctx context.Context) (string, error) {
	var data, updatedAt string
	err := r.db.QueryRowContext(ctx, `SELECT data, updated_at FROM alert_thresholds WHERE id = 1`).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading thresholds revision: %w", err)
	}
	return updatedAt + " " + data, nil
}
