package testutil

import (
	"context"
	"database/sql"
	"strings"

	"github.com/alexanderramin/inkwell/internal/db"
)

// FailingWriteUoW runs on a real UnitOfWork but fails the first write whose
// SQL starts with Prefix, such as "INSERT INTO refinement_tasks". Tests use
// it to check that multi-statement saves roll back as one.
type FailingWriteUoW struct {
	UoW    db.UnitOfWork
	Prefix string
	Err    error
}

func (u *FailingWriteUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return u.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &failingWrites{DBTX: tx, prefix: u.Prefix, err: u.Err})
	})
}

type failingWrites struct {
	db.DBTX
	prefix string
	err    error
	fired  bool
}

func (f *failingWrites) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if !f.fired && strings.HasPrefix(strings.TrimSpace(query), f.prefix) {
		f.fired = true
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
