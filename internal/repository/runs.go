package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/oklog/ulid/v2"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/entity"
)

const (
	runsTable   = "title_runs"
	timeLayout  = "2006-01-02T15:04:05.000000Z"
	maxListSize = 500
)

var runColumns = []string{
	"id", "job_id", "document_id", "source", "outcome",
	"old_title", "new_title", "error", "started_at", "finished_at",
}

type RunRepository interface {
	Migrate(ctx context.Context) error
	Record(ctx context.Context, run *entity.TitleRun) error
	ListRecent(ctx context.Context, limit int) ([]entity.TitleRun, error)
	ListByDocument(ctx context.Context, documentID string, limit int) ([]entity.TitleRun, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log, entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

// runsDDL is shared by SQLite and Postgres; both accept IF NOT EXISTS for tables and indexes.
var runsDDL = []string{
	`CREATE TABLE IF NOT EXISTS ` + runsTable + ` (
	id TEXT NOT NULL PRIMARY KEY,
	job_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	source TEXT,
	outcome TEXT NOT NULL,
	old_title TEXT,
	new_title TEXT,
	error TEXT,
	started_at TEXT,
	finished_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS ` + runsTable + `_document_id ON ` + runsTable + ` (document_id)`,
}

// Migrate creates the title_runs table and its index when missing.
func (r *runRepo) Migrate(ctx context.Context) error {
	for _, stmt := range runsDDL {
		if _, err := r.db.Driver.DB().ExecContext(ctx, stmt); err != nil {
			r.log.Error("runs.migrate.failed", "error", err)
			return fmt.Errorf("%w: migrate %s: %v", common.ErrDatabase, runsTable, err)
		}
	}
	r.log.Info("runs.migrate.ok", "table", runsTable, "dialect", r.db.Dialect())
	return nil
}

// Record inserts run, assigning a ULID when run.ID is empty.
func (r *runRepo) Record(ctx context.Context, run *entity.TitleRun) error {
	if run.ID == "" {
		run.ID = r.newID(run.StartedAt)
	}
	query, args := r.builder().Insert(runsTable).
		Columns(runColumns...).
		Values(
			run.ID, run.JobID, run.DocumentID, run.Source, string(run.Outcome),
			run.OldTitle, run.NewTitle, run.Error,
			formatTime(run.StartedAt), formatTime(run.FinishedAt),
		).
		Query()
	if _, err := r.db.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("runs.record.failed", "run_id", run.ID, "document_id", run.DocumentID, "error", err)
		return fmt.Errorf("%w: insert run: %v", common.ErrDatabase, err)
	}
	r.log.Debug("runs.record.ok", "run_id", run.ID, "document_id", run.DocumentID, "outcome", run.Outcome)
	return nil
}

// ListRecent returns the newest runs first.
func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]entity.TitleRun, error) {
	b := r.builder()
	sel := b.Select(runColumns...).From(b.Table(runsTable)).
		OrderBy(entsql.Desc("id")).
		Limit(clampLimit(limit))
	return r.query(ctx, sel)
}

func (r *runRepo) ListByDocument(ctx context.Context, documentID string, limit int) ([]entity.TitleRun, error) {
	b := r.builder()
	sel := b.Select(runColumns...).From(b.Table(runsTable)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy(entsql.Desc("id")).
		Limit(clampLimit(limit))
	return r.query(ctx, sel)
}

func (r *runRepo) query(ctx context.Context, sel *entsql.Selector) ([]entity.TitleRun, error) {
	query, args := sel.Query()
	rows, err := r.db.Driver.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("runs.query.failed", "error", err)
		return nil, fmt.Errorf("%w: query runs: %v", common.ErrDatabase, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Warn("runs.query.close_error", "error", err)
		}
	}(rows)

	var out []entity.TitleRun
	for rows.Next() {
		var (
			run                            entity.TitleRun
			source, outcome, oldT, newT, e sql.NullString
			started, finished              sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.JobID, &run.DocumentID, &source, &outcome,
			&oldT, &newT, &e, &started, &finished); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
		}
		run.Source = source.String
		run.Outcome = constants.Outcome(outcome.String)
		run.OldTitle = oldT.String
		run.NewTitle = newT.String
		run.Error = e.String
		run.StartedAt = parseTime(started.String)
		run.FinishedAt = parseTime(finished.String)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate runs: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *runRepo) newID(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	r.entropyMu.Lock()
	defer r.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), r.entropy).String()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > maxListSize:
		return maxListSize
	default:
		return limit
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
