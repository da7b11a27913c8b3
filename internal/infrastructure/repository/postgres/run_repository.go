// Package postgres persists finished pipeline runs for diagnostics.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS answer_runs (
	id            TEXT PRIMARY KEY,
	question      TEXT NOT NULL,
	status        TEXT NOT NULL,
	uncited       BOOLEAN NOT NULL DEFAULT FALSE,
	answer_text   TEXT NOT NULL DEFAULT '',
	cited_sources JSONB NOT NULL DEFAULT '[]',
	failure       JSONB,
	trace         JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS answer_runs_created_at_idx ON answer_runs (created_at DESC);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure answer_runs schema: %w", err)
	}
	return nil
}

// SaveRun records one terminal result. The caller treats failure here
// as non-fatal; the run's outcome is already decided.
func (r *RunRepository) SaveRun(ctx context.Context, query domain.Query, result domain.Result) error {
	traceJSON, err := json.Marshal(result.Trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	answerText := ""
	citedJSON := []byte("[]")
	if result.Answer != nil {
		answerText = result.Answer.Text
		citedJSON, err = json.Marshal(result.Answer.CitedSources)
		if err != nil {
			return fmt.Errorf("marshal cited sources: %w", err)
		}
	}

	var failureJSON any
	if result.Failure != nil {
		raw, err := json.Marshal(result.Failure)
		if err != nil {
			return fmt.Errorf("marshal failure: %w", err)
		}
		failureJSON = raw
	}

	const q = `
INSERT INTO answer_runs (id, question, status, uncited, answer_text, cited_sources, failure, trace)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	if _, err := r.db.ExecContext(ctx, q,
		result.RunID,
		query.Text,
		string(result.Status),
		result.Uncited,
		answerText,
		citedJSON,
		failureJSON,
		traceJSON,
	); err != nil {
		return fmt.Errorf("insert answer run: %w", err)
	}
	return nil
}

// RunSummary is the read model for recent-run listings.
type RunSummary struct {
	ID           string           `json:"id"`
	Question     string           `json:"question"`
	Status       domain.RunStatus `json:"status"`
	Uncited      bool             `json:"uncited"`
	CitedSources []string         `json:"cited_sources"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
SELECT id, question, status, uncited, cited_sources, created_at
FROM answer_runs
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list answer runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var summary RunSummary
		var status string
		var citedJSON []byte
		if err := rows.Scan(&summary.ID, &summary.Question, &status, &summary.Uncited, &citedJSON, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer run: %w", err)
		}
		summary.Status = domain.RunStatus(status)
		if len(citedJSON) > 0 {
			if err := json.Unmarshal(citedJSON, &summary.CitedSources); err != nil {
				return nil, fmt.Errorf("decode cited sources: %w", err)
			}
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer runs: %w", err)
	}
	return out, nil
}
