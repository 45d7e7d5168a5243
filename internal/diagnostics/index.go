package diagnostics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a durable run index backed by a pure-Go SQLite driver, queried by
// the CLI's "report" subcommand to list recent runs without
// re-parsing every JSON report file.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if necessary) the run index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run index %s: %w", path, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	suggestion_id TEXT NOT NULL,
	summary TEXT NOT NULL,
	model TEXT NOT NULL,
	passed INTEGER NOT NULL,
	attempt_count INTEGER NOT NULL,
	total_ms INTEGER NOT NULL,
	total_cost_usd REAL NOT NULL,
	reduced_confidence INTEGER NOT NULL,
	finalization_status TEXT,
	report_path TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_suggestion ON runs(suggestion_id);
CREATE INDEX IF NOT EXISTS idx_runs_passed ON runs(passed);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing run index schema: %w", err)
	}

	return &Index{db: db}, nil
}

func (idx *Index) Close() error { return idx.db.Close() }

// Record upserts a run's summary row into the index.
func (idx *Index) Record(ctx context.Context, run *RunDiagnostics) error {
	var finalizationStatus sql.NullString
	if run.Finalization != nil {
		finalizationStatus = sql.NullString{String: string(run.Finalization.Status), Valid: true}
	}

	_, err := idx.db.ExecContext(ctx, `
INSERT INTO runs (run_id, suggestion_id, summary, model, passed, attempt_count, total_ms, total_cost_usd, reduced_confidence, finalization_status, report_path, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
	passed = excluded.passed,
	attempt_count = excluded.attempt_count,
	total_ms = excluded.total_ms,
	total_cost_usd = excluded.total_cost_usd,
	reduced_confidence = excluded.reduced_confidence,
	finalization_status = excluded.finalization_status,
	report_path = excluded.report_path
`,
		run.RunID, run.SuggestionID, run.Summary, run.Model, run.Passed, run.AttemptCount,
		run.TotalMs, run.TotalCostUSD, run.ReducedConfidence, finalizationStatus, run.ReportPath,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording run %s in index: %w", run.RunID, err)
	}
	return nil
}

// RunSummary is one row of the run index.
type RunSummary struct {
	RunID               string
	SuggestionID        string
	Summary             string
	Passed              bool
	AttemptCount        int
	TotalMs             int64
	TotalCostUSD        float64
	FinalizationStatus  string
	ReportPath          string
}

// Recent returns the most recently recorded runs, newest first.
func (idx *Index) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := idx.db.QueryContext(ctx, `
SELECT run_id, suggestion_id, summary, passed, attempt_count, total_ms, total_cost_usd, COALESCE(finalization_status, ''), report_path
FROM runs ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run index: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.SuggestionID, &s.Summary, &s.Passed, &s.AttemptCount, &s.TotalMs, &s.TotalCostUSD, &s.FinalizationStatus, &s.ReportPath); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
