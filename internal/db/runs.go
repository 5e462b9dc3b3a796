package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const runColumns = `id, user_id, document_name, document_url, company_name, status,
	created_at, completed_at, duration,
	stage1_output, stage2_output, stage3_output, stage4_output, full_report_markdown`

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.UserID, &run.DocumentName, &run.DocumentURL,
		&run.CompanyName, &run.Status, &run.CreatedAt, &run.CompletedAt, &run.Duration,
		&run.Stage1Output, &run.Stage2Output, &run.Stage3Output, &run.Stage4Output,
		&run.FullReportMarkdown)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// CreateRun creates a new pipeline run record with a caller-chosen ID and
// status PROCESSING. The trigger endpoint persists this record BEFORE
// invoking the external pipeline so that stage-update webhooks can never
// observe a missing run.
func (db *DB) CreateRun(ctx context.Context, input *RunInput) (*Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`INSERT INTO pipeline_runs (id, user_id, document_name, document_url, company_name, status)
		 VALUES ($1, $2, $3, $4, $5, 'PROCESSING')
		 RETURNING `+runColumns,
		input.ID, input.UserID, input.DocumentName, input.DocumentURL, input.CompanyName,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// InitRun creates the run record if it does not exist yet and reports whether
// a row was created. Used by the init webhook for externally-initiated runs;
// safe to call repeatedly with the same ID.
func (db *DB) InitRun(ctx context.Context, input *RunInput) (created bool, err error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, user_id, document_name, document_url, company_name, status)
		 VALUES ($1, $2, $3, $4, $5, 'PROCESSING')
		 ON CONFLICT (id) DO NOTHING`,
		input.ID, input.UserID, input.DocumentName, input.DocumentURL, input.CompanyName,
	)
	if err != nil {
		return false, fmt.Errorf("failed to init run: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetRun retrieves a pipeline run by ID. Returns (nil, nil) if not found.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, runID))
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// MarkRunFailed marks a run FAILED with the given completion time. Failure is
// terminal and propagates immediately; it does not wait for other stages.
// Runs already in a terminal state are left untouched, so a redelivered
// failure report cannot reopen a completed run.
func (db *DB) MarkRunFailed(ctx context.Context, runID string, completedAt time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = 'FAILED', completed_at = $1
		 WHERE id = $2 AND status = 'PROCESSING'`,
		completedAt, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

// CompleteRun marks a run COMPLETED with completion metadata. Only the
// completion webhook calls this; stage-update never transitions a run to
// COMPLETED, so the completion webhook always observes a non-terminal run
// and persists opportunity cards before any reader sees COMPLETED.
// The WHERE guard keeps the write idempotent against duplicate deliveries.
func (db *DB) CompleteRun(ctx context.Context, runID string, completedAt time.Time, duration *int, fullReport *string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs
		 SET status = 'COMPLETED', completed_at = $1, duration = $2,
		     full_report_markdown = COALESCE($3, full_report_markdown)
		 WHERE id = $4 AND status != 'COMPLETED'`,
		completedAt, duration, fullReport, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SetStageSnapshot mirrors a stage output onto the run's denormalized column
// for stages 1-4. The caller treats failure as non-fatal.
func (db *DB) SetStageSnapshot(ctx context.Context, runID string, stageNumber int, output string) error {
	if stageNumber < 1 || stageNumber > 4 {
		return fmt.Errorf("no snapshot column for stage %d", stageNumber)
	}
	query := fmt.Sprintf(`UPDATE pipeline_runs SET stage%d_output = $1 WHERE id = $2`, stageNumber)
	if _, err := db.pool.Exec(ctx, query, output, runID); err != nil {
		return fmt.Errorf("failed to set stage %d snapshot: %w", stageNumber, err)
	}
	return nil
}

// ListRuns retrieves a user's recent pipeline runs, newest first.
func (db *DB) ListRuns(ctx context.Context, userID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs
		 WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.UserID, &run.DocumentName, &run.DocumentURL,
			&run.CompanyName, &run.Status, &run.CreatedAt, &run.CompletedAt, &run.Duration,
			&run.Stage1Output, &run.Stage2Output, &run.Stage3Output, &run.Stage4Output,
			&run.FullReportMarkdown); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
