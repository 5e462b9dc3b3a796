package db

import (
	"context"
	"fmt"
)

// UpsertStageOutput creates or updates the stage output keyed on
// (run_id, stage_number). Applying the same payload twice is safe: the update
// branch writes the same values, so retries from the external pipeline are
// idempotent. Concurrent upserts for different stages of the same run touch
// different rows and never conflict.
func (db *DB) UpsertStageOutput(ctx context.Context, runID string, input *StageOutputInput) (*StageOutput, error) {
	var out StageOutput
	err := db.pool.QueryRow(ctx,
		`INSERT INTO stage_outputs (run_id, stage_number, stage_name, status, output, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id, stage_number) DO UPDATE
		 SET status = EXCLUDED.status, output = EXCLUDED.output,
		     completed_at = EXCLUDED.completed_at
		 RETURNING id, run_id, stage_number, stage_name, status, output, completed_at`,
		runID, input.StageNumber, input.StageName, input.Status, input.Output, input.CompletedAt,
	).Scan(&out.ID, &out.RunID, &out.StageNumber, &out.StageName, &out.Status,
		&out.Output, &out.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert stage output: %w", err)
	}
	return &out, nil
}

// ListStageOutputs retrieves all stage outputs for a run ordered by stage number.
func (db *DB) ListStageOutputs(ctx context.Context, runID string) ([]StageOutput, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, stage_number, stage_name, status, output, completed_at
		 FROM stage_outputs
		 WHERE run_id = $1
		 ORDER BY stage_number`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage outputs: %w", err)
	}
	defer rows.Close()

	var outputs []StageOutput
	for rows.Next() {
		var out StageOutput
		if err := rows.Scan(&out.ID, &out.RunID, &out.StageNumber, &out.StageName,
			&out.Status, &out.Output, &out.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage output: %w", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
