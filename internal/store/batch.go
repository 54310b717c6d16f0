package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/netcapd/netcapd/internal/runner"
	"github.com/netcapd/netcapd/internal/scheduler"
)

// SaveBatchRun persists a completed batch's result and the job set it was
// built from, so a later `batch --replay` invocation (spec.md §6,
// "Replay-failed helper") can rebuild the failed subset without the
// caller having to keep the original job list around.
func (s *Store) SaveBatchRun(ctx context.Context, result scheduler.BatchResult, jobs []runner.DeviceJob) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	jobsJSON, err := json.Marshal(jobs)
	if err != nil {
		return err
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO batch_runs (batch_id, started_at, result, jobs) VALUES (?, ?, ?, ?)
			ON CONFLICT (batch_id) DO UPDATE SET result = excluded.result, jobs = excluded.jobs`,
			result.BatchID, time.Now(), string(resultJSON), string(jobsJSON))
		return err
	})
}

// LoadBatchRun retrieves a prior batch's result and job set by batch ID.
// It returns sql.ErrNoRows if no such batch was recorded.
func (s *Store) LoadBatchRun(ctx context.Context, batchID string) (scheduler.BatchResult, []runner.DeviceJob, error) {
	var result scheduler.BatchResult
	var jobs []runner.DeviceJob

	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		var resultJSON, jobsJSON string
		row := tx.QueryRow(`SELECT result, jobs FROM batch_runs WHERE batch_id = ?`, batchID)
		if err := row.Scan(&resultJSON, &jobsJSON); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
			return err
		}
		return json.Unmarshal([]byte(jobsJSON), &jobs)
	})
	return result, jobs, err
}
