package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fetcharr/internal/catalog"
)

// StartRun inserts a running run row. A missing ID is generated.
func (s *Store) StartRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = RunRunning

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, queue_name, instance, strategy, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.QueueName,
		run.Instance,
		string(run.Strategy),
		string(run.Status),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun closes out a run with its final status and counters.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, considered, dispatched int, errorMessage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs
         SET status = ?, finished_at = ?, candidates_considered = ?, searches_dispatched = ?, error_message = ?
         WHERE id = ?`,
		string(status),
		formatTime(time.Now()),
		considered,
		dispatched,
		nullableString(errorMessage),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LastRun returns the most recently started run for a queue.
func (s *Store) LastRun(ctx context.Context, queueName string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+` FROM runs WHERE queue_name = ? ORDER BY started_at DESC LIMIT 1`,
		queueName,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered newest first, optionally filtered by queue.
func (s *Store) ListRuns(ctx context.Context, queueName string, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if queueName != "" {
		query += ` WHERE queue_name = ?`
		args = append(args, queueName)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AppendRecord inserts a dispatch record for a run and fills in its row id.
func (s *Store) AppendRecord(ctx context.Context, rec *DispatchRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeDispatched
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var commandID any
	if rec.CommandID != nil {
		commandID = *rec.CommandID
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO dispatch_records (
            run_id, seq, label, action, external_id, item_id, season, episode,
            score, reason, command_id, result, outcome, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Seq,
		rec.Label,
		string(rec.Action),
		rec.ExternalID,
		rec.ItemID,
		rec.Season,
		rec.Episode,
		rec.Score,
		rec.Reason,
		commandID,
		string(rec.Result),
		string(rec.Outcome),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert dispatch record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// RecordsForRun returns a run's dispatch records in dispatch order.
func (s *Store) RecordsForRun(ctx context.Context, runID string) ([]*DispatchRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM dispatch_records WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var records []*DispatchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PendingRecords returns a run's records still awaiting a feedback verdict.
func (s *Store) PendingRecords(ctx context.Context, runID string) ([]*DispatchRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM dispatch_records
         WHERE run_id = ? AND outcome = ? ORDER BY seq`,
		runID,
		string(OutcomeDispatched),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending records: %w", err)
	}
	defer rows.Close()

	var records []*DispatchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SetOutcome transitions a record out of the dispatched state. The guard
// makes the transition idempotent: a record already resolved stays resolved.
func (s *Store) SetOutcome(ctx context.Context, recordID int64, outcome Outcome) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE dispatch_records SET outcome = ? WHERE id = ? AND outcome = ?`,
		string(outcome),
		recordID,
		string(OutcomeDispatched),
	)
	if err != nil {
		return false, fmt.Errorf("set outcome: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const runColumns = "id, queue_name, instance, strategy, status, started_at, finished_at, candidates_considered, searches_dispatched, error_message"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		strategy   string
		status     string
		startedRaw string
		finished   sql.NullString
		errMsg     sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.QueueName,
		&run.Instance,
		&strategy,
		&status,
		&startedRaw,
		&finished,
		&run.CandidatesConsidered,
		&run.SearchesDispatched,
		&errMsg,
	); err != nil {
		return nil, err
	}
	run.Strategy = catalog.Strategy(strategy)
	run.Status = RunStatus(status)
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	run.FinishedAt = parseNullableTime(finished)
	run.ErrorMessage = errMsg.String
	return &run, nil
}

const recordColumns = "id, run_id, seq, label, action, external_id, item_id, season, episode, score, reason, command_id, result, outcome, created_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*DispatchRecord, error) {
	var (
		rec        DispatchRecord
		action     string
		commandID  sql.NullInt64
		result     string
		outcome    string
		createdRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Seq,
		&rec.Label,
		&action,
		&rec.ExternalID,
		&rec.ItemID,
		&rec.Season,
		&rec.Episode,
		&rec.Score,
		&rec.Reason,
		&commandID,
		&result,
		&outcome,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	rec.Action = catalog.ActionKind(action)
	if commandID.Valid {
		value := commandID.Int64
		rec.CommandID = &value
	}
	rec.Result = Result(result)
	rec.Outcome = Outcome(outcome)
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return &rec, nil
}
