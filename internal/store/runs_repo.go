package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ingestadmin/internal/schedule"
)

var ErrRunNotFound = errors.New("run not found")

func (s *Store) InsertRun(ctx context.Context, run *schedule.Run) error {
	run.CreatedAt = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (id, id_tarea, etapa, status, scheduled_at, started_at, ended_at, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.TareaID, int(run.Etapa), string(run.Status), run.ScheduledAt.UTC().Format(time.RFC3339Nano),
		nullableTime(run.StartedAt), nullableTime(run.EndedAt), nullableString(run.Error),
		run.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) MarkRunStarted(ctx context.Context, id string, startedAt time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, started_at = ?
		WHERE id = ?
	`, string(schedule.RunStatusRunning), startedAt.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("mark run started: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *Store) MarkRunCompleted(ctx context.Context, id string, status schedule.RunStatus, endedAt time.Time, errMsg *string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, ended_at = ?, error = ?
		WHERE id = ?
	`, string(status), endedAt.UTC().Format(time.RFC3339Nano), nullableString(errMsg), id)
	if err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// RunFilter narrows a monitor listing.
type RunFilter struct {
	TareaID string
	Etapa   *schedule.Stage
	Status  *schedule.RunStatus
	Limit   int
	Offset  int
}

func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]*schedule.Run, error) {
	query := `
		SELECT id, id_tarea, etapa, status, scheduled_at, started_at, ended_at, error, created_at
		FROM runs
		WHERE 1=1`
	var args []any
	if filter.TareaID != "" {
		query += ` AND id_tarea = ?`
		args = append(args, filter.TareaID)
	}
	if filter.Etapa != nil {
		query += ` AND etapa = ?`
		args = append(args, int(*filter.Etapa))
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += ` ORDER BY scheduled_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var runs []*schedule.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*schedule.Run, error) {
	var (
		run       schedule.Run
		etapa     int
		status    string
		scheduled string
		started   *string
		ended     *string
		errMsg    *string
		created   string
	)
	if err := scanner.Scan(&run.ID, &run.TareaID, &etapa, &status, &scheduled, &started, &ended, &errMsg, &created); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Etapa = schedule.Stage(etapa)
	run.Status = schedule.RunStatus(status)
	run.Error = errMsg
	if t, err := time.Parse(time.RFC3339Nano, scheduled); err == nil {
		run.ScheduledAt = t
	}
	if started != nil {
		if t, err := time.Parse(time.RFC3339Nano, *started); err == nil {
			run.StartedAt = &t
		}
	}
	if ended != nil {
		if t, err := time.Parse(time.RFC3339Nano, *ended); err == nil {
			run.EndedAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		run.CreatedAt = t
	}
	return &run, nil
}
