package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rsmidt/ptyhost/internal/models"
)

// Store reads and writes run history rows.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// InsertRun records a newly started run.
func (s *Store) InsertRun(run models.Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, command, cwd, cols, rows, pid, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.Cwd, run.Cols, run.Rows, run.PID, run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records a run's final result.
func (s *Store) FinishRun(id string, result models.RunResult, status string, finishedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, exit_code = ?, cancelled = ?, timed_out = ?, finished_at = ?
		 WHERE id = ?`,
		status, result.ExitCode, result.Cancelled, result.TimedOut, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, command, cwd, cols, rows, pid, status, exit_code, cancelled, timed_out, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns history newest-first, bounded by limit.
func (s *Store) ListRuns(limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, command, cwd, cols, rows, pid, status, exit_code, cancelled, timed_out, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var run models.Run
	var pid, exitCode sql.NullInt64
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &run.Command, &run.Cwd, &run.Cols, &run.Rows, &pid,
		&run.Status, &exitCode, &run.Cancelled, &run.TimedOut, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if pid.Valid {
		v := int(pid.Int64)
		run.PID = &v
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		run.ExitCode = &v
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}
