package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Run summarizes one pipeline run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or if the run was interrupted
	Added      int
	Updated    int
	Removed    int
	Indexed    int
	Injected   int
}

// RunStore records pipeline runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore instance.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// StartRun inserts a new run row and returns its ID.
func (s *RunStore) StartRun(startedAt time.Time) (string, error) {
	id := uuid.New().String()
	_, err := sq.Insert("runs").
		Columns("id", "started_at").
		Values(id, formatTime(startedAt)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counts of a run.
func (s *RunStore) FinishRun(run *Run) error {
	_, err := sq.Update("runs").
		Set("finished_at", formatTime(run.FinishedAt)).
		Set("added", run.Added).
		Set("updated", run.Updated).
		Set("removed", run.Removed).
		Set("indexed", run.Indexed).
		Set("injected", run.Injected).
		Where(sq.Eq{"id": run.ID}).
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

// LastRun returns the most recently started run.
// Returns (nil, nil) if no run has been recorded.
func (s *RunStore) LastRun() (*Run, error) {
	run := &Run{}
	var startedAt string
	var finishedAt sql.NullString

	err := sq.Select("id", "started_at", "finished_at", "added", "updated", "removed", "indexed", "injected").
		From("runs").
		OrderBy("started_at DESC").
		Limit(1).
		RunWith(s.db).
		QueryRow().
		Scan(&run.ID, &startedAt, &finishedAt, &run.Added, &run.Updated, &run.Removed, &run.Indexed, &run.Injected)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
	}
	return run, nil
}
