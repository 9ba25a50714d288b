package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mvp-joe/indexsched/internal/facts"
)

// purgeBatchSize keeps IN (...) lists under SQLite's variable limit.
const purgeBatchSize = 500

// IndexWriter merges accumulated facts into the persisted index.
type IndexWriter struct {
	db *sql.DB
}

// NewIndexWriter creates an IndexWriter instance.
func NewIndexWriter(db *sql.DB) *IndexWriter {
	return &IndexWriter{db: db}
}

// PurgeFiles deletes every fact recorded for the given paths.
// Called for removed files and for files about to be re-indexed.
func (w *IndexWriter) PurgeFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(paths); start += purgeBatchSize {
		end := min(start+purgeBatchSize, len(paths))
		batch := paths[start:end]

		if _, err := sq.Delete("locations").Where(sq.Eq{"file_path": batch}).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("failed to purge locations: %w", err)
		}
		if _, err := sq.Delete("file_facts").Where(sq.Eq{"file_path": batch}).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("failed to purge file facts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}

	return nil
}

// Inject writes the contents of acc in a single transaction.
// Returns the number of locations written.
func (w *IndexWriter) Inject(acc *facts.Accumulator) (int, error) {
	if acc == nil || acc.Empty() {
		return 0, nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, f := range acc.Files() {
		_, err := sq.Insert("file_facts").
			Columns("file_path", "size_bytes", "line_count").
			Values(f.FilePath, f.SizeBytes, f.LineCount).
			Options("OR REPLACE").
			RunWith(tx).
			Exec()
		if err != nil {
			return 0, fmt.Errorf("failed to write file facts for %s: %w", f.FilePath, err)
		}
	}

	locations := acc.Locations()
	if len(locations) > 0 {
		sqlStr, _, err := sq.Insert("locations").
			Columns("file_path", "line", "kind", "text").
			Values("", 0, "", "").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build SQL: %w", err)
		}

		stmt, err := tx.Prepare(sqlStr)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, loc := range locations {
			if _, err := stmt.Exec(loc.FilePath, loc.Line, loc.Kind, loc.Text); err != nil {
				return 0, fmt.Errorf("failed to insert location %s:%d: %w", loc.FilePath, loc.Line, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit injection: %w", err)
	}

	return len(locations), nil
}
