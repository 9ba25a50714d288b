package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// FileRecord is one row of the files table: the persisted prior snapshot.
type FileRecord struct {
	FilePath     string
	LastModified time.Time
	IsSource     bool
	IndexedAt    time.Time // zero for files never indexed
}

// FileWriter handles writing the file snapshot to SQLite.
type FileWriter struct {
	db *sql.DB
}

// NewFileWriter creates a FileWriter instance.
// DB must have schema already created via CreateSchema().
func NewFileWriter(db *sql.DB) *FileWriter {
	return &FileWriter{db: db}
}

// WriteSnapshot replaces the files table with records in a single transaction.
func (w *FileWriter) WriteSnapshot(records []*FileRecord) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if _, err := sq.Delete("files").RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}

	if len(records) > 0 {
		// Build the query once with Squirrel, then get SQL for preparation
		sqlStr, _, err := sq.Insert("files").
			Columns("file_path", "last_modified", "is_source", "indexed_at").
			Values("", "", false, nil).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build SQL: %w", err)
		}

		stmt, err := tx.Prepare(sqlStr)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.Exec(r.FilePath, formatTime(r.LastModified), r.IsSource, nullableTime(r.IndexedAt)); err != nil {
				return fmt.Errorf("failed to insert file %s: %w", r.FilePath, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}
