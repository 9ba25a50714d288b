package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// FileReader handles reading the file snapshot from SQLite.
type FileReader struct {
	db *sql.DB
}

// NewFileReader creates a FileReader instance.
// DB should have schema already created.
func NewFileReader(db *sql.DB) *FileReader {
	return &FileReader{db: db}
}

// LoadSnapshot returns every file row ordered by path.
func (r *FileReader) LoadSnapshot() ([]*FileRecord, error) {
	rows, err := sq.Select("file_path", "last_modified", "is_source", "indexed_at").
		From("files").
		OrderBy("file_path").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec := &FileRecord{}
		var lastModified string
		var indexedAt sql.NullString
		if err := rows.Scan(&rec.FilePath, &lastModified, &rec.IsSource, &indexedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}

		rec.LastModified, err = time.Parse(time.RFC3339Nano, lastModified)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_modified for %s: %w", rec.FilePath, err)
		}
		if indexedAt.Valid {
			rec.IndexedAt, err = time.Parse(time.RFC3339Nano, indexedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse indexed_at for %s: %w", rec.FilePath, err)
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return records, nil
}

// CountFiles returns the number of known files and how many of them are sources.
func (r *FileReader) CountFiles() (total, sources int, err error) {
	err = sq.Select("COUNT(*)", "COALESCE(SUM(is_source), 0)").
		From("files").
		RunWith(r.db).
		QueryRow().
		Scan(&total, &sources)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count files: %w", err)
	}
	return total, sources, nil
}
