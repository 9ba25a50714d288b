package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mvp-joe/indexsched/internal/facts"
)

// IndexReader reads injected facts back out of SQLite.
type IndexReader struct {
	db *sql.DB
}

// NewIndexReader creates an IndexReader instance.
func NewIndexReader(db *sql.DB) *IndexReader {
	return &IndexReader{db: db}
}

// CountLocations returns the total number of stored locations.
func (r *IndexReader) CountLocations() (int, error) {
	var n int
	err := sq.Select("COUNT(*)").From("locations").RunWith(r.db).QueryRow().Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count locations: %w", err)
	}
	return n, nil
}

// LocationsForFile returns the locations stored for path, ordered by line.
func (r *IndexReader) LocationsForFile(path string) ([]facts.Location, error) {
	rows, err := sq.Select("file_path", "line", "kind", "text").
		From("locations").
		Where(sq.Eq{"file_path": path}).
		OrderBy("line", "id").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query locations for %s: %w", path, err)
	}
	defer rows.Close()

	var out []facts.Location
	for rows.Next() {
		var loc facts.Location
		if err := rows.Scan(&loc.FilePath, &loc.Line, &loc.Kind, &loc.Text); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// GetFileFact returns the stored summary for path.
// Returns (nil, nil) if the file has no facts.
func (r *IndexReader) GetFileFact(path string) (*facts.FileFact, error) {
	f := &facts.FileFact{}
	err := sq.Select("file_path", "size_bytes", "line_count").
		From("file_facts").
		Where(sq.Eq{"file_path": path}).
		RunWith(r.db).
		QueryRow().
		Scan(&f.FilePath, &f.SizeBytes, &f.LineCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file facts for %s: %w", path, err)
	}
	return f, nil
}
