package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/mvp-joe/indexsched/internal/paths"
)

// FileRecord is the last observed state of a single file.
type FileRecord struct {
	Path         string
	LastModified time.Time
}

// Walker enumerates candidate files on disk.
// Implementations report a best-effort snapshot: files that vanish while being
// listed are simply left out.
type Walker interface {
	// ListFiles walks every root and returns the files whose extension is in extensions.
	ListFiles(roots []string, extensions []string) []FileRecord

	// Stat returns the current record for a single path.
	Stat(path string) (FileRecord, error)

	// Exists reports whether path is present on disk.
	Exists(path string) bool
}

// Config is the immutable per-session configuration of a Registry.
type Config struct {
	SourcePaths      []string
	HeaderPaths      []string
	ExcludePaths     []string
	SourceExtensions []string
}

// ChangeSet is the result of one fetch cycle. Slices are sorted.
type ChangeSet struct {
	Added   []string
	Updated []string
	Removed []string
}

// Empty reports whether the fetch found nothing to do.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Registry tracks every file seen during an indexing session and computes
// which of them need indexing, re-indexing or purging.
//
// A Registry is not safe for concurrent use. The controller calls Fetch and
// the query methods from a single goroutine before dispatching workers.
type Registry struct {
	walker Walker

	sourcePaths      []string
	sourceExtensions []string
	classifier       paths.Classifier

	known     map[string]FileRecord
	sourceSet map[string]struct{}
	added     map[string]struct{}
	updated   map[string]struct{}
	removed   map[string]struct{}
}

// New creates a Registry for one session.
func New(cfg Config, walker Walker) *Registry {
	r := &Registry{walker: walker}
	r.Initialize(cfg)
	return r
}

// Initialize replaces the session configuration and clears all state.
// Header and exclude paths are canonicalized here, once.
func (r *Registry) Initialize(cfg Config) {
	r.sourcePaths = append([]string(nil), cfg.SourcePaths...)
	r.sourceExtensions = append([]string(nil), cfg.SourceExtensions...)
	r.classifier = paths.NewClassifier(cfg.HeaderPaths, cfg.ExcludePaths)

	r.known = make(map[string]FileRecord)
	r.sourceSet = make(map[string]struct{})
	r.added = make(map[string]struct{})
	r.updated = make(map[string]struct{})
	r.removed = make(map[string]struct{})
}

// Fetch compares prior against the filesystem and returns what changed.
//
// Every previously known path that still exists and was not a source file on
// the previous fetch is treated as a header/dependency: its time is refreshed.
// Everything else, including every previous source file, is tentatively
// removed until the directory walk rediscovers it. The previous source set must
// be consulted before it is replaced.
func (r *Registry) Fetch(prior []FileRecord) *ChangeSet {
	r.known = make(map[string]FileRecord, len(prior))
	for _, rec := range prior {
		r.known[rec.Path] = rec
	}

	r.added = make(map[string]struct{})
	r.updated = make(map[string]struct{})
	r.removed = make(map[string]struct{})

	for path, rec := range r.known {
		if r.walker.Exists(path) && !r.HasSourcePath(path) && !r.classifier.IsExcluded(path) {
			current, err := r.walker.Stat(path)
			if err != nil {
				// Vanished between the existence check and the stat
				r.removed[path] = struct{}{}
				continue
			}
			if current.LastModified.After(rec.LastModified) {
				rec.LastModified = current.LastModified
				r.known[path] = rec
				r.updated[path] = struct{}{}
			}
			continue
		}
		r.removed[path] = struct{}{}
	}

	r.sourceSet = make(map[string]struct{})

	for _, candidate := range r.walker.ListFiles(r.sourcePaths, r.sourceExtensions) {
		path := candidate.Path
		if r.classifier.IsExcluded(path) {
			continue
		}

		r.sourceSet[path] = struct{}{}

		rec, ok := r.known[path]
		if !ok {
			r.known[path] = candidate
			r.added[path] = struct{}{}
			continue
		}

		delete(r.removed, path)
		if candidate.LastModified.After(rec.LastModified) {
			rec.LastModified = candidate.LastModified
			r.known[path] = rec
			r.updated[path] = struct{}{}
		}
	}

	for path := range r.removed {
		delete(r.known, path)
	}

	return &ChangeSet{
		Added:   sortedKeys(r.added),
		Updated: sortedKeys(r.updated),
		Removed: sortedKeys(r.removed),
	}
}

// SourcePaths returns the configured source roots.
func (r *Registry) SourcePaths() []string {
	return append([]string(nil), r.sourcePaths...)
}

// SourceFiles returns the source files found by the most recent fetch.
func (r *Registry) SourceFiles() []string {
	return sortedKeys(r.sourceSet)
}

// Added returns the paths added by the most recent fetch.
func (r *Registry) Added() []string { return sortedKeys(r.added) }

// Updated returns the paths updated by the most recent fetch.
func (r *Registry) Updated() []string { return sortedKeys(r.updated) }

// Removed returns the paths removed by the most recent fetch.
func (r *Registry) Removed() []string { return sortedKeys(r.removed) }

// HasSourcePath reports whether path was classified as source by the most recent fetch.
func (r *Registry) HasSourcePath(path string) bool {
	_, ok := r.sourceSet[path]
	return ok
}

// HasKnownPath reports whether path belongs to the indexed file set.
// Exclusion is checked on every call, so a stale entry left over from a
// session with different exclude rules is never reported.
func (r *Registry) HasKnownPath(path string) bool {
	if r.classifier.IsExcluded(path) {
		return false
	}
	if r.HasSourcePath(path) {
		return true
	}
	if _, ok := r.known[path]; ok {
		return true
	}
	return r.classifier.IsTrackedHeader(path)
}

// Record returns the stored record for path, falling back to the filesystem
// for paths the registry has never seen.
func (r *Registry) Record(path string) (FileRecord, error) {
	if rec, ok := r.known[path]; ok {
		return rec, nil
	}
	rec, err := r.walker.Stat(path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return rec, nil
}

// Snapshot returns every known record sorted by path.
// Feeding it to the next session's Fetch reproduces the current state.
func (r *Registry) Snapshot() []FileRecord {
	out := make([]FileRecord, 0, len(r.known))
	for _, rec := range r.known {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
