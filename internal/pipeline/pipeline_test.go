package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mvp-joe/indexsched/internal/discovery"
	"github.com/mvp-joe/indexsched/internal/facts"
	"github.com/mvp-joe/indexsched/internal/paths"
	"github.com/mvp-joe/indexsched/internal/registry"
	"github.com/mvp-joe/indexsched/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TEST PLAN: Pipeline
//
// 1. First run indexes every source, skips headers, writes the snapshot
// 2. Second run with no changes indexes nothing and keeps the index intact
// 3. Modified source is purged and re-indexed, deleted source is purged
// 4. Failing files are not recorded and are retried on the next run
// 5. Cancelled run returns the context error and leaves the snapshot untouched
// 6. Progress callbacks see the fetch counts and every indexed file
// 7. IndexLines: line locations, blank lines skipped, binary files, missing files
// 8. A source dropped by a new session's configuration loses its facts
// 9. Accumulators left in the pool by an earlier run are not injected
// 10. Whatever a failing IndexFunc recorded is rolled back

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func newTestPipeline(t *testing.T, index IndexFunc, progress ProgressReporter) (*Pipeline, *registry.Registry, string) {
	t.Helper()

	root := paths.CanonicalPath(t.TempDir())
	writeFile(t, filepath.Join(root, "src", "main.cpp"), "int main() {\n\n  return 0;\n}\n")
	writeFile(t, filepath.Join(root, "src", "util.cpp"), "int util() { return 1; }\n")
	writeFile(t, filepath.Join(root, "include", "util.h"), "int util();\n")

	walker, err := discovery.NewWalker(nil)
	require.NoError(t, err)

	reg := registry.New(registry.Config{
		SourcePaths:      []string{filepath.Join(root, "src")},
		HeaderPaths:      []string{filepath.Join(root, "include")},
		SourceExtensions: []string{".cpp", ".h"},
	}, walker)

	db := storage.NewTestDB(t)
	p := New(Config{Workers: 2, PollInterval: 5 * time.Millisecond}, reg, db, index, progress)
	return p, reg, root
}

func TestRun_FirstRunIndexesSources(t *testing.T) {
	t.Parallel()

	p, _, root := newTestPipeline(t, nil, nil)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesFailed)
	// main.cpp has 3 non-blank lines, util.cpp has 1
	assert.Equal(t, 4, stats.LocationsInjected)
	assert.Equal(t, 0, p.Pool().Size())

	reader := storage.NewIndexReader(p.db)
	count, err := reader.CountLocations()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	locs, err := reader.LocationsForFile(filepath.Join(root, "src", "main.cpp"))
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Equal(t, 1, locs[0].Line)
	assert.Equal(t, "int main() {", locs[0].Text)
	assert.Equal(t, 3, locs[1].Line)

	header, err := reader.GetFileFact(filepath.Join(root, "include", "util.h"))
	require.NoError(t, err)
	assert.Nil(t, header, "headers are tracked, not indexed")

	snapshot, err := storage.NewFileReader(p.db).LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	for _, rec := range snapshot {
		assert.True(t, rec.IsSource)
		assert.False(t, rec.IndexedAt.IsZero())
	}

	last, err := storage.NewRunStore(p.db).LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, stats.RunID, last.ID)
	assert.Equal(t, 2, last.Indexed)
	assert.False(t, last.FinishedAt.IsZero())
}

func TestRun_NoChangesSecondRun(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestPipeline(t, nil, nil)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, 0, stats.FilesIndexed)

	count, err := storage.NewIndexReader(p.db).CountLocations()
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRun_IncrementalUpdateAndRemoval(t *testing.T) {
	t.Parallel()

	p, _, root := newTestPipeline(t, nil, nil)
	mainPath := filepath.Join(root, "src", "main.cpp")
	utilPath := filepath.Join(root, "src", "util.cpp")

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	writeFile(t, mainPath, "int main() { return 2; }\n")
	touch(t, mainPath, time.Now().Add(time.Hour))
	require.NoError(t, os.Remove(utilPath))

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.FilesIndexed)

	reader := storage.NewIndexReader(p.db)
	locs, err := reader.LocationsForFile(mainPath)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "int main() { return 2; }", locs[0].Text)

	gone, err := reader.LocationsForFile(utilPath)
	require.NoError(t, err)
	assert.Empty(t, gone)

	fact, err := reader.GetFileFact(utilPath)
	require.NoError(t, err)
	assert.Nil(t, fact)

	total, sources, err := storage.NewFileReader(p.db).CountFiles()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, sources)
}

func TestRun_FailedFilesRetried(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	failing := true
	index := func(ctx context.Context, path string, acc *facts.Accumulator) error {
		mu.Lock()
		fail := failing && filepath.Base(path) == "util.cpp"
		mu.Unlock()
		if fail {
			return errors.New("parse error")
		}
		return IndexLines(ctx, path, acc)
	}

	p, _, root := newTestPipeline(t, index, nil)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)

	snapshot, err := storage.NewFileReader(p.db).LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, filepath.Join(root, "src", "main.cpp"), snapshot[0].FilePath)

	mu.Lock()
	failing = false
	mu.Unlock()

	stats, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesFailed)

	fact, err := storage.NewIndexReader(p.db).GetFileFact(filepath.Join(root, "src", "util.cpp"))
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.Equal(t, 1, fact.LineCount)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	index := func(ctx context.Context, path string, acc *facts.Accumulator) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	p, _, _ := newTestPipeline(t, index, nil)

	stats, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, stats)

	snapshot, err := storage.NewFileReader(p.db).LoadSnapshot()
	require.NoError(t, err)
	assert.Empty(t, snapshot)

	last, err := storage.NewRunStore(p.db).LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.FinishedAt.IsZero())
}

func TestRun_DemotedSourcePurged(t *testing.T) {
	t.Parallel()

	p, _, root := newTestPipeline(t, nil, nil)
	mainPath := filepath.Join(root, "src", "main.cpp")

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	// Next session indexes headers only; the .cpp files stay on disk
	walker, err := discovery.NewWalker(nil)
	require.NoError(t, err)
	reg := registry.New(registry.Config{
		SourcePaths:      []string{filepath.Join(root, "src")},
		HeaderPaths:      []string{filepath.Join(root, "include")},
		SourceExtensions: []string{".h"},
	}, walker)
	next := New(Config{Workers: 2, PollInterval: 5 * time.Millisecond}, reg, p.db, nil, nil)

	stats, err := next.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, 0, stats.FilesIndexed)

	reader := storage.NewIndexReader(p.db)
	count, err := reader.CountLocations()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	fact, err := reader.GetFileFact(mainPath)
	require.NoError(t, err)
	assert.Nil(t, fact)

	total, sources, err := storage.NewFileReader(p.db).CountFiles()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, sources)
}

func TestRun_DiscardsLeftoverAccumulators(t *testing.T) {
	t.Parallel()

	p, _, root := newTestPipeline(t, nil, nil)
	mainPath := filepath.Join(root, "src", "main.cpp")

	leftover := facts.New()
	leftover.AddLocation(facts.Location{FilePath: mainPath, Line: 99, Kind: LocationKindLine, Text: "stale"})
	p.Pool().Release(leftover)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.LocationsInjected)

	locs, err := storage.NewIndexReader(p.db).LocationsForFile(mainPath)
	require.NoError(t, err)
	require.Len(t, locs, 3)
	for _, loc := range locs {
		assert.NotEqual(t, "stale", loc.Text)
	}
}

func TestRun_FailedFillRolledBack(t *testing.T) {
	t.Parallel()

	index := func(ctx context.Context, path string, acc *facts.Accumulator) error {
		if filepath.Base(path) != "util.cpp" {
			return IndexLines(ctx, path, acc)
		}
		acc.AddFile(facts.FileFact{FilePath: path, LineCount: 1})
		acc.AddLocation(facts.Location{FilePath: path, Line: 1, Kind: LocationKindLine, Text: "partial"})
		return errors.New("truncated read")
	}

	p, _, root := newTestPipeline(t, index, nil)
	utilPath := filepath.Join(root, "src", "util.cpp")

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 3, stats.LocationsInjected)

	reader := storage.NewIndexReader(p.db)
	locs, err := reader.LocationsForFile(utilPath)
	require.NoError(t, err)
	assert.Empty(t, locs)

	fact, err := reader.GetFileFact(utilPath)
	require.NoError(t, err)
	assert.Nil(t, fact)
}

type recordingReporter struct {
	mu       sync.Mutex
	fetched  [3]int
	total    int
	files    []string
	injected int
	done     *Stats
}

func (r *recordingReporter) OnFetchStart() {}

func (r *recordingReporter) OnFetchComplete(added, updated, removed int) {
	r.fetched = [3]int{added, updated, removed}
}

func (r *recordingReporter) OnIndexingStart(totalFiles int) { r.total = totalFiles }

func (r *recordingReporter) OnFileIndexed(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, path)
}

func (r *recordingReporter) OnInjected(locations int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injected += locations
}

func (r *recordingReporter) OnComplete(stats *Stats) { r.done = stats }

func TestRun_ProgressCallbacks(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{}
	p, _, root := newTestPipeline(t, nil, rep)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [3]int{2, 0, 0}, rep.fetched)
	assert.Equal(t, 2, rep.total)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "src", "main.cpp"),
		filepath.Join(root, "src", "util.cpp"),
	}, rep.files)
	assert.Equal(t, 4, rep.injected)
	assert.Same(t, stats, rep.done)
}

func TestIndexLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("text file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "a.c")
		writeFile(t, path, "  int a;\n\n\tint b;  \n")

		acc := facts.New()
		require.NoError(t, IndexLines(context.Background(), path, acc))

		require.Len(t, acc.Files(), 1)
		assert.Equal(t, 3, acc.Files()[0].LineCount)
		assert.Equal(t, []facts.Location{
			{FilePath: path, Line: 1, Kind: LocationKindLine, Text: "int a;"},
			{FilePath: path, Line: 3, Kind: LocationKindLine, Text: "int b;"},
		}, acc.Locations())
		assert.Equal(t, 2, acc.Weight())
	})

	t.Run("binary file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "b.o")
		writeFile(t, path, "ELF\x00\x01\x02")

		acc := facts.New()
		require.NoError(t, IndexLines(context.Background(), path, acc))
		require.Len(t, acc.Files(), 1)
		assert.Equal(t, int64(6), acc.Files()[0].SizeBytes)
		assert.Empty(t, acc.Locations())
	})

	t.Run("missing file leaves accumulator unchanged", func(t *testing.T) {
		t.Parallel()
		acc := facts.New()
		err := IndexLines(context.Background(), filepath.Join(dir, "missing.c"), acc)
		require.Error(t, err)
		assert.True(t, acc.Empty())
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		acc := facts.New()
		assert.ErrorIs(t, IndexLines(ctx, filepath.Join(dir, "a.c"), acc), context.Canceled)
	})
}
