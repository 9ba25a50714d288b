// Package pipeline drives one indexing run: it asks the registry what changed,
// fans the files out to indexer workers that fill pooled accumulators, and
// drains the pool into the SQLite index from a single injector goroutine.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvp-joe/indexsched/internal/facts"
	"github.com/mvp-joe/indexsched/internal/pool"
	"github.com/mvp-joe/indexsched/internal/registry"
	"github.com/mvp-joe/indexsched/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Config tunes a Pipeline.
type Config struct {
	Workers      int           // concurrent indexer workers, at least 1
	PollInterval time.Duration // injector wake-up when no release was signalled
}

// Stats describes one run.
type Stats struct {
	RunID             string
	Added             int
	Updated           int
	Removed           int
	FilesIndexed      int
	FilesFailed       int
	Injections        int
	LocationsInjected int
	ProcessingTime    time.Duration
}

// Pipeline coordinates the registry, the accumulator pool and the index.
// Run must not be called concurrently with itself.
type Pipeline struct {
	config   Config
	registry *registry.Registry
	db       *sql.DB
	index    IndexFunc
	progress ProgressReporter
	pool     *pool.Pool[*facts.Accumulator]
}

// New creates a Pipeline. index defaults to IndexLines, progress to a no-op reporter.
func New(cfg Config, reg *registry.Registry, db *sql.DB, index IndexFunc, progress ProgressReporter) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if index == nil {
		index = IndexLines
	}
	if progress == nil {
		progress = &NoOpProgressReporter{}
	}

	return &Pipeline{
		config:   cfg,
		registry: reg,
		db:       db,
		index:    index,
		progress: progress,
		pool:     pool.New(facts.New),
	}
}

// Pool exposes the accumulator pool, mainly for diagnostics.
func (p *Pipeline) Pool() *pool.Pool[*facts.Accumulator] {
	return p.pool
}

// Run performs one fetch cycle and indexes everything it reports.
//
// The snapshot is only written when the run completes, so an interrupted run
// is repeated from the same prior state next time. Files whose indexing
// fails are left out of the snapshot and come back as added.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{}

	p.discardPooled()

	runs := storage.NewRunStore(p.db)
	runID, err := runs.StartRun(startTime)
	if err != nil {
		return nil, err
	}
	stats.RunID = runID

	// Phase 1: load the prior snapshot
	phaseStart := time.Now()
	priorRows, err := storage.NewFileReader(p.db).LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	prior := make([]registry.FileRecord, 0, len(priorRows))
	indexedAt := make(map[string]time.Time, len(priorRows))
	var priorSources []string
	for _, row := range priorRows {
		prior = append(prior, registry.FileRecord{Path: row.FilePath, LastModified: row.LastModified})
		indexedAt[row.FilePath] = row.IndexedAt
		if row.IsSource {
			priorSources = append(priorSources, row.FilePath)
		}
	}

	// Phase 2: compute the change sets
	p.progress.OnFetchStart()
	changes := p.registry.Fetch(prior)
	stats.Added = len(changes.Added)
	stats.Updated = len(changes.Updated)
	stats.Removed = len(changes.Removed)
	p.progress.OnFetchComplete(stats.Added, stats.Updated, stats.Removed)
	log.Printf("[TIMING] Fetch: %v (%d known, %d added, %d updated, %d removed)\n",
		time.Since(phaseStart), len(prior), stats.Added, stats.Updated, stats.Removed)

	toIndex := p.filesToIndex(changes)

	// Phase 3: purge stale facts before anything new is injected
	phaseStart = time.Now()
	writer := storage.NewIndexWriter(p.db)
	purge := append(append([]string(nil), changes.Removed...), toIndex...)
	purge = append(purge, p.demotedSources(priorSources, changes)...)
	if err := writer.PurgeFiles(purge); err != nil {
		return nil, err
	}
	log.Printf("[TIMING] Purge: %v (%d files)\n", time.Since(phaseStart), len(purge))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 4: index and inject
	phaseStart = time.Now()
	indexed, failed, err := p.process(ctx, writer, toIndex, stats)
	if err != nil {
		return nil, err
	}
	stats.FilesIndexed = len(indexed)
	stats.FilesFailed = len(failed)
	log.Printf("[TIMING] Index + inject: %v (%d files, %d failed, %d locations in %d injections)\n",
		time.Since(phaseStart), stats.FilesIndexed, stats.FilesFailed, stats.LocationsInjected, stats.Injections)

	// Phase 5: persist the new snapshot
	finished := time.Now()
	if err := p.writeSnapshot(indexed, failed, indexedAt, finished); err != nil {
		return nil, err
	}

	stats.ProcessingTime = time.Since(startTime)
	if err := runs.FinishRun(&storage.Run{
		ID:         runID,
		FinishedAt: finished,
		Added:      stats.Added,
		Updated:    stats.Updated,
		Removed:    stats.Removed,
		Indexed:    stats.FilesIndexed,
		Injected:   stats.LocationsInjected,
	}); err != nil {
		return nil, err
	}

	p.pool.LogState()
	p.progress.OnComplete(stats)
	return stats, nil
}

// filesToIndex returns added and updated paths that are sources.
// Updated headers only get their timestamp refreshed.
func (p *Pipeline) filesToIndex(changes *registry.ChangeSet) []string {
	var out []string
	for _, path := range changes.Added {
		if p.registry.HasSourcePath(path) {
			out = append(out, path)
		}
	}
	for _, path := range changes.Updated {
		if p.registry.HasSourcePath(path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// demotedSources returns prior sources that are still tracked but no longer
// sources, such as files whose extension or root left the configuration
// between sessions. Their facts are purged.
func (p *Pipeline) demotedSources(priorSources []string, changes *registry.ChangeSet) []string {
	removed := make(map[string]struct{}, len(changes.Removed))
	for _, path := range changes.Removed {
		removed[path] = struct{}{}
	}

	var out []string
	for _, path := range priorSources {
		if _, ok := removed[path]; ok {
			continue
		}
		if !p.registry.HasSourcePath(path) {
			out = append(out, path)
		}
	}
	return out
}

// discardPooled drops accumulators left behind by a run that stopped before
// the injector drained them. Their files are purged and re-indexed anyway.
func (p *Pipeline) discardPooled() {
	dropped := 0
	for {
		if _, ok := p.pool.AcquireForInjection(); !ok {
			break
		}
		dropped++
	}
	if dropped > 0 {
		log.Printf("Warning: discarded %d accumulators left by an earlier run\n", dropped)
	}
}

// process runs the workers and the injector until every file is indexed and
// the pool is drained.
func (p *Pipeline) process(ctx context.Context, writer *storage.IndexWriter, files []string, stats *Stats) (indexed, failed []string, err error) {
	p.progress.OnIndexingStart(len(files))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wake := make(chan struct{}, 1)
	producersDone := make(chan struct{})
	injectDone := make(chan error, 1)

	var injections, injected atomic.Int64
	go func() {
		err := p.inject(runCtx, writer, wake, producersDone, &injections, &injected)
		if err != nil {
			cancel()
		}
		injectDone <- err
	}()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(p.config.Workers)

	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			acc := p.pool.AcquireTarget()
			mark := acc.Mark()
			indexErr := p.index(gctx, path, acc)
			if indexErr != nil {
				acc.Rollback(mark)
			}
			p.pool.Release(acc)
			signal(wake)

			mu.Lock()
			defer mu.Unlock()
			if indexErr != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("Warning: failed to index %s: %v\n", path, indexErr)
				failed = append(failed, path)
				return nil
			}
			indexed = append(indexed, path)
			p.progress.OnFileIndexed(path)
			return nil
		})
	}

	workErr := g.Wait()
	close(producersDone)
	injectErr := <-injectDone

	stats.Injections = int(injections.Load())
	stats.LocationsInjected = int(injected.Load())

	if injectErr != nil {
		return nil, nil, injectErr
	}
	if workErr != nil {
		return nil, nil, workErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Strings(indexed)
	sort.Strings(failed)
	return indexed, failed, nil
}

// inject drains the pool into the index. It waits for a release signal or the
// poll interval whenever the pool is empty, and returns once producers are
// done and nothing is left.
func (p *Pipeline) inject(ctx context.Context, writer *storage.IndexWriter, wake <-chan struct{}, producersDone <-chan struct{}, injections, injected *atomic.Int64) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// drain merges everything currently pooled into the largest accumulator
	// and writes it in one transaction.
	drain := func() error {
		for {
			acc, ok := p.pool.AcquireForInjection()
			if !ok {
				return nil
			}
			for {
				next, ok := p.pool.AcquireForInjection()
				if !ok {
					break
				}
				acc.Merge(next)
			}
			if acc.Empty() {
				continue
			}

			n, err := writer.Inject(acc)
			if err != nil {
				return err
			}
			injections.Add(1)
			injected.Add(int64(n))
			p.progress.OnInjected(n)
		}
	}

	for {
		if err := drain(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-producersDone:
			return drain()
		case <-wake:
		case <-ticker.C:
		}
	}
}

// writeSnapshot persists the registry state. Failed files are dropped so the
// next run sees them as added.
func (p *Pipeline) writeSnapshot(indexed, failed []string, prevIndexedAt map[string]time.Time, now time.Time) error {
	indexedSet := make(map[string]struct{}, len(indexed))
	for _, path := range indexed {
		indexedSet[path] = struct{}{}
	}
	failedSet := make(map[string]struct{}, len(failed))
	for _, path := range failed {
		failedSet[path] = struct{}{}
	}

	snapshot := p.registry.Snapshot()
	rows := make([]*storage.FileRecord, 0, len(snapshot))
	for _, rec := range snapshot {
		if _, skip := failedSet[rec.Path]; skip {
			continue
		}
		row := &storage.FileRecord{
			FilePath:     rec.Path,
			LastModified: rec.LastModified,
			IsSource:     p.registry.HasSourcePath(rec.Path),
		}
		if _, ok := indexedSet[rec.Path]; ok {
			row.IndexedAt = now
		} else if row.IsSource {
			row.IndexedAt = prevIndexedAt[rec.Path]
		}
		rows = append(rows, row)
	}

	if err := storage.NewFileWriter(p.db).WriteSnapshot(rows); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
