package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mvp-joe/indexsched/internal/config"
	"github.com/mvp-joe/indexsched/internal/discovery"
	"github.com/mvp-joe/indexsched/internal/paths"
	"github.com/mvp-joe/indexsched/internal/pipeline"
	"github.com/mvp-joe/indexsched/internal/registry"
	"github.com/mvp-joe/indexsched/internal/session"
	"github.com/mvp-joe/indexsched/internal/storage"
	"github.com/mvp-joe/indexsched/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	quietFlag   bool
	watchFlag   bool
	workersFlag int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index added and changed files",
	Long: `Index compares the project against the snapshot stored in the index and
processes only what changed:

  - new and modified source files are re-indexed
  - deleted or newly excluded files are purged
  - files that failed to index are retried on the next run

Examples:
  # Index the current directory
  indexsched index

  # Index without progress output
  indexsched index --quiet

  # Keep running and re-index whenever files change
  indexsched index --watch

  # Use eight indexer workers
  indexsched index --workers 8
`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and reindex incrementally")
	indexCmd.Flags().IntVar(&workersFlag, "workers", 0, "Number of indexer workers (default from config, then CPU count)")
}

// indexOptions carries everything an index session needs besides the context.
type indexOptions struct {
	root       string
	configFile string
	quiet      bool
	watch      bool
	workers    int
	out        io.Writer
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted! Cancelling indexing...")
			cancel()
		case <-ctx.Done():
		}
	}()

	root, err := projectRoot()
	if err != nil {
		return err
	}

	return indexProject(ctx, indexOptions{
		root:       root,
		configFile: viper.GetString("config"),
		quiet:      quietFlag,
		watch:      watchFlag,
		workers:    workersFlag,
		out:        cmd.OutOrStdout(),
	})
}

// indexProject runs one session: a single run, or a first run followed by
// watch mode. The session lock is held for the whole session.
func indexProject(ctx context.Context, opts indexOptions) error {
	cfg, err := loadProjectConfig(opts.root, opts.configFile)
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		cfg.Pipeline.Workers = opts.workers
	}

	lock, err := session.Acquire(filepath.Join(opts.root, config.DirName))
	if err != nil {
		if errors.Is(err, session.ErrLocked) {
			return fmt.Errorf("another indexsched session is running for %s: %w", opts.root, err)
		}
		return err
	}
	defer lock.Release()

	dbPath := cfg.DBFile(opts.root)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	walker, err := discovery.NewWalker(cfg.Paths.Ignore)
	if err != nil {
		return fmt.Errorf("invalid ignore patterns: %w", err)
	}

	regCfg := cfg.ToRegistryConfig(opts.root)
	reg := registry.New(regCfg, walker)

	progress := &CLIProgressReporter{quiet: opts.quiet, out: opts.out}
	p := pipeline.New(pipeline.Config{
		Workers:      cfg.WorkerCount(),
		PollInterval: cfg.PollInterval(),
	}, reg, db, pipeline.IndexLines, progress)

	if !opts.quiet {
		log.Printf("Indexing %s with %d workers\n", opts.root, cfg.WorkerCount())
	}

	stats, err := p.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("indexing cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("indexing failed: %w", err)
	}
	if opts.quiet {
		printSummary(opts.out, stats)
	}

	if !opts.watch {
		return nil
	}
	return watchProject(ctx, p, walker, regCfg, cfg.Debounce(), opts)
}

// watchProject re-runs the pipeline after every debounced batch of changes
// until ctx is cancelled. Changes that arrive during a run are held and
// trigger the next one.
func watchProject(ctx context.Context, p *pipeline.Pipeline, walker *discovery.Walker, regCfg registry.Config, debounce time.Duration, opts indexOptions) error {
	sourceRoots := paths.Canonicalize(regCfg.SourcePaths)
	classifier := paths.NewClassifier(regCfg.HeaderPaths, regCfg.ExcludePaths)
	headerRoots := classifier.HeaderRoots()

	filter := func(path string) bool {
		if classifier.IsExcluded(path) {
			return false
		}
		return walker.Accepts(sourceRoots, regCfg.SourceExtensions, path) ||
			walker.Accepts(headerRoots, regCfg.SourceExtensions, path)
	}

	w, err := watcher.New(watcher.Options{
		Roots:    append(append([]string(nil), sourceRoots...), headerRoots...),
		Filter:   filter,
		Debounce: debounce,
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	changes := make(chan []string, 1)
	if err := w.Start(ctx, func(files []string) {
		select {
		case changes <- files:
		default:
		}
	}); err != nil {
		return err
	}

	if !opts.quiet {
		log.Println("Watching for changes (Ctrl+C to stop)...")
	}

	for {
		select {
		case <-ctx.Done():
			if !opts.quiet {
				log.Println("Watch mode stopped")
			}
			return nil

		case files := <-changes:
			if !opts.quiet {
				log.Printf("Detected %d changed files, reindexing...\n", len(files))
			}

			w.Pause()
			stats, err := p.Run(ctx)
			w.Resume()

			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("Warning: incremental run failed: %v\n", err)
				continue
			}
			if opts.quiet {
				printSummary(opts.out, stats)
			}
		}
	}
}
