package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/mvp-joe/indexsched/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter implements pipeline.ProgressReporter with a progress bar.
type CLIProgressReporter struct {
	quiet   bool
	out     io.Writer
	fileBar *progressbar.ProgressBar
}

var _ pipeline.ProgressReporter = (*CLIProgressReporter)(nil)

// NewCLIProgressReporter creates a new CLI progress reporter writing to stdout.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{quiet: quiet, out: os.Stdout}
}

func (c *CLIProgressReporter) OnFetchStart() {
	if c.quiet {
		return
	}
	log.Println("Comparing snapshot with files on disk...")
}

func (c *CLIProgressReporter) OnFetchComplete(added, updated, removed int) {
	if c.quiet {
		return
	}
	log.Printf("Changes: %d added, %d updated, %d removed\n", added, updated, removed)
}

func (c *CLIProgressReporter) OnIndexingStart(totalFiles int) {
	if c.quiet || totalFiles == 0 {
		c.fileBar = nil
		return
	}

	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Indexing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

// OnFileIndexed is serialized by the pipeline.
func (c *CLIProgressReporter) OnFileIndexed(path string) {
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
}

// OnInjected is a no-op; the summary reports totals.
func (c *CLIProgressReporter) OnInjected(locations int) {}

func (c *CLIProgressReporter) OnComplete(stats *pipeline.Stats) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}

	fmt.Fprintln(c.out)
	printSummary(c.out, stats)
}

func printSummary(w io.Writer, stats *pipeline.Stats) {
	fmt.Fprintf(w, "✓ Indexing complete: %s files in %.1fs\n",
		formatNumber(stats.FilesIndexed), stats.ProcessingTime.Seconds())
	fmt.Fprintf(w, "  Changes:   %d added, %d updated, %d removed\n", stats.Added, stats.Updated, stats.Removed)
	fmt.Fprintf(w, "  Locations: %s in %d injections\n", formatNumber(stats.LocationsInjected), stats.Injections)
	if stats.FilesFailed > 0 {
		fmt.Fprintf(w, "  Failed:    %d (retried next run)\n", stats.FilesFailed)
	}
}
