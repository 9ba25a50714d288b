package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mvp-joe/indexsched/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrNoIndex is returned by status when the project has never been indexed.
var ErrNoIndex = errors.New("no index found; run 'indexsched index' first")

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	Long: `Show what the index currently holds.

Displays:
- Tracked files and how many of them are sources
- Stored locations
- The most recent run and its change counts`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

// indexStatus is the status command's view of the index.
type indexStatus struct {
	DBPath      string      `json:"db_path"`
	Schema      string      `json:"schema_version"`
	Files       int         `json:"files"`
	SourceFiles int         `json:"source_files"`
	Locations   int         `json:"locations"`
	LastRun     *runSummary `json:"last_run,omitempty"`
}

type runSummary struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Added      int        `json:"added"`
	Updated    int        `json:"updated"`
	Removed    int        `json:"removed"`
	Indexed    int        `json:"indexed"`
	Injected   int        `json:"injected"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := loadProjectConfig(root, viper.GetString("config"))
	if err != nil {
		return err
	}

	status, err := readStatus(cfg.DBFile(root))
	if err != nil {
		return err
	}

	if statusJSON {
		return writeStatusJSON(cmd.OutOrStdout(), status)
	}
	formatStatus(cmd.OutOrStdout(), status)
	return nil
}

// readStatus collects statistics from the index at dbPath.
// It never creates the database.
func readStatus(dbPath string) (*indexStatus, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoIndex
		}
		return nil, fmt.Errorf("failed to stat index: %w", err)
	}

	db, err := storage.OpenReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	status := &indexStatus{DBPath: dbPath}

	if status.Schema, err = storage.GetSchemaVersion(db); err != nil {
		return nil, err
	}
	if status.Schema == "0" {
		return nil, ErrNoIndex
	}
	if status.Files, status.SourceFiles, err = storage.NewFileReader(db).CountFiles(); err != nil {
		return nil, err
	}
	if status.Locations, err = storage.NewIndexReader(db).CountLocations(); err != nil {
		return nil, err
	}

	last, err := storage.NewRunStore(db).LastRun()
	if err != nil {
		return nil, err
	}
	if last != nil {
		summary := &runSummary{
			ID:        last.ID,
			StartedAt: last.StartedAt,
			Added:     last.Added,
			Updated:   last.Updated,
			Removed:   last.Removed,
			Indexed:   last.Indexed,
			Injected:  last.Injected,
		}
		if !last.FinishedAt.IsZero() {
			finished := last.FinishedAt
			summary.FinishedAt = &finished
		}
		status.LastRun = summary
	}

	return status, nil
}

func writeStatusJSON(w io.Writer, status *indexStatus) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

func formatStatus(w io.Writer, status *indexStatus) {
	fmt.Fprintf(w, "Index: %s (schema %s)\n", status.DBPath, status.Schema)
	fmt.Fprintf(w, "  Files:     %s (%s sources)\n", formatNumber(status.Files), formatNumber(status.SourceFiles))
	fmt.Fprintf(w, "  Locations: %s\n", formatNumber(status.Locations))

	run := status.LastRun
	if run == nil {
		fmt.Fprintln(w, "  Last run:  never")
		return
	}

	if run.FinishedAt == nil {
		fmt.Fprintf(w, "  Last run:  started %s, did not finish\n", formatTimeSince(run.StartedAt))
		return
	}
	fmt.Fprintf(w, "  Last run:  %s (took %s)\n",
		formatTimeSince(*run.FinishedAt), formatDuration(run.FinishedAt.Sub(run.StartedAt)))
	fmt.Fprintf(w, "             %d added, %d updated, %d removed, %d indexed, %s locations\n",
		run.Added, run.Updated, run.Removed, run.Indexed, formatNumber(run.Injected))
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// formatTimeSince formats time elapsed since t.
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	since := time.Since(t)
	days := int(since.Hours() / 24)
	hours := int(since.Hours()) % 24
	minutes := int(since.Minutes()) % 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%dd %dh ago", days, hours)
		}
		return fmt.Sprintf("%dd ago", days)
	}
	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm ago", hours, minutes)
		}
		return fmt.Sprintf("%dh ago", hours)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm ago", minutes)
	}
	return fmt.Sprintf("%ds ago", int(since.Seconds()))
}

// formatNumber adds thousands separators.
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if n < 1000 {
		return str
	}

	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
