package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/mvp-joe/indexsched/internal/paths"
	"github.com/mvp-joe/indexsched/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrNotIndexed is returned by show for files without stored facts.
var ErrNotIndexed = errors.New("file is not indexed")

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Print what the index holds for a file",
	Long: `Show prints the stored summary of FILE followed by its locations.

Relative paths are resolved against the project root.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 20, "Maximum locations to print (0 for all)")
}

func runShow(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := loadProjectConfig(root, viper.GetString("config"))
	if err != nil {
		return err
	}

	target := args[0]
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	return showFile(cmd.OutOrStdout(), cfg.DBFile(root), paths.CanonicalPath(target), showLimit)
}

// showFile prints the stored facts for path from the index at dbPath.
func showFile(w io.Writer, dbPath, path string, limit int) error {
	if _, err := readStatus(dbPath); err != nil {
		return err
	}

	db, err := storage.OpenReadOnly(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	reader := storage.NewIndexReader(db)
	fact, err := reader.GetFileFact(path)
	if err != nil {
		return err
	}
	if fact == nil {
		return fmt.Errorf("%s: %w", path, ErrNotIndexed)
	}

	locations, err := reader.LocationsForFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", fact.FilePath)
	fmt.Fprintf(w, "  Size:      %s bytes\n", formatNumber(int(fact.SizeBytes)))
	fmt.Fprintf(w, "  Lines:     %s\n", formatNumber(fact.LineCount))
	fmt.Fprintf(w, "  Locations: %s\n", formatNumber(len(locations)))

	shown := locations
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, loc := range shown {
		fmt.Fprintf(w, "  %5d  %-6s %s\n", loc.Line, loc.Kind, loc.Text)
	}
	if len(shown) < len(locations) {
		fmt.Fprintf(w, "  ... %d more\n", len(locations)-len(shown))
	}
	return nil
}
