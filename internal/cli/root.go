package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvp-joe/indexsched/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootDir string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "indexsched",
	Short: "Incremental indexing scheduler",
	Long: `indexsched keeps a local index of a source tree up to date.

Each run compares the files on disk with the snapshot stored in the index,
re-indexes only what was added or changed, and purges what disappeared.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/.indexsched/config.yml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root (default is the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig lets INDEXSCHED_ROOT and INDEXSCHED_CONFIG stand in for the flags.
func initConfig() {
	viper.SetEnvPrefix("INDEXSCHED")
	viper.AutomaticEnv()
}

// projectRoot returns the absolute project root.
func projectRoot() (string, error) {
	dir := viper.GetString("root")
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

// loadProjectConfig loads the project's env files and configuration,
// honoring an explicit config file.
func loadProjectConfig(root, configFile string) (*config.Config, error) {
	if err := config.LoadEnvFiles(root); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.NewFileLoader(root, configFile).Load()
	} else {
		cfg, err = config.LoadConfigFromDir(root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Project root: %s\n", root)
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
		}
	}
	return cfg, nil
}
