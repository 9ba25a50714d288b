package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFiles are loaded by LoadEnvFiles, relative to the project root, in order.
var EnvFiles = []string{
	filepath.Join(DirName, ".env"),
	".env",
}

// LoadEnvFiles exports variables from the project's env files so that
// INDEXSCHED_* overrides can live next to the project. Variables already set
// in the environment are never replaced, and the first file to set a
// variable wins. Missing files are ignored.
func LoadEnvFiles(rootDir string) error {
	for _, file := range EnvFiles {
		path := filepath.Join(rootDir, file)
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
