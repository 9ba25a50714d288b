package discovery

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/mvp-joe/indexsched/internal/paths"
	"github.com/mvp-joe/indexsched/internal/registry"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Walker lists candidate files under a set of roots.
// Ignore patterns are matched against the slash-separated path relative to the
// root being walked; a directory matching "<dir>/**" is skipped entirely.
type Walker struct {
	ignorePatterns []compiledPattern
}

var _ registry.Walker = (*Walker)(nil)

// NewWalker creates a Walker with the given ignore globs.
func NewWalker(ignorePatterns []string) (*Walker, error) {
	w := &Walker{}
	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		w.ignorePatterns = append(w.ignorePatterns, compiledPattern{pattern: pattern, glob: g})
	}
	return w, nil
}

// ListFiles walks every root and returns files with a matching extension, sorted by path.
// Roots are canonicalized first so results compare equal to canonical
// exclude and header roots. Missing roots and unreadable entries are skipped.
func (w *Walker) ListFiles(roots []string, extensions []string) []registry.FileRecord {
	extSet := normalizeExtensions(extensions)
	seen := make(map[string]struct{})
	var out []registry.FileRecord

	for _, root := range paths.Canonicalize(roots) {
		info, err := os.Stat(root)
		if err != nil {
			log.Printf("Warning: skipping source root %s: %v\n", root, err)
			continue
		}

		if !info.IsDir() {
			// A single file given as a root
			if matchesExtension(root, extSet) {
				if _, dup := seen[root]; !dup {
					seen[root] = struct{}{}
					out = append(out, registry.FileRecord{Path: root, LastModified: info.ModTime()})
				}
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Vanished or unreadable; report what we can
				log.Printf("Warning: skipping %s: %v\n", path, err)
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}

			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			relPath = filepath.ToSlash(relPath)

			if d.IsDir() {
				if relPath != "." && w.shouldIgnore(relPath) {
					return filepath.SkipDir
				}
				return nil
			}

			if w.shouldIgnore(relPath) || !matchesExtension(path, extSet) {
				return nil
			}

			fileInfo, err := d.Info()
			if err != nil {
				return nil
			}
			if !fileInfo.Mode().IsRegular() && fileInfo.Mode()&fs.ModeSymlink == 0 {
				return nil
			}

			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}

			rec, err := w.Stat(path)
			if err != nil {
				return nil
			}
			out = append(out, rec)
			return nil
		})
		if err != nil {
			log.Printf("Warning: walk of %s stopped early: %v\n", root, err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Stat returns the current modification time of path, following symlinks.
func (w *Walker) Stat(path string) (registry.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return registry.FileRecord{}, err
	}
	return registry.FileRecord{Path: path, LastModified: info.ModTime()}, nil
}

// Exists reports whether path is present on disk.
func (w *Walker) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Accepts reports whether ListFiles would consider path, given the same roots
// and extensions. The file does not need to exist.
func (w *Walker) Accepts(roots []string, extensions []string, path string) bool {
	if !matchesExtension(path, normalizeExtensions(extensions)) {
		return false
	}

	for _, root := range roots {
		if root == path {
			return true
		}
		if !paths.Contains(root, path) {
			continue
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if !w.shouldIgnoreTree(filepath.ToSlash(relPath)) {
			return true
		}
	}
	return false
}

// shouldIgnoreTree checks relPath and each of its parent directories.
func (w *Walker) shouldIgnoreTree(relPath string) bool {
	for p := relPath; p != "." && p != ""; p = pathDir(p) {
		if w.shouldIgnore(p) {
			return true
		}
	}
	return false
}

func pathDir(relPath string) string {
	i := strings.LastIndex(relPath, "/")
	if i < 0 {
		return ""
	}
	return relPath[:i]
}

// shouldIgnore checks if a relative path matches any ignore pattern.
func (w *Walker) shouldIgnore(relPath string) bool {
	if matchesAnyPattern(relPath, w.ignorePatterns) {
		return true
	}

	// "node_modules" should match pattern "node_modules/**"
	return matchesAnyPattern(relPath+"/**", w.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
// Paths in the root (no slash) also match patterns written with a leading "**/".
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(path) {
						return true
					}
				}
			}
		}
	}

	return false
}

// normalizeExtensions lower-cases extensions and adds a missing leading dot.
func normalizeExtensions(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

func matchesExtension(path string, extSet map[string]struct{}) bool {
	_, ok := extSet[strings.ToLower(filepath.Ext(path))]
	return ok
}
