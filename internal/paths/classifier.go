package paths

import (
	"path/filepath"
	"strings"
)

// Classifier answers exclusion and header questions against a fixed set of
// canonical roots. The zero value excludes nothing and tracks nothing.
type Classifier struct {
	headerRoots  []string
	excludeRoots []string
}

// NewClassifier canonicalizes the given roots once and returns a Classifier.
func NewClassifier(headerRoots, excludeRoots []string) Classifier {
	return Classifier{
		headerRoots:  Canonicalize(headerRoots),
		excludeRoots: Canonicalize(excludeRoots),
	}
}

// HeaderRoots returns the canonical header roots.
func (c Classifier) HeaderRoots() []string {
	return append([]string(nil), c.headerRoots...)
}

// ExcludeRoots returns the canonical exclude roots.
func (c Classifier) ExcludeRoots() []string {
	return append([]string(nil), c.excludeRoots...)
}

// IsExcluded reports whether path is one of the exclude roots or lies below one.
func (c Classifier) IsExcluded(path string) bool {
	return IsExcluded(path, c.excludeRoots)
}

// IsTrackedHeader reports whether path is a non-excluded header/dependency path.
func (c Classifier) IsTrackedHeader(path string) bool {
	return IsTrackedHeader(path, c.headerRoots, c.excludeRoots)
}

// Canonicalize returns the canonical form of every path, preserving order.
func Canonicalize(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		out = append(out, CanonicalPath(p))
	}
	return out
}

// CanonicalPath makes p absolute and clean, resolving symlinks when p exists.
// Paths that do not exist yet keep their cleaned absolute form so they can
// still be compared against later. Canonicalizing a canonical path is a no-op.
func CanonicalPath(p string) string {
	if p == "" {
		return ""
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// IsExcluded reports whether path equals some root or has a root as a proper
// ancestor directory.
func IsExcluded(path string, excludeRoots []string) bool {
	for _, root := range excludeRoots {
		if matchesRoot(root, path) {
			return true
		}
	}
	return false
}

// IsTrackedHeader reports whether path is not excluded and equals or descends
// from some header root.
func IsTrackedHeader(path string, headerRoots, excludeRoots []string) bool {
	if IsExcluded(path, excludeRoots) {
		return false
	}
	for _, root := range headerRoots {
		if matchesRoot(root, path) {
			return true
		}
	}
	return false
}

// Contains reports whether root is a proper ancestor directory of path.
// Matching happens on separator boundaries, so "/src" does not contain "/src2/a.c".
func Contains(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if root == path {
		return false
	}

	sep := string(filepath.Separator)
	if strings.HasSuffix(root, sep) {
		// Filesystem root ("/" or a volume root like `C:\`)
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+sep)
}

func matchesRoot(root, path string) bool {
	return filepath.Clean(root) == filepath.Clean(path) || Contains(root, path)
}
