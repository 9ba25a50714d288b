package discovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvp-joe/indexsched/internal/paths"
	"github.com/mvp-joe/indexsched/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TEST PLAN: Walker
//
// 1. Lists files by extension (case-insensitive, dot optional)
// 2. Ignore globs skip files and whole directories
// 3. Missing roots are skipped, single-file roots are accepted
// 4. Overlapping roots do not produce duplicates
// 5. Stat/Exists report on-disk state
// 6. Registry end-to-end over a real directory tree
// 7. Accepts mirrors the listing rules for single paths

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func listedPaths(records []registry.FileRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Path)
	}
	return out
}

func TestWalker_ListFilesByExtension(t *testing.T) {
	t.Parallel()

	root := paths.CanonicalPath(t.TempDir())
	writeFile(t, filepath.Join(root, "a.cpp"), "int a;")
	writeFile(t, filepath.Join(root, "lib", "B.CPP"), "int b;")
	writeFile(t, filepath.Join(root, "lib", "c.h"), "int c;")
	writeFile(t, filepath.Join(root, "README.md"), "# readme")

	w, err := NewWalker(nil)
	require.NoError(t, err)

	got := listedPaths(w.ListFiles([]string{root}, []string{".cpp", "h"}))
	assert.Equal(t, []string{
		filepath.Join(root, "a.cpp"),
		filepath.Join(root, "lib", "B.CPP"),
		filepath.Join(root, "lib", "c.h"),
	}, got)
}

func TestWalker_IgnorePatterns(t *testing.T) {
	t.Parallel()

	root := paths.CanonicalPath(t.TempDir())
	writeFile(t, filepath.Join(root, "main.c"), "")
	writeFile(t, filepath.Join(root, ".git", "hooks", "x.c"), "")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "y.c"), "")
	writeFile(t, filepath.Join(root, "gen", "z_generated.c"), "")
	writeFile(t, filepath.Join(root, "gen", "keep.c"), "")

	w, err := NewWalker([]string{".git/**", "node_modules/**", "**/*_generated.c"})
	require.NoError(t, err)

	got := listedPaths(w.ListFiles([]string{root}, []string{".c"}))
	assert.Equal(t, []string{
		filepath.Join(root, "gen", "keep.c"),
		filepath.Join(root, "main.c"),
	}, got)
}

func TestWalker_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewWalker([]string{"[unterminated"})
	assert.Error(t, err)
}

func TestWalker_MissingAndFileRoots(t *testing.T) {
	t.Parallel()

	root := paths.CanonicalPath(t.TempDir())
	single := filepath.Join(root, "one.c")
	writeFile(t, single, "")

	w, err := NewWalker(nil)
	require.NoError(t, err)

	got := listedPaths(w.ListFiles([]string{filepath.Join(root, "missing"), single}, []string{".c"}))
	assert.Equal(t, []string{single}, got)
}

func TestWalker_OverlappingRootsDeduplicated(t *testing.T) {
	t.Parallel()

	root := paths.CanonicalPath(t.TempDir())
	writeFile(t, filepath.Join(root, "src", "a.c"), "")

	w, err := NewWalker(nil)
	require.NoError(t, err)

	got := w.ListFiles([]string{root, filepath.Join(root, "src"), root + "/"}, []string{".c"})
	assert.Len(t, got, 1)
}

func TestWalker_StatAndExists(t *testing.T) {
	t.Parallel()

	root := paths.CanonicalPath(t.TempDir())
	file := filepath.Join(root, "a.c")
	writeFile(t, file, "")
	mtime := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(file, mtime, mtime))

	w, err := NewWalker(nil)
	require.NoError(t, err)

	rec, err := w.Stat(file)
	require.NoError(t, err)
	assert.True(t, rec.LastModified.Equal(mtime))
	assert.True(t, w.Exists(file))

	_, err = w.Stat(filepath.Join(root, "nope.c"))
	assert.Error(t, err)
	assert.False(t, w.Exists(filepath.Join(root, "nope.c")))
}

func TestRegistry_OverRealFilesystem(t *testing.T) {
	t.Parallel()

	root := paths.CanonicalPath(t.TempDir())
	src := filepath.Join(root, "src")
	a := filepath.Join(src, "a.cpp")
	b := filepath.Join(src, "b.cpp")
	vendored := filepath.Join(src, "vendor", "v.cpp")

	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(time.Hour)
	writeFile(t, a, "a")
	writeFile(t, b, "b")
	writeFile(t, vendored, "v")
	require.NoError(t, os.Chtimes(a, newer, newer))

	w, err := NewWalker(nil)
	require.NoError(t, err)

	reg := registry.New(registry.Config{
		SourcePaths:      []string{src},
		ExcludePaths:     []string{filepath.Join(src, "vendor")},
		SourceExtensions: []string{".cpp"},
	}, w)

	changes := reg.Fetch([]registry.FileRecord{
		{Path: a, LastModified: old},
		{Path: filepath.Join(src, "deleted.cpp"), LastModified: old},
	})

	assert.Equal(t, []string{b}, changes.Added)
	assert.Equal(t, []string{a}, changes.Updated)
	assert.Equal(t, []string{filepath.Join(src, "deleted.cpp")}, changes.Removed)
	assert.False(t, reg.HasSourcePath(vendored))
	assert.Equal(t, []string{a, b}, reg.SourceFiles())
}

func TestWalker_Accepts(t *testing.T) {
	t.Parallel()

	root := "/proj/src"
	w, err := NewWalker([]string{"build/**", "*.gen.c"})
	require.NoError(t, err)

	exts := []string{".c"}
	assert.True(t, w.Accepts([]string{root}, exts, "/proj/src/a.c"))
	assert.True(t, w.Accepts([]string{root}, exts, "/proj/src/lib/deep/b.C"))
	assert.True(t, w.Accepts([]string{"/proj/single.c"}, exts, "/proj/single.c"))

	assert.False(t, w.Accepts([]string{root}, exts, "/proj/src/a.h"), "extension")
	assert.False(t, w.Accepts([]string{root}, exts, "/proj/other/a.c"), "outside roots")
	assert.False(t, w.Accepts([]string{root}, exts, "/proj/src/build/out/a.c"), "ignored directory")
	assert.False(t, w.Accepts([]string{root}, exts, "/proj/src/x.gen.c"), "ignored file")
}
