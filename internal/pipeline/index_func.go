package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mvp-joe/indexsched/internal/facts"
)

// IndexFunc indexes one file into acc.
// Whatever it records before returning an error is rolled back by the worker.
type IndexFunc func(ctx context.Context, path string, acc *facts.Accumulator) error

// LocationKindLine is the kind recorded by IndexLines.
const LocationKindLine = "line"

// IndexLines records a file summary and one location per non-blank line.
// Binary files get a summary only.
func IndexLines(ctx context.Context, path string, acc *facts.Accumulator) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	fact := facts.FileFact{FilePath: path, SizeBytes: int64(len(data))}
	if isBinary(data) {
		acc.AddFile(fact)
		return nil
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	fact.LineCount = len(lines)

	locations := make([]facts.Location, 0, len(lines))
	for i, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		locations = append(locations, facts.Location{
			FilePath: path,
			Line:     i + 1,
			Kind:     LocationKindLine,
			Text:     text,
		})
	}

	acc.AddFile(fact)
	for _, loc := range locations {
		acc.AddLocation(loc)
	}
	return nil
}

// isBinary checks the first 512 bytes for a NUL byte.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) >= 0
}
