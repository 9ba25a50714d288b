package pipeline

// ProgressReporter provides callbacks for reporting pipeline progress.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnFetchStart is called before the registry compares the snapshot to disk.
	OnFetchStart()

	// OnFetchComplete is called with the sizes of the change sets.
	OnFetchComplete(added, updated, removed int)

	// OnIndexingStart is called before workers are dispatched.
	OnIndexingStart(totalFiles int)

	// OnFileIndexed is called after each file. Called from worker goroutines.
	OnFileIndexed(path string)

	// OnInjected is called by the injector after each accumulator is written.
	OnInjected(locations int)

	// OnComplete is called when a run finishes successfully.
	OnComplete(stats *Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnFetchStart()                               {}
func (n *NoOpProgressReporter) OnFetchComplete(added, updated, removed int) {}
func (n *NoOpProgressReporter) OnIndexingStart(totalFiles int)              {}
func (n *NoOpProgressReporter) OnFileIndexed(path string)                   {}
func (n *NoOpProgressReporter) OnInjected(locations int)                    {}
func (n *NoOpProgressReporter) OnComplete(stats *Stats)                     {}
