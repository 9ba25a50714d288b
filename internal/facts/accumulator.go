package facts

// FileFact summarizes one indexed file.
type FileFact struct {
	FilePath  string
	SizeBytes int64
	LineCount int
}

// Location is a single indexed fact pinned to a line of a file.
type Location struct {
	FilePath string
	Line     int
	Kind     string
	Text     string
}

// Accumulator collects partial indexing results for one or more files.
//
// An Accumulator has exactly one owner at a time: a worker filling it, the
// buffer pool, or the injector merging it. It is not safe for concurrent use.
type Accumulator struct {
	files     []FileFact
	locations []Location
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Weight is the number of locations held. Used to order pooled accumulators.
func (a *Accumulator) Weight() int {
	return len(a.locations)
}

// AddFile records a file summary.
func (a *Accumulator) AddFile(f FileFact) {
	a.files = append(a.files, f)
}

// AddLocation records a single location.
func (a *Accumulator) AddLocation(loc Location) {
	a.locations = append(a.locations, loc)
}

// Files returns the recorded file summaries.
func (a *Accumulator) Files() []FileFact {
	return a.files
}

// Locations returns the recorded locations.
func (a *Accumulator) Locations() []Location {
	return a.locations
}

// Merge moves everything from other into a. other is left empty.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil || other == a {
		return
	}
	a.files = append(a.files, other.files...)
	a.locations = append(a.locations, other.locations...)
	other.files = nil
	other.locations = nil
}

// Empty reports whether nothing has been recorded.
func (a *Accumulator) Empty() bool {
	return len(a.files) == 0 && len(a.locations) == 0
}

// Mark is a fill level of an Accumulator.
type Mark struct {
	files     int
	locations int
}

// Mark returns the current fill level.
func (a *Accumulator) Mark() Mark {
	return Mark{files: len(a.files), locations: len(a.locations)}
}

// Rollback drops everything recorded since m was taken.
func (a *Accumulator) Rollback(m Mark) {
	if m.files < len(a.files) {
		a.files = a.files[:m.files]
	}
	if m.locations < len(a.locations) {
		a.locations = a.locations[:m.locations]
	}
}
