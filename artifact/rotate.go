package artifact

import (
	"os"

	bferrors "github.com/randalmurphal/backupflow/errors"
)

// Outcome is the result of deleting one old artifact.
// A nil Err means the file is gone.
type Outcome struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Deleted reports whether the file was removed.
func (o Outcome) Deleted() bool {
	return o.Err == nil
}

// RotationReport summarizes one rotation of one set.
type RotationReport struct {
	Dir      string    `json:"dir"`
	Pattern  string    `json:"pattern"`
	Keep     int       `json:"keep"`
	Found    int       `json:"found"`
	Kept     []string  `json:"kept"`
	Outcomes []Outcome `json:"outcomes"`

	// ListErr is set when the directory could not be read; nothing was deleted.
	ListErr error `json:"-"`
}

// Deleted returns the paths that were removed.
func (r *RotationReport) Deleted() []string {
	var paths []string
	for _, o := range r.Outcomes {
		if o.Deleted() {
			paths = append(paths, o.Path)
		}
	}
	return paths
}

// Failures returns the outcomes whose deletion failed.
func (r *RotationReport) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Deleted() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Rotator enforces a retention count on artifact sets.
type Rotator struct {
	keep   int
	sortBy SortKey
	remove func(string) error
}

// RotatorOption configures a Rotator.
type RotatorOption func(*Rotator)

// WithSortKey sets how recency is decided. Default is SortByDate.
func WithSortKey(key SortKey) RotatorOption {
	return func(r *Rotator) {
		if key != "" {
			r.sortBy = key
		}
	}
}

// WithRemoveFunc replaces os.Remove, mainly to inject failures in tests.
// A nil fn keeps os.Remove.
func WithRemoveFunc(fn func(string) error) RotatorOption {
	return func(r *Rotator) {
		if fn != nil {
			r.remove = fn
		}
	}
}

// NewRotator creates a Rotator that keeps the newest keep artifacts.
// Negative counts are treated as zero.
func NewRotator(keep int, opts ...RotatorOption) *Rotator {
	if keep < 0 {
		keep = 0
	}
	r := &Rotator{
		keep:   keep,
		sortBy: SortByDate,
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Keep returns the retention count.
func (r *Rotator) Keep() int {
	return r.keep
}

// Rotate deletes every artifact of set in dir beyond the newest Keep().
// Each deletion is independent: a failure is recorded and the next file is
// still attempted. Rotate itself never fails; problems are in the report.
func (r *Rotator) Rotate(dir string, set Name) *RotationReport {
	report := &RotationReport{
		Dir:      dir,
		Pattern:  set.Pattern(),
		Keep:     r.keep,
		Kept:     make([]string, 0),
		Outcomes: make([]Outcome, 0),
	}

	entries, err := List(dir, set, r.sortBy)
	if err != nil {
		report.ListErr = err
		return report
	}
	report.Found = len(entries)

	for i, e := range entries {
		if i < r.keep {
			report.Kept = append(report.Kept, e.Path)
			continue
		}
		outcome := Outcome{Path: e.Path}
		if err := r.remove(e.Path); err != nil && !os.IsNotExist(err) {
			outcome.Err = &bferrors.DeletionError{Path: e.Path, Err: err}
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}
