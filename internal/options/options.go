// Package options declares the supervisor's configuration surface,
// populated by cmd/preduce from flags and environment variables.
package options

import "github.com/testreduce/preduce/internal/predicate"

// Options configures a single supervisor run.
type Options struct {
	// TestCase is the path to the input file that will be reduced in
	// place. A ".orig" backup is written alongside it before any
	// reduction begins.
	TestCase string

	// Reducers is the ordered list of configured reducer names,
	// resolved against internal/reducers' registry. Order matters: it
	// seeds the oracle's static pass-order priority.
	Reducers []string

	// NumWorkers is the number of concurrent worker actors the
	// supervisor keeps alive.
	NumWorkers int

	// Predicate runs the external interestingness test.
	Predicate *predicate.Runner

	// LogPath is where the structured, machine-readable log is
	// written.
	LogPath string

	// PrintHistogram controls whether the final per-reducer histogram
	// is printed to stdout alongside the reduced test case.
	PrintHistogram bool

	// WorkDir is the base directory under which every worker and
	// reducer scratch workspace is created.
	WorkDir string
}
