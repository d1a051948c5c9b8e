// Package errs declares the error kinds the supervisor converts into
// process-level failures. Every other actor failure is absorbed by the
// supervisor (logged and recovered from); these are the ones that abort
// the run.
package errs

import (
	"fmt"
)

// InitialNotInteresting is returned when the unreduced input does not
// satisfy the interestingness predicate.
type InitialNotInteresting struct{}

func (InitialNotInteresting) Error() string {
	return "initial test case is not interesting"
}

// TestCaseBackupFailure wraps the error encountered while copying the
// original input to its ".orig" backup path.
type TestCaseBackupFailure struct {
	Path string
	Err  error
}

func (e *TestCaseBackupFailure) Error() string {
	return fmt.Sprintf("backing up test case %s: %v", e.Path, e.Err)
}

func (e *TestCaseBackupFailure) Unwrap() error { return e.Err }

// WorkerSpawnFailure wraps the error encountered while topping up the
// worker pool. It is fatal to the current reduction loop iteration.
type WorkerSpawnFailure struct {
	Err error
}

func (e *WorkerSpawnFailure) Error() string {
	return fmt.Sprintf("spawning worker: %v", e.Err)
}

func (e *WorkerSpawnFailure) Unwrap() error { return e.Err }

// SmallestCopyFailure wraps an I/O error that occurred while persisting a
// new smallest interesting test case over the original input path. The
// prior smallest is still safe at the ".orig" backup.
type SmallestCopyFailure struct {
	Path string
	Err  error
}

func (e *SmallestCopyFailure) Error() string {
	return fmt.Sprintf("copying new smallest to %s: %v", e.Path, e.Err)
}

func (e *SmallestCopyFailure) Unwrap() error { return e.Err }

// ErrInitialNotInteresting is a comparable sentinel, usable with
// errors.Is(err, errs.ErrInitialNotInteresting).
var ErrInitialNotInteresting = InitialNotInteresting{}
