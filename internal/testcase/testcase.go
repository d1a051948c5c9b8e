// Package testcase defines the candidate-variant value objects that flow
// between reducers, the reduction queue, and workers.
package testcase

import (
	"os"

	"github.com/go-git/go-git/v5/plumbing"
)

// Potential is a candidate variant a reducer has produced, not yet judged
// by a worker. It is consumed by exactly one worker, or discarded by the
// supervisor. Nothing deletes the file at Path in either case.
type Potential struct {
	// Size is the size, in bytes, of the file at Path.
	Size uint64
	// Path is the filesystem location of the candidate's contents.
	Path string
	// Provenance names the reducer that produced this candidate.
	Provenance string
	// Seed is the Interesting this candidate was generated from. The
	// PercentReduced oracle scores the candidate against its size.
	Seed Interesting
}

// Interesting is a candidate variant a worker has judged to pass the
// interestingness predicate.
type Interesting struct {
	// Size is the size, in bytes, of the file at Path.
	Size uint64
	// Path is the filesystem location of the candidate's contents.
	Path string
	// Provenance names the reducer that produced this candidate. The
	// initial, unreduced input has provenance "initial".
	Provenance string
	// Commit identifies the workspace commit this Interesting was
	// produced at, if any (the zero value if this Interesting was not
	// produced inside a version-controlled workspace).
	Commit plumbing.Hash
}

// Equal reports whether two Interesting values refer to the same
// candidate. It is used by the supervisor to detect the stale-seed
// exhaustion race described in the ReplyExhausted handler: a reply
// carries the seed that was current when it was produced, and the
// supervisor compares it against the current smallest by identity, not
// just by size, since two distinct Interesting values may happen to
// share a size.
func (i Interesting) Equal(o Interesting) bool {
	return i.Path == o.Path && i.Size == o.Size && i.Provenance == o.Provenance && i.Commit == o.Commit
}

// FromInitial constructs the Interesting value for the original,
// unreduced input at path, failing if the file cannot be stat'd.
func FromInitial(path string) (Interesting, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Interesting{}, err
	}
	return Interesting{
		Size:       uint64(info.Size()),
		Path:       path,
		Provenance: "initial",
	}, nil
}
