// Package reducers provides concrete reducer.Algorithm implementations:
// byte-truncation, line-deletion, and a merge reducer that three-way
// merges the seed with other committed candidates.
package reducers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/testreduce/preduce/internal/reducer"
	"github.com/testreduce/preduce/internal/testcase"
)

// ByteTruncation proposes successively shorter prefixes of the seed's
// contents, one byte shorter each call, down to an empty file.
type ByteTruncation struct {
	dir        string
	seed       testcase.Interesting
	content    []byte
	next       int
	generation uint64
}

// NewByteTruncation constructs a ByteTruncation reducer that writes its
// candidates under dir.
func NewByteTruncation(dir string) *ByteTruncation {
	return &ByteTruncation{dir: dir}
}

func (r *ByteTruncation) Name() string { return "bytes" }

func (r *ByteTruncation) SetSeed(seed testcase.Interesting) {
	content, err := os.ReadFile(seed.Path)
	if err != nil {
		content = nil
	}
	r.seed = seed
	r.content = content
	r.next = len(content) - 1
	r.generation++
}

// Next writes each candidate under a path namespaced by the current
// seed's generation, not just its content-index: two successive seeds
// can both propose a "size N" candidate (truncation restarts from
// len(content)-1 on every SetSeed), and without the generation
// component a later epoch's write would silently overwrite an earlier
// epoch's file out from under a Potential still queued or in flight to
// a worker.
func (r *ByteTruncation) Next() (testcase.Potential, bool) {
	if r.next < 0 {
		return testcase.Potential{}, false
	}
	size := r.next
	r.next--

	path := filepath.Join(r.dir, fmt.Sprintf("bytes-%d-%d", r.generation, size))
	if err := os.WriteFile(path, r.content[:size], 0o644); err != nil {
		return testcase.Potential{}, false
	}
	return testcase.Potential{
		Size:       uint64(size),
		Path:       path,
		Provenance: r.Name(),
		Seed:       r.seed,
	}, true
}

func (r *ByteTruncation) NotInteresting(testcase.Potential) {}

func (r *ByteTruncation) Clone() reducer.Algorithm { return NewByteTruncation(r.dir) }
