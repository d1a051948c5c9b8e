package reducers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/testreduce/preduce/internal/reducer"
	"github.com/testreduce/preduce/internal/testcase"
	"github.com/testreduce/preduce/internal/workspace"
)

// SiblingWorkspace is the narrow view the merge reducer needs of
// another worker's scratch workspace: its current committed test case
// and the path to read it from.
type SiblingWorkspace struct {
	Commit plumbing.Hash
	Path   string
}

// SiblingSource supplies the merge reducer with the set of committed
// test cases it may try to merge against.
type SiblingSource interface {
	// Siblings returns a snapshot of the committed test cases to merge
	// against. The merge reducer does not itself identify workers; the
	// caller decides what counts as a sibling.
	Siblings() []SiblingWorkspace
}

// Merge proposes three-way merges of the seed's content against the
// current committed content of every other worker's workspace, on the
// theory that two independently-reduced variants can sometimes combine
// into something smaller than either alone.
type Merge struct {
	dir     string
	source  SiblingSource
	base    *workspace.Workspace
	seed    testcase.Interesting
	pending []SiblingWorkspace
}

// NewMerge constructs a Merge reducer. base is this worker's own
// workspace (used to resolve merge bases via git); source enumerates
// the sibling workspaces to merge against.
func NewMerge(dir string, base *workspace.Workspace, source SiblingSource) *Merge {
	return &Merge{dir: dir, base: base, source: source}
}

func (r *Merge) Name() string { return "merge" }

func (r *Merge) SetSeed(seed testcase.Interesting) {
	r.seed = seed
	r.pending = r.source.Siblings()
}

func (r *Merge) Next() (testcase.Potential, bool) {
	for len(r.pending) > 0 {
		sib := r.pending[0]
		r.pending = r.pending[1:]

		if sib.Commit == r.seed.Commit {
			continue
		}

		merged, ok := r.attemptMerge(sib)
		if !ok {
			continue
		}
		return merged, true
	}
	return testcase.Potential{}, false
}

func (r *Merge) attemptMerge(sib SiblingWorkspace) (testcase.Potential, bool) {
	mine, err := os.ReadFile(r.seed.Path)
	if err != nil {
		return testcase.Potential{}, false
	}
	theirs, err := os.ReadFile(sib.Path)
	if err != nil {
		return testcase.Potential{}, false
	}

	baseCommit, err := r.base.MergeBase(sib.Commit)
	var baseContent []byte
	if err == nil {
		if tree, terr := baseCommit.Tree(); terr == nil {
			if f, ferr := tree.File(workspace.TestCaseFileName); ferr == nil {
				if contents, cerr := f.Contents(); cerr == nil {
					baseContent = []byte(contents)
				}
			}
		}
	}
	if baseContent == nil {
		// No common ancestor content could be resolved; fall back to
		// patching directly against our own content.
		baseContent = mine
	}

	merged, ok := threeWayMerge(baseContent, mine, theirs)
	if !ok {
		return testcase.Potential{}, false
	}

	path := filepath.Join(r.dir, fmt.Sprintf("merge-%s", sib.Commit.String()[:8]))
	if err := os.WriteFile(path, merged, 0o644); err != nil {
		return testcase.Potential{}, false
	}

	return testcase.Potential{
		Size:       uint64(len(merged)),
		Path:       path,
		Provenance: r.Name(),
		Seed:       r.seed,
	}, true
}

// threeWayMerge patches the diff from base to theirs onto mine, using
// diffmatchpatch's fuzzy patch application. It reports false if the
// patch could not be applied cleanly.
func threeWayMerge(base, mine, theirs []byte) ([]byte, bool) {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(string(base), string(theirs), false)
	patches := dmp.PatchMake(string(base), diffs)

	merged, applied := dmp.PatchApply(patches, string(mine))
	for _, ok := range applied {
		if !ok {
			return nil, false
		}
	}
	return []byte(merged), true
}

func (r *Merge) NotInteresting(testcase.Potential) {}

func (r *Merge) Clone() reducer.Algorithm { return NewMerge(r.dir, r.base, r.source) }
