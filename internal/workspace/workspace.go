// Package workspace gives each worker a private, git-backed scratch
// directory holding one candidate test case. Every accepted reduction is
// committed, so a worker can diff, merge, or roll back against what the
// supervisor currently considers the global smallest without ever
// touching another worker's files.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
)

// TestCaseFileName is the well-known name every workspace stores its
// current candidate under.
const TestCaseFileName = "test_case"

// signature is the commit identity used for every workspace commit.
func signature() *object.Signature {
	return &object.Signature{
		Name:  "preduce",
		Email: "preduce@noreply.github.com",
		When:  time.Now(),
	}
}

// Workspace is a single worker's private git-backed scratch directory.
type Workspace struct {
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

// New creates a fresh workspace under baseDir, in a UUID-named
// subdirectory, seeds it with the contents of the test case at
// seedPath, and commits that as the workspace's initial state.
func New(baseDir, seedPath string) (*Workspace, error) {
	dir := filepath.Join(baseDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace directory %s: %w", dir, err)
	}

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("initializing workspace repo at %s: %w", dir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree at %s: %w", dir, err)
	}

	w := &Workspace{dir: dir, repo: repo, wt: wt}
	if err := w.writeTestCase(seedPath); err != nil {
		return nil, err
	}
	if _, err := w.CommitTestCase("seed"); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workspace) writeTestCase(srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening seed test case %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(w.TestCasePath())
	if err != nil {
		return fmt.Errorf("creating test case at %s: %w", w.TestCasePath(), err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying test case into workspace: %w", err)
	}
	return nil
}

// TestCasePath is the absolute path to this workspace's current
// candidate file.
func (w *Workspace) TestCasePath() string {
	return filepath.Join(w.dir, TestCaseFileName)
}

// Dir is the workspace's root directory.
func (w *Workspace) Dir() string { return w.dir }

// HeadCommit returns the commit object for the workspace's current HEAD.
func (w *Workspace) HeadCommit() (*object.Commit, error) {
	head, err := w.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := w.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("loading HEAD commit: %w", err)
	}
	return commit, nil
}

// HeadTree returns the tree object for the workspace's current HEAD.
func (w *Workspace) HeadTree() (*object.Tree, error) {
	commit, err := w.HeadCommit()
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading HEAD tree: %w", err)
	}
	return tree, nil
}

// CommitTestCase stages the current test case file and commits it,
// returning the new commit's hash. The caller must have already written
// the candidate's bytes to TestCasePath.
func (w *Workspace) CommitTestCase(msg string) (plumbing.Hash, error) {
	if _, err := w.wt.Add(TestCaseFileName); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("staging test case: %w", err)
	}
	sig := signature()
	hash, err := w.wt.Commit(msg, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
		Parents:   headParents(w),
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("committing test case: %w", err)
	}
	return hash, nil
}

func headParents(w *Workspace) []plumbing.Hash {
	head, err := w.repo.Head()
	if err != nil {
		return nil
	}
	return []plumbing.Hash{head.Hash()}
}

// ReplaceTestCase overwrites the workspace's candidate with the bytes at
// srcPath and commits the result under msg, returning the new commit's
// hash. Used by a worker to commit a candidate it has judged
// interesting.
func (w *Workspace) ReplaceTestCase(srcPath, msg string) (plumbing.Hash, error) {
	if err := w.writeTestCase(srcPath); err != nil {
		return plumbing.ZeroHash, err
	}
	return w.CommitTestCase(msg)
}

// MergeBase returns the best common ancestor commit between this
// workspace's HEAD and the given commit, used to three-way merge a
// worker's in-progress reduction with a newly promoted smallest test
// case.
func (w *Workspace) MergeBase(other plumbing.Hash) (*object.Commit, error) {
	head, err := w.HeadCommit()
	if err != nil {
		return nil, err
	}
	otherCommit, err := w.repo.CommitObject(other)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", other, err)
	}
	bases, err := head.MergeBase(otherCommit)
	if err != nil {
		return nil, fmt.Errorf("computing merge base: %w", err)
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("no common ancestor between %s and %s", head.Hash, other)
	}
	return bases[0], nil
}

// Remove deletes the workspace's directory entirely. Called once a
// worker is shut down for good (not merely restarted).
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}
