package reducers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testreduce/preduce/internal/testcase"
	"github.com/testreduce/preduce/internal/workspace"
)

func TestThreeWayMergeAppliesCleanPatch(t *testing.T) {
	base := []byte("line one\nline two\nline three\n")
	theirs := []byte("line one\nline two CHANGED\nline three\n")
	mine := []byte("line one\nline two\nline three\nline four\n")

	merged, ok := threeWayMerge(base, mine, theirs)
	require.True(t, ok)
	require.Contains(t, string(merged), "CHANGED")
	require.Contains(t, string(merged), "line four")
}

type fakeSiblingSource struct {
	siblings []SiblingWorkspace
}

func (f fakeSiblingSource) Siblings() []SiblingWorkspace { return f.siblings }

func TestMergeProducesCandidateAgainstSibling(t *testing.T) {
	baseDir := t.TempDir()
	seedPath := filepath.Join(baseDir, "seed")
	require.NoError(t, os.WriteFile(seedPath, []byte("hello world\n"), 0o644))

	ws, err := workspace.New(baseDir, seedPath)
	require.NoError(t, err)

	siblingPath := filepath.Join(baseDir, "sibling")
	require.NoError(t, os.WriteFile(siblingPath, []byte("hello there\n"), 0o644))

	mergeDir := filepath.Join(baseDir, "merge")
	require.NoError(t, os.MkdirAll(mergeDir, 0o755))

	r := NewMerge(mergeDir, ws, fakeSiblingSource{siblings: []SiblingWorkspace{
		{Path: siblingPath},
	}})

	seedCommit, err := ws.HeadCommit()
	require.NoError(t, err)
	r.SetSeed(testcase.Interesting{Size: 12, Path: seedPath, Commit: seedCommit.Hash})

	p, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, "merge", p.Provenance)

	_, ok = r.Next()
	require.False(t, ok)
}
