package reducers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testreduce/preduce/internal/testcase"
)

func TestLineDeletionRemovesOneLinePerCall(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed")
	require.NoError(t, os.WriteFile(seedPath, []byte("one\ntwo\nthree\n"), 0o644))

	r := NewLineDeletion(dir)
	r.SetSeed(testcase.Interesting{Size: 14, Path: seedPath})

	p, ok := r.Next()
	require.True(t, ok)
	got, err := os.ReadFile(p.Path)
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", string(got))

	p, ok = r.Next()
	require.True(t, ok)
	got, err = os.ReadFile(p.Path)
	require.NoError(t, err)
	require.Equal(t, "one\nthree\n", string(got))

	p, ok = r.Next()
	require.True(t, ok)
	got, err = os.ReadFile(p.Path)
	require.NoError(t, err)
	require.Equal(t, "two\nthree\n", string(got))

	_, ok = r.Next()
	require.False(t, ok)
}

// TestLineDeletionReseedDoesNotClobberEarlierEpoch guards against a
// filename collision across a SetSeed reseed: unlike byte truncation,
// deleting line N of one seed and deleting line N of a later,
// differently-reseeded epoch produce unrelated contents, so the two
// epochs must never land on the same path.
func TestLineDeletionReseedDoesNotClobberEarlierEpoch(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed")
	require.NoError(t, os.WriteFile(seedPath, []byte("L0\nL1\nL2\nL3\nL4\n"), 0o644))

	r := NewLineDeletion(dir)
	r.SetSeed(testcase.Interesting{Size: 15, Path: seedPath})

	// First call deletes L4 (skip index 4); second deletes L3 (skip
	// index 3), matching the reviewer's worked example.
	_, ok := r.Next()
	require.True(t, ok)
	stale, ok := r.Next()
	require.True(t, ok)
	staleContents, err := os.ReadFile(stale.Path)
	require.NoError(t, err)
	require.Equal(t, "L0\nL1\nL2\nL4\n", string(staleContents))

	// A different candidate is promoted first: reseed to a shorter
	// input that also has (at least) a skip index 3.
	require.NoError(t, os.WriteFile(seedPath, []byte("L0\nL1\nL2\nL3\n"), 0o644))
	r.SetSeed(testcase.Interesting{Size: 12, Path: seedPath})

	fresh, ok := r.Next()
	require.True(t, ok)
	require.NotEqual(t, stale.Path, fresh.Path, "new epoch must not reuse the earlier epoch's path")

	// The earlier epoch's still-referenced Potential must read back
	// unchanged.
	staleContents, err = os.ReadFile(stale.Path)
	require.NoError(t, err)
	require.Equal(t, "L0\nL1\nL2\nL4\n", string(staleContents))
}
