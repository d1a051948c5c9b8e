package reducers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testreduce/preduce/internal/testcase"
)

func TestByteTruncationShrinksOneByteAtATime(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed")
	require.NoError(t, os.WriteFile(seedPath, []byte("abcd"), 0o644))

	r := NewByteTruncation(dir)
	r.SetSeed(testcase.Interesting{Size: 4, Path: seedPath})

	p1, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, uint64(3), p1.Size)

	p2, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, uint64(2), p2.Size)

	got, err := os.ReadFile(p2.Path)
	require.NoError(t, err)
	require.Equal(t, "ab", string(got))
}

func TestByteTruncationExhaustsAtEmpty(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed")
	require.NoError(t, os.WriteFile(seedPath, []byte("a"), 0o644))

	r := NewByteTruncation(dir)
	r.SetSeed(testcase.Interesting{Size: 1, Path: seedPath})

	p, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, uint64(0), p.Size)

	_, ok = r.Next()
	require.False(t, ok)
}

// TestByteTruncationReseedDoesNotClobberEarlierEpoch guards against a
// filename collision across a SetSeed reseed: truncating down from a
// new, shorter seed restarts the size index from len(content)-1, which
// without a per-epoch path component would reuse the exact path an
// earlier epoch's still-referenced Potential was written to.
func TestByteTruncationReseedDoesNotClobberEarlierEpoch(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed")
	require.NoError(t, os.WriteFile(seedPath, []byte("abcd"), 0o644))

	r := NewByteTruncation(dir)
	r.SetSeed(testcase.Interesting{Size: 4, Path: seedPath})

	// The first epoch's second candidate has size 2, the same size the
	// shorter second epoch proposes first.
	_, ok := r.Next()
	require.True(t, ok)
	first, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, uint64(2), first.Size)
	firstContents, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	require.Equal(t, "ab", string(firstContents))

	require.NoError(t, os.WriteFile(seedPath, []byte("wxy"), 0o644))
	r.SetSeed(testcase.Interesting{Size: 3, Path: seedPath})

	second, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, uint64(2), second.Size)
	require.NotEqual(t, first.Path, second.Path, "second epoch must not reuse the first epoch's path")

	// The first epoch's Potential must still read back its own
	// original content, untouched by the reseed.
	firstContents, err = os.ReadFile(first.Path)
	require.NoError(t, err)
	require.Equal(t, "ab", string(firstContents))
}
