package testcase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromInitial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input")
	require.NoError(t, os.WriteFile(path, []byte("aaaaaaaaaa"), 0o644))

	interesting, err := FromInitial(path)
	require.NoError(t, err)
	require.Equal(t, uint64(10), interesting.Size)
	require.Equal(t, path, interesting.Path)
	require.Equal(t, "initial", interesting.Provenance)
}

func TestFromInitial_MissingFile(t *testing.T) {
	_, err := FromInitial(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestInterestingEqual(t *testing.T) {
	a := Interesting{Size: 5, Path: "/a", Provenance: "p"}
	b := Interesting{Size: 5, Path: "/a", Provenance: "p"}
	c := Interesting{Size: 5, Path: "/b", Provenance: "p"}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
