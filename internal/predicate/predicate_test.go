package predicate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckInterestingOnZeroExit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_case")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := New("true")
	interesting, err := r.Check(context.Background(), dir, path)
	require.NoError(t, err)
	require.True(t, interesting)
}

func TestCheckNotInterestingOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_case")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := New("false")
	interesting, err := r.Check(context.Background(), dir, path)
	require.NoError(t, err)
	require.False(t, interesting)
}

func TestCheckErrorsWhenCommandMissing(t *testing.T) {
	dir := t.TempDir()
	r := New("this-command-does-not-exist-preduce")
	_, err := r.Check(context.Background(), dir, filepath.Join(dir, "test_case"))
	require.Error(t, err)
}
