package reducers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildResolvesConfiguredReducers(t *testing.T) {
	algos, err := Build([]string{"lines", "bytes"}, t.TempDir())
	require.NoError(t, err)
	require.Len(t, algos, 2)
	require.Equal(t, "lines", algos[0].Name())
	require.Equal(t, "bytes", algos[1].Name())
}

func TestBuildRejectsUnknownReducer(t *testing.T) {
	_, err := Build([]string{"nonexistent"}, t.TempDir())
	require.Error(t, err)
}
