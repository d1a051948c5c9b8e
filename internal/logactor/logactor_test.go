package logactor

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testreduce/preduce/internal/ids"
)

func TestHistogramOrdersByDescendingSmallestThenTies(t *testing.T) {
	var logBuf, stdoutBuf bytes.Buffer
	a, done := Spawn(&logBuf, &stdoutBuf)

	a.NewSmallest(50, 100, "lines")
	a.NewSmallest(40, 50, "lines")
	a.IsNotSmaller("bytes")
	a.JudgedNotInteresting(ids.WorkerID(1), "bytes")
	a.Close()
	<-done

	out := stdoutBuf.String()
	require.Contains(t, out, "Final size is 40")
	require.Contains(t, out, "lines")
	require.Contains(t, out, "bytes")

	// The progress lines ("(50.00%, 50 bytes)") also contain "bytes", so
	// only the histogram rows after the header are compared.
	hist := stdoutBuf.Bytes()[bytes.Index(stdoutBuf.Bytes(), []byte("Reducer")):]
	linesIdx := bytes.Index(hist, []byte("lines"))
	bytesIdx := bytes.Index(hist, []byte("bytes"))
	require.Less(t, linesIdx, bytesIdx)
}

func TestTruncateProvenanceKeepsLastSegmentAndLast50Chars(t *testing.T) {
	require.Equal(t, "lines", truncateProvenance("merge/lines"))

	long := make([]byte, 60)
	for i := range long {
		long[i] = 'a'
	}
	got := truncateProvenance(string(long))
	require.Len(t, got, 50)
}

func TestWorkerErrorMirrorsToStderr(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	origStderr := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = origStderr }()

	var logBuf, stdoutBuf bytes.Buffer
	a, done := Spawn(&logBuf, &stdoutBuf)

	a.WorkerErrored(ids.WorkerID(3), errTest{})
	a.Close()
	<-done

	os.Stderr = origStderr
	require.NoError(t, w.Close())
	stderr, err := io.ReadAll(r)
	require.NoError(t, err)

	require.Contains(t, string(stderr), "Worker worker-3: error")
}

func TestDiscardConsumesWithoutPanicking(t *testing.T) {
	a := Discard()
	a.SpawningWorker(ids.WorkerID(1))
	a.Close()
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
