package reducers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/testreduce/preduce/internal/reducer"
	"github.com/testreduce/preduce/internal/testcase"
)

// LineDeletion proposes the seed with exactly one line removed, walking
// from the last line to the first.
type LineDeletion struct {
	dir        string
	seed       testcase.Interesting
	lines      [][]byte
	next       int
	generation uint64
}

// NewLineDeletion constructs a LineDeletion reducer that writes its
// candidates under dir.
func NewLineDeletion(dir string) *LineDeletion {
	return &LineDeletion{dir: dir}
}

func (r *LineDeletion) Name() string { return "lines" }

func (r *LineDeletion) SetSeed(seed testcase.Interesting) {
	content, err := os.ReadFile(seed.Path)
	if err != nil {
		content = nil
	}
	r.seed = seed
	r.lines = splitLinesKeepEnds(content)
	r.next = len(r.lines) - 1
	r.generation++
}

// Next writes each candidate under a path namespaced by the current
// seed's generation, not just the skipped line index: unlike
// truncation, deleting line N of one seed and deleting line N of a
// later, differently-reseeded epoch produce unrelated contents, so
// reusing the bare index as the filename would let a later epoch
// silently overwrite an earlier epoch's still-queued or in-flight
// Potential.
func (r *LineDeletion) Next() (testcase.Potential, bool) {
	if r.next < 0 {
		return testcase.Potential{}, false
	}
	skip := r.next
	r.next--

	var buf bytes.Buffer
	for i, line := range r.lines {
		if i == skip {
			continue
		}
		buf.Write(line)
	}

	path := filepath.Join(r.dir, fmt.Sprintf("lines-%d-%d", r.generation, skip))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return testcase.Potential{}, false
	}
	return testcase.Potential{
		Size:       uint64(buf.Len()),
		Path:       path,
		Provenance: r.Name(),
		Seed:       r.seed,
	}, true
}

func (r *LineDeletion) NotInteresting(testcase.Potential) {}

func (r *LineDeletion) Clone() reducer.Algorithm { return NewLineDeletion(r.dir) }

// splitLinesKeepEnds splits content into lines, each retaining its
// trailing newline (if any), so re-joining the kept lines reproduces
// byte-identical output modulo the removed line.
func splitLinesKeepEnds(content []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range content {
		if b == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
