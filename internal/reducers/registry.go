package reducers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/testreduce/preduce/internal/reducer"
)

// Factory builds a fresh Algorithm instance writing its candidates
// under the given scratch directory.
type Factory func(dir string) reducer.Algorithm

// Registry maps configured reducer names to factories. The merge
// reducer is deliberately absent here: it needs a SiblingSource and a
// base workspace that only the supervisor can supply, so it is wired up
// separately by the caller that owns those.
var Registry = map[string]Factory{
	"bytes": func(dir string) reducer.Algorithm { return NewByteTruncation(dir) },
	"lines": func(dir string) reducer.Algorithm { return NewLineDeletion(dir) },
}

// Build resolves a configured, ordered list of reducer names into
// Algorithm instances, each writing its candidates under its own
// subdirectory of baseDir.
func Build(names []string, baseDir string) ([]reducer.Algorithm, error) {
	algos := make([]reducer.Algorithm, 0, len(names))
	for _, name := range names {
		factory, ok := Registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown reducer %q", name)
		}
		dir := filepath.Join(baseDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating reducer directory %s: %w", dir, err)
		}
		algos = append(algos, factory(dir))
	}
	return algos, nil
}
