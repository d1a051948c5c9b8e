// Package predicate runs the external interestingness test against a
// candidate test case file.
package predicate

import (
	"context"
	"errors"
	"os/exec"
)

// Runner invokes a configured command against a test case path, judging
// the candidate interesting if the command exits zero.
type Runner struct {
	command string
	args    []string
}

// New builds a Runner from a command line: the first element is the
// executable, the rest are its fixed arguments. The candidate's path is
// appended as the final argument on every invocation.
func New(command string, args ...string) *Runner {
	return &Runner{command: command, args: args}
}

// Check runs the predicate against the test case at path, from within
// dir (typically the workspace root containing it), and reports
// whether the command exited zero. A non-zero exit is not an error —
// it's the predicate judging the candidate uninteresting; only a
// failure to even start the command is returned as err.
func (r *Runner) Check(ctx context.Context, dir, path string) (interesting bool, err error) {
	cmd := exec.CommandContext(ctx, r.command, append(append([]string{}, r.args...), path)...)
	cmd.Dir = dir

	runErr := cmd.Run()
	if runErr == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return false, nil
	}
	return false, runErr
}
