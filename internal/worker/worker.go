// Package worker implements the worker actor: a goroutine that owns a
// scratch workspace and evaluates the interestingness predicate on one
// candidate at a time, reporting outcomes back to the supervisor.
package worker

import (
	"context"

	"github.com/testreduce/preduce/internal/ids"
	"github.com/testreduce/preduce/internal/panics"
	"github.com/testreduce/preduce/internal/predicate"
	"github.com/testreduce/preduce/internal/testcase"
	"github.com/testreduce/preduce/internal/workspace"
)

// Supervisor is the callback surface a worker reports back through. The
// supervisor implements it; workers never see anything else of the
// supervisor's state.
type Supervisor interface {
	WorkerPanicked(id ids.WorkerID, p panics.Value)
	WorkerErrored(id ids.WorkerID, err error)
	RequestNextReduction(id ids.WorkerID, notInteresting *testcase.Potential)
	ReportInteresting(id ids.WorkerID, i testcase.Interesting)
}

// job is what the supervisor sends a worker to evaluate.
type job struct {
	potential *testcase.Potential // nil means Shutdown
}

// Actor is a worker's client handle.
type Actor struct {
	id ids.WorkerID
	ch chan job
}

// ID returns the worker's identity.
func (a *Actor) ID() ids.WorkerID { return a.id }

// NextReduction asks the worker to evaluate a candidate.
func (a *Actor) NextReduction(p testcase.Potential) { a.ch <- job{potential: &p} }

// Shutdown asks the worker to terminate after any in-flight evaluation.
func (a *Actor) Shutdown() { close(a.ch) }

// Spawn starts a worker goroutine with its own workspace, seeded from
// seedPath, reporting through sup.
func Spawn(id ids.WorkerID, sup Supervisor, baseDir, seedPath string, run *predicate.Runner) (*Actor, error) {
	ws, err := workspace.New(baseDir, seedPath)
	if err != nil {
		return nil, err
	}

	a := &Actor{id: id, ch: make(chan job, 1)}
	go a.loop(sup, ws, run)
	return a, nil
}

func (a *Actor) loop(sup Supervisor, ws *workspace.Workspace, run *predicate.Runner) {
	defer ws.Remove()

	for j := range a.ch {
		if j.potential == nil {
			return
		}
		if a.evaluate(sup, ws, run, *j.potential) {
			// Both a panic and an internal error unwind this worker's
			// thread of execution, same as a real Rust worker thread
			// crashing or returning an Err out of its run loop; the
			// supervisor has already been told and will spawn a
			// replacement.
			return
		}
	}
}

// evaluate returns true if the worker's thread of execution should end:
// either the evaluation panicked, or it hit an internal error running
// the predicate (as opposed to the predicate judging the candidate not
// interesting, which is a normal outcome the worker keeps running
// after).
func (a *Actor) evaluate(sup Supervisor, ws *workspace.Workspace, run *predicate.Runner, p testcase.Potential) bool {
	var fatal bool
	v, panicked := panics.Capture(func() {
		interesting, err := run.Check(context.Background(), ws.Dir(), p.Path)
		if err != nil {
			sup.WorkerErrored(a.id, err)
			fatal = true
			return
		}
		if !interesting {
			sup.RequestNextReduction(a.id, &p)
			return
		}

		commit, err := ws.ReplaceTestCase(p.Path, "interesting: "+p.Provenance)
		if err != nil {
			sup.WorkerErrored(a.id, err)
			fatal = true
			return
		}

		sup.ReportInteresting(a.id, testcase.Interesting{
			Size:       p.Size,
			Path:       p.Path,
			Provenance: p.Provenance,
			Commit:     commit,
		})
	})
	if panicked {
		sup.WorkerPanicked(a.id, v)
		return true
	}
	return fatal
}
