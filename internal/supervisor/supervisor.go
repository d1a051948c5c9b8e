// Package supervisor implements the core scheduler: a single goroutine
// that owns the reduction queue, the worker and reducer registries, and
// the current globally smallest interesting test case, enforcing a
// monotone-decreasing-size invariant while driving the reduction to a
// fixpoint.
//
// Worker and reducer actors and the sigint watcher report to this one
// through its client handle; the supervisor in turn sends commands to
// them and log messages to the logger. State is
// touched exclusively from the supervisor's own goroutine, the same
// discipline the worker and reducer actors follow.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/testreduce/preduce/internal/errs"
	"github.com/testreduce/preduce/internal/ids"
	"github.com/testreduce/preduce/internal/logactor"
	"github.com/testreduce/preduce/internal/oracle"
	"github.com/testreduce/preduce/internal/options"
	"github.com/testreduce/preduce/internal/panics"
	"github.com/testreduce/preduce/internal/queue"
	"github.com/testreduce/preduce/internal/reducer"
	"github.com/testreduce/preduce/internal/reducers"
	"github.com/testreduce/preduce/internal/sigint"
	"github.com/testreduce/preduce/internal/testcase"
	"github.com/testreduce/preduce/internal/worker"
	"github.com/testreduce/preduce/internal/workspace"
)

// Supervisor is the client handle every worker, reducer, and the sigint
// watcher use to report back to the supervisor goroutine. It satisfies
// both worker.Supervisor and reducer.Supervisor.
type Supervisor struct {
	ch chan message
}

type msgKind int

const (
	msgWorkerPanicked msgKind = iota
	msgWorkerErrored
	msgRequestNextReduction
	msgReportInteresting
	msgReducerPanicked
	msgReducerErrored
	msgReplyExhausted
	msgReplyNextReduction
	msgGotSigint
)

type message struct {
	kind msgKind

	workerID ids.WorkerID
	reducer  ids.ReducerID

	err   error
	panic panics.Value

	notInteresting *testcase.Potential
	interesting    testcase.Interesting
	potential      testcase.Potential
	seed           testcase.Interesting
}

func (s *Supervisor) send(m message) { s.ch <- m }

func (s *Supervisor) WorkerPanicked(id ids.WorkerID, p panics.Value) {
	s.send(message{kind: msgWorkerPanicked, workerID: id, panic: p})
}

func (s *Supervisor) WorkerErrored(id ids.WorkerID, err error) {
	s.send(message{kind: msgWorkerErrored, workerID: id, err: err})
}

func (s *Supervisor) RequestNextReduction(id ids.WorkerID, notInteresting *testcase.Potential) {
	s.send(message{kind: msgRequestNextReduction, workerID: id, notInteresting: notInteresting})
}

func (s *Supervisor) ReportInteresting(id ids.WorkerID, i testcase.Interesting) {
	s.send(message{kind: msgReportInteresting, workerID: id, interesting: i})
}

func (s *Supervisor) ReducerPanicked(id ids.ReducerID, p panics.Value) {
	s.send(message{kind: msgReducerPanicked, reducer: id, panic: p})
}

func (s *Supervisor) ReducerErrored(id ids.ReducerID, err error) {
	s.send(message{kind: msgReducerErrored, reducer: id, err: err})
}

func (s *Supervisor) ReplyExhausted(id ids.ReducerID, seed testcase.Interesting) {
	s.send(message{kind: msgReplyExhausted, reducer: id, seed: seed})
}

func (s *Supervisor) ReplyNextReduction(id ids.ReducerID, potential testcase.Potential) {
	s.send(message{kind: msgReplyNextReduction, reducer: id, potential: potential})
}

func (s *Supervisor) gotSigint() { s.send(message{kind: msgGotSigint}) }

// sharedSiblings is the one deliberate exception to the actor-only
// discipline: the merge reducer's SiblingSource is consulted from the
// reducer actor's own goroutine (inside SetSeed), but populated by the
// supervisor goroutine whenever a new smallest is promoted. A mutex
// guards the handful of words involved, which is cheaper and clearer
// than routing it through another message round-trip.
type sharedSiblings struct {
	mu    sync.Mutex
	items []reducers.SiblingWorkspace
}

func (s *sharedSiblings) Siblings() []reducers.SiblingWorkspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reducers.SiblingWorkspace, len(s.items))
	copy(out, s.items)
	return out
}

func (s *sharedSiblings) set(items []reducers.SiblingWorkspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

// runner holds all of the supervisor's mutable state. It is touched
// only from Run's goroutine.
type runner struct {
	opts options.Options
	me   *Supervisor

	log     *logactor.Actor
	logDone <-chan struct{}
	sigint  <-chan struct{}

	workerIDCounter ids.Counter[ids.WorkerID]
	workers         map[ids.WorkerID]*worker.Actor
	idleWorkers     []*worker.Actor

	reducerIDCounter      ids.Counter[ids.ReducerID]
	reducerActors         map[ids.ReducerID]*reducer.Actor
	reducerAlgorithms     map[ids.ReducerID]reducer.Algorithm
	reducersWithoutActors []reducer.Algorithm
	exhaustedReducers     map[ids.ReducerID]struct{}

	queue  *queue.ReductionQueue
	oracle oracle.Oracle

	siblings     *sharedSiblings
	recentMerges []reducers.SiblingWorkspace
	mergeBase    *workspace.Workspace
}

// Run executes one complete reduction of opts.TestCase against its
// configured predicate, reducing the file in place and returning once
// the process has reached a fixpoint, been interrupted, or failed
// fatally.
func Run(opts options.Options) error {
	logFile, err := os.Create(opts.LogPath)
	if err != nil {
		return fmt.Errorf("creating log file %s: %w", opts.LogPath, err)
	}
	defer logFile.Close()

	stdout := io.Writer(os.Stdout)
	if !opts.PrintHistogram {
		stdout = io.Discard
	}

	log, logDone := logactor.Spawn(logFile, stdout)
	me := &Supervisor{ch: make(chan message, 256)}

	r := &runner{
		opts:                opts,
		me:                  me,
		log:                 log,
		logDone:             logDone,
		sigint:              sigint.Watch(),
		workers:             make(map[ids.WorkerID]*worker.Actor, opts.NumWorkers),
		idleWorkers:         make([]*worker.Actor, 0, opts.NumWorkers),
		reducerActors:       make(map[ids.ReducerID]*reducer.Actor, len(opts.Reducers)),
		reducerAlgorithms:   make(map[ids.ReducerID]reducer.Algorithm, len(opts.Reducers)),
		exhaustedReducers:   make(map[ids.ReducerID]struct{}, len(opts.Reducers)),
		queue:               queue.New(len(opts.Reducers)),
		oracle:              oracle.Default(opts.Reducers),
		siblings:            &sharedSiblings{},
	}

	go func() {
		<-r.sigint
		me.gotSigint()
	}()

	if err := r.backupOriginalTestCase(); err != nil {
		return err
	}
	if err := r.buildReducers(); err != nil {
		return err
	}
	r.spawnReducers()

	smallest, err := r.verifyInitiallyInteresting()
	if err != nil {
		return err
	}
	origSize := smallest.Size

	for {
		lastIterSize := smallest.Size

		r.reseedReducers(smallest)
		if err := r.spawnWorkers(); err != nil {
			return err
		}

		shouldContinue, err := r.reductionLoopIteration(&smallest, origSize)
		if err != nil {
			return err
		}

		if !shouldContinue || smallest.Size >= lastIterSize {
			return r.shutdown(smallest, origSize)
		}
	}
}

// buildReducers constructs one Algorithm per configured reducer name,
// populating the initial respawn pool. "merge" is handled specially: it
// needs a dedicated workspace (for git merge-base lookups) and a
// SiblingSource fed by the supervisor, neither of which the plain
// registry can supply.
func (r *runner) buildReducers() error {
	names := make([]string, 0, len(r.opts.Reducers))
	wantsMerge := false
	for _, name := range r.opts.Reducers {
		if name == "merge" {
			wantsMerge = true
			continue
		}
		names = append(names, name)
	}

	baseDir := filepath.Join(r.opts.WorkDir, "reducers")
	algos, err := reducers.Build(names, baseDir)
	if err != nil {
		return err
	}
	r.reducersWithoutActors = algos

	if wantsMerge {
		mergeBaseDir := filepath.Join(r.opts.WorkDir, "merge-base")
		if err := os.MkdirAll(mergeBaseDir, 0o755); err != nil {
			return fmt.Errorf("creating merge base directory: %w", err)
		}
		ws, err := workspace.New(mergeBaseDir, r.opts.TestCase)
		if err != nil {
			return fmt.Errorf("creating merge base workspace: %w", err)
		}
		r.mergeBase = ws

		mergeDir := filepath.Join(r.opts.WorkDir, "reducers", "merge")
		if err := os.MkdirAll(mergeDir, 0o755); err != nil {
			return fmt.Errorf("creating merge reducer directory: %w", err)
		}
		r.reducersWithoutActors = append(r.reducersWithoutActors, reducers.NewMerge(mergeDir, ws, r.siblings))
	}

	return nil
}

// reductionLoopIteration serves supervisor messages until either every
// reducer is exhausted and the queue is empty with no workers left, or
// an interrupt arrives. It returns false if an interrupt was handled
// (the caller should shut down regardless of whether progress was
// made).
func (r *runner) reductionLoopIteration(smallest *testcase.Interesting, origSize uint64) (bool, error) {
	// A reseed that leaves nothing to do (e.g. zero reducers configured)
	// must drain the worker pool before the first message ever arrives;
	// otherwise this range over r.me.ch blocks forever with no sender
	// left to wake it.
	r.drainIdleWorkersIfDone()
	if len(r.workers) == 0 {
		return true, nil
	}

	for m := range r.me.ch {
		switch m.kind {
		case msgWorkerErrored:
			r.log.WorkerErrored(m.workerID, m.err)
			if err := r.restartWorker(m.workerID); err != nil {
				return false, err
			}

		case msgWorkerPanicked:
			r.log.WorkerPanicked(m.workerID, m.panic)
			if err := r.restartWorker(m.workerID); err != nil {
				return false, err
			}

		case msgRequestNextReduction:
			if m.notInteresting != nil {
				r.oracle.ObserveNotInteresting(*m.notInteresting)
				r.log.JudgedNotInteresting(m.workerID, m.notInteresting.Provenance)
			}
			r.enqueueWorkerForReduction(r.workers[m.workerID])

		case msgReportInteresting:
			if err := r.handleNewInteresting(m.workerID, origSize, smallest, m.interesting); err != nil {
				return false, err
			}

		case msgReducerPanicked:
			r.log.ReducerPanicked(m.reducer, m.panic)
			r.retireReducer(m.reducer)

		case msgReducerErrored:
			r.log.ReducerErrored(m.reducer, m.err)
			r.retireReducer(m.reducer)

		case msgReplyExhausted:
			if m.seed.Equal(*smallest) {
				name := r.reducerAlgorithms[m.reducer].Name()
				r.oracle.ObserveExhausted(name)
				r.log.NoMoreReductions(m.reducer)
				r.exhaustedReducers[m.reducer] = struct{}{}
			} else {
				// Stale-seed exhaustion race: a new smallest arrived and
				// reseeded this reducer while its old reply was in
				// flight. It isn't really exhausted; ask again.
				r.reducerActors[m.reducer].RequestNext(nil)
			}

		case msgReplyNextReduction:
			if m.potential.Size < smallest.Size {
				priority := r.oracle.Predict(m.potential)
				r.queue.Insert(m.potential, m.reducer, priority)
				r.drainQueues()
			} else {
				r.reducerActors[m.reducer].NotInteresting(m.potential)
				r.reducerActors[m.reducer].RequestNext(nil)
			}

		case msgGotSigint:
			for _, w := range maps.Values(r.workers) {
				w.Shutdown()
			}
			r.workers = make(map[ids.WorkerID]*worker.Actor)
			r.idleWorkers = nil
			r.queue.Clear()
			return false, nil
		}

		r.drainIdleWorkersIfDone()

		if len(r.workers) == 0 {
			break
		}
	}

	return true, nil
}

// drainIdleWorkersIfDone shuts down every currently-idle worker once
// every reducer is exhausted and the queue has nothing left to offer.
// Safe to call with no messages having arrived yet (the zero-reducers
// boundary) as well as after processing each inbound message.
func (r *runner) drainIdleWorkersIfDone() {
	if len(r.exhaustedReducers) != len(r.reducerActors) || !r.queue.IsEmpty() {
		return
	}
	for _, w := range r.idleWorkers {
		delete(r.workers, w.ID())
		w.Shutdown()
	}
	r.idleWorkers = nil
}

// handleNewInteresting updates the globally smallest interesting test
// case if the reported candidate beats it, or tells the reporting
// worker to move on otherwise.
func (r *runner) handleNewInteresting(who ids.WorkerID, origSize uint64, smallest *testcase.Interesting, interesting testcase.Interesting) error {
	r.log.JudgedInteresting(who, interesting.Size)

	oldSize := smallest.Size
	newSize := interesting.Size

	if newSize < oldSize {
		*smallest = interesting
		if err := copyFile(interesting.Path, r.opts.TestCase); err != nil {
			return &errs.SmallestCopyFailure{Path: r.opts.TestCase, Err: err}
		}

		r.oracle.ObserveSmallestInteresting(*smallest)
		r.log.NewSmallest(smallest.Size, origSize, smallest.Provenance)
		r.rememberSibling(*smallest)

		r.reseedReducers(*smallest)
		if err := r.spawnWorkers(); err != nil {
			return err
		}

		r.queue.Retain(
			func(e queue.Entry) bool { return e.Potential.Size < newSize },
			func(e queue.Entry) {
				if actor, ok := r.reducerActors[e.ReducerID]; ok {
					actor.RequestNext(nil)
				}
			},
		)

		r.enqueueWorkerForReduction(r.workers[who])
	} else {
		r.oracle.ObserveNotSmallestInteresting(interesting)
		r.log.IsNotSmaller(interesting.Provenance)
		r.enqueueWorkerForReduction(r.workers[who])
	}

	return nil
}

// rememberSibling keeps a short rolling history of recently-promoted
// Interesting test cases for the merge reducer's SiblingSource to draw
// on. Older entries are dropped once a handful accumulate; the merge
// reducer only ever needs recent, not exhaustive, history.
func (r *runner) rememberSibling(i testcase.Interesting) {
	const maxHistory = 8
	r.recentMerges = append(r.recentMerges, reducers.SiblingWorkspace{Commit: i.Commit, Path: i.Path})
	if len(r.recentMerges) > maxHistory {
		r.recentMerges = r.recentMerges[len(r.recentMerges)-maxHistory:]
	}
	r.siblings.set(r.recentMerges)
}

// restartWorker replaces a crashed or errored worker with a fresh one.
func (r *runner) restartWorker(id ids.WorkerID) error {
	delete(r.workers, id)
	return r.spawnWorkers()
}

// retireReducer removes a crashed or errored reducer's actor, keeping
// its Algorithm in the respawn pool so the next reseed brings it back
// with a clean Clone.
func (r *runner) retireReducer(id ids.ReducerID) {
	delete(r.reducerActors, id)
	delete(r.exhaustedReducers, id)
	if algo, ok := r.reducerAlgorithms[id]; ok {
		delete(r.reducerAlgorithms, id)
		r.reducersWithoutActors = append(r.reducersWithoutActors, algo.Clone())
	}
}

// enqueueWorkerForReduction marks a worker idle and dispatches as much
// queued work as possible.
func (r *runner) enqueueWorkerForReduction(w *worker.Actor) {
	if w == nil {
		return
	}
	r.idleWorkers = append(r.idleWorkers, w)
	r.drainQueues()
}

// drainQueues pairs idle workers with queued candidates, highest
// priority first, and pipelines each paired reducer's next generation.
func (r *runner) drainQueues() {
	n := len(r.idleWorkers)
	if q := r.queue.Len(); q < n {
		n = q
	}
	if n == 0 {
		return
	}

	workers := append([]*worker.Actor(nil), r.idleWorkers[:n]...)
	entries := r.queue.Drain(n)
	r.idleWorkers = slices.Delete(r.idleWorkers, 0, n)

	for i, e := range entries {
		workers[i].NextReduction(e.Potential)
		if _, exhausted := r.exhaustedReducers[e.ReducerID]; !exhausted {
			if actor, ok := r.reducerActors[e.ReducerID]; ok {
				actor.RequestNext(nil)
			}
		}
	}
}

// backupOriginalTestCase copies the input file to a ".orig" sibling
// before any reduction begins.
func (r *runner) backupOriginalTestCase() error {
	backup := r.opts.TestCase + ".orig"
	r.log.BackingUpTestCase(r.opts.TestCase, backup)
	if err := copyFile(r.opts.TestCase, backup); err != nil {
		return &errs.TestCaseBackupFailure{Path: backup, Err: err}
	}
	return nil
}

// verifyInitiallyInteresting confirms the unreduced input already
// satisfies the predicate; this is the seed every reducer starts from.
func (r *runner) verifyInitiallyInteresting() (testcase.Interesting, error) {
	initial, err := testcase.FromInitial(r.opts.TestCase)
	if err != nil {
		return testcase.Interesting{}, err
	}

	interesting, err := r.opts.Predicate.Check(context.Background(), filepath.Dir(r.opts.TestCase), initial.Path)
	if err != nil {
		return testcase.Interesting{}, err
	}
	if !interesting {
		return testcase.Interesting{}, errs.ErrInitialNotInteresting
	}
	return initial, nil
}

// spawnWorkers tops the worker pool back up to opts.NumWorkers.
func (r *runner) spawnWorkers() error {
	dir := filepath.Join(r.opts.WorkDir, "workers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating worker directory: %w", err)
	}

	for len(r.workers) < r.opts.NumWorkers {
		id := r.workerIDCounter.Next()
		r.log.SpawningWorker(id)

		a, err := worker.Spawn(id, r.me, dir, r.opts.TestCase, r.opts.Predicate)
		if err != nil {
			return &errs.WorkerSpawnFailure{Err: err}
		}
		r.workers[id] = a
		r.idleWorkers = append(r.idleWorkers, a)
		r.log.SpawnedWorker(id)
	}
	return nil
}

// spawnReducers spawns a reducer actor for every Algorithm waiting in
// the respawn pool, marking each exhausted until the next reseed.
func (r *runner) spawnReducers() {
	for _, algo := range r.reducersWithoutActors {
		id := r.reducerIDCounter.Next()
		r.log.SpawningReducer(id)

		r.reducerAlgorithms[id] = algo
		a := reducer.Spawn(id, r.me, algo)
		r.reducerActors[id] = a
		r.exhaustedReducers[id] = struct{}{}

		r.log.SpawnedReducer(id)
	}
	r.reducersWithoutActors = nil
}

// reseedReducers re-spawns any reducers that crashed since the last
// reseed, then seeds every reducer actor with the new smallest
// interesting test case, waking exhausted ones back up.
func (r *runner) reseedReducers(smallest testcase.Interesting) {
	r.spawnReducers()

	for id, actor := range r.reducerActors {
		actor.SetSeed(smallest)

		if _, exhausted := r.exhaustedReducers[id]; exhausted {
			actor.RequestNext(nil)
			delete(r.exhaustedReducers, id)
		}
	}
}

// shutdown performs the ordered teardown: shut down every reducer
// actor, close the logger and wait for its final report, then print the
// reduced test case if it's small and valid UTF-8. The interrupt
// watcher is not stopped; it stays installed after shutdown.
func (r *runner) shutdown(smallest testcase.Interesting, origSize uint64) error {
	if len(r.workers) != 0 {
		return fmt.Errorf("supervisor shutdown invariant violated: %d workers still running", len(r.workers))
	}
	if !r.queue.IsEmpty() {
		return errors.New("supervisor shutdown invariant violated: reduction queue not empty")
	}

	r.log.FinalReducedSize(smallest.Size, origSize)

	for _, a := range maps.Values(r.reducerActors) {
		a.Shutdown()
	}

	r.log.Close()
	<-r.logDone

	const tooBigToPrint = 4096
	if smallest.Size < tooBigToPrint {
		contents, err := os.ReadFile(smallest.Path)
		if err == nil && utf8.Valid(contents) {
			fmt.Println(string(contents))
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
