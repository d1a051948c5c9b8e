// Package logactor implements the logging actor: a single goroutine that
// owns the run's log writer and an in-memory per-provenance histogram,
// consuming a channel of messages sent by every other actor. Nothing
// else in the process writes to the log file, and the only other stdout
// write is the supervisor's final print of the reduced test case.
package logactor

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"

	"github.com/testreduce/preduce/internal/ids"
	"github.com/testreduce/preduce/internal/panics"
)

// Actor is the logger's client handle: every other actor holds one and
// calls its methods to enqueue a message, never touching the consumer
// goroutine's state directly.
type Actor struct {
	ch chan message
}

// Spawn starts the logger goroutine, writing structured logs to w and
// mirroring a human-readable progress stream plus final histogram to
// stdout. The returned done channel is closed once the goroutine has
// drained its channel and printed the final report, which happens after
// Close is called.
func Spawn(w io.Writer, stdout io.Writer) (*Actor, <-chan struct{}) {
	a := &Actor{ch: make(chan message, 64)}
	done := make(chan struct{})

	logger := izerolog.L.New(
		izerolog.L.WithZerolog(zerolog.New(w).With().Timestamp().Logger()),
		izerolog.L.WithLevel(izerolog.L.LevelTrace()),
	)

	go func() {
		defer close(done)
		run(logger, stdout, a.ch)
	}()

	return a, done
}

// Close signals the logger goroutine to drain its remaining messages,
// print the final report, and exit. It must be called exactly once,
// after every other actor has stopped sending.
func (a *Actor) Close() { close(a.ch) }

type message struct {
	kind       kind
	workerID   ids.WorkerID
	reducerID  ids.ReducerID
	err        error
	panic      panics.Value
	provenance string
	from, to   string
	size       uint64
	origSize   uint64
	mergedSize uint64
}

type kind int

const (
	spawningWorker kind = iota
	spawnedWorker
	spawningReducer
	spawnedReducer
	shutdownWorker
	shutdownReducer
	workerPanicked
	workerErrored
	reducerPanicked
	reducerErrored
	backingUpTestCase
	startJudgingInteresting
	judgedInteresting
	judgedNotInteresting
	newSmallest
	isNotSmaller
	startGeneratingNextReduction
	finishGeneratingNextReduction
	noMoreReductions
	finalReducedSize
	tryMerge
	finishedMerging
)

func (a *Actor) send(m message) {
	a.ch <- m
}

func (a *Actor) SpawningWorker(id ids.WorkerID)  { a.send(message{kind: spawningWorker, workerID: id}) }
func (a *Actor) SpawnedWorker(id ids.WorkerID)   { a.send(message{kind: spawnedWorker, workerID: id}) }
func (a *Actor) SpawningReducer(id ids.ReducerID) {
	a.send(message{kind: spawningReducer, reducerID: id})
}
func (a *Actor) SpawnedReducer(id ids.ReducerID) {
	a.send(message{kind: spawnedReducer, reducerID: id})
}
func (a *Actor) ShutdownWorker(id ids.WorkerID) {
	a.send(message{kind: shutdownWorker, workerID: id})
}
func (a *Actor) ShutdownReducer(id ids.ReducerID) {
	a.send(message{kind: shutdownReducer, reducerID: id})
}

func (a *Actor) WorkerPanicked(id ids.WorkerID, p panics.Value) {
	a.send(message{kind: workerPanicked, workerID: id, panic: p})
}

func (a *Actor) WorkerErrored(id ids.WorkerID, err error) {
	a.send(message{kind: workerErrored, workerID: id, err: err})
}

func (a *Actor) ReducerPanicked(id ids.ReducerID, p panics.Value) {
	a.send(message{kind: reducerPanicked, reducerID: id, panic: p})
}

func (a *Actor) ReducerErrored(id ids.ReducerID, err error) {
	a.send(message{kind: reducerErrored, reducerID: id, err: err})
}

func (a *Actor) BackingUpTestCase(from, to string) {
	a.send(message{kind: backingUpTestCase, from: from, to: to})
}

func (a *Actor) StartJudgingInteresting(id ids.WorkerID) {
	a.send(message{kind: startJudgingInteresting, workerID: id})
}

func (a *Actor) JudgedInteresting(id ids.WorkerID, size uint64) {
	a.send(message{kind: judgedInteresting, workerID: id, size: size})
}

func (a *Actor) JudgedNotInteresting(id ids.WorkerID, provenance string) {
	a.send(message{kind: judgedNotInteresting, workerID: id, provenance: provenance})
}

// NewSmallest reports a new globally smallest interesting test case.
// newSize must be strictly less than origSize, and origSize must be
// non-zero; both are invariants the supervisor already enforces before
// notifying the logger.
func (a *Actor) NewSmallest(newSize, origSize uint64, provenance string) {
	a.send(message{kind: newSmallest, size: newSize, origSize: origSize, provenance: provenance})
}

func (a *Actor) IsNotSmaller(provenance string) {
	a.send(message{kind: isNotSmaller, provenance: provenance})
}

func (a *Actor) StartGeneratingNextReduction(id ids.ReducerID) {
	a.send(message{kind: startGeneratingNextReduction, reducerID: id})
}

func (a *Actor) FinishGeneratingNextReduction(id ids.ReducerID) {
	a.send(message{kind: finishGeneratingNextReduction, reducerID: id})
}

func (a *Actor) NoMoreReductions(id ids.ReducerID) {
	a.send(message{kind: noMoreReductions, reducerID: id})
}

func (a *Actor) FinalReducedSize(finalSize, origSize uint64) {
	a.send(message{kind: finalReducedSize, size: finalSize, origSize: origSize})
}

func (a *Actor) TryMerge(id ids.WorkerID) { a.send(message{kind: tryMerge, workerID: id}) }

func (a *Actor) FinishedMerging(id ids.WorkerID, mergedSize, upstreamSize uint64) {
	a.send(message{kind: finishedMerging, workerID: id, mergedSize: mergedSize, origSize: upstreamSize})
}

// stats tallies, per provenance, how many times its output became the
// new smallest, how many times it was interesting but not smallest, and
// how many times it was judged not interesting.
type stats struct {
	smallest, notSmallest, notInteresting int
}

func run(logger *logiface.Logger[*izerolog.Event], stdout io.Writer, incoming <-chan message) {
	var smallestSize uint64
	byProvenance := make(map[string]*stats)

	bump := func(provenance string, f func(*stats)) {
		s, ok := byProvenance[provenance]
		if !ok {
			s = &stats{}
			byProvenance[provenance] = s
		}
		f(s)
	}

	for m := range incoming {
		logMessage(logger, m)

		switch m.kind {
		case workerErrored, reducerErrored, workerPanicked, reducerPanicked:
			fmt.Fprintln(os.Stderr, describe(m))

		case newSmallest:
			smallestSize = m.size
			percent := percentReduced(m.size, m.origSize)
			fmt.Fprintf(stdout, "(%.2f%%, %d bytes)\n", percent, m.size)
			bump(m.provenance, func(s *stats) { s.smallest++ })

		case isNotSmaller:
			bump(m.provenance, func(s *stats) { s.notSmallest++ })

		case judgedNotInteresting:
			bump(m.provenance, func(s *stats) { s.notInteresting++ })

		case finishedMerging:
			if m.mergedSize >= m.origSize {
				bump("merge", func(s *stats) { s.notInteresting++ })
			}
		}
	}

	fmt.Fprintf(stdout, "Final size is %d\n\n", smallestSize)
	printHistogram(stdout, byProvenance)
}

func percentReduced(newSize, origSize uint64) float64 {
	if origSize == 0 {
		return 100.0
	}
	return float64(origSize-newSize) / float64(origSize) * 100.0
}

// printHistogram reproduces the final report: rows sorted by descending
// (smallest, notSmallest, notInteresting), reducer names right-truncated
// to the last 50 characters after the final path separator.
func printHistogram(w io.Writer, byProvenance map[string]*stats) {
	type row struct {
		provenance string
		stats      stats
	}
	rows := make([]row, 0, len(byProvenance))
	for provenance, s := range byProvenance {
		rows = append(rows, row{provenance, *s})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].stats, rows[j].stats
		if a.smallest != b.smallest {
			return a.smallest > b.smallest
		}
		if a.notSmallest != b.notSmallest {
			return a.notSmallest > b.notSmallest
		}
		return a.notInteresting > b.notInteresting
	})

	const width = 85
	fmt.Fprintln(w, strings.Repeat("=", width))
	fmt.Fprintf(w, "%-50.50s %10.10s  %10.10s  %10.10s\n", "Reducer", "smallest", "intrstng", "not intrstng")
	fmt.Fprintln(w, strings.Repeat("-", width))
	for _, r := range rows {
		fmt.Fprintf(w, "%-50.50s %10d  %10d  %10d\n",
			truncateProvenance(r.provenance), r.stats.smallest, r.stats.notSmallest, r.stats.notInteresting)
	}
	fmt.Fprintln(w, strings.Repeat("=", width))
}

// truncateProvenance keeps at most the last 50 characters following the
// final '/' in the provenance chain, so a deeply nested merge/reducer
// chain still prints something legible.
func truncateProvenance(provenance string) string {
	if idx := strings.LastIndexByte(provenance, '/'); idx >= 0 {
		provenance = provenance[idx+1:]
	}
	if len(provenance) > 50 {
		provenance = provenance[len(provenance)-50:]
	}
	return provenance
}

func describe(m message) string {
	switch m.kind {
	case workerErrored:
		return fmt.Sprintf("Worker %s: error: %v", m.workerID, m.err)
	case workerPanicked:
		return fmt.Sprintf("Worker %s: panicked: %v", m.workerID, m.panic)
	case reducerErrored:
		return fmt.Sprintf("Reducer %s: error: %v", m.reducerID, m.err)
	case reducerPanicked:
		return fmt.Sprintf("Reducer %s: panicked: %v", m.reducerID, m.panic)
	default:
		return ""
	}
}

func logMessage(logger *logiface.Logger[*izerolog.Event], m message) {
	switch m.kind {
	case spawningWorker:
		logger.Info().Log(fmt.Sprintf("supervisor: spawning worker %s", m.workerID))
	case spawnedWorker:
		logger.Info().Log(fmt.Sprintf("worker %s: spawned", m.workerID))
	case spawningReducer:
		logger.Info().Log(fmt.Sprintf("supervisor: spawning reducer %s", m.reducerID))
	case spawnedReducer:
		logger.Info().Log(fmt.Sprintf("reducer %s: spawned", m.reducerID))
	case shutdownWorker:
		logger.Info().Log(fmt.Sprintf("worker %s: shutting down", m.workerID))
	case shutdownReducer:
		logger.Info().Log(fmt.Sprintf("reducer %s: shutting down", m.reducerID))
	case workerErrored:
		logger.Err().Err(m.err).Log(fmt.Sprintf("worker %s: error", m.workerID))
	case workerPanicked:
		logger.Err().Str("panic", m.panic.String()).Log(fmt.Sprintf("worker %s: panicked", m.workerID))
	case reducerErrored:
		logger.Err().Err(m.err).Log(fmt.Sprintf("reducer %s: error", m.reducerID))
	case reducerPanicked:
		logger.Err().Str("panic", m.panic.String()).Log(fmt.Sprintf("reducer %s: panicked", m.reducerID))
	case backingUpTestCase:
		logger.Info().Str("from", m.from).Str("to", m.to).Log("supervisor: backing up initial test case")
	case startJudgingInteresting:
		logger.Debug().Log(fmt.Sprintf("worker %s: judging a test case's interesting-ness", m.workerID))
	case judgedInteresting:
		logger.Info().Int("size", int(m.size)).Log(fmt.Sprintf("worker %s: found an interesting test case", m.workerID))
	case judgedNotInteresting:
		logger.Debug().Str("provenance", m.provenance).Log(fmt.Sprintf("worker %s: test case not interesting", m.workerID))
	case newSmallest:
		logger.Info().Int("size", int(m.size)).Str("provenance", m.provenance).
			Log("supervisor: new smallest interesting test case")
	case isNotSmaller:
		logger.Info().Str("provenance", m.provenance).
			Log("supervisor: interesting test case is not new smallest")
	case startGeneratingNextReduction:
		logger.Debug().Log(fmt.Sprintf("reducer %s: generating next reduction", m.reducerID))
	case finishGeneratingNextReduction:
		logger.Debug().Log(fmt.Sprintf("reducer %s: finished generating next reduction", m.reducerID))
	case noMoreReductions:
		logger.Info().Log(fmt.Sprintf("reducer %s: no more reductions", m.reducerID))
	case finalReducedSize:
		logger.Info().Int("size", int(m.size)).
			Log("supervisor: final reduced size")
	case tryMerge:
		logger.Debug().Log(fmt.Sprintf("worker %s: trying to merge upstream's changes", m.workerID))
	case finishedMerging:
		worthIt := m.mergedSize < m.origSize
		logger.Info().Int("merged_size", int(m.mergedSize)).Int("upstream_size", int(m.origSize)).
			Log(fmt.Sprintf("worker %s: finished merging; worth it: %v", m.workerID, worthIt))
	}
}

// Discard returns an Actor whose messages are consumed and dropped; it
// is used by tests and by callers that don't want the histogram report.
func Discard() *Actor {
	a, _ := Spawn(io.Discard, io.Discard)
	return a
}
