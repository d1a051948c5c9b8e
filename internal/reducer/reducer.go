// Package reducer implements the reducer actor: a goroutine wrapping one
// pluggable Reducer algorithm, translating SetSeed/RequestNext/
// NotInteresting commands into a lazy sequence of Potential variants
// reported back to the supervisor.
package reducer

import (
	"github.com/testreduce/preduce/internal/ids"
	"github.com/testreduce/preduce/internal/panics"
	"github.com/testreduce/preduce/internal/testcase"
)

// Algorithm is the capability set a pluggable reduction strategy must
// implement. It is seeded with an Interesting input and thereafter
// asked, one at a time, for its next candidate.
type Algorithm interface {
	// Name is this algorithm's provenance string, stamped onto every
	// Potential it produces.
	Name() string

	// SetSeed seeds (or reseeds) generation from a new Interesting
	// input, abandoning any in-flight generation. Implementations must
	// tolerate being seeded with the same input repeatedly.
	SetSeed(seed testcase.Interesting)

	// Next produces the next Potential from the current seed, or
	// reports exhaustion (false) if none remain.
	Next() (testcase.Potential, bool)

	// NotInteresting is a hint that a previously generated Potential
	// was not used by a worker; most algorithms can ignore it, but
	// stateful ones (e.g. a merge reducer tracking in-flight workspace
	// state) may need it to clean up.
	NotInteresting(p testcase.Potential)

	// Clone returns a fresh instance in the same unseeded state, used
	// to populate the respawn pool independently of any in-flight
	// goroutine state a crashed instance might have corrupted.
	Clone() Algorithm
}

// Supervisor is the callback surface a reducer actor reports back
// through.
type Supervisor interface {
	ReducerPanicked(id ids.ReducerID, p panics.Value)
	ReducerErrored(id ids.ReducerID, err error)
	ReplyNextReduction(id ids.ReducerID, potential testcase.Potential)
	ReplyExhausted(id ids.ReducerID, seed testcase.Interesting)
}

type command struct {
	kind           cmdKind
	seed           testcase.Interesting
	notInteresting *testcase.Potential
}

type cmdKind int

const (
	cmdSetSeed cmdKind = iota
	cmdRequestNext
	cmdNotInteresting
	cmdShutdown
)

// Actor is a reducer's client handle.
type Actor struct {
	id ids.ReducerID
	ch chan command
}

// ID returns the reducer's identity.
func (a *Actor) ID() ids.ReducerID { return a.id }

// SetSeed seeds (or reseeds) the reducer.
func (a *Actor) SetSeed(seed testcase.Interesting) { a.ch <- command{kind: cmdSetSeed, seed: seed} }

// RequestNext asks for the next candidate. notInteresting, if non-nil,
// is a hint about the previous candidate's fate, observed by the
// algorithm before it generates the next one.
func (a *Actor) RequestNext(notInteresting *testcase.Potential) {
	a.ch <- command{kind: cmdRequestNext, notInteresting: notInteresting}
}

// NotInteresting informs the reducer, out of band from RequestNext, that
// a candidate it produced earlier was not used.
func (a *Actor) NotInteresting(p testcase.Potential) {
	a.ch <- command{kind: cmdNotInteresting, notInteresting: &p}
}

// Shutdown terminates the reducer actor.
func (a *Actor) Shutdown() { close(a.ch) }

// Spawn starts a reducer actor wrapping algo, reporting through sup.
// The algorithm starts unseeded; the first SetSeed from the supervisor
// activates it.
func Spawn(id ids.ReducerID, sup Supervisor, algo Algorithm) *Actor {
	a := &Actor{id: id, ch: make(chan command, 4)}
	go a.loop(sup, algo)
	return a
}

func (a *Actor) loop(sup Supervisor, algo Algorithm) {
	var currentSeed testcase.Interesting

	for cmd := range a.ch {
		var fatal bool
		switch cmd.kind {
		case cmdSetSeed:
			currentSeed = cmd.seed
			v, panicked := panics.Capture(func() { algo.SetSeed(cmd.seed) })
			if panicked {
				sup.ReducerPanicked(a.id, v)
				fatal = true
			}

		case cmdNotInteresting:
			v, panicked := panics.Capture(func() { algo.NotInteresting(*cmd.notInteresting) })
			if panicked {
				sup.ReducerPanicked(a.id, v)
				fatal = true
			}

		case cmdRequestNext:
			fatal = a.requestNext(sup, algo, currentSeed, cmd.notInteresting)
		}

		if fatal {
			// A panic unwinds this reducer's thread of execution, same
			// as a real Rust reducer thread crashing; the supervisor
			// has already been told and will respawn it at next reseed.
			return
		}
	}
}

// requestNext returns true if generation panicked.
func (a *Actor) requestNext(sup Supervisor, algo Algorithm, seedAtReply testcase.Interesting, hint *testcase.Potential) bool {
	var (
		potential testcase.Potential
		ok        bool
	)
	v, panicked := panics.Capture(func() {
		if hint != nil {
			algo.NotInteresting(*hint)
		}
		potential, ok = algo.Next()
	})
	if panicked {
		sup.ReducerPanicked(a.id, v)
		return true
	}

	if !ok {
		sup.ReplyExhausted(a.id, seedAtReply)
		return false
	}
	sup.ReplyNextReduction(a.id, potential)
	return false
}
