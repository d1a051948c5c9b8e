package reducer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testreduce/preduce/internal/ids"
	"github.com/testreduce/preduce/internal/panics"
	"github.com/testreduce/preduce/internal/testcase"
)

type fakeSupervisor struct {
	mu        sync.Mutex
	nexts     []testcase.Potential
	exhausted []testcase.Interesting
	panicked  []panics.Value
	done      chan struct{}
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{done: make(chan struct{}, 16)}
}

func (f *fakeSupervisor) ReducerPanicked(ids.ReducerID, panics.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done <- struct{}{}
}
func (f *fakeSupervisor) ReducerErrored(ids.ReducerID, error) {}
func (f *fakeSupervisor) ReplyNextReduction(id ids.ReducerID, p testcase.Potential) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nexts = append(f.nexts, p)
	f.done <- struct{}{}
}
func (f *fakeSupervisor) ReplyExhausted(id ids.ReducerID, seed testcase.Interesting) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exhausted = append(f.exhausted, seed)
	f.done <- struct{}{}
}

// countdownAlgorithm emits decreasing sizes until it reaches zero, then
// reports exhaustion.
type countdownAlgorithm struct {
	remaining int
	seed      testcase.Interesting
}

func (c *countdownAlgorithm) Name() string { return "countdown" }
func (c *countdownAlgorithm) SetSeed(seed testcase.Interesting) {
	c.seed = seed
	c.remaining = int(seed.Size)
}
func (c *countdownAlgorithm) Next() (testcase.Potential, bool) {
	if c.remaining <= 0 {
		return testcase.Potential{}, false
	}
	c.remaining--
	return testcase.Potential{Size: uint64(c.remaining), Provenance: "countdown", Seed: c.seed}, true
}
func (c *countdownAlgorithm) NotInteresting(testcase.Potential) {}
func (c *countdownAlgorithm) Clone() Algorithm                  { return &countdownAlgorithm{} }

func TestReducerProducesUntilExhausted(t *testing.T) {
	sup := newFakeSupervisor()
	a := Spawn(ids.ReducerID(1), sup, &countdownAlgorithm{})

	a.SetSeed(testcase.Interesting{Size: 2})

	a.RequestNext(nil)
	<-sup.done
	a.RequestNext(nil)
	<-sup.done
	a.RequestNext(nil)
	<-sup.done

	require.Len(t, sup.nexts, 2)
	require.Len(t, sup.exhausted, 1)
}

type panickingAlgorithm struct{}

func (panickingAlgorithm) Name() string                     { return "panics" }
func (panickingAlgorithm) SetSeed(testcase.Interesting)     {}
func (panickingAlgorithm) Next() (testcase.Potential, bool) { panic("boom") }
func (panickingAlgorithm) NotInteresting(testcase.Potential) {}
func (panickingAlgorithm) Clone() Algorithm { return panickingAlgorithm{} }

func TestReducerPanicReported(t *testing.T) {
	sup := newFakeSupervisor()
	a := Spawn(ids.ReducerID(2), sup, panickingAlgorithm{})

	a.RequestNext(nil)
	<-sup.done
}
