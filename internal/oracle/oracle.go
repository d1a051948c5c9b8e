// Package oracle implements the pluggable priority estimator the
// supervisor consults when deciding which queued candidate to dispatch
// next. The core only depends on the small Oracle capability interface
// below; the concrete estimators here are one reasonable implementation,
// not part of the supervisor's contract.
package oracle

import "github.com/testreduce/preduce/internal/testcase"

// Oracle observes reduction outcomes and predicts a scalar priority for
// a not-yet-judged candidate. Higher predictions are preferred by the
// reduction queue.
type Oracle interface {
	ObserveNotInteresting(p testcase.Potential)
	ObserveSmallestInteresting(i testcase.Interesting)
	ObserveNotSmallestInteresting(i testcase.Interesting)
	ObserveExhausted(provenance string)
	Predict(p testcase.Potential) float64
}

// Join composes independent oracles into one, fanning every Observe*
// call out to all of them and averaging their Predict scores. It
// mirrors the Join3 combinator in the original implementation, which
// joined InterestingRate, CreducePassPriorities, and PercentReduced.
type Join struct {
	oracles []Oracle
}

// NewJoin combines the given oracles. Order does not affect Predict
// (scores are averaged), but does affect the order Observe* calls are
// delivered in.
func NewJoin(oracles ...Oracle) *Join {
	return &Join{oracles: oracles}
}

func (j *Join) ObserveNotInteresting(p testcase.Potential) {
	for _, o := range j.oracles {
		o.ObserveNotInteresting(p)
	}
}

func (j *Join) ObserveSmallestInteresting(i testcase.Interesting) {
	for _, o := range j.oracles {
		o.ObserveSmallestInteresting(i)
	}
}

func (j *Join) ObserveNotSmallestInteresting(i testcase.Interesting) {
	for _, o := range j.oracles {
		o.ObserveNotSmallestInteresting(i)
	}
}

func (j *Join) ObserveExhausted(provenance string) {
	for _, o := range j.oracles {
		o.ObserveExhausted(provenance)
	}
}

func (j *Join) Predict(p testcase.Potential) float64 {
	if len(j.oracles) == 0 {
		return 0
	}
	var sum float64
	for _, o := range j.oracles {
		sum += o.Predict(p)
	}
	return sum / float64(len(j.oracles))
}

// Default constructs the standard three-estimator oracle: interesting
// rate (per-provenance throughput, via go-catrate), static pass-order
// priorities, and percent-reduced.
func Default(passOrder []string) *Join {
	return NewJoin(
		NewInterestingRate(),
		NewPassPriorities(passOrder),
		PercentReduced{},
	)
}
