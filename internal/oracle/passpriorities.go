package oracle

import "github.com/testreduce/preduce/internal/testcase"

// PassPriorities is a static priority table derived from the configured
// order of reducer passes: earlier passes score higher, on the theory
// that coarse-grained reductions (e.g. whole-chunk deletion) are more
// likely to pay off than fine-grained ones (e.g. byte truncation) run
// first. Provenances absent from the configured order score lowest.
type PassPriorities struct {
	score map[string]float64
}

// NewPassPriorities builds the table from passOrder, the configured,
// ordered list of reducer provenance names.
func NewPassPriorities(passOrder []string) *PassPriorities {
	score := make(map[string]float64, len(passOrder))
	n := len(passOrder)
	for i, name := range passOrder {
		// first entry scores 1.0, last scores 1/n.
		score[name] = float64(n-i) / float64(n)
	}
	return &PassPriorities{score: score}
}

func (PassPriorities) ObserveNotInteresting(testcase.Potential)           {}
func (PassPriorities) ObserveSmallestInteresting(testcase.Interesting)    {}
func (PassPriorities) ObserveNotSmallestInteresting(testcase.Interesting) {}
func (PassPriorities) ObserveExhausted(string)                           {}

func (p *PassPriorities) Predict(t testcase.Potential) float64 {
	return p.score[t.Provenance]
}
