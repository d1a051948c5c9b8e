package oracle

import "github.com/testreduce/preduce/internal/testcase"

// PercentReduced scores a candidate by how much smaller it is than the
// interesting test case it was derived from — the bigger the cut, the
// higher the score. It carries no state of its own; everything it needs
// travels with the candidate via Potential.Seed.
type PercentReduced struct{}

func (PercentReduced) ObserveNotInteresting(testcase.Potential)           {}
func (PercentReduced) ObserveSmallestInteresting(testcase.Interesting)    {}
func (PercentReduced) ObserveNotSmallestInteresting(testcase.Interesting) {}
func (PercentReduced) ObserveExhausted(string)                           {}

func (PercentReduced) Predict(p testcase.Potential) float64 {
	seedSize := p.Seed.Size
	if seedSize == 0 {
		return 0
	}
	if p.Size >= seedSize {
		return 0
	}
	return float64(seedSize-p.Size) / float64(seedSize)
}
