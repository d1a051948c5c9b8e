package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testreduce/preduce/internal/testcase"
)

type constOracle struct {
	value     float64
	observed  []string
	exhausted []string
}

func (c *constOracle) ObserveNotInteresting(p testcase.Potential) {
	c.observed = append(c.observed, "not-interesting:"+p.Provenance)
}

func (c *constOracle) ObserveSmallestInteresting(i testcase.Interesting) {
	c.observed = append(c.observed, "smallest:"+i.Provenance)
}

func (c *constOracle) ObserveNotSmallestInteresting(i testcase.Interesting) {
	c.observed = append(c.observed, "not-smallest:"+i.Provenance)
}

func (c *constOracle) ObserveExhausted(provenance string) {
	c.exhausted = append(c.exhausted, provenance)
}

func (c *constOracle) Predict(testcase.Potential) float64 { return c.value }

func TestJoinAveragesPredict(t *testing.T) {
	a := &constOracle{value: 1.0}
	b := &constOracle{value: 0.0}
	j := NewJoin(a, b)

	got := j.Predict(testcase.Potential{Provenance: "x"})
	require.Equal(t, 0.5, got)
}

func TestJoinEmptyPredictsZero(t *testing.T) {
	j := NewJoin()
	require.Equal(t, float64(0), j.Predict(testcase.Potential{}))
}

func TestJoinFansOutObserve(t *testing.T) {
	a := &constOracle{}
	b := &constOracle{}
	j := NewJoin(a, b)

	p := testcase.Potential{Provenance: "x"}
	j.ObserveNotInteresting(p)
	j.ObserveExhausted("x")

	require.Equal(t, []string{"not-interesting:x"}, a.observed)
	require.Equal(t, []string{"not-interesting:x"}, b.observed)
	require.Equal(t, []string{"x"}, a.exhausted)
	require.Equal(t, []string{"x"}, b.exhausted)
}

func TestInterestingRateDeprioritizesSaturatedProvenance(t *testing.T) {
	r := NewInterestingRate()
	p := testcase.Potential{Provenance: "lines"}

	require.Equal(t, 1.0, r.Predict(p))

	for i := 0; i < 3; i++ {
		r.ObserveSmallestInteresting(testcase.Interesting{Provenance: "lines"})
	}

	require.Equal(t, 0.25, r.Predict(p))
	require.Equal(t, 1.0, r.Predict(testcase.Potential{Provenance: "bytes"}))
}

func TestPassPrioritiesOrdersByConfiguredPosition(t *testing.T) {
	pp := NewPassPriorities([]string{"lines", "bytes", "chars"})

	linesScore := pp.Predict(testcase.Potential{Provenance: "lines"})
	bytesScore := pp.Predict(testcase.Potential{Provenance: "bytes"})
	charsScore := pp.Predict(testcase.Potential{Provenance: "chars"})

	require.Greater(t, linesScore, bytesScore)
	require.Greater(t, bytesScore, charsScore)
	require.Equal(t, float64(0), pp.Predict(testcase.Potential{Provenance: "unknown"}))
}

func TestPercentReducedScoresLargerCutsHigher(t *testing.T) {
	var pr PercentReduced

	seed := testcase.Interesting{Size: 100}
	small := testcase.Potential{Size: 10, Seed: seed}
	large := testcase.Potential{Size: 90, Seed: seed}

	require.Greater(t, pr.Predict(small), pr.Predict(large))
	require.Equal(t, float64(0), pr.Predict(testcase.Potential{Size: 5, Seed: testcase.Interesting{Size: 0}}))
	require.Equal(t, float64(0), pr.Predict(testcase.Potential{Size: 100, Seed: seed}))
}

func TestDefaultComposesThreeEstimators(t *testing.T) {
	j := Default([]string{"lines", "bytes"})
	require.Len(t, j.oracles, 3)
}
