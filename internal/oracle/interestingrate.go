package oracle

import (
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/testreduce/preduce/internal/testcase"
)

// InterestingRate scores candidates higher when their provenance hasn't
// recently produced an accepted (smallest) reduction, and lower when it
// has — steering the supervisor away from a reducer that is currently
// dominating progress and towards ones that haven't had a turn. It is
// backed by go-catrate's sliding-window rate limiter, keyed by
// provenance.
type InterestingRate struct {
	limiter *catrate.Limiter

	mu          sync.Mutex
	limitedTill map[string]time.Time
}

// NewInterestingRate constructs an InterestingRate oracle tracking, per
// provenance, at most 3 accepted reductions per second and 20 per
// minute before that provenance is considered "saturated".
func NewInterestingRate() *InterestingRate {
	return &InterestingRate{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 3,
			time.Minute: 20,
		}),
		limitedTill: make(map[string]time.Time),
	}
}

func (r *InterestingRate) ObserveNotInteresting(testcase.Potential) {}

// ObserveSmallestInteresting registers an accepted reduction against the
// provenance's rate limit. Allow's returned time, when non-zero, is the
// point at which that provenance stops being considered saturated.
func (r *InterestingRate) ObserveSmallestInteresting(i testcase.Interesting) {
	next, _ := r.limiter.Allow(i.Provenance)

	r.mu.Lock()
	defer r.mu.Unlock()
	if next.IsZero() {
		delete(r.limitedTill, i.Provenance)
	} else {
		r.limitedTill[i.Provenance] = next
	}
}

func (r *InterestingRate) ObserveNotSmallestInteresting(testcase.Interesting) {}

func (r *InterestingRate) ObserveExhausted(string) {}

// Predict returns 1.0 if the candidate's provenance is not currently
// saturated, and 0.25 if it is — a soft deprioritization rather than an
// outright exclusion, since a saturated reducer may still be the best
// choice if nothing else is queued.
func (r *InterestingRate) Predict(p testcase.Potential) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if till, ok := r.limitedTill[p.Provenance]; ok && time.Now().Before(till) {
		return 0.25
	}
	return 1.0
}
