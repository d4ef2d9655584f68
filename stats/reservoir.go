package stats

import (
	"math/rand"

	"github.com/erigontech/fdbrecord/tuple"
)

const defaultReservoirSize = 10000

// Reservoir implements Algorithm R reservoir sampling over a stream of
// tuples (spec §4.7 "bounded sample of observed values, default 10k"), so
// the planner's selectivity estimates for a predicate value that wasn't
// ever explicitly counted can fall back to "fraction of the sample that
// matches" instead of a blind guess.
type Reservoir struct {
	size    int
	seen    int64
	samples []tuple.Tuple
}

func NewReservoir(size int) *Reservoir {
	if size <= 0 {
		size = defaultReservoirSize
	}
	return &Reservoir{size: size}
}

func (r *Reservoir) Observe(t tuple.Tuple) {
	r.seen++
	if len(r.samples) < r.size {
		r.samples = append(r.samples, t)
		return
	}
	j := rand.Int63n(r.seen)
	if j < int64(r.size) {
		r.samples[j] = t
	}
}

func (r *Reservoir) Samples() []tuple.Tuple { return r.samples }
func (r *Reservoir) Seen() int64            { return r.seen }

// MatchFraction estimates the selectivity of pred among observed values by
// evaluating it against the sample (spec §4.7 "selectivity estimate").
func (r *Reservoir) MatchFraction(pred func(tuple.Tuple) bool) float64 {
	if len(r.samples) == 0 {
		return 1 // no information: assume no selectivity (scan everything)
	}
	matched := 0
	for _, s := range r.samples {
		if pred(s) {
			matched++
		}
	}
	return float64(matched) / float64(len(r.samples))
}
