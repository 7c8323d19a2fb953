package dataset

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/apd/v3"
)

// MatchKind tells whether a MatchResult carries a real estimate.
type MatchKind int

const (
	// Matched means at least one record fell inside the query window.
	Matched MatchKind = iota + 1
	// Fallback means no record matched and RandomCharge is a random value in
	// the dataset's charge range. It is not an estimate.
	Fallback
)

func (k MatchKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// MatchResult is the outcome of Matcher.Match.
type MatchResult struct {
	Kind MatchKind
	// AverageCharges is the mean charge of Matches rounded to cents. Set when
	// Kind is Matched.
	AverageCharges float64
	// Matches are the records inside the window, in dataset order.
	Matches []Record
	// RandomCharge is set when Kind is Fallback.
	RandomCharge float64
}

// Matcher finds records comparable to a query.
type Matcher struct {
	store *Store

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMatcher returns a Matcher over store. src drives the fallback charge;
// pass a seeded source for reproducible results.
func NewMatcher(store *Store, src rand.Source) *Matcher {
	return &Matcher{store: store, rnd: rand.New(src)} //nolint:gosec // G404: the fallback charge is not security sensitive.
}

// Match returns the average charge of the records inside q's tolerance
// window, or a random charge in the dataset's range when none match.
//
// The store is read under its lock for the whole scan, so concurrent appends
// are either fully visible or not at all.
func (m *Matcher) Match(ctx context.Context, q *Query) (*MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		matches []Record
		lo, hi  float64
		err     error
	)
	m.store.view(func(rows []Record, idx *index) {
		it := idx.candidates(q).Iterator()
		for it.HasNext() {
			r := &rows[it.Next()]
			if q.Matches(r) {
				matches = append(matches, *r)
			}
		}
		if len(matches) == 0 {
			lo, hi, err = chargeRange(rows)
		}
	})
	if err != nil {
		return nil, err
	}

	if len(matches) != 0 {
		charges := make([]float64, len(matches))
		for i := range matches {
			charges[i] = matches[i].Charges
		}
		return &MatchResult{Kind: Matched, AverageCharges: mean2(charges), Matches: matches}, nil
	}

	m.mu.Lock()
	u := m.rnd.Float64()
	m.mu.Unlock()
	return &MatchResult{Kind: Fallback, RandomCharge: fallbackCharge(lo, hi, u)}, nil
}

// fallbackCharge maps u in [0, 1) to a cent amount in [lo, hi].
//
// The result is clamped to the cents inside the range so rounding never
// escapes it. When the range holds no whole cent, lo rounded is returned.
func fallbackCharge(lo, hi, u float64) float64 {
	v := Round2(lo + u*(hi-lo))
	minCents := roundTo(lo, 2, apd.RoundCeiling)
	maxCents := roundTo(hi, 2, apd.RoundFloor)
	if minCents > maxCents {
		return Round2(lo)
	}
	return min(max(v, minCents), maxCents)
}
