// Defines rate limit tiers and routing rules.

package ratelimit

import (
	"net/http"
	"time"
)

// Tier is a named limiter. A Tier with a nil Limiter is unlimited.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Allow checks the limit for the client identified by ip.
func (t *Tier) Allow(ip string) Result {
	return t.Limiter.Allow("ip:" + ip + ":" + t.Name)
}

// Tiers holds the limiters applied to API routes. Every client IP gets its own
// bucket in each tier.
type Tiers struct {
	Match Tier
	Write Tier
	Read  Tier
}

// NewTiers creates the tiers from per-minute limits. 0 disables a tier.
func NewTiers(matchPerMin, writePerMin, readPerMin int) *Tiers {
	return &Tiers{
		Match: newTier("match", matchPerMin),
		Write: newTier("write", writePerMin),
		Read:  newTier("read", readPerMin),
	}
}

func newTier(name string, perMin int) Tier {
	t := Tier{Name: name}
	if perMin > 0 {
		// Allow a short burst of a sixth of the minute budget.
		t.Limiter = NewLimiter(perMin, time.Minute, max(perMin/6, 1))
	}
	return t
}

// Route returns the tier for a request. Returns nil for routes that are not
// rate limited.
func (t *Tiers) Route(method, path string) *Tier {
	var tier *Tier
	switch {
	case path == "/api/health" || path == "/metrics":
		return nil
	case method == http.MethodPost && (path == "/submit_form" || path == "/api/v1/match"):
		tier = &t.Match
	case method == http.MethodPost:
		tier = &t.Write
	case method == http.MethodGet:
		tier = &t.Read
	default:
		return nil
	}
	if tier.Limiter == nil {
		return nil
	}
	return tier
}

// Close stops all limiter cleanup goroutines.
func (t *Tiers) Close() {
	for _, tier := range []*Tier{&t.Match, &t.Write, &t.Read} {
		if tier.Limiter != nil {
			tier.Limiter.Close()
		}
	}
}
