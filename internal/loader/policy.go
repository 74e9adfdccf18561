package loader

import (
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go/v4"
)

// Policy is a full-jitter exponential backoff: each wait is random in
// [0, min(MaxDelay, BaseDelay*2^n)].
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NavigationPolicy governs the navigation retry loop.
type NavigationPolicy struct {
	Policy
	// AuthWallAttempts caps attempts that end on a login wall. Zero means the
	// same as Attempts.
	AuthWallAttempts int
	CooldownMin      time.Duration
	CooldownMax      time.Duration
	ScrollPause      time.Duration
}

func DefaultNavigationPolicy() NavigationPolicy {
	return NavigationPolicy{
		Policy: Policy{
			Attempts:  20,
			BaseDelay: 100 * time.Millisecond,
			MaxDelay:  5 * time.Second,
		},
		CooldownMin: 20 * time.Second,
		CooldownMax: 40 * time.Second,
		ScrollPause: 2 * time.Second,
	}
}

// DefaultCallbackPolicy retries a callback once.
func DefaultCallbackPolicy() Policy {
	return Policy{
		Attempts:  2,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Retries is the number of retries after the first attempt.
func (p Policy) Retries() int {
	if p.Attempts <= 1 {
		return 0
	}
	return p.Attempts - 1
}

func (p Policy) options() []retry.Option {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return []retry.Option{
		retry.Attempts(uint(attempts)),
		retry.DelayType(fullJitter(p.BaseDelay, p.MaxDelay)),
		retry.MaxDelay(p.MaxDelay),
		retry.LastErrorOnly(true),
	}
}

func fullJitter(base, max time.Duration) retry.DelayTypeFunc {
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		return jitterDelay(n, base, max)
	}
}

func jitterDelay(n uint, base, max time.Duration) time.Duration {
	if base <= 0 || max <= 0 {
		return 0
	}
	ceiling := max
	if n < 32 {
		if d := base << n; d > 0 && d < max {
			ceiling = d
		}
	}
	return rand.N(ceiling + 1)
}
