package loader

import (
	"errors"
	"fmt"
	"time"
)

// ErrStopped is returned when the engine was stopped before or while a page
// was loading. Callers treat it as a clean shutdown, not a failure.
var ErrStopped = errors.New("loader stopped")

// Kind tags why a navigation attempt did not produce real content.
type Kind int

const (
	KindTransient Kind = iota
	KindRateLimited
	KindAuthWall
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuthWall:
		return "auth_wall"
	default:
		return "transient"
	}
}

// NavigationError is a failed navigation attempt.
type NavigationError struct {
	Kind   Kind
	URL    string
	Status int
	// Cooldown is how long the attempt waited before failing (rate limits only).
	Cooldown time.Duration
	Err      error
}

func (e *NavigationError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited on %s (status %d, cooled down %s)", e.URL, e.Status, e.Cooldown.Round(time.Second))
	case KindAuthWall:
		return fmt.Sprintf("auth wall on %s", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed", e.URL)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a navigation error, or KindTransient for
// anything else.
func KindOf(err error) Kind {
	var nerr *NavigationError
	if errors.As(err, &nerr) {
		return nerr.Kind
	}
	return KindTransient
}
