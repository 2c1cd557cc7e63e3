package registry

import (
	"context"
	"time"
)

// Eligibility answers questions about a person's current sick-leave status.
// Implementations call external registries; errors propagate to the caller.
type Eligibility interface {
	// IsSick reports whether the person is on sick leave (any grade) on the given date.
	IsSick(ctx context.Context, fnr string, date time.Time) (bool, error)
	// IsFullySick reports whether the person is fully incapacitated on the given date.
	IsFullySick(ctx context.Context, fnr string, date time.Time) (bool, error)
	// SickThrough returns the last date covered by the person's sick notes.
	// ok is false when no sick note covers today or later.
	SickThrough(ctx context.Context, fnr string) (last time.Time, ok bool, err error)
	IsAlive(ctx context.Context, fnr string) (bool, error)
}

// Period is one sick-note period.
type Period struct {
	Fom    time.Time
	Tom    time.Time
	Graded bool
}

// Episode is one sick-leave episode as seen by the registry.
type Episode struct {
	StartDate time.Time
	Periods   []Period
}

// Episodes looks up the sick-leave episodes of a person.
type Episodes interface {
	List(ctx context.Context, fnr string) ([]Episode, error)
}

// StartDateFor returns the start date of the episode covering [fom, tom].
func StartDateFor(episodes []Episode, fom, tom time.Time) (time.Time, bool) {
	for _, e := range episodes {
		for _, p := range e.Periods {
			if !p.Fom.After(tom) && !p.Tom.Before(fom) {
				return e.StartDate, true
			}
		}
	}
	return time.Time{}, false
}
