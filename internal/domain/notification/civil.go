// internal/domain/notification/civil.go
package notification

import (
	"time"
	_ "time/tzdata" // Europe/Oslo must resolve on minimal images
)

// Oslo is the civil time zone all due dates and wire dates are expressed in.
var Oslo = mustLoadLocation("Europe/Oslo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Date returns a civil date (midnight UTC), the form used for start dates and periods.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MidnightOslo converts a civil date to the instant it starts in Oslo.
func MidnightOslo(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, Oslo)
}

// Today returns the civil date of now in Oslo.
func Today(now time.Time) time.Time {
	y, m, d := now.In(Oslo).Date()
	return Date(y, m, d)
}
