// Package clock defines "today" for the association's time zone.
package clock

import (
	"time"

	"cloud.google.com/go/civil"
)

type Clock struct {
	now func() time.Time
	loc *time.Location
}

func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{now: time.Now, loc: loc}
}

// Fixed always reports d as today.
func Fixed(d civil.Date) Clock {
	return Clock{now: func() time.Time { return d.In(time.UTC) }, loc: time.UTC}
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now().In(c.location())
}

func (c Clock) Today() civil.Date {
	return civil.DateOf(c.Now())
}

func (c Clock) location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}
