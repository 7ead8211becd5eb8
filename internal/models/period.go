package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DueDay is the day of month dues fall due, clamped to the month's last day.
const DueDay = 10

// Period is a year-month bucket such as "2024-03".
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod accepts the canonical "YYYY-MM" form only.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[4] != '-' {
		return Period{}, fmt.Errorf("period %q: expected YYYY-MM", s)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1 {
		return Period{}, fmt.Errorf("period %q: bad year", s)
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil || m < 1 || m > 12 {
		return Period{}, fmt.Errorf("period %q: bad month", s)
	}
	return Period{Year: y, Month: time.Month(m)}, nil
}

// PeriodOf is the single period-extraction function: every grouping by period
// goes through it regardless of how the date was stored.
func PeriodOf(d civil.Date) Period {
	return Period{Year: d.Year, Month: d.Month}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// LastDay returns the number of days in the period's month.
func (p Period) LastDay() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDate is min(DueDay, last day of month).
func (p Period) DueDate() civil.Date {
	day := DueDay
	if last := p.LastDay(); last < day {
		day = last
	}
	return civil.Date{Year: p.Year, Month: p.Month, Day: day}
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}
