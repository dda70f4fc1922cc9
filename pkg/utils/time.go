package utils

import "time"

// Clock is the time source used by the scheduler so tests can control "now".
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func DatesEqual(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}

// NowUTC returns the clock's current time in UTC with the microsecond
// precision the databases keep.
func NowUTC(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Microsecond)
}

// AddDays moves t forward by n whole days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DateString formats t as YYYY-MM-DD.
func DateString(t time.Time) string {
	return t.Format(time.DateOnly)
}
