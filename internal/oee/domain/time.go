package oee

import "time"

// Clock provides time for domain and application services.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the range length, never negative.
func (r TimeRange) Duration() time.Duration {
	if !r.End.After(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Contains reports whether t lies in [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// DayKey is the persisted representation of a local calendar day.
type DayKey string

const dayKeyLayout = "2006-01-02"

// NewDayKey builds the key of the local calendar day containing t.
func NewDayKey(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	return DayKey(t.In(loc).Format(dayKeyLayout))
}

// ParseDayKey parses a key into the first instant of that local day.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		return time.Time{}, ErrNilLocation
	}
	civil, err := time.Parse(dayKeyLayout, key)
	if err != nil {
		return time.Time{}, ErrInvalidDayKey
	}
	return startOfDay(civil.Year(), civil.Month(), civil.Day(), loc), nil
}

// String returns the raw key.
func (k DayKey) String() string { return string(k) }

// LocalMidnight returns the first instant of the local day containing t.
// On days where a DST switch skips 00:00 this is the transition instant.
func LocalMidnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return startOfDay(y, m, d, loc)
}

// NextLocalMidnight returns the first instant of the local day after t.
// Uses calendar arithmetic so DST days are 23h or 25h long.
func NextLocalMidnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	y, m, d = time.Date(y, m, d+1, 12, 0, 0, 0, time.UTC).Date()
	return startOfDay(y, m, d, loc)
}

// startOfDay finds the first instant whose local date is y-m-d. time.Date
// resolves a nonexistent 00:00 to either side of the gap, so a result left on
// the previous day moves to the end of its zone period.
func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if sameDate(t.In(loc), y, m, d) {
		return t
	}
	if _, end := t.ZoneBounds(); !end.IsZero() && sameDate(end.In(loc), y, m, d) {
		return end
	}
	for i := 0; i < 24*60 && !sameDate(t.In(loc), y, m, d); i++ {
		t = t.Add(time.Minute)
	}
	return t
}

func sameDate(t time.Time, y int, m time.Month, d int) bool {
	ty, tm, td := t.Date()
	return ty == y && tm == m && td == d
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
