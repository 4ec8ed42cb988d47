package oee

import "time"

// EndOfDayTolerance snaps a window end such as 23:59:59.999 to the next local
// midnight so an inclusive end-of-day maps onto a whole day.
const EndOfDayTolerance = time.Second

// QueryWindow is a caller-supplied [Start, End) window.
// Invariant: Start < End and End <= now at construction.
type QueryWindow struct {
	Start        time.Time
	End          time.Time
	EntityFilter []EntityRef
}

// NewQueryWindow validates the window and clamps a future end to now.
func NewQueryWindow(start, end, now time.Time, filter ...EntityRef) (QueryWindow, error) {
	if start.IsZero() || end.IsZero() {
		return QueryWindow{}, ErrZeroTime
	}
	if !now.IsZero() && end.After(now) {
		end = now
	}
	if !end.After(start) {
		return QueryWindow{}, ErrInvalidWindow
	}
	return QueryWindow{
		Start:        start,
		End:          end,
		EntityFilter: append([]EntityRef(nil), filter...),
	}, nil
}

// Range returns the window as a time range.
func (w QueryWindow) Range() TimeRange {
	return TimeRange{Start: w.Start, End: w.End}
}

// Duration returns the window length.
func (w QueryWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// DurationSec returns the window length in seconds.
func (w QueryWindow) DurationSec() float64 { return w.Duration().Seconds() }

// SnapEndOfDay moves an end lying within EndOfDayTolerance before a local
// midnight onto that midnight, unless the midnight is after now.
func (w QueryWindow) SnapEndOfDay(now time.Time, loc *time.Location) QueryWindow {
	if LocalMidnight(w.End, loc).Equal(w.End) {
		return w
	}
	next := NextLocalMidnight(w.End, loc)
	if next.Sub(w.End) >= EndOfDayTolerance {
		return w
	}
	if !now.IsZero() && next.After(now) {
		return w
	}
	w.End = next
	return w
}
