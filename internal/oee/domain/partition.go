package oee

import "time"

// PartitionKind describes how a day partition relates to calendar days.
type PartitionKind string

const (
	PartitionFullDay  PartitionKind = "full_day"
	PartitionLeading  PartitionKind = "leading_partial"
	PartitionTrailing PartitionKind = "trailing_partial"
	PartitionInner    PartitionKind = "inner_partial"
	PartitionToday    PartitionKind = "today_since_midnight"
)

// Strategy names the source that served a partition.
type Strategy string

const (
	StrategyCache  Strategy = "cache"
	StrategyLive   Strategy = "live"
	StrategyHybrid Strategy = "hybrid"
)

// DayPartition is a slice of a query window within one local calendar day.
type DayPartition struct {
	Day   DayKey
	Start time.Time
	End   time.Time
	Kind  PartitionKind
}

// Range returns the partition as a time range.
func (p DayPartition) Range() TimeRange { return TimeRange{Start: p.Start, End: p.End} }

// IsFullDay tells if the partition spans exactly one local day.
func (p DayPartition) IsFullDay() bool { return p.Kind == PartitionFullDay }

// PartitionByDay splits [w.Start, w.End) at local midnights.
//
// The result is chronological, pairwise disjoint and covers the window
// exactly. Only partitions starting and ending on local midnights are
// PartitionFullDay.
func PartitionByDay(w QueryWindow, loc *time.Location) []DayPartition {
	if loc == nil {
		loc = time.UTC
	}
	if !w.End.After(w.Start) {
		return nil
	}

	var parts []DayPartition
	cursor := w.Start
	for cursor.Before(w.End) {
		dayStart := LocalMidnight(cursor, loc)
		dayEnd := NextLocalMidnight(cursor, loc)
		segEnd := minTime(dayEnd, w.End)
		if !segEnd.After(cursor) {
			// No progress: serve the rest as one partial partition.
			segEnd = w.End
		}

		startsAtMidnight := cursor.Equal(dayStart)
		endsAtMidnight := segEnd.Equal(dayEnd)
		kind := PartitionFullDay
		switch {
		case !startsAtMidnight && !endsAtMidnight:
			kind = PartitionInner
		case !startsAtMidnight:
			kind = PartitionLeading
		case !endsAtMidnight:
			kind = PartitionTrailing
		}

		parts = append(parts, DayPartition{
			Day:   NewDayKey(dayStart, loc),
			Start: cursor,
			End:   segEnd,
			Kind:  kind,
		})
		cursor = segEnd
	}
	return parts
}

// IsTodaySinceMidnight tells if the window is exactly local midnight of
// today through now.
func IsTodaySinceMidnight(w QueryWindow, now time.Time, loc *time.Location) bool {
	if now.IsZero() {
		return false
	}
	return w.End.Equal(now) && w.Start.Equal(LocalMidnight(now, loc)) && w.End.After(w.Start)
}
