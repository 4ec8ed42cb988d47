package oee

import (
	"math"
	"time"
)

// DefaultCountTimestampThreshold is the largest number of per-unit timestamps
// counted one by one before count proration falls back to the factor.
const DefaultCountTimestampThreshold = 5000

// Overlap is the interval arithmetic result of a record against a window.
type Overlap struct {
	OverlapSec float64
	FullSec    float64
	Factor     float64
	Start      time.Time
	End        time.Time
}

// ComputeOverlap measures how much of [recordStart, recordEnd) lies inside
// [windowStart, windowEnd). A zero recordEnd marks an open record whose
// effective end is windowEnd.
//
// Factor is OverlapSec / FullSec, 0 when the record has no length, and always
// within [0, 1].
func ComputeOverlap(recordStart, recordEnd, windowStart, windowEnd time.Time) Overlap {
	if recordEnd.IsZero() {
		recordEnd = windowEnd
	}

	ov := Overlap{
		Start: maxTime(recordStart, windowStart),
		End:   minTime(recordEnd, windowEnd),
	}
	if ov.End.After(ov.Start) {
		ov.OverlapSec = ov.End.Sub(ov.Start).Seconds()
	} else {
		ov.End = ov.Start
	}
	if recordEnd.After(recordStart) {
		ov.FullSec = recordEnd.Sub(recordStart).Seconds()
	}
	if ov.FullSec > 0 {
		ov.Factor = ov.OverlapSec / ov.FullSec
	}
	if ov.Factor > 1 {
		ov.Factor = 1
	}
	return ov
}

// Scale prorates an additive quantity by the overlap factor.
func (o Overlap) Scale(value float64) float64 {
	return value * o.Factor
}

// ProrateCount attributes a record's unit count to the overlap.
//
// Exact mode: when every unit has a timestamp and there are fewer than
// threshold of them, units stamped inside [o.Start, o.End) are counted.
// Approximate mode: otherwise round(total * factor). This trades accuracy for
// bounded work on very large records, and rounding per partition means sums
// across partitions may differ from the whole-window count by one unit per
// partition.
func ProrateCount(total int64, timestamps []time.Time, threshold int, o Overlap) int64 {
	if total <= 0 || o.Factor <= 0 {
		return 0
	}
	if threshold <= 0 {
		threshold = DefaultCountTimestampThreshold
	}
	if len(timestamps) > 0 && int64(len(timestamps)) == total && len(timestamps) < threshold {
		var count int64
		inside := TimeRange{Start: o.Start, End: o.End}
		for _, ts := range timestamps {
			if inside.Contains(ts) {
				count++
			}
		}
		return count
	}
	return int64(math.Round(float64(total) * o.Factor))
}
