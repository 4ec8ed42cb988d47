package oee

import "time"

// CycleKind labels a contiguous operating interval.
type CycleKind string

const (
	CycleRunning CycleKind = "running"
	CyclePaused  CycleKind = "paused"
	CycleFault   CycleKind = "fault"
	CycleOffline CycleKind = "offline"
)

// Cycle is a derived, never persisted, interval of a single kind.
type Cycle struct {
	Kind  CycleKind
	Start time.Time
	End   time.Time
}

// Duration returns the cycle length, never negative.
func (c Cycle) Duration() time.Duration {
	if !c.End.After(c.Start) {
		return 0
	}
	return c.End.Sub(c.Start)
}

// DurationSec returns the cycle length in seconds.
func (c Cycle) DurationSec() float64 { return c.Duration().Seconds() }

// CycleSet groups extracted cycles by kind. Each slice is chronological.
type CycleSet struct {
	Running []Cycle
	Paused  []Cycle
	Fault   []Cycle
	Offline []Cycle
}

// CycleSummary holds total seconds per cycle kind.
type CycleSummary struct {
	RunningSec float64 `json:"running_sec"`
	PausedSec  float64 `json:"paused_sec"`
	FaultSec   float64 `json:"fault_sec"`
	OfflineSec float64 `json:"offline_sec"`
}

// Add sums two summaries.
func (s CycleSummary) Add(o CycleSummary) CycleSummary {
	return CycleSummary{
		RunningSec: s.RunningSec + o.RunningSec,
		PausedSec:  s.PausedSec + o.PausedSec,
		FaultSec:   s.FaultSec + o.FaultSec,
		OfflineSec: s.OfflineSec + o.OfflineSec,
	}
}

// Of returns the cycles of the given kind.
func (s CycleSet) Of(kind CycleKind) []Cycle {
	switch kind {
	case CycleRunning:
		return s.Running
	case CyclePaused:
		return s.Paused
	case CycleFault:
		return s.Fault
	case CycleOffline:
		return s.Offline
	default:
		return nil
	}
}

// Total returns the summed duration of a kind.
func (s CycleSet) Total(kind CycleKind) time.Duration {
	var total time.Duration
	for _, c := range s.Of(kind) {
		total += c.Duration()
	}
	return total
}

// Summary returns seconds per kind.
func (s CycleSet) Summary() CycleSummary {
	return CycleSummary{
		RunningSec: s.Total(CycleRunning).Seconds(),
		PausedSec:  s.Total(CyclePaused).Seconds(),
		FaultSec:   s.Total(CycleFault).Seconds(),
		OfflineSec: s.Total(CycleOffline).Seconds(),
	}
}

func (s *CycleSet) append(c Cycle) {
	switch c.Kind {
	case CycleRunning:
		s.Running = append(s.Running, c)
	case CyclePaused:
		s.Paused = append(s.Paused, c)
	case CycleFault:
		s.Fault = append(s.Fault, c)
	case CycleOffline:
		s.Offline = append(s.Offline, c)
	}
}

// ExtractCycles turns the events of one entity into labeled cycles clipped
// to [windowStart, windowEnd).
//
// Each event opens an interval of its own kind that lasts until the next event.
// Consecutive intervals of the same kind form one cycle, so a run event that
// only changes the active operator does not split a running cycle. The last
// interval has no closing event and is treated as an open session ending at
// min(now, windowEnd); a zero now means windowEnd.
//
// Events may be unsorted; events before windowStart establish the state at the
// window start.
func ExtractCycles(events []StateEvent, windowStart, windowEnd, now time.Time) CycleSet {
	var set CycleSet
	if len(events) == 0 || !windowEnd.After(windowStart) {
		return set
	}

	openEnd := windowEnd
	if !now.IsZero() && now.Before(openEnd) {
		openEnd = now
	}

	sorted := SortEvents(events)
	var current *Cycle
	flush := func() {
		if current == nil {
			return
		}
		clipped := Cycle{
			Kind:  current.Kind,
			Start: maxTime(current.Start, windowStart),
			End:   minTime(current.End, openEnd),
		}
		if clipped.End.After(clipped.Start) {
			set.append(clipped)
		}
		current = nil
	}

	for i, evt := range sorted {
		end := openEnd
		if i+1 < len(sorted) {
			end = sorted[i+1].Timestamp
		}
		if !end.After(evt.Timestamp) {
			continue
		}
		kind := evt.StatusCode.Kind()
		if current != nil && current.Kind == kind && !current.End.Before(evt.Timestamp) {
			current.End = end
			continue
		}
		flush()
		current = &Cycle{Kind: kind, Start: evt.Timestamp, End: end}
	}
	flush()

	return set
}
