package oee

import "time"

// SessionItem is the share of a session allocated to one item.
type SessionItem struct {
	ItemID        string  `json:"item_id"`
	RuntimeSec    float64 `json:"runtime_sec"`
	WorkedTimeSec float64 `json:"worked_time_sec"`
	TimeCreditSec float64 `json:"time_credit_sec"`
	ValidCount    int64   `json:"valid_count"`
	MisfeedCount  int64   `json:"misfeed_count"`
}

// Session is a machine- or operator-scoped production session.
// A zero End means the session is still open.
type Session struct {
	EntityRef         EntityRef
	Start             time.Time
	End               time.Time
	RuntimeSec        float64
	WorkedTimeSec     float64
	TimeCreditSec     float64
	ValidCount        int64
	MisfeedCount      int64
	CountTimestamps   []time.Time
	MisfeedTimestamps []time.Time
	Items             []SessionItem
}

// IsOpen tells if the session has not ended yet.
func (s Session) IsOpen() bool { return s.End.IsZero() }

// EffectiveEnd resolves the end used for proration. An open session ends at
// openEnd, which callers set to min(now, query window end). Passing the query
// window end rather than a partition end keeps the proration denominator the
// same in every partition of one query.
func (s Session) EffectiveEnd(openEnd time.Time) time.Time {
	if s.IsOpen() {
		return openEnd
	}
	return s.End
}

// Overlap measures the session against a partition.
func (s Session) Overlap(part TimeRange, openEnd time.Time) Overlap {
	return ComputeOverlap(s.Start, s.EffectiveEnd(openEnd), part.Start, part.End)
}

// Prorate returns the share of the session inside part.
func (s Session) Prorate(part TimeRange, openEnd time.Time, countThreshold int) Totals {
	ov := s.Overlap(part, openEnd)
	if ov.Factor <= 0 {
		return Totals{}
	}
	return Totals{
		RuntimeSec:    ov.Scale(s.RuntimeSec),
		WorkedTimeSec: ov.Scale(s.WorkedTimeSec),
		TimeCreditSec: ov.Scale(s.TimeCreditSec),
		ValidCount:    ProrateCount(s.ValidCount, s.CountTimestamps, countThreshold, ov),
		MisfeedCount:  ProrateCount(s.MisfeedCount, s.MisfeedTimestamps, countThreshold, ov),
	}
}

// ProrateItem returns the share of one item's allocation inside part.
// The second result is false when the session did not run the item.
func (s Session) ProrateItem(itemID string, part TimeRange, openEnd time.Time) (Totals, bool) {
	for _, item := range s.Items {
		if item.ItemID != itemID {
			continue
		}
		ov := s.Overlap(part, openEnd)
		return Totals{
			RuntimeSec:    ov.Scale(item.RuntimeSec),
			WorkedTimeSec: ov.Scale(item.WorkedTimeSec),
			TimeCreditSec: ov.Scale(item.TimeCreditSec),
			ValidCount:    ProrateCount(item.ValidCount, nil, 0, ov),
			MisfeedCount:  ProrateCount(item.MisfeedCount, nil, 0, ov),
		}, true
	}
	return Totals{}, false
}

// FaultSession is a contiguous fault with its label.
type FaultSession struct {
	EntityRef    EntityRef
	Start        time.Time
	End          time.Time
	FaultTimeSec float64
	FaultLabel   string
}

// IsOpen tells if the fault is still active.
func (f FaultSession) IsOpen() bool { return f.End.IsZero() }

// Prorate returns the fault seconds inside part.
func (f FaultSession) Prorate(part TimeRange, openEnd time.Time) float64 {
	end := f.End
	if f.IsOpen() {
		end = openEnd
	}
	return ComputeOverlap(f.Start, end, part.Start, part.End).Scale(f.FaultTimeSec)
}
