package oee

import "time"

// RollupRecord is a per-day pre-aggregate produced by the external rollup job.
// Grouping uses EntityType + EntityKey only; SourceKey names the contributing
// machine or operator when several rows make up one entity-day.
type RollupRecord struct {
	EntityType    EntityType
	EntityKey     string
	SourceKey     string
	Date          DayKey
	RuntimeMs     int64
	WorkedTimeMs  int64
	TimeCreditMs  int64
	TotalCounts   int64
	TotalMisfeeds int64
	FaultTimeMs   int64
	UpdatedAt     time.Time
}

// Validate checks record invariants.
func (r RollupRecord) Validate() error {
	if !r.EntityType.IsValid() {
		return ErrInvalidEntityType
	}
	if r.EntityKey == "" {
		return ErrEmptyEntityRef
	}
	if r.Date == "" {
		return ErrInvalidDayKey
	}
	if r.RuntimeMs < 0 || r.WorkedTimeMs < 0 || r.TimeCreditMs < 0 ||
		r.TotalCounts < 0 || r.TotalMisfeeds < 0 || r.FaultTimeMs < 0 {
		return ErrNegativeTotals
	}
	return nil
}

// Totals converts the record sums into second-based totals.
func (r RollupRecord) Totals() Totals {
	return Totals{
		RuntimeSec:    msToSec(r.RuntimeMs),
		WorkedTimeSec: msToSec(r.WorkedTimeMs),
		TimeCreditSec: msToSec(r.TimeCreditMs),
		ValidCount:    r.TotalCounts,
		MisfeedCount:  r.TotalMisfeeds,
		FaultTimeSec:  msToSec(r.FaultTimeMs),
	}
}

// Ref returns the record's entity key as an entity reference.
func (r RollupRecord) Ref() EntityRef { return EntityRef(r.EntityKey) }

func msToSec(ms int64) float64 {
	return float64(ms) / 1000
}
