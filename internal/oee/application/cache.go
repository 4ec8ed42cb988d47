package application

import (
	"context"
	"log"
	"sort"
	"time"

	oee "oee-cloud/internal/oee/domain"
	"oee-cloud/internal/observability/metrics"
)

// DayTotals are the summed rollup rows of one entity on one day.
type DayTotals struct {
	Totals    oee.Totals
	Rows      int
	UpdatedAt time.Time
	Capped    bool
}

// RollupAggregate holds summed rollups keyed by entity and day.
type RollupAggregate struct {
	EntityType oee.EntityType
	days       map[oee.EntityRef]map[oee.DayKey]DayTotals
	dayRows    map[oee.DayKey]int
	dayUpdated map[oee.DayKey]time.Time
}

// Lookup returns the entity-day totals.
func (a *RollupAggregate) Lookup(ref oee.EntityRef, day oee.DayKey) (DayTotals, bool) {
	if a == nil {
		return DayTotals{}, false
	}
	byDay, ok := a.days[ref]
	if !ok {
		return DayTotals{}, false
	}
	totals, ok := byDay[day]
	return totals, ok
}

// DayHasRows tells if any entity has a rollup row for day.
func (a *RollupAggregate) DayHasRows(day oee.DayKey) bool {
	if a == nil {
		return false
	}
	return a.dayRows[day] > 0
}

// DayUpdatedAt returns the newest write time among the day's rows.
func (a *RollupAggregate) DayUpdatedAt(day oee.DayKey) time.Time {
	if a == nil {
		return time.Time{}
	}
	return a.dayUpdated[day]
}

// Entities returns every entity with at least one row, sorted.
func (a *RollupAggregate) Entities() []oee.EntityRef {
	if a == nil {
		return nil
	}
	refs := make([]oee.EntityRef, 0, len(a.days))
	for ref := range a.days {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// Sum adds the entity's totals over days.
func (a *RollupAggregate) Sum(ref oee.EntityRef, days []oee.DayKey) oee.Totals {
	var sum oee.Totals
	for _, day := range days {
		if totals, ok := a.Lookup(ref, day); ok {
			sum = sum.Add(totals.Totals)
		}
	}
	return sum
}

// RollupAggregator sums daily rollups per entity.
type RollupAggregator struct {
	rollups RollupReader
	dayCap  time.Duration
	logger  *log.Logger
}

// NewRollupAggregator constructs an aggregator. Per entity-day runtime and
// worked time above dayCap are capped.
func NewRollupAggregator(rollups RollupReader, dayCap time.Duration, logger *log.Logger) (*RollupAggregator, error) {
	if rollups == nil {
		return nil, ErrNilStore
	}
	if dayCap <= 0 {
		dayCap = 24 * time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RollupAggregator{rollups: rollups, dayCap: dayCap, logger: logger}, nil
}

// Aggregate loads every requested day in one batched read and sums rows by
// entity type + entity key + day. Rows for days not requested are ignored.
func (a *RollupAggregator) Aggregate(ctx context.Context, entityType oee.EntityType, days []oee.DayKey, filter []oee.EntityRef) (*RollupAggregate, error) {
	agg := &RollupAggregate{
		EntityType: entityType,
		days:       make(map[oee.EntityRef]map[oee.DayKey]DayTotals),
		dayRows:    make(map[oee.DayKey]int),
		dayUpdated: make(map[oee.DayKey]time.Time),
	}
	if len(days) == 0 {
		return agg, nil
	}
	if !entityType.IsValid() {
		return nil, oee.ErrInvalidEntityType
	}

	wanted := make(map[oee.DayKey]struct{}, len(days))
	from, to := days[0], days[0]
	for _, day := range days {
		wanted[day] = struct{}{}
		if day < from {
			from = day
		}
		if day > to {
			to = day
		}
	}

	records, err := a.rollups.ListRollups(ctx, entityType, from, to, filter)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.EntityType != entityType {
			continue
		}
		if _, ok := wanted[record.Date]; !ok {
			continue
		}
		if err := record.Validate(); err != nil {
			a.logger.Printf("oee rollup: skip invalid row entity=%s day=%s err=%v", record.EntityKey, record.Date, err)
			continue
		}
		ref := record.Ref()
		byDay := agg.days[ref]
		if byDay == nil {
			byDay = make(map[oee.DayKey]DayTotals)
			agg.days[ref] = byDay
		}
		current := byDay[record.Date]
		current.Totals = current.Totals.Add(record.Totals())
		current.Rows++
		if record.UpdatedAt.After(current.UpdatedAt) {
			current.UpdatedAt = record.UpdatedAt
		}
		byDay[record.Date] = current

		agg.dayRows[record.Date]++
		if record.UpdatedAt.After(agg.dayUpdated[record.Date]) {
			agg.dayUpdated[record.Date] = record.UpdatedAt
		}
	}

	capSec := a.dayCap.Seconds()
	for ref, byDay := range agg.days {
		for day, totals := range byDay {
			if totals.Totals.RuntimeSec <= capSec && totals.Totals.WorkedTimeSec <= capSec {
				continue
			}
			a.logger.Printf("oee rollup: capped entity=%s type=%s day=%s runtime_sec=%.0f worked_sec=%.0f cap_sec=%.0f",
				ref, entityType, day, totals.Totals.RuntimeSec, totals.Totals.WorkedTimeSec, capSec)
			if totals.Totals.RuntimeSec > capSec {
				totals.Totals.RuntimeSec = capSec
			}
			if totals.Totals.WorkedTimeSec > capSec {
				totals.Totals.WorkedTimeSec = capSec
			}
			totals.Capped = true
			byDay[day] = totals
			metrics.IncRollupCap(string(entityType))
		}
	}
	return agg, nil
}
