package application

import (
	"time"

	oee "oee-cloud/internal/oee/domain"
)

// PlanState is the planner decision state.
type PlanState string

const (
	PlanNeedsSplit     PlanState = "needs_split"
	PlanResolvedCache  PlanState = "resolved_to_cache"
	PlanResolvedLive   PlanState = "resolved_to_live"
	PlanResolvedHybrid PlanState = "resolved_hybrid"
)

// Routing reasons recorded on partitions.
const (
	ReasonFullDay      = "full_day"
	ReasonPartialDay   = "partial_day"
	ReasonTodayCached  = "today_since_midnight"
	ReasonForcedLive   = "forced_live"
	ReasonCacheMiss    = "cache_miss"
	ReasonCacheStale   = "cache_stale"
	ReasonCacheFailure = "cache_error"
)

// PlannedPartition is a day partition with the source chosen for it.
type PlannedPartition struct {
	oee.DayPartition
	Strategy oee.Strategy
	Reason   string
}

// Plan routes every partition of a window to the cache or to live computation.
type Plan struct {
	Window     oee.QueryWindow
	State      PlanState
	Partitions []PlannedPartition
}

// CacheDays returns the days routed to the cache.
func (p *Plan) CacheDays() []oee.DayKey {
	var days []oee.DayKey
	for _, part := range p.Partitions {
		if part.Strategy == oee.StrategyCache {
			days = append(days, part.Day)
		}
	}
	return days
}

// Reroute sends a cache partition to live computation.
func (p *Plan) Reroute(index int, reason string) {
	if index < 0 || index >= len(p.Partitions) {
		return
	}
	if p.Partitions[index].Strategy != oee.StrategyCache {
		return
	}
	p.Partitions[index].Strategy = oee.StrategyLive
	p.Partitions[index].Reason = reason
	p.resolve()
}

// Strategy summarizes the plan as a single strategy.
func (p *Plan) Strategy() oee.Strategy {
	switch p.State {
	case PlanResolvedCache:
		return oee.StrategyCache
	case PlanResolvedLive:
		return oee.StrategyLive
	default:
		return oee.StrategyHybrid
	}
}

func (p *Plan) resolve() {
	var cache, live int
	for _, part := range p.Partitions {
		switch part.Strategy {
		case oee.StrategyCache:
			cache++
		case oee.StrategyLive:
			live++
		}
	}
	switch {
	case cache > 0 && live > 0:
		p.State = PlanResolvedHybrid
	case cache > 0:
		p.State = PlanResolvedCache
	case live > 0:
		p.State = PlanResolvedLive
	default:
		p.State = PlanNeedsSplit
	}
}

// HybridPlanner splits a window on local midnights.
type HybridPlanner struct {
	loc *time.Location
}

// NewHybridPlanner constructs a planner for the given timezone.
func NewHybridPlanner(loc *time.Location) (*HybridPlanner, error) {
	if loc == nil {
		return nil, oee.ErrNilLocation
	}
	return &HybridPlanner{loc: loc}, nil
}

// Location returns the planner timezone.
func (p *HybridPlanner) Location() *time.Location { return p.loc }

// Plan routes full elapsed days to the cache and partial days to live
// computation. A window spanning exactly local midnight to now is one cache
// partition; its freshness is checked by the caller.
func (p *HybridPlanner) Plan(w oee.QueryWindow, now time.Time, forceLive bool) *Plan {
	plan := &Plan{Window: w, State: PlanNeedsSplit}

	if !forceLive && oee.IsTodaySinceMidnight(w, now, p.loc) {
		plan.Partitions = []PlannedPartition{{
			DayPartition: oee.DayPartition{
				Day:   oee.NewDayKey(w.Start, p.loc),
				Start: w.Start,
				End:   w.End,
				Kind:  oee.PartitionToday,
			},
			Strategy: oee.StrategyCache,
			Reason:   ReasonTodayCached,
		}}
		plan.resolve()
		return plan
	}

	for _, part := range oee.PartitionByDay(w, p.loc) {
		planned := PlannedPartition{DayPartition: part, Strategy: oee.StrategyLive, Reason: ReasonPartialDay}
		switch {
		case forceLive:
			planned.Reason = ReasonForcedLive
		case part.IsFullDay():
			planned.Strategy = oee.StrategyCache
			planned.Reason = ReasonFullDay
		}
		plan.Partitions = append(plan.Partitions, planned)
	}
	plan.resolve()
	return plan
}
