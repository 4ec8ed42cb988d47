package application

import (
	"testing"
	"time"

	oee "oee-cloud/internal/oee/domain"
)

func mustPlanWindow(t *testing.T, start, end, now time.Time) oee.QueryWindow {
	t.Helper()
	w, err := oee.NewQueryWindow(start, end, now)
	if err != nil {
		t.Fatalf("new query window: %v", err)
	}
	return w
}

func TestHybridPlanner_YesterdayMorningToTodayAfternoon(t *testing.T) {
	planner, err := NewHybridPlanner(time.UTC)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	now := day(12, 15, 0)
	plan := planner.Plan(mustPlanWindow(t, day(11, 6, 0), day(12, 14, 0), now), now, false)

	if plan.State != PlanResolvedLive {
		t.Fatalf("expected live plan, got %s", plan.State)
	}
	if len(plan.Partitions) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(plan.Partitions))
	}
	for _, part := range plan.Partitions {
		if part.Strategy != oee.StrategyLive || part.IsFullDay() {
			t.Fatalf("partial day routed to cache: %+v", part)
		}
	}
	if len(plan.CacheDays()) != 0 {
		t.Fatalf("no cache days expected: %v", plan.CacheDays())
	}
}

func TestHybridPlanner_FullDaysGoToCache(t *testing.T) {
	planner, err := NewHybridPlanner(time.UTC)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	now := day(12, 15, 0)
	plan := planner.Plan(mustPlanWindow(t, day(8, 12, 0), day(12, 14, 0), now), now, false)

	if plan.State != PlanResolvedHybrid {
		t.Fatalf("expected hybrid plan, got %s", plan.State)
	}
	days := plan.CacheDays()
	if len(days) != 3 || days[0] != "2026-03-09" || days[2] != "2026-03-11" {
		t.Fatalf("cache days mismatch: %v", days)
	}
	for _, part := range plan.Partitions {
		if part.Strategy == oee.StrategyCache && !part.IsFullDay() {
			t.Fatalf("cached partition is not a full day: %+v", part)
		}
	}

	plan.Reroute(1, ReasonCacheMiss)
	if plan.Partitions[1].Strategy != oee.StrategyLive || plan.Partitions[1].Reason != ReasonCacheMiss {
		t.Fatalf("reroute failed: %+v", plan.Partitions[1])
	}
	if len(plan.CacheDays()) != 2 {
		t.Fatalf("rerouted day still cached: %v", plan.CacheDays())
	}
}

func TestHybridPlanner_TodaySinceMidnight(t *testing.T) {
	planner, err := NewHybridPlanner(time.UTC)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	now := day(12, 15, 0)
	plan := planner.Plan(mustPlanWindow(t, day(12, 0, 0), now, now), now, false)

	if plan.State != PlanResolvedCache || len(plan.Partitions) != 1 {
		t.Fatalf("expected a single cache partition, got %+v", plan)
	}
	if plan.Partitions[0].Kind != oee.PartitionToday || plan.Partitions[0].Day != "2026-03-12" {
		t.Fatalf("today partition mismatch: %+v", plan.Partitions[0])
	}

	plan.Reroute(0, ReasonCacheStale)
	if plan.State != PlanResolvedLive || plan.Strategy() != oee.StrategyLive {
		t.Fatalf("expected live after reroute, got %s", plan.State)
	}
}

func TestHybridPlanner_ForceLive(t *testing.T) {
	planner, err := NewHybridPlanner(time.UTC)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	now := day(12, 15, 0)
	plan := planner.Plan(mustPlanWindow(t, day(9, 0, 0), day(11, 0, 0), now), now, true)
	if plan.State != PlanResolvedLive {
		t.Fatalf("expected live plan, got %s", plan.State)
	}
	for _, part := range plan.Partitions {
		if part.Reason != ReasonForcedLive {
			t.Fatalf("reason mismatch: %+v", part)
		}
	}
}
