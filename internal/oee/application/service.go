package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	oee "oee-cloud/internal/oee/domain"
	"oee-cloud/internal/observability/metrics"
)

// Outcome distinguishes data absence from failure for one entity.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeNoData Outcome = "no_data"
	OutcomeFailed Outcome = "failed"
)

// MetricsQuery asks for metrics of one entity, a filtered set, or every
// active entity of a type. EntityRef takes precedence over Filter.
type MetricsQuery struct {
	EntityType oee.EntityType
	EntityRef  oee.EntityRef
	Start      time.Time
	End        time.Time
	Filter     []oee.EntityRef
	ForceLive  bool
}

// PartitionReport annotates which strategy served a sub-range.
type PartitionReport struct {
	Day      oee.DayKey
	Start    time.Time
	End      time.Time
	Kind     oee.PartitionKind
	Strategy oee.Strategy
	Reason   string
}

// EntityResult is the merged result of one entity.
type EntityResult struct {
	EntityRef oee.EntityRef
	Outcome   Outcome
	Strategy  oee.Strategy
	Totals    oee.Totals
	Metrics   oee.Metrics
	Cycles    oee.CycleSummary
	Faults    map[string]float64
	Err       error
}

// FleetResult aggregates every entity with an OK outcome. Availability is
// measured against the window duration times the number of entities.
type FleetResult struct {
	Entities int
	Totals   oee.Totals
	Metrics  oee.Metrics
}

// MetricsResult is returned by ComputeMetrics.
type MetricsResult struct {
	QueryID    string
	EntityType oee.EntityType
	Window     oee.QueryWindow
	State      PlanState
	Strategy   oee.Strategy
	Partitions []PartitionReport
	Entities   []EntityResult
	Fleet      FleetResult
	Degraded   bool
	ComputedAt time.Time
}

// MetricsService reconciles rollups and live data into OEE metrics.
type MetricsService struct {
	store      Store
	cfg        Config
	clock      oee.Clock
	logger     *log.Logger
	planner    *HybridPlanner
	live       *LiveSource
	aggregator *RollupAggregator
}

// NewMetricsService constructs the service.
func NewMetricsService(store Store, cfg Config, clock oee.Clock, logger *log.Logger) (*MetricsService, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if clock == nil {
		clock = oee.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg = cfg.withDefaults()
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	planner, err := NewHybridPlanner(loc)
	if err != nil {
		return nil, err
	}
	bookend, err := NewBookendResolver(store, clock)
	if err != nil {
		return nil, err
	}
	live, err := NewLiveSource(store, bookend, cfg.CountTimestampThreshold)
	if err != nil {
		return nil, err
	}
	aggregator, err := NewRollupAggregator(store, cfg.DayCap, logger)
	if err != nil {
		return nil, err
	}
	return &MetricsService{
		store:      store,
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		planner:    planner,
		live:       live,
		aggregator: aggregator,
	}, nil
}

// Location returns the timezone days are computed in.
func (s *MetricsService) Location() *time.Location { return s.planner.Location() }

// ComputeMetrics plans the window, loads full days from rollups in one batch,
// computes partial days live per entity, and sums the disjoint partitions.
// Input errors are returned; per-entity failures are reported on the result.
func (s *MetricsService) ComputeMetrics(ctx context.Context, q MetricsQuery) (*MetricsResult, error) {
	started := time.Now()
	if !q.EntityType.IsValid() {
		return nil, oee.ErrInvalidEntityType
	}
	if q.EntityRef != "" && (q.EntityType == oee.EntityMachineItem || q.EntityType == oee.EntityOperatorItem) {
		if _, _, err := q.EntityRef.SplitItemRef(); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	window, err := oee.NewQueryWindow(q.Start, q.End, now, q.Filter...)
	if err != nil {
		return nil, err
	}
	window = window.SnapEndOfDay(now, s.planner.Location())

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	plan := s.planner.Plan(window, now, q.ForceLive)
	agg := s.loadCache(ctx, q, plan, now)

	refs, err := s.resolveEntities(ctx, q, agg)
	if err != nil {
		metrics.ObserveCompute(string(plan.State), metrics.ResultError, time.Since(started))
		return nil, err
	}

	result := &MetricsResult{
		QueryID:    uuid.NewString(),
		EntityType: q.EntityType,
		Window:     window,
		State:      plan.State,
		Strategy:   plan.Strategy(),
		ComputedAt: now,
	}
	for _, part := range plan.Partitions {
		result.Partitions = append(result.Partitions, PartitionReport{
			Day:      part.Day,
			Start:    part.Start,
			End:      part.End,
			Kind:     part.Kind,
			Strategy: part.Strategy,
			Reason:   part.Reason,
		})
		metrics.IncPartition(string(part.Strategy))
	}

	entities := make([]EntityResult, len(refs))
	var g errgroup.Group
	g.SetLimit(s.cfg.FanoutLimit)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			entities[i] = s.computeEntity(ctx, q.EntityType, ref, plan, agg, window)
			return nil
		})
	}
	_ = g.Wait()

	result.Entities = entities
	result.Fleet = fleetOf(entities, window.DurationSec())
	for _, entity := range entities {
		metrics.IncEntityOutcome(string(entity.Outcome))
		if entity.Outcome != OutcomeFailed {
			continue
		}
		s.logger.Printf("oee compute: entity failed query=%s type=%s entity=%s err=%v", result.QueryID, q.EntityType, entity.EntityRef, entity.Err)
		if errors.Is(entity.Err, context.DeadlineExceeded) || errors.Is(entity.Err, context.Canceled) {
			result.Degraded = true
		}
	}
	if result.Degraded {
		metrics.IncDegraded()
		s.logger.Printf("oee compute: degraded result query=%s timeout=%s", result.QueryID, s.cfg.RequestTimeout)
	}
	metrics.ObserveCompute(string(plan.State), metrics.ResultSuccess, time.Since(started))
	return result, nil
}

func (s *MetricsService) loadCache(ctx context.Context, q MetricsQuery, plan *Plan, now time.Time) *RollupAggregate {
	days := plan.CacheDays()
	if len(days) == 0 {
		return nil
	}

	filter := q.Filter
	if q.EntityRef != "" {
		filter = []oee.EntityRef{q.EntityRef}
	}

	var agg *RollupAggregate
	err := s.retry(ctx, "list_rollups", func() error {
		var err error
		agg, err = s.aggregator.Aggregate(ctx, q.EntityType, days, filter)
		return err
	})
	if err != nil {
		metrics.IncSubqueryFailure("list_rollups")
		s.logger.Printf("oee compute: rollup read failed, computing live type=%s err=%v", q.EntityType, err)
		for i := range plan.Partitions {
			if plan.Partitions[i].Strategy == oee.StrategyCache {
				plan.Reroute(i, ReasonCacheFailure)
				metrics.IncCacheFallback(ReasonCacheFailure)
			}
		}
		return nil
	}

	for i, part := range plan.Partitions {
		if part.Strategy != oee.StrategyCache {
			continue
		}
		if !agg.DayHasRows(part.Day) {
			plan.Reroute(i, ReasonCacheMiss)
			metrics.IncCacheFallback(ReasonCacheMiss)
			s.logger.Printf("oee compute: cache miss, computing live type=%s day=%s", q.EntityType, part.Day)
			continue
		}
		if part.Kind != oee.PartitionToday {
			continue
		}
		if age := now.Sub(agg.DayUpdatedAt(part.Day)); age > s.cfg.RollupMaxStaleness {
			plan.Reroute(i, ReasonCacheStale)
			metrics.IncCacheFallback(ReasonCacheStale)
			s.logger.Printf("oee compute: stale rollup, computing live type=%s day=%s age=%s max=%s", q.EntityType, part.Day, age, s.cfg.RollupMaxStaleness)
		}
	}
	return agg
}

func (s *MetricsService) resolveEntities(ctx context.Context, q MetricsQuery, agg *RollupAggregate) ([]oee.EntityRef, error) {
	if q.EntityRef != "" {
		return []oee.EntityRef{q.EntityRef}, nil
	}
	if len(q.Filter) > 0 {
		return uniqueRefs(q.Filter), nil
	}

	var active []oee.EntityRef
	err := s.retry(ctx, "list_entities", func() error {
		var err error
		active, err = s.store.ListActiveEntities(ctx, q.EntityType)
		return err
	})
	if err != nil {
		metrics.IncSubqueryFailure("list_entities")
		return nil, err
	}
	return uniqueRefs(append(active, agg.Entities()...)), nil
}

func (s *MetricsService) computeEntity(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, plan *Plan, agg *RollupAggregate, window oee.QueryWindow) EntityResult {
	result := EntityResult{EntityRef: ref}
	if err := ctx.Err(); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	var (
		live       LiveResult
		cachedDays []oee.DayKey
		usedLive   bool
	)
	openEnd := window.End
	for _, part := range plan.Partitions {
		if part.Strategy == oee.StrategyCache {
			if _, ok := agg.Lookup(ref, part.Day); ok {
				cachedDays = append(cachedDays, part.Day)
				continue
			}
		}

		var partial LiveResult
		err := s.retry(ctx, "live", func() error {
			var err error
			partial, err = s.live.Compute(ctx, entityType, ref, part.Range(), openEnd)
			return err
		})
		if err != nil {
			metrics.IncSubqueryFailure("live")
			result.Outcome = OutcomeFailed
			result.Err = err
			result.Totals = oee.Totals{}
			return result
		}
		usedLive = true
		live = live.merge(partial)
	}

	usedCache := len(cachedDays) > 0
	result.Totals = oee.SumTotals(agg.Sum(ref, cachedDays), live.Totals)
	result.Cycles = live.Cycles
	result.Faults = live.Faults
	found := usedCache || live.Found

	switch {
	case usedCache && usedLive:
		result.Strategy = oee.StrategyHybrid
	case usedCache:
		result.Strategy = oee.StrategyCache
	default:
		result.Strategy = oee.StrategyLive
	}
	if !found {
		result.Outcome = OutcomeNoData
		return result
	}
	result.Outcome = OutcomeOK
	result.Metrics = oee.CalculateMetrics(result.Totals, window.DurationSec())
	return result
}

func (s *MetricsService) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.Retry.InitialInterval
	policy.MaxInterval = s.cfg.Retry.MaxInterval
	policy.MaxElapsedTime = 0

	attempts := s.cfg.Retry.MaxAttempts
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			metrics.IncSubqueryRetry(op)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsQueryInputError(err)
}

// IsQueryInputError tells if a ComputeMetrics error is caused by the query.
func IsQueryInputError(err error) bool {
	return errors.Is(err, oee.ErrInvalidEntityType) ||
		errors.Is(err, oee.ErrInvalidEntityRef) ||
		errors.Is(err, oee.ErrEmptyEntityRef) ||
		errors.Is(err, oee.ErrInvalidWindow) ||
		errors.Is(err, oee.ErrZeroTime)
}

func fleetOf(entities []EntityResult, windowDurationSec float64) FleetResult {
	var fleet FleetResult
	for _, entity := range entities {
		if entity.Outcome != OutcomeOK {
			continue
		}
		fleet.Entities++
		fleet.Totals = fleet.Totals.Add(entity.Totals)
	}
	fleet.Metrics = oee.CalculateMetrics(fleet.Totals, windowDurationSec*float64(fleet.Entities))
	return fleet
}

func uniqueRefs(refs []oee.EntityRef) []oee.EntityRef {
	seen := make(map[oee.EntityRef]struct{}, len(refs))
	out := make([]oee.EntityRef, 0, len(refs))
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
