package application

import (
	"context"
	"time"

	oee "oee-cloud/internal/oee/domain"
)

// LiveResult is the live computation of one entity over one partition.
// Found is false when the entity had no running session in the partition.
type LiveResult struct {
	Totals oee.Totals
	Cycles oee.CycleSummary
	Faults map[string]float64
	Found  bool
}

func (r LiveResult) merge(o LiveResult) LiveResult {
	out := LiveResult{
		Totals: r.Totals.Add(o.Totals),
		Cycles: r.Cycles.Add(o.Cycles),
		Faults: mergeFaults(r.Faults, o.Faults),
		Found:  r.Found || o.Found,
	}
	return out
}

func mergeFaults(a, b map[string]float64) map[string]float64 {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]float64, len(a)+len(b))
	for label, sec := range a {
		out[label] += sec
	}
	for label, sec := range b {
		out[label] += sec
	}
	return out
}

// LiveSource computes totals from state events and sessions.
type LiveSource struct {
	bookend        *BookendResolver
	sessions       SessionReader
	entities       EntityLister
	countThreshold int
}

// NewLiveSource constructs a live source.
func NewLiveSource(store Store, bookend *BookendResolver, countThreshold int) (*LiveSource, error) {
	if store == nil || bookend == nil {
		return nil, ErrNilStore
	}
	if countThreshold <= 0 {
		countThreshold = oee.DefaultCountTimestampThreshold
	}
	return &LiveSource{
		bookend:        bookend,
		sessions:       store,
		entities:       store,
		countThreshold: countThreshold,
	}, nil
}

// Compute prorates the entity's sessions into part. openEnd closes open
// sessions and must be the same for every partition of one query.
func (s *LiveSource) Compute(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, part oee.TimeRange, openEnd time.Time) (LiveResult, error) {
	switch entityType {
	case oee.EntityItem:
		return s.computeItem(ctx, string(ref), part, openEnd)
	case oee.EntityMachineItem, oee.EntityOperatorItem:
		parent, item, err := ref.SplitItemRef()
		if err != nil {
			return LiveResult{}, err
		}
		return s.computeParentItem(ctx, entityType.SourceType(), oee.EntityRef(parent), item, part, openEnd)
	case oee.EntityMachine, oee.EntityOperatorMachine:
		return s.computeEntity(ctx, entityType, ref, part, openEnd)
	default:
		return LiveResult{}, oee.ErrInvalidEntityType
	}
}

func (s *LiveSource) computeEntity(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, part oee.TimeRange, openEnd time.Time) (LiveResult, error) {
	bk, err := s.bookend.Resolve(ctx, entityType, ref, part.Start, part.End)
	if err != nil {
		return LiveResult{}, err
	}
	if bk == nil {
		return LiveResult{}, nil
	}

	result := LiveResult{Found: true, Cycles: bk.Cycles.Summary()}

	sessions, err := s.sessions.ListSessions(ctx, entityType, ref, bk.Range())
	if err != nil {
		return LiveResult{}, err
	}
	for _, session := range sessions {
		result.Totals = result.Totals.Add(session.Prorate(part, openEnd, s.countThreshold))
	}
	if len(sessions) == 0 {
		result.Totals.RuntimeSec = result.Cycles.RunningSec
	}

	faults, err := s.sessions.ListFaultSessions(ctx, entityType, ref, part)
	if err != nil {
		return LiveResult{}, err
	}
	for _, fault := range faults {
		sec := fault.Prorate(part, openEnd)
		if sec <= 0 {
			continue
		}
		if result.Faults == nil {
			result.Faults = make(map[string]float64)
		}
		result.Faults[fault.FaultLabel] += sec
		result.Totals.FaultTimeSec += sec
	}
	if len(faults) == 0 {
		result.Totals.FaultTimeSec = result.Cycles.FaultSec
	}
	return result, nil
}

func (s *LiveSource) computeParentItem(ctx context.Context, sourceType oee.EntityType, parent oee.EntityRef, item string, part oee.TimeRange, openEnd time.Time) (LiveResult, error) {
	bk, err := s.bookend.Resolve(ctx, sourceType, parent, part.Start, part.End)
	if err != nil {
		return LiveResult{}, err
	}
	if bk == nil {
		return LiveResult{}, nil
	}

	sessions, err := s.sessions.ListSessions(ctx, sourceType, parent, bk.Range())
	if err != nil {
		return LiveResult{}, err
	}
	var result LiveResult
	for _, session := range sessions {
		totals, ok := session.ProrateItem(item, part, openEnd)
		if !ok {
			continue
		}
		result.Found = true
		result.Totals = result.Totals.Add(totals)
	}
	return result, nil
}

func (s *LiveSource) computeItem(ctx context.Context, item string, part oee.TimeRange, openEnd time.Time) (LiveResult, error) {
	if item == "" {
		return LiveResult{}, oee.ErrEmptyEntityRef
	}
	parents, err := s.entities.ListActiveEntities(ctx, oee.EntityMachine)
	if err != nil {
		return LiveResult{}, err
	}
	var result LiveResult
	for _, parent := range parents {
		if err := ctx.Err(); err != nil {
			return LiveResult{}, err
		}
		partial, err := s.computeParentItem(ctx, oee.EntityMachine, parent, item, part, openEnd)
		if err != nil {
			return LiveResult{}, err
		}
		result = result.merge(partial)
	}
	return result, nil
}
