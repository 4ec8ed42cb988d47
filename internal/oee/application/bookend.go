package application

import (
	"context"
	"time"

	oee "oee-cloud/internal/oee/domain"
)

// BookendResult is the true session window found inside a raw window.
type BookendResult struct {
	SessionStart time.Time
	SessionEnd   time.Time
	Events       []oee.StateEvent
	Cycles       oee.CycleSet
}

// Range returns [SessionStart, SessionEnd).
func (r BookendResult) Range() oee.TimeRange {
	return oee.TimeRange{Start: r.SessionStart, End: r.SessionEnd}
}

// BookendResolver finds the first-to-last running cycle span of an entity
// using the nearest events bracketing a raw window.
type BookendResolver struct {
	events EventReader
	clock  oee.Clock
}

// NewBookendResolver constructs a resolver.
func NewBookendResolver(events EventReader, clock oee.Clock) (*BookendResolver, error) {
	if events == nil {
		return nil, ErrNilStore
	}
	if clock == nil {
		clock = oee.SystemClock{}
	}
	return &BookendResolver{events: events, clock: clock}, nil
}

// Resolve returns nil without error when the entity has no running cycle in
// [rawStart, rawEnd]. Callers skip the entity in that case.
func (r *BookendResolver) Resolve(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, rawStart, rawEnd time.Time) (*BookendResult, error) {
	if ref == "" {
		return nil, oee.ErrEmptyEntityRef
	}
	if rawStart.IsZero() || rawEnd.IsZero() {
		return nil, oee.ErrZeroTime
	}
	if !rawEnd.After(rawStart) {
		return nil, oee.ErrInvalidWindow
	}
	sourceType := entityType.SourceType()

	inside, err := r.events.ListStateEvents(ctx, sourceType, ref, oee.TimeRange{Start: rawStart, End: rawEnd})
	if err != nil {
		return nil, err
	}
	before, err := r.events.NearestEventBefore(ctx, sourceType, ref, rawStart)
	if err != nil {
		return nil, err
	}
	after, err := r.events.NearestEventAfter(ctx, sourceType, ref, rawEnd)
	if err != nil {
		return nil, err
	}

	merged := make([]oee.StateEvent, 0, len(inside)+2)
	if before != nil {
		merged = append(merged, *before)
	}
	merged = append(merged, inside...)
	if after != nil {
		merged = append(merged, *after)
	}
	merged = oee.SortEvents(merged)

	cycles := oee.ExtractCycles(merged, rawStart, rawEnd, r.clock.Now())
	if len(cycles.Running) == 0 {
		return nil, nil
	}

	result := &BookendResult{
		SessionStart: cycles.Running[0].Start,
		SessionEnd:   cycles.Running[len(cycles.Running)-1].End,
		Cycles:       cycles,
	}
	for _, evt := range merged {
		if evt.Timestamp.Before(result.SessionStart) || evt.Timestamp.After(result.SessionEnd) {
			continue
		}
		result.Events = append(result.Events, evt)
	}
	return result, nil
}
