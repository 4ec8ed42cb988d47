package application

import (
	"context"
	"time"

	oee "oee-cloud/internal/oee/domain"
)

// EventReader reads the append-only state event stream.
// entityType is always a source type (machine or operator-machine).
type EventReader interface {
	// ListStateEvents returns events with Start <= timestamp <= End, oldest first.
	ListStateEvents(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.StateEvent, error)
	// NearestEventBefore returns the latest event strictly before t, or nil.
	NearestEventBefore(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, t time.Time) (*oee.StateEvent, error)
	// NearestEventAfter returns the earliest event strictly after t, or nil.
	NearestEventAfter(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, t time.Time) (*oee.StateEvent, error)
}

// SessionReader reads derived session read models.
type SessionReader interface {
	// ListSessions returns sessions overlapping r. Open sessions overlap when they start before r.End.
	ListSessions(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.Session, error)
	// ListFaultSessions returns fault sessions overlapping r.
	ListFaultSessions(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.FaultSession, error)
}

// RollupReader reads externally produced daily rollups.
type RollupReader interface {
	// ListRollups returns records with from <= date <= to. A nil filter returns every entity.
	ListRollups(ctx context.Context, entityType oee.EntityType, from, to oee.DayKey, filter []oee.EntityRef) ([]oee.RollupRecord, error)
}

// EntityLister lists entities for plant-wide aggregation.
type EntityLister interface {
	ListActiveEntities(ctx context.Context, entityType oee.EntityType) ([]oee.EntityRef, error)
}

// Store is the read-only data store the engine consumes.
type Store interface {
	EventReader
	SessionReader
	RollupReader
	EntityLister
}

// StateEventWriter appends state events. Used by ingest only.
type StateEventWriter interface {
	InsertStateEvents(ctx context.Context, entityType oee.EntityType, events []oee.StateEvent) (int, error)
}
