package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	oee "oee-cloud/internal/oee/domain"
)

// Store is an in-memory store for demo/testing.
// It implements every read port of the engine plus the ingest writer.
type Store struct {
	mu       sync.RWMutex
	events   map[entityKey][]oee.StateEvent
	sessions map[entityKey][]oee.Session
	faults   map[entityKey][]oee.FaultSession
	rollups  map[rollupKey]oee.RollupRecord
	entities map[oee.EntityType]map[oee.EntityRef]struct{}
}

type entityKey struct {
	entityType oee.EntityType
	ref        oee.EntityRef
}

type rollupKey struct {
	entityType oee.EntityType
	entityKey  string
	sourceKey  string
	date       oee.DayKey
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		events:   make(map[entityKey][]oee.StateEvent),
		sessions: make(map[entityKey][]oee.Session),
		faults:   make(map[entityKey][]oee.FaultSession),
		rollups:  make(map[rollupKey]oee.RollupRecord),
		entities: make(map[oee.EntityType]map[oee.EntityRef]struct{}),
	}
}

// InsertStateEvents upserts events by entity and timestamp.
func (s *Store) InsertStateEvents(ctx context.Context, entityType oee.EntityType, events []oee.StateEvent) (int, error) {
	_ = ctx
	if !entityType.IsValid() {
		return 0, oee.ErrInvalidEntityType
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return inserted, err
		}
		key := entityKey{entityType: entityType, ref: evt.EntityRef}
		list := s.events[key]
		replaced := false
		for i := range list {
			if list[i].Timestamp.Equal(evt.Timestamp) {
				list[i] = evt
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, evt)
			inserted++
		}
		s.events[key] = oee.SortEvents(list)
		s.registerLocked(entityType, evt.EntityRef)
	}
	return inserted, nil
}

// AddSession stores a session for an entity.
func (s *Store) AddSession(entityType oee.EntityType, session oee.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey{entityType: entityType, ref: session.EntityRef}
	s.sessions[key] = append(s.sessions[key], session)
	s.registerLocked(entityType, session.EntityRef)
}

// AddFaultSession stores a fault session for an entity.
func (s *Store) AddFaultSession(entityType oee.EntityType, fault oee.FaultSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey{entityType: entityType, ref: fault.EntityRef}
	s.faults[key] = append(s.faults[key], fault)
}

// PutRollup upserts a rollup row by type, entity, source and date.
func (s *Store) PutRollup(record oee.RollupRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollups[rollupKey{
		entityType: record.EntityType,
		entityKey:  record.EntityKey,
		sourceKey:  record.SourceKey,
		date:       record.Date,
	}] = record
	return nil
}

// RegisterEntity marks an entity active.
func (s *Store) RegisterEntity(entityType oee.EntityType, ref oee.EntityRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(entityType, ref)
}

func (s *Store) registerLocked(entityType oee.EntityType, ref oee.EntityRef) {
	set := s.entities[entityType]
	if set == nil {
		set = make(map[oee.EntityRef]struct{})
		s.entities[entityType] = set
	}
	set[ref] = struct{}{}
}

// ListStateEvents returns events with Start <= timestamp <= End.
func (s *Store) ListStateEvents(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.StateEvent, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []oee.StateEvent
	for _, evt := range s.events[entityKey{entityType: entityType, ref: ref}] {
		if evt.Timestamp.Before(r.Start) || evt.Timestamp.After(r.End) {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}

// NearestEventBefore returns the latest event strictly before t.
func (s *Store) NearestEventBefore(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, t time.Time) (*oee.StateEvent, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.events[entityKey{entityType: entityType, ref: ref}]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Timestamp.Before(t) {
			evt := list[i]
			return &evt, nil
		}
	}
	return nil, nil
}

// NearestEventAfter returns the earliest event strictly after t.
func (s *Store) NearestEventAfter(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, t time.Time) (*oee.StateEvent, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, evt := range s.events[entityKey{entityType: entityType, ref: ref}] {
		if evt.Timestamp.After(t) {
			found := evt
			return &found, nil
		}
	}
	return nil, nil
}

// ListSessions returns sessions overlapping r.
func (s *Store) ListSessions(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.Session, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []oee.Session
	for _, session := range s.sessions[entityKey{entityType: entityType, ref: ref}] {
		if overlaps(session.Start, session.End, r) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ListFaultSessions returns fault sessions overlapping r.
func (s *Store) ListFaultSessions(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.FaultSession, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []oee.FaultSession
	for _, fault := range s.faults[entityKey{entityType: entityType, ref: ref}] {
		if overlaps(fault.Start, fault.End, r) {
			out = append(out, fault)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ListRollups returns rows with from <= date <= to.
func (s *Store) ListRollups(ctx context.Context, entityType oee.EntityType, from, to oee.DayKey, filter []oee.EntityRef) ([]oee.RollupRecord, error) {
	_ = ctx
	var allowed map[string]struct{}
	if len(filter) > 0 {
		allowed = make(map[string]struct{}, len(filter))
		for _, ref := range filter {
			allowed[string(ref)] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []oee.RollupRecord
	for key, record := range s.rollups {
		if key.entityType != entityType || key.date < from || key.date > to {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[key.entityKey]; !ok {
				continue
			}
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].EntityKey != out[j].EntityKey {
			return out[i].EntityKey < out[j].EntityKey
		}
		return out[i].SourceKey < out[j].SourceKey
	})
	return out, nil
}

// ListActiveEntities returns registered entities. Item-scoped types are
// derived from session item allocations.
func (s *Store) ListActiveEntities(ctx context.Context, entityType oee.EntityType) ([]oee.EntityRef, error) {
	_ = ctx
	if !entityType.IsValid() {
		return nil, oee.ErrInvalidEntityType
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[oee.EntityRef]struct{})
	for ref := range s.entities[entityType] {
		set[ref] = struct{}{}
	}
	if entityType.IsItemScoped() {
		source := entityType.SourceType()
		for key, sessions := range s.sessions {
			if key.entityType != source {
				continue
			}
			for _, session := range sessions {
				for _, item := range session.Items {
					if entityType == oee.EntityItem {
						set[oee.EntityRef(item.ItemID)] = struct{}{}
						continue
					}
					set[oee.NewItemRef(string(key.ref), item.ItemID)] = struct{}{}
				}
			}
		}
	}

	out := make([]oee.EntityRef, 0, len(set))
	for ref := range set {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func overlaps(start, end time.Time, r oee.TimeRange) bool {
	if !start.Before(r.End) {
		return false
	}
	return end.IsZero() || end.After(r.Start)
}
