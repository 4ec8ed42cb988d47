package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	oee "oee-cloud/internal/oee/domain"
	"oee-cloud/internal/oee/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func day(d, hour, minute int) time.Time {
	return time.Date(2026, time.March, d, hour, minute, 0, 0, time.UTC)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.InitialInterval = time.Millisecond
	cfg.Retry.MaxInterval = 2 * time.Millisecond
	return cfg
}

func newTestService(t *testing.T, store Store, cfg Config, now time.Time) *MetricsService {
	t.Helper()
	svc, err := NewMetricsService(store, cfg, fixedClock{now: now}, nil)
	if err != nil {
		t.Fatalf("new metrics service: %v", err)
	}
	return svc
}

// seedRun writes a two-hour run for ref starting at start: a run event, a
// pause event and the matching closed session.
func seedRun(t *testing.T, store *memory.Store, ref oee.EntityRef, start time.Time) {
	t.Helper()
	end := start.Add(2 * time.Hour)
	_, err := store.InsertStateEvents(context.Background(), oee.EntityMachine, []oee.StateEvent{
		{EntityRef: ref, Timestamp: start, StatusCode: oee.StatusRunning},
		{EntityRef: ref, Timestamp: end, StatusCode: oee.StatusPaused},
	})
	if err != nil {
		t.Fatalf("insert events: %v", err)
	}
	store.AddSession(oee.EntityMachine, oee.Session{
		EntityRef:     ref,
		Start:         start,
		End:           end,
		RuntimeSec:    7200,
		WorkedTimeSec: 7000,
		TimeCreditSec: 5600,
		ValidCount:    90,
		MisfeedCount:  10,
	})
}

// seedRollup writes the rollup a run seeded by seedRun produces for its day.
func seedRollup(t *testing.T, store *memory.Store, ref oee.EntityRef, key oee.DayKey, updatedAt time.Time) {
	t.Helper()
	err := store.PutRollup(oee.RollupRecord{
		EntityType:    oee.EntityMachine,
		EntityKey:     string(ref),
		SourceKey:     string(ref),
		Date:          key,
		RuntimeMs:     7_200_000,
		WorkedTimeMs:  7_000_000,
		TimeCreditMs:  5_600_000,
		TotalCounts:   90,
		TotalMisfeeds: 10,
		UpdatedAt:     updatedAt,
	})
	if err != nil {
		t.Fatalf("put rollup: %v", err)
	}
}

func assertTotals(t *testing.T, got, want oee.Totals) {
	t.Helper()
	const eps = 1e-6
	if math.Abs(got.RuntimeSec-want.RuntimeSec) > eps ||
		math.Abs(got.WorkedTimeSec-want.WorkedTimeSec) > eps ||
		math.Abs(got.TimeCreditSec-want.TimeCreditSec) > eps ||
		math.Abs(got.FaultTimeSec-want.FaultTimeSec) > eps ||
		got.ValidCount != want.ValidCount ||
		got.MisfeedCount != want.MisfeedCount {
		t.Fatalf("totals mismatch:\n got=%+v\nwant=%+v", got, want)
	}
}

func onlyEntity(t *testing.T, result *MetricsResult) EntityResult {
	t.Helper()
	if len(result.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(result.Entities))
	}
	return result.Entities[0]
}

var errTransient = errors.New("store: connection reset")

// flakyStore fails ListSessions for selected entities. A negative budget
// fails forever.
type flakyStore struct {
	*memory.Store
	mu       sync.Mutex
	failures map[oee.EntityRef]int
	calls    map[oee.EntityRef]int
}

func newFlakyStore(store *memory.Store, failures map[oee.EntityRef]int) *flakyStore {
	return &flakyStore{Store: store, failures: failures, calls: make(map[oee.EntityRef]int)}
}

func (f *flakyStore) ListSessions(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.Session, error) {
	f.mu.Lock()
	f.calls[ref]++
	budget := f.failures[ref]
	if budget > 0 {
		f.failures[ref] = budget - 1
	}
	f.mu.Unlock()
	if budget != 0 {
		return nil, errTransient
	}
	return f.Store.ListSessions(ctx, entityType, ref, r)
}

func (f *flakyStore) callsFor(ref oee.EntityRef) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ref]
}

// blockingStore never answers event reads before the context ends.
type blockingStore struct {
	*memory.Store
}

func (b blockingStore) ListStateEvents(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, r oee.TimeRange) ([]oee.StateEvent, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// failingRollups fails every rollup read.
type failingRollups struct {
	*memory.Store
}

func (failingRollups) ListRollups(ctx context.Context, entityType oee.EntityType, from, to oee.DayKey, filter []oee.EntityRef) ([]oee.RollupRecord, error) {
	return nil, errTransient
}
