package application

import (
	"context"
	"testing"
	"time"

	oee "oee-cloud/internal/oee/domain"
	"oee-cloud/internal/oee/infrastructure/memory"
)

func TestBookendResolver_UsesBracketingEvents(t *testing.T) {
	store := memory.NewStore()
	_, err := store.InsertStateEvents(context.Background(), oee.EntityMachine, []oee.StateEvent{
		{EntityRef: "M-1", Timestamp: day(10, 6, 0), StatusCode: oee.StatusRunning},
		{EntityRef: "M-1", Timestamp: day(10, 9, 0), StatusCode: oee.StatusPaused},
		{EntityRef: "M-1", Timestamp: day(10, 11, 0), StatusCode: oee.StatusRunning},
	})
	if err != nil {
		t.Fatalf("insert events: %v", err)
	}
	resolver, err := NewBookendResolver(store, fixedClock{now: day(10, 12, 0)})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	got, err := resolver.Resolve(context.Background(), oee.EntityMachine, "M-1", day(10, 8, 0), day(10, 10, 0))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a session window")
	}
	if !got.SessionStart.Equal(day(10, 8, 0)) || !got.SessionEnd.Equal(day(10, 9, 0)) {
		t.Fatalf("session window mismatch: %s - %s", got.SessionStart, got.SessionEnd)
	}
	if len(got.Events) != 1 || !got.Events[0].Timestamp.Equal(day(10, 9, 0)) {
		t.Fatalf("events must be limited to the session window: %+v", got.Events)
	}
	if got.Cycles.Total(oee.CyclePaused) != time.Hour {
		t.Fatalf("paused total mismatch: %s", got.Cycles.Total(oee.CyclePaused))
	}
}

func TestBookendResolver_NoRunningCycleReturnsNil(t *testing.T) {
	store := memory.NewStore()
	_, err := store.InsertStateEvents(context.Background(), oee.EntityMachine, []oee.StateEvent{
		{EntityRef: "M-1", Timestamp: day(10, 7, 0), StatusCode: oee.StatusPaused},
		{EntityRef: "M-1", Timestamp: day(10, 9, 0), StatusCode: oee.StatusCode(4)},
	})
	if err != nil {
		t.Fatalf("insert events: %v", err)
	}
	resolver, err := NewBookendResolver(store, fixedClock{now: day(10, 12, 0)})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	got, err := resolver.Resolve(context.Background(), oee.EntityMachine, "M-1", day(10, 8, 0), day(10, 10, 0))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}

	got, err = resolver.Resolve(context.Background(), oee.EntityMachine, "M-404", day(10, 8, 0), day(10, 10, 0))
	if err != nil || got != nil {
		t.Fatalf("unknown entity must resolve to nil: got=%+v err=%v", got, err)
	}
}

func TestBookendResolver_OpenRunClosesAtNow(t *testing.T) {
	store := memory.NewStore()
	_, err := store.InsertStateEvents(context.Background(), oee.EntityMachine, []oee.StateEvent{
		{EntityRef: "M-1", Timestamp: day(10, 7, 0), StatusCode: oee.StatusRunning},
	})
	if err != nil {
		t.Fatalf("insert events: %v", err)
	}
	resolver, err := NewBookendResolver(store, fixedClock{now: day(10, 9, 30)})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	got, err := resolver.Resolve(context.Background(), oee.EntityMachine, "M-1", day(10, 8, 0), day(10, 10, 0))
	if err != nil || got == nil {
		t.Fatalf("resolve: got=%+v err=%v", got, err)
	}
	if !got.SessionStart.Equal(day(10, 8, 0)) || !got.SessionEnd.Equal(day(10, 9, 30)) {
		t.Fatalf("open run must end at now: %s - %s", got.SessionStart, got.SessionEnd)
	}
}
