package oee

import (
	"testing"
	"time"
)

func TestSessionProrate(t *testing.T) {
	s := Session{
		EntityRef:     "M-1",
		Start:         at(8, 0),
		End:           at(8, 40),
		RuntimeSec:    2400,
		WorkedTimeSec: (40 * time.Minute).Seconds(),
		TimeCreditSec: 1800,
		ValidCount:    10,
	}

	got := s.Prorate(TimeRange{Start: at(8, 20), End: at(9, 0)}, at(9, 0), 0)
	if got.WorkedTimeSec != (20 * time.Minute).Seconds() {
		t.Fatalf("worked time mismatch: got=%v", got.WorkedTimeSec)
	}
	if got.RuntimeSec != 1200 || got.TimeCreditSec != 900 || got.ValidCount != 5 {
		t.Fatalf("prorated totals mismatch: %+v", got)
	}
}

func TestSessionProrate_OpenSessionUsesQueryEnd(t *testing.T) {
	s := Session{EntityRef: "M-1", Start: at(8, 0), RuntimeSec: 7200}
	openEnd := at(10, 0)

	first := s.Prorate(TimeRange{Start: at(8, 0), End: at(9, 0)}, openEnd, 0)
	second := s.Prorate(TimeRange{Start: at(9, 0), End: at(10, 0)}, openEnd, 0)
	whole := s.Prorate(TimeRange{Start: at(8, 0), End: at(10, 0)}, openEnd, 0)

	if first.RuntimeSec+second.RuntimeSec != whole.RuntimeSec {
		t.Fatalf("open session proration must be additive: %v + %v != %v", first.RuntimeSec, second.RuntimeSec, whole.RuntimeSec)
	}
	if whole.RuntimeSec != 7200 {
		t.Fatalf("whole window must keep the full runtime: %v", whole.RuntimeSec)
	}
}

func TestSessionProrateItem(t *testing.T) {
	s := Session{
		EntityRef: "M-1",
		Start:     at(8, 0),
		End:       at(9, 0),
		Items: []SessionItem{
			{ItemID: "towel", RuntimeSec: 1800, ValidCount: 100},
			{ItemID: "sheet", RuntimeSec: 1800, ValidCount: 40},
		},
	}

	got, ok := s.ProrateItem("sheet", TimeRange{Start: at(8, 30), End: at(9, 0)}, at(9, 0))
	if !ok {
		t.Fatalf("expected item in session")
	}
	if got.RuntimeSec != 900 || got.ValidCount != 20 {
		t.Fatalf("item proration mismatch: %+v", got)
	}
	if _, ok := s.ProrateItem("napkin", TimeRange{Start: at(8, 0), End: at(9, 0)}, at(9, 0)); ok {
		t.Fatalf("unexpected item match")
	}
}

func TestFaultSessionProrate(t *testing.T) {
	f := FaultSession{EntityRef: "M-1", Start: at(8, 30), End: at(9, 30), FaultTimeSec: 3600, FaultLabel: "jam"}
	if got := f.Prorate(TimeRange{Start: at(8, 0), End: at(9, 0)}, at(10, 0)); got != 1800 {
		t.Fatalf("fault proration mismatch: %v", got)
	}
}
