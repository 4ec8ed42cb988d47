package oee

import (
	"math"
	"testing"
	"time"
)

func TestComputeOverlap_PartialSession(t *testing.T) {
	ov := ComputeOverlap(at(8, 0), at(8, 40), at(8, 20), at(9, 0))
	if ov.OverlapSec != 1200 {
		t.Fatalf("overlap seconds mismatch: got=%v want=1200", ov.OverlapSec)
	}
	if ov.FullSec != 2400 {
		t.Fatalf("full seconds mismatch: got=%v want=2400", ov.FullSec)
	}
	if ov.Factor != 0.5 {
		t.Fatalf("factor mismatch: got=%v want=0.5", ov.Factor)
	}
	if got := ov.Scale((40 * time.Minute).Seconds()); got != (20 * time.Minute).Seconds() {
		t.Fatalf("prorated worked time mismatch: got=%v", got)
	}
}

func TestComputeOverlap_Bounds(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
		want       float64
	}{
		{name: "contained", start: at(8, 10), end: at(8, 50), want: 1},
		{name: "disjoint before", start: at(6, 0), end: at(7, 0), want: 0},
		{name: "touching end", start: at(9, 0), end: at(9, 30), want: 0},
		{name: "covers window", start: at(7, 0), end: at(10, 0), want: 1.0 / 3},
		{name: "zero length", start: at(8, 30), end: at(8, 30), want: 0},
		{name: "inverted", start: at(8, 30), end: at(8, 10), want: 0},
	}
	for _, tc := range cases {
		ov := ComputeOverlap(tc.start, tc.end, at(8, 0), at(9, 0))
		if math.Abs(ov.Factor-tc.want) > 1e-9 {
			t.Fatalf("%s: factor mismatch: got=%v want=%v", tc.name, ov.Factor, tc.want)
		}
		if ov.Factor < 0 || ov.Factor > 1 {
			t.Fatalf("%s: factor out of range: %v", tc.name, ov.Factor)
		}
	}
}

func TestComputeOverlap_OpenRecordUsesWindowEnd(t *testing.T) {
	ov := ComputeOverlap(at(8, 30), time.Time{}, at(8, 0), at(9, 0))
	if ov.Factor != 1 {
		t.Fatalf("open record inside window must have factor 1, got %v", ov.Factor)
	}
	if ov.OverlapSec != 1800 {
		t.Fatalf("overlap seconds mismatch: got=%v", ov.OverlapSec)
	}
}

func TestProrateCount_ExactTimestamps(t *testing.T) {
	timestamps := []time.Time{at(8, 5), at(8, 20), at(8, 25), at(8, 39)}
	ov := ComputeOverlap(at(8, 0), at(8, 40), at(8, 20), at(9, 0))

	if got := ProrateCount(4, timestamps, 100, ov); got != 3 {
		t.Fatalf("exact count mismatch: got=%d want=3", got)
	}
}

func TestProrateCount_FallsBackToFactor(t *testing.T) {
	timestamps := []time.Time{at(8, 5), at(8, 6), at(8, 7), at(8, 8)}
	ov := ComputeOverlap(at(8, 0), at(8, 40), at(8, 20), at(9, 0))

	if got := ProrateCount(4, timestamps, 2, ov); got != 2 {
		t.Fatalf("threshold fallback mismatch: got=%d want=2", got)
	}
	if got := ProrateCount(11, nil, 0, ov); got != 6 {
		t.Fatalf("rounded fallback mismatch: got=%d want=6", got)
	}
	if got := ProrateCount(5, timestamps, 100, ov); got != 3 {
		t.Fatalf("partial timestamps must fall back: got=%d want=3", got)
	}
}

func TestProrateCount_PartitionsAddUp(t *testing.T) {
	timestamps := []time.Time{at(8, 0), at(8, 19), at(8, 20), at(8, 39)}
	first := ComputeOverlap(at(8, 0), at(8, 40), at(8, 0), at(8, 20))
	second := ComputeOverlap(at(8, 0), at(8, 40), at(8, 20), at(9, 0))

	sum := ProrateCount(4, timestamps, 100, first) + ProrateCount(4, timestamps, 100, second)
	if sum != 4 {
		t.Fatalf("boundary unit counted twice or dropped: got=%d", sum)
	}
}
