package oee

import (
	"math"
	"testing"
)

func TestCalculateMetrics(t *testing.T) {
	totals := Totals{
		RuntimeSec:    3600,
		WorkedTimeSec: 3000,
		TimeCreditSec: 2400,
		ValidCount:    90,
		MisfeedCount:  10,
	}

	m := CalculateMetrics(totals, 7200)
	if m.Availability != 0.5 {
		t.Fatalf("availability mismatch: %v", m.Availability)
	}
	if m.Efficiency != 0.8 {
		t.Fatalf("efficiency mismatch: %v", m.Efficiency)
	}
	if m.Throughput != 0.9 {
		t.Fatalf("throughput mismatch: %v", m.Throughput)
	}
	if math.Abs(m.OEE-0.36) > 1e-12 {
		t.Fatalf("oee mismatch: %v", m.OEE)
	}

	pct := m.Percent()
	if pct.OEE != 36 || pct.Availability != 50 || pct.Efficiency != 80 || pct.Throughput != 90 {
		t.Fatalf("percent mismatch: %+v", pct)
	}
}

func TestCalculateMetrics_ZeroDenominators(t *testing.T) {
	m := CalculateMetrics(Totals{RuntimeSec: 10, TimeCreditSec: 5}, 0)
	if m != (Metrics{}) {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
	for _, v := range []float64{m.Availability, m.Efficiency, m.Throughput, m.OEE} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("metric must not be NaN/Inf: %+v", m)
		}
	}
}

func TestCalculateMetrics_OEEBounded(t *testing.T) {
	m := CalculateMetrics(Totals{RuntimeSec: 100, WorkedTimeSec: 100, TimeCreditSec: 100, ValidCount: 1}, 100)
	if m.OEE != 1 {
		t.Fatalf("expected OEE 1, got %v", m.OEE)
	}
	m = CalculateMetrics(Totals{RuntimeSec: 10, WorkedTimeSec: 80, TimeCreditSec: 20, ValidCount: 1, MisfeedCount: 3}, 100)
	if m.OEE < 0 || m.OEE > 1 {
		t.Fatalf("OEE out of range: %v", m.OEE)
	}
}

func TestPercent_RoundsAtBoundaryOnly(t *testing.T) {
	m := Metrics{Availability: 1.0 / 3, Efficiency: 2.0 / 3, Throughput: 1}
	m.OEE = m.Availability * m.Efficiency * m.Throughput

	pct := m.Percent()
	if pct.Availability != 33.33 || pct.Efficiency != 66.67 {
		t.Fatalf("rounding mismatch: %+v", pct)
	}
	if pct.OEE != 22.22 {
		t.Fatalf("OEE must be rounded from the fractional product: got=%v", pct.OEE)
	}
}

func TestSumTotals(t *testing.T) {
	a := Totals{RuntimeSec: 100, WorkedTimeSec: 90, TimeCreditSec: 80, ValidCount: 7, MisfeedCount: 1, FaultTimeSec: 5}
	b := Totals{RuntimeSec: 50, WorkedTimeSec: 40, TimeCreditSec: 30, ValidCount: 3, MisfeedCount: 2}

	if got := SumTotals(); got != (Totals{}) {
		t.Fatalf("empty sum should be zero: %+v", got)
	}
	want := Totals{RuntimeSec: 150, WorkedTimeSec: 130, TimeCreditSec: 110, ValidCount: 10, MisfeedCount: 3, FaultTimeSec: 5}
	if got := SumTotals(a, b); got != want {
		t.Fatalf("sum mismatch: got=%+v want=%+v", got, want)
	}
}
