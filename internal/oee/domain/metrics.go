package oee

import "math"

// Totals are the additive quantities metrics are computed from.
// Every field sums across disjoint time ranges.
type Totals struct {
	RuntimeSec    float64 `json:"runtime_sec"`
	WorkedTimeSec float64 `json:"worked_time_sec"`
	TimeCreditSec float64 `json:"time_credit_sec"`
	ValidCount    int64   `json:"valid_count"`
	MisfeedCount  int64   `json:"misfeed_count"`
	FaultTimeSec  float64 `json:"fault_time_sec"`
}

// Add sums two totals.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		RuntimeSec:    t.RuntimeSec + o.RuntimeSec,
		WorkedTimeSec: t.WorkedTimeSec + o.WorkedTimeSec,
		TimeCreditSec: t.TimeCreditSec + o.TimeCreditSec,
		ValidCount:    t.ValidCount + o.ValidCount,
		MisfeedCount:  t.MisfeedCount + o.MisfeedCount,
		FaultTimeSec:  t.FaultTimeSec + o.FaultTimeSec,
	}
}

// SumTotals folds a list of totals.
func SumTotals(items ...Totals) Totals {
	var sum Totals
	for _, item := range items {
		sum = sum.Add(item)
	}
	return sum
}

// Metrics are fractional OEE ratios. They stay fractional until Percent is
// called at the output boundary.
type Metrics struct {
	Availability float64 `json:"availability"`
	Efficiency   float64 `json:"efficiency"`
	Throughput   float64 `json:"throughput"`
	OEE          float64 `json:"oee"`
}

// CalculateMetrics derives availability, efficiency, throughput and OEE.
// Every ratio yields 0 when its denominator is not positive.
func CalculateMetrics(t Totals, windowDurationSec float64) Metrics {
	m := Metrics{
		Availability: ratio(t.RuntimeSec, windowDurationSec),
		Efficiency:   ratio(t.TimeCreditSec, t.WorkedTimeSec),
		Throughput:   ratio(float64(t.ValidCount), float64(t.ValidCount+t.MisfeedCount)),
	}
	m.OEE = m.Availability * m.Efficiency * m.Throughput
	return m
}

// Percent scales every ratio to a percentage rounded to 2 decimals.
func (m Metrics) Percent() Metrics {
	return Metrics{
		Availability: Round2(m.Availability * 100),
		Efficiency:   Round2(m.Efficiency * 100),
		Throughput:   Round2(m.Throughput * 100),
		OEE:          Round2(m.OEE * 100),
	}
}

// Round2 rounds to 2 decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func ratio(numerator, denominator float64) float64 {
	if denominator <= 0 || math.IsNaN(denominator) || math.IsInf(denominator, 0) {
		return 0
	}
	r := numerator / denominator
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
