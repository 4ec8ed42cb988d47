package oee

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// rollupDocument covers both stored rollup generations. Flat documents carry
// the sums at the top level with a "date" string; nested documents group them
// under metrics.timers / metrics.totals with a "dateObj" timestamp.
type rollupDocument struct {
	Date          string     `json:"date"`
	DateObj       *time.Time `json:"dateObj"`
	Runtime       *float64   `json:"runtime"`
	WorkedTime    *float64   `json:"workedTime"`
	TimeCredit    *float64   `json:"timeCredit"`
	TotalCounts   *float64   `json:"totalCounts"`
	TotalMisfeeds *float64   `json:"totalMisfeeds"`
	FaultTime     *float64   `json:"faultTime"`
	Metrics       *struct {
		Timers struct {
			Run    float64 `json:"run"`
			Worked float64 `json:"worked"`
			Fault  float64 `json:"fault"`
		} `json:"timers"`
		Totals struct {
			TimeCredit float64 `json:"timeCredit"`
			Counts     float64 `json:"counts"`
			Misfeeds   float64 `json:"misfeeds"`
		} `json:"totals"`
	} `json:"metrics"`
}

// DecodeRollupDocument maps a stored rollup payload onto the canonical record
// sums. Durations are milliseconds in both shapes. The returned record has no
// identity fields; Date is empty when the document carries none.
func DecodeRollupDocument(data []byte, loc *time.Location) (RollupRecord, error) {
	var doc rollupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return RollupRecord{}, errors.Join(ErrInvalidRollupDocument, err)
	}

	var rec RollupRecord
	switch {
	case doc.Metrics != nil:
		rec.RuntimeMs = toInt64(doc.Metrics.Timers.Run)
		rec.WorkedTimeMs = toInt64(doc.Metrics.Timers.Worked)
		rec.FaultTimeMs = toInt64(doc.Metrics.Timers.Fault)
		rec.TimeCreditMs = toInt64(doc.Metrics.Totals.TimeCredit)
		rec.TotalCounts = toInt64(doc.Metrics.Totals.Counts)
		rec.TotalMisfeeds = toInt64(doc.Metrics.Totals.Misfeeds)
	case doc.Runtime != nil || doc.WorkedTime != nil || doc.TotalCounts != nil:
		rec.RuntimeMs = toInt64(deref(doc.Runtime))
		rec.WorkedTimeMs = toInt64(deref(doc.WorkedTime))
		rec.TimeCreditMs = toInt64(deref(doc.TimeCredit))
		rec.TotalCounts = toInt64(deref(doc.TotalCounts))
		rec.TotalMisfeeds = toInt64(deref(doc.TotalMisfeeds))
		rec.FaultTimeMs = toInt64(deref(doc.FaultTime))
	default:
		return RollupRecord{}, ErrInvalidRollupDocument
	}

	switch {
	case doc.DateObj != nil && !doc.DateObj.IsZero():
		rec.Date = NewDayKey(*doc.DateObj, loc)
	case doc.Date != "":
		day, err := normalizeDate(doc.Date, loc)
		if err != nil {
			return RollupRecord{}, err
		}
		rec.Date = day
	}
	return rec, nil
}

func normalizeDate(value string, loc *time.Location) (DayKey, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := ParseDayKey(value, loc); err == nil {
		return DayKey(value), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "", ErrInvalidDayKey
	}
	return NewDayKey(t, loc), nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func toInt64(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}
