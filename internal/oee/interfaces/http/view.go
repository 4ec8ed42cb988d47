package oeehttp

import (
	"time"

	oeeapp "oee-cloud/internal/oee/application"
	oee "oee-cloud/internal/oee/domain"
)

const timeLayout = time.RFC3339

type partitionView struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Kind     string `json:"kind"`
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

type entityView struct {
	EntityRef string             `json:"entity_ref"`
	Outcome   string             `json:"outcome"`
	Strategy  string             `json:"strategy,omitempty"`
	Metrics   oee.Metrics        `json:"metrics"`
	Totals    oee.Totals         `json:"totals"`
	Cycles    *cyclesView        `json:"cycles,omitempty"`
	Faults    map[string]float64 `json:"faults,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type cyclesView struct {
	RunningSec float64 `json:"running_sec"`
	PausedSec  float64 `json:"paused_sec"`
	FaultSec   float64 `json:"fault_sec"`
	OfflineSec float64 `json:"offline_sec"`
}

type fleetView struct {
	Entities int         `json:"entities"`
	Metrics  oee.Metrics `json:"metrics"`
	Totals   oee.Totals  `json:"totals"`
}

type resultView struct {
	QueryID    string          `json:"query_id"`
	EntityType string          `json:"entity_type"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	State      string          `json:"state"`
	Strategy   string          `json:"strategy"`
	Degraded   bool            `json:"degraded"`
	ComputedAt string          `json:"computed_at"`
	Partitions []partitionView `json:"partitions"`
	Entities   []entityView    `json:"entities"`
	Fleet      fleetView       `json:"fleet"`
}

// newResultView shapes a result for JSON. Metrics are percentages rounded
// to two decimals; totals stay unrounded.
func newResultView(res *oeeapp.MetricsResult) resultView {
	view := resultView{
		QueryID:    res.QueryID,
		EntityType: string(res.EntityType),
		Start:      formatTime(res.Window.Start),
		End:        formatTime(res.Window.End),
		State:      string(res.State),
		Strategy:   string(res.Strategy),
		Degraded:   res.Degraded,
		ComputedAt: formatTime(res.ComputedAt),
		Partitions: make([]partitionView, 0, len(res.Partitions)),
		Entities:   make([]entityView, 0, len(res.Entities)),
		Fleet: fleetView{
			Entities: res.Fleet.Entities,
			Metrics:  res.Fleet.Metrics.Percent(),
			Totals:   res.Fleet.Totals,
		},
	}
	for _, part := range res.Partitions {
		view.Partitions = append(view.Partitions, partitionView{
			Day:      part.Day.String(),
			Start:    formatTime(part.Start),
			End:      formatTime(part.End),
			Kind:     string(part.Kind),
			Strategy: string(part.Strategy),
			Reason:   part.Reason,
		})
	}
	for _, entity := range res.Entities {
		ev := entityView{
			EntityRef: string(entity.EntityRef),
			Outcome:   string(entity.Outcome),
			Strategy:  string(entity.Strategy),
			Metrics:   entity.Metrics.Percent(),
			Totals:    entity.Totals,
			Faults:    entity.Faults,
		}
		if entity.Cycles != (oee.CycleSummary{}) {
			ev.Cycles = &cyclesView{
				RunningSec: entity.Cycles.RunningSec,
				PausedSec:  entity.Cycles.PausedSec,
				FaultSec:   entity.Cycles.FaultSec,
				OfflineSec: entity.Cycles.OfflineSec,
			}
		}
		if entity.Err != nil {
			ev.Error = entity.Err.Error()
		}
		view.Entities = append(view.Entities, ev)
	}
	return view
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}
