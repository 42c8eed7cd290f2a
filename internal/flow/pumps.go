package flow

import (
	"time"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

// PumpFlowSample is the pump-derived flow at one level sample.
type PumpFlowSample struct {
	Date    time.Time `json:"date"`
	PerPump []float64 `json:"per_pump"`
	Total   float64   `json:"total"`
}

// PumpFlow evaluates the configured pumps at every level sample. A pump
// contributes its flow rate while its latest known state at that instant is
// exactly 1; a pump with no state yet counts as stopped. It returns nil when
// the channel does not use pump flow.
//
// The result is an additional signal and does not replace the trend based
// rates of Derive.
func PumpFlow(data *telemetry.ChannelData, ch channels.Channel) []PumpFlowSample {
	if !ch.UsePumpFlow || len(ch.Pumps) == 0 {
		return nil
	}

	schema := telemetry.SchemaFor(ch)
	level := data.Series(schema.Level)
	states := make([][]telemetry.Sample, len(schema.Pumps))
	for i, key := range schema.Pumps {
		states[i] = data.Series(key)
	}
	cursor := make([]int, len(states))

	out := make([]PumpFlowSample, 0, len(level))
	for _, s := range level {
		row := PumpFlowSample{Date: s.Date, PerPump: make([]float64, len(ch.Pumps))}
		for i, series := range states {
			for cursor[i] < len(series) && !series[cursor[i]].Date.After(s.Date) {
				cursor[i]++
			}
			if cursor[i] > 0 && series[cursor[i]-1].Value == 1 {
				row.PerPump[i] = ch.Pumps[i].FlowRate
				row.Total += ch.Pumps[i].FlowRate
			}
		}
		out = append(out, row)
	}
	return out
}
