// Package flow derives inflow, outflow and pumped volume from a station's
// level series.
//
// There is no outflow sensor. Inflow is read from rising level segments and
// the last observed inflow is assumed to persist through falling segments,
// against which the drop rate yields the outflow. The model is a heuristic
// calibrated against deployed stations and must not be "corrected".
package flow

import (
	"math"
	"sort"
	"time"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

const dayLayout = "2006-01-02"

// ProcessedSample is one derived point of the level series.
type ProcessedSample struct {
	Date  time.Time `json:"date"`
	Level float64   `json:"level"`
	// FilteredLevel is set only when filtering is active on the channel.
	FilteredLevel *float64 `json:"filtered_level,omitempty"`
	QEntree       float64  `json:"q_entree"`
	QSortie       float64  `json:"q_sortie"`
	VolumeIndex   float64  `json:"volume_index"`
}

// DailyVolume is the outflow volume attributed to one station-local day.
type DailyVolume struct {
	Date   time.Time `json:"date"`
	Volume float64   `json:"volume"`
}

// Day returns the calendar day as YYYY-MM-DD.
func (d DailyVolume) Day() string {
	return d.Date.Format(dayLayout)
}

// Result is the output of Derive.
type Result struct {
	Processed      []ProcessedSample `json:"processed"`
	AverageQEntree float64           `json:"average_q_entree"`
	TotalQSortie   float64           `json:"total_q_sortie"`
	VolumeIndex    float64           `json:"volume_index"`
	DailyVolumes   []DailyVolume     `json:"daily_volumes"`
}

// CentimetersToMeters converts a raw level reading.
func CentimetersToMeters(v float64) float64 {
	return v / 100
}

// Levels converts a raw level series to meters.
func Levels(series []telemetry.Sample) []float64 {
	out := make([]float64, len(series))
	for i, s := range series {
		out[i] = CentimetersToMeters(s.Value)
	}
	return out
}

// MovingAverage returns the trailing mean of series over window samples.
// The window narrows at the start; window < 1 is treated as 1.
func MovingAverage(series []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(series))
	for i := range series {
		start := max(0, i-window+1)
		var sum float64
		for _, v := range series[start : i+1] {
			sum += v
		}
		out[i] = sum / float64(i+1-start)
	}
	return out
}

// Derive computes processed samples and aggregates for a raw level series
// (centimeters, ascending by date). Daily volumes are keyed by the date of
// the sample in loc; a nil loc means UTC. Derive is pure.
func Derive(series []telemetry.Sample, ch channels.Channel, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}

	levels := Levels(series)
	if !ch.FlowEnabled() || len(series) == 0 {
		return passthrough(series, levels)
	}

	filtering := ch.FilterActive()
	effective := levels
	if filtering {
		effective = MovingAverage(levels, ch.FilterWindowSize)
	}
	surface := *ch.Surface

	var (
		lastQEntree float64
		entreeSum   float64
		risingCount int
		volume      float64
		daily       = make(map[string]float64)
		days        = make(map[string]time.Time)
	)

	processed := make([]ProcessedSample, 0, len(series))
	emit := func(i int, qEntree, qSortie float64) {
		p := ProcessedSample{
			Date:        series[i].Date,
			Level:       levels[i],
			QEntree:     qEntree,
			QSortie:     qSortie,
			VolumeIndex: volume,
		}
		if filtering {
			f := effective[i]
			p.FilteredLevel = &f
		}
		processed = append(processed, p)
	}

	emit(0, 0, 0)
	for i := 1; i < len(series); i++ {
		deltaLevel := effective[i] - effective[i-1]
		deltaHours := series[i].Date.Sub(series[i-1].Date).Hours()
		if deltaHours <= 0 {
			emit(i, 0, 0)
			continue
		}

		rate := deltaLevel * surface / deltaHours
		if deltaLevel > 0 {
			entreeSum += rate
			risingCount++
			lastQEntree = rate
			emit(i, rate, 0)
			continue
		}

		qSortie := math.Max(0, lastQEntree-rate)
		interval := qSortie * deltaHours
		volume += interval
		if interval > 0 {
			local := series[i].Date.In(loc)
			key := local.Format(dayLayout)
			if _, ok := days[key]; !ok {
				days[key] = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
			}
			daily[key] += interval
		}
		emit(i, 0, qSortie)
	}

	res := Result{
		Processed:    processed,
		TotalQSortie: volume,
		VolumeIndex:  volume,
		DailyVolumes: make([]DailyVolume, 0, len(daily)),
	}
	if risingCount > 0 {
		res.AverageQEntree = entreeSum / float64(risingCount)
	}
	for key, v := range daily {
		res.DailyVolumes = append(res.DailyVolumes, DailyVolume{Date: days[key], Volume: v})
	}
	sort.Slice(res.DailyVolumes, func(i, j int) bool {
		return res.DailyVolumes[i].Date.Before(res.DailyVolumes[j].Date)
	})
	return res
}

func passthrough(series []telemetry.Sample, levels []float64) Result {
	processed := make([]ProcessedSample, len(series))
	for i, s := range series {
		processed[i] = ProcessedSample{Date: s.Date, Level: levels[i]}
	}
	return Result{Processed: processed, DailyVolumes: []DailyVolume{}}
}
