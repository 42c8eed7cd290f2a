package utils

import (
	"math"
	"strconv"
	"time"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/models"
)

// BuildChannelRow converts a configured channel and its fetched labels into
// an archive row.
func BuildChannelRow(ch channels.Channel, data *telemetry.ChannelData) models.ChannelRow {
	labels := make(map[string]string)
	if data != nil {
		for k, label := range data.Fields {
			labels[k.String()] = label
		}
	}
	return models.ChannelRow{
		ID:     ch.ID,
		Name:   ch.Name,
		Labels: labels,
		Config: ch,
	}
}

// ChannelIDs extracts channel identifiers from channel rows.
func ChannelIDs(rows []models.ChannelRow) []int {
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// BuildSampleCandidates collects the level and pump state samples of a
// channel. Fields without a role in the channel's schema are skipped.
func BuildSampleCandidates(ch channels.Channel, data *telemetry.ChannelData) []models.SampleCandidate {
	schema := telemetry.SchemaFor(ch)
	keys := append([]telemetry.FieldKey{schema.Level}, schema.Pumps...)

	var out []models.SampleCandidate
	for _, key := range keys {
		for _, s := range data.Series(key) {
			out = append(out, models.SampleCandidate{
				ChannelID: ch.ID,
				Field:     key,
				TS:        s.Date,
				Value:     s.Value,
			})
		}
	}
	return out
}

// FilterNewSamples selects candidates that should be inserted. Candidates
// not newer than the last stored sample of their series are dropped; a newer
// one closer than minInterval is kept only if its value moved by more than
// epsilon. Candidates of a series must be ascending by TS.
func FilterNewSamples(
	candidates []models.SampleCandidate,
	last map[models.SampleKey]models.LastSample,
	minInterval time.Duration,
	epsilon float64,
) []models.SampleCandidate {
	seen := make(map[models.SampleKey]models.LastSample, len(last))
	for k, v := range last {
		seen[k] = v
	}

	out := make([]models.SampleCandidate, 0, len(candidates))
	for _, cand := range candidates {
		key := cand.Key()
		prev, ok := seen[key]
		switch {
		case !ok:
		case !cand.TS.After(prev.TS):
			continue
		case cand.TS.Sub(prev.TS) >= minInterval:
		case ValuesEqual(prev.Value, cand.Value, epsilon):
			continue
		}
		out = append(out, cand)
		seen[key] = models.LastSample{Value: cand.Value, TS: cand.TS}
	}
	return out
}

// ValuesEqual compares two values with tolerance.
func ValuesEqual(a, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// FormatValue prints values for logging.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
