package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func window(name string, level ...Sample) *ChannelData {
	return &ChannelData{
		Name:   name,
		Fields: map[FieldKey]string{LevelField: "Niveau"},
		Data:   map[FieldKey][]Sample{LevelField: level},
	}
}

func TestMerge_SortsAndDedups(t *testing.T) {
	a := window("GA_SR9", Sample{at(20), 3}, Sample{at(0), 1}, Sample{at(10), 2})
	b := window("GA_SR9", Sample{at(20), 3}, Sample{at(30), 4})

	merged := Merge([]*ChannelData{b, a})
	require.NotNil(t, merged)

	series := merged.Series(LevelField)
	require.Len(t, series, 4)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i].Date.After(series[i-1].Date))
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, values(series))
}

func TestMerge_Idempotent(t *testing.T) {
	a := window("GA_SR9", Sample{at(0), 1}, Sample{at(10), 2})

	once := Merge([]*ChannelData{a})
	twice := Merge([]*ChannelData{a, a})

	assert.Equal(t, once.Series(LevelField), twice.Series(LevelField))
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := window("GA_SR9", Sample{at(0), 1}, Sample{at(10), 2}, Sample{at(20), 3})
	b := window("GA_SR9", Sample{at(20), 3}, Sample{at(30), 4})

	ab := Merge([]*ChannelData{a, b})
	ba := Merge([]*ChannelData{b, a})

	assert.Equal(t, ab.Series(LevelField), ba.Series(LevelField))
}

func TestMerge_FirstOccurrenceWins(t *testing.T) {
	a := window("GA_SR9", Sample{at(0), 1})
	b := window("GA_SR9", Sample{at(0), 99})

	merged := Merge([]*ChannelData{a, b})
	assert.Equal(t, []float64{1}, values(merged.Series(LevelField)))
}

func TestMerge_LabelsFromFirstPresentWindow(t *testing.T) {
	a := &ChannelData{
		Name:   "first",
		Fields: map[FieldKey]string{1: "Niveau", 2: "Pompe 1"},
		Data:   map[FieldKey][]Sample{1: {{at(0), 1}}},
	}
	b := &ChannelData{
		Name:   "second",
		Fields: map[FieldKey]string{1: "Level"},
		Data:   map[FieldKey][]Sample{1: {{at(10), 2}}},
	}

	merged := Merge([]*ChannelData{nil, a, b})
	require.NotNil(t, merged)
	assert.Equal(t, "first", merged.Name)
	assert.Equal(t, map[FieldKey]string{1: "Niveau", 2: "Pompe 1"}, merged.Fields)
	assert.Empty(t, merged.Series(2))
	assert.NotNil(t, merged.Data[2])
	assert.Len(t, merged.Series(1), 2)
}

func TestMerge_AllAbsent(t *testing.T) {
	assert.Nil(t, Merge(nil))
	assert.Nil(t, Merge([]*ChannelData{nil, nil}))
}

func TestMerge_EmptyRangeIsNotNoData(t *testing.T) {
	merged := Merge([]*ChannelData{window("GA_SR9")})
	require.NotNil(t, merged)
	assert.Empty(t, merged.Series(LevelField))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := window("GA_SR9", Sample{at(10), 2}, Sample{at(0), 1})
	Merge([]*ChannelData{a})
	assert.Equal(t, []float64{2, 1}, values(a.Series(LevelField)))
}

func TestSplitRange(t *testing.T) {
	start := t0
	end := t0.Add(16 * 24 * time.Hour)

	windows := SplitRange(start, end, MaxWindow)
	require.Len(t, windows, 3)
	assert.Equal(t, start, windows[0].Start)
	assert.Equal(t, windows[0].End, windows[1].Start)
	assert.Equal(t, windows[1].End, windows[2].Start)
	assert.Equal(t, end, windows[2].End)
	for _, w := range windows {
		assert.LessOrEqual(t, w.End.Sub(w.Start), MaxWindow)
	}
}

func TestSplitRange_Degenerate(t *testing.T) {
	windows := SplitRange(t0, t0, MaxWindow)
	assert.Equal(t, []Window{{Start: t0, End: t0}}, windows)

	windows = SplitRange(t0, t0.Add(time.Hour), 0)
	assert.Equal(t, []Window{{Start: t0, End: t0.Add(time.Hour)}}, windows)
}

func TestFieldKey(t *testing.T) {
	k, err := ParseFieldKey("field3")
	require.NoError(t, err)
	assert.Equal(t, FieldKey(3), k)
	assert.Equal(t, "field3", k.String())

	for _, bad := range []string{"field0", "field9", "fieldx", "level"} {
		_, err := ParseFieldKey(bad)
		assert.Error(t, err, bad)
	}

	text, err := FieldKey(1).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "field1", string(text))
}

func values(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}
