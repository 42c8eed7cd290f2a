package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

func TestPumpFlow_AsOfState(t *testing.T) {
	ch := channels.Channel{
		ID:          2,
		UsePumpFlow: true,
		Pumps:       []channels.Pump{{ID: 1, FlowRate: 50}, {ID: 2, FlowRate: 30}},
	}
	data := &telemetry.ChannelData{Data: map[telemetry.FieldKey][]telemetry.Sample{
		1: series(time.Hour, 100, 110, 120, 130),
		2: {{Date: t0, Value: 1}, {Date: t0.Add(2 * time.Hour), Value: 0}},
		3: {{Date: t0.Add(time.Hour), Value: 1}, {Date: t0.Add(150 * time.Minute), Value: 2}},
	}}

	got := PumpFlow(data, ch)
	require.Len(t, got, 4)

	assert.Equal(t, []float64{50, 0}, got[0].PerPump)
	assert.Equal(t, 50.0, got[0].Total)
	assert.Equal(t, []float64{50, 30}, got[1].PerPump)
	assert.Equal(t, 80.0, got[1].Total)
	assert.Equal(t, []float64{0, 30}, got[2].PerPump)
	// Only a state of exactly 1 counts as running.
	assert.Equal(t, []float64{0, 0}, got[3].PerPump)
	assert.Zero(t, got[3].Total)
}

func TestPumpFlow_Disabled(t *testing.T) {
	data := &telemetry.ChannelData{Data: map[telemetry.FieldKey][]telemetry.Sample{1: series(time.Hour, 100)}}

	assert.Nil(t, PumpFlow(data, channels.Channel{Pumps: []channels.Pump{{ID: 1, FlowRate: 5}}}))
	assert.Nil(t, PumpFlow(data, channels.Channel{UsePumpFlow: true}))
}

func TestPumpFlow_MissingStateField(t *testing.T) {
	ch := channels.Channel{UsePumpFlow: true, Pumps: []channels.Pump{{ID: 1, FlowRate: 12}}}
	data := &telemetry.ChannelData{Data: map[telemetry.FieldKey][]telemetry.Sample{1: series(time.Hour, 100, 100)}}

	got := PumpFlow(data, ch)
	require.Len(t, got, 2)
	assert.Zero(t, got[0].Total)
	assert.Zero(t, got[1].Total)
}
