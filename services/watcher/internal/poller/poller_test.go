package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/02loveslollipop/station-telemetry/internal/alert"
	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/notify"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/models"
)

func ptr[T any](v T) *T { return &v }

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func alerting() channels.Channel {
	return channels.Channel{
		ID:                2780154,
		Name:              "GA_SR9",
		NTHThreshold:      ptr(3.0),
		NTBThreshold:      ptr(0.5),
		OverflowThreshold: ptr(4.0),
		EmailGroup:        ptr(1),
		Pumps:             []channels.Pump{{ID: 1, FlowRate: 100}},
	}
}

func quiet() channels.Channel {
	return channels.Channel{ID: 2764860, Name: "SR2"}
}

type directory map[int][]string

func (d directory) Emails(groupID *int) []string {
	if groupID == nil {
		return []string{}
	}
	return append([]string{}, d[*groupID]...)
}

type fakeSource struct {
	mu   sync.Mutex
	data map[int]*telemetry.ChannelData
	errs map[int]error
}

func (f *fakeSource) FetchRecent(_ context.Context, channelID int, _ int) (*telemetry.ChannelData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[channelID]; err != nil {
		return nil, err
	}
	return f.data[channelID], nil
}

func (f *fakeSource) set(channelID int, d *telemetry.ChannelData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[channelID] = d
}

type fakeArchive struct {
	channels []models.ChannelRow
	last     map[models.SampleKey]models.LastSample
	samples  []models.SampleCandidate
	events   []models.AlertEventRow
	err      error
}

func (a *fakeArchive) UpsertChannels(_ context.Context, rows []models.ChannelRow) error {
	a.channels = append(a.channels, rows...)
	return nil
}

func (a *fakeArchive) FetchLastSamples(_ context.Context, _ []int) (map[models.SampleKey]models.LastSample, error) {
	out := make(map[models.SampleKey]models.LastSample, len(a.last))
	for k, v := range a.last {
		out[k] = v
	}
	return out, nil
}

func (a *fakeArchive) InsertSamples(_ context.Context, samples []models.SampleCandidate) error {
	if a.err != nil {
		return a.err
	}
	a.samples = append(a.samples, samples...)
	if a.last == nil {
		a.last = make(map[models.SampleKey]models.LastSample)
	}
	for _, s := range samples {
		a.last[s.Key()] = models.LastSample{Value: s.Value, TS: s.TS}
	}
	return nil
}

func (a *fakeArchive) InsertAlertEvents(_ context.Context, events []models.AlertEventRow) error {
	a.events = append(a.events, events...)
	return nil
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, notify.Message) error {
	return errors.New("smtp down")
}

func feed(levelsCM ...float64) *telemetry.ChannelData {
	d := &telemetry.ChannelData{
		Name:   "GA_SR9",
		Fields: map[telemetry.FieldKey]string{1: "Niveau", 2: "Pompe 1"},
		Data:   map[telemetry.FieldKey][]telemetry.Sample{},
	}
	for i, v := range levelsCM {
		at := base.Add(time.Duration(i) * 2 * time.Minute)
		d.Data[1] = append(d.Data[1], telemetry.Sample{Date: at, Value: v})
		d.Data[2] = append(d.Data[2], telemetry.Sample{Date: at, Value: 1})
	}
	return d
}

func newPoller(src RecentSource, archive Archive, notifier notify.Notifier, opts Options) (*Poller, *alert.Monitor) {
	dir := directory{1: {"ops@example.com"}}
	mon := alert.NewMonitor(dir, notifier, opts.Interval, zap.NewNop())
	return New([]channels.Channel{alerting(), quiet()}, dir, src, mon, archive, opts, zap.NewNop()), mon
}

func TestTick_ArchivesAndAlerts(t *testing.T) {
	src := &fakeSource{
		data: map[int]*telemetry.ChannelData{2780154: feed(250, 320), 2764860: feed(100)},
		errs: map[int]error{},
	}
	archive := &fakeArchive{}
	p, mon := newPoller(src, archive, notify.NewLogNotifier(zap.NewNop()), Options{})

	report, err := p.Tick(context.Background())
	require.NoError(t, err)

	// Two level and two pump samples for the pumping station, one level
	// sample for the other; its field2 has no role and is not archived.
	assert.Equal(t, Report{Channels: 2, Events: 1, Inserted: 5}, report)
	assert.Len(t, archive.channels, 2)
	assert.Len(t, archive.samples, 5)

	require.Len(t, archive.events, 1)
	ev := archive.events[0]
	assert.Equal(t, string(alert.TypeNTH), ev.Type)
	assert.Equal(t, 3.2, ev.Level)
	assert.Equal(t, []string{"ops@example.com"}, ev.Recipients)
	assert.True(t, ev.Notified)
	assert.Equal(t, base.Add(2*time.Minute), ev.TriggeredAt)
	assert.NotEmpty(t, ev.ID)

	assert.True(t, mon.State(2780154).IsNTH)
}

func TestTick_ObservesOnlyNewSamples(t *testing.T) {
	src := &fakeSource{
		data: map[int]*telemetry.ChannelData{2780154: feed(420), 2764860: feed(100)},
		errs: map[int]error{},
	}
	archive := &fakeArchive{}
	p, mon := newPoller(src, archive, notify.NewLogNotifier(zap.NewNop()), Options{})

	_, err := p.Tick(context.Background())
	require.NoError(t, err)
	first := mon.State(2780154)
	assert.True(t, first.IsOverflowing)
	assert.Equal(t, 1, first.OverflowCount)
	assert.Equal(t, alert.DefaultInterval, first.OverflowDuration)

	report, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, mon.State(2780154), "stale sample must not advance the state")
	assert.Zero(t, report.Inserted)
	assert.Zero(t, report.Events)

	src.set(2780154, feed(420, 430))
	_, err = p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*alert.DefaultInterval, mon.State(2780154).OverflowDuration)
}

func TestTick_FetchFailureSkipsChannel(t *testing.T) {
	src := &fakeSource{
		data: map[int]*telemetry.ChannelData{2764860: feed(100)},
		errs: map[int]error{2780154: errors.New("502")},
	}
	archive := &fakeArchive{}
	p, _ := newPoller(src, archive, notify.NewLogNotifier(zap.NewNop()), Options{})

	report, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, archive.channels, 1)
	assert.Equal(t, 2764860, archive.channels[0].ID)
}

func TestTick_AbsentFeedCountsAsFailure(t *testing.T) {
	src := &fakeSource{data: map[int]*telemetry.ChannelData{}, errs: map[int]error{}}
	p, _ := newPoller(src, &fakeArchive{}, notify.NewLogNotifier(zap.NewNop()), Options{})

	report, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
}

func TestTick_NotificationFailureIsRecorded(t *testing.T) {
	src := &fakeSource{
		data: map[int]*telemetry.ChannelData{2780154: feed(320), 2764860: feed(100)},
		errs: map[int]error{},
	}
	archive := &fakeArchive{}
	p, mon := newPoller(src, archive, failingNotifier{}, Options{})

	_, err := p.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, archive.events, 1)
	assert.False(t, archive.events[0].Notified)
	assert.True(t, mon.State(2780154).IsNTH)
}

func TestTick_DryRunWritesNothing(t *testing.T) {
	src := &fakeSource{
		data: map[int]*telemetry.ChannelData{2780154: feed(320), 2764860: feed(100)},
		errs: map[int]error{},
	}
	archive := &fakeArchive{}
	p, _ := newPoller(src, archive, notify.NewLogNotifier(zap.NewNop()), Options{DryRun: true})

	report, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Events)
	assert.Zero(t, report.Inserted)
	assert.Empty(t, archive.channels)
	assert.Empty(t, archive.samples)
	assert.Empty(t, archive.events)
}

func TestTick_InsertFailureReturnsError(t *testing.T) {
	src := &fakeSource{
		data: map[int]*telemetry.ChannelData{2780154: feed(320), 2764860: feed(100)},
		errs: map[int]error{},
	}
	archive := &fakeArchive{err: errors.New("disk full")}
	p, _ := newPoller(src, archive, notify.NewLogNotifier(zap.NewNop()), Options{})

	report, err := p.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert samples")
	assert.Zero(t, report.Inserted)
	assert.Len(t, archive.events, 1, "alert events are still recorded")
}

func TestTick_WithoutArchive(t *testing.T) {
	src := &fakeSource{
		data: map[int]*telemetry.ChannelData{2780154: feed(320), 2764860: feed(100)},
		errs: map[int]error{},
	}
	p, mon := newPoller(src, nil, notify.NewLogNotifier(zap.NewNop()), Options{})

	report, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Events)
	assert.True(t, mon.State(2780154).IsNTH)
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{data: map[int]*telemetry.ChannelData{}, errs: map[int]error{}}
	p, _ := newPoller(src, nil, notify.NewLogNotifier(zap.NewNop()), Options{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
