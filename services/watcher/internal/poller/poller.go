// Package poller runs the watcher cycle: fetch the recent feed of every
// channel, feed new levels to the alert monitor and archive new samples.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/02loveslollipop/station-telemetry/internal/alert"
	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/flow"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/models"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/utils"
)

// RecentSource returns the most recent feed entries of a channel.
type RecentSource interface {
	FetchRecent(ctx context.Context, channelID int, results int) (*telemetry.ChannelData, error)
}

// Observer receives level observations in meters.
type Observer interface {
	Observe(ctx context.Context, ch channels.Channel, level float64, at time.Time) ([]alert.Event, error)
}

// Archive persists channels, samples and alert events.
type Archive interface {
	UpsertChannels(ctx context.Context, rows []models.ChannelRow) error
	FetchLastSamples(ctx context.Context, channelIDs []int) (map[models.SampleKey]models.LastSample, error)
	InsertSamples(ctx context.Context, samples []models.SampleCandidate) error
	InsertAlertEvents(ctx context.Context, events []models.AlertEventRow) error
}

// Options tunes a Poller.
type Options struct {
	Interval      time.Duration
	RecentResults int
	Concurrency   int
	MinInterval   time.Duration
	ValueEpsilon  float64
	DryRun        bool
}

// Report summarizes one cycle.
type Report struct {
	Channels int
	Failed   int
	Events   int
	Inserted int
}

// Poller drives one watcher cycle per Interval. Archive may be nil, in which
// case only alerting runs.
type Poller struct {
	channels  []channels.Channel
	directory alert.Directory
	source    RecentSource
	observer  Observer
	archive   Archive
	opts      Options
	logger    *zap.Logger

	mu       sync.Mutex
	observed map[int]time.Time
}

type channelResult struct {
	ch     channels.Channel
	data   *telemetry.ChannelData
	events []models.AlertEventRow
	err    error
}

// New creates a Poller.
func New(chs []channels.Channel, directory alert.Directory, source RecentSource, observer Observer, archive Archive, opts Options, logger *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = alert.DefaultInterval
	}
	if opts.RecentResults < 1 {
		opts.RecentResults = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Poller{
		channels:  chs,
		directory: directory,
		source:    source,
		observer:  observer,
		archive:   archive,
		opts:      opts,
		logger:    logger,
		observed:  make(map[int]time.Time),
	}
}

// Run ticks immediately and then every Interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.Tick(ctx); err != nil {
			p.logger.Error("watcher cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one cycle. A channel whose fetch fails is logged and skipped;
// the returned error only reports archive failures.
func (p *Poller) Tick(ctx context.Context) (Report, error) {
	results := make([]channelResult, len(p.channels))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, ch := range p.channels {
		i, ch := i, ch
		g.Go(func() error {
			results[i] = p.pollChannel(ctx, ch)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Channels: len(results)}
	var (
		rows       []models.ChannelRow
		candidates []models.SampleCandidate
		events     []models.AlertEventRow
	)
	for _, res := range results {
		if res.err != nil {
			report.Failed++
			p.logger.Warn("channel fetch failed",
				zap.Int("channel_id", res.ch.ID),
				zap.String("channel", res.ch.Name),
				zap.Error(res.err),
			)
			continue
		}
		rows = append(rows, utils.BuildChannelRow(res.ch, res.data))
		candidates = append(candidates, utils.BuildSampleCandidates(res.ch, res.data)...)
		events = append(events, res.events...)
	}
	report.Events = len(events)

	if p.archive == nil {
		p.logger.Debug("no archive configured; skipping persistence", zap.Int("candidates", len(candidates)))
		return report, nil
	}

	inserted, err := p.persist(ctx, rows, candidates, events)
	report.Inserted = inserted
	return report, err
}

func (p *Poller) pollChannel(ctx context.Context, ch channels.Channel) channelResult {
	res := channelResult{ch: ch}

	data, err := p.source.FetchRecent(ctx, ch.ID, p.opts.RecentResults)
	if err != nil {
		res.err = err
		return res
	}
	res.data = telemetry.Merge([]*telemetry.ChannelData{data})
	if res.data == nil {
		res.err = telemetry.ErrNoData
		return res
	}

	if !ch.AlertsEnabled() || p.observer == nil {
		return res
	}

	latest, ok := res.data.Latest(telemetry.SchemaFor(ch).Level)
	if !ok || !p.markObserved(ch.ID, latest.Date) {
		return res
	}

	level := flow.CentimetersToMeters(latest.Value)
	evs, notifyErr := p.observer.Observe(ctx, ch, level, latest.Date)
	recipients := []string{}
	if len(evs) > 0 && p.directory != nil {
		recipients = append(recipients, p.directory.Emails(ch.EmailGroup)...)
	}
	for _, ev := range evs {
		res.events = append(res.events, models.AlertEventRow{
			ID:          ev.ID,
			ChannelID:   ev.ChannelID,
			Type:        string(ev.Type),
			Level:       ev.Level,
			Subject:     ev.Subject,
			Body:        ev.Body,
			Recipients:  recipients,
			Notified:    notifyErr == nil,
			TriggeredAt: ev.At,
		})
	}
	return res
}

// markObserved reports whether at is newer than the last level evaluated for
// the channel and records it.
func (p *Poller) markObserved(channelID int, at time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.observed[channelID]; ok && !at.After(prev) {
		return false
	}
	p.observed[channelID] = at
	return true
}

func (p *Poller) persist(ctx context.Context, rows []models.ChannelRow, candidates []models.SampleCandidate, events []models.AlertEventRow) (int, error) {
	if p.opts.DryRun {
		p.logger.Info("dry-run: skipping channel upsert", zap.Int("channels", len(rows)))
	} else if err := p.archive.UpsertChannels(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert channels: %w", err)
	}

	last, err := p.archive.FetchLastSamples(ctx, utils.ChannelIDs(rows))
	if err != nil {
		return 0, fmt.Errorf("fetch last samples: %w", err)
	}
	pending := utils.FilterNewSamples(candidates, last, p.opts.MinInterval, p.opts.ValueEpsilon)

	if p.opts.DryRun {
		for _, cand := range pending {
			p.logger.Info("dry-run: would insert sample",
				zap.Int("channel_id", cand.ChannelID),
				zap.String("field", cand.Field.String()),
				zap.Time("ts", cand.TS),
				zap.String("value", utils.FormatValue(cand.Value)),
			)
		}
		for _, ev := range events {
			p.logger.Info("dry-run: would record alert event",
				zap.String("event_id", ev.ID),
				zap.Int("channel_id", ev.ChannelID),
				zap.String("type", ev.Type),
			)
		}
		return 0, nil
	}

	var errs []error
	if len(pending) > 0 {
		if err := p.archive.InsertSamples(ctx, pending); err != nil {
			errs = append(errs, fmt.Errorf("insert samples: %w", err))
			pending = nil
		}
	}
	if len(events) > 0 {
		if err := p.archive.InsertAlertEvents(ctx, events); err != nil {
			errs = append(errs, fmt.Errorf("insert alert events: %w", err))
		}
	}

	if len(pending) == 0 {
		p.logger.Debug("no new samples to insert")
	} else {
		p.logger.Info("inserted samples", zap.Int("count", len(pending)))
	}
	return len(pending), errors.Join(errs...)
}
