package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/02loveslollipop/station-telemetry/internal/metrics"
)

// Source fetches one bounded window of a channel's telemetry.
type Source interface {
	FetchWindow(ctx context.Context, channelID int, start, end time.Time) (*ChannelData, error)
}

// Fetcher pages a long range through a Source in concurrent windows.
type Fetcher struct {
	source      Source
	maxWindow   time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewFetcher creates a Fetcher. maxWindow <= 0 uses MaxWindow; concurrency
// <= 0 fires every window at once.
func NewFetcher(source Source, maxWindow time.Duration, concurrency int, logger *zap.Logger) *Fetcher {
	if maxWindow <= 0 {
		maxWindow = MaxWindow
	}
	return &Fetcher{
		source:      source,
		maxWindow:   maxWindow,
		concurrency: concurrency,
		logger:      logger,
	}
}

// FetchRange fetches [start, end] and merges the windows once all of them
// have completed. Failed windows are dropped; ErrNoData is returned only
// when no window succeeded. A cancelled ctx returns ctx.Err() and discards
// whatever had already arrived.
func (f *Fetcher) FetchRange(ctx context.Context, channelID int, start, end time.Time) (*ChannelData, error) {
	windows := SplitRange(start, end, f.maxWindow)
	results := make([]*ChannelData, len(windows))

	var g errgroup.Group
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}
	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			data, err := f.source.FetchWindow(ctx, channelID, w.Start, w.End)
			if err != nil || data == nil {
				metrics.WindowFetched(false)
				f.logger.Warn("telemetry window dropped",
					zap.Int("channel_id", channelID),
					zap.Time("window_start", w.Start),
					zap.Time("window_end", w.End),
					zap.Error(err),
				)
				return nil
			}
			metrics.WindowFetched(true)
			results[i] = data
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := Merge(results)
	if merged == nil {
		return nil, ErrNoData
	}
	return merged, nil
}
