// Package thingspeak reads channel feeds from the ThingSpeak REST API.
package thingspeak

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

const (
	DefaultBaseURL = "https://api.thingspeak.com"
	DefaultTimeout = 30 * time.Second

	// queryTimeLayout is the start/end format accepted by the feeds endpoint.
	queryTimeLayout = "2006-01-02 15:04:05"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RetryCount is passed to resty; zero disables retries.
	RetryCount int
	// Location is the station time zone used for query bounds and returned
	// timestamps.
	Location *time.Location
}

// Client fetches channel feeds. It implements telemetry.Source.
type Client struct {
	http     *resty.Client
	apiKey   string
	location *time.Location
	logger   *zap.Logger
}

// New creates a Client.
func New(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.RetryCount > 0 {
		httpClient.
			SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(5 * time.Second)
	}

	return &Client{
		http:     httpClient,
		apiKey:   opts.APIKey,
		location: opts.Location,
		logger:   logger,
	}
}

// FetchWindow retrieves the feeds of channelID between start and end
// inclusive.
func (c *Client) FetchWindow(ctx context.Context, channelID int, start, end time.Time) (*telemetry.ChannelData, error) {
	return c.fetch(ctx, channelID, map[string]string{
		"start":    start.In(c.location).Format(queryTimeLayout),
		"end":      end.In(c.location).Format(queryTimeLayout),
		"timezone": c.location.String(),
	})
}

// FetchRecent retrieves the last results entries of channelID.
func (c *Client) FetchRecent(ctx context.Context, channelID int, results int) (*telemetry.ChannelData, error) {
	return c.fetch(ctx, channelID, map[string]string{
		"results":  strconv.Itoa(results),
		"timezone": c.location.String(),
	})
}

func (c *Client) fetch(ctx context.Context, channelID int, params map[string]string) (*telemetry.ChannelData, error) {
	if c.apiKey != "" {
		params["api_key"] = c.apiKey
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(channelID)).
		SetQueryParams(params).
		Get("/channels/{id}/feeds.json")
	if err != nil {
		return nil, fmt.Errorf("request channel %d feeds: %w", channelID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("channel %d feeds: unexpected status %s", channelID, resp.Status())
	}

	data, err := ParseFeeds(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("channel %d feeds: %w", channelID, err)
	}

	c.logger.Debug("fetched channel feeds",
		zap.Int("channel_id", channelID),
		zap.Int("level_samples", len(data.Series(telemetry.LevelField))),
	)
	return data, nil
}
