package thingspeak

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

type feedsEnvelope struct {
	Channel map[string]json.RawMessage   `json:"channel"`
	Feeds   []map[string]json.RawMessage `json:"feeds"`
}

// ParseFeeds converts a feeds.json document into ChannelData. The document
// must carry both channel and feeds. Labels come from channel.field1..8;
// null values are skipped and any other non-numeric value fails the whole
// document.
func ParseFeeds(body []byte) (*telemetry.ChannelData, error) {
	var env feedsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", telemetry.ErrInvalidEnvelope, err)
	}
	if env.Channel == nil || env.Feeds == nil {
		return nil, telemetry.ErrInvalidEnvelope
	}

	data := &telemetry.ChannelData{
		Fields: make(map[telemetry.FieldKey]string),
		Data:   make(map[telemetry.FieldKey][]telemetry.Sample),
	}
	if raw, ok := env.Channel["name"]; ok {
		if err := json.Unmarshal(raw, &data.Name); err != nil {
			return nil, fmt.Errorf("%w: channel name: %v", telemetry.ErrInvalidEnvelope, err)
		}
	}

	for k := telemetry.FirstField; k <= telemetry.LastField; k++ {
		raw, ok := env.Channel[k.String()]
		if !ok || isNull(raw) {
			continue
		}
		var label string
		if err := json.Unmarshal(raw, &label); err != nil || label == "" {
			continue
		}
		data.Fields[k] = label
		data.Data[k] = []telemetry.Sample{}
	}

	for i, feed := range env.Feeds {
		var createdAt string
		if err := json.Unmarshal(feed["created_at"], &createdAt); err != nil {
			return nil, fmt.Errorf("%w: feed %d created_at", telemetry.ErrInvalidEnvelope, i)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("%w: feed %d created_at %q", telemetry.ErrInvalidEnvelope, i, createdAt)
		}

		for k := range data.Fields {
			raw, ok := feed[k.String()]
			if !ok || isNull(raw) {
				continue
			}
			value, err := parseValue(raw)
			if err != nil {
				return nil, fmt.Errorf("feed %d %s: %w", i, k, err)
			}
			data.Data[k] = append(data.Data[k], telemetry.Sample{Date: ts, Value: value})
		}
	}

	return data, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// parseValue accepts a JSON number or a string holding a finite number.
func parseValue(raw json.RawMessage) (float64, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", telemetry.ErrParseValue, text)
	}
	return v, nil
}
