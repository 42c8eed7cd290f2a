package models

import (
	"time"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

// ChannelRow captures the channel metadata kept in the archive.
type ChannelRow struct {
	ID     int
	Name   string
	Labels map[string]string
	Config channels.Channel
}

// SampleKey identifies one archived series.
type SampleKey struct {
	ChannelID int
	Field     telemetry.FieldKey
}

// SampleCandidate is a fetched sample ready for insertion.
type SampleCandidate struct {
	ChannelID int
	Field     telemetry.FieldKey
	TS        time.Time
	Value     float64
}

// Key returns the series the candidate belongs to.
func (c SampleCandidate) Key() SampleKey {
	return SampleKey{ChannelID: c.ChannelID, Field: c.Field}
}

// LastSample represents the most recent stored sample for comparison.
type LastSample struct {
	Value float64
	TS    time.Time
}

// AlertEventRow is an alert entry transition with its delivery outcome.
type AlertEventRow struct {
	ID          string
	ChannelID   int
	Type        string
	Level       float64
	Subject     string
	Body        string
	Recipients  []string
	Notified    bool
	TriggeredAt time.Time
}
