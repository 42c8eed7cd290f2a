// Package alert tracks very-high, very-low and overflow conditions per
// channel and raises one event on each entry into a condition.
package alert

import (
	"fmt"
	"strconv"
	"time"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
)

// DefaultInterval is the monitoring cadence. Overflow duration grows by the
// cadence on every evaluation, not by wall-clock time.
const DefaultInterval = 2 * time.Minute

// Type identifies an alert condition.
type Type string

const (
	TypeNTH      Type = "NTH"
	TypeNTB      Type = "NTB"
	TypeOverflow Type = "Overflow"
)

// State is the alert state of one channel. The zero value is the state of a
// channel that just started being monitored.
type State struct {
	IsNTH            bool          `json:"is_nth"`
	IsNTB            bool          `json:"is_ntb"`
	IsOverflowing    bool          `json:"is_overflowing"`
	OverflowCount    int           `json:"overflow_count"`
	OverflowDuration time.Duration `json:"overflow_duration"`
}

// OverflowMinutes returns the accumulated overflow duration in minutes.
func (s State) OverflowMinutes() float64 {
	return s.OverflowDuration.Minutes()
}

// Event is an entry transition. ID and At are stamped by the Monitor.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	ChannelID   int       `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Level       float64   `json:"level"`
	At          time.Time `json:"at"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
}

// Step evaluates one level observation (meters) against the channel's
// thresholds and returns the next state with the events to dispatch. Entry
// is strictly above (or below, for NTB) the threshold and exit is at or past
// it, so a level sitting on the threshold never re-fires. A channel lacking
// any of the three thresholds is not evaluated.
func Step(s State, level float64, ch channels.Channel, interval time.Duration) (State, []Event) {
	if !ch.AlertsEnabled() {
		return s, nil
	}

	var events []Event
	nth, ntb, overflow := *ch.NTHThreshold, *ch.NTBThreshold, *ch.OverflowThreshold

	switch {
	case level > nth && !s.IsNTH:
		s.IsNTH = true
		events = append(events, newEvent(TypeNTH, ch, level))
	case level <= nth:
		s.IsNTH = false
	}

	switch {
	case level < ntb && !s.IsNTB:
		s.IsNTB = true
		events = append(events, newEvent(TypeNTB, ch, level))
	case level >= ntb:
		s.IsNTB = false
	}

	switch {
	case level > overflow && !s.IsOverflowing:
		s.IsOverflowing = true
		s.OverflowCount++
		events = append(events, newEvent(TypeOverflow, ch, level))
	case level <= overflow:
		s.IsOverflowing = false
	}

	if s.IsOverflowing {
		s.OverflowDuration += interval
	}

	return s, events
}

func newEvent(t Type, ch channels.Channel, level float64) Event {
	subject, body := Render(t, ch.Name, level)
	return Event{
		Type:        t,
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		Level:       level,
		Subject:     subject,
		Body:        body,
	}
}

// Render returns the notification subject and body for an alert.
func Render(t Type, channelName string, level float64) (subject, body string) {
	value := strconv.FormatFloat(level, 'f', -1, 64)
	switch t {
	case TypeNTH:
		return fmt.Sprintf("Alerte NTH pour %s", channelName),
			fmt.Sprintf("Le niveau est très haut pour le canal %s. Valeur actuelle : %s", channelName, value)
	case TypeNTB:
		return fmt.Sprintf("Alerte NTB pour %s", channelName),
			fmt.Sprintf("Le niveau est très bas pour le canal %s. Valeur actuelle : %s", channelName, value)
	default:
		return fmt.Sprintf("Alerte de débordement pour %s", channelName),
			fmt.Sprintf("Un débordement a été détecté pour le canal %s. Valeur actuelle : %s", channelName, value)
	}
}
