package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/metrics"
	"github.com/02loveslollipop/station-telemetry/internal/notify"
)

// Directory resolves an email group to its addresses.
type Directory interface {
	Emails(groupID *int) []string
}

// Monitor owns the alert state of every monitored channel. Observations of
// one channel are serialized; different channels proceed in parallel.
type Monitor struct {
	directory Directory
	notifier  notify.Notifier
	interval  time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	channels map[int]*channelState
}

type channelState struct {
	mu    sync.Mutex
	state State
}

// NewMonitor creates a Monitor. interval <= 0 uses DefaultInterval.
func NewMonitor(directory Directory, notifier notify.Notifier, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		directory: directory,
		notifier:  notifier,
		interval:  interval,
		logger:    logger,
		channels:  make(map[int]*channelState),
	}
}

func (m *Monitor) channel(id int) *channelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.channels[id]
	if !ok {
		cs = &channelState{}
		m.channels[id] = cs
	}
	return cs
}

// Observe feeds one level (meters) observed at at into the channel's state
// machine and notifies every entry event. The state advances even when a
// notification fails; failures are logged and returned joined.
func (m *Monitor) Observe(ctx context.Context, ch channels.Channel, level float64, at time.Time) ([]Event, error) {
	metrics.SetLatestLevel(ch.Name, level)

	cs := m.channel(ch.ID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	next, events := Step(cs.state, level, ch, m.interval)
	cs.state = next

	var errs []error
	for i := range events {
		events[i].ID = uuid.New().String()
		events[i].At = at
		metrics.AlertFired(string(events[i].Type))
		if err := m.dispatch(ctx, ch, events[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return events, errors.Join(errs...)
}

func (m *Monitor) dispatch(ctx context.Context, ch channels.Channel, ev Event) error {
	msg := notify.Message{
		ID:          ev.ID,
		Type:        string(ev.Type),
		ChannelID:   ev.ChannelID,
		ChannelName: ev.ChannelName,
		Level:       ev.Level,
		At:          ev.At,
		To:          m.directory.Emails(ch.EmailGroup),
		Subject:     ev.Subject,
		Body:        ev.Body,
	}

	if err := m.notifier.Notify(ctx, msg); err != nil {
		metrics.NotificationSent(false)
		m.logger.Error("Échec de l'envoi de l'alerte "+string(ev.Type)+" pour "+ch.Name,
			zap.String("event_id", ev.ID),
			zap.Int("channel_id", ch.ID),
			zap.Error(err),
		)
		return err
	}

	metrics.NotificationSent(true)
	m.logger.Info("Alerte "+string(ev.Type)+" envoyée pour "+ch.Name,
		zap.String("event_id", ev.ID),
		zap.Int("channel_id", ch.ID),
		zap.Int("recipients", len(msg.To)),
	)
	return nil
}

// State returns a snapshot of a channel's alert state.
func (m *Monitor) State(channelID int) State {
	cs := m.channel(channelID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

// States returns a snapshot of every tracked channel.
func (m *Monitor) States() map[int]State {
	m.mu.Lock()
	ids := make([]int, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	out := make(map[int]State, len(ids))
	for _, id := range ids {
		out[id] = m.State(id)
	}
	return out
}
