// Package notify delivers alert messages to operators and downstream
// systems.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Message is one alert notification.
type Message struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ChannelID   int       `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Level       float64   `json:"level"`
	At          time.Time `json:"at"`
	To          []string  `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
}

// Notifier delivers a message. An empty recipient list is valid.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes a preview of every message to the log instead of
// delivering it.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("email preview",
		zap.String("to", strings.Join(msg.To, ", ")),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// Multi fans a message out to every notifier. All of them are attempted;
// failures are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
