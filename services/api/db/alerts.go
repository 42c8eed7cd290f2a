package db

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// AlertEvent is an archived alert entry transition.
type AlertEvent struct {
	ID          string    `json:"id"`
	ChannelID   int       `json:"channel_id"`
	Type        string    `json:"type"`
	Level       float64   `json:"level"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Recipients  []string  `json:"recipients"`
	Notified    bool      `json:"notified"`
	TriggeredAt time.Time `json:"triggered_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// AlertQuery holds filters for listing alert events.
type AlertQuery struct {
	ChannelID *int
	Type      string
	Since     *time.Time
	Until     *time.Time
	Limit     int
}

// ListAlertEvents returns alert events, most recent first.
func (s *Store) ListAlertEvents(ctx context.Context, q AlertQuery) ([]AlertEvent, error) {
	var conditions []string
	var args []any

	if q.ChannelID != nil {
		args = append(args, *q.ChannelID)
		conditions = append(conditions, "channel_id = $"+strconv.Itoa(len(args)))
	}
	if q.Type != "" {
		args = append(args, q.Type)
		conditions = append(conditions, "type = $"+strconv.Itoa(len(args)))
	}
	if q.Since != nil {
		args = append(args, *q.Since)
		conditions = append(conditions, "triggered_at >= $"+strconv.Itoa(len(args)))
	}
	if q.Until != nil {
		args = append(args, *q.Until)
		conditions = append(conditions, "triggered_at <= $"+strconv.Itoa(len(args)))
	}

	query := strings.Builder{}
	query.WriteString("SELECT id, channel_id, type, level, subject, body, recipients, notified, triggered_at, created_at ")
	query.WriteString("FROM telemetry.alert_events ")
	if len(conditions) > 0 {
		query.WriteString("WHERE " + strings.Join(conditions, " AND ") + " ")
	}
	query.WriteString("ORDER BY triggered_at DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]AlertEvent, 0)
	for rows.Next() {
		var e AlertEvent
		if err := rows.Scan(
			&e.ID,
			&e.ChannelID,
			&e.Type,
			&e.Level,
			&e.Subject,
			&e.Body,
			&e.Recipients,
			&e.Notified,
			&e.TriggeredAt,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
